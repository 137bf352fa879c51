package command

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/polar-vm/polarvm/internal/concurrency"
	"github.com/polar-vm/polarvm/pkg/polar/engine"
)

// CheckCommand loads one or more .polar files, each into its own fresh
// knowledge base, and reports whether they validate without running
// anything: the CLI equivalent of `oso.Polar().load_files(...)` with no
// query attached. Files are independent of one another (each gets its
// own Engine), so a multi-file invocation validates them concurrently
// through a bounded worker pool rather than one at a time.
type CheckCommand struct {
	Meta
}

func (c *CheckCommand) Help() string {
	return strings.TrimSpace(`
Usage: polarc check FILE...

  Loads one or more .polar source files, each into its own knowledge
  base, and reports any parse, validation, or rule-loading errors. Exits
  0 if every file loads cleanly, 1 otherwise. Files are checked
  concurrently; output order does not follow argument order.
`)
}

func (c *CheckCommand) Synopsis() string { return "Validate one or more .polar source files" }

func (c *CheckCommand) Run(args []string) int {
	if len(args) == 0 {
		c.Ui.Error("at least one .polar file is required")
		return 1
	}

	pool := concurrency.New(len(args))
	defer pool.Close()

	var mu sync.Mutex
	failed := false
	ctx := context.Background()
	for _, path := range args {
		path := path
		err := pool.Submit(ctx, func() {
			msg, ok := checkOne(path, c.Log)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				failed = true
				c.Ui.Error(msg)
				return
			}
			c.Ui.Info(msg)
		})
		if err != nil {
			c.Ui.Error(fmt.Sprintf("%s: %v", path, err))
			return 1
		}
	}
	pool.Close()

	if failed {
		return 1
	}
	return 0
}

// checkOne loads a single file into its own Engine and reports its
// result as a formatted line plus whether it passed. hclog.Logger is
// safe for concurrent use, so every worker shares the command's logger.
func checkOne(path string, log hclog.Logger) (string, bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("%s: %v", path, err), false
	}
	eng := engine.New(log)
	if _, err := eng.Load(string(src), path); err != nil {
		return fmt.Sprintf("%s: %v", path, err), false
	}
	return fmt.Sprintf("%s: ok", path), true
}
