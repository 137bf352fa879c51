package command

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/go-uuid"

	"github.com/polar-vm/polarvm/pkg/polar/engine"
	"github.com/polar-vm/polarvm/pkg/polar/event"
	"github.com/polar-vm/polarvm/pkg/polar/parser"
	"github.com/polar-vm/polarvm/pkg/polar/term"
	"github.com/polar-vm/polarvm/pkg/polar/vm"
)

// QueryCommand loads policy files, then runs one query against the
// resulting knowledge base and prints every solution — the CLI's
// equivalent of oso's REPL `query` verb, minus host-class registration
// (polarc has no host language to delegate ExternalCall/MakeExternal to,
// so a query that needs one fails with that event's name, not a crash).
type QueryCommand struct {
	Meta
}

func (c *QueryCommand) Help() string {
	return strings.TrimSpace(`
Usage: polarc query -q='allow("alice", "read", "doc1")' FILE...

  Loads one or more .polar files, then runs the expression given by -q
  against the resulting knowledge base, printing one line per solution.
  Every query run is tagged with a fresh correlation id in its log output,
  so overlapping requests in a longer-running host can be told apart.

Options:

  -q=<expr>      The query expression to run (required).
  -limit=<n>     Stop after n solutions (0, the default, means no limit).
`)
}

func (c *QueryCommand) Synopsis() string { return "Run a query against one or more .polar files" }

func (c *QueryCommand) Run(args []string) int {
	flags := flag.NewFlagSet("query", flag.ContinueOnError)
	queryExpr := flags.String("q", "", "query expression to run")
	limit := flags.Int("limit", 0, "stop after this many solutions (0 = no limit)")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	files := flags.Args()
	if *queryExpr == "" {
		c.Ui.Error("-q is required")
		return 1
	}
	if len(files) == 0 {
		c.Ui.Error("at least one .polar file is required")
		return 1
	}

	correlationID, err := uuid.GenerateUUID()
	if err != nil {
		c.Ui.Error(fmt.Sprintf("generating correlation id: %v", err))
		return 1
	}
	log := c.Log.With("correlation_id", correlationID)

	eng := engine.New(log)
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			c.Ui.Error(fmt.Sprintf("%s: %v", path, err))
			return 1
		}
		if _, err := eng.Load(string(src), path); err != nil {
			c.Ui.Error(fmt.Sprintf("%s: %v", path, err))
			return 1
		}
	}

	queryID := eng.KB.AddSource(*queryExpr)
	res, err := parser.Parse("?= "+*queryExpr+";", queryID, eng.KB.Gensym)
	if err != nil {
		c.Ui.Error(fmt.Sprintf("parsing query: %v", err))
		return 1
	}
	if len(res.Queries) != 1 {
		c.Ui.Error("expected exactly one query expression")
		return 1
	}

	log.Debug("running query", "expr", *queryExpr)
	m := vm.New(eng.KB, res.Queries[0], vm.DefaultConfig())

	ctx := context.Background()
	count := 0
	for {
		ev, err := m.Next(ctx)
		if err != nil {
			c.Ui.Error(err.Error())
			return 1
		}
		switch ev := ev.(type) {
		case event.Done:
			if count == 0 {
				c.Ui.Info("false")
			}
			return 0
		case event.Result:
			count++
			c.Ui.Output(formatBindings(ev.Bindings))
			if *limit > 0 && count >= *limit {
				return 0
			}
		default:
			c.Ui.Error(fmt.Sprintf("query needs a host to answer a %T event, which polarc does not provide", ev))
			return 1
		}
	}
}

func formatBindings(bindings map[string]term.Term) string {
	if len(bindings) == 0 {
		return "true"
	}
	names := make([]string, 0, len(bindings))
	for k := range bindings {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + " = " + bindings[k].String()
	}
	return strings.Join(parts, ", ")
}
