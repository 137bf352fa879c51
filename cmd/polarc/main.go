// Command polarc is a small CLI wrapping the policy engine: load .polar
// files and either validate them (check) or run a single query against
// them (query). It follows hashicorp-nomad's cli.NewCLI wiring — a
// Commands map of factories, Meta carrying the shared Ui/logger — rather
// than hand-rolling flag parsing and dispatch in main itself.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/cli"
	"github.com/hashicorp/go-hclog"

	"github.com/polar-vm/polarvm/cmd/polarc/command"
)

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ui := &cli.BasicUi{
		Reader:      os.Stdin,
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:   "polarc",
		Level:  hclog.LevelFromString(os.Getenv("POLARC_LOG")),
		Output: os.Stderr,
	})

	meta := command.Meta{Ui: ui, Log: log}

	c := cli.NewCLI("polarc", version)
	c.Args = args
	c.Commands = map[string]cli.CommandFactory{
		"check": func() (cli.Command, error) {
			return &command.CheckCommand{Meta: meta}, nil
		},
		"query": func() (cli.Command, error) {
			return &command.QueryCommand{Meta: meta}, nil
		},
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}
