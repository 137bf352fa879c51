// Package command holds the polarc CLI's cli.Command implementations,
// following the Meta-embedding convention hashicorp-nomad's own command
// package uses: one small struct carrying the shared Ui and logger, each
// command embeds it instead of wiring its own output plumbing.
package command

import (
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/cli"
)

// Meta is embedded by every polarc command for its Ui and logger.
type Meta struct {
	Ui  cli.Ui
	Log hclog.Logger
}
