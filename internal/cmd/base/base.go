package base

import (
	"bytes"
	"flag"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command carries what every subcommand needs.
type Command struct {
	// UI is the command line UI for input and output.
	UI cli.Ui

	// Log is the logger to use.
	Log hclog.Logger
}

// NewCommand returns a base command.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		UI:  ui,
		Log: log,
	}
}

// FlagSet wraps a standard flag set so commands can render their flags
// into help text.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet returns a flag set for a command.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: f}
}

// Help renders the defined flags as an indented block for appending to a
// command's help output.
func (f *FlagSet) Help() string {
	var buf bytes.Buffer
	buf.WriteString("\n\nOptions:\n")
	f.VisitAll(func(fl *flag.Flag) {
		buf.WriteString("  -" + fl.Name)
		if fl.DefValue != "" && fl.DefValue != "false" {
			buf.WriteString(" (default: " + fl.DefValue + ")")
		}
		buf.WriteString("\n      " + fl.Usage + "\n")
	})
	return buf.String()
}
