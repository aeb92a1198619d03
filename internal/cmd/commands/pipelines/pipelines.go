package pipelines

import (
	"github.com/mitchellh/cli"

	"github.com/tallyware/tally/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Submit and track pipeline jobs"
}

func (c *Command) Help() string {
	return `Usage: tally pipeline <subcommand> [options] [args]

  This command groups subcommands for submitting, watching, and cancelling
  pipeline runs.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}
