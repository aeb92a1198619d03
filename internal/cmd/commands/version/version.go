package version

import (
	"github.com/tallyware/tally/internal/cmd/base"
	verinfo "github.com/tallyware/tally/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: tally version

  This command prints the version of the tally binary.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(verinfo.Version)
	return 0
}
