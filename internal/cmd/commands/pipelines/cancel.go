package pipelines

import (
	"context"
	"flag"
	"fmt"

	"github.com/tallyware/tally/internal/cmd/base"
	"github.com/tallyware/tally/internal/config"
)

type CancelCommand struct {
	*base.Command

	flagConfig string
}

func (c *CancelCommand) Synopsis() string {
	return "Cancel a running pipeline"
}

func (c *CancelCommand) Help() string {
	return `Usage: tally pipeline cancel <run-seq>

  This command requests cancellation of a running pipeline. A run that is
  already finishing is reported as cancelled.` +
		c.Flags().Help()
}

func (c *CancelCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("cancel", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "(Required) Path to tally config file",
	)

	return f
}

func (c *CancelCommand) Run(args []string) int {
	ui := c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagConfig == "" {
		ui.Error("config flag is required")
		return 1
	}
	rest := flags.Args()
	if len(rest) != 1 {
		ui.Error("exactly one run sequence argument is required")
		return 1
	}
	runSeq := rest[0]

	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}
	cl, err := cfg.NewClient(c.Log)
	if err != nil {
		ui.Error(fmt.Sprintf("error creating client: %v", err))
		return 1
	}

	if err := cl.CancelPipeline(context.Background(), runSeq); err != nil {
		ui.Error(fmt.Sprintf("error cancelling run %s: %v", runSeq, err))
		return 1
	}
	ui.Info(fmt.Sprintf("Cancelled run %s", runSeq))
	return 0
}
