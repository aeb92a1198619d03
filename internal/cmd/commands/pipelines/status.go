package pipelines

import (
	"context"
	"flag"
	"fmt"

	"github.com/tallyware/tally/internal/cmd/base"
	"github.com/tallyware/tally/internal/config"
)

type StatusCommand struct {
	*base.Command

	flagConfig string
}

func (c *StatusCommand) Synopsis() string {
	return "Show the state of a pipeline run"
}

func (c *StatusCommand) Help() string {
	return `Usage: tally pipeline status <run-seq>

  This command prints the current state, status, and progress of a
  pipeline run.` +
		c.Flags().Help()
}

func (c *StatusCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("status", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "(Required) Path to tally config file",
	)

	return f
}

func (c *StatusCommand) Run(args []string) int {
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

	run, err := cl.GetRun(context.Background(), runSeq)
	if err != nil {
		ui.Error(fmt.Sprintf("error reading run %s: %v", runSeq, err))
		return 1
	}

	ui.Output(fmt.Sprintf("Run:       %s", run.RunSeq))
	ui.Output(fmt.Sprintf("Command:   %s", run.Command))
	ui.Output(fmt.Sprintf("State:     %s", run.State))
	ui.Output(fmt.Sprintf("Status:    %s", run.Status))
	if run.RunProgress != "" {
		ui.Output(fmt.Sprintf("Progress:  %s", run.RunProgress))
	}
	if run.Message != "" {
		ui.Output(fmt.Sprintf("Message:   %s", run.Message))
	}
	if run.NumErrors > 0 || run.NumWarnings > 0 {
		ui.Output(fmt.Sprintf("Errors:    %d", run.NumErrors))
		ui.Output(fmt.Sprintf("Warnings:  %d", run.NumWarnings))
	}

	if run.Terminal() && run.Failed() {
		return 1
	}
	return 0
}
