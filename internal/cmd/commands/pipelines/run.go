package pipelines

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/cli"

	"github.com/tallyware/tally/internal/cmd/base"
	"github.com/tallyware/tally/internal/config"
	"github.com/tallyware/tally/pkg/pipeline"
)

type RunCommand struct {
	*base.Command

	flagConfig   string
	flagStage    string
	flagCalendar string
	flagPeriod   string
	flagMode     string
	flagGroups   string
	flagWait     bool
	flagInterval time.Duration
}

func (c *RunCommand) Synopsis() string {
	return "Submit a pipeline run for a calendar period"
}

func (c *RunCommand) Help() string {
	return `Usage: tally pipeline run

  This command submits one processing stage (classify, allocate, pay, ...)
  against a calendar period and prints the run sequence. With -wait it polls
  until the run reaches a terminal state.` +
		c.Flags().Help()
}

func (c *RunCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("run", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "(Required) Path to tally config file",
	)
	f.StringVar(
		&c.flagStage, "stage", "",
		fmt.Sprintf("(Required) Stage to run, one of: %s.",
			strings.Join(pipeline.StageNames(), ", ")),
	)
	f.StringVar(
		&c.flagCalendar, "calendar", "", "(Required) Calendar sequence.",
	)
	f.StringVar(
		&c.flagPeriod, "period", "", "(Required) Period sequence.",
	)
	f.StringVar(
		&c.flagMode, "mode", "full",
		"Run mode: full, incremental, or positions.",
	)
	f.StringVar(
		&c.flagGroups, "position-groups", "",
		"Comma-separated position groups (positions mode only).",
	)
	f.BoolVar(
		&c.flagWait, "wait", false,
		"Poll until the run reaches a terminal state.",
	)
	f.DurationVar(
		&c.flagInterval, "interval", 10*time.Second,
		"Polling interval used with -wait.",
	)

	return f
}

func (c *RunCommand) Run(args []string) int {
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

	stage, ok := pipeline.StageByName(c.flagStage)
	if !ok {
		ui.Error(fmt.Sprintf("unknown stage %q; expected one of: %s",
			c.flagStage, strings.Join(pipeline.StageNames(), ", ")))
		return 1
	}

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

	job := &pipeline.RunJob{
		Stage:       stage,
		CalendarSeq: c.flagCalendar,
		PeriodSeq:   c.flagPeriod,
		RunMode:     pipeline.RunMode(c.flagMode),
	}
	if c.flagGroups != "" {
		job.PositionGroups = strings.Split(c.flagGroups, ",")
	}

	ctx := context.Background()
	handle, err := cl.RunPipeline(ctx, job)
	if err != nil {
		ui.Error(fmt.Sprintf("error submitting pipeline run: %v", err))
		return 1
	}
	ui.Info(fmt.Sprintf("Submitted %s run: %s", c.flagStage, handle.RunSeq))

	if !c.flagWait {
		return 0
	}
	return waitForRun(ctx, ui, cl, handle.RunSeq, c.flagInterval)
}

// waitForRun polls the run until it reaches a terminal state, reporting
// progress along the way.
func waitForRun(ctx context.Context, ui cli.Ui, cl runReader, runSeq string, interval time.Duration) int {
	for {
		run, err := cl.GetRun(ctx, runSeq)
		if err != nil {
			ui.Error(fmt.Sprintf("error reading run %s: %v", runSeq, err))
			return 1
		}
		if run.Terminal() {
			if run.Failed() {
				ui.Error(fmt.Sprintf("Run %s failed: %s (%d errors)",
					runSeq, run.Message, run.NumErrors))
				return 1
			}
			ui.Info(fmt.Sprintf("Run %s finished: %s", runSeq, run.Status))
			return 0
		}
		ui.Info(fmt.Sprintf("Run %s: %s %s", runSeq, run.State, run.RunProgress))

		select {
		case <-ctx.Done():
			ui.Error("interrupted while waiting for run")
			return 1
		case <-time.After(interval):
		}
	}
}

// runReader is the client subset the wait loop needs.
type runReader interface {
	GetRun(ctx context.Context, runSeq string) (*pipeline.Run, error)
}
