package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/tallyware/tally/internal/cmd/base"
	"github.com/tallyware/tally/internal/cmd/commands/export"
	"github.com/tallyware/tally/internal/cmd/commands/pipelines"
	"github.com/tallyware/tally/internal/cmd/commands/version"
)

// Commands is the mapping of all available CLI commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := base.NewCommand(log, ui)

	Commands = map[string]cli.CommandFactory{
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
		"pipeline": func() (cli.Command, error) {
			return &pipelines.Command{Command: b}, nil
		},
		"pipeline run": func() (cli.Command, error) {
			return &pipelines.RunCommand{Command: b}, nil
		},
		"pipeline status": func() (cli.Command, error) {
			return &pipelines.StatusCommand{Command: b}, nil
		},
		"pipeline cancel": func() (cli.Command, error) {
			return &pipelines.CancelCommand{Command: b}, nil
		},
		"export": func() (cli.Command, error) {
			return &export.Command{Command: b}, nil
		},
	}
}
