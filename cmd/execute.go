package cmd

import (
	"github.com/caesium-cloud/hera/cmd/job"
	"github.com/caesium-cloud/hera/cmd/peer"
	"github.com/caesium-cloud/hera/cmd/run"
	"github.com/caesium-cloud/hera/cmd/start"
	"github.com/spf13/cobra"
)

var cmds = []*cobra.Command{
	start.Cmd,
	peer.Cmd,
	job.Cmd,
	run.Cmd,
}

// Execute builds the command tree and executes commands.
func Execute() error {
	command := &cobra.Command{
		Use:          "hera",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	for _, c := range cmds {
		command.AddCommand(c)
	}

	return command.Execute()
}
