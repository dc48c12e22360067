package job

import (
	"strconv"

	"github.com/caesium-cloud/hera/internal/center"
	"github.com/spf13/cobra"
)

var switchCmd = &cobra.Command{
	Use:     "switch <job-id>",
	Short:   "Enable a disabled job or disable an enabled one",
	Example: "hera job switch 7 -u bob",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return err
		}

		job, err := apiClient().Switch(cmd.Context(), uint(id))
		if err != nil {
			return err
		}

		state := "disabled"
		if job.Auto {
			state = "enabled"
		}
		return writeCmdOut(cmd, "job %d %s\n", job.ID, state)
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <job-id | group_<id>>",
	Short:   "Delete a job or an empty group",
	Example: "hera job delete group_12 -u bob",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := center.ParseTargetID(args[0]); err != nil {
			return err
		}
		if err := apiClient().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		return writeCmdOut(cmd, "deleted %s\n", args[0])
	},
}

var configCmd = &cobra.Command{
	Use:   "config <job-id | group_<id>>",
	Short: "Show the configuration inherited from the group tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := apiClient().Config(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		for _, key := range cfg.Keys() {
			if err := writeCmdOut(cmd, "%s=%s\n", key, cfg[key]); err != nil {
				return err
			}
		}
		return nil
	},
}
