package run

import (
	"fmt"

	"github.com/caesium-cloud/hera/internal/dispatch"
	"github.com/spf13/cobra"
)

var actionID string

var executeCmd = &cobra.Command{
	Use:   "execute <job-id>",
	Short: "Execute the latest action of a job, or --action",
	Example: `hera run execute 7 -u bob
hera run execute --action 2026101900000007 -u bob`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			res *dispatch.Result
			err error
		)

		switch {
		case actionID != "":
			res, err = apiClient().Execute(cmd.Context(), actionID)
		case len(args) == 1:
			jobID, perr := parseID(args[0])
			if perr != nil {
				return perr
			}
			res, err = apiClient().ExecuteLatest(cmd.Context(), jobID)
		default:
			return fmt.Errorf("a job id or --action is required")
		}
		if err != nil {
			return err
		}

		printResult(cmd, res)
		return nil
	},
}

var cancelJobID uint

var cancelCmd = &cobra.Command{
	Use:   "cancel <history-id>",
	Short: "Cancel a running execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		historyID, err := parseID(args[0])
		if err != nil {
			return err
		}

		res, err := apiClient().Cancel(cmd.Context(), historyID, cancelJobID)
		if err != nil {
			return err
		}

		printResult(cmd, res)
		return nil
	},
}

var generateAll bool

var generateCmd = &cobra.Command{
	Use:   "generate [job-id]",
	Short: "Regenerate the action versions of a job, or of every job with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			res *dispatch.Result
			err error
		)

		switch {
		case generateAll:
			res, err = apiClient().GenerateAll(cmd.Context())
		case len(args) == 1:
			jobID, perr := parseID(args[0])
			if perr != nil {
				return perr
			}
			res, err = apiClient().Generate(cmd.Context(), jobID)
		default:
			return fmt.Errorf("a job id or --all is required")
		}
		if err != nil {
			return err
		}

		printResult(cmd, res)
		return nil
	},
}

func init() {
	executeCmd.Flags().StringVar(&actionID, "action", "", "Action id to execute instead of the latest")

	cancelCmd.Flags().UintVar(&cancelJobID, "job-id", 0, "Job owning the execution (required)")
	cancelCmd.MarkFlagRequired("job-id") //nolint:errcheck

	generateCmd.Flags().BoolVar(&generateAll, "all", false, "Regenerate every job (admin only)")

	Cmd.AddCommand(executeCmd, cancelCmd, generateCmd)
}
