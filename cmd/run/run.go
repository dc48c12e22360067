package run

import (
	"strconv"

	"github.com/caesium-cloud/hera/internal/dispatch"
	"github.com/caesium-cloud/hera/pkg/client"
	"github.com/spf13/cobra"
)

var (
	server string
	user   string
)

// Cmd is the parent command for the commands relayed to the worker.
var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Execute, cancel and version jobs on the worker",
}

func init() {
	Cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "hera server base URL")
	Cmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Identity to act as")
}

func apiClient() *client.Client {
	return client.New(server, user)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}

func printResult(cmd *cobra.Command, res *dispatch.Result) {
	switch {
	case !res.Completed:
		cmd.Printf("pending: %s\n", res.Message)
	case res.Success:
		cmd.Printf("ok: %s\n", res.Message)
	default:
		cmd.Printf("failed: %s\n", res.Message)
	}
}
