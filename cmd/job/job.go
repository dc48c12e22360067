package job

import (
	"github.com/caesium-cloud/hera/pkg/client"
	"github.com/spf13/cobra"
)

var (
	server string
	user   string
)

// Cmd is the parent command for job and group operations.
var Cmd = &cobra.Command{
	Use:   "job",
	Short: "Manage jobs and groups through the API",
}

func init() {
	Cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "hera server base URL")
	Cmd.PersistentFlags().StringVarP(&user, "user", "u", "", "Identity to act as")

	Cmd.AddCommand(switchCmd, deleteCmd, configCmd)
}

func apiClient() *client.Client {
	return client.New(server, user)
}
