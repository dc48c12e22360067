package peer

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	internalpeer "github.com/caesium-cloud/hera/internal/peer"
	"github.com/caesium-cloud/hera/internal/protocol"
	"github.com/caesium-cloud/hera/pkg/env"
	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	usage   = "peer"
	short   = "Run a stand-in worker peer"
	long    = "This command listens for a schedule center and answers its commands from a reply rules file, for local development and testing"
	example = "HERA_PEERRULES=rules.yaml hera peer"
)

var (
	// Cmd is the peer command.
	Cmd = &cobra.Command{
		Use:     usage,
		Short:   short,
		Long:    long,
		Example: example,
		RunE:    run,
	}
)

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vars := env.Variables()

	rules, err := internalpeer.LoadRules(vars.PeerRules)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", vars.PeerListen)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", vars.PeerListen)
	}

	server := protocol.NewServer(internalpeer.NewHandler(rules), vars.MaxFrameSize)
	log.Info("peer listening", "address", ln.Addr().String(), "rules", vars.PeerRules)

	err = server.Serve(ctx, ln)
	log.Info("peer stopped", "heartbeats", server.Heartbeats())
	return err
}
