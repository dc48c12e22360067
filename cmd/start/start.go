package start

import (
	"context"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/caesium-cloud/hera/api"
	"github.com/caesium-cloud/hera/internal/auth"
	"github.com/caesium-cloud/hera/internal/center"
	"github.com/caesium-cloud/hera/internal/dispatch"
	"github.com/caesium-cloud/hera/internal/event"
	"github.com/caesium-cloud/hera/internal/heartbeat"
	"github.com/caesium-cloud/hera/internal/link"
	"github.com/caesium-cloud/hera/internal/metrics"
	"github.com/caesium-cloud/hera/internal/repository"
	"github.com/caesium-cloud/hera/internal/worker"
	"github.com/caesium-cloud/hera/pkg/db"
	"github.com/caesium-cloud/hera/pkg/env"
	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	usage   = "start"
	short   = "Start a hera schedule center"
	long    = "This command starts a hera schedule center: the API, the worker peer link and its heartbeat"
	example = "hera start"
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"launch", "boot", "up", "run", "begin"},
		Example:    example,
		RunE:       start,
	}
)

func start(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go dumpOnSignal(ctx)

	vars := env.Variables()

	gdb, err := db.Connection()
	if err != nil {
		return err
	}

	log.Info("migrating database")
	if err := db.Migrate(gdb); err != nil {
		return err
	}

	metrics.Register()

	store := repository.NewStore(gdb)
	gate := auth.NewGate(vars.Admin, store)

	client := link.NewClient(link.Config{
		ConnectTimeout: vars.ConnectTimeout,
		MaxFrameSize:   vars.MaxFrameSize,
	})
	defer client.Close()

	pool := worker.NewPool(vars.PushWorkers, vars.PushQueueSize, vars.PushIdleTimeout)
	defer func() {
		pool.Close()
		pool.Wait()
	}()

	bridge := dispatch.New(client.Slot(), gate, store, pool, vars.RequestTimeout)
	sc := center.New(store, gate, bridge, event.New(), center.Config{
		DefaultHostGroup: vars.DefaultHostGroup,
	})
	monitor := heartbeat.New(client.Slot(), vars.HeartbeatInterval)

	server := api.New(api.Config{
		Port:      vars.Port,
		Center:    sc,
		Slot:      client.Slot(),
		Heartbeat: monitor,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("connecting to worker peer", "host", vars.PeerHost, "port", vars.PeerPort)
		return client.Keep(gctx, vars.PeerHost, vars.PeerPort, vars.HeartbeatInterval)
	})

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	g.Go(func() error {
		log.Info("spinning up api")
		return server.Start(gctx)
	})

	err = g.Wait()
	log.Info("schedule center stopped")
	return err
}

func dumpOnSignal(ctx context.Context) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1)
	defer signal.Stop(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			log.Info("dumping stack traces due to SIGUSR1 signal")
			if profile := pprof.Lookup("goroutine"); profile != nil {
				if err := profile.WriteTo(os.Stdout, 1); err != nil {
					log.Error("write goroutine profile", "error", err)
				}
			}
		}
	}
}
