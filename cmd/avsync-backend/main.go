// Command avsync-backend is a mock of the network simulation backend. It
// echoes heartbeats and, after Start, streams TRx samples and routes planned
// over the links the client reports.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/config"
	"github.com/Syracusa/ce-ef/pkg/observability"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
	"github.com/Syracusa/ce-ef/pkg/simulator"
	"github.com/Syracusa/ce-ef/pkg/transports"
)

var rootCmd = &cobra.Command{
	Use:          "avsync-backend",
	Short:        "Mock network simulation backend for avsync",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         serve,
}

func init() {
	f := rootCmd.Flags()
	f.String("kind", "tcp", "transport kind: tcp|winpipe")
	f.String("listen", "127.0.0.1:12123", "address to listen on")
	f.String("codec", "json", "payload codec: json|cbor|proto")
	f.Float64("range", 3000, "radio range in meters")
	f.Duration("tick", 0, "interval between TRx and route updates (default 1s)")
	f.String("log-level", "info", "log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func serve(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	kind, _ := f.GetString("kind")
	addr, _ := f.GetString("listen")
	codecName, _ := f.GetString("codec")
	rangeM, _ := f.GetFloat64("range")
	tick, _ := f.GetDuration("tick")
	level, _ := f.GetString("log-level")

	lc := config.Default().Log
	lc.Level = level
	logger, err := observability.SetupLogger(lc)
	if err != nil {
		return err
	}
	atexit.Register(func() { _ = logger.Sync() })

	tr, err := transports.NewByKind(kind)
	if err != nil {
		return err
	}
	c, err := codec.NewRegistry().ByName(codecName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	l, err := tr.Listen(ctx, addr)
	if err != nil {
		return err
	}
	srv := simulator.New(simulator.Options{Codec: c, RadioRange: rangeM, TickInterval: tick})
	if err := srv.Serve(ctx, l); err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Error("backend stopped", zap.Error(err))
		return err
	}
	return nil
}
