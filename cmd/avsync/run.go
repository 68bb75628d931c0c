package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the backend and keep the routing state in sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		embedded, _ := cmd.Flags().GetBool("embedded-backend")

		zap.L().Info("avsync started", zap.String("app", cfg.AppName))
		zap.L().Info("effective configuration", zap.Any("config", cfg))

		a, err := newApp(cfg)
		if err != nil {
			zap.L().Error("failed to build client", zap.Error(err))
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.run(ctx, embedded)
	},
}

func init() {
	runCmd.Flags().Bool("embedded-backend", false, "serve the mock backend in-process on the configured transport and address")
	rootCmd.AddCommand(runCmd)
}
