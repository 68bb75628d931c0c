package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/fleet"
	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
	"github.com/Syracusa/ce-ef/pkg/routing"
	"github.com/Syracusa/ce-ef/pkg/session"
	"github.com/Syracusa/ce-ef/pkg/transports"
)

var errNoBackend = errors.New("backend not reachable")

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single command to the backend and exit",
}

var sendStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a simulation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, _ := cmd.Flags().GetInt("nodes")
		return oneShot(cmd, func(s *session.Session) error { return s.StartSimulation(n) })
	},
}

var sendStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running simulation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return oneShot(cmd, func(s *session.Session) error { return s.StopSimulation() })
	},
}

var sendTrafficCmd = &cobra.Command{
	Use:       "traffic new|delete|update|start|stop",
	Short:     "Manage a dummy-traffic configuration",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"new", "delete", "update", "start", "stop"},
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := trafficSpec(cmd)
		return oneShot(cmd, func(s *session.Session) error {
			switch args[0] {
			case "new":
				return s.NewDummyTrafficConf(spec.ConfID)
			case "delete":
				return s.DeleteDummyTrafficConf(spec.ConfID)
			case "update":
				return s.UpdateDummyTrafficConf(spec)
			case "start":
				return s.StartDummyTraffic(spec)
			default:
				return s.StopDummyTraffic(spec.ConfID)
			}
		})
	},
}

func init() {
	sendCmd.PersistentFlags().Duration("wait", 5*time.Second, "how long to wait for the backend connection")
	sendStartCmd.Flags().Int("nodes", 0, "number of simulated nodes")
	_ = sendStartCmd.MarkFlagRequired("nodes")

	f := sendTrafficCmd.Flags()
	f.Int("id", 0, "traffic configuration id")
	f.Int("src", 0, "source node index")
	f.Int("dst", 0, "destination node index")
	f.Int("size", 0, "packet size in bytes")
	f.Int("interval", 1000, "packet interval in milliseconds")
	_ = sendTrafficCmd.MarkFlagRequired("id")

	sendCmd.AddCommand(sendStartCmd, sendStopCmd, sendTrafficCmd)
	rootCmd.AddCommand(sendCmd)
}

func trafficSpec(cmd *cobra.Command) protocol.TrafficSpec {
	f := cmd.Flags()
	var s protocol.TrafficSpec
	s.ConfID, _ = f.GetInt("id")
	s.SourceNodeID, _ = f.GetInt("src")
	s.DestinationNodeID, _ = f.GetInt("dst")
	s.PacketSize, _ = f.GetInt("size")
	s.IntervalMs, _ = f.GetInt("interval")
	return s
}

// oneShot opens a session with an empty fleet, waits for the connection,
// runs fn once and tears the session down.
func oneShot(cmd *cobra.Command, fn func(*session.Session) error) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	wait, _ := cmd.Flags().GetDuration("wait")

	tr, err := transports.NewByKind(cfg.Backend.Kind)
	if err != nil {
		return err
	}
	c, err := codec.NewRegistry().ByName(cfg.Backend.Codec)
	if err != nil {
		return err
	}
	s := session.New(tr, c, fleet.NewRegistry(), routing.NewModel(), sessionOptions(cfg))

	ctx, cancel := context.WithTimeout(cmd.Context(), wait)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Close()

	if !waitConnected(ctx, s) {
		return fmt.Errorf("%w: %s within %s", errNoBackend, cfg.Backend.Address, wait)
	}
	if err := fn(s); err != nil {
		return err
	}
	zap.L().Info("command sent", zap.String("command", cmd.CommandPath()))
	return nil
}

func waitConnected(ctx context.Context, s *session.Session) bool {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for !s.Connected() {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
	}
	return true
}
