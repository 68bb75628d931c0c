// Command avsync-genframe writes one sample frame per message type, for
// replaying against a backend or checking another implementation's decoder.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Syracusa/ce-ef/pkg/protocol"
	"github.com/Syracusa/ce-ef/pkg/protocol/codec"
)

var rootCmd = &cobra.Command{
	Use:          "avsync-genframe",
	Short:        "Generate sample avsync frames",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         generate,
}

func init() {
	rootCmd.Flags().String("out", "testdata/frame", "output directory for binary frames")
	rootCmd.Flags().String("codec", "json", "payload codec: json|cbor|proto")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var samples = []struct {
	name    string
	typ     string
	payload any
}{
	{"status", protocol.TypeStatus, nil},
	{"start", protocol.TypeStart, protocol.Start{NodeNum: 3}},
	{"stop", protocol.TypeStop, nil},
	{"linkinfo", protocol.TypeLinkInfo, protocol.LinkInfo{Links: [][]float64{{888.57, 1777.13}, {888.57}, {}}}},
	{"new_traffic", protocol.TypeNewDummyTrafficConf, protocol.TrafficConf{ConfID: 1}},
	{"update_traffic", protocol.TypeUpdateDummyTrafficConf, protocol.TrafficSpec{ConfID: 1, SourceNodeID: 0, DestinationNodeID: 2, PacketSize: 512, IntervalMs: 100}},
	{"start_traffic", protocol.TypeStartDummyTraffic, protocol.TrafficSpec{ConfID: 1, SourceNodeID: 0, DestinationNodeID: 2, PacketSize: 512, IntervalMs: 100}},
	{"stop_traffic", protocol.TypeStopDummyTraffic, protocol.TrafficConf{ConfID: 1}},
	{"delete_traffic", protocol.TypeDeleteDummyTrafficConf, protocol.TrafficConf{ConfID: 1}},
	{"trx", protocol.TypeTRx, protocol.TRx{Node: 0, Tx: 5120, Rx: 12}},
	{"route", protocol.TypeRoute, protocol.Route{Node: 0, Target: 2, HopCount: 2, Path: []int{1}}},
}

func generate(cmd *cobra.Command, _ []string) error {
	outDir, _ := cmd.Flags().GetString("out")
	codecName, _ := cmd.Flags().GetString("codec")
	c, err := codec.NewRegistry().ByName(codecName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	var all []byte
	for _, s := range samples {
		m, err := protocol.NewMessage(s.typ, s.payload)
		if err != nil {
			return err
		}
		frame, err := protocol.Encode(c, m)
		if err != nil {
			return err
		}
		all = append(all, frame...)
		if err := writeOut(cmd, outDir, fmt.Sprintf("frame_%s_%s.bin", codecName, s.name), frame); err != nil {
			return err
		}
	}
	// every frame back to back, as a backend would see one session
	if err := writeOut(cmd, outDir, fmt.Sprintf("stream_%s.bin", codecName), all); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Generated frames in", outDir)
	return nil
}

func writeOut(cmd *cobra.Command, dir, name string, b []byte) error {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%-32s %5d bytes  head: %s\n", name, len(b), shortHex(b, 32))
	return nil
}

func shortHex(b []byte, n int) string {
	if len(b) == 0 {
		return ""
	}
	if n > len(b) {
		n = len(b)
	}
	enc := hex.EncodeToString(b[:n])
	var out []string
	for i := 0; i < len(enc); i += 4 {
		j := min(i+4, len(enc))
		out = append(out, enc[i:j])
	}
	s := strings.Join(out, " ")
	if len(b) > n {
		s += " ..."
	}
	return s
}
