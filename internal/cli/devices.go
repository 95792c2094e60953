// ABOUTME: devices command probing audio backends
// ABOUTME: Prints one status line per backend
package cli

import (
	"fmt"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio/output"
	"github.com/spf13/cobra"
)

// NewDevicesCommand creates the devices command
func NewDevicesCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:          "devices",
		Short:        "Check which audio backends have an output device",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			backends := []string{rootOpts.config.Audio.Backend}
			if all {
				backends = output.Backends
			}

			out := cmd.OutOrStdout()
			var failed int
			for _, name := range backends {
				status, ok := probeBackend(name)
				if !ok {
					failed++
				}
				fmt.Fprintf(out, "%-10s %s\n", name, status)
			}

			if failed == len(backends) {
				return output.ErrUnavailable
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "probe every backend")
	return cmd
}

// probeBackend reports a one-line status for a backend
func probeBackend(name string) (string, bool) {
	dev, err := output.New(name)
	if err != nil {
		return err.Error(), false
	}
	defer func() { _ = dev.Close() }()

	if err := dev.Probe(); err != nil {
		return "unavailable: " + err.Error(), false
	}
	return "ok", true
}
