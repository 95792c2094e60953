// ABOUTME: session command hosting a timeline without audio
// ABOUTME: Serves peers until interrupted
package cli

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/linkaudio/internal/session"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
	"github.com/spf13/cobra"
)

// NewSessionCommand creates the session command, which hosts a timeline
// without opening an audio device
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "session",
		Short:        "Host a shared session timeline",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.config

			logCloser, err := setupLogging(cfg.Log, true)
			if err != nil {
				return err
			}
			defer func() { _ = logCloser.Close() }()

			srv := session.New(session.Config{
				Port:       cfg.Session.Port,
				Name:       cfg.Session.Name,
				Tempo:      link.ClampTempo(cfg.Link.Tempo),
				EnableMDNS: cfg.Session.MDNS,
				Debug:      cfg.Log.Debug,
			})

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				log.Printf("Shutdown signal received")
				srv.Stop()
			}()

			log.Printf("Press Ctrl-C to stop")
			return srv.Start()
		},
	}
}
