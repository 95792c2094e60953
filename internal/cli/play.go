// ABOUTME: play command running the engine with a TUI or streaming logs
// ABOUTME: Resolves the session, drives the engine and forwards TUI actions
package cli

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/linkaudio/internal/discovery"
	"github.com/Resonate-Protocol/linkaudio/internal/session"
	"github.com/Resonate-Protocol/linkaudio/internal/ui"
	"github.com/Resonate-Protocol/linkaudio/internal/version"
	"github.com/Resonate-Protocol/linkaudio/pkg/engine"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
	"github.com/Resonate-Protocol/linkaudio/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// NewPlayCommand creates the play command
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "play",
		Short:        "Play the tone bank in time with the session",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(rootOpts, cmd)
		},
	}
}

// sessionHandle is the resolved session plus what the TUI shows about it
type sessionHandle struct {
	session link.Session
	label   string
	peer    *link.Peer
	close   func()
}

// openSession builds the session named by cfg. Local mode returns a nil
// session so the engine keeps a private one.
func openSession(cfg Config) (*sessionHandle, error) {
	switch cfg.Session.Mode {
	case SessionHost:
		srv := session.New(session.Config{
			Port:       cfg.Session.Port,
			Name:       cfg.Session.Name,
			Tempo:      link.ClampTempo(cfg.Link.Tempo),
			EnableMDNS: cfg.Session.MDNS,
			Debug:      cfg.Log.Debug,
		})
		go func() {
			if err := srv.Start(); err != nil {
				log.Printf("Session host error: %v", err)
			}
		}()
		return &sessionHandle{
			session: srv,
			label:   fmt.Sprintf("Hosting %s on :%d", cfg.Session.Name, cfg.Session.Port),
			close:   srv.Stop,
		}, nil

	case SessionPeer:
		addr := cfg.Session.Addr
		if addr == "" {
			log.Printf("Starting session discovery...")
			info, err := discovery.Lookup(DiscoverTimeout)
			if err != nil {
				return nil, fmt.Errorf("no session host found after %v: %w", DiscoverTimeout, err)
			}
			addr = info.Addr()
			log.Printf("Discovered session host %s at %s", info.Name, addr)
		}

		peer, err := link.Join(link.PeerConfig{
			Addr: addr,
			Name: cfg.Session.Name,
			DeviceInfo: protocol.DeviceInfo{
				ProductName:     version.Product,
				Manufacturer:    version.Manufacturer,
				SoftwareVersion: version.Version,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to join session at %s: %w", addr, err)
		}
		return &sessionHandle{
			session: peer,
			label:   addr,
			peer:    peer,
			close: func() {
				if err := peer.Close(); err != nil {
					log.Printf("Error leaving session: %v", err)
				}
			},
		}, nil
	}

	return &sessionHandle{label: "Local session", close: func() {}}, nil
}

func runPlay(opts *RootOptions, cmd *cobra.Command) error {
	cfg := opts.config
	useTUI := !cfg.NoTUI

	logCloser, err := setupLogging(cfg.Log, !useTUI)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	if !useTUI {
		log.Printf("Starting %s: %s", version.String(), cfg.Session.Name)
	}

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	engineConfig := cfg.EngineConfig()
	engineConfig.Session = sess.session
	engineConfig.OnError = func(err error) {
		log.Printf("Stream error: %v", err)
	}

	host := engine.NewHost(engineConfig)
	if !host.Create() {
		return errors.New("failed to create engine")
	}
	defer host.Delete()

	host.CreateStream()
	if host.Engine().State() != engine.StateStreamReady {
		return fmt.Errorf("failed to create stream on %s backend", cfg.Audio.Backend)
	}
	host.EnableLink(cfg.Link.Enabled)
	host.Play(!cfg.Link.Paused)

	log.Printf("Engine running: %s via %s", host.Engine().Format(), host.Engine().Stats().Backend)

	var tuiProg *tea.Program
	var control *ui.Control
	if useTUI {
		control = ui.NewControl()
		tuiProg, err = ui.Run(control)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		defer tuiProg.Quit()
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	remote := sess.peer != nil
	updateTUI(ui.StatusMsg{
		Format:  host.Engine().Format().String(),
		Session: sess.label,
		Remote:  &remote,
	})

	stop := make(chan struct{})
	defer close(stop)
	go statsUpdateLoop(host.Engine(), sess.peer, updateTUI, stop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if control == nil {
		<-sigChan
		log.Printf("Shutdown signal received")
		return nil
	}

	for {
		select {
		case action := <-control.Actions:
			if applyAction(host, action) {
				log.Printf("Received quit signal from TUI")
				return nil
			}
		case <-sigChan:
			log.Printf("Shutdown signal received")
			return nil
		}
	}
}

// applyAction forwards a TUI action to the engine. Reports whether to quit.
func applyAction(host *engine.Host, action ui.Action) bool {
	switch action.Kind {
	case ui.ActionPlay:
		log.Printf("Play: %v", action.On)
		host.Play(action.On)
	case ui.ActionLink:
		log.Printf("Link: %v", action.On)
		host.EnableLink(action.On)
	case ui.ActionTempo:
		bpm := link.ClampTempo(action.Tempo)
		log.Printf("Tempo change: %.2f BPM", bpm)
		host.Engine().SetTempo(bpm)
	case ui.ActionQuit:
		return true
	}
	return false
}

// statsUpdateLoop periodically updates the TUI with engine and sync state
func statsUpdateLoop(e *engine.Engine, peer *link.Peer, updateTUI func(ui.StatusMsg), stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := e.Stats()
			msg := ui.StatusMsg{Stats: &stats}

			if peer != nil {
				connected := peer.Connected()
				sync := peer.SyncStats()
				msg.Connected = &connected
				msg.SyncOffset = sync.Offset
				msg.SyncRTT = sync.RTT
				msg.SyncQuality = sync.Quality
			}

			updateTUI(msg)
		}
	}
}
