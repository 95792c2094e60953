// ABOUTME: Root cobra command and shared flag wiring
// ABOUTME: Loads configuration once before any subcommand runs
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Resonate-Protocol/linkaudio/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RootOptions holds global state shared by all commands
type RootOptions struct {
	ConfigPath string

	v      *viper.Viper
	config Config
}

// flagKeys maps persistent flag names to config keys
var flagKeys = map[string]string{
	"backend":           "audio.backend",
	"sample-rate":       "audio.sample_rate",
	"frames-per-buffer": "audio.frames_per_buffer",
	"latency-ms":        "audio.latency_ms",
	"click-gain":        "audio.click_gain",
	"auto-tune":         "audio.auto_tune",
	"tempo":             "link.tempo",
	"quantum":           "link.quantum",
	"link":              "link.enabled",
	"paused":            "link.paused",
	"session":           "session.addr",
	"discover":          "session.discover",
	"session-mode":      "session.mode",
	"port":              "session.port",
	"name":              "session.name",
	"mdns":              "session.mdns",
	"log-file":          "log.file",
	"debug":             "log.debug",
	"no-tui":            "no_tui",
}

// NewRootCommand creates the root command. Running it without a
// subcommand plays.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "linkaudio",
		Short:   "Tempo-synced audio engine",
		Long:    "Plays a tone bank with a bar click, following a shared beat timeline when link is enabled.",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.Flags())
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default: linkaudio.yaml in ., ./config, ~/.config/linkaudio)")
	flags.String("backend", "malgo", "audio backend (malgo|oto|portaudio|mock)")
	flags.Int("sample-rate", 0, "requested sample rate")
	flags.Int("frames-per-buffer", 0, "requested callback size in frames")
	flags.Int("latency-ms", 0, "output latency compensation in ms (0 for none)")
	flags.Float64("click-gain", 0, "bar click level (0 or negative disables)")
	flags.Bool("auto-tune", false, "grow the buffer fill target when the device underflows")
	flags.Float64("tempo", 0, "initial tempo in BPM")
	flags.Float64("quantum", 0, "beats per bar")
	flags.Bool("link", true, "follow the shared session timeline")
	flags.Bool("paused", false, "create the stream without starting playback")
	flags.String("session", "", "session host address (joins as a peer)")
	flags.Bool("discover", false, "find a session host via mDNS")
	flags.String("session-mode", "", "session mode (local|peer|host)")
	flags.Int("port", 0, "session host port")
	flags.String("name", "", "friendly name (default: hostname-linkaudio)")
	flags.Bool("mdns", true, "advertise a hosted session via mDNS")
	flags.String("log-file", "", "log file path")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("no-tui", false, "disable TUI, use streaming logs instead")

	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewDevicesCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))

	return cmd
}

// load reads config and overlays flags the user set
func (o *RootOptions) load(flags *pflag.FlagSet) error {
	v, err := newViper(o.ConfigPath)
	if err != nil {
		return err
	}

	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return err
	}
	if cfg.Session.Name == "" {
		cfg.Session.Name = defaultName()
	}

	o.v = v
	o.config = cfg
	return nil
}

// setupLogging sends the standard logger to the log file, plus stdout
// when the TUI is not drawing. The returned closer releases the file.
func setupLogging(cfg LogConfig, console bool) (io.Closer, error) {
	f, err := os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	if console {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		log.SetOutput(f)
	}
	if cfg.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}
	return f, nil
}

func defaultName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-linkaudio", hostname)
}
