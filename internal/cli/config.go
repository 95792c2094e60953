// ABOUTME: CLI configuration loading via viper
// ABOUTME: Merges defaults, linkaudio.yaml, LINKAUDIO_* env vars and flags
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/Resonate-Protocol/linkaudio/pkg/engine"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
	"github.com/spf13/viper"
)

// Session modes
const (
	SessionLocal = "local"
	SessionPeer  = "peer"
	SessionHost  = "host"
)

// Config is the effective CLI configuration
type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Link    LinkConfig    `mapstructure:"link" yaml:"link"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	NoTUI   bool          `mapstructure:"no_tui" yaml:"no_tui"`
}

// AudioConfig selects the device and stream shape
type AudioConfig struct {
	Backend             string  `mapstructure:"backend" yaml:"backend"`
	SampleRate          int     `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels            int     `mapstructure:"channels" yaml:"channels"`
	FramesPerBuffer     int     `mapstructure:"frames_per_buffer" yaml:"frames_per_buffer"`
	RingFrames          int     `mapstructure:"ring_frames" yaml:"ring_frames"`
	LatencyMs           int     `mapstructure:"latency_ms" yaml:"latency_ms"`
	ClickGain           float64 `mapstructure:"click_gain" yaml:"click_gain"`
	RestartOnDisconnect bool    `mapstructure:"restart_on_disconnect" yaml:"restart_on_disconnect"`
	AutoTune            bool    `mapstructure:"auto_tune" yaml:"auto_tune"`
}

// LinkConfig sets the initial timeline and flags
type LinkConfig struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	Tempo   float64 `mapstructure:"tempo" yaml:"tempo"`
	Quantum float64 `mapstructure:"quantum" yaml:"quantum"`
	Paused  bool    `mapstructure:"paused" yaml:"paused"`
}

// SessionConfig chooses where the shared timeline lives
type SessionConfig struct {
	Mode     string `mapstructure:"mode" yaml:"mode"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Discover bool   `mapstructure:"discover" yaml:"discover"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Name     string `mapstructure:"name" yaml:"name"`
	MDNS     bool   `mapstructure:"mdns" yaml:"mdns"`
}

// LogConfig controls log output
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Debug bool   `mapstructure:"debug" yaml:"debug"`
}

// DiscoverTimeout bounds the mDNS lookup for --discover
const DiscoverTimeout = 5 * time.Second

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.backend", "malgo")
	v.SetDefault("audio.sample_rate", audio.DefaultSampleRate)
	v.SetDefault("audio.channels", audio.DefaultChannels)
	v.SetDefault("audio.frames_per_buffer", audio.DefaultFramesPerBuffer)
	v.SetDefault("audio.ring_frames", 0)
	v.SetDefault("audio.latency_ms", int(engine.DefaultLatency/time.Millisecond))
	v.SetDefault("audio.click_gain", engine.DefaultClickGain)
	v.SetDefault("audio.restart_on_disconnect", true)
	v.SetDefault("audio.auto_tune", false)

	v.SetDefault("link.enabled", true)
	v.SetDefault("link.tempo", link.DefaultTempo)
	v.SetDefault("link.quantum", link.DefaultQuantum)
	v.SetDefault("link.paused", false)

	v.SetDefault("session.mode", SessionLocal)
	v.SetDefault("session.port", 8928)
	v.SetDefault("session.mdns", true)

	v.SetDefault("log.file", "linkaudio.log")
	v.SetDefault("no_tui", false)
}

// newViper creates a viper instance with defaults and env binding.
// configPath overrides the search for linkaudio.yaml.
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("linkaudio")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "linkaudio"))
		}
	}

	v.SetEnvPrefix("LINKAUDIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

// decode unmarshals and validates the effective configuration
func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Session.Addr != "" || cfg.Session.Discover {
		if cfg.Session.Mode == SessionLocal {
			cfg.Session.Mode = SessionPeer
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the engine cannot run
func (c Config) Validate() error {
	switch c.Session.Mode {
	case SessionLocal, SessionHost:
	case SessionPeer:
		if c.Session.Addr == "" && !c.Session.Discover {
			return errors.New("peer session needs session.addr or session.discover")
		}
	default:
		return fmt.Errorf("unknown session mode %q", c.Session.Mode)
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 || c.Audio.FramesPerBuffer <= 0 {
		return fmt.Errorf("invalid audio format: %d Hz, %d ch, %d frames",
			c.Audio.SampleRate, c.Audio.Channels, c.Audio.FramesPerBuffer)
	}
	if c.Link.Quantum <= 0 {
		return fmt.Errorf("quantum must be positive, got %v", c.Link.Quantum)
	}
	return nil
}

// EngineConfig maps the CLI configuration onto an engine.Config.
// Session and error hooks are filled in by the caller.
func (c Config) EngineConfig() engine.Config {
	// A configured zero means "none"; the engine reads zero as "default"
	latency := time.Duration(c.Audio.LatencyMs) * time.Millisecond
	if latency == 0 {
		latency = -1
	}
	gain := float32(c.Audio.ClickGain)
	if gain == 0 {
		gain = -1
	}

	return engine.Config{
		Backend: c.Audio.Backend,
		Format: audio.Format{
			SampleRate: c.Audio.SampleRate,
			Channels:   c.Audio.Channels,
		},
		FramesPerBuffer:     c.Audio.FramesPerBuffer,
		RingFrames:          c.Audio.RingFrames,
		Latency:             latency,
		Tempo:               link.ClampTempo(c.Link.Tempo),
		Quantum:             c.Link.Quantum,
		ClickGain:           gain,
		RestartOnDisconnect: c.Audio.RestartOnDisconnect,
		AutoTune:            c.Audio.AutoTune,
	}
}
