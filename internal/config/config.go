// Package config loads settings from .env, LEAGUE_PRESENCE_* environment
// variables and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/DoyleJ11/lol-presence/internal/liveclient"
	"github.com/DoyleJ11/lol-presence/internal/presence"
)

const EnvPrefix = "LEAGUE_PRESENCE_"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	ClientID   string `env:"CLIENT_ID"`
	NoStats    bool   `env:"NO_STATS"`
	NoRank     bool   `env:"NO_RANK"`
	ShowEmojis bool   `env:"SHOW_EMOJIS"`

	// ExtraProcesses are additional Discord process names to look for.
	// They are recorded and logged only.
	ExtraProcesses []string `env:"ADD_PROCESS" envSeparator:","`

	// Seconds; negative waits forever.
	WaitForLeague  int `env:"WAIT_FOR_LEAGUE" envDefault:"-1"`
	WaitForDiscord int `env:"WAIT_FOR_DISCORD" envDefault:"-1"`

	LockfilePath      string        `env:"LOCKFILE"`
	LiveClientURL     string        `env:"LIVE_CLIENT_URL"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"60s"`
	GracePeriod       time.Duration `env:"GRACE_PERIOD" envDefault:"10s"`

	StatusAddr string `env:"STATUS_ADDR"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env if present, then the environment, then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	flags := NewFlagSet(&cfg)
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.LiveClientURL == "" {
		cfg.LiveClientURL = liveclient.DefaultBaseURL
	}
	return cfg, cfg.Validate()
}

// NewFlagSet binds every flag to cfg, using its current values as defaults.
func NewFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("league-presence", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "Discord application id")
	fs.BoolVar(&cfg.NoStats, "no-stats", cfg.NoStats, "hide K/D/A, CS and level in game")
	fs.BoolVar(&cfg.NoRank, "no-rank", cfg.NoRank, "hide the rank badge")
	fs.BoolVar(&cfg.ShowEmojis, "show-emojis", cfg.ShowEmojis, "prefix the state with a chat availability emoji")
	fs.BoolVar(&cfg.ShowEmojis, "emojis", cfg.ShowEmojis, "alias for --show-emojis")
	fs.StringSliceVar(&cfg.ExtraProcesses, "add-process", cfg.ExtraProcesses, "extra Discord process name to look for (repeatable)")
	fs.IntVar(&cfg.WaitForLeague, "wait-for-league", cfg.WaitForLeague, "seconds to wait for the League client, -1 forever")
	fs.IntVar(&cfg.WaitForDiscord, "wait-for-discord", cfg.WaitForDiscord, "seconds to wait for Discord, -1 forever")
	fs.StringVar(&cfg.LockfilePath, "lockfile", cfg.LockfilePath, "lockfile path (default: per OS install location)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "in-game stats poll interval")
	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "presence republish interval")
	fs.DurationVar(&cfg.GracePeriod, "grace-period", cfg.GracePeriod, "how long a lost client keeps the presence")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "serve /healthz and /presence on this address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	return fs
}

func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: client id is required (--client-id or %sCLIENT_ID)", ErrInvalid, EnvPrefix)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalid)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat interval must be positive", ErrInvalid)
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("%w: grace period must be positive", ErrInvalid)
	}
	return nil
}

func (c Config) Options() presence.Options {
	return presence.Options{NoStats: c.NoStats, NoRank: c.NoRank, ShowEmojis: c.ShowEmojis}
}

func (c Config) WaitForLeagueDuration() *time.Duration {
	return seconds(c.WaitForLeague)
}

func (c Config) WaitForDiscordDuration() *time.Duration {
	return seconds(c.WaitForDiscord)
}

// LockfilePaths is nil when the per OS defaults should be used.
func (c Config) LockfilePaths() []string {
	if c.LockfilePath == "" {
		return nil
	}
	return []string{c.LockfilePath}
}

func seconds(n int) *time.Duration {
	if n < 0 {
		return nil
	}
	d := time.Duration(n) * time.Second
	return &d
}
