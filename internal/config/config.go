// Package config loads seqplay settings from defaults, an optional config
// file and SEQPLAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agleyzer/seqplay/internal/sequence"
)

// TransitionNone disables the default transition.
const TransitionNone = "none"

// Config holds the runtime settings.
type Config struct {
	Port               int           `mapstructure:"port"`
	FPS                float64       `mapstructure:"fps"`
	Verbose            bool          `mapstructure:"verbose"`
	Transition         string        `mapstructure:"transition"`
	TransitionDuration time.Duration `mapstructure:"transition_duration"`
	MaxDuration        time.Duration `mapstructure:"max_duration"`
	Cluster            Cluster       `mapstructure:"cluster"`
}

// Cluster holds the replication settings.
type Cluster struct {
	Enabled  bool     `mapstructure:"enabled"`
	RaftID   string   `mapstructure:"raft_id"`
	RaftBind string   `mapstructure:"raft_bind"`
	Peers    []string `mapstructure:"peers"`
}

// Load reads the configuration. An empty path searches the working directory
// for seqplay.yaml and carries on without one if none exists; an explicit path
// must be readable.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("SEQPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("fps", 25)
	v.SetDefault("verbose", false)
	v.SetDefault("transition", sequence.KindCrossfade)
	v.SetDefault("transition_duration", "1s")
	v.SetDefault("max_duration", "0s")
	v.SetDefault("cluster.enabled", false)
	v.SetDefault("cluster.raft_id", "")
	v.SetDefault("cluster.raft_bind", "")
	v.SetDefault("cluster.peers", []string{})

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("seqplay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings for errors.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("fps must be in (0, 240], got %g", c.FPS)
	}

	switch c.Transition {
	case TransitionNone, sequence.KindCrossfade, sequence.KindWipe, sequence.KindDip:
	default:
		return fmt.Errorf("unknown transition %q", c.Transition)
	}

	if c.TransitionDuration < 0 {
		return fmt.Errorf("transition duration must not be negative, got %v", c.TransitionDuration)
	}

	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative, got %v", c.MaxDuration)
	}

	if c.Cluster.Enabled {
		if c.Cluster.RaftID == "" {
			return fmt.Errorf("raft-id is required in cluster mode")
		}
		if c.Cluster.RaftBind == "" {
			return fmt.Errorf("raft-bind is required in cluster mode")
		}
		if len(c.Cluster.Peers) == 0 {
			return fmt.Errorf("peers are required in cluster mode")
		}
	}

	return nil
}

// DefaultTransition returns the transition applied to imported playlists, or
// nil for hard cuts.
func (c *Config) DefaultTransition() *sequence.TransitionSpec {
	if c.Transition == TransitionNone || c.TransitionDuration <= 0 {
		return nil
	}
	return &sequence.TransitionSpec{Kind: c.Transition, Duration: c.TransitionDuration}
}
