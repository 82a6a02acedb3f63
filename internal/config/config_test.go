package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agleyzer/seqplay/internal/sequence"
)

func validConfig() *Config {
	return &Config{
		Port:               8080,
		FPS:                25,
		Transition:         sequence.KindCrossfade,
		TransitionDuration: time.Second,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 || cfg.FPS != 25 {
		t.Errorf("port %d fps %v, want 8080 and 25", cfg.Port, cfg.FPS)
	}
	if cfg.Transition != sequence.KindCrossfade || cfg.TransitionDuration != time.Second {
		t.Errorf("transition %q %v, want crossfade 1s", cfg.Transition, cfg.TransitionDuration)
	}
	if cfg.Cluster.Enabled {
		t.Error("cluster mode should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seqplay.yaml")
	content := `port: 9090
fps: 30
transition: wipe
transition_duration: 500ms
cluster:
  enabled: true
  raft_id: node1
  raft_bind: 127.0.0.1:7000
  peers:
    - 127.0.0.1:7000
    - 127.0.0.1:7001
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 || cfg.FPS != 30 {
		t.Errorf("port %d fps %v, want 9090 and 30", cfg.Port, cfg.FPS)
	}
	if cfg.Transition != sequence.KindWipe || cfg.TransitionDuration != 500*time.Millisecond {
		t.Errorf("transition %q %v, want wipe 500ms", cfg.Transition, cfg.TransitionDuration)
	}
	if !cfg.Cluster.Enabled || cfg.Cluster.RaftID != "node1" || len(cfg.Cluster.Peers) != 2 {
		t.Errorf("cluster = %+v", cfg.Cluster)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SEQPLAY_PORT", "7070")
	t.Setenv("SEQPLAY_TRANSITION", "none")
	t.Setenv("SEQPLAY_CLUSTER_RAFT_ID", "node2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.Transition != TransitionNone {
		t.Errorf("Transition = %q, want none", cfg.Transition)
	}
	if cfg.Cluster.RaftID != "node2" {
		t.Errorf("RaftID = %q, want node2", cfg.Cluster.RaftID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "port zero", modify: func(c *Config) { c.Port = 0 }, wantErr: "port"},
		{name: "port too large", modify: func(c *Config) { c.Port = 70000 }, wantErr: "port"},
		{name: "zero fps", modify: func(c *Config) { c.FPS = 0 }, wantErr: "fps"},
		{name: "unknown transition", modify: func(c *Config) { c.Transition = "spin" }, wantErr: "unknown transition"},
		{name: "no transition", modify: func(c *Config) { c.Transition = TransitionNone }},
		{name: "negative transition", modify: func(c *Config) { c.TransitionDuration = -time.Second }, wantErr: "transition duration"},
		{name: "negative max duration", modify: func(c *Config) { c.MaxDuration = -time.Second }, wantErr: "max duration"},
		{
			name: "cluster without raft id",
			modify: func(c *Config) {
				c.Cluster = Cluster{Enabled: true, RaftBind: "127.0.0.1:7000", Peers: []string{"127.0.0.1:7000"}}
			},
			wantErr: "raft-id",
		},
		{
			name:    "cluster without peers",
			modify:  func(c *Config) { c.Cluster = Cluster{Enabled: true, RaftID: "n1", RaftBind: "127.0.0.1:7000"} },
			wantErr: "peers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DefaultTransition(t *testing.T) {
	cfg := validConfig()
	spec := cfg.DefaultTransition()
	if spec == nil || spec.Kind != sequence.KindCrossfade || spec.Duration != time.Second {
		t.Errorf("DefaultTransition() = %+v", spec)
	}

	cfg.Transition = TransitionNone
	if cfg.DefaultTransition() != nil {
		t.Error("expected nil transition for none")
	}

	cfg = validConfig()
	cfg.TransitionDuration = 0
	if cfg.DefaultTransition() != nil {
		t.Error("expected nil transition for zero duration")
	}
}
