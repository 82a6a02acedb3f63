// The seqplay command plays a sequence of clips in real time, blending
// adjacent clips with transitions, and serves the as-run playlist over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/agleyzer/seqplay/internal/cluster"
	"github.com/agleyzer/seqplay/internal/config"
	"github.com/agleyzer/seqplay/internal/metrics"
	"github.com/agleyzer/seqplay/internal/parser"
	"github.com/agleyzer/seqplay/internal/playout"
	"github.com/agleyzer/seqplay/internal/sequence"
	"github.com/agleyzer/seqplay/internal/server"
)

const (
	version = "1.0.0"
)

func main() {
	// Parse command-line flags
	var (
		configPath         = flag.String("config", "", "Path to a config file (defaults to ./seqplay.yaml if present)")
		port               = flag.Int("port", 8080, "HTTP server port")
		fps                = flag.Float64("fps", 25, "Render frame rate")
		verbose            = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion        = flag.Bool("version", false, "Show version and exit")
		transitionKind     = flag.String("transition", sequence.KindCrossfade, "Transition applied between imported playlist segments (crossfade, wipe, dip, none)")
		transitionDuration = flag.Duration("transition-duration", time.Second, "Length of the transition between imported playlist segments")
		maxDuration        = flag.Duration("max-duration", 0, "Maximum duration of content to play (e.g., '10s', '1m30s'). Plays all clips if not specified")
		clusterMode        = flag.Bool("cluster", false, "Enable cluster mode with Raft consensus")
		raftID             = flag.String("raft-id", "", "Unique Raft node ID (required in cluster mode)")
		raftBind           = flag.String("raft-bind", "", "Raft bind address host:port (required in cluster mode)")
		peers              = flag.String("peers", "", "Comma-separated list of peer Raft addresses, including this node")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "seqplay - clip sequence playout v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <sequence>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Arguments:\n")
		fmt.Fprintf(os.Stderr, "  <sequence>    YAML sequence file, or an HLS playlist URL or file\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s show.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --fps 30 --port 9000 show.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --transition wipe --transition-duration 500ms https://example.com/playlist.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --cluster --raft-id node1 --raft-bind 127.0.0.1:7000 --peers 127.0.0.1:7000,127.0.0.1:7001 show.yaml\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("seqplay v%s\n", version)
		os.Exit(0)
	}

	// Check for sequence argument
	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: sequence is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags given on the command line win over the config file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "fps":
			cfg.FPS = *fps
		case "verbose":
			cfg.Verbose = *verbose
		case "transition":
			cfg.Transition = *transitionKind
		case "transition-duration":
			cfg.TransitionDuration = *transitionDuration
		case "max-duration":
			cfg.MaxDuration = *maxDuration
		case "cluster":
			cfg.Cluster.Enabled = *clusterMode
		case "raft-id":
			cfg.Cluster.RaftID = *raftID
		case "raft-bind":
			cfg.Cluster.RaftBind = *raftBind
		case "peers":
			cfg.Cluster.Peers = splitPeers(*peers)
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	logger.Info("seqplay starting", "version", version)

	// Run the application
	if err := run(flag.Arg(0), cfg, logger); err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}

	logger.Info("seqplay stopped")
}

func run(source string, cfg *config.Config, logger *slog.Logger) error {
	seq, err := loadSequence(source, cfg)
	if err != nil {
		return err
	}

	if cfg.MaxDuration > 0 {
		descriptors := seq.Descriptors()
		subset := calculateClipSubset(descriptors, cfg.MaxDuration)
		seq = sequence.New(seq.Name(), subset)
		logger.Info("applied max-duration",
			"originalClips", len(descriptors),
			"includedClips", len(subset),
			"duration", cfg.MaxDuration,
		)
	}

	logger.Info("loaded sequence",
		"name", seq.Name(),
		"clips", seq.Len(),
		"total", seq.Total(),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	player, err := playout.New(seq, cfg.FPS, metrics.New(reg), logger)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal", "signal", sig)
		cancel()
	}()

	playErr := make(chan error, 1)
	play := func(from, promotions int) {
		go func() {
			if err := runPlayer(ctx, player, from, promotions); err != nil {
				playErr <- err
				cancel()
			}
		}()
	}

	if cfg.Cluster.Enabled {
		mgr, err := startCluster(ctx, cfg.Cluster, player, logger)
		if err != nil {
			return err
		}
		defer mgr.Shutdown()

		go func() {
			from, promotions, ok := awaitLeadership(ctx, mgr, seq, logger)
			if ok {
				play(from, promotions)
			}
		}()
	} else {
		play(0, 0)
	}

	// Create and start the HTTP server
	srv := server.New(player, cfg.Port, reg, logger)

	logger.Info("playout ready",
		"url", fmt.Sprintf("http://localhost:%d/playlist.m3u8", cfg.Port),
		"health", fmt.Sprintf("http://localhost:%d/health", cfg.Port),
		"metrics", fmt.Sprintf("http://localhost:%d/metrics", cfg.Port),
	)

	// Start server (blocks until shutdown)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	select {
	case err := <-playErr:
		return err
	default:
		return nil
	}
}

// loadSequence reads a YAML sequence file, or imports an HLS playlist with
// the configured default transition between segments.
func loadSequence(source string, cfg *config.Config) (*sequence.Sequence, error) {
	ext := strings.ToLower(filepath.Ext(source))
	if ext == ".yaml" || ext == ".yml" {
		seq, err := sequence.LoadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to load sequence: %w", err)
		}
		return seq, nil
	}

	seq, err := parser.ParsePlaylist(source, parser.Options{Transition: cfg.DefaultTransition()})
	if err != nil {
		return nil, fmt.Errorf("failed to parse playlist: %w", err)
	}
	return seq, nil
}

// runPlayer plays the sequence from clip index from, continuing the cursor's
// promotion count. Reaching the end is not an error; the as-run playlist
// stays available until shutdown.
func runPlayer(ctx context.Context, player *playout.Player, from, promotions int) error {
	if err := player.Resume(from, promotions); err != nil {
		return fmt.Errorf("failed to start playout: %w", err)
	}
	if err := player.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startCluster joins the Raft cluster and mirrors cursor updates from the
// player into it.
func startCluster(ctx context.Context, cc config.Cluster, player *playout.Player, logger *slog.Logger) (*cluster.Manager, error) {
	mgr, err := cluster.NewManager(cluster.Config{
		RaftID:   cc.RaftID,
		BindAddr: cc.RaftBind,
		Peers:    cc.Peers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster manager: %w", err)
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start cluster: %w", err)
	}

	pub := cluster.NewPublisher(mgr, mgr.QueueSize(), logger)
	go pub.Run(ctx)

	player.OnCursor(func(ev playout.CursorEvent, c playout.Cursor) {
		switch ev {
		case playout.CursorStarted:
			pub.Initialize(cluster.ClusterState{
				Sequence:   c.Sequence,
				Clips:      c.Clips,
				Index:      c.Index,
				Promotions: c.Promotions,
				Ended:      c.Ended,
			})
		case playout.CursorPromoted:
			pub.Promote(c.Index)
		case playout.CursorEnded:
			pub.End()
		}
	})
	player.SetClusterInfo(mgr.Info)

	logger.Info("cluster mode enabled",
		"raft_id", cc.RaftID,
		"bind", cc.RaftBind,
		"peers", cc.Peers,
	)
	return mgr, nil
}

// awaitLeadership blocks until this node leads the cluster and returns the
// clip index and promotion count to resume from. ok is false if ctx ends first
// or the replicated cursor says the sequence has already ended.
func awaitLeadership(ctx context.Context, mgr *cluster.Manager, seq *sequence.Sequence, logger *slog.Logger) (from, promotions int, ok bool) {
	if err := mgr.WaitForLeader(ctx); err != nil {
		return 0, 0, false
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for !mgr.IsLeader() {
		select {
		case <-ctx.Done():
			return 0, 0, false
		case <-ticker.C:
		}
	}

	from, promotions, ok = resumeIndex(mgr.GetState(), seq)
	if !ok {
		logger.Info("replicated sequence already ended, serving only")
		return 0, 0, false
	}

	logger.Info("became leader, starting playout", "from", from, "promotions", promotions)
	return from, promotions, true
}

// resumeIndex returns the clip and promotion count to resume from given the
// replicated cursor. A cursor for a different sequence is ignored.
func resumeIndex(state cluster.ClusterState, seq *sequence.Sequence) (from, promotions int, ok bool) {
	if state.Sequence != seq.Name() || state.Clips != seq.Len() {
		return 0, 0, true
	}
	if state.Ended {
		return 0, 0, false
	}
	if state.Index < 0 || state.Index >= seq.Len() || state.Promotions < 0 {
		return 0, 0, true
	}
	return state.Index, state.Promotions, true
}

func splitPeers(s string) []string {
	var peers []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

// calculateClipSubset returns the leading clips that fit within maxDuration.
// A clip is included if adding it doesn't exceed the threshold by more than
// 50%. Returns at least 1 clip even if the first clip exceeds the duration.
func calculateClipSubset(clips []sequence.Descriptor, maxDuration time.Duration) []sequence.Descriptor {
	if len(clips) == 0 {
		return clips
	}

	// If maxDuration is 0, return all clips
	if maxDuration == 0 {
		return clips
	}

	var total time.Duration
	var result []sequence.Descriptor

	for i, clip := range clips {
		// Always include at least the first clip
		if i == 0 {
			result = append(result, clip)
			total += clip.Duration
			continue
		}

		newTotal := total + clip.Duration
		if newTotal <= maxDuration {
			result = append(result, clip)
			total = newTotal
		} else {
			// Include if it doesn't exceed by more than 50%
			if newTotal-maxDuration <= maxDuration/2 {
				result = append(result, clip)
				total = newTotal
			}
			break
		}
	}

	return result
}
