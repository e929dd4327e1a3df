// The trimcut command serves a media trimming session: an editable,
// undoable collection of labeled time ranges over a loaded media file,
// exposed over HTTP and optionally replicated across a Raft cluster.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agleyzer/trimcut/internal/cluster"
	"github.com/agleyzer/trimcut/internal/detect"
	"github.com/agleyzer/trimcut/internal/edl"
	"github.com/agleyzer/trimcut/internal/selection"
	"github.com/agleyzer/trimcut/internal/server"
	"github.com/agleyzer/trimcut/internal/store"
	"github.com/agleyzer/trimcut/internal/timeline"
)

const (
	version = "1.0.0"
)

func main() {
	var (
		port        = flag.Int("port", 8080, "HTTP server port")
		duration    = flag.Float64("duration", 0, "Media duration in seconds")
		frameRate   = flag.Float64("frame-rate", 0, "Media frame rate (optional)")
		maxSegments = flag.Int("max-segments", 1000, "Maximum number of segments")
		importPath  = flag.String("import", "", "Cut list to load on startup (.edl or .m3u8)")
		detectorCmd = flag.String("detector-cmd", "", "External detector command; reads a JSON window from stdin and prints JSON [{start,end}] ranges")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Show version and exit")
		raftID      = flag.String("raft-id", "", "Raft node ID (enables session replication)")
		raftBind    = flag.String("raft-bind", "", "Raft bind address (host:port)")
		raftPeers   = flag.String("raft-peers", "", "Comma-separated list of Raft peer addresses")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "TrimCut - Media Trimming Session Server v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <media-file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Arguments:\n")
		fmt.Fprintf(os.Stderr, "  <media-file>    Path or URL of the media being trimmed\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --duration 5400 movie.mp4\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --duration 5400 --import cuts.edl movie.mp4\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --duration 5400 --raft-id node1 --raft-bind 127.0.0.1:9000 --raft-peers 127.0.0.1:9000 movie.mp4\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("TrimCut v%s\n", version)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: media file is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	source := flag.Arg(0)

	if *port < 1 || *port > 65535 {
		fmt.Fprintf(os.Stderr, "Error: port must be between 1 and 65535\n")
		os.Exit(1)
	}

	if *duration <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --duration must be positive\n")
		os.Exit(1)
	}

	if *maxSegments < 1 {
		fmt.Fprintf(os.Stderr, "Error: --max-segments must be at least 1\n")
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	logger.Info("TrimCut starting", "version", version)

	cfg := runConfig{
		source:      source,
		port:        *port,
		duration:    *duration,
		frameRate:   *frameRate,
		maxSegments: *maxSegments,
		importPath:  *importPath,
		detectorCmd: *detectorCmd,
		verbose:     *verbose,
		raftID:      *raftID,
		raftBind:    *raftBind,
		raftPeers:   parsePeers(*raftPeers),
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}

	logger.Info("TrimCut stopped")
}

type runConfig struct {
	source      string
	port        int
	duration    float64
	frameRate   float64
	maxSegments int
	importPath  string
	detectorCmd string
	verbose     bool
	raftID      string
	raftBind    string
	raftPeers   []string
}

func run(cfg runConfig, logger *slog.Logger) error {
	tl := timeline.Timeline{
		Duration:  cfg.duration,
		Source:    cfg.source,
		FrameRate: cfg.frameRate,
	}
	if err := tl.Validate(); err != nil {
		return fmt.Errorf("invalid media timeline: %w", err)
	}

	// Session replication is optional: it is enabled when any raft flag
	// is given, and the full set is then required.
	var manager *cluster.Manager
	replicated := cfg.raftID != "" || cfg.raftBind != "" || len(cfg.raftPeers) > 0

	opts := []store.Option{
		store.WithTimeline(tl),
		store.WithMaxSegments(cfg.maxSegments),
		store.WithLogger(logger),
	}

	if replicated {
		var err error
		manager, err = cluster.NewManager(cluster.Config{
			RaftID:   cfg.raftID,
			BindAddr: cfg.raftBind,
			Peers:    cfg.raftPeers,
			Verbose:  cfg.verbose,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create cluster manager: %w", err)
		}
		opts = append(opts, store.WithCommitHook(manager.CommitHook()))
	}
	st := store.New(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal", "signal", sig)
		cancel()
	}()

	if manager != nil {
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start cluster: %w", err)
		}
		defer manager.Shutdown()

		waitCtx, waitCancel := context.WithTimeout(ctx, 10*time.Second)
		err := manager.WaitForLeader(waitCtx)
		waitCancel()
		if err != nil {
			logger.Warn("no cluster leader elected yet", "error", err)
		} else if manager.IsLeader() {
			// Seed the replicated session from the local store so
			// followers have state before the first edit.
			if err := manager.Initialize(cluster.SessionState{
				Segments: st.Segments(),
				Counter:  st.Counter(),
				Current:  st.Current(),
				Source:   cfg.source,
				Duration: cfg.duration,
			}); err != nil {
				return fmt.Errorf("failed to seed session state: %w", err)
			}
		}
	}

	sel := selection.New()
	integrator := detect.NewIntegrator(st, logger)

	if cfg.importPath != "" {
		entries, err := edl.LoadFile(cfg.importPath)
		if err != nil {
			return fmt.Errorf("failed to load cut list: %w", err)
		}
		if err := edl.Import(st, entries, edl.ModeReplace); err != nil {
			return fmt.Errorf("failed to import cut list: %w", err)
		}
		logger.Info("imported cut list", "path", cfg.importPath, "segments", st.Len())
	}

	var detector detect.Detector
	if cfg.detectorCmd != "" {
		detector = detect.Command(logger, "/bin/sh", "-c", cfg.detectorCmd)
		logger.Info("using external detector", "command", cfg.detectorCmd)
	}

	srv := server.New(st, sel, integrator, detector, cfg.port, logger)
	if manager != nil {
		srv.AttachCluster(manager)
	}

	logger.Info("trimming session ready",
		"source", cfg.source,
		"duration", cfg.duration,
		"api", fmt.Sprintf("http://localhost:%d/segments", cfg.port),
		"health", fmt.Sprintf("http://localhost:%d/health", cfg.port),
	)

	return srv.Start(ctx)
}

// parsePeers splits a comma-separated peer list, dropping empty entries.
func parsePeers(s string) []string {
	if s == "" {
		return nil
	}

	var peers []string
	for _, peer := range strings.Split(s, ",") {
		peer = strings.TrimSpace(peer)
		if peer != "" {
			peers = append(peers, peer)
		}
	}
	return peers
}
