package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jonit-dev/vibe-coder-3d-sub003/diff"
	"github.com/jonit-dev/vibe-coder-3d-sub003/engine"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml host config")
	scenePath := flag.String("scene", "", "scene document to load (overrides config)")
	diffDir := flag.String("diff-dir", "", "directory to watch for editor diff batches (overrides config)")
	diffSocket := flag.String("diff-socket", "", "websocket url of an editor diff feed (overrides config)")
	dev := flag.Bool("dev", false, "development logging")
	flag.Parse()

	lg := newLogger(*dev)
	defer lg.Sync()

	cfg := engine.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = engine.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if *scenePath != "" {
		cfg.Scene = *scenePath
	}
	if *diffDir != "" {
		cfg.DiffDir = *diffDir
	}
	if *diffSocket != "" {
		cfg.DiffSocket = *diffSocket
	}
	if cfg.Scene == "" {
		lg.Fatal("no scene given; pass -scene or set scene: in the config")
	}

	world := engine.NewWorld(lg, cfg, nil)
	if err := world.LoadSceneFile(cfg.Scene); err != nil {
		lg.Fatal("scene load failed", zap.String("path", cfg.Scene), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DiffDir != "" {
		watcher, err := diff.NewWatcher(cfg.DiffDir)
		if err != nil {
			lg.Fatal("diff watcher", zap.String("dir", cfg.DiffDir), zap.Error(err))
		}
		defer watcher.Close()
		go pumpWatcher(ctx, lg, watcher, world)
	}

	if cfg.DiffSocket != "" {
		socket, err := diff.Dial(ctx, cfg.DiffSocket)
		if err != nil {
			lg.Fatal("diff socket", zap.String("url", cfg.DiffSocket), zap.Error(err))
		}
		defer socket.Close()
		go pumpSocket(ctx, socket, world)
	}

	lg.Info("vibed running",
		zap.String("scene", cfg.Scene),
		zap.Float64("fixedStep", cfg.FixedStep))

	ticker := time.NewTicker(time.Duration(cfg.FixedStep * float64(time.Second)))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			lg.Info("shutting down", zap.Uint64("frames", world.FrameCount()))
			return
		case <-ticker.C:
			world.Step(cfg.FixedStep)
		}
	}
}

func newLogger(dev bool) *zap.Logger {
	var lg *zap.Logger
	var err error
	if dev {
		lg, err = zap.NewDevelopment()
	} else {
		lg, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	return lg
}

func pumpWatcher(ctx context.Context, lg *zap.Logger, w *diff.Watcher, world *engine.World) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Batches:
			if !ok {
				return
			}
			world.QueueDiff(batch)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			lg.Warn("diff watch", zap.Error(err))
		}
	}
}

func pumpSocket(ctx context.Context, s *diff.Socket, world *engine.World) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-s.Batches:
			if !ok {
				return
			}
			world.QueueDiff(batch)
		}
	}
}
