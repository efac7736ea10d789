// Command cbird-indexd is the daemon entry point: it loads cbird.yaml,
// brings the store in line with what's on disk, then waits on a signal
// or an interval tick to do it again. Wiring follows the teacher's
// Run/newApp split (root-level nvr.go): load config, construct every
// subsystem, start a background run loop, and shut everything down
// cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"cbird/pkg/config"
	"cbird/pkg/engine"
	"cbird/pkg/log"
	"cbird/pkg/scanner"
	"cbird/pkg/sysload"
)

func main() {
	envPath := flag.String("config", "cbird.yaml", "path to cbird.yaml")
	interval := flag.Duration("interval", 10*time.Minute, "how often to rescan the roots")
	flag.Parse()

	if err := run(*envPath, *interval); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles every long-lived subsystem so run's signal-handling loop
// has one thing to shut down.
type app struct {
	log     *log.Logger
	db      *log.DB
	env     *config.Env
	general *config.General
	load    *sysload.Monitor
	engine  *engine.Engine
}

func newApp(envPath string) (*app, error) {
	var wg sync.WaitGroup
	logger := log.NewLogger(&wg)

	env, err := config.LoadEnv(envPath)
	if err != nil {
		return nil, fmt.Errorf("cbird-indexd: load config: %w", err)
	}

	if err := os.MkdirAll(env.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("cbird-indexd: create index dir: %w", err)
	}

	general, err := config.NewGeneral(env.IndexDir)
	if err != nil {
		return nil, fmt.Errorf("cbird-indexd: load general config: %w", err)
	}

	db := log.NewDB(filepath.Join(env.IndexDir, "log.db"), &wg)

	load := sysload.New(logger, 15*time.Second)

	eng, err := engine.Open(env.Roots[0], engineOptions(env, load))
	if err != nil {
		return nil, fmt.Errorf("cbird-indexd: open engine: %w", err)
	}

	return &app{log: logger, db: db, env: env, general: general, load: load, engine: eng}, nil
}

func engineOptions(env *config.Env, load *sysload.Monitor) engine.Options {
	opts := engine.DefaultOptions(env.Roots[0])
	opts.ScanParams = env.ScanParams()
	opts.ImageWorkers = load.RecommendedWorkers(env.ImageWorkers)
	opts.VideoWorkers = load.RecommendedWorkers(env.VideoWorkers)
	return opts
}

func run(envPath string, interval time.Duration) error {
	a, err := newApp(envPath)
	if err != nil {
		return err
	}
	defer a.engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.log.Start(ctx)
	if err := a.db.Init(ctx); err != nil {
		return fmt.Errorf("cbird-indexd: init log db: %w", err)
	}
	go a.db.SaveLogs(ctx, a.log)
	go a.log.LogToStdout(ctx)
	go a.load.Run(ctx)

	fileLog := &lumberjack.Logger{
		Filename:   filepath.Join(a.env.IndexDir, "cbird-indexd.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	defer fileLog.Close()
	go a.log.LogToWriter(ctx, fileLog)

	fatal := make(chan error, 1)
	go func() { fatal <- runLoop(ctx, a, interval) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err = <-fatal:
	case sig := <-stop:
		a.log.Info().Src("app").Msgf("received %v, stopping", sig)
	}

	cancel()
	return err
}

// runLoop calls Engine.Update once immediately, then every interval
// until ctx is canceled.
func runLoop(ctx context.Context, a *app, interval time.Duration) error {
	if err := updateOnce(ctx, a); err != nil {
		a.log.Error().Src("app").Msgf("update failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	changed := make(chan struct{}, 1)
	if err := scanner.Watch(ctx, a.env.Roots[0], changed); err != nil {
		a.log.Warn().Src("app").Msgf("watch disabled: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := updateOnce(ctx, a); err != nil {
				a.log.Error().Src("app").Msgf("update failed: %v", err)
			}
		case <-changed:
			if err := updateOnce(ctx, a); err != nil {
				a.log.Error().Src("app").Msgf("update failed: %v", err)
			}
		}
	}
}

func updateOnce(ctx context.Context, a *app) error {
	result, err := a.engine.Update(ctx)
	if err != nil {
		return err
	}
	a.log.Info().Src("app").Msgf("update: added=%d failed=%d skipped=%d",
		result.Added, result.Failed, result.Skipped)
	return nil
}
