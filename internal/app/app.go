// Package app wires together the broker's components — config, logger,
// durable queue, TCP server, and the optional admin HTTP surface — into a
// single process lifecycle: New constructs everything that doesn't need a
// running context, Run starts the listeners and blocks, Shutdown drains
// them in reverse.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"

	"rbqbroker/pkg/banner"
	"rbqbroker/pkg/config"
	"rbqbroker/pkg/logger"
	"rbqbroker/pkg/queue"
	"rbqbroker/pkg/server"
	"rbqbroker/pkg/shutdown"
)

// App encapsulates the broker's lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	queue *queue.ShardedQueue
	srv   *server.Server

	cronCancel context.CancelFunc
	adminStop  func(context.Context) error
}

// New loads .env overrides, initialises the logger, opens the durable
// queue (running shard recovery), installs it as the global singleton, and
// constructs the TCP server. It does not start accepting connections —
// call Run for that.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	cfg := eff.Config
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.SinkFile); err != nil {
		shutdown.Fatal("logger initialised twice", err)
	}

	q, err := queue.Open(cfg.Server.DataDirectory, cfg.Server.ShardCount, cfg.Queue.WalBatchSize, cfg.Queue.CheckpointThreshold, logger.Log)
	if err != nil {
		return nil, fmt.Errorf("app: opening queue: %w", err)
	}
	if err := queue.InitGlobal(q); err != nil {
		shutdown.Fatal("global queue initialised twice", err)
	}

	srv := server.New(eff.Addr, q, cfg.Server.PoolSize, cfg.Server.MaxSubmissionQueue, int(cfg.Queue.MaxFrameBytes), logger.Log)

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate, queue: q, srv: srv}, nil
}

// Run prints the startup banner, starts the optional checkpoint cron
// scheduler and admin HTTP surface, then starts accepting TCP connections.
// It blocks until ctx is cancelled or a listener reports a fatal error.
func (a *App) Run(ctx context.Context) error {
	cfg := a.eff.Config

	if cfg.Queue.CheckpointCron != "" {
		cctx, cancel := context.WithCancel(ctx)
		a.cronCancel = cancel
		if err := a.startCheckpointCron(cctx, cfg.Queue.CheckpointCron); err != nil {
			cancel()
			return fmt.Errorf("app: checkpoint cron: %w", err)
		}
	}

	banner.Print(cfg, a.eff.Source, a.version)

	var adminErrCh <-chan error
	if cfg.Admin.Enabled {
		stop, errCh := a.startAdminHTTP()
		a.adminStop = stop
		adminErrCh = errCh
	}

	tcpErrCh := make(chan error, 1)
	go func() { tcpErrCh <- a.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-tcpErrCh:
		return err
	case err := <-adminErrCh:
		return err
	}
}

// startCheckpointCron validates cronExpr with gronx and launches a
// goroutine that triggers ForceCheckpoint at each tick. This supplements,
// rather than replaces, the counter-based checkpoint scheduling in
// pkg/queue — a deployment can have both, or only the counter-based one if
// checkpoint_cron is left empty.
func (a *App) startCheckpointCron(ctx context.Context, cronExpr string) error {
	if !gronx.IsValid(cronExpr) {
		return fmt.Errorf("invalid checkpoint cron expression: %s", cronExpr)
	}
	logger.Info("checkpoint cron enabled", "cron", cronExpr)
	go a.runCheckpointCron(ctx, cronExpr)
	return nil
}

func (a *App) runCheckpointCron(ctx context.Context, cronExpr string) {
	for {
		next, err := gronx.NextTickAfter(cronExpr, time.Now().UTC(), false)
		if err != nil {
			logger.Error("checkpoint cron: computing next tick failed", "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-time.After(wait):
			if err := a.queue.ForceCheckpoint(); err != nil {
				logger.Error("checkpoint cron: force checkpoint failed", "error", err)
			} else {
				logger.Info("checkpoint cron: force checkpoint complete")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown stops the cron scheduler, the admin HTTP surface, the TCP
// server and worker pool, and finally closes the queue's WAL handles — in
// that order, so nothing writes to the queue after it is closed.
func (a *App) Shutdown(ctx context.Context) error {
	if a.cronCancel != nil {
		a.cronCancel()
	}
	if a.adminStop != nil {
		if err := a.adminStop(ctx); err != nil {
			logger.Error("admin http shutdown", "error", err)
		}
	}
	if err := a.srv.Shutdown(); err != nil {
		logger.Error("tcp server shutdown", "error", err)
	}
	return a.queue.Close()
}
