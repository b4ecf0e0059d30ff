package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stillpoint/internal/config"
	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/infra/buildinfo"
	"github.com/yndnr/stillpoint/internal/infra/confloader"
	"github.com/yndnr/stillpoint/internal/infra/shutdown"
	"github.com/yndnr/stillpoint/internal/runner"
	"github.com/yndnr/stillpoint/internal/storage"
	"github.com/yndnr/stillpoint/internal/telemetry/logger"
	"github.com/yndnr/stillpoint/internal/telemetry/metric"
)

// RunCommand returns the run command.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Recover from the last checkpoint and run the work loop until interrupted",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "interval",
				Aliases: []string{"k"},
				Usage:   "work units between checkpoints (overrides checkpoint.interval)",
			},
			&cli.DurationFlag{
				Name:  "pace",
				Usage: "minimum time between work units, 0 for unpaced (overrides work.pace)",
			},
			&cli.Int64Flag{
				Name:  "units",
				Usage: "stop after this many units (overrides work.max_units)",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "serve Prometheus metrics (overrides metrics.enabled)",
			},
		},
		Action: runAction,
	}
}

func runOverrides(c *cli.Context) map[string]any {
	o := map[string]any{}
	if c.IsSet("interval") {
		o["checkpoint.interval"] = c.Int("interval")
	}
	if c.IsSet("pace") {
		o["work.pace"] = c.Duration("pace")
	}
	if c.IsSet("units") {
		o["work.max_units"] = c.Int64("units")
	}
	if c.IsSet("metrics") {
		o["metrics.enabled"] = c.Bool("metrics")
	}
	return o
}

func runAction(c *cli.Context) error {
	cfg, loader, err := loadConfig(c, runOverrides(c))
	if err != nil {
		return fatalf("%v", err)
	}

	base, err := logger.New(config.ToLoggerConfig(cfg, errWriter(c)))
	if err != nil {
		return fatalf("init logger: %v", err)
	}
	runID, err := domain.NewRunID()
	if err != nil {
		return fatalf("create run id: %v", err)
	}
	ctx := logger.WithRunID(logger.WithLogger(c.Context, base), runID.String())
	log := logger.L(ctx)
	logger.SetDefault(log)

	bi := buildinfo.Get()
	log.Info("starting stillpoint",
		"version", bi.Version,
		"commit", bi.Commit,
		"config", loader.FilePath(),
		"path", cfg.Checkpoint.Path)

	var metrics *metric.Registry
	if cfg.Metrics.Enabled {
		metrics = metric.NewRegistry()
	}

	sc, err := config.ToStorageConfig(cfg, runID, logger.Component(log, "checkpoint"), metrics)
	if err != nil {
		return fatalf("%v", err)
	}
	engine, err := storage.New(sc)
	if err != nil {
		return fatalf("init storage: %v", err)
	}
	engine.RegisterMetrics(metrics)

	// Hooks run in reverse order: the engine is closed last.
	sh := shutdown.NewHandler(cfg.Shutdown.Timeout)
	sh.OnShutdown(func(context.Context) error {
		log.Info("closing checkpoint stores")
		return engine.Close()
	})

	if metrics != nil {
		srv := metric.NewServer(cfg.Metrics.Addr, metrics, logger.Component(log, "metrics"))
		if _, err := srv.Start(); err != nil {
			_ = sh.Shutdown()
			return fatalf("start metrics server: %v", err)
		}
		sh.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return srv.Shutdown(ctx)
		})
	}

	sigCtx, stop := sh.NotifyContext(ctx)
	defer stop()

	if loader.FilePath() != "" {
		if err := watchConfig(sigCtx, sh, loader); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	r, err := runner.New(engine.Manager(), config.ToRunnerConfig(cfg),
		runner.WithLogger(logger.Component(log, "runner")),
		runner.WithMetrics(metrics))
	if err != nil {
		_ = sh.Shutdown()
		return fatalf("init runner: %v", err)
	}

	start := time.Now()
	res, runErr := r.Run(sigCtx)
	if shErr := sh.Shutdown(); shErr != nil {
		log.Warn("shutdown completed with errors", "error", shErr)
	}
	if runErr != nil {
		if domain.IsFatalLoadError(runErr) {
			return fatalf("checkpoint at %s is unusable: %v", cfg.Checkpoint.Path, runErr)
		}
		return fatalf("run: %v", runErr)
	}

	log.Info("stillpoint stopped",
		"outcome", res.Outcome.String(),
		"reason", string(res.Stopped),
		"start_counter", res.StartCounter,
		"final_counter", res.FinalCounter,
		"saves", res.Saves,
		"save_failures", res.SaveFailures,
		"uptime", time.Since(start).Round(time.Millisecond).String())
	return nil
}

// watchConfig reloads the configuration file on change and applies the
// log level. Other settings take effect on the next start.
func watchConfig(ctx context.Context, sh *shutdown.Handler, loader *confloader.Loader) error {
	log := logger.L(ctx)
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(logger.Component(log, "config")))
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Watch(loader.FilePath()); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", loader.FilePath(), err)
	}
	w.OnChange(func(path string) {
		cfg, err := config.Reload(loader)
		if err != nil {
			log.Warn("ignoring invalid configuration change", "file", path, "error", err)
			return
		}
		prev := logger.GetLevel()
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("ignoring log level change", "level", cfg.Log.Level, "error", err)
			return
		}
		log.Info("configuration reloaded",
			"file", path,
			"previous_log_level", prev,
			"log_level", logger.GetLevel())
	})
	go w.Run(ctx)
	sh.OnShutdown(func(context.Context) error {
		return w.Close()
	})
	return nil
}
