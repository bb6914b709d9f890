package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"liveview/internal/config"
	"liveview/internal/log"
	"liveview/internal/ui"
	"liveview/internal/web"
	"liveview/processing/capture"
	"liveview/processing/detector"
	"liveview/processing/loop"
)

const (
	flagConfig       = "config"
	flagLogLevel     = "log-level"
	flagDetector     = "detector"
	flagDetectorAddr = "detector-addr"
	flagWebAddr      = "web-addr"
	flagHeadless     = "headless"
)

func main() {
	app := &cli.App{
		Name:  "liveview",
		Usage: "draw live object detections over a camera feed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   config.DefaultConfigPath,
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagDetector,
				Usage: "detector backend: " + strings.Join(detector.Backends(), ", "),
			},
			&cli.StringFlag{
				Name:  flagDetectorAddr,
				Usage: "detector server `HOST:PORT` or URL",
			},
			&cli.StringFlag{
				Name:  flagWebAddr,
				Usage: "serve the status API on `ADDR`, e.g. :8090",
			},
			&cli.BoolFlag{
				Name:  flagHeadless,
				Usage: "run without a window and log detections",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error("liveview failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(c *cli.Context) (err error) {
	cfgPath := c.String(flagConfig)
	cfg, err := config.LoadConfigFile(cfgPath)
	if err != nil {
		return err
	}
	applyFlags(c, cfg)

	log.Init(cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := detector.New(cfg.DetectorSettings())
	if err != nil {
		return errors.Wrap(err, "create detector")
	}
	defer func() { err = multierr.Append(err, det.Close()) }()

	if err := detector.CheckHealth(ctx, det, 2*time.Second); err != nil {
		log.Warn("detector is not answering yet, frames will be retried", "error", err)
	}

	feed := capture.NewFeed()
	defer feed.Close()

	sched := loop.NewFrameScheduler(cfg.GetFPS())
	defer sched.Stop()

	var (
		lp          *loop.Loop
		window      *ui.DetectApp
		applyConfig func(*config.Config)
	)
	if c.Bool(flagHeadless) {
		lp, err = newHeadlessLoop(cfg, det, sched, feed)
		if err != nil {
			return err
		}
		applyConfig = func(next *config.Config) {
			lp.SetMaxResults(next.GetMaxResults())
			sched.SetFPS(next.GetFPS())
		}
	} else {
		window, err = ui.CreateApp(cfg, det, sched, feed)
		if err != nil {
			return err
		}
		lp = window.Loop()
		applyConfig = window.ApplyConfig
	}

	if addr := cfg.Web.Addr; addr != "" {
		srv := web.NewServer(addr, lp)
		if window != nil {
			srv.OnToggle = window.SyncToggle
		}
		srv.StartAsync()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		}()
	}

	go func() {
		if err := config.Watch(ctx, cfgPath, applyConfig); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		}
	}()

	log.Info("starting liveview",
		"detector", cfg.DetectorSettings().Backend,
		"address", cfg.DetectorSettings().Address,
		"source", cfg.GetSource(),
		"headless", window == nil,
	)

	if window != nil {
		window.Run(ctx)
		return nil
	}
	return runHeadless(ctx, cfg, lp, sched, feed)
}

func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet(flagLogLevel) {
		cfg.LogLevel = c.String(flagLogLevel)
	}
	if c.IsSet(flagDetector) {
		cfg.Detector.Backend = c.String(flagDetector)
	}
	if c.IsSet(flagDetectorAddr) {
		cfg.Detector.Address = c.String(flagDetectorAddr)
	}
	if c.IsSet(flagWebAddr) {
		cfg.Web.Addr = c.String(flagWebAddr)
	}
}
