package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/lol-presence/internal/config"
	"github.com/DoyleJ11/lol-presence/internal/emitter"
	"github.com/DoyleJ11/lol-presence/internal/httpapi"
	"github.com/DoyleJ11/lol-presence/internal/logging"
	"github.com/DoyleJ11/lol-presence/internal/supervisor"
	"github.com/DoyleJ11/lol-presence/internal/tracker"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.ExtraProcesses) > 0 {
		logger.Info("extra Discord process names configured", zap.Strings("processes", cfg.ExtraProcesses))
	}

	em := emitter.New(cfg.ClientID, emitter.DialDiscord, logger.Named("emitter"))
	if err := em.WaitForService(ctx, cfg.WaitForDiscordDuration()); err != nil {
		_ = em.Close()
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	logger.Info("connected to discord")

	tr := tracker.New(ctx, em, tracker.Config{
		Options:           cfg.Options(),
		PollInterval:      cfg.PollInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		GracePeriod:       cfg.GracePeriod,
	}, logger.Named("tracker"))

	sup := supervisor.New(supervisor.Config{
		LockfilePaths: cfg.LockfilePaths(),
		WaitForClient: cfg.WaitForLeagueDuration(),
	}, tr, supervisor.DefaultDeps(cfg.LiveClientURL), logger.Named("supervisor"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sup.Run(gctx)
	})

	if cfg.StatusAddr != "" {
		srv := &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           httpapi.SetupRoutes(tr),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("status server listening", zap.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	<-tr.Done()
	return err
}
