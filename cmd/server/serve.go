package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/jsonrpcd/internal/adapters/http"
	"github.com/dkeye/jsonrpcd/internal/adapters/poll"
	wssignal "github.com/dkeye/jsonrpcd/internal/adapters/signal"
	"github.com/dkeye/jsonrpcd/internal/app"
	"github.com/dkeye/jsonrpcd/internal/app/protocol"
	"github.com/dkeye/jsonrpcd/internal/app/rooms"
	"github.com/dkeye/jsonrpcd/internal/config"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	serverFlags(cmd.Flags())
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics(promReg, "")

	registry := app.NewRegistry()
	scheduler := app.NewScheduler()
	roomManager := rooms.NewManager()
	handler := rooms.NewHandler(roomManager, nil)

	manager := protocol.NewManager(handler, registry, scheduler,
		protocol.WithLabel(cfg.Label),
		protocol.WithMetrics(metrics),
		protocol.WithMaxHeartbeats(cfg.MaxHeartbeats),
		protocol.WithWatchdogDefaults(cfg.PingInterval, cfg.MissedPings),
		protocol.WithPingWatchdog(cfg.PingWatchdog),
	)

	ws := wssignal.NewController(manager, cfg)
	httpPoll := poll.NewController(manager, cfg)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Manager:  manager,
		Registry: registry,
		Rooms:    roomManager,
		WS:       ws,
		Poll:     httpPoll,
		Gatherer: promReg,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("jsonrpcd server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return httpPoll.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		ws.CloseAll()
		manager.Shutdown(protocol.ReasonShutdown)
		scheduler.Shutdown()
		return nil
	})

	err := g.Wait()
	log.Info().Msg("Server exited gracefully")
	return err
}
