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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/fileconv/internal/config"
	"github.com/local/fileconv/internal/limiter"
	logpkg "github.com/local/fileconv/internal/logger"
	"github.com/local/fileconv/internal/metrics"
	"github.com/local/fileconv/internal/orchestrator"
	"github.com/local/fileconv/internal/pipeline"
	"github.com/local/fileconv/internal/retention"
	"github.com/local/fileconv/internal/statuscheck"
	"github.com/local/fileconv/internal/storage"
)

func main() {
	_ = godotenv.Load()
	cfg, err := cfgpkg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := initLogging(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logpkg.Close()
	metrics.Init()

	area, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare storage")
	}

	// Sweep once before accepting work
	sweeper := retention.New(area.Dirs(), cfg.Storage.Retention)
	st := sweeper.Sweep(context.Background())
	log.Info().Int("scanned", st.Scanned).Int("removed", st.Removed).Int("failed", st.Failed).Msg("startup sweep")

	lim, err := limiter.New(limiter.Options{
		RedisURL:          cfg.Limits.RedisURL,
		RequestsPerMinute: cfg.Limits.RequestsPerMinute,
		MaxInflight:       cfg.Limits.MaxConcurrentJobs,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer lim.Close()

	var redisCheck statuscheck.RedisPinger
	if lim.Enabled() {
		redisCheck = lim
	}

	orch := orchestrator.New(orchestrator.Dependencies{
		Service:        pipeline.NewService(area, cfg.Transform, pipeline.WithSweeper(sweeper), pipeline.WithGate(lim)),
		Area:           area,
		Limiter:        lim,
		Status:         statuscheck.New(statuscheck.Options{Redis: redisCheck, Incoming: area.Incoming, Outgoing: area.Outgoing}),
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	ctx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()
	go sweeper.Run(ctx, cfg.Storage.SweepInterval)

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: orch.Routes(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info().Str("incoming", area.Incoming).Str("outgoing", area.Outgoing).Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopSweeps()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}

func initLogging(cfg cfgpkg.Config) error {
	if err := logpkg.Init(logpkg.OptionsFrom(cfg)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	return nil
}
