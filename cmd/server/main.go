package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/toricodesthings/doc-conversion-service/internal/app"
	"github.com/toricodesthings/doc-conversion-service/internal/config"
	"github.com/toricodesthings/doc-conversion-service/internal/logging"
	"github.com/toricodesthings/doc-conversion-service/internal/server"
	"github.com/toricodesthings/doc-conversion-service/internal/store"
)

func main() {
	cfg := config.Load()

	log := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "docconv",
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.UsingDevSecret() {
		log.Warn().Msg("SECRET_KEY not set; flash cookies are signed with the public development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proc, results, err := app.Build(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer results.Close()

	srv := server.New(cfg, proc, log)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go housekeeping(ctx, cfg, srv, results, log)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", httpSrv.Addr).
			Int64("max_concurrent", cfg.MaxConcurrentRequests).
			Int64("max_ocr", cfg.MaxOCRConcurrent).
			Int("max_upload_mb", cfg.MaxUploadMB).
			Msg("docconv listening")
		serverErrors <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		if err := httpSrv.Close(); err != nil {
			log.Error().Err(err).Msg("forced shutdown failed")
		}
	}
	log.Info().Msg("server stopped")
}

// housekeeping logs stats, resets rate limiters and expires old results on
// the filesystem backend until ctx is done.
func housekeeping(ctx context.Context, cfg config.Config, srv *server.Server, results store.Store, log zerolog.Logger) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := srv.Stats()
		log.Info().
			Int64("active", st.ActiveRequests).
			Int64("total", st.TotalRequests).
			Int64("conversions", st.Conversions).
			Int64("ocr", st.OCRRuns).
			Int64("failures", st.Failures).
			Int("goroutines", st.Goroutines).
			Uint64("mem_mb", st.MemAllocMB).
			Msg("stats")

		srv.ResetLimiters()

		if fsStore, ok := results.(*store.FS); ok && cfg.ResultsTTL > 0 {
			n, err := fsStore.Sweep(cfg.ResultsTTL)
			if err != nil {
				log.Warn().Err(err).Msg("results sweep failed")
			} else if n > 0 {
				log.Info().Int("removed", n).Msg("expired results removed")
			}
		}
	}
}
