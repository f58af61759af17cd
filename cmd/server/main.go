package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/pneumo-api/internal/config"
	"github.com/Brownie44l1/pneumo-api/internal/handlers"
	"github.com/Brownie44l1/pneumo-api/internal/lib/logger/setuplogger"
	"github.com/Brownie44l1/pneumo-api/internal/lib/logger/sl"
	"github.com/Brownie44l1/pneumo-api/internal/model"
)

func main() {
	cfg := config.MustLoad()

	logLevel := cfg.LogLevel
	if cfg.Debug {
		logLevel = "debug"
	}
	log, logFile := setuplogger.New(logLevel, cfg.LogFile)
	defer logFile.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	modelHandle := model.Open(ctx, cfg.Model.Options(), log)
	if !modelHandle.Loaded() {
		log.Warn("server starting without model, predictions will fail until it is fixed")
	}
	defer func() {
		if err := modelHandle.Close(); err != nil {
			log.Error("failed to release model", sl.Err(err))
		}
	}()

	handler := handlers.NewHandler(log, modelHandle, cfg.Screening.Thresholds(), handlers.Options{
		MaxContentLength:    cfg.MaxContentLength,
		AllowedExtensions:   cfg.AllowedExtensions,
		PredictionThreshold: cfg.PredictionThreshold,
		RequireXray:         cfg.RequireXray,
	})

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler.Routes(cfg.AllowedOrigins),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	log.Info("starting PneumoScan API", slog.String("address", srv.Addr), slog.Bool("debug", cfg.Debug))
	log.Info("endpoints",
		slog.String("GET /health", "health check"),
		slog.String("GET /api/model/info", "model information"),
		slog.String("POST /api/predict", "predict from image upload (field \"file\")"),
		slog.String("POST /api/validate", "chest X-ray plausibility check only"),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("stopping server")
	case err := <-serverErr:
		log.Error("server failed", sl.Err(err))
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", sl.Err(err))
		return
	}

	log.Info("server stopped")
}
