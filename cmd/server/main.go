package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizdrill/quizdrill-backend/internal/config"
	"github.com/quizdrill/quizdrill-backend/internal/handler"
	"github.com/quizdrill/quizdrill-backend/internal/logger"
	"github.com/quizdrill/quizdrill-backend/internal/model"
	"github.com/quizdrill/quizdrill-backend/internal/prefs"
	"github.com/quizdrill/quizdrill-backend/internal/queue"
	"github.com/quizdrill/quizdrill-backend/internal/registry"
	"github.com/quizdrill/quizdrill-backend/internal/results"
	"github.com/quizdrill/quizdrill-backend/internal/router"
	"github.com/quizdrill/quizdrill-backend/internal/sched"
	"github.com/quizdrill/quizdrill-backend/internal/storage"
	"github.com/quizdrill/quizdrill-backend/internal/validator"
	ws "github.com/quizdrill/quizdrill-backend/internal/websocket"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("data_dir", cfg.DataDir).
		Msg("Starting QuizDrill Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Open Durable Store ────────────────────────────────────────────
	medium, err := storage.NewFileMedium(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open data directory")
	}
	store := storage.New(medium, storage.Options{
		MaxBytes:       cfg.MaxStorageBytes,
		EvictThreshold: cfg.EvictThreshold,
		KeepSessions:   cfg.KeepSessions,
		KeepResults:    cfg.KeepResults,
	}, log)

	// Repair before anything reads: corrupted records are restored from
	// their backups or discarded so startup never trips over them.
	report := store.ValidateAndRepair()
	if !report.IsHealthy {
		log.Warn().
			Int("repairs", report.RepairsAttempted).
			Strs("errors", report.Errors).
			Msg("Durable store repaired on startup")
	}

	// ─── Notification Hub ──────────────────────────────────────────────
	hub := ws.NewHub(log)
	store.OnError(func(se model.StorageError) {
		hub.Broadcast(ws.StorageErrorNotice{
			Event:   ws.EventStorageError,
			Type:    string(se.Type),
			Message: se.Message,
		})
	})

	// ─── Offline Action Queue ──────────────────────────────────────────
	var process queue.ProcessFunc
	if cfg.SyncURL != "" {
		process = queue.NewHTTPProcessor(cfg.SyncURL, &http.Client{Timeout: 10 * time.Second})
	} else {
		// No sync target configured: the queue only buffers.
		process = func(context.Context, model.PendingAction) (bool, error) {
			return false, errors.New("no sync target configured")
		}
	}

	scheduler := sched.NewTickerScheduler()
	q := queue.New(store, process, queue.Options{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBase,
		MaxDelay:   cfg.RetryCap,
	}, log)
	q.OnAbandon(func(action model.PendingAction) {
		hub.Broadcast(ws.ActionAbandonedNotice{
			Event:      ws.EventActionAbandoned,
			ActionID:   action.ID,
			ActionType: string(action.Type),
			RetryCount: action.RetryCount,
		})
	})
	if cfg.SyncURL != "" {
		q.SetOnline(true)
		q.StartPeriodicSync(scheduler, cfg.SyncInterval)
	}

	// ─── Domain Components ─────────────────────────────────────────────
	prefsManager := prefs.New(store, log)
	userPrefs := prefsManager.Load()

	history := results.New(store, userPrefs.MaxHistorySize, log)

	reg := registry.New(log)
	if cfg.ExamsDir != "" {
		if err := reg.LoadDir(cfg.ExamsDir); err != nil {
			log.Warn().Err(err).Str("dir", cfg.ExamsDir).Msg("Exam directory scan failed")
		}
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:    handler.NewExamHandler(reg),
		Session: handler.NewSessionHandler(reg, store, scheduler, q, history, hub, cfg, log),
		Results: handler.NewResultsHandler(history),
		Prefs:   handler.NewPrefsHandler(prefsManager),
		Storage: handler.NewStorageHandler(store),
		Queue:   handler.NewQueueHandler(q),
		Notify:  handler.NewNotifyHandler(hub, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}

	// 2. Stop retry timers and disconnect notification clients.
	q.Stop()
	hub.Close()

	log.Info().Msg("Shutdown complete")
}
