package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	httpadapter "github.com/invoicestack/invoice-processor/internal/adapters/http"
	"github.com/invoicestack/invoice-processor/internal/bootstrap"
	"github.com/invoicestack/invoice-processor/internal/config"
)

const serviceName = "invoice-api"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		app.CreateUC,
		app.ImportUC,
		app.ProcessUC,
		app.QueryUC,
		app.AdminUC,
		app.Documents,
		app.Blobs,
		httpadapter.Options{
			Logger:             app.Logger,
			RateLimitPerSecond: cfg.RateLimitPerSecond,
			RateLimitBurst:     cfg.RateLimitBurst,
			MaxInFlight:        cfg.MaxInFlight,
			MaxBodyBytes:       cfg.MaxBodyBytes,
			MetricsHandler:     app.MetricsHandler(),
			MetricsMiddleware: func(next http.Handler) http.Handler {
				return app.HTTPMetrics.Middleware(serviceName, next)
			},
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var scheduler *cron.Cron
	if cfg.ScheduledImportEnabled {
		var running atomic.Bool
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.ImportSchedule, func() {
			if !running.CompareAndSwap(false, true) {
				app.Logger.Warn("previous import still running, skipping this tick")
				return
			}
			defer running.Store(false)

			runCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
			defer cancel()
			report, err := app.ImportUC.ImportUnread(runCtx)
			if err != nil {
				app.Logger.Error("scheduled import failed", "error", err)
				return
			}
			app.Logger.Info("scheduled import finished",
				"emails_found", report.EmailsFound,
				"stacks_created", report.StacksCreated,
				"documents_created", report.DocumentsCreated,
				"errors", report.Errors,
			)
		})
		if err != nil {
			log.Fatalf("invalid import schedule %q: %v", cfg.ImportSchedule, err)
		}
		scheduler.Start()
		app.Logger.Info("scheduled import enabled", "schedule", cfg.ImportSchedule)
	}

	go func() {
		app.Logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api shutdown error", "error", err)
	}
}
