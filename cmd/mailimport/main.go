package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/invoicestack/invoice-processor/internal/bootstrap"
	"github.com/invoicestack/invoice-processor/internal/config"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/mail/imap"
)

const serviceName = "invoice-mailimport"

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	fwd := newForwarder(
		imap.NewProvider(app.Endpoints, app.Logger),
		cfg.BackendURL,
		app.Logger,
		cfg.MailTimeout(),
	)

	// Guards against overlapping runs when one import outlives the
	// schedule interval.
	var running atomic.Bool
	runForward := func() {
		if !running.CompareAndSwap(false, true) {
			app.Logger.Warn("previous forward run still in progress, skipping this tick")
			return
		}
		defer running.Store(false)

		runCtx, cancel := context.WithTimeout(ctx, 15*time.Minute)
		defer cancel()
		fwd.Run(runCtx)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ImportSchedule, runForward); err != nil {
		log.Fatalf("invalid import schedule %q: %v", cfg.ImportSchedule, err)
	}

	app.Logger.Info("mail forwarder started", "schedule", cfg.ImportSchedule, "backend", cfg.BackendURL)
	runForward()
	scheduler.Start()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		app.Logger.Warn("timed out waiting for running forward job")
	}
}
