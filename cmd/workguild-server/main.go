package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc"

	server "github.com/kazz187/workguild/internal"
	"github.com/kazz187/workguild/internal/api"
	"github.com/kazz187/workguild/internal/app"
	"github.com/kazz187/workguild/internal/config"
	"github.com/kazz187/workguild/internal/pushnotification"
)

func main() {
	if err := run(); err != nil {
		slog.Error("workguild-server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	app.SetupLogger(env, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := app.NewStorage(ctx, env.StorageEnv)
	if err != nil {
		return err
	}
	a, err := app.New(env, store)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("close storage", "error", err)
		}
	}()

	sender := pushnotification.NewSender(&env.VAPIDEnv, a.PushSubs, a.Metrics)
	if !sender.Enabled() {
		slog.Warn("VAPID keys not configured, push delivery disabled")
	}
	dispatcher := pushnotification.NewDispatcher(a.Bus, a.Notifications, sender)

	handler := api.NewHandler(a.Orchestrator, a.Tracker, a.Users, a.Skills, a.Notifications, a.PushSubs, &env.VAPIDEnv)
	srv := server.NewServer(env, handler, a.Metrics)

	// serveErr is buffered so the listener goroutine never blocks on it.
	serveErr := make(chan error, 1)
	var wg conc.WaitGroup
	wg.Go(func() { a.Orchestrator.Start(ctx) })
	wg.Go(func() { dispatcher.Start(ctx) })
	wg.Go(func() {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	})

	<-ctx.Done()
	slog.Info("shutting down", "timeout", env.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	wg.Wait()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	default:
		return nil
	}
}
