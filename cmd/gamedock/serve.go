package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/tinoosan/gamedock/api/v1"
	"github.com/tinoosan/gamedock/internal/metrics"
	"github.com/tinoosan/gamedock/internal/router"
	"github.com/tinoosan/gamedock/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and event stream",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.Close()
	hub := stream.NewHub(rt.log.With("component", "stream"))
	rt.app.Presenter = hub

	if rt.cfg.APIToken == "" {
		rt.log.Warn("api_token is empty; the API is unauthenticated")
	}

	api := v1.NewHandler(rt.log, rt.app.Titles, rt.host, hub, rt.source)
	server := &http.Server{
		Addr: rt.cfg.ListenAddr,
		Handler: router.New(rt.log, router.Deps{
			Token:  rt.cfg.APIToken,
			API:    api,
			Ready:  rt.host,
			Events: hub,
		}),
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := rt.initialize(ctx); err != nil {
			rt.log.Error("initial catalog load", "err", err)
		}
		rt.host.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		rt.log.Info("starting gamedock API", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	rt.log.Info("received terminate, graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
