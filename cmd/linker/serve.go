package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	v1 "go_domainlink/api/v1"
	"go_domainlink/internal/config"
	"go_domainlink/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 20 * time.Second

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the Socket.IO channel and the verification sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	disconnect, err := connect(cfg)
	if err != nil {
		return err
	}
	defer disconnect()

	socket := ws.NewServer(logrus.NewEntry(logrus.StandardLogger()))
	a, err := buildApp(cfg, ws.NewSocketMessenger(socket))
	if err != nil {
		return err
	}

	socket.RegisterStatusHandlers(a.orchestrator)
	socket.Start()
	a.worker.Start()

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	v1.SetupRouter(r, v1.RouterDeps{
		Linking:  a.orchestrator,
		Socket:   socket.Handler(),
		Gatherer: a.registry,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("✓ Server starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logrus.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logrus.Errorf("HTTP server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("HTTP shutdown: %v", err)
	}
	a.worker.Stop()
	if err := a.orchestrator.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Orchestrator shutdown: %v", err)
	}
	if err := socket.Close(); err != nil {
		logrus.Warnf("Socket.IO shutdown: %v", err)
	}

	logrus.Info("✓ Server stopped")
	return nil
}
