// cmd/serialkit/app.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"serialkit/internal/config"
	"serialkit/internal/routes"
	"serialkit/internal/utils"
	"serialkit/pkg/serialkit"
)

// Application is the HTTP bridge around one serial connection
type Application struct {
	config *config.Config
	logger *zap.Logger
	conn   *serialkit.Connection
	server *http.Server
}

// NewApplication creates the connection and the HTTP server. A port that
// fails to open is logged and left closed; POST /api/v1/connect retries it.
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	connCfg, err := connectionConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	conn, err := serialkit.New(connCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize serial connection: %w", err)
	}

	if err := conn.Open(); err != nil {
		logger.Warn("Serial port not available at startup", zap.Error(err))
	}

	app := &Application{
		config: cfg,
		logger: logger,
		conn:   conn,
	}

	router := routes.NewRouter(cfg, logger, conn).SetupRouter()
	app.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("HTTP bridge initialized", zap.String("address", app.server.Addr))
	return app, nil
}

// Start serves until SIGINT or SIGTERM
func (app *Application) Start() error {
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		app.shutdown()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	app.shutdown()
	return nil
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	utils.NewServiceLogger(app.logger, app.config.App.Name).LogServiceStop("shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := app.conn.Disconnect(); err != nil {
		app.logger.Error("Serial port close error", zap.Error(err))
	}

	app.logger.Info("Application shutdown completed")
}
