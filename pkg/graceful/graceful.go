// Package graceful coordinates orderly shutdown of the HTTP server,
// background workers, and shared connections on SIGINT/SIGTERM.
package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Shutdowner is implemented by components that need orderly teardown
type Shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// ShutdownManager drains components in registration order, then the
// HTTP server, then the database.
type ShutdownManager struct {
	server      *http.Server
	db          *sqlx.DB
	shutdowners []Shutdowner
	logger      *zap.Logger
}

// NewShutdownManager creates a shutdown manager
func NewShutdownManager(server *http.Server, db *sqlx.DB, logger *zap.Logger) *ShutdownManager {
	return &ShutdownManager{
		server: server,
		db:     db,
		logger: logger,
	}
}

// Register adds a component to drain before the server stops
func (sm *ShutdownManager) Register(s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, s)
}

// WaitForShutdown blocks until a termination signal, then drains everything
func (sm *ShutdownManager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sm.logger.Info("shutting down")

	timeout := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, s := range sm.shutdowners {
		if err := s.Shutdown(timeout); err != nil {
			sm.logger.Warn("component shutdown error", zap.Error(err))
		}
	}

	if err := sm.server.Shutdown(ctx); err != nil {
		sm.logger.Error("server forced shutdown", zap.Error(err))
	}

	if sm.db != nil {
		if err := sm.db.Close(); err != nil {
			sm.logger.Warn("database close error", zap.Error(err))
		}
	}

	sm.logger.Info("shutdown complete")
}
