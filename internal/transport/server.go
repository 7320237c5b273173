package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/vectorize-mcp/internal/config"
)

// shutdownGrace is how long in-flight conversions get to finish on shutdown.
const shutdownGrace = 30 * time.Second

// Server wraps the http.Server that hosts the gin engine.
type Server struct {
	httpServer *http.Server
}

// NewServer configures the HTTP server. Its internal errors go to logger.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{httpServer: &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       cfg.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(logger.WriterLevel(logrus.ErrorLevel), "", 0),
	}}
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run listens and serves until the server is shut down.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Serve runs the server until ctx is done, then shuts it down gracefully.
func (s *Server) Serve(ctx context.Context, logger logrus.FieldLogger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run()
	}()

	logger.WithField("addr", s.Addr()).Info("App Started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("App Shutting Down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
