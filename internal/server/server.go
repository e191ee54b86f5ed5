package server

import (
	"chat-functions/internal/functions"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	afterShutdown []func()
}

// NewServer returns new Server serving callable functions of provided accounts and messages
func NewServer(logger *zap.SugaredLogger, accounts *functions.Accounts, messages *functions.Messages, opts ...Option) (*Server, error) {
	h := &handler{
		logger:   logger,
		accounts: accounts,
		messages: messages,
	}

	c := &config{
		httpServer: &http.Server{Addr: ":9000"},
		handlers: map[string]http.Handler{
			"/register":     http.HandlerFunc(h.register),
			"/login":        http.HandlerFunc(h.login),
			"/logout":       http.HandlerFunc(h.logout),
			"/renameUserId": http.HandlerFunc(h.renameUserID),
			"/updateUserId": http.HandlerFunc(h.renameUserID),
			"/postMessage":  http.HandlerFunc(h.postMessage),
			"/addMessage":   http.HandlerFunc(h.postMessage),
			"/getChat":      http.HandlerFunc(h.getChat),
		},
	}

	for _, opt := range opts {
		opt.apply(c)
	}

	for _, opt := range []Option{
		applyEnforcePostJson(),
		applyLog(logger.Desugar()),
		applyMetrics(),
		registerHandlers(map[string]http.Handler{"/metrics": promhttp.Handler()}),
	} {
		opt.apply(c)
	}

	return &Server{
		logger:        logger,
		httpServer:    c.httpServer,
		afterShutdown: c.afterShutdown,
	}, nil
}

// Handler returns the root http.Handler of the server
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
