// Package chassis provides the HTTP server shell: TLS setup, security
// headers, and graceful shutdown.
//
// With TLS enabled the server speaks HTTP/1.1 and HTTP/2. In development
// mode a self-signed ECDSA P-256 cert is generated automatically; in
// production, supply cert/key files via config. Plaintext HTTP is available
// for local runs behind a trusted proxy.
package chassis

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
)

// Server wraps an http.Server with the service's TLS and header policy.
type Server struct {
	addr       string
	logger     *slog.Logger
	tlsCfg     *tls.Config
	handler    http.Handler
	httpServer *http.Server
	mu         sync.Mutex
}

// Config holds configuration for the chassis server.
type Config struct {
	Addr     string       // listen address, e.g. ":8080"
	TLS      *tls.Config  // explicit TLS config; overrides the fields below
	CertFile string       // production cert path
	KeyFile  string       // production key path
	Insecure bool         // serve plaintext HTTP (local/dev only)
	Handler  http.Handler // the API router
	Logger   *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	tlsCfg := cfg.TLS
	if tlsCfg == nil && !cfg.Insecure {
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			var err error
			tlsCfg, err = ProductionTLSConfig(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("load TLS cert: %w", err)
			}
			cfg.Logger.Info("TLS: production certs loaded")
		} else {
			var err error
			tlsCfg, err = DevelopmentTLSConfig()
			if err != nil {
				return nil, fmt.Errorf("generate dev TLS: %w", err)
			}
			cfg.Logger.Info("TLS: self-signed dev cert generated")
		}
	}

	return &Server{
		addr:    cfg.Addr,
		logger:  cfg.Logger,
		tlsCfg:  tlsCfg,
		handler: cfg.Handler,
	}, nil
}

// securityHeaders wraps an http.Handler and adds standard security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		next.ServeHTTP(w, r)
	})
}

// Start launches the listener and blocks until ctx is cancelled or the
// server fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:      s.addr,
		Handler:   securityHeaders(s.handler),
		TLSConfig: s.tlsCfg,
	}
	srv := s.httpServer
	s.mu.Unlock()

	scheme := "https"
	if s.tlsCfg == nil {
		scheme = "http"
	}
	s.logger.Info("server started", "addr", s.addr, "scheme", scheme)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.tlsCfg != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("server stopping")
	err := s.httpServer.Shutdown(ctx)
	s.logger.Info("server stopped")
	return err
}
