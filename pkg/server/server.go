// Package server runs the HTTP server with gzip compression, panic recovery
// and a graceful shutdown that drains in-flight requests first.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"

	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/middleware"
)

// Config configures a Server. Zero durations take the defaults of New.
type Config struct {
	Addr    string
	Handler http.Handler

	// GZIP compresses responses for clients that accept it
	GZIP bool

	// SSLCert and SSLKey enable TLS when both are set
	SSLCert string
	SSLKey  string

	ShutdownTimeout time.Duration
	DrainTimeout    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// Server is an http.Server that refuses new requests once shutdown starts
// and waits for running ones before closing.
type Server struct {
	cfg    Config
	server *http.Server

	listener     net.Listener
	inFlight     atomic.Int64
	shuttingDown atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
	done         chan struct{}
	serveErr     chan error

	mu        sync.Mutex
	callbacks []func(context.Context) error
}

// New builds the server and its handler chain.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("server handler cannot be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	setDefault(&cfg.ShutdownTimeout, 30*time.Second)
	setDefault(&cfg.DrainTimeout, 25*time.Second)
	setDefault(&cfg.ReadTimeout, 10*time.Second)
	setDefault(&cfg.WriteTimeout, 10*time.Second)
	setDefault(&cfg.IdleTimeout, 120*time.Second)

	s := &Server{cfg: cfg, done: make(chan struct{}), serveErr: make(chan error, 1)}

	handler := cfg.Handler
	if cfg.GZIP {
		gz, err := gzhttp.NewWrapper(gzhttp.CompressionLevel(gzip.BestSpeed))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip wrapper: %w", err)
		}
		handler = gz(handler)
	}
	handler = middleware.PanicRecovery(handler)
	handler = s.track(handler)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

func setDefault(d *time.Duration, v time.Duration) {
	if *d == 0 {
		*d = v
	}
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.shuttingDown.Load() {
			w.Header().Set("Connection", "close")
			http.Error(w, `{"errorMessage":"server is shutting down"}`, http.StatusServiceUnavailable)
			return
		}
		s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		next.ServeHTTP(w, r)
	})
}

// OnShutdown registers fn to run after the HTTP server has stopped, e.g.
// closing database connections. Callbacks run in registration order.
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = l
	tlsOn := s.cfg.SSLCert != "" && s.cfg.SSLKey != ""
	logger.Info("Starting server on %s (tls=%v)", l.Addr(), tlsOn)

	go func() {
		var err error
		if tlsOn {
			err = s.server.ServeTLS(l, s.cfg.SSLCert, s.cfg.SSLKey)
		} else {
			err = s.server.Serve(l)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr <- err
		}
		close(s.serveErr)
	}()
	return nil
}

// Addr returns the listening address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Run starts the server and blocks until ctx is done or serving fails; a
// cancelled ctx triggers a graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	select {
	case err, ok := <-s.serveErr:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown requested: %v", context.Cause(ctx))
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting requests, waits up to the drain timeout for
// in-flight requests, stops the server and runs the shutdown callbacks.
// Only the first call has an effect.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.shuttingDown.Store(true)
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		drainCtx, drainCancel := context.WithTimeout(shutdownCtx, s.cfg.DrainTimeout)
		errs := []error{s.drain(drainCtx)}
		drainCancel()

		errs = append(errs, s.server.Shutdown(shutdownCtx))

		s.mu.Lock()
		callbacks := append([]func(context.Context) error(nil), s.callbacks...)
		s.mu.Unlock()
		for _, cb := range callbacks {
			if err := cb(shutdownCtx); err != nil {
				logger.Error("Shutdown callback failed: %v", err)
				errs = append(errs, err)
			}
		}
		s.shutdownErr = errors.Join(errs...)
		logger.Info("Graceful shutdown complete")
		close(s.done)
	})
	return s.shutdownErr
}

func (s *Server) drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		n := s.inFlight.Load()
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			logger.Warn("Drain timeout exceeded with %d requests still in flight", n)
			return fmt.Errorf("drain timeout exceeded: %d requests still in flight", n)
		case <-ticker.C:
		}
	}
}

// InFlightRequests returns the number of requests being served
func (s *Server) InFlightRequests() int64 {
	return s.inFlight.Load()
}

// IsShuttingDown reports whether Shutdown has been called
func (s *Server) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Wait blocks until Shutdown has completed
func (s *Server) Wait() {
	<-s.done
}

// HealthHandler answers 200 until shutdown starts, then 503.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.IsShuttingDown() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"shutting_down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}
}

// ReadinessHandler reports readiness and the in-flight request count.
func (s *Server) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.IsShuttingDown() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"ready":false,"reason":"shutting_down"}`))
			return
		}
		fmt.Fprintf(w, `{"ready":true,"in_flight_requests":%d}`, s.InFlightRequests())
	}
}
