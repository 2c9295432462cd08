package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"federation/logger"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// TLS is enabled when both files are set
	CertFile string
	KeyFile  string
	// Requests per client IP and window on the /auth/ routes
	AuthRate       int
	AuthRateWindow time.Duration
}

// DefaultConfig returns the server defaults for addr
func DefaultConfig(addr string) Config {
	return Config{
		Addr:            addr,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		AuthRate:        10,
		AuthRateWindow:  time.Second,
	}
}

type healthStatus struct {
	healthy atomic.Bool
}

func (hs *healthStatus) setHealth(healthy bool) {
	hs.healthy.Store(healthy)
}

func (hs *healthStatus) isHealthy() bool {
	return hs.healthy.Load()
}

func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// Server serves the SSO routes with logging, tracing, security headers and
// rate limiting on the authentication endpoints.
type Server struct {
	config Config
	server *http.Server
	health *healthStatus
	log    *logger.Logger
}

// NewServer builds the handler chain around mux. Routes under /auth/ are
// rate limited per client IP.
func NewServer(config Config, mux *http.ServeMux, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	health := &healthStatus{}
	health.setHealth(true)

	root := http.NewServeMux()
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !health.isHealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	var auth http.Handler = mux
	if config.AuthRate > 0 {
		auth = RateLimiterMiddleware(NewRateLimiter(config.AuthRate, config.AuthRateWindow))(auth)
	}
	root.Handle("/", auth)

	// Build handler chain
	var handler http.Handler = root
	handler = RecoveryMiddleware(log)(handler)
	handler = LoggingMiddleware(log)(handler)
	handler = RequestIDMiddleware(handler)
	handler = SecurityHeadersMiddleware(handler)
	handler = otelhttp.NewHandler(handler, "federation")

	server := &http.Server{
		Addr:         config.Addr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	if config.CertFile != "" && config.KeyFile != "" {
		server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
			CurvePreferences: []tls.CurveID{
				tls.X25519,
				tls.CurveP256,
			},
		}
	}

	return &Server{config: config, server: server, health: health, log: log}
}

// Handler returns the complete handler chain
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "starting http server", logger.F("addr", s.config.Addr))
		var err error
		if s.server.TLSConfig != nil {
			err = s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Mark as unhealthy during shutdown
	s.health.setHealth(false)
	s.log.Info(context.Background(), "server is shutting down")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info(context.Background(), "server exited properly")
	return nil
}
