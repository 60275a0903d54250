package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Nowayz/WebSocket-Application-Relay/internal/httpapi"
	"github.com/Nowayz/WebSocket-Application-Relay/internal/relay"
)

// Server holds the relay's HTTPS + WebSocket listener: one Echo app,
// serving both the /relay upgrade route and the REST census/health
// routes, behind a self-signed TLS certificate.
type Server struct {
	addr        string
	tlsConfig   *tls.Config
	api         *httpapi.Server
	idleTimeout time.Duration
}

// NewServer constructs a Server. admission may be nil to disable
// admission-rate limiting.
func NewServer(addr string, tlsConfig *tls.Config, r *relay.Relay, admission *rate.Limiter, idleTimeout time.Duration) *Server {
	return &Server{
		addr:        addr,
		tlsConfig:   tlsConfig,
		api:         httpapi.New(r, admission),
		idleTimeout: idleTimeout,
	}
}

// Run starts the HTTPS + WebSocket server and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.addr,
		Handler:           s.api.Echo(),
		TLSConfig:         s.tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       s.idleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[server] shutdown: %v", err)
		}
	}()

	log.Printf("[server] listening on %s", s.addr)

	err := httpSrv.ListenAndServeTLS("", "")
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
