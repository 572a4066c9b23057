package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/log"
	"github.com/cuemby/hardwared/pkg/runtime"
)

// Server wraps the /v1/hardware REST router in an http.Server with
// graceful shutdown, grounded on cloupeer-cloupeer's
// internal/cloudhub/server/http.Server Start(ctx) idiom.
type Server struct {
	httpServer *http.Server
	opts       config.APIOptions
}

// NewServer builds a Server bound to rt's configuration and registry,
// resolving bearer tokens via resolve.
func NewServer(rt *runtime.Runtime, resolve TokenResolver) (*Server, error) {
	router, err := NewRouter(rt, resolve)
	if err != nil {
		return nil, err
	}

	opts := rt.Config.API
	addr := opts.HostIP + ":" + strconv.Itoa(opts.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if opts.EnableSSLAPI {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Server{httpServer: httpServer, opts: opts}, nil
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully with a 5s deadline.
func (s *Server) Start(ctx context.Context) error {
	logger := log.WithComponent("api")
	logger.Info().Str("addr", s.httpServer.Addr).Msg("starting API server")

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.opts.EnableSSLAPI {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
