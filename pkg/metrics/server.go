package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// StartServer exposes m at /metrics on its own port so scrapes bypass the
// API middleware. It returns once the listener is bound; the returned
// function shuts the server down.
func StartServer(port int, m *Metrics) (shutdown func(context.Context) error) {
	logger := slog.Default().With("component", "metrics-server")
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Error("metrics listener failed, metrics not exported", "addr", server.Addr, "error", err)
		return func(context.Context) error { return nil }
	}
	logger.Info("metrics server listening", "addr", ln.Addr().String())
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return server.Shutdown
}
