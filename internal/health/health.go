// Package health serves liveness and readiness probes over HTTP and gRPC.
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Checker is a dependency that can be probed.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

// Ping implements Checker.
func (f CheckFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Check is a named readiness dependency.
type Check struct {
	Name    string
	Checker Checker
}

// DefaultTimeout bounds one readiness probe.
const DefaultTimeout = time.Second

// Ready runs checks in order and returns the name of the first failing one.
func Ready(ctx context.Context, checks []Check) (string, error) {
	ctxPing, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	for _, c := range checks {
		if c.Checker == nil {
			continue
		}
		if err := c.Checker.Ping(ctxPing); err != nil {
			return c.Name, err
		}
	}
	return "", nil
}

// Handler serves /healthz and /readyz.
func Handler(checks ...Check) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if name, err := Ready(r.Context(), checks); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(name + " not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

// MetricsHandler exposes the default Prometheus registry at /metrics.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve runs an HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr, name string, handler http.Handler, logger *zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	if logger != nil {
		logger.Info().Str("addr", addr).Msgf("%s server listening", name)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if logger != nil {
			logger.Error().Err(err).Msgf("%s server error", name)
		}
		return err
	}
	return nil
}
