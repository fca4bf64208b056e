package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	metricsPath       = "/metrics"
	readHeaderTimeout = 5 * time.Second
)

// ServeMetrics serves handler on addr under /metrics until ctx is done.
func ServeMetrics(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, handler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx) //nolint:contextcheck // ctx is already done.
	}()

	logger.InfoContext(ctx, "serving metrics", "addr", addr, "path", metricsPath)

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
