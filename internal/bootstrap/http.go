package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	httpx "github.com/tailorhq/resume-tailor-api/internal/http"
)

const httpShutdownTimeout = 10 * time.Second

// runHTTPServer starts the HTTP server on the errgroup and wires graceful
// shutdown to the group context.
func runHTTPServer(ctx context.Context, g *errgroup.Group, deps *ServiceDeps, container *ServiceContainer) {
	router := httpx.NewRouter(httpx.RouterServices{
		Jobs:           container.Jobs,
		Results:        container.Results,
		Blobs:          container.Blobs,
		Cache:          container.Cache,
		MaxUploadBytes: deps.Config.HTTP.MaxUploadBytes,
		Logger:         deps.Logger,
	})

	server := &http.Server{
		Addr:         deps.Config.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  deps.Config.HTTP.ReadTimeout,
		WriteTimeout: deps.Config.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g.Go(func() error {
		if deps.Logger != nil {
			deps.Logger.InfoContext(ctx, "starting HTTP server", "addr", server.Addr)
		}
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
