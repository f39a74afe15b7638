// Package server exposes the workflow engine as a JSON API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/metrics"
	"github.com/zulandar/docket/internal/workflow"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	Service *workflow.Service
	Auth    identity.Provider
	Port    int
	Out     io.Writer
}

// NewRouter builds the API router.
func NewRouter(svc *workflow.Service, auth identity.Provider) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.Middleware())
	router.MaxMultipartMemory = maxUploadBytes
	registerRoutes(router, svc, auth)
	return router
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Service == nil {
		return fmt.Errorf("server: service is required")
	}
	if opts.Auth == nil {
		return fmt.Errorf("server: identity provider is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           NewRouter(opts.Service, opts.Auth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Docket API listening on http://localhost:%d\n", opts.Port)
	}
	logrus.WithField("port", opts.Port).Info("server: started")

	err := srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	<-done
	logrus.Info("server: stopped")
	return nil
}
