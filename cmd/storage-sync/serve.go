package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"storage-sync/internal/api"
	"storage-sync/internal/api/handlers"
	"storage-sync/internal/auth"
	"storage-sync/internal/health"
	"storage-sync/internal/logger"
	"storage-sync/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP API and the pass scheduler until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and scheduled reconciliation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		if cfg.Sync.Enabled {
			cronScheduler := scheduler.NewScheduler(a.sync, cfg.Sync.Schedule, cfg.Sync.PassTimeout)
			if err := cronScheduler.Start(); err != nil {
				return err
			}
			defer cronScheduler.Stop()
		} else {
			logger.Info().Msg("scheduled reconciliation disabled")
		}

		router := newRouter(a)

		ln, err := net.Listen("tcp", cfg.GetBindAddress())
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:    ln.Addr().String(),
			Handler: router,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("starting server")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info().Msg("server exited")
		return nil
	},
}

func newRouter(a *app) *gin.Engine {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(api.RequestIDMiddleware())
	router.Use(api.TracingMiddleware())
	router.Use(api.LoggingMiddleware())
	router.Use(api.CORSMiddleware(a.cfg.CORS))
	router.Use(api.RecoveryMiddleware())

	healthChecker := health.NewHealthChecker(a.database, a.cfg.Database.HealthTimeout)
	router.GET("/health", healthChecker.Handler)

	syncHandler := handlers.NewSyncHandler(a.sync)
	recipientHandler := handlers.NewRecipientHandler(a.recipients)

	v1 := router.Group("/api/v1")
	v1.Use(auth.APIKeyMiddleware(a.cfg.External))
	{
		syncRoutes := v1.Group("/sync")
		{
			syncRoutes.GET("/status", syncHandler.GetSyncStatus)
			syncRoutes.POST("/trigger", syncHandler.TriggerSync)
			syncRoutes.GET("/passes", syncHandler.ListPasses)
		}

		v1.GET("/recipients/summary", recipientHandler.GetSummary)
	}

	return router
}
