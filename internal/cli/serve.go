package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"slt-training-harness/internal/adapters/primary/http/handlers"
	"slt-training-harness/internal/adapters/primary/http/middleware"
	"slt-training-harness/internal/adapters/secondary/postgres"
	"slt-training-harness/internal/core/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run registry HTTP API",
	Long: `Serve exposes the training run registry over HTTP, backed by
PostgreSQL. Cluster nodes report stage starts, exits and BLEU scores here so
experiment progress is queryable across the cluster.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(cmd.Context(), poolCfg)
		if err != nil {
			return fmt.Errorf("create db pool: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("ping db: %w", err)
		}
		log.Info("database connection established")

		runSvc := services.NewRunService(postgres.NewRunRepository(pool))
		h := handlers.New(runSvc)

		router := gin.New()
		router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())

		api := router.Group("/api/v1/harness")
		h.RegisterRoutes(api)

		// Health check with DB ping
		router.GET("/healthz", func(c *gin.Context) {
			if err := pool.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Infof("starting server on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-cmd.Context().Done():
		}

		log.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced shutdown: %w", err)
		}

		log.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
