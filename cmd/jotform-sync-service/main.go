// jotform-sync-service runs member imports off the request path: it serves the
// Pub/Sub push endpoint and, when JOTFORM_SYNC_INTERVAL_MIN > 0, polls every
// active form incrementally on that interval.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/jotformsync"
	"github.com/stageworks/roster_backend/middlewares"
	"github.com/stageworks/roster_backend/models"
)

const defaultPort = "8080"

func main() {
	port := config.StringFromEnv("JOTFORM_SYNC_PORT", config.StringFromEnv("PORT", defaultPort))
	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())
	r.POST("/pubsub/jotform-import", jotformsync.PubSubPushHandler())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !config.EnvBoolDefault("SKIP_MIGRATIONS", false) {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	pollCtx, cancelPoll := context.WithCancel(context.Background())
	defer cancelPoll()
	if interval := config.IntFromEnv("JOTFORM_SYNC_INTERVAL_MIN", 0); interval > 0 {
		go poll(pollCtx, logger, time.Duration(interval)*time.Minute)
	}

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
	cancelPoll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// poll runs an incremental import for every active form on each tick.
func poll(ctx context.Context, logger *logrus.Logger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		settings, err := models.ListIntegrationSettings(ctx)
		if err != nil {
			config.LogError(logger, "jotform-sync-service", "poll", "ListIntegrationSettings", nil, err)
			continue
		}
		for _, s := range settings {
			if !s.Active() {
				continue
			}
			result, err := jotformsync.RunImport(ctx, jotformsync.ImportOptions{
				FormID:      s.FormId,
				Incremental: true,
				TriggeredBy: "scheduler",
			})
			if err != nil {
				config.LogError(logger, "jotform-sync-service", "poll", "RunImport", s.FormId, err)
				continue
			}
			logger.WithFields(logrus.Fields{
				"formId":   s.FormId,
				"logId":    result.LogId,
				"imported": result.ImportedCount,
				"errors":   result.ErrorCount,
			}).Info("scheduled import finished")
		}
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}
