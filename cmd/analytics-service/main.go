package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/franchise_analytics/analytics"
	"github.com/mmdatafocus/franchise_analytics/config"
	"github.com/mmdatafocus/franchise_analytics/jobs"
	"github.com/mmdatafocus/franchise_analytics/models"
	"github.com/mmdatafocus/franchise_analytics/utils"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := config.GetLogger()
	cfg, err := config.LoadAnalyticsConfig()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "config"}).Fatal(err)
	}
	port := cfg.Port
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Filled in once the database is up; requests before that get 503.
	var trigger jobs.Trigger
	ready := make(chan struct{})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		select {
		case <-ready:
			c.Next()
		default:
			c.AbortWithStatus(http.StatusServiceUnavailable)
		}
	})
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	if cfg.EnablePushEndpoint {
		r.POST("/pubsub/analytics-runs", func(c *gin.Context) {
			jobs.PushHandler(trigger, analytics.SystemClock{})(c)
		})
	}
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
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		config.ConnectRedisWithRetry()
	} else {
		logger.WithFields(logrus.Fields{"field": "redis"}).Warn("REDIS_ADDRESS not set; using in-process franchise locks only")
	}

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err)
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if cfg.CreateTopic {
		if client, err := config.GetClient(sigCtx); err != nil {
			config.LogError(logger, "main", "main", "pubsub client", cfg.Topic, err)
		} else if _, err := config.CreateTopicIfNotExists(sigCtx, client, cfg.Topic); err != nil {
			config.LogError(logger, "main", "main", "create topic", cfg.Topic, err)
		}
	}

	svc := analytics.NewServiceFromConfig(models.NewAnalyticsStore(db), cfg, analytics.SystemClock{})
	trigger = svc
	close(ready)

	scheduler := jobs.NewScheduler(svc, analytics.SystemClock{}, logger, jobs.DefaultSchedules(cfg))
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(sigCtx)
	}()

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
		stopSignals()
	}
	<-schedulerDone
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
