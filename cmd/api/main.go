package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wharfhook/wharfhook/internal/audit"
	"github.com/wharfhook/wharfhook/internal/auth"
	"github.com/wharfhook/wharfhook/internal/config"
	"github.com/wharfhook/wharfhook/internal/db"
	"github.com/wharfhook/wharfhook/internal/delivery"
	"github.com/wharfhook/wharfhook/internal/health"
	"github.com/wharfhook/wharfhook/internal/ingest"
	"github.com/wharfhook/wharfhook/internal/logging"
	"github.com/wharfhook/wharfhook/internal/metrics"
	"github.com/wharfhook/wharfhook/internal/subscription"
	"github.com/wharfhook/wharfhook/internal/tracing"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("wharfhook-api")

	shutdown, err := tracing.InitTracing(ctx, "wharfhook-api")
	if err != nil {
		logger.Plain().WithError(err).Fatal("Failed to initialize tracing")
	}
	defer shutdown()

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	producer, err := nsq.NewProducer(cfg.NSQ.NsqdTCPAddr, nsq.NewConfig())
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq producer creation failed")
	}
	defer producer.Stop()

	store := subscription.NewStore(pool)
	cache := subscription.NewCache(store, cfg.Cache.Capacity, cfg.Cache.TTL)
	auditStore := audit.NewStore(pool)
	queue := delivery.NewQueue(producer, cfg.NSQ.TasksTopic)
	svc := ingest.NewService(store, cache, queue, auditStore, logger)

	// Management routes are only guarded when a key is configured; local runs
	// stay open.
	var authMW gin.HandlerFunc
	if cfg.Auth.PublicKeyPEM != "" {
		validator, err := auth.NewJWTValidator(cfg.Auth.PublicKeyPEM, cfg.Auth.Issuer, cfg.Auth.Audience)
		if err != nil {
			logger.Plain().WithError(err).Fatal("jwt validator creation failed")
		}
		authMW = validator.GinMiddleware()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	svc.Register(router, authMW)
	router.GET("/healthz", gin.WrapF(health.HTTPHandler(pool, producer)))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpSrv := &http.Server{Addr: cfg.HTTPPort, Handler: router}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("api server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("api server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("Shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	logger.Plain().Info("api server stopped")
}
