package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reportstack/export-worker/pkg/common/config"
	"github.com/reportstack/export-worker/pkg/common/database"
	"github.com/reportstack/export-worker/pkg/common/kafka"
	"github.com/reportstack/export-worker/pkg/common/logger"
	"github.com/reportstack/export-worker/pkg/export"
)

func main() {
	logger.Init("info")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid configuration")
	}
	logger.Init(cfg.LogLevel)

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	repo := export.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate export status table")
	}

	var dedup *export.DedupCache
	if cfg.RedisAddr != "" {
		redisClient := database.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer database.CloseRedis(redisClient)
		dedup = export.NewDedupCache(redisClient, cfg.DedupTTL)
	}

	schema, err := export.LoadSchema(cfg.ReportSchemaPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load report schema")
	}

	notifier := export.NewHTTPNotifier(cfg.NotificationURL, export.NotifierAuth{
		TokenURL:     cfg.OAuthTokenURL,
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
	})

	svc := export.NewService(
		repo,
		export.NewProductSource(db),
		export.NewExcelRenderer(schema),
		export.NewLocalStore(cfg.ExportPath),
		notifier,
		dedup,
		export.NewRetryPolicy(cfg.MaxAttempts, cfg.RetryInitialDelay, cfg.RetryMaxDelay),
		cfg.RequestTimeout,
		cfg.NotificationURL,
	)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	var dlq export.DeadLetter
	if cfg.KafkaDLQTopic != "" {
		producer := kafka.NewDeadLetterProducer(cfg.KafkaBrokers, cfg.KafkaDLQTopic)
		defer producer.Close()
		dlq = producer
	}

	intake := export.NewIntake(consumer, dlq, svc, cfg.WorkerCount)

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.MetricsListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.MetricsListenAddr).Info("metrics endpoint started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start metrics server")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.WithFields(map[string]interface{}{
			"topic":   cfg.KafkaTopic,
			"group":   cfg.KafkaGroupID,
			"workers": cfg.WorkerCount,
		}).Info("export worker started")

		if err := intake.Run(ctx); err != nil && err != context.Canceled {
			logger.Log.WithError(err).Error("intake loop terminated")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down export worker...")
	cancel()
	<-done

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("metrics server forced to shutdown")
	}

	logger.Log.Info("Export worker stopped")
}
