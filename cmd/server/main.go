package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"vigil/internal/audit"
	auditmetrics "vigil/internal/audit/metrics"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/kafka"
	"vigil/internal/platform/logger"
	platformredis "vigil/internal/platform/redis"
	"vigil/internal/readiness"
	"vigil/internal/store"
	"vigil/internal/translate"
	translatemetrics "vigil/internal/translate/metrics"
	httptransport "vigil/internal/transport/http"
	"vigil/internal/validation"
	"vigil/internal/validation/cache"
	validationmetrics "vigil/internal/validation/metrics"
)

// main wires the gateway: stores, cache, both validators, the audit
// pipeline, and the HTTP surface. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	checks := map[string]httptransport.HealthCheck{}

	// Credential and tenant store. Empty Postgres URL keeps everything in
	// memory for local development.
	var (
		credStore  store.Store
		pg         *store.Postgres
		memStore   *store.Memory
		auditStore audit.Store
	)
	if cfg.Postgres.URL != "" {
		pg, err = store.NewPostgres(cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		credStore = pg
		auditStore = audit.NewPostgresStore(pg.DB())
		checks["postgres"] = pg.Health
	} else {
		memStore = store.NewMemory()
		credStore = memStore
		auditStore = audit.NewMemoryStore()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
	}

	var (
		decisionCache validation.Cache
		cacheStats    readiness.CacheStats
	)
	if cfg.Cache.Backend == "redis" {
		redisCache := cache.NewRedis(redisClient, cfg.Cache.KeyPrefix, log)
		decisionCache, cacheStats = redisCache, redisCache
	} else {
		memoryCache := cache.NewMemory()
		decisionCache, cacheStats = memoryCache, memoryCache
	}

	// Revocations must not keep answering from cache.
	if memStore != nil {
		memStore.OnRevoke(func(fingerprint string) {
			decisionCache.Invalidate(context.Background(), fingerprint)
		})
	}

	resolver := validation.NewResolver(credStore, []byte(cfg.SessionSigningKey))
	legacy := validation.NewLegacyValidator(resolver)

	policies, err := validation.NewPolicyTable(cfg.Risk.ResourcePolicy)
	if err != nil {
		log.Error("invalid resource policy", "error", err)
		os.Exit(1)
	}
	enhanced := validation.NewEnhancedValidator(resolver, decisionCache, credStore, policies, validation.EnhancedPolicy{
		ExtensionThreshold: cfg.Extension.ThresholdFraction,
		ExtensionWindow:    cfg.Extension.Window,
		RiskCeiling:        cfg.Risk.Ceiling,
		CacheTTL:           cfg.Cache.TTL,
	}, log)

	translator, err := translate.New(translatemetrics.New())
	if err != nil {
		log.Error("error translation mapping incomplete", "error", err)
		os.Exit(1)
	}

	// Audit pipeline: non-blocking publish, background persistence, optional
	// Kafka mirror.
	auditMetrics := auditmetrics.New()
	inbox := make(chan audit.ComparisonRecord, cfg.Audit.BufferSize)
	overflow := audit.NewRingBuffer(cfg.Audit.OverflowCapacity)
	breaker := audit.NewCircuitBreaker(cfg.Audit.BreakerThreshold, cfg.Audit.BreakerCooldown)
	publisher := audit.NewPublisher(inbox, overflow, auditMetrics)

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Error("kafka unavailable", "error", err)
		os.Exit(1)
	}
	var mirror audit.Mirror
	if producer != nil {
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			producer.Close(flushCtx)
		}()
		mirror = audit.NewKafkaMirror(producer, log)
	}

	worker := audit.NewWorker(auditStore, inbox, overflow, breaker, mirror, log, auditMetrics)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	orchestrator := validation.NewOrchestrator(
		legacy,
		enhanced,
		translator,
		publisher,
		validationmetrics.New(),
		log,
		otel.Tracer("vigil/validation"),
		cfg.ValidatorTimeout,
		cfg.PromoteEnhanced,
	)
	evaluator := readiness.New(auditStore, cacheStats, cfg.Readiness)

	router := httptransport.NewRouter(
		httptransport.NewValidateHandler(orchestrator),
		httptransport.NewReadinessHandler(evaluator, time.Hour),
		checks,
	)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting vigil",
		"addr", cfg.Addr,
		"promote_enhanced", cfg.PromoteEnhanced,
		"cache_backend", cfg.Cache.Backend,
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Stop the audit worker only after the server no longer produces
	// records; its final drain flushes whatever is still buffered.
	stopWorker()
	select {
	case <-workerDone:
	case <-time.After(10 * time.Second):
		log.Warn("audit worker drain timed out")
	}
}
