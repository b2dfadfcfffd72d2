package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kyccase/internal/kyc/alert"
	"kyccase/internal/kyc/handler"
	"kyccase/internal/kyc/lock"
	kycmetrics "kyccase/internal/kyc/metrics"
	"kyccase/internal/kyc/models"
	"kyccase/internal/kyc/ports"
	"kyccase/internal/kyc/report"
	"kyccase/internal/kyc/rescreening"
	"kyccase/internal/kyc/risk"
	"kyccase/internal/kyc/screening"
	"kyccase/internal/kyc/service"
	"kyccase/internal/kyc/store"
	"kyccase/internal/kyc/vendor"
	"kyccase/internal/platform/config"
	"kyccase/internal/platform/httpserver"
	"kyccase/internal/platform/kafka"
	"kyccase/internal/platform/logger"
	httpmetrics "kyccase/internal/platform/metrics"
	"kyccase/internal/platform/postgres"
	"kyccase/internal/platform/redis"
	audit "kyccase/pkg/platform/audit"
	"kyccase/pkg/platform/audit/publishers/compliance"
	auditmemory "kyccase/pkg/platform/audit/store/memory"
	auditpostgres "kyccase/pkg/platform/audit/store/postgres"
	"kyccase/pkg/platform/audit/worker"
	"kyccase/pkg/platform/httputil"
	"kyccase/pkg/platform/middleware/metadata"
	"kyccase/pkg/platform/middleware/requesttime"
)

// main wires the case engine, exposes the command API, and runs the
// rescreening scheduler until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.IsProduction(), cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("kyc case engine stopped", "error", err)
		os.Exit(1)
	}
}

type infra struct {
	db     *sql.DB
	redis  *redis.Client
	kafka  *kafka.Client
	health map[string]func(context.Context) error
}

func (i *infra) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("database close failed", "error", err)
		}
	}
}

func connect(ctx context.Context, cfg config.Config) (*infra, error) {
	in := &infra{health: map[string]func(context.Context) error{}}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		in.db = db
		in.health["database"] = db.PingContext
		if cfg.Database.Migrate {
			if err := store.Migrate(ctx, db); err != nil {
				in.close(slog.Default())
				return nil, err
			}
		}
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close(slog.Default())
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		in.health["redis"] = rc.Health
	}

	kcfg := kafka.Config{
		Brokers:           cfg.Kafka.Brokers,
		ClientID:          cfg.Kafka.ClientID,
		AlertTopic:        cfg.Kafka.AlertTopic,
		AuditTopic:        cfg.Kafka.AuditTopic,
		Partitions:        cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.ReplicationFactor,
	}
	kc, err := kafka.New(kcfg)
	if err != nil {
		in.close(slog.Default())
		return nil, err
	}
	if kc != nil {
		in.kafka = kc
		in.health["kafka"] = kc.Health
		if err := kc.EnsureTopics(ctx, kcfg); err != nil {
			in.close(slog.Default())
			return nil, err
		}
	}
	return in, nil
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	in, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer in.close(log)

	reg := prometheus.DefaultRegisterer
	kycMetrics := kycmetrics.New(reg)

	var (
		catalog    ports.Catalog
		auditStore audit.Store
	)
	if in.db != nil {
		catalog = store.NewPostgres(in.db)
		auditStore = auditpostgres.New(in.db)
	} else {
		log.Warn("no database configured; catalog and audit trail are in memory")
		catalog = store.NewMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}
	auditor := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)

	var (
		locker ports.SubjectLocker = lock.NewMemory()
		jobs   rescreening.JobLocker
	)
	if in.redis != nil {
		rl := lock.NewRedis(in.redis.Client, lock.WithTTL(cfg.Redis.LockTTL), lock.WithLogger(log))
		locker, jobs = rl, rl
	}

	alerts := alertSink(cfg, in.kafka, log)

	scorer, err := risk.New(riskConfig(cfg.Risk))
	if err != nil {
		return fmt.Errorf("risk config: %w", err)
	}
	client := vendor.New(vendor.Config{
		BaseURL:          cfg.Vendor.BaseURL,
		APIKey:           cfg.Vendor.APIKey,
		Timeout:          cfg.Vendor.Timeout,
		RatePerSecond:    cfg.Vendor.RatePerSecond,
		Burst:            cfg.Vendor.Burst,
		FailureThreshold: cfg.Vendor.FailureThreshold,
		Cooldown:         cfg.Vendor.Cooldown,
	}, vendor.WithMetrics(kycMetrics), vendor.WithLogger(log))
	reports := report.NewBuilder(report.WithAuditor(auditor), report.WithLogger(log))

	orch := screening.New(catalog, client, scorer, reports, locker,
		screening.WithAlerts(alerts),
		screening.WithAuditor(auditor),
		screening.WithMetrics(kycMetrics),
		screening.WithLogger(log),
	)
	svc := service.New(catalog, orch, client, reports, locker,
		service.WithAuditor(auditor),
		service.WithMetrics(kycMetrics),
		service.WithLogger(log),
	)

	if cfg.Rescreening.Enabled {
		opts := []rescreening.Option{
			rescreening.WithAlerts(alerts),
			rescreening.WithAuditor(auditor),
			rescreening.WithMetrics(kycMetrics),
			rescreening.WithLogger(log),
		}
		if jobs != nil {
			opts = append(opts, rescreening.WithJobLocker(jobs))
		}
		sched := rescreening.New(rescreening.Config{
			Concurrency:      cfg.Rescreening.Concurrency,
			RescreenInterval: cfg.Rescreening.Interval,
			ExpiryInterval:   cfg.Rescreening.ExpiryInterval,
			ExpiryWindow:     cfg.Rescreening.ExpiryWindow,
			ExpireInterval:   cfg.Rescreening.ExpireInterval,
			DryRun:           cfg.Rescreening.ExpiryDryRun,
			RetryAfter:       cfg.Rescreening.RetryAfter,
		}, catalog, orch, locker, opts...)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start rescreening scheduler: %w", err)
		}
		defer sched.Stop()
	}

	if pg, ok := auditStore.(*auditpostgres.Store); ok {
		var sink worker.Sink
		if in.kafka != nil {
			sink = kafka.TopicSink{Producer: in.kafka, Topic: cfg.Kafka.AuditTopic}
		}
		relay := worker.NewWorker(pg, sink,
			worker.WithInterval(cfg.Audit.RelayInterval),
			worker.WithBatchSize(cfg.Audit.RelayBatch),
			worker.WithLogger(log),
		)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit relay stopped", "error", err)
			}
		}()
	}

	router := newRouter(handler.New(svc, log), httpmetrics.New(reg), promhttp.Handler(), in.health)
	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	errc := make(chan error, 1)
	go func() {
		log.Info("starting kyc case engine", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func newRouter(h *handler.Handler, m *httpmetrics.HTTP, metricsHandler http.Handler, checks map[string]func(context.Context) error) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	router.Use(m.Middleware)
	router.Use(metadata.CaseMetadata, requesttime.Middleware)
	router.Get("/health", healthHandler(checks))
	router.Handle("/metrics", metricsHandler)
	h.Register(router)
	return router
}

func alertSink(cfg config.Config, kc *kafka.Client, log *slog.Logger) ports.AlertPublisher {
	logSink := alert.NewLog(log)
	if kc == nil {
		return logSink
	}
	kafkaSink := alert.NewKafka(kc, cfg.Kafka.AlertTopic)
	switch cfg.Alerts.Sink {
	case "kafka":
		return kafkaSink
	case "both":
		return alert.Fanout{logSink, kafkaSink}
	default:
		return logSink
	}
}

// riskConfig overlays configured values on the scorer defaults.
func riskConfig(rc config.RiskConfig) risk.Config {
	out := risk.DefaultConfig()
	if len(rc.Weights) > 0 {
		out.Weights = make(map[models.Factor]float64, len(rc.Weights))
		for k, v := range rc.Weights {
			out.Weights[models.Factor(k)] = v
		}
	}
	if len(rc.HighRiskCountries) > 0 {
		out.HighRiskCountries = rc.HighRiskCountries
	}
	if len(rc.MediumRiskCountries) > 0 {
		out.MediumRiskCountries = rc.MediumRiskCountries
	}
	if rc.HighRiskCountryFloor > 0 {
		out.HighRiskCountryFloor = rc.HighRiskCountryFloor
	}
	return out
}

func healthHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status[name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httputil.WriteJSON(w, code, status)
	}
}
