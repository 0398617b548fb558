package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"servicedesk-cloud/internal/audit"
	"servicedesk-cloud/internal/auth"
	directoryrepo "servicedesk-cloud/internal/directory/infrastructure/postgres"
	escapp "servicedesk-cloud/internal/escalation/application"
	escrepo "servicedesk-cloud/internal/escalation/infrastructure/postgres"
	eschttp "servicedesk-cloud/internal/escalation/interfaces/http"
	"servicedesk-cloud/internal/escalation/lease"
	"servicedesk-cloud/internal/escalation/notify"
	"servicedesk-cloud/internal/escalation/recipients"
	"servicedesk-cloud/internal/observability/metrics"
	slarepo "servicedesk-cloud/internal/sla/infrastructure/postgres"

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	engineCfg, err := escapp.LoadConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	trackingStore := slarepo.NewTrackingRepository(db)
	ruleRepo := escrepo.NewRuleRepository(db)
	notificationLog := escrepo.NewNotificationRepository(db)
	userRepo := directoryrepo.NewUserRepository(db)
	ticketRepo := directoryrepo.NewTicketRepository(db)

	var resolverOpts []recipients.ResolverOption
	switch engineCfg.Selection.Strategy {
	case "round_robin":
		resolverOpts = append(resolverOpts, recipients.WithSelector(recipients.NewRoundRobinSelector()))
	default:
		resolverOpts = append(resolverOpts, recipients.WithSelector(recipients.NewRandomSelector(engineCfg.Selection.Seed)))
	}
	resolver, err := recipients.NewResolver(userRepo, resolverOpts...)
	if err != nil {
		logger.Fatalf("resolver error: %v", err)
	}

	serviceOpts := []escapp.ServiceOption{
		escapp.WithWorkers(engineCfg.Workers),
		escapp.WithRepeatPolicy(escapp.RepeatPolicy(engineCfg.RepeatPolicy)),
	}
	if engineCfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(engineCfg.RedisURL)
		if err != nil {
			logger.Fatalf("redis url error: %v", err)
		}
		locker, err := lease.NewRedisLocker(redis.NewClient(redisOpts), engineCfg.LeaseTTL)
		if err != nil {
			logger.Fatalf("redis locker error: %v", err)
		}
		serviceOpts = append(serviceOpts, escapp.WithLocker(locker))
	} else {
		serviceOpts = append(serviceOpts, escapp.WithLocker(lease.NewMemoryLocker()))
	}

	service, err := escapp.NewService(trackingStore, ruleRepo, notificationLog, ticketRepo, resolver, logger, serviceOpts...)
	if err != nil {
		logger.Fatalf("escalation service error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := escapp.NewScheduler(service, engineCfg.SweepInterval, logger)
	go scheduler.Start(ctx)

	if engineCfg.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(engineCfg.WebhookURL)
		if err != nil {
			logger.Fatalf("webhook channel error: %v", err)
		}
		template, err := notify.NewTemplate(engineCfg.NotifyTemplate)
		if err != nil {
			logger.Fatalf("notify template error: %v", err)
		}
		worker, err := notify.NewWorker(service, channel, template, logger, notify.WithInterval(engineCfg.DeliveryInterval))
		if err != nil {
			logger.Fatalf("delivery worker error: %v", err)
		}
		go worker.Start(ctx)
	}

	escalationHandler, err := eschttp.NewHandler(service, auditRepo, logger)
	if err != nil {
		logger.Fatalf("escalation handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/escalations", escalationHandler)
	mux.Handle("/api/v1/escalations/", escalationHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	JWTSecret   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
