package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/sendguard/internal/api"
	"github.com/ignite/sendguard/internal/config"
	"github.com/ignite/sendguard/internal/dnscheck"
	"github.com/ignite/sendguard/internal/pkg/dedupe"
	"github.com/ignite/sendguard/internal/pkg/distlock"
	"github.com/ignite/sendguard/internal/pkg/logger"
	"github.com/ignite/sendguard/internal/repository/memory"
	"github.com/ignite/sendguard/internal/repository/postgres"
	"github.com/ignite/sendguard/internal/sender"
	"github.com/ignite/sendguard/internal/service/audit"
	"github.com/ignite/sendguard/internal/service/campaign"
	"github.com/ignite/sendguard/internal/service/gate"
	"github.com/ignite/sendguard/internal/service/health"
	"github.com/ignite/sendguard/internal/service/lead"
	"github.com/ignite/sendguard/internal/service/recovery"
	"github.com/ignite/sendguard/internal/service/routing"
	"github.com/ignite/sendguard/internal/storage"
	"github.com/ignite/sendguard/internal/worker"
)

const eventDedupeTTL = 24 * time.Hour

// repositories groups the storage backends behind each service.
type repositories struct {
	health   health.Repository
	recovery recovery.Repository
	campaign campaign.Repository
	gate     gate.Repository
	lead     lead.Repository
	routing  routing.Repository
	audit    audit.Sink
}

// checkPortAvailable checks if a port is available for binding
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use: %w", port, err)
	}
	ln.Close()
	return nil
}

func main() {
	// SENDGUARD_CONFIG points at a YAML file; unset means defaults plus env.
	cfg, err := config.LoadFromEnv(os.Getenv("SENDGUARD_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.ShouldRedact())

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("Cannot start server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, repos, err := openRepositories(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient := connectRedis(ctx, cfg.Redis)
	if redisClient != nil {
		defer redisClient.Close()
	}

	sink := repos.audit
	var dns recovery.DNSChecker = dnscheck.NewResolver(cfg.DNS.DKIMSelector)
	if cfg.Audit.DynamoDBTable != "" || cfg.DNS.Provider == "route53" {
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		if cfg.Audit.DynamoDBTable != "" {
			ttl := time.Duration(cfg.Audit.TTLDays) * 24 * time.Hour
			mirror := storage.NewAuditStoreFromConfig(awsCfg, cfg.Audit.DynamoDBTable, ttl)
			sink = audit.MultiSink{repos.audit, mirror}
			log.Printf("Audit mirror enabled: dynamodb table %s", cfg.Audit.DynamoDBTable)
		}
		if cfg.DNS.Provider == "route53" {
			dns = dnscheck.NewRoute53FromConfig(awsCfg, cfg.DNS.HostedZoneID, cfg.DNS.DKIMSelector)
			log.Printf("DNS validation via Route53 hosted zone %s", cfg.DNS.HostedZoneID)
		}
	}

	trail := audit.NewTrail(sink, cfg.Audit.BufferSize)
	trail.Start()

	policy := recovery.Policy{
		Cooldown:                 cfg.Recovery.Cooldown(),
		MaxCooldown:              cfg.Recovery.MaxCooldown(),
		RestrictedCleanSends:     cfg.Recovery.RestrictedCleanSends,
		RepeatOffenderCleanSends: cfg.Recovery.RepeatOffenderCleanSend,
		WarmCleanSends:           cfg.Recovery.WarmCleanSends,
		WarmMinDuration:          cfg.Recovery.WarmMinDuration(),
		WarmMaxBounceRate:        cfg.Recovery.WarmMaxBounceRate,
		RestrictedSendCapPct:     cfg.Recovery.RestrictedSendCapPct,
		WarmSendCapPct:           cfg.Recovery.WarmSendCapPct,
		PausePenalty:             cfg.Recovery.Resilience.PausePenalty,
		RelapsePenalty:           cfg.Recovery.Resilience.RelapsePenalty,
		CleanSendGain:            cfg.Recovery.Resilience.CleanSendGain,
		GraduationBonus:          cfg.Recovery.Resilience.GraduationBonus,
	}
	thresholds := health.Thresholds{
		WindowSize:             cfg.Health.WindowSize,
		BounceThreshold:        cfg.Health.BounceThreshold,
		DomainWarningThreshold: cfg.Health.DomainWarningThreshold,
	}

	healthSvc := health.NewService(repos.health, thresholds, policy, trail)
	healthSvc.SetMaxRetries(cfg.Health.MaxWriteRetries)

	recoverySvc := recovery.NewService(repos.recovery, dns, trail, policy)
	recoverySvc.SetDNSTimeout(cfg.Recovery.DNSTimeout())

	resolver := routing.NewResolver(repos.routing, trail)
	leadSvc := lead.NewService(repos.lead, resolver, trail)
	campaignSvc := campaign.NewService(repos.campaign, trail)
	executionGate := gate.New(repos.gate, trail, gate.ParseScope(cfg.Gate.CapacityScope))
	log.Printf("Execution gate capacity scope: %s", cfg.Gate.CapacityScope)

	pusher := sender.New(cfg.Sender.BaseURL, cfg.Sender.APIKey, cfg.Sender.Timeout(), cfg.Sender.MaxRetries)
	if cfg.Sender.BaseURL == "" {
		log.Println("Sender not configured (SENDER_BASE_URL not set) — activated leads will not be pushed")
	}

	locks := distlock.NewFactory(redisClient, db)
	switch {
	case redisClient != nil:
		log.Println("Worker ticks use Redis locks")
	case db != nil:
		log.Println("Worker ticks use PG advisory locks")
	default:
		log.Println("No lock backend configured — worker ticks guarded in-process only")
	}

	processor := worker.NewProcessor(leadSvc, executionGate, pusher, trail, cfg.Processor.Interval(), cfg.Processor.BatchSize)
	processor.SetLocker(locks)
	processor.SetPushTimeout(cfg.Sender.Timeout())

	recoveryWorker := worker.NewRecoveryWorker(recoverySvc, cfg.Recovery.Interval())
	recoveryWorker.SetLocker(locks)

	if err := processor.Start(); err != nil {
		log.Fatalf("Failed to start lead processor: %v", err)
	}
	if err := recoveryWorker.Start(); err != nil {
		log.Fatalf("Failed to start recovery worker: %v", err)
	}
	log.Printf("Workers started: processor every %s, recovery every %s", cfg.Processor.Interval(), cfg.Recovery.Interval())

	var deduper dedupe.Deduper
	if redisClient != nil {
		deduper = dedupe.NewRedisDeduper(redisClient, eventDedupeTTL)
	} else {
		deduper = dedupe.NewMemoryDeduper(eventDedupeTTL)
	}

	handlers := api.NewHandlers(api.Deps{
		Health:    healthSvc,
		Leads:     leadSvc,
		Routing:   resolver,
		Campaigns: campaignSvc,
		Gate:      executionGate,
		Audit:     trail,
		Dedupe:    deduper,
	})
	healthChecker := api.NewHealthChecker(db, redisClient)
	healthChecker.AddWorker("processor", processor)
	healthChecker.AddWorker("recovery", recoveryWorker)
	server := api.NewServer(handlers, healthChecker, cfg.Server.AllowedOrigins)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")

	processor.Stop()
	recoveryWorker.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	trail.Close()

	log.Println("Server stopped")
}

// openRepositories selects the storage backend. The memory store serves
// local runs and demos; everything else goes to PostgreSQL.
func openRepositories(ctx context.Context, cfg *config.Config) (*sql.DB, repositories, error) {
	if cfg.Storage.Type == "memory" {
		log.Println("Using in-memory storage (state is lost on restart)")
		store := memory.New()
		return nil, repositories{
			health:   store,
			recovery: store,
			campaign: store,
			gate:     store,
			lead:     store,
			routing:  store,
			audit:    store,
		}, nil
	}

	if cfg.Database.URL == "" {
		return nil, repositories{}, fmt.Errorf("DATABASE_URL is required for %q storage", cfg.Storage.Type)
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, repositories{}, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, repositories{}, fmt.Errorf("ping database: %w", err)
	}
	log.Println("PostgreSQL connected")

	healthRepo := postgres.NewHealthRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	return db, repositories{
		health:   healthRepo,
		recovery: healthRepo,
		campaign: campaignRepo,
		gate:     campaignRepo,
		lead:     postgres.NewLeadRepo(db),
		routing:  postgres.NewRoutingRepo(db),
		audit:    postgres.NewAuditRepo(db),
	}, nil
}

// connectRedis returns nil when Redis is unset or unreachable; callers fall
// back to advisory locks and in-process dedupe.
func connectRedis(ctx context.Context, rc config.RedisConfig) *redis.Client {
	if !rc.Enabled() {
		log.Println("Redis not configured (REDIS_URL not set)")
		return nil
	}
	var client *redis.Client
	if rc.URL != "" {
		opts, err := redis.ParseURL(rc.URL)
		if err != nil {
			client = redis.NewClient(&redis.Options{Addr: rc.URL})
		} else {
			client = redis.NewClient(opts)
		}
	} else {
		client = redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Warning: Redis connection failed: %v — continuing without Redis", err)
		client.Close()
		return nil
	}
	log.Println("Redis connected (distributed locking and event dedupe enabled)")
	return client
}
