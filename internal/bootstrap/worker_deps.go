package bootstrap

import (
	"context"
	"time"

	"calndr/adapter/out/cache"
	"calndr/adapter/out/persistence"
	"calndr/adapter/out/push"
	"calndr/adapter/out/scrape"
	"calndr/config"
	"calndr/core/port/out"
	"calndr/core/service/custody"
	"calndr/core/service/events"
	"calndr/core/service/integrity"
	"calndr/core/service/notify"
	"calndr/core/service/sync"
	"calndr/infra/database"
	"calndr/pkg/logger"
	"calndr/pkg/ratelimit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const notifyDebounceWindow = 2 * time.Minute

// Dependencies wires every port to its concrete adapter and every
// domain service to the ports it needs. NewAPI and NewWorker both
// build one of these and hand out the services their surface needs.
type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	// Repositories
	FamilyRepo   out.FamilyRepository
	TemplateRepo out.ScheduleTemplateRepository
	CustodyRepo  out.CustodyRepository
	EventRepo    out.FamilyEventRepository
	ProviderRepo out.ProviderRepository
	SyncRepo     out.ProviderSyncRepository
	ProviderEvt  out.ProviderEventRepository

	TxManager out.TxManager
	Cache     out.CacheCoordinator

	Fetcher    out.HTMLFetcher
	Discoverer *scrape.Discoverer
	Parser     *scrape.Parser
	Pusher     out.PushNotifier

	// Services
	Generator      *custody.Generator
	MutationEngine *custody.MutationEngine
	MonthlyQuery   *custody.MonthlyQueryEngine
	Fanout         *notify.Fanout
	Aggregator     *events.Aggregator
	Auditor        *integrity.Auditor
	SyncPipeline   *sync.Pipeline
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	pgCfg := &database.PostgresConfig{
		MaxConns:        int32(cfg.DBMaxConns),
		MinConns:        int32(cfg.DBMinConns),
		MaxConnLifetime: cfg.DBMaxConnLifetime,
	}
	sqlDB, err := database.NewSqlx(cfg.DatabaseURL, pgCfg)
	if err != nil {
		logger.Error("sqlx connection failed: %v", err)
	} else {
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { sqlDB.Close() })
		logger.Info("sqlx database connection successful (pool: max=%d, min=%d)", cfg.DBMaxConns, cfg.DBMinConns)
	}

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn("Redis connection failed: %v", err)
	} else {
		deps.Redis = redisClient
		cleanups = append(cleanups, func() { redisClient.Close() })
		deps.Cache = cache.NewRedisCoordinator(redisClient)
		logger.Info("Redis cache coordinator initialized")
	}

	if deps.SQLDB != nil {
		deps.FamilyRepo = persistence.NewFamilyGateway(deps.SQLDB)
		deps.TemplateRepo = persistence.NewScheduleTemplateGateway(deps.SQLDB)
		deps.CustodyRepo = persistence.NewCustodyGateway(deps.SQLDB)
		deps.EventRepo = persistence.NewFamilyEventGateway(deps.SQLDB)
		deps.ProviderRepo = persistence.NewProviderGateway(deps.SQLDB)
		deps.SyncRepo = persistence.NewProviderSyncGateway(deps.SQLDB)
		deps.ProviderEvt = persistence.NewProviderEventGateway(deps.SQLDB)
		deps.TxManager = persistence.NewTxManager(deps.SQLDB)
	}

	httpFetcher := scrape.NewHTTPFetcher(time.Duration(cfg.SyncHTTPTimeoutSec) * time.Second)
	if deps.Redis != nil {
		httpFetcher = httpFetcher.WithProtector(ratelimit.NewAPIProtector(deps.Redis, ratelimit.DefaultConfig()))
	}
	deps.Fetcher = httpFetcher
	deps.Discoverer = scrape.NewDiscoverer(deps.Fetcher)
	deps.Parser = scrape.NewParser(deps.Fetcher)

	deps.Pusher = push.NewWebhookNotifier("https://push.internal/devices/%s/notify", 10*time.Second)

	if deps.CustodyRepo != nil && deps.FamilyRepo != nil && deps.TxManager != nil && deps.Cache != nil {
		deps.Generator = custody.NewGenerator(deps.CustodyRepo, deps.FamilyRepo, deps.TxManager, deps.Cache)
		deps.MonthlyQuery = custody.NewMonthlyQueryEngine(deps.CustodyRepo, deps.TemplateRepo, deps.Cache, deps.Generator)
	}

	if deps.FamilyRepo != nil && deps.Pusher != nil {
		var debouncer *ratelimit.Debouncer
		if deps.Redis != nil {
			debouncer = ratelimit.NewDebouncer(deps.Redis, notifyDebounceWindow)
		}
		deps.Fanout = notify.NewFanout(deps.FamilyRepo, deps.Pusher, debouncer)
	}

	if deps.CustodyRepo != nil && deps.TxManager != nil && deps.Cache != nil && deps.Fanout != nil {
		deps.MutationEngine = custody.NewMutationEngine(deps.CustodyRepo, deps.TxManager, deps.Cache, deps.Fanout)
	}

	if deps.EventRepo != nil && deps.ProviderRepo != nil && deps.ProviderEvt != nil && deps.Cache != nil {
		deps.Aggregator = events.NewAggregator(deps.EventRepo, deps.ProviderRepo, deps.ProviderEvt, deps.Cache)
	}

	if deps.CustodyRepo != nil && deps.FamilyRepo != nil && deps.TxManager != nil && deps.Cache != nil {
		deps.Auditor = integrity.NewAuditor(deps.CustodyRepo, deps.FamilyRepo, deps.TxManager, deps.Cache)
	}

	if deps.SyncRepo != nil && deps.ProviderEvt != nil && deps.TxManager != nil {
		deps.SyncPipeline = sync.NewPipeline(
			deps.Discoverer, deps.Parser, deps.SyncRepo, deps.ProviderEvt, deps.TxManager,
			time.Duration(cfg.SyncRetryBaseMin)*time.Minute, time.Duration(cfg.SyncRetryMaxHour)*time.Hour,
		)
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}

func (d *Dependencies) HealthCheck(ctx context.Context) error {
	if err := d.DB.Ping(ctx); err != nil {
		return err
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
