package di

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/folio-service/folio_service/internal/adapters/robinhood"
	"github.com/folio-service/folio_service/internal/domain/repositories"
	"github.com/folio-service/folio_service/internal/domain/services/portfolio"
	"github.com/folio-service/folio_service/internal/domain/services/session"
	"github.com/folio-service/folio_service/internal/infrastructure/config"
	infrarepos "github.com/folio-service/folio_service/internal/infrastructure/repositories"
	"github.com/folio-service/folio_service/internal/workers/tradesync"
	"github.com/folio-service/folio_service/pkg/circuitbreaker"
	"github.com/folio-service/folio_service/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *sqlx.DB

	Brokerage        *robinhood.Client
	SessionStore     *infrarepos.SessionTokenStore
	SessionService   *session.Service
	PortfolioService *portfolio.Service
	TradeRepo        repositories.TradeRepository
	SyncWorker       *tradesync.Worker
}

// NewContainer wires the application graph. db may be nil when no database
// is configured; the service then serves trades from the live ledger only.
func NewContainer(cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	breaker := circuitbreaker.New("brokerage", circuitbreaker.DefaultConfig())
	c.Brokerage = robinhood.NewClient(cfg.Brokerage, breaker, log.Zap())

	// Redis is optional: without it sessions just start fresh each boot
	store, err := infrarepos.NewSessionTokenStore(
		cfg.Redis.Addr(),
		cfg.Redis.Password,
		cfg.Redis.DB,
		time.Duration(cfg.Brokerage.TokenTTL)*time.Second,
		log.Zap(),
	)
	if err != nil {
		log.Warn("redis unavailable, session tokens will not persist", "error", err)
	} else {
		c.SessionStore = store
	}

	var tokenStore session.TokenStore
	if c.SessionStore != nil {
		tokenStore = c.SessionStore
	}
	c.SessionService = session.NewService(c.Brokerage, tokenStore, log.Zap())
	c.Brokerage.SetTokenSource(c.SessionService)

	c.PortfolioService = portfolio.NewService(
		c.Brokerage,
		c.Brokerage,
		c.SessionService,
		cfg.Cache,
		log.Zap(),
	)

	if db != nil {
		c.TradeRepo = infrarepos.NewTradeRepository(db, cfg.Sync.BatchSize, log.Zap())
	}

	workerConfig := tradesync.DefaultConfig()
	workerConfig.Interval = time.Duration(cfg.Sync.IntervalMinutes) * time.Minute
	c.SyncWorker = tradesync.NewWorker(
		c.PortfolioService,
		c.SessionService,
		c.TradeRepo,
		workerConfig,
		log.Zap(),
	)

	return c, nil
}

// Close releases container-held resources
func (c *Container) Close() {
	if c.SessionStore != nil {
		if err := c.SessionStore.Close(); err != nil {
			c.Logger.Warn("error closing session store", "error", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("error closing database", "error", err)
		}
	}
}
