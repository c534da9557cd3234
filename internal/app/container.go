// Package app wires the engine's dependencies into a single container the
// CLI, the webhook listener, and the worker all build from.
package app

import (
	"context"
	"log/slog"

	contractsCommands "github.com/felixgeelhaar/arrears/internal/contracts/application/commands"
	contractsServices "github.com/felixgeelhaar/arrears/internal/contracts/application/services"
	contractsDomain "github.com/felixgeelhaar/arrears/internal/contracts/domain"
	contractsPersistence "github.com/felixgeelhaar/arrears/internal/contracts/infrastructure/persistence"
	"github.com/felixgeelhaar/arrears/internal/gateway"
	liquidationCommands "github.com/felixgeelhaar/arrears/internal/liquidation/application/commands"
	liquidationServices "github.com/felixgeelhaar/arrears/internal/liquidation/application/services"
	liquidationDomain "github.com/felixgeelhaar/arrears/internal/liquidation/domain"
	liquidationPersistence "github.com/felixgeelhaar/arrears/internal/liquidation/infrastructure/persistence"
	"github.com/felixgeelhaar/arrears/internal/notify"
	"github.com/felixgeelhaar/arrears/internal/reconciler"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/redislock"
	"github.com/felixgeelhaar/arrears/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Container holds the wired application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Pool        *pgxpool.Pool
	RedisClient redis.UniversalClient
	Locker      *redislock.Locker

	Publisher       eventbus.Publisher
	OutboxRepo      outbox.Repository
	OutboxProcessor *outbox.Processor

	Gateway  gateway.Client
	Notifier notify.Notifier

	Contracts      contractsDomain.ContractRepository
	Payments       contractsDomain.PaymentRepository
	FailedPayments contractsDomain.FailedPaymentRepository
	Assets         liquidationDomain.AssetRepository
	Listings       liquidationDomain.ListingRepository

	CreateContract *contractsCommands.CreateContractHandler
	AcceptContract *contractsCommands.AcceptContractHandler
	RegisterAsset  *liquidationCommands.RegisterAssetHandler
	PlaceBid       *liquidationCommands.PlaceBidHandler

	EscalationSweeper  *contractsServices.EscalationSweeper
	ReminderSweeper    *contractsServices.ReminderSweeper
	RetryManager       *contractsServices.RetryManager
	LiquidationSweeper *liquidationServices.InitiationSweeper
	Settlement         *liquidationServices.SettlementService

	Reconciler *reconciler.Reconciler

	rabbit *eventbus.RabbitMQPublisher
}

// NewContainer builds the full dependency graph. RabbitMQ is optional in
// development: without a broker the outbox publishes to a noop sink.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, err
	}
	redisClient := redis.NewClient(redisOpts)
	locker := redislock.NewLocker(redisClient, cfg.SweepLockTTL)

	c := &Container{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		RedisClient: redisClient,
		Locker:      locker,
	}

	rabbit, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			c.Close()
			return nil, err
		}
		logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.Publisher = eventbus.NewNoopPublisher(logger)
	} else {
		c.rabbit = rabbit
		c.Publisher = rabbit
	}

	c.OutboxRepo = outbox.NewPostgresRepository(pool)
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.Publisher, outbox.ProcessorConfig{
		PollInterval:     cfg.OutboxPollInterval,
		BatchSize:        cfg.OutboxBatchSize,
		MaxRetries:       cfg.OutboxMaxRetries,
		RetryBackoffBase: outbox.DefaultProcessorConfig().RetryBackoffBase,
		RetryBackoffMax:  outbox.DefaultProcessorConfig().RetryBackoffMax,
	}, logger)

	gatewayConfig := gateway.DefaultHTTPClientConfig(cfg.GatewayBaseURL, cfg.GatewayAPIKey)
	gatewayConfig.Timeout = cfg.GatewayTimeout
	c.Gateway = gateway.NewHTTPClient(gatewayConfig, logger)

	c.Notifier = notify.NewBusNotifier(c.Publisher, logger)

	uow := database.NewUnitOfWork(pool)

	c.Contracts = contractsPersistence.NewPostgresContractRepository(pool)
	c.Payments = contractsPersistence.NewPostgresPaymentRepository(pool)
	c.FailedPayments = contractsPersistence.NewPostgresFailedPaymentRepository(pool)
	c.Assets = liquidationPersistence.NewPostgresAssetRepository(pool)
	c.Listings = liquidationPersistence.NewPostgresListingRepository(pool)

	c.CreateContract = contractsCommands.NewCreateContractHandler(c.Contracts, c.OutboxRepo, uow)
	c.AcceptContract = contractsCommands.NewAcceptContractHandler(c.Contracts, c.OutboxRepo, uow, c.Gateway)
	c.RegisterAsset = liquidationCommands.NewRegisterAssetHandler(c.Assets, uow)
	c.PlaceBid = liquidationCommands.NewPlaceBidHandler(c.Listings, c.OutboxRepo, uow)

	c.EscalationSweeper = contractsServices.NewEscalationSweeper(c.Contracts, c.OutboxRepo, uow, c.Notifier, logger)
	c.ReminderSweeper = contractsServices.NewReminderSweeper(c.Contracts, c.Notifier, logger)
	c.RetryManager = contractsServices.NewRetryManager(c.FailedPayments, c.Contracts, c.Payments, c.OutboxRepo, uow, c.Gateway, c.Notifier, logger)
	c.LiquidationSweeper = liquidationServices.NewInitiationSweeper(c.Contracts, c.Assets, c.Listings, c.OutboxRepo, uow, c.Notifier, logger)
	c.Settlement = liquidationServices.NewSettlementService(c.Contracts, c.Assets, c.Listings, c.OutboxRepo, uow, c.Notifier, logger)

	ledger := reconciler.NewPostgresEventLedger(pool)
	c.Reconciler = reconciler.NewReconciler(c.Contracts, c.Payments, c.FailedPayments, ledger, c.OutboxRepo, uow, c.Notifier, logger)

	return c, nil
}

// Close releases the container's connections.
func (c *Container) Close() {
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}
	if c.rabbit != nil {
		_ = c.rabbit.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
