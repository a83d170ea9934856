package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/rehive/adapter-framework/internal/adminctl"
	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/data/mongo"
	"github.com/rehive/adapter-framework/internal/data/postgres"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/logger"
	"github.com/rehive/adapter-framework/internal/platform/ledgerapi"
	"github.com/rehive/adapter-framework/internal/platform/messaging/producers"
	"github.com/rehive/adapter-framework/internal/platform/persistence"
	"github.com/rehive/adapter-framework/internal/provider"
	"github.com/rehive/adapter-framework/internal/reconciler/components"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
	"github.com/rehive/adapter-framework/internal/reconciler/scheduler"
)

func main() {
	cfg, err := config.LoadConfig("adapterctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	b := &backend{cfg: cfg, log: logger.NewLogger(cfg)}
	code := adminctl.Execute(b, os.Args[1:])
	b.close()
	os.Exit(code)
}

// backend connects to each store the first time a command asks for it.
type backend struct {
	cfg *config.Config
	log *slog.Logger

	postgresDB  *persistence.PostgresDB
	mongoDB     *persistence.MongoDB
	jobProducer *producers.JobProducer
	dlqProducer *producers.DLQProducer
	registry    *provider.Registry
	engine      *engine.Engine
}

type migrator struct {
	cfg *config.PostgresConfig
}

func (m migrator) Up() error {
	return persistence.RunMigrations(m.cfg.URL, m.cfg.MigrationsPath)
}

func (m migrator) Down(steps int) error {
	return persistence.RollbackMigrations(m.cfg.URL, m.cfg.MigrationsPath, steps)
}

func (m migrator) Version() (uint, bool, error) {
	return persistence.MigrationVersion(m.cfg.URL, m.cfg.MigrationsPath)
}

type accountChecker struct {
	accounts components.AccountLister
	registry *provider.Registry
}

func (c accountChecker) Check(ctx context.Context) (*account.Directory, error) {
	return components.LoadDirectory(ctx, c.accounts, c.registry)
}

func (b *backend) Migrator() adminctl.Migrator {
	return migrator{cfg: &b.cfg.Postgres}
}

func (b *backend) Accounts(ctx context.Context) (adminctl.AccountStore, error) {
	db, err := b.postgres(ctx)
	if err != nil {
		return nil, err
	}
	return postgres.NewAccountRepository(b.log, db), nil
}

func (b *backend) AccountChecker(ctx context.Context) (adminctl.AccountChecker, error) {
	db, err := b.postgres(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := b.providers()
	if err != nil {
		return nil, err
	}
	return accountChecker{accounts: postgres.NewAccountRepository(b.log, db), registry: registry}, nil
}

func (b *backend) Transactions(ctx context.Context) (adminctl.TransactionAdmin, error) {
	return b.reconciliationEngine(ctx)
}

func (b *backend) Audit(ctx context.Context) (adminctl.AuditReader, error) {
	db, err := b.mongo(ctx)
	if err != nil {
		return nil, err
	}
	return mongo.NewAuditRepository(b.log, db.Database()), nil
}

func (b *backend) Jobs(ctx context.Context) (adminctl.JobPublisher, error) {
	if b.jobProducer == nil {
		p, err := producers.NewJobProducer(ctx, b.log, &b.cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Kafka: %w", err)
		}
		b.jobProducer = p
	}
	return b.jobProducer, nil
}

func (b *backend) postgres(ctx context.Context) (*persistence.PostgresDB, error) {
	if b.postgresDB == nil {
		db, err := persistence.NewPostgresDB(ctx, b.log, &b.cfg.Postgres, persistence.WithoutMigrations())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		b.postgresDB = db
	}
	return b.postgresDB, nil
}

func (b *backend) mongo(ctx context.Context) (*persistence.MongoDB, error) {
	if b.mongoDB == nil {
		db, err := persistence.NewMongoDB(ctx, b.log, &b.cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		b.mongoDB = db
	}
	return b.mongoDB, nil
}

func (b *backend) providers() (*provider.Registry, error) {
	if b.registry == nil {
		registry, err := components.NewProviderRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to register providers: %w", err)
		}
		b.registry = registry
	}
	return b.registry, nil
}

// reconciliationEngine builds the same engine the services run, so that a
// cancel from the CLI takes the transaction lock and drops pending retries.
func (b *backend) reconciliationEngine(ctx context.Context) (*engine.Engine, error) {
	if b.engine != nil {
		return b.engine, nil
	}

	db, err := b.postgres(ctx)
	if err != nil {
		return nil, err
	}
	mdb, err := b.mongo(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := b.providers()
	if err != nil {
		return nil, err
	}
	directory, err := components.LoadDirectory(ctx, postgres.NewAccountRepository(b.log, db), registry)
	if err != nil {
		return nil, err
	}

	if b.dlqProducer == nil {
		p, err := producers.NewDLQProducer(ctx, b.log, &b.cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Kafka: %w", err)
		}
		b.dlqProducer = p
	}

	retries := scheduler.NewScheduler(&b.cfg.Retry, postgres.NewRetryRepository(b.log, db), b.dlqProducer, b.log)
	b.engine = components.CreateEngine(engine.Dependencies{
		Transactions: postgres.NewTransactionRepository(b.log, db),
		Users:        postgres.NewUserRepository(b.log, db),
		Accounts:     directory,
		Providers:    registry,
		Platform:     ledgerapi.NewClient(b.cfg.Platform, b.log),
		Locker:       persistence.NewAdvisoryLocker(db.Pool(), b.log),
		Audit:        mongo.NewAuditRepository(b.log, mdb.Database()),
	}, retries, b.cfg, b.log)
	return b.engine, nil
}

func (b *backend) close() {
	var errs []error
	if b.jobProducer != nil {
		errs = append(errs, b.jobProducer.Close())
	}
	if b.dlqProducer != nil {
		errs = append(errs, b.dlqProducer.Close())
	}
	if b.postgresDB != nil {
		b.postgresDB.Close()
	}
	if b.mongoDB != nil {
		errs = append(errs, b.mongoDB.Close(context.Background()))
	}
	if err := errors.Join(errs...); err != nil {
		b.log.Warn("Error releasing connections", "error", err)
	}
}
