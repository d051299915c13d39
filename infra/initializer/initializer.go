// Package initializer wires the application together: configuration, logger,
// event store, repository, bus, and the ledger service. Lifecycle is owned by
// the process entry point that calls New.
package initializer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/ledger/infra"
	infraeventbus "github.com/amirasaad/ledger/infra/eventbus"
	infraeventstore "github.com/amirasaad/ledger/infra/eventstore"
	infrarepository "github.com/amirasaad/ledger/infra/repository"
	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain/account"
	"github.com/amirasaad/ledger/pkg/eventbus"
	"github.com/amirasaad/ledger/pkg/eventstore"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/amirasaad/ledger/pkg/service/ledger"
)

// App holds the constructed application graph.
type App struct {
	Config *config.App
	Logger *slog.Logger
	Store  eventstore.Store
	Repo   repository.AccountRepository
	Bus    eventbus.Bus
	Ledger *ledger.Service
}

// New loads configuration and builds the full service graph. With a database
// URL configured the event store is gorm/Postgres; otherwise it is in-memory.
func New(envFiles ...string) (*App, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg.Log)

	var store eventstore.Store
	if cfg.DB != nil && cfg.DB.Url != "" {
		db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		gs := infraeventstore.NewWithGorm(db)
		if err := gs.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate event store: %w", err)
		}
		store = gs
		logger.Info("event store ready", "backend", "postgres")
	} else {
		store = infraeventstore.NewWithMemory()
		logger.Info("event store ready", "backend", "memory")
	}

	repo := infrarepository.NewAccountRepository(store)
	bus := infraeventbus.NewWithMemory(logger)
	registerAuditLog(bus, logger)

	svc := ledger.New(repo, bus, logger, cfg.Ledger)

	return &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		Repo:   repo,
		Bus:    bus,
		Ledger: svc,
	}, nil
}

// registerAuditLog subscribes a structured audit logger for every committed
// event kind.
func registerAuditLog(bus eventbus.Bus, logger *slog.Logger) {
	audit := logger.With("component", "audit")
	for _, kind := range account.Kinds() {
		bus.Subscribe(kind, func(_ context.Context, e account.Event) {
			audit.Info("event committed",
				"kind", e.Kind,
				"aggregateID", e.AggregateID,
				"version", e.Version,
			)
		})
	}
}
