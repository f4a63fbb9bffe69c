package main

import (
	"context"
	"fmt"

	"storage-sync/internal/config"
	"storage-sync/internal/db"
	"storage-sync/internal/identity"
	"storage-sync/internal/logger"
	"storage-sync/internal/record"
	"storage-sync/internal/remote"
	"storage-sync/internal/repository"
	"storage-sync/internal/service"
	"storage-sync/internal/telemetry"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg        *config.Config
	database   *db.Database
	recipients *repository.RecipientRepository
	syncRepo   *repository.SyncRepository
	stores     *remote.Registry
	sync       *service.SyncService
	shutdown   func(context.Context) error
}

// loadConfig loads configuration and initializes the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logger)
	logger.Info().
		Str("environment", cfg.Logger.Environment).
		Str("log_level", cfg.Logger.Level).
		Msg("configuration loaded successfully")

	return cfg, nil
}

// newApp runs migrations, connects and makes sure the self recipient exists.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger.Info().Msg("running database migrations")
	if err := db.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		return nil, err
	}

	a, err := connectApp(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := a.ensureSelf(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

// connectApp connects to the database and wires the sync service against the
// configured remote store. It never writes to the database.
func connectApp(ctx context.Context, cfg *config.Config) (*app, error) {
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	database, err := db.NewDatabase(ctx, cfg.Database)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info().Msg("database connected successfully")

	a := &app{
		cfg:        cfg,
		database:   database,
		recipients: repository.NewRecipientRepository(database.Pool),
		syncRepo:   repository.NewSyncRepository(database.Pool),
		stores:     remote.NewRegistry(),
		shutdown:   shutdown,
	}

	a.stores.Register(remote.NewMemoryStore())
	store, err := a.stores.Get(cfg.Sync.RemoteStore)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("available stores %v: %w", a.stores.Names(), err)
	}

	a.sync = service.NewSyncService(a.recipients, a.syncRepo, store, record.RandomKeyGenerator{}, cfg.Sync.MinInterval)
	return a, nil
}

func (a *app) ensureSelf(ctx context.Context) error {
	if a.cfg.Account.ServiceID == "" {
		logger.Warn().Msg("ACCOUNT_SERVICE_ID not set, account records will be carried unchanged until the self recipient exists")
		return nil
	}

	serviceID, err := identity.ParseServiceID(a.cfg.Account.ServiceID)
	if err != nil {
		return err
	}

	id, err := a.recipients.EnsureSelf(ctx, identity.NewAddress(&serviceID, a.cfg.Account.E164))
	if err != nil {
		return err
	}
	logger.Info().Stringer("recipient_id", id).Msg("self recipient ready")
	return nil
}

func (a *app) close(ctx context.Context) {
	a.database.Close()
	if err := a.shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to flush telemetry")
	}
}
