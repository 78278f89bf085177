package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/contaflux/contaflux/internal/domain/classification"
	"github.com/contaflux/contaflux/internal/domain/receipt"
	"github.com/contaflux/contaflux/internal/domain/statement"
	ofxparser "github.com/contaflux/contaflux/internal/domain/statement/parser"
	"github.com/contaflux/contaflux/internal/server"
	"github.com/contaflux/contaflux/pkg/config"
	"github.com/contaflux/contaflux/pkg/cron"
	"github.com/contaflux/contaflux/pkg/db"
	"github.com/contaflux/contaflux/pkg/notify"
	"github.com/contaflux/contaflux/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	TermRepo    classification.TermRepository
	TaxRuleRepo classification.TaxRuleRepository

	// Services
	Classifier       *classification.Service
	ReceiptService   *receipt.Service
	StatementService *statement.Service
	Notifier         *notify.Notifier
	SearchIndex      *classification.TermSearchIndex
	Documents        *storage.LocalStore
	Workspace        *storage.Workspace
	Scheduler        *cron.Scheduler

	Server *server.Server
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	if err := deps.initServer(); err != nil {
		return nil, fmt.Errorf("failed to init server: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initRepositories() error {
	d.TermRepo = classification.NewPostgresTermRepository(d.DB.Pool)
	d.TaxRuleRepo = classification.NewPostgresTaxRuleRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initServices() error {
	d.Workspace = storage.NewWorkspace(d.Config.Output.Dir, d.Config.Output.UploadDir, d.Logger)
	if err := d.Workspace.EnsureDirs(); err != nil {
		return err
	}

	documents, err := storage.NewLocalStore(d.Config.Output.UploadDir)
	if err != nil {
		return err
	}
	d.Documents = documents

	searchIndex, err := classification.NewTermSearchIndex(d.Config.Search.IndexPath)
	if err != nil {
		return fmt.Errorf("failed to open term index: %w", err)
	}
	d.SearchIndex = searchIndex

	d.Notifier = notify.New(d.Config.Notify.ResendAPIKey, d.Config.Notify.FromAddress, d.Logger)
	d.Classifier = classification.NewService(d.TermRepo, d.Logger)

	mapper := classification.NewReceiptMapper(d.TaxRuleRepo, d.Logger)
	d.ReceiptService = receipt.NewService(receipt.NewExtractor(mapper, d.Logger), d.Workspace, d.Logger)

	d.StatementService = statement.NewService(
		ofxparser.New(d.Logger),
		d.Classifier,
		d.Workspace,
		d.Notifier,
		d.Logger,
	)

	if d.Config.Output.CleanupEnabled {
		d.Scheduler = cron.NewScheduler(d.Workspace, d.Config.Output.CleanupSchedule, d.Logger)
	}

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initServer() error {
	if d.Config.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	d.Server = server.New(
		d.Config.Server,
		d.Config.Auth.JWTSecret,
		d.ReceiptService,
		d.StatementService,
		d.TermRepo,
		d.SearchIndex,
		d.Documents,
		d.Workspace,
		d.Logger,
	)

	d.Logger.Info("server initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		d.Scheduler.Stop()
	}
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("failed to close term index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
