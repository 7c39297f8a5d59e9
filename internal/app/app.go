// Package app builds the component graph once per process and hands it to
// the server and the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wc-salesforce-sync/internal/config"
	"wc-salesforce-sync/internal/crypto"
	"wc-salesforce-sync/internal/database"
	"wc-salesforce-sync/internal/logger"
	"wc-salesforce-sync/internal/mapping"
	"wc-salesforce-sync/internal/metrics"
	"wc-salesforce-sync/internal/salesforce"
	"wc-salesforce-sync/internal/store"
	"wc-salesforce-sync/internal/sync"
	"wc-salesforce-sync/internal/woocommerce"
)

type App struct {
	Config       *config.Config
	DB           *database.Database
	Store        *store.MySQLStore
	Tokens       *salesforce.TokenManager
	Objects      *salesforce.ObjectManager
	Orchestrator *sync.Orchestrator
	Manager      *sync.Manager
}

// New connects to the WordPress database and wires every component. The
// worker pool is not started.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	metrics.Register()

	cryptor, err := crypto.NewCryptor(cfg.Crypto.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to init token encryption: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	st := store.NewMySQLStore(db)
	if err := st.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	client := salesforce.NewClient(cfg.Salesforce)
	tokens := salesforce.NewTokenManager(cfg.Salesforce, client, crypto.NewVault(st, cryptor))
	client.SetTokenSource(tokens)
	if err := tokens.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if !tokens.HasValidToken(ctx) || tokens.ConnectionChanged(ctx) {
		logger.Log.Warn("Salesforce is not authorized for the configured connection; complete the OAuth flow")
	}

	objects := salesforce.NewObjectManager(client, tokens, cfg.Salesforce.APIVersion)
	orchestrator := sync.NewOrchestrator(
		st,
		woocommerce.NewOrderSource(db),
		objects,
		mapping.NewMapper(cfg.Sync.EmailValidation),
		cfg.Sync.Ordering,
	)

	logger.Log.Info("Application initialized",
		zap.String("ordering", cfg.Sync.Ordering),
		zap.String("email_validation", cfg.Sync.EmailValidation),
	)

	return &App{
		Config:       cfg,
		DB:           db,
		Store:        st,
		Tokens:       tokens,
		Objects:      objects,
		Orchestrator: orchestrator,
		Manager:      sync.NewManager(cfg.Sync, orchestrator),
	}, nil
}

func (a *App) Close() {
	a.Manager.Stop()
	if err := a.Store.Close(); err != nil {
		logger.Log.Warn("Failed to close database", zap.Error(err))
	}
}
