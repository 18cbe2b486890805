package cmd

import (
	"fmt"

	"anitrack/internal/anilist"
	"anitrack/internal/auth"
	"anitrack/internal/config"
	"anitrack/internal/store"
	"anitrack/pkg/logging"
)

// app wires the long-lived components a command needs: configuration, the
// local database, the auth manager with its token keeper, and the API client.
type app struct {
	cfg     config.Config
	store   *store.Store
	manager *auth.Manager
	keeper  *auth.Keeper
	api     *anilist.Client
}

// newApp builds the application from the configured file, creating the
// default configuration on first run. authOpts is used by tests and by
// commands such as --no-browser that alter how the flow runs.
func newApp(authOpts ...auth.ManagerOption) (*app, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Debug("app", "Loaded configuration from %s", path)

	dbPath, err := cfg.DatabaseFile()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	// The identity client runs anonymously with a token passed explicitly,
	// so a freshly exchanged token can be attributed before it is persisted.
	identity := anilist.New(anilist.WithCacheMaxAge(cfg.CacheMaxAge()))

	manager, err := auth.NewManager(auth.Config{
		ClientID:        cfg.Auth.ClientID,
		ClientSecret:    cfg.Auth.ClientSecret,
		RedirectURI:     cfg.Auth.RedirectURI,
		CallbackTimeout: cfg.CallbackTimeout(),
	}, db, identity, authOpts...)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid auth configuration: %w", err)
	}

	keeper := auth.NewKeeper(manager)
	api := anilist.New(
		anilist.WithTokenProvider(keeper),
		anilist.WithCacheMaxAge(cfg.CacheMaxAge()),
	)

	return &app{
		cfg:     cfg,
		store:   db,
		manager: manager,
		keeper:  keeper,
		api:     api,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	a.keeper.Close()
	if err := a.store.Close(); err != nil {
		logging.Warn("app", "Failed to close database: %v", err)
	}
}
