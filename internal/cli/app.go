package cli

import (
	"fmt"
	"strings"

	"github.com/tansuo/paperchat/internal/api"
	"github.com/tansuo/paperchat/internal/config"
	"github.com/tansuo/paperchat/internal/logging"
	"github.com/tansuo/paperchat/internal/store"
)

// app bundles the pieces every command needs: loaded config, the durable
// store, and an authenticated request gateway.
type app struct {
	cfg     config.Config
	db      store.Store
	gateway *api.Gateway
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logLevel == "" && cfg.Logging.Level != "" {
		// The --log-level flag wins; otherwise the config decides.
		log = logging.New(nil, cfg.Logging.Level)
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	// The token is read per request so a login in another terminal is
	// picked up without restarting.
	token := func() string {
		value, _, err := db.GetValue(store.KeyToken)
		if err != nil {
			return ""
		}
		return value
	}
	gw, err := api.NewGateway(cfg.Server.URL, token, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{cfg: cfg, db: db, gateway: gw}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("closing store")
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return config.Config{}, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		lines := make([]string, len(issues))
		for i, issue := range issues {
			lines[i] = issue.String()
		}
		return config.Config{}, fmt.Errorf("invalid config: %s", strings.Join(lines, "; "))
	}
	return cfg, nil
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Storage.Driver == "memory" {
		return store.NewMemoryStore(), nil
	}
	db, err := store.OpenDB(paths.DatabasePath(cfg), log)
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(db), nil
}
