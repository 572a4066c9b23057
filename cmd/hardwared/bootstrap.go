package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/hardwared/pkg/api"
	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/driver"
	"github.com/cuemby/hardwared/pkg/runtime"
	"github.com/cuemby/hardwared/pkg/storage"

	_ "github.com/cuemby/hardwared/pkg/worker"
)

// loadConfig assembles a Config from defaults, the --config file (if
// given), environment variables, and the command's own flags, following
// config.Load's documented precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, &configError{err}
	}
	return cfg, nil
}

// newRuntime opens the store at cfg.Database.Connection and assembles a
// Runtime bound to the compiled-in driver registry, applying each
// driver's own configuration section.
func newRuntime(cfg *config.Config) (*runtime.Runtime, storage.Store, error) {
	store, err := storage.NewBoltStore(cfg.Database.Connection)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	registry := driver.Default()
	if err := config.ApplyDriverOpts(cfg, registry); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("apply driver options: %w", err)
	}

	rt := runtime.New(store, registry, cfg)
	return rt, store, nil
}

// devTokenResolver is the in-process stand-in for a real identity
// service, modeled on doni's devstack "noauth" policy context: a single
// static admin token granted the admin role, sufficient for development
// and the CLI's own use until a real token validation client is wired
// in (spec §6 leaves auth token validation as an external collaborator).
func devTokenResolver(adminToken string) api.TokenResolver {
	return api.StaticTokenResolver(map[string]api.AuthContext{
		adminToken: {UserID: "admin", ProjectID: "admin", Roles: []string{"admin"}},
	})
}
