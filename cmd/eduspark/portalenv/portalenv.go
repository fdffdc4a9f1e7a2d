// Package portalenv opens the record store, object store and signed-in
// session shared by the portal commands.
package portalenv

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eduspark/portal/pkg/config"
	"github.com/eduspark/portal/pkg/identity"
	"github.com/eduspark/portal/pkg/logger"
	"github.com/eduspark/portal/pkg/objectstore"
	"github.com/eduspark/portal/pkg/storage"
	storageutils "github.com/eduspark/portal/pkg/storage/utils"
)

// ErrNoObjectsRoot is returned by RequireObjects when objects.root is unset.
var ErrNoObjectsRoot = errors.New("objects root is not configured, set objects.root or pass --objects-root")

var storageFlags = []string{
	config.FlagStorage,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagObjectsRoot,
}

// Env is everything a portal command works against.
type Env struct {
	Config   *config.Config
	Store    storage.Driver
	Identity identity.Provider
	Objects  objectstore.Driver
	Logger   *slog.Logger
}

// AddFlags registers the storage selection flags on cmd.
func AddFlags(cmd *cobra.Command) {
	var provider, sqlitePath, postgresDSN, objectsRoot string
	config.AddStringFlag(cmd, config.Flags, config.FlagStorage, &provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagObjectsRoot, &objectsRoot)
}

// Open resolves configuration for cmd and opens its stores. The caller must
// Close the returned Env.
func Open(cmd *cobra.Command) (*Env, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, storageFlags)
	cfg := config.FromViper(v)

	log := logger.Nop()
	if debug {
		log = logger.New(
			logger.WithDebug(true),
			logger.WithPretty(true),
			logger.WithWriter(os.Stderr),
		)
	}

	store, err := storageutils.NewDriver(cmd.Context(), &storageutils.NewDriverOpts{
		ProviderType: cfg.Storage.Provider,
		SQLitePath:   cfg.Storage.SQLitePath,
		PostgresDSN:  cfg.Storage.PostgresDSN,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	env := &Env{
		Config:   cfg,
		Store:    store,
		Identity: identity.NewTokenProvider(cfg.Auth.JWTSecret, cfg.Auth.AccessToken),
		Logger:   log,
	}

	if cfg.Objects.Root != "" {
		objects, err := objectstore.NewLocal(cfg.Objects.Root, cfg.Objects.BaseURL)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("opening objects root: %w", err)
		}
		env.Objects = objects
	}

	return env, nil
}

// RequireObjects returns the object store or ErrNoObjectsRoot.
func (e *Env) RequireObjects() (objectstore.Driver, error) {
	if e.Objects == nil {
		return nil, ErrNoObjectsRoot
	}
	return e.Objects, nil
}

func (e *Env) Close() error {
	return e.Store.Close()
}
