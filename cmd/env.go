package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gchange/internal/nglist"
	"github.com/sells-group/gchange/internal/pipeline"
	"github.com/sells-group/gchange/internal/store"
)

// appEnv holds the store, NG-list provider and pipeline shared by the
// format, batch and serve commands.
type appEnv struct {
	Store    store.Store // may be nil
	Provider nglist.Provider
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store. driver overrides
// store.driver when non-empty.
func initStore(ctx context.Context, driver string) (store.Store, error) {
	if driver == "" {
		driver = cfg.Store.Driver
	}
	st, err := store.Open(ctx, driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates config for mode and builds the pipeline. NG lists
// come from nglist.source; run history goes to the store when one is
// open.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	env := &appEnv{}
	switch cfg.NGList.Source {
	case "sqlite", "postgres":
		st, err := initStore(ctx, cfg.NGList.Source)
		if err != nil {
			return nil, err
		}
		env.Store = st
		env.Provider = st
	default:
		env.Provider = nglist.NewDirProvider(cfg.NGList.Dir)
		if cfg.Store.RecordRuns {
			st, err := initStore(ctx, "")
			if err != nil {
				zap.L().Warn("run history disabled, store unavailable", zap.Error(err))
			} else {
				env.Store = st
			}
		}
	}

	var recorder pipeline.RunRecorder
	if env.Store != nil && cfg.Store.RecordRuns {
		recorder = env.Store
	}
	env.Pipeline = pipeline.New(env.Provider, recorder, opts)
	return env, nil
}
