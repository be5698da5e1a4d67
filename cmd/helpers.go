package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/gemba-ops/shopsync/internal/fetcher"
	"github.com/gemba-ops/shopsync/internal/notify"
	"github.com/gemba-ops/shopsync/internal/runner"
	"github.com/gemba-ops/shopsync/internal/store"
)

// openStore connects the configured backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store, store.RetryFromConfig(cfg.Retry))
}

// buildRunner assembles the full pipeline from the loaded configuration.
// The returned closer must be called when the runner is done.
func buildRunner(ctx context.Context) (*runner.Runner, *time.Location, func(), error) {
	zone, err := cfg.Zone()
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, nil, eris.Wrap(err, "build notifier")
	}

	r := runner.New(cfg, zone, fetcher.NewLocalDir(cfg.Dirs), st, notifier)
	return r, zone, func() { st.Close() }, nil //nolint:errcheck
}
