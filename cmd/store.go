package main

import (
	"context"

	"github.com/neetlogiq/cutoff-cli/internal/store"
)

// initStore opens the configured store and ensures the schema exists.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
