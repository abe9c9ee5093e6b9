package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Purge deletes audited results older than the given age.
func (a *App) Purge(ctx context.Context, opts PurgeOptions) error {
	if opts.OlderThan <= 0 {
		return errors.New("--older-than must be positive")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; nothing to purge")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cutoff := time.Now().UTC().Add(-opts.OlderThan)
	removed, err := store.DeleteResultsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	a.Logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("purge finished")
	fmt.Fprintf(os.Stdout, "removed %d results older than %s\n", removed, cutoff.Format(time.RFC3339))
	return nil
}
