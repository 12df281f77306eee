package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"packls/internal/checker"
)

// Lister runs the checker's list-definitions command.
type Lister interface {
	ListDefinitions(ctx context.Context) ([]checker.Definition, error)
}

// Refresher repopulates the definitions cache from the checker. Refreshes
// are single-flighted (open/save storms collapse into one listing) and
// retried with exponential backoff, because list-definitions races a
// booting bundler right after the editor opens.
type Refresher struct {
	store  Store
	lister Lister
	logger *slog.Logger
	group  singleflight.Group
}

// NewRefresher creates a Refresher.
func NewRefresher(store Store, lister Lister, logger *slog.Logger) *Refresher {
	return &Refresher{
		store:  store,
		lister: lister,
		logger: logger,
	}
}

// Refresh lists definitions and replaces the cache. Concurrent callers
// share one in-flight refresh. A missing checker command is permanent and
// not retried.
func (r *Refresher) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("refresh", func() (any, error) {
		return nil, r.refresh(ctx)
	})
	return err
}

func (r *Refresher) refresh(ctx context.Context) error {
	var defs []checker.Definition

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		listed, err := r.lister.ListDefinitions(ctx)
		if err != nil {
			var notFound *checker.NotFoundError
			if errors.As(err, &notFound) {
				return backoff.Permanent(err)
			}
			r.logger.Debug("definitions listing failed, will retry", "error", err)
			return err
		}
		defs = listed
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 1 * time.Minute

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}

	if err := r.store.ReplaceDefinitions(ctx, defs); err != nil {
		return err
	}

	r.logger.Info("definitions cache refreshed", "count", len(defs))
	return nil
}
