package livingapps

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ausgaben/internal/core"
)

// FetchSnapshot loads both collections concurrently. If either request
// fails the other is cancelled and the first error is returned as is.
func (c *Client) FetchSnapshot(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cats, err := c.ListCategories(gctx)
		snap.Categories = cats
		return err
	})
	g.Go(func() error {
		exps, err := c.ListExpenses(gctx)
		snap.Expenses = exps
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Snapshot{}, err
	}
	snap.FetchedAt = time.Now()
	return snap, nil
}
