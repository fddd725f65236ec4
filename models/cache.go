package models

import (
	"context"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"golang.org/x/sync/errgroup"
)

const (
	mastersCacheKey     = "Letters:Masters"
	overviewCacheKey    = "Letters:Overview"
	mastersCacheTimeout = 60 * time.Second
)

// Masters is what the generation form needs: active categories and all divisions.
type Masters struct {
	Categories []*Category `json:"categories"`
	Divisions  []*Division `json:"divisions"`
}

func GetMasters(ctx context.Context) (*Masters, error) {
	return utils.RememberRedis(ctx, mastersCacheKey, utils.GetCacheLifespan(mastersCacheTimeout), loadMasters)
}

func loadMasters(ctx context.Context) (*Masters, error) {
	var (
		g       errgroup.Group
		masters Masters
	)
	g.Go(func() error {
		categories, err := ListCategories(ctx, true)
		masters.Categories = categories
		return err
	})
	g.Go(func() error {
		divisions, err := ListDivisions(ctx)
		masters.Divisions = divisions
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &masters, nil
}

// overview carries master counts, so master changes drop both keys
func invalidateMastersCache() {
	utils.RemoveRedisCache(mastersCacheKey, overviewCacheKey)
}

func invalidateOverviewCache() {
	utils.RemoveRedisCache(overviewCacheKey)
}
