package middlewares

import (
	"context"

	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type categoryReader struct {
	db *gorm.DB
}

func (r *categoryReader) getCategories(ctx context.Context, codes []string) []*dataloader.Result[*models.Category] {
	var results []models.Category
	err := r.db.WithContext(ctx).
		Where("code IN ?", codes).
		Find(&results).Error
	if err != nil {
		return handleError[*models.Category](len(codes), err)
	}

	return generateLoaderResults(results, codes, func(c models.Category) string { return c.Code })
}

func GetCategory(ctx context.Context, code string) (*models.Category, error) {
	loaders := For(ctx)
	return loaders.CategoryLoader.Load(ctx, code)()
}

func GetCategories(ctx context.Context, codes []string) ([]*models.Category, []error) {
	loaders := For(ctx)
	return loaders.CategoryLoader.LoadMany(ctx, codes)()
}
