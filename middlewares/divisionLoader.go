package middlewares

import (
	"context"

	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type divisionReader struct {
	db *gorm.DB
}

func (r *divisionReader) getDivisions(ctx context.Context, ids []int) []*dataloader.Result[*models.Division] {
	var results []models.Division
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error
	if err != nil {
		return handleError[*models.Division](len(ids), err)
	}

	return generateLoaderResults(results, ids, func(d models.Division) int { return d.ID })
}

func GetDivision(ctx context.Context, id int) (*models.Division, error) {
	loaders := For(ctx)
	return loaders.DivisionLoader.Load(ctx, id)()
}

func GetDivisions(ctx context.Context, ids []int) ([]*models.Division, []error) {
	loaders := For(ctx)
	return loaders.DivisionLoader.LoadMany(ctx, ids)()
}
