package middlewares

import (
	"context"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch master lookups made while rendering letter rows.
type Loaders struct {
	CategoryLoader *dataloader.Loader[string, *models.Category]
	DivisionLoader *dataloader.Loader[int, *models.Division]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	categoryReader := &categoryReader{db: conn}
	divisionReader := &divisionReader{db: conn}

	return &Loaders{
		CategoryLoader: dataloader.NewBatchedLoader(categoryReader.getCategories, dataloader.WithWait[string, *models.Category](time.Millisecond)),
		DivisionLoader: dataloader.NewBatchedLoader(divisionReader.getDivisions, dataloader.WithWait[int, *models.Division](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request's loaders, or fresh ones outside an HTTP request.
func For(ctx context.Context) *Loaders {
	if loaders, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return loaders
	}
	return NewLoaders(config.GetDB())
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults orders db results by the requested keys; a missing key yields nil data.
func generateLoaderResults[K comparable, T any](results []T, keys []K, keyOf func(T) K) []*dataloader.Result[*T] {
	resultMap := make(map[K]*T, len(results))
	for i := range results {
		resultMap[keyOf(results[i])] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(keys))
	for _, key := range keys {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[key]})
	}
	return loaderResults
}

// EnrichLetterRows fills CategoryName on each row through the category loader.
func EnrichLetterRows(ctx context.Context, rows []*models.LetterRow) error {
	if len(rows) == 0 {
		return nil
	}
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.CategoryCode)
	}
	codes = utils.UniqueSlice(codes)

	categories, errs := GetCategories(ctx, codes)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	names := make(map[string]string, len(codes))
	for i, code := range codes {
		if categories[i] != nil {
			names[code] = categories[i].Name
		}
	}
	for _, r := range rows {
		r.CategoryName = names[r.CategoryCode]
	}
	return nil
}
