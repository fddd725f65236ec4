package models

import (
	"context"
	"strings"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Category struct {
	Code      string    `gorm:"primaryKey;size:10" json:"code"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

type NewCategory struct {
	Code     string `json:"code" validate:"required,category_code"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	IsActive *bool  `json:"isActive"`
}

type UpdateCategory struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	IsActive *bool  `json:"isActive"`
}

func (input *NewCategory) validate() error {
	input.Code = utils.NormalizeCode(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.IsActive == nil {
		input.IsActive = utils.NewTrue()
	}
	return utils.ValidateStruct(input)
}

func (input *UpdateCategory) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if input.IsActive == nil {
		input.IsActive = utils.NewTrue()
	}
	return utils.ValidateStruct(input)
}

func ListCategories(ctx context.Context, activeOnly bool) ([]*Category, error) {
	db := config.GetDB()
	results := []*Category{}

	dbCtx := db.WithContext(ctx)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	if err := dbCtx.Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetCategory(ctx context.Context, code string) (*Category, error) {
	return getCategory(ctx, config.GetDB(), code)
}

func getCategory(ctx context.Context, db *gorm.DB, code string) (*Category, error) {
	code = utils.NormalizeCode(code)
	var category Category
	err := db.WithContext(ctx).Where("code = ?", code).Take(&category).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("category %s not found", code)
		}
		return nil, err
	}
	return &category, nil
}

// UpsertCategory creates the category or replaces name/isActive of an existing code.
func UpsertCategory(ctx context.Context, input *NewCategory) (*Category, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	category := Category{
		Code:     input.Code,
		Name:     input.Name,
		IsActive: input.IsActive,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "is_active", "updated_at"}),
	}).Create(&category).Error
	if err != nil {
		return nil, utils.ClassifyStoreError(err, "category")
	}

	invalidateMastersCache()
	return getCategory(ctx, db, input.Code)
}

func RenameCategory(ctx context.Context, code string, input *UpdateCategory) (*Category, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	category, err := getCategory(ctx, db, code)
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Model(category).Updates(map[string]interface{}{
		"Name":     input.Name,
		"IsActive": *input.IsActive,
	}).Error
	if err != nil {
		return nil, utils.ClassifyStoreError(err, "category")
	}
	category.Name = input.Name
	category.IsActive = input.IsActive

	invalidateMastersCache()
	return category, nil
}

// DeleteCategory refuses while letters reference the code. The preflight
// count gives a friendly message; the store's foreign key is the real guard.
func DeleteCategory(ctx context.Context, code string) (*Category, error) {
	db := config.GetDB()
	category, err := getCategory(ctx, db, code)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Letter](ctx, db, "category_code = ?", category.Code)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewConflictError("category %s is in use by %d letter(s)", category.Code, count)
	}

	result := db.WithContext(ctx).Where("code = ?", category.Code).Delete(&Category{})
	if result.Error != nil {
		if utils.IsForeignKeyViolation(result.Error) {
			return nil, utils.NewConflictError("category %s is in use", category.Code)
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewNotFoundError("category %s not found", category.Code)
	}

	invalidateMastersCache()
	return category, nil
}
