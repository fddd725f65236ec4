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

type Division struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`
}

type NewDivision struct {
	Code string `json:"code" validate:"required,division_code"`
	Name string `json:"name" validate:"required,min=2,max=100"`
}

func (input *NewDivision) validate(ctx context.Context, db *gorm.DB, id int) error {
	input.Code = utils.NormalizeCode(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if id > 0 {
		if err := utils.ValidateUnique[Division](ctx, db, "code", input.Code, id); err != nil {
			return utils.NewConflictError("division code %s already exists", input.Code)
		}
	}
	return nil
}

func ListDivisions(ctx context.Context) ([]*Division, error) {
	db := config.GetDB()
	results := []*Division{}
	if err := db.WithContext(ctx).Order("code").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetDivision(ctx context.Context, id int) (*Division, error) {
	var division Division
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&division).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("division %d not found", id)
		}
		return nil, err
	}
	return &division, nil
}

func getDivisionByCode(ctx context.Context, db *gorm.DB, code string) (*Division, error) {
	code = utils.NormalizeCode(code)
	var division Division
	err := db.WithContext(ctx).Where("code = ?", code).Take(&division).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.NewNotFoundError("division %s not found", code)
		}
		return nil, err
	}
	return &division, nil
}

// UpsertDivision creates the division or renames the one holding the code.
func UpsertDivision(ctx context.Context, input *NewDivision) (*Division, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db, 0); err != nil {
		return nil, err
	}

	division := Division{
		Code: input.Code,
		Name: input.Name,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&division).Error
	if err != nil {
		return nil, utils.ClassifyStoreError(err, "division")
	}

	invalidateMastersCache()
	return getDivisionByCode(ctx, db, input.Code)
}

func RenameDivision(ctx context.Context, id int, input *NewDivision) (*Division, error) {
	db := config.GetDB()
	division, err := GetDivision(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, db, id); err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Model(division).Updates(map[string]interface{}{
		"Code": input.Code,
		"Name": input.Name,
	}).Error
	if err != nil {
		if utils.IsDuplicateKey(err) {
			return nil, utils.NewConflictError("division code %s already exists", input.Code)
		}
		return nil, utils.ClassifyStoreError(err, "division")
	}
	division.Code = input.Code
	division.Name = input.Name

	invalidateMastersCache()
	return division, nil
}

func DeleteDivision(ctx context.Context, id int) (*Division, error) {
	db := config.GetDB()
	division, err := GetDivision(ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Letter](ctx, db, "division_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewConflictError("division %s is in use by %d letter(s)", division.Code, count)
	}

	result := db.WithContext(ctx).Where("id = ?", id).Delete(&Division{})
	if result.Error != nil {
		if utils.IsForeignKeyViolation(result.Error) {
			return nil, utils.NewConflictError("division %s is in use", division.Code)
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.NewNotFoundError("division %d not found", id)
	}

	invalidateMastersCache()
	return division, nil
}
