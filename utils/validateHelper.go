package utils

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	categoryCodePattern = regexp.MustCompile(`^[A-Z]{1,10}$`)
	divisionCodePattern = regexp.MustCompile(`^[A-Z0-9.\-]{2,20}$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

func IsCategoryCode(s string) bool { return categoryCodePattern.MatchString(s) }

func IsDivisionCode(s string) bool { return divisionCodePattern.MatchString(s) }

// Validator returns the shared validator with json field names and the domain tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("category_code", func(fl validator.FieldLevel) bool {
			return IsCategoryCode(fl.Field().String())
		})
		_ = v.RegisterValidation("division_code", func(fl validator.FieldLevel) bool {
			return IsDivisionCode(fl.Field().String())
		})
		_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}
			_, err := ParseDate(s)
			return err == nil
		})
		validate = v
	})
	return validate
}

// ValidateStruct runs struct tags and returns a validation AppError with per-field messages.
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	return NewValidationErrors(ProcessValidationErrors(ve))
}

func ProcessValidationErrors(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return map[string]string{"_": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = validationMessage(ve)
	}
	return errorResponse
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "category_code":
		return fe.Field() + " must be 1-10 letters A-Z"
	case "division_code":
		return fe.Field() + " must be 2-20 characters of A-Z, 0-9, '.' or '-'"
	case "ymd":
		return fe.Field() + " must be a valid date (YYYY-MM-DD)"
	}
	return fe.Field() + " is invalid (" + fe.Tag() + ")"
}

// ParseDate parses a calendar date in YYYY-MM-DD form, rejecting impossible days.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.New("invalid date: " + s)
	}
	return t, nil
}

// ValidateUnique fails with a conflict if another row (not exceptId) already holds value in column.
func ValidateUnique[T any](ctx context.Context, db *gorm.DB, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if exceptId == nil || reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, db, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, db, column+" = ? AND NOT id = ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return NewConflictError("duplicate %s", column)
	}
	return nil
}

// ResourceCountWhere counts T rows matching condition on db (pass the tx inside transactions).
func ResourceCountWhere[T any](ctx context.Context, db *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
