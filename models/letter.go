package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	maxAllocationAttempts = 2
	scopeLockTTL          = 10 * time.Second
	scopeLockWait         = 3 * time.Second
)

var tracer trace.Tracer = otel.Tracer("github.com/DSQL-MONGKEY/e-email-kemtan/models")

// Letter is an issued number. Rows are append-only.
type Letter struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	CategoryCode string    `gorm:"size:10;not null;index;uniqueIndex:idx_letters_scope_daily,priority:1" json:"category_code"`
	Category     *Category `gorm:"foreignKey:CategoryCode;references:Code;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	DivisionId   int       `gorm:"not null;index;uniqueIndex:idx_letters_scope_daily,priority:2" json:"division_id"`
	Division     *Division `gorm:"foreignKey:DivisionId;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	IssuedOn     Date      `gorm:"type:date;not null;index;uniqueIndex:idx_letters_scope_daily,priority:3" json:"issued_on"`
	GlobalSerial int64     `gorm:"not null;uniqueIndex" json:"global_serial"`
	DailySerial  int       `gorm:"not null;uniqueIndex:idx_letters_scope_daily,priority:4" json:"daily_serial"`
	NumberText   string    `gorm:"size:120;not null;uniqueIndex" json:"number_text"`
	CreatedBy    *string   `gorm:"size:255" json:"created_by"`
	Purpose      *string   `gorm:"size:300" json:"purpose"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (l *Letter) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

type NewLetterNumber struct {
	CategoryCode string  `json:"categoryCode" validate:"required,category_code"`
	DivisionCode string  `json:"divisionCode" validate:"required,max=20"`
	IssueDate    string  `json:"issueDate" validate:"omitempty,ymd"`
	Purpose      *string `json:"purpose" validate:"omitempty,max=300"`
	CreatedBy    string  `json:"-"`
}

// IssuedLetter is the generation response.
type IssuedLetter struct {
	Id           string  `json:"id"`
	Number       string  `json:"number"`
	IssuedOn     Date    `json:"issuedOn"`
	Category     string  `json:"category"`
	DivisionId   int     `json:"divisionId"`
	GlobalSerial int64   `json:"globalSerial"`
	DailySerial  int     `json:"dailySerial"`
	CreatedBy    *string `json:"createdBy"`
	Purpose      *string `json:"purpose"`
}

func (l *Letter) issued() *IssuedLetter {
	return &IssuedLetter{
		Id:           l.ID,
		Number:       l.NumberText,
		IssuedOn:     l.IssuedOn,
		Category:     l.CategoryCode,
		DivisionId:   l.DivisionId,
		GlobalSerial: l.GlobalSerial,
		DailySerial:  l.DailySerial,
		CreatedBy:    l.CreatedBy,
		Purpose:      l.Purpose,
	}
}

func (input *NewLetterNumber) validate() error {
	input.CategoryCode = utils.NormalizeCode(input.CategoryCode)
	input.DivisionCode = utils.NormalizeCode(input.DivisionCode)
	input.IssueDate = strings.TrimSpace(input.IssueDate)
	if input.Purpose != nil {
		input.Purpose = utils.NilIfEmpty(strings.TrimSpace(*input.Purpose))
	}
	input.CreatedBy = strings.TrimSpace(input.CreatedBy)
	return utils.ValidateStruct(input)
}

func (input *NewLetterNumber) issuedOn() (Date, error) {
	if input.IssueDate == "" {
		return DateFromTime(utils.Today(config.AgencyLocation())), nil
	}
	d, err := ParseDate(input.IssueDate)
	if err != nil {
		return Date{}, utils.NewValidationError("issueDate", "issueDate must be a valid date (YYYY-MM-DD)")
	}
	return d, nil
}

// GenerateLetterNumber allocates the next global and daily serials for the
// (category, division, date) scope and stores the letter, all in one transaction.
// Nothing is consumed unless the transaction commits.
func GenerateLetterNumber(ctx context.Context, input *NewLetterNumber) (*IssuedLetter, error) {
	ctx, span := tracer.Start(ctx, "GenerateLetterNumber")
	defer span.End()

	if err := input.validate(); err != nil {
		return nil, err
	}
	issuedOn, err := input.issuedOn()
	if err != nil {
		return nil, err
	}
	if input.CreatedBy == "" {
		input.CreatedBy = utils.ActorFromContext(ctx)
	}
	span.SetAttributes(
		attribute.String("letter.category", input.CategoryCode),
		attribute.String("letter.division", input.DivisionCode),
		attribute.String("letter.issued_on", issuedOn.String()),
	)

	release, _ := utils.ObtainScopeLock(ctx, input.CategoryCode+"|"+input.DivisionCode+"|"+issuedOn.String(), scopeLockTTL, scopeLockWait)
	defer release()

	db := config.GetDB()
	logger := config.GetLogger()

	var letter *Letter
	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		letter, err = allocateLetter(ctx, db, input, issuedOn)
		if err == nil {
			break
		}
		if !isAllocationRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, utils.ClassifyStoreError(err, "letter")
		}
		config.LogError(logger, "Letter", "GenerateLetterNumber", "allocation attempt failed", map[string]interface{}{
			"attempt":  attempt,
			"category": input.CategoryCode,
			"division": input.DivisionCode,
			"issuedOn": issuedOn.String(),
		}, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, utils.NewInternalError("could not allocate a letter number, please retry", err)
	}

	span.SetAttributes(
		attribute.Int64("letter.global_serial", letter.GlobalSerial),
		attribute.Int("letter.daily_serial", letter.DailySerial),
	)
	invalidateOverviewCache()
	return letter.issued(), nil
}

func isAllocationRetryable(err error) bool {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return false
	}
	return errors.Is(err, errCounterRace) || utils.IsDuplicateKey(err) || utils.IsRetryableTxError(err)
}

// allocateLetter is one attempt: lock scope then global counter, bump both,
// insert the letter and its outbox event.
func allocateLetter(ctx context.Context, db *gorm.DB, input *NewLetterNumber, issuedOn Date) (*Letter, error) {
	var letter *Letter
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category, err := getCategory(ctx, tx, input.CategoryCode)
		if err != nil {
			return err
		}
		division, err := getDivisionByCode(ctx, tx, input.DivisionCode)
		if err != nil {
			return err
		}

		scopeCounter, err := lockCounter(ctx, tx, ScopeKey(category.Code, division.ID, issuedOn), func() (int64, error) {
			return maxDailySerial(ctx, tx, category.Code, division.ID, issuedOn)
		})
		if err != nil {
			return err
		}
		globalCounter, err := lockCounter(ctx, tx, GlobalCounterName, func() (int64, error) {
			return maxGlobalSerial(ctx, tx)
		})
		if err != nil {
			return err
		}

		daily, err := advanceCounter(ctx, tx, scopeCounter)
		if err != nil {
			return err
		}
		global, err := advanceCounter(ctx, tx, globalCounter)
		if err != nil {
			return err
		}

		l := &Letter{
			CategoryCode: category.Code,
			DivisionId:   division.ID,
			IssuedOn:     issuedOn,
			GlobalSerial: global,
			DailySerial:  int(daily),
			NumberText:   FormatLetterNumber(category.Code, global, int(daily), division.Code, issuedOn),
			CreatedBy:    utils.NilIfEmpty(input.CreatedBy),
			Purpose:      input.Purpose,
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Omit("Category", "Division").Create(l).Error; err != nil {
			return err
		}
		if err := recordLetterIssued(ctx, tx, l, division.Code); err != nil {
			return err
		}
		letter = l
		return nil
	}, allocationTxOptions(db)...)
	if err != nil {
		return nil, err
	}
	return letter, nil
}

// READ COMMITTED per transaction so locking reads see rows committed by a
// concurrent creator. SQLite serializes writers on its own.
func allocationTxOptions(db *gorm.DB) []*sql.TxOptions {
	switch db.Dialector.Name() {
	case config.DriverMySQL, config.DriverPostgres:
		return []*sql.TxOptions{{Isolation: sql.LevelReadCommitted}}
	}
	return nil
}

func GetLetter(ctx context.Context, id string) (*Letter, error) {
	var letter Letter
	err := config.GetDB().WithContext(ctx).Where("id = ?", id).Take(&letter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("letter %s not found", id)
		}
		return nil, err
	}
	return &letter, nil
}
