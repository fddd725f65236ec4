package models

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"gorm.io/gorm"
)

const (
	DefaultLetterPageSize = 10
	MinLetterPageSize     = 5
	MaxLetterPageSize     = 100
	MaxLetterExportRows   = 5000
)

// LetterFilterInput is the raw query string form of a listing request.
type LetterFilterInput struct {
	From     string `form:"from"`
	To       string `form:"to"`
	Category string `form:"category"`
	Division string `form:"division"`
	Q        string `form:"q"`
	Page     string `form:"page"`
	Limit    string `form:"limit"`
}

type LetterFilter struct {
	From     *Date
	To       *Date
	Category string
	Division string
	Q        string
	Page     int
	Limit    int
}

func (f LetterFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ParseLetterFilter normalizes a listing request. Bad dates are validation
// errors; a bad page becomes 1 and the limit is clamped to [5,100].
func ParseLetterFilter(input LetterFilterInput) (LetterFilter, error) {
	f := LetterFilter{
		Category: utils.NormalizeCode(input.Category),
		Division: utils.NormalizeCode(input.Division),
		Q:        strings.TrimSpace(input.Q),
		Page:     1,
		Limit:    DefaultLetterPageSize,
	}

	fields := map[string]string{}
	if s := strings.TrimSpace(input.From); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			fields["from"] = "from must be a valid date (YYYY-MM-DD)"
		} else {
			f.From = &d
		}
	}
	if s := strings.TrimSpace(input.To); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			fields["to"] = "to must be a valid date (YYYY-MM-DD)"
		} else {
			f.To = &d
		}
	}
	if len(fields) > 0 {
		return f, utils.NewValidationErrors(fields)
	}

	if p, err := strconv.Atoi(strings.TrimSpace(input.Page)); err == nil && p >= 1 {
		f.Page = p
	}
	if l, err := strconv.Atoi(strings.TrimSpace(input.Limit)); err == nil {
		f.Limit = clampLimit(l)
	}
	return f, nil
}

func clampLimit(l int) int {
	if l < MinLetterPageSize {
		return MinLetterPageSize
	}
	if l > MaxLetterPageSize {
		return MaxLetterPageSize
	}
	return l
}

// LetterRow is a letter joined with its division. CategoryName is filled by the
// category loader at the edge.
type LetterRow struct {
	Id           string    `json:"id"`
	NumberText   string    `json:"number_text"`
	IssuedOn     Date      `json:"issued_on"`
	CategoryCode string    `json:"category_code"`
	CategoryName string    `json:"category_name" gorm:"-"`
	DivisionId   int       `json:"division_id"`
	DivisionCode string    `json:"division_code"`
	DivisionName string    `json:"division_name"`
	GlobalSerial int64     `json:"global_serial"`
	DailySerial  int       `json:"daily_serial"`
	CreatedBy    *string   `json:"created_by"`
	Purpose      *string   `json:"purpose"`
	CreatedAt    time.Time `json:"created_at"`
}

type LetterPage struct {
	Items []*LetterRow `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

const letterRowColumns = "letters.id, letters.number_text, letters.issued_on, letters.category_code, " +
	"letters.division_id, divisions.code AS division_code, divisions.name AS division_name, " +
	"letters.global_serial, letters.daily_serial, letters.created_by, letters.purpose, letters.created_at"

// searchStrategy is one stage of the degrading free-text search.
type searchStrategy struct {
	Name   string
	Column string
}

// Stages are tried in order; the first one producing rows wins.
var letterSearchStrategies = []searchStrategy{
	{Name: "number_text", Column: "letters.number_text"},
	{Name: "division_code", Column: "divisions.code"},
	{Name: "category_code", Column: "letters.category_code"},
}

func letterBaseQuery(ctx context.Context, db *gorm.DB, f LetterFilter, stage *searchStrategy) *gorm.DB {
	q := db.WithContext(ctx).Table("letters").
		Joins("JOIN divisions ON divisions.id = letters.division_id")
	if f.From != nil {
		q = q.Where("letters.issued_on >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("letters.issued_on <= ?", *f.To)
	}
	if f.Category != "" {
		q = q.Where("letters.category_code = ?", f.Category)
	}
	if f.Division != "" {
		q = q.Where("divisions.code = ?", f.Division)
	}
	if stage != nil && f.Q != "" {
		pattern := "%" + utils.EscapeLike(strings.ToUpper(f.Q)) + "%"
		q = q.Where("UPPER("+stage.Column+") LIKE ? ESCAPE '!'", pattern)
	}
	return q
}

func fetchLetterRows(ctx context.Context, db *gorm.DB, f LetterFilter, stage *searchStrategy, limit int, offset int) ([]*LetterRow, error) {
	rows := []*LetterRow{}
	err := letterBaseQuery(ctx, db, f, stage).
		Select(letterRowColumns).
		Order("letters.created_at DESC, letters.global_serial DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func fetchLetterPage(ctx context.Context, db *gorm.DB, f LetterFilter, stage *searchStrategy) (*LetterPage, error) {
	var total int64
	if err := letterBaseQuery(ctx, db, f, stage).Count(&total).Error; err != nil {
		return nil, err
	}
	rows, err := fetchLetterRows(ctx, db, f, stage, f.Limit, f.Offset())
	if err != nil {
		return nil, err
	}
	return &LetterPage{Items: rows, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// ListLetters returns one page of letters, newest first. With free text the
// search degrades number text -> division code -> category code.
func ListLetters(ctx context.Context, f LetterFilter) (*LetterPage, error) {
	db := config.GetDB()
	if f.Q == "" {
		return fetchLetterPage(ctx, db, f, nil)
	}

	var page *LetterPage
	for i := range letterSearchStrategies {
		var err error
		page, err = fetchLetterPage(ctx, db, f, &letterSearchStrategies[i])
		if err != nil {
			return nil, err
		}
		if len(page.Items) > 0 {
			return page, nil
		}
	}
	return page, nil
}

// ExportLetters returns up to MaxLetterExportRows rows for the filter, using
// the same search stages as ListLetters but ignoring pagination.
func ExportLetters(ctx context.Context, f LetterFilter) ([]*LetterRow, error) {
	db := config.GetDB()
	if f.Q == "" {
		return fetchLetterRows(ctx, db, f, nil, MaxLetterExportRows, 0)
	}
	var rows []*LetterRow
	for i := range letterSearchStrategies {
		var err error
		rows, err = fetchLetterRows(ctx, db, f, &letterSearchStrategies[i], MaxLetterExportRows, 0)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	return rows, nil
}
