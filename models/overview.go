package models

import (
	"context"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	overviewSeriesDays   = 30
	overviewTopLimit     = 5
	overviewRecentLimit  = 8
	overviewCacheTimeout = 30 * time.Second
)

type OverviewTotals struct {
	Letters    int64 `json:"letters"`
	Today      int64 `json:"today"`
	ThisMonth  int64 `json:"thisMonth"`
	Categories int64 `json:"categories"`
	Divisions  int64 `json:"divisions"`
}

type OverviewSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type OverviewTopRow struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int64  `json:"count" gorm:"column:cnt"`
}

type Overview struct {
	Totals         OverviewTotals        `json:"totals"`
	Series30       []OverviewSeriesPoint `json:"series30"`
	TopCategories  []*OverviewTopRow     `json:"topCategories"`
	TopDivisions   []*OverviewTopRow     `json:"topDivisions"`
	RecentLetters  []*LetterRow          `json:"recentLetters"`
	RecentVisitors []*RecentVisitor      `json:"recentVisitors"`
}

// GetOverview serves the dashboard aggregate, cached for 30s when redis is up.
func GetOverview(ctx context.Context) (*Overview, error) {
	return utils.RememberRedis(ctx, overviewCacheKey, utils.GetCacheLifespan(overviewCacheTimeout), func(ctx context.Context) (*Overview, error) {
		return BuildOverview(ctx, config.GetDB(), DateFromTime(utils.Today(config.AgencyLocation())))
	})
}

// BuildOverview runs every aggregate concurrently. All queries run to completion;
// the first error fails the whole overview.
func BuildOverview(ctx context.Context, db *gorm.DB, today Date) (*Overview, error) {
	var (
		g        errgroup.Group
		overview Overview
		series   []seriesRow
	)
	monthStart := NewDate(today.Year(), today.Month(), 1)
	seriesStart := today.AddDays(-(overviewSeriesDays - 1))

	count := func(dest *int64, model interface{}, where string, args ...interface{}) func() error {
		return func() error {
			q := db.WithContext(ctx).Model(model)
			if where != "" {
				q = q.Where(where, args...)
			}
			return q.Count(dest).Error
		}
	}

	g.Go(count(&overview.Totals.Letters, &Letter{}, ""))
	g.Go(count(&overview.Totals.Today, &Letter{}, "issued_on = ?", today))
	g.Go(count(&overview.Totals.ThisMonth, &Letter{}, "issued_on >= ? AND issued_on <= ?", monthStart, today))
	g.Go(count(&overview.Totals.Categories, &Category{}, ""))
	g.Go(count(&overview.Totals.Divisions, &Division{}, ""))

	g.Go(func() error {
		return db.WithContext(ctx).Model(&Letter{}).
			Select("issued_on, COUNT(*) AS cnt").
			Where("issued_on >= ? AND issued_on <= ?", seriesStart, today).
			Group("issued_on").
			Scan(&series).Error
	})
	g.Go(func() error {
		overview.TopCategories = []*OverviewTopRow{}
		return db.WithContext(ctx).Table("letters").
			Select("letters.category_code AS code, categories.name AS name, COUNT(*) AS cnt").
			Joins("JOIN categories ON categories.code = letters.category_code").
			Group("letters.category_code, categories.name").
			Order("cnt DESC, code ASC").
			Limit(overviewTopLimit).
			Scan(&overview.TopCategories).Error
	})
	g.Go(func() error {
		overview.TopDivisions = []*OverviewTopRow{}
		return db.WithContext(ctx).Table("letters").
			Select("divisions.code AS code, divisions.name AS name, COUNT(*) AS cnt").
			Joins("JOIN divisions ON divisions.id = letters.division_id").
			Group("divisions.code, divisions.name").
			Order("cnt DESC, code ASC").
			Limit(overviewTopLimit).
			Scan(&overview.TopDivisions).Error
	})
	g.Go(func() error {
		rows, err := fetchLetterRows(ctx, db, LetterFilter{}, nil, overviewRecentLimit, 0)
		overview.RecentLetters = rows
		return err
	})
	g.Go(func() error {
		visitors, err := GetRecentVisitors(ctx, db, RecentVisitorsLimit)
		overview.RecentVisitors = visitors
		return err
	})

	if err := g.Wait(); err != nil {
		config.LogError(config.GetLogger(), "Overview", "BuildOverview", "aggregate query failed", nil, err)
		return nil, err
	}

	overview.Series30 = fillSeries(series, seriesStart, overviewSeriesDays)
	return &overview, nil
}

type seriesRow struct {
	IssuedOn Date
	Cnt      int64
}

// fillSeries returns one point per day from start, zero where nothing was issued.
func fillSeries(rows []seriesRow, start Date, days int) []OverviewSeriesPoint {
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.IssuedOn.String()] += r.Cnt
	}
	points := make([]OverviewSeriesPoint, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDays(i)
		points = append(points, OverviewSeriesPoint{
			Date:  day.Format("01-02"),
			Count: counts[day.String()],
		})
	}
	return points
}
