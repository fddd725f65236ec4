package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SerialCounter holds the last value handed out for a named counter:
// GLOBAL, or a daily scope key (see ScopeKey). Values only increase.
type SerialCounter struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	LastValue int64     `gorm:"not null;default:0" json:"last_value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

var (
	errCounterRace = errors.New("serial counter moved concurrently")
	errDryRun      = errors.New("dry run")
)

// lockCounter reads the counter row FOR UPDATE, creating it first from seed
// when missing. Must run inside a transaction.
func lockCounter(ctx context.Context, tx *gorm.DB, name string, seed func() (int64, error)) (*SerialCounter, error) {
	var counter SerialCounter
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		Take(&counter).Error
	if err == nil {
		return &counter, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	start, err := seed()
	if err != nil {
		return nil, err
	}
	// a concurrent creator wins quietly; we then lock its row
	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&SerialCounter{Name: name, LastValue: start}).Error
	if err != nil {
		return nil, err
	}
	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		Take(&counter).Error
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// advanceCounter bumps a locked counter by one and returns the new value.
// The compare-and-set guards against a store that ignored the row lock.
func advanceCounter(ctx context.Context, tx *gorm.DB, counter *SerialCounter) (int64, error) {
	next := counter.LastValue + 1
	result := tx.WithContext(ctx).Model(&SerialCounter{}).
		Where("name = ? AND last_value = ?", counter.Name, counter.LastValue).
		Updates(map[string]interface{}{
			"last_value": next,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected != 1 {
		return 0, errCounterRace
	}
	counter.LastValue = next
	return next, nil
}

func maxGlobalSerial(ctx context.Context, tx *gorm.DB) (int64, error) {
	var max *int64
	err := tx.WithContext(ctx).Model(&Letter{}).Select("MAX(global_serial)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func maxDailySerial(ctx context.Context, tx *gorm.DB, categoryCode string, divisionId int, issuedOn Date) (int64, error) {
	var max *int64
	err := tx.WithContext(ctx).Model(&Letter{}).
		Select("MAX(daily_serial)").
		Where("category_code = ? AND division_id = ? AND issued_on = ?", categoryCode, divisionId, issuedOn).
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

type CounterRebuildResult struct {
	Name     string `json:"name"`
	Previous int64  `json:"previous"`
	Current  int64  `json:"current"`
}

// RebuildSerialCounters recomputes every counter from the letters table.
// Counters only move forward: a counter already ahead of the letters keeps its value.
func RebuildSerialCounters(ctx context.Context, db *gorm.DB, dryRun bool) ([]CounterRebuildResult, error) {
	type scopeMax struct {
		CategoryCode string
		DivisionId   int
		IssuedOn     Date
		MaxDaily     int64
	}

	var results []CounterRebuildResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var scopes []scopeMax
		if err := tx.Model(&Letter{}).
			Select("category_code, division_id, issued_on, MAX(daily_serial) AS max_daily").
			Group("category_code, division_id, issued_on").
			Scan(&scopes).Error; err != nil {
			return err
		}
		global, err := maxGlobalSerial(ctx, tx)
		if err != nil {
			return err
		}

		// same lock order as allocation: scopes, then global
		wanted := map[string]int64{GlobalCounterName: global}
		order := make([]string, 0, len(scopes)+1)
		for _, s := range scopes {
			key := ScopeKey(s.CategoryCode, s.DivisionId, s.IssuedOn)
			wanted[key] = s.MaxDaily
			order = append(order, key)
		}
		order = append(order, GlobalCounterName)

		for _, name := range order {
			counter, err := lockCounter(ctx, tx, name, func() (int64, error) { return 0, nil })
			if err != nil {
				return err
			}
			target := wanted[name]
			if counter.LastValue >= target {
				continue
			}
			results = append(results, CounterRebuildResult{Name: name, Previous: counter.LastValue, Current: target})
			if err := tx.Model(&SerialCounter{}).Where("name = ?", name).
				Update("last_value", target).Error; err != nil {
				return err
			}
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}
	return results, nil
}
