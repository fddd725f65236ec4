package models_test

import (
	"context"
	"testing"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"gorm.io/gorm"
)

// setupLetterDB installs a fresh in-memory store as the global DB and runs
// the migrations. Redis stays off so caches and scope locks are no-ops.
func setupLetterDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.SetDB(db)
	config.SetRedisDB(nil)
	t.Cleanup(func() {
		config.SetDB(nil)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, "u-1")
	ctx = utils.SetUserEmailInContext(ctx, "clerk@agency.test")
	ctx = utils.SetUserNameInContext(ctx, "Clerk")
	return ctx
}

func mustCategory(t *testing.T, ctx context.Context, code, name string) *models.Category {
	t.Helper()
	c, err := models.UpsertCategory(ctx, &models.NewCategory{Code: code, Name: name})
	if err != nil {
		t.Fatalf("UpsertCategory(%s): %v", code, err)
	}
	return c
}

func mustDivision(t *testing.T, ctx context.Context, code, name string) *models.Division {
	t.Helper()
	d, err := models.UpsertDivision(ctx, &models.NewDivision{Code: code, Name: name})
	if err != nil {
		t.Fatalf("UpsertDivision(%s): %v", code, err)
	}
	return d
}

func mustGenerate(t *testing.T, ctx context.Context, category, division, issueDate string) *models.IssuedLetter {
	t.Helper()
	issued, err := models.GenerateLetterNumber(ctx, &models.NewLetterNumber{
		CategoryCode: category,
		DivisionCode: division,
		IssueDate:    issueDate,
	})
	if err != nil {
		t.Fatalf("GenerateLetterNumber(%s, %s, %s): %v", category, division, issueDate, err)
	}
	return issued
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
