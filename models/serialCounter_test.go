package models_test

import (
	"fmt"
	"testing"

	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
)

func TestRebuildSerialCounters(t *testing.T) {
	db := setupLetterDB(t)
	ctx := testContext()
	mustCategory(t, ctx, "B", "Biasa")
	div := mustDivision(t, ctx, "TU.040", "Tata Usaha")

	// letters imported straight into the table, no counters yet
	for i := 1; i <= 4; i++ {
		day := 1
		daily := i
		if i > 2 {
			day, daily = 2, i-2
		}
		l := models.Letter{
			CategoryCode: "B",
			DivisionId:   div.ID,
			IssuedOn:     models.NewDate(2025, 3, day),
			GlobalSerial: int64(100 + i),
			DailySerial:  daily,
			NumberText:   fmt.Sprintf("import-%d", i),
		}
		if err := db.Omit("Category", "Division").Create(&l).Error; err != nil {
			t.Fatalf("insert letter: %v", err)
		}
	}

	dry, err := models.RebuildSerialCounters(ctx, db, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(dry) != 3 {
		t.Fatalf("expected 3 counter changes, got %+v", dry)
	}
	if n := countRows(t, db, &models.SerialCounter{}); n != 0 {
		t.Fatalf("dry run must not write counters, found %d", n)
	}

	applied, err := models.RebuildSerialCounters(ctx, db, false)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	got := map[string]int64{}
	for _, c := range applied {
		got[c.Name] = c.Current
	}
	day1 := models.ScopeKey("B", div.ID, models.NewDate(2025, 3, 1))
	day2 := models.ScopeKey("B", div.ID, models.NewDate(2025, 3, 2))
	if got[models.GlobalCounterName] != 104 || got[day1] != 2 || got[day2] != 2 {
		t.Fatalf("unexpected rebuild result %+v", applied)
	}

	again, err := models.RebuildSerialCounters(ctx, db, false)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("a rebuilt store should need no changes, got %+v", again)
	}

	// counters ahead of the letters are never moved back
	if err := db.Model(&models.SerialCounter{}).Where("name = ?", models.GlobalCounterName).Update("last_value", 500).Error; err != nil {
		t.Fatalf("bump counter: %v", err)
	}
	if changes, err := models.RebuildSerialCounters(ctx, db, false); err != nil || len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v, %v", changes, err)
	}
	issued := mustGenerate(t, ctx, "B", "TU.040", "2025-03-02")
	if issued.GlobalSerial != 501 || issued.DailySerial != 3 {
		t.Fatalf("expected 501/3, got %d/%d", issued.GlobalSerial, issued.DailySerial)
	}
}
