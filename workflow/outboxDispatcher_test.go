package workflow

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/models"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestDispatcher(db *gorm.DB, publish PublishFunc) *OutboxDispatcher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := NewOutboxDispatcher(db, logger)
	d.DispatcherID = "test-dispatcher"
	d.Publish = publish
	d.MaxAttempts = 3
	return d
}

func insertEvent(t *testing.T, db *gorm.DB, ev models.LetterEvent) models.LetterEvent {
	t.Helper()
	if ev.EventType == "" {
		ev.EventType = models.LetterEventIssued
	}
	if ev.Payload == "" {
		ev.Payload = `{"number":"B-1.1/TU.040/H.15.1/07/2025"}`
	}
	if err := db.Create(&ev).Error; err != nil {
		t.Fatalf("insert event: %v", err)
	}
	return ev
}

func loadEvent(t *testing.T, db *gorm.DB, id int) models.LetterEvent {
	t.Helper()
	var ev models.LetterEvent
	if err := db.Where("id = ?", id).Take(&ev).Error; err != nil {
		t.Fatalf("load event %d: %v", id, err)
	}
	return ev
}

func TestDispatchOnce_PublishesPendingEvents(t *testing.T) {
	db := setupOutboxDB(t)
	ev := insertEvent(t, db, models.LetterEvent{LetterId: "letter-1", PublishStatus: models.OutboxPublishStatusPending})

	var published []config.LetterEventMessage
	d := newTestDispatcher(db, func(ctx context.Context, msg config.LetterEventMessage) (string, error) {
		published = append(published, msg)
		return "msg-1", nil
	})

	if sent := d.DispatchOnce(context.Background()); sent != 1 {
		t.Fatalf("expected 1 sent, got %d", sent)
	}
	if len(published) != 1 || published[0].LetterId != "letter-1" || published[0].EventType != models.LetterEventIssued {
		t.Fatalf("unexpected published messages %+v", published)
	}

	got := loadEvent(t, db, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusSent {
		t.Fatalf("expected SENT, got %s", got.PublishStatus)
	}
	if got.PublishAttempts != 1 || utils.DereferencePtr(got.PubSubMessageId) != "msg-1" || got.PublishedAt == nil {
		t.Fatalf("unexpected sent row %+v", got)
	}
	if got.LockedAt != nil || got.LockedBy != nil {
		t.Fatalf("sent row must be unlocked")
	}

	if sent := d.DispatchOnce(context.Background()); sent != 0 || len(published) != 1 {
		t.Fatalf("sent events must not be published again")
	}
}

func TestDispatchOnce_FailureSchedulesRetry(t *testing.T) {
	db := setupOutboxDB(t)
	ev := insertEvent(t, db, models.LetterEvent{LetterId: "letter-1", PublishStatus: models.OutboxPublishStatusPending})

	calls := 0
	d := newTestDispatcher(db, func(ctx context.Context, msg config.LetterEventMessage) (string, error) {
		calls++
		return "", errors.New("broker unavailable")
	})

	before := time.Now().UTC()
	if sent := d.DispatchOnce(context.Background()); sent != 0 {
		t.Fatalf("expected nothing sent, got %d", sent)
	}
	got := loadEvent(t, db, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusFailed || got.PublishAttempts != 1 {
		t.Fatalf("expected FAILED after one attempt, got %s/%d", got.PublishStatus, got.PublishAttempts)
	}
	if utils.DereferencePtr(got.LastPublishError) != "broker unavailable" {
		t.Fatalf("unexpected last error %v", got.LastPublishError)
	}
	if got.NextAttemptAt == nil || !got.NextAttemptAt.After(before) {
		t.Fatalf("retry must be scheduled in the future, got %v", got.NextAttemptAt)
	}

	// not due yet
	d.DispatchOnce(context.Background())
	if calls != 1 {
		t.Fatalf("expected the backoff to hold the retry, got %d calls", calls)
	}
}

func TestDispatchOnce_ExhaustedAttemptsGoDead(t *testing.T) {
	db := setupOutboxDB(t)
	ev := insertEvent(t, db, models.LetterEvent{
		LetterId:        "letter-1",
		PublishStatus:   models.OutboxPublishStatusFailed,
		PublishAttempts: 3,
	})

	calls := 0
	d := newTestDispatcher(db, func(ctx context.Context, msg config.LetterEventMessage) (string, error) {
		calls++
		return "msg", nil
	})

	if sent := d.DispatchOnce(context.Background()); sent != 0 || calls != 0 {
		t.Fatalf("exhausted events must not be published (sent=%d calls=%d)", sent, calls)
	}
	got := loadEvent(t, db, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusDead || got.LastPublishError == nil {
		t.Fatalf("expected DEAD with a reason, got %+v", got)
	}
}

func TestDispatchOnce_LastAttemptFailureGoesDead(t *testing.T) {
	db := setupOutboxDB(t)
	ev := insertEvent(t, db, models.LetterEvent{
		LetterId:        "letter-1",
		PublishStatus:   models.OutboxPublishStatusFailed,
		PublishAttempts: 2,
	})

	d := newTestDispatcher(db, func(ctx context.Context, msg config.LetterEventMessage) (string, error) {
		return "", errors.New("still down")
	})
	d.DispatchOnce(context.Background())

	got := loadEvent(t, db, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusDead || got.PublishAttempts != 3 {
		t.Fatalf("expected DEAD after the third attempt, got %s/%d", got.PublishStatus, got.PublishAttempts)
	}
	if got.NextAttemptAt != nil {
		t.Fatalf("dead events are never scheduled")
	}
}

func TestDispatchOnce_ReclaimsStaleProcessing(t *testing.T) {
	db := setupOutboxDB(t)
	stale := time.Now().UTC().Add(-time.Hour)
	owner := "crashed-dispatcher"
	fresh := time.Now().UTC()
	other := "live-dispatcher"

	staleEv := insertEvent(t, db, models.LetterEvent{
		LetterId:        "letter-stale",
		PublishStatus:   models.OutboxPublishStatusProcessing,
		PublishAttempts: 1,
		LockedAt:        &stale,
		LockedBy:        &owner,
	})
	liveEv := insertEvent(t, db, models.LetterEvent{
		LetterId:        "letter-live",
		PublishStatus:   models.OutboxPublishStatusProcessing,
		PublishAttempts: 1,
		LockedAt:        &fresh,
		LockedBy:        &other,
	})

	var letters []string
	d := newTestDispatcher(db, func(ctx context.Context, msg config.LetterEventMessage) (string, error) {
		letters = append(letters, msg.LetterId)
		return "msg", nil
	})
	if sent := d.DispatchOnce(context.Background()); sent != 1 {
		t.Fatalf("expected only the stale claim to be retried, sent %d", sent)
	}
	if len(letters) != 1 || letters[0] != "letter-stale" {
		t.Fatalf("unexpected publishes %v", letters)
	}
	if got := loadEvent(t, db, staleEv.ID); got.PublishStatus != models.OutboxPublishStatusSent || got.PublishAttempts != 2 {
		t.Fatalf("stale row: %s/%d", got.PublishStatus, got.PublishAttempts)
	}
	if got := loadEvent(t, db, liveEv.ID); got.PublishStatus != models.OutboxPublishStatusProcessing {
		t.Fatalf("live claim must be left alone, got %s", got.PublishStatus)
	}
}

func TestReplayLetterEvent(t *testing.T) {
	db := setupOutboxDB(t)
	reason := "max publish attempts exceeded (3)"
	dead := insertEvent(t, db, models.LetterEvent{
		LetterId:         "letter-1",
		PublishStatus:    models.OutboxPublishStatusDead,
		PublishAttempts:  3,
		LastPublishError: &reason,
	})
	sentAt := time.Now().UTC()
	sent := insertEvent(t, db, models.LetterEvent{
		LetterId:      "letter-2",
		PublishStatus: models.OutboxPublishStatusSent,
		PublishedAt:   &sentAt,
	})

	ctx := context.Background()
	rec, err := ReplayLetterEvent(ctx, db, dead.ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rec.PublishStatus != models.OutboxPublishStatusFailed || rec.PublishAttempts != 0 || rec.LastPublishError != nil {
		t.Fatalf("unexpected replayed row %+v", rec)
	}

	if _, err := ReplayLetterEvent(ctx, db, sent.ID); !utils.IsNotFound(err) {
		t.Fatalf("sent events cannot be replayed, got %v", err)
	}
	if _, err := ReplayLetterEvent(ctx, db, 9999); !utils.IsNotFound(err) {
		t.Fatalf("unknown ids are not found, got %v", err)
	}

	d := newTestDispatcher(db, func(ctx context.Context, msg config.LetterEventMessage) (string, error) {
		return "msg-replayed", nil
	})
	if n := d.DispatchOnce(ctx); n != 1 {
		t.Fatalf("replayed event should be dispatched, sent %d", n)
	}
	if got := loadEvent(t, db, dead.ID); got.PublishStatus != models.OutboxPublishStatusSent {
		t.Fatalf("expected SENT after replay, got %s", got.PublishStatus)
	}
}

func TestBackoff(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second, MaxBackoff: time.Minute}
	cases := map[int]time.Duration{
		1: 5 * time.Second,
		2: 10 * time.Second,
		3: 20 * time.Second,
		4: 40 * time.Second,
		5: time.Minute,
		9: time.Minute,
	}
	for attempt, want := range cases {
		if got := d.backoff(attempt); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
}
