package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"gorm.io/gorm"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"

	LetterEventIssued = "letter.issued"
)

// LetterEvent is the transactional outbox row written with every issued letter.
type LetterEvent struct {
	ID               int        `gorm:"primary_key" json:"id"`
	LetterId         string     `gorm:"type:char(36);not null;index" json:"letter_id"`
	EventType        string     `gorm:"size:50;not null" json:"event_type"`
	Payload          string     `gorm:"type:text;not null" json:"payload"`
	CorrelationId    *string    `gorm:"size:64" json:"correlation_id"`
	PublishStatus    string     `gorm:"size:20;not null;default:'PENDING';index:idx_letter_events_dispatch,priority:1" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_letter_events_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	PubSubMessageId  *string    `gorm:"size:128" json:"pub_sub_message_id"`
	PublishedAt      *time.Time `json:"published_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// recordLetterIssued writes the outbox row inside the allocation transaction.
func recordLetterIssued(ctx context.Context, tx *gorm.DB, letter *Letter, divisionCode string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"id":            letter.ID,
		"number":        letter.NumberText,
		"category_code": letter.CategoryCode,
		"division_id":   letter.DivisionId,
		"division_code": divisionCode,
		"issued_on":     letter.IssuedOn,
		"global_serial": letter.GlobalSerial,
		"daily_serial":  letter.DailySerial,
		"created_by":    letter.CreatedBy,
	})
	if err != nil {
		return err
	}

	event := LetterEvent{
		LetterId:      letter.ID,
		EventType:     LetterEventIssued,
		Payload:       string(payload),
		PublishStatus: OutboxPublishStatusPending,
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok && correlationId != "" {
		event.CorrelationId = &correlationId
	}
	return tx.WithContext(ctx).Create(&event).Error
}

func ConvertToLetterEventMessage(rec LetterEvent) config.LetterEventMessage {
	return config.LetterEventMessage{
		EventId:       rec.ID,
		LetterId:      rec.LetterId,
		EventType:     rec.EventType,
		OccurredAt:    rec.CreatedAt,
		Payload:       json.RawMessage(rec.Payload),
		CorrelationId: utils.DereferencePtr(rec.CorrelationId),
	}
}
