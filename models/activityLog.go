package models

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"gorm.io/gorm"
)

const RecentVisitorsLimit = 10

type ActivityLog struct {
	ID        int       `gorm:"primary_key" json:"id"`
	UserId    *string   `gorm:"size:191;index" json:"user_id"`
	UserEmail *string   `gorm:"size:255" json:"user_email"`
	UserName  *string   `gorm:"size:255" json:"user_name"`
	Path      *string   `gorm:"size:500" json:"path"`
	UserAgent string    `gorm:"size:500" json:"user_agent"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

type NewActivity struct {
	Path      string `json:"path" validate:"max=500"`
	UserAgent string `json:"-"`
}

// TrackActivity appends a page visit for the caller in ctx.
func TrackActivity(ctx context.Context, input *NewActivity) (*ActivityLog, error) {
	input.Path = strings.TrimSpace(input.Path)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	entry := ActivityLog{
		Path:      utils.NilIfEmpty(input.Path),
		UserAgent: truncate(input.UserAgent, 500),
	}
	if v, ok := utils.GetUserIdFromContext(ctx); ok {
		entry.UserId = utils.NilIfEmpty(v)
	}
	if v, ok := utils.GetUserEmailFromContext(ctx); ok {
		entry.UserEmail = utils.NilIfEmpty(v)
	}
	if v, ok := utils.GetUserNameFromContext(ctx); ok && v != "" {
		entry.UserName = &v
	} else if v, ok := utils.GetUsernameFromContext(ctx); ok {
		entry.UserName = utils.NilIfEmpty(v)
	}

	if err := config.GetDB().WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

type RecentVisitor struct {
	UserId    string    `json:"user_id"`
	UserEmail string    `json:"user_email"`
	UserName  string    `json:"user_name"`
	LastSeen  Timestamp `json:"last_seen"`
}

// GetRecentVisitors is last-seen per user, most recent first.
func GetRecentVisitors(ctx context.Context, db *gorm.DB, limit int) ([]*RecentVisitor, error) {
	visitors := []*RecentVisitor{}
	err := db.WithContext(ctx).Model(&ActivityLog{}).
		Select("user_id, COALESCE(MAX(user_email), '') AS user_email, COALESCE(MAX(user_name), '') AS user_name, MAX(created_at) AS last_seen").
		Where("user_id IS NOT NULL").
		Group("user_id").
		Order("last_seen DESC").
		Limit(limit).
		Scan(&visitors).Error
	if err != nil {
		return nil, err
	}
	return visitors, nil
}

// Timestamp scans aggregate time columns, which some drivers return as text.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (t *Timestamp) Scan(value interface{}) error {
	switch v := value.(type) {
	case time.Time:
		t.Time = v
		return nil
	case nil:
		t.Time = time.Time{}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into Timestamp", value)
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.Time, nil
}

func (Timestamp) GormDataType() string {
	return "time"
}

func (t *Timestamp) parse(s string) error {
	s = strings.TrimSpace(strings.TrimSuffix(s, "Z"))
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
