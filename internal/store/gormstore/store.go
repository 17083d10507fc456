package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/zhouzirui/date-night/backend/internal/config"
	"github.com/zhouzirui/date-night/backend/internal/model/preference"
	"github.com/zhouzirui/date-night/backend/internal/model/session"
)

// Record is the table row backing a session.
type Record struct {
	ID                 string         `gorm:"primaryKey;size:36"`
	Preferences        datatypes.JSON `gorm:"not null"`
	PartnerPreferences datatypes.JSON
	Status             string `gorm:"size:32;not null;index"`
	Plan               string `gorm:"type:text"`
	CreatedAt          time.Time
	CompletedAt        *time.Time
	ExpiresAt          *time.Time `gorm:"index"`
}

func (Record) TableName() string { return "date_night_sessions" }

// Store persists sessions through gorm.
type Store struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

var _ session.Store = (*Store)(nil)

// Open connects with the dialector matching driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.StorePostgres:
		dialector = postgres.Open(dsn)
	case config.StoreSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// New migrates the sessions table and returns a Store on db.
func New(db *gorm.DB, ttl time.Duration) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *Store) Create(ctx context.Context, prefs preference.Preferences) (session.Session, error) {
	created := session.New(prefs, s.now(), s.ttl)

	raw, err := json.Marshal(created.Preferences)
	if err != nil {
		return session.Session{}, fmt.Errorf("encode preferences: %w", err)
	}

	rec := Record{
		ID:                 created.ID,
		Preferences:        datatypes.JSON(raw),
		PartnerPreferences: datatypes.JSON("null"),
		Status:             string(created.Status),
		CreatedAt:          created.CreatedAt,
		ExpiresAt:          created.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return session.Session{}, fmt.Errorf("store session: %w", err)
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("load session: %w", err)
	}

	out, err := rec.toSession()
	if err != nil {
		return session.Session{}, err
	}
	if out.Expired(s.now()) {
		return session.Session{}, session.ErrSessionNotFound
	}
	return out, nil
}

func (s *Store) Complete(ctx context.Context, id string, partner preference.Preferences, plan string) (session.Session, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return session.Session{}, err
	}

	raw, err := json.Marshal(partner)
	if err != nil {
		return session.Session{}, fmt.Errorf("encode preferences: %w", err)
	}

	// Only an awaiting row is updated, so a concurrent completion cannot
	// overwrite a stored plan.
	err = s.db.WithContext(ctx).
		Model(&Record{}).
		Where("id = ? AND status = ?", id, string(session.StatusAwaitingPartner)).
		Updates(map[string]any{
			"status":              string(session.StatusCompleted),
			"plan":                plan,
			"partner_preferences": datatypes.JSON(raw),
			"completed_at":        s.now().UTC(),
		}).Error
	if err != nil {
		return session.Session{}, fmt.Errorf("complete session: %w", err)
	}

	return s.Get(ctx, id)
}

// DeleteExpired removes sessions whose TTL elapsed before now.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC()).
		Delete(&Record{})
	return res.RowsAffected, res.Error
}

func (r Record) toSession() (session.Session, error) {
	out := session.Session{
		ID:          r.ID,
		Status:      session.Status(r.Status),
		Plan:        r.Plan,
		CreatedAt:   r.CreatedAt.UTC(),
		CompletedAt: r.CompletedAt,
		ExpiresAt:   r.ExpiresAt,
	}

	if err := json.Unmarshal(r.Preferences, &out.Preferences); err != nil {
		return session.Session{}, fmt.Errorf("decode preferences: %w", err)
	}
	if len(r.PartnerPreferences) > 0 && string(r.PartnerPreferences) != "null" {
		var partner preference.Preferences
		if err := json.Unmarshal(r.PartnerPreferences, &partner); err != nil {
			return session.Session{}, fmt.Errorf("decode partner preferences: %w", err)
		}
		out.PartnerPreferences = &partner
	}
	return out, nil
}
