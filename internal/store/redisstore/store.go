package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/zhouzirui/date-night/backend/internal/config"
	"github.com/zhouzirui/date-night/backend/internal/model/preference"
	"github.com/zhouzirui/date-night/backend/internal/model/session"
)

// maxTxAttempts bounds optimistic retries when a concurrent writer touches
// the same key between WATCH and EXEC.
const maxTxAttempts = 3

// Store keeps each session as one JSON value under prefix+id.
type Store struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ session.Store = (*Store)(nil)

// Dial connects to redis and verifies the connection before returning.
func Dial(ctx context.Context, cfg config.StoreConfig) (*goredis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("%w: REDIS_ADDR", config.ErrConfigurationMissing)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// New wraps an existing client. A zero ttl stores sessions without expiry.
func New(rdb *goredis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) Create(ctx context.Context, prefs preference.Preferences) (session.Session, error) {
	created := session.New(prefs, s.now(), s.ttl)

	raw, err := json.Marshal(created)
	if err != nil {
		return session.Session{}, fmt.Errorf("encode session: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, s.key(created.ID), raw, s.ttl).Result()
	if err != nil {
		return session.Session{}, fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return session.Session{}, fmt.Errorf("store session: id %s already exists", created.ID)
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("load session: %w", err)
	}
	return decode(raw)
}

func (s *Store) Complete(ctx context.Context, id string, partner preference.Preferences, plan string) (session.Session, error) {
	key := s.key(id)
	var result session.Session

	txf := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return session.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}

		current, err := decode(raw)
		if err != nil {
			return err
		}
		if current.Completed() {
			result = current
			return nil
		}

		updated := current.WithPlan(partner, plan, s.now())
		encoded, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.SetArgs(ctx, key, encoded, goredis.SetArgs{KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}
		result = updated
		return nil
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return session.Session{}, err
		}
		return result, nil
	}
	return session.Session{}, fmt.Errorf("complete session %s: too many concurrent writers", id)
}

func decode(raw []byte) (session.Session, error) {
	var s session.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return session.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}
