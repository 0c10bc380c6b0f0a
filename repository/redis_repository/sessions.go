package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xicom-labs/presales-bot/models"
)

const sessionKeyPrefix = "session:"

// redisSessionRepository implements SessionRepository on Redis. Sessions
// are stored as JSON under session:<id> with a sliding retention TTL.
type redisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *redisSessionRepository {
	return &redisSessionRepository{client: client, ttl: ttl}
}

func (r *redisSessionRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SaveSession writes the session inside a WATCH transaction keyed on the
// stored version counter. A concurrent writer aborts the transaction and
// surfaces models.ErrSessionConflict instead of silently losing the turn.
func (r *redisSessionRepository) SaveSession(ctx context.Context, session *models.Session) error {
	key := sessionKeyPrefix + session.ID
	expected := session.Version

	txn := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if expected != 0 {
				return models.ErrSessionConflict
			}
		case err != nil:
			return err
		default:
			var stored models.Session
			if err := json.Unmarshal([]byte(val), &stored); err != nil {
				return err
			}
			if stored.Version != expected {
				return models.ErrSessionConflict
			}
		}

		session.Version = expected + 1
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		session.Version = expected
		return models.ErrSessionConflict
	}
	if err != nil && !errors.Is(err, models.ErrSessionConflict) {
		return err
	}
	if errors.Is(err, models.ErrSessionConflict) {
		session.Version = expected
	}
	return err
}

// ListSessions walks the session keyspace with SCAN, one page per call.
func (r *redisSessionRepository) ListSessions(ctx context.Context, cursor string, count int64) ([]*models.Session, string, error) {
	var cur uint64
	if cursor != "" {
		parsed, err := parseCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		cur = parsed
	}
	if count <= 0 {
		count = 100
	}

	keys, next, err := r.client.Scan(ctx, cur, sessionKeyPrefix+"*", count).Result()
	if err != nil {
		return nil, "", err
	}

	sessions := make([]*models.Session, 0, len(keys))
	for _, key := range keys {
		val, err := r.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return nil, "", err
		}
		var session models.Session
		if err := json.Unmarshal([]byte(val), &session); err != nil {
			continue // skip corrupted or foreign keys
		}
		sessions = append(sessions, &session)
	}

	if next == 0 {
		return sessions, "", nil
	}
	return sessions, formatCursor(next), nil
}
