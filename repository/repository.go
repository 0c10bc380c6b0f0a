package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/xicom-labs/presales-bot/config"
	"github.com/xicom-labs/presales-bot/models"
	"github.com/xicom-labs/presales-bot/repository/redis_repository"
)

// SessionRepository defines the interface for session storage.
type SessionRepository interface {
	// GetSession loads the stored session, or models.ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// SaveSession persists the session with the retention TTL. It returns
	// models.ErrSessionConflict when a concurrent writer got there first.
	SaveSession(ctx context.Context, session *models.Session) error
	// ListSessions pages through stored sessions. cursor "" starts a scan;
	// the returned cursor is "" when the scan is done.
	ListSessions(ctx context.Context, cursor string, count int64) ([]*models.Session, string, error)
}

type RepoType string

const (
	RepoTypeRedis RepoType = "redis"
)

// NewSessionRepository builds a repository of the given type.
func NewSessionRepository(ctx context.Context, t RepoType, cfg config.RedisConfig) (SessionRepository, error) {
	switch t {
	case RepoTypeRedis:
		client, err := redis_repository.Conn(ctx, cfg.Host, cfg.Port, cfg.Password, cfg.DB, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		ttl := cfg.SessionTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return redis_repository.NewRedisSessionRepository(client, ttl), nil
	}
	return nil, fmt.Errorf("invalid repository type: %s", t)
}
