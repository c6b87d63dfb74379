package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voxcampus/voxcampus-platform/domains/demo/be/service"
)

// DefaultSessionTTL caps how long a forgotten demo session stays active.
const DefaultSessionTTL = 12 * time.Hour

// RedisSessionRegistry stores one JSON-encoded session per user with a TTL.
type RedisSessionRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type sessionData struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	StartedAt time.Time `json:"started_at"`
}

// NewRedisSessionRegistry builds a registry on an existing client.
func NewRedisSessionRegistry(client *redis.Client, ttl time.Duration) *RedisSessionRegistry {
	if client == nil {
		panic("redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionRegistry{client: client, prefix: "vox:demo:session:", ttl: ttl}
}

func (s *RedisSessionRegistry) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisSessionRegistry) Begin(ctx context.Context, userID, email string) (service.Session, error) {
	if userID == "" {
		return service.Session{}, errors.New("userID is required")
	}
	session := service.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Email:     email,
		StartedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(sessionData{
		SessionID: session.ID.String(),
		UserID:    session.UserID,
		Email:     session.Email,
		StartedAt: session.StartedAt,
	})
	if err != nil {
		return service.Session{}, fmt.Errorf("marshal demo session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), payload, s.ttl).Err(); err != nil {
		return service.Session{}, fmt.Errorf("save demo session: %w", err)
	}
	return session, nil
}

func (s *RedisSessionRegistry) Current(ctx context.Context, userID string) (service.Session, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return service.Session{}, service.ErrNoSession
	}
	if err != nil {
		return service.Session{}, fmt.Errorf("lookup demo session: %w", err)
	}

	var data sessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return service.Session{}, fmt.Errorf("unmarshal demo session: %w", err)
	}
	id, err := uuid.Parse(data.SessionID)
	if err != nil {
		return service.Session{}, fmt.Errorf("parse demo session id: %w", err)
	}
	return service.Session{ID: id, UserID: data.UserID, Email: data.Email, StartedAt: data.StartedAt}, nil
}

func (s *RedisSessionRegistry) End(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("end demo session: %w", err)
	}
	return nil
}

var _ service.SessionRegistry = (*RedisSessionRegistry)(nil)
