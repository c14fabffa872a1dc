package sessions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "gateway:session:"

// RedisRepo stores sessions as JSON values in Redis so multiple gateway
// instances share the same session material. Keys expire with the session.
type RedisRepo struct {
	client *redis.Client
}

var _ Repo = (*RedisRepo)(nil)

func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{client: client}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

func (r *RedisRepo) Save(ctx context.Context, sessionID string, session *Session) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if session == nil {
		return errors.New("session cannot be nil")
	}

	b, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Save] marshal session")
	}
	if err := r.client.Set(ctx, sessionKey(sessionID), b, ttlFor(session)).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Save] redis set")
	}
	return nil
}

func (r *RedisRepo) Load(ctx context.Context, sessionID string) (*Session, error) {
	b, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Load] redis get")
	}

	var session Session
	if err := json.Unmarshal(b, &session); err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Load] unmarshal session")
	}
	return &session, nil
}

func (r *RedisRepo) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Clear] redis del")
	}
	return nil
}

func (r *RedisRepo) SetOrganisation(ctx context.Context, sessionID, organisationID string) error {
	session, err := r.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	session.OrganisationID = organisationID
	return r.Save(ctx, sessionID, session)
}

func (r *RedisRepo) Extend(ctx context.Context, sessionID string, expiry time.Time) error {
	session, err := r.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if expiry.After(session.Expiry) {
		session.Expiry = expiry
	}
	return r.Save(ctx, sessionID, session)
}

// ttlFor keeps the Redis key alive slightly past the session expiry so that
// expiry checks above the store see the session rather than a silent miss.
func ttlFor(session *Session) time.Duration {
	if session.Expiry.IsZero() {
		return 0
	}
	ttl := time.Until(session.Expiry) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}
