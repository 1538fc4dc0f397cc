package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idojourney"

var errRedisUnavailable = errors.New("sandbox redis unavailable")

// RedisStore keeps interactions as expiring JSON strings and credentials as
// one hash per user, so several sandbox processes can share state.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client, prefix: redisKeyPrefix}
}

func (s *RedisStore) interactionKey(id string) string {
	return s.prefix + ":interaction:" + id
}

func (s *RedisStore) credentialKey(userID string) string {
	return s.prefix + ":credentials:" + userID
}

func (s *RedisStore) SaveInteraction(ctx context.Context, in Interaction, ttl time.Duration) error {
	encoded, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	if err := s.redis.Set(ctx, s.interactionKey(in.ID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) LoadInteraction(ctx context.Context, id string) (Interaction, error) {
	data, err := s.redis.Get(ctx, s.interactionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Interaction{}, ErrInteractionNotFound
	}
	if err != nil {
		return Interaction{}, fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	var in Interaction
	if err := json.Unmarshal(data, &in); err != nil {
		return Interaction{}, fmt.Errorf("decode interaction: %w", err)
	}
	return in, nil
}

func (s *RedisStore) DeleteInteraction(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.interactionKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) AddCredential(ctx context.Context, userID string, cred Credential) error {
	encoded, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.redis.HSet(ctx, s.credentialKey(userID), cred.KeyID, encoded).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Credential(ctx context.Context, userID, keyID string) (Credential, error) {
	data, err := s.redis.HGet(ctx, s.credentialKey(userID), keyID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Credential{}, ErrCredentialNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("decode credential: %w", err)
	}
	return cred, nil
}
