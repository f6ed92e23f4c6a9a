package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore marks logged-out token ids until the token would have expired anyway.
type RevocationStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client, clock: time.Now}
}

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err()
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func revokedKey(tokenID string) string {
	return "token:revoked:" + tokenID
}
