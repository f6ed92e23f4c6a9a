package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AttemptStore keeps attempts in Redis so they survive a gateway restart.
// Keys:
//
//	attempt:{id}          JSON attempt, TTL = attempt lifetime
//	attempt:{id}:outcome  JSON grading outcome
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Save(ctx context.Context, attempt domain.Attempt, ttl time.Duration) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	return s.client.Set(ctx, attemptKey(attempt.ID), data, ttl).Err()
}

func (s *AttemptStore) Get(ctx context.Context, id string) (domain.Attempt, error) {
	return s.decode(s.client.Get(ctx, attemptKey(id)).Bytes())
}

// Take uses GETDEL so concurrent submissions of one attempt cannot both succeed.
func (s *AttemptStore) Take(ctx context.Context, id string) (domain.Attempt, error) {
	return s.decode(s.client.GetDel(ctx, attemptKey(id)).Bytes())
}

func (s *AttemptStore) decode(raw []byte, err error) (domain.Attempt, error) {
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.NotFound("attempt")
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return attempt, nil
}

func (s *AttemptStore) SaveOutcome(ctx context.Context, outcome domain.AttemptOutcome, ttl time.Duration) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return s.client.Set(ctx, outcomeKey(outcome.AttemptID), data, ttl).Err()
}

func (s *AttemptStore) Outcome(ctx context.Context, attemptID string) (domain.AttemptOutcome, error) {
	raw, err := s.client.Get(ctx, outcomeKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AttemptOutcome{}, domain.NotFound("attempt outcome")
	}
	if err != nil {
		return domain.AttemptOutcome{}, fmt.Errorf("load outcome: %w", err)
	}
	var outcome domain.AttemptOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return domain.AttemptOutcome{}, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return outcome, nil
}

func attemptKey(id string) string {
	return "attempt:" + id
}

func outcomeKey(id string) string {
	return "attempt:" + id + ":outcome"
}
