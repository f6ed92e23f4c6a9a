package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizCache stores APPROVED quizzes as JSON (quiz:{id}) and falls back to a loader on a miss.
// Quizzes in any other status pass straight through.
type QuizCache struct {
	client *redis.Client
	loader app.QuizReader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuizCache(client *redis.Client, loader app.QuizReader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	if quiz, ok := c.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(quizID, 10), func() (interface{}, error) {
		// Re-check cache in case another instance filled it.
		if quiz, ok := c.cached(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := c.loader.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if quiz.Status == domain.StatusApproved && c.ttl > 0 {
			if data, err := json.Marshal(quiz); err == nil {
				_ = c.client.Set(ctx, quizKey(quizID), data, c.ttlWithJitter()).Err()
			}
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Forget drops a cached quiz.
func (c *QuizCache) Forget(ctx context.Context, quizID int64) error {
	return c.client.Del(ctx, quizKey(quizID)).Err()
}

// cached treats every Redis failure as a miss so the loader stays authoritative.
func (c *QuizCache) cached(ctx context.Context, quizID int64) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, quizKey(quizID)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func quizKey(id int64) string {
	return "quiz:" + strconv.FormatInt(id, 10)
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
