package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizCache keeps APPROVED quizzes in process memory. Approved quizzes can no longer be
// edited, so entries only expire to bound memory; other statuses are never cached.
type QuizCache struct {
	loader app.QuizReader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int64]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(loader app.QuizReader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int64]cachedQuiz),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	if quiz, ok := c.lookup(quizID); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(strconv.FormatInt(quizID, 10), func() (interface{}, error) {
		if quiz, ok := c.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := c.loader.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if quiz.Status == domain.StatusApproved && c.ttl > 0 {
			c.mu.Lock()
			c.cache[quizID] = cachedQuiz{quiz: quiz, expiresAt: c.clock().Add(c.ttlWithJitter())}
			c.mu.Unlock()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Forget drops a cached quiz, e.g. after it was deleted.
func (c *QuizCache) Forget(_ context.Context, quizID int64) error {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.mu.Unlock()
	return nil
}

func (c *QuizCache) lookup(quizID int64) (domain.Quiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[quizID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
