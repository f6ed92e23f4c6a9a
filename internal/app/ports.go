package app

import (
	"context"
	"io"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
)

// UserRepository is the credential store.
type UserRepository interface {
	// Create fails with a conflict error when the email is taken.
	Create(ctx context.Context, user domain.User) (domain.User, error)
	ByEmail(ctx context.Context, email string) (domain.User, error)
	ByID(ctx context.Context, id int64) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, user domain.User) error
	SetProfileImage(ctx context.Context, id int64, url string) error
	SetRole(ctx context.Context, id int64, role domain.Role) error
	Delete(ctx context.Context, id int64) error
	// RecordFailedLogin increments the counter in a single row update and sets the lock
	// once the policy threshold is reached. An expired lock restarts the count.
	RecordFailedLogin(ctx context.Context, id int64, now time.Time, policy domain.LockoutPolicy) (domain.LoginState, error)
	ResetFailedLogins(ctx context.Context, id int64) error
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(user domain.User) (domain.Session, error)
	IssueScoped(user domain.User, scope string) (domain.Session, error)
	Verify(token string) (domain.Principal, error)
}

// RevocationStore remembers logged-out token ids until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AvatarStore persists uploaded profile images and returns their public URL.
type AvatarStore interface {
	Save(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// QuizRepository is the quiz store.
type QuizRepository interface {
	Create(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
	// Get returns the quiz with questions and answers ordered by id.
	Get(ctx context.Context, id int64) (domain.Quiz, error)
	List(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error)
	AddQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	// QuestionOwner returns the quiz id of a question.
	QuestionOwner(ctx context.Context, questionID int64) (int64, error)
	AddAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error)
	// Transition moves the quiz to `to` only if its current status is one of from.
	// It reports false when the row was not in an allowed status.
	Transition(ctx context.Context, id int64, from []domain.QuizStatus, to domain.QuizStatus, rejectReason *string, at time.Time) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// ResultRepository stores immutable quiz results.
type ResultRepository interface {
	Save(ctx context.Context, result domain.QuizResult) (domain.QuizResult, error)
	// Top returns results ordered by score desc, time asc, completion asc.
	Top(ctx context.Context, quizID int64, limit int) ([]domain.QuizResult, error)
}

// QuizReader loads full quiz content, possibly through a cache.
type QuizReader interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// QuizEngine is the gateway's view of the quiz service.
type QuizEngine interface {
	Process(ctx context.Context, quizID int64, submission domain.Submission) (domain.ScoreResult, error)
	Leaderboard(ctx context.Context, quizID int64, limit int) (domain.Leaderboard, error)
}

// AttemptStore keeps attempts for a bounded time and hands each one out at most once.
type AttemptStore interface {
	Save(ctx context.Context, attempt domain.Attempt, ttl time.Duration) error
	Get(ctx context.Context, id string) (domain.Attempt, error)
	// Take atomically removes and returns the attempt.
	Take(ctx context.Context, id string) (domain.Attempt, error)
	SaveOutcome(ctx context.Context, outcome domain.AttemptOutcome, ttl time.Duration) error
	Outcome(ctx context.Context, attemptID string) (domain.AttemptOutcome, error)
}

// Broadcaster delivers realtime events to a named room.
type Broadcaster interface {
	Broadcast(room, event string, payload any)
}

// Mail is an outbound message.
type Mail struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mailer delivers mail. Callers treat failures as best-effort.
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// ReportRenderer produces the leaderboard document.
type ReportRenderer interface {
	Render(quiz domain.Quiz, board domain.Leaderboard) ([]byte, error)
}

// Event is a domain event for external consumers.
type Event struct {
	Type    string
	Key     string
	Payload any
	At      time.Time
}

// EventPublisher ships events outside the process. Failures are logged, not returned to callers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// TaskQueue runs grading work in the background.
type TaskQueue interface {
	Submit(name string, run func(ctx context.Context) error, done func(err error)) error
}
