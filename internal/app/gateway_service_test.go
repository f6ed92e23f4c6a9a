package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/infra/memory"
	"github.com/NitrousOX/DRS---projekat/internal/infra/security"
)

type gatewayFixture struct {
	gateway  *app.GatewayService
	quizzes  *app.QuizService
	engine   *inProcessEngine
	attempts *memory.AttemptStore
	queue    *inlineQueue
	events   *recordingBroadcaster
	mail     *recordingMailer
	now      time.Time
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	svc, repo := newQuizService()
	tokens := security.NewTokenManager("s", time.Hour)
	f := &gatewayFixture{
		quizzes:  svc,
		engine:   &inProcessEngine{svc: svc, tokens: tokens},
		attempts: memory.NewAttemptStore(),
		queue:    &inlineQueue{},
		events:   &recordingBroadcaster{},
		mail:     &recordingMailer{},
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.gateway = app.NewGatewayService(repo, f.engine, f.attempts, f.queue, tokens, app.GatewayOptions{
		Broadcaster: f.events,
		Mailer:      f.mail,
		Reports:     fakeReports{},
	})
	f.gateway.SetClock(func() time.Time { return f.now })
	return f
}

var player = domain.User{ID: 7, Email: "p@b.com", Role: domain.RolePlayer}

func playerPrincipal() domain.Principal {
	return domain.Principal{UserID: player.ID, Role: player.Role}
}

func TestStartRequiresApprovedQuiz(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)
	quiz, _ := buildQuiz(t, f.quizzes)

	if _, err := f.gateway.Start(ctx, player, quiz.ID); !errors.Is(err, domain.ErrState) {
		t.Fatalf("expected state error for draft quiz, got %v", err)
	}
	approve(t, f.quizzes, quiz.ID)
	started, err := f.gateway.Start(ctx, player, quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.AttemptID == "" || len(started.Quiz.Questions) != 2 {
		t.Fatalf("unexpected attempt %+v", started)
	}
}

func TestSubmitAnswersGradesOnceAndRejectsReplay(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)
	quiz, correct := buildQuiz(t, f.quizzes)
	approve(t, f.quizzes, quiz.ID)

	started, err := f.gateway.Start(ctx, player, quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.now = f.now.Add(42 * time.Second)

	var answers []domain.SubmittedAnswer
	for qid, ids := range correct {
		answers = append(answers, domain.SubmittedAnswer{QuestionID: qid, AnswerIDs: ids})
	}
	if _, err := f.gateway.SubmitAnswers(ctx, playerPrincipal(), started.AttemptID, answers); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.gateway.SubmitAnswers(ctx, playerPrincipal(), started.AttemptID, answers); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected replay to be rejected with not found, got %v", err)
	}
	if f.engine.calls != 1 {
		t.Fatalf("expected exactly one grading call, got %d", f.engine.calls)
	}

	outcome, err := f.gateway.Outcome(ctx, playerPrincipal(), started.AttemptID)
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if outcome.Status != domain.OutcomeGraded || outcome.Result.Score != 3 || outcome.Result.TimeSpentSeconds != 42 {
		t.Fatalf("unexpected outcome %+v / %+v", outcome, outcome.Result)
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0].To != player.Email {
		t.Fatalf("expected one result mail, got %+v", f.mail.sent)
	}
	if !f.events.saw(app.UserRoom(player.ID), app.EventAttemptGrade) {
		t.Fatalf("expected graded event for the player")
	}
}

func TestSubmitAnswersChecksOwnerAndPayload(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)
	quiz, _ := buildQuiz(t, f.quizzes)
	approve(t, f.quizzes, quiz.ID)
	started, _ := f.gateway.Start(ctx, player, quiz.ID)

	other := domain.Principal{UserID: 99, Role: domain.RolePlayer}
	answers := []domain.SubmittedAnswer{{QuestionID: 1}}
	if _, err := f.gateway.SubmitAnswers(ctx, other, started.AttemptID, answers); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for another user, got %v", err)
	}
	if _, err := f.gateway.SubmitAnswers(ctx, playerPrincipal(), started.AttemptID, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty answers, got %v", err)
	}
	// neither failure consumed the attempt
	if _, err := f.attempts.Get(ctx, started.AttemptID); err != nil {
		t.Fatalf("attempt should still exist: %v", err)
	}
}

func TestSubmitAnswersRestoresAttemptWhenQueueIsFull(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)
	quiz, _ := buildQuiz(t, f.quizzes)
	approve(t, f.quizzes, quiz.ID)
	started, _ := f.gateway.Start(ctx, player, quiz.ID)

	f.queue.full = true
	answers := []domain.SubmittedAnswer{{QuestionID: 1, AnswerIDs: []int64{1}}}
	if _, err := f.gateway.SubmitAnswers(ctx, playerPrincipal(), started.AttemptID, answers); !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	f.queue.full = false
	if _, err := f.gateway.SubmitAnswers(ctx, playerPrincipal(), started.AttemptID, answers); err != nil {
		t.Fatalf("resubmit after overflow: %v", err)
	}
}

func TestGradingRejectionRestoresAttempt(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)
	quiz, _ := buildQuiz(t, f.quizzes)
	approve(t, f.quizzes, quiz.ID)
	started, _ := f.gateway.Start(ctx, player, quiz.ID)

	f.engine.fail = domain.Upstream(503, "quiz service unavailable", nil)
	answers := []domain.SubmittedAnswer{{QuestionID: 1, AnswerIDs: []int64{1}}}
	if _, err := f.gateway.SubmitAnswers(ctx, playerPrincipal(), started.AttemptID, answers); err != nil {
		t.Fatalf("submit: %v", err)
	}
	outcome, err := f.gateway.Outcome(ctx, playerPrincipal(), started.AttemptID)
	if err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if outcome.Status != domain.OutcomeFailed || !outcome.Resubmittable {
		t.Fatalf("expected resubmittable failure, got %+v", outcome)
	}
	if _, err := f.attempts.Get(ctx, started.AttemptID); err != nil {
		t.Fatalf("attempt should be restored: %v", err)
	}
}

func TestAnnouncePendingBroadcastsToAdmins(t *testing.T) {
	f := newGatewayFixture(t)
	f.gateway.AnnouncePending(context.Background(), domain.Quiz{ID: 3, Status: domain.StatusPending, Title: "Q"})
	if !f.events.saw(app.AdminsRoom, app.EventQuizPending) {
		t.Fatalf("expected pending event in admins room")
	}
	payload := f.events.last().payload.(map[string]any)
	if payload["quiz_id"] != int64(3) || payload["status"] != domain.StatusPending {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestSendReportMailsPDF(t *testing.T) {
	ctx := context.Background()
	f := newGatewayFixture(t)
	quiz, _ := buildQuiz(t, f.quizzes)
	approve(t, f.quizzes, quiz.ID)

	admin := domain.User{ID: 1, Email: "admin@kviz.com", Role: domain.RoleAdmin}
	if err := f.gateway.SendReport(ctx, admin, quiz.ID); err != nil {
		t.Fatalf("send report: %v", err)
	}
	if len(f.mail.sent) != 1 || len(f.mail.sent[0].Attachments) != 1 {
		t.Fatalf("expected one mail with attachment, got %+v", f.mail.sent)
	}
	if f.mail.sent[0].Attachments[0].ContentType != "application/pdf" {
		t.Fatalf("unexpected attachment type %s", f.mail.sent[0].Attachments[0].ContentType)
	}
}

type inProcessEngine struct {
	svc    *app.QuizService
	tokens *security.TokenManager
	calls  int
	fail   error
}

func (e *inProcessEngine) Process(ctx context.Context, quizID int64, sub domain.Submission) (domain.ScoreResult, error) {
	e.calls++
	p, err := e.tokens.Verify(app.Bearer(ctx))
	if err != nil {
		return domain.ScoreResult{}, err
	}
	if p.Scope != domain.ScopeQuizService || p.UserID != sub.UserID || p.Email != sub.UserEmail {
		return domain.ScoreResult{}, errors.New("grading token does not match the submission")
	}
	if e.fail != nil {
		return domain.ScoreResult{}, e.fail
	}
	return e.svc.Grade(ctx, quizID, sub)
}

func (e *inProcessEngine) Leaderboard(ctx context.Context, quizID int64, limit int) (domain.Leaderboard, error) {
	return e.svc.Leaderboard(ctx, quizID, limit)
}

// inlineQueue runs tasks synchronously.
func TestServiceContextMintsScopedToken(t *testing.T) {
	f := newGatewayFixture(t)
	ctx, err := f.gateway.ServiceContext(context.Background(), domain.Principal{UserID: 7, Email: "p@b.com", Role: domain.RolePlayer})
	if err != nil {
		t.Fatalf("service context: %v", err)
	}
	p, err := f.engine.tokens.Verify(app.Bearer(ctx))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Scope != domain.ScopeQuizService || p.UserID != 7 || p.Email != "p@b.com" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if p.ExpiresAt.Sub(time.Now()) > security.ScopedTokenTTL {
		t.Fatalf("scoped token outlives %s: %s", security.ScopedTokenTTL, p.ExpiresAt)
	}
}

type inlineQueue struct {
	full bool
}

func (q *inlineQueue) Submit(_ string, run func(ctx context.Context) error, done func(err error)) error {
	if q.full {
		return errors.New("queue full")
	}
	err := run(context.Background())
	if done != nil {
		done(err)
	}
	return nil
}

type broadcastEvent struct {
	room, event string
	payload     any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (b *recordingBroadcaster) Broadcast(room, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastEvent{room, event, payload})
}

func (b *recordingBroadcaster) saw(room, event string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.room == room && e.event == event {
			return true
		}
	}
	return false
}

func (b *recordingBroadcaster) last() broadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

type recordingMailer struct {
	sent []app.Mail
}

func (m *recordingMailer) Send(_ context.Context, mail app.Mail) error {
	m.sent = append(m.sent, mail)
	return nil
}

type fakeReports struct{}

func (fakeReports) Render(quiz domain.Quiz, board domain.Leaderboard) ([]byte, error) {
	return []byte("%PDF-1.4"), nil
}
