package app

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AdminsRoom = "admins"

	EventQuizPending  = "quiz:new_pending"
	EventAttemptGrade = "attempt:graded"

	reportLimit = MaxLeaderboardLimit
)

// UserRoom is the realtime room of a single account.
func UserRoom(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

type bearerKey struct{}

// WithBearer attaches the session token used for calls to the quiz service.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// Bearer returns the token set by WithBearer.
func Bearer(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// GatewayOptions carries the optional collaborators of GatewayService.
type GatewayOptions struct {
	AttemptTTL  time.Duration
	OutcomeTTL  time.Duration
	Broadcaster Broadcaster
	Mailer      Mailer
	Reports     ReportRenderer
	Events      EventPublisher
	Logger      *zap.Logger
}

// GatewayService runs quiz attempts, background grading, reports and moderation notices.
type GatewayService struct {
	quizzes    QuizReader
	engine     QuizEngine
	attempts   AttemptStore
	queue      TaskQueue
	tokens     TokenIssuer
	attemptTTL time.Duration
	outcomeTTL time.Duration
	broadcast  Broadcaster
	mailer     Mailer
	reports    ReportRenderer
	events     EventPublisher
	clock      func() time.Time
	logger     *zap.Logger
}

func NewGatewayService(quizzes QuizReader, engine QuizEngine, attempts AttemptStore, queue TaskQueue, tokens TokenIssuer, opts GatewayOptions) *GatewayService {
	if opts.AttemptTTL <= 0 {
		opts.AttemptTTL = 2 * time.Hour
	}
	if opts.OutcomeTTL <= 0 {
		opts.OutcomeTTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &GatewayService{
		quizzes:    quizzes,
		engine:     engine,
		attempts:   attempts,
		queue:      queue,
		tokens:     tokens,
		attemptTTL: opts.AttemptTTL,
		outcomeTTL: opts.OutcomeTTL,
		broadcast:  opts.Broadcaster,
		mailer:     opts.Mailer,
		reports:    opts.Reports,
		events:     opts.Events,
		clock:      time.Now,
		logger:     opts.Logger,
	}
}

func (s *GatewayService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// StartedAttempt is returned to the player when an attempt begins.
type StartedAttempt struct {
	AttemptID       string            `json:"attempt_id"`
	StartedAt       time.Time         `json:"started_at"`
	DurationSeconds int               `json:"duration_seconds"`
	Quiz            domain.PublicQuiz `json:"quiz"`
}

// Start opens an attempt on an APPROVED quiz.
func (s *GatewayService) Start(ctx context.Context, user domain.User, quizID int64) (StartedAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartedAttempt{}, err
	}
	if quiz.Status != domain.StatusApproved {
		return StartedAttempt{}, domain.State("quiz is not approved")
	}
	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		UserEmail: user.Email,
		QuizID:    quiz.ID,
		StartedAt: s.clock().UTC(),
	}
	if err := s.attempts.Save(ctx, attempt, s.attemptTTL); err != nil {
		return StartedAttempt{}, domain.Internal("could not start attempt", err)
	}
	return StartedAttempt{
		AttemptID:       attempt.ID,
		StartedAt:       attempt.StartedAt,
		DurationSeconds: quiz.DurationSeconds,
		Quiz:            quiz.Public(),
	}, nil
}

// SubmitAnswers consumes the attempt and queues it for grading. A replay of the same
// attempt id fails with not found.
func (s *GatewayService) SubmitAnswers(ctx context.Context, p domain.Principal, attemptID string, answers []domain.SubmittedAnswer) (domain.AttemptOutcome, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.AttemptOutcome{}, wrapStoreErr(err, "attempt")
	}
	if attempt.UserID != p.UserID {
		return domain.AttemptOutcome{}, domain.Forbidden("attempt belongs to another user")
	}
	if len(answers) == 0 {
		return domain.AttemptOutcome{}, domain.Validation("answers must be a non-empty list")
	}
	attempt, err = s.attempts.Take(ctx, attemptID)
	if err != nil {
		return domain.AttemptOutcome{}, wrapStoreErr(err, "attempt")
	}

	spent := int(s.clock().Sub(attempt.StartedAt).Seconds())
	if spent < 0 {
		spent = 0
	}
	outcome := domain.AttemptOutcome{
		AttemptID: attempt.ID,
		UserID:    attempt.UserID,
		QuizID:    attempt.QuizID,
		Status:    domain.OutcomeProcessing,
	}
	s.saveOutcome(ctx, outcome)

	sub := domain.Submission{
		UserID:           attempt.UserID,
		UserEmail:        attempt.UserEmail,
		TimeSpentSeconds: spent,
		Answers:          answers,
	}
	var ran atomic.Bool
	run := func(jobCtx context.Context) error {
		ran.Store(true)
		return s.grade(jobCtx, p.Role, attempt, sub)
	}
	done := func(err error) {
		switch {
		case err == nil:
			metrics.GradingJobsTotal.WithLabelValues("graded").Inc()
		case !ran.Load():
			metrics.GradingJobsTotal.WithLabelValues("dropped").Inc()
			s.restore(context.Background(), attempt, "grading was interrupted, please resubmit")
		default:
			metrics.GradingJobsTotal.WithLabelValues("failed").Inc()
			s.logger.Warn("grading failed",
				zap.String("attempt_id", attempt.ID),
				zap.Int64("quiz_id", attempt.QuizID),
				zap.Error(err))
		}
	}

	if err := s.queue.Submit("grade:"+attempt.ID, run, done); err != nil {
		metrics.GradingJobsTotal.WithLabelValues("rejected").Inc()
		s.restore(ctx, attempt, "grading queue is full, please resubmit")
		return domain.AttemptOutcome{}, domain.Internal("grading queue is full, please try again", err)
	}
	return outcome, nil
}

// grade calls the quiz service and records the outcome. It runs on a worker.
func (s *GatewayService) grade(ctx context.Context, role domain.Role, attempt domain.Attempt, sub domain.Submission) error {
	ctx, err := s.actingAs(ctx, domain.User{ID: attempt.UserID, Email: attempt.UserEmail, Role: role})
	if err != nil {
		s.restore(ctx, attempt, "grading could not start, please resubmit")
		return err
	}

	result, err := s.engine.Process(ctx, attempt.QuizID, sub)
	if err != nil {
		// A response from the quiz service means nothing was stored, so the player may retry.
		if de := domain.AsError(err); de.Kind != domain.KindUpstream || de.Status != 0 {
			s.restore(ctx, attempt, de.Message)
			return err
		}
		s.saveOutcome(ctx, domain.AttemptOutcome{
			AttemptID: attempt.ID,
			UserID:    attempt.UserID,
			QuizID:    attempt.QuizID,
			Status:    domain.OutcomeFailed,
			Error:     "grading service unavailable",
		})
		return err
	}

	outcome := domain.AttemptOutcome{
		AttemptID: attempt.ID,
		UserID:    attempt.UserID,
		QuizID:    attempt.QuizID,
		Status:    domain.OutcomeGraded,
		Result:    &result,
	}
	s.saveOutcome(ctx, outcome)
	if s.broadcast != nil {
		s.broadcast.Broadcast(UserRoom(attempt.UserID), EventAttemptGrade, outcome)
	}
	s.publish(ctx, Event{Type: "attempt.graded", Key: attempt.ID, Payload: outcome})
	s.mailResult(ctx, attempt, result)
	return nil
}

func (s *GatewayService) mailResult(ctx context.Context, attempt domain.Attempt, result domain.ScoreResult) {
	if s.mailer == nil || attempt.UserEmail == "" {
		return
	}
	title := fmt.Sprintf("#%d", attempt.QuizID)
	if quiz, err := s.quizzes.GetQuiz(ctx, attempt.QuizID); err == nil {
		title = quiz.Title
	}
	mail := Mail{
		To:      attempt.UserEmail,
		Subject: "Your results for quiz " + title,
		Body: fmt.Sprintf("You scored %d/%d points (%d of %d questions correct) in %d seconds.",
			result.Score, result.MaxScore, result.CorrectCount, result.TotalQuestions, result.TimeSpentSeconds),
	}
	if err := s.mailer.Send(ctx, mail); err != nil {
		s.logger.Warn("result mail failed", zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
}

// restore puts the attempt back so the player can resubmit it.
func (s *GatewayService) restore(ctx context.Context, attempt domain.Attempt, reason string) {
	if err := s.attempts.Save(ctx, attempt, s.attemptTTL); err != nil {
		s.logger.Error("could not restore attempt", zap.String("attempt_id", attempt.ID), zap.Error(err))
		return
	}
	s.saveOutcome(ctx, domain.AttemptOutcome{
		AttemptID:     attempt.ID,
		UserID:        attempt.UserID,
		QuizID:        attempt.QuizID,
		Status:        domain.OutcomeFailed,
		Error:         reason,
		Resubmittable: true,
	})
}

func (s *GatewayService) saveOutcome(ctx context.Context, outcome domain.AttemptOutcome) {
	if err := s.attempts.SaveOutcome(ctx, outcome, s.outcomeTTL); err != nil {
		s.logger.Warn("could not record attempt outcome", zap.String("attempt_id", outcome.AttemptID), zap.Error(err))
	}
}

// Outcome returns the grading state of the caller's attempt.
func (s *GatewayService) Outcome(ctx context.Context, p domain.Principal, attemptID string) (domain.AttemptOutcome, error) {
	outcome, err := s.attempts.Outcome(ctx, attemptID)
	if err != nil {
		return domain.AttemptOutcome{}, wrapStoreErr(err, "attempt outcome")
	}
	if outcome.UserID != p.UserID {
		return domain.AttemptOutcome{}, domain.Forbidden("attempt belongs to another user")
	}
	return outcome, nil
}

// ReportPDF renders the leaderboard document of a quiz on demand.
func (s *GatewayService) ReportPDF(ctx context.Context, quizID int64) ([]byte, domain.Quiz, error) {
	if s.reports == nil {
		return nil, domain.Quiz{}, domain.Internal("report rendering is not configured", nil)
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, domain.Quiz{}, err
	}
	board, err := s.engine.Leaderboard(ctx, quizID, reportLimit)
	if err != nil {
		return nil, domain.Quiz{}, err
	}
	doc, err := s.reports.Render(quiz, board)
	if err != nil {
		return nil, domain.Quiz{}, domain.Internal("could not render report", err)
	}
	return doc, quiz, nil
}

// SendReport mails the report to the requesting admin in the background.
func (s *GatewayService) SendReport(ctx context.Context, admin domain.User, quizID int64) error {
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		return err
	}
	run := func(jobCtx context.Context) error {
		jobCtx, err := s.actingAs(jobCtx, admin)
		if err != nil {
			return err
		}
		doc, quiz, err := s.ReportPDF(jobCtx, quizID)
		if err != nil {
			return err
		}
		if s.mailer == nil {
			return nil
		}
		return s.mailer.Send(jobCtx, Mail{
			To:      admin.Email,
			Subject: "Leaderboard report: " + quiz.Title,
			Body:    fmt.Sprintf("The leaderboard report for quiz %q is attached.", quiz.Title),
			Attachments: []Attachment{{
				Filename:    fmt.Sprintf("quiz_%d_report.pdf", quizID),
				ContentType: "application/pdf",
				Data:        doc,
			}},
		})
	}
	done := func(err error) {
		if err != nil {
			s.logger.Warn("report mail failed", zap.Int64("quiz_id", quizID), zap.String("to", admin.Email), zap.Error(err))
		}
	}
	if err := s.queue.Submit(fmt.Sprintf("report:%d", quizID), run, done); err != nil {
		s.logger.Warn("report mail dropped", zap.Int64("quiz_id", quizID), zap.Error(err))
	}
	return nil
}

// AnnouncePending notifies moderators that a quiz awaits review.
func (s *GatewayService) AnnouncePending(ctx context.Context, quiz domain.Quiz) {
	payload := map[string]any{
		"quiz_id":      quiz.ID,
		"status":       quiz.Status,
		"title":        quiz.Title,
		"author_email": quiz.AuthorEmail,
	}
	if s.broadcast != nil {
		s.broadcast.Broadcast(AdminsRoom, EventQuizPending, payload)
	}
	s.publish(ctx, Event{Type: "quiz.pending", Key: strconv.FormatInt(quiz.ID, 10), Payload: payload})
}

func (s *GatewayService) publish(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	event.At = s.clock().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", event.Type), zap.Error(err))
	}
}

// actingAs mints a short-lived quiz service token so work can call the quiz service
// on behalf of user.
func (s *GatewayService) actingAs(ctx context.Context, user domain.User) (context.Context, error) {
	session, err := s.tokens.IssueScoped(user, domain.ScopeQuizService)
	if err != nil {
		return ctx, domain.Internal("could not issue service token", err)
	}
	return WithBearer(ctx, session.Token), nil
}

// ServiceContext returns ctx carrying a quiz service token for the caller.
func (s *GatewayService) ServiceContext(ctx context.Context, p domain.Principal) (context.Context, error) {
	return s.actingAs(ctx, p.User())
}
