package app

import (
	"context"
	"strings"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/metrics"
	"go.uber.org/zap"
)

// QuizService owns the quiz lifecycle and scoring.
type QuizService struct {
	quizzes QuizRepository
	results ResultRepository
	clock   func() time.Time
	logger  *zap.Logger
}

func NewQuizService(quizzes QuizRepository, results ResultRepository, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{quizzes: quizzes, results: results, clock: time.Now, logger: logger}
}

// SetClock is used by tests for deterministic timestamps.
func (s *QuizService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// CreateQuiz stores a new DRAFT quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.Quiz, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Quiz{}, domain.Validation("title is required")
	}
	if in.DurationSeconds < 0 {
		return domain.Quiz{}, domain.Validation("duration_seconds must be positive")
	}
	if in.DurationSeconds == 0 {
		in.DurationSeconds = domain.DefaultDurationSeconds
	}
	now := s.clock().UTC()
	quiz, err := s.quizzes.Create(ctx, domain.Quiz{
		Title:           title,
		Description:     strings.TrimSpace(in.Description),
		Status:          domain.StatusDraft,
		DurationSeconds: in.DurationSeconds,
		AuthorID:        in.AuthorID,
		AuthorEmail:     in.AuthorEmail,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return domain.Quiz{}, domain.Internal("could not create quiz", err)
	}
	return quiz, nil
}

// AddQuestion appends a question to an editable quiz. Zero points means 1.
func (s *QuizService) AddQuestion(ctx context.Context, quizID int64, text string, points int) (domain.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Question{}, domain.Validation("question text is required")
	}
	if points == 0 {
		points = 1
	}
	if points < 0 {
		return domain.Question{}, domain.Validation("points must be a positive integer")
	}
	if err := s.requireEditable(ctx, quizID); err != nil {
		return domain.Question{}, err
	}
	q, err := s.quizzes.AddQuestion(ctx, domain.Question{QuizID: quizID, Text: text, Points: points})
	if err != nil {
		return domain.Question{}, wrapStoreErr(err, "quiz")
	}
	return q, nil
}

// AddAnswer appends an answer to a question of an editable quiz.
func (s *QuizService) AddAnswer(ctx context.Context, questionID int64, text string, isCorrect bool) (domain.Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Answer{}, domain.Validation("answer text is required")
	}
	quizID, err := s.quizzes.QuestionOwner(ctx, questionID)
	if err != nil {
		return domain.Answer{}, wrapStoreErr(err, "question")
	}
	if err := s.requireEditable(ctx, quizID); err != nil {
		return domain.Answer{}, err
	}
	a, err := s.quizzes.AddAnswer(ctx, domain.Answer{QuestionID: questionID, Text: text, IsCorrect: isCorrect})
	if err != nil {
		return domain.Answer{}, wrapStoreErr(err, "question")
	}
	return a, nil
}

func (s *QuizService) requireEditable(ctx context.Context, quizID int64) error {
	quiz, err := s.Get(ctx, quizID)
	if err != nil {
		return err
	}
	if !quiz.Status.Editable() {
		return domain.State("quiz in status %s cannot be edited", quiz.Status)
	}
	return nil
}

func (s *QuizService) Get(ctx context.Context, id int64) (domain.Quiz, error) {
	quiz, err := s.quizzes.Get(ctx, id)
	if err != nil {
		return domain.Quiz{}, wrapStoreErr(err, "quiz")
	}
	return quiz, nil
}

func (s *QuizService) List(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	quizzes, err := s.quizzes.List(ctx, filter)
	if err != nil {
		return nil, domain.Internal("could not list quizzes", err)
	}
	return quizzes, nil
}

// Delete removes a quiz with its questions, answers and results.
func (s *QuizService) Delete(ctx context.Context, id int64) error {
	if err := s.quizzes.Delete(ctx, id); err != nil {
		return wrapStoreErr(err, "quiz")
	}
	return nil
}

// ValidateForSubmit checks that the quiz has questions and that each one has at least two
// answers with at least one correct. The error names the first failing question.
func ValidateForSubmit(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return domain.Validation("quiz must have at least one question")
	}
	for _, q := range quiz.Questions {
		if len(q.Answers) < 2 {
			return domain.Validation("question %d must have at least 2 answers", q.ID)
		}
		if len(q.CorrectSet()) == 0 {
			return domain.Validation("question %d must have at least one correct answer", q.ID)
		}
	}
	return nil
}

// Submit moves a DRAFT or REJECTED quiz to PENDING and clears the reject reason.
func (s *QuizService) Submit(ctx context.Context, id int64) (domain.Quiz, error) {
	quiz, err := s.Get(ctx, id)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !quiz.Status.Editable() {
		return domain.Quiz{}, domain.State("quiz in status %s cannot be submitted", quiz.Status)
	}
	if err := ValidateForSubmit(quiz); err != nil {
		return domain.Quiz{}, err
	}
	return s.transition(ctx, quiz, []domain.QuizStatus{domain.StatusDraft, domain.StatusRejected}, domain.StatusPending, nil)
}

// Approve moves a PENDING quiz to APPROVED.
func (s *QuizService) Approve(ctx context.Context, id int64) (domain.Quiz, error) {
	quiz, err := s.Get(ctx, id)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.Status != domain.StatusPending {
		return domain.Quiz{}, domain.State("only PENDING quizzes can be approved, quiz is %s", quiz.Status)
	}
	return s.transition(ctx, quiz, []domain.QuizStatus{domain.StatusPending}, domain.StatusApproved, nil)
}

// Reject moves a PENDING quiz to REJECTED with a non-blank reason.
func (s *QuizService) Reject(ctx context.Context, id int64, reason string) (domain.Quiz, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Quiz{}, domain.Validation("reject reason is required")
	}
	quiz, err := s.Get(ctx, id)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.Status != domain.StatusPending {
		return domain.Quiz{}, domain.State("only PENDING quizzes can be rejected, quiz is %s", quiz.Status)
	}
	return s.transition(ctx, quiz, []domain.QuizStatus{domain.StatusPending}, domain.StatusRejected, &reason)
}

// transition applies a guarded status update; losing a race to a concurrent change is a state error.
func (s *QuizService) transition(ctx context.Context, quiz domain.Quiz, from []domain.QuizStatus, to domain.QuizStatus, reason *string) (domain.Quiz, error) {
	now := s.clock().UTC()
	ok, err := s.quizzes.Transition(ctx, quiz.ID, from, to, reason, now)
	if err != nil {
		return domain.Quiz{}, domain.Internal("could not update quiz status", err)
	}
	if !ok {
		return domain.Quiz{}, domain.State("quiz status changed concurrently")
	}
	quiz.Status = to
	quiz.RejectReason = reason
	quiz.UpdatedAt = now
	metrics.QuizTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.logger.Info("quiz status changed", zap.Int64("quiz_id", quiz.ID), zap.String("status", string(to)))
	return quiz, nil
}

// ScoreSubmission grades answers against the quiz without persisting anything. A question
// counts only when the submitted id set equals its non-empty correct set.
func ScoreSubmission(quiz domain.Quiz, answers []domain.SubmittedAnswer) (score, maxScore, correct int) {
	submitted := make(map[int64]map[int64]struct{}, len(answers))
	for _, a := range answers {
		set, ok := submitted[a.QuestionID]
		if !ok {
			set = make(map[int64]struct{}, len(a.AnswerIDs))
			submitted[a.QuestionID] = set
		}
		for _, id := range a.AnswerIDs {
			set[id] = struct{}{}
		}
	}

	for _, q := range quiz.Questions {
		maxScore += q.Points
		want := q.CorrectSet()
		if len(want) == 0 {
			continue
		}
		if sameSet(want, submitted[q.ID]) {
			score += q.Points
			correct++
		}
	}
	return score, maxScore, correct
}

func sameSet(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

// Grade scores an APPROVED quiz and persists one result. Each call writes a new row.
func (s *QuizService) Grade(ctx context.Context, quizID int64, sub domain.Submission) (domain.ScoreResult, error) {
	if sub.Answers == nil {
		return domain.ScoreResult{}, domain.Validation("answers must be a list")
	}
	quiz, err := s.Get(ctx, quizID)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	if quiz.Status != domain.StatusApproved {
		return domain.ScoreResult{}, domain.State("quiz is not approved")
	}

	score, maxScore, correct := ScoreSubmission(quiz, sub.Answers)
	spent := sub.TimeSpentSeconds
	if spent < 0 {
		spent = 0
	}
	saved, err := s.results.Save(ctx, domain.QuizResult{
		QuizID:           quiz.ID,
		UserID:           sub.UserID,
		UserEmail:        sub.UserEmail,
		Score:            score,
		MaxScore:         maxScore,
		CorrectCount:     correct,
		TimeSpentSeconds: spent,
		CompletedAt:      s.clock().UTC(),
	})
	if err != nil {
		return domain.ScoreResult{}, domain.Internal("could not save result", err)
	}
	metrics.QuizzesGradedTotal.Inc()
	return domain.ScoreResult{
		ResultID:         saved.ID,
		QuizID:           quiz.ID,
		Score:            score,
		MaxScore:         maxScore,
		CorrectCount:     correct,
		TotalQuestions:   len(quiz.Questions),
		TimeSpentSeconds: spent,
		CompletedAt:      saved.CompletedAt,
	}, nil
}

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// ClampLimit maps a missing limit to the default and bounds the rest to [1,100].
func ClampLimit(limit int, present bool) int {
	if !present {
		return DefaultLeaderboardLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}

// Leaderboard returns the top results of a quiz. limit must already be clamped.
func (s *QuizService) Leaderboard(ctx context.Context, quizID int64, limit int) (domain.Leaderboard, error) {
	if _, err := s.quizzes.Get(ctx, quizID); err != nil {
		return domain.Leaderboard{}, wrapStoreErr(err, "quiz")
	}
	limit = ClampLimit(limit, true)
	results, err := s.results.Top(ctx, quizID, limit)
	if err != nil {
		return domain.Leaderboard{}, domain.Internal("could not load leaderboard", err)
	}
	return domain.Leaderboard{QuizID: quizID, Results: results}, nil
}

// RankLess orders results by score desc, time asc, completion asc.
func RankLess(a, b domain.QuizResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.TimeSpentSeconds != b.TimeSpentSeconds {
		return a.TimeSpentSeconds < b.TimeSpentSeconds
	}
	if !a.CompletedAt.Equal(b.CompletedAt) {
		return a.CompletedAt.Before(b.CompletedAt)
	}
	return a.ID < b.ID
}
