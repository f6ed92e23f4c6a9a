package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const foreignKeyViolation = "23503"

// QuizRepository stores quizzes, questions and answers through bun.
type QuizRepository struct {
	db *bun.DB
}

func NewQuizRepository(db *bun.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

func (r *QuizRepository) Create(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	m := quizFromDomain(quiz)
	if _, err := r.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	quiz.ID = m.ID
	quiz.Questions = nil
	return quiz, nil
}

func (r *QuizRepository) Get(ctx context.Context, id int64) (domain.Quiz, error) {
	m := new(quizModel)
	err := r.db.NewSelect().
		Model(m).
		Relation("Questions", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("qn.id ASC")
		}).
		Relation("Questions.Answers", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("an.id ASC")
		}).
		Where("qz.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.NotFound("quiz")
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return m.toDomain(), nil
}

// GetQuiz lets the repository serve as a loader where no cache is wired.
func (r *QuizRepository) GetQuiz(ctx context.Context, id int64) (domain.Quiz, error) {
	return r.Get(ctx, id)
}

func (r *QuizRepository) List(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	var models []*quizModel
	q := r.db.NewSelect().Model(&models).OrderExpr("qz.id DESC")
	if filter.Status != "" {
		q = q.Where("qz.status = ?", string(filter.Status))
	}
	if filter.AuthorID != 0 {
		q = q.Where("qz.author_id = ?", filter.AuthorID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	quizzes := make([]domain.Quiz, 0, len(models))
	for _, m := range models {
		quizzes = append(quizzes, m.toDomain())
	}
	return quizzes, nil
}

// AddQuestion inserts only while the quiz is DRAFT or REJECTED, so a concurrent Submit
// cannot be followed by a late question.
func (r *QuizRepository) AddQuestion(ctx context.Context, question domain.Question) (domain.Question, error) {
	m := &questionModel{QuizID: question.QuizID, Text: question.Text, Points: question.Points}
	err := r.db.NewRaw(`
		INSERT INTO questions (quiz_id, text, points)
		SELECT qz.id, ?, ? FROM quizzes AS qz
		WHERE qz.id = ? AND qz.status IN (?)
		RETURNING id`,
		m.Text, m.Points, m.QuizID, bun.In(editableStatuses()),
	).Scan(ctx, &m.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, r.notEditable(ctx, question.QuizID)
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}
	question.ID = m.ID
	question.Answers = nil
	return question, nil
}

// notEditable explains why a guarded insert matched no quiz.
func (r *QuizRepository) notEditable(ctx context.Context, quizID int64) error {
	var status string
	err := r.db.NewSelect().Model((*quizModel)(nil)).Column("status").Where("id = ?", quizID).Scan(ctx, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound("quiz")
	}
	if err != nil {
		return fmt.Errorf("load quiz status: %w", err)
	}
	return domain.State("quiz in status %s cannot be edited", status)
}

func editableStatuses() []string {
	return []string{string(domain.StatusDraft), string(domain.StatusRejected)}
}

func (r *QuizRepository) QuestionOwner(ctx context.Context, questionID int64) (int64, error) {
	var quizID int64
	err := r.db.NewSelect().
		Model((*questionModel)(nil)).
		Column("quiz_id").
		Where("id = ?", questionID).
		Scan(ctx, &quizID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.NotFound("question")
	}
	if err != nil {
		return 0, fmt.Errorf("load question: %w", err)
	}
	return quizID, nil
}

func (r *QuizRepository) AddAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error) {
	m := &answerModel{QuestionID: answer.QuestionID, Text: answer.Text, IsCorrect: answer.IsCorrect}
	err := r.db.NewRaw(`
		INSERT INTO answers (question_id, text, is_correct)
		SELECT qn.id, ?, ? FROM questions AS qn
		JOIN quizzes AS qz ON qz.id = qn.quiz_id
		WHERE qn.id = ? AND qz.status IN (?)
		RETURNING id`,
		m.Text, m.IsCorrect, m.QuestionID, bun.In(editableStatuses()),
	).Scan(ctx, &m.ID)
	if errors.Is(err, sql.ErrNoRows) {
		quizID, ownerErr := r.QuestionOwner(ctx, answer.QuestionID)
		if ownerErr != nil {
			return domain.Answer{}, ownerErr
		}
		return domain.Answer{}, r.notEditable(ctx, quizID)
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("insert answer: %w", err)
	}
	answer.ID = m.ID
	return answer, nil
}

// Transition is a guarded UPDATE; zero affected rows means the status was not in from.
func (r *QuizRepository) Transition(ctx context.Context, id int64, from []domain.QuizStatus, to domain.QuizStatus, reason *string, at time.Time) (bool, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}
	res, err := r.db.NewUpdate().
		Model((*quizModel)(nil)).
		Set("status = ?", string(to)).
		Set("reject_reason = ?", reason).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status IN (?)", bun.In(statuses)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update quiz status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update quiz status: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	exists, err := r.db.NewSelect().Model((*quizModel)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check quiz: %w", err)
	}
	if !exists {
		return false, domain.NotFound("quiz")
	}
	return false, nil
}

// Delete relies on ON DELETE CASCADE for questions, answers and results.
func (r *QuizRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().Model((*quizModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("quiz")
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == foreignKeyViolation
}

// ResultRepository stores immutable quiz results.
type ResultRepository struct {
	db *bun.DB
}

func NewResultRepository(db *bun.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Save(ctx context.Context, result domain.QuizResult) (domain.QuizResult, error) {
	m := &resultModel{
		QuizID:           result.QuizID,
		UserID:           result.UserID,
		UserEmail:        result.UserEmail,
		Score:            result.Score,
		MaxScore:         result.MaxScore,
		CorrectCount:     result.CorrectCount,
		TimeSpentSeconds: result.TimeSpentSeconds,
		CompletedAt:      result.CompletedAt,
	}
	if _, err := r.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
		if isForeignKeyViolation(err) {
			return domain.QuizResult{}, domain.NotFound("quiz")
		}
		return domain.QuizResult{}, fmt.Errorf("insert result: %w", err)
	}
	result.ID = m.ID
	return result, nil
}

func (r *ResultRepository) Top(ctx context.Context, quizID int64, limit int) ([]domain.QuizResult, error) {
	var models []*resultModel
	err := r.db.NewSelect().
		Model(&models).
		Where("quiz_id = ?", quizID).
		OrderExpr("score DESC, time_spent_seconds ASC, completed_at ASC, id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	results := make([]domain.QuizResult, 0, len(models))
	for _, m := range models {
		results = append(results, m.toDomain())
	}
	return results, nil
}
