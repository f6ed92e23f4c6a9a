package postgres

import (
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/uptrace/bun"
)

type quizModel struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID              int64     `bun:"id,pk,autoincrement"`
	Title           string    `bun:"title,notnull"`
	Description     string    `bun:"description,notnull"`
	Status          string    `bun:"status,notnull"`
	RejectReason    *string   `bun:"reject_reason"`
	DurationSeconds int       `bun:"duration_seconds,notnull"`
	AuthorID        int64     `bun:"author_id,notnull"`
	AuthorEmail     string    `bun:"author_email,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`

	Questions []*questionModel `bun:"rel:has-many,join:id=quiz_id"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:qn"`

	ID     int64  `bun:"id,pk,autoincrement"`
	QuizID int64  `bun:"quiz_id,notnull"`
	Text   string `bun:"text,notnull"`
	Points int    `bun:"points,notnull"`

	Answers []*answerModel `bun:"rel:has-many,join:id=question_id"`
}

type answerModel struct {
	bun.BaseModel `bun:"table:answers,alias:an"`

	ID         int64  `bun:"id,pk,autoincrement"`
	QuestionID int64  `bun:"question_id,notnull"`
	Text       string `bun:"text,notnull"`
	IsCorrect  bool   `bun:"is_correct,notnull"`
}

type resultModel struct {
	bun.BaseModel `bun:"table:quiz_results,alias:qr"`

	ID               int64     `bun:"id,pk,autoincrement"`
	QuizID           int64     `bun:"quiz_id,notnull"`
	UserID           int64     `bun:"user_id,notnull"`
	UserEmail        string    `bun:"user_email,notnull"`
	Score            int       `bun:"score,notnull"`
	MaxScore         int       `bun:"max_score,notnull"`
	CorrectCount     int       `bun:"correct_count,notnull"`
	TimeSpentSeconds int       `bun:"time_spent_seconds,notnull"`
	CompletedAt      time.Time `bun:"completed_at,notnull"`
}

func quizFromDomain(q domain.Quiz) *quizModel {
	return &quizModel{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		Status:          string(q.Status),
		RejectReason:    q.RejectReason,
		DurationSeconds: q.DurationSeconds,
		AuthorID:        q.AuthorID,
		AuthorEmail:     q.AuthorEmail,
		CreatedAt:       q.CreatedAt,
		UpdatedAt:       q.UpdatedAt,
	}
}

func (m *quizModel) toDomain() domain.Quiz {
	q := domain.Quiz{
		ID:              m.ID,
		Title:           m.Title,
		Description:     m.Description,
		Status:          domain.QuizStatus(m.Status),
		RejectReason:    m.RejectReason,
		DurationSeconds: m.DurationSeconds,
		AuthorID:        m.AuthorID,
		AuthorEmail:     m.AuthorEmail,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	for _, qm := range m.Questions {
		q.Questions = append(q.Questions, qm.toDomain())
	}
	return q
}

func (m *questionModel) toDomain() domain.Question {
	q := domain.Question{ID: m.ID, QuizID: m.QuizID, Text: m.Text, Points: m.Points}
	for _, am := range m.Answers {
		q.Answers = append(q.Answers, am.toDomain())
	}
	return q
}

func (m *answerModel) toDomain() domain.Answer {
	return domain.Answer{ID: m.ID, QuestionID: m.QuestionID, Text: m.Text, IsCorrect: m.IsCorrect}
}

func (m *resultModel) toDomain() domain.QuizResult {
	return domain.QuizResult{
		ID:               m.ID,
		QuizID:           m.QuizID,
		UserID:           m.UserID,
		UserEmail:        m.UserEmail,
		Score:            m.Score,
		MaxScore:         m.MaxScore,
		CorrectCount:     m.CorrectCount,
		TimeSpentSeconds: m.TimeSpentSeconds,
		CompletedAt:      m.CompletedAt.UTC(),
	}
}
