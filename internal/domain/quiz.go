package domain

import "time"

// QuizStatus is the authoring/moderation state of a quiz.
type QuizStatus string

const (
	StatusDraft    QuizStatus = "DRAFT"
	StatusPending  QuizStatus = "PENDING"
	StatusApproved QuizStatus = "APPROVED"
	StatusRejected QuizStatus = "REJECTED"
)

func ParseQuizStatus(raw string) (QuizStatus, bool) {
	switch s := QuizStatus(raw); s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return s, true
	}
	return "", false
}

// Editable reports whether questions and answers may still change.
func (s QuizStatus) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

// DefaultDurationSeconds applies when a quiz is created without a duration.
const DefaultDurationSeconds = 60

// Answer belongs to exactly one question.
type Answer struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
}

// Question belongs to exactly one quiz. Points is always positive.
type Question struct {
	ID      int64    `json:"id"`
	QuizID  int64    `json:"quiz_id"`
	Text    string   `json:"text"`
	Points  int      `json:"points"`
	Answers []Answer `json:"answers"`
}

// CorrectSet returns the ids of the correct answers.
func (q Question) CorrectSet() map[int64]struct{} {
	set := make(map[int64]struct{})
	for _, a := range q.Answers {
		if a.IsCorrect {
			set[a.ID] = struct{}{}
		}
	}
	return set
}

// Quiz owns its questions; deleting it cascades to questions, answers and results.
type Quiz struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          QuizStatus `json:"status"`
	RejectReason    *string    `json:"reject_reason"`
	DurationSeconds int        `json:"duration_seconds"`
	AuthorID        int64      `json:"author_id"`
	AuthorEmail     string     `json:"author_email,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Questions       []Question `json:"questions,omitempty"`
}

// MaxScore sums the points of every question.
func (q Quiz) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// NewQuiz is the input of quiz creation.
type NewQuiz struct {
	Title           string
	Description     string
	DurationSeconds int
	AuthorID        int64
	AuthorEmail     string
}

// QuizFilter narrows List. A zero Status lists every status.
type QuizFilter struct {
	Status   QuizStatus
	AuthorID int64
}

// SubmittedAnswer is the player's selection for one question.
type SubmittedAnswer struct {
	QuestionID int64   `json:"question_id"`
	AnswerIDs  []int64 `json:"answer_ids"`
}

// Submission is a graded attempt as sent by the gateway.
type Submission struct {
	UserID           int64             `json:"user_id"`
	UserEmail        string            `json:"user_email"`
	TimeSpentSeconds int               `json:"time_spent_seconds"`
	Answers          []SubmittedAnswer `json:"answers"`
}

// QuizResult is an immutable graded snapshot. User identity is denormalized.
type QuizResult struct {
	ID               int64     `json:"id"`
	QuizID           int64     `json:"quiz_id"`
	UserID           int64     `json:"user_id"`
	UserEmail        string    `json:"user_email"`
	Score            int       `json:"score"`
	MaxScore         int       `json:"max_score"`
	CorrectCount     int       `json:"correct_count"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
}

// ScoreResult is returned by grading.
type ScoreResult struct {
	ResultID         int64     `json:"result_id"`
	QuizID           int64     `json:"quiz_id"`
	Score            int       `json:"score"`
	MaxScore         int       `json:"max_score"`
	CorrectCount     int       `json:"correct_count"`
	TotalQuestions   int       `json:"total_questions"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Leaderboard is the ranked result list for one quiz.
type Leaderboard struct {
	QuizID  int64        `json:"quiz_id"`
	Results []QuizResult `json:"results"`
}

// PublicAnswer is an answer as shown to players, without the correctness flag.
type PublicAnswer struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type PublicQuestion struct {
	ID      int64          `json:"id"`
	Text    string         `json:"text"`
	Points  int            `json:"points"`
	Answers []PublicAnswer `json:"answers"`
}

// PublicQuiz is the player view of a quiz.
type PublicQuiz struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Status          QuizStatus       `json:"status"`
	DurationSeconds int              `json:"duration_seconds"`
	AuthorEmail     string           `json:"author_email,omitempty"`
	Questions       []PublicQuestion `json:"questions,omitempty"`
}

// Public strips correctness flags.
func (q Quiz) Public() PublicQuiz {
	out := PublicQuiz{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		Status:          q.Status,
		DurationSeconds: q.DurationSeconds,
		AuthorEmail:     q.AuthorEmail,
	}
	for _, question := range q.Questions {
		pq := PublicQuestion{ID: question.ID, Text: question.Text, Points: question.Points}
		for _, a := range question.Answers {
			pq.Answers = append(pq.Answers, PublicAnswer{ID: a.ID, Text: a.Text})
		}
		out.Questions = append(out.Questions, pq)
	}
	return out
}
