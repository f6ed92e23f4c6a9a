package http

import (
	"strconv"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/gin-gonic/gin"
)

type createQuizRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	Description     string `json:"description" binding:"max=2000"`
	DurationSeconds int    `json:"duration_seconds" binding:"omitempty,gt=0"`
	AuthorEmail     string `json:"author_email" binding:"omitempty,email"`
}

type questionRequest struct {
	Text   string `json:"text" binding:"required"`
	Points int    `json:"points"`
}

type answerRequest struct {
	Text      string `json:"text" binding:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type answerItem struct {
	QuestionID int64   `json:"question_id" binding:"required,gt=0"`
	AnswerIDs  []int64 `json:"answer_ids"`
}

type answersRequest struct {
	Answers []answerItem `json:"answers" binding:"dive"`
}

// processRequest carries no identity; the user comes from the token.
type processRequest struct {
	TimeSpentSeconds *int         `json:"time_spent_seconds" binding:"required"`
	Answers          []answerItem `json:"answers" binding:"dive"`
}

// toSubmitted keeps nil distinct from empty so callers can reject a missing list.
func toSubmitted(items []answerItem) []domain.SubmittedAnswer {
	if items == nil {
		return nil
	}
	out := make([]domain.SubmittedAnswer, 0, len(items))
	for _, it := range items {
		ids := it.AnswerIDs
		if ids == nil {
			ids = []int64{}
		}
		out = append(out, domain.SubmittedAnswer{QuestionID: it.QuestionID, AnswerIDs: ids})
	}
	return out
}

func limitParam(c *gin.Context) (int, error) {
	raw, present := c.GetQuery("limit")
	if !present {
		return app.ClampLimit(0, false), nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validation("limit must be an integer")
	}
	return app.ClampLimit(n, true), nil
}

func quizFilter(c *gin.Context) (domain.QuizFilter, error) {
	var f domain.QuizFilter
	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ParseQuizStatus(raw)
		if !ok {
			return f, domain.Validation("unknown status %q", raw)
		}
		f.Status = status
	}
	if raw := c.Query("author_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, domain.Validation("invalid author_id")
		}
		f.AuthorID = id
	}
	return f, nil
}
