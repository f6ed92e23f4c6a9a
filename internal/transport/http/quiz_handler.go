package http

import (
	"context"
	"net/http"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/gin-gonic/gin"
)

// QuizHandler is the quiz service API. Callers are authenticated by the shared token secret.
type QuizHandler struct {
	quizzes *app.QuizService
}

func NewQuizHandler(quizzes *app.QuizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

func (h *QuizHandler) Create(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	quiz, err := h.quizzes.CreateQuiz(c.Request.Context(), domain.NewQuiz{
		Title:           req.Title,
		Description:     req.Description,
		DurationSeconds: req.DurationSeconds,
		AuthorID:        principal(c).UserID,
		AuthorEmail:     req.AuthorEmail,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quiz)
}

func (h *QuizHandler) List(c *gin.Context) {
	filter, err := quizFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	quizzes, err := h.quizzes.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *QuizHandler) Full(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	quiz, err := h.quizzes.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *QuizHandler) AddQuestion(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	question, err := h.quizzes.AddQuestion(c.Request.Context(), id, req.Text, req.Points)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (h *QuizHandler) AddAnswer(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	answer, err := h.quizzes.AddAnswer(c.Request.Context(), id, req.Text, req.IsCorrect)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

func (h *QuizHandler) Submit(c *gin.Context) {
	h.transition(c, h.quizzes.Submit)
}

func (h *QuizHandler) Approve(c *gin.Context) {
	h.transition(c, h.quizzes.Approve)
}

func (h *QuizHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	h.transition(c, func(ctx context.Context, id int64) (domain.Quiz, error) {
		return h.quizzes.Reject(ctx, id, req.Reason)
	})
}

func (h *QuizHandler) transition(c *gin.Context, apply func(ctx context.Context, id int64) (domain.Quiz, error)) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	quiz, err := apply(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *QuizHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.quizzes.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Process grades one submission for the calling user and stores the result.
func (h *QuizHandler) Process(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	p := principal(c)
	result, err := h.quizzes.Grade(c.Request.Context(), id, domain.Submission{
		UserID:           p.UserID,
		UserEmail:        p.Email,
		TimeSpentSeconds: *req.TimeSpentSeconds,
		Answers:          toSubmitted(req.Answers),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *QuizHandler) Leaderboard(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := limitParam(c)
	if err != nil {
		writeError(c, err)
		return
	}
	board, err := h.quizzes.Leaderboard(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
