package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// QuizAPI is the quiz service as seen from the gateway.
type QuizAPI interface {
	CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error)
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	AddQuestion(ctx context.Context, quizID int64, text string, points int) (domain.Question, error)
	AddAnswer(ctx context.Context, questionID int64, text string, isCorrect bool) (domain.Answer, error)
	Submit(ctx context.Context, quizID int64) (domain.Quiz, error)
	Approve(ctx context.Context, quizID int64) (domain.Quiz, error)
	Reject(ctx context.Context, quizID int64, reason string) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID int64) error
	Leaderboard(ctx context.Context, quizID int64, limit int) (domain.Leaderboard, error)
}

// QuizCache drops a cached quiz after it is deleted.
type QuizCache interface {
	app.QuizReader
	Forget(ctx context.Context, quizID int64) error
}

// GatewayHandler authorizes by role and forwards quiz calls as the caller.
type GatewayHandler struct {
	api      QuizAPI
	cache    QuizCache
	accounts *app.AccountService
	play     *app.GatewayService
	logger   *zap.Logger
}

func NewGatewayHandler(api QuizAPI, cache QuizCache, accounts *app.AccountService, play *app.GatewayService, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{api: api, cache: cache, accounts: accounts, play: play, logger: logger}
}

// forwardCtx carries the quiz service token set by ForwardAs.
func forwardCtx(c *gin.Context) context.Context {
	return c.Request.Context()
}

// ListQuizzes shows players only APPROVED quizzes, without answers.
func (h *GatewayHandler) ListQuizzes(c *gin.Context) {
	p := principal(c)
	filter, err := quizFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if !p.Role.CanAuthor() {
		filter = domain.QuizFilter{Status: domain.StatusApproved}
	}
	quizzes, err := h.api.ListQuizzes(forwardCtx(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if p.Role.CanAuthor() {
		c.JSON(http.StatusOK, quizzes)
		return
	}
	views := make([]domain.PublicQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		views = append(views, q.Public())
	}
	c.JSON(http.StatusOK, views)
}

// GetQuiz returns the full quiz to authors and the player view of APPROVED quizzes to players.
func (h *GatewayHandler) GetQuiz(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if principal(c).Role.CanAuthor() {
		quiz, err := h.api.GetQuiz(forwardCtx(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, quiz)
		return
	}
	quiz, err := h.cache.GetQuiz(forwardCtx(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if quiz.Status != domain.StatusApproved {
		writeError(c, domain.NotFound("quiz"))
		return
	}
	c.JSON(http.StatusOK, quiz.Public())
}

func (h *GatewayHandler) CreateQuiz(c *gin.Context) {
	var req createQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	p := principal(c)
	author, err := h.accounts.Profile(c.Request.Context(), p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	quiz, err := h.api.CreateQuiz(forwardCtx(c), domain.NewQuiz{
		Title:           req.Title,
		Description:     req.Description,
		DurationSeconds: req.DurationSeconds,
		AuthorID:        p.UserID,
		AuthorEmail:     author.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quiz)
}

func (h *GatewayHandler) AddQuestion(c *gin.Context) {
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
	question, err := h.api.AddQuestion(forwardCtx(c), id, req.Text, req.Points)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (h *GatewayHandler) AddAnswer(c *gin.Context) {
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
	answer, err := h.api.AddAnswer(forwardCtx(c), id, req.Text, req.IsCorrect)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

// SubmitQuiz forwards the submit and tells admins when the quiz entered review.
func (h *GatewayHandler) SubmitQuiz(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	quiz, err := h.api.Submit(forwardCtx(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if quiz.Status == domain.StatusPending {
		h.play.AnnouncePending(c.Request.Context(), quiz)
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *GatewayHandler) ApproveQuiz(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	quiz, err := h.api.Approve(forwardCtx(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *GatewayHandler) RejectQuiz(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	quiz, err := h.api.Reject(forwardCtx(c), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *GatewayHandler) DeleteQuiz(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.api.DeleteQuiz(forwardCtx(c), id); err != nil {
		writeError(c, err)
		return
	}
	if err := h.cache.Forget(c.Request.Context(), id); err != nil {
		h.logger.Warn("quiz cache eviction failed", zap.Int64("quiz_id", id), zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// Leaderboard hides quizzes that are not APPROVED from players.
func (h *GatewayHandler) Leaderboard(c *gin.Context) {
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
	if !principal(c).Role.CanAuthor() {
		quiz, err := h.cache.GetQuiz(forwardCtx(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		if quiz.Status != domain.StatusApproved {
			writeError(c, domain.NotFound("quiz"))
			return
		}
	}
	board, err := h.api.Leaderboard(forwardCtx(c), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *GatewayHandler) StartAttempt(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	user, err := h.accounts.Profile(c.Request.Context(), principal(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	started, err := h.play.Start(forwardCtx(c), user, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, started)
}

// SubmitAnswers consumes the attempt and answers 202 while grading runs in the background.
func (h *GatewayHandler) SubmitAnswers(c *gin.Context) {
	var req answersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	outcome, err := h.play.SubmitAnswers(c.Request.Context(), principal(c), c.Param("id"), toSubmitted(req.Answers))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, outcome)
}

func (h *GatewayHandler) AttemptResult(c *gin.Context) {
	outcome, err := h.play.Outcome(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *GatewayHandler) ReportPDF(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	doc, _, err := h.play.ReportPDF(forwardCtx(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz_%d_report.pdf"`, id))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (h *GatewayHandler) SendReport(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	admin, err := h.accounts.Profile(c.Request.Context(), principal(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.play.SendReport(forwardCtx(c), admin, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "report will be sent to " + admin.Email})
}
