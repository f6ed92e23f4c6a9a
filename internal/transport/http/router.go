package http

import (
	"net/http"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// GatewayConfig collects the gateway router's collaborators.
type GatewayConfig struct {
	Accounts       *AccountHandler
	Gateway        *GatewayHandler
	Hub            *Hub
	Auth           Authenticator
	Logger         *zap.Logger
	AllowedOrigins []string
	// UploadDir is served under /uploads when avatars are stored locally.
	UploadDir string
}

func baseEngine(logger *zap.Logger, service string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger, service), Recovery(logger))
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// NewGatewayRouter wires the public API: accounts, quiz proxy, play and realtime.
func NewGatewayRouter(cfg GatewayConfig) *gin.Engine {
	r := baseEngine(cfg.Logger, "gateway")
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders:    []string{"Retry-After", requestIDHeader, "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.UploadDir != "" {
		r.Static("/uploads", cfg.UploadDir)
	}

	r.GET("/ws", cfg.Hub.ServeWS)

	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", cfg.Accounts.Register)
	auth.POST("/login", cfg.Accounts.Login)
	auth.POST("/logout", cfg.Accounts.Logout)

	authed := api.Group("", RequireAuth(cfg.Auth), ForwardAs(cfg.Gateway.play))

	users := authed.Group("/users/profile")
	users.GET("", cfg.Accounts.Profile)
	users.PATCH("", cfg.Accounts.UpdateProfile)
	users.DELETE("", cfg.Accounts.DeleteProfile)
	users.POST("/avatar", cfg.Accounts.UploadAvatar)

	admin := authed.Group("/admin", RequireRoles(domain.RoleAdmin))
	admin.GET("/users", cfg.Accounts.ListUsers)
	admin.PATCH("/users/:id/role", cfg.Accounts.ChangeRole)
	admin.DELETE("/users/:id", cfg.Accounts.DeleteUser)

	authors := RequireRoles(domain.RoleModerator, domain.RoleAdmin)
	admins := RequireRoles(domain.RoleAdmin)

	quizzes := authed.Group("/quizzes")
	quizzes.GET("", cfg.Gateway.ListQuizzes)
	quizzes.GET("/:id", cfg.Gateway.GetQuiz)
	quizzes.GET("/:id/leaderboard", cfg.Gateway.Leaderboard)
	quizzes.POST("/:id/start", cfg.Gateway.StartAttempt)
	quizzes.POST("", authors, cfg.Gateway.CreateQuiz)
	quizzes.POST("/:id/questions", authors, cfg.Gateway.AddQuestion)
	quizzes.POST("/:id/submit", authors, cfg.Gateway.SubmitQuiz)
	quizzes.POST("/:id/approve", admins, cfg.Gateway.ApproveQuiz)
	quizzes.POST("/:id/reject", admins, cfg.Gateway.RejectQuiz)
	quizzes.DELETE("/:id", admins, cfg.Gateway.DeleteQuiz)
	quizzes.GET("/:id/report.pdf", admins, cfg.Gateway.ReportPDF)
	quizzes.POST("/:id/report/send", admins, cfg.Gateway.SendReport)

	authed.POST("/questions/:id/answers", authors, cfg.Gateway.AddAnswer)
	authed.POST("/attempts/:id/answers", cfg.Gateway.SubmitAnswers)
	authed.GET("/attempts/:id/result", cfg.Gateway.AttemptResult)

	return r
}

// NewQuizRouter wires the quiz service API. Every route requires a token the gateway
// minted for the quiz service; browser session tokens are refused.
func NewQuizRouter(h *QuizHandler, auth Authenticator, logger *zap.Logger) *gin.Engine {
	r := baseEngine(logger, "quiz")

	authors := RequireRoles(domain.RoleModerator, domain.RoleAdmin)
	admins := RequireRoles(domain.RoleAdmin)

	api := r.Group("/api", RequireAuth(auth), RequireScope(domain.ScopeQuizService))
	api.GET("/quizzes", h.List)
	api.POST("/quizzes", authors, h.Create)
	api.GET("/quizzes/:id/full", h.Full)
	api.POST("/quizzes/:id/questions", authors, h.AddQuestion)
	api.POST("/quizzes/:id/submit", authors, h.Submit)
	api.POST("/quizzes/:id/approve", admins, h.Approve)
	api.POST("/quizzes/:id/reject", admins, h.Reject)
	api.DELETE("/quizzes/:id", admins, h.Delete)
	api.POST("/quizzes/:id/process", h.Process)
	api.GET("/quizzes/:id/leaderboard", h.Leaderboard)
	api.POST("/questions/:id/answers", authors, h.AddAnswer)
	return r
}
