package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/infra/memory"
	"github.com/NitrousOX/DRS---projekat/internal/infra/quizclient"
	"github.com/NitrousOX/DRS---projekat/internal/infra/security"
	"github.com/NitrousOX/DRS---projekat/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminEmail    = "admin@kviz.com"
	adminPassword = "admin123"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	gateway  *httptest.Server
	quiz     *httptest.Server
	accounts *app.AccountService
	users    *memory.UserRepository
	tokens   *security.TokenManager
	mailer   *recordingMailer
}

type recordingMailer struct {
	sent chan app.Mail
}

func (m *recordingMailer) Send(_ context.Context, mail app.Mail) error {
	m.sent <- mail
	return nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(domain.Quiz, domain.Leaderboard) ([]byte, error) {
	return []byte("%PDF-1.3 test"), nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	tokens := security.NewTokenManager("test-secret", time.Hour)

	quizRepo := memory.NewQuizRepository()
	quizSvc := app.NewQuizService(quizRepo, quizRepo, logger)
	quizSrv := httptest.NewServer(NewQuizRouter(NewQuizHandler(quizSvc), VerifyOnly{Tokens: tokens}, logger))
	t.Cleanup(quizSrv.Close)

	users := memory.NewUserRepository()
	accounts := app.NewAccountService(users, security.NewBcryptHasher(4), tokens, app.AccountOptions{
		Revocations: memory.NewRevocationStore(),
		Logger:      logger,
	})
	_, _, err := accounts.EnsureAdmin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)

	client := quizclient.New(quizSrv.URL, 5*time.Second)
	cache := memory.NewQuizCache(client, time.Minute)
	pool := worker.NewPool(2, 8, 5*time.Second, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	mailer := &recordingMailer{sent: make(chan app.Mail, 8)}
	hub := NewHub(accounts, logger)
	play := app.NewGatewayService(cache, client, memory.NewAttemptStore(), pool, tokens, app.GatewayOptions{
		Broadcaster: hub,
		Mailer:      mailer,
		Reports:     fakeRenderer{},
		Logger:      logger,
	})
	router := NewGatewayRouter(GatewayConfig{
		Accounts: NewAccountHandler(accounts, false),
		Gateway:  NewGatewayHandler(client, cache, accounts, play, logger),
		Hub:      hub,
		Auth:     accounts,
		Logger:   logger,
	})
	gwSrv := httptest.NewServer(router)
	t.Cleanup(gwSrv.Close)

	return &testEnv{gateway: gwSrv, quiz: quizSrv, accounts: accounts, users: users, tokens: tokens, mailer: mailer}
}

// call sends a JSON request to the gateway and decodes the response body into out when non-nil.
func (e *testEnv) call(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	return send(t, e.gateway.URL, method, path, token, body, out)
}

// callQuiz is call against the quiz service.
func (e *testEnv) callQuiz(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	return send(t, e.quiz.URL, method, path, token, body, out)
}

func send(t *testing.T, base, method, path, token string, body any, out any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, base+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp
}

func (e *testEnv) register(t *testing.T, email, password string) {
	t.Helper()
	resp := e.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": password, "first_name": "Ana", "last_name": "Test",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	var out loginResponse
	resp := e.call(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, out.Token)
	return out.Token
}

// approvedQuiz builds a two-question quiz as admin and approves it.
// It returns the quiz id and the correct answer id per question id.
func (e *testEnv) approvedQuiz(t *testing.T, adminToken string) (int64, map[int64]int64) {
	t.Helper()
	var quiz domain.Quiz
	resp := e.call(t, http.MethodPost, "/api/quizzes", adminToken, map[string]any{"title": "Go basics"}, &quiz)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	correct := map[int64]int64{}
	for i, text := range []string{"2+2?", "3+3?"} {
		var q domain.Question
		resp = e.call(t, http.MethodPost, "/api/quizzes/"+itoa(quiz.ID)+"/questions", adminToken, map[string]any{"text": text, "points": i + 1}, &q)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var right, wrong domain.Answer
		e.call(t, http.MethodPost, "/api/questions/"+itoa(q.ID)+"/answers", adminToken, map[string]any{"text": "yes", "is_correct": true}, &right)
		e.call(t, http.MethodPost, "/api/questions/"+itoa(q.ID)+"/answers", adminToken, map[string]any{"text": "no"}, &wrong)
		correct[q.ID] = right.ID
	}
	resp = e.call(t, http.MethodPost, "/api/quizzes/"+itoa(quiz.ID)+"/submit", adminToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.call(t, http.MethodPost, "/api/quizzes/"+itoa(quiz.ID)+"/approve", adminToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return quiz.ID, correct
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
