// Package quizclient is the gateway's HTTP client for the quiz service.
package quizclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
)

const maxErrorBody = 64 << 10

// Client forwards calls to the quiz service with the caller's bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) CreateQuiz(ctx context.Context, in domain.NewQuiz) (domain.Quiz, error) {
	body := map[string]any{
		"title":            in.Title,
		"description":      in.Description,
		"duration_seconds": in.DurationSeconds,
		"author_email":     in.AuthorEmail,
	}
	var quiz domain.Quiz
	err := c.do(ctx, http.MethodPost, "/api/quizzes", body, &quiz)
	return quiz, err
}

func (c *Client) ListQuizzes(ctx context.Context, filter domain.QuizFilter) ([]domain.Quiz, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.AuthorID != 0 {
		q.Set("author_id", strconv.FormatInt(filter.AuthorID, 10))
	}
	path := "/api/quizzes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var quizzes []domain.Quiz
	err := c.do(ctx, http.MethodGet, path, nil, &quizzes)
	return quizzes, err
}

// GetQuiz returns the full quiz including correct-answer flags.
func (c *Client) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/quizzes/%d/full", quizID), nil, &quiz)
	return quiz, err
}

func (c *Client) AddQuestion(ctx context.Context, quizID int64, text string, points int) (domain.Question, error) {
	body := map[string]any{"text": text, "points": points}
	var question domain.Question
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/quizzes/%d/questions", quizID), body, &question)
	return question, err
}

func (c *Client) AddAnswer(ctx context.Context, questionID int64, text string, isCorrect bool) (domain.Answer, error) {
	body := map[string]any{"text": text, "is_correct": isCorrect}
	var answer domain.Answer
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/questions/%d/answers", questionID), body, &answer)
	return answer, err
}

func (c *Client) Submit(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return c.transition(ctx, quizID, "submit", nil)
}

func (c *Client) Approve(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return c.transition(ctx, quizID, "approve", nil)
}

func (c *Client) Reject(ctx context.Context, quizID int64, reason string) (domain.Quiz, error) {
	return c.transition(ctx, quizID, "reject", map[string]string{"reason": reason})
}

func (c *Client) transition(ctx context.Context, quizID int64, action string, body any) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/quizzes/%d/%s", quizID, action), body, &quiz)
	return quiz, err
}

func (c *Client) DeleteQuiz(ctx context.Context, quizID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/quizzes/%d", quizID), nil, nil)
}

// Process asks the quiz service to grade and store one submission.
func (c *Client) Process(ctx context.Context, quizID int64, sub domain.Submission) (domain.ScoreResult, error) {
	var result domain.ScoreResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/quizzes/%d/process", quizID), sub, &result)
	return result, err
}

func (c *Client) Leaderboard(ctx context.Context, quizID int64, limit int) (domain.Leaderboard, error) {
	var board domain.Leaderboard
	path := fmt.Sprintf("/api/quizzes/%d/leaderboard?limit=%d", quizID, limit)
	err := c.do(ctx, http.MethodGet, path, nil, &board)
	return board, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return domain.Internal("could not encode request", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.Internal("could not build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := app.Bearer(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Upstream(0, "quiz service unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Upstream(resp.StatusCode, "invalid response from quiz service", err)
	}
	return nil
}

// decodeError maps the quiz service error body back to a domain error. 5xx responses and
// bodies without a known code stay upstream errors carrying the status.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Code == "" {
		return domain.Upstream(resp.StatusCode, fmt.Sprintf("quiz service returned %d", resp.StatusCode), nil)
	}
	kind := domain.KindFromCode(eb.Code)
	if resp.StatusCode >= http.StatusInternalServerError || kind == domain.KindInternal || kind == domain.KindUpstream {
		return domain.Upstream(resp.StatusCode, "quiz service error", errors.New(eb.Error))
	}
	return &domain.Error{Kind: kind, Message: eb.Error, Status: resp.StatusCode}
}
