package http

import (
	"net/http"
	"strconv"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func statusFor(e *domain.Error) int {
	switch e.Kind {
	case domain.KindValidation, domain.KindState:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindLocked, domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUpstream:
		if e.Status >= http.StatusBadRequest {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError aborts the request with the taxonomy body. Messages are the stable text of
// the domain error; wrapped causes go to the request logger via c.Error only.
func writeError(c *gin.Context, err error) {
	e := domain.AsError(err)
	_ = c.Error(err)

	resp := errorResponse{Error: e.Message, Code: e.Kind.Code()}
	switch e.Kind {
	case domain.KindLocked:
		resp.RetryAfterSeconds = e.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	c.AbortWithStatusJSON(statusFor(e), resp)
}

func bindError(c *gin.Context, err error) {
	writeError(c, domain.Validation("invalid request body: %v", validationMessage(err)))
}
