package http

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/logger"
	"github.com/NitrousOX/DRS---projekat/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// CookieName carries the session token for browser clients.
	CookieName = "access_token"

	requestIDHeader = "X-Request-ID"
	principalKey    = "principal"
	requestIDKey    = "request_id"
)

// Authenticator turns a raw session token into a verified principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Principal, error)
}

// TokenVerifier is the signature-only check used by the quiz service.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// VerifyOnly adapts a TokenVerifier to Authenticator.
type VerifyOnly struct {
	Tokens TokenVerifier
}

func (v VerifyOnly) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	return v.Tokens.Verify(token)
}

// RequestID reuses an inbound X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs each request once it completes and records its latency.
func RequestLogger(log *zap.Logger, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(service, route, strconv.Itoa(status)).Observe(latency.Seconds())

		l := logger.WithRequestID(log, c.GetString(requestIDKey))
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}
		switch {
		case status >= 500:
			l.Error("request failed", fields...)
		case status >= 400:
			l.Info("request rejected", fields...)
		default:
			l.Debug("request", fields...)
		}
	}
}

// Recovery converts panics into an internal error response.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic serving request", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		writeError(c, domain.Internal("internal server error", nil))
	})
}

// tokenFromRequest prefers the cookie, then the Authorization header, then ?token= for websockets.
func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return strings.TrimSpace(header)
	}
	return c.Query("token")
}

// RequireAuth rejects requests without a valid session.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := auth.Authenticate(c.Request.Context(), tokenFromRequest(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRoles must run after RequireAuth.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		writeError(c, domain.Forbidden("insufficient role"))
	}
}

// RequireScope rejects tokens not minted for scope. It must run after RequireAuth.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principal(c).Scope != scope {
			writeError(c, domain.Forbidden("token is not valid for this service"))
			return
		}
		c.Next()
	}
}

// ServiceMinter issues the credentials the gateway presents to the quiz service.
type ServiceMinter interface {
	ServiceContext(ctx context.Context, p domain.Principal) (context.Context, error)
}

// ForwardAs attaches a quiz service token for the caller to the request context.
// It must run after RequireAuth.
func ForwardAs(minter ServiceMinter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := minter.ServiceContext(c.Request.Context(), principal(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func principal(c *gin.Context) domain.Principal {
	v, _ := c.Get(principalKey)
	p, _ := v.(domain.Principal)
	return p
}
