package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/app"
	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/gin-gonic/gin"
)

const maxAvatarBytes = 5 << 20

// AccountHandler serves registration, sessions, profiles and user administration.
type AccountHandler struct {
	accounts     *app.AccountService
	cookieSecure bool
}

func NewAccountHandler(accounts *app.AccountService, cookieSecure bool) *AccountHandler {
	return &AccountHandler{accounts: accounts, cookieSecure: cookieSecure}
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	BirthDate    string `json:"birth_date"`
	Gender       string `json:"gender"`
	Country      string `json:"country"`
	Street       string `json:"street"`
	StreetNumber string `json:"street_number"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

type roleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	reg := domain.Registration{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Gender:       req.Gender,
		Country:      req.Country,
		Street:       req.Street,
		StreetNumber: req.StreetNumber,
	}
	if req.BirthDate != "" {
		birth, err := time.Parse(time.DateOnly, req.BirthDate)
		if err != nil {
			writeError(c, domain.Validation("birth_date must be YYYY-MM-DD"))
			return
		}
		reg.BirthDate = &birth
	}
	user, err := h.accounts.Register(c.Request.Context(), reg)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	session, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, session.Token, maxAge, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, loginResponse{
		Token:     session.Token,
		Role:      session.User.Role,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

// Logout always succeeds; the cookie is cleared even when no session was presented.
func (h *AccountHandler) Logout(c *gin.Context) {
	if p, err := h.accounts.Authenticate(c.Request.Context(), tokenFromRequest(c)); err == nil {
		h.accounts.Logout(c.Request.Context(), p)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AccountHandler) Profile(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context(), principal(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.accounts.UpdateProfile(c.Request.Context(), principal(c).UserID, fields)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) DeleteProfile(c *gin.Context) {
	if err := h.accounts.DeleteAccount(c.Request.Context(), principal(c).UserID); err != nil {
		writeError(c, err)
		return
	}
	c.SetCookie(CookieName, "", -1, "/", "", h.cookieSecure, true)
	c.Status(http.StatusNoContent)
}

func (h *AccountHandler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes+(1<<20))
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, domain.Validation("image must be at most 5 MiB"))
			return
		}
		writeError(c, domain.Validation("multipart field image is required"))
		return
	}
	defer file.Close()
	if header.Size > maxAvatarBytes {
		writeError(c, domain.Validation("image must be at most 5 MiB"))
		return
	}
	user, err := h.accounts.SetAvatar(c.Request.Context(), principal(c).UserID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) ListUsers(c *gin.Context) {
	users, err := h.accounts.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AccountHandler) ChangeRole(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	user, err := h.accounts.ChangeRole(c.Request.Context(), principal(c), id, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) DeleteUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.accounts.DeleteUser(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
