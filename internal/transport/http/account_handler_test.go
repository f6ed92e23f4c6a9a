package http

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterConflictAndValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com", "pass123")

	var body errorResponse
	resp := env.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "A@B.com", "password": "pass123", "first_name": "A", "last_name": "B",
	}, &body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", body.Code)

	resp = env.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "c@d.com", "password": "123", "first_name": "A", "last_name": "B",
	}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)

	var user domain.User
	resp = env.call(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "e@f.com", "password": "pass123", "first_name": "A", "last_name": "B", "role": "ADMIN",
	}, &user)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, domain.RolePlayer, user.Role, "client supplied role is ignored")
}

func TestLoginLockoutOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com", "pass123")

	var body errorResponse
	for i := 0; i < 3; i++ {
		resp := env.call(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "a@b.com", Password: "wrong"}, &body)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid credentials", body.Error)
	}

	resp := env.call(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "a@b.com", Password: "pass123"}, &body)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ACCOUNT_LOCKED", body.Code)
	assert.Positive(t, body.RetryAfterSeconds)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	resp = env.call(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "nobody@b.com", Password: "x"}, &body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid credentials", body.Error, "unknown accounts look like wrong passwords")
}

func TestLoginSetsCookieAndLogoutRevokes(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com", "pass123")

	var out loginResponse
	resp := env.call(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "a@b.com", Password: "pass123"}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, out.Token, cookie.Value)

	req, _ := http.NewRequest(http.MethodGet, env.gateway.URL+"/api/users/profile", nil)
	req.AddCookie(cookie)
	cookieResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	cookieResp.Body.Close()
	assert.Equal(t, http.StatusOK, cookieResp.StatusCode, "cookie transport is accepted")

	resp = env.call(t, http.MethodPost, "/api/auth/logout", out.Token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.call(t, http.MethodGet, "/api/users/profile", out.Token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfileAllowList(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com", "pass123")
	token := env.login(t, "a@b.com", "pass123")

	var user domain.User
	resp := env.call(t, http.MethodPatch, "/api/users/profile", token, map[string]any{"country": "Serbia", "birth_date": "1990-05-01"}, &user)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Serbia", user.Country)
	require.NotNil(t, user.BirthDate)

	var body errorResponse
	resp = env.call(t, http.MethodPatch, "/api/users/profile", token, map[string]any{"role": "ADMIN"}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

func TestAvatarUploadRequiresStore(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@b.com", "pass123")
	token := env.login(t, "a@b.com", "pass123")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "me.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png"))
	require.NoError(t, w.Close())

	req, _ := http.NewRequest(http.MethodPost, env.gateway.URL+"/api/users/profile/avatar", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, "no avatar store is configured in this env")

	req, _ = http.NewRequest(http.MethodPost, env.gateway.URL+"/api/users/profile/avatar", bytes.NewReader(nil))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, adminEmail, adminPassword)
	env.register(t, "mod@kviz.com", "pass123")

	var users []domain.User
	resp := env.call(t, http.MethodGet, "/api/admin/users", adminToken, nil, &users)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, users, 2)

	var target domain.User
	for _, u := range users {
		if u.Email == "mod@kviz.com" {
			target = u
		}
	}
	var updated domain.User
	resp = env.call(t, http.MethodPatch, "/api/admin/users/"+itoa(target.ID)+"/role", adminToken, map[string]string{"role": "MODERATOR"}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.RoleModerator, updated.Role)

	modToken := env.login(t, "mod@kviz.com", "pass123")
	resp = env.call(t, http.MethodPost, "/api/quizzes", modToken, map[string]any{"title": "By mod"}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = env.call(t, http.MethodGet, "/api/admin/users", modToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var self []domain.User
	env.call(t, http.MethodGet, "/api/admin/users", adminToken, nil, &self)
	var adminID int64
	for _, u := range self {
		if u.Email == adminEmail {
			adminID = u.ID
		}
	}
	resp = env.call(t, http.MethodDelete, "/api/admin/users/"+itoa(adminID), adminToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.call(t, http.MethodDelete, "/api/admin/users/"+itoa(target.ID), adminToken, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
