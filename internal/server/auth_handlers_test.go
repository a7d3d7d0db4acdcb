package server

import (
	"net/http"
	"testing"

	"quill/internal/models"
	"quill/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestServer(t)

	register := map[string]string{
		"username": "new_user",
		"email":    "New.User@Example.com",
		"password": "secret123",
	}

	resp := env.do(t, http.MethodPost, "/api/auth/register", register, "")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	created := decode[service.AuthResult](t, resp)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "new.user@example.com", created.User.Email)

	t.Run("duplicate", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/register", register, "")
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Equal(t, models.CodeConflict, decode[models.ErrorResponse](t, resp).Code)
	})

	t.Run("invalid fields", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
			"username": "x",
			"email":    "nope",
			"password": "short",
		}, "")
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		body := decode[models.ErrorResponse](t, resp)
		assert.Contains(t, body.Fields, "username")
		assert.Contains(t, body.Fields, "email")
		assert.Contains(t, body.Fields, "password")
	})

	t.Run("login", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "new.user@example.com", "password": "secret123",
		}, "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		result := decode[service.AuthResult](t, resp)
		assert.NotEmpty(t, result.Token)
		assert.NotNil(t, result.User.LastLogin)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "new.user@example.com", "password": "wrong-pass1",
		}, "")
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown email", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
			"email": "ghost@example.com", "password": "secret123",
		}, "")
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("profile", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/auth/profile", nil, "")
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		resp = env.do(t, http.MethodGet, "/api/auth/profile", nil, created.Token)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "new_user", decode[models.User](t, resp).Username)

		resp = env.do(t, http.MethodPut, "/api/auth/profile", map[string]string{"bio": "Writes about Go"}, created.Token)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		updated := decode[models.User](t, resp)
		assert.Equal(t, "Writes about Go", updated.Bio)
		assert.Equal(t, "new_user", updated.Username)

		resp = env.do(t, http.MethodPut, "/api/auth/profile", map[string]string{"avatar_url": "not a url"}, created.Token)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthRejectsForeignTokens(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Malformed Token", token: "malformed.token.here"},
		{name: "Garbage", token: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/api/auth/profile", nil, tt.token)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, models.CodeUnauthorized, decode[models.ErrorResponse](t, resp).Code)
		})
	}
}
