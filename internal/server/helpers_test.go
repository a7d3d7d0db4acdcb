package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"postId", "post ID"},
		{"commentId", "comment ID"},
		{"authorId", "author ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"go", "web"}, splitList(" go, ,web ,"))
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{"validation", models.NewFieldValidationError(map[string]string{"title": "is required"}), 400, models.CodeValidation, "Validation failed"},
		{"unauthorized", models.NewUnauthorizedError("Invalid credentials"), 401, models.CodeUnauthorized, "Invalid credentials"},
		{"forbidden", models.NewForbiddenError("You can only update your own posts"), 403, models.CodeForbidden, "You can only update your own posts"},
		{"not found", models.NewNotFoundError("Post", 7), 404, models.CodeNotFound, "Post with ID 7 not found"},
		{"conflict", models.NewConflictError("Email already registered"), 409, models.CodeConflict, "Email already registered"},
		{"wrapped app error", errors.Join(errors.New("context"), models.NewNotFoundError("Comment", 3)), 404, models.CodeNotFound, "Comment with ID 3 not found"},
		{"fiber error", fiber.NewError(fiber.StatusRequestEntityTooLarge, "Request Entity Too Large"), 413, "", "Request Entity Too Large"},
		{"unknown", errors.New("boom"), 500, models.CodeInternal, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false)})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			body := decode[models.ErrorResponse](t, resp)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Empty(t, body.Stack)
		})
	}
}

func TestErrorHandlerExposesDetailInDevelopment(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(true)})
	app.Get("/", func(c *fiber.Ctx) error { return errors.New("db exploded") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "db exploded", decode[models.ErrorResponse](t, resp).Stack)
}

func TestParseID(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false)})
	app.Get("/posts/:postId", func(c *fiber.Ctx) error {
		id, err := parseID(c, "postId")
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for path, status := range map[string]int{
		"/posts/12":  fiber.StatusOK,
		"/posts/0":   fiber.StatusBadRequest,
		"/posts/-1":  fiber.StatusBadRequest,
		"/posts/abc": fiber.StatusBadRequest,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}
