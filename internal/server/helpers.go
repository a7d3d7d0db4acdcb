package server

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"quill/internal/middleware"
	"quill/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is the single place where errors returned by handlers become
// HTTP responses. AppError codes map to their status; *fiber.Error keeps its
// status; anything else is an internal error whose detail is only exposed when
// exposeDetail is set (development).
func ErrorHandler(exposeDetail bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *models.AppError
		var fiberErr *fiber.Error

		switch {
		case errors.As(err, &appErr):
			status := appErr.Status()
			body := models.ErrorResponse{
				Error:  appErr.Message,
				Code:   appErr.Code,
				Fields: appErr.Fields,
			}
			if status >= fiber.StatusInternalServerError {
				middleware.Logger.ErrorContext(c.UserContext(), "internal error", "error", err.Error())
				body.Error = "Internal server error"
				body.Code = models.CodeInternal
				if exposeDetail {
					body.Stack = err.Error()
				}
			}
			return c.Status(status).JSON(body)

		case errors.As(err, &fiberErr):
			return c.Status(fiberErr.Code).JSON(models.ErrorResponse{
				Error: fiberErr.Message,
				Code:  codeForStatus(fiberErr.Code),
			})

		default:
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			body := models.ErrorResponse{
				Error: "Internal server error",
				Code:  models.CodeInternal,
			}
			if exposeDetail {
				body.Stack = err.Error()
			}
			return c.Status(fiber.StatusInternalServerError).JSON(body)
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return models.CodeValidation
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusForbidden:
		return models.CodeForbidden
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusConflict:
		return models.CodeConflict
	}
	if status >= fiber.StatusInternalServerError {
		return models.CodeInternal
	}
	return ""
}

// parseID extracts a route parameter by name as a positive uint.
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "postId" -> "Invalid post ID").
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewValidationError("Invalid " + humanizeParam(param))
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID", "authorId" -> "author ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	// Split on camelCase boundary before the trailing "Id" suffix.
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID returns the authenticated caller, or 0 for anonymous requests.
func currentUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}

// requireUserID returns the caller set by AuthRequired.
func requireUserID(c *fiber.Ctx) (uint, error) {
	uid := currentUserID(c)
	if uid == 0 {
		return 0, models.NewUnauthorizedError("Authorization required")
	}
	return uid, nil
}

// parseBody decodes a JSON request body into dest.
func parseBody(c *fiber.Ctx, dest interface{}) error {
	if err := c.BodyParser(dest); err != nil {
		return models.NewValidationError("Invalid request body")
	}
	return nil
}

// queryAlias returns the first non-empty query value among names, so that
// both camelCase and snake_case spellings are accepted.
func queryAlias(c *fiber.Ctx, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.Query(name)); v != "" {
			return v
		}
	}
	return ""
}

// positiveQueryInt parses a positive integer query value. Missing, malformed or
// non-positive values yield 0 so the caller's default applies.
func positiveQueryInt(c *fiber.Ctx, names ...string) int {
	v, err := strconv.Atoi(queryAlias(c, names...))
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// optionalQueryID parses an optional id filter; malformed values are rejected.
func optionalQueryID(c *fiber.Ctx, field string, names ...string) (uint, error) {
	raw := queryAlias(c, names...)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, models.NewFieldValidationError(map[string]string{field: "must be a positive integer"})
	}
	return uint(id), nil
}

// splitList splits a comma-separated query value, dropping empty entries.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
