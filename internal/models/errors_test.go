package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorStatus(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewValidationError("bad"), http.StatusBadRequest},
		{NewFieldValidationError(map[string]string{"title": "required"}), http.StatusBadRequest},
		{NewUnauthorizedError("no"), http.StatusUnauthorized},
		{NewForbiddenError("not yours"), http.StatusForbidden},
		{NewNotFoundError("Post", 7), http.StatusNotFound},
		{NewConflictError("dup"), http.StatusConflict},
		{NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{&AppError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Status())
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	root := errors.New("connection reset")
	wrapped := fmt.Errorf("list posts: %w", NewInternalError(root))

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.ErrorIs(t, wrapped, root)
	assert.Equal(t, "Post with ID 7 not found", NewNotFoundError("Post", 7).Error())
}
