package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskmanager/internal/model"
	"taskmanager/pkg/util"

	"github.com/gin-gonic/gin"
)

func TestWriteErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", model.NewValidationError("title", "Please add a task title"), http.StatusBadRequest},
		{"invalid id", fmt.Errorf("parse: %w", util.ErrInvalidID), http.StatusBadRequest},
		{"unauthenticated", model.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", model.ErrForbidden, http.StatusForbidden},
		{"wrapped not found", fmt.Errorf("task x: %w", model.ErrNotFound), http.StatusNotFound},
		{"conflict", model.ErrConflict, http.StatusConflict},
		{"provider", fmt.Errorf("set claim: %w", model.ErrProvider), http.StatusBadGateway},
		{"partial write", &model.PartialWriteError{UID: "u1", ClaimRole: model.RoleAdmin, Err: errors.New("timeout")}, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			writeError(c, tt.err, "Task")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestPartialWriteIsNotMistakenForProviderError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeError(c, &model.PartialWriteError{UID: "u1", ClaimRole: model.RoleAdmin, Err: model.ErrProvider}, "User")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if len(c.Errors) != 1 {
		t.Errorf("error not attached to context")
	}
}
