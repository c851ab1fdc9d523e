package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/catalog"
	"github.com/hongminglow/cardsavvy-be/internal/http/respond"
	"github.com/hongminglow/cardsavvy-be/internal/logger"
	"github.com/hongminglow/cardsavvy-be/internal/middleware"
)

const maxBodyBytes = 1 << 20

// Middleware wraps a handler, typically with authentication.
type Middleware func(http.HandlerFunc) http.HandlerFunc

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
}

func userID(r *http.Request) string {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	return claims.Subject
}

// writeError maps resolver errors to HTTP statuses. Unknown errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error, action string) {
	switch {
	case errors.Is(err, catalog.ErrInvalidInput), errors.Is(err, catalog.ErrNoVerifiedCards):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrCardNotFound):
		respond.Error(w, http.StatusNotFound, "card not found")
	default:
		logger.WithContext(r.Context(), log).Error(action+" failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "failed to "+action)
	}
}
