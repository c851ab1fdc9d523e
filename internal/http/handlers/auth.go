package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/cardsavvy-be/internal/auth"
	"github.com/hongminglow/cardsavvy-be/internal/http/respond"
	"github.com/hongminglow/cardsavvy-be/internal/logger"
	"github.com/hongminglow/cardsavvy-be/internal/middleware"
	"github.com/hongminglow/cardsavvy-be/internal/models"
	"github.com/hongminglow/cardsavvy-be/internal/models/dto"
	"github.com/hongminglow/cardsavvy-be/internal/storage"
)

const minPasswordLength = 8

// AuthHandler owns register/login/me endpoints.
type AuthHandler struct {
	store  storage.UserStore
	tokens *auth.TokenManager
	log    *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(store storage.UserStore, tokens *auth.TokenManager, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{store: store, tokens: tokens, log: log}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux, requireUser Middleware) {
	mux.HandleFunc("/api/auth/register", h.handleRegister)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/me", requireUser(h.handleMe))
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := normalizeEmail(req.Email)
	if err := validateCredentials(email, req.Password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	log := logger.WithContext(r.Context(), h.log)
	if _, err := h.store.FindByEmail(r.Context(), email); err == nil {
		respond.Error(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		log.Error("lookup user failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error("hash password failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	created, err := h.store.CreateUser(r.Context(), models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusConflict, "email already registered")
		default:
			log.Error("create user failed", zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	h.writeToken(w, r, http.StatusCreated, "user created successfully", created)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.store.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		logger.WithContext(r.Context(), h.log).Error("fetch user failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		respond.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.writeToken(w, r, http.StatusOK, "login successful", user)
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	respond.JSON(w, http.StatusOK, "ok", dto.UserView{ID: claims.Subject, Email: claims.Email})
}

func (h *AuthHandler) writeToken(w http.ResponseWriter, r *http.Request, status int, message string, user models.User) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		logger.WithContext(r.Context(), h.log).Error("issue token failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respond.JSON(w, status, message, dto.AuthResponse{
		Token: token,
		User:  dto.UserView{ID: user.ID, Email: user.Email},
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return errors.New("email is invalid")
	}
	if !utf8.ValidString(password) || utf8.RuneCountInString(password) < minPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
