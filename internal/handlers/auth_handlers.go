package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loandesk/loandesk/internal/apperr"
	"github.com/loandesk/loandesk/internal/config"
	"github.com/loandesk/loandesk/internal/middleware"
	"github.com/loandesk/loandesk/internal/models"
	"github.com/loandesk/loandesk/internal/repository"
	"github.com/loandesk/loandesk/internal/service"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandlers struct {
	tokenService *service.TokenService
	sessions     repository.SessionStore
	userRepo     repository.UserStore
	loanRepo     repository.LoanStore
	authCfg      *config.AuthConfig
	logger       *logrus.Logger
}

func NewAuthHandlers(
	tokenService *service.TokenService,
	sessions repository.SessionStore,
	userRepo repository.UserStore,
	loanRepo repository.LoanStore,
	authCfg *config.AuthConfig,
	logger *logrus.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		tokenService: tokenService,
		sessions:     sessions,
		userRepo:     userRepo,
		loanRepo:     loanRepo,
		authCfg:      authCfg,
		logger:       logger,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	ID        string        `json:"id"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	CreatedAt time.Time     `json:"createdAt"`
	Loans     []models.Loan `json:"loans"`
}

type MeResponse struct {
	User UserResponse `json:"user"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		h.respondWithError(w, http.StatusBadRequest, "MISSING_CREDENTIALS", "Email and password are required")
		return
	}

	user, err := h.userRepo.GetByEmail(r.Context(), email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up user")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	// Same error for unknown email and wrong password: no user
	// enumeration through the login endpoint.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.respondWithError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}

	h.issueSession(w, r, user, http.StatusOK)
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		h.respondWithError(w, http.StatusBadRequest, "MISSING_CREDENTIALS", "Email and password are required")
		return
	}

	if !isValidEmail(email) {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email format")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.authCfg.BcryptCost)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: string(hash),
	}

	if err := h.userRepo.Create(r.Context(), user); err != nil {
		if errors.Is(err, apperr.ErrEmailTaken) {
			h.respondWithError(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
			return
		}
		h.logger.WithError(err).Error("Failed to create user")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	// A freshly registered user gets the same session shape as a login:
	// matching access token and refresh cookie.
	h.issueSession(w, r, user, http.StatusCreated)
}

func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.authCfg.CookieName)
	if err != nil || cookie.Value == "" {
		h.respondWithError(w, http.StatusUnauthorized, "NO_REFRESH_TOKEN", "No refresh token provided")
		return
	}

	newToken, expiresAt, err := h.tokenService.NewRefreshToken()
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate refresh token")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	record, err := h.sessions.RotateRefreshToken(r.Context(), cookie.Value, newToken, expiresAt)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidRefreshToken) {
			h.respondWithError(w, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid refresh token")
			return
		}
		h.logger.WithError(err).Error("Failed to rotate refresh token")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	accessToken, _, err := h.tokenService.GenerateAccessToken(record.UserID, record.Email)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	h.setRefreshCookie(w, record.Token)
	h.respondWithJSON(w, http.StatusOK, AccessTokenResponse{AccessToken: accessToken})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	// Best effort on both credentials; logout succeeds no matter what
	// the caller still holds.
	if token := bearerToken(r); token != "" {
		if claims, err := h.tokenService.VerifyAccessToken(token); err == nil && claims.ExpiresAt != nil {
			expiresAt := claims.ExpiresAt.Time
			if err := h.sessions.BlacklistAccessToken(r.Context(), token, expiresAt); err != nil {
				h.logger.WithError(err).Error("Failed to blacklist access token")
			}
		}
	}

	if cookie, err := r.Cookie(h.authCfg.CookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.DeleteRefreshToken(r.Context(), cookie.Value); err != nil {
			h.logger.WithError(err).Error("Failed to delete refresh token")
		}
		h.clearRefreshCookie(w)
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	user, err := h.userRepo.GetByEmail(r.Context(), email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up user")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	if user == nil {
		h.respondWithError(w, http.StatusNotFound, "EMAIL_NOT_FOUND", "Email not found")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{
		Message: "Email confirmed. You may now reset your password",
	})
}

func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.NewPassword == "" {
		h.respondWithError(w, http.StatusBadRequest, "MISSING_CREDENTIALS", "Email and new password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.authCfg.BcryptCost)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	if err := h.userRepo.UpdatePassword(r.Context(), email, string(hash)); err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			h.respondWithError(w, http.StatusNotFound, "EMAIL_NOT_FOUND", "Email not found")
			return
		}
		h.logger.WithError(err).Error("Failed to update password")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset successfully"})
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}

	user, err := h.userRepo.GetByEmail(r.Context(), claims.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to look up user")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	if user == nil {
		h.respondWithError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
		return
	}

	loans, err := h.loanRepo.ListByUserEmail(r.Context(), user.Email)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list loans")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MeResponse{
		User: UserResponse{
			ID:        user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
			Loans:     loans,
		},
	})
}

// issueSession mints the access token, overwrites the user's refresh
// token and sets the cookie. Any previously issued refresh token for
// the user stops matching immediately.
func (h *AuthHandlers) issueSession(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	accessToken, _, err := h.tokenService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	refreshToken, expiresAt, err := h.tokenService.NewRefreshToken()
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate refresh token")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	err = h.sessions.PutRefreshToken(r.Context(), models.RefreshTokenData{
		Token:     refreshToken,
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to store refresh token")
		h.respondWithError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	h.setRefreshCookie(w, refreshToken)
	h.respondWithJSON(w, status, AccessTokenResponse{AccessToken: accessToken})
}

func (h *AuthHandlers) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.authCfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenService.RefreshExpiry().Seconds()),
		HttpOnly: true,
		Secure:   h.authCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.authCfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.authCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *AuthHandlers) respondWithError(w http.ResponseWriter, status int, code, message string) {
	h.respondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
