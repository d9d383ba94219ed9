package repository

import (
	"context"
	"time"

	"github.com/loandesk/loandesk/internal/models"
)

// UserStore is the persistence boundary for user records.
type UserStore interface {
	// GetByEmail returns (nil, nil) when no user exists for the email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Create fails with apperr.ErrEmailTaken if the email is registered.
	Create(ctx context.Context, user *models.User) error
	// UpdatePassword fails with apperr.ErrUserNotFound for unknown emails.
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}

// LoanStore reads the loans attached to a user's profile.
type LoanStore interface {
	ListByUserEmail(ctx context.Context, email string) ([]models.Loan, error)
	Create(ctx context.Context, loan *models.Loan) error
}

// SessionStore owns the refresh-token mapping and the access-token
// blacklist. Implementations must serialize mutations per user:
// RotateRefreshToken is a compare-and-swap on the stored value, and a
// lost race surfaces as apperr.ErrInvalidRefreshToken, never as
// corrupted state.
type SessionStore interface {
	// PutRefreshToken overwrites the user's current session record,
	// invalidating any previously issued refresh token.
	PutRefreshToken(ctx context.Context, data models.RefreshTokenData) error
	// RotateRefreshToken atomically replaces oldToken with newToken and
	// returns the new record. Fails with apperr.ErrInvalidRefreshToken
	// if oldToken is not the user's current token.
	RotateRefreshToken(ctx context.Context, oldToken, newToken string, expiresAt time.Time) (*models.RefreshTokenData, error)
	// DeleteRefreshToken removes the session owning the token. Unknown
	// tokens are a no-op.
	DeleteRefreshToken(ctx context.Context, token string) error

	// BlacklistAccessToken revokes an access token until its natural
	// expiry; entries are evicted at expiresAt.
	BlacklistAccessToken(ctx context.Context, token string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}
