package models

import "time"

// RefreshTokenData is the per-user session record held in the session
// store. At most one live refresh token exists per user; issuing a new
// one overwrites the previous record.
type RefreshTokenData struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
