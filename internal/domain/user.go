// Package domain defines the records the blog service stores and serves.
package domain

import (
	"slices"
	"time"
)

// User is a registered identity. RefreshTokens holds the refresh tokens that
// are currently valid for this user; a token absent from the set is revoked.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	RefreshTokens []string  `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasRefreshToken reports whether token is in the user's active set.
func (u *User) HasRefreshToken(token string) bool {
	return slices.Contains(u.RefreshTokens, token)
}

// TokenPair is returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}
