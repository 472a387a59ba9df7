package domain

import (
	"errors"
	"time"
)

// Session is the authenticated identity for this client instance. A nil
// *Session on the identity stream means signed out.
type Session struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	EmailVerified bool      `json:"email_verified"`
	IDToken       string    `json:"-"`
	RefreshToken  string    `json:"-"`
	ExpiresAt     time.Time `json:"-"`
}

var (
	ErrNotAuthenticated     = errors.New("user not authenticated")
	ErrSamePassword         = errors.New("new password must be different from the current password")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
)
