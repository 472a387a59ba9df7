package usecase

import (
	"context"

	"appointment-system/internal/session/domain"
)

// SessionUsecase owns the client's authenticated identity: the reactive
// identity stream plus every imperative auth operation. Identity resolution
// happens through Current() everywhere, which reads the same state the
// stream publishes.
type SessionUsecase interface {
	// Identity subscribes to the current-user stream. The latest value (nil
	// when signed out) is delivered immediately, then every change.
	Identity() (<-chan *domain.Session, func())

	// Current returns the session snapshot the stream last published.
	Current() (*domain.Session, bool)

	SignUp(ctx context.Context, email, password, name string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignInWithGoogle(ctx context.Context, googleIDToken string) (*domain.Session, error)
	SignOut()

	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	ResetPassword(ctx context.Context, email string) error
	SendVerificationEmail(ctx context.Context) error
	IsEmailVerified(ctx context.Context, uid string) (bool, error)

	// UpdateDisplayName writes the name to the auth provider's profile
	// metadata. The store-side record is the profile layer's concern.
	UpdateDisplayName(ctx context.Context, name string) error

	// DeleteAuthRecord removes the auth account behind the current session
	// and signs out. Dependent store data must already be gone: after this
	// call the session can no longer authorize deletes.
	DeleteAuthRecord(ctx context.Context) error

	// RandomColor picks a background color for new profiles.
	RandomColor() string

	// StartRefreshLoop keeps the ID token fresh until ctx is cancelled.
	StartRefreshLoop(ctx context.Context)
}
