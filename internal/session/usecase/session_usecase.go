package usecase

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"appointment-system/internal/profile/domain"
	sessiondomain "appointment-system/internal/session/domain"
	"appointment-system/pkg/blob"
	"appointment-system/pkg/identity"
	"appointment-system/pkg/reactive"
	"appointment-system/pkg/rtdb"
)

// refreshMargin is how long before ID-token expiry a refresh is attempted.
const refreshMargin = 5 * time.Minute

// sessionUsecase implements SessionUsecase
type sessionUsecase struct {
	auth     *identity.Client
	store    rtdb.Store
	blobs    blob.Store
	fetch    blob.FetchFunc
	identity *reactive.Subject[*sessiondomain.Session]
}

// NewSessionUsecase creates a new instance of sessionUsecase. The identity
// subject is constructed by the caller and this usecase is its only writer.
func NewSessionUsecase(auth *identity.Client, store rtdb.Store, blobs blob.Store, fetch blob.FetchFunc, identitySubject *reactive.Subject[*sessiondomain.Session]) SessionUsecase {
	if fetch == nil {
		fetch = blob.FetchImage
	}
	return &sessionUsecase{
		auth:     auth,
		store:    store,
		blobs:    blobs,
		fetch:    fetch,
		identity: identitySubject,
	}
}

func (u *sessionUsecase) Identity() (<-chan *sessiondomain.Session, func()) {
	return u.identity.Subscribe()
}

func (u *sessionUsecase) Current() (*sessiondomain.Session, bool) {
	s := u.identity.Get()
	return s, s != nil
}

func (u *sessionUsecase) SignUp(ctx context.Context, email, password, name string) (*sessiondomain.Session, error) {
	tokens, err := u.auth.SignUp(email, password)
	if err != nil {
		return nil, err
	}

	session := sessionFromTokens(tokens)
	session.DisplayName = name

	// The display-name write and the store record are not transactional; a
	// failure in between leaves an auth record without a store entry.
	if err := u.auth.UpdateProfile(tokens.IDToken, name); err != nil {
		log.Printf("[Session] Failed to set display name for %s: %v", session.UID, err)
	}
	record := domain.UserRecord{Name: name, BackgroundColor: u.RandomColor()}
	if err := u.store.Set(ctx, domain.Path(session.UID), record); err != nil {
		log.Printf("[Session] Failed to store user record for %s: %v", session.UID, err)
	}

	u.identity.Set(session)
	return session, nil
}

func (u *sessionUsecase) SignIn(ctx context.Context, email, password string) (*sessiondomain.Session, error) {
	tokens, err := u.auth.SignInWithPassword(email, password)
	if err != nil {
		return nil, err
	}

	session := sessionFromTokens(tokens)
	if info, err := u.auth.Lookup(tokens.IDToken); err == nil {
		session.EmailVerified = info.EmailVerified
	}
	u.identity.Set(session)
	return session, nil
}

func (u *sessionUsecase) SignInWithGoogle(ctx context.Context, googleIDToken string) (*sessiondomain.Session, error) {
	info, err := identity.VerifyGoogleIDToken(googleIDToken)
	if err != nil {
		return nil, err
	}

	tokens, err := u.auth.SignInWithIDP("google.com", googleIDToken, "http://localhost")
	if err != nil {
		return nil, err
	}

	session := sessionFromTokens(tokens)
	if session.DisplayName == "" {
		session.DisplayName = info.Name
	}
	session.EmailVerified = true

	u.seedFederatedProfile(ctx, session, info)
	u.identity.Set(session)
	return session, nil
}

// seedFederatedProfile writes the store record for a first federated sign-in.
// An existing record with a profile picture flag means the user already
// customized their profile, so nothing is overwritten.
func (u *sessionUsecase) seedFederatedProfile(ctx context.Context, session *sessiondomain.Session, info *identity.GoogleTokenInfo) {
	var existing domain.UserRecord
	if err := u.store.Get(ctx, domain.Path(session.UID), &existing); err != nil {
		log.Printf("[Session] Failed to read user record for %s: %v", session.UID, err)
		return
	}
	if !existing.Empty() && existing.HasProfilePicture {
		return
	}

	record := domain.UserRecord{
		Name:              session.DisplayName,
		BackgroundColor:   u.RandomColor(),
		PhotoURL:          info.Picture,
		HasProfilePicture: false,
	}
	if err := u.store.Set(ctx, domain.Path(session.UID), record); err != nil {
		log.Printf("[Session] Failed to seed user record for %s: %v", session.UID, err)
	}

	if info.Picture == "" {
		return
	}
	// Mirror the provider avatar only when no picture exists yet. Fetch
	// failures are logged and swallowed; the avatar is cosmetic.
	if _, err := u.blobs.DownloadURL(ctx, domain.PicturePath(session.UID)); err == nil || !blob.IsNotFound(err) {
		return
	}
	contentType, data, err := u.fetch(ctx, info.Picture)
	if err != nil {
		log.Printf("[Session] Failed to fetch provider avatar for %s: %v", session.UID, err)
		return
	}
	if err := u.blobs.Put(ctx, domain.PicturePath(session.UID), contentType, data); err != nil {
		log.Printf("[Session] Failed to mirror provider avatar for %s: %v", session.UID, err)
	}
}

func (u *sessionUsecase) SignOut() {
	u.identity.Set(nil)
}

func (u *sessionUsecase) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	session, ok := u.Current()
	if !ok {
		return sessiondomain.ErrNotAuthenticated
	}

	// Re-authenticate with the current credential before accepting a new one.
	tokens, err := u.auth.SignInWithPassword(session.Email, currentPassword)
	if err != nil {
		if identity.IsInvalidCredentials(err) {
			return sessiondomain.ErrWrongCurrentPassword
		}
		return err
	}

	if currentPassword == newPassword {
		return sessiondomain.ErrSamePassword
	}

	fresh, err := u.auth.UpdatePassword(tokens.IDToken, newPassword)
	if err != nil {
		return err
	}

	updated := *session
	updated.IDToken = fresh.IDToken
	updated.RefreshToken = fresh.RefreshToken
	updated.ExpiresAt = expiryOf(fresh)
	u.identity.Set(&updated)
	return nil
}

func (u *sessionUsecase) ResetPassword(ctx context.Context, email string) error {
	return u.auth.SendPasswordReset(email)
}

func (u *sessionUsecase) SendVerificationEmail(ctx context.Context) error {
	session, ok := u.Current()
	if !ok {
		return sessiondomain.ErrNotAuthenticated
	}
	return u.auth.SendEmailVerification(session.IDToken)
}

func (u *sessionUsecase) IsEmailVerified(ctx context.Context, uid string) (bool, error) {
	// Resolve the session once and compare identifiers before trusting the
	// verified flag.
	session, ok := u.Current()
	if !ok || session.UID != uid {
		return false, nil
	}

	info, err := u.auth.Lookup(session.IDToken)
	if err != nil {
		return false, err
	}
	if info.UID != uid {
		return false, nil
	}
	if info.EmailVerified != session.EmailVerified {
		updated := *session
		updated.EmailVerified = info.EmailVerified
		u.identity.Set(&updated)
	}
	return info.EmailVerified, nil
}

func (u *sessionUsecase) UpdateDisplayName(ctx context.Context, name string) error {
	session, ok := u.Current()
	if !ok {
		return sessiondomain.ErrNotAuthenticated
	}
	if err := u.auth.UpdateProfile(session.IDToken, name); err != nil {
		return err
	}
	updated := *session
	updated.DisplayName = name
	u.identity.Set(&updated)
	return nil
}

func (u *sessionUsecase) DeleteAuthRecord(ctx context.Context) error {
	session, ok := u.Current()
	if !ok {
		return sessiondomain.ErrNotAuthenticated
	}
	if err := u.auth.DeleteAccount(session.IDToken); err != nil {
		return err
	}
	u.identity.Set(nil)
	return nil
}

const colorLetters = "0123456789ABCDEF"

func (u *sessionUsecase) RandomColor() string {
	color := make([]byte, 0, 7)
	color = append(color, '#')
	for i := 0; i < 6; i++ {
		color = append(color, colorLetters[rand.Intn(len(colorLetters))])
	}
	return string(color)
}

func (u *sessionUsecase) StartRefreshLoop(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				u.refreshIfNeeded(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (u *sessionUsecase) refreshIfNeeded(ctx context.Context) {
	session, ok := u.Current()
	if !ok || time.Until(session.ExpiresAt) > refreshMargin {
		return
	}

	fresh, err := u.auth.Refresh(session.RefreshToken)
	if err != nil {
		log.Printf("[Session] Token refresh failed for %s: %v", session.UID, err)
		var ae *identity.AuthError
		if errors.As(err, &ae) {
			// The refresh token was revoked; the session is gone.
			u.identity.Set(nil)
		}
		return
	}

	updated := *session
	updated.IDToken = fresh.IDToken
	updated.RefreshToken = fresh.RefreshToken
	updated.ExpiresAt = expiryOf(fresh)
	u.identity.Set(&updated)
	log.Printf("[Session] Refreshed ID token for %s", session.UID)
}

func sessionFromTokens(tokens *identity.Tokens) *sessiondomain.Session {
	return &sessiondomain.Session{
		UID:          tokens.UID,
		Email:        tokens.Email,
		DisplayName:  tokens.DisplayName,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    expiryOf(tokens),
	}
}

// expiryOf prefers the exp claim inside the ID token over the advertised
// lifetime; the claim is what the backend actually enforces.
func expiryOf(tokens *identity.Tokens) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokens.IDToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
}
