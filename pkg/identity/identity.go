// Package identity is the REST client for the Firebase Auth endpoints the
// Admin SDK does not cover: password sign-in, sign-up, credential exchange,
// out-of-band email codes and token refresh.
package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Auth error codes as returned by the identity toolkit API.
const (
	CodeEmailExists          = "EMAIL_EXISTS"
	CodeInvalidCredentials   = "INVALID_LOGIN_CREDENTIALS"
	CodeInvalidPassword      = "INVALID_PASSWORD"
	CodeEmailNotFound        = "EMAIL_NOT_FOUND"
	CodeWeakPassword         = "WEAK_PASSWORD"
	CodeInvalidEmail         = "INVALID_EMAIL"
	CodeUserDisabled         = "USER_DISABLED"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"
	CodeCredentialMismatch   = "CREDENTIAL_MISMATCH"
	CodeOperationNotAllowed  = "OPERATION_NOT_ALLOWED"
	CodeTooManyAttempts      = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeFederatedUserIDError = "FEDERATED_USER_ID_ALREADY_LINKED"
)

// AuthError is a failure reported by the auth backend, carrying the backend's
// error code so callers can branch on duplicate email, wrong password, etc.
type AuthError struct {
	Code       string
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s (status %d)", e.Code, e.StatusCode)
}

// IsEmailInUse reports whether err is the duplicate-email sign-up failure.
func IsEmailInUse(err error) bool {
	ae, ok := err.(*AuthError)
	return ok && ae.Code == CodeEmailExists
}

// IsInvalidCredentials reports whether err is a wrong email/password failure.
// Newer projects return INVALID_LOGIN_CREDENTIALS, older ones the split codes.
func IsInvalidCredentials(err error) bool {
	ae, ok := err.(*AuthError)
	if !ok {
		return false
	}
	switch ae.Code {
	case CodeInvalidCredentials, CodeInvalidPassword, CodeEmailNotFound:
		return true
	}
	return false
}

// IsWeakPassword reports whether err is a weak-password rejection.
func IsWeakPassword(err error) bool {
	ae, ok := err.(*AuthError)
	return ok && ae.Code == CodeWeakPassword
}

// Client talks to the identity toolkit and secure token REST endpoints.
type Client struct {
	apiKey          string
	endpoint        string
	refreshEndpoint string
	httpClient      *http.Client
}

func NewClient(apiKey, endpoint, refreshEndpoint string) *Client {
	return &Client{
		apiKey:          apiKey,
		endpoint:        endpoint,
		refreshEndpoint: refreshEndpoint,
		httpClient:      http.DefaultClient,
	}
}

// Tokens is the credential material minted by sign-in style calls.
type Tokens struct {
	UID          string
	Email        string
	DisplayName  string
	PhotoURL     string
	IDToken      string
	RefreshToken string
	ExpiresIn    int64 // seconds
}

// UserInfo is a single account record from accounts:lookup.
type UserInfo struct {
	UID           string
	Email         string
	DisplayName   string
	PhotoURL      string
	EmailVerified bool
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/%s?key=%s", c.endpoint, path, url.QueryEscape(c.apiKey))
	resp, err := c.httpClient.Post(reqURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var ae apiError
		if err := json.Unmarshal(raw, &ae); err == nil && ae.Error.Message != "" {
			return &AuthError{Code: trimCode(ae.Error.Message), StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("auth request failed: status %d, body: %s", resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// trimCode strips the detail suffix the API appends to some codes, e.g.
// "WEAK_PASSWORD : Password should be at least 6 characters".
func trimCode(message string) string {
	for i, r := range message {
		if r == ' ' || r == ':' {
			return message[:i]
		}
	}
	return message
}

type tokenPayload struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	PhotoURL     string `json:"photoUrl"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (p *tokenPayload) tokens() *Tokens {
	expires, _ := strconv.ParseInt(p.ExpiresIn, 10, 64)
	return &Tokens{
		UID:          p.LocalID,
		Email:        p.Email,
		DisplayName:  p.DisplayName,
		PhotoURL:     p.PhotoURL,
		IDToken:      p.IDToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    expires,
	}
}

// SignUp creates an email/password account.
func (c *Client) SignUp(email, password string) (*Tokens, error) {
	var out tokenPayload
	err := c.post("accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.tokens(), nil
}

// SignInWithPassword signs in with an email/password credential. It is also
// used as the re-authentication step before a password change.
func (c *Client) SignInWithPassword(email, password string) (*Tokens, error) {
	var out tokenPayload
	err := c.post("accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.tokens(), nil
}

// SignInWithIDP exchanges a federated provider's ID token (Google) for
// Firebase credentials.
func (c *Client) SignInWithIDP(providerID, providerIDToken, requestURI string) (*Tokens, error) {
	var out tokenPayload
	err := c.post("accounts:signInWithIdp", map[string]any{
		"postBody":            fmt.Sprintf("id_token=%s&providerId=%s", providerIDToken, providerID),
		"requestUri":          requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.tokens(), nil
}

// UpdateProfile sets the account's display name.
func (c *Client) UpdateProfile(idToken, displayName string) error {
	return c.post("accounts:update", map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	}, nil)
}

// UpdatePassword replaces the account password and returns fresh tokens,
// since the old ones are revoked by the change.
func (c *Client) UpdatePassword(idToken, newPassword string) (*Tokens, error) {
	var out tokenPayload
	err := c.post("accounts:update", map[string]any{
		"idToken":           idToken,
		"password":          newPassword,
		"returnSecureToken": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.tokens(), nil
}

// SendPasswordReset emails a password-reset code.
func (c *Client) SendPasswordReset(email string) error {
	return c.post("accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, nil)
}

// SendEmailVerification emails a verification code to the signed-in account.
func (c *Client) SendEmailVerification(idToken string) error {
	return c.post("accounts:sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}, nil)
}

// Lookup fetches the account record behind idToken, including the
// email-verified flag.
func (c *Client) Lookup(idToken string) (*UserInfo, error) {
	var out struct {
		Users []struct {
			LocalID       string `json:"localId"`
			Email         string `json:"email"`
			DisplayName   string `json:"displayName"`
			PhotoURL      string `json:"photoUrl"`
			EmailVerified bool   `json:"emailVerified"`
		} `json:"users"`
	}
	if err := c.post("accounts:lookup", map[string]any{"idToken": idToken}, &out); err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return nil, fmt.Errorf("account lookup returned no users")
	}
	u := out.Users[0]
	return &UserInfo{
		UID:           u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		EmailVerified: u.EmailVerified,
	}, nil
}

// DeleteAccount removes the auth record behind idToken. Dependent data must
// be deleted first: once the record is gone the session can no longer
// authorize store writes.
func (c *Client) DeleteAccount(idToken string) error {
	return c.post("accounts:delete", map[string]any{"idToken": idToken}, nil)
}

// Refresh exchanges a refresh token for a fresh ID token.
func (c *Client) Refresh(refreshToken string) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	reqURL := fmt.Sprintf("%s/token?key=%s", c.refreshEndpoint, url.QueryEscape(c.apiKey))
	resp, err := c.httpClient.Post(reqURL, "application/x-www-form-urlencoded", bytes.NewReader([]byte(form.Encode())))
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		var ae apiError
		if err := json.Unmarshal(raw, &ae); err == nil && ae.Error.Message != "" {
			return nil, &AuthError{Code: trimCode(ae.Error.Message), StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("token refresh failed: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		UserID       string `json:"user_id"`
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	expires, _ := strconv.ParseInt(out.ExpiresIn, 10, 64)
	return &Tokens{
		UID:          out.UserID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    expires,
	}, nil
}
