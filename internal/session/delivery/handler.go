package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"appointment-system/internal/session/domain"
	"appointment-system/internal/session/dto"
	"appointment-system/internal/session/usecase"
	"appointment-system/pkg/identity"
)

// SessionHandler handles auth-related HTTP requests
type SessionHandler struct {
	sessionUsecase usecase.SessionUsecase
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessionUsecase usecase.SessionUsecase) *SessionHandler {
	return &SessionHandler{
		sessionUsecase: sessionUsecase,
	}
}

func sessionResponse(session *domain.Session) dto.SessionResponse {
	return dto.SessionResponse{
		UID:           session.UID,
		Email:         session.Email,
		DisplayName:   session.DisplayName,
		EmailVerified: session.EmailVerified,
	}
}

// Register creates a new account and signs it in
// POST /api/auth/register
func (h *SessionHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionUsecase.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if identity.IsEmailInUse(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email is already registered"})
			return
		}
		if identity.IsWeakPassword(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sessionResponse(session))
}

// Login signs in with email and password
// POST /api/auth/login
func (h *SessionHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionUsecase.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if identity.IsInvalidCredentials(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sessionResponse(session))
}

// GoogleSignIn signs in with a Google ID token
// POST /api/auth/google
func (h *SessionHandler) GoogleSignIn(c *gin.Context) {
	var req dto.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionUsecase.SignInWithGoogle(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sessionResponse(session))
}

// Logout clears the current session
// POST /api/auth/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	h.sessionUsecase.SignOut()
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the current session
// GET /api/auth/me
func (h *SessionHandler) Me(c *gin.Context) {
	session, ok := h.sessionUsecase.Current()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// ChangePassword reauthenticates and sets a new password
// POST /api/auth/change-password
func (h *SessionHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.sessionUsecase.ChangePassword(c.Request.Context(), req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "password changed"})
	case err == domain.ErrWrongCurrentPassword || err == domain.ErrSamePassword:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err == domain.ErrNotAuthenticated:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ResetPassword sends a password reset email
// POST /api/auth/reset-password
func (h *SessionHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessionUsecase.ResetPassword(c.Request.Context(), req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reset email sent"})
}

// SendVerificationEmail emails a verification link to the current user
// POST /api/auth/send-verification
func (h *SessionHandler) SendVerificationEmail(c *gin.Context) {
	if err := h.sessionUsecase.SendVerificationEmail(c.Request.Context()); err != nil {
		if err == domain.ErrNotAuthenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification email sent"})
}

// VerificationStatus re-checks the email verification flag with the provider
// GET /api/auth/verification-status
func (h *SessionHandler) VerificationStatus(c *gin.Context) {
	session, ok := h.sessionUsecase.Current()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	verified, err := h.sessionUsecase.IsEmailVerified(c.Request.Context(), session.UID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"email_verified": verified})
}
