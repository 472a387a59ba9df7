package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"appointment-system/internal/profile/usecase"
	sessiondomain "appointment-system/internal/session/domain"
	"appointment-system/pkg/blob"
)

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	profileUsecase usecase.ProfileUsecase
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profileUsecase usecase.ProfileUsecase) *ProfileHandler {
	return &ProfileHandler{
		profileUsecase: profileUsecase,
	}
}

// UpdateProfileRequest represents the request body for profile updates
type UpdateProfileRequest struct {
	Name            string `json:"name" binding:"required"`
	BackgroundColor string `json:"backgroundColor" binding:"required"`
}

// UploadPictureRequest carries the picture as a base64 data URL
type UploadPictureRequest struct {
	DataURL string `json:"data_url" binding:"required"`
}

func respondProfileError(c *gin.Context, err error) {
	switch {
	case err == sessiondomain.ErrNotAuthenticated:
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case blob.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "profile picture not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Get returns the current user's profile record
// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	record, err := h.profileUsecase.Record(c.Request.Context())
	if err != nil {
		respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// Update writes the display name and background color
// PUT /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.profileUsecase.UpdateProfile(c.Request.Context(), req.Name, req.BackgroundColor); err != nil {
		respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}

// UploadPicture stores a new profile picture
// POST /api/profile/picture
func (h *ProfileHandler) UploadPicture(c *gin.Context) {
	var req UploadPictureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	url, err := h.profileUsecase.UploadPicture(c.Request.Context(), req.DataURL)
	if err != nil {
		if err == sessiondomain.ErrNotAuthenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// PictureURL returns a download URL for the stored picture
// GET /api/profile/picture
func (h *ProfileHandler) PictureURL(c *gin.Context) {
	url, err := h.profileUsecase.PictureURL(c.Request.Context())
	if err != nil {
		respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// DeletePicture removes the stored picture
// DELETE /api/profile/picture
func (h *ProfileHandler) DeletePicture(c *gin.Context) {
	if err := h.profileUsecase.DeletePicture(c.Request.Context()); err != nil {
		respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "picture deleted"})
}

// DeleteAccount removes everything the user owns, then the auth account
// DELETE /api/profile
func (h *ProfileHandler) DeleteAccount(c *gin.Context) {
	if err := h.profileUsecase.DeleteAccount(c.Request.Context()); err != nil {
		respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}
