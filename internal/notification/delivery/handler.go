package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"appointment-system/internal/notification/usecase"
	sessiondomain "appointment-system/internal/session/domain"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationUsecase usecase.NotificationUsecase
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationUsecase usecase.NotificationUsecase) *NotificationHandler {
	return &NotificationHandler{
		notificationUsecase: notificationUsecase,
	}
}

// DeviceTokenRequest represents the request body for push token registration
type DeviceTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// List returns the mirrored feed, newest first, with the unread count
// GET /api/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"notifications": h.notificationUsecase.CurrentList(),
		"unread":        h.notificationUsecase.CurrentUnread(),
	})
}

// ClearUnread zeroes the unread counter
// POST /api/notifications/clear-unread
func (h *NotificationHandler) ClearUnread(c *gin.Context) {
	h.notificationUsecase.ClearUnread()
	c.JSON(http.StatusOK, gin.H{"unread": 0})
}

// ClearAll deletes the whole feed
// DELETE /api/notifications
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	if err := h.notificationUsecase.ClearAll(c.Request.Context()); err != nil {
		if err == sessiondomain.ErrNotAuthenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notifications cleared"})
}

// RegisterDevice registers an FCM device token for push delivery
// POST /api/notifications/devices
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var req DeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.notificationUsecase.RegisterDevice(c.Request.Context(), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "device registered"})
}

// UnregisterDevice removes an FCM device token
// DELETE /api/notifications/devices/:token
func (h *NotificationHandler) UnregisterDevice(c *gin.Context) {
	if err := h.notificationUsecase.UnregisterDevice(c.Request.Context(), c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device unregistered"})
}
