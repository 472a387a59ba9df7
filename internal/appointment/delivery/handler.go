package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"appointment-system/internal/appointment/domain"
	"appointment-system/internal/appointment/usecase"
	"appointment-system/pkg/rtdb"
)

// AppointmentHandler handles appointment-related HTTP requests
type AppointmentHandler struct {
	appointmentUsecase usecase.AppointmentUsecase
}

// NewAppointmentHandler creates a new AppointmentHandler
func NewAppointmentHandler(appointmentUsecase usecase.AppointmentUsecase) *AppointmentHandler {
	return &AppointmentHandler{
		appointmentUsecase: appointmentUsecase,
	}
}

// AppointmentRequest represents the request body for booking or editing
type AppointmentRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	// SelectedDate is the scheduled time in epoch milliseconds.
	SelectedDate int64 `json:"selectedDate" binding:"required"`
}

func respondStoreError(c *gin.Context, err error) {
	switch {
	case rtdb.IsUnauthenticated(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
	case rtdb.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// List returns the user's appointments, soonest first, optionally filtered
// by a name substring
// GET /api/appointments?q=alice
func (h *AppointmentHandler) List(c *gin.Context) {
	appointments, err := h.appointmentUsecase.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appointments": appointments})
}

// Get returns a single appointment
// GET /api/appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	appointment, err := h.appointmentUsecase.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

// Create books a new appointment
// POST /api/appointments
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.appointmentUsecase.Book(c.Request.Context(), &domain.Appointment{
		Name:         req.Name,
		Email:        req.Email,
		SelectedDate: req.SelectedDate,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update overwrites an existing appointment
// PUT /api/appointments/:id
func (h *AppointmentHandler) Update(c *gin.Context) {
	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appointment := &domain.Appointment{
		ID:           c.Param("id"),
		Name:         req.Name,
		Email:        req.Email,
		SelectedDate: req.SelectedDate,
	}
	if err := h.appointmentUsecase.Edit(c.Request.Context(), appointment); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

// Delete cancels an appointment
// DELETE /api/appointments/:id
func (h *AppointmentHandler) Delete(c *gin.Context) {
	if err := h.appointmentUsecase.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "appointment cancelled"})
}
