package api

import (
	"context"

	"github.com/gin-gonic/gin"

	appointmentUsecasePkg "appointment-system/internal/appointment/usecase"
	notificationUsecasePkg "appointment-system/internal/notification/usecase"
	profileUsecasePkg "appointment-system/internal/profile/usecase"
	sessionUsecasePkg "appointment-system/internal/session/usecase"
	"appointment-system/pkg/sse"
)

type Handler struct {
	sessionUsecase      sessionUsecasePkg.SessionUsecase
	appointmentUsecase  appointmentUsecasePkg.AppointmentUsecase
	notificationUsecase notificationUsecasePkg.NotificationUsecase
	profileUsecase      profileUsecasePkg.ProfileUsecase
	sseManager          *sse.Manager
}

func NewHandler(
	sessionUc sessionUsecasePkg.SessionUsecase,
	appointmentUc appointmentUsecasePkg.AppointmentUsecase,
	notificationUc notificationUsecasePkg.NotificationUsecase,
	profileUc profileUsecasePkg.ProfileUsecase,
	sseManager *sse.Manager,
) *Handler {
	return &Handler{
		sessionUsecase:      sessionUc,
		appointmentUsecase:  appointmentUc,
		notificationUsecase: notificationUc,
		profileUsecase:      profileUc,
		sseManager:          sseManager,
	}
}

// StartEventPump forwards the reactive streams to connected SSE clients
// until ctx is cancelled.
func (h *Handler) StartEventPump(ctx context.Context) {
	pump := &eventPump{
		sessionUsecase:      h.sessionUsecase,
		appointmentUsecase:  h.appointmentUsecase,
		notificationUsecase: h.notificationUsecase,
		sseManager:          h.sseManager,
	}
	pump.start(ctx)
}

func (h *Handler) Start(addr string) error {
	r := gin.Default()
	gin.SetMode(gin.ReleaseMode)

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.sessionUsecase, h.appointmentUsecase, h.notificationUsecase, h.profileUsecase, h.sseManager)

	return r.Run(addr)
}
