package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appointmentDelivery "appointment-system/internal/appointment/delivery"
	appointmentUsecase "appointment-system/internal/appointment/usecase"
	notificationDelivery "appointment-system/internal/notification/delivery"
	notificationUsecase "appointment-system/internal/notification/usecase"
	profileDelivery "appointment-system/internal/profile/delivery"
	profileUsecase "appointment-system/internal/profile/usecase"
	"appointment-system/internal/session/delivery"
	sessionUsecase "appointment-system/internal/session/usecase"
	"appointment-system/pkg/sse"
)

func SetupRoutes(r *gin.Engine, sessionUc sessionUsecase.SessionUsecase, appointmentUc appointmentUsecase.AppointmentUsecase, notificationUc notificationUsecase.NotificationUsecase, profileUc profileUsecase.ProfileUsecase, sseManager *sse.Manager) {
	sessionHandler := delivery.NewSessionHandler(sessionUc)
	appointmentHandler := appointmentDelivery.NewAppointmentHandler(appointmentUc)
	notificationHandler := notificationDelivery.NewNotificationHandler(notificationUc)
	profileHandler := profileDelivery.NewProfileHandler(profileUc)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// SSE endpoint
		api.GET("/events", delivery.SessionGuard(sessionUc), sseManager.ServeHTTP)

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", sessionHandler.Register)
			auth.POST("/login", sessionHandler.Login)
			auth.POST("/google", sessionHandler.GoogleSignIn)
			auth.POST("/logout", sessionHandler.Logout)
			auth.GET("/me", sessionHandler.Me)
			auth.POST("/reset-password", sessionHandler.ResetPassword)
			auth.POST("/change-password", delivery.SessionGuard(sessionUc), sessionHandler.ChangePassword)
			auth.POST("/send-verification", delivery.SessionGuard(sessionUc), sessionHandler.SendVerificationEmail)
			auth.GET("/verification-status", delivery.SessionGuard(sessionUc), sessionHandler.VerificationStatus)
		}

		// Appointment routes (protected)
		appointments := api.Group("/appointments")
		appointments.Use(delivery.SessionGuard(sessionUc))
		{
			appointments.GET("", appointmentHandler.List)
			appointments.POST("", appointmentHandler.Create)
			appointments.GET("/:id", appointmentHandler.Get)
			appointments.PUT("/:id", appointmentHandler.Update)
			appointments.DELETE("/:id", appointmentHandler.Delete)
		}

		// Notification routes (protected)
		notifications := api.Group("/notifications")
		notifications.Use(delivery.SessionGuard(sessionUc))
		{
			notifications.GET("", notificationHandler.List)
			notifications.DELETE("", notificationHandler.ClearAll)
			notifications.POST("/clear-unread", notificationHandler.ClearUnread)
			notifications.POST("/devices", notificationHandler.RegisterDevice)
			notifications.DELETE("/devices/:token", notificationHandler.UnregisterDevice)
		}

		// Profile routes (protected)
		profile := api.Group("/profile")
		profile.Use(delivery.SessionGuard(sessionUc))
		{
			profile.GET("", profileHandler.Get)
			profile.PUT("", profileHandler.Update)
			profile.DELETE("", profileHandler.DeleteAccount)
			profile.GET("/picture", profileHandler.PictureURL)
			profile.POST("/picture", profileHandler.UploadPicture)
			profile.DELETE("/picture", profileHandler.DeletePicture)
		}
	}
}
