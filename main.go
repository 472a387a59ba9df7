package main

import (
	"context"
	"log"

	api "appointment-system/cmd/api"
	appointmentRepo "appointment-system/internal/appointment/repository"
	appointmentUsecase "appointment-system/internal/appointment/usecase"
	notificationdomain "appointment-system/internal/notification/domain"
	notificationRepo "appointment-system/internal/notification/repository"
	notificationUsecase "appointment-system/internal/notification/usecase"
	profileRepo "appointment-system/internal/profile/repository"
	profileUsecase "appointment-system/internal/profile/usecase"
	sessiondomain "appointment-system/internal/session/domain"
	sessionUsecase "appointment-system/internal/session/usecase"
	"appointment-system/pkg/blob"
	"appointment-system/pkg/config"
	"appointment-system/pkg/fcm"
	"appointment-system/pkg/firebase"
	"appointment-system/pkg/identity"
	"appointment-system/pkg/reactive"
	"appointment-system/pkg/rtdb"
	"appointment-system/pkg/sse"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx := context.Background()

	// Initialize Firebase services (RTDB, Storage, Messaging)
	services, err := firebase.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize Firebase:", err)
	}

	store := rtdb.NewClient(services.Database, cfg.FirebaseDatabaseURL, services.TokenSource)
	blobs := blob.NewBucket(services.Bucket)
	auth := identity.NewClient(cfg.FirebaseAPIKey, cfg.IdentityEndpoint, cfg.SecureTokenEndpoint)

	// Reactive state containers; each has exactly one writing usecase.
	identitySubject := reactive.NewSubject[*sessiondomain.Session](nil)
	notificationList := reactive.NewSubject([]notificationdomain.Notification{})
	unreadCount := reactive.NewSubject(0)

	// Initialize SSE Manager
	sseManager := sse.NewManager()
	go sseManager.Run()

	// Initialize repositories (dependency injection)
	appointmentRepository := appointmentRepo.NewAppointmentRepository(store)
	notificationRepository := notificationRepo.NewNotificationRepository(store)
	profileRepository := profileRepo.NewProfileRepository(store)

	// Initialize FCM client (optional, push delivery only)
	var pusher notificationUsecase.DevicePusher
	if services.Messaging != nil {
		pusher = fcm.NewClient(services.Messaging)
		log.Println("FCM client initialized")
	} else {
		log.Println("Messaging not configured, push delivery disabled")
	}

	// Initialize use cases (dependency injection)
	sessionUc := sessionUsecase.NewSessionUsecase(auth, store, blobs, nil, identitySubject)
	notificationUc := notificationUsecase.NewNotificationUsecase(
		notificationRepository,
		sessionUc,
		notificationList,
		unreadCount,
		pusher,
		func() { sseManager.Broadcast("notification_sound", nil) },
	)
	appointmentUc := appointmentUsecase.NewAppointmentUsecase(appointmentRepository, sessionUc, notificationUc)
	profileUc := profileUsecase.NewProfileUsecase(profileRepository, sessionUc, blobs, appointmentUc, notificationUc)

	// Background loops: feed mirroring and ID-token refresh.
	notificationUc.Run(ctx)
	sessionUc.StartRefreshLoop(ctx)

	// Initialize HTTP handler
	handler := api.NewHandler(sessionUc, appointmentUc, notificationUc, profileUc, sseManager)
	handler.StartEventPump(ctx)

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
