package api

import (
	"context"
	"log"

	appointmentUsecasePkg "appointment-system/internal/appointment/usecase"
	notificationUsecasePkg "appointment-system/internal/notification/usecase"
	"appointment-system/internal/session/domain"
	"appointment-system/internal/session/dto"
	sessionUsecasePkg "appointment-system/internal/session/usecase"
	"appointment-system/pkg/sse"
)

// eventPump bridges the reactive streams onto the SSE manager so every
// connected client sees state changes without polling.
type eventPump struct {
	sessionUsecase      sessionUsecasePkg.SessionUsecase
	appointmentUsecase  appointmentUsecasePkg.AppointmentUsecase
	notificationUsecase notificationUsecasePkg.NotificationUsecase
	sseManager          *sse.Manager
}

func (p *eventPump) start(ctx context.Context) {
	go p.pumpIdentity(ctx)
	go p.pumpNotifications(ctx)
	go p.pumpUnread(ctx)
}

func (p *eventPump) pumpIdentity(ctx context.Context) {
	identities, cancel := p.sessionUsecase.Identity()
	defer cancel()

	var cancelWatch context.CancelFunc
	defer func() {
		if cancelWatch != nil {
			cancelWatch()
		}
	}()

	var watchedUID string
	for {
		select {
		case session, ok := <-identities:
			if !ok {
				return
			}
			if session == nil {
				if cancelWatch != nil {
					cancelWatch()
					cancelWatch = nil
				}
				watchedUID = ""
				p.sseManager.Broadcast("session", nil)
				continue
			}
			p.sseManager.Broadcast("session", dto.SessionResponse{
				UID:           session.UID,
				Email:         session.Email,
				DisplayName:   session.DisplayName,
				EmailVerified: session.EmailVerified,
			})
			if session.UID == watchedUID {
				continue
			}
			if cancelWatch != nil {
				cancelWatch()
			}
			watchCtx, cancelThis := context.WithCancel(ctx)
			cancelWatch = cancelThis
			watchedUID = session.UID
			p.pumpAppointments(watchCtx, session)
		case <-ctx.Done():
			return
		}
	}
}

func (p *eventPump) pumpAppointments(ctx context.Context, session *domain.Session) {
	appointments, err := p.appointmentUsecase.Watch(ctx)
	if err != nil {
		log.Printf("[Events] Failed to watch appointments for %s: %v", session.UID, err)
		return
	}
	go func() {
		for snapshot := range appointments {
			p.sseManager.Broadcast("appointments", snapshot)
		}
	}()
}

func (p *eventPump) pumpNotifications(ctx context.Context) {
	notifications, cancel := p.notificationUsecase.Notifications()
	defer cancel()
	for {
		select {
		case snapshot, ok := <-notifications:
			if !ok {
				return
			}
			p.sseManager.Broadcast("notifications", snapshot)
		case <-ctx.Done():
			return
		}
	}
}

func (p *eventPump) pumpUnread(ctx context.Context) {
	counts, cancel := p.notificationUsecase.UnreadCount()
	defer cancel()
	for {
		select {
		case n, ok := <-counts:
			if !ok {
				return
			}
			p.sseManager.Broadcast("notification_unread", n)
		case <-ctx.Done():
			return
		}
	}
}
