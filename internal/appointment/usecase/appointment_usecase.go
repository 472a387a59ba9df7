package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"appointment-system/internal/appointment/domain"
	"appointment-system/internal/appointment/repository"
	sessiondomain "appointment-system/internal/session/domain"
	"appointment-system/pkg/rtdb"
)

// SessionSource resolves the current identity at call time.
type SessionSource interface {
	Current() (*sessiondomain.Session, bool)
}

// Notifier appends feed notifications for appointment lifecycle events.
type Notifier interface {
	SendBooked(ctx context.Context, ownerUID, name, email string, date time.Time) error
	SendUpdated(ctx context.Context, ownerUID, name, email string, date time.Time) error
	SendCancelled(ctx context.Context, ownerUID, name, email string, date time.Time) error
}

// AppointmentUsecase represents the appointment's usecases
type AppointmentUsecase interface {
	// Watch streams the current user's appointments, soonest first.
	Watch(ctx context.Context) (<-chan []domain.Appointment, error)

	Get(ctx context.Context, id string) (*domain.Appointment, error)

	// Book persists a new appointment and appends a booking notification.
	// The identity is checked at write time, not capture time.
	Book(ctx context.Context, appointment *domain.Appointment) (*domain.Appointment, error)

	// Edit overwrites the stored record, preserving its identifier.
	Edit(ctx context.Context, appointment *domain.Appointment) error

	// Cancel removes the appointment and appends a cancellation notification
	// carrying the removed appointment's schedule.
	Cancel(ctx context.Context, id string) error

	// Search filters the user's appointments by case-insensitive name match.
	Search(ctx context.Context, query string) ([]domain.Appointment, error)

	// DeleteAll removes uid's entire collection; part of account teardown.
	DeleteAll(ctx context.Context, ownerUID string) error
}

// appointmentUsecase implements AppointmentUsecase
type appointmentUsecase struct {
	repo     repository.AppointmentRepository
	session  SessionSource
	notifier Notifier
}

// NewAppointmentUsecase creates a new instance of appointmentUsecase
func NewAppointmentUsecase(repo repository.AppointmentRepository, session SessionSource, notifier Notifier) AppointmentUsecase {
	return &appointmentUsecase{
		repo:     repo,
		session:  session,
		notifier: notifier,
	}
}

func (u *appointmentUsecase) owner() (string, error) {
	session, ok := u.session.Current()
	if !ok {
		return "", sessiondomain.ErrNotAuthenticated
	}
	return session.UID, nil
}

func (u *appointmentUsecase) Watch(ctx context.Context) (<-chan []domain.Appointment, error) {
	uid, err := u.owner()
	if err != nil {
		return nil, err
	}
	raw, err := u.repo.Watch(ctx, uid)
	if err != nil {
		return nil, err
	}
	sorted := make(chan []domain.Appointment, 1)
	go func() {
		defer close(sorted)
		for appointments := range raw {
			domain.SortBySchedule(appointments)
			sorted <- appointments
		}
	}()
	return sorted, nil
}

func (u *appointmentUsecase) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	uid, err := u.owner()
	if err != nil {
		return nil, err
	}
	return u.repo.GetByID(ctx, uid, id)
}

func (u *appointmentUsecase) Book(ctx context.Context, appointment *domain.Appointment) (*domain.Appointment, error) {
	session, ok := u.session.Current()
	if !ok {
		// Nothing may reach the store on this path: the session is resolved
		// before any key is allocated.
		return nil, rtdb.NewPersistenceError("create", domain.Path("unknown"), rtdb.KindUnauthenticated,
			sessiondomain.ErrNotAuthenticated)
	}
	if err := u.repo.Create(ctx, session.UID, appointment); err != nil {
		return nil, err
	}
	if err := u.notifier.SendBooked(ctx, session.UID, appointment.Name, appointment.Email, appointment.Schedule()); err != nil {
		return appointment, err
	}
	return appointment, nil
}

func (u *appointmentUsecase) Edit(ctx context.Context, appointment *domain.Appointment) error {
	if appointment.ID == "" {
		return errors.New("appointment id is required")
	}
	uid, err := u.owner()
	if err != nil {
		return err
	}
	if err := u.repo.Update(ctx, uid, appointment); err != nil {
		return err
	}
	return u.notifier.SendUpdated(ctx, uid, appointment.Name, appointment.Email, appointment.Schedule())
}

func (u *appointmentUsecase) Cancel(ctx context.Context, id string) error {
	uid, err := u.owner()
	if err != nil {
		return err
	}
	// Fetch before delete: the cancellation message needs the schedule that
	// is about to be removed.
	appointment, err := u.repo.GetByID(ctx, uid, id)
	if err != nil {
		return err
	}
	if err := u.repo.Delete(ctx, uid, id); err != nil {
		return err
	}
	return u.notifier.SendCancelled(ctx, uid, appointment.Name, appointment.Email, appointment.Schedule())
}

func (u *appointmentUsecase) Search(ctx context.Context, query string) ([]domain.Appointment, error) {
	uid, err := u.owner()
	if err != nil {
		return nil, err
	}
	appointments, err := u.repo.GetAll(ctx, uid)
	if err != nil {
		return nil, err
	}
	domain.SortBySchedule(appointments)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return appointments, nil
	}
	matched := make([]domain.Appointment, 0, len(appointments))
	for _, appointment := range appointments {
		if strings.Contains(strings.ToLower(appointment.Name), query) {
			matched = append(matched, appointment)
		}
	}
	return matched, nil
}

func (u *appointmentUsecase) DeleteAll(ctx context.Context, ownerUID string) error {
	return u.repo.DeleteAll(ctx, ownerUID)
}
