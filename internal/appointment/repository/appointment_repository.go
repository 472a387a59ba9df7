package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"appointment-system/internal/appointment/domain"
	"appointment-system/pkg/rtdb"
)

// AppointmentRepository is the data access layer for the appointments
// subtree. All operations are scoped to one owner's path.
type AppointmentRepository interface {
	// Watch streams the owner's full collection snapshot, re-emitted on
	// every change anywhere under the owner path.
	Watch(ctx context.Context, ownerUID string) (<-chan []domain.Appointment, error)

	GetByID(ctx context.Context, ownerUID, id string) (*domain.Appointment, error)

	// GetAll reads the owner's collection once, in store order.
	GetAll(ctx context.Context, ownerUID string) ([]domain.Appointment, error)

	// Create allocates a push key, stamps it onto the record and commits the
	// complete record under that key. If the commit never happens the key is
	// orphaned; no record exists under it.
	Create(ctx context.Context, ownerUID string, appointment *domain.Appointment) error

	// Update overwrites the full record at its existing key.
	Update(ctx context.Context, ownerUID string, appointment *domain.Appointment) error

	Delete(ctx context.Context, ownerUID, id string) error
	DeleteAll(ctx context.Context, ownerUID string) error
}

// appointmentRepository implements AppointmentRepository
type appointmentRepository struct {
	store rtdb.Store
}

// NewAppointmentRepository creates a new instance of appointmentRepository
func NewAppointmentRepository(store rtdb.Store) AppointmentRepository {
	return &appointmentRepository{store: store}
}

func (r *appointmentRepository) Watch(ctx context.Context, ownerUID string) (<-chan []domain.Appointment, error) {
	path := domain.Path(ownerUID)
	snapshots, err := r.store.Subscribe(ctx, path)
	if err != nil {
		return nil, err
	}

	out := make(chan []domain.Appointment, 1)
	go func() {
		defer close(out)
		for raw := range snapshots {
			appointments, err := domain.DecodeCollection(raw)
			if err != nil {
				log.Printf("[Appointments] Dropping malformed snapshot at %s: %v", path, err)
				continue
			}
			select {
			case out <- appointments:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *appointmentRepository) GetByID(ctx context.Context, ownerUID, id string) (*domain.Appointment, error) {
	path := domain.RecordPath(ownerUID, id)
	var a domain.Appointment
	if err := r.store.Get(ctx, path, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, rtdb.NewPersistenceError("get", path, rtdb.KindNotFound, fmt.Errorf("appointment %s not found", id))
	}
	return &a, nil
}

func (r *appointmentRepository) GetAll(ctx context.Context, ownerUID string) ([]domain.Appointment, error) {
	path := domain.Path(ownerUID)
	var raw json.RawMessage
	if err := r.store.Get(ctx, path, &raw); err != nil {
		return nil, err
	}
	appointments, err := domain.DecodeCollection(raw)
	if err != nil {
		return nil, rtdb.NewPersistenceError("get", path, rtdb.KindDecode, err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Create(ctx context.Context, ownerUID string, appointment *domain.Appointment) error {
	key, err := r.store.AllocateID(ctx, domain.Path(ownerUID))
	if err != nil {
		return err
	}
	appointment.ID = key
	return r.store.Set(ctx, domain.RecordPath(ownerUID, key), appointment)
}

func (r *appointmentRepository) Update(ctx context.Context, ownerUID string, appointment *domain.Appointment) error {
	if appointment.ID == "" {
		return rtdb.NewPersistenceError("update", domain.Path(ownerUID), rtdb.KindNotFound, fmt.Errorf("appointment has no identifier"))
	}
	return r.store.Set(ctx, domain.RecordPath(ownerUID, appointment.ID), appointment)
}

func (r *appointmentRepository) Delete(ctx context.Context, ownerUID, id string) error {
	return r.store.Delete(ctx, domain.RecordPath(ownerUID, id))
}

func (r *appointmentRepository) DeleteAll(ctx context.Context, ownerUID string) error {
	return r.store.Delete(ctx, domain.Path(ownerUID))
}
