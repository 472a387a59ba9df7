package repository

import (
	"context"
	"encoding/json"
	"log"

	"appointment-system/internal/profile/domain"
	"appointment-system/pkg/rtdb"
)

// ProfileRepository is the data access layer for profile records at
// users/{uid}.
type ProfileRepository interface {
	// Watch streams the record, re-emitted on every change. A missing record
	// emits the zero value.
	Watch(ctx context.Context, uid string) (<-chan domain.UserRecord, error)

	Get(ctx context.Context, uid string) (domain.UserRecord, error)
	Set(ctx context.Context, uid string, record domain.UserRecord) error

	// UpdateFields patches individual record fields without touching the
	// rest.
	UpdateFields(ctx context.Context, uid string, fields map[string]any) error

	Delete(ctx context.Context, uid string) error
}

// profileRepository implements ProfileRepository
type profileRepository struct {
	store rtdb.Store
}

// NewProfileRepository creates a new instance of profileRepository
func NewProfileRepository(store rtdb.Store) ProfileRepository {
	return &profileRepository{store: store}
}

func (r *profileRepository) Watch(ctx context.Context, uid string) (<-chan domain.UserRecord, error) {
	path := domain.Path(uid)
	snapshots, err := r.store.Subscribe(ctx, path)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.UserRecord, 1)
	go func() {
		defer close(out)
		for raw := range snapshots {
			var record domain.UserRecord
			if len(raw) > 0 && string(raw) != "null" {
				if err := json.Unmarshal(raw, &record); err != nil {
					log.Printf("[Profile] Dropping malformed snapshot at %s: %v", path, err)
					continue
				}
			}
			select {
			case out <- record:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *profileRepository) Get(ctx context.Context, uid string) (domain.UserRecord, error) {
	var record domain.UserRecord
	if err := r.store.Get(ctx, domain.Path(uid), &record); err != nil {
		return domain.UserRecord{}, err
	}
	return record, nil
}

func (r *profileRepository) Set(ctx context.Context, uid string, record domain.UserRecord) error {
	return r.store.Set(ctx, domain.Path(uid), record)
}

func (r *profileRepository) UpdateFields(ctx context.Context, uid string, fields map[string]any) error {
	return r.store.Update(ctx, domain.Path(uid), fields)
}

func (r *profileRepository) Delete(ctx context.Context, uid string) error {
	return r.store.Delete(ctx, domain.Path(uid))
}
