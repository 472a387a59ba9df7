package repository

import (
	"context"
	"log"

	"appointment-system/internal/notification/domain"
	"appointment-system/pkg/rtdb"
)

// NotificationRepository is the data access layer for a user's notification
// feed and registered device tokens.
type NotificationRepository interface {
	// Watch streams the owner's full feed snapshot on every change.
	Watch(ctx context.Context, ownerUID string) (<-chan []domain.Notification, error)

	// Append pushes a notification under a store-generated key.
	Append(ctx context.Context, ownerUID string, n *domain.Notification) error

	// DeleteAll removes the owner's entire feed.
	DeleteAll(ctx context.Context, ownerUID string) error

	// RegisterDeviceToken adds a push token for the owner's devices.
	RegisterDeviceToken(ctx context.Context, ownerUID, token string) error

	// UnregisterDeviceToken drops a push token.
	UnregisterDeviceToken(ctx context.Context, ownerUID, token string) error

	// DeviceTokens lists the owner's registered push tokens.
	DeviceTokens(ctx context.Context, ownerUID string) ([]string, error)
}

// notificationRepository implements NotificationRepository
type notificationRepository struct {
	store rtdb.Store
}

// NewNotificationRepository creates a new instance of notificationRepository
func NewNotificationRepository(store rtdb.Store) NotificationRepository {
	return &notificationRepository{store: store}
}

func (r *notificationRepository) Watch(ctx context.Context, ownerUID string) (<-chan []domain.Notification, error) {
	path := domain.Path(ownerUID)
	snapshots, err := r.store.Subscribe(ctx, path)
	if err != nil {
		return nil, err
	}

	out := make(chan []domain.Notification, 1)
	go func() {
		defer close(out)
		for raw := range snapshots {
			notifications, err := domain.DecodeCollection(raw)
			if err != nil {
				log.Printf("[Notifications] Dropping malformed snapshot at %s: %v", path, err)
				continue
			}
			select {
			case out <- notifications:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *notificationRepository) Append(ctx context.Context, ownerUID string, n *domain.Notification) error {
	_, err := r.store.Push(ctx, domain.Path(ownerUID), n)
	return err
}

func (r *notificationRepository) DeleteAll(ctx context.Context, ownerUID string) error {
	return r.store.Delete(ctx, domain.Path(ownerUID))
}

func (r *notificationRepository) RegisterDeviceToken(ctx context.Context, ownerUID, token string) error {
	_, err := r.store.Push(ctx, domain.TokenPath(ownerUID), token)
	return err
}

func (r *notificationRepository) UnregisterDeviceToken(ctx context.Context, ownerUID, token string) error {
	var byKey map[string]string
	if err := r.store.Get(ctx, domain.TokenPath(ownerUID), &byKey); err != nil {
		return err
	}
	for key, candidate := range byKey {
		if candidate == token {
			if err := r.store.Delete(ctx, domain.TokenPath(ownerUID)+"/"+key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *notificationRepository) DeviceTokens(ctx context.Context, ownerUID string) ([]string, error) {
	var byKey map[string]string
	if err := r.store.Get(ctx, domain.TokenPath(ownerUID), &byKey); err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(byKey))
	for _, token := range byKey {
		tokens = append(tokens, token)
	}
	return tokens, nil
}
