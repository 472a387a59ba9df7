package usecase

import (
	"context"
	"fmt"
	"log"

	"appointment-system/internal/profile/domain"
	"appointment-system/internal/profile/repository"
	sessiondomain "appointment-system/internal/session/domain"
	"appointment-system/pkg/blob"
)

// SessionControl is the slice of the session layer the profile layer drives.
type SessionControl interface {
	Current() (*sessiondomain.Session, bool)
	UpdateDisplayName(ctx context.Context, name string) error
	DeleteAuthRecord(ctx context.Context) error
}

// AppointmentPurger removes a user's appointment collection.
type AppointmentPurger interface {
	DeleteAll(ctx context.Context, ownerUID string) error
}

// NotificationPurger removes a user's notification feed.
type NotificationPurger interface {
	DeleteAllFor(ctx context.Context, ownerUID string) error
}

// ProfileUsecase represents the profile's usecases
type ProfileUsecase interface {
	// WatchRecord streams the current user's profile record.
	WatchRecord(ctx context.Context) (<-chan domain.UserRecord, error)

	Record(ctx context.Context) (domain.UserRecord, error)

	// UpdateProfile writes the display name to the auth provider and the
	// name and background color to the store record. The two writes are not
	// transactional; the auth write happens first and a store failure leaves
	// the provider updated.
	UpdateProfile(ctx context.Context, name, backgroundColor string) error

	// UploadPicture stores a base64 data URL as the profile picture and
	// returns its download URL.
	UploadPicture(ctx context.Context, dataURL string) (string, error)

	PictureURL(ctx context.Context) (string, error)
	DeletePicture(ctx context.Context) error

	// DeleteAccount tears down everything the user owns, dependent data
	// first: appointments, then notifications, then the profile record and
	// picture, and the auth account last, while the session can still
	// authorize the store deletes.
	DeleteAccount(ctx context.Context) error
}

// profileUsecase implements ProfileUsecase
type profileUsecase struct {
	repo          repository.ProfileRepository
	session       SessionControl
	blobs         blob.Store
	appointments  AppointmentPurger
	notifications NotificationPurger
}

// NewProfileUsecase creates a new instance of profileUsecase
func NewProfileUsecase(
	repo repository.ProfileRepository,
	session SessionControl,
	blobs blob.Store,
	appointments AppointmentPurger,
	notifications NotificationPurger,
) ProfileUsecase {
	return &profileUsecase{
		repo:          repo,
		session:       session,
		blobs:         blobs,
		appointments:  appointments,
		notifications: notifications,
	}
}

func (u *profileUsecase) owner() (string, error) {
	session, ok := u.session.Current()
	if !ok {
		return "", sessiondomain.ErrNotAuthenticated
	}
	return session.UID, nil
}

func (u *profileUsecase) WatchRecord(ctx context.Context) (<-chan domain.UserRecord, error) {
	uid, err := u.owner()
	if err != nil {
		return nil, err
	}
	return u.repo.Watch(ctx, uid)
}

func (u *profileUsecase) Record(ctx context.Context) (domain.UserRecord, error) {
	uid, err := u.owner()
	if err != nil {
		return domain.UserRecord{}, err
	}
	return u.repo.Get(ctx, uid)
}

func (u *profileUsecase) UpdateProfile(ctx context.Context, name, backgroundColor string) error {
	uid, err := u.owner()
	if err != nil {
		return err
	}
	if err := u.session.UpdateDisplayName(ctx, name); err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return u.repo.UpdateFields(ctx, uid, map[string]any{
		"name":            name,
		"backgroundColor": backgroundColor,
	})
}

func (u *profileUsecase) UploadPicture(ctx context.Context, dataURL string) (string, error) {
	uid, err := u.owner()
	if err != nil {
		return "", err
	}
	contentType, data, err := blob.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	path := domain.PicturePath(uid)
	if err := u.blobs.Put(ctx, path, contentType, data); err != nil {
		return "", err
	}
	url, err := u.blobs.DownloadURL(ctx, path)
	if err != nil {
		return "", err
	}
	if err := u.repo.UpdateFields(ctx, uid, map[string]any{
		"photoURL":          url,
		"hasProfilePicture": true,
	}); err != nil {
		return "", err
	}
	return url, nil
}

func (u *profileUsecase) PictureURL(ctx context.Context) (string, error) {
	uid, err := u.owner()
	if err != nil {
		return "", err
	}
	return u.blobs.DownloadURL(ctx, domain.PicturePath(uid))
}

func (u *profileUsecase) DeletePicture(ctx context.Context) error {
	uid, err := u.owner()
	if err != nil {
		return err
	}
	if err := u.blobs.Delete(ctx, domain.PicturePath(uid)); err != nil && !blob.IsNotFound(err) {
		return err
	}
	return u.repo.UpdateFields(ctx, uid, map[string]any{
		"photoURL":          "",
		"hasProfilePicture": false,
	})
}

func (u *profileUsecase) DeleteAccount(ctx context.Context) error {
	uid, err := u.owner()
	if err != nil {
		return err
	}
	if err := u.appointments.DeleteAll(ctx, uid); err != nil {
		return fmt.Errorf("delete appointments: %w", err)
	}
	if err := u.notifications.DeleteAllFor(ctx, uid); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	if err := u.repo.Delete(ctx, uid); err != nil {
		return fmt.Errorf("delete profile record: %w", err)
	}
	if err := u.blobs.Delete(ctx, domain.PicturePath(uid)); err != nil && !blob.IsNotFound(err) {
		log.Printf("[Profile] Failed to delete profile picture for %s: %v", uid, err)
	}
	return u.session.DeleteAuthRecord(ctx)
}
