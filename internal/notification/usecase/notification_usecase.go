package usecase

import (
	"context"
	"log"
	"sync"
	"time"

	"appointment-system/internal/notification/domain"
	"appointment-system/internal/notification/repository"
	sessiondomain "appointment-system/internal/session/domain"
	"appointment-system/pkg/fcm"
	"appointment-system/pkg/reactive"
)

// SessionSource resolves the current identity. Satisfied by the session
// usecase; declared here so this package depends only on what it consumes.
type SessionSource interface {
	Current() (*sessiondomain.Session, bool)
	Identity() (<-chan *sessiondomain.Session, func())
}

// DevicePusher sends push notifications to device tokens. Optional.
type DevicePusher interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// NotificationUsecase is the fan-out over a user's notification feed: a live
// list mirror, an unread counter and a sound cue, all driven by the store
// subscription. The counter is derived from the mirrored list and a clear
// watermark — there is no independent local increment to diverge from it.
type NotificationUsecase interface {
	// Run drives the feed subscription from the identity stream until ctx is
	// cancelled: sign-in opens a watch on the user's feed, sign-out tears it
	// down and empties the mirror.
	Run(ctx context.Context)

	// Notifications subscribes to the mirrored feed, newest first.
	Notifications() (<-chan []domain.Notification, func())

	// UnreadCount subscribes to the unread counter.
	UnreadCount() (<-chan int, func())

	// CurrentUnread returns the counter's present value.
	CurrentUnread() int

	// CurrentList returns the mirror's present value, newest first.
	CurrentList() []domain.Notification

	SendBooked(ctx context.Context, ownerUID, name, email string, date time.Time) error
	SendUpdated(ctx context.Context, ownerUID, name, email string, date time.Time) error
	SendCancelled(ctx context.Context, ownerUID, name, email string, date time.Time) error

	// ClearUnread advances the watermark so the counter reads zero. Calling
	// it again without new notifications leaves it at zero.
	ClearUnread()

	// ClearAll deletes the current user's entire feed.
	ClearAll(ctx context.Context) error

	// DeleteAllFor removes uid's feed; part of account teardown.
	DeleteAllFor(ctx context.Context, ownerUID string) error

	RegisterDevice(ctx context.Context, token string) error
	UnregisterDevice(ctx context.Context, token string) error
}

// notificationUsecase implements NotificationUsecase
type notificationUsecase struct {
	repo    repository.NotificationRepository
	session SessionSource
	list    *reactive.Subject[[]domain.Notification]
	unread  *reactive.Subject[int]
	pusher  DevicePusher
	cue     func()
	now     func() time.Time

	mu        sync.Mutex
	watermark int64 // epoch ms; notifications at or before it count as read
	lastLen   int
}

// NewNotificationUsecase creates a new instance of notificationUsecase. The
// list and unread subjects are constructed by the caller and this usecase is
// their only writer. cue fires when the mirrored list grows; pusher and cue
// may be nil.
func NewNotificationUsecase(
	repo repository.NotificationRepository,
	session SessionSource,
	list *reactive.Subject[[]domain.Notification],
	unread *reactive.Subject[int],
	pusher DevicePusher,
	cue func(),
) NotificationUsecase {
	return &notificationUsecase{
		repo:    repo,
		session: session,
		list:    list,
		unread:  unread,
		pusher:  pusher,
		cue:     cue,
		now:     time.Now,
	}
}

func (u *notificationUsecase) Run(ctx context.Context) {
	identities, cancelIdentity := u.session.Identity()
	go func() {
		defer cancelIdentity()

		var watchedUID string
		var cancelWatch context.CancelFunc
		stopWatch := func() {
			if cancelWatch != nil {
				cancelWatch()
				cancelWatch = nil
			}
			watchedUID = ""
		}
		defer stopWatch()

		for {
			select {
			case session, ok := <-identities:
				if !ok {
					return
				}
				if session == nil {
					stopWatch()
					u.reset()
					continue
				}
				if session.UID == watchedUID {
					continue
				}
				stopWatch()
				u.reset()
				watchCtx, cancel := context.WithCancel(ctx)
				cancelWatch = cancel
				watchedUID = session.UID
				if err := u.watch(watchCtx, session.UID); err != nil {
					log.Printf("[Notifications] Failed to watch feed for %s: %v", session.UID, err)
					stopWatch()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (u *notificationUsecase) reset() {
	u.mu.Lock()
	u.watermark = u.now().UnixMilli()
	u.lastLen = 0
	u.mu.Unlock()
	u.unread.Set(0)
	u.list.Set([]domain.Notification{})
}

func (u *notificationUsecase) watch(ctx context.Context, ownerUID string) error {
	feed, err := u.repo.Watch(ctx, ownerUID)
	if err != nil {
		return err
	}
	go func() {
		for notifications := range feed {
			domain.SortNewestFirst(notifications)
			u.mu.Lock()
			unread := 0
			for _, n := range notifications {
				if n.Timestamp > u.watermark {
					unread++
				}
			}
			// Rising-edge cue: compares lengths of consecutive emissions
			// only, so a shrink followed by a regrow can retrigger it.
			grew := len(notifications) > u.lastLen
			u.lastLen = len(notifications)
			u.mu.Unlock()

			// The list emission goes out last so observers reading the
			// counter after a list update never see it lag behind.
			u.unread.Set(unread)
			if grew && u.cue != nil {
				u.cue()
			}
			u.list.Set(notifications)
		}
	}()
	return nil
}

func (u *notificationUsecase) Notifications() (<-chan []domain.Notification, func()) {
	return u.list.Subscribe()
}

func (u *notificationUsecase) UnreadCount() (<-chan int, func()) {
	return u.unread.Subscribe()
}

func (u *notificationUsecase) CurrentUnread() int {
	return u.unread.Get()
}

func (u *notificationUsecase) CurrentList() []domain.Notification {
	return u.list.Get()
}

func (u *notificationUsecase) SendBooked(ctx context.Context, ownerUID, name, email string, date time.Time) error {
	label := domain.FormatDateLabel(date, u.now())
	return u.send(ctx, ownerUID, domain.BookedMessage(name, email, label))
}

func (u *notificationUsecase) SendUpdated(ctx context.Context, ownerUID, name, email string, date time.Time) error {
	label := domain.FormatDateLabel(date, u.now())
	return u.send(ctx, ownerUID, domain.UpdatedMessage(name, email, label))
}

func (u *notificationUsecase) SendCancelled(ctx context.Context, ownerUID, name, email string, date time.Time) error {
	label := domain.FormatDateLabel(date, u.now())
	return u.send(ctx, ownerUID, domain.CancelledMessage(name, email, label))
}

func (u *notificationUsecase) send(ctx context.Context, ownerUID, message string) error {
	n := &domain.Notification{
		Sender:    domain.Sender,
		Message:   message,
		Timestamp: u.now().UnixMilli(),
		IsRead:    false,
	}
	if err := u.repo.Append(ctx, ownerUID, n); err != nil {
		return err
	}
	// The unread counter is not touched here: the watch stream recomputes it
	// from the snapshot the append produces.
	u.push(ownerUID, message)
	return nil
}

// push fans the notification out to registered devices, best-effort.
func (u *notificationUsecase) push(ownerUID, message string) {
	if u.pusher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		tokens, err := u.repo.DeviceTokens(ctx, ownerUID)
		if err != nil {
			log.Printf("[Notifications] Failed to load device tokens for %s: %v", ownerUID, err)
			return
		}
		if len(tokens) == 0 {
			return
		}
		failed, err := u.pusher.SendToDevices(ctx, tokens, fcm.NotificationData{
			Title: domain.Sender,
			Body:  message,
			Data:  map[string]string{"type": "appointment_notification"},
		})
		if err != nil {
			log.Printf("[Notifications] Push delivery failed for %s: %v", ownerUID, err)
			return
		}
		for _, token := range failed {
			if err := u.repo.UnregisterDeviceToken(ctx, ownerUID, token); err != nil {
				log.Printf("[Notifications] Failed to drop stale token: %v", err)
			}
		}
	}()
}

func (u *notificationUsecase) ClearUnread() {
	u.mu.Lock()
	u.watermark = u.now().UnixMilli()
	u.mu.Unlock()
	u.unread.Set(0)
}

func (u *notificationUsecase) ClearAll(ctx context.Context) error {
	session, ok := u.session.Current()
	if !ok {
		return sessiondomain.ErrNotAuthenticated
	}
	return u.repo.DeleteAll(ctx, session.UID)
}

func (u *notificationUsecase) DeleteAllFor(ctx context.Context, ownerUID string) error {
	return u.repo.DeleteAll(ctx, ownerUID)
}

func (u *notificationUsecase) RegisterDevice(ctx context.Context, token string) error {
	session, ok := u.session.Current()
	if !ok {
		return sessiondomain.ErrNotAuthenticated
	}
	return u.repo.RegisterDeviceToken(ctx, session.UID, token)
}

func (u *notificationUsecase) UnregisterDevice(ctx context.Context, token string) error {
	session, ok := u.session.Current()
	if !ok {
		return sessiondomain.ErrNotAuthenticated
	}
	return u.repo.UnregisterDeviceToken(ctx, session.UID, token)
}
