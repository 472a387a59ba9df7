package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-system/internal/notification/domain"
	"appointment-system/internal/notification/repository"
	sessiondomain "appointment-system/internal/session/domain"
	"appointment-system/pkg/reactive"
	"appointment-system/pkg/rtdb/rtdbtest"
)

type fakeSessionSource struct {
	subject *reactive.Subject[*sessiondomain.Session]
}

func (f *fakeSessionSource) Current() (*sessiondomain.Session, bool) {
	session := f.subject.Get()
	return session, session != nil
}

func (f *fakeSessionSource) Identity() (<-chan *sessiondomain.Session, func()) {
	return f.subject.Subscribe()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store   *rtdbtest.Store
	session *fakeSessionSource
	clock   *fakeClock
	cues    *atomic.Int64
	usecase NotificationUsecase
	cancel  context.CancelFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := rtdbtest.NewStore()
	session := &fakeSessionSource{subject: reactive.NewSubject[*sessiondomain.Session](nil)}
	clock := &fakeClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)}
	cues := &atomic.Int64{}

	u := NewNotificationUsecase(
		repository.NewNotificationRepository(store),
		session,
		reactive.NewSubject([]domain.Notification{}),
		reactive.NewSubject(0),
		nil,
		func() { cues.Add(1) },
	).(*notificationUsecase)
	u.now = clock.Now

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	u.Run(ctx)

	return &fixture{
		store:   store,
		session: session,
		clock:   clock,
		cues:    cues,
		usecase: u,
		cancel:  cancel,
	}
}

func (f *fixture) signIn() {
	f.session.subject.Set(&sessiondomain.Session{UID: "uid-1", Email: "alice@example.com"})
}

// awaitList reads conflated list emissions until one satisfies ok.
func awaitList(t *testing.T, ch <-chan []domain.Notification, ok func([]domain.Notification) bool) []domain.Notification {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case notifications := <-ch:
			if ok(notifications) {
				return notifications
			}
		case <-deadline:
			t.Fatal("timed out waiting for notification snapshot")
		}
	}
}

func awaitCount(t *testing.T, ch <-chan int, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-ch:
			if n == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for unread count %d", want)
		}
	}
}

func TestFeedMirrorsStoreNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Two notifications already in the feed before sign-in.
	older := &domain.Notification{Sender: domain.Sender, Message: "older", Timestamp: f.clock.Now().Add(-2 * time.Hour).UnixMilli()}
	newer := &domain.Notification{Sender: domain.Sender, Message: "newer", Timestamp: f.clock.Now().Add(-time.Hour).UnixMilli()}
	repo := repository.NewNotificationRepository(f.store)
	require.NoError(t, repo.Append(ctx, "uid-1", older))
	require.NoError(t, repo.Append(ctx, "uid-1", newer))

	list, cancelList := f.usecase.Notifications()
	defer cancelList()
	f.signIn()

	notifications := awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 2 })
	assert.Equal(t, "newer", notifications[0].Message)
	assert.Equal(t, "older", notifications[1].Message)

	// Everything present at watch start counts as read.
	assert.Equal(t, 0, f.usecase.CurrentUnread())
}

func TestUnreadCountsOnlyNewArrivals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	repo := repository.NewNotificationRepository(f.store)
	preexisting := &domain.Notification{Sender: domain.Sender, Message: "seen before", Timestamp: f.clock.Now().Add(-time.Hour).UnixMilli()}
	require.NoError(t, repo.Append(ctx, "uid-1", preexisting))

	list, cancelList := f.usecase.Notifications()
	defer cancelList()
	unread, cancelUnread := f.usecase.UnreadCount()
	defer cancelUnread()

	f.signIn()
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 1 })

	f.clock.Advance(time.Minute)
	require.NoError(t, f.usecase.SendBooked(ctx, "uid-1", "Alice", "alice@example.com", f.clock.Now().Add(24*time.Hour)))

	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 2 })
	awaitCount(t, unread, 1)
}

func TestClearUnreadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, cancelList := f.usecase.Notifications()
	defer cancelList()
	f.signIn()
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 0 })

	f.clock.Advance(time.Minute)
	require.NoError(t, f.usecase.SendBooked(ctx, "uid-1", "Alice", "alice@example.com", f.clock.Now()))
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 1 })
	assert.Equal(t, 1, f.usecase.CurrentUnread())

	f.clock.Advance(time.Minute)
	f.usecase.ClearUnread()
	assert.Equal(t, 0, f.usecase.CurrentUnread())
	f.usecase.ClearUnread()
	assert.Equal(t, 0, f.usecase.CurrentUnread())

	// A fresh arrival after clearing is unread again.
	f.clock.Advance(time.Minute)
	require.NoError(t, f.usecase.SendUpdated(ctx, "uid-1", "Alice", "alice@example.com", f.clock.Now()))
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 2 })
	assert.Equal(t, 1, f.usecase.CurrentUnread())
}

func TestCueFiresWhenFeedGrows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, cancelList := f.usecase.Notifications()
	defer cancelList()
	f.signIn()
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 0 })
	before := f.cues.Load()

	require.NoError(t, f.usecase.SendBooked(ctx, "uid-1", "Alice", "alice@example.com", f.clock.Now()))
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 1 })
	assert.Equal(t, before+1, f.cues.Load())

	// Clearing the feed shrinks it; no cue.
	require.NoError(t, f.usecase.ClearAll(ctx))
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 0 })
	assert.Equal(t, before+1, f.cues.Load())
}

func TestMessageWording(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, cancelList := f.usecase.Notifications()
	defer cancelList()
	f.signIn()
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 0 })

	today := f.clock.Now()
	require.NoError(t, f.usecase.SendBooked(ctx, "uid-1", "Alice", "alice@example.com", today))
	require.NoError(t, f.usecase.SendUpdated(ctx, "uid-1", "Alice", "alice@example.com", today.Add(24*time.Hour)))
	require.NoError(t, f.usecase.SendCancelled(ctx, "uid-1", "Alice", "alice@example.com", today.AddDate(0, 0, 7)))

	notifications := awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 3 })
	messages := make([]string, 0, 3)
	for _, n := range notifications {
		assert.Equal(t, domain.Sender, n.Sender)
		assert.False(t, n.IsRead)
		messages = append(messages, n.Message)
	}
	assert.Contains(t, messages,
		"Alice (alice@example.com) has successfully booked an appointment for today. Please review the appointment details.")
	assert.Contains(t, messages,
		"Alice (alice@example.com) has updated an appointment for tomorrow. Please review the appointment details.")
	assert.Contains(t, messages,
		"Alice (alice@example.com) has cancelled the appointment scheduled for "+today.AddDate(0, 0, 7).Format("1/2/2006")+".")
}

func TestSignOutEmptiesMirror(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, cancelList := f.usecase.Notifications()
	defer cancelList()
	f.signIn()
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 0 })

	require.NoError(t, f.usecase.SendBooked(ctx, "uid-1", "Alice", "alice@example.com", f.clock.Now()))
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 1 })

	f.session.subject.Set(nil)
	awaitList(t, list, func(n []domain.Notification) bool { return len(n) == 0 })
	assert.Equal(t, 0, f.usecase.CurrentUnread())
}

func TestDeviceTokenRegistration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signIn()

	require.NoError(t, f.usecase.RegisterDevice(ctx, "token-a"))
	require.NoError(t, f.usecase.RegisterDevice(ctx, "token-b"))

	repo := repository.NewNotificationRepository(f.store)
	tokens, err := repo.DeviceTokens(ctx, "uid-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"token-a", "token-b"}, tokens)

	require.NoError(t, f.usecase.UnregisterDevice(ctx, "token-a"))
	tokens, err = repo.DeviceTokens(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"token-b"}, tokens)
}

func TestSessionScopedCallsRequireSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Lifecycle sends target an explicit owner and do not consult the session.
	require.NoError(t, f.usecase.SendBooked(ctx, "uid-9", "Bob", "bob@example.com", f.clock.Now()))

	err := f.usecase.ClearAll(ctx)
	assert.ErrorIs(t, err, sessiondomain.ErrNotAuthenticated)
	err = f.usecase.RegisterDevice(ctx, "token")
	assert.ErrorIs(t, err, sessiondomain.ErrNotAuthenticated)
}
