package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-system/internal/appointment/domain"
	"appointment-system/internal/appointment/repository"
	sessiondomain "appointment-system/internal/session/domain"
	"appointment-system/pkg/rtdb"
	"appointment-system/pkg/rtdb/rtdbtest"
)

type fakeSession struct {
	session *sessiondomain.Session
}

func (f *fakeSession) Current() (*sessiondomain.Session, bool) {
	if f.session == nil {
		return nil, false
	}
	return f.session, true
}

type recordedNotification struct {
	kind string
	name string
	date time.Time
}

type recordingNotifier struct {
	sent []recordedNotification
}

func (r *recordingNotifier) SendBooked(_ context.Context, _, name, _ string, date time.Time) error {
	r.sent = append(r.sent, recordedNotification{kind: "booked", name: name, date: date})
	return nil
}

func (r *recordingNotifier) SendUpdated(_ context.Context, _, name, _ string, date time.Time) error {
	r.sent = append(r.sent, recordedNotification{kind: "updated", name: name, date: date})
	return nil
}

func (r *recordingNotifier) SendCancelled(_ context.Context, _, name, _ string, date time.Time) error {
	r.sent = append(r.sent, recordedNotification{kind: "cancelled", name: name, date: date})
	return nil
}

type fixture struct {
	store    *rtdbtest.Store
	session  *fakeSession
	notifier *recordingNotifier
	usecase  AppointmentUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := rtdbtest.NewStore()
	session := &fakeSession{session: &sessiondomain.Session{UID: "uid-1", Email: "alice@example.com"}}
	notifier := &recordingNotifier{}
	repo := repository.NewAppointmentRepository(store)
	return &fixture{
		store:    store,
		session:  session,
		notifier: notifier,
		usecase:  NewAppointmentUsecase(repo, session, notifier),
	}
}

func schedule(daysAhead int) int64 {
	return time.Now().AddDate(0, 0, daysAhead).UnixMilli()
}

func TestBookStampsIdentifier(t *testing.T) {
	f := newFixture(t)

	created, err := f.usecase.Book(context.Background(), &domain.Appointment{
		Name:         "Alice",
		Email:        "alice@example.com",
		SelectedDate: schedule(1),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	stored, err := f.usecase.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID, "stored identifier matches the allocated key")
	assert.Equal(t, "Alice", stored.Name)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "booked", f.notifier.sent[0].kind)
}

func TestBookWhileSignedOut(t *testing.T) {
	f := newFixture(t)
	f.session.session = nil

	_, err := f.usecase.Book(context.Background(), &domain.Appointment{
		Name:         "Alice",
		SelectedDate: schedule(1),
	})
	require.Error(t, err)
	assert.True(t, rtdb.IsUnauthenticated(err))

	// The failed call must not have materialized anything in the store.
	assert.Nil(t, f.store.Value("appointments"))
	assert.Empty(t, f.notifier.sent)
}

func TestEditPreservesIdentifier(t *testing.T) {
	f := newFixture(t)

	created, err := f.usecase.Book(context.Background(), &domain.Appointment{
		Name:         "Alice",
		Email:        "alice@example.com",
		SelectedDate: schedule(1),
	})
	require.NoError(t, err)

	created.Name = "Alice B"
	created.SelectedDate = schedule(2)
	require.NoError(t, f.usecase.Edit(context.Background(), created))

	stored, err := f.usecase.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
	assert.Equal(t, "Alice B", stored.Name)

	require.Len(t, f.notifier.sent, 2)
	assert.Equal(t, "updated", f.notifier.sent[1].kind)
}

func TestEditWithoutIdentifier(t *testing.T) {
	f := newFixture(t)
	err := f.usecase.Edit(context.Background(), &domain.Appointment{Name: "Alice"})
	require.Error(t, err)
}

func TestCancelRemovesAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)

	when := schedule(1)
	created, err := f.usecase.Book(context.Background(), &domain.Appointment{
		Name:         "Alice",
		Email:        "alice@example.com",
		SelectedDate: when,
	})
	require.NoError(t, err)

	require.NoError(t, f.usecase.Cancel(context.Background(), created.ID))

	_, err = f.usecase.Get(context.Background(), created.ID)
	assert.True(t, rtdb.IsNotFound(err))

	var cancellations []recordedNotification
	for _, n := range f.notifier.sent {
		if n.kind == "cancelled" {
			cancellations = append(cancellations, n)
		}
	}
	require.Len(t, cancellations, 1)
	// The message carries the schedule of the record that was removed.
	assert.Equal(t, time.UnixMilli(when), cancellations[0].date)
}

func TestCancelUnknownIdentifier(t *testing.T) {
	f := newFixture(t)
	err := f.usecase.Cancel(context.Background(), "missing")
	assert.True(t, rtdb.IsNotFound(err))
	assert.Empty(t, f.notifier.sent)
}

func TestWatchSortsBySchedule(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	later, err := f.usecase.Book(ctx, &domain.Appointment{Name: "Later", SelectedDate: schedule(5)})
	require.NoError(t, err)
	sooner, err := f.usecase.Book(ctx, &domain.Appointment{Name: "Sooner", SelectedDate: schedule(1)})
	require.NoError(t, err)

	watch, err := f.usecase.Watch(ctx)
	require.NoError(t, err)

	select {
	case appointments := <-watch:
		require.Len(t, appointments, 2)
		assert.Equal(t, sooner.ID, appointments[0].ID)
		assert.Equal(t, later.ID, appointments[1].ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for appointment snapshot")
	}
}

func TestSearchMatchesNameSubstring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.usecase.Book(ctx, &domain.Appointment{Name: "Alice Smith", SelectedDate: schedule(1)})
	require.NoError(t, err)
	_, err = f.usecase.Book(ctx, &domain.Appointment{Name: "Bob Jones", SelectedDate: schedule(2)})
	require.NoError(t, err)

	matched, err := f.usecase.Search(ctx, "smith")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Alice Smith", matched[0].Name)

	all, err := f.usecase.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteAllClearsCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.usecase.Book(ctx, &domain.Appointment{Name: "Alice", SelectedDate: schedule(1)})
	require.NoError(t, err)

	require.NoError(t, f.usecase.DeleteAll(ctx, "uid-1"))
	remaining, err := f.usecase.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
