package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	profiledomain "appointment-system/internal/profile/domain"
	"appointment-system/internal/session/domain"
	"appointment-system/pkg/blob/blobtest"
	"appointment-system/pkg/identity"
	"appointment-system/pkg/reactive"
	"appointment-system/pkg/rtdb/rtdbtest"
)

// authBackend is a minimal identity toolkit fake holding one mutable account.
type authBackend struct {
	email    string
	password string
	name     string
	uid      string
	verified bool
	deleted  bool
}

func (b *authBackend) serve(t *testing.T) *httptest.Server {
	t.Helper()

	writeErr := func(w http.ResponseWriter, code string) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 400, "message": code}})
	}
	tokens := func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]any{
			"localId": b.uid, "email": b.email, "displayName": b.name,
			"idToken": "id-token", "refreshToken": "refresh", "expiresIn": "3600",
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts:signUp", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if b.email != "" && req["email"] == b.email {
			writeErr(w, "EMAIL_EXISTS")
			return
		}
		b.email = req["email"].(string)
		b.password = req["password"].(string)
		tokens(w)
	})
	mux.HandleFunc("/accounts:signInWithPassword", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["email"] != b.email || req["password"] != b.password || b.deleted {
			writeErr(w, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		tokens(w)
	})
	mux.HandleFunc("/accounts:update", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if name, ok := req["displayName"].(string); ok {
			b.name = name
		}
		if password, ok := req["password"].(string); ok {
			b.password = password
		}
		tokens(w)
	})
	mux.HandleFunc("/accounts:lookup", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{{
				"localId": b.uid, "email": b.email, "displayName": b.name,
				"emailVerified": b.verified,
			}},
		})
	})
	mux.HandleFunc("/accounts:sendOobCode", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"email": b.email})
	})
	mux.HandleFunc("/accounts:delete", func(w http.ResponseWriter, r *http.Request) {
		b.deleted = true
		json.NewEncoder(w).Encode(map[string]any{})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T) (*authBackend, SessionUsecase, *rtdbtest.Store, *blobtest.Store) {
	t.Helper()
	backend := &authBackend{uid: "uid-1"}
	srv := backend.serve(t)

	store := rtdbtest.NewStore()
	blobs := blobtest.NewStore()
	auth := identity.NewClient("test-key", srv.URL, srv.URL)
	subject := reactive.NewSubject[*domain.Session](nil)
	uc := NewSessionUsecase(auth, store, blobs, nil, subject)
	return backend, uc, store, blobs
}

func recvSession(t *testing.T, ch <-chan *domain.Session) *domain.Session {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for identity stream")
		return nil
	}
}

func TestSignUpStoresNameAndColor(t *testing.T) {
	backend, uc, store, _ := newFixture(t)
	ctx := context.Background()

	session, err := uc.SignUp(ctx, "alice@x.com", "Passw0rd!", "Alice")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", session.UID)
	assert.Equal(t, "Alice", backend.name, "display name pushed to the auth provider")

	record := store.Value(profiledomain.Path("uid-1")).(map[string]any)
	assert.Equal(t, "Alice", record["name"])
	color := record["backgroundColor"].(string)
	require.Len(t, color, 7)
	assert.Equal(t, uint8('#'), color[0])

	current, ok := uc.Current()
	require.True(t, ok)
	assert.Equal(t, "uid-1", current.UID)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	_, uc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := uc.SignUp(ctx, "alice@x.com", "Passw0rd!", "Alice")
	require.NoError(t, err)
	uc.SignOut()

	_, err = uc.SignUp(ctx, "alice@x.com", "Passw0rd!", "Alice Again")
	require.Error(t, err)
	assert.True(t, identity.IsEmailInUse(err))

	_, ok := uc.Current()
	assert.False(t, ok, "failed sign-up must not produce a session")
}

func TestSignInPublishesIdentityStream(t *testing.T) {
	_, uc, _, _ := newFixture(t)
	ctx := context.Background()

	ch, cancel := uc.Identity()
	defer cancel()
	assert.Nil(t, recvSession(t, ch), "stream replays signed-out state first")

	_, err := uc.SignUp(ctx, "alice@x.com", "Passw0rd!", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", recvSession(t, ch).UID)

	uc.SignOut()
	assert.Nil(t, recvSession(t, ch))

	session, err := uc.SignIn(ctx, "alice@x.com", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, session.UID, recvSession(t, ch).UID)
}

func TestSignInWrongPassword(t *testing.T) {
	_, uc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := uc.SignUp(ctx, "alice@x.com", "Passw0rd!", "Alice")
	require.NoError(t, err)
	uc.SignOut()

	_, err = uc.SignIn(ctx, "alice@x.com", "nope")
	require.Error(t, err)
	assert.True(t, identity.IsInvalidCredentials(err))
}

func TestChangePassword(t *testing.T) {
	backend, uc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := uc.SignUp(ctx, "alice@x.com", "Passw0rd!", "Alice")
	require.NoError(t, err)

	t.Run("wrong current password", func(t *testing.T) {
		err := uc.ChangePassword(ctx, "wrong", "NewPassw0rd!")
		assert.ErrorIs(t, err, domain.ErrWrongCurrentPassword)
	})

	t.Run("same password is a user error", func(t *testing.T) {
		err := uc.ChangePassword(ctx, "Passw0rd!", "Passw0rd!")
		assert.ErrorIs(t, err, domain.ErrSamePassword)
	})

	t.Run("success", func(t *testing.T) {
		err := uc.ChangePassword(ctx, "Passw0rd!", "NewPassw0rd!")
		require.NoError(t, err)
		assert.Equal(t, "NewPassw0rd!", backend.password)
	})

	t.Run("signed out", func(t *testing.T) {
		uc.SignOut()
		err := uc.ChangePassword(ctx, "NewPassw0rd!", "Other1!")
		assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	})
}

func TestIsEmailVerified(t *testing.T) {
	backend, uc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := uc.SignUp(ctx, "alice@x.com", "Passw0rd!", "Alice")
	require.NoError(t, err)

	verified, err := uc.IsEmailVerified(ctx, "uid-1")
	require.NoError(t, err)
	assert.False(t, verified)

	backend.verified = true
	verified, err = uc.IsEmailVerified(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, verified)

	// Identifier mismatch must not trust the flag.
	verified, err = uc.IsEmailVerified(ctx, "someone-else")
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestDeleteAuthRecordSignsOut(t *testing.T) {
	backend, uc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := uc.SignUp(ctx, "alice@x.com", "Passw0rd!", "Alice")
	require.NoError(t, err)

	require.NoError(t, uc.DeleteAuthRecord(ctx))

	assert.True(t, backend.deleted)
	_, ok := uc.Current()
	assert.False(t, ok)
}

func TestRandomColorShape(t *testing.T) {
	_, uc, _, _ := newFixture(t)

	for i := 0; i < 20; i++ {
		color := uc.RandomColor()
		require.Len(t, color, 7)
		require.Equal(t, uint8('#'), color[0])
		for _, r := range color[1:] {
			assert.Contains(t, "0123456789ABCDEF", string(r))
		}
	}
}
