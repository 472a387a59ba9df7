package rtdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, events []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, e := range events {
			_, err := w.Write([]byte(e))
			require.NoError(t, err)
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func nextSnapshot(t *testing.T, ch <-chan json.RawMessage) map[string]any {
	t.Helper()
	select {
	case raw, ok := <-ch:
		require.True(t, ok, "stream closed early")
		var v map[string]any
		require.NoError(t, json.Unmarshal(raw, &v))
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestStreamFoldsPutsIntoSnapshots(t *testing.T) {
	srv := sseServer(t, []string{
		"event: put\ndata: {\"path\":\"/\",\"data\":{\"k1\":{\"name\":\"first\"}}}\n\n",
		"event: keep-alive\ndata: null\n\n",
		"event: put\ndata: {\"path\":\"/k2\",\"data\":{\"name\":\"second\"}}\n\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStreamer(srv.URL, nil)
	ch, err := s.Stream(ctx, "appointments/uid-1")
	require.NoError(t, err)

	first := nextSnapshot(t, ch)
	assert.Len(t, first, 1)

	second := nextSnapshot(t, ch)
	assert.Len(t, second, 2)
	k2 := second["k2"].(map[string]any)
	assert.Equal(t, "second", k2["name"])
}

func TestStreamAppliesPatchAndDelete(t *testing.T) {
	srv := sseServer(t, []string{
		"event: put\ndata: {\"path\":\"/\",\"data\":{\"k1\":{\"name\":\"a\",\"email\":\"a@x.com\"}}}\n\n",
		"event: patch\ndata: {\"path\":\"/k1\",\"data\":{\"name\":\"b\"}}\n\n",
		"event: put\ndata: {\"path\":\"/k1\",\"data\":null}\n\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStreamer(srv.URL, nil)
	ch, err := s.Stream(ctx, "appointments/uid-1")
	require.NoError(t, err)

	nextSnapshot(t, ch)

	patched := nextSnapshot(t, ch)
	k1 := patched["k1"].(map[string]any)
	assert.Equal(t, "b", k1["name"])
	assert.Equal(t, "a@x.com", k1["email"], "patch must preserve untouched fields")

	select {
	case raw, ok := <-ch:
		require.True(t, ok)
		assert.Equal(t, "null", string(raw), "deleting the last child empties the node")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delete snapshot")
	}
}

func TestStreamEndsOnCancelEvent(t *testing.T) {
	srv := sseServer(t, []string{
		"event: put\ndata: {\"path\":\"/\",\"data\":null}\n\n",
		"event: cancel\ndata: null\n\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStreamer(srv.URL, nil)
	ch, err := s.Stream(ctx, "notifications/uid-1")
	require.NoError(t, err)

	// Initial null put emits one snapshot, then the server cancels.
	<-ch
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close after cancel event")
	}
}

func TestStreamRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	s := NewStreamer(srv.URL, nil)
	_, err := s.Stream(context.Background(), "users/uid-1")
	require.Error(t, err)

	pe, ok := err.(*PersistenceError)
	require.True(t, ok)
	assert.Equal(t, KindInternal, pe.Kind)
}
