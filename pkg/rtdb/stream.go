package rtdb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Streamer consumes the Realtime Database REST streaming protocol
// (text/event-stream of put/patch events) and folds the events into full
// snapshots, which is the shape subscribers consume.
type Streamer struct {
	databaseURL string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

func NewStreamer(databaseURL string, tokenSource oauth2.TokenSource) *Streamer {
	return &Streamer{
		databaseURL: strings.TrimRight(databaseURL, "/"),
		tokenSource: tokenSource,
		httpClient:  http.DefaultClient,
	}
}

type streamEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// Stream opens a listener on path and emits a full snapshot of the node after
// every change. The first emission is the node's current value. The channel
// closes when ctx is cancelled, the server cancels the stream, or the
// connection drops.
func (s *Streamer) Stream(ctx context.Context, path string) (<-chan json.RawMessage, error) {
	url := fmt.Sprintf("%s/%s.json", s.databaseURL, strings.Trim(path, "/"))
	if s.tokenSource != nil {
		token, err := s.tokenSource.Token()
		if err != nil {
			return nil, NewPersistenceError("subscribe", path, KindInternal, err)
		}
		url += "?access_token=" + token.AccessToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewPersistenceError("subscribe", path, KindInternal, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewPersistenceError("subscribe", path, KindInternal, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, NewPersistenceError("subscribe", path, KindInternal, fmt.Errorf("stream returned status %d", resp.StatusCode))
	}

	out := make(chan json.RawMessage, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		var snapshot any
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

		var event, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "":
				if event == "" {
					continue
				}
				done, changed := apply(&snapshot, event, data)
				if done {
					log.Printf("[RTDB] Stream on %s closed by server (%s)", path, event)
					return
				}
				if changed {
					raw, err := json.Marshal(snapshot)
					if err != nil {
						log.Printf("[RTDB] Failed to marshal snapshot for %s: %v", path, err)
						continue
					}
					select {
					case out <- raw:
					case <-ctx.Done():
						return
					}
				}
				event, data = "", ""
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			log.Printf("[RTDB] Stream on %s ended: %v", path, err)
		}
	}()

	return out, nil
}

// apply folds one protocol event into the snapshot. It returns whether the
// stream is finished and whether the snapshot changed.
func apply(snapshot *any, event, data string) (done, changed bool) {
	switch event {
	case "put", "patch":
	case "keep-alive":
		return false, false
	case "cancel", "auth_revoked":
		return true, false
	default:
		return false, false
	}

	var ev streamEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		log.Printf("[RTDB] Malformed %s event: %v", event, err)
		return false, false
	}

	var value any
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &value); err != nil {
			log.Printf("[RTDB] Malformed %s payload: %v", event, err)
			return false, false
		}
	}

	segments := splitPath(ev.Path)
	if event == "put" {
		*snapshot = setAt(*snapshot, segments, value)
		return false, true
	}

	// patch: merge each child key at the event path.
	fields, ok := value.(map[string]any)
	if !ok {
		log.Printf("[RTDB] Patch payload at %s is not an object", ev.Path)
		return false, false
	}
	for key, child := range fields {
		*snapshot = setAt(*snapshot, append(segments, key), child)
	}
	return false, true
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// setAt writes value at the node addressed by segments, creating intermediate
// objects as needed. A nil value deletes the node.
func setAt(node any, segments []string, value any) any {
	if len(segments) == 0 {
		return value
	}

	obj, ok := node.(map[string]any)
	if !ok {
		obj = make(map[string]any)
	}
	child := setAt(obj[segments[0]], segments[1:], value)
	if child == nil {
		delete(obj, segments[0])
	} else {
		obj[segments[0]] = child
	}
	if len(obj) == 0 {
		return nil
	}
	return obj
}
