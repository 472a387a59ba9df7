// Package rtdbtest provides an in-memory rtdb.Store for tests. It mirrors the
// database's semantics closely enough for the data layer: path-addressed
// nodes, push-generated ordered keys, and full-snapshot subscriptions that
// re-emit on every change under the subscribed path.
package rtdbtest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"appointment-system/pkg/rtdb"
)

type Store struct {
	mu      sync.Mutex
	root    map[string]any
	pushSeq int
	subs    []*subscription
}

type subscription struct {
	path string
	ch   chan json.RawMessage
}

var _ rtdb.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{root: make(map[string]any)}
}

func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (s *Store) get(path string) any {
	var node any = s.root
	for _, seg := range segments(path) {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = obj[seg]
	}
	return node
}

func (s *Store) set(path string, value any) {
	segs := segments(path)
	node := s.root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	last := segs[len(segs)-1]
	if value == nil {
		delete(node, last)
	} else {
		node[last] = value
	}
}

// roundTrip normalizes a typed value through JSON, matching what the real
// database hands back to subscribers.
func roundTrip(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) notify() {
	for _, sub := range s.subs {
		raw, err := json.Marshal(s.get(sub.path))
		if err != nil {
			continue
		}
		select {
		case sub.ch <- raw:
		default:
		}
	}
}

func (s *Store) Get(ctx context.Context, path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(s.get(path))
	if err != nil {
		return rtdb.NewPersistenceError("get", path, rtdb.KindInternal, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return rtdb.NewPersistenceError("get", path, rtdb.KindDecode, err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, path string, v any) error {
	value, err := roundTrip(v)
	if err != nil {
		return rtdb.NewPersistenceError("set", path, rtdb.KindInternal, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(path, value)
	s.notify()
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range fields {
		value, err := roundTrip(v)
		if err != nil {
			return rtdb.NewPersistenceError("update", path, rtdb.KindInternal, err)
		}
		s.set(path+"/"+key, value)
	}
	s.notify()
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(path, nil)
	s.notify()
	return nil
}

func (s *Store) AllocateID(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushSeq++
	return fmt.Sprintf("-push%08d", s.pushSeq), nil
}

func (s *Store) Push(ctx context.Context, path string, v any) (string, error) {
	key, err := s.AllocateID(ctx, path)
	if err != nil {
		return "", err
	}
	if err := s.Set(ctx, path+"/"+key, v); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Subscribe(ctx context.Context, path string) (<-chan json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscription{path: path, ch: make(chan json.RawMessage, 64)}
	raw, err := json.Marshal(s.get(path))
	if err != nil {
		return nil, rtdb.NewPersistenceError("subscribe", path, rtdb.KindInternal, err)
	}
	sub.ch <- raw
	s.subs = append(s.subs, sub)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, candidate := range s.subs {
			if candidate == sub {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				close(sub.ch)
				break
			}
		}
	}()
	return sub.ch, nil
}

// Value returns the decoded node at path, for assertions.
func (s *Store) Value(path string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, _ := roundTrip(s.get(path))
	return value
}
