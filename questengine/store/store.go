// Package store implements the durable key/value state file shared by every
// engine component. Values are JSON, writes are atomic (temp file + rename),
// and subscribers on a key are notified synchronously after each write. A
// second process (or a second handle in the same process) holding the same
// file converges by polling the file's version counter, see Poll and Watch.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileState struct {
	Version int64                      `json:"version"`
	Entries map[string]json.RawMessage `json:"entries"`
}

type subscription struct {
	id int64
	fn func()
}

type Store struct {
	mu      sync.Mutex
	path    string
	version int64
	entries map[string]json.RawMessage
	subs    map[string][]subscription
	nextSub int64
}

// Open creates the data directory if needed and loads the state file at
// path. A missing or corrupt file starts empty rather than failing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &Store{
		path:    path,
		entries: make(map[string]json.RawMessage),
		subs:    make(map[string][]subscription),
	}
	s.mu.Lock()
	s.loadLocked()
	s.mu.Unlock()
	return s, nil
}

func (s *Store) loadLocked() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read state file, starting empty",
				slog.String("type", "store"),
				slog.String("path", s.path),
				slog.Any("error", err))
		}
		s.version = 0
		s.entries = make(map[string]json.RawMessage)
		return
	}

	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		slog.Warn("Corrupt state file, reinitializing",
			slog.String("type", "store"),
			slog.String("path", s.path),
			slog.Any("error", err))
		s.version = 0
		s.entries = make(map[string]json.RawMessage)
		return
	}

	s.version = fs.Version
	s.entries = fs.Entries
	if s.entries == nil {
		s.entries = make(map[string]json.RawMessage)
	}
}

func (s *Store) persistLocked() error {
	data, err := json.Marshal(fileState{Version: s.version, Entries: s.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Read unmarshals the value stored under key into v and reports whether a
// usable value was present. Missing or corrupt entries leave v untouched
// and return false; callers fall back to their zero state.
func (s *Store) Read(key string, v any) bool {
	s.mu.Lock()
	raw, ok := s.entries[key]
	s.mu.Unlock()

	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		slog.Warn("Corrupt entry, falling back to default",
			slog.String("type", "store"),
			slog.String("key", key),
			slog.Any("error", err))
		return false
	}
	return true
}

// Write persists the value under key and notifies this handle's subscribers
// for that key before returning. External changes adopted during the merge
// notify their keys' subscribers too; the merge fast-forwards the version
// counter, so a later Poll would not see them.
func (s *Store) Write(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %q: %w", key, err)
	}

	s.mu.Lock()
	// Pick up writes from other handles so a stale in-memory copy does not
	// clobber their keys.
	merged := s.mergeFromDiskLocked()

	s.entries[key] = raw
	s.version++
	if err := s.persistLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	fns := s.subscribersLocked(key)
	var mergedFns []func()
	for _, k := range merged {
		if k == key {
			continue
		}
		mergedFns = append(mergedFns, s.subscribersLocked(k)...)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	if len(mergedFns) > 0 {
		// Delivered off the writer's goroutine, the way a poll would
		// have; a synchronous call could re-enter the writer's own
		// critical section.
		go func() {
			for _, fn := range mergedFns {
				fn()
			}
		}()
	}
	return nil
}

// Subscribe registers fn to run after every write to key through this
// handle, and after Poll observes an external change to key. The returned
// func removes the subscription.
func (s *Store) Subscribe(key string, fn func()) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[key] = append(s.subs[key], subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[key]
		for i, sub := range subs {
			if sub.id == id {
				s.subs[key] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Poll reloads the state file if another handle has advanced its version
// and fires subscriptions for every key whose value changed.
func (s *Store) Poll() {
	s.mu.Lock()
	changed := s.mergeFromDiskLocked()
	var fns []func()
	for _, key := range changed {
		fns = append(fns, s.subscribersLocked(key)...)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Watch polls for external changes every interval until ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Poll()
		}
	}
}

// mergeFromDiskLocked adopts the on-disk state when it is newer than the
// in-memory copy and returns the keys whose values changed.
func (s *Store) mergeFromDiskLocked() []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var fs fileState
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil
	}
	if fs.Version <= s.version {
		return nil
	}

	var changed []string
	for key, raw := range fs.Entries {
		if !bytes.Equal(s.entries[key], raw) {
			changed = append(changed, key)
		}
	}
	for key := range s.entries {
		if _, ok := fs.Entries[key]; !ok {
			changed = append(changed, key)
		}
	}

	s.version = fs.Version
	s.entries = fs.Entries
	if s.entries == nil {
		s.entries = make(map[string]json.RawMessage)
	}
	return changed
}

func (s *Store) subscribersLocked(key string) []func() {
	subs := s.subs[key]
	if len(subs) == 0 {
		return nil
	}
	fns := make([]func(), 0, len(subs))
	for _, sub := range subs {
		fns = append(fns, sub.fn)
	}
	return fns
}
