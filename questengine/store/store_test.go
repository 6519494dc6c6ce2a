package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s, path
}

func TestStore_ReadWrite(t *testing.T) {
	s, _ := tempStore(t)

	var missing payload
	if ok := s.Read("absent", &missing); ok {
		t.Errorf("Read() on missing key = true, want false")
	}

	want := payload{Name: "ledger", Count: 3}
	if err := s.Write("k", want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got payload
	if ok := s.Read("k", &got); !ok {
		t.Fatalf("Read() = false, want true")
	}
	if got != want {
		t.Errorf("Read() got = %+v, want %+v", got, want)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	s, path := tempStore(t)

	if err := s.Write("k", payload{Name: "x", Count: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var got payload
	if ok := reopened.Read("k", &got); !ok || got.Count != 1 {
		t.Errorf("Read() after reopen got = %+v, ok = %v", got, ok)
	}
}

func TestStore_CorruptFileReinitializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() on corrupt file error = %v", err)
	}

	var got payload
	if ok := s.Read("k", &got); ok {
		t.Errorf("Read() on reinitialized store = true, want false")
	}

	// The store must stay writable after recovery.
	if err := s.Write("k", payload{Count: 2}); err != nil {
		t.Errorf("Write() after recovery error = %v", err)
	}
}

func TestStore_CorruptEntryFallsBack(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.Write("k", "just a string"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var got payload
	if ok := s.Read("k", &got); ok {
		t.Errorf("Read() into mismatched type = true, want false")
	}
}

func TestStore_SubscribeFiresOnWrite(t *testing.T) {
	s, _ := tempStore(t)

	fired := 0
	unsub := s.Subscribe("k", func() { fired++ })

	if err := s.Write("k", payload{Count: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if fired != 1 {
		t.Errorf("subscriber fired %d times, want 1", fired)
	}

	// Writes to other keys do not notify.
	if err := s.Write("other", payload{Count: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if fired != 1 {
		t.Errorf("subscriber fired %d times after unrelated write, want 1", fired)
	}

	unsub()
	if err := s.Write("k", payload{Count: 2}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if fired != 1 {
		t.Errorf("subscriber fired %d times after unsubscribe, want 1", fired)
	}
}

func TestStore_SubscriberSeesOwnWrite(t *testing.T) {
	s, _ := tempStore(t)

	var seen payload
	s.Subscribe("k", func() {
		s.Read("k", &seen)
	})

	if err := s.Write("k", payload{Count: 7}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if seen.Count != 7 {
		t.Errorf("subscriber read Count = %d, want 7", seen.Count)
	}
}

func TestStore_CrossHandleConvergence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	fired := 0
	second.Subscribe("k", func() { fired++ })

	if err := first.Write("k", payload{Count: 5}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// The second handle has not observed anything yet.
	var got payload
	if ok := second.Read("k", &got); ok {
		t.Fatalf("Read() before poll = true, want false")
	}

	second.Poll()

	if fired != 1 {
		t.Errorf("subscriber fired %d times after poll, want 1", fired)
	}
	if ok := second.Read("k", &got); !ok || got.Count != 5 {
		t.Errorf("Read() after poll got = %+v, ok = %v", got, ok)
	}

	// Polling again with no new writes must not re-fire.
	second.Poll()
	if fired != 1 {
		t.Errorf("subscriber fired %d times after idle poll, want 1", fired)
	}
}

func TestStore_WriteNotifiesMergedExternalKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 4)
	first.Subscribe("k", func() { fired <- struct{}{} })

	if err := second.Write("k", payload{Count: 42}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// A write to an unrelated key merges the external change to "k", so
	// its subscriber must fire; it cannot wait for a poll that will never
	// see a version gap.
	if err := first.Write("other", payload{Count: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not fire after the merging write")
	}

	var got payload
	if ok := first.Read("k", &got); !ok || got.Count != 42 {
		t.Errorf(`Read("k") got = %+v, ok = %v, want Count 42`, got, ok)
	}

	// The change was already delivered; a poll must not replay it.
	first.Poll()
	select {
	case <-fired:
		t.Error("subscriber fired again after an idle poll")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_WriteDoesNotDoubleNotifyOwnKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	fired := 0
	first.Subscribe("k", func() { fired++ })

	if err := second.Write("k", payload{Count: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	// first overwrites "k" while merging second's change to the same key;
	// one notification covers both.
	if err := first.Write("k", payload{Count: 2}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if fired != 1 {
		t.Errorf("subscriber fired %d times, want 1", fired)
	}
}

func TestStore_WriteMergesExternalKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	first, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := first.Write("a", payload{Count: 1}); err != nil {
		t.Fatal(err)
	}
	// A write through the second handle must not clobber "a".
	if err := second.Write("b", payload{Count: 2}); err != nil {
		t.Fatal(err)
	}

	third, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	var got payload
	if ok := third.Read("a", &got); !ok || got.Count != 1 {
		t.Errorf(`Read("a") got = %+v, ok = %v, want Count 1`, got, ok)
	}
	if ok := third.Read("b", &got); !ok || got.Count != 2 {
		t.Errorf(`Read("b") got = %+v, ok = %v, want Count 2`, got, ok)
	}
}
