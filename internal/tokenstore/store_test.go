package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

// both in-process backends run the same behavioral suite
func stores(t *testing.T) map[string]Store {
	t.Helper()

	file, err := NewFile(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("NewFile() failed: %v", err)
	}

	return map[string]Store{
		"memory": NewMemory(),
		"file":   file,
	}
}

func TestExpiredRule(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		stored bool
		want   bool
	}{
		{name: "no expiry stored", stored: false, want: true},
		{name: "one nanosecond before expiry", expiry: now.Add(time.Nanosecond), stored: true, want: false},
		{name: "exactly at expiry", expiry: now, stored: true, want: true},
		{name: "one nanosecond past expiry", expiry: now.Add(-time.Nanosecond), stored: true, want: true},
		{name: "zero expiry stored", expiry: time.Time{}, stored: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expired(now, tt.expiry, tt.stored); got != tt.want {
				t.Errorf("expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok := s.AccessToken(); ok {
				t.Fatal("AccessToken() present on empty store")
			}
			if !s.Expired() {
				t.Error("Expired() = false on empty store")
			}

			if err := s.SetTokens("access-1", "refresh-1"); err != nil {
				t.Fatalf("SetTokens() failed: %v", err)
			}
			expiry := time.Now().Add(time.Hour).UTC()
			if err := s.SetExpiry(expiry); err != nil {
				t.Fatalf("SetExpiry() failed: %v", err)
			}

			access, ok := s.AccessToken()
			if !ok || access != "access-1" {
				t.Errorf("AccessToken() = %q, %v; want %q, true", access, ok, "access-1")
			}
			refresh, ok := s.RefreshToken()
			if !ok || refresh != "refresh-1" {
				t.Errorf("RefreshToken() = %q, %v; want %q, true", refresh, ok, "refresh-1")
			}
			got, ok := s.ExpiresAt()
			if !ok || !got.Equal(expiry) {
				t.Errorf("ExpiresAt() = %v, %v; want %v, true", got, ok, expiry)
			}
			if s.Expired() {
				t.Error("Expired() = true for expiry an hour out")
			}

			snapshot := json.RawMessage(`{"id":"u1","role":"teacher"}`)
			if err := s.SetUser(snapshot); err != nil {
				t.Fatalf("SetUser() failed: %v", err)
			}
			gotUser, ok := s.User()
			if !ok || string(gotUser) != string(snapshot) {
				t.Errorf("User() = %s, %v; want %s, true", gotUser, ok, snapshot)
			}
		})
	}
}

func TestClearIsIdempotent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SetCredentials(Credentials{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				ExpiresAt:    time.Now().Add(time.Hour),
			}); err != nil {
				t.Fatalf("SetCredentials() failed: %v", err)
			}
			if err := s.SetUser(json.RawMessage(`{"id":"u1"}`)); err != nil {
				t.Fatalf("SetUser() failed: %v", err)
			}

			// Clearing repeatedly must land in the same state as once
			for i := 0; i < 3; i++ {
				if err := s.Clear(); err != nil {
					t.Fatalf("Clear() call %d failed: %v", i+1, err)
				}
			}

			if _, ok := s.AccessToken(); ok {
				t.Error("AccessToken() present after Clear()")
			}
			if _, ok := s.RefreshToken(); ok {
				t.Error("RefreshToken() present after Clear()")
			}
			if _, ok := s.ExpiresAt(); ok {
				t.Error("ExpiresAt() present after Clear()")
			}
			if _, ok := s.User(); ok {
				t.Error("User() present after Clear()")
			}
			if !s.Expired() {
				t.Error("Expired() = false after Clear()")
			}
		})
	}
}

func TestFileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile() failed: %v", err)
	}

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	if err := s.SetCredentials(Credentials{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiry,
	}); err != nil {
		t.Fatalf("SetCredentials() failed: %v", err)
	}

	reopened, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile() reopen failed: %v", err)
	}

	access, ok := reopened.AccessToken()
	if !ok || access != "access-1" {
		t.Errorf("AccessToken() after reopen = %q, %v; want %q, true", access, ok, "access-1")
	}
	got, ok := reopened.ExpiresAt()
	if !ok || !got.Equal(expiry) {
		t.Errorf("ExpiresAt() after reopen = %v, %v; want %v, true", got, ok, expiry)
	}
}

func TestCorruptFileReadsAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile() failed: %v", err)
	}
	if err := s.SetTokens("access-1", "refresh-1"); err != nil {
		t.Fatalf("SetTokens() failed: %v", err)
	}

	// Truncate the file mid-document
	if err := os.WriteFile(path, []byte(`{"access_token":"acc`), 0o600); err != nil {
		t.Fatalf("failed to corrupt file: %v", err)
	}

	reopened, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile() on corrupt file failed: %v", err)
	}
	if _, ok := reopened.AccessToken(); ok {
		t.Error("AccessToken() present after corrupt reopen")
	}
}

// TestAtomicCredentialWrite hammers SetCredentials from one goroutine while
// readers verify they never observe a token paired with a mismatched expiry.
func TestAtomicCredentialWrite(t *testing.T) {
	s := NewMemory()

	// Each generation's expiry encodes its token, so a torn read is
	// detectable as a token/expiry pair from different generations.
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	pair := func(gen int) Credentials {
		return Credentials{
			AccessToken:  "access-" + strconv.Itoa(gen),
			RefreshToken: "refresh-" + strconv.Itoa(gen),
			ExpiresAt:    base.Add(time.Duration(gen) * time.Second),
		}
	}

	const generations = 500
	done := make(chan struct{})

	go func() {
		defer close(done)
		for gen := 0; gen < generations; gen++ {
			if err := s.SetCredentials(pair(gen)); err != nil {
				t.Errorf("SetCredentials() failed: %v", err)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for reader := 0; reader < 4; reader++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				access, ok := s.AccessToken()
				if !ok {
					continue
				}
				expiry, ok := s.ExpiresAt()
				if !ok {
					t.Error("observed access token without expiry")
					return
				}
				gen := int(expiry.Sub(base) / time.Second)
				if access != pair(gen).AccessToken {
					t.Errorf("torn read: token %q with expiry generation %d", access, gen)
					return
				}
			}
		}()
	}

	<-done
	wg.Wait()
}
