package bridge

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

func TestDefaultSnapshotJSON(t *testing.T) {
	data, err := json.Marshal(DefaultSnapshot())
	if err != nil {
		t.Fatalf("marshal default snapshot: %v", err)
	}

	expected := `{"title":"Nothing Playing","artist":"Windows Media","album":"","is_playing":false}`
	if string(data) != expected {
		t.Errorf("expected %s, got %s", expected, data)
	}
}

func TestSnapshotCacheStartsWithDefault(t *testing.T) {
	cache := NewSnapshotCache()

	if got := cache.Load(); got != DefaultSnapshot() {
		t.Errorf("expected default snapshot, got %v", got)
	}
}

func TestSnapshotCacheResolve(t *testing.T) {
	songA := MediaSnapshot{Title: "Song A", Artist: "Artist B", IsPlaying: true}
	songC := MediaSnapshot{Title: "Song C", Artist: "Artist D", Album: "Album E"}
	failure := &ProviderError{Op: "read media properties", Err: errors.New("session vanished")}

	cache := NewSnapshotCache()

	// failure before anything succeeded falls back to the default
	got, stale := cache.Resolve(MediaSnapshot{}, failure)
	if got != DefaultSnapshot() || !stale {
		t.Errorf("expected stale default snapshot, got %v (stale=%t)", got, stale)
	}

	got, stale = cache.Resolve(songA, nil)
	if got != songA || stale {
		t.Errorf("expected fresh %v, got %v (stale=%t)", songA, got, stale)
	}

	// failure after a success returns the cached value, not whatever the failed read produced
	got, stale = cache.Resolve(songC, failure)
	if got != songA || !stale {
		t.Errorf("expected stale %v, got %v (stale=%t)", songA, got, stale)
	}

	got, _ = cache.Resolve(songC, nil)
	if got != songC || cache.Load() != songC {
		t.Errorf("expected cache to hold %v, got %v", songC, cache.Load())
	}
}

func TestSnapshotCacheConcurrency(t *testing.T) {
	cache := NewSnapshotCache()

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Resolve(MediaSnapshot{Title: "writer", IsPlaying: (id+j)%2 == 0}, nil)
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = cache.Load()
				cache.Resolve(MediaSnapshot{}, errors.New("provider down"))
			}
		}()
	}

	wg.Wait()

	if got := cache.Load(); got.Title != "writer" {
		t.Errorf("expected the last stored snapshot to come from a writer, got %v", got)
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("RPC_E_DISCONNECTED")
	err := providerError("request session manager", cause)

	if !errors.Is(err, cause) {
		t.Errorf("expected provider error to wrap its cause")
	}

	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Op != "request session manager" {
		t.Errorf("expected a *ProviderError with op set, got %#v", err)
	}

	// wrapping twice keeps the innermost op
	if again := providerError("outer", err); again != err {
		t.Errorf("expected an existing provider error to pass through unchanged")
	}
}
