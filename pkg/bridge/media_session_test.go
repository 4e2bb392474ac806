package bridge

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func newTestAdapter(t *testing.T, provider MediaProvider) *MediaSessionAdapter {
	return NewMediaSessionAdapter(zaptest.NewLogger(t).Sugar(), provider)
}

func TestReadSnapshotWithoutSession(t *testing.T) {
	manager := &fakeManager{}
	adapter := newTestAdapter(t, &fakeProvider{manager: manager})

	snapshot, err := adapter.ReadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot != DefaultSnapshot() {
		t.Errorf("expected default snapshot, got %v", snapshot)
	}

	if manager.released != 1 {
		t.Errorf("expected manager to be released once, got %d", manager.released)
	}
}

func TestReadSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		props    MediaProperties
		status   PlaybackStatus
		expected MediaSnapshot
	}{
		{
			name:     "playing",
			props:    MediaProperties{Title: "Song A", Artist: "Artist B", AlbumTitle: "Album C"},
			status:   PlaybackStatusPlaying,
			expected: MediaSnapshot{Title: "Song A", Artist: "Artist B", Album: "Album C", IsPlaying: true},
		},
		{
			name:     "paused",
			props:    MediaProperties{Title: "Song A", Artist: "Artist B"},
			status:   PlaybackStatusPaused,
			expected: MediaSnapshot{Title: "Song A", Artist: "Artist B"},
		},
		{
			name:     "changing is not playing",
			props:    MediaProperties{Title: "Song A", Artist: "Artist B"},
			status:   PlaybackStatusChanging,
			expected: MediaSnapshot{Title: "Song A", Artist: "Artist B"},
		},
		{
			name:     "missing fields",
			props:    MediaProperties{AlbumTitle: "Album C"},
			status:   PlaybackStatusPlaying,
			expected: MediaSnapshot{Title: unknownTitle, Artist: unknownArtist, Album: "Album C", IsPlaying: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{props: tt.props, info: PlaybackInfo{Status: tt.status}}
			manager := &fakeManager{session: session}
			adapter := newTestAdapter(t, &fakeProvider{manager: manager})

			snapshot, err := adapter.ReadSnapshot(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if snapshot != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, snapshot)
			}

			if session.released != 1 || manager.released != 1 {
				t.Errorf("expected session and manager to be released once, got %d and %d",
					session.released, manager.released)
			}
		})
	}
}

func TestReadSnapshotFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{
			name:     "manager request fails",
			provider: &fakeProvider{err: boom},
		},
		{
			name:     "current session fails",
			provider: &fakeProvider{manager: &fakeManager{err: boom}},
		},
		{
			name:     "media properties fail",
			provider: &fakeProvider{manager: &fakeManager{session: &fakeSession{propsErr: boom}}},
		},
		{
			name:     "playback info fails",
			provider: &fakeProvider{manager: &fakeManager{session: &fakeSession{infoErr: boom}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(t, tt.provider)

			_, err := adapter.ReadSnapshot(context.Background())

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected a ProviderError, got %v", err)
			}

			if !errors.Is(err, boom) {
				t.Errorf("expected the cause to be preserved, got %v", err)
			}

			if manager := tt.provider.manager; manager != nil && manager.released != 1 {
				t.Errorf("expected manager to be released once, got %d", manager.released)
			}
		})
	}
}

func TestSendCommand(t *testing.T) {
	session := &fakeSession{}
	manager := &fakeManager{session: session}
	adapter := newTestAdapter(t, &fakeProvider{manager: manager})

	for _, action := range []Action{ActionPlay, ActionPlay, ActionNext, ActionPrev} {
		if err := adapter.SendCommand(context.Background(), action); err != nil {
			t.Fatalf("send %s: %v", action, err)
		}
	}

	if session.toggles != 2 || session.nexts != 1 || session.prevs != 1 {
		t.Errorf("unexpected calls: toggles=%d nexts=%d prevs=%d", session.toggles, session.nexts, session.prevs)
	}

	if session.released != 4 || manager.released != 4 {
		t.Errorf("expected a fresh session per command, got %d session and %d manager releases",
			session.released, manager.released)
	}
}

func TestSendCommandWithoutSession(t *testing.T) {
	adapter := newTestAdapter(t, &fakeProvider{manager: &fakeManager{}})

	if err := adapter.SendCommand(context.Background(), ActionNext); err != nil {
		t.Errorf("expected no error without a session, got %v", err)
	}
}

func TestSendCommandRejectsVolumeActions(t *testing.T) {
	session := &fakeSession{}
	adapter := newTestAdapter(t, &fakeProvider{manager: &fakeManager{session: session}})

	err := adapter.SendCommand(context.Background(), ActionVolumeUp)
	if !errors.Is(err, errNotTransportAction) {
		t.Errorf("expected errNotTransportAction, got %v", err)
	}

	if session.toggles+session.nexts+session.prevs != 0 {
		t.Error("expected no session calls")
	}
}

func TestSendCommandFailure(t *testing.T) {
	boom := errors.New("boom")
	adapter := newTestAdapter(t, &fakeProvider{manager: &fakeManager{session: &fakeSession{sendErr: boom}}})

	err := adapter.SendCommand(context.Background(), ActionPlay)

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) || !errors.Is(err, boom) {
		t.Errorf("expected a ProviderError wrapping boom, got %v", err)
	}
}

func TestPlaybackStatusString(t *testing.T) {
	if PlaybackStatusPlaying.String() != "playing" {
		t.Errorf("unexpected string %q", PlaybackStatusPlaying.String())
	}

	if PlaybackStatus(42).String() != "unknown(42)" {
		t.Errorf("unexpected string %q", PlaybackStatus(42).String())
	}
}
