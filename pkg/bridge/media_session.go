package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// PlaybackStatus mirrors the OS's view of what a media session is doing
type PlaybackStatus int

const (
	PlaybackStatusClosed PlaybackStatus = iota
	PlaybackStatusOpened
	PlaybackStatusChanging
	PlaybackStatusStopped
	PlaybackStatusPlaying
	PlaybackStatusPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackStatusClosed:
		return "closed"
	case PlaybackStatusOpened:
		return "opened"
	case PlaybackStatusChanging:
		return "changing"
	case PlaybackStatusStopped:
		return "stopped"
	case PlaybackStatusPlaying:
		return "playing"
	case PlaybackStatusPaused:
		return "paused"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MediaProperties is the track metadata reported by a media session
type MediaProperties struct {
	Title      string
	Artist     string
	AlbumTitle string
}

// PlaybackInfo is the playback state reported by a media session
type PlaybackInfo struct {
	Status PlaybackStatus
}

// MediaProvider is the OS entry point to media sessions
type MediaProvider interface {
	RequestManager(ctx context.Context) (MediaManager, error)
}

// MediaManager knows which session is the current one. A nil session with a nil error means
// nothing is playing anywhere
type MediaManager interface {
	CurrentSession(ctx context.Context) (MediaSession, error)
	Release()
}

// MediaSession represents the application currently producing or controlling audio playback.
// The Try* style transport calls return the OS's best-effort acknowledgment
type MediaSession interface {
	SourceApp() string

	MediaProperties(ctx context.Context) (MediaProperties, error)
	PlaybackInfo(ctx context.Context) (PlaybackInfo, error)

	TogglePlayPause(ctx context.Context) (bool, error)
	SkipNext(ctx context.Context) (bool, error)
	SkipPrevious(ctx context.Context) (bool, error)

	Release()
}

var errNotTransportAction = errors.New("not a transport action")

// MediaSessionAdapter reads and controls whatever media session is current at the time of the call.
// It never holds on to a session between calls, since the app producing audio can change at any time
type MediaSessionAdapter struct {
	logger   *zap.SugaredLogger
	provider MediaProvider
}

// NewMediaSessionAdapter creates a MediaSessionAdapter on top of the given provider
func NewMediaSessionAdapter(logger *zap.SugaredLogger, provider MediaProvider) *MediaSessionAdapter {
	logger = logger.Named("media")

	a := &MediaSessionAdapter{
		logger:   logger,
		provider: provider,
	}

	logger.Debug("Created media session adapter instance")

	return a
}

// ReadSnapshot takes a fresh look at the current session. No session at all is a successful read
// of the default snapshot, while any provider failure is returned as a *ProviderError
func (a *MediaSessionAdapter) ReadSnapshot(ctx context.Context) (MediaSnapshot, error) {
	manager, session, err := a.acquireSession(ctx)
	if err != nil {
		return MediaSnapshot{}, err
	}
	defer manager.Release()

	if session == nil {
		return DefaultSnapshot(), nil
	}
	defer session.Release()

	props, err := session.MediaProperties(ctx)
	if err != nil {
		return MediaSnapshot{}, providerError("read media properties", err)
	}

	info, err := session.PlaybackInfo(ctx)
	if err != nil {
		return MediaSnapshot{}, providerError("read playback info", err)
	}

	snapshot := MediaSnapshot{
		Title:     props.Title,
		Artist:    props.Artist,
		Album:     props.AlbumTitle,
		IsPlaying: info.Status == PlaybackStatusPlaying,
	}

	if snapshot.Title == "" {
		snapshot.Title = unknownTitle
	}

	if snapshot.Artist == "" {
		snapshot.Artist = unknownArtist
	}

	return snapshot, nil
}

// SendCommand sends a transport command to the current session. With no session this is a no-op,
// and the OS's own verdict on whether the command did anything is ignored
func (a *MediaSessionAdapter) SendCommand(ctx context.Context, action Action) error {
	if !action.IsTransport() {
		return fmt.Errorf("send %q: %w", action, errNotTransportAction)
	}

	manager, session, err := a.acquireSession(ctx)
	if err != nil {
		return err
	}
	defer manager.Release()

	if session == nil {
		a.logger.Debugw("No current media session, dropping command", "action", action)
		return nil
	}
	defer session.Release()

	var accepted bool

	switch action {
	case ActionPlay:
		accepted, err = session.TogglePlayPause(ctx)
	case ActionNext:
		accepted, err = session.SkipNext(ctx)
	case ActionPrev:
		accepted, err = session.SkipPrevious(ctx)
	}

	if err != nil {
		return providerError(fmt.Sprintf("send %s", action), err)
	}

	a.logger.Debugw("Sent transport command",
		"action", action,
		"source", session.SourceApp(),
		"accepted", accepted)

	return nil
}

func (a *MediaSessionAdapter) acquireSession(ctx context.Context) (MediaManager, MediaSession, error) {
	manager, err := a.provider.RequestManager(ctx)
	if err != nil {
		return nil, nil, providerError("request session manager", err)
	}

	session, err := manager.CurrentSession(ctx)
	if err != nil {
		manager.Release()
		return nil, nil, providerError("get current session", err)
	}

	if session != nil {
		a.logger.Debugw("Resolved current media session", "source", session.SourceApp())
	}

	return manager, session, nil
}
