//go:build windows
// +build windows

package bridge

import (
	"context"
	"fmt"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"go.uber.org/zap"
)

const gsmtcManagerClass = "Windows.Media.Control.GlobalSystemMediaTransportControlsSessionManager"

var iidGSMTCManagerStatics = ole.NewGUID("{2050C4EE-11A0-57DE-AED7-C97C70338245}")

// IGlobalSystemMediaTransportControlsSessionManagerStatics
const managerStaticsRequestAsync = inspectableMethods + 0

// IGlobalSystemMediaTransportControlsSessionManager
const managerGetCurrentSession = inspectableMethods + 0

// IGlobalSystemMediaTransportControlsSession
const (
	sessionGetSourceAppUserModelID    = inspectableMethods + 0
	sessionTryGetMediaPropertiesAsync = inspectableMethods + 1
	sessionGetPlaybackInfo            = inspectableMethods + 3
	sessionTrySkipNextAsync           = inspectableMethods + 10
	sessionTrySkipPreviousAsync       = inspectableMethods + 11
	sessionTryTogglePlayPauseAsync    = inspectableMethods + 14
)

// IGlobalSystemMediaTransportControlsSessionMediaProperties
const (
	mediaPropertiesGetTitle      = inspectableMethods + 0
	mediaPropertiesGetArtist     = inspectableMethods + 3
	mediaPropertiesGetAlbumTitle = inspectableMethods + 4
)

// IGlobalSystemMediaTransportControlsSessionPlaybackInfo
const playbackInfoGetPlaybackStatus = inspectableMethods + 1

// gsmtcProvider talks to the Global System Media Transport Controls, which is what the
// Windows volume flyout uses to show and control whatever is playing
type gsmtcProvider struct {
	logger *zap.SugaredLogger
}

type gsmtcManager struct {
	logger  *zap.SugaredLogger
	manager unsafe.Pointer
	release func()
}

type gsmtcSession struct {
	logger    *zap.SugaredLogger
	session   unsafe.Pointer
	sourceApp string
}

func newMediaProvider(logger *zap.SugaredLogger) (MediaProvider, error) {
	p := &gsmtcProvider{logger: logger.Named("gsmtc")}

	p.logger.Debug("Created GSMTC media provider instance")

	return p, nil
}

// RequestManager initializes WinRT for the calling thread and asks for the session manager.
// Everything until Release must happen on the same goroutine
func (p *gsmtcProvider) RequestManager(ctx context.Context) (MediaManager, error) {
	release, err := comScope()
	if err != nil {
		return nil, err
	}

	factory, err := ole.RoGetActivationFactory(gsmtcManagerClass, iidGSMTCManagerStatics)
	if err != nil {
		release()
		return nil, fmt.Errorf("get session manager factory: %w", err)
	}
	defer factory.Release()

	var operation unsafe.Pointer
	if err := comCall(unsafe.Pointer(factory), managerStaticsRequestAsync, uintptr(unsafe.Pointer(&operation))); err != nil {
		release()
		return nil, fmt.Errorf("request session manager: %w", err)
	}
	defer comRelease(operation)

	var manager unsafe.Pointer
	if err := awaitAsync(ctx, operation, unsafe.Pointer(&manager)); err != nil {
		release()
		return nil, fmt.Errorf("await session manager: %w", err)
	}

	return &gsmtcManager{
		logger:  p.logger,
		manager: manager,
		release: release,
	}, nil
}

func (m *gsmtcManager) CurrentSession(ctx context.Context) (MediaSession, error) {
	var session unsafe.Pointer
	if err := comCall(m.manager, managerGetCurrentSession, uintptr(unsafe.Pointer(&session))); err != nil {
		return nil, fmt.Errorf("get current session: %w", err)
	}

	// no session is not an error
	if session == nil {
		return nil, nil
	}

	sourceApp, err := comGetString(session, sessionGetSourceAppUserModelID)
	if err != nil {
		m.logger.Debugw("Failed to get session source app", "error", err)
	}

	return &gsmtcSession{
		logger:    m.logger,
		session:   session,
		sourceApp: sourceApp,
	}, nil
}

func (m *gsmtcManager) Release() {
	comRelease(m.manager)
	m.manager = nil

	if m.release != nil {
		m.release()
		m.release = nil
	}
}

func (s *gsmtcSession) SourceApp() string {
	return s.sourceApp
}

func (s *gsmtcSession) MediaProperties(ctx context.Context) (MediaProperties, error) {
	var operation unsafe.Pointer
	if err := comCall(s.session, sessionTryGetMediaPropertiesAsync, uintptr(unsafe.Pointer(&operation))); err != nil {
		return MediaProperties{}, fmt.Errorf("request media properties: %w", err)
	}
	defer comRelease(operation)

	var props unsafe.Pointer
	if err := awaitAsync(ctx, operation, unsafe.Pointer(&props)); err != nil {
		return MediaProperties{}, fmt.Errorf("await media properties: %w", err)
	}
	if props == nil {
		return MediaProperties{}, nil
	}
	defer comRelease(props)

	var result MediaProperties
	var err error

	if result.Title, err = comGetString(props, mediaPropertiesGetTitle); err != nil {
		return MediaProperties{}, fmt.Errorf("get title: %w", err)
	}

	if result.Artist, err = comGetString(props, mediaPropertiesGetArtist); err != nil {
		return MediaProperties{}, fmt.Errorf("get artist: %w", err)
	}

	if result.AlbumTitle, err = comGetString(props, mediaPropertiesGetAlbumTitle); err != nil {
		return MediaProperties{}, fmt.Errorf("get album title: %w", err)
	}

	return result, nil
}

func (s *gsmtcSession) PlaybackInfo(ctx context.Context) (PlaybackInfo, error) {
	var info unsafe.Pointer
	if err := comCall(s.session, sessionGetPlaybackInfo, uintptr(unsafe.Pointer(&info))); err != nil {
		return PlaybackInfo{}, fmt.Errorf("get playback info: %w", err)
	}
	if info == nil {
		return PlaybackInfo{Status: PlaybackStatusClosed}, nil
	}
	defer comRelease(info)

	// the WinRT enum has the same ordering as PlaybackStatus
	var status int32
	if err := comCall(info, playbackInfoGetPlaybackStatus, uintptr(unsafe.Pointer(&status))); err != nil {
		return PlaybackInfo{}, fmt.Errorf("get playback status: %w", err)
	}

	return PlaybackInfo{Status: PlaybackStatus(status)}, nil
}

func (s *gsmtcSession) TogglePlayPause(ctx context.Context) (bool, error) {
	return s.tryTransport(ctx, sessionTryTogglePlayPauseAsync)
}

func (s *gsmtcSession) SkipNext(ctx context.Context) (bool, error) {
	return s.tryTransport(ctx, sessionTrySkipNextAsync)
}

func (s *gsmtcSession) SkipPrevious(ctx context.Context) (bool, error) {
	return s.tryTransport(ctx, sessionTrySkipPreviousAsync)
}

func (s *gsmtcSession) Release() {
	comRelease(s.session)
	s.session = nil
}

// tryTransport calls one of the Try*Async methods, which all resolve to IAsyncOperation<bool>
func (s *gsmtcSession) tryTransport(ctx context.Context, slot int) (bool, error) {
	var operation unsafe.Pointer
	if err := comCall(s.session, slot, uintptr(unsafe.Pointer(&operation))); err != nil {
		return false, fmt.Errorf("start transport request: %w", err)
	}
	defer comRelease(operation)

	// WinRT booleans are a single byte
	var accepted byte
	if err := awaitAsync(ctx, operation, unsafe.Pointer(&accepted)); err != nil {
		return false, fmt.Errorf("await transport request: %w", err)
	}

	return accepted != 0, nil
}
