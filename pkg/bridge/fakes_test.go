package bridge

import (
	"context"
	"sync"
)

type fakeProvider struct {
	manager *fakeManager
	err     error
}

func (p *fakeProvider) RequestManager(ctx context.Context) (MediaManager, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.manager, nil
}

type fakeManager struct {
	session MediaSession
	err     error

	released int
}

func (m *fakeManager) CurrentSession(ctx context.Context) (MediaSession, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *fakeManager) Release() {
	m.released++
}

type fakeSession struct {
	props    MediaProperties
	propsErr error
	info     PlaybackInfo
	infoErr  error
	sendErr  error

	lock          sync.Mutex
	toggles       int
	canceledSends int
	nexts         int
	prevs         int
	released      int
}

func (s *fakeSession) SourceApp() string {
	return "fake.exe"
}

func (s *fakeSession) MediaProperties(ctx context.Context) (MediaProperties, error) {
	return s.props, s.propsErr
}

func (s *fakeSession) PlaybackInfo(ctx context.Context) (PlaybackInfo, error) {
	return s.info, s.infoErr
}

func (s *fakeSession) TogglePlayPause(ctx context.Context) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	// a canceled call never reaches the player
	if err := ctx.Err(); err != nil {
		s.canceledSends++
		return false, err
	}

	s.toggles++
	return true, s.sendErr
}

func (s *fakeSession) SkipNext(ctx context.Context) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.nexts++
	return true, s.sendErr
}

func (s *fakeSession) SkipPrevious(ctx context.Context) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.prevs++
	return false, s.sendErr
}

func (s *fakeSession) Release() {
	s.released++
}

type fakeEndpointProvider struct {
	endpoint *fakeEndpoint
	err      error
}

func (p *fakeEndpointProvider) Acquire(ctx context.Context) (EndpointContext, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.endpoint, nil
}

type fakeEndpoint struct {
	level  float32
	getErr error
	setErr error

	writes   []float32
	released int
}

func (e *fakeEndpoint) MasterVolume() (float32, error) {
	return e.level, e.getErr
}

func (e *fakeEndpoint) SetMasterVolume(v float32) error {
	if e.setErr != nil {
		return e.setErr
	}

	e.writes = append(e.writes, v)
	e.level = v
	return nil
}

func (e *fakeEndpoint) Release() {
	e.released++
}

// recordingSender and recordingAdjuster stand in for the media adapter and volume controller
type recordingSender struct {
	lock    sync.Mutex
	actions []Action
	err     error
}

func (r *recordingSender) SendCommand(ctx context.Context, action Action) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.actions = append(r.actions, action)
	return r.err
}

type recordingAdjuster struct {
	lock   sync.Mutex
	deltas []float32
	err    error
}

func (r *recordingAdjuster) Adjust(ctx context.Context, delta float32) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.deltas = append(r.deltas, delta)
	return r.err
}
