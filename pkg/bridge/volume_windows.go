//go:build windows
// +build windows

package bridge

import (
	"context"
	"fmt"

	wca "github.com/moutend/go-wca"
	"go.uber.org/zap"
)

type wcaEndpointProvider struct {
	logger *zap.SugaredLogger
}

// wcaEndpoint wraps the IAudioEndpointVolume of the default multimedia render device
type wcaEndpoint struct {
	logger *zap.SugaredLogger

	enumerator *wca.IMMDeviceEnumerator
	device     *wca.IMMDevice
	volume     *wca.IAudioEndpointVolume

	release func()
}

func newEndpointProvider(logger *zap.SugaredLogger) (EndpointProvider, error) {
	p := &wcaEndpointProvider{logger: logger.Named("wca")}

	p.logger.Debug("Created WCA endpoint provider instance")

	return p, nil
}

// Acquire resolves the default output device from scratch every time, so switching
// speakers/headphones between calls is picked up
func (p *wcaEndpointProvider) Acquire(ctx context.Context) (EndpointContext, error) {
	release, err := comScope()
	if err != nil {
		return nil, err
	}

	e := &wcaEndpoint{
		logger:  p.logger,
		release: release,
	}

	if err := wca.CoCreateInstance(
		wca.CLSID_MMDeviceEnumerator,
		0,
		wca.CLSCTX_ALL,
		wca.IID_IMMDeviceEnumerator,
		&e.enumerator,
	); err != nil {
		e.Release()
		return nil, fmt.Errorf("create device enumerator: %w", err)
	}

	if err := e.enumerator.GetDefaultAudioEndpoint(wca.ERender, wca.EMultimedia, &e.device); err != nil {
		e.Release()
		return nil, fmt.Errorf("get default audio endpoint: %w", err)
	}

	if err := e.device.Activate(wca.IID_IAudioEndpointVolume, wca.CLSCTX_ALL, nil, &e.volume); err != nil {
		e.Release()
		return nil, fmt.Errorf("activate endpoint volume: %w", err)
	}

	return e, nil
}

func (e *wcaEndpoint) MasterVolume() (float32, error) {
	var level float32

	if err := e.volume.GetMasterVolumeLevelScalar(&level); err != nil {
		return 0, fmt.Errorf("get master volume level: %w", err)
	}

	return level, nil
}

func (e *wcaEndpoint) SetMasterVolume(v float32) error {
	if err := e.volume.SetMasterVolumeLevelScalar(v, nil); err != nil {
		return fmt.Errorf("set master volume level: %w", err)
	}

	return nil
}

func (e *wcaEndpoint) Release() {
	if e.volume != nil {
		e.volume.Release()
		e.volume = nil
	}

	if e.device != nil {
		e.device.Release()
		e.device = nil
	}

	if e.enumerator != nil {
		e.enumerator.Release()
		e.enumerator = nil
	}

	if e.release != nil {
		e.release()
		e.release = nil
	}
}
