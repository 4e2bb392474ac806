//go:build !windows && !linux
// +build !windows,!linux

package bridge

import (
	"context"
	"errors"
	"runtime"

	"go.uber.org/zap"
)

var errUnsupportedPlatform = errors.New("unsupported platform: " + runtime.GOOS)

type unsupportedProvider struct{}

func newMediaProvider(logger *zap.SugaredLogger) (MediaProvider, error) {
	logger.Warnw("Media sessions are not supported on this platform", "os", runtime.GOOS)
	return unsupportedProvider{}, nil
}

func newEndpointProvider(logger *zap.SugaredLogger) (EndpointProvider, error) {
	logger.Warnw("Volume control is not supported on this platform", "os", runtime.GOOS)
	return unsupportedProvider{}, nil
}

func (unsupportedProvider) RequestManager(ctx context.Context) (MediaManager, error) {
	return nil, errUnsupportedPlatform
}

func (unsupportedProvider) Acquire(ctx context.Context) (EndpointContext, error) {
	return nil, errUnsupportedPlatform
}
