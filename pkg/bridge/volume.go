package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stalexteam/mediabridge/pkg/bridge/util"
)

// DefaultVolumeStep is how much a single volup/voldown moves the master volume
const DefaultVolumeStep float32 = 0.05

// EndpointProvider sets up a fresh audio context bound to the default output device.
// Contexts are owned by exactly one call and must not be shared across goroutines
type EndpointProvider interface {
	Acquire(ctx context.Context) (EndpointContext, error)
}

// EndpointContext exposes the master volume scalar of one output device
type EndpointContext interface {
	MasterVolume() (float32, error)
	SetMasterVolume(v float32) error
	Release()
}

// VolumeController adjusts the master output volume relative to its current value
type VolumeController struct {
	logger   *zap.SugaredLogger
	provider EndpointProvider
}

// NewVolumeController creates a VolumeController on top of the given endpoint provider
func NewVolumeController(logger *zap.SugaredLogger, provider EndpointProvider) *VolumeController {
	logger = logger.Named("volume")

	vc := &VolumeController{
		logger:   logger,
		provider: provider,
	}

	logger.Debug("Created volume controller instance")

	return vc
}

// Adjust moves the master volume by delta, clamped to [0, 1]. The audio context is acquired and
// released within this call regardless of how it ends
func (vc *VolumeController) Adjust(ctx context.Context, delta float32) error {
	endpoint, err := vc.provider.Acquire(ctx)
	if err != nil {
		return providerError("acquire audio endpoint", err)
	}
	defer endpoint.Release()

	current, err := endpoint.MasterVolume()
	if err != nil {
		return providerError("get master volume", err)
	}

	target := util.ClampScalar(util.RoundScalar(current + delta))

	if err := endpoint.SetMasterVolume(target); err != nil {
		return providerError("set master volume", err)
	}

	vc.logger.Debugw("Adjusted master volume",
		"from", fmt.Sprintf("%.2f", current),
		"to", fmt.Sprintf("%.2f", target))

	return nil
}
