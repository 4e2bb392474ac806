package bridge

import (
	"context"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"
)

// Action is a control token received from a client
type Action string

const (
	ActionPlay       Action = "play"
	ActionNext       Action = "next"
	ActionPrev       Action = "prev"
	ActionVolumeUp   Action = "volup"
	ActionVolumeDown Action = "voldown"
)

var (
	transportActions = []string{string(ActionPlay), string(ActionNext), string(ActionPrev)}
	volumeActions    = []string{string(ActionVolumeUp), string(ActionVolumeDown)}
)

// IsTransport reports whether the action goes to the media session
func (a Action) IsTransport() bool {
	return funk.ContainsString(transportActions, string(a))
}

// IsVolume reports whether the action goes to the volume controller
func (a Action) IsVolume() bool {
	return funk.ContainsString(volumeActions, string(a))
}

// IsKnown reports whether the action belongs to the closed set we understand
func (a Action) IsKnown() bool {
	return a.IsTransport() || a.IsVolume()
}

type transportSender interface {
	SendCommand(ctx context.Context, action Action) error
}

type volumeAdjuster interface {
	Adjust(ctx context.Context, delta float32) error
}

// CommandDispatcher routes every action token to exactly one subsystem, or nowhere.
// Nothing it does can fail from the caller's point of view
type CommandDispatcher struct {
	logger *zap.SugaredLogger

	media  transportSender
	volume volumeAdjuster

	// read on every dispatch so config reloads apply right away
	volumeStep func() float32
}

// NewCommandDispatcher creates a CommandDispatcher
func NewCommandDispatcher(
	logger *zap.SugaredLogger,
	media transportSender,
	volume volumeAdjuster,
	volumeStep func() float32,
) *CommandDispatcher {
	logger = logger.Named("dispatcher")

	if volumeStep == nil {
		volumeStep = func() float32 { return DefaultVolumeStep }
	}

	d := &CommandDispatcher{
		logger:     logger,
		media:      media,
		volume:     volume,
		volumeStep: volumeStep,
	}

	logger.Debug("Created command dispatcher instance")

	return d
}

// Dispatch performs the given action. Provider failures are logged and dropped here
func (d *CommandDispatcher) Dispatch(ctx context.Context, token string) {
	action := Action(token)

	if !action.IsKnown() {
		d.logger.Debugw("Ignoring unknown action", "action", token)
		return
	}

	var err error

	switch {
	case action == ActionVolumeUp:
		err = d.volume.Adjust(ctx, d.volumeStep())
	case action == ActionVolumeDown:
		err = d.volume.Adjust(ctx, -d.volumeStep())
	case action.IsTransport():
		err = d.media.SendCommand(ctx, action)
	}

	if err != nil {
		d.logger.Warnw("Failed to perform action", "action", action, "error", err)
		return
	}

	d.logger.Debugw("Performed action", "action", action)
}
