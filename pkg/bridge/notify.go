package bridge

import (
	"os"
	"path/filepath"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/stalexteam/mediabridge/pkg/bridge/icon"
	"github.com/stalexteam/mediabridge/pkg/bridge/util"
)

// Notifier provides generic notification sending
type Notifier interface {
	Notify(title string, message string)
}

// ToastNotifier provides toast notifications for Windows and desktop notifications for Linux
type ToastNotifier struct {
	logger *zap.SugaredLogger
}

// NewToastNotifier creates a new ToastNotifier
func NewToastNotifier(logger *zap.SugaredLogger) (*ToastNotifier, error) {
	logger = logger.Named("notifier")
	tn := &ToastNotifier{logger: logger}

	logger.Debug("Created toast notifier instance")

	return tn, nil
}

// Notify sends a toast notification (or falls back to other types of notification for older Windows versions)
func (tn *ToastNotifier) Notify(title string, message string) {

	// we need to unpack the icon to a temp file so beeep can point the OS at it
	appIconPath := filepath.Join(os.TempDir(), "mediabridge.ico")

	if !util.FileExists(appIconPath) {
		tn.logger.Debugw("Bridge icon file missing, creating", "path", appIconPath)

		f, err := os.Create(appIconPath)
		if err != nil {
			tn.logger.Errorw("Failed to create toast notification icon", "error", err)
		} else {
			if _, err = f.Write(icon.BridgeLogo); err != nil {
				tn.logger.Errorw("Failed to write toast notification icon", "error", err)
			}

			if err := f.Close(); err != nil {
				tn.logger.Errorw("Failed to close toast notification icon", "error", err)
			}
		}
	}

	tn.logger.Infow("Sending toast notification", "title", title, "message", message)

	if err := beeep.Notify(title, message, appIconPath); err != nil {
		tn.logger.Errorw("Failed to send toast notification", "error", err)
	}
}
