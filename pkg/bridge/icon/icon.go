// Package icon holds the images used for the tray icon and notifications
package icon

import (
	_ "embed"
)

// BridgeLogo is the application icon in .ico format
//
//go:embed bridge.ico
var BridgeLogo []byte
