package bridge

import (
	"fmt"

	"github.com/getlantern/systray"

	"github.com/stalexteam/mediabridge/pkg/bridge/icon"
	"github.com/stalexteam/mediabridge/pkg/bridge/util"
)

func (b *Bridge) initializeTray(onDone func()) {
	logger := b.logger.Named("tray")

	onReady := func() {
		logger.Debug("Tray instance ready")

		systray.SetTemplateIcon(icon.BridgeLogo, icon.BridgeLogo)
		systray.SetTitle("Media Bridge")
		systray.SetTooltip("Media Bridge")

		openPanel := systray.AddMenuItem("Open control panel", "Open the control panel in your browser")

		// only offer a stack dump in verbose mode
		var dumpStack *systray.MenuItem
		if b.Verbose() {
			dumpStack = systray.AddMenuItem("Dump stack trace", "Output all goroutines stack trace to log")
		}

		if b.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(b.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()
		quit := systray.AddMenuItem("Quit", "Stop the bridge and quit")

		// wait on things to happen
		go func() {
			for {
				select {

				// quit
				case <-quit.ClickedCh:
					logger.Info("Quit menu item clicked, stopping")

					b.signalStop()

				// open the panel
				case <-openPanel.ClickedCh:
					logger.Info("Open control panel menu item clicked")

					url := fmt.Sprintf("http://localhost:%d/", b.config.Listen().Port)
					if err := util.OpenExternal(logger, url); err != nil {
						logger.Warnw("Failed to open control panel", "error", err)
					}
				}
			}
		}()

		if dumpStack != nil {
			go func() {
				for {
					<-dumpStack.ClickedCh
					logger.Info("Dump stack trace menu item clicked, outputting all goroutines stack trace")
					util.DumpAllGoroutines(logger)
				}
			}()
		}

		// actually start the main runtime
		onDone()
	}

	onExit := func() {
		logger.Debug("Tray exited")
	}

	// start the tray icon
	logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func (b *Bridge) stopTray() {
	b.logger.Debug("Quitting tray")
	systray.Quit()
}
