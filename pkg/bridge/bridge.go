// Package bridge exposes the operating system's "now playing" media session and master volume
// over a small local HTTP control surface, so any device on the network can act as a remote
package bridge

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/stalexteam/mediabridge/pkg/bridge/util"
)

// when this is set to anything, the bridge won't use a tray icon
const envNoTray = "MEDIABRIDGE_NO_TRAY_ICON"

// Bridge is the main entity managing access to all sub-components
type Bridge struct {
	logger   *zap.SugaredLogger
	notifier Notifier
	config   *CanonicalConfig

	media      *MediaSessionAdapter
	volume     *VolumeController
	cache      *SnapshotCache
	dispatcher *CommandDispatcher
	facade     *SyncFacade

	server *ControlServer
	events *EventRelay

	stopChannel chan bool
	version     string
	verbose     bool
	stopping    sync.Once
}

// NewBridge creates a Bridge instance. flags may be nil
func NewBridge(logger *zap.SugaredLogger, verbose bool, flags *pflag.FlagSet) (*Bridge, error) {
	logger = logger.Named("bridge")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create ToastNotifier", "error", err)
		return nil, fmt.Errorf("create new ToastNotifier: %w", err)
	}

	config, err := NewConfig(logger, notifier, flags)
	if err != nil {
		logger.Errorw("Failed to create Config", "error", err)
		return nil, fmt.Errorf("create new Config: %w", err)
	}

	mediaProvider, err := newMediaProvider(logger)
	if err != nil {
		logger.Errorw("Failed to create MediaProvider", "error", err)
		return nil, fmt.Errorf("create new MediaProvider: %w", err)
	}

	endpointProvider, err := newEndpointProvider(logger)
	if err != nil {
		logger.Errorw("Failed to create EndpointProvider", "error", err)
		return nil, fmt.Errorf("create new EndpointProvider: %w", err)
	}

	b := &Bridge{
		logger:      logger,
		notifier:    notifier,
		config:      config,
		cache:       NewSnapshotCache(),
		stopChannel: make(chan bool),
		verbose:     verbose,
	}

	b.media = NewMediaSessionAdapter(logger, mediaProvider)
	b.volume = NewVolumeController(logger, endpointProvider)
	b.dispatcher = NewCommandDispatcher(logger, b.media, b.volume, config.VolumeStep)
	b.facade = NewSyncFacade(logger, b.media, b.cache, b.dispatcher, config.ProviderTimeout)

	server, err := NewControlServer(logger, b.facade)
	if err != nil {
		logger.Errorw("Failed to create ControlServer", "error", err)
		return nil, fmt.Errorf("create new ControlServer: %w", err)
	}
	b.server = server

	events, err := NewEventRelay(logger, b.facade)
	if err != nil {
		logger.Errorw("Failed to create EventRelay", "error", err)
		return nil, fmt.Errorf("create new EventRelay: %w", err)
	}
	b.events = events

	logger.Debug("Created bridge instance")

	return b, nil
}

// Initialize sets up components and starts to run in the background
func (b *Bridge) Initialize() error {
	b.logger.Debug("Initializing")

	// load the config for the first time
	if err := b.config.Load(); err != nil {
		b.logger.Errorw("Failed to load config during initialization", "error", err)
		return fmt.Errorf("load config during init: %w", err)
	}

	b.setupInterruptHandler()

	// decide whether to run with/without tray
	if _, noTraySet := os.LookupEnv(envNoTray); noTraySet {
		b.logger.Debugw("Running without tray icon", "reason", "envvar set")

		// run in main thread while waiting on ctrl+C
		b.run()
	} else {
		b.initializeTray(b.run)
	}

	return nil
}

// SetVersion causes the bridge to add a version string to its tray menu if called before Initialize
func (b *Bridge) SetVersion(version string) {
	b.version = version
}

// Verbose returns a boolean indicating whether the bridge is running in verbose mode
func (b *Bridge) Verbose() bool {
	return b.verbose
}

func (b *Bridge) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		b.logger.Debugw("Interrupted", "signal", signal)
		b.signalStop()
	}()
}

func (b *Bridge) run() {
	b.logger.Infow("Run loop starting", "verbose", b.Verbose())

	// watch the config file for changes
	go b.config.WatchConfigFileChanges()

	b.setupOnConfigReload()

	if err := b.startListeners(); err != nil {
		b.logger.Warnw("Failed to start listeners", "error", err)
		b.signalStop()
	}

	// wait until stopped (gracefully)
	<-b.stopChannel
	b.logger.Debug("Stop channel signaled, terminating")

	if err := b.stop(); err != nil {
		b.logger.Warnw("Failed to stop bridge", "error", err)
		os.Exit(1)
	}

	os.Exit(0)
}

func (b *Bridge) startListeners() error {
	address := b.config.ListenAddress()

	if err := b.server.Start(address); err != nil {
		b.notifier.Notify(fmt.Sprintf("Can't listen on %s!", address),
			"Make sure no other program is using this port, or pick another one in the configuration.")
		return fmt.Errorf("start control server: %w", err)
	}

	go b.watchServer(address)

	events := b.config.Events()
	if err := b.events.Start(b.config.Listen().BindAddress, events.Port, events.Interval); err != nil {
		// the control surface works fine without it
		b.logger.Warnw("Failed to start event relay", "error", err)
	}

	b.announce()

	return nil
}

// watchServer stops the bridge if the HTTP listener dies on its own
func (b *Bridge) watchServer(address string) {
	err, ok := <-b.server.Failed()
	if !ok || err == nil {
		return
	}

	b.logger.Warnw("Control server failed", "address", address, "error", err)
	b.notifier.Notify(fmt.Sprintf("Can't listen on %s!", address),
		"Make sure no other program is using this port, or pick another one in the configuration.")

	b.signalStop()
}

// announce tells the user where to point their phone
func (b *Bridge) announce() {
	host := "localhost"

	if ip, err := util.LocalIPv4(); err == nil {
		host = ip
	} else {
		b.logger.Debugw("Failed to determine LAN address", "error", err)
	}

	url := fmt.Sprintf("http://%s:%d/", host, b.config.Listen().Port)

	b.logger.Infow("Control panel available", "url", url)
	b.notifier.Notify("Media bridge is running", fmt.Sprintf("Open %s on any device in your network.", url))
}

func (b *Bridge) signalStop() {
	b.stopping.Do(func() {
		b.logger.Debug("Signalling stop channel")
		select {
		case b.stopChannel <- true:
		default:
			// run loop isn't waiting yet, close instead so it won't block once it gets there
			close(b.stopChannel)
		}
	})
}

func (b *Bridge) stop() error {
	b.logger.Info("Stopping")

	b.config.StopWatchingConfigFile()

	b.events.Stop()

	// the listener may have already died on its own
	if b.server.IsRunning() {
		b.server.Stop()
	}

	b.stopTray()

	// attempt to sync on exit - this won't necessarily work but can't harm
	b.logger.Sync()

	return nil
}

func (b *Bridge) setupOnConfigReload() {
	configReloadedChannel := b.config.SubscribeToChanges()

	go func() {
		for range configReloadedChannel {
			b.logger.Infow("Applied reloaded configuration",
				"volumeStep", b.config.VolumeStep(),
				"providerTimeout", b.config.ProviderTimeout())
		}
	}()
}
