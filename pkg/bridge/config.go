package bridge

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ListenInfo is where the control surface listens
type ListenInfo struct {
	BindAddress string
	Port        int
}

// EventsInfo configures the optional event relay. A zero port means it's off
type EventsInfo struct {
	Port     int
	Interval time.Duration
}

// CanonicalConfig provides application-wide access to configuration fields,
// as well as loading/file watching logic for the bridge's optional configuration file
type CanonicalConfig struct {
	// everything here may change when the file is reloaded, so it's only reachable through accessors
	listenInfo      ListenInfo
	eventsInfo      EventsInfo
	volumeStep      float32
	providerTimeout time.Duration
	liveLock        sync.RWMutex

	logger             *zap.SugaredLogger
	notifier           Notifier
	stopWatcherChannel chan bool

	reloadConsumers []chan bool

	userConfig *viper.Viper
}

const (
	userConfigFilepath = "config.yaml"

	userConfigName = "config"
	userConfigPath = "."

	configType = "yaml"

	envPrefix = "MEDIABRIDGE"

	configKey_BindAddress       = "bind_address"
	configKey_Port              = "port"
	configKey_VolumeStep        = "volume_step"
	configKey_ProviderTimeoutMs = "provider_timeout_ms"
	configKey_EventsPort        = "events_port"
	configKey_EventsIntervalMs  = "events_interval_ms"

	default_BindAddress      = "0.0.0.0"
	default_Port             = 5000
	default_EventsPort       = 0 // relay disabled
	default_EventsIntervalMs = 1000
)

// has to be defined as a non-constant because we're using path.Join
var internalConfigPath = path.Join(".", logDirectory)

// NewConfig creates a config instance for the bridge and sets up viper. Flags, if given,
// take precedence over the config file and environment
func NewConfig(logger *zap.SugaredLogger, notifier Notifier, flags *pflag.FlagSet) (*CanonicalConfig, error) {
	logger = logger.Named("config")

	cc := &CanonicalConfig{
		logger:             logger,
		notifier:           notifier,
		reloadConsumers:    []chan bool{},
		stopWatcherChannel: make(chan bool),
	}

	userConfig := viper.New()
	userConfig.SetConfigName(userConfigName)
	userConfig.SetConfigType(configType)
	userConfig.AddConfigPath(userConfigPath)
	userConfig.AddConfigPath(internalConfigPath)

	userConfig.SetEnvPrefix(envPrefix)
	userConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	userConfig.AutomaticEnv()

	userConfig.SetDefault(configKey_BindAddress, default_BindAddress)
	userConfig.SetDefault(configKey_Port, default_Port)
	userConfig.SetDefault(configKey_VolumeStep, DefaultVolumeStep)
	userConfig.SetDefault(configKey_ProviderTimeoutMs, DefaultProviderTimeout.Milliseconds())
	userConfig.SetDefault(configKey_EventsPort, default_EventsPort)
	userConfig.SetDefault(configKey_EventsIntervalMs, default_EventsIntervalMs)

	if flags != nil {
		for flagName, key := range map[string]string{
			"bind": configKey_BindAddress,
			"port": configKey_Port,
		} {
			flag := flags.Lookup(flagName)
			if flag == nil {
				continue
			}

			if err := userConfig.BindPFlag(key, flag); err != nil {
				logger.Warnw("Failed to bind command line flag", "flag", flagName, "error", err)
				return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
			}
		}
	}

	cc.userConfig = userConfig

	logger.Debug("Created config instance")

	return cc, nil
}

// Load reads the config file from disk (if there is one) and populates the config fields.
// A missing file is fine, everything has a default
func (cc *CanonicalConfig) Load() error {
	cc.logger.Debugw("Loading config", "path", userConfigFilepath)

	if err := cc.userConfig.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			cc.logger.Debugw("No config file found, using defaults", "reminder", "this is fine")
		} else {
			cc.logger.Warnw("Viper failed to read user config", "error", err)
			if strings.Contains(err.Error(), "yaml:") {
				cc.notifier.Notify("Invalid configuration!",
					fmt.Sprintf("Please make sure %s is in a valid YAML format.", userConfigFilepath))
			} else {
				cc.notifier.Notify("Error loading configuration!", "Please check the logs for more details.")
			}
			return fmt.Errorf("read user config: %w", err)
		}
	}

	if err := cc.populateFromVipers(); err != nil {
		cc.logger.Warnw("Failed to populate config fields", "error", err)
		return fmt.Errorf("populate config fields: %w", err)
	}

	cc.logger.Info("Loaded config successfully")
	cc.logger.Infow("Config values",
		"listenInfo", cc.Listen(),
		"eventsInfo", cc.Events(),
		"volumeStep", cc.VolumeStep(),
		"providerTimeout", cc.ProviderTimeout(),
	)

	return nil
}

// VolumeStep returns the magnitude of a single volume adjustment
func (cc *CanonicalConfig) VolumeStep() float32 {
	cc.liveLock.RLock()
	defer cc.liveLock.RUnlock()

	if cc.volumeStep == 0 {
		return DefaultVolumeStep
	}
	return cc.volumeStep
}

// ProviderTimeout returns how long a single OS provider call may take
func (cc *CanonicalConfig) ProviderTimeout() time.Duration {
	cc.liveLock.RLock()
	defer cc.liveLock.RUnlock()

	if cc.providerTimeout == 0 {
		return DefaultProviderTimeout
	}
	return cc.providerTimeout
}

// Listen returns the control surface listener settings
func (cc *CanonicalConfig) Listen() ListenInfo {
	cc.liveLock.RLock()
	defer cc.liveLock.RUnlock()

	return cc.listenInfo
}

// Events returns the event relay settings
func (cc *CanonicalConfig) Events() EventsInfo {
	cc.liveLock.RLock()
	defer cc.liveLock.RUnlock()

	return cc.eventsInfo
}

// ListenAddress returns the host:port the control surface binds to
func (cc *CanonicalConfig) ListenAddress() string {
	listen := cc.Listen()
	return fmt.Sprintf("%s:%d", listen.BindAddress, listen.Port)
}

// SubscribeToChanges allows external components to receive updates when the config is reloaded
func (cc *CanonicalConfig) SubscribeToChanges() chan bool {
	c := make(chan bool, 1)
	cc.reloadConsumers = append(cc.reloadConsumers, c)

	return c
}

// WatchConfigFileChanges starts watching for configuration file changes
// and attempts reloading the config when they happen
func (cc *CanonicalConfig) WatchConfigFileChanges() {
	if cc.userConfig.ConfigFileUsed() == "" {
		cc.logger.Debug("No config file in use, nothing to watch")
		<-cc.stopWatcherChannel
		return
	}

	cc.logger.Debugw("Starting to watch user config file for changes", "path", cc.userConfig.ConfigFileUsed())

	const (
		minTimeBetweenReloadAttempts = time.Millisecond * 500
		delayBetweenEventAndReload   = time.Millisecond * 50
	)

	lastAttemptedReload := time.Now()

	// establish watch using viper as opposed to doing it ourselves, though our internal cooldown is still required
	cc.userConfig.WatchConfig()
	cc.userConfig.OnConfigChange(func(event fsnotify.Event) {

		// when we get a write event...
		if event.Op&fsnotify.Write == fsnotify.Write {

			now := time.Now()

			// ... check if it's not a duplicate (many editors will write to a file twice)
			if lastAttemptedReload.Add(minTimeBetweenReloadAttempts).Before(now) {

				cc.logger.Debugw("Config file modified, attempting reload", "event", event)

				// wait a bit to let the editor actually flush the new file contents to disk
				<-time.After(delayBetweenEventAndReload)

				previousListen := cc.Listen()
				previousEvents := cc.Events()

				if err := cc.Load(); err != nil {
					cc.logger.Warnw("Failed to reload config file", "error", err)
				} else {
					cc.logger.Info("Reloaded config successfully")

					if previousListen != cc.Listen() || previousEvents != cc.Events() {
						cc.logger.Warnw("Listener settings changed, restart to apply them",
							"listenInfo", cc.Listen(),
							"eventsInfo", cc.Events())
						cc.notifier.Notify("Configuration reloaded!", "Restart the bridge to apply the new listener settings.")
					} else {
						cc.notifier.Notify("Configuration reloaded!", "Your changes have been applied.")
					}

					cc.onConfigReloaded()
				}

				// don't forget to update the time
				lastAttemptedReload = now
			}
		}
	})

	// wait till they stop us
	<-cc.stopWatcherChannel
	cc.logger.Debug("Stopping user config file watcher")
	cc.userConfig.OnConfigChange(nil)
}

// StopWatchingConfigFile signals our filesystem watcher to stop
func (cc *CanonicalConfig) StopWatchingConfigFile() {
	select {
	case cc.stopWatcherChannel <- true:
	default:
		// watcher isn't running
	}

	cc.closeReloadChannels()
}

func (cc *CanonicalConfig) closeReloadChannels() {
	for _, ch := range cc.reloadConsumers {
		close(ch)
	}
	cc.reloadConsumers = nil
	cc.logger.Debug("Closed all config reload channels")
}

// populateFromVipers validates everything before touching any field, so a bad reload leaves
// the previous values in place
func (cc *CanonicalConfig) populateFromVipers() error {
	listen := ListenInfo{
		BindAddress: cc.userConfig.GetString(configKey_BindAddress),
		Port:        cc.userConfig.GetInt(configKey_Port),
	}

	if listen.Port <= 0 || listen.Port > 65535 {
		return fmt.Errorf("invalid port: %d", listen.Port)
	}

	events := EventsInfo{
		Port:     cc.userConfig.GetInt(configKey_EventsPort),
		Interval: time.Duration(cc.userConfig.GetInt(configKey_EventsIntervalMs)) * time.Millisecond,
	}

	if events.Port < 0 || events.Port > 65535 {
		return fmt.Errorf("invalid events port: %d", events.Port)
	}

	if events.Interval <= 0 {
		cc.logger.Warnw("Invalid events interval, using default", "value", events.Interval)
		events.Interval = default_EventsIntervalMs * time.Millisecond
	}

	step := float32(cc.userConfig.GetFloat64(configKey_VolumeStep))
	if step <= 0 || step > 1 {
		cc.logger.Warnw("Volume step out of range, using default", "value", step, "default", DefaultVolumeStep)
		step = DefaultVolumeStep
	}

	timeout := time.Duration(cc.userConfig.GetInt(configKey_ProviderTimeoutMs)) * time.Millisecond
	if timeout <= 0 {
		cc.logger.Warnw("Invalid provider timeout, using default", "value", timeout, "default", DefaultProviderTimeout)
		timeout = DefaultProviderTimeout
	}

	cc.liveLock.Lock()
	cc.listenInfo = listen
	cc.eventsInfo = events
	cc.volumeStep = step
	cc.providerTimeout = timeout
	cc.liveLock.Unlock()

	cc.logger.Debug("Populated config fields from viper")

	return nil
}

func (cc *CanonicalConfig) onConfigReloaded() {
	cc.logger.Debug("Notifying consumers about configuration reload")

	for _, consumer := range cc.reloadConsumers {
		select {
		case consumer <- true:
		default:
			// consumer hasn't picked up the previous notification yet
		}
	}
}
