package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/stalexteam/mediabridge/pkg/bridge/util"
)

const (
	mprisNamePrefix = "org.mpris.MediaPlayer2."
	mprisObjectPath = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	mprisPlayer     = "org.mpris.MediaPlayer2.Player"

	dbusName       = "org.freedesktop.DBus"
	dbusObjectPath = dbus.ObjectPath("/org/freedesktop/DBus")
	dbusProperties = "org.freedesktop.DBus.Properties"

	artistSeparator = ", "
)

// mprisProvider finds media players through the MPRIS D-Bus interface
type mprisProvider struct {
	logger *zap.SugaredLogger
}

// mprisManager owns a private session bus connection for the duration of one call
type mprisManager struct {
	logger *zap.SugaredLogger
	conn   *dbus.Conn
}

type mprisSession struct {
	logger    *zap.SugaredLogger
	player    dbus.BusObject
	busName   string
	sourceApp string
}

func newMediaProvider(logger *zap.SugaredLogger) (MediaProvider, error) {
	p := &mprisProvider{logger: logger.Named("mpris")}

	p.logger.Debug("Created MPRIS media provider instance")

	return p, nil
}

func (p *mprisProvider) RequestManager(ctx context.Context) (MediaManager, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}

	return &mprisManager{
		logger: p.logger,
		conn:   conn,
	}, nil
}

// CurrentSession picks the player the user most likely cares about: the first one playing,
// else the first one paused, else whichever registered first
func (m *mprisManager) CurrentSession(ctx context.Context) (MediaSession, error) {
	names, err := m.playerNames(ctx)
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		return nil, nil
	}

	chosen := names[0]
	chosenRank := -1

	for _, name := range names {
		status, err := m.getProperty(ctx, m.conn.Object(name, mprisObjectPath), "PlaybackStatus")
		if err != nil {
			m.logger.Debugw("Failed to get player status, skipping", "player", name, "error", err)
			continue
		}

		rank := statusRank(parsePlaybackStatus(asString(status)))
		if rank > chosenRank {
			chosen = name
			chosenRank = rank
		}
	}

	return &mprisSession{
		logger:    m.logger,
		player:    m.conn.Object(chosen, mprisObjectPath),
		busName:   chosen,
		sourceApp: m.sourceApp(ctx, chosen),
	}, nil
}

func (m *mprisManager) Release() {
	if m.conn == nil {
		return
	}

	if err := m.conn.Close(); err != nil {
		m.logger.Debugw("Failed to close session bus connection", "error", err)
	}

	m.conn = nil
}

func (m *mprisManager) playerNames(ctx context.Context) ([]string, error) {
	var names []string

	call := m.conn.Object(dbusName, dbusObjectPath).CallWithContext(ctx, dbusName+".ListNames", 0)
	if err := call.Store(&names); err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}

	players := []string{}
	for _, name := range names {
		if strings.HasPrefix(name, mprisNamePrefix) {
			players = append(players, name)
		}
	}

	return players, nil
}

// sourceApp names the process owning the player's bus name, falling back to the MPRIS suffix
func (m *mprisManager) sourceApp(ctx context.Context, busName string) string {
	fallback := strings.TrimPrefix(busName, mprisNamePrefix)

	var pid uint32

	call := m.conn.Object(dbusName, dbusObjectPath).CallWithContext(ctx, dbusName+".GetConnectionUnixProcessID", 0, busName)
	if err := call.Store(&pid); err != nil {
		return fallback
	}

	name, err := util.ProcessName(int(pid))
	if err != nil || name == "" {
		return fallback
	}

	return name
}

func (m *mprisManager) getProperty(ctx context.Context, obj dbus.BusObject, property string) (dbus.Variant, error) {
	var value dbus.Variant

	call := obj.CallWithContext(ctx, dbusProperties+".Get", 0, mprisPlayer, property)
	if err := call.Store(&value); err != nil {
		return dbus.Variant{}, fmt.Errorf("get %s: %w", property, err)
	}

	return value, nil
}

func (s *mprisSession) SourceApp() string {
	return s.sourceApp
}

func (s *mprisSession) MediaProperties(ctx context.Context) (MediaProperties, error) {
	var value dbus.Variant

	call := s.player.CallWithContext(ctx, dbusProperties+".Get", 0, mprisPlayer, "Metadata")
	if err := call.Store(&value); err != nil {
		return MediaProperties{}, fmt.Errorf("get metadata: %w", err)
	}

	metadata, ok := value.Value().(map[string]dbus.Variant)
	if !ok {
		return MediaProperties{}, nil
	}

	return MediaProperties{
		Title:      asString(metadata["xesam:title"]),
		Artist:     strings.Join(asStrings(metadata["xesam:artist"]), artistSeparator),
		AlbumTitle: asString(metadata["xesam:album"]),
	}, nil
}

func (s *mprisSession) PlaybackInfo(ctx context.Context) (PlaybackInfo, error) {
	var value dbus.Variant

	call := s.player.CallWithContext(ctx, dbusProperties+".Get", 0, mprisPlayer, "PlaybackStatus")
	if err := call.Store(&value); err != nil {
		return PlaybackInfo{}, fmt.Errorf("get playback status: %w", err)
	}

	return PlaybackInfo{Status: parsePlaybackStatus(asString(value))}, nil
}

func (s *mprisSession) TogglePlayPause(ctx context.Context) (bool, error) {
	return s.call(ctx, "PlayPause")
}

func (s *mprisSession) SkipNext(ctx context.Context) (bool, error) {
	return s.call(ctx, "Next")
}

func (s *mprisSession) SkipPrevious(ctx context.Context) (bool, error) {
	return s.call(ctx, "Previous")
}

// Release is a no-op, the connection belongs to the manager
func (s *mprisSession) Release() {}

// MPRIS methods have no return value, so a call that went through counts as accepted
func (s *mprisSession) call(ctx context.Context, method string) (bool, error) {
	if call := s.player.CallWithContext(ctx, mprisPlayer+"."+method, 0); call.Err != nil {
		return false, fmt.Errorf("call %s on %s: %w", method, s.busName, call.Err)
	}

	return true, nil
}

func parsePlaybackStatus(status string) PlaybackStatus {
	switch status {
	case "Playing":
		return PlaybackStatusPlaying
	case "Paused":
		return PlaybackStatusPaused
	case "Stopped":
		return PlaybackStatusStopped
	default:
		return PlaybackStatusClosed
	}
}

func statusRank(status PlaybackStatus) int {
	switch status {
	case PlaybackStatusPlaying:
		return 2
	case PlaybackStatusPaused:
		return 1
	default:
		return 0
	}
}

func asString(v dbus.Variant) string {
	switch val := v.Value().(type) {
	case string:
		return val
	case dbus.ObjectPath:
		return string(val)
	default:
		return ""
	}
}

func asStrings(v dbus.Variant) []string {
	switch val := v.Value().(type) {
	case []string:
		return val
	case string:
		return []string{val}
	case []interface{}:
		result := []string{}
		for _, item := range val {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
