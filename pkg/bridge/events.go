package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	eventsource "github.com/stalexteam/eventsource_go"
	"go.uber.org/zap"
)

// EventRelay is an optional Server-Sent Events feed that pushes the media snapshot whenever it
// changes. It's a convenience on top of polling and makes no delivery promises
type EventRelay struct {
	logger  *zap.SugaredLogger
	surface controlSurface
	server  *http.Server

	stopChannel chan bool
	stopOnce    sync.Once
	pollDone    chan bool
	running     int32 // Atomic flag: 1 = running, 0 = stopped

	// ConnectionManager manages all active SSE connections
	manager *eventsource.ConnectionManager

	// Event counter for SSE id field
	eventID int64

	last     MediaSnapshot
	hasLast  bool
	lastLock sync.Mutex
}

var errRelayStopped = errors.New("event relay was stopped")

const (
	// how long clients should wait before reconnecting, in milliseconds
	sseRetryTimeout = 3000

	// Ping interval
	pingInterval = 10 * time.Second

	eventTypeState = "state"
	eventTypePing  = "ping"
)

// NewEventRelay creates a new EventRelay instance
func NewEventRelay(logger *zap.SugaredLogger, surface controlSurface) (*EventRelay, error) {
	logger = logger.Named("events")

	manager := eventsource.NewConnectionManager()

	manager.SetOnConnect(func(encoder *eventsource.Encoder) {
		logger.Infow("New SSE client connected",
			"remote", encoder.RemoteAddr(),
			"path", encoder.Path())
	})

	manager.SetOnDisconnect(func(encoder *eventsource.Encoder) {
		logger.Debugw("SSE client disconnected",
			"remote", encoder.RemoteAddr(),
			"path", encoder.Path())
	})

	relay := &EventRelay{
		logger:      logger,
		surface:     surface,
		stopChannel: make(chan bool),
		pollDone:    make(chan bool),
		manager:     manager,
		eventID:     1,
	}

	logger.Debug("Created event relay instance")

	return relay, nil
}

// Start starts the relay on the given port, polling for changes every interval.
// A non-positive port leaves the relay disabled
func (relay *EventRelay) Start(bindAddress string, port int, interval time.Duration) error {
	if port <= 0 {
		relay.logger.Debug("Events port not configured, relay will not start")
		return nil
	}

	if atomic.LoadInt32(&relay.running) == 1 {
		relay.logger.Debugw("Event relay already running", "port", port)
		return nil
	}

	select {
	case <-relay.stopChannel:
		return errRelayStopped
	default:
	}

	handler := eventsource.HandlerV2(func(
		info *eventsource.ConnectionInfo,
		encoder *eventsource.Encoder,
		stop <-chan bool,
	) {
		if err := encoder.SetRetry(sseRetryTimeout); err != nil {
			relay.logEncodeError("retry", err)
			return
		}

		if err := encoder.Encode(relay.newEvent(eventTypePing, map[string]interface{}{"title": "Media Bridge"})); err != nil {
			relay.logEncodeError(eventTypePing, err)
			return
		}

		// new clients get the current state right away
		relay.lastLock.Lock()
		current, known := relay.last, relay.hasLast
		relay.lastLock.Unlock()

		if known {
			if err := encoder.Encode(relay.newEvent(eventTypeState, current)); err != nil {
				relay.logEncodeError(eventTypeState, err)
				return
			}
		}

		// Wait for client disconnect or server stop
		select {
		case <-stop:
			return
		case <-relay.stopChannel:
			return
		}
	})

	handlerWithManager := eventsource.HandlerWithManager(relay.manager, handler)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handlerWithManager.ServeHTTP)

	addr := fmt.Sprintf("%s:%d", bindAddress, port)
	relay.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	atomic.StoreInt32(&relay.running, 1)

	go func() {
		relay.logger.Infow("Starting event relay", "addr", addr)
		if err := relay.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			relay.logger.Errorw("Event relay error", "error", err)
			atomic.StoreInt32(&relay.running, 0)

			// nobody can subscribe anymore, so stop polling too
			relay.closeStopChannel()
		}
	}()

	go relay.pollLoop(interval)

	return nil
}

// Stop stops the relay
func (relay *EventRelay) Stop() {
	// wakes up the poll loop and every open stream, even if the listener already died
	relay.closeStopChannel()

	if atomic.LoadInt32(&relay.running) == 0 {
		return
	}

	relay.logger.Debug("Stopping event relay")

	if relay.manager != nil {
		relay.manager.CloseAll()
		relay.logger.Debugw("Closed all SSE connections", "count", relay.manager.Count())
	}

	if relay.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		if err := relay.server.Shutdown(ctx); err != nil {
			relay.logger.Warnw("Error during event relay shutdown", "error", err)
			relay.server.Close()
		}
	}

	atomic.StoreInt32(&relay.running, 0)

	relay.logger.Info("Event relay stopped")
}

// IsRunning returns whether the relay is currently running
func (relay *EventRelay) IsRunning() bool {
	return atomic.LoadInt32(&relay.running) == 1
}

func (relay *EventRelay) closeStopChannel() {
	relay.stopOnce.Do(func() {
		close(relay.stopChannel)
	})
}

// observe records a snapshot and reports whether it differs from the previous one
func (relay *EventRelay) observe(snapshot MediaSnapshot) bool {
	relay.lastLock.Lock()
	defer relay.lastLock.Unlock()

	if relay.hasLast && relay.last == snapshot {
		return false
	}

	relay.last = snapshot
	relay.hasLast = true

	return true
}

func (relay *EventRelay) pollLoop(interval time.Duration) {
	defer close(relay.pollDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-relay.stopChannel:
			return

		case <-ticker.C:
			snapshot := relay.surface.Status(context.Background())
			if relay.observe(snapshot) {
				relay.logger.Debugw("Media state changed, broadcasting", "snapshot", snapshot)
				relay.broadcast(relay.newEvent(eventTypeState, snapshot))
			}

		case <-pingTicker.C:
			relay.broadcast(relay.newEvent(eventTypePing, map[string]interface{}{"title": "Media Bridge"}))
		}
	}
}

func (relay *EventRelay) broadcast(event eventsource.Event) {
	if atomic.LoadInt32(&relay.running) == 0 || relay.manager == nil {
		return
	}

	// ConnectionManager automatically removes failed connections
	if err := relay.manager.Broadcast(event); err != nil {
		if eventsource.IsConnectionError(err) {
			relay.logger.Debugw("Some connections failed during broadcast", "error", err)
		}
	}
}

func (relay *EventRelay) newEvent(eventType string, payload interface{}) eventsource.Event {
	data, err := json.Marshal(payload)
	if err != nil {
		relay.logger.Warnw("Failed to marshal event data", "error", err, "type", eventType)
		data = []byte("{}")
	}

	return eventsource.Event{
		ID:   fmt.Sprintf("%d", atomic.AddInt64(&relay.eventID, 1)),
		Type: eventType,
		Data: data,
	}
}

func (relay *EventRelay) logEncodeError(what string, err error) {
	if eventsource.IsConnectionError(err) {
		relay.logger.Debugw("Error sending event, connection closed", "event", what, "error", err)
	} else {
		relay.logger.Debugw("Error sending event", "event", what, "error", err)
	}
}
