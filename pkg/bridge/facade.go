package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultProviderTimeout bounds every single call into an OS provider
const DefaultProviderTimeout = 750 * time.Millisecond

var errProviderTimeout = errors.New("provider did not respond in time")

type snapshotReader interface {
	ReadSnapshot(ctx context.Context) (MediaSnapshot, error)
}

type actionDispatcher interface {
	Dispatch(ctx context.Context, token string)
}

// SyncFacade gives the HTTP layer a plain blocking API over the asynchronous providers.
// Each call runs to completion (or to its timeout) before returning
type SyncFacade struct {
	logger *zap.SugaredLogger

	media      snapshotReader
	cache      *SnapshotCache
	dispatcher actionDispatcher

	timeout func() time.Duration
}

// NewSyncFacade creates a SyncFacade
func NewSyncFacade(
	logger *zap.SugaredLogger,
	media snapshotReader,
	cache *SnapshotCache,
	dispatcher actionDispatcher,
	timeout func() time.Duration,
) *SyncFacade {
	logger = logger.Named("facade")

	if timeout == nil {
		timeout = func() time.Duration { return DefaultProviderTimeout }
	}

	f := &SyncFacade{
		logger:     logger,
		media:      media,
		cache:      cache,
		dispatcher: dispatcher,
		timeout:    timeout,
	}

	logger.Debug("Created sync facade instance")

	return f
}

// Status returns the current media snapshot, or the last known one if the provider can't deliver
func (f *SyncFacade) Status(ctx context.Context) MediaSnapshot {
	fresh, err := await(ctx, f.timeout(), "read snapshot", f.media.ReadSnapshot)
	if err != nil {
		f.logger.Debugw("Failed to read media snapshot, serving cached state", "error", err)
	}

	snapshot, _ := f.cache.Resolve(fresh, err)
	return snapshot
}

// Control performs the given action token and returns once it's done or has timed out.
// A client going away doesn't cancel the command, only the provider timeout does
func (f *SyncFacade) Control(ctx context.Context, token string) {
	_, err := await(context.WithoutCancel(ctx), f.timeout(), "dispatch "+token, func(ctx context.Context) (struct{}, error) {
		f.dispatcher.Dispatch(ctx, token)
		return struct{}{}, nil
	})

	if err != nil {
		f.logger.Warnw("Action did not complete", "action", token, "error", err)
	}
}

type awaitResult[T any] struct {
	value T
	err   error
}

// await runs fn on its own goroutine and waits for it for at most timeout. Panics inside fn
// come back as provider errors. On timeout the goroutine is left to finish on its own and
// whatever it produces is discarded
func await[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan awaitResult[T], 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- awaitResult[T]{value: zero, err: providerError(op, fmt.Errorf("panic: %v", r))}
			}
		}()

		value, err := fn(ctx)
		done <- awaitResult[T]{value: value, err: err}
	}()

	select {
	case result := <-done:
		return result.value, result.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, providerError(op, errProviderTimeout)
		}
		return zero, providerError(op, ctx.Err())
	}
}
