package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/observer"
	"github.com/chattie/chattie/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultReinitGrace = 100 * time.Millisecond

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Stream is one open subscription. Recv blocks until the next event and
// must return once Close is called.
type Stream interface {
	Recv(ctx context.Context) (RawEvent, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, channels []string) (Stream, error)
}

type Teardown func()

// ChannelsFor returns the subscription channel of every synced collection.
func ChannelsFor(database string) []string {
	out := make([]string, len(Collections))
	for i, c := range Collections {
		out[i] = fmt.Sprintf("databases.%s.collections.%s.documents", database, c)
	}
	return out
}

// Manager owns the single realtime subscription. Connection attempts are
// never retried on their own; callers decide when to reconnect.
type Manager struct {
	dialer     Dialer
	dispatcher Dispatcher
	channels   []string
	grace      time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	group      singleflight.Group

	mu         sync.Mutex
	stream     Stream
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
	status     Status
	statuses   observer.Subject[Status]
}

func NewManager(dialer Dialer, dispatcher Dispatcher, database string, grace time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	if grace < 0 {
		grace = DefaultReinitGrace
	}
	return &Manager{
		dialer:     dialer,
		dispatcher: dispatcher,
		channels:   ChannelsFor(database),
		grace:      grace,
		logger:     logger,
		metrics:    metrics,
		status:     StatusDisconnected,
	}
}

func (m *Manager) Channels() []string {
	return append([]string(nil), m.channels...)
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) SubscribeStatus(listener func(Status)) func() {
	return m.statuses.Subscribe(listener)
}

// setStatusLocked records s and reports whether it changed. The caller
// notifies listeners after unlocking.
func (m *Manager) setStatusLocked(s Status) bool {
	if m.status == s {
		return false
	}
	m.status = s
	return true
}

func (m *Manager) notifyStatus(s Status) {
	m.metrics.SetStreamConnected(s == StatusConnected)
	m.statuses.Notify(s)
}

// Initialize opens the subscription unless one is already open. Concurrent
// calls share a single attempt and its outcome.
func (m *Manager) Initialize(ctx context.Context) (Teardown, error) {
	v, err, _ := m.group.Do("initialize", func() (any, error) {
		m.mu.Lock()
		if m.stream != nil {
			gen := m.generation
			m.mu.Unlock()
			return m.teardown(gen), nil
		}
		changed := m.setStatusLocked(StatusConnecting)
		m.mu.Unlock()
		if changed {
			m.notifyStatus(StatusConnecting)
		}

		stream, err := m.dialer.Dial(ctx, m.channels)
		if err != nil {
			m.mu.Lock()
			changed := m.setStatusLocked(StatusDisconnected)
			m.mu.Unlock()
			if changed {
				m.notifyStatus(StatusDisconnected)
			}
			m.logger.Error("failed to open realtime subscription", zap.Error(err))
			return nil, errors.Transport("failed to open realtime subscription", err)
		}

		readCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		m.mu.Lock()
		m.generation++
		gen := m.generation
		m.stream = stream
		m.cancel = cancel
		m.done = done
		m.setStatusLocked(StatusConnected)
		m.mu.Unlock()
		m.notifyStatus(StatusConnected)

		go m.read(readCtx, gen, stream, done)

		m.logger.Info("realtime subscription opened",
			zap.Strings("channels", m.channels),
			zap.Uint64("generation", gen),
		)
		return m.teardown(gen), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Teardown), nil
}

func (m *Manager) teardown(gen uint64) Teardown {
	return func() {
		m.mu.Lock()
		current := m.generation == gen
		m.mu.Unlock()
		if current {
			m.Cleanup()
		}
	}
}

func (m *Manager) read(ctx context.Context, gen uint64, stream Stream, done chan struct{}) {
	defer close(done)

	for {
		raw, err := stream.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Error("realtime stream failed", zap.Uint64("generation", gen), zap.Error(err))
			m.dropStream(gen)
			return
		}
		// Failures are logged and counted by the dispatcher.
		_ = m.dispatcher.Dispatch(ctx, raw)
	}
}

// dropStream forgets a stream that failed on its own, if it is still the
// current one.
func (m *Manager) dropStream(gen uint64) {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	stream, cancel := m.stream, m.cancel
	m.stream, m.cancel, m.done = nil, nil, nil
	changed := m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		_ = stream.Close()
	}
	if changed {
		m.notifyStatus(StatusDisconnected)
	}
}

// Cleanup closes the subscription and waits for its reader to stop. It must
// not be called from inside an event handler.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	stream, cancel, done := m.stream, m.cancel, m.done
	m.stream, m.cancel, m.done = nil, nil, nil
	m.generation++
	changed := m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			m.logger.Debug("error closing realtime stream", zap.Error(err))
		}
	}
	if done != nil {
		<-done
	}
	if changed {
		m.notifyStatus(StatusDisconnected)
	}
}

// Reinitialize tears the subscription down and opens a fresh one after a
// short grace period, picking up permission changes. Overlapping calls
// collapse into one.
func (m *Manager) Reinitialize(ctx context.Context) error {
	_, err, _ := m.group.Do("reinitialize", func() (any, error) {
		m.Cleanup()
		m.metrics.Reinitialized()

		timer := time.NewTimer(m.grace)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		_, err := m.Initialize(ctx)
		return nil, err
	})
	return err
}

func (m *Manager) Close() {
	m.Cleanup()
}
