package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/chattie/chattie/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStream struct {
	events chan RawEvent
	fail   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan RawEvent, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Recv(ctx context.Context) (RawEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.fail:
		return RawEvent{}, err
	case <-s.closed:
		return RawEvent{}, io.EOF
	case <-ctx.Done():
		return RawEvent{}, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    atomic.Int32
	err      error
	release  chan struct{}
	streams  []*fakeStream
	channels []string
}

func (d *fakeDialer) Dial(ctx context.Context, channels []string) (Stream, error) {
	d.dials.Add(1)
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = channels
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeStream()
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDialer) stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[i]
}

type recordingDispatcher struct {
	mu   sync.Mutex
	seen []RawEvent
}

func (r *recordingDispatcher) Dispatch(_ context.Context, raw RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, raw)
	return nil
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func newManager(d Dialer, disp Dispatcher) *Manager {
	return NewManager(d, disp, "main", time.Millisecond, zap.NewNop(), nil)
}

func TestInitializeConnectsOnce(t *testing.T) {
	d := &fakeDialer{}
	disp := &recordingDispatcher{}
	m := newManager(d, disp)
	defer m.Close()

	var statuses []Status
	m.SubscribeStatus(func(s Status) { statuses = append(statuses, s) })

	teardown, err := m.Initialize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, teardown)
	assert.Equal(t, StatusConnected, m.Status())
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, statuses)
	assert.Equal(t, ChannelsFor("main"), d.channels)

	_, err = m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), d.dials.Load())

	d.stream(0).events <- RawEvent{Events: []string{"databases.main.collections.messages.documents.m1.create"}}
	assert.Eventually(t, func() bool { return disp.count() == 1 }, time.Second, 5*time.Millisecond)

	teardown()
	assert.Equal(t, StatusDisconnected, m.Status())
	assert.True(t, d.stream(0).isClosed())
}

func TestConcurrentInitializeSharesAttempt(t *testing.T) {
	d := &fakeDialer{release: make(chan struct{})}
	m := newManager(d, &recordingDispatcher{})
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Initialize(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(d.release)
	wg.Wait()

	assert.Equal(t, int32(1), d.dials.Load())
	assert.Equal(t, StatusConnected, m.Status())
}

func TestInitializeFailureRevertsStatus(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	m := newManager(d, &recordingDispatcher{})

	var statuses []Status
	m.SubscribeStatus(func(s Status) { statuses = append(statuses, s) })

	_, err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrTransport)
	assert.Equal(t, StatusDisconnected, m.Status())
	assert.Equal(t, []Status{StatusConnecting, StatusDisconnected}, statuses)
	assert.Equal(t, int32(1), d.dials.Load())
}

func TestStreamFailureDisconnectsWithoutRetry(t *testing.T) {
	d := &fakeDialer{}
	m := newManager(d, &recordingDispatcher{})
	defer m.Close()

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	d.stream(0).fail <- errors.New("connection reset")
	assert.Eventually(t, func() bool { return m.Status() == StatusDisconnected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), d.dials.Load())

	_, err = m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), d.dials.Load())
}

func TestReinitializeReplacesStream(t *testing.T) {
	d := &fakeDialer{}
	m := newManager(d, &recordingDispatcher{})
	defer m.Close()

	oldTeardown, err := m.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Reinitialize(context.Background()))
	assert.Equal(t, int32(2), d.dials.Load())
	assert.True(t, d.stream(0).isClosed())
	assert.False(t, d.stream(1).isClosed())
	assert.Equal(t, StatusConnected, m.Status())

	oldTeardown()
	assert.Equal(t, StatusConnected, m.Status())
	assert.False(t, d.stream(1).isClosed())
}

func TestReinitializeHonoursContext(t *testing.T) {
	d := &fakeDialer{}
	m := NewManager(d, &recordingDispatcher{}, "main", time.Hour, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Reinitialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), d.dials.Load())
}

func TestStreamedEventsReachStores(t *testing.T) {
	f := newFixture(t)
	d := &fakeDialer{}
	m := newManager(d, f.router)
	defer m.Close()

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	s := d.stream(0)
	s.events <- rawEvent(CollectionMessages, "m1", KindCreate, message("m1", "c1"))
	s.events <- rawEvent(CollectionReactions, "r1", KindCreate, map[string]any{"$id": "r1", "message_id": "m1", "emoji": "👍", "user_id": "alice"})
	s.events <- RawEvent{Events: []string{"bogus"}}
	s.events <- rawEvent(CollectionMessages, "m2", KindCreate, message("m2", "c1"))

	assert.Eventually(t, func() bool { return f.stores.Messages.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, f.stores.Reactions.HasReacted("m1", "👍", "alice"))
	assert.Equal(t, 2, f.stores.Notifications.Unread("c1"))
	assert.Equal(t, StatusConnected, m.Status())
}
