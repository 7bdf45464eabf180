package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/chattie/chattie/internal/backend"
	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/messages"
	"github.com/chattie/chattie/internal/models"
	"github.com/chattie/chattie/internal/realtime"
	"github.com/chattie/chattie/internal/toast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	mu         sync.Mutex
	workspaces []models.Workspace
	channels   map[string][]models.Channel
	users      map[string]models.User
	history    map[string][]models.Message
	records    []models.ReactionRecord
	presence   []models.Presence
	docs       map[string]any
	loads      []int
	failNext   error
	nextID     int
	deleted    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		workspaces: []models.Workspace{
			{Document: models.Document{ID: "w1"}, Name: "Acme", Members: []string{"u1", "u2"}},
			{Document: models.Document{ID: "w2"}, Name: "Other", Members: []string{"u1"}},
		},
		channels: map[string][]models.Channel{
			"w1": {{Document: models.Document{ID: "c1"}, WorkspaceID: "w1", Name: "general", Type: models.ChannelPublic}},
		},
		users: map[string]models.User{
			"u1": {ID: "u1", Name: "Ann"},
			"u2": {ID: "u2", Name: "Bob"},
		},
		history:  make(map[string][]models.Message),
		presence: []models.Presence{{UserID: "u2", BaseStatus: models.StatusAway}},
		docs:     make(map[string]any),
	}
}

func (b *fakeBackend) fail() error {
	err := b.failNext
	b.failNext = nil
	return err
}

func (b *fakeBackend) id(prefix string) string {
	b.nextID++
	return fmt.Sprintf("%s%d", prefix, b.nextID)
}

func (b *fakeBackend) ListChannels(_ context.Context, workspaceID string) ([]models.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channels[workspaceID], nil
}

func (b *fakeBackend) GetUser(_ context.Context, userID string) (models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[userID]
	if !ok {
		return models.User{}, errors.NotFound("user")
	}
	return u, nil
}

func (b *fakeBackend) CreateDocument(_ context.Context, collection, id string, data, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[collection+"/"+id] = data
	return nil
}

func (b *fakeBackend) UpdateDocument(_ context.Context, collection, id string, data, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[collection+"/"+id] = data
	return nil
}

func (b *fakeBackend) ListWorkspaces(context.Context) ([]models.Workspace, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.workspaces, nil
}

func (b *fakeBackend) ListReactions(_ context.Context, ids []string) ([]models.ReactionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.ReactionRecord
	for _, r := range b.records {
		for _, id := range ids {
			if r.MessageID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (b *fakeBackend) ListPresence(context.Context, []string) ([]models.Presence, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presence, nil
}

func (b *fakeBackend) AvatarURL(fileID string) string {
	return "https://cdn.test/" + fileID
}

func (b *fakeBackend) LoadMessages(_ context.Context, channelID string, offset int) (backend.MessagePage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads = append(b.loads, offset)
	all := b.history[channelID]
	if offset >= len(all) {
		return backend.MessagePage{Total: len(all)}, nil
	}
	end := min(offset+backend.MessagePageSize, len(all))
	return backend.MessagePage{Messages: all[offset:end], Total: len(all)}, nil
}

func (b *fakeBackend) CreateMessage(_ context.Context, content, channelID, workspaceID string) (models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(); err != nil {
		return models.Message{}, err
	}
	now := time.Now().UTC()
	return models.Message{
		Document:    models.Document{ID: b.id("m"), CreatedAt: now, UpdatedAt: now},
		ChannelID:   channelID,
		WorkspaceID: workspaceID,
		SenderType:  models.SenderUser,
		SenderID:    "u1",
		Content:     content,
	}, nil
}

func (b *fakeBackend) DeleteMessage(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(); err != nil {
		return err
	}
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBackend) CreateReaction(_ context.Context, messageID, emoji, channelID string) (models.ReactionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(); err != nil {
		return models.ReactionRecord{}, err
	}
	return models.ReactionRecord{
		Document:  models.Document{ID: b.id("r")},
		MessageID: messageID,
		Emoji:     emoji,
		UserID:    "u1",
		ChannelID: channelID,
	}, nil
}

func (b *fakeBackend) DeleteReaction(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fail(); err != nil {
		return err
	}
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBackend) ToggleMessageReaction(context.Context, string, string, string, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fail()
}

func (b *fakeBackend) CreateChannel(_ context.Context, name string, typ models.ChannelType, workspaceID string) (models.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.Channel{Document: models.Document{ID: b.id("c")}, Name: name, Type: typ, WorkspaceID: workspaceID}, nil
}

func (b *fakeBackend) CreateDirectMessage(_ context.Context, other string) (models.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.Channel{Document: models.Document{ID: b.id("dm")}, WorkspaceID: "w1", Type: models.ChannelDM, Members: []string{"u1", other}}, nil
}

func (b *fakeBackend) StartThread(_ context.Context, messageID, workspaceID, content string) (backend.ThreadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := models.Channel{Document: models.Document{ID: b.id("t")}, WorkspaceID: workspaceID, Type: models.ChannelThread, Name: "Reply to: " + content}
	return backend.ThreadResult{
		Channel: ch,
		Message: models.Message{Document: models.Document{ID: b.id("m")}, ChannelID: ch.ID, ThreadID: ch.ID, Content: content},
	}, nil
}

type blockingStream struct {
	events chan realtime.RawEvent
	closed chan struct{}
	once   sync.Once
}

func (s *blockingStream) Recv(ctx context.Context) (realtime.RawEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return realtime.RawEvent{}, io.EOF
	case <-ctx.Done():
		return realtime.RawEvent{}, ctx.Err()
	}
}

func (s *blockingStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type streamDialer struct {
	mu      sync.Mutex
	streams []*blockingStream
}

func (d *streamDialer) Dial(context.Context, []string) (realtime.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &blockingStream{events: make(chan realtime.RawEvent, 8), closed: make(chan struct{})}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *streamDialer) last() *blockingStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

func event(collection realtime.Collection, id string, kind realtime.Kind, payload any) realtime.RawEvent {
	body, _ := json.Marshal(payload)
	return realtime.RawEvent{
		Events:  []string{fmt.Sprintf("databases.main.collections.%s.documents.%s.%s", collection, id, kind)},
		Payload: body,
	}
}

type harness struct {
	s       *Session
	backend *fakeBackend
	dialer  *streamDialer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

func newHarnessWith(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	b := newFakeBackend()
	d := &streamDialer{}
	cfg := Config{
		UserID:             "u1",
		UserName:           "Ann",
		Database:           "main",
		HistoryPages:       2,
		NotificationLimit:  10,
		HeartbeatInterval:  time.Hour,
		ReinitGrace:        time.Millisecond,
		ChannelCreateDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s := New(cfg, Deps{Backend: b, Dialer: d, Logger: zap.NewNop()})

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return &harness{s: s, backend: b, dialer: d}
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	require.NoError(t, h.s.OpenWorkspace(context.Background(), "w1"))
}

func seedHistory(b *fakeBackend, channelID string, n int) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := make([]models.Message, n)
	for i := range msgs {
		ts := base.Add(time.Duration(n-i) * time.Minute)
		msgs[i] = models.Message{
			Document:  models.Document{ID: fmt.Sprintf("h%03d", i), CreatedAt: ts, UpdatedAt: ts},
			ChannelID: channelID,
			Content:   "hello",
		}
	}
	b.history[channelID] = msgs
}

func TestStartLoadsWorkspacesAndConnects(t *testing.T) {
	h := newHarness(t)
	assert.Len(t, h.s.Stores().Workspaces.All(), 2)
	assert.Equal(t, realtime.StatusConnected, h.s.Status())

	h.backend.mu.Lock()
	_, ok := h.backend.docs["presence/u1"]
	h.backend.mu.Unlock()
	assert.True(t, ok)
}

func TestOpenWorkspaceLoadsChannelsMembersAndPresence(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	stores := h.s.Stores()
	assert.Equal(t, "w1", stores.Workspaces.CurrentID())
	assert.Equal(t, 1, stores.Channels.Len())
	assert.Equal(t, 2, stores.Members.Len())
	assert.Equal(t, models.StatusAway, stores.Presence.Status("u2"))
	assert.True(t, h.s.Online("u2"))

	err := h.s.OpenWorkspace(context.Background(), "nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestOpenWorkspaceKeepsStalePresenceOffline(t *testing.T) {
	h := newHarness(t)
	h.backend.presence = []models.Presence{
		{UserID: "u2", BaseStatus: models.StatusOnline, LastSeen: time.Now().Add(-3 * time.Hour)},
	}
	h.open(t)

	stores := h.s.Stores()
	assert.Equal(t, models.StatusOnline, stores.Presence.Status("u2"))
	p, ok := stores.Presence.Get("u2")
	require.True(t, ok)
	assert.Equal(t, "w1", p.WorkspaceID)
	assert.False(t, h.s.Online("u2"))
}

func TestOpenChannelLoadsPagesAndReactions(t *testing.T) {
	h := newHarness(t)
	seedHistory(h.backend, "c1", 70)
	h.backend.records = []models.ReactionRecord{
		{Document: models.Document{ID: "r1"}, MessageID: "h000", Emoji: "👍", UserID: "u2"},
	}
	h.backend.history["c1"][1].Reactions = []models.EmbeddedReaction{{Emoji: "🎉", UserIDs: []string{"u2"}}}
	h.open(t)

	info, err := h.s.OpenChannel(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 70, info.Count)
	assert.Equal(t, 70, info.Total)
	assert.False(t, info.HasMore)
	assert.ElementsMatch(t, []int{0, 50}, h.backend.loads)

	stores := h.s.Stores()
	msgs := stores.Messages.ForChannel("c1")
	require.Len(t, msgs, 70)
	assert.Equal(t, "h069", msgs[0].ID)
	assert.True(t, stores.Reactions.HasReacted("h000", "👍", "u2"))
	id, ok := stores.Reactions.RecordID("h000", "👍", "u2")
	assert.True(t, ok)
	assert.Equal(t, "r1", id)
	assert.True(t, stores.Reactions.HasReacted("h001", "🎉", "u2"))
	assert.Equal(t, "c1", stores.Notifications.ActiveChannel())

	_, err = h.s.OpenChannel(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestSendMessageReplacesLocalCopy(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	var sawLocal bool
	unsub := h.s.Stores().Messages.Subscribe(func(c messages.Change) {
		if IsLocalID(c.MessageID) {
			sawLocal = true
		}
	})
	defer unsub()

	msg, err := h.s.SendMessage(context.Background(), "c1", "  hi there ")
	require.NoError(t, err)
	assert.Equal(t, "hi there", msg.Content)
	assert.True(t, sawLocal)

	all := h.s.Stores().Messages.All()
	require.Len(t, all, 1)
	assert.Equal(t, msg.ID, all[0].ID)

	// the echoed create must not duplicate it
	h.dialer.last().events <- event(realtime.CollectionMessages, msg.ID, realtime.KindCreate, msg)
	assert.Eventually(t, func() bool {
		return len(h.s.Stores().Notifications.RecentActivity()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.s.Stores().Messages.Len())
}

func TestOptimisticMessageCarriesResolvedSenderName(t *testing.T) {
	h := newHarnessWith(t, func(c *Config) { c.UserName = "" })
	assert.Equal(t, "Ann", h.s.UserName())
	h.open(t)

	var names []string
	unsub := h.s.Stores().Messages.Subscribe(func(c messages.Change) {
		if !IsLocalID(c.MessageID) {
			return
		}
		if m, ok := h.s.Stores().Messages.Get(c.MessageID); ok {
			names = append(names, m.SenderName)
		}
	})
	defer unsub()

	_, err := h.s.SendMessage(context.Background(), "c1", "hi")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "Ann", names[0])
}

func TestUnknownUserLeavesNameEmpty(t *testing.T) {
	h := newHarnessWith(t, func(c *Config) {
		c.UserID = "ghost"
		c.UserName = ""
	})
	assert.Empty(t, h.s.UserName())
}

func TestSendMessageRollsBackOnFailure(t *testing.T) {
	h := newHarness(t)
	h.open(t)
	h.backend.failNext = errors.Unavailable("down", nil)

	_, err := h.s.SendMessage(context.Background(), "c1", "hi")
	require.Error(t, err)
	assert.Equal(t, 0, h.s.Stores().Messages.Len())

	_, err = h.s.SendMessage(context.Background(), "c1", "   ")
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestSendMessageRequiresWorkspace(t *testing.T) {
	h := newHarness(t)
	_, err := h.s.SendMessage(context.Background(), "c1", "hi")
	assert.ErrorIs(t, err, errors.ErrBadRequest)
}

func TestDeleteMessageRestoresOnFailure(t *testing.T) {
	h := newHarness(t)
	seedHistory(h.backend, "c1", 2)
	h.backend.records = []models.ReactionRecord{{Document: models.Document{ID: "r1"}, MessageID: "h000", Emoji: "👍", UserID: "u2"}}
	h.open(t)
	_, err := h.s.OpenChannel(context.Background(), "c1")
	require.NoError(t, err)

	h.backend.failNext = errors.Forbidden("not yours")
	err = h.s.DeleteMessage(context.Background(), "h000")
	assert.ErrorIs(t, err, errors.ErrForbidden)
	_, ok := h.s.Stores().Messages.Get("h000")
	assert.True(t, ok)
	assert.True(t, h.s.Stores().Reactions.HasReacted("h000", "👍", "u2"))

	require.NoError(t, h.s.DeleteMessage(context.Background(), "h000"))
	_, ok = h.s.Stores().Messages.Get("h000")
	assert.False(t, ok)
	assert.Empty(t, h.s.Stores().Reactions.ForMessage("h000"))

	assert.True(t, errors.IsNotFound(h.s.DeleteMessage(context.Background(), "h000")))
}

func TestToggleReaction(t *testing.T) {
	h := newHarness(t)
	seedHistory(h.backend, "c1", 1)
	h.open(t)
	_, err := h.s.OpenChannel(context.Background(), "c1")
	require.NoError(t, err)
	stores := h.s.Stores()

	on, err := h.s.ToggleReaction(context.Background(), "h000", "👍")
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, stores.Reactions.HasReacted("h000", "👍", "u1"))
	msg, _ := stores.Messages.Get("h000")
	assert.Equal(t, []models.EmbeddedReaction{{Emoji: "👍", UserIDs: []string{"u1"}}}, msg.Reactions)
	recordID, ok := stores.Reactions.RecordID("h000", "👍", "u1")
	require.True(t, ok)

	h.backend.failNext = errors.Unavailable("down", nil)
	on, err = h.s.ToggleReaction(context.Background(), "h000", "👍")
	require.Error(t, err)
	assert.True(t, on)
	assert.True(t, stores.Reactions.HasReacted("h000", "👍", "u1"))

	on, err = h.s.ToggleReaction(context.Background(), "h000", "👍")
	require.NoError(t, err)
	assert.False(t, on)
	assert.False(t, stores.Reactions.HasReacted("h000", "👍", "u1"))
	msg, _ = stores.Messages.Get("h000")
	assert.Empty(t, msg.Reactions)
	assert.Contains(t, h.backend.deleted, recordID)
}

func TestToggleReactionRollsBackAdd(t *testing.T) {
	h := newHarness(t)
	seedHistory(h.backend, "c1", 1)
	h.open(t)
	_, err := h.s.OpenChannel(context.Background(), "c1")
	require.NoError(t, err)

	h.backend.failNext = errors.Unavailable("down", nil)
	on, err := h.s.ToggleReaction(context.Background(), "h000", "🔥")
	require.Error(t, err)
	assert.False(t, on)
	assert.False(t, h.s.Stores().Reactions.HasReacted("h000", "🔥", "u1"))
}

func TestCreateChannelArrivesThroughEvent(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	_, err := h.s.CreateChannel(context.Background(), " ", models.ChannelPublic)
	assert.ErrorIs(t, err, errors.ErrBadRequest)
	_, err = h.s.CreateChannel(context.Background(), "ops", models.ChannelDM)
	assert.ErrorIs(t, err, errors.ErrBadRequest)

	ch, err := h.s.CreateChannel(context.Background(), "ops", models.ChannelPublic)
	require.NoError(t, err)
	assert.Equal(t, 1, h.s.Stores().Channels.Len())

	h.dialer.last().events <- event(realtime.CollectionChannels, ch.ID, realtime.KindCreate, ch)
	assert.Eventually(t, func() bool {
		_, ok := h.s.Stores().Channels.Get(ch.ID)
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		h.dialer.mu.Lock()
		defer h.dialer.mu.Unlock()
		return len(h.dialer.streams) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestDirectMessageAndThread(t *testing.T) {
	h := newHarness(t)
	seedHistory(h.backend, "c1", 1)
	h.open(t)
	_, err := h.s.OpenChannel(context.Background(), "c1")
	require.NoError(t, err)

	_, err = h.s.CreateDirectMessage(context.Background(), "u1")
	assert.ErrorIs(t, err, errors.ErrBadRequest)

	dm, err := h.s.CreateDirectMessage(context.Background(), "u2")
	require.NoError(t, err)
	assert.Len(t, h.s.Stores().Channels.DirectMessages(), 1)
	assert.Equal(t, dm.ID, h.s.Stores().Channels.DirectMessages()[0].ID)

	res, err := h.s.StartThread(context.Background(), "h000", "first reply")
	require.NoError(t, err)
	assert.Len(t, h.s.Stores().Channels.Threads(), 1)
	parent, ok := h.s.Stores().Messages.ThreadParent(res.Channel.ID)
	require.True(t, ok)
	assert.Equal(t, "h000", parent.ID)
}

func TestSetStatusAndMarkRead(t *testing.T) {
	h := newHarness(t)
	h.open(t)

	require.NoError(t, h.s.SetStatus(context.Background(), models.StatusAway, &models.CustomStatus{Emoji: "🌴", Text: "off"}))
	assert.Equal(t, models.StatusAway, h.s.Stores().Presence.Status("u1"))
	assert.ErrorIs(t, h.s.SetStatus(context.Background(), "busy", nil), errors.ErrBadRequest)

	h.dialer.last().events <- event(realtime.CollectionMessages, "m9", realtime.KindCreate, models.Message{
		Document:  models.Document{ID: "m9"},
		ChannelID: "c1",
		SenderID:  "u2",
	})
	assert.Eventually(t, func() bool { return h.s.Stores().Notifications.Unread("c1") == 1 }, time.Second, 5*time.Millisecond)
	h.s.MarkChannelAsRead("c1")
	assert.Equal(t, 0, h.s.Stores().Notifications.TotalUnread())
}

func TestDeletingCurrentWorkspaceResetsState(t *testing.T) {
	h := newHarness(t)
	seedHistory(h.backend, "c1", 3)
	h.open(t)
	_, err := h.s.OpenChannel(context.Background(), "c1")
	require.NoError(t, err)

	h.dialer.last().events <- event(realtime.CollectionWorkspaces, "w1", realtime.KindDelete, models.Workspace{
		Document: models.Document{ID: "w1"},
		Name:     "Acme",
	})
	assert.Eventually(t, func() bool { return h.s.Stores().Messages.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "", h.s.Stores().Workspaces.CurrentID())
	assert.Equal(t, 0, h.s.Stores().Members.Len())

	var titles []string
	for _, tt := range h.s.Toasts().Recent() {
		titles = append(titles, tt.Title)
	}
	assert.Contains(t, titles, "Workspace Deleted")
}

func TestDisconnectShowsToast(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.dialer.last().Close())

	assert.Eventually(t, func() bool {
		for _, tt := range h.s.Toasts().Recent() {
			if tt.Title == "Disconnected" && tt.Level == toast.LevelWarning {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, realtime.StatusDisconnected, h.s.Status())

	require.NoError(t, h.s.Reconnect(context.Background()))
	assert.Equal(t, realtime.StatusConnected, h.s.Status())
}

func TestCloseWritesOffline(t *testing.T) {
	b := newFakeBackend()
	s := New(Config{UserID: "u1", Database: "main", HeartbeatInterval: time.Hour}, Deps{Backend: b, Dialer: &streamDialer{}})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Close(context.Background()))

	b.mu.Lock()
	doc := b.docs["presence/u1"]
	b.mu.Unlock()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"offline"`)
	assert.Equal(t, realtime.StatusDisconnected, s.Status())
}

func TestSnapshotReflectsStores(t *testing.T) {
	h := newHarness(t)
	snap := h.s.Snapshot()
	assert.Nil(t, snap.Workspace)
	assert.Zero(t, snap.ChannelCount)

	h.open(t)
	snap = h.s.Snapshot()
	assert.Equal(t, "u1", snap.UserID)
	assert.Equal(t, realtime.StatusConnected, snap.Status)
	assert.NotEmpty(t, snap.Channels)
	require.NotNil(t, snap.Workspace)
	assert.Equal(t, "w1", snap.Workspace.ID)
	assert.Equal(t, 1, snap.ChannelCount)
	assert.Len(t, snap.Members, 2)
}
