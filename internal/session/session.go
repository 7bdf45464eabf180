package session

import (
	"context"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/backend"
	"github.com/chattie/chattie/internal/channels"
	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/infra/cache"
	"github.com/chattie/chattie/internal/members"
	"github.com/chattie/chattie/internal/messages"
	"github.com/chattie/chattie/internal/models"
	"github.com/chattie/chattie/internal/notifications"
	"github.com/chattie/chattie/internal/observability"
	"github.com/chattie/chattie/internal/presence"
	"github.com/chattie/chattie/internal/reactions"
	"github.com/chattie/chattie/internal/realtime"
	"github.com/chattie/chattie/internal/toast"
	"github.com/chattie/chattie/internal/workspaces"
	"go.uber.org/zap"
)

// Backend is everything the session asks of the remote side.
type Backend interface {
	channels.Fetcher
	members.UserFetcher
	presence.DocumentWriter

	ListWorkspaces(ctx context.Context) ([]models.Workspace, error)
	ListReactions(ctx context.Context, messageIDs []string) ([]models.ReactionRecord, error)
	ListPresence(ctx context.Context, userIDs []string) ([]models.Presence, error)
	AvatarURL(fileID string) string

	LoadMessages(ctx context.Context, channelID string, offset int) (backend.MessagePage, error)
	CreateMessage(ctx context.Context, content, channelID, workspaceID string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	CreateReaction(ctx context.Context, messageID, emoji, channelID string) (models.ReactionRecord, error)
	DeleteReaction(ctx context.Context, reactionID string) error
	ToggleMessageReaction(ctx context.Context, messageID, emoji, channelID string, remove bool) error
	CreateChannel(ctx context.Context, name string, typ models.ChannelType, workspaceID string) (models.Channel, error)
	CreateDirectMessage(ctx context.Context, otherUserID string) (models.Channel, error)
	StartThread(ctx context.Context, messageID, workspaceID, content string) (backend.ThreadResult, error)
}

type Config struct {
	UserID             string
	UserName           string
	Database           string
	HistoryPages       int
	NotificationLimit  int
	HeartbeatInterval  time.Duration
	FreshnessWindow    time.Duration
	ReinitGrace        time.Duration
	ChannelCreateDelay time.Duration
	MemberConcurrency  int
}

type Deps struct {
	Backend  Backend
	Dialer   realtime.Dialer
	Toasts   *toast.Feed
	Profiles *cache.AsidePattern[models.User]
	Avatars  *cache.TTLCache[string, string]
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// Session wires the stores, the event router and the realtime subscription
// for one signed-in user, and runs the user's actions against them.
type Session struct {
	cfg      Config
	backend  Backend
	stores   realtime.Stores
	toasts   *toast.Feed
	router   *realtime.Router
	handlers *realtime.Handlers
	manager  *realtime.Manager
	presence *presence.Service
	metrics  *observability.Metrics
	logger   *zap.Logger

	// openMu serializes workspace switches.
	openMu sync.Mutex

	mu       sync.Mutex
	userName string
	started  bool
	teardown realtime.Teardown
	unsubs   []func()
}

func New(cfg Config, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistoryPages <= 0 {
		cfg.HistoryPages = 1
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = 2 * presence.DefaultHeartbeatInterval
	}
	toasts := deps.Toasts
	if toasts == nil {
		toasts = toast.NewFeed(toast.DefaultLimit, logger)
	}

	opts := []members.Option{members.WithConcurrency(cfg.MemberConcurrency)}
	if deps.Profiles != nil {
		opts = append(opts, members.WithProfileCache(deps.Profiles))
	}
	if deps.Avatars != nil {
		opts = append(opts, members.WithAvatarCache(deps.Avatars))
	}

	presenceStore := presence.NewStore()
	s := &Session{
		cfg:     cfg,
		backend: deps.Backend,
		stores: realtime.Stores{
			Messages:      messages.NewStore(),
			Reactions:     reactions.NewStore(),
			Channels:      channels.NewStore(deps.Backend, logger.Named("channels")),
			Workspaces:    workspaces.NewStore(),
			Members:       members.NewDirectory(deps.Backend, deps.Backend.AvatarURL, logger.Named("members"), opts...),
			Presence:      presenceStore,
			Notifications: notifications.NewAggregator(cfg.NotificationLimit),
		},
		toasts:   toasts,
		presence: presence.NewService(deps.Backend, presenceStore, cfg.HeartbeatInterval, logger.Named("presence")),
		metrics:  deps.Metrics,
		logger:   logger,
		userName: cfg.UserName,
	}

	s.router = realtime.NewRouter(logger.Named("router"), deps.Metrics)
	s.handlers = realtime.NewHandlers(s.stores, toasts, s.reconnect, cfg.ChannelCreateDelay, logger.Named("handlers"))
	s.handlers.Register(s.router)
	s.manager = realtime.NewManager(deps.Dialer, s.router, cfg.Database, cfg.ReinitGrace, logger.Named("realtime"), deps.Metrics)

	s.watch()
	return s
}

func (s *Session) reconnect(ctx context.Context) error {
	return s.manager.Reinitialize(ctx)
}

func (s *Session) Stores() realtime.Stores {
	return s.stores
}

func (s *Session) Toasts() *toast.Feed {
	return s.toasts
}

func (s *Session) Status() realtime.Status {
	return s.manager.Status()
}

func (s *Session) UserID() string {
	return s.cfg.UserID
}

func (s *Session) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userName
}

// resolveUserName looks the signed-in user's display name up when none was
// configured. Optimistic messages fall back to an empty sender name.
func (s *Session) resolveUserName(ctx context.Context) {
	if s.UserName() != "" {
		return
	}
	user, err := s.backend.GetUser(ctx, s.cfg.UserID)
	if err != nil {
		s.logger.Warn("failed to resolve user name", zap.String("user_id", s.cfg.UserID), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.userName = user.DisplayName()
	s.mu.Unlock()
}

// watch keeps the store gauges current and reacts to losing the open
// workspace or the stream.
func (s *Session) watch() {
	gauge := func(name string, n func() int) func() {
		return func() { s.metrics.SetStoreSize(name, n()) }
	}
	messagesSize := gauge("messages", s.stores.Messages.Len)
	reactionsSize := gauge("reactions", s.stores.Reactions.Len)
	channelsSize := gauge("channels", s.stores.Channels.Len)
	membersSize := gauge("members", s.stores.Members.Len)
	presenceSize := gauge("presence", s.stores.Presence.Len)
	unread := gauge("unread", s.stores.Notifications.TotalUnread)

	var prev realtime.Status
	var statusMu sync.Mutex

	s.unsubs = append(s.unsubs,
		s.stores.Messages.Subscribe(func(messages.Change) { messagesSize() }),
		s.stores.Reactions.Subscribe(func(reactions.Change) { reactionsSize() }),
		s.stores.Channels.Subscribe(func(channels.Change) { channelsSize() }),
		s.stores.Members.Subscribe(func(members.SyncResult) { membersSize() }),
		s.stores.Presence.Subscribe(func(models.Presence) { presenceSize() }),
		s.stores.Notifications.Subscribe(unread),
		s.stores.Workspaces.Subscribe(func(c workspaces.Change) {
			if c.CurrentLeft {
				s.resetWorkspaceState()
			}
		}),
		s.manager.SubscribeStatus(func(st realtime.Status) {
			statusMu.Lock()
			wasConnected := prev == realtime.StatusConnected
			prev = st
			statusMu.Unlock()
			if wasConnected && st == realtime.StatusDisconnected && s.isStarted() {
				s.toasts.Show(toast.Warning("Disconnected", "Live updates are paused until the connection is restored."))
			}
		}),
	)
}

func (s *Session) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start loads the user's workspaces, announces presence and opens the
// realtime subscription.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	list, err := s.backend.ListWorkspaces(ctx)
	if err != nil {
		return err
	}
	s.stores.Workspaces.SetWorkspaces(list)
	s.resolveUserName(ctx)

	if err := s.presence.Start(ctx, s.cfg.UserID); err != nil {
		return err
	}

	teardown, err := s.manager.Initialize(ctx)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if stopErr := s.presence.Stop(stopCtx); stopErr != nil {
			s.logger.Warn("failed to clear presence after connect failure", zap.Error(stopErr))
		}
		return err
	}

	s.mu.Lock()
	s.started = true
	s.teardown = teardown
	s.mu.Unlock()

	s.logger.Info("session started",
		zap.String("user_id", s.cfg.UserID),
		zap.Int("workspaces", len(list)),
	)
	return nil
}

// Reconnect replaces the realtime subscription.
func (s *Session) Reconnect(ctx context.Context) error {
	return s.manager.Reinitialize(ctx)
}

// Close tears the subscription down, writes the offline presence and waits
// for deferred event work to finish.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	teardown := s.teardown
	s.teardown = nil
	s.started = false
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	if teardown != nil {
		teardown()
	}
	s.manager.Close()
	s.handlers.Close()
	for _, unsub := range unsubs {
		unsub()
	}
	return s.presence.Stop(ctx)
}

func (s *Session) resetWorkspaceState() {
	s.stores.Messages.InitializeForWorkspace(nil, true)
	s.stores.Reactions.ClearAll()
	s.stores.Channels.Invalidate()
	s.stores.Members.Reset()
	s.stores.Presence.Reset()
	s.stores.Notifications.Reset()
}

// OpenWorkspace makes workspaceID current and loads its channels, members
// and their presence.
func (s *Session) OpenWorkspace(ctx context.Context, workspaceID string) error {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	if s.stores.Workspaces.CurrentID() != workspaceID {
		if err := s.stores.Workspaces.SetCurrent(workspaceID); err != nil {
			return err
		}
		s.resetWorkspaceState()
	}

	if _, err := s.stores.Channels.InitializeForWorkspace(ctx, workspaceID); err != nil {
		return err
	}

	ws, ok := s.stores.Workspaces.Current()
	if !ok {
		return errors.NotFound("workspace " + workspaceID + " is no longer available")
	}
	if _, err := s.stores.Members.Sync(ctx, ws.Members); err != nil {
		return err
	}
	s.stores.Presence.SetInitial(ws.Members)

	statuses, err := s.backend.ListPresence(ctx, ws.Members)
	if err != nil {
		s.logger.Warn("failed to load member presence",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
	}
	for _, p := range statuses {
		if p.WorkspaceID == "" {
			p.WorkspaceID = workspaceID
		}
		if err := s.stores.Presence.Apply(p); err != nil {
			s.logger.Debug("skipping invalid presence", zap.String("user_id", p.UserID), zap.Error(err))
		}
	}

	s.presence.SetWorkspace(workspaceID)
	return nil
}

// Online reports whether userID has a fresh, non-offline presence.
func (s *Session) Online(userID string) bool {
	return s.stores.Presence.Status(userID) != models.StatusOffline &&
		s.stores.Presence.IsFresh(userID, s.cfg.FreshnessWindow)
}
