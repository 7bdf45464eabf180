package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/channels"
	"github.com/chattie/chattie/internal/common/logging"
	"github.com/chattie/chattie/internal/members"
	"github.com/chattie/chattie/internal/messages"
	"github.com/chattie/chattie/internal/models"
	"github.com/chattie/chattie/internal/notifications"
	"github.com/chattie/chattie/internal/presence"
	"github.com/chattie/chattie/internal/reactions"
	"github.com/chattie/chattie/internal/toast"
	"github.com/chattie/chattie/internal/workspaces"
	"go.uber.org/zap"
)

const DefaultChannelCreateDelay = 500 * time.Millisecond

// Stores groups everything the handlers write to.
type Stores struct {
	Messages      *messages.Store
	Reactions     *reactions.Store
	Channels      *channels.Store
	Workspaces    *workspaces.Store
	Members       *members.Directory
	Presence      *presence.Store
	Notifications *notifications.Aggregator
}

// Handlers applies routed events to the stores. Work that outlives the
// event, such as the delayed channel insert and member syncs, is tracked so
// Close can wait for it.
type Handlers struct {
	stores             Stores
	toasts             toast.Sink
	reconnect          func(ctx context.Context) error
	channelCreateDelay time.Duration
	logger             *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHandlers(stores Stores, toasts toast.Sink, reconnect func(context.Context) error, channelCreateDelay time.Duration, logger *zap.Logger) *Handlers {
	if channelCreateDelay < 0 {
		channelCreateDelay = DefaultChannelCreateDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		stores:             stores,
		toasts:             toasts,
		reconnect:          reconnect,
		channelCreateDelay: channelCreateDelay,
		logger:             logger,
		ctx:                ctx,
		cancel:             cancel,
	}
}

func (h *Handlers) Register(r *Router) {
	r.Register(CollectionMessages, h.handleMessage)
	r.Register(CollectionReactions, h.handleReaction)
	r.Register(CollectionChannels, h.handleChannel)
	r.Register(CollectionWorkspaces, h.handleWorkspace)
	r.Register(CollectionPresence, h.handlePresence)
}

// Wait blocks until deferred work started by earlier events has finished.
func (h *Handlers) Wait() {
	h.wg.Wait()
}

// Close cancels pending deferred work and waits for it to stop.
func (h *Handlers) Close() {
	h.cancel()
	h.wg.Wait()
}

func (h *Handlers) goTracked(fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(h.ctx)
	}()
}

func (h *Handlers) afterTracked(d time.Duration, fn func(ctx context.Context)) {
	h.goTracked(func(ctx context.Context) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			fn(ctx)
		case <-ctx.Done():
		}
	})
}

func (h *Handlers) record(ctx context.Context, kind notifications.ActivityKind, action Kind, payload any) {
	if h.stores.Notifications == nil {
		return
	}
	if err := h.stores.Notifications.RecordActivity(kind, string(action), payload); err != nil {
		logging.FromContext(ctx).Warn("failed to record activity", zap.Error(err))
	}
}

func (h *Handlers) show(t toast.Toast) {
	if h.toasts != nil {
		h.toasts.Show(t)
	}
}

func (h *Handlers) handleMessage(ctx context.Context, ev Event) error {
	e, ok := ev.(MessageEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", ev)
	}
	m := e.Message

	switch e.Kind {
	case KindCreate:
		h.stores.Messages.AddMessage(m)
		// A history page may have delivered the message already; the
		// aggregator still counts the event.
		if h.stores.Notifications != nil {
			h.stores.Notifications.OnMessageCreated(m)
		}
		if len(m.Reactions) > 0 {
			if err := h.stores.Reactions.SetMessageReactions(m.ID, reactions.FromEmbedded(m.Reactions)); err != nil {
				return err
			}
		}
	case KindUpdate:
		h.stores.Messages.UpdateMessage(m.ID, messages.PatchFrom(m))
		if m.Reactions != nil {
			if err := h.stores.Reactions.SetMessageReactions(m.ID, reactions.FromEmbedded(m.Reactions)); err != nil {
				return err
			}
		}
	case KindDelete:
		h.stores.Messages.DeleteMessage(m.ID)
		h.stores.Reactions.ClearMessage(m.ID)
	}

	h.record(ctx, notifications.ActivityMessage, e.Kind, m)
	return nil
}

func (h *Handlers) handleReaction(ctx context.Context, ev Event) error {
	e, ok := ev.(ReactionEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", ev)
	}
	r := e.Record

	switch e.Kind {
	case KindCreate, KindUpdate:
		users := r.UserIDs
		if len(users) == 0 {
			if _, err := h.stores.Reactions.ApplyRecord(r); err != nil {
				return err
			}
			users = []string{r.UserID}
		} else if _, err := h.stores.Reactions.Apply(r.MessageID, reactions.Group{Emoji: r.Emoji, UserIDs: users}); err != nil {
			return err
		}
		for _, u := range users {
			if _, err := h.stores.Messages.UpdateReaction(r.MessageID, r.Emoji, u); err != nil {
				return err
			}
		}
	case KindDelete:
		if _, err := h.stores.Reactions.Remove(r.MessageID, r.Emoji, r.UserID); err != nil {
			return err
		}
		if _, err := h.stores.Messages.RemoveReaction(r.MessageID, r.Emoji, r.UserID); err != nil {
			return err
		}
	}

	h.record(ctx, notifications.ActivityReaction, e.Kind, r)
	return nil
}

func channelToast(title string, ch models.Channel) toast.Toast {
	t := toast.Info(title, "#"+ch.Name)
	t.Link = fmt.Sprintf("/workspaces/%s/channels/%s", ch.WorkspaceID, ch.ID)
	return t
}

func (h *Handlers) handleChannel(ctx context.Context, ev Event) error {
	e, ok := ev.(ChannelEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", ev)
	}
	ch := e.Channel

	switch e.Kind {
	case KindCreate:
		// The backend grants read access to a new channel slightly after the
		// create event, so the insert and resubscribe are deferred.
		h.afterTracked(h.channelCreateDelay, func(ctx context.Context) {
			if ws := h.stores.Channels.WorkspaceID(); ws != "" && ch.WorkspaceID != "" && ch.WorkspaceID != ws {
				return
			}
			if !h.stores.Channels.AddChannel(ch) {
				return
			}
			h.show(channelToast("Channel Created", ch))
			if h.reconnect == nil {
				return
			}
			if err := h.reconnect(ctx); err != nil {
				h.logger.Error("failed to resubscribe after channel creation",
					zap.String("channel_id", ch.ID),
					zap.Error(err),
				)
			}
		})
	case KindUpdate:
		if h.stores.Channels.UpdateChannel(ch.ID, ch) {
			h.show(channelToast("Channel Updated", ch))
		}
	case KindDelete:
		if h.stores.Channels.DeleteChannel(ch.ID) {
			h.show(channelToast("Channel Deleted", ch))
		}
	}

	h.record(ctx, notifications.ActivityChannel, e.Kind, ch)
	return nil
}

func (h *Handlers) handleWorkspace(_ context.Context, ev Event) error {
	e, ok := ev.(WorkspaceEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", ev)
	}
	ws := e.Workspace
	ws.Members = models.Dedupe(ws.Members)

	switch e.Kind {
	case KindCreate:
		if _, err := h.stores.Workspaces.Upsert(ws); err != nil {
			return err
		}
	case KindUpdate:
		if _, err := h.stores.Workspaces.Upsert(ws); err != nil {
			return err
		}
		isCurrent := h.stores.Workspaces.CurrentID() == ws.ID
		if !isCurrent || ws.Members == nil || h.stores.Members == nil {
			h.show(toast.Info("Workspace Updated", fmt.Sprintf("The workspace %q has been updated.", ws.Name)))
			return nil
		}
		h.goTracked(func(ctx context.Context) {
			if _, err := h.stores.Members.Sync(ctx, ws.Members); err != nil {
				h.logger.Error("failed to sync workspace members",
					zap.String("workspace_id", ws.ID),
					zap.Error(err),
				)
			}
			if h.stores.Presence != nil {
				h.stores.Presence.SetInitial(ws.Members)
			}
			h.show(toast.Info("Workspace Updated", fmt.Sprintf("The workspace %q has been updated.", ws.Name)))
		})
	case KindDelete:
		if h.stores.Workspaces.Remove(ws.ID) {
			h.show(toast.Warning("Workspace Deleted", fmt.Sprintf("The workspace %q has been deleted.", ws.Name)))
		}
	}
	return nil
}

func (h *Handlers) handlePresence(_ context.Context, ev Event) error {
	e, ok := ev.(PresenceEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", ev)
	}
	p := e.Presence

	if e.Kind == KindDelete {
		return h.stores.Presence.UpdateStatus(p.UserID, models.StatusOffline, nil)
	}
	return h.stores.Presence.Apply(p)
}
