package session

import (
	"github.com/chattie/chattie/internal/models"
	"github.com/chattie/chattie/internal/notifications"
	"github.com/chattie/chattie/internal/realtime"
	"github.com/chattie/chattie/internal/toast"
)

// Snapshot is a point-in-time view of the session for the debug API.
type Snapshot struct {
	UserID        string                 `json:"user_id"`
	Status        realtime.Status        `json:"status"`
	Channels      []string               `json:"subscribed_channels"`
	Workspace     *models.Workspace      `json:"workspace,omitempty"`
	ChannelCount  int                    `json:"channel_count"`
	MessageCount  int                    `json:"message_count"`
	ReactionCount int                    `json:"reaction_count"`
	Members       []models.Member        `json:"members"`
	Presence      []models.Presence      `json:"presence"`
	Notifications notifications.Snapshot `json:"notifications"`
	Toasts        []toast.Toast          `json:"toasts"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		UserID:        s.cfg.UserID,
		Status:        s.manager.Status(),
		Channels:      s.manager.Channels(),
		ChannelCount:  s.stores.Channels.Len(),
		MessageCount:  s.stores.Messages.Len(),
		ReactionCount: s.stores.Reactions.Len(),
		Members:       s.stores.Members.All(),
		Presence:      s.stores.Presence.All(),
		Notifications: s.stores.Notifications.Snapshot(),
		Toasts:        s.toasts.Recent(),
	}
	if ws, ok := s.stores.Workspaces.Current(); ok {
		snap.Workspace = &ws
	}
	return snap
}
