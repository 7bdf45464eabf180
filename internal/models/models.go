package models

import (
	"encoding/json"
	"slices"
	"time"
)

type SenderType string

const (
	SenderUser      SenderType = "user"
	SenderAIPersona SenderType = "ai_persona"
)

type ChannelType string

const (
	ChannelPublic  ChannelType = "public"
	ChannelPrivate ChannelType = "private"
	ChannelDM      ChannelType = "dm"
	ChannelThread  ChannelType = "thread"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusAway || s == StatusOffline
}

// Document carries the metadata every backend document shares.
type Document struct {
	ID        string    `json:"$id"`
	CreatedAt time.Time `json:"$createdAt"`
	UpdatedAt time.Time `json:"$updatedAt"`
}

type EmbeddedReaction struct {
	Emoji   string   `json:"emoji"`
	UserIDs []string `json:"userIds"`
}

type Message struct {
	Document
	ChannelID   string             `json:"channel_id"`
	WorkspaceID string             `json:"workspace_id"`
	SenderType  SenderType         `json:"sender_type"`
	SenderID    string             `json:"sender_id"`
	SenderName  string             `json:"sender_name,omitempty"`
	Content     string             `json:"content"`
	EditedAt    *time.Time         `json:"edited_at,omitempty"`
	Mentions    []string           `json:"mentions,omitempty"`
	ThreadID    string             `json:"thread_id,omitempty"`
	ThreadCount *int               `json:"thread_count,omitempty"`
	Attachments []string           `json:"attachments,omitempty"`
	Reactions   []EmbeddedReaction `json:"reactions,omitempty"`
	VoiceID     string             `json:"voice_id,omitempty"`
}

func (m Message) Clone() Message {
	out := m
	out.Mentions = slices.Clone(m.Mentions)
	out.Attachments = slices.Clone(m.Attachments)
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	if m.ThreadCount != nil {
		n := *m.ThreadCount
		out.ThreadCount = &n
	}
	if m.Reactions != nil {
		out.Reactions = make([]EmbeddedReaction, len(m.Reactions))
		for i, r := range m.Reactions {
			out.Reactions[i] = EmbeddedReaction{Emoji: r.Emoji, UserIDs: slices.Clone(r.UserIDs)}
		}
	}
	return out
}

type Channel struct {
	Document
	WorkspaceID     string      `json:"workspace_id"`
	Name            string      `json:"name"`
	Type            ChannelType `json:"type"`
	Members         []string    `json:"members"`
	Description     string      `json:"description,omitempty"`
	Purpose         string      `json:"purpose,omitempty"`
	Topics          []string    `json:"topics,omitempty"`
	PrimaryPersonas []string    `json:"primary_personas,omitempty"`
	LastMessageAt   *time.Time  `json:"last_message_at,omitempty"`
}

// Normalize drops duplicate member ids, keeping first occurrence order.
func (c *Channel) Normalize() {
	c.Members = Dedupe(c.Members)
}

func (c Channel) Clone() Channel {
	out := c
	out.Members = slices.Clone(c.Members)
	out.Topics = slices.Clone(c.Topics)
	out.PrimaryPersonas = slices.Clone(c.PrimaryPersonas)
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		out.LastMessageAt = &t
	}
	return out
}

func (c Channel) HasMember(userID string) bool {
	return slices.Contains(c.Members, userID)
}

type Workspace struct {
	Document
	Name             string   `json:"name"`
	OwnerID          string   `json:"owner_id"`
	Members          []string `json:"members"`
	AIPersona        string   `json:"ai_persona,omitempty"`
	MessageFrequency *int     `json:"message_frequency,omitempty"`
}

func (w Workspace) Clone() Workspace {
	out := w
	out.Members = slices.Clone(w.Members)
	if w.MessageFrequency != nil {
		n := *w.MessageFrequency
		out.MessageFrequency = &n
	}
	return out
}

// ReactionRecord is one backend document per (message, emoji, user). Events
// relayed from older clients may instead carry the aggregated UserIDs list.
type ReactionRecord struct {
	Document
	MessageID string   `json:"message_id"`
	Emoji     string   `json:"emoji"`
	UserID    string   `json:"user_id,omitempty"`
	UserName  string   `json:"user_name,omitempty"`
	ChannelID string   `json:"channel_id,omitempty"`
	UserIDs   []string `json:"userIds,omitempty"`
}

type CustomStatus struct {
	Emoji string `json:"emoji,omitempty"`
	Text  string `json:"text,omitempty"`
}

type customStatusJSON CustomStatus

// MarshalJSON encodes the status as a JSON string, the shape the presence
// collection stores it in.
func (c CustomStatus) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(customStatusJSON(c))
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}

// UnmarshalJSON accepts the stored string form, a plain object, or a bare
// text string.
func (c *CustomStatus) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return json.Unmarshal(b, (*customStatusJSON)(c))
	}
	*c = CustomStatus{}
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), (*customStatusJSON)(c)); err != nil {
		c.Text = s
	}
	return nil
}

type Presence struct {
	UserID       string        `json:"userId"`
	BaseStatus   Status        `json:"baseStatus"`
	CustomStatus *CustomStatus `json:"customStatus"`
	LastSeen     time.Time     `json:"lastSeen"`
	WorkspaceID  string        `json:"workspaceId,omitempty"`
}

type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarID  string `json:"avatarId,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type UserPrefs struct {
	AvatarID string `json:"avatarId,omitempty"`
}

type User struct {
	ID     string    `json:"$id"`
	Name   string    `json:"name"`
	Email  string    `json:"email,omitempty"`
	Labels []string  `json:"labels,omitempty"`
	Prefs  UserPrefs `json:"prefs"`
}

// DisplayName falls back to the email when the account has no name.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func Dedupe(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
