package notifications

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/observer"
	"github.com/chattie/chattie/internal/models"
	"github.com/google/uuid"
)

const DefaultLimit = 50

type ActivityKind string

const (
	ActivityMessage   ActivityKind = "message"
	ActivityReaction  ActivityKind = "reaction"
	ActivityChannel   ActivityKind = "channel"
	ActivityWorkspace ActivityKind = "workspace"
)

// Activity is a frozen record of something that happened. Payload holds the
// JSON encoding of the value at the time it was recorded.
type Activity struct {
	ID        string          `json:"id"`
	Kind      ActivityKind    `json:"kind"`
	Action    string          `json:"action,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type Snapshot struct {
	Unread         map[string]int   `json:"unread"`
	TotalUnread    int              `json:"total_unread"`
	Mentions       []models.Message `json:"mentions"`
	RecentActivity []Activity       `json:"recent_activity"`
	ActiveChannel  string           `json:"active_channel,omitempty"`
}

// Aggregator keeps per-channel unread counts, recent mentions and a bounded
// activity feed. State lives in memory only.
type Aggregator struct {
	mu            sync.RWMutex
	limit         int
	unread        map[string]int
	mentions      []models.Message
	activity      []Activity
	activeChannel string
	now           func() time.Time
	changes       observer.Subject[struct{}]
}

func NewAggregator(limit int) *Aggregator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Aggregator{
		limit:  limit,
		unread: make(map[string]int),
		now:    time.Now,
	}
}

func (a *Aggregator) Subscribe(listener func()) func() {
	return a.changes.Subscribe(func(struct{}) { listener() })
}

// OnMessageCreated counts msg as unread unless its channel is being viewed,
// and records it as a mention when it mentions anyone.
func (a *Aggregator) OnMessageCreated(msg models.Message) {
	if msg.ChannelID == "" {
		return
	}

	a.mu.Lock()
	if msg.ChannelID != a.activeChannel {
		a.unread[msg.ChannelID]++
	}
	if len(msg.Mentions) > 0 {
		a.mentions = prepend(a.mentions, msg.Clone(), a.limit)
	}
	a.mu.Unlock()

	a.changes.Notify(struct{}{})
}

func (a *Aggregator) RecordActivity(kind ActivityKind, action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Internal("failed to snapshot activity payload", err)
	}

	entry := Activity{
		ID:        uuid.NewString(),
		Kind:      kind,
		Action:    action,
		Payload:   raw,
		Timestamp: a.now(),
	}

	a.mu.Lock()
	a.activity = prepend(a.activity, entry, a.limit)
	a.mu.Unlock()

	a.changes.Notify(struct{}{})
	return nil
}

func (a *Aggregator) MarkChannelAsRead(channelID string) {
	a.mu.Lock()
	_, had := a.unread[channelID]
	delete(a.unread, channelID)
	a.mu.Unlock()

	if had {
		a.changes.Notify(struct{}{})
	}
}

// SetActiveChannel marks channelID as being viewed and clears its unread count.
func (a *Aggregator) SetActiveChannel(channelID string) {
	a.mu.Lock()
	a.activeChannel = channelID
	delete(a.unread, channelID)
	a.mu.Unlock()

	a.changes.Notify(struct{}{})
}

func (a *Aggregator) ActiveChannel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activeChannel
}

func (a *Aggregator) Unread(channelID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.unread[channelID]
}

func (a *Aggregator) TotalUnread() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totalLocked()
}

func (a *Aggregator) totalLocked() int {
	total := 0
	for _, n := range a.unread {
		total += n
	}
	return total
}

// Mentions returns the most recent mentions, newest first.
func (a *Aggregator) Mentions() []models.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneMessages(a.mentions)
}

// RecentActivity returns the activity feed, newest first.
func (a *Aggregator) RecentActivity() []Activity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneActivity(a.activity)
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	unread := make(map[string]int, len(a.unread))
	for k, v := range a.unread {
		unread[k] = v
	}
	return Snapshot{
		Unread:         unread,
		TotalUnread:    a.totalLocked(),
		Mentions:       cloneMessages(a.mentions),
		RecentActivity: cloneActivity(a.activity),
		ActiveChannel:  a.activeChannel,
	}
}

// UnreadChannels lists channels with unread messages, most unread first.
func (a *Aggregator) UnreadChannels() []string {
	a.mu.RLock()
	ids := make([]string, 0, len(a.unread))
	counts := make(map[string]int, len(a.unread))
	for id, n := range a.unread {
		ids = append(ids, id)
		counts[id] = n
	}
	a.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.unread = make(map[string]int)
	a.mentions = nil
	a.activity = nil
	a.activeChannel = ""
	a.mu.Unlock()

	a.changes.Notify(struct{}{})
}

func prepend[T any](list []T, item T, limit int) []T {
	out := make([]T, 0, min(len(list)+1, limit))
	out = append(out, item)
	for _, v := range list {
		if len(out) >= limit {
			break
		}
		out = append(out, v)
	}
	return out
}

func cloneMessages(in []models.Message) []models.Message {
	out := make([]models.Message, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

func cloneActivity(in []Activity) []Activity {
	out := make([]Activity, len(in))
	for i, e := range in {
		e.Payload = append(json.RawMessage(nil), e.Payload...)
		out[i] = e
	}
	return out
}
