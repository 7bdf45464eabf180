package messages

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/observer"
	"github.com/chattie/chattie/internal/models"
)

type ChangeKind string

const (
	ChangeReset    ChangeKind = "reset"
	ChangeMerge    ChangeKind = "merge"
	ChangeAdd      ChangeKind = "add"
	ChangeUpdate   ChangeKind = "update"
	ChangeDelete   ChangeKind = "delete"
	ChangeReaction ChangeKind = "reaction"
)

type Change struct {
	Kind      ChangeKind
	MessageID string
}

// Patch holds the fields of an update; nil fields are left untouched.
type Patch struct {
	Content     *string
	SenderName  *string
	EditedAt    *time.Time
	Mentions    *[]string
	ThreadID    *string
	ThreadCount *int
	Attachments *[]string
	Reactions   *[]models.EmbeddedReaction
	UpdatedAt   time.Time
}

// PatchFrom turns a full document, as delivered by an update event, into a patch.
func PatchFrom(m models.Message) Patch {
	c := m.Clone()
	p := Patch{
		Content:     &c.Content,
		EditedAt:    c.EditedAt,
		ThreadCount: c.ThreadCount,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.SenderName != "" {
		p.SenderName = &c.SenderName
	}
	if c.Mentions != nil {
		p.Mentions = &c.Mentions
	}
	if c.ThreadID != "" {
		p.ThreadID = &c.ThreadID
	}
	if c.Attachments != nil {
		p.Attachments = &c.Attachments
	}
	if c.Reactions != nil {
		p.Reactions = &c.Reactions
	}
	return p
}

// Store is the ordered, deduplicated set of loaded messages, sorted by
// creation time with the id as tie breaker.
type Store struct {
	mu      sync.RWMutex
	items   []*models.Message
	byID    map[string]*models.Message
	now     func() time.Time
	changes observer.Subject[Change]
}

func NewStore() *Store {
	return &Store{
		byID: make(map[string]*models.Message),
		now:  time.Now,
	}
}

func less(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *Store) Subscribe(listener func(Change)) func() {
	return s.changes.Subscribe(listener)
}

// InitializeForWorkspace replaces the set when reset is true; otherwise it
// merges by id, keeping whichever copy carries the later update timestamp.
func (s *Store) InitializeForWorkspace(msgs []models.Message, reset bool) {
	s.mu.Lock()
	if reset {
		s.items = s.items[:0]
		s.byID = make(map[string]*models.Message, len(msgs))
	}

	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		existing, ok := s.byID[m.ID]
		if ok && !m.UpdatedAt.After(existing.UpdatedAt) {
			continue
		}
		c := sanitize(m)
		if ok {
			*existing = c
			continue
		}
		s.byID[c.ID] = &c
		s.items = append(s.items, &c)
	}

	sort.SliceStable(s.items, func(i, j int) bool { return less(s.items[i], s.items[j]) })
	s.mu.Unlock()

	kind := ChangeMerge
	if reset {
		kind = ChangeReset
	}
	s.changes.Notify(Change{Kind: kind})
}

// AddMessage inserts m in creation order. It reports false when the id is
// already present, which is the case for a create echoed after a local add.
func (s *Store) AddMessage(m models.Message) bool {
	if m.ID == "" {
		return false
	}

	s.mu.Lock()
	if _, ok := s.byID[m.ID]; ok {
		s.mu.Unlock()
		return false
	}

	c := sanitize(m)
	idx := sort.Search(len(s.items), func(i int) bool { return less(&c, s.items[i]) })
	s.items = slices.Insert(s.items, idx, &c)
	s.byID[c.ID] = &c
	s.mu.Unlock()

	s.changes.Notify(Change{Kind: ChangeAdd, MessageID: c.ID})
	return true
}

// UpdateMessage merges p into the stored message. Unknown ids and patches
// older than the stored copy are ignored.
func (s *Store) UpdateMessage(id string, p Patch) bool {
	s.mu.Lock()
	m, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if !p.UpdatedAt.IsZero() && p.UpdatedAt.Before(m.UpdatedAt) {
		s.mu.Unlock()
		return false
	}

	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.SenderName != nil {
		m.SenderName = *p.SenderName
	}
	if p.EditedAt != nil {
		t := *p.EditedAt
		m.EditedAt = &t
	}
	if p.Mentions != nil {
		m.Mentions = slices.Clone(*p.Mentions)
	}
	if p.ThreadID != nil {
		m.ThreadID = *p.ThreadID
	}
	if p.ThreadCount != nil {
		n := *p.ThreadCount
		m.ThreadCount = &n
	}
	if p.Attachments != nil {
		m.Attachments = slices.Clone(*p.Attachments)
	}
	if p.Reactions != nil {
		m.Reactions = dedupeReactions(*p.Reactions)
	}

	if p.UpdatedAt.IsZero() {
		if now := s.now(); now.After(m.UpdatedAt) {
			m.UpdatedAt = now
		}
	} else {
		m.UpdatedAt = p.UpdatedAt
	}
	s.mu.Unlock()

	s.changes.Notify(Change{Kind: ChangeUpdate, MessageID: id})
	return true
}

func (s *Store) DeleteMessage(id string) bool {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.byID, id)
	s.items = slices.DeleteFunc(s.items, func(m *models.Message) bool { return m.ID == id })
	s.mu.Unlock()

	s.changes.Notify(Change{Kind: ChangeDelete, MessageID: id})
	return true
}

// UpdateReaction records userID under emoji on the message's embedded list.
// A (emoji, user) pair is never stored twice.
func (s *Store) UpdateReaction(messageID, emoji, userID string) (bool, error) {
	if messageID == "" || emoji == "" || userID == "" {
		return false, errors.BadRequest("message id, emoji and user id are required")
	}

	s.mu.Lock()
	m, ok := s.byID[messageID]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}

	changed := true
	idx := slices.IndexFunc(m.Reactions, func(r models.EmbeddedReaction) bool { return r.Emoji == emoji })
	switch {
	case idx < 0:
		m.Reactions = append(m.Reactions, models.EmbeddedReaction{Emoji: emoji, UserIDs: []string{userID}})
	case slices.Contains(m.Reactions[idx].UserIDs, userID):
		changed = false
	default:
		m.Reactions[idx].UserIDs = append(m.Reactions[idx].UserIDs, userID)
	}
	s.mu.Unlock()

	if changed {
		s.changes.Notify(Change{Kind: ChangeReaction, MessageID: messageID})
	}
	return changed, nil
}

// RemoveReaction drops userID from emoji, and the emoji once nobody is left.
// An empty userID clears the emoji for everyone.
func (s *Store) RemoveReaction(messageID, emoji, userID string) (bool, error) {
	if messageID == "" || emoji == "" {
		return false, errors.BadRequest("message id and emoji are required")
	}

	s.mu.Lock()
	m, ok := s.byID[messageID]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}

	idx := slices.IndexFunc(m.Reactions, func(r models.EmbeddedReaction) bool { return r.Emoji == emoji })
	if idx < 0 {
		s.mu.Unlock()
		return false, nil
	}

	changed := true
	if userID == "" {
		m.Reactions = slices.Delete(m.Reactions, idx, idx+1)
	} else {
		users := m.Reactions[idx].UserIDs
		n := len(users)
		users = slices.DeleteFunc(users, func(u string) bool { return u == userID })
		changed = len(users) != n
		if len(users) == 0 {
			m.Reactions = slices.Delete(m.Reactions, idx, idx+1)
		} else {
			m.Reactions[idx].UserIDs = users
		}
	}
	s.mu.Unlock()

	if changed {
		s.changes.Notify(Change{Kind: ChangeReaction, MessageID: messageID})
	}
	return changed, nil
}

func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return models.Message{}, false
	}
	return m.Clone(), true
}

func (s *Store) All() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.items))
	for i, m := range s.items {
		out[i] = m.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// ForChannel is computed from the full set on every call.
func (s *Store) ForChannel(channelID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, m := range s.items {
		if m.ChannelID == channelID {
			out = append(out, m.Clone())
		}
	}
	return out
}

// ThreadParent returns the message anchoring the given thread channel.
func (s *Store) ThreadParent(threadChannelID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.items {
		if m.ThreadID == threadChannelID {
			return m.Clone(), true
		}
	}
	return models.Message{}, false
}

func sanitize(m models.Message) models.Message {
	c := m.Clone()
	if c.Reactions != nil {
		c.Reactions = dedupeReactions(c.Reactions)
	}
	return c
}

func dedupeReactions(in []models.EmbeddedReaction) []models.EmbeddedReaction {
	out := make([]models.EmbeddedReaction, 0, len(in))
	index := make(map[string]int, len(in))
	for _, r := range in {
		if r.Emoji == "" {
			continue
		}
		if i, ok := index[r.Emoji]; ok {
			out[i].UserIDs = models.Dedupe(append(out[i].UserIDs, r.UserIDs...))
			continue
		}
		index[r.Emoji] = len(out)
		out = append(out, models.EmbeddedReaction{Emoji: r.Emoji, UserIDs: models.Dedupe(slices.Clone(r.UserIDs))})
	}
	return out
}
