package reactions

import (
	stderrors "errors"
	"maps"
	"slices"
	"sync"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/observer"
	"github.com/chattie/chattie/internal/models"
)

// Group is the canonical per-emoji shape: who reacted, and which backend
// record backs each user's reaction when one is known.
type Group struct {
	Emoji     string
	UserIDs   []string
	RecordIDs map[string]string
}

func (g Group) Clone() Group {
	return Group{
		Emoji:     g.Emoji,
		UserIDs:   slices.Clone(g.UserIDs),
		RecordIDs: maps.Clone(g.RecordIDs),
	}
}

func (g Group) Count() int {
	return len(g.UserIDs)
}

type Change struct {
	MessageID string
}

func validRecord(r models.ReactionRecord) error {
	if r.MessageID == "" {
		return errors.BadRequest("reaction is missing its message reference")
	}
	if r.Emoji == "" {
		return errors.BadRequest("reaction is missing its emoji")
	}
	if r.UserID == "" && len(r.UserIDs) == 0 {
		return errors.BadRequest("reaction is missing its user")
	}
	return nil
}

// recordGroup converts one record into a single-emoji group.
func recordGroup(r models.ReactionRecord) Group {
	users := r.UserIDs
	if len(users) == 0 {
		users = []string{r.UserID}
	}
	g := Group{Emoji: r.Emoji, UserIDs: models.Dedupe(slices.Clone(users))}
	if r.ID != "" && r.UserID != "" {
		g.RecordIDs = map[string]string{r.UserID: r.ID}
	}
	return g
}

func merge(into *Group, g Group) bool {
	changed := false
	for _, u := range g.UserIDs {
		if !slices.Contains(into.UserIDs, u) {
			into.UserIDs = append(into.UserIDs, u)
			changed = true
		}
	}
	for u, rec := range g.RecordIDs {
		if into.RecordIDs == nil {
			into.RecordIDs = make(map[string]string)
		}
		if into.RecordIDs[u] != rec {
			into.RecordIDs[u] = rec
			changed = true
		}
	}
	return changed
}

func mergeInto(groups []Group, g Group) ([]Group, bool) {
	idx := slices.IndexFunc(groups, func(x Group) bool { return x.Emoji == g.Emoji })
	if idx < 0 {
		return append(groups, g.Clone()), true
	}
	return groups, merge(&groups[idx], g)
}

// Standardize folds per-user records into groups keyed by message id. Invalid
// records are skipped and reported through the returned error.
func Standardize(records []models.ReactionRecord) (map[string][]Group, error) {
	out := make(map[string][]Group)
	var errs []error
	for _, r := range records {
		if err := validRecord(r); err != nil {
			errs = append(errs, err)
			continue
		}
		out[r.MessageID], _ = mergeInto(out[r.MessageID], recordGroup(r))
	}
	return out, stderrors.Join(errs...)
}

// FromEmbedded converts the pre-aggregated list stored on a message.
func FromEmbedded(embedded []models.EmbeddedReaction) []Group {
	var out []Group
	for _, e := range embedded {
		if e.Emoji == "" || len(e.UserIDs) == 0 {
			continue
		}
		out, _ = mergeInto(out, Group{Emoji: e.Emoji, UserIDs: models.Dedupe(slices.Clone(e.UserIDs))})
	}
	return out
}

type Store struct {
	mu      sync.RWMutex
	byMsg   map[string][]Group
	changes observer.Subject[Change]
}

func NewStore() *Store {
	return &Store{byMsg: make(map[string][]Group)}
}

func (s *Store) Subscribe(listener func(Change)) func() {
	return s.changes.Subscribe(listener)
}

func (s *Store) SetMessageReactions(messageID string, groups []Group) error {
	if messageID == "" {
		return errors.BadRequest("message id is required")
	}

	var normalized []Group
	for _, g := range groups {
		if g.Emoji == "" || len(g.UserIDs) == 0 {
			continue
		}
		normalized, _ = mergeInto(normalized, Group{Emoji: g.Emoji, UserIDs: models.Dedupe(slices.Clone(g.UserIDs)), RecordIDs: maps.Clone(g.RecordIDs)})
	}

	s.mu.Lock()
	if len(normalized) == 0 {
		delete(s.byMsg, messageID)
	} else {
		s.byMsg[messageID] = normalized
	}
	s.mu.Unlock()

	s.changes.Notify(Change{MessageID: messageID})
	return nil
}

// Apply unions g into the message's group for the same emoji.
func (s *Store) Apply(messageID string, g Group) (bool, error) {
	if messageID == "" {
		return false, errors.BadRequest("reaction is missing its message reference")
	}
	if g.Emoji == "" {
		return false, errors.BadRequest("reaction is missing its emoji")
	}
	g.UserIDs = models.Dedupe(slices.DeleteFunc(slices.Clone(g.UserIDs), func(u string) bool { return u == "" }))
	if len(g.UserIDs) == 0 {
		return false, errors.BadRequest("reaction is missing its user")
	}

	s.mu.Lock()
	var changed bool
	s.byMsg[messageID], changed = mergeInto(s.byMsg[messageID], g)
	s.mu.Unlock()

	if changed {
		s.changes.Notify(Change{MessageID: messageID})
	}
	return changed, nil
}

func (s *Store) ApplyRecord(r models.ReactionRecord) (bool, error) {
	if err := validRecord(r); err != nil {
		return false, err
	}
	return s.Apply(r.MessageID, recordGroup(r))
}

// Remove deletes one user's reaction, dropping the emoji once it has no users.
// An empty userID clears the emoji for every user.
func (s *Store) Remove(messageID, emoji, userID string) (bool, error) {
	if messageID == "" {
		return false, errors.BadRequest("reaction is missing its message reference")
	}
	if emoji == "" {
		return false, errors.BadRequest("reaction is missing its emoji")
	}

	s.mu.Lock()
	changed := s.removeLocked(messageID, emoji, userID)
	s.mu.Unlock()

	if changed {
		s.changes.Notify(Change{MessageID: messageID})
	}
	return changed, nil
}

func (s *Store) removeLocked(messageID, emoji, userID string) bool {
	groups := s.byMsg[messageID]
	idx := slices.IndexFunc(groups, func(g Group) bool { return g.Emoji == emoji })
	if idx < 0 {
		return false
	}

	if userID != "" {
		g := &groups[idx]
		n := len(g.UserIDs)
		g.UserIDs = slices.DeleteFunc(g.UserIDs, func(u string) bool { return u == userID })
		delete(g.RecordIDs, userID)
		if len(g.UserIDs) == n {
			return false
		}
		if len(g.UserIDs) > 0 {
			return true
		}
	}

	groups = slices.Delete(groups, idx, idx+1)
	if len(groups) == 0 {
		delete(s.byMsg, messageID)
	} else {
		s.byMsg[messageID] = groups
	}
	return true
}

func (s *Store) findRecordLocked(recordID string) (messageID, emoji, userID string, ok bool) {
	for msgID, groups := range s.byMsg {
		for _, g := range groups {
			for user, rec := range g.RecordIDs {
				if rec == recordID {
					return msgID, g.Emoji, user, true
				}
			}
		}
	}
	return "", "", "", false
}

// RemoveRecord removes the reaction backed by the given record id and reports
// which message it belonged to.
func (s *Store) RemoveRecord(recordID string) (string, bool) {
	if recordID == "" {
		return "", false
	}

	s.mu.Lock()
	messageID, emoji, userID, ok := s.findRecordLocked(recordID)
	if ok {
		ok = s.removeLocked(messageID, emoji, userID)
	}
	s.mu.Unlock()

	if ok {
		s.changes.Notify(Change{MessageID: messageID})
	}
	return messageID, ok
}

func (s *Store) ClearMessage(messageID string) {
	s.mu.Lock()
	_, ok := s.byMsg[messageID]
	delete(s.byMsg, messageID)
	s.mu.Unlock()

	if ok {
		s.changes.Notify(Change{MessageID: messageID})
	}
}

func (s *Store) ClearAll() {
	s.mu.Lock()
	s.byMsg = make(map[string][]Group)
	s.mu.Unlock()

	s.changes.Notify(Change{})
}

func (s *Store) ForMessage(messageID string) []Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := s.byMsg[messageID]
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}

func (s *Store) HasReacted(messageID, emoji, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.byMsg[messageID] {
		if g.Emoji == emoji {
			return slices.Contains(g.UserIDs, userID)
		}
	}
	return false
}

func (s *Store) RecordID(messageID, emoji, userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.byMsg[messageID] {
		if g.Emoji == emoji {
			id, ok := g.RecordIDs[userID]
			return id, ok
		}
	}
	return "", false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byMsg)
}
