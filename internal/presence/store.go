package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/observer"
	"github.com/chattie/chattie/internal/models"
)

// Store is the latest known presence per user. Entries are replaced
// wholesale, so the most recently applied update wins.
type Store struct {
	mu      sync.RWMutex
	entries map[string]models.Presence
	now     func() time.Time
	changes observer.Subject[models.Presence]
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]models.Presence),
		now:     time.Now,
	}
}

func (s *Store) Subscribe(listener func(models.Presence)) func() {
	return s.changes.Subscribe(listener)
}

func (s *Store) UpdateStatus(userID string, base models.Status, custom *models.CustomStatus) error {
	return s.put(models.Presence{UserID: userID, BaseStatus: base, CustomStatus: custom})
}

// Apply stores a full presence document. Its lastSeen and workspace tag are
// kept when set; otherwise the entry is stamped now and keeps its previous
// workspace.
func (s *Store) Apply(p models.Presence) error {
	return s.put(p)
}

func (s *Store) put(in models.Presence) error {
	if in.UserID == "" {
		return errors.BadRequest("presence user id is required")
	}
	if !in.BaseStatus.Valid() {
		return errors.BadRequest("invalid presence status " + string(in.BaseStatus))
	}

	p := models.Presence{
		UserID:      in.UserID,
		BaseStatus:  in.BaseStatus,
		LastSeen:    in.LastSeen,
		WorkspaceID: in.WorkspaceID,
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = s.now()
	}
	if in.CustomStatus != nil {
		c := *in.CustomStatus
		p.CustomStatus = &c
	}

	s.mu.Lock()
	if prev, ok := s.entries[p.UserID]; ok && p.WorkspaceID == "" {
		p.WorkspaceID = prev.WorkspaceID
	}
	s.entries[p.UserID] = p
	s.mu.Unlock()

	s.changes.Notify(p)
	return nil
}

// SetInitial seeds an offline entry for every user not yet known.
func (s *Store) SetInitial(userIDs []string) {
	s.mu.Lock()
	added := 0
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, ok := s.entries[id]; ok {
			continue
		}
		s.entries[id] = models.Presence{UserID: id, BaseStatus: models.StatusOffline}
		added++
	}
	s.mu.Unlock()

	if added > 0 {
		s.changes.Notify(models.Presence{})
	}
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[string]models.Presence)
	s.mu.Unlock()

	s.changes.Notify(models.Presence{})
}

func (s *Store) Get(userID string) (models.Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.entries[userID]
	if ok && p.CustomStatus != nil {
		c := *p.CustomStatus
		p.CustomStatus = &c
	}
	return p, ok
}

// Status reports offline for unknown users.
func (s *Store) Status(userID string) models.Status {
	p, ok := s.Get(userID)
	if !ok {
		return models.StatusOffline
	}
	return p.BaseStatus
}

// IsFresh reports whether the user was seen within threshold. Staleness is
// decided by the reader; entries are never expired by the store.
func (s *Store) IsFresh(userID string, threshold time.Duration) bool {
	p, ok := s.Get(userID)
	if !ok || p.LastSeen.IsZero() {
		return false
	}
	return s.now().Sub(p.LastSeen) <= threshold
}

func (s *Store) All() []models.Presence {
	s.mu.RLock()
	out := make([]models.Presence, 0, len(s.entries))
	for _, p := range s.entries {
		if p.CustomStatus != nil {
			c := *p.CustomStatus
			p.CustomStatus = &c
		}
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
