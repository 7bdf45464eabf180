package channels

import (
	"context"
	"slices"
	"sync"

	"github.com/chattie/chattie/internal/common/observer"
	"github.com/chattie/chattie/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Fetcher interface {
	ListChannels(ctx context.Context, workspaceID string) ([]models.Channel, error)
}

type ChangeKind string

const (
	ChangeReset  ChangeKind = "reset"
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

type Change struct {
	Kind      ChangeKind
	ChannelID string
}

type Store struct {
	mu          sync.RWMutex
	items       []models.Channel
	workspaceID string
	target      string
	loaded      bool
	fetcher     Fetcher
	group       singleflight.Group
	logger      *zap.Logger
	changes     observer.Subject[Change]
}

func NewStore(fetcher Fetcher, logger *zap.Logger) *Store {
	return &Store{fetcher: fetcher, logger: logger}
}

func (s *Store) Subscribe(listener func(Change)) func() {
	return s.changes.Subscribe(listener)
}

// InitializeForWorkspace loads the channel set for workspaceID unless it is
// already the loaded workspace. Concurrent calls for one workspace share a
// single fetch. The latest requested workspace is the target; a load that
// finishes after the target moved on is dropped. It reports whether this
// call's fetch was applied to the store.
func (s *Store) InitializeForWorkspace(ctx context.Context, workspaceID string) (bool, error) {
	s.mu.Lock()
	s.target = workspaceID
	hit := s.loaded && s.workspaceID == workspaceID
	s.mu.Unlock()
	if hit {
		return false, nil
	}

	v, err, _ := s.group.Do(workspaceID, func() (any, error) {
		s.mu.RLock()
		hit := s.loaded && s.workspaceID == workspaceID
		s.mu.RUnlock()
		if hit {
			return false, nil
		}

		channels, err := s.fetcher.ListChannels(ctx, workspaceID)
		if err != nil {
			return false, err
		}
		if !s.replace(workspaceID, channels, false) {
			s.logger.Debug("dropping stale channel load", zap.String("workspace_id", workspaceID))
			return false, nil
		}
		s.logger.Debug("channels loaded",
			zap.String("workspace_id", workspaceID),
			zap.Int("count", len(channels)),
		)
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Replace swaps in a channel set, tags it with workspaceID and makes that
// workspace the target.
func (s *Store) Replace(workspaceID string, channels []models.Channel) {
	s.replace(workspaceID, channels, true)
}

func (s *Store) replace(workspaceID string, channels []models.Channel, force bool) bool {
	items := make([]models.Channel, 0, len(channels))
	seen := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		if ch.ID == "" {
			continue
		}
		if _, ok := seen[ch.ID]; ok {
			continue
		}
		seen[ch.ID] = struct{}{}
		c := ch.Clone()
		c.Normalize()
		items = append(items, c)
	}

	s.mu.Lock()
	if !force && s.target != workspaceID {
		s.mu.Unlock()
		return false
	}
	s.items = items
	s.workspaceID = workspaceID
	s.target = workspaceID
	s.loaded = true
	s.mu.Unlock()

	s.changes.Notify(Change{Kind: ChangeReset})
	return true
}

// Invalidate forces the next InitializeForWorkspace to fetch.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

func (s *Store) WorkspaceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workspaceID
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.items, func(c models.Channel) bool { return c.ID == id })
}

func (s *Store) AddChannel(ch models.Channel) bool {
	if ch.ID == "" {
		return false
	}
	c := ch.Clone()
	c.Normalize()

	s.mu.Lock()
	if s.indexLocked(c.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items, c)
	s.mu.Unlock()

	s.changes.Notify(Change{Kind: ChangeAdd, ChannelID: c.ID})
	return true
}

// UpdateChannel replaces the stored channel wholesale; unknown ids are ignored.
func (s *Store) UpdateChannel(id string, ch models.Channel) bool {
	c := ch.Clone()
	c.ID = id
	c.Normalize()

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	if !c.UpdatedAt.IsZero() && c.UpdatedAt.Before(s.items[idx].UpdatedAt) {
		s.mu.Unlock()
		return false
	}
	s.items[idx] = c
	s.mu.Unlock()

	s.changes.Notify(Change{Kind: ChangeUpdate, ChannelID: id})
	return true
}

func (s *Store) DeleteChannel(id string) bool {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	s.mu.Unlock()

	s.changes.Notify(Change{Kind: ChangeDelete, ChannelID: id})
	return true
}

func (s *Store) Get(id string) (models.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Channel{}, false
	}
	return s.items[idx].Clone(), true
}

func (s *Store) filter(keep func(models.Channel) bool) []models.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Channel
	for _, c := range s.items {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}

func byType(t models.ChannelType) func(models.Channel) bool {
	return func(c models.Channel) bool { return c.Type == t }
}

func (s *Store) All() []models.Channel {
	return s.filter(func(models.Channel) bool { return true })
}

func (s *Store) Public() []models.Channel {
	return s.filter(byType(models.ChannelPublic))
}

func (s *Store) Private() []models.Channel {
	return s.filter(byType(models.ChannelPrivate))
}

func (s *Store) DirectMessages() []models.Channel {
	return s.filter(byType(models.ChannelDM))
}

func (s *Store) Threads() []models.Channel {
	return s.filter(byType(models.ChannelThread))
}

func (s *Store) ForWorkspace(workspaceID string) []models.Channel {
	return s.filter(func(c models.Channel) bool { return c.WorkspaceID == workspaceID })
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
