package workspaces

import (
	"slices"
	"sync"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/observer"
	"github.com/chattie/chattie/internal/models"
)

type Change struct {
	WorkspaceID string
	Removed     bool
	CurrentLeft bool
}

// Store holds the workspaces visible to the user and which one is open.
type Store struct {
	mu         sync.RWMutex
	workspaces []models.Workspace
	currentID  string
	changes    observer.Subject[Change]
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Subscribe(listener func(Change)) func() {
	return s.changes.Subscribe(listener)
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.workspaces, func(w models.Workspace) bool { return w.ID == id })
}

func (s *Store) SetWorkspaces(list []models.Workspace) {
	s.mu.Lock()
	s.workspaces = s.workspaces[:0]
	for _, w := range list {
		if w.ID == "" || s.indexLocked(w.ID) >= 0 {
			continue
		}
		c := w.Clone()
		c.Members = models.Dedupe(c.Members)
		s.workspaces = append(s.workspaces, c)
	}
	s.mu.Unlock()

	s.changes.Notify(Change{})
}

// Upsert inserts or replaces w and reports whether it was new.
func (s *Store) Upsert(w models.Workspace) (bool, error) {
	if w.ID == "" {
		return false, errors.BadRequest("workspace id is required")
	}
	c := w.Clone()
	c.Members = models.Dedupe(c.Members)

	s.mu.Lock()
	idx := s.indexLocked(c.ID)
	created := idx < 0
	if created {
		s.workspaces = append(s.workspaces, c)
	} else {
		s.workspaces[idx] = c
	}
	s.mu.Unlock()

	s.changes.Notify(Change{WorkspaceID: c.ID})
	return created, nil
}

// Remove drops the workspace and reports whether it was the open one, in
// which case the current workspace is cleared.
func (s *Store) Remove(id string) (wasCurrent bool) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx >= 0 {
		s.workspaces = slices.Delete(s.workspaces, idx, idx+1)
	}
	wasCurrent = id != "" && s.currentID == id
	if wasCurrent {
		s.currentID = ""
	}
	s.mu.Unlock()

	if idx >= 0 || wasCurrent {
		s.changes.Notify(Change{WorkspaceID: id, Removed: true, CurrentLeft: wasCurrent})
	}
	return wasCurrent
}

func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return errors.NotFound("workspace not found")
	}
	s.currentID = id
	s.mu.Unlock()

	s.changes.Notify(Change{WorkspaceID: id})
	return nil
}

func (s *Store) LeaveCurrent() {
	s.mu.Lock()
	id := s.currentID
	s.currentID = ""
	s.mu.Unlock()

	if id != "" {
		s.changes.Notify(Change{WorkspaceID: id, CurrentLeft: true})
	}
}

func (s *Store) Current() (models.Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentID == "" {
		return models.Workspace{}, false
	}
	idx := s.indexLocked(s.currentID)
	if idx < 0 {
		return models.Workspace{}, false
	}
	return s.workspaces[idx].Clone(), true
}

func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

func (s *Store) Get(id string) (models.Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Workspace{}, false
	}
	return s.workspaces[idx].Clone(), true
}

func (s *Store) All() []models.Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Workspace, len(s.workspaces))
	for i, w := range s.workspaces {
		out[i] = w.Clone()
	}
	return out
}
