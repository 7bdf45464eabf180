package presence

import (
	"context"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultHeartbeatInterval = 10 * time.Second
	Collection               = "presence"
)

// DocumentWriter persists presence documents keyed by user id.
type DocumentWriter interface {
	CreateDocument(ctx context.Context, collection, documentID string, data, out any) error
	UpdateDocument(ctx context.Context, collection, documentID string, data, out any) error
}

// Service publishes the signed-in user's presence and keeps it alive with a
// periodic heartbeat.
type Service struct {
	mu          sync.Mutex
	writer      DocumentWriter
	store       *Store
	interval    time.Duration
	logger      *zap.Logger
	userID      string
	base        models.Status
	custom      *models.CustomStatus
	workspaceID string
	cancel      context.CancelFunc
	done        chan struct{}
	now         func() time.Time
}

func NewService(writer DocumentWriter, store *Store, interval time.Duration, logger *zap.Logger) *Service {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Service{
		writer:   writer,
		store:    store,
		interval: interval,
		logger:   logger,
		base:     models.StatusOnline,
		now:      time.Now,
	}
}

// Start marks userID online and begins heartbeats. Calling Start while
// running is a no-op.
func (s *Service) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.BadRequest("presence user id is required")
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	s.userID = userID
	s.base = models.StatusOnline
	doc := s.documentLocked()
	s.mu.Unlock()

	err := s.writer.CreateDocument(ctx, Collection, userID, doc, nil)
	if errors.IsConflict(err) {
		err = s.writer.UpdateDocument(ctx, Collection, userID, doc, nil)
	}
	if err != nil {
		return err
	}
	s.applyLocal(doc)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.run(loopCtx, done)

	s.logger.Info("presence started",
		zap.String("user_id", userID),
		zap.Duration("interval", s.interval),
	)
	return nil
}

func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.pulse(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("presence heartbeat failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) pulse(ctx context.Context) error {
	s.mu.Lock()
	doc := s.documentLocked()
	s.mu.Unlock()

	return s.write(ctx, doc)
}

// write updates the user's document, creating it when it has gone missing.
func (s *Service) write(ctx context.Context, doc models.Presence) error {
	err := s.writer.UpdateDocument(ctx, Collection, doc.UserID, doc, nil)
	if errors.IsNotFound(err) {
		err = s.writer.CreateDocument(ctx, Collection, doc.UserID, doc, nil)
	}
	return err
}

func (s *Service) UpdateStatus(ctx context.Context, base models.Status, custom *models.CustomStatus) error {
	if !base.Valid() {
		return errors.BadRequest("invalid presence status " + string(base))
	}

	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return errors.Unauthorized("presence not started")
	}
	s.base = base
	s.custom = custom
	doc := s.documentLocked()
	s.mu.Unlock()

	if err := s.write(ctx, doc); err != nil {
		return err
	}
	s.applyLocal(doc)
	return nil
}

// SetWorkspace tags future heartbeats with the open workspace.
func (s *Service) SetWorkspace(workspaceID string) {
	s.mu.Lock()
	s.workspaceID = workspaceID
	s.mu.Unlock()
}

// Stop halts heartbeats and records the user as offline.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	if cancel == nil {
		s.mu.Unlock()
		return nil
	}
	s.base = models.StatusOffline
	doc := s.documentLocked()
	s.mu.Unlock()

	cancel()
	<-done

	if err := s.write(ctx, doc); err != nil {
		return err
	}
	s.applyLocal(doc)
	s.logger.Info("presence stopped", zap.String("user_id", doc.UserID))
	return nil
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Service) documentLocked() models.Presence {
	doc := models.Presence{
		UserID:      s.userID,
		BaseStatus:  s.base,
		LastSeen:    s.now().UTC(),
		WorkspaceID: s.workspaceID,
	}
	if s.custom != nil {
		c := *s.custom
		doc.CustomStatus = &c
	}
	return doc
}

func (s *Service) applyLocal(doc models.Presence) {
	if s.store == nil {
		return
	}
	if err := s.store.Apply(doc); err != nil {
		s.logger.Warn("failed to apply own presence", zap.Error(err))
	}
}
