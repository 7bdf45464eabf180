package toast

import (
	"slices"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/common/observer"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultLimit = 20

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func Info(title, message string) Toast {
	return Toast{Level: LevelInfo, Title: title, Message: message}
}

func Success(title, message string) Toast {
	return Toast{Level: LevelSuccess, Title: title, Message: message}
}

func Warning(title, message string) Toast {
	return Toast{Level: LevelWarning, Title: title, Message: message}
}

func Error(title, message string) Toast {
	return Toast{Level: LevelError, Title: title, Message: message}
}

type Sink interface {
	Show(t Toast)
}

// Feed keeps the most recent toasts, newest first.
type Feed struct {
	mu      sync.RWMutex
	items   []Toast
	limit   int
	now     func() time.Time
	logger  *zap.Logger
	changes observer.Subject[Toast]
}

func NewFeed(limit int, logger *zap.Logger) *Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Feed{limit: limit, now: time.Now, logger: logger}
}

func (f *Feed) Subscribe(listener func(Toast)) func() {
	return f.changes.Subscribe(listener)
}

func (f *Feed) Show(t Toast) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Level == "" {
		t.Level = LevelInfo
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = f.now()
	}

	f.mu.Lock()
	f.items = slices.Insert(f.items, 0, t)
	if len(f.items) > f.limit {
		f.items = f.items[:f.limit]
	}
	f.mu.Unlock()

	f.logger.Info("toast",
		zap.String("level", string(t.Level)),
		zap.String("title", t.Title),
		zap.String("message", t.Message),
	)
	f.changes.Notify(t)
}

func (f *Feed) Dismiss(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := slices.IndexFunc(f.items, func(t Toast) bool { return t.ID == id })
	if idx < 0 {
		return false
	}
	f.items = slices.Delete(f.items, idx, idx+1)
	return true
}

func (f *Feed) Recent() []Toast {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.items)
}
