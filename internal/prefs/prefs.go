package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/toast"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"gopkg.in/yaml.v3"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

const defaultAnnouncement = "Check out this new feature we just added!"

type document struct {
	Theme        Theme    `yaml:"theme"`
	SeenFeatures []string `yaml:"seen_features,omitempty"`
}

// Store persists client preferences in a YAML file. A missing file is an
// empty preference set; nothing is written until a preference changes.
type Store struct {
	mu     sync.Mutex
	path   string
	doc    document
	toasts toast.Sink
	logger *zap.Logger
}

func Open(path string, toasts toast.Sink, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:   path,
		doc:    document{Theme: ThemeLight},
		toasts: toasts,
		logger: logger,
	}

	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read prefs %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &s.doc); err != nil {
		return nil, errors.NewAppError(codes.InvalidArgument, "invalid prefs file "+path, fmt.Errorf("%w: %w", errors.ErrMalformed, err))
	}
	if s.doc.Theme != ThemeDark {
		s.doc.Theme = ThemeLight
	}
	return s, nil
}

func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Theme
}

func (s *Store) SetTheme(t Theme) error {
	if t != ThemeLight && t != ThemeDark {
		return errors.BadRequest(fmt.Sprintf("unknown theme %q", t))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Theme == t {
		return nil
	}
	s.doc.Theme = t
	return s.saveLocked()
}

func (s *Store) Seen(feature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.doc.SeenFeatures, feature)
}

// Announce shows the "New Feature" toast the first time feature is named
// and reports whether it did.
func (s *Store) Announce(feature, description string) (bool, error) {
	s.mu.Lock()
	if slices.Contains(s.doc.SeenFeatures, feature) {
		s.mu.Unlock()
		return false, nil
	}
	s.doc.SeenFeatures = append(s.doc.SeenFeatures, feature)
	err := s.saveLocked()
	s.mu.Unlock()

	if description == "" {
		description = defaultAnnouncement
	}
	if s.toasts != nil {
		s.toasts.Show(toast.Info("New Feature: "+feature, description))
	}
	return true, err
}

func (s *Store) saveLocked() error {
	b, err := yaml.Marshal(&s.doc)
	if err != nil {
		return errors.Internal("encode prefs", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp prefs: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	s.logger.Debug("preferences saved", zap.String("path", s.path))
	return nil
}
