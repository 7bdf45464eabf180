package members

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chattie/chattie/internal/common/observer"
	"github.com/chattie/chattie/internal/infra/cache"
	"github.com/chattie/chattie/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAvatarTTL   = 30 * time.Minute
	DefaultConcurrency = 8
)

type UserFetcher interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
}

// AvatarResolver turns a stored avatar file id into a viewable URL.
type AvatarResolver func(avatarID string) string

type SyncResult struct {
	Added   []string
	Removed []string
	Failed  []string
}

func (r SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

type Option func(*Directory)

// WithProfileCache puts a shared read-through cache in front of the fetcher.
func WithProfileCache(profiles *cache.AsidePattern[models.User]) Option {
	return func(d *Directory) { d.profiles = profiles }
}

func WithConcurrency(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithAvatarCache(avatars *cache.TTLCache[string, string]) Option {
	return func(d *Directory) { d.avatars = avatars }
}

// Directory is the member list of the open workspace with display details.
type Directory struct {
	mu          sync.RWMutex
	members     map[string]models.Member
	fetcher     UserFetcher
	resolve     AvatarResolver
	profiles    *cache.AsidePattern[models.User]
	avatars     *cache.TTLCache[string, string]
	concurrency int
	logger      *zap.Logger
	changes     observer.Subject[SyncResult]
}

func NewDirectory(fetcher UserFetcher, resolve AvatarResolver, logger *zap.Logger, opts ...Option) *Directory {
	d := &Directory{
		members:     make(map[string]models.Member),
		fetcher:     fetcher,
		resolve:     resolve,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.avatars == nil {
		d.avatars = cache.NewTTL[string, string](DefaultAvatarTTL, 0)
	}
	return d
}

func (d *Directory) Subscribe(listener func(SyncResult)) func() {
	return d.changes.Subscribe(listener)
}

// Sync makes the directory hold exactly ids. Only ids not already known are
// fetched; the directory is updated once every fetch has finished. A member
// whose fetch fails is logged and left out.
func (d *Directory) Sync(ctx context.Context, ids []string) (SyncResult, error) {
	ids = models.Dedupe(ids)
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			wanted[id] = struct{}{}
		}
	}

	d.mu.RLock()
	var missing []string
	for id := range wanted {
		if _, ok := d.members[id]; !ok {
			missing = append(missing, id)
		}
	}
	d.mu.RUnlock()
	sort.Strings(missing)

	fetched := make([]*models.Member, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, id := range missing {
		g.Go(func() error {
			user, err := d.loadUser(gctx, id)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				d.logger.Warn("failed to fetch member details",
					zap.String("user_id", id),
					zap.Error(err),
				)
				return nil
			}
			m := d.memberFromUser(id, user)
			fetched[i] = &m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SyncResult{}, err
	}

	var result SyncResult
	d.mu.Lock()
	for id := range d.members {
		if _, ok := wanted[id]; !ok {
			delete(d.members, id)
			result.Removed = append(result.Removed, id)
		}
	}
	for i, m := range fetched {
		if m == nil {
			result.Failed = append(result.Failed, missing[i])
			continue
		}
		d.members[m.ID] = *m
		result.Added = append(result.Added, m.ID)
	}
	d.mu.Unlock()

	sort.Strings(result.Removed)
	if result.Changed() {
		d.changes.Notify(result)
	}
	d.logger.Debug("members synced",
		zap.Int("added", len(result.Added)),
		zap.Int("removed", len(result.Removed)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (d *Directory) loadUser(ctx context.Context, id string) (models.User, error) {
	if d.profiles == nil {
		return d.fetcher.GetUser(ctx, id)
	}
	return d.profiles.GetOrLoad(ctx, "user:"+id, func(ctx context.Context) (models.User, error) {
		return d.fetcher.GetUser(ctx, id)
	})
}

func (d *Directory) memberFromUser(id string, u models.User) models.Member {
	return models.Member{
		ID:        id,
		Name:      u.DisplayName(),
		AvatarID:  u.Prefs.AvatarID,
		AvatarURL: d.AvatarURL(u.Prefs.AvatarID),
	}
}

// Set replaces the directory with members already resolved elsewhere.
func (d *Directory) Set(list []models.Member) {
	next := make(map[string]models.Member, len(list))
	for _, m := range list {
		if m.ID == "" {
			continue
		}
		if m.AvatarURL == "" {
			m.AvatarURL = d.AvatarURL(m.AvatarID)
		}
		next[m.ID] = m
	}

	d.mu.Lock()
	d.members = next
	d.mu.Unlock()

	d.changes.Notify(SyncResult{Added: sortedKeys(next)})
}

// AvatarURL returns the view URL for avatarID, memoised for the avatar TTL.
func (d *Directory) AvatarURL(avatarID string) string {
	if avatarID == "" || d.resolve == nil {
		return ""
	}
	if url, ok := d.avatars.Get(avatarID); ok {
		return url
	}
	url := d.resolve(avatarID)
	d.avatars.Set(avatarID, url)
	return url
}

func (d *Directory) Get(id string) (models.Member, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	return m, ok
}

// All returns members ordered by name, then id.
func (d *Directory) All() []models.Member {
	d.mu.RLock()
	out := make([]models.Member, 0, len(d.members))
	for _, m := range d.members {
		out = append(out, m)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.members)
}

func (d *Directory) Reset() {
	d.mu.Lock()
	removed := sortedKeys(d.members)
	d.members = make(map[string]models.Member)
	d.mu.Unlock()

	if len(removed) > 0 {
		d.changes.Notify(SyncResult{Removed: removed})
	}
}

func sortedKeys(m map[string]models.Member) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
