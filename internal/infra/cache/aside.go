package cache

import (
	"context"
	"errors"
	"time"
)

type AsidePattern[T any] struct {
	store  Store
	ttl    time.Duration
	onLoad func(hit bool)
}

func NewAsidePattern[T any](store Store, ttl time.Duration) *AsidePattern[T] {
	return &AsidePattern[T]{store: store, ttl: ttl, onLoad: func(bool) {}}
}

// OnLoad registers a hit/miss observer, used for cache metrics.
func (a *AsidePattern[T]) OnLoad(fn func(hit bool)) {
	if fn != nil {
		a.onLoad = fn
	}
}

// GetOrLoad serves key from the store, falling back to loader on a miss or a
// store failure. A failed write back never fails the load.
func (a *AsidePattern[T]) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (T, error)) (T, error) {
	var result T
	err := a.store.Get(ctx, key, &result)
	if err == nil {
		a.onLoad(true)
		return result, nil
	}
	a.onLoad(false)

	result, err = loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	_ = a.store.Set(ctx, key, result, a.ttl)
	return result, nil
}

func (a *AsidePattern[T]) Invalidate(ctx context.Context, keys ...string) error {
	err := a.store.Delete(ctx, keys...)
	if errors.Is(err, ErrCacheMiss) {
		return nil
	}
	return err
}
