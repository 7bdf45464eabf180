package realtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/chattie/chattie/internal/common/errors"
	"github.com/chattie/chattie/internal/common/logging"
	"github.com/chattie/chattie/internal/observability"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, ev Event) error

type Dispatcher interface {
	Dispatch(ctx context.Context, raw RawEvent) error
}

// Router maps each inbound event to the handler for its collection. A
// failing handler never stops later events from being routed.
type Router struct {
	mu       sync.RWMutex
	handlers map[Collection]Handler
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewRouter(logger *zap.Logger, metrics *observability.Metrics) *Router {
	return &Router{
		handlers: make(map[Collection]Handler),
		logger:   logger,
		metrics:  metrics,
	}
}

func (r *Router) Register(collection Collection, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[collection] = h
}

func (r *Router) Dispatch(ctx context.Context, raw RawEvent) error {
	ev, err := ParseEvent(raw)
	if err != nil {
		reason := dropReason(err)
		r.metrics.EventDropped(reason)
		r.logger.Warn("dropping event",
			zap.Strings("events", raw.Events),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return err
	}

	r.mu.RLock()
	h, ok := r.handlers[ev.Collection()]
	r.mu.RUnlock()
	if !ok {
		r.metrics.EventDropped("unhandled")
		r.logger.Debug("no handler for collection", zap.String("collection", string(ev.Collection())))
		return nil
	}

	ctx = logging.WithLogger(ctx, r.logger.With(
		zap.String("collection", string(ev.Collection())),
		zap.String("kind", string(ev.Action())),
	))
	if err := r.invoke(ctx, h, ev); err != nil {
		r.metrics.EventDropped("handler_error")
		r.logger.Error("event handler failed",
			zap.String("collection", string(ev.Collection())),
			zap.String("kind", string(ev.Action())),
			zap.Error(err),
		)
		return err
	}

	r.metrics.EventRouted(string(ev.Collection()), string(ev.Action()))
	return nil
}

func (r *Router) invoke(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Internal("event handler panicked", fmt.Errorf("%v", p))
		}
	}()
	return h(ctx, ev)
}

func dropReason(err error) string {
	switch {
	case stderrors.Is(err, ErrUnknownKind):
		return "unknown_kind"
	case stderrors.Is(err, ErrUnknownCollection):
		return "unknown_collection"
	default:
		return "malformed"
	}
}
