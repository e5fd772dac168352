// Package cache holds client-side copies of remote resources together with
// their fetch status.
//
// A Resource keeps an ordered list and a single "current" item. Fetches of
// the same kind and key share one network operation; fetches for different
// keys run independently. Results are applied only if they are still
// wanted: a response for an item the caller has navigated away from, or one
// that arrives after the session identity changed or the cache was reset,
// is dropped.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/talent-client/internal/observability"
	apperrors "github.com/spec-kit/talent-client/pkg/util/errorutil"
)

// Status is the fetch state of a cache or one of its slots.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusLoading   Status = "LOADING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

const (
	kindList = "list"
	kindItem = "item"
)

// ListFunc loads the full collection in server order.
type ListFunc[T any] func(ctx context.Context) ([]T, error)

// GetFunc loads one item.
type GetFunc[T any] func(ctx context.Context, id string) (T, error)

// KeyFunc returns the id of an item.
type KeyFunc[T any] func(T) string

// EpochSource reports the current session identity generation.
type EpochSource interface {
	Epoch() uint64
}

// State is a copy of the cache contents. Error is set only when Status is
// StatusFailed. ListStatus and ItemStatus break Status down per slot.
type State[T any] struct {
	Items      []T
	Current    *T
	CurrentID  string
	Status     Status
	Error      string
	ErrorCode  string
	ListStatus Status
	ItemStatus Status
	FetchedAt  time.Time
}

// NotFound reports a failed fetch for a resource the backend does not have.
func (s State[T]) NotFound() bool {
	return s.Status == StatusFailed && s.ErrorCode == apperrors.CodeNotFound
}

// Retryable reports a failure the user may retry.
func (s State[T]) Retryable() bool {
	if s.Status != StatusFailed {
		return false
	}
	switch s.ErrorCode {
	case apperrors.CodeNetwork, apperrors.CodeUpstream, apperrors.CodeConflict:
		return true
	}
	return false
}

// Config wires a Resource.
type Config[T any] struct {
	Name    string
	List    ListFunc[T]
	Get     GetFunc[T]
	Key     KeyFunc[T]
	Epoch   EpochSource
	Clock   clockwork.Clock
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

type slot struct {
	status Status
	err    string
	code   string
}

// Resource is a generic cache for one resource type.
type Resource[T any] struct {
	name    string
	list    ListFunc[T]
	get     GetFunc[T]
	key     KeyFunc[T]
	epoch   EpochSource
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *observability.Metrics
	flight  singleflight.Group

	mu         sync.Mutex
	items      []T
	current    *T
	currentID  string
	wantID     string
	listSlot   slot
	itemSlot   slot
	last       string
	fetchedAt  time.Time
	generation uint64
	dataEpoch  uint64
}

// New builds a Resource. List or Get may be nil when the backend does not
// offer that read; the corresponding fetch then fails with UNSUPPORTED.
func New[T any](cfg Config[T]) *Resource[T] {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	r := &Resource[T]{
		name:     cfg.Name,
		list:     cfg.List,
		get:      cfg.Get,
		key:      cfg.Key,
		epoch:    cfg.Epoch,
		clock:    cfg.Clock,
		logger:   observability.OrNop(cfg.Logger).Named("cache").With(zap.String("resource", cfg.Name)),
		metrics:  cfg.Metrics,
		listSlot: slot{status: StatusIdle},
		itemSlot: slot{status: StatusIdle},
	}
	if r.epoch != nil {
		r.dataEpoch = r.epoch.Epoch()
	}
	return r
}

// Name returns the resource name.
func (r *Resource[T]) Name() string {
	return r.name
}

// FetchList replaces Items with the server's collection. On failure the
// previous Items stay available. If ctx ends first the call returns the
// current (Loading) state while the shared fetch keeps running.
func (r *Resource[T]) FetchList(ctx context.Context) State[T] {
	r.mu.Lock()
	r.syncEpochLocked()
	if r.list == nil {
		r.resolveLocked(kindList, &r.listSlot, apperrors.NewUnsupported(r.name+" cannot be listed"))
		state := r.stateLocked()
		r.mu.Unlock()
		return state
	}
	r.listSlot = slot{status: StatusLoading}
	gen := r.generation
	r.mu.Unlock()

	key := fmt.Sprintf("%s@%d", kindList, gen)
	flightCtx := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(key, func() (interface{}, error) {
		items, err := r.list(flightCtx)
		r.applyList(gen, items, err)
		return nil, nil
	})
	return r.await(ctx, ch)
}

// FetchByID loads one item into Current. The most recently requested id
// wins: a response for any other id is dropped. On failure the previous
// Current stays available.
func (r *Resource[T]) FetchByID(ctx context.Context, id string) State[T] {
	r.mu.Lock()
	r.syncEpochLocked()
	if r.get == nil {
		r.resolveLocked(kindItem, &r.itemSlot, apperrors.NewUnsupported(r.name+" cannot be read by id"))
		state := r.stateLocked()
		r.mu.Unlock()
		return state
	}
	if id == "" {
		r.resolveLocked(kindItem, &r.itemSlot, apperrors.NewValidationError("id is required", nil))
		state := r.stateLocked()
		r.mu.Unlock()
		return state
	}
	r.wantID = id
	r.itemSlot = slot{status: StatusLoading}
	gen := r.generation
	r.mu.Unlock()

	key := fmt.Sprintf("%s:%s@%d", kindItem, id, gen)
	flightCtx := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(key, func() (interface{}, error) {
		item, err := r.get(flightCtx, id)
		r.applyItem(gen, id, item, err)
		return nil, nil
	})
	return r.await(ctx, ch)
}

// State returns a copy of the cache contents.
func (r *Resource[T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncEpochLocked()
	return r.stateLocked()
}

// Lookup returns the cached item with the given id from Current or Items.
func (r *Resource[T]) Lookup(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncEpochLocked()

	if r.current != nil && r.currentID == id {
		return *r.current, true
	}
	if r.key != nil {
		for _, item := range r.items {
			if r.key(item) == id {
				return item, true
			}
		}
	}
	var zero T
	return zero, false
}

// UpdateItem applies fn to every cached copy of the item with the given id
// and reports whether any copy existed.
func (r *Resource[T]) UpdateItem(id string, fn func(T) T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncEpochLocked()

	updated := false
	if r.current != nil && r.currentID == id {
		next := fn(*r.current)
		r.current = &next
		updated = true
	}
	if r.key != nil {
		for i, item := range r.items {
			if r.key(item) == id {
				r.items[i] = fn(item)
				updated = true
			}
		}
	}
	return updated
}

// Reset discards all cached data. Fetches still in flight are dropped when
// they resolve.
func (r *Resource[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
	r.logger.Debug("cache reset")
}

func (r *Resource[T]) await(ctx context.Context, ch <-chan singleflight.Result) State[T] {
	select {
	case <-ch:
	case <-ctx.Done():
	}
	return r.State()
}

func (r *Resource[T]) applyList(gen uint64, items []T, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncEpochLocked()

	if r.generation != gen {
		r.metrics.RecordCacheFetch(r.name, kindList, "discarded")
		r.logger.Debug("discarding stale list response")
		return
	}
	if err != nil {
		r.resolveLocked(kindList, &r.listSlot, err)
		return
	}

	r.items = append(make([]T, 0, len(items)), items...)
	r.fetchedAt = r.clock.Now()
	r.listSlot = slot{status: StatusSucceeded}
	r.last = kindList
	r.metrics.RecordCacheFetch(r.name, kindList, "succeeded")
}

func (r *Resource[T]) applyItem(gen uint64, id string, item T, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncEpochLocked()

	if r.generation != gen || r.wantID != id {
		r.metrics.RecordCacheFetch(r.name, kindItem, "discarded")
		r.logger.Debug("discarding superseded item response", zap.String("id", id), zap.String("wanted", r.wantID))
		return
	}
	if err != nil {
		r.resolveLocked(kindItem, &r.itemSlot, err)
		return
	}

	r.current = &item
	r.currentID = id
	r.fetchedAt = r.clock.Now()
	r.itemSlot = slot{status: StatusSucceeded}
	r.last = kindItem
	r.metrics.RecordCacheFetch(r.name, kindItem, "succeeded")
}

func (r *Resource[T]) resolveLocked(kind string, s *slot, err error) {
	*s = slot{status: StatusFailed, err: apperrors.UserMessage(err), code: apperrors.CodeOf(err)}
	r.last = kind
	r.metrics.RecordCacheFetch(r.name, kind, "failed")
	r.logger.Info("fetch failed", zap.String("kind", kind), zap.String("code", s.code), zap.String("error", s.err))
}

// syncEpochLocked drops everything cached under a previous identity.
func (r *Resource[T]) syncEpochLocked() {
	if r.epoch == nil {
		return
	}
	if current := r.epoch.Epoch(); current != r.dataEpoch {
		r.resetLocked()
		r.dataEpoch = current
	}
}

func (r *Resource[T]) resetLocked() {
	r.generation++
	r.items = nil
	r.current = nil
	r.currentID = ""
	r.wantID = ""
	r.listSlot = slot{status: StatusIdle}
	r.itemSlot = slot{status: StatusIdle}
	r.last = ""
	r.fetchedAt = time.Time{}
}

func (r *Resource[T]) stateLocked() State[T] {
	state := State[T]{
		Items:      append([]T(nil), r.items...),
		CurrentID:  r.currentID,
		ListStatus: r.listSlot.status,
		ItemStatus: r.itemSlot.status,
		FetchedAt:  r.fetchedAt,
	}
	if r.current != nil {
		current := *r.current
		state.Current = &current
	}

	switch {
	case r.listSlot.status == StatusLoading || r.itemSlot.status == StatusLoading:
		state.Status = StatusLoading
	case r.last == kindList:
		state.Status = r.listSlot.status
		state.Error, state.ErrorCode = r.listSlot.err, r.listSlot.code
	case r.last == kindItem:
		state.Status = r.itemSlot.status
		state.Error, state.ErrorCode = r.itemSlot.err, r.itemSlot.code
	default:
		state.Status = StatusIdle
	}
	if state.Items == nil {
		state.Items = []T{}
	}
	return state
}
