// Package resource exposes per-collection CRUD that runs against the resource
// server when it is reachable and against the local mirror when it is not.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/logger"
	"github.com/sparkvibe/sparkvibe/internal/mirror"
	"github.com/sparkvibe/sparkvibe/internal/validation"
)

// ErrNotFound is returned when the target id exists in neither store.
var ErrNotFound = errors.New("record not found")

// Patch is a partial record keyed by JSON field name.
type Patch map[string]interface{}

// Collection is the CRUD surface of one collection.
type Collection[T api.Record[T]] struct {
	name       string
	ownerField string
	remote     *api.Client
	store      *mirror.Store
	monitor    *connectivity.Monitor
	newID      func() string
}

func newCollection[T api.Record[T]](name, ownerField string, remote *api.Client, store *mirror.Store, monitor *connectivity.Monitor) *Collection[T] {
	return &Collection[T]{
		name:       name,
		ownerField: ownerField,
		remote:     remote,
		store:      store,
		monitor:    monitor,
		newID:      newLocalID,
	}
}

// newLocalID returns a time-ordered id so offline records sort by creation.
func newLocalID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Name returns the collection (and endpoint) name.
func (c *Collection[T]) Name() string { return c.name }

// Pin binds the collection to one connectivity state. A logical operation that
// spans several calls pins once so its reads and writes hit the same store.
func (c *Collection[T]) Pin(state connectivity.State) Pinned[T] {
	return Pinned[T]{c: c, online: state == connectivity.Online}
}

// OwnerQuery builds the filter that selects one owner's records.
func (c *Collection[T]) OwnerQuery(ownerID string) url.Values {
	q := url.Values{}
	if c.ownerField != "" && ownerID != "" {
		q.Set(c.ownerField, ownerID)
	}
	return q
}

// List returns the owner's records; an empty owner lists everything.
func (c *Collection[T]) List(ctx context.Context, ownerID string) ([]T, error) {
	return withFallback(ctx, c, func(p Pinned[T]) ([]T, error) { return p.List(ctx, ownerID) })
}

// Find returns records whose fields equal every value in query.
func (c *Collection[T]) Find(ctx context.Context, query url.Values) ([]T, error) {
	return withFallback(ctx, c, func(p Pinned[T]) ([]T, error) { return p.Find(ctx, query) })
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	return withFallback(ctx, c, func(p Pinned[T]) (T, error) { return p.Get(ctx, id) })
}

// Create validates before touching the network, then stores the record.
func (c *Collection[T]) Create(ctx context.Context, record T) (T, error) {
	if err := validation.Struct(record); err != nil {
		var zero T
		return zero, err
	}
	return withFallback(ctx, c, func(p Pinned[T]) (T, error) { return p.Create(ctx, record) })
}

func (c *Collection[T]) Update(ctx context.Context, id string, patch Patch) (T, error) {
	return withFallback(ctx, c, func(p Pinned[T]) (T, error) { return p.Update(ctx, id, patch) })
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := withFallback(ctx, c, func(p Pinned[T]) (struct{}, error) { return struct{}{}, p.Delete(ctx, id) })
	return err
}

// withFallback runs fn online when the server is reachable. If the server
// turns out to be unreachable mid-call, the monitor goes offline and fn is
// re-run against the mirror.
func withFallback[T api.Record[T], R any](ctx context.Context, c *Collection[T], fn func(Pinned[T]) (R, error)) (R, error) {
	state := c.monitor.Check(ctx)
	out, err := fn(c.Pin(state))
	if state == connectivity.Online && errors.Is(err, api.ErrUnreachable) {
		c.monitor.MarkOffline(err)
		logger.Warn("mirror_fallback", map[string]interface{}{"collection": c.name, "error": err.Error()})
		return fn(c.Pin(connectivity.Offline))
	}
	return out, err
}

// Mirror returns the mirror's copy of the whole collection.
func (c *Collection[T]) Mirror() []T {
	return mirror.Load[T](c.store, c.name)
}

// DeleteRemote deletes id on the server without touching the mirror. A 404
// counts as success so repeated cascade steps stay idempotent.
func (c *Collection[T]) DeleteRemote(ctx context.Context, id string) error {
	err := c.remote.Delete(ctx, c.path(id))
	if api.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", c.name, id, err)
	}
	return nil
}

// ForgetWhere drops every mirror record for which match returns true.
func (c *Collection[T]) ForgetWhere(match func(T) bool) error {
	return mirror.Mutate(c.store, c.name, func(records []T) ([]T, error) {
		kept := records[:0]
		for _, r := range records {
			if !match(r) {
				kept = append(kept, r)
			}
		}
		return kept, nil
	})
}

func (c *Collection[T]) path(id string) string {
	if id == "" {
		return "/" + c.name
	}
	return "/" + c.name + "/" + url.PathEscape(id)
}

// Matches reports whether record's JSON fields equal every non-underscore
// value in query.
func Matches[T any](record T, query url.Values) bool {
	if len(query) == 0 {
		return true
	}
	fields, err := toMap(record)
	if err != nil {
		return false
	}
	for key := range query {
		if strings.HasPrefix(key, "_") {
			continue
		}
		v, ok := fields[key]
		if !ok || v == nil {
			return false
		}
		if fmt.Sprint(v) != query.Get(key) {
			return false
		}
	}
	return true
}

func toMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// merge overlays patch onto record. The id is never patched.
func merge[T any](record T, patch Patch) (T, error) {
	fields, err := toMap(record)
	if err != nil {
		return record, err
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return record, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return record, fmt.Errorf("applying patch: %w", err)
	}
	return out, nil
}
