package resource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/mirror"
	"github.com/sparkvibe/sparkvibe/internal/validation"
)

// Pinned is a Collection bound to one store for the length of an operation.
type Pinned[T api.Record[T]] struct {
	c      *Collection[T]
	online bool
}

// Online reports whether calls go to the resource server.
func (p Pinned[T]) Online() bool { return p.online }

func (p Pinned[T]) List(ctx context.Context, ownerID string) ([]T, error) {
	return p.Find(ctx, p.c.OwnerQuery(ownerID))
}

func (p Pinned[T]) Find(ctx context.Context, query url.Values) ([]T, error) {
	c := p.c
	if !p.online {
		var out []T
		for _, r := range c.Mirror() {
			if Matches(r, query) {
				out = append(out, r)
			}
		}
		if out == nil {
			out = []T{}
		}
		return out, nil
	}

	var fetched []T
	if err := c.remote.Get(ctx, c.path(""), query, &fetched); err != nil {
		return nil, fmt.Errorf("listing %s: %w", c.name, err)
	}
	if fetched == nil {
		fetched = []T{}
	}

	// Only the slice of the mirror the query selects is replaced.
	err := mirror.Mutate(c.store, c.name, func(records []T) ([]T, error) {
		kept := make([]T, 0, len(records)+len(fetched))
		for _, r := range records {
			if !Matches(r, query) {
				kept = append(kept, r)
			}
		}
		return append(kept, fetched...), nil
	})
	if err != nil {
		return nil, err
	}
	return fetched, nil
}

func (p Pinned[T]) Get(ctx context.Context, id string) (T, error) {
	c := p.c
	var zero T
	if !p.online {
		for _, r := range c.Mirror() {
			if r.Key() == id {
				return r, nil
			}
		}
		return zero, fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
	}

	var record T
	if err := c.remote.Get(ctx, c.path(id), nil, &record); err != nil {
		if api.IsNotFound(err) {
			return zero, fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
		}
		return zero, fmt.Errorf("fetching %s/%s: %w", c.name, id, err)
	}
	if err := p.splice(record); err != nil {
		return zero, err
	}
	return record, nil
}

func (p Pinned[T]) Create(ctx context.Context, record T) (T, error) {
	c := p.c
	var zero T
	if err := validation.Struct(record); err != nil {
		return zero, err
	}

	if !p.online {
		if record.Key() == "" {
			record = record.WithKey(c.newID())
		}
		err := mirror.Mutate(c.store, c.name, func(records []T) ([]T, error) {
			return append(records, record), nil
		})
		if err != nil {
			return zero, err
		}
		return record, nil
	}

	body, err := toMap(record)
	if err != nil {
		return zero, err
	}
	if record.Key() == "" {
		delete(body, "id")
	}
	var created T
	if err := c.remote.Post(ctx, c.path(""), body, &created); err != nil {
		return zero, fmt.Errorf("creating %s: %w", c.name, err)
	}
	err = mirror.Mutate(c.store, c.name, func(records []T) ([]T, error) {
		return append(records, created), nil
	})
	if err != nil {
		return zero, err
	}
	return created, nil
}

func (p Pinned[T]) Update(ctx context.Context, id string, patch Patch) (T, error) {
	c := p.c
	var zero T
	body := make(Patch, len(patch))
	for k, v := range patch {
		if k != "id" {
			body[k] = v
		}
	}

	if !p.online {
		var updated T
		err := mirror.Mutate(c.store, c.name, func(records []T) ([]T, error) {
			for i, r := range records {
				if r.Key() != id {
					continue
				}
				merged, err := merge(r, body)
				if err != nil {
					return nil, err
				}
				records[i] = merged
				updated = merged
				return records, nil
			}
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
		})
		if err != nil {
			return zero, err
		}
		return updated, nil
	}

	var updated T
	if err := c.remote.Patch(ctx, c.path(id), body, &updated); err != nil {
		if api.IsNotFound(err) {
			return zero, fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
		}
		return zero, fmt.Errorf("updating %s/%s: %w", c.name, id, err)
	}
	if err := p.splice(updated); err != nil {
		return zero, err
	}
	return updated, nil
}

func (p Pinned[T]) Delete(ctx context.Context, id string) error {
	c := p.c
	if p.online {
		if err := c.remote.Delete(ctx, c.path(id)); err != nil {
			if api.IsNotFound(err) {
				return fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
			}
			return fmt.Errorf("deleting %s/%s: %w", c.name, id, err)
		}
		return c.ForgetWhere(func(r T) bool { return r.Key() == id })
	}

	return mirror.Mutate(c.store, c.name, func(records []T) ([]T, error) {
		for i, r := range records {
			if r.Key() == id {
				return append(records[:i], records[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
	})
}

// splice replaces the mirror copy of record, or appends it when absent.
func (p Pinned[T]) splice(record T) error {
	return mirror.Mutate(p.c.store, p.c.name, func(records []T) ([]T, error) {
		for i, r := range records {
			if r.Key() == record.Key() {
				records[i] = record
				return records, nil
			}
		}
		return append(records, record), nil
	})
}
