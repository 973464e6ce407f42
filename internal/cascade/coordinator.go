// Package cascade propagates category renames, category deletes and user
// deletes across every collection that references them.
//
// Cascades are not atomic. Each one persists a marker before its first write
// and clears it after its last; a cascade interrupted in between is re-run by
// Resume. Every step re-queries its targets and treats a record that is
// already gone as done, so re-running is safe. A cascade started online keeps
// its marker until an online run has finished it.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/logger"
	"github.com/sparkvibe/sparkvibe/internal/resource"
	"github.com/sparkvibe/sparkvibe/internal/validation"
	"golang.org/x/sync/errgroup"
)

// maxParallel bounds concurrent requests within one cascade.
const maxParallel = 8

// SessionForgetter drops the active session when it belongs to userID.
type SessionForgetter interface {
	Forget(userID string) error
}

type Coordinator struct {
	res      *resource.Client
	sessions SessionForgetter
	now      func() time.Time
}

// NewCoordinator creates a Coordinator. sessions may be nil.
func NewCoordinator(res *resource.Client, sessions SessionForgetter) *Coordinator {
	return &Coordinator{res: res, sessions: sessions, now: time.Now}
}

// RenameCategory renames a category and every flashcard and progress record
// of the owner that refers to it by its old name.
func (c *Coordinator) RenameCategory(ctx context.Context, categoryID, newName, ownerID string) (api.Category, error) {
	newName = strings.TrimSpace(newName)
	if err := validation.Required(map[string]string{"name": newName}); err != nil {
		return api.Category{}, err
	}
	if _, err := c.Resume(ctx); err != nil {
		return api.Category{}, fmt.Errorf("resuming pending cascade: %w", err)
	}

	state, categories, err := resolve(ctx, c, func(s connectivity.State) ([]api.Category, error) {
		return c.res.Categories.Pin(s).List(ctx, ownerID)
	})
	if err != nil {
		return api.Category{}, err
	}
	current, ok := findCategory(categories, categoryID)
	if !ok {
		return api.Category{}, fmt.Errorf("%w: category %s", resource.ErrNotFound, categoryID)
	}
	if resource.NameTaken(categories, newName, categoryID) {
		return api.Category{}, fmt.Errorf("%w: %q", resource.ErrCategoryExists, newName)
	}

	m := Marker{
		Op:         OpRenameCategory,
		UserID:     ownerID,
		CategoryID: categoryID,
		OldName:    current.Name,
		NewName:    newName,
		Online:     state == connectivity.Online,
		StartedAt:  c.now().UTC(),
	}
	if _, err := c.run(ctx, state, m); err != nil {
		return api.Category{}, err
	}

	current.Name = newName
	return current, nil
}

// DeleteCategory deletes a category together with the owner's flashcards and
// progress filed under its name and the badges tied to it.
func (c *Coordinator) DeleteCategory(ctx context.Context, categoryID, ownerID string) error {
	if _, err := c.Resume(ctx); err != nil {
		return fmt.Errorf("resuming pending cascade: %w", err)
	}

	state, category, err := resolve(ctx, c, func(s connectivity.State) (api.Category, error) {
		return c.res.Categories.Pin(s).Get(ctx, categoryID)
	})
	if err != nil {
		return err
	}
	if category.UserID != ownerID {
		return fmt.Errorf("%w: category %s", resource.ErrNotFound, categoryID)
	}

	_, err = c.run(ctx, state, Marker{
		Op:         OpDeleteCategory,
		UserID:     ownerID,
		CategoryID: categoryID,
		OldName:    category.Name,
		Online:     state == connectivity.Online,
		StartedAt:  c.now().UTC(),
	})
	return err
}

// DeleteUser deletes every record the user owns, then the user. Deleting a
// user that no longer exists succeeds.
func (c *Coordinator) DeleteUser(ctx context.Context, userID string) error {
	if err := validation.Required(map[string]string{"userId": userID}); err != nil {
		return err
	}
	if _, err := c.Resume(ctx); err != nil {
		return fmt.Errorf("resuming pending cascade: %w", err)
	}

	state := c.res.Monitor.Check(ctx)
	_, err := c.run(ctx, state, Marker{
		Op:        OpDeleteUser,
		UserID:    userID,
		Online:    state == connectivity.Online,
		StartedAt: c.now().UTC(),
	})
	return err
}

// Resume re-runs interrupted cascades, oldest first, and returns the ones it
// completed. While the server is unreachable, a cascade started online has
// its mirror part reapplied and stays pending.
func (c *Coordinator) Resume(ctx context.Context) ([]Marker, error) {
	pending, err := Pending(c.res.Store)
	if err != nil || len(pending) == 0 {
		return nil, err
	}

	state := c.res.Monitor.Check(ctx)
	var done []Marker
	for _, m := range pending {
		logger.WarnWithUser(m.UserID, "cascade_resumed", map[string]interface{}{
			"op":         string(m.Op),
			"online":     m.Online,
			"started_at": m.StartedAt.Format(time.RFC3339),
		})
		finished, err := c.run(ctx, state, m)
		if err != nil {
			return done, err
		}
		if finished {
			done = append(done, m)
		}
	}
	return done, nil
}

// run persists the marker and executes the cascade against one store. It
// reports whether the cascade finished and its marker was cleared. A cascade
// started offline only ever touches the mirror.
func (c *Coordinator) run(ctx context.Context, state connectivity.State, m Marker) (bool, error) {
	if err := saveMarker(c.res.Store, &m); err != nil {
		return false, fmt.Errorf("saving cascade marker: %w", err)
	}

	online := m.Online && state == connectivity.Online
	var err error
	switch m.Op {
	case OpRenameCategory:
		err = c.renameCategory(ctx, online, m)
	case OpDeleteCategory:
		err = c.deleteCategory(ctx, online, m)
	case OpDeleteUser:
		err = c.deleteUser(ctx, online, m)
	default:
		err = fmt.Errorf("unknown cascade %q", m.Op)
	}

	details := map[string]interface{}{
		"op":          string(m.Op),
		"category_id": m.CategoryID,
		"online":      online,
	}
	if err != nil {
		logger.ErrorWithUser(m.UserID, "cascade_failed", err, details)
		return false, c.failed(err)
	}
	if m.Online && !online {
		logger.WarnWithUser(m.UserID, "cascade_deferred", details)
		return false, nil
	}
	if err := clearMarker(c.res.Store, m.ID); err != nil {
		return false, fmt.Errorf("clearing cascade marker: %w", err)
	}
	logger.InfoWithUser(m.UserID, "cascade_completed", details)
	return true, nil
}

// resolve pins the state for one cascade and reads what it needs to plan.
// Nothing has been written yet, so a server lost while planning pins the
// cascade to the mirror instead.
func resolve[R any](ctx context.Context, c *Coordinator, fn func(connectivity.State) (R, error)) (connectivity.State, R, error) {
	var state connectivity.State
	out, err := resource.Do(ctx, c.res, func(s connectivity.State) (R, error) {
		state = s
		return fn(s)
	})
	return state, out, err
}

// failed marks the monitor offline when err says the server went away. The
// cascade is not retried against the mirror; its marker stays for Resume.
func (c *Coordinator) failed(err error) error {
	if errors.Is(err, api.ErrUnreachable) {
		c.res.Monitor.MarkOffline(err)
	}
	return err
}

func findCategory(categories []api.Category, id string) (api.Category, bool) {
	for _, cat := range categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return api.Category{}, false
}

func keys[T api.Record[T]](records []T) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Key())
	}
	return out
}

// parallel runs every task concurrently and joins all their errors.
func parallel(tasks []func() error) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(maxParallel)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := task(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// remoteDeletes queues a remote delete for every id of one collection.
func remoteDeletes[T api.Record[T]](ctx context.Context, col *resource.Collection[T], ids []string) []func() error {
	tasks := make([]func() error, 0, len(ids))
	for _, id := range ids {
		id := id
		tasks = append(tasks, func() error { return col.DeleteRemote(ctx, id) })
	}
	return tasks
}
