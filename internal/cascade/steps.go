package cascade

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/mirror"
	"github.com/sparkvibe/sparkvibe/internal/resource"
)

func pinState(online bool) connectivity.State {
	if online {
		return connectivity.Online
	}
	return connectivity.Offline
}

func (c *Coordinator) renameCategory(ctx context.Context, online bool, m Marker) error {
	_, err := c.res.Categories.Pin(pinState(online)).Update(ctx, m.CategoryID, resource.Patch{"name": m.NewName})
	if err != nil && !errors.Is(err, resource.ErrNotFound) {
		return fmt.Errorf("renaming category: %w", err)
	}

	if !online {
		if err := mirror.Mutate(c.res.Store, api.CollectionFlashcards, func(cards []api.Flashcard) ([]api.Flashcard, error) {
			for i := range cards {
				if cards[i].UserID == m.UserID && cards[i].Category == m.OldName {
					cards[i].Category = m.NewName
				}
			}
			return cards, nil
		}); err != nil {
			return err
		}
		return mirror.Mutate(c.res.Store, api.CollectionProgress, func(records []api.Progress) ([]api.Progress, error) {
			for i := range records {
				if records[i].UserID == m.UserID && records[i].Category == m.OldName {
					records[i].Category = m.NewName
				}
			}
			return records, nil
		})
	}

	byName := url.Values{"userId": {m.UserID}, "category": {m.OldName}}
	cards, err := c.res.Flashcards.Pin(connectivity.Online).Find(ctx, byName)
	if err != nil {
		return err
	}
	progress, err := c.res.Progress.Pin(connectivity.Online).Find(ctx, byName)
	if err != nil {
		return err
	}

	patch := resource.Patch{"category": m.NewName}
	tasks := remoteUpdates(ctx, c.res.Flashcards, keys(cards), patch)
	tasks = append(tasks, remoteUpdates(ctx, c.res.Progress, keys(progress), patch)...)
	return parallel(tasks)
}

func (c *Coordinator) deleteCategory(ctx context.Context, online bool, m Marker) error {
	if online {
		byName := url.Values{"userId": {m.UserID}, "category": {m.OldName}}
		cards, err := c.res.Flashcards.Pin(connectivity.Online).Find(ctx, byName)
		if err != nil {
			return err
		}
		progress, err := c.res.Progress.Pin(connectivity.Online).Find(ctx, byName)
		if err != nil {
			return err
		}
		badges, err := c.res.Badges.Pin(connectivity.Online).Find(ctx, url.Values{"userId": {m.UserID}, "categoryId": {m.CategoryID}})
		if err != nil {
			return err
		}

		tasks := remoteDeletes(ctx, c.res.Flashcards, keys(cards))
		tasks = append(tasks, remoteDeletes(ctx, c.res.Progress, keys(progress))...)
		tasks = append(tasks, remoteDeletes(ctx, c.res.Badges, keys(badges))...)
		if err := parallel(tasks); err != nil {
			return err
		}
		if err := c.res.Categories.DeleteRemote(ctx, m.CategoryID); err != nil {
			return err
		}
	}
	return c.forgetCategory(m)
}

// forgetCategory removes a deleted category and its dependents from the mirror.
func (c *Coordinator) forgetCategory(m Marker) error {
	filed := func(owner, category string) bool { return owner == m.UserID && category == m.OldName }
	return errors.Join(
		c.res.Flashcards.ForgetWhere(func(f api.Flashcard) bool { return filed(f.UserID, f.Category) }),
		c.res.Progress.ForgetWhere(func(p api.Progress) bool { return filed(p.UserID, p.Category) }),
		c.res.Badges.ForgetWhere(func(b api.Badge) bool { return b.UserID == m.UserID && b.CategoryID == m.CategoryID }),
		c.res.Categories.ForgetWhere(func(cat api.Category) bool { return cat.ID == m.CategoryID }),
	)
}

func (c *Coordinator) deleteUser(ctx context.Context, online bool, m Marker) error {
	if online {
		owned := url.Values{"userId": {m.UserID}}
		cards, err := c.res.Flashcards.Pin(connectivity.Online).Find(ctx, owned)
		if err != nil {
			return err
		}
		progress, err := c.res.Progress.Pin(connectivity.Online).Find(ctx, owned)
		if err != nil {
			return err
		}
		badges, err := c.res.Badges.Pin(connectivity.Online).Find(ctx, owned)
		if err != nil {
			return err
		}
		categories, err := c.res.Categories.Pin(connectivity.Online).Find(ctx, owned)
		if err != nil {
			return err
		}

		tasks := remoteDeletes(ctx, c.res.Flashcards, keys(cards))
		tasks = append(tasks, remoteDeletes(ctx, c.res.Progress, keys(progress))...)
		tasks = append(tasks, remoteDeletes(ctx, c.res.Badges, keys(badges))...)
		tasks = append(tasks, remoteDeletes(ctx, c.res.Categories, keys(categories))...)
		if err := parallel(tasks); err != nil {
			return err
		}
		if err := c.res.Users.DeleteRemote(ctx, m.UserID); err != nil {
			return err
		}
	}

	if err := c.forgetUser(m.UserID); err != nil {
		return err
	}
	if c.sessions != nil {
		return c.sessions.Forget(m.UserID)
	}
	return nil
}

func (c *Coordinator) forgetUser(userID string) error {
	return errors.Join(
		c.res.Flashcards.ForgetWhere(func(f api.Flashcard) bool { return f.UserID == userID }),
		c.res.Progress.ForgetWhere(func(p api.Progress) bool { return p.UserID == userID }),
		c.res.Badges.ForgetWhere(func(b api.Badge) bool { return b.UserID == userID }),
		c.res.Categories.ForgetWhere(func(cat api.Category) bool { return cat.UserID == userID }),
		c.res.Users.ForgetWhere(func(u api.User) bool { return u.ID == userID }),
	)
}

// remoteUpdates queues a PATCH for every id of one collection. Records
// deleted in the meantime are skipped.
func remoteUpdates[T api.Record[T]](ctx context.Context, col *resource.Collection[T], ids []string, patch resource.Patch) []func() error {
	p := col.Pin(connectivity.Online)
	tasks := make([]func() error, 0, len(ids))
	for _, id := range ids {
		id := id
		tasks = append(tasks, func() error {
			_, err := p.Update(ctx, id, patch)
			if errors.Is(err, resource.ErrNotFound) {
				return nil
			}
			return err
		})
	}
	return tasks
}
