package resource

import (
	"context"
	"errors"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/logger"
	"github.com/sparkvibe/sparkvibe/internal/mirror"
)

const ownerField = "userId"

// Client groups the five collections over one transport, mirror and monitor.
type Client struct {
	Flashcards *Collection[api.Flashcard]
	Categories *Collection[api.Category]
	Progress   *Collection[api.Progress]
	Badges     *Collection[api.Badge]
	Users      *Collection[api.User]

	Monitor *connectivity.Monitor
	Store   *mirror.Store
}

func NewClient(remote *api.Client, store *mirror.Store, monitor *connectivity.Monitor) *Client {
	return &Client{
		Flashcards: newCollection[api.Flashcard](api.CollectionFlashcards, ownerField, remote, store, monitor),
		Categories: newCollection[api.Category](api.CollectionCategories, ownerField, remote, store, monitor),
		Progress:   newCollection[api.Progress](api.CollectionProgress, ownerField, remote, store, monitor),
		Badges:     newCollection[api.Badge](api.CollectionBadges, ownerField, remote, store, monitor),
		Users:      newCollection[api.User](api.CollectionUsers, "", remote, store, monitor),
		Monitor:    monitor,
		Store:      store,
	}
}

// Do runs a multi-call operation against one store. fn receives the pinned
// state; if the server turns out to be unreachable, fn is re-run offline.
func Do[R any](ctx context.Context, c *Client, fn func(connectivity.State) (R, error)) (R, error) {
	state := c.Monitor.Check(ctx)
	out, err := fn(state)
	if state == connectivity.Online && errors.Is(err, api.ErrUnreachable) {
		c.Monitor.MarkOffline(err)
		logger.Warn("mirror_fallback", map[string]interface{}{"error": err.Error()})
		return fn(connectivity.Offline)
	}
	return out, err
}
