package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/validation"
)

// ErrCategoryExists is returned when an owner already has a category of the
// same name, compared case-insensitively.
var ErrCategoryExists = errors.New("category already exists")

// NameTaken reports whether any category other than exceptID is called name.
func NameTaken(categories []api.Category, name, exceptID string) bool {
	name = strings.TrimSpace(name)
	for _, c := range categories {
		if c.ID != exceptID && strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return true
		}
	}
	return false
}

// CreateCategory creates a category after checking the owner has none of the
// same name. The check and the write use the same store.
func (c *Client) CreateCategory(ctx context.Context, category api.Category) (api.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if err := validation.Struct(category); err != nil {
		return api.Category{}, err
	}

	return Do(ctx, c, func(state connectivity.State) (api.Category, error) {
		return c.createCategory(ctx, c.Categories.Pin(state), category)
	})
}

func (c *Client) createCategory(ctx context.Context, p Pinned[api.Category], category api.Category) (api.Category, error) {
	existing, err := p.List(ctx, category.UserID)
	if err != nil {
		return api.Category{}, err
	}
	if NameTaken(existing, category.Name, "") {
		return api.Category{}, fmt.Errorf("%w: %q", ErrCategoryExists, category.Name)
	}
	return p.Create(ctx, category)
}
