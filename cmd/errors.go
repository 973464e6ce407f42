package cmd

import (
	"errors"
	"strings"

	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/auth"
	"github.com/sparkvibe/sparkvibe/internal/resource"
	"github.com/sparkvibe/sparkvibe/internal/validation"
)

// describe turns an error into the one line shown to the user.
func describe(err error) string {
	var (
		verr   *validation.Error
		apiErr *api.APIError
	)
	switch {
	case errors.As(err, &verr):
		return "please fill in: " + strings.Join(verr.Fields, ", ")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, auth.ErrDuplicateEmail):
		return "an account with that email already exists"
	case errors.Is(err, resource.ErrCategoryExists):
		return "a category with that name already exists"
	case errors.Is(err, resource.ErrNotFound):
		return "not found"
	case errors.As(err, &apiErr):
		return "the server could not complete the request, try again"
	case errors.Is(err, api.ErrUnreachable):
		return "the server is unreachable, try again later"
	default:
		return err.Error()
	}
}
