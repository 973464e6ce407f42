// Package auth signs users in and up on top of the users collection and keeps
// the active session in the mirror.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sparkvibe/sparkvibe/internal/api"
	"github.com/sparkvibe/sparkvibe/internal/connectivity"
	"github.com/sparkvibe/sparkvibe/internal/logger"
	"github.com/sparkvibe/sparkvibe/internal/resource"
	"github.com/sparkvibe/sparkvibe/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateEmail     = errors.New("email already registered")
)

// Session is the public view of a signed-in user.
type Session struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

func sessionOf(u api.User) Session {
	return Session{ID: u.ID, Name: u.Name, Email: u.Email, Avatar: u.Avatar}
}

type signUpRequest struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"notblank"`
}

type Service struct {
	res   *resource.Client
	cost  int
	newID func() string
}

func NewService(res *resource.Client) *Service {
	return &Service{res: res, cost: bcrypt.DefaultCost, newID: uuid.NewString}
}

// NormalizeEmail is the form in which emails are compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignIn returns the first user whose email and password both match.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	if err := validation.Required(map[string]string{"email": email, "password": password}); err != nil {
		return Session{}, err
	}

	users, err := s.res.Users.List(ctx, "")
	if err != nil {
		return Session{}, fmt.Errorf("loading users: %w", err)
	}

	want := NormalizeEmail(email)
	for _, u := range users {
		if NormalizeEmail(u.Email) != want {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil {
			logger.InfoWithUser(u.ID, "sign_in", nil)
			return sessionOf(u), nil
		}
	}
	logger.Warn("sign_in_failed", map[string]interface{}{"email": want})
	return Session{}, ErrInvalidCredentials
}

// SignUp creates a user with a hashed password. The duplicate check and the
// create run against the same store.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (Session, error) {
	req := signUpRequest{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password}
	if err := validation.Struct(req); err != nil {
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hashing password: %w", err)
	}

	created, err := resource.Do(ctx, s.res, func(state connectivity.State) (api.User, error) {
		users := s.res.Users.Pin(state)
		existing, err := users.List(ctx, "")
		if err != nil {
			return api.User{}, err
		}
		for _, u := range existing {
			if NormalizeEmail(u.Email) == NormalizeEmail(req.Email) {
				return api.User{}, ErrDuplicateEmail
			}
		}
		return users.Create(ctx, api.User{
			ID:           s.newID(),
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: string(hash),
		})
	})
	if err != nil {
		return Session{}, err
	}

	logger.InfoWithUser(created.ID, "sign_up", nil)
	return sessionOf(created), nil
}
