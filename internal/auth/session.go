package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/sparkvibe/sparkvibe/internal/resource"
	"github.com/sparkvibe/sparkvibe/internal/validation"
)

const sessionKey = "session"

var ErrNoSession = errors.New("not signed in")

// Login makes sess the active session.
func (s *Service) Login(sess Session) error {
	return s.res.Store.SetEntry(sessionKey, sess)
}

func (s *Service) Logout() error {
	return s.res.Store.DeleteEntry(sessionKey)
}

// Current returns the active session or ErrNoSession.
func (s *Service) Current() (Session, error) {
	var sess Session
	ok, err := s.res.Store.GetEntry(sessionKey, &sess)
	if err != nil {
		return Session{}, err
	}
	if !ok || sess.ID == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Forget logs out when the active session belongs to userID.
func (s *Service) Forget(userID string) error {
	sess, err := s.Current()
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	if sess.ID != userID {
		return nil
	}
	return s.Logout()
}

// UpdateProfile changes a user's name and avatar and refreshes the active
// session if it is that user's.
func (s *Service) UpdateProfile(ctx context.Context, id, name, avatar string) (Session, error) {
	name = strings.TrimSpace(name)
	if err := validation.Required(map[string]string{"name": name}); err != nil {
		return Session{}, err
	}

	u, err := s.res.Users.Update(ctx, id, resource.Patch{"name": name, "avatar": strings.TrimSpace(avatar)})
	if err != nil {
		return Session{}, err
	}
	updated := sessionOf(u)

	if current, err := s.Current(); err == nil && current.ID == id {
		if err := s.Login(updated); err != nil {
			return Session{}, err
		}
	}
	return updated, nil
}
