package identity

import (
	"context"
	"sync"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
)

// Session is an in-memory provider whose user changes on SignIn and SignOut.
type Session struct {
	mu        sync.Mutex
	actor     *models.Actor
	listeners map[int]func(actor *models.Actor)
	next      int
}

func NewSession() *Session {
	return &Session{listeners: make(map[int]func(actor *models.Actor))}
}

func (s *Session) CurrentUser(ctx context.Context) (*models.Actor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actor == nil {
		return nil, nil
	}
	actor := *s.actor
	return &actor, nil
}

func (s *Session) OnAuthChange(fn func(actor *models.Actor)) Unsubscribe {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) SignIn(actor models.Actor) {
	s.set(&actor)
}

func (s *Session) SignOut() {
	s.set(nil)
}

func (s *Session) set(actor *models.Actor) {
	s.mu.Lock()
	s.actor = actor
	listeners := make([]func(actor *models.Actor), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		if actor == nil {
			fn(nil)
			continue
		}
		copied := *actor
		fn(&copied)
	}
}
