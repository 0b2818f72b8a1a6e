// Package identity отвечает на вопрос "кто сейчас вошёл" и оповещает
// подписчиков о входе и выходе.
package identity

import (
	"context"
	"errors"
	"sync"
)

var ErrEmptyUserID = errors.New("identity: empty user id")

// Listener вызывается при каждом входе или выходе
type Listener func(userID string, signedIn bool)

type Provider interface {
	CurrentUser() (string, bool)
	Subscribe(fn Listener) (cancel func())
}

// Session изменяемая сессия одного клиента
type Session struct {
	mu        sync.Mutex
	userID    string
	nextID    int
	listeners map[int]Listener
}

func NewSession() *Session {
	return &Session{listeners: make(map[int]Listener)}
}

func (s *Session) CurrentUser() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SignIn повторный вход тем же пользователем ничего не меняет
func (s *Session) SignIn(userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	s.set(userID)
	return nil
}

func (s *Session) SignOut() {
	s.set("")
}

// Verifier превращает токен в id пользователя
type Verifier interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// SignInWithToken проверяет токен и входит пользователем, которому он выдан.
// При ошибке текущий пользователь не меняется.
func (s *Session) SignInWithToken(ctx context.Context, v Verifier, token string) (string, error) {
	userID, err := v.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	if err := s.SignIn(userID); err != nil {
		return "", err
	}
	return userID, nil
}

func (s *Session) set(userID string) {
	s.mu.Lock()
	if s.userID == userID {
		s.mu.Unlock()
		return
	}
	s.userID = userID
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(userID, userID != "")
	}
}

type fixed string

// Fixed неизменяемая личность на время одного запроса
func Fixed(userID string) Provider {
	return fixed(userID)
}

func (f fixed) CurrentUser() (string, bool) {
	return string(f), f != ""
}

func (fixed) Subscribe(Listener) func() {
	return func() {}
}
