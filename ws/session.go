package ws

import (
	"sync"

	"github.com/judgegodwins/ludo-server/store"
)

// Session is what one connection knows about its player: who they are, which
// room they are looking at and the feeds keeping them up to date.
type Session struct {
	PlayerID string
	Username string

	mu   sync.Mutex
	room string
	subs []*store.Subscription
}

func NewSession(playerID, username string) *Session {
	return &Session{PlayerID: playerID, Username: username}
}

func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Enter switches the session to code. Feeds of the previous room are
// released first.
func (s *Session) Enter(code string) {
	s.Release()

	s.mu.Lock()
	s.room = code
	s.mu.Unlock()
}

// Track ties sub to the current room. It is released immediately if the
// session has moved on from code in the meantime.
func (s *Session) Track(code string, sub *store.Subscription) {
	s.mu.Lock()
	if s.room != code {
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

// Release unsubscribes every feed and forgets the room. It returns the room
// the session was in.
func (s *Session) Release() string {
	room, _ := s.detach(func(string) bool { return true })
	return room
}

// ReleaseIf releases the session only if it is still in code.
func (s *Session) ReleaseIf(code string) bool {
	_, ok := s.detach(func(room string) bool { return room == code })
	return ok
}

func (s *Session) detach(match func(room string) bool) (string, bool) {
	s.mu.Lock()
	if !match(s.room) {
		s.mu.Unlock()
		return "", false
	}
	subs := s.subs
	room := s.room
	s.subs = nil
	s.room = ""
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	return room, true
}

func (s *Session) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
