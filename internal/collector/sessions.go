package collector

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ernie/crewvoice/internal/domain"
)

// Sessions tracks in-progress games by game code
type Sessions struct {
	mu     sync.RWMutex
	byCode map[string]*domain.Session
	now    func() time.Time
}

// NewSessions creates an empty registry
func NewSessions() *Sessions {
	return &Sessions{
		byCode: make(map[string]*domain.Session),
		now:    time.Now,
	}
}

// Register starts tracking a game. A game already registered under the same
// code is replaced.
func (s *Sessions) Register(code string, matchID int64, roster []string, colors []int, channel string) domain.Session {
	sess := &domain.Session{
		ID:        uuid.NewString(),
		GameCode:  code,
		MatchID:   matchID,
		Roster:    append([]string(nil), roster...),
		Colors:    append([]int(nil), colors...),
		Channel:   channel,
		StartedAt: s.now().UTC(),
	}

	s.mu.Lock()
	prev, replaced := s.byCode[code]
	s.byCode[code] = sess
	s.mu.Unlock()

	if replaced {
		log.Printf("Game %s restarted: match %d replaced by %d", code, prev.MatchID, matchID)
	}
	return *sess
}

// Find returns a copy of the session for code
func (s *Sessions) Find(code string) (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byCode[code]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

// Take removes and returns the session for code
func (s *Sessions) Take(code string) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byCode[code]
	if !ok {
		return domain.Session{}, false
	}
	delete(s.byCode, code)
	return *sess, true
}

// Remove stops tracking code and returns the match id it was tracking
func (s *Sessions) Remove(code string) (int64, bool) {
	sess, ok := s.Take(code)
	return sess.MatchID, ok
}

// Active returns all sessions, oldest first
func (s *Sessions) Active() []domain.Session {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.byCode))
	for _, sess := range s.byCode {
		out = append(out, *sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].GameCode < out[j].GameCode
	})
	return out
}
