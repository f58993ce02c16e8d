package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ernie/crewvoice/internal/domain"
)

// Memory is an in-process Store
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*domain.LeaderboardEntry // keyed by lowercased name
	recorded map[int64]bool
	persists int
}

// NewMemory creates an empty store
func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[string]*domain.LeaderboardEntry),
		recorded: make(map[int64]bool),
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Memory) PlayerByName(_ context.Context, name string) (*domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s *Memory) PlayerByDiscord(_ context.Context, discordID string) (*domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Linked() && e.DiscordID == discordID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("discord %s: %w", discordID, ErrNotFound)
}

func (s *Memory) CreatePlayer(_ context.Context, name string) (*domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key(name)]; ok {
		cp := *e
		return &cp, nil
	}
	e := &domain.LeaderboardEntry{Name: name, MMR: DefaultRating, CrewmateMMR: DefaultRating, ImpostorMMR: DefaultRating}
	s.entries[key(name)] = e
	cp := *e
	return &cp, nil
}

func (s *Memory) LinkDiscord(_ context.Context, name, discordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key(name)]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	e.DiscordID = discordID
	return nil
}

func (s *Memory) UnlinkDiscord(ctx context.Context, name string) error {
	return s.LinkDiscord(ctx, name, "")
}

func (s *Memory) Linked(context.Context) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LeaderboardEntry
	for _, e := range s.entries {
		if e.Linked() {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Memory) Persist(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persists++
	return nil
}

// Persists returns how many times Persist was called
func (s *Memory) Persists() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persists
}

func (s *Memory) RecordMatch(_ context.Context, m *domain.Match) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded[m.ID] {
		return false, nil
	}
	for i := range m.Players {
		p := &m.Players[i]
		e, ok := s.entries[key(p.Name)]
		if !ok {
			e = &domain.LeaderboardEntry{Name: p.Name, MMR: DefaultRating, CrewmateMMR: DefaultRating, ImpostorMMR: DefaultRating}
			s.entries[key(p.Name)] = e
		}
		ApplyMatch(e, m, p)
	}
	s.recorded[m.ID] = true
	return true, nil
}

func (s *Memory) Top(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LeaderboardEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MMR != out[j].MMR {
			return out[i].MMR > out[j].MMR
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}
