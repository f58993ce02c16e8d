// Package leaderboard defines the long-lived player store the bot links
// voice identities into and records finished matches in.
package leaderboard

import (
	"context"
	"errors"

	"github.com/ernie/crewvoice/internal/domain"
)

// ErrNotFound is returned when no leaderboard entry matches a lookup
var ErrNotFound = errors.New("player not found")

// DefaultRating is the rating a new entry starts at
const DefaultRating = 1000

// Store persists leaderboard entries
type Store interface {
	PlayerByName(ctx context.Context, name string) (*domain.LeaderboardEntry, error)
	PlayerByDiscord(ctx context.Context, discordID string) (*domain.LeaderboardEntry, error)
	CreatePlayer(ctx context.Context, name string) (*domain.LeaderboardEntry, error)
	LinkDiscord(ctx context.Context, name, discordID string) error
	UnlinkDiscord(ctx context.Context, name string) error
	// Linked returns every entry carrying an external identity
	Linked(ctx context.Context) ([]domain.LeaderboardEntry, error)
	// Persist flushes pending writes to durable storage
	Persist(ctx context.Context) error
	// RecordMatch applies a finished match's pre-computed rating changes.
	// It reports false when the match was already recorded.
	RecordMatch(ctx context.Context, m *domain.Match) (bool, error)
	// Top returns the n highest rated entries, ranked from 1
	Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error)
}

// EnsurePlayer returns the entry for name, creating it when missing
func EnsurePlayer(ctx context.Context, s Store, name string) (*domain.LeaderboardEntry, bool, error) {
	e, err := s.PlayerByName(ctx, name)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	e, err = s.CreatePlayer(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// ApplyMatch updates an entry with one player's result
func ApplyMatch(e *domain.LeaderboardEntry, m *domain.Match, p *domain.Player) {
	if p.DiscordID != "" && !e.Linked() {
		e.DiscordID = p.DiscordID
	}
	if m.Canceled() {
		return
	}
	e.MMR = p.MMR
	e.CrewmateMMR += p.CrewmateDelta
	e.ImpostorMMR += p.ImpostorDelta
	e.Games++
	if m.Won(p) {
		e.Wins++
	}
}
