package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/leaderboard"
	"github.com/ernie/crewvoice/internal/leaderboard/leaderboardtest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "crewvoice.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	leaderboardtest.Run(t, func(t *testing.T) leaderboard.Store {
		return newTestStore(t)
	})
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crewvoice.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreatePlayer(ctx, "Nutty"); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkDiscord(ctx, "Nutty", "9"); err != nil {
		t.Fatal(err)
	}
	if err := s.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	e, err := s.PlayerByDiscord(ctx, "9")
	if err != nil || e.Name != "Nutty" {
		t.Fatalf("after reopen: %+v, %v", e, err)
	}
}

func TestRecordMatchStoresParticipation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.RecordMatch(ctx, sampleMatch()); err != nil {
		t.Fatal(err)
	}
	var rows int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_players WHERE match_id = ?`, 42).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 2 {
		t.Errorf("match_players rows = %d, want 2", rows)
	}
}

func sampleMatch() *domain.Match {
	return &domain.Match{
		ID:     42,
		Result: domain.ResultCrewmatesWin,
		Players: []domain.Player{
			{Name: "xer", Team: domain.TeamImpostor, Color: 4, MMR: 990, MMRDelta: -10},
			{Name: "Irish", Team: domain.TeamCrewmate, Color: 7, MMR: 1010, MMRDelta: 10, Tasks: 10},
		},
	}
}
