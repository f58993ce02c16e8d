// Package leaderboardtest checks leaderboard.Store implementations against
// the behaviour the bot relies on.
package leaderboardtest

import (
	"context"
	"errors"
	"testing"

	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/leaderboard"
)

// Run exercises a fresh store from newStore in each subtest
func Run(t *testing.T, newStore func(t *testing.T) leaderboard.Store) {
	t.Run("CreateAndLookup", func(t *testing.T) {
		testCreateAndLookup(t, newStore(t))
	})
	t.Run("LinkUnlink", func(t *testing.T) {
		testLinkUnlink(t, newStore(t))
	})
	t.Run("RecordMatch", func(t *testing.T) {
		testRecordMatch(t, newStore(t))
	})
	t.Run("Top", func(t *testing.T) {
		testTop(t, newStore(t))
	})
}

func testCreateAndLookup(t *testing.T, s leaderboard.Store) {
	ctx := context.Background()
	if _, err := s.PlayerByName(ctx, "Aiden"); !errors.Is(err, leaderboard.ErrNotFound) {
		t.Fatalf("lookup before create: err = %v, want ErrNotFound", err)
	}
	e, created, err := leaderboard.EnsurePlayer(ctx, s, "Aiden")
	if err != nil || !created {
		t.Fatalf("EnsurePlayer = %v, %v", created, err)
	}
	if e.MMR != leaderboard.DefaultRating || e.Linked() {
		t.Errorf("new entry = %+v", e)
	}
	if _, created, _ := leaderboard.EnsurePlayer(ctx, s, "aiden"); created {
		t.Error("EnsurePlayer created a duplicate differing only in case")
	}
	if err := s.Persist(ctx); err != nil {
		t.Errorf("Persist: %v", err)
	}
}

func testLinkUnlink(t *testing.T, s leaderboard.Store) {
	ctx := context.Background()
	if err := s.LinkDiscord(ctx, "nobody", "1"); !errors.Is(err, leaderboard.ErrNotFound) {
		t.Errorf("link of missing player: err = %v, want ErrNotFound", err)
	}
	if _, err := s.CreatePlayer(ctx, "zurg"); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkDiscord(ctx, "zurg", "4242"); err != nil {
		t.Fatal(err)
	}
	e, err := s.PlayerByDiscord(ctx, "4242")
	if err != nil || e.Name != "zurg" {
		t.Fatalf("PlayerByDiscord = %+v, %v", e, err)
	}
	linked, err := s.Linked(ctx)
	if err != nil || len(linked) != 1 {
		t.Fatalf("Linked = %v, %v", linked, err)
	}
	if err := s.UnlinkDiscord(ctx, "zurg"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PlayerByDiscord(ctx, "4242"); !errors.Is(err, leaderboard.ErrNotFound) {
		t.Errorf("after unlink: err = %v, want ErrNotFound", err)
	}
}

func finishedMatch() *domain.Match {
	return &domain.Match{
		ID:     1780,
		Result: domain.ResultImpostorsWin,
		Players: []domain.Player{
			{Name: "zurg", Team: domain.TeamImpostor, MMR: 1040, MMRDelta: 40, ImpostorDelta: 40, DiscordID: "77"},
			{Name: "Aiden", Team: domain.TeamCrewmate, MMR: 985, MMRDelta: -15, CrewmateDelta: -15, Tasks: 10},
		},
	}
}

func testRecordMatch(t *testing.T, s leaderboard.Store) {
	ctx := context.Background()
	ok, err := s.RecordMatch(ctx, finishedMatch())
	if err != nil || !ok {
		t.Fatalf("RecordMatch = %v, %v", ok, err)
	}
	ok, err = s.RecordMatch(ctx, finishedMatch())
	if err != nil || ok {
		t.Fatalf("second RecordMatch = %v, %v; want false, nil", ok, err)
	}

	zurg, err := s.PlayerByName(ctx, "zurg")
	if err != nil {
		t.Fatal(err)
	}
	if zurg.MMR != 1040 || zurg.ImpostorMMR != 1040 || zurg.Games != 1 || zurg.Wins != 1 || zurg.DiscordID != "77" {
		t.Errorf("zurg = %+v", zurg)
	}
	aiden, err := s.PlayerByName(ctx, "Aiden")
	if err != nil {
		t.Fatal(err)
	}
	if aiden.MMR != 985 || aiden.CrewmateMMR != 985 || aiden.Games != 1 || aiden.Wins != 0 {
		t.Errorf("Aiden = %+v", aiden)
	}

	canceled := finishedMatch()
	canceled.ID = 1781
	canceled.Result = domain.ResultCanceled
	if _, err := s.RecordMatch(ctx, canceled); err != nil {
		t.Fatal(err)
	}
	if zurg, _ := s.PlayerByName(ctx, "zurg"); zurg.Games != 1 {
		t.Errorf("canceled match counted: %+v", zurg)
	}
}

func testTop(t *testing.T, s leaderboard.Store) {
	ctx := context.Background()
	if _, err := s.RecordMatch(ctx, finishedMatch()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreatePlayer(ctx, "Mantis"); err != nil {
		t.Fatal(err)
	}
	top, err := s.Top(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].Name != "zurg" || top[0].Rank != 1 || top[1].Name != "Mantis" || top[1].Rank != 2 {
		t.Errorf("Top(2) = %+v", top)
	}
	all, err := s.Top(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("Top(0) = %d entries, %v; want all 3", len(all), err)
	}
}
