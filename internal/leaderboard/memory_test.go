package leaderboard_test

import (
	"testing"

	"github.com/ernie/crewvoice/internal/leaderboard"
	"github.com/ernie/crewvoice/internal/leaderboard/leaderboardtest"
)

func TestMemoryStore(t *testing.T) {
	leaderboardtest.Run(t, func(t *testing.T) leaderboard.Store {
		return leaderboard.NewMemory()
	})
}
