package storage

import (
	"database/sql"

	"github.com/ernie/crewvoice/internal/domain"
)

func scanNullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

const entryColumns = `name, discord_id, mmr, crewmate_mmr, impostor_mmr, games, wins`

// scanEntry scans a leaderboard row selected with entryColumns
func scanEntry(s scanner) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	var discordID sql.NullString
	err := s.Scan(&e.Name, &discordID, &e.MMR, &e.CrewmateMMR, &e.ImpostorMMR, &e.Games, &e.Wins)
	if err != nil {
		return nil, err
	}
	e.DiscordID = scanNullStringValue(discordID)
	return &e, nil
}
