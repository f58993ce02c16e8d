package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/leaderboard"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store provides database access. It implements leaderboard.Store.
type Store struct {
	db *sql.DB
}

var _ leaderboard.Store = (*Store)(nil)

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, leaderboard.ErrNotFound)
	}
	return err
}

// --- Player methods ---

// PlayerByName returns the entry for an in-game name, ignoring case
func (s *Store) PlayerByName(ctx context.Context, name string) (*domain.LeaderboardEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM players WHERE name = ?`, name)
	e, err := scanEntry(row)
	if err != nil {
		return nil, notFound(err, name)
	}
	return e, nil
}

// PlayerByDiscord returns the entry linked to a Discord user
func (s *Store) PlayerByDiscord(ctx context.Context, discordID string) (*domain.LeaderboardEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM players WHERE discord_id = ? LIMIT 1`, discordID)
	e, err := scanEntry(row)
	if err != nil {
		return nil, notFound(err, "discord "+discordID)
	}
	return e, nil
}

// CreatePlayer inserts a new entry at the default rating. Creating an
// existing name returns the existing entry.
func (s *Store) CreatePlayer(ctx context.Context, name string) (*domain.LeaderboardEntry, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO players (name, mmr, crewmate_mmr, impostor_mmr)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, leaderboard.DefaultRating, leaderboard.DefaultRating, leaderboard.DefaultRating)
	if err != nil {
		return nil, fmt.Errorf("creating player %s: %w", name, err)
	}
	return s.PlayerByName(ctx, name)
}

// LinkDiscord links a Discord user to an entry
func (s *Store) LinkDiscord(ctx context.Context, name, discordID string) error {
	return s.setDiscord(ctx, name, sql.NullString{String: discordID, Valid: discordID != ""})
}

// UnlinkDiscord clears an entry's Discord link
func (s *Store) UnlinkDiscord(ctx context.Context, name string) error {
	return s.setDiscord(ctx, name, sql.NullString{})
}

func (s *Store) setDiscord(ctx context.Context, name string, discordID sql.NullString) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE players SET discord_id = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?
	`, discordID, name)
	if err != nil {
		return fmt.Errorf("updating discord of %s: %w", name, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", name, leaderboard.ErrNotFound)
	}
	return nil
}

// Linked returns every entry with a Discord link
func (s *Store) Linked(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM players
		WHERE discord_id IS NOT NULL AND discord_id NOT IN ('', '0')
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Top returns the n highest rated entries
func (s *Store) Top(ctx context.Context, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		n = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM players ORDER BY mmr DESC, name LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Persist checkpoints the write-ahead log into the main database file
func (s *Store) Persist(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`); err != nil {
		return fmt.Errorf("checkpointing: %w", err)
	}
	return nil
}

// --- Match methods ---

// RecordMatch applies a finished match to the leaderboard in one transaction.
// A match already recorded is left alone and reported with false.
func (s *Store) RecordMatch(ctx context.Context, m *domain.Match) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO recorded_matches (match_id, result) VALUES (?, ?)
		ON CONFLICT(match_id) DO NOTHING
	`, m.ID, m.Result)
	if err != nil {
		return false, fmt.Errorf("recording match %d: %w", m.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return false, nil
	}

	for i := range m.Players {
		p := &m.Players[i]
		if err := recordPlayer(ctx, tx, m, p); err != nil {
			return false, fmt.Errorf("recording %s in match %d: %w", p.Name, m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func recordPlayer(ctx context.Context, tx *sql.Tx, m *domain.Match, p *domain.Player) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO players (name, mmr, crewmate_mmr, impostor_mmr)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, p.Name, leaderboard.DefaultRating, leaderboard.DefaultRating, leaderboard.DefaultRating)
	if err != nil {
		return err
	}

	var id int64
	row := tx.QueryRowContext(ctx, `SELECT id, `+entryColumns+` FROM players WHERE name = ?`, p.Name)
	var discordID sql.NullString
	var e domain.LeaderboardEntry
	if err := row.Scan(&id, &e.Name, &discordID, &e.MMR, &e.CrewmateMMR, &e.ImpostorMMR, &e.Games, &e.Wins); err != nil {
		return err
	}

	e.DiscordID = scanNullStringValue(discordID)
	leaderboard.ApplyMatch(&e, m, p)
	discordID = sql.NullString{String: e.DiscordID, Valid: e.DiscordID != ""}

	_, err = tx.ExecContext(ctx, `
		UPDATE players SET mmr = ?, crewmate_mmr = ?, impostor_mmr = ?, games = ?, wins = ?,
			discord_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, e.MMR, e.CrewmateMMR, e.ImpostorMMR, e.Games, e.Wins, discordID, id)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_players (match_id, player_id, team, color, tasks, mmr_delta, crewmate_delta, impostor_delta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, id, p.Team, p.Color, p.Tasks, p.MMRDelta, p.CrewmateDelta, p.ImpostorDelta)
	return err
}
