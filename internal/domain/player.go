package domain

import "strings"

// Teams
const (
	TeamImpostor = "impostor"
	TeamCrewmate = "crewmate"
)

// Colors are 0..17; badge offsets are applied only when rendering
const (
	MaxColor       = 17
	ImpostorOffset = 100
	GhostOffset    = 200
)

// ValidColor reports whether c is a base player color
func ValidColor(c int) bool {
	return c >= 0 && c <= MaxColor
}

// ColorNames maps base colors to their in-game names
var ColorNames = [MaxColor + 1]string{
	"Red", "Blue", "Green", "Pink", "Orange", "Yellow", "Black", "White", "Purple",
	"Brown", "Cyan", "Lime", "Maroon", "Rose", "Banana", "Gray", "Tan", "Coral",
}

// Player is a participant within one match, with pre-computed rating values
type Player struct {
	Name          string  `json:"name"`
	Color         int     `json:"color"`
	Team          string  `json:"team"`
	Alive         bool    `json:"alive"`
	Tasks         int     `json:"tasks"`
	DiscordID     string  `json:"discord_id,omitempty"` // empty when unlinked
	MMR           float64 `json:"mmr"`
	MMRDelta      float64 `json:"mmr_delta"`
	CrewmateDelta float64 `json:"crewmate_delta"`
	ImpostorDelta float64 `json:"impostor_delta"`
}

// IsImpostor reports whether the player was on the impostor team
func (p *Player) IsImpostor() bool {
	return strings.EqualFold(p.Team, TeamImpostor)
}

// LeaderboardEntry is a persisted long-lived player record
type LeaderboardEntry struct {
	Rank        int     `json:"rank,omitempty"`
	Name        string  `json:"name"`
	DiscordID   string  `json:"discord_id,omitempty"`
	MMR         float64 `json:"mmr"`
	CrewmateMMR float64 `json:"crewmate_mmr"`
	ImpostorMMR float64 `json:"impostor_mmr"`
	Games       int     `json:"games"`
	Wins        int     `json:"wins"`
}

// Linked reports whether the entry carries an external identity
func (e *LeaderboardEntry) Linked() bool {
	return e.DiscordID != "" && e.DiscordID != "0"
}
