package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResultUnresolved is the result recorded while the game server has not
// finished writing the match file
const ResultUnresolved = "Unknown"

// Well-known match results
const (
	ResultImpostorsWin = "Impostors Win"
	ResultCrewmatesWin = "Crewmates Win"
	ResultHumansByVote = "HumansByVote"
	ResultCanceled     = "Canceled"
)

// Match is a finished (or finishing) match record
type Match struct {
	ID        int64    `json:"match_id"`
	Result    string   `json:"result"`
	EventFile string   `json:"event_file"`
	Players   []Player `json:"players"`
}

// Resolved reports whether the match result has been written
func (m *Match) Resolved() bool {
	return m.Result != "" && m.Result != ResultUnresolved
}

// Canceled reports whether the match was called off
func (m *Match) Canceled() bool {
	return m.Result == ResultCanceled
}

// Won reports whether p's team won the match
func (m *Match) Won(p *Player) bool {
	switch m.Result {
	case ResultImpostorsWin:
		return p.IsImpostor()
	case ResultCrewmatesWin, ResultHumansByVote:
		return !p.IsImpostor()
	}
	return false
}

// PlayerByName returns the match player with the given in-game name
func (m *Match) PlayerByName(name string) *Player {
	for i := range m.Players {
		if m.Players[i].Name == name {
			return &m.Players[i]
		}
	}
	return nil
}

// PlayersByTeam returns players on the given team in match order
func (m *Match) PlayersByTeam(team string) []Player {
	var out []Player
	for _, p := range m.Players {
		if p.Team == team {
			out = append(out, p)
		}
	}
	return out
}

// ApplyColors assigns colors from a GameEnd PlayerColors list, matched by roster position
func (m *Match) ApplyColors(names []string, colors []int) {
	for i, name := range names {
		if i >= len(colors) {
			return
		}
		if p := m.PlayerByName(name); p != nil && ValidColor(colors[i]) {
			p.Color = colors[i]
		}
	}
}

// MatchEventKind enumerates the entries of a per-match event log
type MatchEventKind string

const (
	KindTask          MatchEventKind = "Task"
	KindPlayerVote    MatchEventKind = "PlayerVote"
	KindDeath         MatchEventKind = "Death"
	KindBodyReport    MatchEventKind = "BodyReport"
	KindMeetingStart  MatchEventKind = "MeetingStart"
	KindExiled        MatchEventKind = "Exiled"
	KindGameCancel    MatchEventKind = "GameCancel"
	KindManualGameEnd MatchEventKind = "ManualGameEnd"
	KindDisconnect    MatchEventKind = "Disconnect"
	KindMeetingEnd    MatchEventKind = "MeetingEnd"
)

// MatchEvent is one decoded entry of a per-match event log.
// Subject is the acting player; Target is the vote target, killer or dead player.
type MatchEvent struct {
	Kind    MatchEventKind
	Subject string
	Target  string
	Result  string
}

// rawMatchEvent mirrors the keys the game server writes
type rawMatchEvent struct {
	Event      string `json:"Event"`
	Name       string `json:"Name"`
	Player     string `json:"Player"`
	Target     string `json:"Target"`
	Killer     string `json:"Killer"`
	DeadPlayer string `json:"DeadPlayer"`
	Result     string `json:"Result"`
}

// UnmarshalJSON folds the raw per-kind keys into Subject and Target
func (e *MatchEvent) UnmarshalJSON(data []byte) error {
	var raw rawMatchEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Event == "" {
		return fmt.Errorf("match event without Event key")
	}
	e.Kind = MatchEventKind(raw.Event)
	e.Subject = StripDecoration(firstNonEmpty(raw.Name, raw.Player))
	e.Target = StripDecoration(firstNonEmpty(raw.Target, raw.Killer, raw.DeadPlayer))
	e.Result = raw.Result
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// StripDecoration removes the trailing " |" the game appends to some names
func StripDecoration(name string) string {
	return strings.TrimSuffix(name, " |")
}
