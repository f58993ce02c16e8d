package domain

import "time"

// Inbound event names sent by the game server plugin
const (
	GameEventStart        = "GameStart"
	GameEventMeetingStart = "MeetingStart"
	GameEventMeetingEnd   = "MeetingEnd"
	GameEventEnd          = "GameEnd"
)

// Meeting results reported on MeetingEnd
const (
	MeetingResultExiled = "Exiled"
	MeetingResultTie    = "Tie"
)

// GameEvent is one inbound telemetry message from the game server
type GameEvent struct {
	EventName    string   `json:"EventName"`
	GameCode     string   `json:"GameCode"`
	MatchID      int64    `json:"MatchID,omitempty"`
	Players      []string `json:"Players,omitempty"`
	PlayerColors []int    `json:"PlayerColors,omitempty"`
	DeadPlayers  []string `json:"DeadPlayers,omitempty"`
	Impostors    []string `json:"Impostors,omitempty"`
	Crewmates    []string `json:"Crewmates,omitempty"`
	Result       any      `json:"Result,omitempty"` // string on MeetingEnd, numeric on GameEnd
}

// MeetingResult returns the Result field when it was sent as a string
func (e *GameEvent) MeetingResult() string {
	if s, ok := e.Result.(string); ok {
		return s
	}
	return ""
}

// AlivePlayers returns Players minus DeadPlayers, preserving roster order
func (e *GameEvent) AlivePlayers() []string {
	dead := make(map[string]bool, len(e.DeadPlayers))
	for _, name := range e.DeadPlayers {
		dead[name] = true
	}
	alive := make([]string, 0, len(e.Players))
	for _, name := range e.Players {
		if !dead[name] {
			alive = append(alive, name)
		}
	}
	return alive
}

// AllImpostorsDead reports whether every reported impostor is in DeadPlayers.
// An empty impostor list never counts as all dead, so a meeting reported
// without impostors still gets its meeting-end automute.
func (e *GameEvent) AllImpostorsDead() bool {
	if len(e.Impostors) == 0 {
		return false
	}
	dead := make(map[string]bool, len(e.DeadPlayers))
	for _, name := range e.DeadPlayers {
		dead[name] = true
	}
	for _, name := range e.Impostors {
		if !dead[name] {
			return false
		}
	}
	return true
}

// Event types for WebSocket notifications
const (
	EventMatchStart     = "match_start"
	EventMatchEnd       = "match_end"
	EventMeetingStart   = "meeting_start"
	EventMeetingEnd     = "meeting_end"
	EventAutomute       = "automute"
	EventNarrative      = "narrative"
	EventAutomuteToggle = "automute_toggle"
)

// Event represents a real-time event for WebSocket broadcast
type Event struct {
	Type      string      `json:"event"`
	GameCode  string      `json:"game_code,omitempty"`
	MatchID   int64       `json:"match_id,omitempty"`
	Channel   string      `json:"channel,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// MatchStartEvent is sent when a GameStart has been processed
type MatchStartEvent struct {
	Players   []string `json:"players"`
	SessionID string   `json:"session_id"`
}

// AutomuteEvent summarizes one automute batch
type AutomuteEvent struct {
	Trigger   string   `json:"trigger"`
	Applied   int      `json:"applied"`
	Failed    []string `json:"failed,omitempty"`
	Unmatched []string `json:"unmatched,omitempty"`
}

// NarrativeEntry is one rendered round block
type NarrativeEntry struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// NarrativeEvent carries a finished match narrative
type NarrativeEvent struct {
	Result    string           `json:"result"`
	Entries   []NarrativeEntry `json:"entries"`
	Truncated bool             `json:"truncated,omitempty"`
}
