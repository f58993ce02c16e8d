package domain

import "time"

// Session is an in-progress game tracked between GameStart and GameEnd
type Session struct {
	ID        string    `json:"id"` // correlation id for log lines and dashboard events
	GameCode  string    `json:"game_code"`
	MatchID   int64     `json:"match_id"`
	Roster    []string  `json:"roster"`
	Colors    []int     `json:"colors,omitempty"`
	Channel   string    `json:"channel,omitempty"` // resolved game channel name, empty if none
	StartedAt time.Time `json:"started_at"`
}

// ChannelStatus is the dashboard view of one configured game channel
type ChannelStatus struct {
	Name       string   `json:"name"`
	VoiceID    string   `json:"voice_id"`
	TextID     string   `json:"text_id"`
	Live       []string `json:"live"`
	MatchStart []string `json:"match_start,omitempty"`
}
