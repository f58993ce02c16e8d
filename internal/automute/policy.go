// Package automute reconciles voice participants against in-game alive/dead
// state and applies the resulting mute/deafen edits.
package automute

import (
	"fmt"

	"github.com/ernie/crewvoice/internal/voice"
)

// Trigger is the game transition that caused a reconciliation
type Trigger string

const (
	MatchStart   Trigger = "match_start"
	MeetingStart Trigger = "meeting_start"
	MeetingEnd   Trigger = "meeting_end"
	MatchEnd     Trigger = "match_end"
)

// Policy is the voice state applied to dead and alive players for a trigger.
// Uniform policies apply the same state to everyone without name matching.
type Policy struct {
	Dead    voice.VoiceState
	Alive   voice.VoiceState
	Uniform bool
}

var policies = map[Trigger]Policy{
	MatchStart: {
		Dead:    voice.VoiceState{Mute: true, Deafen: true},
		Alive:   voice.VoiceState{Mute: true, Deafen: true},
		Uniform: true,
	},
	MeetingStart: {
		Dead:  voice.VoiceState{Mute: true, Deafen: false},
		Alive: voice.VoiceState{Mute: false, Deafen: false},
	},
	MeetingEnd: {
		Dead:  voice.VoiceState{Mute: false, Deafen: false},
		Alive: voice.VoiceState{Mute: true, Deafen: true},
	},
	MatchEnd: {
		Dead:    voice.VoiceState{},
		Alive:   voice.VoiceState{},
		Uniform: true,
	},
}

// PolicyFor returns the policy of a trigger
func PolicyFor(t Trigger) (Policy, error) {
	p, ok := policies[t]
	if !ok {
		return Policy{}, fmt.Errorf("unknown automute trigger %q", t)
	}
	return p, nil
}

// StateFor returns the state for a player on the given side
func (p Policy) StateFor(side Side) voice.VoiceState {
	if side == SideDead {
		return p.Dead
	}
	return p.Alive
}
