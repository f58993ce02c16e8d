// Package voice models the voice channels games are played in and the
// participants connected to them.
package voice

import (
	"context"
	"sync"

	"github.com/ernie/crewvoice/internal/config"
	"github.com/ernie/crewvoice/internal/domain"
)

// VoiceState is the server-side mute/deafen state applied to a participant
type VoiceState struct {
	Mute   bool
	Deafen bool
}

// Participant is a connected voice member that can have its state edited
type Participant interface {
	ID() string
	DisplayName() string
	Edit(ctx context.Context, state VoiceState) error
}

// GameChannel is a configured voice/text pair with its live participant
// snapshot and the snapshot frozen when a match started in it
type GameChannel struct {
	Name    string
	VoiceID string
	TextID  string

	mu         sync.Mutex
	live       []Participant
	matchStart []Participant
	frozen     bool
}

// NewGameChannel creates an empty channel from its configuration
func NewGameChannel(cfg config.ChannelConfig) *GameChannel {
	return &GameChannel{Name: cfg.Name, VoiceID: cfg.VoiceID, TextID: cfg.TextID}
}

// Join adds p to the live snapshot, replacing any entry with the same ID
func (c *GameChannel) Join(p Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.live {
		if existing.ID() == p.ID() {
			c.live[i] = p
			return
		}
	}
	c.live = append(c.live, p)
}

// Leave removes the participant with the given ID from the live snapshot
func (c *GameChannel) Leave(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.live {
		if existing.ID() == id {
			c.live = append(c.live[:i], c.live[i+1:]...)
			return
		}
	}
}

// Seed replaces the live snapshot
func (c *GameChannel) Seed(ps []Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = append([]Participant(nil), ps...)
}

// Live returns a copy of the live snapshot
func (c *GameChannel) Live() []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Participant(nil), c.live...)
}

// FreezeMatchStart copies the live snapshot into the match-start snapshot,
// replacing any snapshot left by a match that never ended, and returns it
func (c *GameChannel) FreezeMatchStart() []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matchStart = append([]Participant(nil), c.live...)
	c.frozen = true
	return append([]Participant(nil), c.matchStart...)
}

// MatchStart returns the frozen snapshot and whether one exists
func (c *GameChannel) MatchStart() ([]Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Participant(nil), c.matchStart...), c.frozen
}

// ClearMatchStart drops the frozen snapshot at match end
func (c *GameChannel) ClearMatchStart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matchStart = nil
	c.frozen = false
}

// Roster returns the participants to reconcile for a meeting: the live
// members that were also present at match start. Without a frozen snapshot
// the live snapshot is used as is.
func (c *GameChannel) Roster() []Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.frozen {
		return append([]Participant(nil), c.live...)
	}
	started := make(map[string]bool, len(c.matchStart))
	for _, p := range c.matchStart {
		started[p.ID()] = true
	}
	var out []Participant
	for _, p := range c.live {
		if started[p.ID()] {
			out = append(out, p)
		}
	}
	return out
}

// Status returns the dashboard view of the channel
func (c *GameChannel) Status() domain.ChannelStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := domain.ChannelStatus{Name: c.Name, VoiceID: c.VoiceID, TextID: c.TextID, Live: names(c.live)}
	if c.frozen {
		st.MatchStart = names(c.matchStart)
	}
	return st
}

func names(ps []Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.DisplayName()
	}
	return out
}

// Channels is the ordered set of configured game channels
type Channels struct {
	list []*GameChannel
}

// NewChannels builds the channel set in declaration order
func NewChannels(cfgs []config.ChannelConfig) *Channels {
	cs := &Channels{}
	for _, cfg := range cfgs {
		cs.list = append(cs.list, NewGameChannel(cfg))
	}
	return cs
}

// All returns the channels in declaration order
func (cs *Channels) All() []*GameChannel {
	return cs.list
}

// ByName returns the channel with the given configured name
func (cs *Channels) ByName(name string) *GameChannel {
	for _, c := range cs.list {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ByVoiceID returns the channel backed by the given voice channel
func (cs *Channels) ByVoiceID(id string) *GameChannel {
	for _, c := range cs.list {
		if c.VoiceID == id {
			return c
		}
	}
	return nil
}

// Move applies a voice state change: the participant leaves the channel it
// was in and joins the one it moved to. Either ID may be empty or unknown.
func (cs *Channels) Move(p Participant, fromVoiceID, toVoiceID string) {
	if fromVoiceID == toVoiceID {
		return
	}
	if c := cs.ByVoiceID(fromVoiceID); c != nil {
		c.Leave(p.ID())
	}
	if c := cs.ByVoiceID(toVoiceID); c != nil {
		c.Join(p)
	}
}
