// Package voicetest provides in-memory voice participants and providers.
package voicetest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ernie/crewvoice/internal/voice"
)

// Participant records every edit applied to it
type Participant struct {
	UserID string
	Name   string
	// Err, when set, is returned by Edit and the state is not recorded
	Err error

	mu    sync.Mutex
	edits []voice.VoiceState
}

// NewParticipant creates a participant named name with id "id-"+name
func NewParticipant(name string) *Participant {
	return &Participant{UserID: "id-" + name, Name: name}
}

func (p *Participant) ID() string          { return p.UserID }
func (p *Participant) DisplayName() string { return p.Name }

func (p *Participant) Edit(ctx context.Context, state voice.VoiceState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Err != nil {
		return p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edits = append(p.edits, state)
	return nil
}

// Edits returns the recorded edits in order
func (p *Participant) Edits() []voice.VoiceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]voice.VoiceState(nil), p.edits...)
}

// Last returns the most recent edit and whether any edit was recorded
func (p *Participant) Last() (voice.VoiceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.edits) == 0 {
		return voice.VoiceState{}, false
	}
	return p.edits[len(p.edits)-1], true
}

// Participants builds participants for each name
func Participants(names ...string) []*Participant {
	out := make([]*Participant, len(names))
	for i, n := range names {
		out[i] = NewParticipant(n)
	}
	return out
}

// AsVoice converts to the voice.Participant slice consumers take
func AsVoice(ps []*Participant) []voice.Participant {
	out := make([]voice.Participant, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

// Message is a text message captured by Provider
type Message struct {
	ChannelID string
	Text      string
}

// Provider is an in-memory voice.Provider
type Provider struct {
	mu       sync.Mutex
	channels map[string][]voice.Participant
	members  map[string]voice.Participant
	messages []Message
}

// NewProvider creates an empty provider
func NewProvider() *Provider {
	return &Provider{
		channels: make(map[string][]voice.Participant),
		members:  make(map[string]voice.Participant),
	}
}

// Connect places participants in a voice channel and registers them as guild members
func (f *Provider) Connect(voiceID string, ps ...voice.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[voiceID] = append(f.channels[voiceID], ps...)
	for _, p := range ps {
		f.members[p.ID()] = p
	}
}

// AddMember registers a guild member that is not in voice
func (f *Provider) AddMember(p voice.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[p.ID()] = p
}

func (f *Provider) ChannelMembers(_ context.Context, voiceID string) ([]voice.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]voice.Participant(nil), f.channels[voiceID]...), nil
}

func (f *Provider) Member(_ context.Context, userID string) (voice.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.members[userID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", userID, voice.ErrNotInGuild)
	}
	return p, nil
}

// Members returns every registered member ordered by id
func (f *Provider) Members(context.Context) ([]voice.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]voice.Participant, 0, len(f.members))
	for _, p := range f.members {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (f *Provider) SendMessage(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, Message{ChannelID: channelID, Text: text})
	return nil
}

// Messages returns the messages sent so far
func (f *Provider) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.messages...)
}
