package voice

import (
	"context"
	"errors"
)

// ErrNotInGuild is returned when a member lookup finds no such member
var ErrNotInGuild = errors.New("member not in guild")

// Provider is the chat platform as seen by the bot core
type Provider interface {
	// ChannelMembers returns the participants connected to a voice channel
	ChannelMembers(ctx context.Context, voiceID string) ([]Participant, error)
	// Member looks up a guild member by id
	Member(ctx context.Context, userID string) (Participant, error)
	// Members returns every guild member
	Members(ctx context.Context) ([]Participant, error)
	// SendMessage posts plain text to a text channel
	SendMessage(ctx context.Context, channelID, text string) error
}

// SeedChannels loads the current members of every configured voice channel.
// A channel that cannot be read keeps its snapshot and its error is returned
// joined with the others.
func SeedChannels(ctx context.Context, p Provider, channels *Channels) error {
	var errs []error
	for _, c := range channels.All() {
		members, err := p.ChannelMembers(ctx, c.VoiceID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.Seed(members)
	}
	return errors.Join(errs...)
}

// Mentioner is implemented by participants that can be mentioned in a message
type Mentioner interface {
	Mention() string
}

// Mention returns the platform mention for p, or "@name" when p cannot be mentioned
func Mention(p Participant) string {
	if m, ok := p.(Mentioner); ok {
		return m.Mention()
	}
	return "@" + p.DisplayName()
}
