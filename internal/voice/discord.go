package voice

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Provider on a discordgo session for a single guild
type Discord struct {
	session *discordgo.Session
	guildID string
}

// NewDiscord wraps an opened (or about to be opened) discordgo session
func NewDiscord(session *discordgo.Session, guildID string) *Discord {
	return &Discord{session: session, guildID: guildID}
}

// Session returns the underlying discordgo session
func (d *Discord) Session() *discordgo.Session {
	return d.session
}

// GuildID returns the guild the provider is bound to
func (d *Discord) GuildID() string {
	return d.guildID
}

// member adapts a guild member to Participant
type member struct {
	d *Discord
	m *discordgo.Member
}

func (p *member) ID() string {
	return p.m.User.ID
}

func (p *member) DisplayName() string {
	return p.m.DisplayName()
}

// Mention renders the platform mention for the member
func (p *member) Mention() string {
	return p.m.Mention()
}

func (p *member) Edit(ctx context.Context, state VoiceState) error {
	mute, deaf := state.Mute, state.Deafen
	_, err := p.d.session.GuildMemberEdit(p.d.guildID, p.m.User.ID, &discordgo.GuildMemberParams{
		Mute: &mute,
		Deaf: &deaf,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("editing voice state of %s: %w", p.m.DisplayName(), err)
	}
	return nil
}

// Participant wraps a discordgo member
func (d *Discord) Participant(m *discordgo.Member) Participant {
	return &member{d: d, m: m}
}

// ChannelMembers reads the voice states cached in the session state
func (d *Discord) ChannelMembers(ctx context.Context, voiceID string) ([]Participant, error) {
	guild, err := d.session.State.Guild(d.guildID)
	if err != nil {
		return nil, fmt.Errorf("reading guild state: %w", err)
	}
	var out []Participant
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != voiceID {
			continue
		}
		m := vs.Member
		if m == nil || m.User == nil {
			m, err = d.session.GuildMember(d.guildID, vs.UserID, discordgo.WithContext(ctx))
			if err != nil {
				log.Printf("Skipping voice member %s: %v", vs.UserID, err)
				continue
			}
		}
		out = append(out, d.Participant(m))
	}
	return out, nil
}

// Member looks up a guild member, preferring the state cache
func (d *Discord) Member(ctx context.Context, userID string) (Participant, error) {
	if m, err := d.session.State.Member(d.guildID, userID); err == nil {
		return d.Participant(m), nil
	}
	m, err := d.session.GuildMember(d.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == 404 {
			return nil, ErrNotInGuild
		}
		return nil, fmt.Errorf("fetching member %s: %w", userID, err)
	}
	return d.Participant(m), nil
}

// Members pages through every guild member
func (d *Discord) Members(ctx context.Context) ([]Participant, error) {
	var out []Participant
	after := ""
	for {
		page, err := d.session.GuildMembers(d.guildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing guild members: %w", err)
		}
		for _, m := range page {
			out = append(out, d.Participant(m))
		}
		if len(page) < 1000 {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// SendMessage posts plain text to a channel
func (d *Discord) SendMessage(ctx context.Context, channelID, text string) error {
	if _, err := d.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending message to %s: %w", channelID, err)
	}
	return nil
}

// SendComplex posts an embed message with optional components
func (d *Discord) SendComplex(ctx context.Context, channelID string, msg *discordgo.MessageSend) error {
	if _, err := d.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending embed to %s: %w", channelID, err)
	}
	return nil
}

// TrackVoiceStates keeps the channels' live snapshots in sync with voice
// state updates
func (d *Discord) TrackVoiceStates(channels *Channels) {
	d.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs.GuildID != d.guildID || vs.Member == nil || vs.Member.User == nil {
			return
		}
		before := ""
		if vs.BeforeUpdate != nil {
			before = vs.BeforeUpdate.ChannelID
		}
		channels.Move(d.Participant(vs.Member), before, vs.ChannelID)
	})
}

// GuildRoles maps role id to name for the guild
func (d *Discord) GuildRoles(ctx context.Context) (map[string]string, error) {
	roles, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	out := make(map[string]string, len(roles))
	for _, r := range roles {
		out[r.ID] = r.Name
	}
	return out, nil
}

// MemberRoles returns the role ids of a member
func (d *Discord) MemberRoles(ctx context.Context, userID string) ([]string, error) {
	m, err := d.session.GuildMember(d.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching member %s: %w", userID, err)
	}
	return m.Roles, nil
}

// AddRole grants a role to a member
func (d *Discord) AddRole(ctx context.Context, userID, roleID string) error {
	return d.session.GuildMemberRoleAdd(d.guildID, userID, roleID, discordgo.WithContext(ctx))
}

// RemoveRole revokes a role from a member
func (d *Discord) RemoveRole(ctx context.Context, userID, roleID string) error {
	return d.session.GuildMemberRoleRemove(d.guildID, userID, roleID, discordgo.WithContext(ctx))
}
