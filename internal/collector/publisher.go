package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/matchlog"
	"github.com/ernie/crewvoice/internal/narrative"
	"github.com/ernie/crewvoice/internal/voice"
)

const (
	colorStart     = 0x2ECC71
	colorImpostors = 0xE74C3C
	colorCrewmates = 0x3498DB
	colorNeutral   = 0x95A5A6

	// Discord limits
	maxEmbedFields     = 25
	maxFieldValue      = 1024
	maxEmbedChars      = 5500
	eventsButtonPrefix = "events:"
)

// Seat is one player as shown in a match start announcement
type Seat struct {
	Name    string
	Color   int
	Mention string
	Rating  float64
	New     bool // no leaderboard entry before this match
}

// StartAnnouncement describes a match that just started
type StartAnnouncement struct {
	Session domain.Session
	Channel *voice.GameChannel
	Seats   []Seat
}

// EndAnnouncement describes a finished match
type EndAnnouncement struct {
	Session   domain.Session
	Channel   *voice.GameChannel // nil when no channel could be resolved
	Match     *domain.Match
	Narrative narrative.Narrative
	Mentions  map[string]string
}

// Publisher announces match lifecycle events to players
type Publisher interface {
	MatchStarted(ctx context.Context, a StartAnnouncement) error
	MatchEnded(ctx context.Context, a EndAnnouncement) error
}

// EmbedSender posts an embed message to a channel
type EmbedSender interface {
	SendComplex(ctx context.Context, channelID string, msg *discordgo.MessageSend) error
}

// DiscordPublisher posts match announcements as embeds
type DiscordPublisher struct {
	sender    EmbedSender
	glyphs    narrative.Glyphs
	matchLogs string
	matches   matchlog.Provider
	builder   *narrative.Builder
}

// NewDiscordPublisher creates a publisher. matchLogs, when set, receives a
// copy of every match end announcement.
func NewDiscordPublisher(sender EmbedSender, glyphs narrative.Glyphs, matchLogs string, matches matchlog.Provider, builder *narrative.Builder) *DiscordPublisher {
	return &DiscordPublisher{
		sender:    sender,
		glyphs:    glyphs,
		matchLogs: matchLogs,
		matches:   matches,
		builder:   builder,
	}
}

// MatchStarted posts the player list to the game's text channel
func (p *DiscordPublisher) MatchStarted(ctx context.Context, a StartAnnouncement) error {
	if a.Channel == nil || a.Channel.TextID == "" {
		return nil
	}
	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{startEmbed(a, p.glyphs)}}
	return p.sender.SendComplex(ctx, a.Channel.TextID, msg)
}

// MatchEnded posts the result to the game's text channel and the match logs
// channel
func (p *DiscordPublisher) MatchEnded(ctx context.Context, a EndAnnouncement) error {
	msg := endMessage(a, p.glyphs)

	var errs []error
	if a.Channel != nil && a.Channel.TextID != "" {
		errs = append(errs, p.sender.SendComplex(ctx, a.Channel.TextID, msg))
	}
	if p.matchLogs != "" {
		errs = append(errs, p.sender.SendComplex(ctx, p.matchLogs, msg))
	}
	return errors.Join(errs...)
}

// RegisterInteractions answers "Show Events" button presses with the match
// narrative, visible only to the member who pressed it
func (p *DiscordPublisher) RegisterInteractions(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionMessageComponent {
			return
		}
		id, ok := parseEventsButton(i.MessageComponentData().CustomID)
		if !ok {
			return
		}
		p.respondNarrative(s, i.Interaction, id)
	})
}

func (p *DiscordPublisher) respondNarrative(s *discordgo.Session, i *discordgo.Interaction, matchID int64) {
	ctx := context.Background()
	embeds, err := p.narrativeFor(ctx, matchID)
	if err != nil {
		log.Printf("Error rendering events for match %d: %v", matchID, err)
		embeds = []*discordgo.MessageEmbed{{
			Title:       fmt.Sprintf("Match %d", matchID),
			Description: "The events of this match are not available.",
			Color:       colorNeutral,
		}}
	}

	err = s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: embeds[:1],
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to events request for match %d: %v", matchID, err)
		return
	}
	for _, e := range embeds[1:] {
		_, err := s.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
			Embeds: []*discordgo.MessageEmbed{e},
			Flags:  discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			log.Printf("Error sending events follow-up for match %d: %v", matchID, err)
			return
		}
	}
}

func (p *DiscordPublisher) narrativeFor(ctx context.Context, matchID int64) ([]*discordgo.MessageEmbed, error) {
	m, err := p.matches.Match(ctx, matchID)
	if err != nil {
		return nil, err
	}
	events, err := p.matches.Events(ctx, m)
	if err != nil {
		return nil, err
	}
	return narrativeEmbeds(p.builder.Build(m, events)), nil
}

func eventsButtonID(matchID int64) string {
	return eventsButtonPrefix + strconv.FormatInt(matchID, 10)
}

func parseEventsButton(customID string) (int64, bool) {
	rest, ok := strings.CutPrefix(customID, eventsButtonPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func startEmbed(a StartAnnouncement, glyphs narrative.Glyphs) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(a.Seats))
	for _, s := range a.Seats {
		rating := "New Player"
		if !s.New {
			rating = fmt.Sprintf("%.0f MMR", s.Rating)
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s)", glyphs.Badge(s.Color, false, false), s.Mention, rating))
	}
	title := fmt.Sprintf("Match %d Started", a.Session.MatchID)
	if a.Channel != nil {
		title += " in " + a.Channel.Name
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: strings.Join(lines, "\n"),
		Color:       colorStart,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Game " + a.Session.GameCode},
	}
}

func endMessage(a EndAnnouncement, glyphs narrative.Glyphs) *discordgo.MessageSend {
	m := a.Match
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Match %d: %s", m.ID, m.Result),
		Color: resultColor(m.Result),
	}
	embed.Fields = append(embed.Fields, teamFields("Impostors", m, m.PlayersByTeam(domain.TeamImpostor), a.Mentions, glyphs)...)
	embed.Fields = append(embed.Fields, teamFields("Crewmates", m, m.PlayersByTeam(domain.TeamCrewmate), a.Mentions, glyphs)...)
	if a.Session.GameCode != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Game " + a.Session.GameCode}
	}

	msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	if len(a.Narrative.Entries) > 0 {
		msg.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Show Events",
					Style:    discordgo.SecondaryButton,
					CustomID: eventsButtonID(m.ID),
				},
			}},
		}
	}
	return msg
}

func resultColor(result string) int {
	switch result {
	case domain.ResultImpostorsWin:
		return colorImpostors
	case domain.ResultCrewmatesWin, domain.ResultHumansByVote:
		return colorCrewmates
	}
	return colorNeutral
}

func teamFields(name string, m *domain.Match, players []domain.Player, mentions map[string]string, glyphs narrative.Glyphs) []*discordgo.MessageEmbedField {
	if len(players) == 0 {
		return nil
	}
	lines := make([]string, 0, len(players))
	for _, p := range players {
		who := mentions[p.Name]
		if who == "" {
			who = p.Name
		}
		line := fmt.Sprintf("%s %s", glyphs.Badge(p.Color, p.IsImpostor(), !p.Alive), who)
		if m.Resolved() && !m.Canceled() {
			line += fmt.Sprintf(" %.0f (%+.1f)", p.MMR, p.MMRDelta)
		}
		if !p.IsImpostor() {
			line += fmt.Sprintf(" %d/10 tasks", p.Tasks)
		}
		lines = append(lines, line)
	}

	var fields []*discordgo.MessageEmbedField
	for _, page := range narrative.Paginate(strings.Join(lines, "\n"), maxFieldValue) {
		fields = append(fields, &discordgo.MessageEmbedField{Name: name, Value: page})
	}
	return fields
}

// narrativeEmbeds lays the narrative entries out as embed fields, starting a
// new embed when the field count or size limit would be exceeded
func narrativeEmbeds(n narrative.Narrative) []*discordgo.MessageEmbed {
	title := fmt.Sprintf("Match %d Events", n.MatchID)
	newEmbed := func() *discordgo.MessageEmbed {
		return &discordgo.MessageEmbed{Title: title, Color: resultColor(n.Result)}
	}

	embeds := []*discordgo.MessageEmbed{newEmbed()}
	size := len(title)
	for _, e := range n.Entries {
		cur := embeds[len(embeds)-1]
		fieldSize := len(e.Label) + len(e.Text)
		if len(cur.Fields) >= maxEmbedFields || (len(cur.Fields) > 0 && size+fieldSize > maxEmbedChars) {
			cur = newEmbed()
			embeds = append(embeds, cur)
			size = len(title)
		}
		cur.Fields = append(cur.Fields, &discordgo.MessageEmbedField{Name: e.Label, Value: e.Text})
		size += fieldSize
	}

	if n.Truncated {
		embeds[len(embeds)-1].Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Manual end: %d later events not shown", n.Dropped),
		}
	}
	return embeds
}
