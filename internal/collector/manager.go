// Package collector receives game server telemetry and drives the bot's
// reaction to each match: channel resolution, automute, identity linking,
// leaderboard recording and announcements.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ernie/crewvoice/internal/automute"
	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/leaderboard"
	"github.com/ernie/crewvoice/internal/matchlog"
	"github.com/ernie/crewvoice/internal/narrative"
	"github.com/ernie/crewvoice/internal/ranks"
	"github.com/ernie/crewvoice/internal/voice"
)

// Deps are the collaborators a Manager drives
type Deps struct {
	Sessions  *Sessions
	Channels  *voice.Channels
	Resolver  *voice.Resolver
	Automute  *automute.Reconciler
	Linker    *Linker
	Store     leaderboard.Store
	Matches   matchlog.Provider
	Builder   *narrative.Builder
	Publisher Publisher          // may be nil
	Ranks     *ranks.Synchronizer // may be nil

	PollAttempts int
	PollInterval time.Duration
}

// Manager routes game events to the components that react to them
type Manager struct {
	deps   Deps
	events chan domain.Event
	now    func() time.Time
}

// NewManager creates a manager
func NewManager(deps Deps) *Manager {
	if deps.Sessions == nil {
		deps.Sessions = NewSessions()
	}
	if deps.PollAttempts <= 0 {
		deps.PollAttempts = 10
	}
	if deps.PollInterval <= 0 {
		deps.PollInterval = time.Second
	}
	return &Manager{
		deps:   deps,
		events: make(chan domain.Event, 100),
		now:    time.Now,
	}
}

// Events returns the event channel for WebSocket broadcasting
func (m *Manager) Events() <-chan domain.Event {
	return m.events
}

// Sessions returns the in-progress games
func (m *Manager) Sessions() []domain.Session {
	return m.deps.Sessions.Active()
}

// ChannelStatus returns the live view of every configured game channel
func (m *Manager) ChannelStatus() []domain.ChannelStatus {
	var out []domain.ChannelStatus
	for _, c := range m.deps.Channels.All() {
		out = append(out, c.Status())
	}
	return out
}

// AutomuteEnabled reports whether automute is switched on
func (m *Manager) AutomuteEnabled() bool {
	return m.deps.Automute.Enabled()
}

// SetAutomute switches automute on or off
func (m *Manager) SetAutomute(on bool) {
	m.deps.Automute.SetEnabled(on)
	log.Printf("Automute switched %s", onOff(on))
	m.emitEvent(domain.Event{Type: domain.EventAutomuteToggle, Timestamp: m.now().UTC(), Data: on})
}

// Narrative renders the play-by-play of a recorded match
func (m *Manager) Narrative(ctx context.Context, matchID int64) (narrative.Narrative, error) {
	match, err := m.deps.Matches.Match(ctx, matchID)
	if err != nil {
		return narrative.Narrative{}, err
	}
	events, err := m.deps.Matches.Events(ctx, match)
	if err != nil {
		return narrative.Narrative{}, err
	}
	return m.deps.Builder.Build(match, events), nil
}

// Prepare seeds every channel's live snapshot from the platform, clears
// leaderboard links to members that left the guild and links unlinked
// players to guild members with matching names
func (m *Manager) Prepare(ctx context.Context, provider voice.Provider) {
	if err := voice.SeedChannels(ctx, provider, m.deps.Channels); err != nil {
		log.Printf("Warning: failed to seed voice channels: %v", err)
	}
	for _, c := range m.deps.Channels.All() {
		log.Printf("Channel %s: %d members connected", c.Name, len(c.Live()))
	}
	if n, err := PruneLinks(ctx, m.deps.Store, provider); err != nil {
		log.Printf("Warning: failed to prune leaderboard links: %v", err)
	} else if n > 0 {
		log.Printf("Pruned %d stale leaderboard links", n)
	}
	if n, err := AutoLink(ctx, m.deps.Store, provider); err != nil {
		log.Printf("Warning: failed to link leaderboard players: %v", err)
	} else if n > 0 {
		log.Printf("Linked %d leaderboard players to guild members", n)
	}
}

// HandleEvent implements Handler
func (m *Manager) HandleEvent(ctx context.Context, e *domain.GameEvent) error {
	switch e.EventName {
	case domain.GameEventStart:
		return m.handleGameStart(ctx, e)
	case domain.GameEventMeetingStart:
		return m.handleMeeting(ctx, e, automute.MeetingStart, domain.EventMeetingStart)
	case domain.GameEventMeetingEnd:
		return m.handleMeeting(ctx, e, automute.MeetingEnd, domain.EventMeetingEnd)
	case domain.GameEventEnd:
		return m.handleGameEnd(ctx, e)
	}
	return fmt.Errorf("%w: unsupported event %q", ErrMalformedEvent, e.EventName)
}

func (m *Manager) handleGameStart(ctx context.Context, e *domain.GameEvent) error {
	ch := m.deps.Resolver.Resolve(e.Players)
	chName := ""
	if ch != nil {
		chName = ch.Name
	}

	sess := m.deps.Sessions.Register(e.GameCode, e.MatchID, e.Players, e.PlayerColors, chName)
	log.Printf("Match %d started in game %s with %d players (session %s)", e.MatchID, e.GameCode, len(e.Players), sess.ID)
	m.emitEvent(domain.Event{
		Type:      domain.EventMatchStart,
		GameCode:  e.GameCode,
		MatchID:   e.MatchID,
		Channel:   chName,
		Timestamp: m.now().UTC(),
		Data:      domain.MatchStartEvent{Players: e.Players, SessionID: sess.ID},
	})

	if ch == nil {
		return fmt.Errorf("match %d: %w", e.MatchID, ErrUnknownChannel)
	}

	snapshot := ch.FreezeMatchStart()
	if m.deps.Automute.Enabled() {
		report, err := m.deps.Automute.Reconcile(ctx, ch, snapshot, nil, nil, automute.MatchStart)
		m.emitAutomute(sess.GameCode, sess.MatchID, ch.Name, report)
		if err != nil {
			log.Printf("Match start automute for match %d failed: %v", e.MatchID, err)
		}
	}

	linked := m.deps.Linker.Link(ctx, e.Players, snapshot)

	if m.deps.Publisher != nil {
		a := StartAnnouncement{Session: sess, Channel: ch, Seats: m.seats(ctx, e, linked)}
		if err := m.deps.Publisher.MatchStarted(ctx, a); err != nil {
			log.Printf("Error announcing match %d: %v", e.MatchID, err)
		}
	}
	return nil
}

// seats builds the start announcement rows in roster order
func (m *Manager) seats(ctx context.Context, e *domain.GameEvent, linked LinkReport) []Seat {
	byName := make(map[string]Link, len(linked.Links))
	for _, l := range linked.Links {
		byName[l.Name] = l
	}

	seats := make([]Seat, 0, len(e.Players))
	for i, name := range e.Players {
		s := Seat{Name: name, Color: e.PlayerColors[i], Mention: name, New: true}
		l, justLinked := byName[name]
		if entry, err := m.deps.Store.PlayerByName(ctx, name); err == nil {
			s.Rating = entry.MMR
			s.New = justLinked && l.Created
			if entry.Linked() {
				s.Mention = discordMention(entry.DiscordID)
			}
		}
		if justLinked && s.Mention == name {
			s.Mention = voice.Mention(l.Participant)
		}
		seats = append(seats, s)
	}
	return seats
}

func (m *Manager) handleMeeting(ctx context.Context, e *domain.GameEvent, trigger automute.Trigger, eventType string) error {
	ch := m.channelFor(e.GameCode, e.Players)
	sess, _ := m.deps.Sessions.Find(e.GameCode)
	matchID := e.MatchID
	if matchID == 0 && sess != nil {
		matchID = sess.MatchID
	}

	chName := ""
	if ch != nil {
		chName = ch.Name
	}
	m.emitEvent(domain.Event{
		Type:      eventType,
		GameCode:  e.GameCode,
		MatchID:   matchID,
		Channel:   chName,
		Timestamp: m.now().UTC(),
		Data:      e.MeetingResult(),
	})

	if !m.deps.Automute.Enabled() {
		return nil
	}
	if trigger == automute.MeetingEnd && e.AllImpostorsDead() {
		log.Printf("Skipping meeting end automute in game %s: every impostor is dead", e.GameCode)
		return nil
	}
	if ch == nil {
		return fmt.Errorf("%s in game %s: %w", e.EventName, e.GameCode, ErrUnknownChannel)
	}

	report, err := m.deps.Automute.Reconcile(ctx, ch, ch.Roster(), e.DeadPlayers, e.AlivePlayers(), trigger)
	m.emitAutomute(e.GameCode, matchID, ch.Name, report)
	return err
}

// channelFor resolves the channel a roster is playing in, falling back to the
// channel resolved when the game started
func (m *Manager) channelFor(code string, roster []string) *voice.GameChannel {
	if ch := m.deps.Resolver.Resolve(roster); ch != nil {
		return ch
	}
	if sess, ok := m.deps.Sessions.Find(code); ok && sess.Channel != "" {
		return m.deps.Channels.ByName(sess.Channel)
	}
	return nil
}

func (m *Manager) handleGameEnd(ctx context.Context, e *domain.GameEvent) error {
	sess, found := m.deps.Sessions.Take(e.GameCode)
	if !found {
		log.Printf("Game %s ended without a tracked session", e.GameCode)
		sess = domain.Session{GameCode: e.GameCode, MatchID: e.MatchID, Roster: e.Players, Colors: e.PlayerColors}
	}
	// the registered match wins over whatever the end event reports
	matchID := sess.MatchID
	if matchID == 0 {
		matchID = e.MatchID
	} else if e.MatchID != 0 && e.MatchID != matchID {
		log.Printf("Game %s ended reporting match %d, using registered match %d", e.GameCode, e.MatchID, matchID)
	}
	if matchID == 0 {
		return fmt.Errorf("%w: GameEnd for %s without MatchID", ErrMalformedEvent, e.GameCode)
	}

	var ch *voice.GameChannel
	if sess.Channel != "" {
		ch = m.deps.Channels.ByName(sess.Channel)
	}
	if ch == nil && len(e.Players) > 0 {
		ch = m.deps.Resolver.Resolve(e.Players)
	}
	if ch == nil {
		log.Printf("Match %d ended with no resolved channel", matchID)
	}

	if ch != nil && m.deps.Automute.Enabled() {
		report, err := m.deps.Automute.Reconcile(ctx, ch, ch.Live(), nil, nil, automute.MatchEnd)
		m.emitAutomute(e.GameCode, matchID, ch.Name, report)
		if err != nil {
			log.Printf("Match end automute for match %d failed: %v", matchID, err)
		}
	}

	match, resolved := m.awaitMatch(ctx, matchID, sess)
	names, colors := e.Players, e.PlayerColors
	if len(names) == 0 {
		names, colors = sess.Roster, sess.Colors
	}
	match.ApplyColors(names, colors)

	if resolved {
		m.record(ctx, match)
	}

	events, err := m.deps.Matches.Events(ctx, match)
	if err != nil {
		log.Printf("Warning: no event log for match %d: %v", matchID, err)
	}
	story := m.deps.Builder.Build(match, events)
	if story.Truncated {
		log.Printf("Warning: match %d was ended manually, %d events not narrated", matchID, story.Dropped)
	}

	var snapshot []voice.Participant
	if ch != nil {
		if start, ok := ch.MatchStart(); ok {
			snapshot = start
		} else {
			snapshot = ch.Live()
		}
	}

	if m.deps.Publisher != nil {
		a := EndAnnouncement{
			Session:   sess,
			Channel:   ch,
			Match:     match,
			Narrative: story,
			Mentions:  m.deps.Linker.Mentions(ctx, match, snapshot),
		}
		if err := m.deps.Publisher.MatchEnded(ctx, a); err != nil {
			log.Printf("Error announcing end of match %d: %v", matchID, err)
		}
	}

	if resolved && !match.Canceled() {
		m.syncRanks(ctx, match)
	}

	chName := ""
	if ch != nil {
		ch.ClearMatchStart()
		chName = ch.Name
	}

	m.emitEvent(domain.Event{
		Type:      domain.EventNarrative,
		GameCode:  e.GameCode,
		MatchID:   matchID,
		Channel:   chName,
		Timestamp: m.now().UTC(),
		Data:      narrativeEvent(story),
	})
	m.emitEvent(domain.Event{
		Type:      domain.EventMatchEnd,
		GameCode:  e.GameCode,
		MatchID:   matchID,
		Channel:   chName,
		Timestamp: m.now().UTC(),
		Data:      match,
	})
	log.Printf("Match %d ended: %s", matchID, match.Result)
	return nil
}

// awaitMatch polls for the match record. When it never resolves the last
// record read is used, or a bare record built from the session.
func (m *Manager) awaitMatch(ctx context.Context, matchID int64, sess domain.Session) (*domain.Match, bool) {
	match, resolved, err := matchlog.Await(ctx, m.deps.Matches, matchID, m.deps.PollAttempts, m.deps.PollInterval)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Warning: match %d record unavailable: %v", matchID, err)
	}
	if match == nil {
		match = &domain.Match{ID: matchID, Result: domain.ResultUnresolved}
		for _, name := range sess.Roster {
			match.Players = append(match.Players, domain.Player{Name: name})
		}
	}
	if !resolved {
		log.Printf("Warning: match %d result not ready after %d attempts, continuing as %s", matchID, m.deps.PollAttempts, domain.ResultUnresolved)
		match.Result = domain.ResultUnresolved
	}
	return match, resolved
}

func (m *Manager) record(ctx context.Context, match *domain.Match) {
	recorded, err := m.deps.Store.RecordMatch(ctx, match)
	if err != nil {
		log.Printf("Error recording match %d: %v", match.ID, err)
		return
	}
	if !recorded {
		log.Printf("Match %d was already recorded", match.ID)
		return
	}
	if err := m.deps.Store.Persist(ctx); err != nil {
		log.Printf("Error persisting match %d: %v", match.ID, err)
	}
}

// syncRanks updates the tier role of every linked match player
func (m *Manager) syncRanks(ctx context.Context, match *domain.Match) {
	if m.deps.Ranks == nil {
		return
	}
	seen := make(map[string]bool)
	var members []ranks.Member
	for _, p := range match.Players {
		entry, err := m.deps.Store.PlayerByName(ctx, p.Name)
		if err != nil || !entry.Linked() || seen[entry.DiscordID] {
			continue
		}
		seen[entry.DiscordID] = true
		members = append(members, ranks.Member{UserID: entry.DiscordID, Rating: entry.MMR})
	}

	for _, c := range m.deps.Ranks.SyncAll(ctx, members) {
		if c.Err != nil {
			log.Printf("Error syncing tier role of %s: %v", c.UserID, c.Err)
		}
	}
}

func (m *Manager) emitAutomute(code string, matchID int64, channel string, r automute.Report) {
	data := domain.AutomuteEvent{Trigger: string(r.Trigger), Applied: r.Applied()}
	for _, o := range r.Failed() {
		data.Failed = append(data.Failed, o.Participant.DisplayName())
	}
	for _, p := range r.Unmatched {
		data.Unmatched = append(data.Unmatched, p.DisplayName())
	}
	m.emitEvent(domain.Event{
		Type:      domain.EventAutomute,
		GameCode:  code,
		MatchID:   matchID,
		Channel:   channel,
		Timestamp: m.now().UTC(),
		Data:      data,
	})
}

func narrativeEvent(n narrative.Narrative) domain.NarrativeEvent {
	out := domain.NarrativeEvent{Result: n.Result, Truncated: n.Truncated}
	for _, e := range n.Entries {
		out.Entries = append(out.Entries, domain.NarrativeEntry{Label: e.Label, Text: e.Text})
	}
	return out
}

// emitEvent sends an event to the broadcast channel (non-blocking)
func (m *Manager) emitEvent(event domain.Event) {
	select {
	case m.events <- event:
	default:
		// Channel full, drop event
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
