// Package narrative folds a match's event log into a paginated, round by
// round play-by-play.
package narrative

import (
	"fmt"
	"strings"

	"github.com/ernie/crewvoice/internal/domain"
)

// Entry is one rendered block of the narrative
type Entry struct {
	Label string
	Text  string
}

// Narrative is the rendered play-by-play of a match
type Narrative struct {
	MatchID   int64
	Result    string
	Entries   []Entry
	Truncated bool // a manual game end stopped the pass early
	Dropped   int  // events after the manual game end
}

// Text renders the narrative as plain text
func (n Narrative) Text() string {
	var b strings.Builder
	for i, e := range n.Entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(e.Label)
		b.WriteString("\n")
		b.WriteString(e.Text)
	}
	if n.Truncated {
		fmt.Fprintf(&b, "\n\n(%d events after the manual end were not shown)", n.Dropped)
	}
	return b.String()
}

// Options configures a Builder
type Options struct {
	Glyphs         Glyphs
	MaxTasks       int
	MaxBlockLength int
}

// Builder renders narratives
type Builder struct {
	opts Options
}

// NewBuilder creates a builder, filling unset options with defaults
func NewBuilder(opts Options) *Builder {
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = 10
	}
	if opts.MaxBlockLength <= 0 {
		opts.MaxBlockLength = DefaultMaxBlockLength
	}
	if opts.Glyphs.Kill == "" {
		colors := opts.Glyphs.Colors
		opts.Glyphs = DefaultGlyphs()
		opts.Glyphs.Colors = colors
	}
	return &Builder{opts: opts}
}

// Build folds events into round entries in a single forward pass
func (b *Builder) Build(match *domain.Match, events []domain.MatchEvent) Narrative {
	p := &pass{
		opts:  b.opts,
		match: match,
		tasks: make(map[string]int),
		state: AccumulatingRound,
	}
	n := Narrative{MatchID: match.ID, Result: match.Result}

	for i, e := range events {
		r, ok := transitions[e.Kind]
		if !ok {
			continue
		}
		eff := r.effect(e)
		if r.render != nil {
			p.lines = append(p.lines, r.render(p, e)...)
		}
		switch eff {
		case openMeeting:
			p.meetings++
			p.lines = append(p.lines, fmt.Sprintf("__Meeting #%d__", p.meetings))
		case closeRound:
			p.flush(&n)
		case stop:
			n.Truncated = true
			n.Dropped = len(events) - i - 1
		}
		p.state = next(p.state, eff)
		if eff == stop {
			break
		}
	}

	p.lines = append(p.lines,
		fmt.Sprintf("**Match %d Ended**", match.ID),
		fmt.Sprintf("**%s**", match.Result),
	)
	p.flush(&n)
	return n
}

// pass is the mutable state of one Build call
type pass struct {
	opts     Options
	match    *domain.Match
	state    State
	tasks    map[string]int
	meetings int
	rounds   int
	lines    []string
}

func (p *pass) flush(n *Narrative) {
	p.rounds++
	label := fmt.Sprintf("Round %d Actions", p.rounds)
	for _, block := range Paginate(strings.Join(p.lines, "\n"), p.opts.MaxBlockLength) {
		n.Entries = append(n.Entries, Entry{Label: label, Text: block})
	}
	p.lines = p.lines[:0]
}

// badge renders a player by name; unknown names render as "?"
func (p *pass) badge(name string, ghost bool) string {
	pl := p.match.PlayerByName(name)
	if pl == nil {
		return "?"
	}
	return p.opts.Glyphs.Badge(pl.Color, pl.IsImpostor(), ghost)
}

func (p *pass) task(e domain.MatchEvent) []string {
	p.tasks[e.Subject]++
	if p.tasks[e.Subject] != p.opts.MaxTasks {
		return nil
	}
	status := "Dead"
	if pl := p.match.PlayerByName(e.Subject); pl != nil && pl.Alive {
		status = "Alive"
	}
	return []string{fmt.Sprintf("%s Tasks %s %s", p.badge(e.Subject, false), p.opts.Glyphs.Done, status)}
}

func (p *pass) vote(e domain.MatchEvent) []string {
	voter := p.badge(e.Subject, false)
	if e.Target == "" || p.match.PlayerByName(e.Target) == nil {
		return []string{voter + " Skipped"}
	}
	return []string{fmt.Sprintf("%s voted %s", voter, p.badge(e.Target, false))}
}

func (p *pass) death(e domain.MatchEvent) []string {
	return []string{fmt.Sprintf("%s %s %s", p.badge(e.Target, false), p.opts.Glyphs.Kill, p.badge(e.Subject, true))}
}

func (p *pass) bodyReport(e domain.MatchEvent) []string {
	return []string{fmt.Sprintf("%s %s %s", p.badge(e.Subject, false), p.opts.Glyphs.Report, p.badge(e.Target, true))}
}

func (p *pass) emergency(e domain.MatchEvent) []string {
	return []string{fmt.Sprintf("%s %s Meeting", p.badge(e.Subject, false), p.opts.Glyphs.Emergency)}
}

func (p *pass) exiled(e domain.MatchEvent) []string {
	return []string{p.badge(e.Subject, false) + " __was **Ejected**__", "Meeting End"}
}

func (p *pass) cancel(domain.MatchEvent) []string {
	return []string{fmt.Sprintf("__**Game %d Canceled**__", p.match.ID)}
}

func (p *pass) manualEnd(domain.MatchEvent) []string {
	return []string{"__**Manual End**__"}
}

func (p *pass) disconnect(e domain.MatchEvent) []string {
	pl := p.match.PlayerByName(e.Subject)
	if pl != nil && pl.Alive {
		return []string{p.badge(e.Subject, false) + " __**Disconnected Alive**__"}
	}
	return []string{p.badge(e.Subject, false) + " Disconnected Dead"}
}

func (p *pass) meetingEnd(e domain.MatchEvent) []string {
	switch e.Result {
	case domain.MeetingResultExiled:
		return nil
	case domain.MeetingResultTie:
		return []string{"__**Votes Tied**__", "Meeting End"}
	default:
		return []string{"__**Skipped**__", "Meeting End"}
	}
}
