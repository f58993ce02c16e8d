package collector

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/fuzzy"
	"github.com/ernie/crewvoice/internal/leaderboard"
	"github.com/ernie/crewvoice/internal/voice"
)

// mentionThreshold is the minimum edit similarity for falling back to a
// voice participant when a match player has no stored link
const mentionThreshold = 70

// autoLinkThreshold is the minimum token-sort ratio for linking a player to a
// guild member at startup
const autoLinkThreshold = 80

// Link is one participant assigned to an in-game name
type Link struct {
	Participant voice.Participant
	Name        string
	Ratio       float64
	Created     bool // leaderboard entry was created
	Linked      bool // external identity was stored
}

// LinkReport summarizes one linking pass
type LinkReport struct {
	Links     []Link
	Known     []voice.Participant // already linked before the pass
	Unmatched []voice.Participant
}

// Linker assigns voice participants to in-game names and stores the links
type Linker struct {
	store leaderboard.Store
	ratio float64
}

// NewLinker creates a linker accepting cropped ratios of at least ratio
func NewLinker(store leaderboard.Store, ratio int) *Linker {
	return &Linker{store: store, ratio: float64(ratio)}
}

// Link greedily assigns each snapshot participant the best unclaimed roster
// name. Participants the store already knows keep their own name and are not
// linked again. Every store mutation is persisted immediately.
func (l *Linker) Link(ctx context.Context, roster []string, snapshot []voice.Participant) LinkReport {
	var report LinkReport
	claimed := make([]bool, len(roster))

	var unknown []voice.Participant
	for _, p := range snapshot {
		e, err := l.store.PlayerByDiscord(ctx, p.ID())
		switch {
		case err == nil:
			report.Known = append(report.Known, p)
			claimName(roster, claimed, e.Name)
		case errors.Is(err, leaderboard.ErrNotFound):
			unknown = append(unknown, p)
		default:
			log.Printf("Error looking up link for %s: %v", p.DisplayName(), err)
		}
	}

	for _, p := range unknown {
		best, bestRatio := -1, 0.0
		for i, name := range roster {
			if claimed[i] {
				continue
			}
			r := fuzzy.CroppedRatio(p.DisplayName(), name)
			if r >= l.ratio && r > bestRatio {
				best, bestRatio = i, r
			}
		}
		if best < 0 {
			report.Unmatched = append(report.Unmatched, p)
			continue
		}
		claimed[best] = true

		link, err := l.record(ctx, p, roster[best])
		link.Ratio = bestRatio
		if err != nil {
			log.Printf("Error linking %s to %s: %v", p.DisplayName(), roster[best], err)
			continue
		}
		report.Links = append(report.Links, link)
	}

	for _, p := range report.Unmatched {
		log.Printf("Could not link voice participant %s to any player", p.DisplayName())
	}
	return report
}

// claimName marks the roster entry spelling name as taken
func claimName(roster []string, claimed []bool, name string) {
	for i, r := range roster {
		if !claimed[i] && fuzzy.Normalize(r) == fuzzy.Normalize(name) {
			claimed[i] = true
			return
		}
	}
}

// record creates the entry for name if needed and links p to it when the
// entry has no link yet
func (l *Linker) record(ctx context.Context, p voice.Participant, name string) (Link, error) {
	link := Link{Participant: p, Name: name}

	entry, created, err := leaderboard.EnsurePlayer(ctx, l.store, name)
	if err != nil {
		return link, err
	}
	if created {
		link.Created = true
		if err := l.store.Persist(ctx); err != nil {
			return link, fmt.Errorf("persisting new player: %w", err)
		}
	}
	if entry.Linked() {
		return link, nil
	}

	if err := l.store.LinkDiscord(ctx, entry.Name, p.ID()); err != nil {
		return link, err
	}
	link.Linked = true
	if err := l.store.Persist(ctx); err != nil {
		return link, fmt.Errorf("persisting link: %w", err)
	}
	log.Printf("Linked %s to player %s", p.DisplayName(), entry.Name)
	return link, nil
}

// Mentions returns how each match player should be addressed in an
// announcement. Stored links win; otherwise the closest snapshot participant
// by edit similarity is used; otherwise the plain name.
func (l *Linker) Mentions(ctx context.Context, m *domain.Match, snapshot []voice.Participant) map[string]string {
	out := make(map[string]string, len(m.Players))

	names := make([]string, len(snapshot))
	for i, p := range snapshot {
		names[i] = p.DisplayName()
	}
	taken := make([]bool, len(snapshot))

	for _, p := range m.Players {
		id := p.DiscordID
		if id == "" || id == "0" {
			if e, err := l.store.PlayerByName(ctx, p.Name); err == nil && e.Linked() {
				id = e.DiscordID
			}
		}
		if id != "" && id != "0" {
			out[p.Name] = discordMention(id)
			continue
		}

		if i := fuzzy.BestEdit(p.Name, names, mentionThreshold); i >= 0 && !taken[i] {
			taken[i] = true
			out[p.Name] = voice.Mention(snapshot[i])
			continue
		}
		out[p.Name] = p.Name
	}
	return out
}

func discordMention(id string) string {
	return "<@" + id + ">"
}

// PruneLinks clears stored links to members that have left the guild
func PruneLinks(ctx context.Context, store leaderboard.Store, provider voice.Provider) (int, error) {
	entries, err := store.Linked(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing linked players: %w", err)
	}

	pruned := 0
	for _, e := range entries {
		if _, err := provider.Member(ctx, e.DiscordID); err == nil {
			continue
		} else if !errors.Is(err, voice.ErrNotInGuild) {
			log.Printf("Warning: could not check member %s for %s: %v", e.DiscordID, e.Name, err)
			continue
		}
		if err := store.UnlinkDiscord(ctx, e.Name); err != nil {
			log.Printf("Error unlinking %s: %v", e.Name, err)
			continue
		}
		log.Printf("Unlinked %s: member %s left the guild", e.Name, e.DiscordID)
		pruned++
	}

	if pruned > 0 {
		if err := store.Persist(ctx); err != nil {
			return pruned, fmt.Errorf("persisting pruned links: %w", err)
		}
	}
	return pruned, nil
}

// AutoLink links unlinked leaderboard players to guild members. A member whose
// display name equals a player's name is taken first; the remaining players
// get the closest unclaimed member by token-sort ratio on compacted names.
// Members already linked to a player are left alone.
func AutoLink(ctx context.Context, store leaderboard.Store, provider voice.Provider) (int, error) {
	entries, err := store.Top(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("listing players: %w", err)
	}
	members, err := provider.Members(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing guild members: %w", err)
	}

	taken := make(map[string]bool)
	var unlinked []string
	for _, e := range entries {
		if e.Linked() {
			taken[e.DiscordID] = true
		} else {
			unlinked = append(unlinked, e.Name)
		}
	}

	linked := 0
	link := func(name string, m voice.Participant) bool {
		if err := store.LinkDiscord(ctx, name, m.ID()); err != nil {
			log.Printf("Error linking %s to %s: %v", name, m.DisplayName(), err)
			return false
		}
		taken[m.ID()] = true
		linked++
		log.Printf("Linked player %s to guild member %s", name, m.DisplayName())
		return true
	}

	var rest []string
	for _, name := range unlinked {
		if m := exactMember(members, taken, name); m != nil && link(name, m) {
			continue
		}
		rest = append(rest, name)
	}

	for _, name := range rest {
		var best voice.Participant
		bestRatio := 0.0
		for _, m := range members {
			if taken[m.ID()] {
				continue
			}
			r := fuzzy.TokenSortRatio(fuzzy.Compact(name), fuzzy.Compact(m.DisplayName()))
			if r >= autoLinkThreshold && r > bestRatio {
				best, bestRatio = m, r
			}
		}
		if best != nil {
			link(name, best)
		}
	}

	if linked > 0 {
		if err := store.Persist(ctx); err != nil {
			return linked, fmt.Errorf("persisting links: %w", err)
		}
	}
	return linked, nil
}

func exactMember(members []voice.Participant, taken map[string]bool, name string) voice.Participant {
	for _, m := range members {
		if !taken[m.ID()] && m.DisplayName() == name {
			return m
		}
	}
	return nil
}
