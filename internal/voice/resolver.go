package voice

import "github.com/ernie/crewvoice/internal/fuzzy"

// confidentMatches is the match count at which a channel is accepted without
// scanning the rest
const confidentMatches = 4

// Resolver picks the game channel whose live members best match a roster
type Resolver struct {
	channels *Channels
	ratio    float64
}

// NewResolver creates a resolver using the given similarity threshold (0..100)
func NewResolver(channels *Channels, ratio int) *Resolver {
	return &Resolver{channels: channels, ratio: float64(ratio)}
}

// Resolve returns the channel with the most roster names matching a live
// member, or nil if no channel matches any name. Channels are scanned in
// declaration order and ties keep the earlier channel.
func (r *Resolver) Resolve(roster []string) *GameChannel {
	names := uniqueNormalized(roster)

	var best *GameChannel
	bestCount := 0
	for _, c := range r.channels.All() {
		count := r.countMatches(names, c.Live())
		if count > bestCount {
			best, bestCount = c, count
		}
		if count >= confidentMatches {
			return c
		}
	}
	return best
}

func (r *Resolver) countMatches(names []string, live []Participant) int {
	count := 0
	for _, name := range names {
		for _, p := range live {
			if fuzzy.CroppedRatio(name, p.DisplayName()) >= r.ratio {
				count++
				break
			}
		}
	}
	return count
}

func uniqueNormalized(roster []string) []string {
	seen := make(map[string]bool, len(roster))
	out := make([]string, 0, len(roster))
	for _, name := range roster {
		n := fuzzy.Normalize(name)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
