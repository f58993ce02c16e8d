package automute

import (
	"slices"

	"github.com/ernie/crewvoice/internal/fuzzy"
	"github.com/ernie/crewvoice/internal/voice"
)

// Cutoffs are the similarity thresholds of the matching passes, strictest first
var Cutoffs = []float64{1.0, 0.9, 0.75}

// Side tells which name set a participant was matched against
type Side int

const (
	SideAlive Side = iota
	SideDead
)

func (s Side) String() string {
	if s == SideDead {
		return "dead"
	}
	return "alive"
}

// Assignment binds a participant to one in-game name
type Assignment struct {
	Participant voice.Participant
	Name        string // in-game name as reported
	Side        Side
	Pass        int // index into Cutoffs
}

// nameSet is a consumable set of compacted names
type nameSet struct {
	keys     []string
	original map[string]string
}

func newNameSet(names []string) *nameSet {
	s := &nameSet{original: make(map[string]string, len(names))}
	for _, n := range names {
		k := fuzzy.Compact(n)
		if k == "" {
			continue
		}
		if _, dup := s.original[k]; dup {
			continue
		}
		s.original[k] = n
		s.keys = append(s.keys, k)
	}
	return s
}

// take consumes the single candidate at or above cutoff. Zero or several
// candidates leave the set untouched.
func (s *nameSet) take(word string, cutoff float64) (string, bool) {
	hits := fuzzy.CloseMatches(word, s.keys, cutoff)
	if len(hits) != 1 {
		return "", false
	}
	k := hits[0]
	s.keys = slices.DeleteFunc(s.keys, func(x string) bool { return x == k })
	return s.original[k], true
}

// Plan matches each participant to at most one dead or alive name. Each pass
// tries the dead set before the alive set; a participant matched against the
// dead set is not tested against the alive set. Participants still unmatched
// after the last pass are returned in roster order.
func Plan(roster []voice.Participant, dead, alive []string) ([]Assignment, []voice.Participant) {
	deadSet, aliveSet := newNameSet(dead), newNameSet(alive)
	remaining := slices.Clone(roster)
	var assigned []Assignment

	for pass, cutoff := range Cutoffs {
		var next []voice.Participant
		for _, p := range remaining {
			word := fuzzy.Compact(p.DisplayName())
			if name, ok := deadSet.take(word, cutoff); ok {
				assigned = append(assigned, Assignment{Participant: p, Name: name, Side: SideDead, Pass: pass})
				continue
			}
			if name, ok := aliveSet.take(word, cutoff); ok {
				assigned = append(assigned, Assignment{Participant: p, Name: name, Side: SideAlive, Pass: pass})
				continue
			}
			next = append(next, p)
		}
		remaining = next
	}
	return assigned, remaining
}
