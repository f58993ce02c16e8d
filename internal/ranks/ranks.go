// Package ranks maps ratings to tier roles and keeps members' tier roles in
// sync with their rating.
package ranks

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ernie/crewvoice/internal/config"
)

// Ladder is an ordered list of tiers with inclusive upper bounds
type Ladder struct {
	prefix string
	tiers  []config.TierConfig
}

// NewLadder builds a ladder; tiers must be ordered by ascending Max
func NewLadder(prefix string, tiers []config.TierConfig) *Ladder {
	return &Ladder{prefix: prefix, tiers: tiers}
}

// TierFor returns the tier name for a rating
func (l *Ladder) TierFor(rating float64) string {
	for i, t := range l.tiers {
		if i == len(l.tiers)-1 || rating <= t.Max {
			return t.Name
		}
	}
	return ""
}

// RoleName returns the role name carrying a tier
func (l *Ladder) RoleName(tier string) string {
	return l.prefix + tier
}

// IsTierRole reports whether a role name belongs to the ladder
func (l *Ladder) IsTierRole(name string) bool {
	return strings.HasPrefix(name, l.prefix)
}

// RoleEditor reads and edits guild roles
type RoleEditor interface {
	// GuildRoles maps role id to role name
	GuildRoles(ctx context.Context) (map[string]string, error)
	// MemberRoles returns the role ids of a member
	MemberRoles(ctx context.Context, userID string) ([]string, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
}

// Member is a guild member with the rating its role should reflect
type Member struct {
	UserID string
	Rating float64
}

// Change is the outcome of syncing one member
type Change struct {
	UserID  string
	Tier    string
	Added   string   // role id, empty when the member already had it
	Removed []string // role ids
	Err     error
}

// Synchronizer reconciles members' tier roles
type Synchronizer struct {
	ladder *Ladder
	roles  RoleEditor
}

// NewSynchronizer creates a synchronizer
func NewSynchronizer(ladder *Ladder, roles RoleEditor) *Synchronizer {
	return &Synchronizer{ladder: ladder, roles: roles}
}

// SyncAll syncs every member. Failures are captured per member.
func (s *Synchronizer) SyncAll(ctx context.Context, members []Member) []Change {
	guildRoles, err := s.roles.GuildRoles(ctx)
	if err != nil {
		err = fmt.Errorf("listing guild roles: %w", err)
		changes := make([]Change, len(members))
		for i, m := range members {
			changes[i] = Change{UserID: m.UserID, Err: err}
		}
		return changes
	}

	changes := make([]Change, 0, len(members))
	for _, m := range members {
		c := s.sync(ctx, guildRoles, m)
		if c.Err != nil {
			log.Printf("Rank sync for %s failed: %v", m.UserID, c.Err)
		}
		changes = append(changes, c)
	}
	return changes
}

// Sync syncs a single member
func (s *Synchronizer) Sync(ctx context.Context, m Member) Change {
	return s.SyncAll(ctx, []Member{m})[0]
}

func (s *Synchronizer) sync(ctx context.Context, guildRoles map[string]string, m Member) Change {
	tier := s.ladder.TierFor(m.Rating)
	c := Change{UserID: m.UserID, Tier: tier}

	want := ""
	wantName := s.ladder.RoleName(tier)
	for id, name := range guildRoles {
		if name == wantName {
			want = id
			break
		}
	}
	if want == "" {
		c.Err = fmt.Errorf("role %q does not exist", wantName)
		return c
	}

	current, err := s.roles.MemberRoles(ctx, m.UserID)
	if err != nil {
		c.Err = fmt.Errorf("reading roles: %w", err)
		return c
	}
	var stale []string
	for _, id := range current {
		if id == want {
			return c
		}
		if s.ladder.IsTierRole(guildRoles[id]) {
			stale = append(stale, id)
		}
	}

	for _, id := range stale {
		if err := s.roles.RemoveRole(ctx, m.UserID, id); err != nil {
			c.Err = fmt.Errorf("removing role %s: %w", guildRoles[id], err)
			return c
		}
		c.Removed = append(c.Removed, id)
	}
	if err := s.roles.AddRole(ctx, m.UserID, want); err != nil {
		c.Err = fmt.Errorf("adding role %s: %w", wantName, err)
		return c
	}
	c.Added = want
	return c
}
