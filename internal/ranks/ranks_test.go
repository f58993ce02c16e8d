package ranks

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/ernie/crewvoice/internal/config"
)

type fakeRoles struct {
	guild   map[string]string
	members map[string][]string
	failAdd bool
}

func (f *fakeRoles) GuildRoles(context.Context) (map[string]string, error) {
	return f.guild, nil
}

func (f *fakeRoles) MemberRoles(_ context.Context, userID string) ([]string, error) {
	return f.members[userID], nil
}

func (f *fakeRoles) AddRole(_ context.Context, userID, roleID string) error {
	if f.failAdd {
		return errors.New("missing permissions")
	}
	f.members[userID] = append(f.members[userID], roleID)
	return nil
}

func (f *fakeRoles) RemoveRole(_ context.Context, userID, roleID string) error {
	var kept []string
	for _, id := range f.members[userID] {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	f.members[userID] = kept
	return nil
}

func defaultLadder() *Ladder {
	return NewLadder("Ranked | ", config.DefaultTiers)
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		rating float64
		want   string
	}{
		{0, "Iron"},
		{850, "Iron"},
		{851, "Bronze"},
		{950, "Bronze"},
		{1000, "Silver"},
		{1051, "Gold"},
		{1250, "Platinum"},
		{1300, "Diamond"},
		{1450, "Master"},
		{1451, "Warrior"},
		{3000, "Warrior"},
	}
	l := defaultLadder()
	for _, tt := range tests {
		if got := l.TierFor(tt.rating); got != tt.want {
			t.Errorf("TierFor(%v) = %s, want %s", tt.rating, got, tt.want)
		}
	}
}

func newFake() *fakeRoles {
	return &fakeRoles{
		guild: map[string]string{
			"r-iron":   "Ranked | Iron",
			"r-bronze": "Ranked | Bronze",
			"r-gold":   "Ranked | Gold",
			"r-staff":  "Staff",
		},
		members: map[string][]string{},
	}
}

func TestSyncReplacesTierRoles(t *testing.T) {
	f := newFake()
	f.members["u1"] = []string{"r-staff", "r-iron", "r-bronze"}
	s := NewSynchronizer(defaultLadder(), f)

	c := s.Sync(context.Background(), Member{UserID: "u1", Rating: 1100})
	if c.Err != nil {
		t.Fatal(c.Err)
	}
	if c.Tier != "Gold" || c.Added != "r-gold" {
		t.Errorf("change = %+v", c)
	}
	got := append([]string(nil), f.members["u1"]...)
	sort.Strings(got)
	if want := []string{"r-gold", "r-staff"}; !reflect.DeepEqual(got, want) {
		t.Errorf("roles = %v, want %v", got, want)
	}
}

func TestSyncNoopWhenRoleHeld(t *testing.T) {
	f := newFake()
	f.members["u1"] = []string{"r-bronze", "r-iron"}
	s := NewSynchronizer(defaultLadder(), f)

	c := s.Sync(context.Background(), Member{UserID: "u1", Rating: 900})
	if c.Err != nil || c.Added != "" || len(c.Removed) != 0 {
		t.Errorf("change = %+v, want no action", c)
	}
	if len(f.members["u1"]) != 2 {
		t.Errorf("roles changed: %v", f.members["u1"])
	}
}

func TestSyncAllCapturesFailures(t *testing.T) {
	f := newFake()
	s := NewSynchronizer(defaultLadder(), f)

	changes := s.SyncAll(context.Background(), []Member{
		{UserID: "u1", Rating: 1500}, // Warrior role does not exist
		{UserID: "u2", Rating: 800},
	})
	if changes[0].Err == nil {
		t.Error("missing role not reported")
	}
	if changes[1].Err != nil || changes[1].Added != "r-iron" {
		t.Errorf("second member = %+v", changes[1])
	}

	f.failAdd = true
	if c := s.Sync(context.Background(), Member{UserID: "u3", Rating: 800}); c.Err == nil {
		t.Error("add failure not reported")
	}
}
