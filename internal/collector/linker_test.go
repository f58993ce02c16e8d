package collector

import (
	"context"
	"testing"

	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/leaderboard"
	"github.com/ernie/crewvoice/internal/voice"
	"github.com/ernie/crewvoice/internal/voice/voicetest"
)

func TestLinkerLinksBestUnclaimedName(t *testing.T) {
	ctx := context.Background()
	store := leaderboard.NewMemory()
	l := NewLinker(store, 80)

	snapshot := voicetest.AsVoice(voicetest.Participants("Aiden | ttv", "zurg", "somebody else"))
	report := l.Link(ctx, []string{"aiden", "zurg2", "mantis"}, snapshot)

	if len(report.Links) != 2 {
		t.Fatalf("Links = %+v, want 2", report.Links)
	}
	want := map[string]string{"aiden": "id-Aiden | ttv", "zurg2": "id-zurg"}
	for name, id := range want {
		e, err := store.PlayerByName(ctx, name)
		if err != nil {
			t.Fatalf("PlayerByName(%s): %v", name, err)
		}
		if e.DiscordID != id {
			t.Errorf("%s linked to %q, want %q", name, e.DiscordID, id)
		}
	}
	if len(report.Unmatched) != 1 || report.Unmatched[0].DisplayName() != "somebody else" {
		t.Errorf("Unmatched = %v", report.Unmatched)
	}
	if _, err := store.PlayerByName(ctx, "mantis"); err == nil {
		t.Error("unclaimed roster name was created")
	}
	// create and link for each of the two players
	if got := store.Persists(); got != 4 {
		t.Errorf("Persists = %d, want 4", got)
	}
}

func TestLinkerSkipsKnownParticipants(t *testing.T) {
	ctx := context.Background()
	store := leaderboard.NewMemory()
	if _, err := store.CreatePlayer(ctx, "aiden"); err != nil {
		t.Fatal(err)
	}
	if err := store.LinkDiscord(ctx, "aiden", "id-Aiden"); err != nil {
		t.Fatal(err)
	}

	report := NewLinker(store, 80).Link(ctx, []string{"aiden", "aidan"}, voicetest.AsVoice(voicetest.Participants("Aiden")))
	if len(report.Known) != 1 || len(report.Links) != 0 {
		t.Errorf("report = %+v, want one known participant and no links", report)
	}
	if _, err := store.PlayerByName(ctx, "aidan"); err == nil {
		t.Error("known participant claimed a second name")
	}
}

func TestLinkerKnownParticipantKeepsName(t *testing.T) {
	ctx := context.Background()
	store := leaderboard.NewMemory()
	store.CreatePlayer(ctx, "aiden")
	store.LinkDiscord(ctx, "aiden", "id-Aiden")

	// the lookalike comes first in voice order
	snapshot := voicetest.AsVoice(voicetest.Participants("Aidan", "Aiden"))
	report := NewLinker(store, 80).Link(ctx, []string{"aiden"}, snapshot)

	if len(report.Links) != 0 {
		t.Errorf("Links = %+v, want none", report.Links)
	}
	if len(report.Unmatched) != 1 || report.Unmatched[0].DisplayName() != "Aidan" {
		t.Errorf("Unmatched = %v, want Aidan", report.Unmatched)
	}
	if e, _ := store.PlayerByName(ctx, "aiden"); e.DiscordID != "id-Aiden" {
		t.Errorf("aiden linked to %q", e.DiscordID)
	}
}

func TestLinkerKeepsExistingLink(t *testing.T) {
	ctx := context.Background()
	store := leaderboard.NewMemory()
	store.CreatePlayer(ctx, "zurg")
	store.LinkDiscord(ctx, "zurg", "someone-else")

	report := NewLinker(store, 80).Link(ctx, []string{"zurg"}, voicetest.AsVoice(voicetest.Participants("zurg")))
	if len(report.Links) != 1 || report.Links[0].Linked {
		t.Fatalf("Links = %+v, want a claim without a new link", report.Links)
	}
	e, _ := store.PlayerByName(ctx, "zurg")
	if e.DiscordID != "someone-else" {
		t.Errorf("existing link overwritten with %q", e.DiscordID)
	}
}

func TestMentions(t *testing.T) {
	ctx := context.Background()
	store := leaderboard.NewMemory()
	store.CreatePlayer(ctx, "Aiden")
	store.LinkDiscord(ctx, "Aiden", "111")

	m := &domain.Match{Players: []domain.Player{
		{Name: "Aiden"},
		{Name: "zurg2"},
		{Name: "mantis", DiscordID: "222"},
		{Name: "nobody"},
	}}
	snapshot := voicetest.AsVoice(voicetest.Participants("Zurg", "irish"))

	got := NewLinker(store, 80).Mentions(ctx, m, snapshot)
	want := map[string]string{
		"Aiden":  "<@111>",
		"zurg2":  "@Zurg",
		"mantis": "<@222>",
		"nobody": "nobody",
	}
	for name, w := range want {
		if got[name] != w {
			t.Errorf("Mentions[%s] = %q, want %q", name, got[name], w)
		}
	}
}

func TestPruneLinks(t *testing.T) {
	ctx := context.Background()
	store := leaderboard.NewMemory()
	for name, id := range map[string]string{"stays": "id-stays", "left": "id-left"} {
		store.CreatePlayer(ctx, name)
		store.LinkDiscord(ctx, name, id)
	}
	provider := voicetest.NewProvider()
	provider.AddMember(voicetest.NewParticipant("stays"))

	n, err := PruneLinks(ctx, store, provider)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if e, _ := store.PlayerByName(ctx, "left"); e.Linked() {
		t.Error("link to departed member kept")
	}
	if e, _ := store.PlayerByName(ctx, "stays"); !e.Linked() {
		t.Error("link to current member removed")
	}
}

func TestAutoLink(t *testing.T) {
	ctx := context.Background()
	store := leaderboard.NewMemory()
	for _, name := range []string{"Amantis", "Mantis", "zurg2", "ghost", "Nutty"} {
		store.CreatePlayer(ctx, name)
	}
	store.LinkDiscord(ctx, "Nutty", "id-Nutty")

	provider := voicetest.NewProvider()
	for _, p := range voicetest.Participants("Mantis", "Zurg 2", "Nutty", "someone") {
		provider.AddMember(p)
	}
	persists := store.Persists()

	n, err := AutoLink(ctx, store, provider)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("linked %d, want 2", n)
	}

	want := map[string]string{
		"Mantis":  "id-Mantis",
		"zurg2":   "id-Zurg 2",
		"Amantis": "",
		"ghost":   "",
		"Nutty":   "id-Nutty",
	}
	for name, id := range want {
		e, err := store.PlayerByName(ctx, name)
		if err != nil {
			t.Fatalf("PlayerByName(%s): %v", name, err)
		}
		if e.DiscordID != id {
			t.Errorf("%s linked to %q, want %q", name, e.DiscordID, id)
		}
	}
	if got := store.Persists() - persists; got != 1 {
		t.Errorf("persisted %d times, want 1", got)
	}
}

func TestAutoLinkNothingToDo(t *testing.T) {
	ctx := context.Background()
	store := leaderboard.NewMemory()
	store.CreatePlayer(ctx, "irish")
	provider := voicetest.NewProvider()
	provider.AddMember(voicetest.NewParticipant("zzzz"))

	n, err := AutoLink(ctx, store, provider)
	if err != nil || n != 0 {
		t.Errorf("AutoLink = %d, %v; want 0, nil", n, err)
	}
	if store.Persists() != 0 {
		t.Error("persisted without changes")
	}
}

var _ voice.Provider = (*voicetest.Provider)(nil)
