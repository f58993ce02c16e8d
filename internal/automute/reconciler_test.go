package automute

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ernie/crewvoice/internal/config"
	"github.com/ernie/crewvoice/internal/voice"
	"github.com/ernie/crewvoice/internal/voice/voicetest"
)

var (
	muted    = voice.VoiceState{Mute: true, Deafen: true}
	muteOnly = voice.VoiceState{Mute: true}
	open     = voice.VoiceState{}
)

func newChannel() *voice.GameChannel {
	return voice.NewGameChannel(config.ChannelConfig{Name: "Ranked 1", VoiceID: "v1", TextID: "t1"})
}

func assertLast(t *testing.T, p *voicetest.Participant, want voice.VoiceState) {
	t.Helper()
	got, ok := p.Last()
	if !ok {
		t.Errorf("%s: no edit applied", p.Name)
		return
	}
	if got != want {
		t.Errorf("%s: state = %+v, want %+v", p.Name, got, want)
	}
}

func TestReconcileMeetingStart(t *testing.T) {
	ps := voicetest.Participants("Aiden", "zurg", "Mantis", "Sai")
	r := New(Options{Enabled: true})
	dead := []string{"zurg", "Sai"}
	alive := []string{"Aiden", "Mantis"}

	report, err := r.Reconcile(context.Background(), newChannel(), voicetest.AsVoice(ps), dead, alive, MeetingStart)
	if err != nil {
		t.Fatal(err)
	}
	if report.Applied() != 4 || len(report.Unmatched) != 0 {
		t.Fatalf("applied %d unmatched %d, want 4/0", report.Applied(), len(report.Unmatched))
	}
	assertLast(t, ps[0], open)
	assertLast(t, ps[1], muteOnly)
	assertLast(t, ps[2], open)
	assertLast(t, ps[3], muteOnly)
}

func TestReconcileMeetingEndWaitsAndInverts(t *testing.T) {
	ps := voicetest.Participants("Aiden", "zurg")
	r := New(Options{Enabled: true, MeetingEndDelay: 20 * time.Millisecond})

	start := time.Now()
	_, err := r.Reconcile(context.Background(), newChannel(), voicetest.AsVoice(ps), []string{"zurg"}, []string{"Aiden"}, MeetingEnd)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("edits issued after %v, want at least the meeting end delay", elapsed)
	}
	assertLast(t, ps[0], muted)
	assertLast(t, ps[1], open)
}

func TestReconcileMeetingEndCanceled(t *testing.T) {
	ps := voicetest.Participants("Aiden")
	r := New(Options{Enabled: true, MeetingEndDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Reconcile(ctx, newChannel(), voicetest.AsVoice(ps), nil, []string{"Aiden"}, MeetingEnd)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, ok := ps[0].Last(); ok {
		t.Error("edit applied after cancellation")
	}
}

func TestReconcileUniformTriggers(t *testing.T) {
	ps := voicetest.Participants("Someone", "Nobody In Game")
	r := New(Options{Enabled: true})

	if _, err := r.Reconcile(context.Background(), newChannel(), voicetest.AsVoice(ps), nil, nil, MatchStart); err != nil {
		t.Fatal(err)
	}
	for _, p := range ps {
		assertLast(t, p, muted)
	}
	report, err := r.Reconcile(context.Background(), newChannel(), voicetest.AsVoice(ps), nil, nil, MatchEnd)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Unmatched) != 0 {
		t.Errorf("uniform trigger reported unmatched participants")
	}
	for _, p := range ps {
		assertLast(t, p, open)
	}
}

func TestReconcileEditFailuresAreIsolated(t *testing.T) {
	ps := voicetest.Participants("Aiden", "zurg", "Mantis")
	ps[1].Err = errors.New("unknown member")
	r := New(Options{Enabled: true, MaxConcurrentEdits: 1})

	report, err := r.Reconcile(context.Background(), newChannel(), voicetest.AsVoice(ps), []string{"zurg"}, []string{"Aiden", "Mantis"}, MeetingStart)
	if err != nil {
		t.Fatal(err)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Participant.DisplayName() != "zurg" {
		t.Fatalf("failed = %+v, want zurg only", failed)
	}
	assertLast(t, ps[0], open)
	assertLast(t, ps[2], open)
}

func TestReconcileUnmatchedNotice(t *testing.T) {
	ps := voicetest.Participants("Aiden", "Spectator")
	prov := voicetest.NewProvider()
	r := New(Options{Enabled: true, NotifyUnmatched: true, Notifier: prov})

	report, err := r.Reconcile(context.Background(), newChannel(), voicetest.AsVoice(ps), nil, []string{"Aiden"}, MeetingStart)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Unmatched) != 1 || report.Unmatched[0].DisplayName() != "Spectator" {
		t.Fatalf("unmatched = %v", report.Unmatched)
	}
	if _, ok := ps[1].Last(); ok {
		t.Error("unmatched participant was edited")
	}
	msgs := prov.Messages()
	if len(msgs) != 1 || msgs[0].ChannelID != "t1" || !strings.Contains(msgs[0].Text, "Spectator") {
		t.Errorf("messages = %+v", msgs)
	}
}

// Every alive participant ends unmuted and undeafened and every dead one
// muted only, with nobody else touched.
func TestReconcileMeetingStartExactSets(t *testing.T) {
	alive := []string{"Aiden", "real matt", "Nutty"}
	dead := []string{"zurg", "Mantis", "MaxKayn"}
	var ps []*voicetest.Participant
	for _, n := range append(append([]string{}, alive...), dead...) {
		ps = append(ps, voicetest.NewParticipant(n))
	}
	ps = append(ps, voicetest.NewParticipant("Observer"))

	r := New(Options{Enabled: true})
	report, err := r.Reconcile(context.Background(), newChannel(), voicetest.AsVoice(ps), dead, alive, MeetingStart)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range ps[:3] {
		assertLast(t, p, open)
	}
	for _, p := range ps[3:6] {
		assertLast(t, p, muteOnly)
	}
	if _, ok := ps[6].Last(); ok {
		t.Error("participant outside both sets was edited")
	}
	if report.Applied() != 6 {
		t.Errorf("applied = %d, want 6", report.Applied())
	}
}

func TestToggle(t *testing.T) {
	r := New(Options{Enabled: true})
	r.SetEnabled(false)
	if r.Enabled() {
		t.Error("SetEnabled(false) not applied")
	}
}

func TestPolicyForUnknown(t *testing.T) {
	if _, err := PolicyFor("halftime"); err == nil {
		t.Error("expected error for unknown trigger")
	}
}
