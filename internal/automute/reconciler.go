package automute

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ernie/crewvoice/internal/voice"
)

// Notifier posts plain text to a channel
type Notifier interface {
	SendMessage(ctx context.Context, channelID, text string) error
}

// Options configures a Reconciler
type Options struct {
	Enabled            bool
	MaxConcurrentEdits int
	MeetingEndDelay    time.Duration
	NotifyUnmatched    bool
	Notifier           Notifier // may be nil when NotifyUnmatched is false
}

// Outcome is the result of one participant's edit
type Outcome struct {
	Participant voice.Participant
	Name        string // matched in-game name, empty for uniform policies
	Side        Side
	Pass        int
	State       voice.VoiceState
	Err         error
}

// Report summarizes one reconciliation
type Report struct {
	Trigger   Trigger
	Outcomes  []Outcome
	Unmatched []voice.Participant
}

// Applied counts the edits that succeeded
func (r Report) Applied() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the outcomes whose edit returned an error
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Reconciler applies automute policies to a game channel
type Reconciler struct {
	enabled atomic.Bool
	opts    Options
}

// New creates a reconciler
func New(opts Options) *Reconciler {
	if opts.MaxConcurrentEdits <= 0 {
		opts.MaxConcurrentEdits = 8
	}
	r := &Reconciler{opts: opts}
	r.enabled.Store(opts.Enabled)
	return r
}

// Enabled reports whether automute is switched on
func (r *Reconciler) Enabled() bool {
	return r.enabled.Load()
}

// SetEnabled switches automute on or off
func (r *Reconciler) SetEnabled(on bool) {
	r.enabled.Store(on)
}

// Reconcile computes and applies the voice state of every roster participant
// for trigger. Participants that cannot be matched to a name are reported and
// left untouched. Edit failures are captured per outcome and never stop the
// other edits. An error is returned only for an unknown trigger or when ctx
// ends before the edits are issued.
func (r *Reconciler) Reconcile(ctx context.Context, ch *voice.GameChannel, roster []voice.Participant, dead, alive []string, trigger Trigger) (Report, error) {
	policy, err := PolicyFor(trigger)
	if err != nil {
		return Report{}, err
	}
	report := Report{Trigger: trigger}

	if policy.Uniform {
		for _, p := range roster {
			report.Outcomes = append(report.Outcomes, Outcome{Participant: p, State: policy.Alive})
		}
	} else {
		assigned, unmatched := Plan(roster, dead, alive)
		for _, a := range assigned {
			report.Outcomes = append(report.Outcomes, Outcome{
				Participant: a.Participant,
				Name:        a.Name,
				Side:        a.Side,
				Pass:        a.Pass,
				State:       policy.StateFor(a.Side),
			})
		}
		report.Unmatched = unmatched
		r.reportUnmatched(ctx, ch, unmatched)
	}

	if trigger == MeetingEnd && r.opts.MeetingEndDelay > 0 {
		timer := time.NewTimer(r.opts.MeetingEndDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return report, fmt.Errorf("waiting for meeting end delay: %w", ctx.Err())
		case <-timer.C:
		}
	}

	r.apply(ctx, report.Outcomes)

	for _, o := range report.Failed() {
		log.Printf("Automute %s: could not edit %s: %v", trigger, o.Participant.DisplayName(), o.Err)
	}
	return report, nil
}

// apply runs the edits concurrently, bounded by MaxConcurrentEdits
func (r *Reconciler) apply(ctx context.Context, outcomes []Outcome) {
	var g errgroup.Group
	g.SetLimit(r.opts.MaxConcurrentEdits)
	for i := range outcomes {
		o := &outcomes[i]
		g.Go(func() error {
			o.Err = o.Participant.Edit(ctx, o.State)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Reconciler) reportUnmatched(ctx context.Context, ch *voice.GameChannel, unmatched []voice.Participant) {
	if len(unmatched) == 0 {
		return
	}
	names := make([]string, len(unmatched))
	for i, p := range unmatched {
		names[i] = p.DisplayName()
		log.Printf("Automute: no in-game name for %s", p.DisplayName())
	}
	if !r.opts.NotifyUnmatched || r.opts.Notifier == nil || ch == nil || ch.TextID == "" {
		return
	}
	text := "Could not perform automute on " + strings.Join(names, ", ")
	if err := r.opts.Notifier.SendMessage(ctx, ch.TextID, text); err != nil {
		log.Printf("Automute: failed to post unmatched notice: %v", err)
	}
}
