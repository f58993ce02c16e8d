package narrative

import "github.com/ernie/crewvoice/internal/domain"

// State of the narrative pass
type State int

const (
	// AccumulatingRound collects the actions of the current round
	AccumulatingRound State = iota
	// AtBoundary follows a meeting being called, until the meeting closes the round
	AtBoundary
)

func (s State) String() string {
	if s == AtBoundary {
		return "at_boundary"
	}
	return "accumulating_round"
}

// effect is what an event does to the pass besides adding lines
type effect int

const (
	stay effect = iota
	openMeeting
	closeRound
	stop
)

// rule renders an event into lines and names its effect on the pass
type rule struct {
	render func(p *pass, e domain.MatchEvent) []string
	effect func(e domain.MatchEvent) effect
}

func always(eff effect) func(domain.MatchEvent) effect {
	return func(domain.MatchEvent) effect { return eff }
}

// transitions is keyed by event kind. Kinds without an entry are ignored.
var transitions = map[domain.MatchEventKind]rule{
	domain.KindTask:          {render: (*pass).task, effect: always(stay)},
	domain.KindPlayerVote:    {render: (*pass).vote, effect: always(stay)},
	domain.KindDeath:         {render: (*pass).death, effect: always(stay)},
	domain.KindBodyReport:    {render: (*pass).bodyReport, effect: always(openMeeting)},
	domain.KindMeetingStart:  {render: (*pass).emergency, effect: always(openMeeting)},
	domain.KindExiled:        {render: (*pass).exiled, effect: always(closeRound)},
	domain.KindGameCancel:    {render: (*pass).cancel, effect: always(stay)},
	domain.KindManualGameEnd: {render: (*pass).manualEnd, effect: always(stop)},
	domain.KindDisconnect:    {render: (*pass).disconnect, effect: always(stay)},
	domain.KindMeetingEnd: {
		render: (*pass).meetingEnd,
		effect: func(e domain.MatchEvent) effect {
			if e.Result == domain.MeetingResultExiled {
				return stay
			}
			return closeRound
		},
	},
}

// next returns the state after an effect
func next(s State, eff effect) State {
	switch eff {
	case openMeeting:
		return AtBoundary
	case closeRound:
		return AccumulatingRound
	}
	return s
}
