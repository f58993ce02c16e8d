package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ernie/crewvoice/internal/domain"
)

var (
	// ErrMalformedEvent is returned for messages that cannot be decoded or
	// lack required fields
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownChannel is returned when no game channel matches a roster
	ErrUnknownChannel = errors.New("no matching game channel")
)

// DecodeEvent reads exactly one JSON event from r and validates it
func DecodeEvent(r io.Reader) (*domain.GameEvent, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var e domain.GameEvent
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := Validate(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DecodeEventBytes decodes a complete message
func DecodeEventBytes(data []byte) (*domain.GameEvent, error) {
	return DecodeEvent(bytes.NewReader(data))
}

// Validate checks the fields each event kind requires
func Validate(e *domain.GameEvent) error {
	if e.GameCode == "" {
		return fmt.Errorf("%w: missing GameCode", ErrMalformedEvent)
	}
	switch e.EventName {
	case domain.GameEventStart:
		if e.MatchID == 0 {
			return fmt.Errorf("%w: GameStart without MatchID", ErrMalformedEvent)
		}
		if len(e.Players) == 0 {
			return fmt.Errorf("%w: GameStart without Players", ErrMalformedEvent)
		}
		if len(e.PlayerColors) != len(e.Players) {
			return fmt.Errorf("%w: %d players but %d colors", ErrMalformedEvent, len(e.Players), len(e.PlayerColors))
		}
		for _, c := range e.PlayerColors {
			if !domain.ValidColor(c) {
				return fmt.Errorf("%w: color %d out of range", ErrMalformedEvent, c)
			}
		}
	case domain.GameEventMeetingStart, domain.GameEventMeetingEnd:
		if len(e.Players) == 0 {
			return fmt.Errorf("%w: %s without Players", ErrMalformedEvent, e.EventName)
		}
	case domain.GameEventEnd:
		// MatchID may be recovered from the session
	case "":
		return fmt.Errorf("%w: missing EventName", ErrMalformedEvent)
	default:
		return fmt.Errorf("%w: unsupported event %q", ErrMalformedEvent, e.EventName)
	}
	return nil
}
