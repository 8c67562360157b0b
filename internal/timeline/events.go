package timeline

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedEvents is returned when a detector event stream is not a
// strictly increasing sequence of alternating Start/End events.
var ErrMalformedEvents = errors.New("timeline: malformed silence events")

// EventKind tags a SilenceEvent.
type EventKind int

const (
	// EventStart marks the beginning of a silence.
	EventStart EventKind = iota
	// EventEnd marks the end of a silence.
	EventEnd
)

// String returns the detector's name for the kind.
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "silence_start"
	case EventEnd:
		return "silence_end"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// SilenceEvent is a single detector event in source time.
type SilenceEvent struct {
	Kind EventKind
	T    float64
}

// PairEvents folds an alternating Start/End stream into silence intervals.
// A trailing Start without End is closed at duration when the media runs past
// it; otherwise it is rejected. Pass duration 0 to reject it unconditionally.
func PairEvents(events []SilenceEvent, duration float64) ([]Clip, error) {
	var (
		out   []Clip
		open  bool
		start float64
		lastT = math.Inf(-1)
	)

	for i, ev := range events {
		if ev.T <= lastT {
			return nil, fmt.Errorf("%w: event %d at %g does not follow %g", ErrMalformedEvents, i, ev.T, lastT)
		}
		lastT = ev.T

		switch ev.Kind {
		case EventStart:
			if open {
				return nil, fmt.Errorf("%w: event %d: start while silence already open", ErrMalformedEvents, i)
			}
			open = true
			start = ev.T
		case EventEnd:
			if !open {
				return nil, fmt.Errorf("%w: event %d: end without start", ErrMalformedEvents, i)
			}
			open = false
			out = append(out, Clip{Start: start, End: ev.T})
		default:
			return nil, fmt.Errorf("%w: event %d: unknown kind %v", ErrMalformedEvents, i, ev.Kind)
		}
	}

	if open {
		if duration <= start {
			return nil, fmt.Errorf("%w: unterminated silence at %g", ErrMalformedEvents, start)
		}
		out = append(out, Clip{Start: start, End: duration})
	}

	return out, nil
}

// Pad shrinks each silence interval by startPad at its start and endPad at
// its end, keeping a little audio around every cut. Intervals that become
// empty are dropped; starts below zero are clamped to zero.
func Pad(intervals []Clip, startPad, endPad float64) []Clip {
	out := make([]Clip, 0, len(intervals))
	for _, iv := range intervals {
		c := Clip{Start: iv.Start + startPad, End: iv.End - endPad}
		if c.Start < 0 {
			c.Start = 0
		}
		if c.End <= c.Start {
			continue
		}
		out = append(out, c)
	}
	return out
}
