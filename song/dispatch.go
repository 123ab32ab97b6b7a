package song

import "sort"

// Order selects one of the four event-dispatch orders named in spec.md
// §4.2.
type Order int

const (
	// PatternRowTrack merges all tracks of each pattern (in pattern-list
	// order) into one chronological stream.
	PatternRowTrack Order = iota
	// PatternTrackRow walks each pattern's tracks one at a time, each in
	// its own original per-track delays.
	PatternTrackRow
	// OrderRowTrack is PatternRowTrack but iterating patternOrder instead
	// of patterns (patterns may repeat).
	OrderRowTrack
	// OrderTrackRow is PatternTrackRow but iterating patternOrder.
	OrderTrackRow
)

// Handler receives events from Dispatch. HandleEvent is called once per
// event: under the Row-Track orders with the delay since the previous event
// delivered in the same pattern, under the Track-Row orders with the
// event's own per-track delay. EndOfTrack is only called under the
// Track-Row orders, once per track; EndOfPattern is called once per pattern
// under every order. Both receive whatever delay remained unconsumed at
// ticksPerTrack.
type Handler interface {
	HandleEvent(delay uint32, trackIndex, patternIndex int, event Event)
	EndOfTrack(remainingDelay uint32)
	EndOfPattern(remainingDelay uint32)
}

// Dispatch walks music's events in the given order, delivering them to h.
// It is the Go counterpart of the source library's
// EventHandler::handleAllEvents (original_source/src/events.cpp).
func Dispatch(music *Music, order Order, h Handler) {
	switch order {
	case PatternRowTrack:
		for patternIndex, p := range music.Patterns {
			mergeTracksAndDispatch(music, p, patternIndex, h)
		}
	case PatternTrackRow:
		for patternIndex, p := range music.Patterns {
			dispatchTracksSeparately(music, p, patternIndex, h)
		}
	case OrderRowTrack:
		for _, patternIndex := range music.PatternOrder {
			mergeTracksAndDispatch(music, music.Patterns[patternIndex], patternIndex, h)
		}
	case OrderTrackRow:
		for _, patternIndex := range music.PatternOrder {
			dispatchTracksSeparately(music, music.Patterns[patternIndex], patternIndex, h)
		}
	}
}

type mergedEvent struct {
	absTime    uint32
	trackIndex int
	event      Event
}

// mergeTracksAndDispatch reproduces processPattern_mergeTracks: flatten
// every track's events into one list tagged with absolute time, stably sort
// by (absTime, note-off-before-everything-else), then replay as deltas.
func mergeTracksAndDispatch(music *Music, p Pattern, patternIndex int, h Handler) {
	var full []mergedEvent
	for trackIndex, t := range p {
		var trackTime uint32
		for _, te := range t {
			trackTime += te.Delay
			full = append(full, mergedEvent{absTime: trackTime, trackIndex: trackIndex, event: te.Event})
		}
	}

	sort.SliceStable(full, func(i, j int) bool {
		a, b := full[i], full[j]
		if a.absTime != b.absTime {
			return a.absTime < b.absTime
		}
		// Put note-offs first at equal time to minimise unnecessary
		// polyphony, matching trackMergeByTime in events.cpp.
		aOff, bOff := a.event.IsNoteOff(), b.event.IsNoteOff()
		if aOff == bOff {
			return false
		}
		return aOff
	})

	var trackTime uint32
	for _, me := range full {
		delta := me.absTime - trackTime
		trackTime = me.absTime
		h.HandleEvent(delta, me.trackIndex, patternIndex, me.event)
	}
	h.EndOfPattern(music.TicksPerTrack - trackTime)
}

// dispatchTracksSeparately reproduces processPattern_separateTracks: each
// track keeps its own original delays, with EndOfTrack/EndOfPattern
// bracketing them.
func dispatchTracksSeparately(music *Music, p Pattern, patternIndex int, h Handler) {
	var maxTrackTime uint32
	for trackIndex, t := range p {
		var trackTime uint32
		for _, te := range t {
			trackTime += te.Delay
			h.HandleEvent(te.Delay, trackIndex, patternIndex, te.Event)
		}
		if trackTime > maxTrackTime {
			maxTrackTime = trackTime
		}
		h.EndOfTrack(music.TicksPerTrack - trackTime)
	}
	h.EndOfPattern(music.TicksPerTrack - maxTrackTime)
}
