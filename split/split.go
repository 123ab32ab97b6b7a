// Package split implements the polyphonic track splitter named in spec.md
// §4.6: turning a track that may carry more than one simultaneously
// sounding note (as produced by, e.g., a MIDI channel) into one or more
// monophonic tracks suitable for a single OPL channel, grounded in
// original_source/src/track-split.cpp.
package split

import (
	"math"

	"github.com/retrochip/gamemusic/song"
)

type voiceState struct {
	sounding bool
	freq     uint32
	bend     int32
}

// Track splits one polyphonic track into a list of monophonic tracks: the
// first keeps the track's original TrackInfo slot, and any additional
// "overflow" tracks are new slots that should be inserted immediately after
// it, each needing a duplicate of the original TrackInfo (per spec.md §4.6).
func Track(in song.Track) []song.Track {
	var mains []song.Track
	cur := in
	for {
		main, overflow, moved := splitOnce(cur)
		mains = append(mains, main)
		if !moved {
			break
		}
		cur = overflow
	}
	return mains
}

// splitOnce peels at most one extra voice's worth of events off cur into an
// overflow track, matching processTrackForOverflow in track-split.cpp: a
// NoteOn while a note is already sounding diverts to overflow; a
// SpecificNoteOff/SpecificNoteEffect that names the sounding note resolves
// to a plain NoteOff/Effect on main, otherwise diverts; channel-wide
// effects apply to main (if a note is sounding there) and are always also
// forwarded to overflow so a later-split voice still sees them.
func splitOnce(in song.Track) (main, overflow song.Track, moved bool) {
	var state voiceState
	var mainDelay, overflowDelay uint32

	flushMain := func(delay uint32, ev song.Event) {
		main = append(main, song.TrackEvent{Delay: mainDelay + delay, Event: ev})
		mainDelay = 0
	}
	flushOverflow := func(delay uint32, ev song.Event) {
		overflow = append(overflow, song.TrackEvent{Delay: overflowDelay + delay, Event: ev})
		overflowDelay = 0
		moved = true
	}
	skipMain := func(delay uint32) { mainDelay += delay }
	skipOverflow := func(delay uint32) { overflowDelay += delay }

	for _, te := range in {
		switch te.Event.Kind {
		case song.EventNoteOn:
			if !state.sounding {
				state.sounding = true
				state.freq = te.Event.MilliHertz
				state.bend = 0
				flushMain(te.Delay, te.Event)
				skipOverflow(te.Delay)
			} else {
				flushOverflow(te.Delay, te.Event)
				skipMain(te.Delay)
			}

		case song.EventNoteOff:
			state.sounding = false
			flushMain(te.Delay, te.Event)
			skipOverflow(te.Delay)

		case song.EventSpecificNoteOff:
			if state.sounding && te.Event.MilliHertz == state.freq {
				state.sounding = false
				flushMain(te.Delay, song.NoteOff())
				skipOverflow(te.Delay)
			} else {
				flushOverflow(te.Delay, te.Event)
				skipMain(te.Delay)
			}

		case song.EventSpecificNoteEffect:
			if state.sounding && te.Event.MilliHertz == state.freq {
				flushMain(te.Delay, song.Effect(te.Event.EffectType, te.Event.Data))
				skipOverflow(te.Delay)
			} else {
				flushOverflow(te.Delay, te.Event)
				skipMain(te.Delay)
			}

		case song.EventPolyphonicEffect:
			switch te.Event.EffectType {
			case song.EffectPitchbendChannel:
				state.bend = te.Event.Data
				if state.sounding {
					// bend is the raw absolute 14-bit pitchbend value
					// centred on 8192; a whole-tone range of 4096 units per
					// semitone gives a multiplicative frequency shift, not
					// an additive one.
					semitones := (float64(state.bend) - 8192.0) / 4096.0
					newFreq := float64(state.freq) * math.Pow(2, semitones/12.0)
					flushMain(te.Delay, song.Effect(song.EffectPitchbendNote, int32(math.Round(newFreq))))
				} else {
					skipMain(te.Delay)
				}
				// Pitchbend is channel-wide: overflow voices need it too.
				flushOverflow(te.Delay, te.Event)

			case song.EffectVolumeChannel:
				if state.sounding {
					flushMain(te.Delay, song.Effect(song.EffectVolume, te.Event.Data))
				} else {
					skipMain(te.Delay)
				}
				flushOverflow(te.Delay, te.Event)

			default:
				flushMain(te.Delay, te.Event)
				skipOverflow(te.Delay)
			}

		default:
			flushMain(te.Delay, te.Event)
			skipOverflow(te.Delay)
		}
	}

	if mainDelay != 0 {
		main = append(main, song.TrackEvent{Delay: mainDelay, Event: song.EmptyEvent()})
	}
	if moved && overflowDelay != 0 {
		overflow = append(overflow, song.TrackEvent{Delay: overflowDelay, Event: song.EmptyEvent()})
	}
	return main, overflow, moved
}

// Music splits every track of every pattern in m, inserting duplicated
// TrackInfo entries for each original track that ever produced overflow
// voices in any pattern. Every pattern shares one TrackInfo list (spec.md
// §3), so a track index's split width must be uniform across patterns: this
// runs two passes, first finding the widest split any pattern needs for
// each original track, then splitting every pattern to that width, padding
// shorter patterns' extra voices with a single silent TrackEvent.
func Music(m *song.Music) {
	width := make([]int, len(m.TrackInfo))
	perPatternParts := make([][][]song.Track, len(m.Patterns))
	for pi, pattern := range m.Patterns {
		perPatternParts[pi] = make([][]song.Track, len(pattern))
		for ti, track := range pattern {
			parts := Track(track)
			perPatternParts[pi][ti] = parts
			if len(parts) > width[ti] {
				width[ti] = len(parts)
			}
		}
	}

	var newInfo []song.TrackInfo
	for ti, info := range m.TrackInfo {
		for w := 0; w < width[ti]; w++ {
			newInfo = append(newInfo, info)
		}
	}
	m.TrackInfo = newInfo

	for pi, pattern := range m.Patterns {
		var newPattern song.Pattern
		for ti := range pattern {
			parts := perPatternParts[pi][ti]
			for w := 0; w < width[ti]; w++ {
				if w < len(parts) {
					newPattern = append(newPattern, parts[w])
				} else {
					newPattern = append(newPattern, song.Track{{Delay: m.TicksPerTrack, Event: song.EmptyEvent()}})
				}
			}
		}
		m.Patterns[pi] = newPattern
	}
}
