package midi

import (
	"bytes"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/retrochip/gamemusic/gmerr"
	"github.com/retrochip/gamemusic/song"
)

// MilliHertzToNote finds the MIDI note number whose equal-tempered
// frequency is closest to milliHertz, the inverse of NoteToMilliHertz.
func MilliHertzToNote(milliHertz uint32) uint8 {
	i := sort.Search(128, func(i int) bool { return freqTable[i] >= milliHertz })
	switch {
	case i == 0:
		return 0
	case i >= 128:
		return 127
	default:
		below, above := freqTable[i-1], freqTable[i]
		if milliHertz-below <= above-milliHertz {
			return uint8(i - 1)
		}
		return uint8(i)
	}
}

type trackBuilder struct {
	channel     uint8
	lastProgram int // -1 until set
	lastKey     uint8
	track       smf.Track

	// Pending deep-tremolo/vibrato state, per spec.md §4.7: a Configuration
	// event only updates curVibrato/curTremolo; the CC 0x63 byte carrying
	// both bits is not written until just before the track's next note-on.
	curVibrato, curTremolo bool
	pendingCC63            bool
	pendingCC63Delay       uint32
}

// assignChannels picks a MIDI channel for every track, per spec.md §4.7: a
// channel is allocated on first use by picking an unused channel (leaving 9
// free for percussion where possible), or, once all 16 are in use, by
// reclaiming the channel that was assigned longest ago. Tracks already typed
// ChannelMIDI with a channel in range keep that channel; everything else
// (including OPL-typed tracks being re-targeted at MIDI) is allocated here.
func assignChannels(music *song.Music) ([]uint8, [16]bool) {
	channels := make([]uint8, len(music.TrackInfo))
	used := [16]bool{}
	unassigned := make([]bool, len(music.TrackInfo))
	for i, info := range music.TrackInfo {
		if info.Type == song.ChannelMIDI && info.Channel >= 0 && info.Channel < 16 {
			channels[i] = uint8(info.Channel)
			used[info.Channel] = true
		} else {
			unassigned[i] = true
		}
	}

	percussion := make([]bool, len(music.TrackInfo))
	for _, pattern := range music.Patterns {
		for ti, track := range pattern {
			for _, te := range track {
				if te.Event.Kind != song.EventNoteOn {
					continue
				}
				idx := te.Event.Instrument
				if idx < 0 || idx >= len(music.Patches) {
					continue
				}
				if p := music.Patches[idx]; p.Kind == song.PatchMIDI && p.MIDI.Percussion {
					percussion[ti] = true
				}
			}
		}
	}

	var lastAssigned [16]int
	order := 0
	pick := func(wantPercussion bool) uint8 {
		if wantPercussion && !used[PercussionChannel] {
			used[PercussionChannel] = true
			lastAssigned[PercussionChannel] = order
			order++
			return PercussionChannel
		}
		for c := uint8(0); c < 16; c++ {
			if c == PercussionChannel && !wantPercussion {
				continue
			}
			if !used[c] {
				used[c] = true
				lastAssigned[c] = order
				order++
				return c
			}
		}
		oldest := uint8(0)
		for c := uint8(1); c < 16; c++ {
			if lastAssigned[c] < lastAssigned[oldest] {
				oldest = c
			}
		}
		lastAssigned[oldest] = order
		order++
		return oldest
	}

	for i := range music.TrackInfo {
		if !unassigned[i] {
			continue
		}
		channels[i] = pick(percussion[i])
	}
	return channels, used
}

// Encode converts a Music into Standard MIDI File bytes, per spec.md §4.7.
// It expects music to already be monophonic per track (split.Music applied
// if it came from a polyphonic source) and every patch referenced from an
// OPL-typed track must be a MIDIPatch.
//
// flags adjusts encoding per MIDIFlags. onEndOfTrack, if non-nil, is called
// once for every track index as its MTrk chunk is finished, mirroring the
// on_end_of_track callback named in spec.md §6; it is only meaningful when
// music has a single pattern, which is the only case this codec targets.
// channelsUsed reports which of the 16 MIDI channels were assigned.
func Encode(music *song.Music, flags MIDIFlags, onEndOfTrack func(trackIndex int)) ([]byte, [16]bool, error) {
	smfData := smf.NewSMF1()
	smfData.TimeFormat = smf.MetricTicks(music.InitialTempo.TicksPerQuarterNote())

	channels, channelsUsed := assignChannels(music)
	builders := make([]*trackBuilder, len(music.TrackInfo))
	for i := range music.TrackInfo {
		builders[i] = &trackBuilder{lastProgram: -1, channel: channels[i]}
	}

	tempoTrack := smf.Track{}
	var convErr error
	h := &encodeHandler{
		music:        music,
		builders:     builders,
		tempoTrack:   &tempoTrack,
		err:          &convErr,
		flags:        flags,
		onEndOfTrack: onEndOfTrack,
	}
	song.Dispatch(music, song.PatternTrackRow, h)
	if convErr != nil {
		return nil, channelsUsed, convErr
	}

	tempoTrack = append(tempoTrack, smf.Event{Delta: 0, Message: smf.Message(smf.EOT)})
	smfData.Add(tempoTrack)

	for _, b := range builders {
		if len(b.track) == 0 {
			continue
		}
		b.track = append(b.track, smf.Event{Delta: 0, Message: smf.Message(smf.EOT)})
		smfData.Add(b.track)
	}

	var buf bytes.Buffer
	if _, err := smfData.WriteTo(&buf); err != nil {
		return nil, channelsUsed, err
	}
	return buf.Bytes(), channelsUsed, nil
}

func deepFlagsCC(vibrato, tremolo bool) byte {
	var v byte
	if vibrato {
		v |= 1
	}
	if tremolo {
		v |= 2
	}
	return v
}

func rhythmCCValue(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return byte(v)
}

type encodeHandler struct {
	music             *song.Music
	builders          []*trackBuilder
	tempoTrack        *smf.Track
	pendingTempoDelta uint32
	err               *error
	flags             MIDIFlags
	onEndOfTrack      func(trackIndex int)
	curTrackIndex     int
}

func (h *encodeHandler) flushCC63(b *trackBuilder, delay uint32) uint32 {
	if !b.pendingCC63 {
		return delay
	}
	b.track = append(b.track, smf.Event{
		Delta:   delay + b.pendingCC63Delay,
		Message: smf.Message(midi.ControlChange(b.channel, 0x63, deepFlagsCC(b.curVibrato, b.curTremolo))),
	})
	b.pendingCC63 = false
	b.pendingCC63Delay = 0
	return 0
}

func (h *encodeHandler) HandleEvent(delay uint32, trackIndex, patternIndex int, event song.Event) {
	if *h.err != nil {
		return
	}
	b := h.builders[trackIndex]

	switch event.Kind {
	case song.EventTempo:
		*h.tempoTrack = append(*h.tempoTrack, smf.Event{
			Delta:   delay + h.pendingTempoDelta,
			Message: smf.Message(smf.MetaTempo(event.Tempo.BPM())),
		})
		h.pendingTempoDelta = 0

	case song.EventNoteOn:
		if event.Instrument < 0 || event.Instrument >= len(h.music.Patches) {
			*h.err = gmerr.NewBadPatchType(trackIndex, "midi", "out of range")
			return
		}
		patch := h.music.Patches[event.Instrument]
		if patch.Kind != song.PatchMIDI {
			*h.err = gmerr.NewBadPatchType(trackIndex, "midi", patch.Kind.String())
			return
		}
		d := h.flushCC63(b, delay)
		if patch.MIDI.Percussion {
			b.channel = PercussionChannel
			b.lastKey = patch.MIDI.Program
		} else {
			if int(patch.MIDI.Program) != b.lastProgram {
				b.track = append(b.track, smf.Event{Delta: d, Message: smf.Message(midi.ProgramChange(b.channel, patch.MIDI.Program))})
				b.lastProgram = int(patch.MIDI.Program)
				d = 0
			}
			b.lastKey = MilliHertzToNote(event.MilliHertz)
		}
		vel := NarrowVelocity(event.Velocity)
		b.track = append(b.track, smf.Event{Delta: d, Message: smf.Message(midi.NoteOn(b.channel, b.lastKey, vel))})

	case song.EventNoteOff:
		b.track = append(b.track, smf.Event{Delta: delay, Message: smf.Message(midi.NoteOff(b.channel, b.lastKey))})

	case song.EventEffect:
		switch event.EffectType {
		case song.EffectPitchbendNote:
			// EffectPitchbendNote carries an absolute frequency (as the
			// splitter and the OPL decoder produce it), which has no direct
			// SMF channel message, so it is dropped here (spec.md's
			// OPL<->MIDI round trip is lossy on fine continuous pitch
			// already, per §7).
		case song.EffectVolume:
			b.track = append(b.track, smf.Event{
				Delta:   delay,
				Message: smf.Message(midi.AfterTouch(b.channel, NarrowVelocity(uint8(event.Data)))),
			})
		}

	case song.EventSpecificNoteEffect:
		key := MilliHertzToNote(event.MilliHertz)
		b.track = append(b.track, smf.Event{
			Delta:   delay,
			Message: smf.Message(midi.PolyAfterTouch(b.channel, key, NarrowVelocity(uint8(event.Data)))),
		})

	case song.EventPolyphonicEffect:
		switch event.EffectType {
		case song.EffectPitchbendChannel:
			// event.Data is the raw absolute 14-bit value (0-16383, centred
			// on 8192), matching Decode; gomidi's Pitchbend wants the signed
			// value relative to centre.
			b.track = append(b.track, smf.Event{Delta: delay, Message: smf.Message(midi.Pitchbend(b.channel, int16(event.Data)-8192))})
		case song.EffectVolumeChannel:
			b.track = append(b.track, smf.Event{Delta: delay, Message: smf.Message(midi.AfterTouch(b.channel, NarrowVelocity(uint8(event.Data))))})
		}

	case song.EventConfiguration:
		switch event.ConfigType {
		case song.ConfigEnableDeepVibrato:
			b.curVibrato = event.ConfigValue != 0
			b.pendingCC63 = true
			b.pendingCC63Delay += delay
		case song.ConfigEnableDeepTremolo:
			b.curTremolo = event.ConfigValue != 0
			b.pendingCC63 = true
			b.pendingCC63Delay += delay
		case song.ConfigEnableRhythm:
			b.track = append(b.track, smf.Event{
				Delta:   delay,
				Message: smf.Message(midi.ControlChange(b.channel, 0x67, rhythmCCValue(event.ConfigValue))),
			})
		default:
			h.pendingTempoDelta += delay
		}

	default:
		h.pendingTempoDelta += delay
	}
}

func (h *encodeHandler) EndOfTrack(remaining uint32) {
	if h.onEndOfTrack != nil {
		h.onEndOfTrack(h.curTrackIndex)
	}
	h.curTrackIndex++
}

func (h *encodeHandler) EndOfPattern(remaining uint32) {}
