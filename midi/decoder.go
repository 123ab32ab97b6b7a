// Package midi implements the Standard MIDI File codec named in spec.md
// §4.7: SMF bytes to and from the song model, built on top of
// gitlab.com/gomidi/midi/v2 and its smf sub-package (the teacher's own
// dependency) for the wire-level concerns — VLQ delta times, running
// status, chunk framing — so this package only has to implement the
// semantic layer: velocity widening, pitchbend arithmetic, rhythm-aware
// channel mapping, CMF controller extensions, and the AdLib MDI
// meta-event extension.
package midi

import (
	"bytes"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/retrochip/gamemusic/bank"
	"github.com/retrochip/gamemusic/gmerr"
	"github.com/retrochip/gamemusic/song"
	"github.com/retrochip/gamemusic/tempo"
)

// PercussionChannel is the General MIDI percussion channel (0-indexed).
const PercussionChannel = 9

// WidenVelocity turns a 7-bit MIDI velocity/pressure value into an 8-bit
// one, per spec.md §4.7's "note widening" rule: (v7<<1)|(v7>>6), which maps
// 0->0 and 127->255 while staying monotonic across the whole range.
func WidenVelocity(v7 uint8) uint8 {
	return (v7 << 1) | (v7 >> 6)
}

// NarrowVelocity is the inverse of WidenVelocity, used by the encoder.
func NarrowVelocity(v8 uint8) uint8 {
	return v8 >> 1
}

// semitonesToPitchbend converts a signed semitone offset into a raw 14-bit
// MIDI pitchbend value (0-16383, 8192 = centre), the inverse of
// midiBendToSemitone in decode-midi.cpp, used to realise the CMF channel
// pitchbend controllers 0x68/0x69.
func semitonesToPitchbend(semitones float64) int16 {
	v := math.Round(semitones*4096) + 8192
	switch {
	case v < 0:
		return 0
	case v > 16383:
		return 16383
	default:
		return int16(v)
	}
}

type absEvent struct {
	tick    int64
	channel uint8
	msg     smfMsg
}

// smfMsg is the subset of gomidi's Message we need to inspect, captured
// once per event so the rest of the decoder doesn't need to know about the
// wire library at all.
type smfMsg struct {
	kind       eventKind
	key, vel   uint8
	program    uint8
	pitchbend  int16
	bpm        float64
	controller uint8
	ccValue    uint8
	patchBytes [bank.AdLibPatchLen]byte
}

type eventKind int

const (
	kindNoteOn eventKind = iota
	kindNoteOff
	kindProgramChange
	kindPitchbend
	kindPolyAfterTouch
	kindChannelAfterTouch
	kindTempo
	kindCC
	kindAdLibInstrument
	kindAdLibRhythm
)

// Decode parses Standard MIDI File bytes into a Music, per spec.md §4.6.
// initialTempo seeds the song's starting tempo (only its BPM is honoured;
// ticks-per-quarter-note always comes from the file's own header); a nil
// initialTempo defaults to tempo.New().
func Decode(data []byte, flags MIDIFlags, initialTempo *tempo.Tempo) (*song.Music, error) {
	smfData, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, gmerr.NewMalformed("smf file", err.Error())
	}
	if initialTempo == nil {
		initialTempo = tempo.New()
	}

	ticksPerQuarter := 192
	if tf, ok := smfData.TimeFormat.(smf.MetricTicks); ok {
		ticksPerQuarter = int(tf)
	}

	var events []absEvent
	for _, track := range smfData.Tracks {
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			if ae, ok := classify(tick, ev.Message, flags); ok {
				events = append(events, ae)
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

	return build(events, ticksPerQuarter, flags, initialTempo), nil
}

func classify(tick int64, msg smf.Message, flags MIDIFlags) (absEvent, bool) {
	var ch, key, vel, prog, controller, ccValue uint8
	var pb uint16
	var bpm float64
	var raw []byte

	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		if vel == 0 {
			return absEvent{tick, ch, smfMsg{kind: kindNoteOff, key: key}}, true
		}
		return absEvent{tick, ch, smfMsg{kind: kindNoteOn, key: key, vel: vel}}, true
	case msg.GetNoteOff(&ch, &key, &vel):
		return absEvent{tick, ch, smfMsg{kind: kindNoteOff, key: key}}, true
	case msg.GetProgramChange(&ch, &prog):
		return absEvent{tick, ch, smfMsg{kind: kindProgramChange, program: prog}}, true
	case msg.GetControlChange(&ch, &controller, &ccValue):
		return absEvent{tick, ch, smfMsg{kind: kindCC, controller: controller, ccValue: ccValue}}, true
	case msg.GetPitchBend(&ch, nil, &pb):
		return absEvent{tick, ch, smfMsg{kind: kindPitchbend, pitchbend: int16(pb)}}, true
	case msg.GetPolyAfterTouch(&ch, &key, &vel):
		if flags.Has(ShortAftertouch) {
			// The message is actually one data byte (a tolerated format
			// bug); re-interpret it as channel aftertouch per spec.md §4.6.
			return absEvent{tick, ch, smfMsg{kind: kindChannelAfterTouch, vel: vel}}, true
		}
		return absEvent{tick, ch, smfMsg{kind: kindPolyAfterTouch, key: key, vel: vel}}, true
	case msg.GetAfterTouch(&ch, &vel):
		return absEvent{tick, ch, smfMsg{kind: kindChannelAfterTouch, vel: vel}}, true
	case msg.GetMetaTempo(&bpm):
		return absEvent{tick, 0, smfMsg{kind: kindTempo, bpm: bpm}}, true
	case flags.Has(AdLibMUS) && msg.GetMetaSeqData(&raw):
		return classifyAdLibMDI(tick, raw)
	}
	return absEvent{}, false
}

// classifyAdLibMDI decodes the payload of a MIDI meta-event 0x7F ("system
// reset", used as a sequencer-specific meta-event in a MIDI file), per
// decode-midi.cpp's `case 0x7F` under `case 0xFF`. The manufacturer ID
// `00 00 3F` identifies "AdLib MDI"; everything else is an unrecognised
// manufacturer and is skipped, matching the source.
func classifyAdLibMDI(tick int64, raw []byte) (absEvent, bool) {
	const headerLen = 1 + 2 + 2 // mfgId1, mfgId2 (u16be), opcode (u16be)
	if len(raw) < headerLen {
		return absEvent{}, false
	}
	mfgID1 := raw[0]
	mfgID2 := uint16(raw[1])<<8 | uint16(raw[2])
	if mfgID1 != 0 || mfgID2 != 0x3F {
		return absEvent{}, false
	}
	opcode := uint16(raw[3])<<8 | uint16(raw[4])
	payload := raw[headerLen:]

	switch opcode {
	case 1: // Instrument change.
		if len(payload) < 1+bank.AdLibPatchLen {
			return absEvent{}, false
		}
		channel := payload[0]
		if channel > 15 {
			return absEvent{}, false
		}
		var patch [bank.AdLibPatchLen]byte
		copy(patch[:], payload[1:1+bank.AdLibPatchLen])
		return absEvent{tick, channel, smfMsg{kind: kindAdLibInstrument, patchBytes: patch}}, true

	case 2: // Rhythm-mode change.
		if len(payload) < 1 {
			return absEvent{}, false
		}
		return absEvent{tick, 0, smfMsg{kind: kindAdLibRhythm, ccValue: payload[0]}}, true

	default:
		// Opcode 3 (pitchbend range change) and anything else: skipped
		// without being logged, per spec.md's stated Non-goal.
		return absEvent{}, false
	}
}

type channelTrack struct {
	channel     uint8
	percNote    int // -1 for a melodic channel track
	trackIndex  int
	events      []song.TrackEvent
	curTick     int64
	sounding    bool
	channelType song.ChannelType // ChannelUnused until resolved at build's end
	oplPatch    int              // valid once an AdLib MDI instrument change retypes this channel
}

func build(events []absEvent, ticksPerQuarter int, flags MIDIFlags, initialTempo *tempo.Tempo) *song.Music {
	m := song.New()
	m.LoopDest = -1
	m.InitialTempo = tempo.New()
	m.InitialTempo.SetTicksPerQuarterNote(ticksPerQuarter)
	m.InitialTempo.SetBPM(initialTempo.BPM())

	tempoTrack := &channelTrack{channel: 0, percNote: -1, trackIndex: 0}
	channels := make(map[uint8]*channelTrack)
	percTracks := make(map[int]*channelTrack)
	var order []*channelTrack
	order = append(order, tempoTrack)

	trackFor := func(ch uint8, note int) *channelTrack {
		if ch == PercussionChannel && note >= 0 {
			if t, ok := percTracks[note]; ok {
				return t
			}
			t := &channelTrack{channel: ch, percNote: note, trackIndex: len(order)}
			percTracks[note] = t
			order = append(order, t)
			return t
		}
		if t, ok := channels[ch]; ok {
			return t
		}
		t := &channelTrack{channel: ch, percNote: -1, trackIndex: len(order)}
		channels[ch] = t
		order = append(order, t)
		return t
	}

	patchIndex := make(map[song.MIDIPatch]int)
	getPatch := func(p song.MIDIPatch) int {
		if i, ok := patchIndex[p]; ok {
			return i
		}
		i := len(m.Patches)
		m.Patches = append(m.Patches, song.NewMIDIPatch(p))
		patchIndex[p] = i
		return i
	}

	programOf := make(map[uint8]uint8)
	lastTick := int64(0)

	appendTo := func(t *channelTrack, tick int64, ev song.Event) {
		delay := uint32(tick - t.curTick)
		t.events = append(t.events, song.TrackEvent{Delay: delay, Event: ev})
		t.curTick = tick
	}

	for _, ae := range events {
		if ae.tick > lastTick {
			lastTick = ae.tick
		}
		switch ae.msg.kind {
		case kindTempo:
			tp := tempo.New()
			tp.SetTicksPerQuarterNote(ticksPerQuarter)
			tp.SetBPM(ae.msg.bpm)
			if ae.tick == 0 {
				// No events have sounded yet: set the initial tempo
				// directly instead of emitting a TempoEvent, per
				// decode-midi.cpp's `totalDelay == 0` branch.
				m.InitialTempo = tp
			} else {
				appendTo(tempoTrack, ae.tick, song.TempoChange(tp))
			}

		case kindProgramChange:
			programOf[ae.channel] = ae.msg.program

		case kindAdLibInstrument:
			patch := bank.ReadAdLibPatch(ae.msg.patchBytes)
			idx := len(m.Patches)
			m.Patches = append(m.Patches, song.NewOPLPatch(patch))
			t := trackFor(ae.channel, -1)
			t.channelType = song.ChannelOPL
			t.oplPatch = idx

		case kindAdLibRhythm:
			appendTo(tempoTrack, ae.tick, song.Configuration(song.ConfigEnableRhythm, boolToInt(ae.msg.ccValue != 0)))

		case kindCC:
			switch ae.msg.controller {
			case 0x63:
				if !flags.Has(CMFExtensions) {
					break
				}
				t := trackFor(ae.channel, -1)
				baseline := true // CMFExtensions defaults both flags enabled
				newVibrato := ae.msg.ccValue&1 != 0
				newTremolo := ae.msg.ccValue&2 != 0
				if newVibrato != baseline {
					appendTo(t, ae.tick, song.Configuration(song.ConfigEnableDeepVibrato, boolToInt(newVibrato)))
				}
				if newTremolo != baseline {
					appendTo(t, ae.tick, song.Configuration(song.ConfigEnableDeepTremolo, boolToInt(newTremolo)))
				}
			case 0x67:
				t := trackFor(ae.channel, -1)
				appendTo(t, ae.tick, song.Configuration(song.ConfigEnableRhythm, int(ae.msg.ccValue)))
			case 0x68:
				t := trackFor(ae.channel, -1)
				bend := semitonesToPitchbend(float64(ae.msg.ccValue) / 128.0)
				appendTo(t, ae.tick, song.PolyphonicEffect(song.EffectPitchbendChannel, int32(bend)))
			case 0x69:
				t := trackFor(ae.channel, -1)
				bend := semitonesToPitchbend(-float64(ae.msg.ccValue) / 128.0)
				appendTo(t, ae.tick, song.PolyphonicEffect(song.EffectPitchbendChannel, int32(bend)))
			}

		case kindNoteOn:
			if existing, ok := channels[ae.channel]; ok && existing.channelType == song.ChannelOPL {
				milliHertz := NoteToMilliHertz(ae.msg.key)
				velocity := WidenVelocity(ae.msg.vel)
				if existing.sounding {
					appendTo(existing, ae.tick, song.NoteOff())
				}
				existing.sounding = true
				appendTo(existing, ae.tick, song.NoteOn(milliHertz, existing.oplPatch, velocity))
				break
			}
			var patch song.MIDIPatch
			var note int
			if ae.channel == PercussionChannel && !flags.Has(Channel10NoPerc) {
				patch = song.MIDIPatch{Program: ae.msg.key, Percussion: true}
				note = int(ae.msg.key)
			} else {
				patch = song.MIDIPatch{Program: programOf[ae.channel], Percussion: false}
				note = -1
			}
			t := trackFor(ae.channel, note)
			instrument := getPatch(patch)
			milliHertz := NoteToMilliHertz(ae.msg.key)
			velocity := WidenVelocity(ae.msg.vel)
			if t.sounding {
				appendTo(t, ae.tick, song.NoteOff())
			}
			t.sounding = true
			appendTo(t, ae.tick, song.NoteOn(milliHertz, instrument, velocity))

		case kindNoteOff:
			if existing, ok := channels[ae.channel]; ok && existing.channelType == song.ChannelOPL {
				if existing.sounding {
					existing.sounding = false
					appendTo(existing, ae.tick, song.NoteOff())
				}
				break
			}
			var note int
			if ae.channel == PercussionChannel && !flags.Has(Channel10NoPerc) {
				note = int(ae.msg.key)
			} else {
				note = -1
			}
			t := trackFor(ae.channel, note)
			if t.sounding {
				t.sounding = false
				appendTo(t, ae.tick, song.NoteOff())
			}

		case kindPitchbend:
			t := trackFor(ae.channel, -1)
			appendTo(t, ae.tick, song.PolyphonicEffect(song.EffectPitchbendChannel, int32(ae.msg.pitchbend)))

		case kindChannelAfterTouch:
			t := trackFor(ae.channel, -1)
			appendTo(t, ae.tick, song.PolyphonicEffect(song.EffectVolumeChannel, int32(WidenVelocity(ae.msg.vel))))

		case kindPolyAfterTouch:
			note := -1
			if ae.channel == PercussionChannel {
				note = int(ae.msg.key)
			}
			t := trackFor(ae.channel, note)
			milliHertz := NoteToMilliHertz(ae.msg.key)
			appendTo(t, ae.tick, song.SpecificNoteEffect(milliHertz, song.EffectVolume, int32(WidenVelocity(ae.msg.vel))))
		}
	}

	m.TrackInfo = make([]song.TrackInfo, len(order))
	pattern := make(song.Pattern, len(order))
	for _, t := range order {
		ct := t.channelType
		if ct == song.ChannelUnused {
			ct = song.ChannelMIDI
		}
		m.TrackInfo[t.trackIndex] = song.TrackInfo{Type: ct, Channel: int(t.channel)}
		if t.curTick < lastTick {
			t.events = append(t.events, song.TrackEvent{Delay: uint32(lastTick - t.curTick), Event: song.EmptyEvent()})
		}
		pattern[t.trackIndex] = t.events
	}
	m.Patterns = []song.Pattern{pattern}
	m.PatternOrder = []int{0}
	m.TicksPerTrack = uint32(lastTick)

	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NoteToMilliHertz converts a MIDI note number (69 = A4 = 440Hz) to
// milliHertz using twelve-tone equal temperament, per spec.md §4.7.
func NoteToMilliHertz(note uint8) uint32 {
	return freqTable[note]
}

var freqTable = buildFreqTable()

func buildFreqTable() [128]uint32 {
	var t [128]uint32
	for n := 0; n < 128; n++ {
		hz := 440.0 * math.Exp2((float64(n)-69.0)/12.0)
		t[n] = uint32(hz*1000.0 + 0.5)
	}
	return t
}
