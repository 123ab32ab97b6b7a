package opl

import (
	"github.com/retrochip/gamemusic/song"
	"github.com/retrochip/gamemusic/tempo"
)

// DelayType says whether a Frame's delay is logically measured before or
// after its register writes are actioned, per spec.md §4.4 and
// original_source/src/decode-opl.cpp's DelayType.
type DelayType int

const (
	DelayIsPreData DelayType = iota
	DelayIsPostData
)

// RegisterWrite is one OPL register/value pair destined for one of the two
// possible chips (chip 1 only exists in dual-OPL2/OPL3 captures).
type RegisterWrite struct {
	ChipIndex int
	Reg       byte
	Val       byte
}

// Frame is one unit of the register/value stream the decoder consumes: an
// optional tempo change, zero or more register writes (all simultaneous),
// and the delay to the next frame.
type Frame struct {
	Tempo *tempo.Tempo
	Regs  []RegisterWrite
	Delay uint32
}

// melodicTrackCount is the number of melodic-voice tracks per chip (one per
// OPL channel 0-8); percTrackCount is the five rhythm-mode voices, carried
// once regardless of chip count since rhythm mode only exists on chip 0.
const (
	melodicTrackCount = 9
	percTrackCount    = 5
	tracksPerChip     = melodicTrackCount + percTrackCount // chip 0 only
)

func trackIndexMelodic(chipIndex, oplChannel int) int {
	if chipIndex == 0 {
		return oplChannel
	}
	return tracksPerChip + oplChannel
}

func trackIndexPerc(rhythm int) int { return melodicTrackCount + rhythm }

// decoder holds the shadow register state and pending per-track delays
// while walking a stream of Frames, mirroring original_source's OPLDecoder.
type decoder struct {
	state          [2][256]byte
	lastDelay      []uint32
	delayType      DelayType
	fnumConversion float64
	opl3           bool
}

func bitsChanged(newVal, oldVal, mask byte) bool { return (newVal^oldVal)&mask != 0 }

// Decode converts a register/value stream into a Music, per spec.md §4.4.
// trackCount is melodicTrackCount*chips + percTrackCount; two-chip streams
// (OPL3 dual-OPL2 mode) get trackCount = tracksPerChip + melodicTrackCount.
func Decode(frames []Frame, delayType DelayType, fnumConversion float64, initialTempo *tempo.Tempo, twoChips bool) *song.Music {
	trackCount := tracksPerChip
	if twoChips {
		trackCount += melodicTrackCount
	}

	m := song.New()
	m.LoopDest = -1
	m.InitialTempo = initialTempo.Clone()

	m.TrackInfo = make([]song.TrackInfo, trackCount)
	for c := 0; c < trackCount; c++ {
		switch {
		case c < melodicTrackCount:
			m.TrackInfo[c] = song.TrackInfo{Type: song.ChannelOPL, Channel: c}
		case c < tracksPerChip:
			m.TrackInfo[c] = song.TrackInfo{Type: song.ChannelOPLPerc, Rhythm: song.RhythmTagFromPercIndex(c - melodicTrackCount)}
		default:
			m.TrackInfo[c] = song.TrackInfo{Type: song.ChannelOPL, Channel: c - percTrackCount}
		}
	}

	pattern := make(song.Pattern, trackCount)
	m.Patterns = []song.Pattern{pattern}
	m.PatternOrder = []int{0}

	d := &decoder{lastDelay: make([]uint32, trackCount), delayType: delayType, fnumConversion: fnumConversion}
	lastTempo := initialTempo

	var totalDelay uint32
	for _, f := range frames {
		if delayType == DelayIsPreData {
			for t := range d.lastDelay {
				d.lastDelay[t] += f.Delay
			}
		}
		totalDelay += f.Delay

		if f.Tempo != nil && !f.Tempo.Equal(lastTempo) {
			d.appendEvent(&pattern[0], 0, song.TempoChange(f.Tempo))
			lastTempo = f.Tempo
		}

		for _, rw := range f.Regs {
			d.applyRegister(m, &pattern, rw)
		}

		if delayType == DelayIsPostData {
			for t := range d.lastDelay {
				d.lastDelay[t] += f.Delay
			}
		}
	}

	for t := range pattern {
		if d.lastDelay[t] != 0 && len(pattern[t]) > 0 {
			pattern[t] = append(pattern[t], song.TrackEvent{Delay: d.lastDelay[t], Event: song.EmptyEvent()})
			d.lastDelay[t] = 0
		}
	}

	m.TicksPerTrack = totalDelay
	return m
}

func (d *decoder) appendEvent(track *song.Track, trackIndex int, ev song.Event) {
	*track = append(*track, song.TrackEvent{Delay: d.lastDelay[trackIndex], Event: ev})
	d.lastDelay[trackIndex] = 0
}

func (d *decoder) rhythmOn() bool { return d.state[0][0xBD]&0x20 != 0 }

func (d *decoder) applyRegister(m *song.Music, pattern *song.Pattern, rw RegisterWrite) {
	old := d.state[rw.ChipIndex][rw.Reg]
	d.state[rw.ChipIndex][rw.Reg] = rw.Val

	switch {
	case rw.Reg == 0xBD:
		d.handleRhythmRegister(m, pattern, rw, old)
	case rw.Reg == 0x01:
		if rw.ChipIndex == 0 && bitsChanged(rw.Val, old, 0x20) {
			d.appendEvent(&(*pattern)[0], 0, song.Configuration(song.ConfigEnableWaveSel, boolToInt(rw.Val&0x20 != 0)))
		}
	case rw.Reg == 0x05:
		if rw.ChipIndex == 0 && bitsChanged(rw.Val, old, 0x01) {
			newState := rw.Val&0x01 != 0
			if newState != d.opl3 {
				d.opl3 = newState
				d.appendEvent(&(*pattern)[0], 0, song.Configuration(song.ConfigEnableOPL3, boolToInt(newState)))
			}
		}
	case rw.Reg < 0xA0 || rw.Reg >= 0xE0:
		d.handleOperatorRegister(m, pattern, rw, old)
	case rw.Reg < 0xC0:
		d.handleFnumRegister(m, pattern, rw, old)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// handleOperatorRegister deals with registers 0x20-0x95 (per-operator) which
// only matter for volume/pitch follow-ups; the bulk of patch construction
// happens lazily in buildPatch when a note-on fires.
func (d *decoder) handleOperatorRegister(m *song.Music, pattern *song.Pattern, rw RegisterWrite, old byte) {
	// Output-level (volume) changes on an already-sounding note are not
	// modelled as separate effect events in this codec: the decoder rebuilds
	// the patch, including level, at the next note-on instead of emitting
	// incremental volume-change events.
	_ = old
}

// handleFnumRegister deals with the paired 0xA0-0xA8 (fnum low byte) and
// 0xB0-0xB8 (keyon, block, fnum high bits) registers that together drive one
// melodic OPL channel's note-on/note-off/pitchbend, per
// original_source/src/decode-opl.cpp's case 0xA0/case 0xB0 handling. Writes
// to channels 6-8 while rhythm mode is enabled are ignored here (those
// channels belong to the rhythm voices instead, handled by
// handleRhythmRegister), matching the source exactly: its own preamble
// forces noteon=false/track=-1 for that combination, so its switch's
// rhythm-mode branch for 0xB0 (guarded by `if (noteon && ...)`) can never
// fire either.
func (d *decoder) handleFnumRegister(m *song.Music, pattern *song.Pattern, rw RegisterWrite, old byte) {
	oplChannel := int(rw.Reg & 0x0F)
	if oplChannel > 8 {
		return
	}
	if d.rhythmOn() && rw.ChipIndex == 0 && oplChannel > 5 {
		return
	}
	track := trackIndexMelodic(rw.ChipIndex, oplChannel)

	if rw.Reg <= 0xA8 {
		// Fnum low byte: only ever a pitchbend on an already-sounding note,
		// since the keyon bit lives in the paired 0xB0-0xB8 register.
		b0 := d.state[rw.ChipIndex][0xB0|byte(oplChannel)]
		if b0&0x20 != 0 && bitsChanged(rw.Val, old, 0xFF) {
			d.createOrUpdatePitchbend(&(*pattern)[track], track, rw.Val, b0)
		}
		return
	}

	// 0xB0-0xB8: keyon bit, block, and fnum high bits.
	if bitsChanged(rw.Val, old, 0x20) {
		if rw.Val&0x20 != 0 {
			d.createNoteOn(m, &(*pattern)[track], track, rw.ChipIndex, oplChannel, song.RhythmMelodic, rw.Val)
		} else {
			d.createNoteOff(&(*pattern)[track], track)
		}
	} else if rw.Val&0x20 != 0 && bitsChanged(rw.Val, old, 0x1F) {
		a0 := d.state[rw.ChipIndex][0xA0|byte(oplChannel)]
		d.createOrUpdatePitchbend(&(*pattern)[track], track, a0, rw.Val)
	}
}

func (d *decoder) handleRhythmRegister(m *song.Music, pattern *song.Pattern, rw RegisterWrite, old byte) {
	if rw.Val&0x20 != 0 {
		if bitsChanged(rw.Val, old, 0x20) {
			d.appendEvent(&(*pattern)[0], 0, song.Configuration(song.ConfigEnableRhythm, 1))
		}
		for rhythm := 0; rhythm < 5; rhythm++ {
			keyonBit := byte(1 << uint(rhythm))
			if (bitsChanged(rw.Val, old, 0x20) && rw.Val&keyonBit != 0) || bitsChanged(rw.Val, old, keyonBit) {
				track := trackIndexPerc(rhythm)
				oplChannel := rhythmOperatorChannel(rhythm)
				if rw.Val&keyonBit != 0 {
					d.createNoteOn(m, &(*pattern)[track], track, rw.ChipIndex, oplChannel,
						song.RhythmTagFromPercIndex(rhythm), d.state[rw.ChipIndex][0xB0|byte(oplChannel)])
				} else {
					d.createNoteOff(&(*pattern)[track], track)
				}
			}
		}
	} else if bitsChanged(rw.Val, old, 0x20) {
		for rhythm := 0; rhythm < 5; rhythm++ {
			track := trackIndexPerc(rhythm)
			if old&(1<<uint(rhythm)) != 0 {
				d.createNoteOff(&(*pattern)[track], track)
			}
		}
		d.appendEvent(&(*pattern)[0], 0, song.Configuration(song.ConfigEnableRhythm, 0))
	}

	if bitsChanged(rw.Val, old, 0x80) {
		v := boolToInt(rw.Val&0x80 != 0)
		if rw.ChipIndex != 0 {
			v |= 2
		}
		d.appendEvent(&(*pattern)[0], 0, song.Configuration(song.ConfigEnableDeepTremolo, v))
	}
	if bitsChanged(rw.Val, old, 0x40) {
		v := boolToInt(rw.Val&0x40 != 0)
		if rw.ChipIndex != 0 {
			v |= 2
		}
		d.appendEvent(&(*pattern)[0], 0, song.Configuration(song.ConfigEnableDeepVibrato, v))
	}
}

// rhythmOperatorChannel maps a rhythm voice (0=HiHat..4=BassDrum) to the OPL
// channel number whose operator pair its sound comes from, per
// original_source/src/decode-opl.cpp's switch in the 0xBD handler.
func rhythmOperatorChannel(rhythm int) int {
	switch rhythm {
	case 0: // HiHat: modulator of channel 7
		return 7
	case 1: // TopCymbal: carrier of channel 8
		return 8
	case 2: // TomTom: modulator of channel 8
		return 8
	case 3: // SnareDrum: carrier of channel 7
		return 7
	default: // BassDrum: both operators of channel 6
		return 6
	}
}

func (d *decoder) buildPatch(chipIndex, oplChannel int) song.OPLPatch {
	var p song.OPLPatch
	readOp := func(base int) song.Operator {
		cm := d.state[chipIndex][0x20|base]
		kl := d.state[chipIndex][0x40|base]
		ad := d.state[chipIndex][0x60|base]
		sr := d.state[chipIndex][0x80|base]
		ws := d.state[chipIndex][0xE0|base]
		return song.Operator{
			EnableTremolo: cm&0x80 != 0,
			EnableVibrato: cm&0x40 != 0,
			EnableSustain: cm&0x20 != 0,
			EnableKSR:     cm&0x10 != 0,
			FreqMult:      cm & 0x0F,
			ScaleLevel:    kl >> 6,
			OutputLevel:   kl & 0x3F,
			AttackRate:    ad >> 4,
			DecayRate:     ad & 0x0F,
			SustainRate:   sr >> 4,
			ReleaseRate:   sr & 0x0F,
			WaveSelect:    ws & 0x07,
		}
	}
	modOffset, carOffset := operatorOffsets(oplChannel)
	p.M = readOp(modOffset)
	p.C = readOp(carOffset)
	fc := d.state[chipIndex][0xC0|byte(oplChannel)]
	p.Feedback = (fc >> 1) & 0x07
	p.Connection = fc&0x01 != 0
	p.Rhythm = song.RhythmMelodic
	return p
}

// operatorOffsets returns the modulator/carrier operator-register offsets
// for an OPL2 channel 0-8, per the chip's fixed 3-groups-of-6 layout.
func operatorOffsets(oplChannel int) (mod, car int) {
	group := oplChannel / 3
	slot := oplChannel % 3
	mod = group*8 + slot
	car = mod + 3
	return mod, car
}

func savePatch(m *song.Music, p song.OPLPatch) int {
	for i, existing := range m.Patches {
		if existing.Kind == song.PatchOPL && existing.OPL == p {
			return i
		}
	}
	idx := len(m.Patches)
	m.Patches = append(m.Patches, song.NewOPLPatch(p))
	return idx
}

func (d *decoder) createNoteOn(m *song.Music, track *song.Track, trackIndex, chipIndex, oplChannel int, rhythm song.RhythmTag, b0val byte) {
	patch := d.buildPatch(chipIndex, oplChannel)
	patch.Rhythm = rhythm
	instrument := savePatch(m, patch)

	fnum := (int(b0val&0x03) << 8) | int(d.state[chipIndex][0xA0|byte(oplChannel)])
	block := int(b0val>>2) & 0x07
	milliHertz := FnumToMilliHertz(fnum, block, d.fnumConversion)

	var velocity uint8
	if rhythm.UsesModulatorOnly() {
		velocity = DefaultVelocity
	} else {
		_, carOffset := operatorOffsets(oplChannel)
		curVol := d.state[chipIndex][0x40|byte(carOffset)] & 0x3F
		velocity = LogVolumeToLinVelocity(63-int(curVol), 63)
	}

	d.appendEvent(track, trackIndex, song.NoteOn(milliHertz, instrument, velocity))
}

func (d *decoder) createNoteOff(track *song.Track, trackIndex int) {
	d.appendEvent(track, trackIndex, song.NoteOff())
}

// createOrUpdatePitchbend edits a same-instant pending pitchbend event in
// place (an fnum's low/high bits often arrive as two separate register
// writes with no delay between them) instead of emitting two events for one
// logical pitch change, per original_source/src/decode-opl.cpp.
func (d *decoder) createOrUpdatePitchbend(track *song.Track, trackIndex int, a0val, b0val byte) {
	fnum := (int(b0val&0x03) << 8) | int(a0val)
	block := int(b0val>>2) & 0x07
	milliHertz := int32(FnumToMilliHertz(fnum, block, d.fnumConversion))

	if d.lastDelay[trackIndex] == 0 {
		t := *track
		for i := len(t) - 1; i >= 0; i-- {
			if t[i].Event.Kind == song.EventEffect && t[i].Event.EffectType == song.EffectPitchbendNote {
				t[i].Event.Data = milliHertz
				return
			}
			if t[i].Delay != 0 {
				break
			}
		}
	}

	d.appendEvent(track, trackIndex, song.Effect(song.EffectPitchbendNote, milliHertz))
}
