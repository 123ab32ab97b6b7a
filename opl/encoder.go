package opl

import (
	"github.com/retrochip/gamemusic/gmerr"
	"github.com/retrochip/gamemusic/song"
)

// WriteFlags are the OPLWriteFlags named in spec.md §4.5: bitmask options
// controlling how the encoder emits register writes, modelled as a bitmask
// the way the teacher models NoteFlags.
type WriteFlags int

const (
	WriteFlagNone WriteFlags = 0
	// WriteFlagOPL3 emits the 0x05 OPL3-enable register before anything
	// else, for containers that always target a specific chip generation.
	WriteFlagOPL3 WriteFlags = 1 << iota
)

// Encoder converts a Music (already split to one note per track, per
// spec.md §4.6) into a stream of Frames carrying OPL register writes, the
// inverse of Decode. It mirrors original_source/src/encode-opl.cpp's
// OPLEncoder in spirit, but since that file only wraps a converter class
// absent from the retrieved source, the register-emission logic here is
// derived directly from decode-opl.cpp's documented register semantics
// (each event type writes back exactly the registers the decoder reads).
type Encoder struct {
	state          [2][256]byte
	fnumConversion float64
	flags          WriteFlags
	frames         []Frame
	pending        []RegisterWrite
	pendingTempo   *song.Event
}

// NewEncoder prepares an Encoder for the given fnum conversion constant and
// write flags.
func NewEncoder(fnumConversion float64, flags WriteFlags) *Encoder {
	e := &Encoder{fnumConversion: fnumConversion, flags: flags}
	if flags&WriteFlagOPL3 != 0 {
		e.write(0, 0x05, 0x01)
	}
	return e
}

// Encode walks music in OrderRowTrack order (matching the source's
// Order_Row_Track) and returns the resulting Frame stream.
func Encode(music *song.Music, fnumConversion float64, flags WriteFlags) ([]Frame, error) {
	e := NewEncoder(fnumConversion, flags)
	var convErr error
	h := &encodeHandler{e: e, music: music, err: &convErr}
	song.Dispatch(music, song.OrderRowTrack, h)
	e.flushDelay(0)
	if convErr != nil {
		return nil, convErr
	}
	return e.frames, nil
}

type encodeHandler struct {
	e         *Encoder
	music     *song.Music
	err       *error
	curDelay  uint32
}

func (h *encodeHandler) HandleEvent(delay uint32, trackIndex, patternIndex int, event song.Event) {
	if *h.err != nil {
		return
	}
	h.e.flushDelay(delay)
	if err := h.e.handleEvent(h.music, trackIndex, event); err != nil {
		*h.err = err
	}
}

func (h *encodeHandler) EndOfTrack(remaining uint32)   { h.e.flushDelay(remaining) }
func (h *encodeHandler) EndOfPattern(remaining uint32) { h.e.flushDelay(remaining) }

// flushDelay appends a pending-register frame tagged with the accumulated
// delay, starting a fresh empty pending batch.
func (e *Encoder) flushDelay(delay uint32) {
	if delay == 0 && len(e.pending) == 0 && e.pendingTempo == nil {
		return
	}
	f := Frame{Delay: delay, Regs: e.pending}
	if e.pendingTempo != nil {
		f.Tempo = e.pendingTempo.Tempo
		e.pendingTempo = nil
	}
	e.frames = append(e.frames, f)
	e.pending = nil
}

func (e *Encoder) write(chipIndex int, reg, val byte) {
	e.state[chipIndex][reg] = val
	e.pending = append(e.pending, RegisterWrite{ChipIndex: chipIndex, Reg: reg, Val: val})
}

func (e *Encoder) handleEvent(music *song.Music, trackIndex int, event song.Event) error {
	info := music.TrackInfo[trackIndex]
	switch event.Kind {
	case song.EventTempo:
		e.pendingTempo = &event
	case song.EventNoteOn:
		return e.noteOn(music, trackIndex, info, event)
	case song.EventNoteOff:
		e.noteOff(info)
	case song.EventEffect:
		if event.EffectType == song.EffectPitchbendNote {
			e.pitchbend(info, uint32(event.Data))
		}
	case song.EventConfiguration:
		e.configuration(event)
	}
	return nil
}

func (e *Encoder) chipAndChannel(info song.TrackInfo) (chipIndex, oplChannel int) {
	if info.Type == song.ChannelOPLPerc {
		return 0, rhythmOperatorChannel(info.Rhythm.PercIndex())
	}
	if info.Channel < melodicTrackCount {
		return 0, info.Channel
	}
	return 1, info.Channel - melodicTrackCount
}

func (e *Encoder) writePatch(chipIndex, oplChannel int, p song.OPLPatch) {
	modOffset, carOffset := operatorOffsets(oplChannel)
	writeOp := func(offset int, op song.Operator) {
		cm := byte(boolToInt(op.EnableTremolo))<<7 | byte(boolToInt(op.EnableVibrato))<<6 |
			byte(boolToInt(op.EnableSustain))<<5 | byte(boolToInt(op.EnableKSR))<<4 | (op.FreqMult & 0x0F)
		e.write(chipIndex, 0x20|byte(offset), cm)
		e.write(chipIndex, 0x40|byte(offset), op.ScaleLevel<<6|(op.OutputLevel&0x3F))
		e.write(chipIndex, 0x60|byte(offset), op.AttackRate<<4|(op.DecayRate&0x0F))
		e.write(chipIndex, 0x80|byte(offset), op.SustainRate<<4|(op.ReleaseRate&0x0F))
		e.write(chipIndex, 0xE0|byte(offset), op.WaveSelect&0x07)
	}
	writeOp(modOffset, p.M)
	writeOp(carOffset, p.C)
	var conn byte
	if p.Connection {
		conn = 1
	}
	e.write(chipIndex, 0xC0|byte(oplChannel), p.Feedback<<1|conn)
}

func (e *Encoder) noteOn(music *song.Music, trackIndex int, info song.TrackInfo, event song.Event) error {
	if event.Instrument < 0 || event.Instrument >= len(music.Patches) {
		return gmerr.NewBadPatchType(trackIndex, "opl", "out of range")
	}
	patch := music.Patches[event.Instrument]
	if patch.Kind != song.PatchOPL {
		return gmerr.NewBadPatchType(trackIndex, "opl", patch.Kind.String())
	}
	chipIndex, oplChannel := e.chipAndChannel(info)
	e.writePatch(chipIndex, oplChannel, patch.OPL)

	fnum, block := MilliHertzToFnum(event.MilliHertz, e.fnumConversion)
	e.write(chipIndex, 0xA0|byte(oplChannel), byte(fnum&0xFF))

	if info.Type == song.ChannelOPLPerc {
		b0 := byte(fnum>>8)&0x03 | byte(block)<<2
		e.write(chipIndex, 0xB0|byte(oplChannel), b0)
		bd := e.state[0][0xBD] | 0x20 | (1 << uint(info.Rhythm.PercIndex()))
		e.write(0, 0xBD, bd)
	} else {
		b0 := byte(fnum>>8)&0x03 | byte(block)<<2 | 0x20
		e.write(chipIndex, 0xB0|byte(oplChannel), b0)
	}
	return nil
}

func (e *Encoder) noteOff(info song.TrackInfo) {
	chipIndex, oplChannel := e.chipAndChannel(info)
	if info.Type == song.ChannelOPLPerc {
		bd := e.state[0][0xBD] &^ (1 << uint(info.Rhythm.PercIndex()))
		e.write(0, 0xBD, bd)
	} else {
		b0 := e.state[chipIndex][0xB0|byte(oplChannel)] &^ 0x20
		e.write(chipIndex, 0xB0|byte(oplChannel), b0)
	}
}

func (e *Encoder) pitchbend(info song.TrackInfo, milliHertz uint32) {
	chipIndex, oplChannel := e.chipAndChannel(info)
	fnum, block := MilliHertzToFnum(milliHertz, e.fnumConversion)
	e.write(chipIndex, 0xA0|byte(oplChannel), byte(fnum&0xFF))
	keyon := e.state[chipIndex][0xB0|byte(oplChannel)] & 0x20
	b0 := byte(fnum>>8)&0x03 | byte(block)<<2 | keyon
	e.write(chipIndex, 0xB0|byte(oplChannel), b0)
}

func (e *Encoder) configuration(event song.Event) {
	switch event.ConfigType {
	case song.ConfigEnableWaveSel:
		cur := e.state[0][0x01]
		if event.ConfigValue != 0 {
			cur |= 0x20
		} else {
			cur &^= 0x20
		}
		e.write(0, 0x01, cur)
	case song.ConfigEnableOPL3:
		chipIndex := 0
		if event.ConfigValue&2 != 0 {
			chipIndex = 1
		}
		var v byte
		if event.ConfigValue&1 != 0 {
			v = 0x01
		}
		e.write(chipIndex, 0x05, v)
	case song.ConfigEnableRhythm:
		cur := e.state[0][0xBD]
		if event.ConfigValue != 0 {
			cur |= 0x20
		} else {
			cur &^= 0x20
		}
		e.write(0, 0xBD, cur)
	case song.ConfigEnableDeepTremolo:
		chipIndex := 0
		if event.ConfigValue&2 != 0 {
			chipIndex = 1
		}
		cur := e.state[chipIndex][0xBD]
		if event.ConfigValue&1 != 0 {
			cur |= 0x80
		} else {
			cur &^= 0x80
		}
		e.write(chipIndex, 0xBD, cur)
	case song.ConfigEnableDeepVibrato:
		chipIndex := 0
		if event.ConfigValue&2 != 0 {
			chipIndex = 1
		}
		cur := e.state[chipIndex][0xBD]
		if event.ConfigValue&1 != 0 {
			cur |= 0x40
		} else {
			cur &^= 0x40
		}
		e.write(chipIndex, 0xBD, cur)
	}
}
