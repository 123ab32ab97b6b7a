// Package song holds the in-memory song representation shared by every
// codec in this module: patches, per-track channel assignments, patterns of
// tracks of timed events, and the tempo that drives them. It is the
// "intermediate song representation" named in spec.md §1 item 1 and §3.
package song

import (
	"github.com/retrochip/gamemusic/gmerr"
	"github.com/retrochip/gamemusic/tempo"
)

// RhythmTag identifies which OPL rhythm-mode voice a patch plays, or
// Melodic for a normal melodic instrument. The numeric order here matches
// the bit order of OPL register 0xBD (bit4=BD down to bit0=HH, see
// spec.md §6's "rhythm-mode register is 0xBD" note) rather than spec.md
// §3's prose listing order — see SPEC_FULL.md §5 for why the decoder and
// encoder need to agree on a single canonical order and this is the one
// grounded in the register layout itself.
type RhythmTag int

const (
	RhythmMelodic RhythmTag = iota
	RhythmHiHat
	RhythmTopCymbal
	RhythmTomTom
	RhythmSnareDrum
	RhythmBassDrum
)

func (r RhythmTag) String() string {
	switch r {
	case RhythmMelodic:
		return "melodic"
	case RhythmHiHat:
		return "hi-hat"
	case RhythmTopCymbal:
		return "top-cymbal"
	case RhythmTomTom:
		return "tom-tom"
	case RhythmSnareDrum:
		return "snare-drum"
	case RhythmBassDrum:
		return "bass-drum"
	default:
		return "unknown-rhythm"
	}
}

// PercIndex returns the 0-4 rhythm-slot index used to address
// TrackInfo/channel tables for the five percussion voices, matching the bit
// position within OPL register 0xBD (bit 4=BD .. bit 0=HH). Panics if r is
// RhythmMelodic, which has no percussion slot.
func (r RhythmTag) PercIndex() int {
	switch r {
	case RhythmHiHat:
		return 0
	case RhythmTopCymbal:
		return 1
	case RhythmTomTom:
		return 2
	case RhythmSnareDrum:
		return 3
	case RhythmBassDrum:
		return 4
	default:
		panic("song: RhythmMelodic has no percussion slot")
	}
}

// RhythmTagFromPercIndex is the inverse of RhythmTag.PercIndex.
func RhythmTagFromPercIndex(i int) RhythmTag {
	switch i {
	case 0:
		return RhythmHiHat
	case 1:
		return RhythmTopCymbal
	case 2:
		return RhythmTomTom
	case 3:
		return RhythmSnareDrum
	case 4:
		return RhythmBassDrum
	default:
		panic("song: percussion index out of range")
	}
}

// UsesModulatorOnly reports whether this rhythm voice sounds through its
// modulator operator alone (HiHat, TomTom, and the modulator half of
// BassDrum); SnareDrum and TopCymbal sound through the carrier alone, and
// BassDrum additionally uses its carrier, so it is not reported here.
func (r RhythmTag) UsesModulatorOnly() bool {
	switch r {
	case RhythmHiHat, RhythmTomTom:
		return true
	default:
		return false
	}
}

// UsesCarrierOnly reports whether this rhythm voice sounds through its
// carrier operator alone.
func (r RhythmTag) UsesCarrierOnly() bool {
	switch r {
	case RhythmSnareDrum, RhythmTopCymbal:
		return true
	default:
		return false
	}
}

// Operator holds the 12 per-operator OPL fields.
type Operator struct {
	EnableTremolo bool
	EnableVibrato bool
	EnableSustain bool
	EnableKSR     bool
	FreqMult      uint8 // 0-15
	ScaleLevel    uint8 // 0-3
	OutputLevel   uint8 // 0-63, 0 = loudest
	AttackRate    uint8 // 0-15
	DecayRate     uint8 // 0-15
	SustainRate   uint8 // 0-15
	ReleaseRate   uint8 // 0-15
	WaveSelect    uint8 // 0-7
}

// OPLPatch is a two-operator OPL instrument plus the channel-level feedback
// and connection (FM vs additive) and an optional rhythm tag.
type OPLPatch struct {
	M, C       Operator
	Feedback   uint8 // 0-7
	Connection bool
	Rhythm     RhythmTag
}

// MIDIPatch is a General MIDI program plus a percussion flag for patches
// allocated from a channel-10 percussion note.
type MIDIPatch struct {
	Program    uint8 // 0-127
	Percussion bool
}

// PCMPatch is a sampled instrument.
type PCMPatch struct {
	SampleRate    int
	BitDepth      int // 8 or 16
	Channels      int // 1 or 2
	LoopStart     int
	LoopEnd       int
	DefaultVolume uint8 // 0-255
	Data          []byte
}

// PatchKind tags which variant of Patch is populated.
type PatchKind int

const (
	PatchEmpty PatchKind = iota
	PatchOPL
	PatchMIDI
	PatchPCM
)

func (k PatchKind) String() string {
	switch k {
	case PatchEmpty:
		return "empty"
	case PatchOPL:
		return "opl"
	case PatchMIDI:
		return "midi"
	case PatchPCM:
		return "pcm"
	default:
		return "unknown-patch"
	}
}

// Patch is the tagged union of instrument kinds referenced by NoteOn events,
// replacing the source library's virtual Patch/PatchOPL/PatchMIDI/PatchPCM
// class hierarchy (spec.md §9 design note) with a single struct selected by
// Kind.
type Patch struct {
	Kind PatchKind
	OPL  OPLPatch
	MIDI MIDIPatch
	PCM  PCMPatch
}

// NewOPLPatch wraps an OPLPatch as a Patch.
func NewOPLPatch(p OPLPatch) Patch { return Patch{Kind: PatchOPL, OPL: p} }

// NewMIDIPatch wraps a MIDIPatch as a Patch.
func NewMIDIPatch(p MIDIPatch) Patch { return Patch{Kind: PatchMIDI, MIDI: p} }

// NewPCMPatch wraps a PCMPatch as a Patch.
func NewPCMPatch(p PCMPatch) Patch { return Patch{Kind: PatchPCM, PCM: p} }

// ChannelType names what kind of hardware voice a track drives.
type ChannelType int

const (
	ChannelUnused ChannelType = iota
	ChannelOPL
	ChannelOPLPerc
	ChannelMIDI
	ChannelPCM
)

func (c ChannelType) String() string {
	switch c {
	case ChannelUnused:
		return "unused"
	case ChannelOPL:
		return "opl"
	case ChannelOPLPerc:
		return "opl-perc"
	case ChannelMIDI:
		return "midi"
	case ChannelPCM:
		return "pcm"
	default:
		return "unknown-channel"
	}
}

// TrackInfo describes one track's target voice. Channel is meaningful for
// ChannelOPL (0-8), ChannelMIDI (0-15), and ChannelPCM (an implementation
// defined channel index); Rhythm is meaningful for ChannelOPLPerc.
type TrackInfo struct {
	Type    ChannelType
	Channel int
	Rhythm  RhythmTag
}

// TrackEvent pairs a delay (in ticks, before the event) with the event
// itself. The event is instantaneous; a track's absolute time at any point
// is the running sum of delays up to and including that point.
type TrackEvent struct {
	Delay uint32
	Event Event
}

// Track is one instrument voice's timeline within a Pattern.
type Track []TrackEvent

// TotalDelay sums every TrackEvent.Delay on the track.
func (t Track) TotalDelay() uint32 {
	var sum uint32
	for _, te := range t {
		sum += te.Delay
	}
	return sum
}

// Pattern is one track per TrackInfo entry, indices aligned.
type Pattern []Track

// Music owns the whole song: patches, track targets, patterns, playback
// order, and tempo, per spec.md §3.
type Music struct {
	Patches       []Patch
	TrackInfo     []TrackInfo
	Patterns      []Pattern
	PatternOrder  []int
	LoopDest      int // index into PatternOrder, or -1
	InitialTempo  *tempo.Tempo
	TicksPerTrack uint32
	Attributes    map[string]string
}

// New returns an empty Music with no loop destination and a default tempo.
func New() *Music {
	return &Music{
		LoopDest:     -1,
		InitialTempo: tempo.New(),
		Attributes:   make(map[string]string),
	}
}

// Validate checks the invariants listed in spec.md §3. It is not called
// implicitly by any codec; callers that want to assert a Music is
// well-formed (e.g. after hand-building one, or after a lossy conversion)
// call it explicitly.
func (m *Music) Validate() error {
	for _, idx := range m.PatternOrder {
		if idx < 0 || idx >= len(m.Patterns) {
			return gmerr.NewMalformed("patternOrder[i]", idx)
		}
	}
	for _, p := range m.Patterns {
		if len(p) != len(m.TrackInfo) {
			return gmerr.NewMalformed("pattern track count", len(p))
		}
	}
	for pi, p := range m.Patterns {
		for ti, t := range p {
			if t.TotalDelay() != m.TicksPerTrack {
				return gmerr.NewMalformed("track total delay", map[string]any{
					"pattern": pi, "track": ti, "got": t.TotalDelay(), "want": m.TicksPerTrack,
				})
			}
		}
	}
	if m.LoopDest != -1 && (m.LoopDest < 0 || m.LoopDest >= len(m.PatternOrder)) {
		return gmerr.NewMalformed("loopDest", m.LoopDest)
	}
	for pi, p := range m.Patterns {
		for ti, t := range p {
			playing := false
			for _, te := range t {
				if te.Event.Kind == EventNoteOn {
					if playing {
						return gmerr.NewMalformed("consecutive NoteOn without NoteOff", map[string]any{"pattern": pi, "track": ti})
					}
					playing = true
					if int(te.Event.Instrument) >= len(m.Patches) {
						return gmerr.NewMalformed("NoteOn.instrument", te.Event.Instrument)
					}
				} else if te.Event.Kind == EventNoteOff {
					playing = false
				}
			}
		}
	}
	return nil
}
