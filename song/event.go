package song

import "github.com/retrochip/gamemusic/tempo"

// EventKind tags which variant of Event is populated. Events are modelled
// as a single struct selected by Kind rather than the source library's
// Event/NoteOnEvent/NoteOffEvent/... virtual hierarchy (spec.md §9 design
// note: "Reimplement as a single tagged enum per event variant plus an
// enum-based handler"), which keeps dispatch a type switch instead of a
// chain of dynamic_cast probes.
type EventKind int

const (
	// EventTempo globally changes tempo from this point on.
	EventTempo EventKind = iota
	// EventNoteOn starts a note.
	EventNoteOn
	// EventNoteOff ends the currently playing note on this track.
	EventNoteOff
	// EventSpecificNoteOff names the note it ends; only produced before
	// track-splitting (see split package).
	EventSpecificNoteOff
	// EventSpecificNoteEffect names the note it affects; only produced
	// before track-splitting.
	EventSpecificNoteEffect
	// EventEffect modifies the currently playing note on this track.
	EventEffect
	// EventPolyphonicEffect modifies every note on this track.
	EventPolyphonicEffect
	// EventGoto is a pattern-order jump.
	EventGoto
	// EventConfiguration flips a global or per-chip flag.
	EventConfiguration
)

// EffectType tags which quantity an Effect/PolyphonicEffect event carries.
type EffectType int

const (
	// EffectPitchbendNote carries a new note frequency in milliHertz (used
	// with EventEffect, after track-splitting has resolved which note it
	// applies to).
	EffectPitchbendNote EffectType = iota
	// EffectVolume carries a 0-255 volume level (used with EventEffect).
	EffectVolume
	// EffectPitchbendChannel carries a raw 14-bit MIDI pitchbend value
	// (used with EventPolyphonicEffect, before track-splitting).
	EffectPitchbendChannel
	// EffectVolumeChannel carries a widened 0-255 pressure/volume level
	// (used with EventPolyphonicEffect, before track-splitting).
	EffectVolumeChannel
)

// GotoType tags which kind of pattern-order jump a Goto event performs.
type GotoType int

const (
	GotoNextPattern GotoType = iota
	GotoSpecificOrder
)

// ConfigType tags which global/chip flag a Configuration event flips.
type ConfigType int

const (
	ConfigEmptyEvent ConfigType = iota
	ConfigEnableOPL3
	ConfigEnableDeepTremolo
	ConfigEnableDeepVibrato
	ConfigEnableRhythm
	ConfigEnableWaveSel
)

// Event is the tagged union of every event variant named in spec.md §3.
// Only the fields relevant to Kind are meaningful; the rest are zero.
type Event struct {
	Kind EventKind

	// EventTempo
	Tempo *tempo.Tempo

	// EventNoteOn, EventSpecificNoteOff, EventSpecificNoteEffect
	MilliHertz uint32

	// EventNoteOn
	Instrument int
	Velocity   uint8

	// EventEffect, EventSpecificNoteEffect, EventPolyphonicEffect
	EffectType EffectType
	Data       int32

	// EventGoto
	GotoType    GotoType
	TargetOrder int
	TargetRow   int
	Loop        int

	// EventConfiguration
	ConfigType  ConfigType
	ConfigValue int
}

// NoteOn builds an EventNoteOn.
func NoteOn(milliHertz uint32, instrument int, velocity uint8) Event {
	return Event{Kind: EventNoteOn, MilliHertz: milliHertz, Instrument: instrument, Velocity: velocity}
}

// NoteOff builds an EventNoteOff.
func NoteOff() Event { return Event{Kind: EventNoteOff} }

// SpecificNoteOff builds an EventSpecificNoteOff.
func SpecificNoteOff(milliHertz uint32) Event {
	return Event{Kind: EventSpecificNoteOff, MilliHertz: milliHertz}
}

// SpecificNoteEffect builds an EventSpecificNoteEffect.
func SpecificNoteEffect(milliHertz uint32, effectType EffectType, data int32) Event {
	return Event{Kind: EventSpecificNoteEffect, MilliHertz: milliHertz, EffectType: effectType, Data: data}
}

// Effect builds an EventEffect.
func Effect(effectType EffectType, data int32) Event {
	return Event{Kind: EventEffect, EffectType: effectType, Data: data}
}

// PolyphonicEffect builds an EventPolyphonicEffect.
func PolyphonicEffect(effectType EffectType, data int32) Event {
	return Event{Kind: EventPolyphonicEffect, EffectType: effectType, Data: data}
}

// TempoChange builds an EventTempo.
func TempoChange(t *tempo.Tempo) Event {
	return Event{Kind: EventTempo, Tempo: t}
}

// Goto builds an EventGoto.
func Goto(gotoType GotoType, targetOrder, targetRow, loop int) Event {
	return Event{Kind: EventGoto, GotoType: gotoType, TargetOrder: targetOrder, TargetRow: targetRow, Loop: loop}
}

// Configuration builds an EventConfiguration.
func Configuration(configType ConfigType, value int) Event {
	return Event{Kind: EventConfiguration, ConfigType: configType, ConfigValue: value}
}

// EmptyEvent is the dummy event used to pad a track's trailing silence out
// to ticksPerTrack (spec.md §3's "dummy EmptyEvents pad trailing silence").
func EmptyEvent() Event { return Configuration(ConfigEmptyEvent, 0) }

// IsNoteOff reports whether the event ends a note, either unconditionally
// (EventNoteOff) or by naming the note it ends (EventSpecificNoteOff). Used
// by the merge-tracks dispatch order's tie-break (spec.md §4.2).
func (e Event) IsNoteOff() bool {
	return e.Kind == EventNoteOff || e.Kind == EventSpecificNoteOff
}
