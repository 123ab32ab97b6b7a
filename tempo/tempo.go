// Package tempo implements the single time base shared by every format in
// this library: a Tempo is, at its core, one floating-point number
// (microseconds per tick) that can be set or read back as Hertz,
// milliseconds-per-tick, beats-per-minute, or a tracker-style speed/tempo
// pair, without ever losing the ability to round-trip through any of those
// units.
package tempo

// Tempo holds the song's current time base plus the signature fields that
// give a tick musical meaning. usPerTick is the only field the setters
// below actually mutate; ticksPerBeat/beatsPerBar/beatLength describe how
// ticks group into beats and bars and are set independently.
type Tempo struct {
	usPerTick    float64
	ticksPerBeat int
	beatsPerBar  int
	beatLength   int

	// lastModuleSpeed caches the "speed" half of the last (speed, tempo)
	// pair passed to SetModule, so ModuleSpeed/ModuleTempo can recover both
	// halves of the pair even though usPerTick alone can't distinguish
	// every (speed, tempo) combination that produces it. Defaults to 6,
	// the common tracker default, until SetModule is called.
	lastModuleSpeed int
}

// DefaultTicksPerBeat matches the Standard MIDI File default of 192 ticks
// per quarter note referenced in spec.md §6, scaled down to a more common
// internal default of 4 (one tick per sixteenth note) used by the module
// tempo formulas below; callers working with SMF directly should call
// SetTicksPerQuarterNote(192) (or whatever the file's header specifies).
const DefaultTicksPerBeat = 4

// DefaultUsPerQuarterNote is the Standard MIDI File default tempo (120 BPM)
// named in spec.md §6.
const DefaultUsPerQuarterNote = 500000

// New returns a Tempo at the default 120 BPM / ticksPerBeat=DefaultTicksPerBeat.
func New() *Tempo {
	t := &Tempo{
		ticksPerBeat:    DefaultTicksPerBeat,
		beatsPerBar:     4,
		beatLength:      4,
		lastModuleSpeed: 6,
	}
	t.SetBPM(120)
	return t
}

// TicksPerBeat returns the number of ticks in one beat.
func (t *Tempo) TicksPerBeat() int { return t.ticksPerBeat }

// BeatsPerBar returns the number of beats in one bar.
func (t *Tempo) BeatsPerBar() int { return t.beatsPerBar }

// BeatLength returns the note length assigned to one beat (e.g. 4 for a
// quarter note).
func (t *Tempo) BeatLength() int { return t.beatLength }

// SetBeatsPerBar sets the bar signature without touching usPerTick.
func (t *Tempo) SetBeatsPerBar(n int) { t.beatsPerBar = n }

// UsPerTick returns the current time base in microseconds per tick.
func (t *Tempo) UsPerTick() float64 { return t.usPerTick }

// FramesPerTick is an informational derived value: ticks expressed against
// a 1000 Hz "frame" clock, i.e. milliseconds per tick.
func (t *Tempo) FramesPerTick() float64 { return t.usPerTick / 1000.0 }

// SetHertz sets usPerTick so that one tick takes 1/hz seconds.
func (t *Tempo) SetHertz(hz float64) { t.usPerTick = 1_000_000.0 / hz }

// Hertz returns the tick rate in Hertz.
func (t *Tempo) Hertz() float64 { return 1_000_000.0 / t.usPerTick }

// SetMsPerTick sets usPerTick directly from a milliseconds-per-tick value.
func (t *Tempo) SetMsPerTick(ms float64) { t.usPerTick = ms * 1000.0 }

// MsPerTick returns the current tick length in milliseconds.
func (t *Tempo) MsPerTick() float64 { return t.usPerTick / 1000.0 }

// SetBPM sets usPerTick so that ticksPerBeat ticks occupy one beat of a
// song running at the given beats-per-minute.
func (t *Tempo) SetBPM(bpm float64) {
	t.usPerTick = 60_000_000.0 / (bpm * float64(t.ticksPerBeat))
}

// BPM returns the tempo in beats per minute, given the current ticksPerBeat.
func (t *Tempo) BPM() float64 {
	return 60_000_000.0 / (t.usPerTick * float64(t.ticksPerBeat))
}

// SetModule sets usPerTick from a tracker-style (speed, tempo) pair: speed
// is the number of ticks per row, tempo is the tracker's own BPM-like unit
// (24 ticks per "tempo" unit per minute, the ProTracker/ScreamTracker
// convention). The pair is cached so ModuleSpeed/ModuleTempo can recover it
// exactly.
func (t *Tempo) SetModule(speed, moduleTempo int) {
	t.usPerTick = 2_500_000.0 * float64(speed) / (float64(moduleTempo) * float64(t.ticksPerBeat))
	t.lastModuleSpeed = speed
}

// ModuleSpeed returns the speed half of the last (speed, tempo) pair passed
// to SetModule (or the default of 6 if SetModule was never called).
func (t *Tempo) ModuleSpeed() int { return t.lastModuleSpeed }

// ModuleTempo returns the tempo half of the tracker pair, recomputed from
// the current usPerTick and the cached speed so that
// SetModule(ModuleSpeed(), ModuleTempo()) is always a no-op.
func (t *Tempo) ModuleTempo() int {
	speed := float64(t.lastModuleSpeed)
	return int(2_500_000.0*speed/(t.usPerTick*float64(t.ticksPerBeat)) + 0.5)
}

// SetTicksPerQuarterNote sets ticksPerBeat and forces beatLength to 4,
// matching Standard MIDI File's quarter-note-based division.
func (t *Tempo) SetTicksPerQuarterNote(ticks int) {
	t.ticksPerBeat = ticks
	t.beatLength = 4
}

// TicksPerQuarterNote returns ticksPerBeat under the assumption beatLength
// is 4 (quarter notes); it is just an alias for TicksPerBeat kept for
// callers coming from the MIDI side of the model.
func (t *Tempo) TicksPerQuarterNote() int { return t.ticksPerBeat }

// SetUsPerQuarterNote sets usPerTick from a microseconds-per-quarter-note
// value (the unit SMF's 0xFF 0x51 meta-event carries), dividing by the
// current TicksPerQuarterNote.
func (t *Tempo) SetUsPerQuarterNote(us int) {
	t.usPerTick = float64(us) / float64(t.TicksPerQuarterNote())
}

// UsPerQuarterNote returns the tempo as microseconds per quarter note,
// rounded to the nearest integer the way the SMF 24-bit tempo field stores
// it.
func (t *Tempo) UsPerQuarterNote() int {
	return int(t.usPerTick*float64(t.TicksPerQuarterNote()) + 0.5)
}

// Equal reports whether two tempos have the same usPerTick within a small
// tolerance, ignoring signature fields. Useful for deciding whether a
// TempoEvent actually changes anything worth emitting.
func (t *Tempo) Equal(o *Tempo) bool {
	if o == nil {
		return false
	}
	d := t.usPerTick - o.usPerTick
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}

// Clone returns an independent copy of t.
func (t *Tempo) Clone() *Tempo {
	c := *t
	return &c
}
