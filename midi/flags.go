package midi

// MIDIFlags modifies Decode/Encode behaviour for files that deviate from
// plain Standard MIDI, per spec.md §6.
type MIDIFlags uint

const (
	// Default requests no special handling.
	Default MIDIFlags = 0

	// ShortAftertouch reinterprets a one-byte-short key-aftertouch message
	// (0xA0) as channel aftertouch, tolerating a format bug some files have.
	ShortAftertouch MIDIFlags = 1 << (iota - 1)
	// Channel10NoPerc disables the General MIDI convention of treating
	// channel 10 as a percussion channel with a note-to-instrument map.
	Channel10NoPerc
	// CMFExtensions enables the Creative Music File deep tremolo/vibrato
	// controller 0x63. The rhythm-mode controller 0x67 and the
	// channel-pitchbend controllers 0x68/0x69 are decoded whether or not
	// this flag is set.
	CMFExtensions
	// UsePatchIndex names addressing instruments by bank index instead of
	// General MIDI program number. Neither Decode nor Encode reads this flag.
	UsePatchIndex
	// EmbedTempo names writing/reading the initial tempo as a meta-event
	// rather than relying on the caller-supplied value. Neither Decode nor
	// Encode reads this flag.
	EmbedTempo
	// IntegerNotesOnly names rounding note frequencies to the nearest
	// semitone, dropping sub-semitone pitchbends. Neither Decode nor Encode
	// reads this flag.
	IntegerNotesOnly
	// BasicMIDIOnly names restricting output to messages every General MIDI
	// device understands: no sysex, no controllers beyond the basic set.
	// Neither Decode nor Encode reads this flag.
	BasicMIDIOnly
	// AdLibMUS enables the AdLib MDI meta-event extension (instrument
	// change and rhythm mode via MIDI meta-event 0x7F). The pitchbend-range
	// opcode 3 is skipped.
	AdLibMUS
)

// Has reports whether every bit in bit is set in f.
func (f MIDIFlags) Has(bit MIDIFlags) bool {
	return f&bit == bit
}
