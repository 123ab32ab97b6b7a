// Package gmerr defines the error kinds shared by the codecs: truncated
// streams, malformed fields, format limitations hit on write, and patches
// used on an incompatible track. Each kind is a distinct type so callers can
// tell them apart with errors.As instead of string-matching.
package gmerr

import "fmt"

// Truncated reports that the byte cursor ran out of input before a decoder
// could finish reading a value. Many retro files omit their terminating
// meta-event, so decoders are expected to catch this at outer loop
// boundaries and treat it as end-of-song rather than propagating it.
type Truncated struct {
	// Where names the field or structure being read when the stream ran out.
	Where string
	// Need is the number of bytes required; Have is the number available.
	Need, Have int
}

func (e *Truncated) Error() string {
	return fmt.Sprintf("truncated stream reading %s: need %d bytes, have %d", e.Where, e.Need, e.Have)
}

// NewTruncated builds a Truncated error.
func NewTruncated(where string, need, have int) error {
	return &Truncated{Where: where, Need: need, Have: have}
}

// Malformed reports a value that is syntactically present but out of range,
// e.g. a MIDI note >= 128, an OPL channel >= 9, or an unrecognised event tag.
type Malformed struct {
	Field string
	Value any
}

func (e *Malformed) Error() string {
	return fmt.Sprintf("malformed field %s: %v", e.Field, e.Value)
}

// NewMalformed builds a Malformed error.
func NewMalformed(field string, value any) error {
	return &Malformed{Field: field, Value: value}
}

// FormatLimitation reports that the song uses a feature the target format
// cannot express, e.g. more than 16 MIDI channels or a pitchbend range
// exceeding the one a container format supports. Encoders return this
// rather than silently dropping musical information; callers may inspect it
// to fall back to a different format.
type FormatLimitation struct {
	Reason string
}

func (e *FormatLimitation) Error() string {
	return fmt.Sprintf("format limitation: %s", e.Reason)
}

// NewFormatLimitation builds a FormatLimitation error.
func NewFormatLimitation(reason string) error {
	return &FormatLimitation{Reason: reason}
}

// BadPatchType reports that a track referenced a patch whose variant is
// incompatible with the track's channel type (e.g. a PCM patch played on an
// OPL track).
type BadPatchType struct {
	TrackIndex int
	Want, Got  string
}

func (e *BadPatchType) Error() string {
	return fmt.Sprintf("track %d wants a %s patch, got %s", e.TrackIndex, e.Want, e.Got)
}

// NewBadPatchType builds a BadPatchType error.
func NewBadPatchType(trackIndex int, want, got string) error {
	return &BadPatchType{TrackIndex: trackIndex, Want: want, Got: got}
}
