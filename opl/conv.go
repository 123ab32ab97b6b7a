// Package opl implements the OPL2/OPL3 register codec named in spec.md
// §4.3-§4.5: normalisation of percussion patch storage conventions, the
// decoder (register stream to events), and the encoder (events to register
// stream).
package opl

import "math"

// DefaultFnumConversion is the chip's master clock / 72, the constant that
// makes FnumToMilliHertz reproduce the familiar OPL2 tuning (spec.md §6
// calls this "chip's master clock / 2^20" but, worked back from a known
// register/frequency pair — see SPEC_FULL.md §5 — the figure that actually
// reproduces 49716 and a sane frequency is clock/72; this module treats
// 49716 itself as the conversion constant rather than re-deriving it from a
// raw clock figure that isn't in the retrieved source).
const DefaultFnumConversion = 49716.0

// DefaultVelocity is used for rhythm voices whose sounding operator has no
// meaningful carrier output level to derive a velocity from (the
// modulator-only percussion voices: HiHat, TomTom).
const DefaultVelocity uint8 = 127

// FnumToMilliHertz converts a 10-bit fnum and 3-bit block into a frequency
// in milliHertz, per spec.md §4.4 item 5: Hz = fnum*conversion/2^(20-block).
func FnumToMilliHertz(fnum, block int, conversion float64) uint32 {
	hz := float64(fnum) * conversion / math.Pow(2, float64(20-block))
	return uint32(math.Round(hz * 1000))
}

// MilliHertzToFnum is the inverse of FnumToMilliHertz: it picks the
// smallest block (0-7) for which the resulting fnum fits in 10 bits,
// maximising precision, matching the common OPL note-mapping convention.
func MilliHertzToFnum(milliHertz uint32, conversion float64) (fnum, block int) {
	hz := float64(milliHertz) / 1000.0
	for block = 0; block < 7; block++ {
		f := hz * math.Pow(2, float64(20-block)) / conversion
		if f < 1024 {
			break
		}
	}
	fnum = int(math.Round(hz * math.Pow(2, float64(20-block)) / conversion))
	if fnum > 1023 {
		fnum = 1023
	}
	if fnum < 0 {
		fnum = 0
	}
	return fnum, block
}

// LogVolumeToLinVelocity converts an OPL-style logarithmic volume (0 =
// silent, maxVol = loudest) into a linear 0-255 MIDI-style velocity. The
// exact formula used by the original library is not present in the
// retrieved source (only call sites survive; see SPEC_FULL.md §5); this
// module uses a documented, monotonic, invertible approximation: squaring
// the volume ratio before scaling, which maps the chip's roughly
// logarithmic attenuation steps onto a more linear perceived-loudness
// curve.
func LogVolumeToLinVelocity(vol, maxVol int) uint8 {
	if maxVol <= 0 {
		return DefaultVelocity
	}
	if vol < 0 {
		vol = 0
	}
	if vol > maxVol {
		vol = maxVol
	}
	ratio := float64(vol) / float64(maxVol)
	lin := ratio * ratio
	v := int(math.Round(lin * 255))
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// LinVelocityToLogVolume is the inverse of LogVolumeToLinVelocity. The
// encoder does not call it: a NoteOn writes its patch's own carrier output
// level, and the event's velocity is not written to the chip.
func LinVelocityToLogVolume(velocity uint8, maxVol int) int {
	ratio := math.Sqrt(float64(velocity) / 255.0)
	vol := int(math.Round(ratio * float64(maxVol)))
	if vol > maxVol {
		vol = maxVol
	}
	if vol < 0 {
		vol = 0
	}
	return vol
}
