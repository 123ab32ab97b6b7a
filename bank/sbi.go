// Package bank implements the AdLib instrument-bank codecs named in
// spec.md's metadata/instrument-bank supplement: the 16-byte per-voice SBI
// instrument layout shared by standalone .SBI files and Creative's .IBK
// bank container, grounded in original_source/src/util-sbi.cpp (the
// per-instrument read/write) and mus-ibk-instrumentbank.cpp (the .IBK file
// framing).
package bank

import (
	"bytes"
	"fmt"

	"github.com/retrochip/gamemusic/gmerr"
	"github.com/retrochip/gamemusic/song"
)

// instLen is the length of one SBI-format instrument, in bytes.
const instLen = 16

// ReadInstrument decodes one 16-byte SBI-format instrument into an OPLPatch,
// per sbi_instrument_read::read in util-sbi.cpp.
func ReadInstrument(inst [instLen]byte) song.OPLPatch {
	var p song.OPLPatch
	ops := [2]*song.Operator{&p.M, &p.C}
	for op, o := range ops {
		o.EnableTremolo = inst[0+op]>>7&1 != 0
		o.EnableVibrato = inst[0+op]>>6&1 != 0
		o.EnableSustain = inst[0+op]>>5&1 != 0
		o.EnableKSR = inst[0+op]>>4&1 != 0
		o.FreqMult = inst[0+op] & 0x0F
		o.ScaleLevel = inst[2+op] >> 6
		o.OutputLevel = inst[2+op] & 0x3F
		o.AttackRate = inst[4+op] >> 4
		o.DecayRate = inst[4+op] & 0x0F
		o.SustainRate = inst[6+op] >> 4
		o.ReleaseRate = inst[6+op] & 0x0F
		o.WaveSelect = inst[8+op] & 0x07
	}
	p.Feedback = (inst[10] >> 1) & 0x07
	p.Connection = inst[10]&1 != 0
	p.Rhythm = song.RhythmMelodic
	return p
}

// WriteInstrument is the inverse of ReadInstrument, per
// sbi_instrument_write::write in util-sbi.cpp. Bytes 11-15 are reserved and
// always written as zero; the source notes deepTremolo/deepVibrato (chip-wide
// flags, not per-instrument) have no home in this format and are dropped.
func WriteInstrument(p song.OPLPatch) [instLen]byte {
	var inst [instLen]byte
	ops := [2]*song.Operator{&p.M, &p.C}
	for op, o := range ops {
		var b byte
		if o.EnableTremolo {
			b |= 1 << 7
		}
		if o.EnableVibrato {
			b |= 1 << 6
		}
		if o.EnableSustain {
			b |= 1 << 5
		}
		if o.EnableKSR {
			b |= 1 << 4
		}
		b |= o.FreqMult & 0x0F
		inst[0+op] = b
		inst[2+op] = o.ScaleLevel<<6 | o.OutputLevel&0x3F
		inst[4+op] = o.AttackRate<<4 | o.DecayRate&0x0F
		inst[6+op] = o.SustainRate<<4 | o.ReleaseRate&0x0F
		inst[8+op] = o.WaveSelect & 7
	}
	inst[10] = (p.Feedback & 7) << 1
	if p.Connection {
		inst[10] |= 1
	}
	return inst
}

const (
	ibkInstCount = 128
	ibkNameLen   = 9
	ibkLength    = 4 + ibkInstCount*(instLen+ibkNameLen)
	ibkSignature = "IBK\x1a"
)

// InstrumentName pairs a decoded patch with the bank slot's fixed-width name.
type InstrumentName struct {
	Patch song.OPLPatch
	Name  string
}

// IsIBK reports whether data looks like an .IBK instrument bank, per
// MusicType_IBK::isInstance.
func IsIBK(data []byte) bool {
	return len(data) == ibkLength && bytes.HasPrefix(data, []byte(ibkSignature))
}

// DecodeIBK parses a 128-voice .IBK instrument bank, per
// MusicType_IBK::read.
func DecodeIBK(data []byte) ([]InstrumentName, error) {
	if !IsIBK(data) {
		return nil, gmerr.NewMalformed("ibk signature", fmt.Sprintf("%d bytes", len(data)))
	}

	namesOff := 4 + ibkInstCount*instLen
	names := data[namesOff : namesOff+ibkInstCount*ibkNameLen]

	out := make([]InstrumentName, ibkInstCount)
	for i := 0; i < ibkInstCount; i++ {
		var inst [instLen]byte
		copy(inst[:], data[4+i*instLen:4+(i+1)*instLen])

		nameBytes := names[i*ibkNameLen : (i+1)*ibkNameLen]
		n := bytes.IndexByte(nameBytes, 0)
		if n < 0 {
			n = ibkNameLen
		}

		out[i] = InstrumentName{Patch: ReadInstrument(inst), Name: string(nameBytes[:n])}
	}
	return out, nil
}

// EncodeIBK serialises exactly 128 instruments into an .IBK bank, per
// MusicType_IBK::write.
func EncodeIBK(insts []InstrumentName) ([]byte, error) {
	if len(insts) > ibkInstCount {
		return nil, gmerr.NewFormatLimitation(fmt.Sprintf("ibk banks hold at most %d instruments, got %d", ibkInstCount, len(insts)))
	}

	var buf bytes.Buffer
	buf.WriteString(ibkSignature)

	names := make([]byte, ibkInstCount*ibkNameLen)
	for i := 0; i < ibkInstCount; i++ {
		var p song.OPLPatch
		if i < len(insts) {
			p = insts[i].Patch
		}
		inst := WriteInstrument(p)
		buf.Write(inst[:])
	}
	for i := 0; i < len(insts); i++ {
		copy(names[i*ibkNameLen:(i+1)*ibkNameLen], insts[i].Name)
	}
	buf.Write(names)

	return buf.Bytes(), nil
}

// cmfDefaultInstrumentBytes is CMF_DEFAULT_PATCHES from
// mus-cmf-creativelabs.cpp: 16 built-in General MIDI-ish patches a CMF file
// falls back to for any MIDI program number it doesn't carry its own patch
// block for, each a 16-byte SBI-format instrument (only the first 11 bytes
// carry data; the trailing 5 are the format's reserved zero padding).
var cmfDefaultInstrumentBytes = [16][instLen]byte{
	{0x01, 0x11, 0x4F, 0x00, 0xF1, 0xD2, 0x53, 0x74, 0x00, 0x00, 0x06},
	{0x07, 0x12, 0x4F, 0x00, 0xF2, 0xF2, 0x60, 0x72, 0x00, 0x00, 0x08},
	{0x31, 0xA1, 0x1C, 0x80, 0x51, 0x54, 0x03, 0x67, 0x00, 0x00, 0x0E},
	{0x31, 0xA1, 0x1C, 0x80, 0x41, 0x92, 0x0B, 0x3B, 0x00, 0x00, 0x0E},
	{0x31, 0x16, 0x87, 0x80, 0xA1, 0x7D, 0x11, 0x43, 0x00, 0x00, 0x08},
	{0x30, 0xB1, 0xC8, 0x80, 0xD5, 0x61, 0x19, 0x1B, 0x00, 0x00, 0x0C},
	{0xF1, 0x21, 0x01, 0x00, 0x97, 0xF1, 0x17, 0x18, 0x00, 0x00, 0x08},
	{0x32, 0x16, 0x87, 0x80, 0xA1, 0x7D, 0x10, 0x33, 0x00, 0x00, 0x08},
	{0x01, 0x12, 0x4F, 0x00, 0x71, 0x52, 0x53, 0x7C, 0x00, 0x00, 0x0A},
	{0x02, 0x03, 0x8D, 0x00, 0xD7, 0xF5, 0x37, 0x18, 0x00, 0x00, 0x04},
	{0x21, 0x21, 0xD1, 0x00, 0xA3, 0xA4, 0x46, 0x25, 0x00, 0x00, 0x0A},
	{0x22, 0x22, 0x0F, 0x00, 0xF6, 0xF6, 0x95, 0x36, 0x00, 0x00, 0x0A},
	{0xE1, 0xE1, 0x00, 0x00, 0x44, 0x54, 0x24, 0x34, 0x02, 0x02, 0x07},
	{0xA5, 0xB1, 0xD2, 0x80, 0x81, 0xF1, 0x03, 0x05, 0x00, 0x00, 0x02},
	{0x71, 0x22, 0xC5, 0x00, 0x6E, 0x8B, 0x17, 0x0E, 0x00, 0x00, 0x02},
	{0x32, 0x21, 0x16, 0x80, 0x73, 0x75, 0x24, 0x57, 0x00, 0x00, 0x0E},
}

// DefaultCMFPatches decodes CMF_DEFAULT_PATCHES, the 16-voice fallback bank
// a CMF player uses for any program number the file's own SBI-format patch
// block doesn't cover.
func DefaultCMFPatches() []song.OPLPatch {
	out := make([]song.OPLPatch, len(cmfDefaultInstrumentBytes))
	for i, inst := range cmfDefaultInstrumentBytes {
		out[i] = ReadInstrument(inst)
	}
	return out
}
