package bank

import "github.com/retrochip/gamemusic/song"

// AdLibPatchLen is the length of one AdLib MDI instrument-change patch, per
// patch-adlib.hpp's adlibPatch<uint8_t> template: the modulator operator's
// 13 fields, then the carrier operator's 13 fields, then one wave-select
// byte per operator (13+13+1+1 = 28). This is the payload carried by MIDI
// meta-event 0x7F opcode 1 ("AdLib MDI" instrument change), distinct from
// the 16-byte SBI layout used by standalone .SBI/.IBK files.
const AdLibPatchLen = 28

// ReadAdLibPatch decodes a 28-byte AdLib MDI patch into an OPLPatch, per
// adlib_patch_read<uint8_t>::read. Each operator's 13 fields occupy
// consecutive whole bytes here, unlike the packed-nibble SBI layout, and
// the feedback/connection bytes are only read from the modulator's half
// (the carrier's copy is present on the wire but ignored, matching the
// source's own comment that both halves are usually identical but only
// op0 is authoritative). The Connection sense is inverted from the SBI
// convention: a stored byte of 0 means Connection=true (FM) here, whereas
// util-sbi.cpp treats a set bit as true.
func ReadAdLibPatch(data [AdLibPatchLen]byte) song.OPLPatch {
	var p song.OPLPatch
	p.M, p.Feedback, p.Connection = readAdLibOp(data[0:13])
	p.C, _, _ = readAdLibOp(data[13:26])
	p.M.WaveSelect = data[26] & 0x07
	p.C.WaveSelect = data[27] & 0x07
	p.Rhythm = song.RhythmMelodic
	return p
}

func readAdLibOp(b []byte) (song.Operator, uint8, bool) {
	var o song.Operator
	o.ScaleLevel = b[0] & 0x03
	o.FreqMult = b[1] & 0x0F
	feedback := b[2] & 0x07
	o.AttackRate = b[3] & 0x0F
	o.SustainRate = b[4] & 0x0F
	o.EnableSustain = b[5] != 0
	o.DecayRate = b[6] & 0x0F
	o.ReleaseRate = b[7] & 0x0F
	o.OutputLevel = b[8] & 0x3F
	o.EnableTremolo = b[9] != 0
	o.EnableVibrato = b[10] != 0
	o.EnableKSR = b[11] != 0
	connection := b[12] == 0
	return o, feedback, connection
}

// WriteAdLibPatch is the inverse of ReadAdLibPatch, per
// adlib_patch_write<uint8_t>::write. The source writes the channel's
// feedback/connection into both operator halves; this does the same even
// though only the modulator's half is read back.
func WriteAdLibPatch(p song.OPLPatch) [AdLibPatchLen]byte {
	var data [AdLibPatchLen]byte
	writeAdLibOp(data[0:13], p.M, p.Feedback, p.Connection)
	writeAdLibOp(data[13:26], p.C, p.Feedback, p.Connection)
	data[26] = p.M.WaveSelect & 0x07
	data[27] = p.C.WaveSelect & 0x07
	return data
}

func writeAdLibOp(b []byte, o song.Operator, feedback uint8, connection bool) {
	b[0] = o.ScaleLevel & 0x03
	b[1] = o.FreqMult & 0x0F
	b[2] = feedback & 0x07
	b[3] = o.AttackRate & 0x0F
	b[4] = o.SustainRate & 0x0F
	if o.EnableSustain {
		b[5] = 1
	}
	b[6] = o.DecayRate & 0x0F
	b[7] = o.ReleaseRate & 0x0F
	b[8] = o.OutputLevel & 0x3F
	if o.EnableTremolo {
		b[9] = 1
	}
	if o.EnableVibrato {
		b[10] = 1
	}
	if o.EnableKSR {
		b[11] = 1
	}
	if !connection {
		b[12] = 1
	}
}
