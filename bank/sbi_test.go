package bank

import (
	"testing"

	"github.com/retrochip/gamemusic/song"
)

func samplePatch() song.OPLPatch {
	return song.OPLPatch{
		M: song.Operator{
			EnableTremolo: true,
			FreqMult:      3,
			ScaleLevel:    1,
			OutputLevel:   42,
			AttackRate:    15,
			DecayRate:     4,
			SustainRate:   7,
			ReleaseRate:   2,
			WaveSelect:    1,
		},
		C: song.Operator{
			EnableVibrato: true,
			EnableKSR:     true,
			FreqMult:      1,
			ScaleLevel:    2,
			OutputLevel:   10,
			AttackRate:    8,
			DecayRate:     9,
			SustainRate:   0,
			ReleaseRate:   5,
			WaveSelect:    3,
		},
		Feedback:   5,
		Connection: true,
		Rhythm:     song.RhythmMelodic,
	}
}

func TestInstrumentRoundTrip(t *testing.T) {
	want := samplePatch()
	inst := WriteInstrument(want)
	got := ReadInstrument(inst)
	if got != want {
		t.Fatalf("ReadInstrument(WriteInstrument(p)) = %+v, want %+v", got, want)
	}
}

func TestWriteInstrumentReservedBytesAreZero(t *testing.T) {
	inst := WriteInstrument(samplePatch())
	for i := 11; i < instLen; i++ {
		if inst[i] != 0 {
			t.Fatalf("inst[%d] = %#x, want 0 (reserved)", i, inst[i])
		}
	}
}

func TestIBKRoundTrip(t *testing.T) {
	insts := make([]InstrumentName, 3)
	insts[0] = InstrumentName{Patch: samplePatch(), Name: "lead"}
	insts[1] = InstrumentName{Patch: song.OPLPatch{Feedback: 2}, Name: "bass"}
	insts[2] = InstrumentName{Patch: song.OPLPatch{Connection: true}, Name: ""}

	data, err := EncodeIBK(insts)
	if err != nil {
		t.Fatalf("EncodeIBK: %v", err)
	}
	if !IsIBK(data) {
		t.Fatal("EncodeIBK output does not look like an IBK bank")
	}

	got, err := DecodeIBK(data)
	if err != nil {
		t.Fatalf("DecodeIBK: %v", err)
	}
	if len(got) != 128 {
		t.Fatalf("len(got) = %d, want 128", len(got))
	}
	for i, want := range insts {
		if got[i].Name != want.Name {
			t.Fatalf("got[%d].Name = %q, want %q", i, got[i].Name, want.Name)
		}
		if got[i].Patch != want.Patch {
			t.Fatalf("got[%d].Patch = %+v, want %+v", i, got[i].Patch, want.Patch)
		}
	}
	for i := 3; i < 128; i++ {
		if got[i].Name != "" {
			t.Fatalf("got[%d].Name = %q, want empty padding slot", i, got[i].Name)
		}
	}
}

func TestEncodeIBKRejectsTooManyInstruments(t *testing.T) {
	insts := make([]InstrumentName, 129)
	if _, err := EncodeIBK(insts); err == nil {
		t.Fatal("EncodeIBK accepted 129 instruments, want error")
	}
}

func TestDecodeIBKRejectsBadSignature(t *testing.T) {
	data := make([]byte, ibkLength)
	copy(data, "XXXX")
	if _, err := DecodeIBK(data); err == nil {
		t.Fatal("DecodeIBK accepted a bad signature, want error")
	}
}

func TestDefaultCMFPatchesDecodesSixteen(t *testing.T) {
	patches := DefaultCMFPatches()
	if len(patches) != 16 {
		t.Fatalf("len(DefaultCMFPatches()) = %d, want 16", len(patches))
	}
	if patches[0].M.FreqMult != 1 {
		t.Fatalf("patches[0].M.FreqMult = %d, want 1", patches[0].M.FreqMult)
	}
}
