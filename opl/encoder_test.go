package opl

import (
	"testing"

	"github.com/retrochip/gamemusic/song"
)

func simpleMelodicMusic(milliHertz uint32) *song.Music {
	m := song.New()
	m.TrackInfo = []song.TrackInfo{{Type: song.ChannelOPL, Channel: 0}}
	m.Patches = []song.Patch{song.NewOPLPatch(song.OPLPatch{
		M:        song.Operator{FreqMult: 1, OutputLevel: 10, AttackRate: 15, ReleaseRate: 5},
		C:        song.Operator{FreqMult: 1, OutputLevel: 0, AttackRate: 15, ReleaseRate: 5},
		Feedback: 3,
	})}
	track := song.Track{
		{Delay: 0, Event: song.NoteOn(milliHertz, 0, 127)},
		{Delay: 20, Event: song.NoteOff()},
	}
	m.Patterns = []song.Pattern{{track}}
	m.PatternOrder = []int{0}
	m.TicksPerTrack = 20
	return m
}

func TestEncodeThenDecodeRoundTripsNoteOn(t *testing.T) {
	m := simpleMelodicMusic(440000)
	frames, err := Encode(m, DefaultFnumConversion, WriteFlagNone)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded := Decode(frames, DelayIsPreData, DefaultFnumConversion, m.InitialTempo, false)

	var sawNoteOn, sawNoteOff bool
	var gotMilliHertz uint32
	for _, te := range decoded.Patterns[0][0] {
		switch te.Event.Kind {
		case song.EventNoteOn:
			sawNoteOn = true
			gotMilliHertz = te.Event.MilliHertz
		case song.EventNoteOff:
			sawNoteOff = true
		}
	}
	if !sawNoteOn || !sawNoteOff {
		t.Fatalf("decoded track missing NoteOn/NoteOff: %+v", decoded.Patterns[0][0])
	}
	diff := int(gotMilliHertz) - 440000
	if diff < 0 {
		diff = -diff
	}
	if diff > 50 {
		t.Fatalf("round-tripped milliHertz = %d, want ~440000", gotMilliHertz)
	}
}

func TestEncodeRejectsNonOPLPatch(t *testing.T) {
	m := song.New()
	m.TrackInfo = []song.TrackInfo{{Type: song.ChannelOPL, Channel: 0}}
	m.Patches = []song.Patch{song.NewMIDIPatch(song.MIDIPatch{Program: 1})}
	m.Patterns = []song.Pattern{{song.Track{{Delay: 0, Event: song.NoteOn(440000, 0, 127)}}}}
	m.PatternOrder = []int{0}
	m.TicksPerTrack = 0

	if _, err := Encode(m, DefaultFnumConversion, WriteFlagNone); err == nil {
		t.Fatal("Encode with a MIDI patch on an OPL track: want error, got nil")
	}
}
