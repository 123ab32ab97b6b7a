package midi

import (
	"bytes"
	"testing"

	"github.com/retrochip/gamemusic/song"
	"github.com/retrochip/gamemusic/split"
)

// buildTestSMF assembles a minimal single-track SMF0 file by hand: an MThd
// chunk followed by one MTrk chunk containing trackData plus a trailing
// end-of-track meta-event, matching spec.md §8's byte-level scenarios.
func buildTestSMF(ticksPerQuarter uint16, trackData []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("MThd")
	buf.Write([]byte{0, 0, 0, 6, 0, 0, 0, 1, byte(ticksPerQuarter >> 8), byte(ticksPerQuarter)})

	track := append(append([]byte{}, trackData...), 0x00, 0xFF, 0x2F, 0x00)
	buf.WriteString("MTrk")
	n := len(track)
	buf.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	buf.Write(track)
	return buf.Bytes()
}

func TestWidenNarrowVelocityRoundTrip(t *testing.T) {
	for v7 := uint8(0); v7 < 128; v7++ {
		wide := WidenVelocity(v7)
		back := NarrowVelocity(wide)
		if back != v7 {
			t.Fatalf("WidenVelocity/NarrowVelocity(%d) = %d, want %d", v7, back, v7)
		}
	}
}

func TestWidenVelocityBounds(t *testing.T) {
	if WidenVelocity(0) != 0 {
		t.Fatalf("WidenVelocity(0) = %d, want 0", WidenVelocity(0))
	}
	if WidenVelocity(127) != 255 {
		t.Fatalf("WidenVelocity(127) = %d, want 255", WidenVelocity(127))
	}
}

func TestNoteToMilliHertzA440(t *testing.T) {
	if got := NoteToMilliHertz(69); got != 440000 {
		t.Fatalf("NoteToMilliHertz(69) = %d, want 440000", got)
	}
}

func TestMilliHertzToNoteRoundTrip(t *testing.T) {
	for n := uint8(0); n < 128; n++ {
		hz := NoteToMilliHertz(n)
		back := MilliHertzToNote(hz)
		if back != n {
			t.Fatalf("MilliHertzToNote(NoteToMilliHertz(%d)) = %d, want %d", n, back, n)
		}
	}
}

// TestDecodePitchbendScenario covers spec.md §8 scenario 2: a note-on
// followed by a pitchbend of E0 00 38 (raw 14-bit value 7168, a quarter
// semitone flat of centre) decodes to a PitchbendChannel effect carrying
// that raw value, and splitting the track resolves it to a frequency about
// a quarter semitone below A4 (~433.7Hz).
func TestDecodePitchbendScenario(t *testing.T) {
	data := buildTestSMF(96, []byte{
		0x00, 0x90, 0x45, 0x7F, // note-on ch0, key 69 (A4), velocity 127
		0x00, 0xE0, 0x00, 0x38, // pitchbend ch0, raw value 7168
	})

	m, err := Decode(data, Default, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(m.Patterns) != 1 || len(m.TrackInfo) != 2 {
		t.Fatalf("Patterns/TrackInfo = %d/%d, want 1/2", len(m.Patterns), len(m.TrackInfo))
	}

	track := m.Patterns[0][1]
	if len(track) != 2 {
		t.Fatalf("len(track) = %d, want 2 (NoteOn, PitchbendChannel)", len(track))
	}
	if track[0].Event.Kind != song.EventNoteOn {
		t.Fatalf("track[0].Kind = %v, want EventNoteOn", track[0].Event.Kind)
	}
	bend := track[1].Event
	if bend.Kind != song.EventPolyphonicEffect || bend.EffectType != song.EffectPitchbendChannel {
		t.Fatalf("track[1] = %+v, want PolyphonicEffect(PitchbendChannel, ...)", bend)
	}
	if bend.Data != 7168 {
		t.Fatalf("pitchbend data = %d, want 7168", bend.Data)
	}

	parts := split.Track(track)
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1 (no overflow voice)", len(parts))
	}
	var gotFreq int32
	found := false
	for _, te := range parts[0] {
		if te.Event.Kind == song.EventEffect && te.Event.EffectType == song.EffectPitchbendNote {
			gotFreq = te.Event.Data
			found = true
		}
	}
	if !found {
		t.Fatal("split track never resolved a PitchbendNote effect")
	}
	const wantFreq = 433700
	if diff := gotFreq - wantFreq; diff < -1000 || diff > 1000 {
		t.Fatalf("resolved pitchbend frequency = %d mHz, want close to %d mHz", gotFreq, wantFreq)
	}
}

// TestEncodeRunningStatus covers spec.md §8 scenario 3: two consecutive
// note-ons on the same channel should share a single 0x90 status byte in
// the encoded bytes (MIDI running status), not repeat it.
func TestEncodeRunningStatus(t *testing.T) {
	m := song.New()
	m.TrackInfo = []song.TrackInfo{{Type: song.ChannelMIDI, Channel: 0}}
	m.Patches = []song.Patch{song.NewMIDIPatch(song.MIDIPatch{Program: 0})}
	m.TicksPerTrack = 10
	m.Patterns = []song.Pattern{{
		song.Track{
			{Delay: 0, Event: song.NoteOn(440000, 0, 100)},
			{Delay: 5, Event: song.NoteOn(466000, 0, 100)},
			{Delay: 5, Event: song.EmptyEvent()},
		},
	}}
	m.PatternOrder = []int{0}

	out, _, err := Encode(m, Default, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	count := bytes.Count(out, []byte{0x90})
	if count != 1 {
		t.Fatalf("0x90 status byte occurs %d times in encoded bytes, want 1 (running status)", count)
	}
}
