package opl

import (
	"testing"

	"github.com/retrochip/gamemusic/song"
)

// opAt builds an Operator whose only distinguishing field is AttackRate, the
// field the ported fixture's assertions key on (matching
// original_source/tests/test-opl-normalise.cpp, which only ever varies
// attackRate between operators to tell them apart).
func opAt(attack uint8) song.Operator {
	return song.Operator{AttackRate: attack}
}

// defaultMusic ports createDefaultMusic() from test-opl-normalise.cpp: ten
// patches (index 0 melodic, 1-5 single-use rhythm voices matching their
// register-bit order, 6-8 melodic patches that are reused as rhythm voices,
// 9 unused), ten OPL tracks (one melodic track that plays patch 0, plus five
// single-use rhythm tracks playing patches 1-5 natively, plus four more
// rhythm tracks that reuse patches 6-8 and, for HiHat, patch 0 again).
func defaultMusic() *song.Music {
	m := song.New()
	patch := func(cAttack, mAttack uint8) song.Patch {
		return song.NewOPLPatch(song.OPLPatch{C: opAt(cAttack), M: opAt(mAttack)})
	}

	m.Patches = []song.Patch{
		patch(1, 2),   // 0: melodic, reused as HiHat (track 9)
		patch(3, 4),   // 1: TopCymbal-only
		patch(5, 6),   // 2: TomTom-only
		patch(7, 8),   // 3: TomTom-only (second, distinct slot)
		patch(9, 10),  // 4: SnareDrum-only
		patch(11, 12), // 5: BassDrum-only
		patch(13, 14), // 6: melodic, reused as TopCymbal (track 6)
		patch(15, 16), // 7: melodic, reused as SnareDrum (track 7)
		patch(17, 18), // 8: melodic, reused as BassDrum (track 8)
		patch(19, 20), // 9: melodic, unused placeholder (no track plays it)
	}

	m.TrackInfo = []song.TrackInfo{
		{Type: song.ChannelOPL, Channel: 0},                                   // 0: melodic, patch 0
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmTopCymbal},             // 1: patch 1
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmTomTom},                // 2: patch 2
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmTomTom},                // 3: patch 3 (distinct slot, same tag)
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmSnareDrum},             // 4: patch 4
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmBassDrum},              // 5: patch 5
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmTopCymbal},             // 6: reuses patch 6 as TopCymbal
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmSnareDrum},             // 7: reuses patch 7 as SnareDrum
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmBassDrum},              // 8: reuses patch 8 as BassDrum
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmHiHat},                 // 9: reuses patch 0 as HiHat
	}

	track := func(instrument int) song.Track {
		return song.Track{{Delay: 10, Event: song.NoteOn(1000, instrument, 127)}}
	}

	pattern := song.Pattern{
		track(0), track(1), track(2), track(3), track(4),
		track(5), track(6), track(7), track(8), track(0),
	}
	m.Patterns = []song.Pattern{pattern}
	m.PatternOrder = []int{0}
	m.TicksPerTrack = 10

	return m
}

func attackRates(p song.Patch) (c, mm uint8) {
	return p.OPL.C.AttackRate, p.OPL.M.AttackRate
}

func TestDenormalisePercMatchingOps(t *testing.T) {
	m := defaultMusic()
	DenormalisePerc(m, MatchingOps)

	// No swapping occurs under MatchingOps; original slots 0-9 are retagged
	// in place and unchanged in value. Patch 0's owner is Melodic (its first
	// use, track 0); the later HiHat use (track 9) is a distinct tag, so it
	// must get a duplicate at index 10.
	if len(m.Patches) != 11 {
		t.Fatalf("len(Patches) = %d, want 11 (one HiHat duplicate of patch 0)", len(m.Patches))
	}
	if m.Patches[0].OPL.Rhythm != song.RhythmMelodic {
		t.Fatalf("patch 0 rhythm = %v, want Melodic", m.Patches[0].OPL.Rhythm)
	}
	c, mm := attackRates(m.Patches[0])
	if c != 1 || mm != 2 {
		t.Fatalf("patch 0 attack rates = (%d,%d), want (1,2) unswapped", c, mm)
	}
	if m.Patches[10].OPL.Rhythm != song.RhythmHiHat {
		t.Fatalf("patch 10 rhythm = %v, want HiHat", m.Patches[10].OPL.Rhythm)
	}
	c, mm = attackRates(m.Patches[10])
	if c != 1 || mm != 2 {
		t.Fatalf("patch 10 (HiHat dup) attack rates = (%d,%d), want (1,2) unswapped", c, mm)
	}
	track9 := m.Patterns[0][9]
	if track9[0].Event.Instrument != 10 {
		t.Fatalf("track 9 NoteOn.Instrument = %d, want 10 (the duplicate)", track9[0].Event.Instrument)
	}
}

func TestDenormalisePercCarFromMod(t *testing.T) {
	m := defaultMusic()
	DenormalisePerc(m, CarFromMod)

	// SnareDrum and TopCymbal (carrier-only) swap; TomTom, BassDrum, HiHat
	// (and Melodic) do not.
	cases := []struct {
		idx        int
		wantC      uint8
		wantM      uint8
		wantSwap   bool
	}{
		{1, 4, 3, true},   // TopCymbal: orig (3,4) -> swapped (4,3)
		{2, 5, 6, false},  // TomTom: orig (5,6) unswapped
		{3, 7, 8, false},  // TomTom: orig (7,8) unswapped
		{4, 10, 9, true},  // SnareDrum: orig (9,10) -> swapped (10,9)
		{5, 11, 12, false}, // BassDrum: never swapped
	}
	for _, c := range cases {
		gotC, gotM := attackRates(m.Patches[c.idx])
		if gotC != c.wantC || gotM != c.wantM {
			t.Fatalf("patch %d attack rates = (%d,%d), want (%d,%d)", c.idx, gotC, gotM, c.wantC, c.wantM)
		}
	}

	// Track 6 is patch 6's only user, as TopCymbal (carrier-only, swapped in
	// place as the owner); track 9 reuses patch 0 as HiHat, which gets the
	// duplicate at index 10 (modulator-only tag under this style rule set,
	// no swap).
	if len(m.Patches) != 11 {
		t.Fatalf("len(Patches) = %d, want 11", len(m.Patches))
	}
	gotC, gotM := attackRates(m.Patches[6])
	if gotC != 14 || gotM != 13 {
		t.Fatalf("patch 6 (TopCymbal, owner) attack rates = (%d,%d), want (14,13) swapped", gotC, gotM)
	}
	gotC, gotM = attackRates(m.Patches[10])
	if gotC != 1 || gotM != 2 {
		t.Fatalf("patch 10 (HiHat dup of 0) attack rates = (%d,%d), want (1,2) unswapped", gotC, gotM)
	}
}

func TestDenormalisePercModFromCar(t *testing.T) {
	m := defaultMusic()
	DenormalisePerc(m, ModFromCar)

	// HiHat and TomTom (modulator-only) swap; SnareDrum, BassDrum, TopCymbal
	// do not.
	cases := []struct {
		idx   int
		wantC uint8
		wantM uint8
	}{
		{1, 3, 4},   // TopCymbal: unswapped
		{2, 6, 5},   // TomTom: swapped
		{3, 8, 7},   // TomTom: swapped
		{4, 9, 10},  // SnareDrum: unswapped
		{5, 11, 12}, // BassDrum: never swapped
	}
	for _, c := range cases {
		gotC, gotM := attackRates(m.Patches[c.idx])
		if gotC != c.wantC || gotM != c.wantM {
			t.Fatalf("patch %d attack rates = (%d,%d), want (%d,%d)", c.idx, gotC, gotM, c.wantC, c.wantM)
		}
	}
	// Patch 0's owner tag is Melodic (track 0, visited first); the HiHat
	// reuse at track 9 is modulator-only, so its duplicate is swapped.
	gotC, gotM := attackRates(m.Patches[10])
	if gotC != 2 || gotM != 1 {
		t.Fatalf("patch 10 (HiHat dup of 0) attack rates = (%d,%d), want (2,1) swapped", gotC, gotM)
	}
}

// TestDenormalisePercSecondDistinctUsageDerivesFromOriginal guards against
// building a later duplicate from an earlier usage's already-mutated patch
// slot instead of from the original storage-convention bytes. Under
// CarFromMod, SnareDrum and TopCymbal are both carrier-only (both swap), so
// a patch first used as SnareDrum (swaps in place) and then reused as
// TopCymbal must produce a duplicate equal to that same swap applied once
// to the original bytes — not a second swap of the already-swapped slot,
// which would cancel out back to the unswapped original.
func TestDenormalisePercSecondDistinctUsageDerivesFromOriginal(t *testing.T) {
	m := song.New()
	m.Patches = []song.Patch{song.NewOPLPatch(song.OPLPatch{C: opAt(3), M: opAt(4)})}
	m.TrackInfo = []song.TrackInfo{
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmSnareDrum},
		{Type: song.ChannelOPLPerc, Rhythm: song.RhythmTopCymbal},
	}
	track := func(instrument int) song.Track {
		return song.Track{{Delay: 10, Event: song.NoteOn(1000, instrument, 127)}}
	}
	m.Patterns = []song.Pattern{{track(0), track(0)}}
	m.PatternOrder = []int{0}
	m.TicksPerTrack = 10

	DenormalisePerc(m, CarFromMod)

	if len(m.Patches) != 2 {
		t.Fatalf("len(Patches) = %d, want 2 (one SnareDrum owner, one TopCymbal duplicate)", len(m.Patches))
	}
	// SnareDrum owns slot 0 and is carrier-only under CarFromMod: swapped.
	gotC, gotM := attackRates(m.Patches[0])
	if gotC != 4 || gotM != 3 {
		t.Fatalf("patch 0 (SnareDrum owner) attack rates = (%d,%d), want (4,3) swapped", gotC, gotM)
	}
	// TopCymbal's duplicate is also carrier-only: it must equal the same
	// single swap of the ORIGINAL bytes, i.e. the same (4,3) as the owner,
	// not a double-swap back to (3,4).
	gotC, gotM = attackRates(m.Patches[1])
	if gotC != 4 || gotM != 3 {
		t.Fatalf("patch 1 (TopCymbal dup) attack rates = (%d,%d), want (4,3) swapped once from the original", gotC, gotM)
	}
}

func TestNormalisePercUndoesDenormaliseSwap(t *testing.T) {
	for _, style := range []NormaliseStyle{MatchingOps, CarFromMod, ModFromCar} {
		m := defaultMusic()
		DenormalisePerc(m, style)
		before := append([]song.Patch(nil), m.Patches...)
		storageBank := NormalisePerc(m, style)

		if len(storageBank) != len(m.Patches) {
			t.Fatalf("style %v: NormalisePerc returned %d patches, want %d (matching length, no dedup)",
				style, len(storageBank), len(m.Patches))
		}

		// Applying the same style's swap again must recover the original
		// (pre-denormalise) attack-rate pairs at indices 1-5, and must leave
		// music.Patches itself untouched.
		original := defaultMusic()
		for i := 1; i <= 5; i++ {
			wantC, wantM := attackRates(original.Patches[i])
			gotC, gotM := attackRates(storageBank[i])
			if gotC != wantC || gotM != wantM {
				t.Fatalf("style %v, patch %d: storage attack rates = (%d,%d), want (%d,%d) (original, unswapped)",
					style, i, gotC, gotM, wantC, wantM)
			}
		}

		// music.Patches must be unaffected by NormalisePerc.
		for i := range m.Patches {
			c1, m1 := attackRates(m.Patches[i])
			c2, m2 := attackRates(before[i])
			if c1 != c2 || m1 != m2 {
				t.Fatalf("style %v: music.Patches mutated by NormalisePerc", style)
			}
		}
	}
}
