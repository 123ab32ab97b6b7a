package opl

import "github.com/retrochip/gamemusic/song"

// NormaliseStyle is the on-disk convention a container format uses to store
// OPL percussion patches, per spec.md §4.3.
type NormaliseStyle int

const (
	// MatchingOps stores both operators filled with the same active values
	// for rhythm patches; no swap is needed in either direction.
	MatchingOps NormaliseStyle = iota
	// CarFromMod stores single-operator rhythm patches in m; carrier-only
	// voices (SnareDrum, TopCymbal) need their values swapped into c for
	// the chip.
	CarFromMod
	// ModFromCar is the mirror image: single-operator rhythm patches are
	// stored in c; modulator-only voices (HiHat, TomTom) need swapping
	// into m.
	ModFromCar
)

func needsSwap(style NormaliseStyle, tag song.RhythmTag) bool {
	switch style {
	case CarFromMod:
		return tag.UsesCarrierOnly()
	case ModFromCar:
		return tag.UsesModulatorOnly()
	default:
		return false
	}
}

func swapOperators(p *song.OPLPatch) {
	p.M, p.C = p.C, p.M
}

func contextTagForTrack(ti song.TrackInfo) (song.RhythmTag, bool) {
	switch ti.Type {
	case song.ChannelOPL:
		return song.RhythmMelodic, true
	case song.ChannelOPLPerc:
		return ti.Rhythm, true
	default:
		return song.RhythmMelodic, false
	}
}

type dupKey struct {
	patchIndex int
	tag        song.RhythmTag
}

// DenormalisePerc walks music's patch bank and tracks, switching patches
// from the file's storage convention to the chip's runtime convention:
// applying style's operator swap wherever a rhythm voice requires it, and
// duplicating a patch (with the correct rhythm tag) whenever the same
// stored patch index is played as more than one distinct voice (e.g. as
// both a melodic instrument and the hi-hat). See SPEC_FULL.md's grounding
// notes and original_source/tests/test-opl-normalise.cpp for the exact
// duplication/ownership rule this implements: the first distinct usage
// encountered (scanning patterns, tracks, then events, in order) keeps the
// original patch index; every other distinct usage gets its own duplicate,
// created once and reused for repeats of the same (patch, usage) pair.
func DenormalisePerc(music *song.Music, style NormaliseStyle) {
	firstTag := make(map[int]song.RhythmTag)
	original := make(map[int]song.OPLPatch)
	dup := make(map[dupKey]int)

	for pi := range music.Patterns {
		pattern := music.Patterns[pi]
		for ti := range pattern {
			ctxTag, ok := contextTagForTrack(music.TrackInfo[ti])
			if !ok {
				continue
			}
			track := pattern[ti]
			for k := range track {
				ev := &track[k].Event
				if ev.Kind != song.EventNoteOn {
					continue
				}
				idx := ev.Instrument
				if idx < 0 || idx >= len(music.Patches) {
					continue
				}
				if music.Patches[idx].Kind != song.PatchOPL {
					continue
				}

				owner, seen := firstTag[idx]
				switch {
				case !seen:
					firstTag[idx] = ctxTag
					original[idx] = music.Patches[idx].OPL
					patch := &music.Patches[idx]
					patch.OPL.Rhythm = ctxTag
					if needsSwap(style, ctxTag) {
						swapOperators(&patch.OPL)
					}
					// ev.Instrument already equals idx.

				case owner == ctxTag:
					// Same usage as the slot's owner; nothing to do.

				default:
					key := dupKey{idx, ctxTag}
					newIdx, exists := dup[key]
					if !exists {
						// Build from the pre-swap snapshot, not
						// music.Patches[idx]: the first usage above may have
						// already mutated that slot in place, and a second
						// distinct usage must derive from the original
						// storage-convention bytes, not from another usage's
						// already-swapped copy.
						newPatch := song.NewOPLPatch(original[idx])
						newPatch.OPL.Rhythm = ctxTag
						if needsSwap(style, ctxTag) {
							swapOperators(&newPatch.OPL)
						}
						newIdx = len(music.Patches)
						music.Patches = append(music.Patches, newPatch)
						dup[key] = newIdx
					}
					ev.Instrument = newIdx
				}
			}
		}
	}
}

// NormalisePerc returns a new patch bank, the same length and order as
// music.Patches, with style's operator swap applied (or undone) per entry
// according to each patch's current Rhythm tag. Because the swap is its
// own inverse, applying it to an already-denormalised bank recovers the
// storage convention; music.Patches itself is left untouched. This does
// not merge or deduplicate patches — DenormalisePerc's duplication is a
// structural change to the bank, while NormalisePerc only transforms
// values in place at each existing index.
func NormalisePerc(music *song.Music, style NormaliseStyle) []song.Patch {
	out := make([]song.Patch, len(music.Patches))
	copy(out, music.Patches)
	for i := range out {
		if out[i].Kind != song.PatchOPL {
			continue
		}
		if needsSwap(style, out[i].OPL.Rhythm) {
			swapOperators(&out[i].OPL)
		}
	}
	return out
}
