package midi

// General MIDI percussion key map (channel 10 note numbers), adapted from
// the teacher's general_midi.go. Used to give PercussionName readable
// labels for song.MIDIPatch.Program values on a percussion track.
const (
	AcousticBassDrum = 35
	BassDrum1        = 36
	SideStick        = 37
	AcousticSnare    = 38
	HandClap         = 39
	ElectricSnare    = 40
	LowFloorTom      = 41
	ClosedHiHat      = 42
	HighFloorTom     = 43
	PedalHiHat       = 44
	LowTom           = 45
	OpenHiHat        = 46
	LowMidTom        = 47
	HiMidTom         = 48
	CrashCymbal1     = 49
	HighTom          = 50
	RideCymbal1      = 51
	ChineseCymbal    = 52
	RideBell         = 53
	Tambourine       = 54
	SplashCymbal     = 55
	Cowbell          = 56
	CrashCymbal2     = 57
	Vibraslap        = 58
	RideCymbal2      = 59
	HiBongo          = 60
	LowBongo         = 61
	MuteHiConga      = 62
	OpenHiConga      = 63
	LowConga         = 64
	HighTimbale      = 65
	LowTimbale       = 66
	HighAgogo        = 67
	LowAgogo         = 68
	Cabasa           = 69
	Maracas          = 70
	ShortWhistle     = 71
	LongWhistle      = 72
	ShortGuiro       = 73
	LongGuiro        = 74
	Claves           = 75
	HiWoodBlock      = 76
	LowWoodBlock     = 77
	MuteCuica        = 78
	OpenCuica        = 79
	MuteTriangle     = 80
	OpenTriangle     = 81
)

var percussionNames = map[uint8]string{
	AcousticBassDrum: "Acoustic Bass Drum",
	BassDrum1:        "Bass Drum 1",
	SideStick:        "Side Stick",
	AcousticSnare:    "Acoustic Snare",
	HandClap:         "Hand Clap",
	ElectricSnare:    "Electric Snare",
	LowFloorTom:      "Low Floor Tom",
	ClosedHiHat:      "Closed Hi-Hat",
	HighFloorTom:     "High Floor Tom",
	PedalHiHat:       "Pedal Hi-Hat",
	LowTom:           "Low Tom",
	OpenHiHat:        "Open Hi-Hat",
	LowMidTom:        "Low-Mid Tom",
	HiMidTom:         "Hi-Mid Tom",
	CrashCymbal1:     "Crash Cymbal 1",
	HighTom:          "High Tom",
	RideCymbal1:      "Ride Cymbal 1",
	ChineseCymbal:    "Chinese Cymbal",
	RideBell:         "Ride Bell",
	Tambourine:       "Tambourine",
	SplashCymbal:     "Splash Cymbal",
	Cowbell:          "Cowbell",
	CrashCymbal2:     "Crash Cymbal 2",
	Vibraslap:        "Vibraslap",
	RideCymbal2:      "Ride Cymbal 2",
	HiBongo:          "Hi Bongo",
	LowBongo:         "Low Bongo",
	MuteHiConga:      "Mute Hi Conga",
	OpenHiConga:      "Open Hi Conga",
	LowConga:         "Low Conga",
	HighTimbale:      "High Timbale",
	LowTimbale:       "Low Timbale",
	HighAgogo:        "High Agogo",
	LowAgogo:         "Low Agogo",
	Cabasa:           "Cabasa",
	Maracas:          "Maracas",
	ShortWhistle:     "Short Whistle",
	LongWhistle:      "Long Whistle",
	ShortGuiro:       "Short Guiro",
	LongGuiro:        "Long Guiro",
	Claves:           "Claves",
	HiWoodBlock:      "Hi Wood Block",
	LowWoodBlock:     "Low Wood Block",
	MuteCuica:        "Mute Cuica",
	OpenCuica:        "Open Cuica",
	MuteTriangle:     "Mute Triangle",
	OpenTriangle:     "Open Triangle",
}

// PercussionName returns the General MIDI channel-10 key name for note,
// used when describing a song.MIDIPatch{Percussion: true} in diagnostics.
func PercussionName(note uint8) (string, bool) {
	name, ok := percussionNames[note]
	return name, ok
}
