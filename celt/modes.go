package celt

// ValidFrameSize returns true if the frame size is valid for CELT.
func ValidFrameSize(frameSize int) bool {
	switch frameSize {
	case 120, 240, 480, 960:
		return true
	default:
		return false
	}
}

// LMForFrameSize returns the duration class for a frame size in samples at
// 48kHz: log2(frameSize/120). It returns -1 for unsupported sizes.
func LMForFrameSize(frameSize int) int {
	switch frameSize {
	case 120: // 2.5ms
		return 0
	case 240: // 5ms
		return 1
	case 480: // 10ms
		return 2
	case 960: // 20ms
		return 3
	default:
		return -1
	}
}

// Bandwidth is the audio bandwidth signalled in the TOC byte.
type Bandwidth int

const (
	// Narrowband is 4kHz audio bandwidth.
	Narrowband Bandwidth = iota
	// Mediumband is 6kHz audio bandwidth.
	Mediumband
	// Wideband is 8kHz audio bandwidth.
	Wideband
	// Superwideband is 12kHz audio bandwidth.
	Superwideband
	// Fullband is 20kHz audio bandwidth.
	Fullband
)

// String returns the string representation of the bandwidth.
func (bw Bandwidth) String() string {
	switch bw {
	case Narrowband:
		return "narrowband"
	case Mediumband:
		return "mediumband"
	case Wideband:
		return "wideband"
	case Superwideband:
		return "super-wideband"
	case Fullband:
		return "fullband"
	default:
		return "unknown"
	}
}

// EndBand returns the exclusive end of the coded band range for the
// bandwidth. CELT never codes mediumband, so it shares the wideband limit.
//
// Reference: libopus celt/celt_decoder.c CELT_SET_END_BAND via opus_decoder.c
func (bw Bandwidth) EndBand() int {
	switch bw {
	case Narrowband:
		return 13
	case Mediumband, Wideband:
		return 17
	case Superwideband:
		return 19
	default:
		return MaxBands
	}
}
