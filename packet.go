// packet.go implements TOC byte parsing and packet frame extraction per RFC 6716 Section 3.

package celtdec

import (
	"fmt"

	"github.com/opuscore/celtdec/celt"
)

// Mode is the Opus coding mode selected by the TOC configuration.
type Mode uint8

const (
	ModeSILK   Mode = iota // SILK-only mode (configs 0-11)
	ModeHybrid             // Hybrid SILK+CELT (configs 12-15)
	ModeCELT               // CELT-only mode (configs 16-31)
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSILK:
		return "silk"
	case ModeHybrid:
		return "hybrid"
	case ModeCELT:
		return "celt"
	default:
		return "unknown"
	}
}

// Bandwidth is the audio bandwidth of a packet.
type Bandwidth = celt.Bandwidth

const (
	BandwidthNarrowband    = celt.Narrowband    // 4kHz audio
	BandwidthMediumband    = celt.Mediumband    // 6kHz audio
	BandwidthWideband      = celt.Wideband      // 8kHz audio
	BandwidthSuperwideband = celt.Superwideband // 12kHz audio
	BandwidthFullband      = celt.Fullband      // 20kHz audio
)

// maxFrameBytes is the largest frame RFC 6716 allows.
const maxFrameBytes = 1275

// maxFrames is the largest frame count of a code 3 packet.
const maxFrames = 48

// TOC represents the parsed Table of Contents byte from an Opus packet.
type TOC struct {
	Config    uint8     // Configuration 0-31
	Mode      Mode      // Derived from config
	Bandwidth Bandwidth // Derived from config
	FrameSize int       // Frame size in samples at 48kHz
	Stereo    bool      // True if stereo
	FrameCode uint8     // Code 0-3
}

type configEntry struct {
	mode      Mode
	bandwidth Bandwidth
	frameSize int // In samples at 48kHz
}

// configTable maps configuration indices 0-31 to their properties.
// RFC 6716 Section 3.1, Table 2.
var configTable = [32]configEntry{
	// SILK-only NB/MB/WB: 10/20/40/60ms
	{ModeSILK, BandwidthNarrowband, 480}, {ModeSILK, BandwidthNarrowband, 960},
	{ModeSILK, BandwidthNarrowband, 1920}, {ModeSILK, BandwidthNarrowband, 2880},
	{ModeSILK, BandwidthMediumband, 480}, {ModeSILK, BandwidthMediumband, 960},
	{ModeSILK, BandwidthMediumband, 1920}, {ModeSILK, BandwidthMediumband, 2880},
	{ModeSILK, BandwidthWideband, 480}, {ModeSILK, BandwidthWideband, 960},
	{ModeSILK, BandwidthWideband, 1920}, {ModeSILK, BandwidthWideband, 2880},
	// Hybrid SWB/FB: 10/20ms
	{ModeHybrid, BandwidthSuperwideband, 480}, {ModeHybrid, BandwidthSuperwideband, 960},
	{ModeHybrid, BandwidthFullband, 480}, {ModeHybrid, BandwidthFullband, 960},
	// CELT-only NB/WB/SWB/FB: 2.5/5/10/20ms
	{ModeCELT, BandwidthNarrowband, 120}, {ModeCELT, BandwidthNarrowband, 240},
	{ModeCELT, BandwidthNarrowband, 480}, {ModeCELT, BandwidthNarrowband, 960},
	{ModeCELT, BandwidthWideband, 120}, {ModeCELT, BandwidthWideband, 240},
	{ModeCELT, BandwidthWideband, 480}, {ModeCELT, BandwidthWideband, 960},
	{ModeCELT, BandwidthSuperwideband, 120}, {ModeCELT, BandwidthSuperwideband, 240},
	{ModeCELT, BandwidthSuperwideband, 480}, {ModeCELT, BandwidthSuperwideband, 960},
	{ModeCELT, BandwidthFullband, 120}, {ModeCELT, BandwidthFullband, 240},
	{ModeCELT, BandwidthFullband, 480}, {ModeCELT, BandwidthFullband, 960},
}

// GenerateTOC creates a TOC byte. frameCode is the frame count code 0-3.
func GenerateTOC(config uint8, stereo bool, frameCode uint8) byte {
	toc := (config & 0x1F) << 3
	if stereo {
		toc |= 0x04
	}
	return toc | frameCode&0x03
}

// ConfigFromParams returns the config index for given mode, bandwidth, and frame size.
// Returns -1 if the combination is invalid.
func ConfigFromParams(mode Mode, bandwidth Bandwidth, frameSize int) int {
	for i, entry := range configTable {
		if entry.mode == mode && entry.bandwidth == bandwidth && entry.frameSize == frameSize {
			return i
		}
	}
	return -1
}

// ParseTOC parses a TOC byte and returns the decoded fields.
func ParseTOC(b byte) TOC {
	config := b >> 3
	entry := configTable[config]
	return TOC{
		Config:    config,
		Mode:      entry.mode,
		Bandwidth: entry.bandwidth,
		FrameSize: entry.frameSize,
		Stereo:    b&0x04 != 0,
		FrameCode: b & 0x03,
	}
}

// PacketInfo contains parsed information about an Opus packet.
type PacketInfo struct {
	TOC        TOC   // Parsed TOC byte
	FrameCount int   // Number of frames (1-48 for code 3)
	FrameSizes []int // Size in bytes of each frame
	Padding    int   // Padding bytes (code 3 only)
	HeaderSize int   // Bytes before the first frame
	TotalSize  int   // Total packet size
}

// ParsePacket parses an Opus packet and returns information about its structure.
// It determines the frame boundaries based on the TOC byte's frame code (0-3).
func ParsePacket(data []byte) (PacketInfo, error) {
	if len(data) < 1 {
		return PacketInfo{}, ErrPacketTooShort
	}

	toc := ParseTOC(data[0])
	info := PacketInfo{
		TOC:        toc,
		HeaderSize: 1,
		TotalSize:  len(data),
	}

	switch toc.FrameCode {
	case 0:
		info.FrameCount = 1
		info.FrameSizes = []int{len(data) - 1}

	case 1:
		n := len(data) - 1
		if n%2 != 0 {
			return PacketInfo{}, fmt.Errorf("%w: code 1 payload of odd length %d", ErrInvalidPacket, n)
		}
		info.FrameCount = 2
		info.FrameSizes = []int{n / 2, n / 2}

	case 2:
		first, nb, err := parseFrameLength(data, 1)
		if err != nil {
			return PacketInfo{}, err
		}
		info.HeaderSize = 1 + nb
		second := len(data) - info.HeaderSize - first
		if second < 0 {
			return PacketInfo{}, fmt.Errorf("%w: first frame overruns packet", ErrInvalidPacket)
		}
		info.FrameCount = 2
		info.FrameSizes = []int{first, second}

	case 3:
		if len(data) < 2 {
			return PacketInfo{}, ErrPacketTooShort
		}
		countByte := data[1]
		vbr := countByte&0x80 != 0
		hasPadding := countByte&0x40 != 0
		m := int(countByte & 0x3F)
		if m == 0 || m > maxFrames || m*toc.FrameSize > 5760 {
			return PacketInfo{}, fmt.Errorf("%w: %d frames", ErrInvalidFrameCount, m)
		}

		offset := 2
		padding := 0
		for hasPadding {
			if offset >= len(data) {
				return PacketInfo{}, ErrPacketTooShort
			}
			b := int(data[offset])
			offset++
			if b == 255 {
				padding += 254
			} else {
				padding += b
				hasPadding = false
			}
		}

		info.FrameCount = m
		info.Padding = padding
		info.FrameSizes = make([]int, m)

		if vbr {
			sum := 0
			for i := 0; i < m-1; i++ {
				n, nb, err := parseFrameLength(data, offset)
				if err != nil {
					return PacketInfo{}, err
				}
				info.FrameSizes[i] = n
				sum += n
				offset += nb
			}
			last := len(data) - offset - padding - sum
			if last < 0 {
				return PacketInfo{}, fmt.Errorf("%w: frames overrun packet", ErrInvalidPacket)
			}
			info.FrameSizes[m-1] = last
		} else {
			n := len(data) - offset - padding
			if n < 0 || n%m != 0 {
				return PacketInfo{}, fmt.Errorf("%w: CBR payload %d not divisible by %d", ErrInvalidPacket, n, m)
			}
			for i := range info.FrameSizes {
				info.FrameSizes[i] = n / m
			}
		}
		info.HeaderSize = offset
	}

	for _, n := range info.FrameSizes {
		if n > maxFrameBytes {
			return PacketInfo{}, fmt.Errorf("%w: frame of %d bytes", ErrInvalidPacket, n)
		}
	}
	return info, nil
}

// Frames returns the frames of a packet as subslices of data. Nothing is
// copied; the frames alias data.
func Frames(data []byte, info PacketInfo) [][]byte {
	frames := make([][]byte, 0, info.FrameCount)
	offset := info.HeaderSize
	for _, n := range info.FrameSizes {
		if offset+n > len(data) {
			break
		}
		frames = append(frames, data[offset:offset+n:offset+n])
		offset += n
	}
	return frames
}

// parseFrameLength parses a frame length at offset.
// Per RFC 6716 Section 3.2.1, lengths < 252 use one byte, lengths >= 252 use two bytes.
// Returns the length and the number of bytes read.
func parseFrameLength(data []byte, offset int) (int, int, error) {
	if offset >= len(data) {
		return 0, 0, ErrPacketTooShort
	}
	first := int(data[offset])
	if first < 252 {
		return first, 1, nil
	}
	if offset+1 >= len(data) {
		return 0, 0, ErrPacketTooShort
	}
	return 4*int(data[offset+1]) + first, 2, nil
}
