package ogg

import "encoding/binary"

const (
	opusHeadMagic   = "OpusHead"
	opusTagsMagic   = "OpusTags"
	opusHeadVersion = 1
	opusHeadSize    = 19
)

// OpusHead is the identification header for Opus in Ogg.
type OpusHead struct {
	// Version is the format version (must be 1).
	Version uint8

	// Channels is the output channel count, 1 or 2 for mapping family 0.
	Channels uint8

	// PreSkip is the number of samples to discard at the start (at 48kHz).
	PreSkip uint16

	// SampleRate is the original input sample rate (informational only).
	SampleRate uint32

	// OutputGain is the gain to apply in Q7.8 dB format.
	OutputGain int16

	// MappingFamily is the channel mapping family. Only 0 is supported.
	MappingFamily uint8
}

// ParseOpusHead parses an OpusHead packet.
func ParseOpusHead(data []byte) (*OpusHead, error) {
	if len(data) < opusHeadSize || string(data[0:8]) != opusHeadMagic {
		return nil, ErrInvalidHeader
	}
	// Minor version bumps stay compatible (RFC 7845 Section 5.1).
	if data[8]>>4 != 0 {
		return nil, ErrInvalidHeader
	}
	h := &OpusHead{
		Version:       data[8],
		Channels:      data[9],
		PreSkip:       binary.LittleEndian.Uint16(data[10:12]),
		SampleRate:    binary.LittleEndian.Uint32(data[12:16]),
		OutputGain:    int16(binary.LittleEndian.Uint16(data[16:18])),
		MappingFamily: data[18],
	}
	if h.MappingFamily != 0 {
		return nil, ErrUnsupportedMapping
	}
	if h.Channels == 0 || h.Channels > 2 {
		return nil, ErrInvalidHeader
	}
	return h, nil
}

// Encode serializes the header in its mapping family 0 form.
func (h *OpusHead) Encode() []byte {
	data := make([]byte, opusHeadSize)
	copy(data[0:8], opusHeadMagic)
	data[8] = h.Version
	data[9] = h.Channels
	binary.LittleEndian.PutUint16(data[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(data[12:16], h.SampleRate)
	binary.LittleEndian.PutUint16(data[16:18], uint16(h.OutputGain))
	data[18] = h.MappingFamily
	return data
}

// parseVendor checks an OpusTags packet and returns its vendor string.
// User comments are not interpreted.
func parseVendor(data []byte) (string, error) {
	if len(data) < 16 || string(data[0:8]) != opusTagsMagic {
		return "", ErrInvalidHeader
	}
	n := binary.LittleEndian.Uint32(data[8:12])
	if uint64(n) > uint64(len(data)-12) {
		return "", ErrInvalidHeader
	}
	return string(data[12 : 12+n]), nil
}
