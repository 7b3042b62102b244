// errors.go defines public error types for the celtdec package.

package celtdec

import "errors"

// Errors returned by packet parsing and stream decoding.
var (
	// ErrPacketTooShort indicates the packet ends inside its header.
	ErrPacketTooShort = errors.New("celtdec: packet too short")

	// ErrInvalidFrameCount indicates a code 3 packet with 0 frames, more than
	// 48 frames, or more than 120ms of audio.
	ErrInvalidFrameCount = errors.New("celtdec: invalid frame count")

	// ErrInvalidPacket indicates frame lengths inconsistent with the packet size.
	ErrInvalidPacket = errors.New("celtdec: invalid packet structure")

	// ErrUnsupportedMode indicates a SILK or hybrid packet. Only CELT-only
	// packets are decoded.
	ErrUnsupportedMode = errors.New("celtdec: unsupported mode")

	// ErrInvalidBandRange indicates a band range option outside [0, 21].
	ErrInvalidBandRange = errors.New("celtdec: invalid band range")
)
