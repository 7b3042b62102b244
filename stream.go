// stream.go drives a celt.Decoder over the frames of successive packets.

package celtdec

import (
	"errors"
	"fmt"
	"io"

	"github.com/opuscore/celtdec/celt"
	"github.com/opuscore/celtdec/rangecoding"
)

// PacketSource provides Opus packets for streaming decode.
// Implementations should return io.EOF when no more packets are available.
type PacketSource interface {
	// NextPacket returns the next Opus packet.
	// Returns io.EOF when stream ends.
	NextPacket() ([]byte, error)
}

// FrameResult is the decoded header of one frame of a packet.
type FrameResult struct {
	Packet int // Packet index within the stream
	Index  int // Frame index within the packet
	TOC    TOC
	Bytes  int // Frame size in bytes

	// Range is the range decoder state once the header has been decoded.
	Range uint32

	*celt.Result
}

// StreamOption configures a Stream.
type StreamOption func(*streamConfig)

type streamConfig struct {
	start, end int
	tracer     celt.Tracer
}

// WithBandRange restricts decoding to bands [start, end). The end band is
// further limited by each packet's bandwidth.
func WithBandRange(start, end int) StreamOption {
	return func(c *streamConfig) {
		c.start, c.end = start, end
	}
}

// WithTracer installs a tracer on the underlying frame decoder.
func WithTracer(t celt.Tracer) StreamOption {
	return func(c *streamConfig) {
		c.tracer = t
	}
}

// Stream decodes the CELT frame headers of one logical Opus stream.
// Packets must be fed in order. A Stream is not safe for concurrent use.
type Stream struct {
	dec        *celt.Decoder
	start, end int
	packets    int
}

// NewStream creates a stream decoder. stereo selects the channel count of
// the stream; individual packets may still be mono.
func NewStream(stereo bool, opts ...StreamOption) (*Stream, error) {
	cfg := streamConfig{end: celt.MaxBands}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.start < 0 || cfg.end > celt.MaxBands || cfg.start >= cfg.end {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidBandRange, cfg.start, cfg.end)
	}

	var decOpts []celt.Option
	if cfg.tracer != nil {
		decOpts = append(decOpts, celt.WithTracer(cfg.tracer))
	}
	return &Stream{
		dec:   celt.NewDecoder(stereo, decOpts...),
		start: cfg.start,
		end:   cfg.end,
	}, nil
}

// Decoder returns the underlying frame decoder.
func (s *Stream) Decoder() *celt.Decoder {
	return s.dec
}

// Reset clears all inter-frame state, as at the start of a new stream.
func (s *Stream) Reset() {
	s.dec.Reset()
	s.packets = 0
}

// DecodePacket decodes every frame of a CELT-only packet.
//
// Frames are decoded in order. If a frame fails, the error is returned and
// the remaining frames of the packet are dropped; the frames decoded before
// it are returned alongside the error.
func (s *Stream) DecodePacket(packet []byte) ([]FrameResult, error) {
	info, err := ParsePacket(packet)
	if err != nil {
		return nil, err
	}
	toc := info.TOC
	if toc.Mode != ModeCELT {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, toc.Mode)
	}

	pkt := s.packets
	s.packets++

	end := min(toc.Bandwidth.EndBand(), s.end)
	if end <= s.start {
		return nil, fmt.Errorf("%w: start %d beyond %s end band %d", ErrInvalidBandRange, s.start, toc.Bandwidth, end)
	}
	fi := celt.FrameInfo{
		FrameSize: toc.FrameSize,
		Start:     s.start,
		End:       end,
		Stereo:    toc.Stereo,
	}

	frames := Frames(packet, info)
	results := make([]FrameResult, 0, len(frames))
	for i, frame := range frames {
		rd := rangecoding.NewDecoder(frame)
		res, err := s.dec.Decode(rd, fi)
		if err != nil {
			return results, fmt.Errorf("celtdec: packet %d frame %d: %w", pkt, i, err)
		}
		results = append(results, FrameResult{
			Packet: pkt,
			Index:  i,
			TOC:    toc,
			Bytes:  len(frame),
			Range:  rd.Range(),
			Result: res,
		})
	}
	return results, nil
}

// DecodeAll pulls packets from src until io.EOF and calls fn with the frames
// of each. Packets in a mode other than CELT are skipped. Decoding stops at
// the first other error, or when fn returns an error.
func (s *Stream) DecodeAll(src PacketSource, fn func([]FrameResult) error) error {
	for {
		packet, err := src.NextPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		frames, err := s.DecodePacket(packet)
		if errors.Is(err, ErrUnsupportedMode) {
			s.packets++
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(frames); err != nil {
			return err
		}
	}
}
