// Package celt decodes the header of CELT frames per RFC 6716 Section 4.3:
// silence, postfilter, transient and coarse energy, followed by the tf
// changes and the bit allocation that assigns a pulse budget to every band.
//
// Shape decoding and synthesis are not part of this package; the decoded
// values are what a synthesis stage consumes.
package celt

import (
	"errors"
	"fmt"

	"github.com/opuscore/celtdec/rangecoding"
)

// Decoding errors
var (
	// ErrInvalidFrameSize indicates an unsupported frame size.
	ErrInvalidFrameSize = errors.New("celt: invalid frame size")

	// ErrInvalidBandRange indicates a band range outside [0, MaxBands].
	ErrInvalidBandRange = errors.New("celt: invalid band range")

	// ErrNilRangeDecoder indicates a nil range decoder was passed.
	ErrNilRangeDecoder = errors.New("celt: nil range decoder")

	// ErrCorruptFrame indicates the range decoder hit a malformed stream.
	// It wraps rangecoding.ErrCorrupt.
	ErrCorruptFrame = fmt.Errorf("celt: corrupt frame: %w", rangecoding.ErrCorrupt)
)

// Frame is the per-channel state carried from one frame to the next.
type Frame struct {
	PostFilter PostFilter

	// Energy is the coarse log energy per band (base-2, 6dB steps). It seeds
	// the prediction of the next frame.
	Energy [MaxBands]float32
	// PrevEnergy holds the energies the current frame started from.
	PrevEnergy [MaxBands]float32

	// CollapseMasks are cleared at the start of every frame and filled by
	// the shape decoder.
	CollapseMasks [MaxBands]uint8

	// Buf is the synthesis accumulation buffer.
	Buf []float32

	// DeemphCoeff is the de-emphasis filter memory.
	DeemphCoeff float32
}

const frameBufferSize = 2048

func (f *Frame) reset() {
	buf := f.Buf
	*f = Frame{Buf: buf}
	if f.Buf == nil {
		f.Buf = make([]float32, frameBufferSize)
	}
	clear(f.Buf)
}

// FrameInfo describes one frame handed to Decode.
type FrameInfo struct {
	FrameSize int  // Samples at 48kHz: 120, 240, 480 or 960
	Start     int  // First coded band
	End       int  // One past the last coded band, at most MaxBands
	Stereo    bool // The packet codes two channels
}

// Result holds the values decoded from one frame.
type Result struct {
	Silence    bool
	PostFilter bool
	Transient  bool
	Intra      bool

	LM        int
	Blocks    int
	BlockSize int

	Spread   int
	TFChange [MaxBands]int

	Allocation Allocation

	// Filter is the postfilter state of the first channel after the frame.
	// The parameters decoded by this frame are in the New fields.
	Filter PostFilter

	// Energy is a copy of the coarse energies of both channels.
	Energy [2][MaxBands]float32
}

// Decoder decodes CELT frame headers for one logical stream.
//
// The energies and postfilter history persist across calls and drive the
// prediction of the following frame, so one Decoder must see every frame of
// its stream in order. A Decoder is not safe for concurrent use.
//
// Reference: RFC 6716 Section 4.3
type Decoder struct {
	stereo    bool // Stream channels
	stereoPkt bool // Channels of the current packet

	lm         int
	start, end int
	spread     int

	fineBits     [MaxBands]int
	finePriority [MaxBands]int
	pulses       [MaxBands]int
	tfChange     [MaxBands]int

	antiCollapseRsv int
	blocks          int
	blockSize       int

	frames [2]Frame

	tracer Tracer
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithTracer installs a tracer. A nil tracer disables tracing.
func WithTracer(t Tracer) Option {
	return func(d *Decoder) {
		if t == nil {
			t = &NoopTracer{}
		}
		d.tracer = t
	}
}

// NewDecoder creates a decoder for a mono or stereo stream.
func NewDecoder(stereo bool, opts ...Option) *Decoder {
	d := &Decoder{
		stereo: stereo,
		tracer: &NoopTracer{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Reset()
	return d
}

// Reset clears all state carried between frames, as on stream start.
func (d *Decoder) Reset() {
	d.stereoPkt = d.stereo
	d.lm = 0
	d.start, d.end = 0, MaxBands
	d.spread = SpreadNormal
	d.fineBits = [MaxBands]int{}
	d.finePriority = [MaxBands]int{}
	d.pulses = [MaxBands]int{}
	d.tfChange = [MaxBands]int{}
	d.antiCollapseRsv = 0
	d.blocks = 0
	d.blockSize = 0
	for i := range d.frames {
		d.frames[i].reset()
	}
}

// Setup records whether the next packet codes two channels.
func (d *Decoder) Setup(stereoPacket bool) {
	d.stereoPkt = stereoPacket
}

// Stereo reports whether the stream was created stereo.
func (d *Decoder) Stereo() bool {
	return d.stereo
}

// Frame returns the persistent state of channel c (0 or 1).
func (d *Decoder) Frame(c int) *Frame {
	return &d.frames[c]
}

// Pulses returns the per-band pulse budget of the last frame in 1/8 bits.
func (d *Decoder) Pulses() [MaxBands]int {
	return d.pulses
}

// TFChange returns the per-band tf_change of the last frame.
func (d *Decoder) TFChange() [MaxBands]int {
	return d.tfChange
}

// FineBits returns the fine energy bits per band. Fine energy is not
// decoded, so these stay zero.
func (d *Decoder) FineBits() [MaxBands]int {
	return d.fineBits
}

// Decode decodes one frame from rd. Packet stereo is taken from info and
// overrides any earlier Setup.
//
// Decoding is all-or-nothing: on error the frame must be discarded. State
// carried to the next frame may already have been updated.
func (d *Decoder) Decode(rd *rangecoding.Decoder, info FrameInfo) (*Result, error) {
	if rd == nil {
		return nil, ErrNilRangeDecoder
	}
	lm := LMForFrameSize(info.FrameSize)
	if lm < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameSize, info.FrameSize)
	}
	if info.Start < 0 || info.End > MaxBands || info.Start >= info.End {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidBandRange, info.Start, info.End)
	}

	d.Setup(info.Stereo)
	d.lm = lm
	d.start, d.end = info.Start, info.End

	res := &Result{LM: lm}

	if !d.stereoPkt {
		f0, f1 := &d.frames[0], &d.frames[1]
		for i := range f0.Energy {
			f0.Energy[i] = max(f0.Energy[i], f1.Energy[i])
		}
	}
	for c := range d.frames {
		f := &d.frames[c]
		f.PrevEnergy = f.Energy
		f.CollapseMasks = [MaxBands]uint8{}
		f.PostFilter.advance()
	}

	d.traceRange("start", rd)

	// Silence
	silence := true
	if rd.Available() > 0 {
		silence = rd.DecodeBit(15)
	}
	d.traceFlag("silence", boolToInt(silence))
	if err := rd.Err(); err != nil {
		return nil, ErrCorruptFrame
	}
	if silence {
		rd.ToEnd()
		d.silence()
		res.Silence = true
		d.fill(res)
		return res, nil
	}

	// Postfilter
	if d.start == 0 && rd.Available() >= 16 {
		res.PostFilter = d.decodePostFilter(rd)
	}

	// Transient
	transient := false
	if d.lm != 0 && rd.Available() >= 3 {
		transient = rd.DecodeBit(3)
	}
	d.traceFlag("transient", boolToInt(transient))
	d.blocks = 1
	if transient {
		d.blocks = 1 << d.lm
	}
	d.blockSize = info.FrameSize / d.blocks
	res.Transient = transient

	res.Intra = d.decodeCoarseEnergy(rd)
	d.tracer.TraceHeader(info.FrameSize, d.channels(), d.lm, boolToInt(res.Intra), boolToInt(transient))
	if err := rd.Err(); err != nil {
		return nil, ErrCorruptFrame
	}

	d.decodeTFChanges(rd, transient)
	if err := rd.Err(); err != nil {
		return nil, ErrCorruptFrame
	}

	alloc := d.decodeAllocation(rd, transient)
	if err := rd.Err(); err != nil {
		return nil, ErrCorruptFrame
	}
	res.Allocation = alloc

	d.traceRange("end", rd)
	d.fill(res)
	return res, nil
}

// silence resets every per-frame decision to its silent default.
func (d *Decoder) silence() {
	for c := range d.frames {
		d.frames[c].Energy = [MaxBands]float32{}
	}
	d.pulses = [MaxBands]int{}
	d.tfChange = [MaxBands]int{}
	d.fineBits = [MaxBands]int{}
	d.finePriority = [MaxBands]int{}
	d.spread = SpreadNormal
	d.antiCollapseRsv = 0
	d.blocks = 1
	d.blockSize = ShortBlockSize << d.lm
}

func (d *Decoder) fill(res *Result) {
	res.Blocks = d.blocks
	res.BlockSize = d.blockSize
	res.Spread = d.spread
	res.TFChange = d.tfChange
	res.Allocation.Pulses = d.pulses
	res.Filter = d.frames[0].PostFilter
	res.Energy[0] = d.frames[0].Energy
	res.Energy[1] = d.frames[1].Energy
}

func (d *Decoder) channels() int {
	if d.stereoPkt {
		return 2
	}
	return 1
}
