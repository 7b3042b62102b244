package rangecoding

import (
	"errors"
	"math/bits"
)

// ErrCorrupt indicates the coded stream cannot belong to a conformant packet:
// the range collapsed to zero or a uniform value fell outside its alphabet.
var ErrCorrupt = errors.New("rangecoding: corrupt stream")

// Decoder implements the range decoder per RFC 6716 Section 4.1.
// This is a bit-exact port of libopus entdec.c.
//
// The zero value is not usable; call Init first.
type Decoder struct {
	buf        []byte // Input buffer (borrowed)
	storage    uint32 // Buffer size
	front      frontCursor
	tail       tailCursor
	nbitsTotal int    // Total bits read (for tell functions)
	rng        uint32 // Range size (must stay > EC_CODE_BOT after normalize)
	val        uint32 // Current value in range
	ext        uint32 // Saved normalization factor from decode()
	rem        int    // Buffered partial byte
	err        error
}

// NewDecoder returns a Decoder initialized over buf.
func NewDecoder(buf []byte) *Decoder {
	d := &Decoder{}
	d.Init(buf)
	return d
}

// Init initializes the decoder with the given byte buffer.
// This follows libopus ec_dec_init exactly: the first 7 bits seed val and
// the range starts at 128.
func (d *Decoder) Init(buf []byte) {
	d.buf = buf
	d.storage = uint32(len(buf))
	d.front = frontCursor{}
	d.tail = tailCursor{}
	d.err = nil

	d.rng = 1 << EC_CODE_EXTRA
	d.rem = int(d.front.next(d.buf, d.storage))
	d.val = d.rng - 1 - uint32(d.rem>>(EC_SYM_BITS-EC_CODE_EXTRA))

	// Set before normalize; normalize accounts for the bytes it pulls.
	d.nbitsTotal = EC_CODE_BITS + 1 -
		((EC_CODE_BITS-EC_CODE_EXTRA)/EC_SYM_BITS)*EC_SYM_BITS
	d.ext = 0

	d.normalize()
}

// normalize ensures rng > EC_CODE_BOT by reading more bytes.
// Input bytes are inverted (255 &^ sym), matching the encoder's convention.
func (d *Decoder) normalize() {
	if d.rng == 0 {
		d.err = ErrCorrupt
		return
	}
	for d.rng <= EC_CODE_BOT {
		d.nbitsTotal += EC_SYM_BITS
		d.rng <<= EC_SYM_BITS

		sym := d.rem
		d.rem = int(d.front.next(d.buf, d.storage))
		sym = (sym<<EC_SYM_BITS | d.rem) >> (EC_SYM_BITS - EC_CODE_EXTRA)

		d.val = ((d.val << EC_SYM_BITS) + uint32(EC_SYM_MAX&^sym)) & (EC_CODE_TOP - 1)
	}
}

// DecodeBit decodes a binary decision whose "true" probability is 1/2^logp.
// DecodeBit(0) always returns true.
//
// Per libopus entdec.c ec_dec_bit_logp, the bottom [0, s) region is true.
func (d *Decoder) DecodeBit(logp uint) bool {
	r := d.rng
	s := r >> logp
	ret := d.val < s
	if ret {
		d.rng = s
	} else {
		d.val -= s
		d.rng = r - s
	}
	d.normalize()
	return ret
}

// DecodeICDF decodes one symbol from the given distribution.
func (d *Decoder) DecodeICDF(ctx *ICDFContext) int {
	k := d.decode(uint32(ctx.Total))
	sym := ctx.search(k)
	d.update(ctx.low(sym), uint32(ctx.Dist[sym]), uint32(ctx.Total))
	return sym
}

// DecodeUniform decodes a uniformly distributed value in the range [0, ft).
// Alphabets needing more than EC_UINT_BITS of resolution take their low bits
// from the raw tail.
// Reference: libopus celt/entdec.c ec_dec_uint()
func (d *Decoder) DecodeUniform(ft uint32) uint32 {
	if ft <= 1 {
		return 0
	}

	ft--
	ftb := ilog(ft)

	if ftb > EC_UINT_BITS {
		ftb -= EC_UINT_BITS
		ft1 := (ft >> uint(ftb)) + 1
		s := d.decode(ft1)
		d.update(s, s+1, ft1)

		t := (s << uint(ftb)) | d.DecodeRawBits(uint(ftb))
		if t <= ft {
			return t
		}
		d.err = ErrCorrupt
		return ft
	}

	ft++
	s := d.decode(ft)
	d.update(s, s+1, ft)
	return s
}

// DecodeRawBits reads raw bits from the end of the buffer.
// Reference: libopus celt/entdec.c ec_dec_bits()
func (d *Decoder) DecodeRawBits(n uint) uint32 {
	if n == 0 {
		return 0
	}
	v := d.tail.read(d.buf, d.storage, n)
	d.nbitsTotal += int(n)
	return v
}

// decode returns the cumulative frequency the current value falls in and
// stores the scale for the following update. Mirrors ec_decode().
func (d *Decoder) decode(ft uint32) uint32 {
	d.ext = d.rng / ft
	if d.ext == 0 {
		d.err = ErrCorrupt
		return 0
	}
	s := d.val / d.ext
	if s+1 > ft {
		s = ft - 1
	}
	return ft - (s + 1)
}

// decodeBin is decode for power-of-two totals. Mirrors ec_decode_bin().
func (d *Decoder) decodeBin(bits uint) uint32 {
	ft := uint32(1) << bits
	d.ext = d.rng >> bits
	if d.ext == 0 {
		d.err = ErrCorrupt
		return 0
	}
	s := d.val / d.ext
	if s+1 > ft {
		s = ft - 1
	}
	return ft - (s + 1)
}

func (d *Decoder) update(fl, fh, ft uint32) {
	s := d.ext * (ft - fh)
	d.val -= s
	if fl > 0 {
		d.rng = d.ext * (fh - fl)
	} else {
		d.rng -= s
	}
	d.normalize()
}

// Tell returns the number of bits consumed so far, rounded up.
func (d *Decoder) Tell() int {
	return d.nbitsTotal - ilog(d.rng)
}

// TellFrac returns the number of bits consumed in 1/8 bit units.
//
// log2(rng) is refined with three fixed-point squarings, exactly as in
// RFC 6716 Section 4.1.6; allocation decisions depend on every bit of it.
func (d *Decoder) TellFrac() int {
	nbits := d.nbitsTotal << BITRES
	l := ilog(d.rng)
	r := d.rng >> uint(l-16)
	for i := 0; i < BITRES; i++ {
		r = r * r >> 15
		b := int(r >> 16)
		l = l<<1 | b
		r >>= uint(b)
	}
	return nbits - l
}

// Available returns the whole bits left before the end of the buffer.
func (d *Decoder) Available() int {
	return d.StorageBits() - d.Tell()
}

// AvailableFrac returns the bits left in 1/8 bit units.
func (d *Decoder) AvailableFrac() int {
	return d.StorageBits()<<BITRES - d.TellFrac()
}

// ToEnd moves the bit position to the end of the buffer. Whole-bit checks
// then see nothing left and fractional checks less than one bit. Used when a
// frame is flagged silent.
func (d *Decoder) ToEnd() {
	d.nbitsTotal += d.StorageBits() - d.Tell()
}

// StorageBits returns the total number of bits in the input buffer.
func (d *Decoder) StorageBits() int {
	return int(d.storage) * 8
}

// Err reports ErrCorrupt once the stream has been found malformed.
func (d *Decoder) Err() error {
	return d.err
}

// Overlapped reports whether the bits accounted to the arithmetic stream and
// the raw tail together exceed the buffer, i.e. the two cursors crossed.
// The front cursor prefetches up to four bytes of state, so byte offsets
// alone cannot decide this; the bit accounting can.
func (d *Decoder) Overlapped() bool {
	return d.Tell() > d.StorageBits()
}

// Range returns the current range value (for testing/debugging).
func (d *Decoder) Range() uint32 {
	return d.rng
}

// Val returns the current val (for testing/debugging).
func (d *Decoder) Val() uint32 {
	return d.val
}

// ilog computes the integer log base 2 (position of highest set bit + 1).
// Returns 0 for input 0.
func ilog(x uint32) int {
	return bits.Len32(x)
}
