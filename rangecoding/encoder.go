package rangecoding

import "errors"

// ErrBufferFull indicates the encoder ran out of output space.
var ErrBufferFull = errors.New("rangecoding: output buffer full")

// Encoder implements the range encoder per RFC 6716 Section 4.1.
// It is the symmetric inverse of Decoder and is used to build packets
// with known content for tests and fixtures.
//
// Done returns the whole storage: range-coded bytes at the front, zero
// padding, raw bits packed against the tail. This is the layout a Decoder
// over the same number of bytes expects.
type Encoder struct {
	buf        []byte
	storage    uint32
	offs       uint32 // Front write offset
	endOffs    uint32 // Bytes written at the tail
	endWindow  uint32
	nendBits   int
	nbitsTotal int
	rng        uint32
	val        uint32
	rem        int    // Buffered byte for carry propagation (-1 = none)
	ext        uint32 // Count of pending 0xFF bytes
	err        error
}

// NewEncoder returns an Encoder writing into a fresh buffer of size bytes.
func NewEncoder(size int) *Encoder {
	e := &Encoder{}
	e.Init(make([]byte, size))
	return e
}

// Init initializes the encoder with the given output buffer.
func (e *Encoder) Init(buf []byte) {
	e.buf = buf
	e.storage = uint32(len(buf))
	e.offs = 0
	e.endOffs = 0
	e.endWindow = 0
	e.nendBits = 0
	e.nbitsTotal = EC_CODE_BITS + 1
	e.rng = EC_CODE_TOP
	e.val = 0
	e.rem = -1
	e.ext = 0
	e.err = nil
}

// carryOut handles carry propagation when outputting bytes.
// Reference: libopus celt/entenc.c ec_enc_carry_out
func (e *Encoder) carryOut(c int) {
	if c != EC_SYM_MAX {
		carry := c >> EC_SYM_BITS
		if e.rem >= 0 {
			e.writeByte(byte(e.rem + carry))
		}
		if e.ext > 0 {
			sym := byte((EC_SYM_MAX + carry) & EC_SYM_MAX)
			for ; e.ext > 0; e.ext-- {
				e.writeByte(sym)
			}
		}
		e.rem = c & EC_SYM_MAX
	} else {
		e.ext++
	}
}

func (e *Encoder) normalize() {
	for e.rng <= EC_CODE_BOT {
		e.carryOut(int(e.val >> EC_CODE_SHIFT))
		e.val = (e.val << EC_SYM_BITS) & (EC_CODE_TOP - 1)
		e.rng <<= EC_SYM_BITS
		e.nbitsTotal += EC_SYM_BITS
	}
}

func (e *Encoder) writeByte(b byte) {
	if e.offs+e.endOffs >= e.storage {
		e.err = ErrBufferFull
		return
	}
	e.buf[e.offs] = b
	e.offs++
}

func (e *Encoder) writeEndByte(b byte) {
	if e.offs+e.endOffs >= e.storage {
		e.err = ErrBufferFull
		return
	}
	e.endOffs++
	e.buf[e.storage-e.endOffs] = b
}

// Encode encodes a symbol with cumulative frequencies [fl, fh) out of ft.
func (e *Encoder) Encode(fl, fh, ft uint32) {
	r := e.rng / ft
	if fl > 0 {
		e.val += e.rng - r*(ft-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * (ft - fh)
	}
	e.normalize()
}

// EncodeBin encodes a symbol with power-of-two total frequency (1<<bits).
func (e *Encoder) EncodeBin(fl, fh uint32, bits uint) {
	r := e.rng >> bits
	if fl > 0 {
		e.val += e.rng - r*((uint32(1)<<bits)-fl)
		e.rng = r * (fh - fl)
	} else {
		e.rng -= r * ((uint32(1) << bits) - fh)
	}
	e.normalize()
}

// EncodeBit encodes a decision whose "true" probability is 1/2^logp.
func (e *Encoder) EncodeBit(val bool, logp uint) {
	r := e.rng
	s := r >> logp
	if val {
		e.val += r - s
		e.rng = s
	} else {
		e.rng = r - s
	}
	e.normalize()
}

// EncodeICDF encodes symbol sym of the given distribution.
func (e *Encoder) EncodeICDF(sym int, ctx *ICDFContext) {
	e.Encode(ctx.low(sym), uint32(ctx.Dist[sym]), uint32(ctx.Total))
}

// EncodeUniform encodes val uniformly distributed in [0, ft).
// Reference: libopus celt/entenc.c ec_enc_uint()
func (e *Encoder) EncodeUniform(val uint32, ft uint32) {
	if ft <= 1 {
		return
	}
	ft--
	ftb := ilog(ft)
	if ftb > EC_UINT_BITS {
		ftb -= EC_UINT_BITS
		ft1 := (ft >> uint(ftb)) + 1
		fl := val >> uint(ftb)
		e.Encode(fl, fl+1, ft1)
		e.EncodeRawBits(val&(uint32(1)<<uint(ftb)-1), uint(ftb))
		return
	}
	e.Encode(val, val+1, ft+1)
}

// EncodeRawBits writes n raw bits at the tail of the buffer.
// Reference: libopus celt/entenc.c ec_enc_bits()
func (e *Encoder) EncodeRawBits(val uint32, n uint) {
	window := e.endWindow
	used := e.nendBits
	if used+int(n) > EC_WINDOW {
		for used >= EC_SYM_BITS {
			e.writeEndByte(byte(window & EC_SYM_MAX))
			window >>= EC_SYM_BITS
			used -= EC_SYM_BITS
		}
	}
	window |= val << uint(used)
	used += int(n)
	e.endWindow = window
	e.nendBits = used
	e.nbitsTotal += int(n)
}

// Tell returns the number of bits written so far.
func (e *Encoder) Tell() int {
	return e.nbitsTotal - ilog(e.rng)
}

// TellFrac returns the number of bits written in 1/8 bit units. At every
// symbol boundary it equals the decoder's TellFrac.
func (e *Encoder) TellFrac() int {
	nbits := e.nbitsTotal << BITRES
	l := ilog(e.rng)
	r := e.rng >> uint(l-16)
	for i := 0; i < BITRES; i++ {
		r = r * r >> 15
		b := int(r >> 16)
		l = l<<1 | b
		r >>= uint(b)
	}
	return nbits - l
}

// StorageBits returns the size of the output buffer in bits.
func (e *Encoder) StorageBits() int {
	return int(e.storage) * 8
}

// Err returns ErrBufferFull if any write overflowed.
func (e *Encoder) Err() error {
	return e.err
}

// Done flushes the coder state and returns the full storage buffer.
// Reference: libopus celt/entenc.c ec_enc_done()
func (e *Encoder) Done() []byte {
	l := EC_CODE_BITS - ilog(e.rng)
	msk := uint32(EC_CODE_TOP-1) >> uint(l)
	end := (e.val + msk) &^ msk
	if (end | msk) >= e.val+e.rng {
		l++
		msk >>= 1
		end = (e.val + msk) &^ msk
	}
	for l > 0 {
		e.carryOut(int(end >> EC_CODE_SHIFT))
		end = (end << EC_SYM_BITS) & (EC_CODE_TOP - 1)
		l -= EC_SYM_BITS
	}
	if e.rem >= 0 || e.ext > 0 {
		e.carryOut(0)
	}

	window := e.endWindow
	used := e.nendBits
	for used >= EC_SYM_BITS {
		e.writeEndByte(byte(window & EC_SYM_MAX))
		window >>= EC_SYM_BITS
		used -= EC_SYM_BITS
	}

	if e.err == nil {
		clear(e.buf[e.offs : e.storage-e.endOffs])
		if used > 0 {
			if e.endOffs >= e.storage {
				e.err = ErrBufferFull
			} else {
				l = -l
				if e.offs+e.endOffs >= e.storage && l < used {
					window &= uint32(1)<<uint(l) - 1
					e.err = ErrBufferFull
				}
				e.buf[e.storage-e.endOffs-1] |= byte(window)
			}
		}
	}
	return e.buf[:e.storage]
}
