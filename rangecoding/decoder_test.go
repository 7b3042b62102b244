package rangecoding

import (
	"errors"
	"math/rand"
	"testing"
)

var testContexts = []*ICDFContext{
	{Name: "tapset", Total: 4, Dist: []int{2, 3, 4}},
	{Name: "spread", Total: 32, Dist: []int{7, 9, 30, 32}},
	{Name: "trim", Total: 128, Dist: []int{2, 4, 9, 19, 41, 87, 109, 119, 124, 126, 128}},
	{Name: "flat", Total: 8, Dist: []int{1, 2, 3, 4, 5, 6, 7, 8}},
}

func randomBuffer(rng *rand.Rand, n int) []byte {
	buf := make([]byte, n)
	rng.Read(buf)
	return buf
}

// TestDecoderInit tests decoder initialization with various inputs.
func TestDecoderInit(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty buffer", []byte{}},
		{"single byte", []byte{0x00}},
		{"single byte 0xFF", []byte{0xFF}},
		{"multiple bytes", []byte{0x12, 0x34, 0x56, 0x78}},
		{"all zeros", []byte{0x00, 0x00, 0x00, 0x00}},
		{"all ones", []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d Decoder
			d.Init(tc.buf)

			if d.rng <= EC_CODE_BOT {
				t.Errorf("rng = 0x%X, want > 0x%X (EC_CODE_BOT)", d.rng, EC_CODE_BOT)
			}
			if d.rng > EC_CODE_TOP {
				t.Errorf("rng = 0x%X, want <= 0x%X", d.rng, EC_CODE_TOP)
			}
			if got := d.Tell(); got != 1 {
				t.Errorf("Tell() = %d, want 1", got)
			}
			if got := d.TellFrac(); got != 8 {
				t.Errorf("TellFrac() = %d, want 8", got)
			}
			if d.Err() != nil {
				t.Errorf("Err() = %v, want nil", d.Err())
			}
		})
	}
}

// TestDecoderInitSeed checks the 7-bit seed: val = 127 - (b0 >> 1) before
// normalization pulls three more bytes.
func TestDecoderInitSeed(t *testing.T) {
	d := NewDecoder([]byte{0x00, 0x00, 0x00, 0x00})
	// All-zero input: every inverted byte is 0xFF.
	want := uint32(0x7FFFFFFF)
	if d.Val() != want {
		t.Errorf("Val() = 0x%X, want 0x%X", d.Val(), want)
	}
	if d.Range() != EC_CODE_TOP {
		t.Errorf("Range() = 0x%X, want 0x%X", d.Range(), uint32(EC_CODE_TOP))
	}
}

func TestDecodeBitZeroLogpAlwaysTrue(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		d := NewDecoder(randomBuffer(rng, 16))
		for i := 0; i < rng.Intn(20); i++ {
			d.DecodeBit(uint(1 + rng.Intn(15)))
		}
		if !d.DecodeBit(0) {
			t.Fatalf("trial %d: DecodeBit(0) = false", trial)
		}
	}
}

func TestDecoderDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	buf := randomBuffer(rng, 64)

	run := func() []int {
		d := NewDecoder(buf)
		var out []int
		for i := 0; i < 40; i++ {
			switch i % 5 {
			case 0:
				if d.DecodeBit(uint(1 + i%15)) {
					out = append(out, 1)
				} else {
					out = append(out, 0)
				}
			case 1:
				out = append(out, d.DecodeICDF(testContexts[i%len(testContexts)]))
			case 2:
				out = append(out, int(d.DecodeUniform(uint32(3+i*37))))
			case 3:
				out = append(out, int(d.DecodeRawBits(uint(1+i%9))))
			case 4:
				out = append(out, d.DecodeLaplace(72<<7, 127<<6))
			}
			out = append(out, d.TellFrac())
		}
		return out
	}

	first := run()
	for r := 0; r < 3; r++ {
		again := run()
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("run %d diverged at step %d: %d != %d", r, i, again[i], first[i])
			}
		}
	}
}

// TestDecodeICDFStraddle checks dist[k-1] <= scaled value < dist[k].
func TestDecodeICDFStraddle(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 500; trial++ {
		d := NewDecoder(randomBuffer(rng, 24))
		ctx := testContexts[trial%len(testContexts)]

		scale := d.rng / uint32(ctx.Total)
		k := uint32(ctx.Total) - min(d.val/scale+1, uint32(ctx.Total))

		sym := d.DecodeICDF(ctx)
		lo := 0
		if sym > 0 {
			lo = ctx.Dist[sym-1]
		}
		if !(uint32(lo) <= k && k < uint32(ctx.Dist[sym])) {
			t.Fatalf("trial %d %s: sym %d does not straddle k=%d ([%d,%d))",
				trial, ctx.Name, sym, k, lo, ctx.Dist[sym])
		}
	}
}

func TestTellFracBoundsTell(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	d := NewDecoder(randomBuffer(rng, 128))
	for i := 0; i < 300; i++ {
		d.DecodeBit(uint(1 + rng.Intn(15)))
		tell := d.Tell()
		frac := d.TellFrac()
		if frac > tell<<BITRES || frac <= (tell-1)<<BITRES {
			t.Fatalf("step %d: TellFrac %d outside (%d, %d]", i, frac, (tell-1)<<BITRES, tell<<BITRES)
		}
		if d.AvailableFrac() != d.StorageBits()<<BITRES-frac {
			t.Fatalf("step %d: AvailableFrac inconsistent", i)
		}
	}
}

// TestDecodeRawBitsFromTail reads the tail LSB-first, independently of the
// arithmetic stream at the front.
func TestDecodeRawBitsFromTail(t *testing.T) {
	buf := []byte{197, 105, 76, 120, 136, 74, 169, 50, 225, 8, 231, 211, 227, 151, 186, 58, 173, 139}
	reads := []struct {
		n    uint
		want uint32
	}{
		{3, 3}, {3, 1}, {3, 6}, {3, 6}, {3, 2}, {3, 5}, {3, 6}, {3, 1},
		{2, 2}, {2, 2}, {3, 3}, {3, 7}, {3, 5}, {3, 4}, {2, 3}, {2, 0},
		{3, 6}, {3, 7}, {3, 4}, {3, 6}, {3, 7}, {3, 4}, {3, 3}, {3, 4},
		{3, 0}, {3, 2}, {3, 0}, {3, 7}, {3, 2}, {3, 6}, {3, 4}, {3, 4},
		{3, 2}, {3, 5}, {3, 2}, {3, 2}, {3, 0}, {3, 1}, {3, 2}, {3, 4},
		{4, 7}, {4, 12}, {19, 284308},
	}

	d := NewDecoder(buf)
	front := d.Val()
	for i, r := range reads {
		if got := d.DecodeRawBits(r.n); got != r.want {
			t.Fatalf("read %d (%d bits) = %d, want %d", i, r.n, got, r.want)
		}
	}
	if d.Val() != front {
		t.Errorf("raw reads moved the arithmetic state")
	}
}

func TestToEndExhaustsBudget(t *testing.T) {
	d := NewDecoder(make([]byte, 20))
	d.DecodeBit(15)
	d.ToEnd()
	if got := d.Available(); got != 0 {
		t.Errorf("Available() after ToEnd = %d, want 0", got)
	}
	// Tell rounds up, so the fractional position may trail by up to 7/8.
	if got := d.AvailableFrac(); got < 0 || got >= 1<<BITRES {
		t.Errorf("AvailableFrac() after ToEnd = %d, want in [0, %d)", got, 1<<BITRES)
	}
	if d.Overlapped() {
		t.Errorf("Overlapped() after ToEnd = true")
	}
}

func TestOverlappedPastEnd(t *testing.T) {
	d := NewDecoder([]byte{0x5A, 0xA5})
	for i := 0; i < 64; i++ {
		d.DecodeBit(1)
	}
	if !d.Overlapped() {
		t.Errorf("Overlapped() = false after reading %d bits from 16", d.Tell())
	}
}

func TestCollapsedRangeIsCorrupt(t *testing.T) {
	d := NewDecoder([]byte{1, 2, 3, 4})
	d.rng = 0
	d.DecodeBit(1)
	if !errors.Is(d.Err(), ErrCorrupt) {
		t.Fatalf("Err() = %v, want ErrCorrupt", d.Err())
	}
	// Further reads must not panic.
	d.DecodeICDF(testContexts[0])
	d.DecodeUniform(6)
	d.DecodeLaplace(1<<14, 1<<13)
}

func TestDecodeUniformOutOfRangeIsCorrupt(t *testing.T) {
	// ft = 301: ft-1 = 300 needs 9 bits, so the top symbol range is 151 and
	// the low bit comes raw. (150<<1)|1 = 301 is outside [0, 301).
	e := NewEncoder(8)
	e.Encode(150, 151, 151)
	e.EncodeRawBits(1, 1)
	buf := e.Done()

	d := NewDecoder(buf)
	d.DecodeUniform(301)
	if !errors.Is(d.Err(), ErrCorrupt) {
		t.Fatalf("Err() = %v, want ErrCorrupt", d.Err())
	}
}

func TestICDFContextValidate(t *testing.T) {
	for _, ctx := range testContexts {
		if err := ctx.Validate(); err != nil {
			t.Errorf("%s: %v", ctx.Name, err)
		}
	}
	bad := []*ICDFContext{
		{Name: "empty", Total: 4},
		{Name: "flat step", Total: 4, Dist: []int{2, 2, 4}},
		{Name: "short", Total: 8, Dist: []int{2, 4}},
	}
	for _, ctx := range bad {
		if err := ctx.Validate(); !errors.Is(err, ErrInvalidICDF) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidICDF", ctx.Name, err)
		}
	}
}

func BenchmarkDecodeICDF(b *testing.B) {
	buf := make([]byte, 256)
	for i := range buf {
		buf[i] = byte(i*37 + 11)
	}
	ctx := testContexts[2]

	var d Decoder
	d.Init(buf)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if i&255 == 0 {
			d.Init(buf)
		}
		_ = d.DecodeICDF(ctx)
	}
}
