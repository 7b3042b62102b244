package celtdec

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/opuscore/celtdec/celt"
)

// slicePacketSource implements PacketSource for testing.
type slicePacketSource struct {
	packets [][]byte
	index   int
	err     error
}

func (s *slicePacketSource) NextPacket() ([]byte, error) {
	if s.index >= len(s.packets) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	packet := s.packets[s.index]
	s.index++
	return packet, nil
}

// zeroPacket builds a CELT packet of n CBR frames of size bytes each. An
// all-zero frame decodes as a non-silent inter frame.
func zeroPacket(config uint8, stereo bool, n, size int) []byte {
	if n == 1 {
		return append([]byte{GenerateTOC(config, stereo, 0)}, make([]byte, size)...)
	}
	packet := []byte{GenerateTOC(config, stereo, 3), byte(n)}
	return append(packet, make([]byte, n*size)...)
}

func mustStream(t *testing.T, stereo bool, opts ...StreamOption) *Stream {
	t.Helper()
	s, err := NewStream(stereo, opts...)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	return s
}

func TestNewStreamBandRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		ok         bool
	}{
		{"full", 0, 21, true},
		{"hybrid_range", 17, 21, true},
		{"negative_start", -1, 21, false},
		{"end_past_max", 0, 22, false},
		{"empty", 5, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStream(false, WithBandRange(tt.start, tt.end))
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidBandRange) {
				t.Fatalf("error: got %v, want ErrInvalidBandRange", err)
			}
		})
	}
}

func TestStreamRejectsNonCELT(t *testing.T) {
	s := mustStream(t, false)
	for _, config := range []uint8{1, 9, 13, 15} {
		_, err := s.DecodePacket(zeroPacket(config, false, 1, 20))
		if !errors.Is(err, ErrUnsupportedMode) {
			t.Errorf("config %d: error %v, want ErrUnsupportedMode", config, err)
		}
	}
	if _, err := s.DecodePacket(nil); !errors.Is(err, ErrPacketTooShort) {
		t.Errorf("empty packet: error %v, want ErrPacketTooShort", err)
	}
}

func TestStreamDecodesEveryFrame(t *testing.T) {
	s := mustStream(t, true)
	frames, err := s.DecodePacket(zeroPacket(30, true, 3, 40))
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Packet != 0 || f.Index != i {
			t.Errorf("frame %d: packet %d index %d", i, f.Packet, f.Index)
		}
		if f.Bytes != 40 {
			t.Errorf("frame %d: %d bytes, want 40", i, f.Bytes)
		}
		if f.Silence || f.Transient || f.Intra {
			t.Errorf("frame %d: unexpected flags %+v", i, f.Result)
		}
		if f.LM != 2 {
			t.Errorf("frame %d: LM %d, want 2", i, f.LM)
		}
		if f.TOC.Bandwidth != BandwidthFullband || !f.TOC.Stereo {
			t.Errorf("frame %d: TOC %+v", i, f.TOC)
		}
	}

	frames, err = s.DecodePacket(zeroPacket(31, false, 1, 60))
	if err != nil {
		t.Fatalf("second packet: %v", err)
	}
	if frames[0].Packet != 1 {
		t.Errorf("second packet index %d, want 1", frames[0].Packet)
	}
}

func TestStreamBandwidthLimitsEndBand(t *testing.T) {
	s := mustStream(t, false)
	// CELT narrowband 10ms.
	frames, err := s.DecodePacket(zeroPacket(18, false, 1, 80))
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	res := frames[0]
	for i := celt.Narrowband.EndBand(); i < celt.MaxBands; i++ {
		if res.Allocation.Pulses[i] != 0 || res.Energy[0][i] != 0 {
			t.Errorf("band %d beyond narrowband: pulses %d energy %v",
				i, res.Allocation.Pulses[i], res.Energy[0][i])
		}
	}

	s = mustStream(t, false, WithBandRange(17, 21))
	if _, err := s.DecodePacket(zeroPacket(18, false, 1, 80)); !errors.Is(err, ErrInvalidBandRange) {
		t.Errorf("start beyond narrowband: error %v, want ErrInvalidBandRange", err)
	}
}

func TestStreamSilence(t *testing.T) {
	s := mustStream(t, false)
	// A frame with no payload decodes as silence.
	frames, err := s.DecodePacket([]byte{GenerateTOC(31, false, 0)})
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if !frames[0].Silence {
		t.Error("empty frame should be silent")
	}

	ff := append([]byte{GenerateTOC(31, false, 0)}, bytes.Repeat([]byte{0xFF}, 30)...)
	frames, err = s.DecodePacket(ff)
	if err != nil {
		t.Fatalf("DecodePacket: %v", err)
	}
	if !frames[0].Silence {
		t.Error("all-ones frame should be silent")
	}
	if frames[0].Blocks != 1 {
		t.Errorf("Blocks = %d, want 1", frames[0].Blocks)
	}
}

func TestStreamDeterminism(t *testing.T) {
	packets := [][]byte{
		zeroPacket(31, true, 1, 100),
		append([]byte{GenerateTOC(29, false, 0)}, 0x5A, 0x13, 0xC7, 0x00, 0x91, 0x44, 0xE2, 0x38, 0x7F, 0x06, 0xB5, 0x21),
		zeroPacket(30, false, 2, 25),
	}
	decode := func() []FrameResult {
		s := mustStream(t, true)
		var all []FrameResult
		for i, p := range packets {
			frames, err := s.DecodePacket(p)
			if err != nil {
				t.Fatalf("packet %d: %v", i, err)
			}
			all = append(all, frames...)
		}
		return all
	}

	a, b := decode(), decode()
	if len(a) != len(b) {
		t.Fatalf("frame counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if *a[i].Result != *b[i].Result || a[i].Range != b[i].Range {
			t.Fatalf("frame %d differs between runs", i)
		}
	}
}

func TestStreamReset(t *testing.T) {
	s := mustStream(t, false)
	packet := append([]byte{GenerateTOC(31, false, 0)}, 0x12, 0x9C, 0x40, 0xF1, 0x07, 0x63, 0xAB, 0x5E, 0x11, 0xD0)
	first, err := s.DecodePacket(packet)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.DecodePacket(packet); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	again, err := s.DecodePacket(packet)
	if err != nil {
		t.Fatal(err)
	}
	if *first[0].Result != *again[0].Result {
		t.Error("decode after Reset differs from a fresh stream")
	}
	if again[0].Packet != 0 {
		t.Errorf("packet index after Reset = %d, want 0", again[0].Packet)
	}
}

func TestDecodeAll(t *testing.T) {
	src := &slicePacketSource{packets: [][]byte{
		zeroPacket(31, false, 1, 50),
		zeroPacket(9, false, 1, 50), // SILK, skipped
		zeroPacket(28, false, 4, 10),
	}}
	s := mustStream(t, false)

	var got [][]FrameResult
	err := s.DecodeAll(src, func(frames []FrameResult) error {
		got = append(got, frames)
		return nil
	})
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d packets, want 2", len(got))
	}
	if got[1][0].Packet != 2 || len(got[1]) != 4 {
		t.Errorf("last packet: index %d with %d frames, want 2 with 4", got[1][0].Packet, len(got[1]))
	}
}

func TestDecodeAllStopsOnError(t *testing.T) {
	sourceErr := errors.New("source failed")
	src := &slicePacketSource{packets: [][]byte{zeroPacket(31, false, 1, 50)}, err: sourceErr}
	s := mustStream(t, false)
	if err := s.DecodeAll(src, func([]FrameResult) error { return nil }); !errors.Is(err, sourceErr) {
		t.Errorf("source error: got %v", err)
	}

	stop := errors.New("stop")
	src = &slicePacketSource{packets: [][]byte{zeroPacket(31, false, 1, 50), zeroPacket(31, false, 1, 50)}}
	calls := 0
	err := s.DecodeAll(src, func([]FrameResult) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("callback error: got %v after %d calls", err, calls)
	}

	src = &slicePacketSource{packets: [][]byte{{GenerateTOC(31, false, 3), 0}}}
	if err := s.DecodeAll(src, func([]FrameResult) error { return nil }); !errors.Is(err, ErrInvalidFrameCount) {
		t.Errorf("malformed packet: got %v", err)
	}
}

func TestStreamTracer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := mustStream(t, false, WithTracer(celt.NewSlogTracer(logger)))
	if _, err := s.DecodePacket(zeroPacket(31, false, 1, 50)); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "msg=header") || !strings.Contains(out, "msg=allocation") {
		t.Errorf("tracer output missing decisions:\n%s", out)
	}
}

func BenchmarkStreamDecodePacket(b *testing.B) {
	// Four 5ms stereo frames.
	packet := []byte{GenerateTOC(29, true, 3), 4}
	for i := 0; i < 4*60; i++ {
		packet = append(packet, byte(i*131+7))
	}
	s, err := NewStream(true)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.DecodePacket(packet); err != nil {
			b.Fatal(err)
		}
	}
}
