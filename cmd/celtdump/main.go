// Command celtdump decodes the CELT frame headers of an opus_demo .bit file
// and prints the per-frame decisions.
//
// Usage:
//
//	celtdump -in testvector01.bit [-json] [-trace] [-start N -end M] [-max K]
//
// The input is either an opus_demo .bit file or an Ogg Opus file.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/opuscore/celtdec"
	"github.com/opuscore/celtdec/celt"
	"github.com/opuscore/celtdec/internal/bitstream"
	"github.com/opuscore/celtdec/internal/ogg"
)

type options struct {
	in         string
	json       bool
	trace      bool
	start, end int
	max        int
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "path to an opus_demo .bit or Ogg Opus file")
	flag.BoolVar(&opts.json, "json", false, "emit one JSON object per frame")
	flag.BoolVar(&opts.trace, "trace", false, "log every decoded symbol to stderr")
	flag.IntVar(&opts.start, "start", 0, "first band to decode")
	flag.IntVar(&opts.end, "end", celt.MaxBands, "one past the last band to decode")
	flag.IntVar(&opts.max, "max", 0, "stop after this many packets (0 = all)")
	flag.Parse()

	if opts.in == "" {
		flag.Usage()
		os.Exit(2)
	}

	in, err := openInput(opts.in)
	if err != nil {
		fatalf("%v", err)
	}
	defer in.close()

	var tracer celt.Tracer
	if opts.trace {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		tracer = celt.NewSlogTracer(logger)
	}
	if err := dump(os.Stdout, in, opts, tracer); err != nil {
		fatalf("%v", err)
	}
}

// errLimit stops decoding once -max packets have been printed.
var errLimit = errors.New("packet limit reached")

// frameRecord is the JSON form of one decoded frame.
type frameRecord struct {
	Packet     int               `json:"packet"`
	Frame      int               `json:"frame"`
	Config     uint8             `json:"config"`
	Bandwidth  string            `json:"bandwidth"`
	FrameSize  int               `json:"frame_size"`
	Stereo     bool              `json:"stereo"`
	Bytes      int               `json:"bytes"`
	Silence    bool              `json:"silence"`
	PostFilter *postFilterRecord `json:"postfilter,omitempty"`
	Transient  bool              `json:"transient"`
	Intra      bool              `json:"intra"`
	Spread     int               `json:"spread"`
	Trim       int               `json:"trim"`
	TFChange   []int             `json:"tf_change"`
	Boost      []int             `json:"boost"`
	Pulses     []int             `json:"pulses"`
	Energy     [][]float32       `json:"energy"`
	Range      uint32            `json:"range"`
}

type postFilterRecord struct {
	Period int        `json:"period"`
	Gains  [3]float32 `json:"gains"`
	Tapset int        `json:"tapset"`
}

// input is an opened packet file.
type input struct {
	source  celtdec.PacketSource
	stereo  bool
	summary string
	close   func() error
}

// openInput opens path as an Ogg Opus file if it starts with the Ogg
// capture pattern, and as an opus_demo .bit file otherwise.
func openInput(path string) (*input, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	magic := make([]byte, len(ogg.Magic))
	_, err = io.ReadFull(fh, magic)
	if err == nil && string(magic) == ogg.Magic {
		if _, err := fh.Seek(0, io.SeekStart); err != nil {
			fh.Close()
			return nil, err
		}
		rd, err := ogg.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &input{
			source: rd,
			stereo: rd.Channels() == 2,
			summary: fmt.Sprintf("%s: Ogg Opus, %d channels, pre-skip %d, vendor %q",
				path, rd.Channels(), rd.PreSkip(), rd.Vendor),
			close: fh.Close,
		}, nil
	}
	fh.Close()

	f, err := bitstream.Open(path)
	if err != nil {
		return nil, err
	}
	packets := f.Packets()
	info := bitstream.Summarize(packets)
	stereo := false
	for _, p := range packets {
		if len(p.Data) > 0 && p.Data[0]&0x04 != 0 {
			stereo = true
			break
		}
	}
	return &input{
		source: f.Reader(),
		stereo: stereo,
		summary: fmt.Sprintf("%s: %d packets (%d CELT), %d bytes, %.2fs",
			path, info.PacketCount, info.CELTPackets, info.TotalBytes, float64(info.Duration)/48000),
		close: f.Close,
	}, nil
}

func dump(w io.Writer, in *input, opts options, tracer celt.Tracer) error {
	streamOpts := []celtdec.StreamOption{celtdec.WithBandRange(opts.start, opts.end)}
	if tracer != nil {
		streamOpts = append(streamOpts, celtdec.WithTracer(tracer))
	}
	s, err := celtdec.NewStream(in.stereo, streamOpts...)
	if err != nil {
		return err
	}

	if !opts.json {
		fmt.Fprintln(w, in.summary)
	}

	enc := json.NewEncoder(w)
	n := 0
	err = s.DecodeAll(in.source, func(frames []celtdec.FrameResult) error {
		if opts.max > 0 && n >= opts.max {
			return errLimit
		}
		n++
		for i := range frames {
			fr := &frames[i]
			if opts.json {
				if err := enc.Encode(opts.record(fr)); err != nil {
					return err
				}
				continue
			}
			if _, err := io.WriteString(w, opts.format(fr)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, errLimit) {
		return nil
	}
	return err
}

func (o options) record(fr *celtdec.FrameResult) frameRecord {
	start, end := o.bands(fr)
	r := frameRecord{
		Packet:    fr.Packet,
		Frame:     fr.Index,
		Config:    fr.TOC.Config,
		Bandwidth: fr.TOC.Bandwidth.String(),
		FrameSize: fr.TOC.FrameSize,
		Stereo:    fr.TOC.Stereo,
		Bytes:     fr.Bytes,
		Silence:   fr.Silence,
		Transient: fr.Transient,
		Intra:     fr.Intra,
		Spread:    fr.Spread,
		Trim:      fr.Allocation.Trim,
		TFChange:  fr.TFChange[start:end],
		Boost:     fr.Allocation.Boost[start:end],
		Pulses:    fr.Allocation.Pulses[start:end],
		Range:     fr.Range,
	}
	if fr.PostFilter {
		pf := fr.Filter
		r.PostFilter = &postFilterRecord{Period: pf.PeriodNew, Gains: pf.GainsNew, Tapset: pf.TapsetNew}
	}
	for c := 0; c < channels(fr); c++ {
		r.Energy = append(r.Energy, fr.Energy[c][start:end])
	}
	return r
}

func (o options) format(fr *celtdec.FrameResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "packet %d frame %d: config=%d %s %d samples stereo=%v bytes=%d",
		fr.Packet, fr.Index, fr.TOC.Config, fr.TOC.Bandwidth, fr.TOC.FrameSize, fr.TOC.Stereo, fr.Bytes)
	if fr.Silence {
		b.WriteString(" silence\n")
		return b.String()
	}
	fmt.Fprintf(&b, " transient=%v intra=%v spread=%d trim=%d range=0x%08X\n",
		fr.Transient, fr.Intra, fr.Spread, fr.Allocation.Trim, fr.Range)
	if fr.PostFilter {
		pf := fr.Filter
		fmt.Fprintf(&b, "  postfilter: period=%d gains=%.4f tapset=%d\n", pf.PeriodNew, pf.GainsNew, pf.TapsetNew)
	}
	start, end := o.bands(fr)
	for c := 0; c < channels(fr); c++ {
		fmt.Fprintf(&b, "  energy[%d]: %.3f\n", c, fr.Energy[c][start:end])
	}
	fmt.Fprintf(&b, "  tf: %v\n  boost: %v\n  pulses: %v\n",
		fr.TFChange[start:end], fr.Allocation.Boost[start:end], fr.Allocation.Pulses[start:end])
	return b.String()
}

// bands returns the coded band range of a frame.
func (o options) bands(fr *celtdec.FrameResult) (int, int) {
	return o.start, min(o.end, fr.TOC.Bandwidth.EndBand())
}

func channels(fr *celtdec.FrameResult) int {
	if fr.TOC.Stereo {
		return 2
	}
	return 1
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "celtdump: "+format+"\n", args...)
	os.Exit(1)
}
