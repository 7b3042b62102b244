package celt

import (
	"context"
	"log/slog"
)

// SlogTracer writes every trace event as a debug record to a slog.Logger.
// It implements Tracer and all optional tracer interfaces.
type SlogTracer struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewSlogTracer returns a tracer logging at debug level. A nil logger
// uses slog.Default().
func NewSlogTracer(logger *slog.Logger) *SlogTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogTracer{Logger: logger.With("component", "celt"), Level: slog.LevelDebug}
}

func (t *SlogTracer) log(msg string, attrs ...slog.Attr) {
	t.Logger.LogAttrs(context.Background(), t.Level, msg, attrs...)
}

func (t *SlogTracer) TraceHeader(frameSize, channels, lm, intra, transient int) {
	t.log("header",
		slog.Int("frame_size", frameSize),
		slog.Int("channels", channels),
		slog.Int("lm", lm),
		slog.Int("intra", intra),
		slog.Int("transient", transient))
}

func (t *SlogTracer) TraceEnergy(band, channel, residual int, energy float32) {
	t.log("coarse energy",
		slog.Int("band", band),
		slog.Int("channel", channel),
		slog.Int("residual", residual),
		slog.Float64("energy", float64(energy)))
}

func (t *SlogTracer) TraceAllocation(band, caps, boost, pulses int) {
	t.log("allocation",
		slog.Int("band", band),
		slog.Int("caps", caps),
		slog.Int("boost", boost),
		slog.Int("pulses", pulses))
}

func (t *SlogTracer) TraceRange(stage string, rng uint32, tell, tellFrac int) {
	t.log("range",
		slog.String("stage", stage),
		slog.Uint64("rng", uint64(rng)),
		slog.Int("tell", tell),
		slog.Int("tell_frac", tellFrac))
}

func (t *SlogTracer) TraceFlag(name string, value int) {
	t.log("flag", slog.String("name", name), slog.Int("value", value))
}

func (t *SlogTracer) TraceTF(band int, changed bool, tfChange int) {
	t.log("tf", slog.Int("band", band), slog.Bool("changed", changed), slog.Int("tf_change", tfChange))
}

func (t *SlogTracer) TracePostFilter(octave, period int, gain float32, tapset int) {
	t.log("postfilter",
		slog.Int("octave", octave),
		slog.Int("period", period),
		slog.Float64("gain", float64(gain)),
		slog.Int("tapset", tapset))
}
