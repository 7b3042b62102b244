// This file provides the tracing hooks for the CELT decoder.
// The default NoopTracer keeps tracing out of the decode path entirely.

package celt

import "github.com/opuscore/celtdec/rangecoding"

// Tracer defines the interface for CELT decoder debug tracing.
// Tracers observe decoded values; they never influence decoding.
type Tracer interface {
	TraceHeader(frameSize, channels, lm, intra, transient int)
	TraceEnergy(band, channel, residual int, energy float32)
	TraceAllocation(band, caps, boost, pulses int)
}

// RangeTracer is an optional interface for logging range decoder state.
type RangeTracer interface {
	TraceRange(stage string, rng uint32, tell, tellFrac int)
}

// FlagTracer is an optional interface for logging boolean flags/decisions.
type FlagTracer interface {
	TraceFlag(name string, value int)
}

// TFTracer is an optional interface for logging per-band tf decisions.
type TFTracer interface {
	TraceTF(band int, changed bool, tfChange int)
}

// PostFilterTracer is an optional interface for logging postfilter parameters.
type PostFilterTracer interface {
	TracePostFilter(octave, period int, gain float32, tapset int)
}

// NoopTracer is a no-operation tracer with zero overhead.
type NoopTracer struct{}

func (t *NoopTracer) TraceHeader(frameSize, channels, lm, intra, transient int) {}
func (t *NoopTracer) TraceEnergy(band, channel, residual int, energy float32)    {}
func (t *NoopTracer) TraceAllocation(band, caps, boost, pulses int)             {}

func (d *Decoder) traceRange(stage string, rd *rangecoding.Decoder) {
	if tracer, ok := d.tracer.(RangeTracer); ok {
		tracer.TraceRange(stage, rd.Range(), rd.Tell(), rd.TellFrac())
	}
}

func (d *Decoder) traceFlag(name string, value int) {
	if tracer, ok := d.tracer.(FlagTracer); ok {
		tracer.TraceFlag(name, value)
	}
}

func (d *Decoder) traceTF(band int, changed bool, tfChange int) {
	if tracer, ok := d.tracer.(TFTracer); ok {
		tracer.TraceTF(band, changed, tfChange)
	}
}

func (d *Decoder) tracePostFilter(octave, period int, gain float32, tapset int) {
	if tracer, ok := d.tracer.(PostFilterTracer); ok {
		tracer.TracePostFilter(octave, period, gain, tapset)
	}
}

// boolToInt converts a boolean to int (0 or 1).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
