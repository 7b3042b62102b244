package celt

import "github.com/opuscore/celtdec/rangecoding"

// PostFilter holds the pitch comb filter parameters of one channel. The
// synthesis stage cross-fades from the old to the current parameters and
// from the current to the new ones.
type PostFilter struct {
	Period    int
	PeriodNew int
	PeriodOld int

	Gains    [3]float32
	GainsNew [3]float32
	GainsOld [3]float32

	Tapset    int
	TapsetNew int
	TapsetOld int
}

// advance rotates new -> current -> old and clears the new gains, so a frame
// without postfilter parameters fades the filter out.
func (pf *PostFilter) advance() {
	pf.PeriodOld, pf.Period = pf.Period, pf.PeriodNew
	pf.GainsOld, pf.Gains = pf.Gains, pf.GainsNew
	pf.TapsetOld, pf.Tapset = pf.Tapset, pf.TapsetNew
	pf.GainsNew = [3]float32{}
}

// decodePostFilter reads the postfilter flag and, when set, the pitch
// period, gain and tapset. Both channels receive the same parameters.
//
// Reference: libopus celt/celt_decoder.c celt_decode_with_ec() postfilter block
func (d *Decoder) decodePostFilter(rd *rangecoding.Decoder) bool {
	if !rd.DecodeBit(1) {
		d.traceFlag("postfilter", 0)
		return false
	}
	d.traceFlag("postfilter", 1)

	octave := int(rd.DecodeUniform(6))
	period := (16 << octave) + int(rd.DecodeRawBits(uint(4+octave))) - 1
	gain := 0.09375 * float32(rd.DecodeRawBits(3)+1)
	tapset := 0
	if rd.Available() >= 2 {
		tapset = rd.DecodeICDF(tapsetModel)
	}
	d.tracePostFilter(octave, period, gain, tapset)

	taps := postfilterTaps[tapset]
	for c := range d.frames {
		pf := &d.frames[c].PostFilter
		pf.PeriodNew = max(period, minPeriod)
		pf.TapsetNew = tapset
		pf.GainsNew = [3]float32{taps[0] * gain, taps[1] * gain, taps[2] * gain}
	}
	return true
}
