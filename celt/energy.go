package celt

import "github.com/opuscore/celtdec/rangecoding"

// decodeCoarseEnergy decodes the intra flag and the coarse energy of every
// band. Channels are interleaved per band, channel 0 first.
//
// The prediction is
//
//	E[i] = alpha*max(E_prev[i], -9) + p + q
//	p   += beta*q
//
// with p running across bands and E_prev the energy of the previous frame.
//
// Reference: RFC 6716 Section 4.3.2.1, libopus celt/quant_bands.c unquant_coarse_energy()
func (d *Decoder) decodeCoarseEnergy(rd *rangecoding.Decoder) bool {
	intra := false
	if rd.Available() >= 3 {
		intra = rd.DecodeBit(3)
	}
	d.traceFlag("intra", boolToInt(intra))

	alpha, beta := alphaCoef[d.lm], betaCoef[d.lm]
	model := &coarseEnergyInter[d.lm]
	if intra {
		alpha, beta = 0, betaIntra
		model = &coarseEnergyIntra[d.lm]
	}

	channels := d.channels()
	var prev [2]float32
	for i := 0; i < MaxBands; i++ {
		for c := 0; c < channels; c++ {
			en := &d.frames[c].Energy[i]
			if i < d.start || i >= d.end {
				*en = 0
				continue
			}
			q := decodeEnergyResidual(rd, model, i)
			// Explicit conversions round each product and keep the
			// compiler from fusing it into the sum.
			*en = float32(max(*en, -9)*alpha) + prev[c] + float32(q)
			prev[c] += float32(beta * float32(q))
			d.tracer.TraceEnergy(i, c, q, *en)
		}
	}
	return intra
}

// decodeEnergyResidual reads one residual, degrading to cheaper models as
// the budget runs out.
func decodeEnergyResidual(rd *rangecoding.Decoder, model *[2 * MaxBands]uint8, band int) int {
	available := rd.Available()
	switch {
	case available >= 15:
		k := 2 * min(band, 20)
		return rd.DecodeLaplace(int(model[k])<<7, int(model[k+1])<<6)
	case available >= 2:
		v := rd.DecodeICDF(energySmallModel)
		return (v >> 1) ^ -(v & 1)
	case available >= 1:
		return -boolToInt(rd.DecodeBit(1))
	default:
		return -1
	}
}
