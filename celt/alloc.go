package celt

import "github.com/opuscore/celtdec/rangecoding"

// Allocation holds the bit allocation of one frame. All budgets are in
// 1/8 bit units.
type Allocation struct {
	Caps  [MaxBands]int // Per-band maximum
	Boost [MaxBands]int // Dynamic allocation offsets
	Trim  int           // alloc_trim, 0..10, 5 when not coded

	// Total is the budget left for the bands after the reservations.
	Total int

	AntiCollapseRsv int
	SkipRsv         int
	IntensityRsv    int
	DualStereoRsv   int

	// SkipStart is the lowest band the skip logic may drop: the highest
	// boosted band, or the first coded band.
	SkipStart int

	// Pulses is the per-band budget handed to the shape decoder.
	Pulses [MaxBands]int
}

// allocParams are the inputs of the bisection that do not depend on the
// budget.
type allocParams struct {
	start, end int
	lm         int
	channels   int
	trim       int
	caps       [MaxBands]int
	boost      [MaxBands]int
}

// decodeAllocation decodes spread, the dynamic allocation boosts and the
// allocation trim, then splits the remaining budget across bands.
//
// Reference: libopus celt/celt_decoder.c celt_decode_with_ec(),
// libopus celt/rate.c clt_compute_allocation()
func (d *Decoder) decodeAllocation(rd *rangecoding.Decoder, transient bool) Allocation {
	var a Allocation

	d.spread = SpreadNormal
	if rd.Available() >= 4 {
		d.spread = rd.DecodeICDF(spreadModel)
	}
	d.traceFlag("spread", d.spread)

	p := allocParams{
		start:    d.start,
		end:      d.end,
		lm:       d.lm,
		channels: d.channels(),
	}
	p.caps = computeCaps(d.lm, p.channels)
	a.Caps = p.caps

	// Dynamic allocation: each granted boost makes the first flag of later
	// bands cheaper to refuse.
	totalQ3 := rd.StorageBits() << bitRes
	tell := rd.TellFrac()
	dynallocLogp := 6
	for i := d.start; i < d.end; i++ {
		width := p.channels * freqRange[i] << d.lm
		quanta := min(width<<bitRes, max(6<<bitRes, width))
		loopLogp := dynallocLogp
		boost := 0
		for tell+(loopLogp<<bitRes) < totalQ3 && boost < p.caps[i] {
			flag := rd.DecodeBit(uint(loopLogp))
			tell = rd.TellFrac()
			if !flag {
				break
			}
			boost += quanta
			totalQ3 -= quanta
			loopLogp = 1
		}
		p.boost[i] = boost
		if boost > 0 {
			dynallocLogp = max(2, dynallocLogp-1)
		}
	}
	a.Boost = p.boost

	p.trim = 5
	if tell+(6<<bitRes) <= totalQ3 {
		p.trim = rd.DecodeICDF(trimModel)
	}
	a.Trim = p.trim
	d.traceFlag("alloc_trim", p.trim)

	total := rd.StorageBits()<<bitRes - rd.TellFrac() - 1
	d.antiCollapseRsv = 0
	if transient && d.lm >= 2 && total >= (d.lm+2)<<bitRes {
		d.antiCollapseRsv = 1 << bitRes
	}
	total -= d.antiCollapseRsv
	a.AntiCollapseRsv = d.antiCollapseRsv

	a.Total, a.SkipRsv, a.IntensityRsv, a.DualStereoRsv = reserve(total, p.channels, p.end-p.start)
	a.SkipStart = p.bisect(a.Total, &d.pulses)
	a.Pulses = d.pulses

	// Fine energy is not decoded.
	d.fineBits = [MaxBands]int{}
	d.finePriority = [MaxBands]int{}

	for i := d.start; i < d.end; i++ {
		d.tracer.TraceAllocation(i, a.Caps[i], a.Boost[i], a.Pulses[i])
	}
	return a
}

// computeCaps returns the per-band caps for the duration class and channel
// count. Every band is written; the array starts zeroed.
//
// Reference: libopus celt/celt.c init_caps()
func computeCaps(lm, channels int) [MaxBands]int {
	var caps [MaxBands]int
	row := &staticCaps[lm][channels-1]
	for i := range caps {
		n := freqRange[i] << lm
		caps[i] = (int(row[i]) + 64) * channels * n >> 2
	}
	return caps
}

// reserve takes the skip, intensity and dual stereo reservations, each only
// when affordable, and returns the budget left for the bands.
func reserve(total, channels, nbBands int) (rest, skipRsv, intensityRsv, dualStereoRsv int) {
	total = max(total, 0)
	if total >= 1<<bitRes {
		skipRsv = 1 << bitRes
		total -= skipRsv
	}
	if channels == 2 {
		intensityRsv = int(log2Frac[nbBands])
		if intensityRsv > total {
			intensityRsv = 0
		} else {
			total -= intensityRsv
			if total >= 1<<bitRes {
				dualStereoRsv = 1 << bitRes
				total -= dualStereoRsv
			}
		}
	}
	return total, skipRsv, intensityRsv, dualStereoRsv
}

// bandBits returns the trimmed cost of band j at allocation vector row.
func (p *allocParams) bandBits(row, j int, trimOffset int) int {
	bits := (p.channels * freqRange[j] * int(staticAlloc[row][j]) << p.lm) >> 2
	if bits > 0 {
		bits = max(0, bits+trimOffset)
	}
	return bits
}

// bisect distributes total across the bands into pulses and returns the
// skip start band. A coarse search over the allocation vectors is followed
// by a 64-step interpolation between the two adjacent rows.
//
// Reference: libopus celt/rate.c clt_compute_allocation(), interp_bits2pulses()
func (p *allocParams) bisect(total int, pulses *[MaxBands]int) int {
	var thresh, trimOffset, bits1, bits2 [MaxBands]int
	allocFloor := p.channels << bitRes
	skipStart := p.start

	for j := p.start; j < p.end; j++ {
		n := freqRange[j] << p.lm
		thresh[j] = max(allocFloor, (3*n<<bitRes)>>4)
		trimOffset[j] = p.channels * freqRange[j] * (p.trim - 5 - p.lm) * (p.end - j - 1) * (1 << (p.lm + bitRes)) >> 6
		if n == 1 {
			trimOffset[j] -= allocFloor
		}
	}

	// sum returns the cost of per-band bits, walking down from the top band:
	// once a band clears its threshold every lower band is coded in full.
	sum := func(bitsAt func(j int) int) int {
		psum := 0
		done := false
		for j := p.end - 1; j >= p.start; j-- {
			b := bitsAt(j)
			if b >= thresh[j] || done {
				done = true
				psum += min(b, p.caps[j])
			} else if b >= allocFloor {
				psum += allocFloor
			}
		}
		return psum
	}

	lo, hi := 1, allocVectors-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		psum := sum(func(j int) int {
			return p.bandBits(mid, j, trimOffset[j]) + p.boost[j]
		})
		if psum > total {
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	hi = lo
	lo--

	for j := p.start; j < p.end; j++ {
		b1 := p.bandBits(lo, j, trimOffset[j])
		var b2 int
		if hi < allocVectors {
			b2 = p.bandBits(hi, j, trimOffset[j])
		} else if p.caps[j] > 0 {
			b2 = max(0, p.caps[j]+trimOffset[j])
		}
		if lo > 0 {
			b1 += p.boost[j]
		}
		b2 += p.boost[j]
		if p.boost[j] > 0 {
			skipStart = j
		}
		bits1[j] = b1
		bits2[j] = max(0, b2-b1)
	}

	lo, hi = 0, 1<<allocSteps
	for i := 0; i < allocSteps; i++ {
		mid := (lo + hi) >> 1
		psum := sum(func(j int) int {
			return bits1[j] + (mid * bits2[j] >> allocSteps)
		})
		if psum > total {
			hi = mid
		} else {
			lo = mid
		}
	}

	*pulses = [MaxBands]int{}
	done := false
	for j := p.end - 1; j >= p.start; j-- {
		b := bits1[j] + (lo * bits2[j] >> allocSteps)
		if b >= thresh[j] || done {
			done = true
		} else if b >= allocFloor {
			b = allocFloor
		} else {
			b = 0
		}
		pulses[j] = min(b, p.caps[j])
	}
	return skipStart
}
