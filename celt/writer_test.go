package celt

import "github.com/opuscore/celtdec/rangecoding"

// testPostFilter is the postfilter content of a testFrame.
type testPostFilter struct {
	octave     int
	periodBits uint32
	gainBits   uint32
	tapset     int
}

// testFrame describes a frame header to encode. It is written with the
// same budget rules the decoder applies, so values that do not fit are
// silently replaced by the default the decoder will infer.
type testFrame struct {
	frameSize  int
	start, end int
	stereo     bool

	silence    bool
	postfilter *testPostFilter
	transient  bool
	intra      bool
	residuals  [MaxBands][2]int
	tfFlags    [MaxBands]bool
	tfSelect   bool
	spread     int
	boostSteps [MaxBands]int
	trim       int
}

// writtenFrame records what a frameWriter actually coded.
type writtenFrame struct {
	postfilter bool
	transient  bool
	intra      bool
	residuals  [MaxBands][2]int
	tfDiff     [MaxBands]bool
	tfSelect   int
	spread     int
	boost      [MaxBands]int
	trim       int
}

// encodeFrame writes f into a buffer of size bytes.
func encodeFrame(f testFrame, size int) ([]byte, writtenFrame) {
	enc := rangecoding.NewEncoder(size)
	var w writtenFrame
	storage := enc.StorageBits()
	avail := func() int { return storage - enc.Tell() }
	lm := LMForFrameSize(f.frameSize)
	channels := 1
	if f.stereo {
		channels = 2
	}

	if avail() > 0 {
		enc.EncodeBit(f.silence, 15)
	}
	if f.silence {
		return enc.Done(), w
	}

	if f.start == 0 && avail() >= 16 {
		enc.EncodeBit(f.postfilter != nil, 1)
		if pf := f.postfilter; pf != nil {
			w.postfilter = true
			enc.EncodeUniform(uint32(pf.octave), 6)
			enc.EncodeRawBits(pf.periodBits, uint(4+pf.octave))
			enc.EncodeRawBits(pf.gainBits, 3)
			if avail() >= 2 {
				enc.EncodeICDF(pf.tapset, tapsetModel)
			}
		}
	}

	if lm != 0 && avail() >= 3 {
		enc.EncodeBit(f.transient, 3)
		w.transient = f.transient
	}
	if avail() >= 3 {
		enc.EncodeBit(f.intra, 3)
		w.intra = f.intra
	}

	model := &coarseEnergyInter[lm]
	if w.intra {
		model = &coarseEnergyIntra[lm]
	}
	for i := f.start; i < f.end; i++ {
		for c := 0; c < channels; c++ {
			q := f.residuals[i][c]
			switch a := avail(); {
			case a >= 15:
				k := 2 * min(i, 20)
				q = enc.EncodeLaplace(q, int(model[k])<<7, int(model[k+1])<<6)
			case a >= 2:
				q = max(-1, min(1, q))
				v := 0
				if q < 0 {
					v = 1
				} else if q > 0 {
					v = 2
				}
				enc.EncodeICDF(v, energySmallModel)
			case a >= 1:
				q = max(-1, min(0, q))
				enc.EncodeBit(q == -1, 1)
			default:
				q = -1
			}
			w.residuals[i][c] = q
		}
	}

	// tf changes
	budget := storage
	tell := enc.Tell()
	logp := 4
	if w.transient {
		logp = 2
	}
	selectRsv := lm > 0 && tell+logp+1 <= budget
	if selectRsv {
		budget--
	}
	curr, changed := false, false
	for i := f.start; i < f.end; i++ {
		if tell+logp <= budget {
			enc.EncodeBit(f.tfFlags[i], uint(logp))
			tell = enc.Tell()
			curr = curr != f.tfFlags[i]
			changed = changed || curr
		}
		w.tfDiff[i] = curr
		logp = 5
		if w.transient {
			logp = 4
		}
	}
	t, ch := boolToInt(w.transient), boolToInt(changed)
	if selectRsv && tfSelect[lm][t][0][ch] != tfSelect[lm][t][1][ch] {
		enc.EncodeBit(f.tfSelect, 1)
		w.tfSelect = boolToInt(f.tfSelect)
	}

	w.spread = SpreadNormal
	if avail() >= 4 {
		enc.EncodeICDF(f.spread, spreadModel)
		w.spread = f.spread
	}

	caps := computeCaps(lm, channels)
	totalQ3 := storage << bitRes
	tellFrac := enc.TellFrac()
	dynallocLogp := 6
	for i := f.start; i < f.end; i++ {
		width := channels * freqRange[i] << lm
		quanta := min(width<<bitRes, max(6<<bitRes, width))
		loopLogp := dynallocLogp
		steps := 0
		for tellFrac+(loopLogp<<bitRes) < totalQ3 && w.boost[i] < caps[i] {
			flag := steps < f.boostSteps[i]
			enc.EncodeBit(flag, uint(loopLogp))
			tellFrac = enc.TellFrac()
			if !flag {
				break
			}
			steps++
			w.boost[i] += quanta
			totalQ3 -= quanta
			loopLogp = 1
		}
		if w.boost[i] > 0 {
			dynallocLogp = max(2, dynallocLogp-1)
		}
	}

	w.trim = 5
	if tellFrac+(6<<bitRes) <= totalQ3 {
		enc.EncodeICDF(f.trim, trimModel)
		w.trim = f.trim
	}

	return enc.Done(), w
}
