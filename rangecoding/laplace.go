package rangecoding

// laplaceFreq1 returns the frequency of the +1/-1 symbols given the
// frequency fs0 of zero.
// Reference: libopus celt/laplace.c ec_laplace_get_freq1()
func laplaceFreq1(fs0 int, decay int) int {
	ft := laplaceFS - laplaceMinP*(2*laplaceNMin) - fs0
	return ft * (16384 - decay) >> 15
}

// DecodeLaplace decodes a signed integer from a two-sided geometric
// distribution. fs is the frequency of zero (Q15) and decay the per-step
// ratio (Q14). Used for coarse band energies.
// Reference: libopus celt/laplace.c ec_laplace_decode()
func (d *Decoder) DecodeLaplace(fs int, decay int) int {
	val := 0
	fm := int(d.decodeBin(laplaceFTBits))
	fl := 0
	if fm >= fs {
		val++
		fl = fs
		fs = laplaceFreq1(fs, decay) + laplaceMinP
		for fs > laplaceMinP && fm >= fl+2*fs {
			fs *= 2
			fl += fs
			fs = ((fs - 2*laplaceMinP) * decay) >> 15
			fs += laplaceMinP
			val++
		}
		if fs <= laplaceMinP {
			di := (fm - fl) >> (laplaceLogMinP + 1)
			val += di
			fl += 2 * di * laplaceMinP
		}
		if fm < fl+fs {
			val = -val
		} else {
			fl += fs
		}
	}
	fh := min(fl+fs, laplaceFS)
	d.update(uint32(fl), uint32(fh), laplaceFS)
	return val
}

// EncodeLaplace is the inverse of DecodeLaplace. It returns the value that
// was actually coded, which differs from val only when val lies beyond the
// representable tail.
// Reference: libopus celt/laplace.c ec_laplace_encode()
func (e *Encoder) EncodeLaplace(val int, fs int, decay int) int {
	fl := 0
	if val != 0 {
		s := 0
		if val < 0 {
			s = -1
		}
		absVal := (val + s) ^ s
		fl = fs
		fs = laplaceFreq1(fs, decay)
		i := 1
		for fs > 0 && i < absVal {
			fs *= 2
			fl += fs + 2*laplaceMinP
			fs = (fs * decay) >> 15
			i++
		}
		if fs == 0 {
			ndiMax := (laplaceFS - fl + laplaceMinP - 1) >> laplaceLogMinP
			ndiMax = (ndiMax - s) >> 1
			di := min(absVal-i, ndiMax-1)
			fl += (2*di + 1 + s) * laplaceMinP
			fs = min(laplaceMinP, laplaceFS-fl)
			val = (i + di + s) ^ s
		} else {
			fs += laplaceMinP
			if s == 0 {
				fl += fs
			}
		}
	}
	e.EncodeBin(uint32(fl), uint32(fl+fs), laplaceFTBits)
	return val
}
