package celt

import "github.com/opuscore/celtdec/rangecoding"

// decodeTFChanges decodes the per-band time-frequency resolution changes.
//
// Each band carries a differential flag; the running XOR is the band's tf
// state. The select bit is reserved up front and only read when the two
// candidate rows of tfSelect differ for the observed state.
//
// Reference: RFC 6716 Section 4.3.4.5, libopus celt/celt_decoder.c tf_decode()
func (d *Decoder) decodeTFChanges(rd *rangecoding.Decoder, transient bool) {
	budget := rd.StorageBits()
	tell := rd.Tell()

	logp := uint(4)
	if transient {
		logp = 2
	}
	selectRsv := d.lm > 0 && tell+int(logp)+1 <= budget
	if selectRsv {
		budget--
	}

	var diff [MaxBands]bool
	curr := false
	changed := false
	for i := d.start; i < d.end; i++ {
		if tell+int(logp) <= budget {
			curr = curr != rd.DecodeBit(logp)
			tell = rd.Tell()
			changed = changed || curr
		}
		diff[i] = curr
		logp = 5
		if transient {
			logp = 4
		}
	}

	t := boolToInt(transient)
	ch := boolToInt(changed)
	sel := 0
	if selectRsv && tfSelect[d.lm][t][0][ch] != tfSelect[d.lm][t][1][ch] {
		sel = boolToInt(rd.DecodeBit(1))
	}
	d.traceFlag("tf_select", sel)

	d.tfChange = [MaxBands]int{}
	for i := d.start; i < d.end; i++ {
		d.tfChange[i] = int(tfSelect[d.lm][t][sel][boolToInt(diff[i])])
		d.traceTF(i, diff[i], d.tfChange[i])
	}
}
