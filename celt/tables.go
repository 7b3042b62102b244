package celt

import "github.com/opuscore/celtdec/rangecoding"

// MaxBands is the maximum number of frequency bands in CELT.
const MaxBands = 21

// ShortBlockSize is the length in samples of one short MDCT block at 48kHz.
const ShortBlockSize = 120

// minPeriod is the smallest postfilter pitch period.
const minPeriod = 15

// Spread decisions.
const (
	SpreadNone = iota
	SpreadLight
	SpreadNormal
	SpreadAggressive
)

// allocVectors is the number of rows in staticAlloc.
const allocVectors = 11

// allocSteps is the number of fine bisection steps (1/64 resolution).
const allocSteps = 6

// bitRes is the fractional bit resolution of TellFrac.
const bitRes = rangecoding.BITRES

// freqRange holds the width in MDCT bins of each band at 2.5ms.
// Band edges: 0 1 2 3 4 5 6 7 8 10 12 14 16 20 24 28 34 40 48 60 78 100.
//
// Source: libopus celt/modes.c (eband5ms)
var freqRange = [MaxBands]int{
	1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 4, 4, 4, 6, 6, 8, 12, 18, 22,
}

// alphaCoef is the inter-frame prediction coefficient per LM.
//
// Source: libopus celt/quant_bands.c (pred_coef)
var alphaCoef = [4]float32{
	29440.0 / 32768.0,
	26112.0 / 32768.0,
	21248.0 / 32768.0,
	16384.0 / 32768.0,
}

// betaCoef is the share of each residual carried into the next band's
// prediction, per LM. Stored as 1 - beta of libopus.
//
// Source: libopus celt/quant_bands.c (beta_coef)
var betaCoef = [4]float32{
	1.0 - 30147.0/32768.0,
	1.0 - 22282.0/32768.0,
	1.0 - 12124.0/32768.0,
	1.0 - 6554.0/32768.0,
}

// betaIntra is betaCoef for intra frames.
const betaIntra float32 = 1.0 - 4915.0/32768.0

// coarseEnergyIntra and coarseEnergyInter hold Laplace (frequency, decay)
// pairs per band, indexed [lm][2*band] and [lm][2*band+1].
//
// Source: RFC 6716 Section 4.3.2.1, libopus celt/quant_bands.c (e_prob_model)
var coarseEnergyIntra = [4][2 * MaxBands]uint8{
	// 120 samples
	{
		24, 179, 48, 138, 54, 135, 54, 132, 53, 134, 56, 133, 55, 132, 55, 132, 61, 114, 70, 96,
		74, 88, 75, 88, 87, 74, 89, 66, 91, 67, 100, 59, 108, 50, 120, 40, 122, 37, 97, 43, 78, 50,
	},
	// 240 samples
	{
		23, 178, 54, 115, 63, 102, 66, 98, 69, 99, 74, 89, 71, 91, 73, 91, 78, 89, 86, 80, 92, 66,
		93, 64, 102, 59, 103, 60, 104, 60, 117, 52, 123, 44, 138, 35, 133, 31, 97, 38, 77, 45,
	},
	// 480 samples
	{
		21, 178, 59, 110, 71, 86, 75, 85, 84, 83, 91, 66, 88, 73, 87, 72, 92, 75, 98, 72, 105, 58,
		107, 54, 115, 52, 114, 55, 112, 56, 129, 51, 132, 40, 150, 33, 140, 29, 98, 35, 77, 42,
	},
	// 960 samples
	{
		22, 178, 63, 114, 74, 82, 84, 83, 92, 82, 103, 62, 96, 72, 96, 67, 101, 73, 107, 72, 113,
		55, 118, 52, 125, 52, 118, 52, 117, 55, 135, 49, 137, 39, 157, 32, 145, 29, 97, 33, 77, 40,
	},
}

var coarseEnergyInter = [4][2 * MaxBands]uint8{
	// 120 samples
	{
		72, 127, 65, 129, 66, 128, 65, 128, 64, 128, 62, 128, 64, 128, 64, 128, 92, 78, 92, 79, 92,
		78, 90, 79, 116, 41, 115, 40, 114, 40, 132, 26, 132, 26, 145, 17, 161, 12, 176, 10, 177, 11,
	},
	// 240 samples
	{
		83, 78, 84, 81, 88, 75, 86, 74, 87, 71, 90, 73, 93, 74, 93, 74, 109, 40, 114, 36, 117, 34,
		117, 34, 143, 17, 145, 18, 146, 19, 162, 12, 165, 10, 178, 7, 189, 6, 190, 8, 177, 9,
	},
	// 480 samples
	{
		61, 90, 93, 60, 105, 42, 107, 41, 110, 45, 116, 38, 113, 38, 112, 38, 124, 26, 132, 27,
		136, 19, 140, 20, 155, 14, 159, 16, 158, 18, 170, 13, 177, 10, 187, 8, 192, 6, 175, 9, 159, 10,
	},
	// 960 samples
	{
		42, 121, 96, 66, 108, 43, 111, 40, 117, 44, 123, 32, 120, 36, 119, 33, 127, 33, 134, 34,
		139, 21, 147, 23, 152, 20, 158, 25, 154, 26, 166, 21, 173, 16, 184, 13, 184, 10, 150, 13, 139, 15,
	},
}

// staticCaps holds the per-band PVQ caps indexed [lm][stereo][band].
//
// Source: libopus celt/static_modes_float.h (cache_caps50)
var staticCaps = [4][2][MaxBands]uint8{
	// 120 samples
	{
		{224, 224, 224, 224, 224, 224, 224, 224, 160, 160, 160, 160, 185, 185, 185, 178, 178, 168, 134, 61, 37},
		{224, 224, 224, 224, 224, 224, 224, 224, 240, 240, 240, 240, 207, 207, 207, 198, 198, 183, 144, 66, 40},
	},
	// 240 samples
	{
		{160, 160, 160, 160, 160, 160, 160, 160, 185, 185, 185, 185, 193, 193, 193, 183, 183, 172, 138, 64, 38},
		{240, 240, 240, 240, 240, 240, 240, 240, 207, 207, 207, 207, 204, 204, 204, 193, 193, 180, 143, 66, 40},
	},
	// 480 samples
	{
		{185, 185, 185, 185, 185, 185, 185, 185, 193, 193, 193, 193, 193, 193, 193, 183, 183, 172, 138, 65, 39},
		{207, 207, 207, 207, 207, 207, 207, 207, 204, 204, 204, 204, 201, 201, 201, 188, 188, 176, 141, 66, 40},
	},
	// 960 samples
	{
		{193, 193, 193, 193, 193, 193, 193, 193, 193, 193, 193, 193, 194, 194, 194, 184, 184, 173, 139, 65, 39},
		{204, 204, 204, 204, 204, 204, 204, 204, 201, 201, 201, 201, 198, 198, 198, 187, 187, 175, 140, 66, 40},
	},
}

// staticAlloc is the allocation vector table in 1/32 bit per sample.
//
// Source: RFC 6716 Table 57, libopus celt/modes.c (band_allocation)
var staticAlloc = [allocVectors][MaxBands]uint8{
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{90, 80, 75, 69, 63, 56, 49, 40, 34, 29, 20, 18, 10, 0, 0, 0, 0, 0, 0, 0, 0},
	{110, 100, 90, 84, 78, 71, 65, 58, 51, 45, 39, 32, 26, 20, 12, 0, 0, 0, 0, 0, 0},
	{118, 110, 103, 93, 86, 80, 75, 70, 65, 59, 53, 47, 40, 31, 23, 15, 4, 0, 0, 0, 0},
	{126, 119, 112, 104, 95, 89, 83, 78, 72, 66, 60, 54, 47, 39, 32, 25, 17, 12, 1, 0, 0},
	{134, 127, 120, 114, 103, 97, 91, 85, 78, 72, 66, 60, 54, 47, 41, 35, 29, 23, 16, 10, 1},
	{144, 137, 130, 124, 113, 107, 101, 95, 88, 82, 76, 70, 64, 57, 51, 45, 39, 33, 26, 15, 1},
	{152, 145, 138, 132, 123, 117, 111, 105, 98, 92, 86, 80, 74, 67, 61, 55, 49, 43, 36, 20, 1},
	{162, 155, 148, 142, 133, 127, 121, 115, 108, 102, 96, 90, 84, 77, 71, 65, 59, 53, 46, 30, 1},
	{172, 165, 158, 152, 143, 137, 131, 125, 118, 112, 106, 100, 94, 87, 81, 75, 69, 63, 56, 45, 20},
	{200, 200, 200, 200, 200, 200, 200, 200, 198, 193, 188, 183, 178, 173, 168, 163, 158, 153, 148, 129, 104},
}

// tfSelect maps [lm][transient][select][changed] to a tf_change value.
//
// Source: libopus celt/celt.c (tf_select_table)
var tfSelect = [4][2][2][2]int8{
	{{{0, -1}, {0, -1}}, {{0, -1}, {0, -1}}},
	{{{0, -1}, {0, -2}}, {{1, 0}, {1, -1}}},
	{{{0, -2}, {0, -3}}, {{2, 0}, {1, -1}}},
	{{{0, -2}, {0, -3}}, {{3, 0}, {1, -1}}},
}

// log2Frac is the intensity stereo reservation in 1/8 bits, indexed by the
// number of coded bands.
//
// Source: libopus celt/rate.c (LOG2_FRAC_TABLE)
var log2Frac = [24]uint8{
	0, 8, 13, 16, 19, 21, 23, 24, 26, 27, 28, 29, 30, 31, 32, 32, 33, 34, 34, 35, 36, 36, 37, 37,
}

// postfilterTaps are the comb filter taps per tapset.
//
// Source: libopus celt/celt.c (comb_filter gains)
var postfilterTaps = [3][3]float32{
	{0.3066406250, 0.2170410156, 0.1296386719},
	{0.4638671875, 0.2680664062, 0.0},
	{0.7998046875, 0.1000976562, 0.0},
}

// Symbol models. RFC 6716 Table 56.
var (
	tapsetModel = &rangecoding.ICDFContext{Name: "tapset", Total: 4, Dist: []int{2, 3, 4}}

	energySmallModel = &rangecoding.ICDFContext{Name: "energy_small", Total: 4, Dist: []int{2, 3, 4}}

	spreadModel = &rangecoding.ICDFContext{Name: "spread", Total: 32, Dist: []int{7, 9, 30, 32}}

	trimModel = &rangecoding.ICDFContext{
		Name:  "alloc_trim",
		Total: 128,
		Dist:  []int{2, 4, 9, 19, 41, 87, 109, 119, 124, 126, 128},
	}
)
