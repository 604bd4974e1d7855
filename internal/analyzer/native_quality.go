package analyzer

import (
	"math"

	"go-fingerprint-quality/pkg/models"
)

type valueRange struct {
	min, max float64
}

// nativeRanges maps features with a known value range onto 0..100
var nativeRanges = map[string]valueRange{
	"Mu":                                    {0, 255},
	"MMB":                                   {0, 255},
	"ImgProcROIArea_Mean":                   {0, 255},
	"OrientationMap_ROIFilter_CoherenceRel": {0, 1},
	"OrientationMap_ROIFilter_CoherenceSum": {0, 3150},
	"OCL_Bin10_Mean":                        {0, 1},
	"OCL_Bin10_StdDev":                      {0, 1},
	"LCS_Bin10_Mean":                        {0, 1},
	"LCS_Bin10_StdDev":                      {0, 1},
	"FDA_Bin10_Mean":                        {0, 1},
	"FDA_Bin10_StdDev":                      {0, 1},
	"OF_Bin10_Mean":                         {-4.0 / 86, (180 - 4.0) / 86},
	"OF_Bin10_StdDev":                       {0, 1},
	"MinutiaeQuality_OCL80":                 {0, 1},
}

// nativeCounts are capped at 100
var nativeCounts = map[string]bool{
	"Minutiae_Count":               true,
	"Minutiae_CountCOMRect200x200": true,
}

// nativeSigmoid features map through a logistic curve centred on 1
var nativeSigmoid = map[string]bool{
	"RVUP_Bin10_Mean":   true,
	"RVUP_Bin10_StdDev": true,
}

// NativeQualityValue converts one feature value to the 0..100 native quality
// scale. ok is false for features without a native mapping.
func NativeQualityValue(id string, v float64) (uint8, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if r, found := nativeRanges[id]; found {
		q := math.Floor(101 * (v - r.min) / (r.max - r.min + epsilon))
		return uint8(math.Max(0, math.Min(100, q))), true
	}
	if nativeCounts[id] {
		return uint8(math.Max(0, math.Min(100, v))), true
	}
	if nativeSigmoid[id] {
		s := 1 / (1 + math.Exp((1-v)/0.5))
		return uint8(math.Floor(100*s + 0.5)), true
	}
	return 0, false
}

// NativeQualityValues maps every available feature with a native mapping
func NativeQualityValues(vec models.FeatureVector) map[string]uint8 {
	out := make(map[string]uint8)
	for _, r := range vec {
		if !r.Available {
			continue
		}
		if q, ok := NativeQualityValue(r.ID, r.Value); ok {
			out[r.ID] = q
		}
	}
	return out
}
