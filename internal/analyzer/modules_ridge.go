package analyzer

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Histogram bin boundaries for each ridge-based feature family.
var (
	fdaBounds  = []float64{0.268, 0.304, 0.33, 0.355, 0.38, 0.407, 0.44, 0.50, 1.0}
	lcsBounds  = []float64{0, 0.70, 0.74, 0.77, 0.79, 0.81, 0.83, 0.85, 0.87}
	oclBounds  = []float64{0.337, 0.479, 0.579, 0.655, 0.716, 0.766, 0.81, 0.852, 0.898}
	ofBounds   = []float64{1.715e-2, 3.5e-2, 5.57e-2, 8.1e-2, 1.15e-1, 1.718e-1, 2.569e-1, 4.758e-1, 7.48e-1}
	rvupBounds = []float64{0.5, 0.667, 0.8, 1, 1.25, 1.5, 2, 24, 30}
)

// Ridge and valley width limits in pixels at 500 PPI.
const (
	minRidgeWidth  = 3.0
	maxRidgeWidth  = 10.0
	minValleyWidth = 2.0
	maxValleyWidth = 10.0
)

// widthScale normalises ridge and valley widths to the scanner resolution
var widthScale = float64(scannerResolution) / 125 * 5

// frequencyDomainModule measures how strongly the ridge frequency dominates the
// intensity profile taken across the ridges of each foreground block.
type frequencyDomainModule struct{}

func (frequencyDomainModule) Name() string         { return ModuleFrequencyDomain }
func (frequencyDomainModule) SpeedGroup() string   { return SpeedGroupFrequencyDomain }
func (frequencyDomainModule) FeatureIDs() []string { return histogramFeatureIDs("FDA_Bin10_") }

func (frequencyDomainModule) Compute(a *Analysis) ([]float64, error) {
	grid := a.blocks()
	data := make([]float64, 0, len(grid.origins))
	for i := range grid.origins {
		if !grid.masked[i] {
			continue
		}
		data = append(data, frequencyDomainOfBlock(grid.window(a.gray, i), grid.orientation[i]))
	}
	return histogramFeatures(fdaBounds, data)
}

func frequencyDomainOfBlock(window matrix, orientation float64) float64 {
	rotated := rotateBlock(window, orientation+math.Pi/2, true)
	centre := window.rows / 2
	crop := rotated.sub(
		centre-slantedBlockWidth/2, centre+slantedBlockWidth/2,
		centre-slantedBlockHeight/2, centre+slantedBlockHeight/2)

	profile := make([]float64, crop.rows)
	for r := 0; r < crop.rows; r++ {
		profile[r] = floats.Sum(crop.data[r*crop.cols:(r+1)*crop.cols]) / float64(crop.cols)
	}

	n := len(profile)
	coeffs := fourier.NewFFT(n).Coefficients(nil, profile)
	amp := make([]float64, n-1)
	for k := 1; k < n; k++ {
		if k <= n/2 {
			amp[k-1] = cmplx.Abs(coeffs[k])
		} else {
			amp[k-1] = cmplx.Abs(coeffs[n-k])
		}
	}

	peak := floats.MaxIdx(amp)
	if peak == 0 || peak == len(amp)-1 {
		return 1
	}
	denom := floats.Sum(amp[:len(amp)/2])
	if denom == 0 {
		return 1
	}
	return (amp[peak] + 0.3*(amp[peak-1]+amp[peak+1])) / denom
}

// localClarityModule scores how cleanly each foreground block separates into
// ridge and valley columns of plausible width.
type localClarityModule struct{}

func (localClarityModule) Name() string         { return ModuleLocalClarity }
func (localClarityModule) SpeedGroup() string   { return SpeedGroupLocalClarity }
func (localClarityModule) FeatureIDs() []string { return histogramFeatureIDs("LCS_Bin10_") }

func (localClarityModule) Compute(a *Analysis) ([]float64, error) {
	grid := a.blocks()
	data := make([]float64, 0, len(grid.origins))
	for i := range grid.origins {
		if !grid.masked[i] {
			continue
		}
		data = append(data, localClarityOfBlock(grid.window(a.gray, i), grid.orientation[i]))
	}
	return histogramFeatures(lcsBounds, data)
}

// acrossRidgeCrop rotates window so that ridges run vertically and returns
// the central slantedBlockHeight x slantedBlockWidth region.
func acrossRidgeCrop(window matrix, orientation float64, pad bool) matrix {
	rotated := rotateBlock(window, orientation, pad)
	centre := window.rows / 2
	return rotated.sub(
		centre-slantedBlockHeight/2, centre+slantedBlockHeight/2,
		centre-slantedBlockWidth/2, centre+slantedBlockWidth/2)
}

// transitions returns the column index preceding each ridge/valley change in ridge[:limit]
func transitions(ridge []bool, limit int) []int {
	var idx []int
	for i := 1; i < limit; i++ {
		if ridge[i] != ridge[i-1] {
			idx = append(idx, i-1)
		}
	}
	return idx
}

func localClarityOfBlock(window matrix, orientation float64) float64 {
	crop := acrossRidgeCrop(window, orientation, false)
	ridge, trend := ridgeValleyStructure(crop)

	changes := transitions(ridge, len(ridge))
	if len(changes) == 0 {
		return 0
	}

	widths := make([]float64, len(changes))
	widths[0] = float64(changes[0])
	for i := 1; i < len(changes); i++ {
		widths[i] = float64(changes[i] - changes[i-1])
	}

	var ridgeWidths, valleyWidths []float64
	for i, w := range widths {
		// widths alternate, starting with the class of the first column
		if (i%2 == 0) == ridge[0] {
			ridgeWidths = append(ridgeWidths, w/widthScale)
		} else {
			valleyWidths = append(valleyWidths, w/widthScale)
		}
	}

	ridgeMean := meanOrZero(ridgeWidths)
	valleyMean := meanOrZero(valleyWidths)
	if ridgeMean < minRidgeWidth/widthScale || ridgeMean > maxRidgeWidth/widthScale ||
		valleyMean < minValleyWidth/widthScale || valleyMean > maxValleyWidth/widthScale {
		return 0
	}

	var ridgeGood, ridgeTotal, valleyGood, valleyTotal int
	for c := 0; c < crop.cols; c++ {
		for r := 0; r < crop.rows; r++ {
			v := crop.at(r, c)
			if ridge[c] {
				ridgeTotal++
				if v >= trend[c] {
					ridgeGood++
				}
			} else {
				valleyTotal++
				if v < trend[c] {
					valleyGood++
				}
			}
		}
	}
	alpha := ratioOrZero(valleyGood, valleyTotal)
	beta := ratioOrZero(ridgeGood, ridgeTotal)
	return 1 - (alpha+beta)/2
}

func meanOrZero(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Sum(v) / float64(len(v))
}

func ratioOrZero(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// orientationCertaintyModule measures the strength of the dominant gradient
// direction on non-overlapping blocks.
type orientationCertaintyModule struct{}

func (orientationCertaintyModule) Name() string         { return ModuleOrientationCertainty }
func (orientationCertaintyModule) SpeedGroup() string   { return SpeedGroupOrientationCertainty }
func (orientationCertaintyModule) FeatureIDs() []string { return histogramFeatureIDs("OCL_Bin10_") }

func (orientationCertaintyModule) Compute(a *Analysis) ([]float64, error) {
	img := a.gray
	var data []float64
	for r := 0; r+blockSize <= img.rows; r += blockSize {
		for c := 0; c+blockSize <= img.cols; c += blockSize {
			if v, ok := orientationCertainty(img.sub(r, r+blockSize, c, c+blockSize)); ok {
				data = append(data, v)
			}
		}
	}
	return histogramFeatures(oclBounds, data)
}

// orientationFlowModule measures how much the block orientation deviates from
// its 8-neighbourhood inside the foreground.
type orientationFlowModule struct{}

func (orientationFlowModule) Name() string         { return ModuleOrientationFlow }
func (orientationFlowModule) SpeedGroup() string   { return SpeedGroupOrientationFlow }
func (orientationFlowModule) FeatureIDs() []string { return histogramFeatureIDs("OF_Bin10_") }

// Orientation differences below minFlowAngle are treated as noise.
var (
	minFlowAngle   = 4 * math.Pi / 180
	flowAngleRange = (90 - 4) * math.Pi / 180
)

func (orientationFlowModule) Compute(a *Analysis) ([]float64, error) {
	grid := a.blocks()
	at := func(i, j int) (float64, bool) {
		if i < 0 || j < 0 || i >= grid.rows || j >= grid.cols {
			return 0, false
		}
		k := i*grid.cols + j
		return grid.orientation[k], grid.masked[k]
	}

	var data []float64
	for i := 0; i < grid.rows; i++ {
		for j := 0; j < grid.cols; j++ {
			centre, _ := at(i, j)
			deviation := 0.0
			surrounded := true
			for di := -1; di <= 1; di++ {
				for dj := -1; dj <= 1; dj++ {
					v, masked := at(i+di, j+dj)
					surrounded = surrounded && masked
					if di != 0 || dj != 0 {
						deviation += math.Abs(centre - v)
					}
				}
			}
			deviation /= 8
			if surrounded && deviation > minFlowAngle {
				data = append(data, (deviation-minFlowAngle)/flowAngleRange)
			}
		}
	}
	return histogramFeatures(ofBounds, data)
}

// ridgeValleyUniformityModule collects the ratios of consecutive ridge and
// valley widths across all foreground blocks.
type ridgeValleyUniformityModule struct{}

func (ridgeValleyUniformityModule) Name() string         { return ModuleRidgeValleyUniformity }
func (ridgeValleyUniformityModule) SpeedGroup() string   { return SpeedGroupRidgeValley }
func (ridgeValleyUniformityModule) FeatureIDs() []string { return histogramFeatureIDs("RVUP_Bin10_") }

func (ridgeValleyUniformityModule) Compute(a *Analysis) ([]float64, error) {
	grid := a.blocks()
	var data []float64
	for i := range grid.origins {
		if !grid.masked[i] {
			continue
		}
		data = append(data, widthRatiosOfBlock(grid.window(a.gray, i), grid.orientation[i])...)
	}
	return histogramFeatures(rvupBounds, data)
}

func widthRatiosOfBlock(window matrix, orientation float64) []float64 {
	crop := acrossRidgeCrop(window, orientation, true)
	ridge, _ := ridgeValleyStructure(crop)

	changes := transitions(ridge, len(ridge)-1)
	if len(changes) < 2 {
		return nil
	}
	first, last := changes[0], changes[len(changes)-1]
	if first+1 >= last {
		return nil
	}
	startsOnRidge := ridge[first+1]

	// widths of the ridges and valleys fully inside the crop
	widths := make([]float64, 0, len(changes)-1)
	for i := 1; i < len(changes); i++ {
		widths = append(widths, float64(changes[i]-changes[i-1]))
	}
	if len(widths) < 2 {
		return nil
	}

	ratios := make([]float64, len(widths)-1)
	for i := range ratios {
		ratios[i] = widths[i] / widths[i+1]
	}
	start := 0
	if startsOnRidge {
		start = 1
	}
	for i := start; i < len(ratios); i += 2 {
		ratios[i] = 1 / ratios[i]
	}
	return ratios
}
