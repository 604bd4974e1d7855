package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// contrastModule reports global gray-level statistics
type contrastModule struct{}

func (contrastModule) Name() string         { return ModuleContrast }
func (contrastModule) SpeedGroup() string   { return SpeedGroupContrast }
func (contrastModule) FeatureIDs() []string { return []string{"MMB", "Mu", "Sigma"} }

func (contrastModule) Compute(a *Analysis) ([]float64, error) {
	img := a.gray
	var blockMeans []float64
	for r := 0; r < img.rows; r += blockSize {
		for c := 0; c < img.cols; c += blockSize {
			blockMeans = append(blockMeans, img.sub(r, min(r+blockSize, img.rows), c, min(c+blockSize, img.cols)).mean())
		}
	}
	mean, std := a.Stats()
	return []float64{stat.Mean(blockMeans, nil), mean, std}, nil
}

// regionOfInterestModule reports the size and brightness of the foreground region
type regionOfInterestModule struct{}

func (regionOfInterestModule) Name() string       { return ModuleRegionOfInterest }
func (regionOfInterestModule) SpeedGroup() string { return SpeedGroupRegionOfInterest }
func (regionOfInterestModule) FeatureIDs() []string {
	return []string{"ImgProcROIArea_Mean", "ImgProcROIArea_Pixels"}
}

func (regionOfInterestModule) Compute(a *Analysis) ([]float64, error) {
	roi := a.ROI()
	return []float64{roi.mean, float64(roi.pixels)}, nil
}

// orientationMapModule sums the gradient coherence of every ROI block
type orientationMapModule struct{}

func (orientationMapModule) Name() string       { return ModuleOrientationMap }
func (orientationMapModule) SpeedGroup() string { return SpeedGroupRegionOfInterest }
func (orientationMapModule) FeatureIDs() []string {
	return []string{"OrientationMap_ROIFilter_CoherenceRel", "OrientationMap_ROIFilter_CoherenceSum"}
}

func (orientationMapModule) Compute(a *Analysis) ([]float64, error) {
	roi := a.ROI()
	if len(roi.blocks) == 0 {
		return nil, ErrEmptyROI
	}

	sum := 0.0
	for _, rect := range roi.blocks {
		block := a.gray.sub(rect.Min.Y, rect.Max.Y, rect.Min.X, rect.Max.X)
		sum += blockCoherence(block)
	}
	return []float64{sum / float64(len(roi.blocks)), sum}, nil
}

// blockCoherence is the magnitude of the summed doubled-angle gradient vector
// relative to the summed gradient energy.
func blockCoherence(block matrix) float64 {
	gx, gy := gradients(block)
	var sumX, sumY, energy float64
	for i := range block.data {
		x, y := gx.data[i], gy.data[i]
		dy := 2 * x * y
		dx := x*x - y*y
		sumY += dy
		sumX += dx
		energy += math.Sqrt(dy*dy + dx*dx)
	}
	if energy == 0 {
		return 0
	}
	return math.Sqrt(sumX*sumX+sumY*sumY) / energy
}

// Minutiae rectangle around the centre of mass
const comRectSize = 200

// minutiaeCountModule counts minutiae in the whole image and near their centre of mass
type minutiaeCountModule struct{}

func (minutiaeCountModule) Name() string       { return ModuleMinutiaeCount }
func (minutiaeCountModule) SpeedGroup() string { return SpeedGroupMinutiae }
func (minutiaeCountModule) FeatureIDs() []string {
	return []string{"Minutiae_Count", "Minutiae_CountCOMRect200x200"}
}

func (minutiaeCountModule) Compute(a *Analysis) ([]float64, error) {
	minutiae := a.Minutiae()
	if len(minutiae) == 0 {
		return []float64{0, 0}, nil
	}

	var sx, sy int
	for _, m := range minutiae {
		sx += m.X
		sy += m.Y
	}
	cx, cy := sx/len(minutiae), sy/len(minutiae)
	x0, x1 := max(cx-comRectSize/2, 0), min(cx+comRectSize/2, a.Width()-1)
	y0, y1 := max(cy-comRectSize/2, 0), min(cy+comRectSize/2, a.Height()-1)

	inside := 0
	for _, m := range minutiae {
		if m.X >= x0 && m.X <= x1 && m.Y >= y0 && m.Y <= y1 {
			inside++
		}
	}
	return []float64{float64(len(minutiae)), float64(inside)}, nil
}

// Local quality thresholds applied around each minutia.
const (
	minutiaBlockSize = 32
	maxMuDeviation   = 0.5
	minOCLPercent    = 80
)

// minutiaeQualityModule rates the image around each minutia
type minutiaeQualityModule struct{}

func (minutiaeQualityModule) Name() string       { return ModuleMinutiaeQuality }
func (minutiaeQualityModule) SpeedGroup() string { return SpeedGroupMinutiae }
func (minutiaeQualityModule) FeatureIDs() []string {
	return []string{"MinutiaeQuality_Mu2", "MinutiaeQuality_OCL80"}
}

func (minutiaeQualityModule) Compute(a *Analysis) ([]float64, error) {
	minutiae := a.Minutiae()
	if len(minutiae) == 0 {
		return nil, ErrNoMinutiae
	}

	mean, std := a.Stats()
	img := a.gray
	half := minutiaBlockSize / 2
	var muGood, oclGood int
	for _, m := range minutiae {
		// block anchored at the minutia, clipped at the bottom and right edges
		x0, y0 := max(m.X-half, 0), max(m.Y-half, 0)
		clipped := img.sub(y0, min(y0+minutiaBlockSize, img.rows), x0, min(x0+minutiaBlockSize, img.cols))
		if std > 0 {
			q := (mean - clipped.mean()) / std
			if q > 0 && q <= maxMuDeviation {
				muGood++
			}
		}

		// block shifted to lie fully inside the image
		sx := min(max(m.X-half, 0), max(img.cols-minutiaBlockSize, 0))
		sy := min(max(m.Y-half, 0), max(img.rows-minutiaBlockSize, 0))
		inside := img.sub(sy, min(sy+minutiaBlockSize, img.rows), sx, min(sx+minutiaBlockSize, img.cols))
		ocl, _ := orientationCertainty(inside)
		if int(ocl*100+0.5) > minOCLPercent {
			oclGood++
		}
	}
	n := float64(len(minutiae))
	return []float64{float64(muGood) / n, float64(oclGood) / n}, nil
}
