package analyzer

import (
	"sync"

	"go-fingerprint-quality/pkg/models"

	"gonum.org/v1/gonum/stat"
)

// Analysis carries one image and the intermediate data several modules share.
// Each intermediate is computed at most once, on first use, and is safe to
// request from concurrent modules.
type Analysis struct {
	image *models.FingerprintImage
	gray  matrix

	statsOnce sync.Once
	mean, std float64

	maskOnce sync.Once
	mask     []bool

	gridOnce sync.Once
	grid     *blockGrid

	roiOnce sync.Once
	roi     *regionOfInterest

	minutiaeOnce sync.Once
	minutiae     []Minutia
}

// NewAnalysis prepares img for feature extraction
func NewAnalysis(img *models.FingerprintImage) *Analysis {
	pixels := img.Pixels()
	gray := newMatrix(img.Height(), img.Width())
	for i, p := range pixels {
		gray.data[i] = float64(p)
	}
	return &Analysis{image: img, gray: gray}
}

// Image returns the analysed image
func (a *Analysis) Image() *models.FingerprintImage {
	return a.image
}

// Width and Height are the raster dimensions in pixels.
func (a *Analysis) Width() int  { return a.gray.cols }
func (a *Analysis) Height() int { return a.gray.rows }

// Stats returns the global gray-level mean and population standard deviation
func (a *Analysis) Stats() (mean, std float64) {
	a.statsOnce.Do(func() {
		a.mean, a.std = stat.PopMeanStdDev(a.gray.data, nil)
	})
	return a.mean, a.std
}

// foreground is the per-pixel ridge segmentation mask
func (a *Analysis) foreground() []bool {
	a.maskOnce.Do(func() {
		a.mask = segmentationMask(a.gray, blockSize, segmentThreshold)
	})
	return a.mask
}

// blocks returns the slanted-block grid with per-block orientations
func (a *Analysis) blocks() *blockGrid {
	a.gridOnce.Do(func() {
		a.grid = newBlockGrid(a.gray, a.foreground())
	})
	return a.grid
}

// ROI returns the region of interest
func (a *Analysis) ROI() *regionOfInterest {
	a.roiOnce.Do(func() {
		a.roi = computeROI(a.gray)
	})
	return a.roi
}

// Minutiae returns the minutiae found by the built-in extractor
func (a *Analysis) Minutiae() []Minutia {
	a.minutiaeOnce.Do(func() {
		a.minutiae = extractMinutiae(a.gray, a.foreground())
	})
	return a.minutiae
}

// blockGrid lists the 32x32 blocks visited by the slanted-block modules.
// Every block is read through a larger window so it can be rotated without
// losing its corners.
type blockGrid struct {
	rows, cols  int
	windowSize  int
	offset      int
	origins     [][2]int
	orientation []float64
	masked      []bool
}

func newBlockGrid(img matrix, mask []bool) *blockGrid {
	window := int(mathCeilSqrt(slantedBlockWidth*slantedBlockWidth + slantedBlockHeight*slantedBlockHeight))
	offset := (window - blockSize + 1) / 2
	g := &blockGrid{windowSize: window, offset: offset}

	for r := offset; r < img.rows-blockSize-1; r += blockSize {
		g.rows++
		cols := 0
		for c := offset; c < img.cols-blockSize-1; c += blockSize {
			cols++
			block := img.sub(r, r+blockSize, c, c+blockSize)
			a, b, cc := covarianceCoefficients(block)
			g.origins = append(g.origins, [2]int{r, c})
			g.orientation = append(g.orientation, ridgeOrientation(a, b, cc))
			g.masked = append(g.masked, allMasked(mask, img.cols, r, r+blockSize, c, c+blockSize))
		}
		g.cols = cols
	}
	return g
}

// window returns the rotation window around block i
func (g *blockGrid) window(img matrix, i int) matrix {
	r := g.origins[i][0] - g.offset
	c := g.origins[i][1] - g.offset
	return img.sub(r, r+g.windowSize, c, c+g.windowSize)
}
