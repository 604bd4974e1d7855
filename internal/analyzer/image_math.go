package analyzer

import (
	"errors"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

// Block geometry shared by the ridge-based modules. All values are calibrated for 500 PPI.
const (
	blockSize          = 32
	segmentThreshold   = 0.1
	slantedBlockWidth  = 32
	slantedBlockHeight = 16
	scannerResolution  = 500
	roiBlockSize       = 16
	histogramBinCount  = 10
)

var (
	// ErrNoRidgeStructure is returned when no block qualifies as fingerprint foreground
	ErrNoRidgeStructure = errors.New("no foreground blocks with ridge structure")
	// ErrNoMinutiae is returned by modules that need at least one minutia
	ErrNoMinutiae = errors.New("no minutiae detected")
	// ErrEmptyROI is returned when the region of interest has no blocks
	ErrEmptyROI = errors.New("region of interest is empty")
)

// matrix is a dense row-major float64 grid
type matrix struct {
	rows, cols int
	data       []float64
}

func newMatrix(rows, cols int) matrix {
	return matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

func (m matrix) at(r, c int) float64 {
	return m.data[r*m.cols+c]
}

func (m matrix) set(r, c int, v float64) {
	m.data[r*m.cols+c] = v
}

// sub copies rows [r0,r1) and columns [c0,c1)
func (m matrix) sub(r0, r1, c0, c1 int) matrix {
	out := newMatrix(r1-r0, c1-c0)
	for r := r0; r < r1; r++ {
		copy(out.data[(r-r0)*out.cols:(r-r0+1)*out.cols], m.data[r*m.cols+c0:r*m.cols+c1])
	}
	return out
}

func (m matrix) mean() float64 {
	return stat.Mean(m.data, nil)
}

// gradients estimates the gray-level gradient with central differences,
// falling back to forward differences on the first and last sample.
func gradients(m matrix) (gx, gy matrix) {
	gx = newMatrix(m.rows, m.cols)
	gy = newMatrix(m.rows, m.cols)
	if m.cols > 1 {
		for r := 0; r < m.rows; r++ {
			gx.set(r, 0, m.at(r, 1)-m.at(r, 0))
			for c := 1; c < m.cols-1; c++ {
				gx.set(r, c, (m.at(r, c+1)-m.at(r, c-1))/2)
			}
			gx.set(r, m.cols-1, m.at(r, m.cols-1)-m.at(r, m.cols-2))
		}
	}
	if m.rows > 1 {
		for c := 0; c < m.cols; c++ {
			gy.set(0, c, m.at(1, c)-m.at(0, c))
			for r := 1; r < m.rows-1; r++ {
				gy.set(r, c, (m.at(r+1, c)-m.at(r-1, c))/2)
			}
			gy.set(m.rows-1, c, m.at(m.rows-1, c)-m.at(m.rows-2, c))
		}
	}
	return gx, gy
}

// covarianceCoefficients returns the entries of the gradient covariance matrix [a c; c b]
func covarianceCoefficients(block matrix) (a, b, c float64) {
	gx, gy := gradients(block)
	n := float64(len(block.data))
	for i := range block.data {
		x, y := gx.data[i], gy.data[i]
		a += x * x
		b += y * y
		c += x * y
	}
	return a / n, b / n, c / n
}

// ridgeOrientation returns the angle of the line perpendicular to the ridge flow
func ridgeOrientation(a, b, c float64) float64 {
	diff := a - b
	denom := c*c + diff*diff + epsilon
	return math.Atan2(c/denom, diff/denom) / 2
}

// orientationCertainty is 1 - λmin/λmax of the gradient covariance. ok is false
// for a block without any gradient energy.
func orientationCertainty(block matrix) (value float64, ok bool) {
	a, b, c := covarianceCoefficients(block)
	root := math.Sqrt((a-b)*(a-b) + 4*c*c)
	eigMax := ((a + b) + root) / 2
	eigMin := ((a + b) - root) / 2
	if eigMax == 0 {
		return 0, false
	}
	return 1 - eigMin/eigMax, true
}

const epsilon = 2.220446049250313e-16

// segmentationMask flags pixels that belong to a block whose normalised
// standard deviation exceeds thresh. Blocks are tiled from the origin and the
// last row and column of blocks may be partial.
func segmentationMask(img matrix, blk int, thresh float64) []bool {
	mask := make([]bool, len(img.data))
	_, globalStd := stat.PopMeanStdDev(img.data, nil)
	if globalStd == 0 || math.IsNaN(globalStd) {
		return mask
	}

	buf := make([]float64, 0, blk*blk)
	for r := 0; r < img.rows; r += blk {
		r1 := min(r+blk, img.rows)
		for c := 0; c < img.cols; c += blk {
			c1 := min(c+blk, img.cols)
			buf = buf[:0]
			for y := r; y < r1; y++ {
				buf = append(buf, img.data[y*img.cols+c:y*img.cols+c1]...)
			}
			_, std := stat.PopMeanStdDev(buf, nil)
			if std/globalStd <= thresh {
				continue
			}
			for y := r; y < r1; y++ {
				for x := c; x < c1; x++ {
					mask[y*img.cols+x] = true
				}
			}
		}
	}
	return mask
}

func allMasked(mask []bool, cols, r0, r1, c0, c1 int) bool {
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			if !mask[r*cols+c] {
				return false
			}
		}
	}
	return true
}

// rotateBlock rotates block counter-clockwise by angle radians around its centre using
// nearest-neighbour sampling. With pad set the block is first surrounded by a two pixel
// zero border; the output always has the size of the input block.
func rotateBlock(block matrix, angle float64, pad bool) matrix {
	in := block
	if pad {
		in = newMatrix(block.rows+4, block.cols+4)
		for r := 0; r < block.rows; r++ {
			copy(in.data[(r+2)*in.cols+2:], block.data[r*block.cols:(r+1)*block.cols])
		}
	}

	cosA, sinA := math.Cos(angle), math.Sin(angle)
	cx, cy := float64(in.cols)/2, float64(in.rows)/2
	out := newMatrix(block.rows, block.cols)
	for y := 0; y < out.rows; y++ {
		dy := float64(y) - cy
		for x := 0; x < out.cols; x++ {
			dx := float64(x) - cx
			sx := int(math.Floor(cosA*dx - sinA*dy + cx + 0.5))
			sy := int(math.Floor(sinA*dx + cosA*dy + cy + 0.5))
			if sx < 0 || sy < 0 || sx >= in.cols || sy >= in.rows {
				continue
			}
			out.set(y, x, in.at(sy, sx))
		}
	}
	return out
}

// ridgeValleyStructure fits a linear trend to the column means of block and
// classifies each column as ridge (darker than the trend) or valley.
func ridgeValleyStructure(block matrix) (ridge []bool, trend []float64) {
	xs := make([]float64, block.cols)
	means := make([]float64, block.cols)
	for c := 0; c < block.cols; c++ {
		sum := 0.0
		for r := 0; r < block.rows; r++ {
			sum += block.at(r, c)
		}
		means[c] = sum / float64(block.rows)
		xs[c] = float64(c + 1)
	}

	intercept, slope := stat.LinearRegression(xs, means, nil, false)
	intercept = roundTo(intercept, 1e10)
	slope = roundTo(slope, 1e10)

	ridge = make([]bool, block.cols)
	trend = make([]float64, block.cols)
	for c := range means {
		trend[c] = xs[c]*slope + intercept
		ridge[c] = means[c] < trend[c]
	}
	return ridge, trend
}

func roundTo(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

// histogramFeatureIDs returns the ten bin identifiers followed by Mean and StdDev
func histogramFeatureIDs(prefix string) []string {
	ids := make([]string, 0, histogramBinCount+2)
	for i := 0; i < histogramBinCount; i++ {
		ids = append(ids, prefix+strconv.Itoa(i))
	}
	return append(ids, prefix+"Mean", prefix+"StdDev")
}

// histogramFeatures counts data into ten bins split at the nine inner bounds and
// appends the population mean and standard deviation.
func histogramFeatures(bounds []float64, data []float64) ([]float64, error) {
	if len(bounds) != histogramBinCount-1 {
		return nil, errors.New("histogram needs nine inner bounds")
	}
	if len(data) == 0 {
		return nil, ErrNoRidgeStructure
	}

	out := make([]float64, histogramBinCount+2)
	for _, v := range data {
		bin := 0
		for bin < histogramBinCount-1 && v >= bounds[bin] {
			bin++
		}
		out[bin]++
	}
	mean, std := stat.PopMeanStdDev(data, nil)
	out[histogramBinCount] = mean
	out[histogramBinCount+1] = std
	return out, nil
}

func mathCeilSqrt(v int) float64 {
	return math.Ceil(math.Sqrt(float64(v)))
}
