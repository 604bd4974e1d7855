package analyzer

import (
	"image"
	"math"
)

// Smoothing kernels used to merge ridges into one foreground blob.
const (
	roiErodeSize     = 5
	roiFirstKernel   = 41
	roiFirstSigma    = 6.5
	roiSecondKernel  = 91
	roiSecondSigma   = 14.0
	roiForegroundVal = 0
	roiBackgroundVal = 255
)

// regionOfInterest is the largest dark connected region of a heavily smoothed
// and binarised copy of the image.
type regionOfInterest struct {
	width, height int
	// mask is true for pixels inside the region
	mask   []bool
	pixels int
	// mean is the gray-level mean of the original image over the region
	mean float64
	// blocks are the roiBlockSize tiles that overlap the region
	blocks []image.Rectangle
}

func computeROI(img matrix) *regionOfInterest {
	bin := toBytes(img)
	bin = erode(bin, img.cols, img.rows, roiErodeSize)
	bin = gaussianBlur(bin, img.cols, img.rows, roiFirstKernel, roiFirstSigma)
	otsuBinarise(bin)
	bin = gaussianBlur(bin, img.cols, img.rows, roiSecondKernel, roiSecondSigma)
	otsuBinarise(bin)
	fillHoles(bin, img.cols, img.rows)
	keepLargestForeground(bin, img.cols, img.rows)

	roi := &regionOfInterest{width: img.cols, height: img.rows, mask: make([]bool, len(bin))}
	sum := 0.0
	for i, v := range bin {
		if v == roiForegroundVal {
			roi.mask[i] = true
			roi.pixels++
			sum += img.data[i]
		}
	}
	if roi.pixels > 0 {
		roi.mean = sum / float64(roi.pixels)
	} else {
		roi.mean = roiBackgroundVal
	}

	for y := 0; y < img.rows; y += roiBlockSize {
		for x := 0; x < img.cols; x += roiBlockSize {
			rect := image.Rect(x, y, min(x+roiBlockSize, img.cols), min(y+roiBlockSize, img.rows))
			if roi.overlaps(rect) {
				roi.blocks = append(roi.blocks, rect)
			}
		}
	}
	return roi
}

func (r *regionOfInterest) overlaps(rect image.Rectangle) bool {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if r.mask[y*r.width+x] {
				return true
			}
		}
	}
	return false
}

func toBytes(img matrix) []uint8 {
	out := make([]uint8, len(img.data))
	for i, v := range img.data {
		out[i] = clampByte(v)
	}
	return out
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// erode applies a size x size minimum filter. Pixels outside the image are ignored.
func erode(src []uint8, w, h, size int) []uint8 {
	half := size / 2
	tmp := make([]uint8, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := uint8(255)
			for k := max(x-half, 0); k <= min(x+half, w-1); k++ {
				m = min(m, src[y*w+k])
			}
			tmp[y*w+x] = m
		}
	}
	out := make([]uint8, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := uint8(255)
			for k := max(y-half, 0); k <= min(y+half, h-1); k++ {
				m = min(m, tmp[k*w+x])
			}
			out[y*w+x] = m
		}
	}
	return out
}

func gaussianKernel(size int, sigma float64) []float64 {
	kernel := make([]float64, size)
	centre := float64(size-1) / 2
	sum := 0.0
	for i := range kernel {
		d := float64(i) - centre
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect101 mirrors an out-of-range index without repeating the edge sample
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// gaussianBlur is a separable Gaussian filter with mirrored borders
func gaussianBlur(src []uint8, w, h, size int, sigma float64) []uint8 {
	kernel := gaussianKernel(size, sigma)
	half := size / 2

	tmp := make([]float64, len(src))
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			acc := 0.0
			for k, kv := range kernel {
				acc += kv * float64(row[reflect101(x+k-half, w)])
			}
			tmp[y*w+x] = acc
		}
	}

	out := make([]uint8, len(src))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			acc := 0.0
			for k, kv := range kernel {
				acc += kv * tmp[reflect101(y+k-half, h)*w+x]
			}
			out[y*w+x] = clampByte(acc)
		}
	}
	return out
}

// otsuThreshold picks the gray level that maximises the between-class variance
func otsuThreshold(src []uint8) uint8 {
	var hist [256]float64
	for _, v := range src {
		hist[v]++
	}
	scale := 1 / float64(len(src))
	mu := 0.0
	for i, n := range hist {
		mu += float64(i) * n * scale
	}

	const eps = 1.1920929e-07
	var q1, mu1, best float64
	threshold := 0
	for i, n := range hist {
		p := n * scale
		mu1 *= q1
		q1 += p
		q2 := 1 - q1
		if math.Min(q1, q2) < eps || math.Max(q1, q2) > 1-eps {
			continue
		}
		mu1 = (mu1 + float64(i)*p) / q1
		mu2 := (mu - q1*mu1) / q2
		sigma := q1 * q2 * (mu1 - mu2) * (mu1 - mu2)
		if sigma > best {
			best = sigma
			threshold = i
		}
	}
	return uint8(threshold)
}

func otsuBinarise(src []uint8) {
	t := otsuThreshold(src)
	for i, v := range src {
		if v > t {
			src[i] = roiBackgroundVal
		} else {
			src[i] = roiForegroundVal
		}
	}
}

// fillHoles turns background regions that do not touch the image border into foreground
func fillHoles(bin []uint8, w, h int) {
	outside := make([]bool, len(bin))
	var stack []int
	push := func(i int) {
		if !outside[i] && bin[i] == roiBackgroundVal {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < w; x++ {
		push(x)
		push((h-1)*w + x)
	}
	for y := 0; y < h; y++ {
		push(y * w)
		push(y*w + w - 1)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(i - 1)
		}
		if x < w-1 {
			push(i + 1)
		}
		if y > 0 {
			push(i - w)
		}
		if y < h-1 {
			push(i + w)
		}
	}
	for i := range bin {
		if !outside[i] {
			bin[i] = roiForegroundVal
		}
	}
}

// keepLargestForeground keeps the 4-connected foreground component with the
// largest bounding box and clears the rest.
func keepLargestForeground(bin []uint8, w, h int) {
	labels := make([]int, len(bin))
	var boxes []int
	var stack []int
	for start := range bin {
		if bin[start] != roiForegroundVal || labels[start] != 0 {
			continue
		}
		label := len(boxes) + 1
		minX, minY, maxX, maxY := w, h, -1, -1
		labels[start] = label
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				switch {
				case n < 0 || n >= len(bin):
					continue
				case (n == i-1 && x == 0) || (n == i+1 && x == w-1):
					continue
				}
				if bin[n] == roiForegroundVal && labels[n] == 0 {
					labels[n] = label
					stack = append(stack, n)
				}
			}
		}
		boxes = append(boxes, (maxX-minX+1)*(maxY-minY+1))
	}
	if len(boxes) < 2 {
		return
	}

	keep := 1
	for i, area := range boxes {
		if area > boxes[keep-1] {
			keep = i + 1
		}
	}
	for i, l := range labels {
		if l != 0 && l != keep {
			bin[i] = roiBackgroundVal
		}
	}
}
