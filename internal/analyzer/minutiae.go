package analyzer

// MinutiaType distinguishes ridge endings from bifurcations
type MinutiaType int

const (
	MinutiaEnding MinutiaType = iota + 1
	MinutiaBifurcation
)

func (t MinutiaType) String() string {
	switch t {
	case MinutiaEnding:
		return "ending"
	case MinutiaBifurcation:
		return "bifurcation"
	default:
		return "unknown"
	}
}

// Minutia is a ridge ending or bifurcation in pixel coordinates
type Minutia struct {
	X    int         `json:"x"`
	Y    int         `json:"y"`
	Type MinutiaType `json:"type"`
}

// Extractor tuning at 500 PPI.
const (
	binariseWindow    = 15
	minutiaMargin     = 12
	minMinutiaSpacing = 6
)

// extractMinutiae binarises the foreground, thins the ridges to one pixel and
// reports crossing-number minutiae away from the foreground border.
func extractMinutiae(img matrix, foreground []bool) []Minutia {
	w, h := img.cols, img.rows
	if w < 3 || h < 3 {
		return nil
	}
	hasForeground := false
	for _, f := range foreground {
		if f {
			hasForeground = true
			break
		}
	}
	if !hasForeground {
		return nil
	}

	smooth := boxFilter(img.data, w, h, 3)
	local := boxFilter(smooth, w, h, binariseWindow)
	skeleton := make([]bool, len(smooth))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			skeleton[i] = foreground[i] && smooth[i] < local[i]
		}
	}
	thin(skeleton, w, h)

	inside := newIntegral(foreground, w, h)
	var found []Minutia
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			if !skeleton[y*w+x] {
				continue
			}
			var t MinutiaType
			switch crossingNumber(skeleton, w, x, y) {
			case 1:
				t = MinutiaEnding
			case 3:
				t = MinutiaBifurcation
			default:
				continue
			}
			if !inside.full(x-minutiaMargin, y-minutiaMargin, x+minutiaMargin, y+minutiaMargin) {
				continue
			}
			found = append(found, Minutia{X: x, Y: y, Type: t})
		}
	}
	return dropClosePairs(found)
}

// neighbours in clockwise order starting north
var ring = [8][2]int{{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}}

func crossingNumber(skel []bool, w, x, y int) int {
	n := 0
	for k := 0; k < 8; k++ {
		a := skel[(y+ring[k][1])*w+x+ring[k][0]]
		b := skel[(y+ring[(k+1)%8][1])*w+x+ring[(k+1)%8][0]]
		if a != b {
			n++
		}
	}
	return n / 2
}

// thin reduces ridges to one pixel width with the Zhang-Suen algorithm.
// Border pixels must be false.
func thin(img []bool, w, h int) {
	var marked []int
	for {
		changed := false
		for pass := 0; pass < 2; pass++ {
			marked = marked[:0]
			for y := 1; y < h-1; y++ {
				for x := 1; x < w-1; x++ {
					if img[y*w+x] && removable(img, w, x, y, pass) {
						marked = append(marked, y*w+x)
					}
				}
			}
			for _, i := range marked {
				img[i] = false
			}
			changed = changed || len(marked) > 0
		}
		if !changed {
			return
		}
	}
}

func removable(img []bool, w, x, y, pass int) bool {
	var p [8]bool
	count := 0
	for k := range ring {
		p[k] = img[(y+ring[k][1])*w+x+ring[k][0]]
		if p[k] {
			count++
		}
	}
	if count < 2 || count > 6 {
		return false
	}
	rises := 0
	for k := 0; k < 8; k++ {
		if !p[k] && p[(k+1)%8] {
			rises++
		}
	}
	if rises != 1 {
		return false
	}
	north, east, south, west := p[0], p[2], p[4], p[6]
	if pass == 0 {
		return !(north && east && south) && !(east && south && west)
	}
	return !(north && east && west) && !(north && south && west)
}

func dropClosePairs(in []Minutia) []Minutia {
	drop := make([]bool, len(in))
	const limit = minMinutiaSpacing * minMinutiaSpacing
	for i := range in {
		for j := i + 1; j < len(in); j++ {
			dx, dy := in[i].X-in[j].X, in[i].Y-in[j].Y
			if dx*dx+dy*dy < limit {
				drop[i], drop[j] = true, true
			}
		}
	}
	out := in[:0]
	for i, m := range in {
		if !drop[i] {
			out = append(out, m)
		}
	}
	return out
}

// boxFilter averages over a size x size window clipped to the image
func boxFilter(src []float64, w, h, size int) []float64 {
	sum := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0.0
		for x := 0; x < w; x++ {
			row += src[y*w+x]
			sum[(y+1)*(w+1)+x+1] = sum[y*(w+1)+x+1] + row
		}
	}
	half := size / 2
	out := make([]float64, len(src))
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half+1, h)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half+1, w)
			s := sum[y1*(w+1)+x1] - sum[y0*(w+1)+x1] - sum[y1*(w+1)+x0] + sum[y0*(w+1)+x0]
			out[y*w+x] = s / float64((y1-y0)*(x1-x0))
		}
	}
	return out
}

// integral counts set mask pixels over rectangles in constant time
type integral struct {
	w, h int
	sum  []int
}

func newIntegral(mask []bool, w, h int) integral {
	in := integral{w: w, h: h, sum: make([]int, (w+1)*(h+1))}
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				row++
			}
			in.sum[(y+1)*(w+1)+x+1] = in.sum[y*(w+1)+x+1] + row
		}
	}
	return in
}

// full reports whether the inclusive rectangle lies in the image and is entirely set
func (in integral) full(x0, y0, x1, y1 int) bool {
	if x0 < 0 || y0 < 0 || x1 >= in.w || y1 >= in.h {
		return false
	}
	stride := in.w + 1
	s := in.sum[(y1+1)*stride+x1+1] - in.sum[y0*stride+x1+1] - in.sum[(y1+1)*stride+x0] + in.sum[y0*stride+x0]
	return s == (x1-x0+1)*(y1-y0+1)
}
