// Package testutil renders synthetic fingerprint images for tests.
package testutil

import (
	"math"

	"go-fingerprint-quality/pkg/models"
)

// RidgePeriod is the ridge spacing of generated prints in pixels, typical for 500 PPI
const RidgePeriod = 9.0

// dislocations add a ridge ending or bifurcation at an offset from the print centre
var dislocations = []struct {
	dx, dy float64
	sign   float64
}{
	{-60, -50, 1},
	{50, -30, -1},
	{-20, 70, 1},
	{70, 60, -1},
	{0, 0, 1},
	{-80, 20, -1},
}

// Fingerprint renders an elliptical patch of oriented sinusoidal ridges on a white
// background. Phase dislocations inside the patch create minutiae.
func Fingerprint(width, height int) *models.FingerprintImage {
	pixels := make([]byte, width*height)
	cx, cy := float64(width)/2, float64(height)/2
	rx, ry := 0.4*float64(width), 0.45*float64(height)
	theta := math.Pi / 6
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fx, fy := float64(x)-cx, float64(y)-cy
			if (fx*fx)/(rx*rx)+(fy*fy)/(ry*ry) > 1 {
				pixels[y*width+x] = 255
				continue
			}
			phase := 2 * math.Pi * (fx*math.Cos(theta) + fy*math.Sin(theta)) / RidgePeriod
			for _, d := range dislocations {
				phase += d.sign * math.Atan2(fy-d.dy, fx-d.dx)
			}
			pixels[y*width+x] = uint8(128 + 90*math.Cos(phase))
		}
	}
	return mustImage(pixels, width, height)
}

// Blank renders a uniform image of the given gray level
func Blank(width, height int, gray uint8) *models.FingerprintImage {
	pixels := make([]byte, width*height)
	for i := range pixels {
		pixels[i] = gray
	}
	return mustImage(pixels, width, height)
}

// Framed surrounds img with a white border of the given width
func Framed(img *models.FingerprintImage, border int) *models.FingerprintImage {
	w, h := img.Width()+2*border, img.Height()+2*border
	pixels := make([]byte, w*h)
	for i := range pixels {
		pixels[i] = 255
	}
	src := img.Pixels()
	for y := 0; y < img.Height(); y++ {
		copy(pixels[(y+border)*w+border:], src[y*img.Width():(y+1)*img.Width()])
	}
	return mustImage(pixels, w, h)
}

func mustImage(pixels []byte, width, height int) *models.FingerprintImage {
	img, err := models.NewFingerprintImage(pixels, width, height, models.Resolution500PPI)
	if err != nil {
		panic(err)
	}
	return img
}
