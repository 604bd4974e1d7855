package models

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"

	apperrors "go-fingerprint-quality/internal/errors"
)

const (
	// Resolution500PPI is the only scanner resolution the engine is calibrated for
	Resolution500PPI = 500
	// BitDepth8 is the only supported sample depth
	BitDepth8 = 8

	// WhiteFrameThreshold is the row/column mean above which a line counts as border
	WhiteFrameThreshold = 250.0

	// Size bounds an image must satisfy (exclusive) before it can be scored
	MinScoringWidth  = 196
	MaxScoringWidth  = 800
	MinScoringHeight = 196
	MaxScoringHeight = 1000
)

// FingerprintImage is a decoded single-channel raster with resolution metadata.
// It is immutable once constructed.
type FingerprintImage struct {
	width      int
	height     int
	bitDepth   int
	ppi        int
	fingerCode uint8
	pixels     []byte
}

// NewFingerprintImage validates the buffer and returns an image that owns a copy of pixels
func NewFingerprintImage(pixels []byte, width, height, ppi int) (*FingerprintImage, error) {
	return newFingerprintImage(pixels, width, height, BitDepth8, ppi, 0)
}

// NewFingerprintImageWithDepth is NewFingerprintImage for callers that carry an explicit bit depth
func NewFingerprintImageWithDepth(pixels []byte, width, height, bitDepth, ppi int) (*FingerprintImage, error) {
	return newFingerprintImage(pixels, width, height, bitDepth, ppi, 0)
}

func newFingerprintImage(pixels []byte, width, height, bitDepth, ppi int, fingerCode uint8) (*FingerprintImage, error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.NewInvalidImageError(
			fmt.Sprintf("dimensions must be positive (got %dx%d)", width, height), nil)
	}
	if ppi <= 0 {
		return nil, apperrors.NewInvalidImageError(fmt.Sprintf("resolution must be positive (got %d)", ppi), nil)
	}
	if ppi != Resolution500PPI {
		return nil, apperrors.NewInvalidImageError(
			fmt.Sprintf("only %d PPI images are supported (got %d)", Resolution500PPI, ppi), nil)
	}
	if bitDepth != BitDepth8 {
		return nil, apperrors.NewInvalidImageError(
			fmt.Sprintf("only %d-bit grayscale images are supported (got %d)", BitDepth8, bitDepth), nil)
	}
	want := width * height * bitDepth / 8
	if len(pixels) != want {
		return nil, apperrors.NewInvalidImageError(
			fmt.Sprintf("pixel buffer has %d bytes, expected %d for %dx%d", len(pixels), want, width, height), nil)
	}

	buf := make([]byte, len(pixels))
	copy(buf, pixels)
	return &FingerprintImage{
		width:      width,
		height:     height,
		bitDepth:   bitDepth,
		ppi:        ppi,
		fingerCode: fingerCode,
		pixels:     buf,
	}, nil
}

// FromImage converts any decoded image to 8-bit grayscale
func FromImage(img image.Image, ppi int) (*FingerprintImage, error) {
	if img == nil {
		return nil, apperrors.NewInvalidImageError("image is nil", nil)
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, apperrors.NewInvalidImageError("image has no pixels", nil)
	}

	pixels := make([]byte, width*height)
	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			off := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(pixels[y*width:(y+1)*width], gray.Pix[off:off+width])
		}
	} else {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				pixels[y*width+x] = g.Y
			}
		}
	}
	return newFingerprintImage(pixels, width, height, BitDepth8, ppi, 0)
}

// WithFingerCode returns a copy tagged with a finger position code
func (f *FingerprintImage) WithFingerCode(code uint8) *FingerprintImage {
	cp := *f
	cp.fingerCode = code
	return &cp
}

// Width, Height, BitDepth, PPI and FingerCode expose the raster metadata.
func (f *FingerprintImage) Width() int        { return f.width }
func (f *FingerprintImage) Height() int       { return f.height }
func (f *FingerprintImage) BitDepth() int     { return f.bitDepth }
func (f *FingerprintImage) PPI() int          { return f.ppi }
func (f *FingerprintImage) FingerCode() uint8 { return f.fingerCode }

// At returns the gray value at column x, row y
func (f *FingerprintImage) At(x, y int) uint8 {
	return f.pixels[y*f.width+x]
}

// Pixels returns a copy of the row-major pixel buffer
func (f *FingerprintImage) Pixels() []byte {
	buf := make([]byte, len(f.pixels))
	copy(buf, f.pixels)
	return buf
}

// Gray returns the image as an *image.Gray backed by a private copy
func (f *FingerprintImage) Gray() *image.Gray {
	return &image.Gray{
		Pix:    f.Pixels(),
		Stride: f.width,
		Rect:   image.Rect(0, 0, f.width, f.height),
	}
}

// Digest identifies the exact pixel content and metadata
func (f *FingerprintImage) Digest() string {
	h := sha256.New()
	var hdr [13]byte
	binary.BigEndian.PutUint32(hdr[0:], uint32(f.width))
	binary.BigEndian.PutUint32(hdr[4:], uint32(f.height))
	binary.BigEndian.PutUint16(hdr[8:], uint16(f.ppi))
	binary.BigEndian.PutUint16(hdr[10:], uint16(f.bitDepth))
	hdr[12] = f.fingerCode
	h.Write(hdr[:])
	h.Write(f.pixels)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateScoringSize checks the dimension bounds required for scoring
func (f *FingerprintImage) ValidateScoringSize() error {
	if f.width <= MinScoringWidth || f.width >= MaxScoringWidth {
		return apperrors.NewInvalidImageError(
			fmt.Sprintf("width %d outside supported range (%d, %d)", f.width, MinScoringWidth, MaxScoringWidth), nil)
	}
	if f.height <= MinScoringHeight || f.height >= MaxScoringHeight {
		return apperrors.NewInvalidImageError(
			fmt.Sprintf("height %d outside supported range (%d, %d)", f.height, MinScoringHeight, MaxScoringHeight), nil)
	}
	return nil
}

// TrimWhiteFrame returns a copy without the near-white border that some scanners add.
// Rows and columns are dropped from each side while their mean exceeds WhiteFrameThreshold.
// The last white line on each side is kept as a one pixel margin.
func (f *FingerprintImage) TrimWhiteFrame() (*FingerprintImage, error) {
	top := -1
	for y := 0; y < f.height; y++ {
		if f.rowMean(y) <= WhiteFrameThreshold {
			top = max(y-1, 0)
			break
		}
	}
	if top < 0 {
		return nil, apperrors.NewInvalidImageError("image contains only white frame", nil)
	}
	bottom := f.height - 1
	for y := f.height - 1; y >= 0; y-- {
		if f.rowMean(y) <= WhiteFrameThreshold {
			bottom = min(y+1, f.height-1)
			break
		}
	}
	left := 0
	for x := 0; x < f.width; x++ {
		if f.colMean(x) <= WhiteFrameThreshold {
			left = max(x-1, 0)
			break
		}
	}
	right := f.width - 1
	for x := f.width - 1; x >= 0; x-- {
		if f.colMean(x) <= WhiteFrameThreshold {
			right = min(x+1, f.width-1)
			break
		}
	}

	w, h := right-left+1, bottom-top+1
	pixels := make([]byte, w*h)
	for y := 0; y < h; y++ {
		src := (top+y)*f.width + left
		copy(pixels[y*w:], f.pixels[src:src+w])
	}
	trimmed, err := newFingerprintImage(pixels, w, h, f.bitDepth, f.ppi, f.fingerCode)
	if err != nil {
		return nil, err
	}
	if err := trimmed.ValidateScoringSize(); err != nil {
		return nil, err
	}
	return trimmed, nil
}

func (f *FingerprintImage) rowMean(y int) float64 {
	sum := 0
	for _, p := range f.pixels[y*f.width : (y+1)*f.width] {
		sum += int(p)
	}
	return float64(sum) / float64(f.width)
}

func (f *FingerprintImage) colMean(x int) float64 {
	sum := 0
	for y := 0; y < f.height; y++ {
		sum += int(f.pixels[y*f.width+x])
	}
	return float64(sum) / float64(f.height)
}
