// Package frame holds raw RGBA8888 pixel buffers as produced by a frame
// source and converts them into tightly packed images.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"
)

// BytesPerPixel is the only pixel stride accepted: RGBA, 8 bits per channel.
const BytesPerPixel = 4

var (
	ErrEmpty          = errors.New("frame: zero width or height")
	ErrBadPixelStride = errors.New("frame: pixel stride must be 4 (RGBA8888)")
	ErrBadStride      = errors.New("frame: row stride smaller than width")
	ErrShortBuffer    = errors.New("frame: buffer shorter than declared geometry")
)

// Frame is one rectangular pixel buffer. Rows start RowStride bytes apart;
// RowStride may exceed Width*PixelStride, the excess being row padding.
type Frame struct {
	Pix         []byte
	Width       int
	Height      int
	RowStride   int
	PixelStride int
	Timestamp   time.Time

	closeOnce sync.Once
	release   func()
}

// New wraps pix as an RGBA frame. release, if non-nil, runs once on Close.
func New(pix []byte, width, height, rowStride int, release func()) *Frame {
	return &Frame{
		Pix:         pix,
		Width:       width,
		Height:      height,
		RowStride:   rowStride,
		PixelStride: BytesPerPixel,
		Timestamp:   time.Now(),
		release:     release,
	}
}

// FromImage wraps img as a frame. An *image.RGBA anchored at the origin is
// used in place, keeping its stride; anything else is converted.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return New(rgba.Pix, b.Dx(), b.Dy(), rgba.Stride, nil)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return New(rgba.Pix, b.Dx(), b.Dy(), rgba.Stride, nil)
}

// Close hands the buffer back to its source. Safe to call more than once;
// the buffer must not be used afterwards.
func (f *Frame) Close() {
	f.closeOnce.Do(func() {
		if f.release != nil {
			f.release()
		}
		f.Pix = nil
	})
}

// Validate checks the declared geometry against the buffer. The last row
// only needs Width pixels; some producers omit its trailing padding.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return ErrEmpty
	}
	if f.PixelStride != BytesPerPixel {
		return fmt.Errorf("%w: got %d", ErrBadPixelStride, f.PixelStride)
	}
	if f.RowStride < f.Width*f.PixelStride {
		return fmt.Errorf("%w: stride %d, width %d", ErrBadStride, f.RowStride, f.Width)
	}
	need := (f.Height-1)*f.RowStride + f.Width*f.PixelStride
	if len(f.Pix) < need {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(f.Pix), need)
	}
	return nil
}

// PaddingPixels is the number of whole pixels of padding at the end of each row.
func PaddingPixels(rowStride, pixelStride, width int) int {
	if pixelStride <= 0 {
		return 0
	}
	return (rowStride - pixelStride*width) / pixelStride
}

// StripPadding returns a new width*height*4 buffer with row padding removed.
// Pixel (x, y) of the result equals pixel (x, y) of the frame.
func StripPadding(f *Frame) ([]byte, error) {
	img, err := ToRGBA(f)
	if err != nil {
		return nil, err
	}
	return img.Pix, nil
}

// ToRGBA converts the frame into an image of exactly Width x Height. The
// frame is first viewed as a (Width+padding) wide image, which is then
// cropped. The result owns its pixels, so the frame may be closed right after.
func ToRGBA(f *Frame) (*image.RGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	pad := PaddingPixels(f.RowStride, f.PixelStride, f.Width)
	padded := &image.RGBA{
		Pix:    f.Pix,
		Stride: f.RowStride,
		Rect:   image.Rect(0, 0, f.Width+pad, f.Height),
	}
	out := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	draw.Draw(out, out.Bounds(), padded, image.Point{}, draw.Src)
	return out, nil
}

// IsBlank reports whether every pixel of img equals its first pixel.
func IsBlank(img *image.RGBA) bool {
	b := img.Bounds()
	if b.Empty() {
		return true
	}
	first := img.PixOffset(b.Min.X, b.Min.Y)
	ref := img.Pix[first : first+BytesPerPixel]
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X-1, y)+BytesPerPixel]
		for i := 0; i < len(row); i += BytesPerPixel {
			if row[i] != ref[0] || row[i+1] != ref[1] || row[i+2] != ref[2] || row[i+3] != ref[3] {
				return false
			}
		}
	}
	return true
}
