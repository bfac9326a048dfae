// Package texture decodes model textures and prepares them for upload.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Decode decodes image data. The format is sniffed from the content and
// anything unrecognised is tried as TGA, which carries no signature.
// name is only used in error messages.
func Decode(data []byte, name string) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode %s: empty data", name)
	}

	if filetype.IsImage(data) {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return img, nil
	}

	img, err := DecodeTGA(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// Options controls Prepare.
type Options struct {
	// MagentaKey makes RGB(255,0,255) pixels fully transparent.
	MagentaKey bool
	// FlipY mirrors the image vertically.
	FlipY bool
}

// Prepare converts img to RGBA and applies the requested fixups.
func Prepare(img image.Image, opts Options) *image.RGBA {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	if opts.MagentaKey {
		ApplyMagentaKey(rgba)
	}
	if opts.FlipY {
		FlipVertical(rgba)
	}
	return rgba
}

// IsMagentaKey reports whether a color is the RO transparency key.
// The tolerance absorbs BMP decoding variations.
func IsMagentaKey(r, g, b uint8) bool {
	return r >= 250 && g <= 10 && b >= 250
}

// ApplyMagentaKey makes magenta pixels transparent black in place.
// RGB is zeroed too so filtering does not bleed pink into edges.
func ApplyMagentaKey(img *image.RGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		if IsMagentaKey(img.Pix[i], img.Pix[i+1], img.Pix[i+2]) {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
		}
	}
}

// FlipVertical mirrors img top to bottom in place.
func FlipVertical(img *image.RGBA) {
	h := img.Rect.Dy()
	row := make([]byte, img.Stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*img.Stride : (y+1)*img.Stride]
		bottom := img.Pix[(h-1-y)*img.Stride : (h-y)*img.Stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}
