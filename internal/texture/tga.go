package texture

import (
	"errors"
	"fmt"
	"image"
)

// TGA image types handled by DecodeTGA.
const (
	tgaUncompressed = 2
	tgaRLE          = 10
)

var errTGATruncated = errors.New("TGA data truncated")

// DecodeTGA decodes uncompressed (type 2) and RLE (type 10) true-color TGA
// images at 24 or 32 bits per pixel.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < 18 {
		return nil, errTGATruncated
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	topToBottom := data[17]&0x20 != 0

	if colorMapType != 0 {
		return nil, errors.New("color-mapped TGA not supported")
	}
	if imageType != tgaUncompressed && imageType != tgaRLE {
		return nil, fmt.Errorf("unsupported TGA type %d", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("unsupported TGA bit depth %d", bpp)
	}
	if width == 0 || height == 0 {
		return nil, errors.New("TGA has zero size")
	}
	if 18+idLength > len(data) {
		return nil, errTGATruncated
	}

	px := &tgaPixels{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		src:         data[18+idLength:],
		bpp:         bpp / 8,
		topToBottom: topToBottom,
	}
	if imageType == tgaUncompressed {
		if len(px.src) < width*height*px.bpp {
			return nil, errTGATruncated
		}
		for i := 0; i < width*height; i++ {
			px.put(i, px.pixel())
		}
		return px.img, nil
	}
	if err := px.decodeRLE(); err != nil {
		return nil, err
	}
	return px.img, nil
}

// tgaPixels walks BGR(A) source pixels into an RGBA image.
type tgaPixels struct {
	img         *image.RGBA
	src         []byte
	pos         int
	bpp         int
	topToBottom bool
}

func (p *tgaPixels) pixel() [4]uint8 {
	s := p.src[p.pos:]
	c := [4]uint8{s[2], s[1], s[0], 255}
	if p.bpp == 4 {
		c[3] = s[3]
	}
	p.pos += p.bpp
	return c
}

func (p *tgaPixels) put(i int, c [4]uint8) {
	w := p.img.Rect.Dx()
	x, y := i%w, i/w
	if !p.topToBottom {
		y = p.img.Rect.Dy() - 1 - y
	}
	copy(p.img.Pix[p.img.PixOffset(x, y):], c[:])
}

func (p *tgaPixels) decodeRLE() error {
	total := p.img.Rect.Dx() * p.img.Rect.Dy()
	for i := 0; i < total; {
		if p.pos >= len(p.src) {
			return errTGATruncated
		}
		header := p.src[p.pos]
		p.pos++
		count := int(header&0x7f) + 1
		if header&0x80 != 0 {
			if p.pos+p.bpp > len(p.src) {
				return errTGATruncated
			}
			c := p.pixel()
			for ; count > 0 && i < total; count-- {
				p.put(i, c)
				i++
			}
			continue
		}
		for ; count > 0 && i < total; count-- {
			if p.pos+p.bpp > len(p.src) {
				return errTGATruncated
			}
			p.put(i, p.pixel())
			i++
		}
	}
	return nil
}
