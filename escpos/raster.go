package escpos

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/makeworld-the-better-one/dither/v2"
	"golang.org/x/image/draw"
)

// maxRasterRows bounds a single raster block so the printer never has to
// buffer a whole large image at once.
const maxRasterRows = 256

// rasterGamma lightens midtones before dithering; thermal heads print them
// darker than a screen shows them.
const rasterGamma = 0.5

// rasterImage is a 1-bit image packed MSB-first, one set bit per black dot.
type rasterImage struct {
	data   []byte
	width  int // dots
	height int // rows
	stride int // bytes per row
}

// rows returns the packed data of n rows starting at row start.
func (r *rasterImage) rows(start, n int) []byte {
	return r.data[start*r.stride : (start+n)*r.stride]
}

// rasterize scales img down to at most dotWidth dots, converts it to
// gamma-corrected grayscale and dithers it to black and white.
func rasterize(img image.Image, dotWidth int) (*rasterImage, error) {
	bounds := img.Bounds()
	if bounds.Dx() < 1 || bounds.Dy() < 1 {
		return nil, fmt.Errorf("escpos: empty image %v", bounds)
	}

	width := bounds.Dx()
	if width > dotWidth {
		width = dotWidth
	}
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	gray := image.NewGray16(scaled.Bounds())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(scaled.At(x, y)).(color.Gray16)
			v := math.Pow(float64(g.Y)/0xFFFF, rasterGamma)
			gray.SetGray16(x, y, color.Gray16{Y: uint16(v * 0xFFFF)})
		}
	}

	ditherer := dither.NewDitherer([]color.Color{color.Black, color.White})
	ditherer.Matrix = dither.FloydSteinberg
	ditherer.Serpentine = true
	paletted := ditherer.DitherPaletted(gray)

	return pack(paletted), nil
}

// pack turns a two-color paletted image into MSB-first rows, high bit printed
// first. Trailing bits of a partial last byte stay zero (white).
func pack(img *image.Paletted) *rasterImage {
	width := img.Rect.Dx()
	height := img.Rect.Dy()
	stride := (width + 7) / 8

	// Map palette indexes to dot values so black prints regardless of
	// palette order.
	var dot [2]byte
	if img.Palette.Index(color.White) == 0 {
		dot = [2]byte{0, 1}
	} else {
		dot = [2]byte{1, 0}
	}

	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if dot[img.ColorIndexAt(img.Rect.Min.X+x, img.Rect.Min.Y+y)] == 1 {
				data[y*stride+x/8] |= 1 << (7 - x%8)
			}
		}
	}

	return &rasterImage{
		data:   data,
		width:  width,
		height: height,
		stride: stride,
	}
}
