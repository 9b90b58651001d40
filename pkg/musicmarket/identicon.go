package musicmarket

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"

	"github.com/nfnt/resize"
)

// DefaultIdenticonSize is the edge length in pixels of rendered identicons
const DefaultIdenticonSize = 330

const identiconMargin = 0.08

var identiconBackground = color.RGBA{R: 240, G: 240, B: 240, A: 255}

// IdenticonDataURI renders a 5x5 mirrored identicon for seed and returns it as a PNG data URI.
// The same seed always yields the same image.
func IdenticonDataURI(seed string, size int) (string, error) {
	if size <= 0 {
		size = DefaultIdenticonSize
	}

	sum := md5.Sum([]byte(seed))
	hash := hex.EncodeToString(sum[:])

	grid := identiconGrid(hash)
	margin := int(math.Floor(float64(size) * identiconMargin))
	inner := size - 2*margin

	scaled := resize.Resize(uint(inner), uint(inner), grid, resize.NearestNeighbor)

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: identiconBackground}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(margin, margin, margin+inner, margin+inner), scaled, scaled.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return "", fmt.Errorf("failed to encode identicon: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// identiconGrid draws the 5x5 cell pattern at one pixel per cell.
// Hex digits 0-14 of the hash decide the cells: the first five the centre column,
// the next five columns 1 and 3, the last five columns 0 and 4.
func identiconGrid(hash string) *image.RGBA {
	fg := identiconForeground(hash)
	img := image.NewRGBA(image.Rect(0, 0, 5, 5))

	for i := 0; i < 15; i++ {
		c := fg
		if v, _ := strconv.ParseUint(hash[i:i+1], 16, 8); v%2 == 1 {
			c = identiconBackground
		}
		switch {
		case i < 5:
			img.Set(2, i, c)
		case i < 10:
			img.Set(1, i-5, c)
			img.Set(3, i-5, c)
		default:
			img.Set(0, i-10, c)
			img.Set(4, i-10, c)
		}
	}
	return img
}

// identiconForeground derives the hue from the last seven hex digits of the hash
func identiconForeground(hash string) color.RGBA {
	v, _ := strconv.ParseUint(hash[len(hash)-7:], 16, 32)
	hue := float64(v) / float64(0xfffffff)
	return hslToRGB(hue, 0.7, 0.5)
}

func hslToRGB(h, s, l float64) color.RGBA {
	var r, g, b float64
	if s == 0 {
		r, g, b = l, l, l
	} else {
		q := l * (1 + s)
		if l >= 0.5 {
			q = l + s - l*s
		}
		p := 2*l - q
		r = hueToRGB(p, q, h+1.0/3)
		g = hueToRGB(p, q, h)
		b = hueToRGB(p, q, h-1.0/3)
	}
	return color.RGBA{R: uint8(math.Round(r * 255)), G: uint8(math.Round(g * 255)), B: uint8(math.Round(b * 255)), A: 255}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}
