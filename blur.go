// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import (
	"image"
	"math"
)

// BlurParams configures BoxBlur.
type BlurParams struct {
	// FocusDepth is the distance of the focal plane. Pixels at this depth
	// stay sharp; the blur radius grows with distance from it.
	FocusDepth float32

	// RadiusScale converts depth distance to blur half-width in pixels.
	RadiusScale float32

	// MaxRadius clamps the per-pixel half-width.
	MaxRadius int

	// Disabled forces a zero radius everywhere, passing the image through
	// with only the gamma round trip applied.
	Disabled bool
}

// BlurParams returns blur parameters derived from the engine config.
func (e *Engine) BlurParams() BlurParams {
	return BlurParams{
		FocusDepth:  e.cfg.FocusDepth,
		RadiusScale: 1,
		MaxRadius:   e.cfg.MaxRadius,
	}
}

// BoxBlur writes a depth-of-field blurred rendition of the table's source
// image into dst. For each pixel the half-width r derives from the depth
// distance to the focal plane, the linear color is the box average of the
// (2r+1)^2 window via one RectSum per pixel, and the result is re-encoded
// to sRGB. Windows are clipped at the image edge and averaged over the
// covered area only.
//
// depth is row-major with one value per pixel; nil applies MaxRadius
// uniformly. dst bounds must match the table's image extent.
//
// This is the reference consumer of the table. A production renderer
// performs the same lookup in a fragment shader; the arithmetic here is
// the contract it follows.
func BoxBlur(dst *image.RGBA, t *Table, depth []float32, p BlurParams) {
	w, h := t.ImageW, t.ImageH
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := p.MaxRadius
			if p.Disabled {
				r = 0
			} else if depth != nil {
				d := depth[y*w+x] - p.FocusDepth
				if d < 0 {
					d = -d
				}
				r = int(d * p.RadiusScale)
				if r > p.MaxRadius {
					r = p.MaxRadius
				}
			}

			rect := image.Rect(x-r, y-r, x+r+1, y+r+1)
			clipped := rect.Intersect(image.Rect(0, 0, w, h))
			area := uint32(clipped.Dx() * clipped.Dy())
			sum := t.RectSum(rect)

			o := dst.PixOffset(x, y)
			dst.Pix[o+0] = encodeSRGB(sum[0], area)
			dst.Pix[o+1] = encodeSRGB(sum[1], area)
			dst.Pix[o+2] = encodeSRGB(sum[2], area)
			dst.Pix[o+3] = encodeSRGB(sum[3], area)
		}
	}
}

// encodeSRGB averages a linear channel sum over the window area and
// re-encodes it to 8-bit sRGB, the inverse of the pow(c, 2.2) applied when
// the table was built.
func encodeSRGB(sum, area uint32) uint8 {
	if area == 0 {
		return 0
	}
	lin := float64(sum) / float64(area)
	v := math.Pow(lin/255.0, 1.0/2.2) * 255.0
	if v > 255 {
		v = 255
	}
	return uint8(v)
}
