// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import "image"

// Table is the host-side finished summed-area table. Each cell holds four
// uint32 channel accumulators: the inclusive sum of the gamma-linearized
// image over the rectangle from the origin to that cell. Cells in the
// padding band beyond the true image extent repeat the edge sums and are
// never sampled by RectSum.
//
// Accumulators use modular uint32 arithmetic; a channel can wrap on images
// whose total linearized sum exceeds 2^32-1, in which case rectangle sums
// remain correct as long as the queried rectangle's own sum fits in 32 bits.
type Table struct {
	// Pix holds W*H cells of 4 uint32 each, row-major.
	Pix []uint32

	// W, H are the padded table dimensions.
	W, H int

	// ImageW, ImageH are the true image extent covered by the table.
	ImageW, ImageH int
}

// NewTable allocates a zero table with the given padded and true extents.
func NewTable(w, h, imageW, imageH int) *Table {
	return &Table{
		Pix:    make([]uint32, w*h*4),
		W:      w,
		H:      h,
		ImageW: imageW,
		ImageH: imageH,
	}
}

// At returns the cell at (x, y). Coordinates outside the padded table, or
// negative, read as zero; (x, -1) and (-1, y) are valid corner terms of the
// rectangle-sum formula.
func (t *Table) At(x, y int) [4]uint32 {
	if x < 0 || y < 0 || x >= t.W || y >= t.H {
		return [4]uint32{}
	}
	i := (y*t.W + x) * 4
	return [4]uint32{t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3]}
}

// RectSum returns the per-channel sum of the linearized image over r,
// using the four-term inclusive formula
//
//	T(x1, y1) - T(x0-1, y1) - T(x1, y0-1) + T(x0-1, y0-1)
//
// where [x0, x1] x [y0, y1] is r intersected with the true image extent
// (r follows the image.Rectangle convention: Min inclusive, Max exclusive).
// An empty intersection sums to zero.
func (t *Table) RectSum(r image.Rectangle) [4]uint32 {
	r = r.Intersect(image.Rect(0, 0, t.ImageW, t.ImageH))
	if r.Empty() {
		return [4]uint32{}
	}

	x0, y0 := r.Min.X, r.Min.Y
	x1, y1 := r.Max.X-1, r.Max.Y-1

	a := t.At(x1, y1)
	b := t.At(x0-1, y1)
	c := t.At(x1, y0-1)
	d := t.At(x0-1, y0-1)

	var sum [4]uint32
	for i := range sum {
		sum[i] = a[i] - b[i] - c[i] + d[i]
	}
	return sum
}

// Transpose returns a new table with rows and columns swapped. The source
// is left untouched; transposition is never in place.
func (t *Table) Transpose() *Table {
	out := NewTable(t.H, t.W, t.ImageH, t.ImageW)
	for y := 0; y < t.H; y++ {
		for x := 0; x < t.W; x++ {
			s := (y*t.W + x) * 4
			d := (x*t.H + y) * 4
			copy(out.Pix[d:d+4], t.Pix[s:s+4])
		}
	}
	return out
}
