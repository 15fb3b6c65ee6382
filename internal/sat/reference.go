// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sat

// Reference computes the summed-area table serially: one inclusive prefix
// sum along each row, then one down each column. It is the ground truth the
// tiled pipeline (host and device) is validated against, and it backs the
// engine's CPU path.
//
// pixels holds packed RGBA pixels (R in the low byte), row-major, imgW*imgH
// entries. dst holds padW*padH cells of 4 uint32 channel accumulators each;
// cells outside the imgW*imgH extent receive the padding value (zero input,
// so they repeat the last covered cell's sums along rows and columns that
// still intersect the image, and stay zero beyond it).
func Reference(pixels []uint32, imgW, imgH, padW, padH int, dst []uint32) {
	// Row pass: inclusive scan of linearized pixels, zero outside the image.
	for y := 0; y < padH; y++ {
		var run [4]uint32
		row := y * padW * 4
		for x := 0; x < padW; x++ {
			if x < imgW && y < imgH {
				v := linearizePixel(pixels[y*imgW+x])
				run[0] += v[0]
				run[1] += v[1]
				run[2] += v[2]
				run[3] += v[3]
			}
			i := row + x*4
			dst[i+0] = run[0]
			dst[i+1] = run[1]
			dst[i+2] = run[2]
			dst[i+3] = run[3]
		}
	}

	// Column pass: add the finished row above.
	for y := 1; y < padH; y++ {
		row := y * padW * 4
		above := (y - 1) * padW * 4
		for x := 0; x < padW*4; x++ {
			dst[row+x] += dst[above+x]
		}
	}
}
