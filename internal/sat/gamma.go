// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package sat implements the summed-area-table core: gamma linearization,
// the serial reference scan, and host ports of the tiled device kernels.
// Every device kernel has an equivalent Go port so the parallel
// decomposition is testable without a GPU.
package sat

import "math"

// linearLUT maps an 8-bit sRGB channel to its linearized accumulator value,
// pow(c/255, 2.2)*255 truncated toward zero. The table keeps the host paths
// bit-identical to each other; the device kernel evaluates the same
// expression in f32.
var linearLUT [256]uint32

func init() {
	for i := range linearLUT {
		linearLUT[i] = uint32(math.Pow(float64(i)/255.0, 2.2) * 255.0)
	}
}

// Linearize converts one 8-bit sRGB channel to its linear accumulator value.
func Linearize(c uint8) uint32 {
	return linearLUT[c]
}

// linearizePixel expands a packed RGBA pixel (R in the low byte) into four
// linearized channel accumulators.
func linearizePixel(px uint32) [4]uint32 {
	return [4]uint32{
		linearLUT[px&0xff],
		linearLUT[(px>>8)&0xff],
		linearLUT[(px>>16)&0xff],
		linearLUT[(px>>24)&0xff],
	}
}
