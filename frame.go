// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import (
	"image"

	"golang.org/x/image/draw"
)

// Frame carries the per-frame input of Engine.Compute: the resolved
// single-sampled color image and, optionally, per-pixel view-space depth.
type Frame struct {
	// Color is the rendered sRGB image. Its bounds must match the extent
	// passed to the last Resize.
	Color *image.RGBA

	// Depth holds row-major view-space depth, one value per pixel, or nil
	// when no depth is available. Consumed by BoxBlur, not by the table
	// build itself.
	Depth []float32
}

// ImageSource supplies frames from an external renderer. The engine never
// rasterizes; it consumes whatever the collaborator resolved for display.
type ImageSource interface {
	// ResolveColor returns the current frame's color image. Multisampled
	// sources resolve to a single-sampled image before returning.
	ResolveColor() *image.RGBA

	// ResolveDepth returns the current frame's depth, or nil.
	ResolveDepth() []float32
}

// CaptureFrame builds a Frame from an ImageSource.
func CaptureFrame(src ImageSource) *Frame {
	return &Frame{
		Color: src.ResolveColor(),
		Depth: src.ResolveDepth(),
	}
}

// ScaleInto scales src over the full bounds of dst. Used when the rendered
// backbuffer and the presented surface differ in size; the table is always
// built at backbuffer resolution and scaling happens on the consumer side.
func ScaleInto(dst *image.RGBA, src image.Image) {
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
}
