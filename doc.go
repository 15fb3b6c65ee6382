// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dof builds two-dimensional summed-area tables from rendered
// sRGB color images to drive variable-radius depth-of-field blur through
// constant-time rectangle-sum queries.
//
// The table is the inclusive 2D prefix sum of the gamma-linearized image.
// On the GPU it is built by a work-efficient parallel scan: tile-local
// inclusive scans, a one-level tile-sum reduction, carry propagation, and
// a transpose between the row and column passes. A CPU implementation of
// the identical algorithm is runtime switchable for validation, and the
// engine degrades to the host pipeline when no device is available.
//
// Basic use:
//
//	engine, err := dof.New(dof.Config{})
//	if err != nil { ... }
//	defer engine.Close()
//
//	if err := engine.Resize(w, h); err != nil { ... }
//	if err := engine.Compute(&dof.Frame{Color: img}); err != nil { ... }
//	sum := engine.Table().RectSum(image.Rect(x0, y0, x1, y1))
package dof
