// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sat

import (
	"errors"
	"fmt"

	"github.com/gogpu/dof/internal/parallel"
)

// ErrTileConfig reports a tile configuration the one-level scan hierarchy
// cannot cover: the per-row tile count must not exceed the tile size,
// because the tile-sum reduction scans all tile totals in a single tile.
var ErrTileConfig = errors.New("sat: padded dimension / tile size exceeds tile size")

// CheckTiling validates the one-level hierarchy bound for both axes of a
// padded table.
func CheckTiling(padW, padH, tile int) error {
	if padW/tile > tile {
		return fmt.Errorf("%w (width %d, tile %d)", ErrTileConfig, padW, tile)
	}
	if padH/tile > tile {
		return fmt.Errorf("%w (height %d, tile %d)", ErrTileConfig, padH, tile)
	}
	return nil
}

// PadDim rounds a dimension up to the next multiple of the tile size.
func PadDim(dim, tile int) int {
	return (dim + tile - 1) &^ (tile - 1)
}

// Pipeline runs the tiled scan sequence on the host, stage for stage the
// same as the device dispatcher: row scan, row tile-sum reduction, row
// carry, transpose, then the column equivalents, then the transpose back.
// Rows of each stage run concurrently on the worker pool; stages are
// separated by ExecuteAll completion, the host counterpart of the device's
// compute-pass boundaries.
type Pipeline struct {
	pool *parallel.WorkerPool
	tile int

	imgW, imgH int
	padW, padH int

	// work is the row-major working table; alt is its transposed double.
	// The transpose stages ping-pong between them, never in place.
	work []uint32
	alt  []uint32

	// rowSums and colSums hold per-row tile totals for the carry stages.
	rowSums []uint32
	colSums []uint32
}

// NewPipeline creates a host pipeline executing on the given pool.
func NewPipeline(pool *parallel.WorkerPool, tile int) *Pipeline {
	return &Pipeline{pool: pool, tile: tile}
}

// Resize reallocates the working tables for a new image extent. The padded
// dimensions round each extent up to the tile size. Returns ErrTileConfig
// when the one-level hierarchy bound does not hold; that error is fatal for
// the given configuration and no later Compute can recover from it.
func (p *Pipeline) Resize(imgW, imgH int) error {
	padW := PadDim(imgW, p.tile)
	padH := PadDim(imgH, p.tile)
	if err := CheckTiling(padW, padH, p.tile); err != nil {
		return err
	}

	p.imgW, p.imgH = imgW, imgH
	p.padW, p.padH = padW, padH

	cells := padW * padH * 4
	p.work = make([]uint32, cells)
	p.alt = make([]uint32, cells)
	p.rowSums = make([]uint32, padH*(padW/p.tile)*4)
	p.colSums = make([]uint32, padW*(padH/p.tile)*4)
	return nil
}

// PaddedWidth returns the padded table width after Resize.
func (p *Pipeline) PaddedWidth() int { return p.padW }

// PaddedHeight returns the padded table height after Resize.
func (p *Pipeline) PaddedHeight() int { return p.padH }

// Compute builds the summed-area table for one frame. pixels holds packed
// RGBA pixels (imgW*imgH), dst receives the finished padW*padH cell grid.
func (p *Pipeline) Compute(pixels []uint32, dst []uint32) error {
	if p.padW == 0 || p.padH == 0 {
		return errors.New("sat: pipeline not resized")
	}
	if len(dst) < p.padW*p.padH*4 {
		return fmt.Errorf("sat: dst holds %d words, need %d", len(dst), p.padW*p.padH*4)
	}

	// Row axis over the raw image.
	rowScan := ScanParams{
		Source: SourceColor, Target: TargetPrimary,
		TableW: p.padW, TableH: p.padH,
		ImageW: p.imgW, ImageH: p.imgH,
		Tile: p.tile,
	}
	p.forEachRowRange(p.padH, func(y0, y1 int) {
		tileScanRows(rowScan, pixels, p.work, y0, y1)
	})

	rowReduce := rowScan
	rowReduce.Source = SourceTable
	rowReduce.Target = TargetTileSums
	p.forEachRowRange(p.padH, func(y0, y1 int) {
		tileScanRows(rowReduce, p.work, p.rowSums, y0, y1)
	})

	p.forEachRowRange(p.padH, func(y0, y1 int) {
		carryAddRows(p.padW, p.tile, p.rowSums, p.work, y0, y1)
	})

	p.forEachRowRange(p.padH, func(y0, y1 int) {
		transposeRows(p.padW, p.padH, p.work, p.alt, y0, y1)
	})

	// Column axis: the transposed table is scanned with swapped dimensions.
	colScan := ScanParams{
		Source: SourceTable, Target: TargetPrimary,
		TableW: p.padH, TableH: p.padW,
		Tile: p.tile,
	}
	p.forEachRowRange(p.padW, func(y0, y1 int) {
		tileScanRows(colScan, p.alt, p.work, y0, y1)
	})

	colReduce := colScan
	colReduce.Target = TargetTileSums
	p.forEachRowRange(p.padW, func(y0, y1 int) {
		tileScanRows(colReduce, p.work, p.colSums, y0, y1)
	})

	p.forEachRowRange(p.padW, func(y0, y1 int) {
		carryAddRows(p.padH, p.tile, p.colSums, p.work, y0, y1)
	})

	p.forEachRowRange(p.padW, func(y0, y1 int) {
		transposeRows(p.padH, p.padW, p.work, dst, y0, y1)
	})

	return nil
}

// forEachRowRange shards [0, rows) across the pool, one contiguous range
// per worker, and waits for the stage to finish.
func (p *Pipeline) forEachRowRange(rows int, fn func(y0, y1 int)) {
	workers := 1
	if p.pool != nil {
		workers = p.pool.Workers()
	}
	if workers > rows {
		workers = rows
	}
	if workers <= 1 {
		fn(0, rows)
		return
	}

	chunk := (rows + workers - 1) / workers
	work := make([]func(), 0, workers)
	for y0 := 0; y0 < rows; y0 += chunk {
		y1 := y0 + chunk
		if y1 > rows {
			y1 = rows
		}
		lo, hi := y0, y1
		work = append(work, func() { fn(lo, hi) })
	}
	p.pool.ExecuteAll(work)
}
