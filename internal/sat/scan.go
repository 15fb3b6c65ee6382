// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// scan.go holds the host ports of the four device kernels. Each function is
// the Go equivalent of one WGSL entry point in internal/gpu/shaders/ and
// follows the same tile decomposition, so host and device produce identical
// tables for identical input.

package sat

// SourceKind selects how the scan kernel interprets its input buffer.
type SourceKind uint32

const (
	// SourceColor reads packed 8-bit sRGB pixels (one uint32 per pixel) and
	// linearizes each channel on load. Loads outside the imgW*imgH extent
	// yield zero.
	SourceColor SourceKind = iota

	// SourceTable reads uint32 accumulator cells as-is.
	SourceTable
)

// ScanTarget selects what the scan kernel scans.
type ScanTarget uint32

const (
	// TargetPrimary scans table cells, one tile of the row per workgroup.
	// The scan restarts at every tile boundary.
	TargetPrimary ScanTarget = iota

	// TargetTileSums scans the per-tile totals of a row: the kernel reads
	// the last cell of each tile and scans the compact array as a single
	// tile. Requires tile count <= tile size (one-level hierarchy).
	TargetTileSums
)

// ScanParams parametrizes one scan dispatch. The same struct drives both
// the primary tile scan and the tile-sum reduction; the two enums mirror
// the kernel's uniform flags.
type ScanParams struct {
	Source SourceKind
	Target ScanTarget

	// TableW, TableH are the padded dimensions of the scanned orientation:
	// cells per row and number of rows.
	TableW, TableH int

	// ImageW, ImageH bound SourceColor loads. Ignored for SourceTable.
	ImageW, ImageH int

	// Tile is the tile width along the scan axis.
	Tile int
}

// tiles returns the number of tiles per row.
func (p ScanParams) tiles() int { return p.TableW / p.Tile }

// TileScan runs the scan kernel over all rows. src is either packed pixels
// (SourceColor) or cell accumulators (SourceTable); dst receives TableW*TableH
// cells for TargetPrimary, or TableH rows of tile-count cells for
// TargetTileSums.
func TileScan(p ScanParams, src, dst []uint32) {
	tileScanRows(p, src, dst, 0, p.TableH)
}

// tileScanRows runs the scan kernel over rows [y0, y1). This is the unit the
// worker pool shards.
func tileScanRows(p ScanParams, src, dst []uint32, y0, y1 int) {
	if p.Target == TargetTileSums {
		tileSumRows(p, src, dst, y0, y1)
		return
	}
	for y := y0; y < y1; y++ {
		for t := 0; t < p.tiles(); t++ {
			var run [4]uint32
			for i := 0; i < p.Tile; i++ {
				x := t*p.Tile + i
				v := p.load(src, x, y)
				run[0] += v[0]
				run[1] += v[1]
				run[2] += v[2]
				run[3] += v[3]
				o := (y*p.TableW + x) * 4
				dst[o+0] = run[0]
				dst[o+1] = run[1]
				dst[o+2] = run[2]
				dst[o+3] = run[3]
			}
		}
	}
}

// tileSumRows scans the per-tile totals of rows [y0, y1). One "tile" spans
// every tile of the row, matching the single-workgroup reduction dispatch.
func tileSumRows(p ScanParams, src, sums []uint32, y0, y1 int) {
	tiles := p.tiles()
	for y := y0; y < y1; y++ {
		var run [4]uint32
		for t := 0; t < tiles; t++ {
			last := (y*p.TableW + (t+1)*p.Tile - 1) * 4
			run[0] += src[last+0]
			run[1] += src[last+1]
			run[2] += src[last+2]
			run[3] += src[last+3]
			o := (y*tiles + t) * 4
			sums[o+0] = run[0]
			sums[o+1] = run[1]
			sums[o+2] = run[2]
			sums[o+3] = run[3]
		}
	}
}

// load fetches one cell according to the source kind.
func (p ScanParams) load(src []uint32, x, y int) [4]uint32 {
	if p.Source == SourceColor {
		if x >= p.ImageW || y >= p.ImageH {
			return [4]uint32{}
		}
		return linearizePixel(src[y*p.ImageW+x])
	}
	o := (y*p.TableW + x) * 4
	return [4]uint32{src[o], src[o+1], src[o+2], src[o+3]}
}

// CarryAdd adds each row's inclusive preceding-tile total to every cell:
// cells of tile t receive sums[t-1], tile 0 is untouched. After CarryAdd the
// tile-local scans form a full-row inclusive scan.
func CarryAdd(tableW, tableH, tile int, sums, table []uint32) {
	carryAddRows(tableW, tile, sums, table, 0, tableH)
}

func carryAddRows(tableW, tile int, sums, table []uint32, y0, y1 int) {
	tiles := tableW / tile
	for y := y0; y < y1; y++ {
		for t := 1; t < tiles; t++ {
			c := (y*tiles + t - 1) * 4
			c0, c1, c2, c3 := sums[c], sums[c+1], sums[c+2], sums[c+3]
			for i := 0; i < tile; i++ {
				o := (y*tableW + t*tile + i) * 4
				table[o+0] += c0
				table[o+1] += c1
				table[o+2] += c2
				table[o+3] += c3
			}
		}
	}
}

// Transpose writes the srcW*srcH cell grid into dst transposed (srcH*srcW).
// src and dst must be distinct slices; the device kernel likewise never
// transposes in place.
func Transpose(srcW, srcH int, src, dst []uint32) {
	transposeRows(srcW, srcH, src, dst, 0, srcH)
}

func transposeRows(srcW, srcH int, src, dst []uint32, y0, y1 int) {
	for y := y0; y < y1; y++ {
		for x := 0; x < srcW; x++ {
			s := (y*srcW + x) * 4
			d := (x*srcH + y) * 4
			dst[d+0] = src[s+0]
			dst[d+1] = src[s+1]
			dst[d+2] = src[s+2]
			dst[d+3] = src[s+3]
		}
	}
}
