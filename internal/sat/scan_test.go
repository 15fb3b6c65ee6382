// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package sat

import (
	"math/rand"
	"testing"
)

// seedRow writes v into every channel of cell x of a single-row table.
func seedRow(table []uint32, x int, v uint32) {
	for ch := 0; ch < 4; ch++ {
		table[x*4+ch] = v
	}
}

// rowValues extracts channel 0 of a single-row table.
func rowValues(table []uint32, n int) []uint32 {
	out := make([]uint32, n)
	for x := range out {
		out[x] = table[x*4]
	}
	return out
}

func equalU32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestTileScanRestartsAtBoundary feeds one 8-cell row with values 1..8
// through the tiled sequence with tile size 4 and checks each stage:
// the tile-local scan restarts at the boundary, the tile-sum scan reduces
// the row to its running tile totals, and the carry pass completes the
// serial inclusive scan.
func TestTileScanRestartsAtBoundary(t *testing.T) {
	const w, tile = 8, 4
	src := make([]uint32, w*4)
	for x := 0; x < w; x++ {
		seedRow(src, x, uint32(x+1))
	}

	p := ScanParams{
		Source: SourceTable, Target: TargetPrimary,
		TableW: w, TableH: 1, Tile: tile,
	}

	scanned := make([]uint32, w*4)
	TileScan(p, src, scanned)
	want := []uint32{1, 3, 6, 10, 5, 11, 18, 26}
	if got := rowValues(scanned, w); !equalU32(got, want) {
		t.Fatalf("tile scan = %v, want %v", got, want)
	}

	reduce := p
	reduce.Target = TargetTileSums
	sums := make([]uint32, (w/tile)*4)
	TileScan(reduce, scanned, sums)
	wantSums := []uint32{10, 36}
	if got := rowValues(sums, w/tile); !equalU32(got, wantSums) {
		t.Fatalf("tile-sum scan = %v, want %v", got, wantSums)
	}

	CarryAdd(w, 1, tile, sums, scanned)
	wantFull := []uint32{1, 3, 6, 10, 15, 21, 28, 36}
	if got := rowValues(scanned, w); !equalU32(got, wantFull) {
		t.Fatalf("after carry = %v, want %v", got, wantFull)
	}
}

func TestTileScanColorSource(t *testing.T) {
	// A 3-pixel image in an 8-wide padded row: loads beyond the extent
	// are zero, so the scan plateaus after the last covered cell.
	const w, tile, imgW = 8, 4, 3
	pixels := make([]uint32, imgW)
	for x := range pixels {
		pixels[x] = gray(50)
	}

	p := ScanParams{
		Source: SourceColor, Target: TargetPrimary,
		TableW: w, TableH: 1,
		ImageW: imgW, ImageH: 1,
		Tile: tile,
	}
	dst := make([]uint32, w*4)
	TileScan(p, pixels, dst)

	lin := Linearize(50)
	got := rowValues(dst, w)
	// Second tile restarts at zero: nothing of the image reaches it.
	want := []uint32{lin, 2 * lin, 3 * lin, 3 * lin, 0, 0, 0, 0}
	if !equalU32(got, want) {
		t.Fatalf("color scan = %v, want %v", got, want)
	}
}

func TestCarryAddLeavesFirstTileUntouched(t *testing.T) {
	const w, tile, rows = 8, 4, 3
	table := make([]uint32, w*rows*4)
	for i := range table {
		table[i] = 1
	}
	sums := make([]uint32, (w/tile)*rows*4)
	for i := range sums {
		sums[i] = 100
	}

	CarryAdd(w, rows, tile, sums, table)
	for y := 0; y < rows; y++ {
		for x := 0; x < w; x++ {
			want := uint32(1)
			if x >= tile {
				want = 101
			}
			if got := cell(table, w, x, y); got[0] != want {
				t.Fatalf("cell(%d,%d) = %d, want %d", x, y, got[0], want)
			}
		}
	}
}

func TestTransposeInvolution(t *testing.T) {
	const w, h = 16, 48
	rng := rand.New(rand.NewSource(7))

	src := make([]uint32, w*h*4)
	for i := range src {
		src[i] = rng.Uint32()
	}

	flipped := make([]uint32, w*h*4)
	back := make([]uint32, w*h*4)
	Transpose(w, h, src, flipped)
	Transpose(h, w, flipped, back)

	if !equalU32(src, back) {
		t.Fatal("transpose applied twice does not restore the source")
	}

	// Spot-check the orientation of the single transpose.
	for i := 0; i < 32; i++ {
		x, y := rng.Intn(w), rng.Intn(h)
		if got, want := cell(flipped, h, y, x), cell(src, w, x, y); got != want {
			t.Fatalf("flipped(%d,%d) = %v, want src(%d,%d) = %v", y, x, got, x, y, want)
		}
	}
}
