// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/gogpu/dof/internal/sat"
)

// acquireAccelerator brings up a standalone device or skips the test.
func acquireAccelerator(t *testing.T, tile int) *Accelerator {
	t.Helper()
	a := NewAccelerator(tile)
	if err := a.Init(); err != nil {
		t.Skipf("no GPU available: %v", err)
	}
	if !a.Ready() {
		a.Close()
		t.Skip("GPU device present but compute pipeline unavailable")
	}
	t.Cleanup(a.Close)
	return a
}

func TestDeviceComputeMatchesReference(t *testing.T) {
	const tile = 32
	a := acquireAccelerator(t, tile)
	d := a.Dispatcher()

	tests := []struct {
		name string
		w, h int
	}{
		{"single_tile", 32, 32},
		{"ragged", 50, 40},
		{"padded_both", 130, 70},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := d.Resize(tc.w, tc.h); err != nil {
				t.Fatalf("Resize: %v", err)
			}

			rng := rand.New(rand.NewSource(int64(tc.w)))
			pixels := make([]uint32, tc.w*tc.h)
			raw := make([]byte, tc.w*tc.h*4)
			for i := range pixels {
				pixels[i] = rng.Uint32()
				binary.LittleEndian.PutUint32(raw[i*4:], pixels[i])
			}

			if err := d.Compute(raw); err != nil {
				t.Fatalf("Compute: %v", err)
			}

			padW, padH := sat.PadDim(tc.w, tile), sat.PadDim(tc.h, tile)
			got := make([]uint32, padW*padH*4)
			if err := d.ReadTable(got); err != nil {
				t.Fatalf("ReadTable: %v", err)
			}

			want := make([]uint32, padW*padH*4)
			sat.Reference(pixels, tc.w, tc.h, padW, padH, want)

			// The device linearizes in f32 rather than through the host
			// lookup table; each pixel may contribute an off-by-one, so
			// a cell's divergence is bounded by its covered area.
			for y := 0; y < padH; y++ {
				for x := 0; x < padW; x++ {
					limit := int64(x+1) * int64(y+1)
					i := (y*padW + x) * 4
					for ch := 0; ch < 4; ch++ {
						diff := int64(got[i+ch]) - int64(want[i+ch])
						if diff < 0 {
							diff = -diff
						}
						if diff > limit {
							t.Fatalf("cell (%d,%d) ch %d: device %d vs reference %d exceeds bound %d",
								x, y, ch, got[i+ch], want[i+ch], limit)
						}
					}
				}
			}
		})
	}
}

func TestDeviceWriteTableRoundTrip(t *testing.T) {
	const tile = 32
	a := acquireAccelerator(t, tile)
	d := a.Dispatcher()

	if err := d.Resize(40, 24); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	padW, padH := sat.PadDim(40, tile), sat.PadDim(24, tile)

	rng := rand.New(rand.NewSource(8))
	table := make([]uint32, padW*padH*4)
	for i := range table {
		table[i] = rng.Uint32()
	}

	if err := d.WriteTable(table); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	got := make([]uint32, len(table))
	if err := d.ReadTable(got); err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	for i := range table {
		if got[i] != table[i] {
			t.Fatalf("word %d = %d after round trip, want %d", i, got[i], table[i])
		}
	}
}

func TestDeviceResizeRejectsOversizedExtent(t *testing.T) {
	const tile = 16
	a := acquireAccelerator(t, tile)
	d := a.Dispatcher()

	// 300 pads to 304, needing 19 tiles of 16: over the one-level bound.
	if err := d.Resize(300, 10); err == nil {
		t.Fatal("Resize accepted an extent over the tiling bound")
	}
}
