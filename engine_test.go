// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import (
	"errors"
	"image"
	"math/rand"
	"testing"
)

// randomImage fills a w*h RGBA image with deterministic noise.
func randomImage(rng *rand.Rand, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineResizePadsToTileSize(t *testing.T) {
	e := newTestEngine(t, Config{TileSize: 32})

	if err := e.Resize(64, 64); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	tbl := e.Table()
	if tbl.W != 64 || tbl.H != 64 {
		t.Fatalf("table %dx%d, want 64x64", tbl.W, tbl.H)
	}

	// Growing past a tile boundary pads up to the next multiple.
	if err := e.Resize(130, 130); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	tbl = e.Table()
	if tbl.W != 160 || tbl.H != 160 {
		t.Fatalf("table %dx%d, want 160x160", tbl.W, tbl.H)
	}
	if tbl.ImageW != 130 || tbl.ImageH != 130 {
		t.Fatalf("image extent %dx%d, want 130x130", tbl.ImageW, tbl.ImageH)
	}

	// A black frame yields an all-zero table, padding included.
	img := image.NewRGBA(image.Rect(0, 0, 130, 130))
	if err := e.Compute(&Frame{Color: img}); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i, v := range e.Table().Pix {
		if v != 0 {
			t.Fatalf("table word %d = %d after zero frame, want 0", i, v)
		}
	}
}

func TestEngineTileConfigFatal(t *testing.T) {
	e := newTestEngine(t, Config{TileSize: 16})

	// 300 pads to 304, which needs 19 tiles; a 16-wide tile-sum scan
	// cannot cover 19 totals.
	err := e.Resize(300, 10)
	if !errors.Is(err, ErrTileConfig) {
		t.Fatalf("Resize = %v, want ErrTileConfig", err)
	}
}

func TestEnginePathToggle(t *testing.T) {
	e := newTestEngine(t, Config{TileSize: 32, Workers: 4})
	if err := e.Resize(50, 40); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	rng := rand.New(rand.NewSource(21))
	img := randomImage(rng, 50, 40)

	e.SetUseCPU(true)
	if err := e.Compute(&Frame{Color: img}); err != nil {
		t.Fatalf("CPU Compute: %v", err)
	}
	cpuTable := make([]uint32, len(e.Table().Pix))
	copy(cpuTable, e.Table().Pix)

	e.SetUseCPU(false)
	if err := e.Compute(&Frame{Color: img}); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	tbl := e.Table()

	if !e.DeviceActive() {
		// Host pipeline: same lookup table, identical result.
		for i := range tbl.Pix {
			if tbl.Pix[i] != cpuTable[i] {
				t.Fatalf("path toggle diverges at word %d: %d vs %d",
					i, tbl.Pix[i], cpuTable[i])
			}
		}
		return
	}

	// Device path: the kernel linearizes in f32, which may differ from
	// the host lookup table by at most 1 per pixel. A cell accumulates
	// one pixel per covered coordinate, which bounds the divergence.
	for y := 0; y < tbl.H; y++ {
		for x := 0; x < tbl.W; x++ {
			limit := uint64(x+1) * uint64(y+1)
			a, b := tbl.At(x, y), [4]uint32{}
			i := (y*tbl.W + x) * 4
			copy(b[:], cpuTable[i:i+4])
			for ch := range a {
				d := int64(a[ch]) - int64(b[ch])
				if d < 0 {
					d = -d
				}
				if uint64(d) > limit {
					t.Fatalf("cell (%d,%d) ch %d: device %d vs cpu %d exceeds bound %d",
						x, y, ch, a[ch], b[ch], limit)
				}
			}
		}
	}
}

func TestEngineRepeatedComputeIsIdempotent(t *testing.T) {
	e := newTestEngine(t, Config{TileSize: 32})
	if err := e.Resize(33, 17); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	rng := rand.New(rand.NewSource(4))
	img := randomImage(rng, 33, 17)

	if err := e.Compute(&Frame{Color: img}); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	first := make([]uint32, len(e.Table().Pix))
	copy(first, e.Table().Pix)

	if err := e.Compute(&Frame{Color: img}); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := range first {
		if e.Table().Pix[i] != first[i] {
			t.Fatalf("recompute of the same frame diverges at word %d", i)
		}
	}
}

func TestEngineComputeBeforeResize(t *testing.T) {
	e := newTestEngine(t, Config{})
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := e.Compute(&Frame{Color: img}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Compute = %v, want ErrNotInitialized", err)
	}
}

func TestEngineFrameExtentMismatch(t *testing.T) {
	e := newTestEngine(t, Config{TileSize: 16})
	if err := e.Resize(32, 32); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 32))
	if err := e.Compute(&Frame{Color: img}); err == nil {
		t.Fatal("Compute accepted a frame with the wrong extent")
	}
}

func TestEngineClosed(t *testing.T) {
	e := newTestEngine(t, Config{})
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := e.Resize(8, 8); !errors.Is(err, ErrClosed) {
		t.Fatalf("Resize after Close = %v, want ErrClosed", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := e.Compute(&Frame{Color: img}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Compute after Close = %v, want ErrClosed", err)
	}
}

func TestEngineInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"tile_too_small", Config{TileSize: 8}},
		{"tile_not_power_of_two", Config{TileSize: 48}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Fatal("New accepted an invalid config")
			}
		})
	}
}

func TestEngineDefaults(t *testing.T) {
	e := newTestEngine(t, Config{})
	if e.cfg.TileSize != DefaultTileSize {
		t.Errorf("TileSize = %d, want %d", e.cfg.TileSize, DefaultTileSize)
	}
	if e.cfg.FocusDepth != DefaultFocusDepth {
		t.Errorf("FocusDepth = %v, want %v", e.cfg.FocusDepth, DefaultFocusDepth)
	}
	if e.cfg.MaxRadius != DefaultMaxRadius {
		t.Errorf("MaxRadius = %d, want %d", e.cfg.MaxRadius, DefaultMaxRadius)
	}
	if e.UsingCPU() {
		t.Error("UsingCPU true by default")
	}
}
