// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import "fmt"

const (
	// DefaultTileSize is the default tile width along the scan axis. It is
	// also the compute workgroup width of the device scan kernel.
	DefaultTileSize = 128

	// minTileSize matches the transpose block edge; smaller tiles cannot
	// cover a transpose block.
	minTileSize = 16

	// DefaultFocusDepth is the default focal plane distance.
	DefaultFocusDepth = 5.0

	// DefaultMaxRadius is the default clamp on the blur half-width.
	DefaultMaxRadius = 16
)

// Config configures an Engine. The zero value is usable: defaults are
// applied by New.
type Config struct {
	// TileSize is the tile width along the scan axis. Must be a power of
	// two and at least 16. Together with the one-level scan hierarchy it
	// bounds the largest supported extent to TileSize*TileSize cells per
	// axis. Default 128 (supports up to 16384 per axis).
	TileSize int

	// UseCPU selects the serial host reference instead of the device
	// pipeline. Switchable at runtime with Engine.SetUseCPU; both paths
	// produce identical tables.
	UseCPU bool

	// Workers sets the host worker pool size for the tiled CPU pipeline.
	// Zero or negative means GOMAXPROCS.
	Workers int

	// FocusDepth is the focal plane distance used by BlurParams defaults.
	// Zero means DefaultFocusDepth.
	FocusDepth float32

	// MaxRadius clamps the per-pixel blur half-width used by BlurParams
	// defaults. Zero means DefaultMaxRadius.
	MaxRadius int
}

// withDefaults returns a copy of the config with zero fields replaced by
// their defaults.
func (c Config) withDefaults() Config {
	if c.TileSize == 0 {
		c.TileSize = DefaultTileSize
	}
	if c.FocusDepth == 0 {
		c.FocusDepth = DefaultFocusDepth
	}
	if c.MaxRadius == 0 {
		c.MaxRadius = DefaultMaxRadius
	}
	return c
}

// validate rejects tile sizes the kernels cannot be specialized for.
func (c Config) validate() error {
	if c.TileSize < minTileSize {
		return fmt.Errorf("dof: tile size %d below minimum %d", c.TileSize, minTileSize)
	}
	if c.TileSize&(c.TileSize-1) != 0 {
		return fmt.Errorf("dof: tile size %d is not a power of two", c.TileSize)
	}
	return nil
}
