// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import "errors"

var (
	// ErrTileConfig reports a tile configuration the one-level scan
	// hierarchy cannot cover: a padded dimension divided by the tile size
	// exceeds the tile size. Returned by Resize; the configuration is
	// unusable for that extent and no later Compute can recover.
	ErrTileConfig = errors.New("dof: padded dimension / tile size exceeds tile size")

	// ErrNoGPU reports that no GPU device is available. Only returned from
	// operations that explicitly require a device, such as
	// SetDeviceProvider in a nogpu build; Compute never returns it because
	// the engine falls back to the host pipeline instead.
	ErrNoGPU = errors.New("dof: no GPU device available")

	// ErrNotInitialized reports use of the engine before Resize.
	ErrNotInitialized = errors.New("dof: engine not resized")

	// ErrClosed reports use of the engine after Close.
	ErrClosed = errors.New("dof: engine closed")
)
