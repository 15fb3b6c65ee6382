// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import (
	"encoding/binary"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/dof/internal/parallel"
	"github.com/gogpu/dof/internal/sat"
)

// Engine builds the summed-area table for one render target. It owns the
// host mirror buffers, the finished host table, the worker pool of the
// tiled CPU pipeline, and (in gpu-enabled builds) the device accelerator.
//
// Path selection per frame:
//   - UseCPU set: the serial reference scan. Ground truth, also uploaded to
//     the device finished-table buffer when a device is live so consumers
//     are path-agnostic.
//   - device ready: the 8-stage device pipeline.
//   - otherwise: the tiled host pipeline on the worker pool, the same
//     algorithm stage for stage.
//
// Failures inside a frame degrade rather than abort: a device error logs a
// warning and the frame falls back to the host pipeline. The only fatal
// error is ErrTileConfig at Resize.
//
// Engine is safe for concurrent use, but Compute calls serialize.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	pool *parallel.WorkerPool
	pipe *sat.Pipeline

	useCPU bool

	imgW, imgH int
	padW, padH int

	// pixels and pixelBytes are the packed mirror of the current frame's
	// image, reallocated on resize only. pixelBytes is the byte view
	// uploaded to the device.
	pixels     []uint32
	pixelBytes []byte

	table *Table

	gpu *gpuState

	// lastDevice records whether the previous Compute ran on the device.
	lastDevice bool

	closed bool
}

// New creates an engine. The returned engine has no extent yet; call
// Resize before the first Compute.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	pool := parallel.NewWorkerPool(cfg.Workers)
	e := &Engine{
		cfg:    cfg,
		pool:   pool,
		pipe:   sat.NewPipeline(pool, cfg.TileSize),
		useCPU: cfg.UseCPU,
	}
	e.gpu = newGPUState(cfg)
	registerLoggerSink(e.gpu.loggerSink())
	return e, nil
}

// Resize reallocates every table and mirror buffer for a new image extent.
// Both dimensions are padded up to the tile size; the one-level scan
// hierarchy bound is checked first and its violation is fatal for this
// configuration (ErrTileConfig).
func (e *Engine) Resize(w, h int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("dof: invalid extent %dx%d", w, h)
	}

	if err := e.pipe.Resize(w, h); err != nil {
		return fmt.Errorf("%w: %dx%d with tile %d", ErrTileConfig, w, h, e.cfg.TileSize)
	}

	e.imgW, e.imgH = w, h
	e.padW, e.padH = e.pipe.PaddedWidth(), e.pipe.PaddedHeight()

	e.pixels = make([]uint32, w*h)
	e.pixelBytes = make([]byte, w*h*4)
	e.table = NewTable(e.padW, e.padH, w, h)

	// Device buffers follow lazily: the gpu state resizes its dispatcher
	// on the next frame that reaches the device.
	e.gpu.invalidate()

	Logger().Debug("dof: resized",
		"image", fmt.Sprintf("%dx%d", w, h),
		"table", fmt.Sprintf("%dx%d", e.padW, e.padH))
	return nil
}

// Compute builds the table for one frame. The frame's color image must
// match the extent of the last Resize. The finished table is readable via
// Table immediately after Compute returns.
func (e *Engine) Compute(frame *Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.table == nil {
		return ErrNotInitialized
	}
	if frame == nil || frame.Color == nil {
		return fmt.Errorf("dof: frame has no color image")
	}
	b := frame.Color.Bounds()
	if b.Dx() != e.imgW || b.Dy() != e.imgH {
		return fmt.Errorf("dof: frame is %dx%d, engine resized to %dx%d",
			b.Dx(), b.Dy(), e.imgW, e.imgH)
	}

	e.packPixels(frame.Color)
	e.lastDevice = false

	if e.useCPU {
		sat.Reference(e.pixels, e.imgW, e.imgH, e.padW, e.padH, e.table.Pix)
		// Keep the device copy current so consumers bound to the device
		// buffer see the same table regardless of path.
		e.gpu.writeTable(e, e.table.Pix)
		return nil
	}

	if e.gpu.compute(e, e.pixelBytes, e.table.Pix) {
		e.lastDevice = true
		return nil
	}

	// No device, or the device frame degraded. Same algorithm on the host.
	return e.pipe.Compute(e.pixels, e.table.Pix)
}

// DeviceActive reports whether the previous Compute ran on the GPU. False
// before the first frame, on the CPU path, and after a degraded frame.
func (e *Engine) DeviceActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDevice
}

// packPixels mirrors the frame image into the packed pixel buffers. The
// packed form (R in the low byte) is byte-identical to RGBA memory order,
// so the byte view is a straight copy.
func (e *Engine) packPixels(img *image.RGBA) {
	b := img.Bounds()
	for y := 0; y < e.imgH; y++ {
		o := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(e.pixelBytes[y*e.imgW*4:(y+1)*e.imgW*4], img.Pix[o:o+e.imgW*4])
	}
	for i := range e.pixels {
		e.pixels[i] = binary.LittleEndian.Uint32(e.pixelBytes[i*4:])
	}
}

// Table returns the finished host table. The pointer stays valid until the
// next Resize; Compute overwrites its contents in place.
func (e *Engine) Table() *Table {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table
}

// SetUseCPU toggles the serial CPU reference path at runtime.
func (e *Engine) SetUseCPU(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.useCPU = v
}

// UsingCPU reports whether the serial CPU reference path is selected.
func (e *Engine) UsingCPU() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.useCPU
}

// SetDeviceProvider switches the engine to a shared GPU device from the
// host application. Returns ErrNoGPU in nogpu builds.
func (e *Engine) SetDeviceProvider(provider DeviceHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.gpu.setProvider(provider)
}

// Close releases the worker pool and all device resources. Close is
// idempotent; operations on a closed engine return ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	unregisterLoggerSink(e.gpu.loggerSink())
	e.gpu.close()
	e.pool.Close()
	return nil
}
