// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package dof

import (
	"sync"

	"github.com/gogpu/dof/internal/gpu"
)

// gpuState wires the engine to the device accelerator. Every method is
// nil-receiver safe so the engine can call through unconditionally; the
// nogpu build replaces the whole file with stubs.
//
// Device bring-up is lazy: nothing touches the GPU until the first frame
// that selects the device path, or until SetDeviceProvider hands over a
// shared device. All device failures are reported by returning false and
// logging; the engine then runs the frame on the host.
type gpuState struct {
	mu    sync.Mutex
	accel *gpu.Accelerator

	initTried bool

	// curW, curH are the extents the dispatcher buffers currently match.
	curW, curH int

	// resizeFailed latches a failed dispatcher resize until the next
	// engine Resize, so a broken extent is not retried every frame.
	resizeFailed bool
}

func newGPUState(cfg Config) *gpuState {
	return &gpuState{accel: gpu.NewAccelerator(cfg.TileSize)}
}

// loggerSink exposes the accelerator to the package logger propagation.
func (g *gpuState) loggerSink() loggerSetter {
	if g == nil {
		return nil
	}
	return g.accel
}

// invalidate marks the dispatcher buffers stale after an engine resize.
func (g *gpuState) invalidate() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.curW, g.curH = 0, 0
	g.resizeFailed = false
	g.mu.Unlock()
}

// ready brings up a standalone device on first demand and reports whether
// the pipeline is dispatchable.
func (g *gpuState) ready() bool {
	if !g.accel.Ready() && !g.initTried {
		g.initTried = true
		if err := g.accel.Init(); err != nil {
			Logger().Warn("dof: GPU unavailable, using host pipeline", "error", err)
		}
	}
	return g.accel.Ready()
}

// sizedDispatcher returns the dispatcher with buffers matching the given
// extent, or nil when the device path cannot serve this frame.
func (g *gpuState) sizedDispatcher(w, h int) *gpu.Dispatcher {
	if !g.ready() {
		return nil
	}
	disp := g.accel.Dispatcher()
	if disp == nil {
		return nil
	}
	if g.curW != w || g.curH != h {
		if g.resizeFailed {
			return nil
		}
		if err := disp.Resize(w, h); err != nil {
			Logger().Warn("dof: device resize failed, using host pipeline", "error", err)
			g.resizeFailed = true
			return nil
		}
		g.curW, g.curH = w, h
	}
	return disp
}

// compute runs one frame on the device and reads the finished table back
// into dst. Returns false when the frame must run on the host instead.
func (g *gpuState) compute(e *Engine, pixels []byte, dst []uint32) bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	disp := g.sizedDispatcher(e.imgW, e.imgH)
	if disp == nil {
		return false
	}
	if err := disp.Compute(pixels); err != nil {
		Logger().Warn("dof: device frame degraded, using host pipeline", "error", err)
		return false
	}
	if err := disp.ReadTable(dst); err != nil {
		Logger().Warn("dof: table readback failed, using host pipeline", "error", err)
		return false
	}
	return true
}

// writeTable uploads a host-built table into the device finished-table
// buffer when a device is live. Failures only log; the host table is the
// source of truth on the CPU path.
func (g *gpuState) writeTable(e *Engine, table []uint32) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	// Only mirror to a device that is already up; the CPU path must not
	// force device bring-up.
	if !g.accel.Ready() {
		return
	}
	disp := g.sizedDispatcher(e.imgW, e.imgH)
	if disp == nil {
		return
	}
	if err := disp.WriteTable(table); err != nil {
		Logger().Warn("dof: device table upload failed", "error", err)
	}
}

// setProvider switches to a shared device from the host application.
func (g *gpuState) setProvider(provider DeviceHandle) error {
	if g == nil {
		return ErrNoGPU
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.initTried = true
	g.curW, g.curH = 0, 0
	g.resizeFailed = false
	return g.accel.SetDeviceProvider(provider)
}

// close releases all device resources.
func (g *gpuState) close() {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accel.Close()
}
