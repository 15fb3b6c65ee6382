// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

// dispatcher.go defines the device dispatch orchestration for the
// summed-area-table pipeline: shader compilation, per-frame buffer set,
// and the 8-stage dispatch sequence mirroring internal/sat.

package gpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/dof/internal/sat"
)

const (
	// transposeBlock is the square block edge used by the transpose kernel.
	// Matches BLOCK in sat_transpose.wgsl; tile sizes must be multiples of it.
	transposeBlock = 16

	// fenceTimeout is the maximum time to wait for device work to complete.
	fenceTimeout = 5 * time.Second
)

// Kernel identifies one of the three compiled compute kernels. The scan
// kernel doubles as the tile-sum reduction through its uniform flags, so
// eight pipeline stages share three kernels.
type Kernel int

const (
	// KernelScan is the tile-local inclusive prefix scan (sat_scan.wgsl).
	KernelScan Kernel = iota

	// KernelCarry propagates preceding-tile totals (sat_carry.wgsl).
	KernelCarry

	// KernelTranspose transposes the cell grid in blocks (sat_transpose.wgsl).
	KernelTranspose

	// KernelCount is the total number of kernels.
	KernelCount
)

// String returns the shader name of the kernel.
func (k Kernel) String() string {
	switch k {
	case KernelScan:
		return "sat_scan"
	case KernelCarry:
		return "sat_carry"
	case KernelTranspose:
		return "sat_transpose"
	default:
		return fmt.Sprintf("sat_kernel(%d)", int(k))
	}
}

// Stage identifies one state of the per-frame pipeline. The frame advances
// strictly in declaration order; every transition is gated by a compute-pass
// boundary so a stage never reads its predecessor's output mid-flight.
type Stage int

const (
	// StageRowScan scans raw pixels into tile-local row prefix sums.
	StageRowScan Stage = iota

	// StageRowReduce scans each row's tile totals in a single workgroup.
	StageRowReduce

	// StageRowCarry adds preceding-tile totals to complete the row scans.
	StageRowCarry

	// StageTransposeOut transposes the row table for the column axis.
	StageTransposeOut

	// StageColScan scans the transposed table tile-locally.
	StageColScan

	// StageColReduce scans each column's tile totals.
	StageColReduce

	// StageColCarry completes the column scans.
	StageColCarry

	// StageTransposeBack restores row-major orientation; its output is the
	// finished summed-area table.
	StageTransposeBack

	// StageDone is the terminal state; no work is dispatched for it.
	StageDone
)

// String returns the human-readable name of the stage.
func (s Stage) String() string {
	switch s {
	case StageRowScan:
		return "row_scan"
	case StageRowReduce:
		return "row_reduce"
	case StageRowCarry:
		return "row_carry"
	case StageTransposeOut:
		return "transpose_out"
	case StageColScan:
		return "col_scan"
	case StageColReduce:
		return "col_reduce"
	case StageColCarry:
		return "col_carry"
	case StageTransposeBack:
		return "transpose_back"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Next returns the stage following s. StageDone is terminal.
func (s Stage) Next() Stage {
	if s >= StageDone {
		return StageDone
	}
	return s + 1
}

// KernelFor returns the kernel the stage dispatches.
func (s Stage) KernelFor() Kernel {
	switch s {
	case StageRowScan, StageRowReduce, StageColScan, StageColReduce:
		return KernelScan
	case StageRowCarry, StageColCarry:
		return KernelCarry
	default:
		return KernelTranspose
	}
}

// kernelConfig mirrors the Config uniform struct shared by all three WGSL
// kernels: 8 consecutive u32 fields, uploaded at binding(0) of group(0).
type kernelConfig struct {
	// TableW, TableH are the padded dimensions of the dispatched
	// orientation: cells per row and number of rows.
	TableW uint32
	TableH uint32

	// ImageW, ImageH bound raw pixel loads; zero beyond the extent.
	ImageW uint32
	ImageH uint32

	// Tile is the tile width, Tiles the tile count per row.
	Tile  uint32
	Tiles uint32

	// SourceKind and ScanTarget are the scan kernel's shape flags.
	SourceKind uint32
	ScanTarget uint32
}

// sizeInBytes returns the byte size of kernelConfig: 8 fields * 4 bytes.
func (c kernelConfig) sizeInBytes() uint64 { return 8 * 4 }

// toBytes serializes kernelConfig in little-endian order, matching the
// WGSL struct layout field for field.
func (c kernelConfig) toBytes() []byte {
	buf := make([]byte, c.sizeInBytes())
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], c.TableW)
	le.PutUint32(buf[4:8], c.TableH)
	le.PutUint32(buf[8:12], c.ImageW)
	le.PutUint32(buf[12:16], c.ImageH)
	le.PutUint32(buf[16:20], c.Tile)
	le.PutUint32(buf[20:24], c.Tiles)
	le.PutUint32(buf[24:28], c.SourceKind)
	le.PutUint32(buf[28:32], c.ScanTarget)
	return buf
}

// kernelBindGroupLayoutEntries returns the layout entries shared by all
// three kernels: config uniform, read-only source, read-write destination.
// The carry kernel's "source" is the tile-sum buffer and its "destination"
// is updated in place; the binding shape is the same.
func kernelBindGroupLayoutEntries() []gputypes.BindGroupLayoutEntry {
	return []gputypes.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
		{
			Binding:    1,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
		},
		{
			Binding:    2,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
		},
	}
}

// Dispatcher orchestrates the device pipeline. It compiles the three
// kernels once, reallocates the buffer set on resize only, and encodes the
// 8-stage sequence per frame as one command buffer with one compute pass
// per stage.
type Dispatcher struct {
	mu sync.RWMutex

	device hal.Device
	queue  hal.Queue

	tile int

	pipelines       [KernelCount]hal.ComputePipeline
	pipelineLayouts [KernelCount]hal.PipelineLayout
	bgLayouts       [KernelCount]hal.BindGroupLayout
	shaderModules   [KernelCount]hal.ShaderModule

	bufs *Buffers

	imgW, imgH int
	padW, padH int

	initialized bool
}

// NewDispatcher creates a dispatcher on the given HAL device and queue.
// Init must be called before Resize and Compute.
func NewDispatcher(device hal.Device, queue hal.Queue, tile int) *Dispatcher {
	if tile <= 0 {
		tile = defaultTileSize
	}
	return &Dispatcher{device: device, queue: queue, tile: tile}
}

// TileSize returns the tile width the kernels were specialized for.
func (d *Dispatcher) TileSize() int { return d.tile }

// Initialized reports whether the kernels are compiled and ready.
func (d *Dispatcher) Initialized() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.initialized
}

// Init compiles the WGSL kernels and creates the compute pipelines.
// Safe to call multiple times; subsequent calls are no-ops.
func (d *Dispatcher) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}

	sources := [KernelCount]string{
		KernelScan:      shaderWithTileSize(shaderScan, d.tile),
		KernelCarry:     shaderWithTileSize(shaderCarry, d.tile),
		KernelTranspose: shaderTranspose,
	}

	for k := Kernel(0); k < KernelCount; k++ {
		src := sources[k]

		module, err := compileModule(d.device, k.String(), src)
		if err != nil {
			d.destroyPartialInit(k)
			return fmt.Errorf("sat compute: create shader module for %s: %w", k, err)
		}
		d.shaderModules[k] = module

		bgLayout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   k.String() + "_bgl",
			Entries: kernelBindGroupLayoutEntries(),
		})
		if err != nil {
			d.destroyPartialInit(k + 1)
			return fmt.Errorf("sat compute: create bind group layout for %s: %w", k, err)
		}
		d.bgLayouts[k] = bgLayout

		pipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:            k.String() + "_pl",
			BindGroupLayouts: []hal.BindGroupLayout{bgLayout},
		})
		if err != nil {
			d.destroyPartialInit(k + 1)
			return fmt.Errorf("sat compute: create pipeline layout for %s: %w", k, err)
		}
		d.pipelineLayouts[k] = pipelineLayout

		pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  k.String(),
			Layout: pipelineLayout,
			Compute: hal.ComputeState{
				Module:     module,
				EntryPoint: "main",
			},
		})
		if err != nil {
			d.destroyPartialInit(k + 1)
			return fmt.Errorf("sat compute: create compute pipeline for %s: %w", k, err)
		}
		d.pipelines[k] = pipeline

		slogger().Debug("sat compute: pipeline created",
			"kernel", k.String(),
			"tile", d.tile,
			"shader_bytes", len(src))
	}

	d.initialized = true
	slogger().Info("sat compute: kernels initialized", "tile", d.tile)
	return nil
}

// destroyPartialInit cleans up kernels [0, upTo) during a failed Init so a
// partial initialization leaks nothing.
func (d *Dispatcher) destroyPartialInit(upTo Kernel) {
	for j := Kernel(0); j < upTo; j++ {
		if d.pipelines[j] != nil {
			d.device.DestroyComputePipeline(d.pipelines[j])
			d.pipelines[j] = nil
		}
		if d.pipelineLayouts[j] != nil {
			d.device.DestroyPipelineLayout(d.pipelineLayouts[j])
			d.pipelineLayouts[j] = nil
		}
		if d.bgLayouts[j] != nil {
			d.device.DestroyBindGroupLayout(d.bgLayouts[j])
			d.bgLayouts[j] = nil
		}
		if d.shaderModules[j] != nil {
			d.device.DestroyShaderModule(d.shaderModules[j])
			d.shaderModules[j] = nil
		}
	}
}

// Close releases all device resources held by the dispatcher.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bufs != nil {
		d.destroyBuffers(d.bufs)
		d.bufs = nil
	}
	d.destroyPartialInit(KernelCount)
	d.initialized = false
}

// Resize reallocates the buffer set for a new image extent. Buffers are
// touched on resize only; Compute overwrites them in place each frame.
// The one-level hierarchy bound is checked first and its violation is the
// only fatal error in the pipeline.
func (d *Dispatcher) Resize(imgW, imgH int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return fmt.Errorf("sat compute: dispatcher not initialized, call Init() first")
	}

	padW := sat.PadDim(imgW, d.tile)
	padH := sat.PadDim(imgH, d.tile)
	if err := sat.CheckTiling(padW, padH, d.tile); err != nil {
		return err
	}

	if d.bufs != nil {
		d.destroyBuffers(d.bufs)
		d.bufs = nil
	}

	bufs, err := d.allocateBuffers(imgW, imgH, padW, padH)
	if err != nil {
		return err
	}
	d.bufs = bufs
	d.imgW, d.imgH = imgW, imgH
	d.padW, d.padH = padW, padH

	// Per-stage uniforms change on resize only; upload them once here.
	for s := StageRowScan; s < StageDone; s++ {
		d.queue.WriteBuffer(bufs.Configs[s], 0, d.stageConfig(s).toBytes())
	}

	slogger().Debug("sat compute: buffers allocated",
		"image", fmt.Sprintf("%dx%d", imgW, imgH),
		"table", fmt.Sprintf("%dx%d", padW, padH),
		"table_bytes", uint64(padW)*uint64(padH)*16)
	return nil
}

// stageConfig returns the uniform contents for one stage. Row stages scan
// padW-wide rows; after the transpose the column stages scan the same grid
// with swapped dimensions.
func (d *Dispatcher) stageConfig(s Stage) kernelConfig {
	cfg := kernelConfig{
		Tile:       uint32(d.tile),
		SourceKind: uint32(sat.SourceTable),
	}
	switch s {
	case StageRowScan:
		cfg.SourceKind = uint32(sat.SourceColor)
		cfg.ImageW, cfg.ImageH = uint32(d.imgW), uint32(d.imgH)
		fallthrough
	case StageRowReduce, StageRowCarry:
		cfg.TableW, cfg.TableH = uint32(d.padW), uint32(d.padH)
		cfg.Tiles = uint32(d.padW / d.tile)
	case StageColScan, StageColReduce, StageColCarry:
		cfg.TableW, cfg.TableH = uint32(d.padH), uint32(d.padW)
		cfg.Tiles = uint32(d.padH / d.tile)
	case StageTransposeOut:
		cfg.TableW, cfg.TableH = uint32(d.padW), uint32(d.padH)
	case StageTransposeBack:
		cfg.TableW, cfg.TableH = uint32(d.padH), uint32(d.padW)
	}
	if s == StageRowReduce || s == StageColReduce {
		cfg.ScanTarget = uint32(sat.TargetTileSums)
	}
	return cfg
}

// stageWorkgroups returns the dispatch grid for one stage.
func (d *Dispatcher) stageWorkgroups(s Stage) (x, y uint32) {
	tilesX := uint32(d.padW / d.tile)
	tilesY := uint32(d.padH / d.tile)
	switch s {
	case StageRowScan, StageRowCarry:
		return tilesX, uint32(d.padH)
	case StageRowReduce:
		return 1, uint32(d.padH)
	case StageColScan, StageColCarry:
		return tilesY, uint32(d.padW)
	case StageColReduce:
		return 1, uint32(d.padW)
	case StageTransposeOut:
		return uint32(d.padW / transposeBlock), uint32(d.padH / transposeBlock)
	case StageTransposeBack:
		// The source is the column-oriented table, padH wide and padW tall.
		return uint32(d.padH / transposeBlock), uint32(d.padW / transposeBlock)
	default:
		return 0, 0
	}
}

// stageBindings returns the source and destination buffers for one stage.
// The two tables ping-pong: the row axis builds TableA, the transpose moves
// it to TableB, the column axis rebuilds TableA in transposed orientation,
// and the final transpose lands the finished table in TableB.
func (d *Dispatcher) stageBindings(s Stage, bufs *Buffers) (src, dst hal.Buffer) {
	switch s {
	case StageRowScan:
		return bufs.SrcImage, bufs.TableA
	case StageRowReduce:
		return bufs.TableA, bufs.RowSums
	case StageRowCarry:
		return bufs.RowSums, bufs.TableA
	case StageTransposeOut:
		return bufs.TableA, bufs.TableB
	case StageColScan:
		return bufs.TableB, bufs.TableA
	case StageColReduce:
		return bufs.TableA, bufs.ColSums
	case StageColCarry:
		return bufs.ColSums, bufs.TableA
	case StageTransposeBack:
		return bufs.TableA, bufs.TableB
	default:
		return nil, nil
	}
}

// dispatchResources tracks per-frame device resources for cleanup.
type dispatchResources struct {
	device     hal.Device
	bindGroups []hal.BindGroup
	cmdBuf     hal.CommandBuffer
	fence      hal.Fence
}

// cleanup destroys all tracked per-frame resources.
func (r *dispatchResources) cleanup() {
	if r.fence != nil {
		r.device.DestroyFence(r.fence)
	}
	if r.cmdBuf != nil {
		r.device.FreeCommandBuffer(r.cmdBuf)
	}
	for _, g := range r.bindGroups {
		r.device.DestroyBindGroup(g)
	}
}

// Compute uploads one frame's pixels and runs the 8-stage sequence. pixels
// is the packed RGBA image, imgW*imgH*4 bytes. The finished table stays in
// the device TableB buffer; ReadTable copies it to the host.
func (d *Dispatcher) Compute(pixels []byte) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.initialized {
		return fmt.Errorf("sat compute: dispatcher not initialized, call Init() first")
	}
	if d.bufs == nil {
		return fmt.Errorf("sat compute: no buffers, call Resize() first")
	}
	if want := d.imgW * d.imgH * 4; len(pixels) != want {
		return fmt.Errorf("sat compute: pixel upload is %d bytes, want %d", len(pixels), want)
	}

	d.queue.WriteBuffer(d.bufs.SrcImage, 0, pixels)

	res := &dispatchResources{device: d.device}
	defer res.cleanup()

	if err := d.encodeFrame(res); err != nil {
		return err
	}
	return d.submitAndWait(res)
}

// encodeFrame records the 8 stages into one command buffer. Each stage gets
// its own compute pass; the pass boundary is the barrier that makes the
// previous stage's storage writes visible, so correctness never rests on
// dispatch order alone.
func (d *Dispatcher) encodeFrame(res *dispatchResources) error {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "sat_compute",
	})
	if err != nil {
		return fmt.Errorf("sat compute: create command encoder: %w", err)
	}

	if err := encoder.BeginEncoding("sat_compute"); err != nil {
		return fmt.Errorf("sat compute: begin encoding: %w", err)
	}

	for s := StageRowScan; s != StageDone; s = s.Next() {
		k := s.KernelFor()
		src, dst := d.stageBindings(s, d.bufs)

		bg, bgErr := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:  fmt.Sprintf("sat_%s_bg", s),
			Layout: d.bgLayouts[k],
			Entries: []gputypes.BindGroupEntry{
				{Binding: 0, Resource: gputypes.BufferBinding{Buffer: d.bufs.Configs[s].NativeHandle()}},
				{Binding: 1, Resource: gputypes.BufferBinding{Buffer: src.NativeHandle()}},
				{Binding: 2, Resource: gputypes.BufferBinding{Buffer: dst.NativeHandle()}},
			},
		})
		if bgErr != nil {
			encoder.DiscardEncoding()
			return fmt.Errorf("sat compute: create bind group for %s: %w", s, bgErr)
		}
		res.bindGroups = append(res.bindGroups, bg)

		wgX, wgY := d.stageWorkgroups(s)

		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
			Label: fmt.Sprintf("sat_%s", s),
		})
		pass.SetPipeline(d.pipelines[k])
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(wgX, wgY, 1)
		pass.End()

		slogger().Debug("sat compute: dispatched stage",
			"stage", s.String(),
			"kernel", k.String(),
			"workgroups", fmt.Sprintf("%dx%d", wgX, wgY))
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("sat compute: end encoding: %w", err)
	}
	res.cmdBuf = cmdBuf
	return nil
}

// submitAndWait submits the command buffer and waits for device completion.
func (d *Dispatcher) submitAndWait(res *dispatchResources) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("sat compute: create fence: %w", err)
	}
	res.fence = fence

	if err := d.queue.Submit([]hal.CommandBuffer{res.cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("sat compute: submit: %w", err)
	}

	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("sat compute: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("sat compute: GPU timeout after %v", fenceTimeout)
	}
	return nil
}

// ReadTable copies the finished table from the device into dst, which must
// hold padW*padH*4 uint32 words.
func (d *Dispatcher) ReadTable(dst []uint32) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.bufs == nil {
		return fmt.Errorf("sat compute: no buffers, call Resize() first")
	}
	size := uint64(d.padW) * uint64(d.padH) * 16
	if uint64(len(dst))*4 < size {
		return fmt.Errorf("sat compute: dst holds %d words, need %d", len(dst), size/4)
	}

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "sat_readback",
	})
	if err != nil {
		return fmt.Errorf("sat compute: create readback encoder: %w", err)
	}
	if err := encoder.BeginEncoding("sat_readback"); err != nil {
		return fmt.Errorf("sat compute: begin readback encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(d.bufs.TableB, d.bufs.Staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("sat compute: end readback encoding: %w", err)
	}

	res := &dispatchResources{device: d.device, cmdBuf: cmdBuf}
	defer res.cleanup()
	if err := d.submitAndWait(res); err != nil {
		return err
	}

	raw := make([]byte, size)
	if err := d.queue.ReadBuffer(d.bufs.Staging, 0, raw); err != nil {
		return fmt.Errorf("sat compute: read staging buffer: %w", err)
	}
	for i := range dst[:size/4] {
		dst[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return nil
}

// WriteTable uploads a host-computed table into the device finished-table
// buffer row by row, so consumers bound to the device buffer see the same
// data regardless of which path produced it.
func (d *Dispatcher) WriteTable(table []uint32) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.bufs == nil {
		return fmt.Errorf("sat compute: no buffers, call Resize() first")
	}
	words := d.padW * d.padH * 4
	if len(table) < words {
		return fmt.Errorf("sat compute: table holds %d words, need %d", len(table), words)
	}

	rowBytes := d.padW * 16
	row := make([]byte, rowBytes)
	for y := 0; y < d.padH; y++ {
		base := y * d.padW * 4
		for i := 0; i < d.padW*4; i++ {
			binary.LittleEndian.PutUint32(row[i*4:], table[base+i])
		}
		d.queue.WriteBuffer(d.bufs.TableB, uint64(y)*uint64(rowBytes), row)
	}
	return nil
}
