// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffers holds the per-resize device buffer set. Every buffer is sized for
// the padded table and overwritten in place each frame; allocation happens
// on resize only.
type Buffers struct {
	// SrcImage holds the packed RGBA source pixels, one u32 per pixel,
	// imgW*imgH entries. Written by the host each frame, read by row_scan.
	SrcImage hal.Buffer

	// TableA is the working table, padW*padH cells of 4 u32. The row axis
	// builds it row-major; after the transpose the column axis rebuilds it
	// column-major. Never the source and destination of the same stage.
	TableA hal.Buffer

	// TableB is the transpose double of TableA. After transpose_back it
	// holds the finished row-major summed-area table; the CPU path writes
	// the same buffer so consumers are path-agnostic.
	TableB hal.Buffer

	// RowSums holds per-row tile totals, padH rows of padW/tile cells.
	// Written by row_reduce, read by row_carry.
	RowSums hal.Buffer

	// ColSums holds per-column tile totals, padW rows of padH/tile cells.
	// Written by col_reduce, read by col_carry.
	ColSums hal.Buffer

	// Staging receives the finished table for host readback.
	Staging hal.Buffer

	// Configs holds one uniform buffer per dispatched stage, written at
	// resize time.
	Configs [StageDone]hal.Buffer
}

// allocateBuffers creates the buffer set for the given extents. Both tables
// are zero-filled so padding cells are deterministic from the first frame.
func (d *Dispatcher) allocateBuffers(imgW, imgH, padW, padH int) (*Buffers, error) {
	tableBytes := uint64(padW) * uint64(padH) * 16
	rowSumBytes := uint64(padH) * uint64(padW/d.tile) * 16
	colSumBytes := uint64(padW) * uint64(padH/d.tile) * 16
	imageBytes := uint64(imgW) * uint64(imgH) * 4

	storageCPU := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst
	storageGPU := gputypes.BufferUsageStorage
	uniformCPU := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	stagingOut := gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst

	bufs := &Buffers{}

	type bufDesc struct {
		target   *hal.Buffer
		label    string
		size     uint64
		usage    gputypes.BufferUsage
		zeroInit bool
	}

	descs := []bufDesc{
		{&bufs.SrcImage, "sat_src_image", imageBytes, storageCPU, false},
		{&bufs.TableA, "sat_table_a", tableBytes, storageCPU, true},
		{&bufs.TableB, "sat_table_b", tableBytes, storageCPU | gputypes.BufferUsageCopySrc, true},
		{&bufs.RowSums, "sat_row_sums", rowSumBytes, storageGPU, false},
		{&bufs.ColSums, "sat_col_sums", colSumBytes, storageGPU, false},
		{&bufs.Staging, "sat_staging", tableBytes, stagingOut, false},
	}

	for _, s := range descs {
		buf, err := d.createBuffer(s.label, s.size, s.usage)
		if err != nil {
			d.destroyBuffers(bufs)
			return nil, fmt.Errorf("sat compute: create %s buffer: %w", s.label, err)
		}
		*s.target = buf

		if s.zeroInit && s.size > 0 {
			zeros := make([]byte, s.size)
			d.queue.WriteBuffer(buf, 0, zeros)
		}
	}

	for s := StageRowScan; s < StageDone; s++ {
		buf, err := d.createBuffer(fmt.Sprintf("sat_cfg_%s", s), kernelConfig{}.sizeInBytes(), uniformCPU)
		if err != nil {
			d.destroyBuffers(bufs)
			return nil, fmt.Errorf("sat compute: create config buffer for %s: %w", s, err)
		}
		bufs.Configs[s] = buf
	}

	return bufs, nil
}

// createBuffer creates one device buffer with a minimum size of 4 bytes.
func (d *Dispatcher) createBuffer(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	const minBufSize = 4
	if size < minBufSize {
		size = minBufSize
	}
	return d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
}

// destroyBuffers releases every buffer in the set and zeroes the struct to
// prevent accidental reuse.
func (d *Dispatcher) destroyBuffers(bufs *Buffers) {
	if bufs == nil {
		return
	}

	destroyBuf := func(b hal.Buffer) {
		if b != nil {
			d.device.DestroyBuffer(b)
		}
	}

	destroyBuf(bufs.SrcImage)
	destroyBuf(bufs.TableA)
	destroyBuf(bufs.TableB)
	destroyBuf(bufs.RowSums)
	destroyBuf(bufs.ColSums)
	destroyBuf(bufs.Staging)
	for _, b := range bufs.Configs {
		destroyBuf(b)
	}

	*bufs = Buffers{}
}
