// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build nogpu

package dof

// gpuState is a no-op in nogpu builds; every frame runs on the host.
type gpuState struct{}

func newGPUState(Config) *gpuState { return nil }

func (g *gpuState) loggerSink() loggerSetter { return nil }

func (g *gpuState) invalidate() {}

func (g *gpuState) compute(*Engine, []byte, []uint32) bool { return false }

func (g *gpuState) writeTable(*Engine, []uint32) {}

func (g *gpuState) setProvider(DeviceHandle) error { return ErrNoGPU }

func (g *gpuState) close() {}
