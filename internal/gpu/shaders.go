// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/sat_scan.wgsl
var shaderScan string

//go:embed shaders/sat_carry.wgsl
var shaderCarry string

//go:embed shaders/sat_transpose.wgsl
var shaderTranspose string

// defaultTileSize is the tile width baked into the embedded shaders.
// Dispatchers configured with a different tile size rewrite the TILE_SIZE
// constant before compilation; workgroup sizes are compile-time in WGSL.
const defaultTileSize = 128

// shaderWithTileSize specializes a shader source for the given tile size.
func shaderWithTileSize(src string, tile int) string {
	if tile == defaultTileSize {
		return src
	}
	return strings.Replace(src,
		"const TILE_SIZE: u32 = 128u;",
		"const TILE_SIZE: u32 = "+strconv.Itoa(tile)+"u;", 1)
}

// compileModule creates a shader module from WGSL source, falling back to a
// naga-compiled SPIR-V module for backends that reject WGSL directly.
func compileModule(device hal.Device, label, src string) (hal.ShaderModule, error) {
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: src},
	})
	if err == nil {
		return module, nil
	}

	spirvBytes, nerr := naga.Compile(src)
	if nerr != nil {
		return nil, fmt.Errorf("sat compute: compile %s: wgsl: %v, naga: %w", label, err, nerr)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
}
