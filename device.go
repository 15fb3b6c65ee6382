// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import "github.com/gogpu/gpucontext"

// DeviceHandle provides GPU device access from the host application.
//
// The engine never requires its own device: a host renderer (for example a
// gogpu application) implements DeviceHandle and passes it to
// Engine.SetDeviceProvider, and the table build shares the host's device
// and queue. Without a provider the engine brings up a standalone Vulkan
// device on first use, and falls back to the host pipeline when none is
// available.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, providing a
// dof-specific name for the interface while staying compatible with the
// gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider
