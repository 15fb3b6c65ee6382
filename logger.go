// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dof

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// loggerSetter is implemented by engine internals that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// sinkMu guards the set of live logger sinks (one per engine with a GPU
// accelerator) so SetLogger reaches engines created before the call.
var (
	sinkMu sync.Mutex
	sinks  = map[loggerSetter]struct{}{}
)

func registerLoggerSink(s loggerSetter) {
	if s == nil {
		return
	}
	sinkMu.Lock()
	sinks[s] = struct{}{}
	sinkMu.Unlock()
	s.SetLogger(loggerPtr.Load())
}

func unregisterLoggerSink(s loggerSetter) {
	if s == nil {
		return
	}
	sinkMu.Lock()
	delete(sinks, s)
	sinkMu.Unlock()
}

// SetLogger configures the logger for dof and all its sub-packages.
// By default, dof produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by dof:
//   - [slog.LevelDebug]: internal diagnostics (dispatch detail, buffer sizes)
//   - [slog.LevelInfo]: important lifecycle events (GPU adapter selected)
//   - [slog.LevelWarn]: non-fatal issues (CPU fallback, degraded phases)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	sinkMu.Lock()
	defer sinkMu.Unlock()
	for s := range sinks {
		s.SetLogger(l)
	}
}

// Logger returns the current logger used by dof.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
