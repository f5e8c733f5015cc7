// Package controller provides the output adapters that display scan progress and reports.
package controller

import (
	"context"

	m "rads.dev/pkg/rads/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeScan StartMode = iota
	ModeForbid
	ModeFiles
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// WithScanMode sets the UI to full scan mode.
func WithScanMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeScan
	}
}

// WithForbidMode sets the UI to forbid-only mode.
func WithForbidMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeForbid
	}
}

// WithFilesMode sets the UI to single file mode.
func WithFilesMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeFiles
	}
}

func newStartConfig(options []StartOption) StartConfig {
	var cfg StartConfig
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// UI defines the interface for displaying scan progress and results.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayGraphResolved(ctx context.Context, packages int, files int)
	DisplayFileScanned(ctx context.Context, metrics m.FileMetrics)
	DisplayWarning(ctx context.Context, message string)
	DisplayReport(ctx context.Context, report *m.SafetyReport) error
	DisplayFileMetrics(ctx context.Context, files []m.FileMetrics) error
}
