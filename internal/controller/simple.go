package controller

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	m "rads.dev/pkg/rads/internal/model"
)

// SimpleUI implements UI by printing to the cobra command's output.
type SimpleUI struct {
	cmd     *cobra.Command
	opts    RenderOptions
	verbose bool
	config  StartConfig
}

// SimpleOption configures a SimpleUI.
type SimpleOption func(*SimpleUI)

// WithVerbose prints a line per scanned file.
func WithVerbose(verbose bool) SimpleOption {
	return func(s *SimpleUI) {
		s.verbose = verbose
	}
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command, opts RenderOptions, options ...SimpleOption) *SimpleUI {
	s := &SimpleUI{cmd: cmd, opts: opts}
	for _, opt := range options {
		opt(s)
	}

	return s
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.config = newStartConfig(options)

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// DisplayGraphResolved reports the size of the scan.
func (s *SimpleUI) DisplayGraphResolved(ctx context.Context, packages int, files int) {
	if ctx.Err() != nil || !s.verbose {
		return
	}

	s.errorf("Scanning %d file(s) in %d package(s)\n", files, packages)
}

// DisplayFileScanned prints the file when verbose.
func (s *SimpleUI) DisplayFileScanned(ctx context.Context, metrics m.FileMetrics) {
	if ctx.Err() != nil || !s.verbose {
		return
	}

	if metrics.Failed {
		s.errorf("Failed %s\n", metrics.Path)
		return
	}

	s.errorf("Scanned %s\n", metrics.Path)
}

// DisplayWarning prints a warning to stderr so it never mixes with structured output.
func (s *SimpleUI) DisplayWarning(ctx context.Context, message string) {
	if ctx.Err() != nil {
		return
	}

	s.errorf("WARNING: %s\n", message)
}

// DisplayReport prints the report in the configured format.
func (s *SimpleUI) DisplayReport(ctx context.Context, report *m.SafetyReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return writeReport(s.cmd.OutOrStdout(), report, s.renderOptions())
}

// DisplayFileMetrics prints per-file counters.
func (s *SimpleUI) DisplayFileMetrics(ctx context.Context, files []m.FileMetrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return writeFileMetrics(s.cmd.OutOrStdout(), files, s.opts)
}

func (s *SimpleUI) renderOptions() RenderOptions {
	opts := s.opts
	opts.ForbidOnly = s.config.mode == ModeForbid

	return opts
}

func (s *SimpleUI) errorf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), format, args...)
}
