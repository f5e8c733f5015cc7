package controller

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	m "rads.dev/pkg/rads/internal/model"
)

var (
	colorForbidden = lipgloss.Color("#2ECC71")
	colorUnsafe    = lipgloss.Color("#E74C3C")
	colorWarning   = lipgloss.Color("#F4D03F")
	colorMuted     = lipgloss.Color("#7F8C8D")
)

// palette colours output by classification. A disabled palette renders plain text.
type palette struct {
	enabled   bool
	forbidden lipgloss.Style
	unsafe    lipgloss.Style
	warning   lipgloss.Style
	muted     lipgloss.Style
	bold      lipgloss.Style
}

func newPalette(enabled bool) palette {
	return palette{
		enabled:   enabled,
		forbidden: lipgloss.NewStyle().Foreground(colorForbidden),
		unsafe:    lipgloss.NewStyle().Foreground(colorUnsafe).Bold(true),
		warning:   lipgloss.NewStyle().Foreground(colorWarning),
		muted:     lipgloss.NewStyle().Foreground(colorMuted),
		bold:      lipgloss.NewStyle().Bold(true),
	}
}

func (p palette) classified(c m.Classification, s string) string {
	if !p.enabled {
		return s
	}

	switch c {
	case m.Forbidden:
		return p.forbidden.Render(s)
	case m.UnsafeFound:
		return p.unsafe.Render(s)
	case m.CleanUnforbidden:
		return s
	}

	return s
}

func (p palette) render(style lipgloss.Style, s string) string {
	if !p.enabled {
		return s
	}

	return style.Render(s)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
