package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	m "rads.dev/pkg/rads/internal/model"
)

const maxShownWarnings = 5

// TUI implements UI using Bubble Tea: a live progress view while scanning and
// a pager for reports taller than the terminal.
type TUI struct {
	output io.Writer
	opts   RenderOptions
	config StartConfig

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer, opts RenderOptions) *TUI {
	return &TUI{output: output, opts: opts}
}

// Start launches the progress view.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.config = newStartConfig(options)

	program := tea.NewProgram(
		newProgressModel(t.config.mode),
		tea.WithOutput(t.output),
		tea.WithInput(nil),
		tea.WithContext(ctx),
	)

	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = program.Run()
	}()

	t.program = program
	t.done = done

	return nil
}

// Close stops the progress view.
func (t *TUI) Close(_ context.Context) {
	t.stop()
}

// Wait blocks until the progress view has exited.
func (t *TUI) Wait(ctx context.Context) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// DisplayGraphResolved sets the progress total.
func (t *TUI) DisplayGraphResolved(_ context.Context, packages int, files int) {
	t.send(graphResolvedMsg{packages: packages, files: files})
}

// DisplayFileScanned advances the progress bar.
func (t *TUI) DisplayFileScanned(_ context.Context, metrics m.FileMetrics) {
	t.send(fileScannedMsg{path: string(metrics.Path), failed: metrics.Failed})
}

// DisplayWarning shows a warning under the progress bar.
func (t *TUI) DisplayWarning(_ context.Context, message string) {
	t.send(warningMsg(message))
}

// DisplayReport stops the progress view and shows the report.
func (t *TUI) DisplayReport(ctx context.Context, report *m.SafetyReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.stop()

	opts := t.opts
	opts.ForbidOnly = t.config.mode == ModeForbid

	var buf bytes.Buffer
	if err := writeReport(&buf, report, opts); err != nil {
		return err
	}

	return t.page(buf.String(), opts.Format == OutputText || opts.Format == "")
}

// DisplayFileMetrics stops the progress view and shows per-file counters.
func (t *TUI) DisplayFileMetrics(ctx context.Context, files []m.FileMetrics) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.stop()

	var buf bytes.Buffer
	if err := writeFileMetrics(&buf, files, t.opts); err != nil {
		return err
	}

	return t.page(buf.String(), t.opts.Format == OutputText || t.opts.Format == "")
}

func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

func (t *TUI) stop() {
	t.mu.Lock()
	program, done := t.program, t.done
	t.program = nil
	t.mu.Unlock()

	if program == nil {
		return
	}

	program.Send(finishedMsg{})
	<-done
}

// page prints content directly unless it is text taller than the terminal.
func (t *TUI) page(content string, pageable bool) error {
	height := 0

	if f, ok := t.output.(*os.File); ok {
		if _, h, err := term.GetSize(f.Fd()); err == nil {
			height = h
		}
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")

	pager := newReportPager(lines)
	if !pageable || !pager.needsPagination(height) {
		_, err := io.WriteString(t.output, content)
		return err
	}

	program := tea.NewProgram(pager, tea.WithOutput(t.output), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

type graphResolvedMsg struct {
	packages int
	files    int
}

type fileScannedMsg struct {
	path   string
	failed bool
}

type warningMsg string

type finishedMsg struct{}

// progressModel is the Bubble Tea model of the live scan view.
type progressModel struct {
	mode     StartMode
	spinner  spinner.Model
	bar      progress.Model
	packages int
	total    int
	scanned  int
	failed   int
	current  string
	warnings []string
	finished bool
}

func newProgressModel(mode StartMode) progressModel {
	return progressModel{
		mode:    mode,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (pm progressModel) Init() tea.Cmd {
	return pm.spinner.Tick
}

func (pm progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case graphResolvedMsg:
		pm.packages = msg.packages
		pm.total = msg.files

		return pm, nil
	case fileScannedMsg:
		pm.scanned++
		pm.current = msg.path

		if msg.failed {
			pm.failed++
		}

		return pm, nil
	case warningMsg:
		pm.warnings = append(pm.warnings, string(msg))
		if len(pm.warnings) > maxShownWarnings {
			pm.warnings = pm.warnings[len(pm.warnings)-maxShownWarnings:]
		}

		return pm, nil
	case finishedMsg:
		pm.finished = true

		return pm, tea.Quit
	case tea.WindowSizeMsg:
		pm.bar.Width = min(max(msg.Width-20, 10), 60)

		return pm, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		pm.spinner, cmd = pm.spinner.Update(msg)

		return pm, cmd
	}

	return pm, nil
}

func (pm progressModel) percent() float64 {
	if pm.total == 0 {
		return 0
	}

	return min(float64(pm.scanned)/float64(pm.total), 1)
}

func (pm progressModel) View() string {
	if pm.finished {
		return ""
	}

	var b strings.Builder

	title := "Scanning"
	if pm.mode == ModeForbid {
		title = "Checking entry points"
	}

	if pm.total == 0 {
		fmt.Fprintf(&b, "%s %s: resolving dependency graph\n", pm.spinner.View(), title)
	} else {
		fmt.Fprintf(&b, "%s %s %d package(s)\n", pm.spinner.View(), title, pm.packages)
		fmt.Fprintf(&b, "  %s %d/%d", pm.bar.ViewAs(pm.percent()), pm.scanned, pm.total)

		if pm.failed > 0 {
			fmt.Fprintf(&b, " (%d failed)", pm.failed)
		}

		b.WriteString("\n")
	}

	if pm.current != "" {
		fmt.Fprintf(&b, "  %s\n", pm.current)
	}

	for _, w := range pm.warnings {
		fmt.Fprintf(&b, "  WARNING: %s\n", w)
	}

	return b.String()
}

// reportPager scrolls through a rendered report.
type reportPager struct {
	lines    []string
	viewport viewport.Model
	ready    bool
}

const pagerFooterHeight = 2

func newReportPager(lines []string) reportPager {
	return reportPager{lines: lines}
}

func (rp reportPager) needsPagination(height int) bool {
	return height > 0 && len(rp.lines) > height-pagerFooterHeight
}

func (rp reportPager) Init() tea.Cmd {
	return nil
}

func (rp reportPager) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-pagerFooterHeight, 1)

		if !rp.ready {
			rp.viewport = viewport.New(msg.Width, height)
			rp.viewport.SetContent(strings.Join(rp.lines, "\n"))
			rp.ready = true
		} else {
			rp.viewport.Width = msg.Width
			rp.viewport.Height = height
		}

		return rp, nil
	case tea.KeyMsg:
		return rp.handleKeyPress(msg)
	}

	return rp, nil
}

//nolint:exhaustive // We only handle specific navigation keys
func (rp reportPager) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return rp, tea.Quit
	default:
	}

	switch msg.String() {
	case "q":
		return rp, tea.Quit
	case "down", "j":
		rp.viewport.LineDown(1)
	case "up", "k":
		rp.viewport.LineUp(1)
	case "d", "pgdown":
		rp.viewport.HalfViewDown()
	case "u", "pgup":
		rp.viewport.HalfViewUp()
	case "g", "home":
		rp.viewport.GotoTop()
	case "G", "end":
		rp.viewport.GotoBottom()
	}

	return rp, nil
}

func (rp reportPager) View() string {
	if !rp.ready {
		return ""
	}

	first := rp.viewport.YOffset + 1
	last := min(rp.viewport.YOffset+rp.viewport.Height, len(rp.lines))

	return fmt.Sprintf("%s\n\n  Lines %d-%d of %d | ↑/k: up | ↓/j: down | g: top | G: bottom | q: quit",
		rp.viewport.View(), first, last, len(rp.lines))
}
