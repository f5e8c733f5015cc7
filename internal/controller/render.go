package controller

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	m "rads.dev/pkg/rads/internal/model"
)

// Charset selects the glyphs used for vines and classification symbols.
type Charset string

// Available charsets.
const (
	CharsetUTF8  Charset = "utf8"
	CharsetASCII Charset = "ascii"
)

// Prefix selects what is printed before each package name in the tree.
type Prefix string

// Available prefixes.
const (
	PrefixIndent Prefix = "indent"
	PrefixDepth  Prefix = "depth"
	PrefixNone   Prefix = "none"
)

// OutputFormat selects how a report is written.
type OutputFormat string

// Available output formats.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// ErrInvalidOption is returned when a render option cannot be parsed.
var ErrInvalidOption = errors.New("invalid render option")

// ParseCharset validates a charset name.
func ParseCharset(s string) (Charset, error) {
	switch Charset(strings.ToLower(s)) {
	case CharsetUTF8, "utf-8", "":
		return CharsetUTF8, nil
	case CharsetASCII:
		return CharsetASCII, nil
	}

	return "", fmt.Errorf("%w: charset %q", ErrInvalidOption, s)
}

// ParsePrefix validates a prefix name.
func ParsePrefix(s string) (Prefix, error) {
	switch Prefix(strings.ToLower(s)) {
	case PrefixIndent, "":
		return PrefixIndent, nil
	case PrefixDepth:
		return PrefixDepth, nil
	case PrefixNone:
		return PrefixNone, nil
	}

	return "", fmt.Errorf("%w: prefix %q", ErrInvalidOption, s)
}

// ParseOutputFormat validates an output format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	case OutputYAML, "yml":
		return OutputYAML, nil
	}

	return "", fmt.Errorf("%w: output format %q", ErrInvalidOption, s)
}

// RenderOptions controls the text report.
type RenderOptions struct {
	Charset Charset
	Prefix  Prefix
	Format  OutputFormat
	Color   bool
	// ForbidOnly renders the forbid-only tree: a symbol per package and no counters.
	ForbidOnly bool
}

type symbols struct {
	forbids, unknown, unsafe string
	down, tee, ell, right    string
}

func symbolsFor(c Charset) symbols {
	if c == CharsetASCII {
		return symbols{
			forbids: ":)", unknown: "?", unsafe: "!",
			down: "|", tee: "|", ell: "`", right: "-",
		}
	}

	return symbols{
		forbids: "🔒", unknown: "❓", unsafe: "☢️",
		down: "│", tee: "├", ell: "└", right: "─",
	}
}

func (s symbols) glyph(c m.Classification) string {
	switch c {
	case m.Forbidden:
		return s.forbids
	case m.UnsafeFound:
		return s.unsafe
	case m.CleanUnforbidden:
		return s.unknown
	}

	return s.unknown
}

var counterHeaders = []string{"Functions ", "Expressions ", "Impls ", "Traits ", "Methods ", "Dependency"}

const (
	rowFormat     = "%-10s %-12s %-6s %-7s %-7s"
	truncatedMark = " (*)"
)

// TreeRenderer writes a SafetyReport as the annotated dependency tree.
type TreeRenderer struct {
	opts    RenderOptions
	sym     symbols
	palette palette
}

// NewTreeRenderer creates a renderer. Zero option values fall back to utf8 and indent.
func NewTreeRenderer(opts RenderOptions) *TreeRenderer {
	if opts.Charset == "" {
		opts.Charset = CharsetUTF8
	}

	if opts.Prefix == "" {
		opts.Prefix = PrefixIndent
	}

	return &TreeRenderer{
		opts:    opts,
		sym:     symbolsFor(opts.Charset),
		palette: newPalette(opts.Color),
	}
}

// Render writes the key, the tree and the totals footer. The output for a given
// report and options is byte-identical across runs.
func (r *TreeRenderer) Render(w io.Writer, report *m.SafetyReport) error {
	lines := r.Lines(report)

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	_, err := w.Write(buf.Bytes())

	return err
}

// Lines returns the rendered report one line per entry.
func (r *TreeRenderer) Lines(report *m.SafetyReport) []string {
	if r.opts.ForbidOnly {
		return r.forbidLines(report)
	}

	reports := indexReports(report)

	lines := r.keyLines()
	lines = append(lines, strings.Join(counterHeaders, " "), "")

	walkTree(report.Tree, nil, func(node *m.DisplayNode, levels []bool) {
		lines = append(lines, r.packageLine(node, levels, reports))
	})

	footer := formatRow(report.Totals.Counters)
	lines = append(lines, "", r.palette.classified(report.Totals.Status, footer), "")

	return lines
}

func (r *TreeRenderer) keyLines() []string {
	return []string{
		"",
		"Metric output format: x/y",
		"    x = unsafe code used by the build",
		"    y = total unsafe code found in the crate",
		"",
		"Symbols: ",
		fmt.Sprintf("    %-2s = No `unsafe` usage found, declares #![forbid(unsafe_code)]", r.sym.forbids),
		fmt.Sprintf("    %-2s = No `unsafe` usage found, missing #![forbid(unsafe_code)]", r.sym.unknown),
		fmt.Sprintf("    %-2s = `unsafe` usage found", r.sym.unsafe),
		"",
	}
}

func (r *TreeRenderer) packageLine(node *m.DisplayNode, levels []bool, reports map[string]m.PackageReport) string {
	name := r.nodeName(node)
	vines := r.vines(levels)

	pkg, ok := reports[node.ID.Key()]
	if !ok {
		row := strings.Repeat(" ", len(formatRow(m.UnsafeCounters{})))
		return fmt.Sprintf("%s  %-2s %s%s", row, r.sym.unknown, vines, name)
	}

	row := r.palette.classified(pkg.Classification, formatRow(pkg.Counters))
	glyph := fmt.Sprintf("%-2s", r.sym.glyph(pkg.Classification))

	line := fmt.Sprintf("%s  %s %s%s", row, glyph, vines, r.palette.classified(pkg.Classification, name))
	if pkg.Incomplete() {
		line += " [incomplete]"
	}

	return line
}

func (r *TreeRenderer) forbidLines(report *m.SafetyReport) []string {
	lines := []string{
		"",
		"Symbols:",
		fmt.Sprintf("    %-2s = All entry point .rs files declare #![forbid(unsafe_code)].", r.sym.forbids),
		fmt.Sprintf("    %-2s = This crate may use unsafe code.", r.sym.unknown),
		"",
	}

	reports := indexReports(report)

	walkTree(report.Tree, nil, func(node *m.DisplayNode, levels []bool) {
		name := r.nodeName(node)

		symbol := r.sym.unknown
		styled := r.palette.render(r.palette.unsafe, name)

		if pkg, ok := reports[node.ID.Key()]; ok && pkg.ForbidsUnsafe {
			symbol = r.sym.forbids
			styled = r.palette.render(r.palette.forbidden, name)
		}

		lines = append(lines, fmt.Sprintf("%s %s%s", symbol, r.vines(levels), styled))
	})

	return lines
}

func (r *TreeRenderer) nodeName(node *m.DisplayNode) string {
	name := node.ID.String()

	if node.KindNames != "" {
		name += " [" + node.KindNames + "]"
	}

	if node.Truncated {
		name += truncatedMark
	}

	return name
}

// vines builds the tree prefix. levels holds, per ancestor level, whether more
// siblings follow at that level.
func (r *TreeRenderer) vines(levels []bool) string {
	switch r.opts.Prefix {
	case PrefixNone:
		return ""
	case PrefixDepth:
		return fmt.Sprintf("%d ", len(levels))
	case PrefixIndent:
	}

	if len(levels) == 0 {
		return ""
	}

	var b strings.Builder

	for _, more := range levels[:len(levels)-1] {
		if more {
			b.WriteString(r.sym.down)
		} else {
			b.WriteString(" ")
		}

		b.WriteString("   ")
	}

	if levels[len(levels)-1] {
		b.WriteString(r.sym.tee)
	} else {
		b.WriteString(r.sym.ell)
	}

	b.WriteString(r.sym.right)
	b.WriteString(r.sym.right)
	b.WriteString(" ")

	return b.String()
}

// walkTree visits the tree in pre-order.
func walkTree(node *m.DisplayNode, levels []bool, visit func(*m.DisplayNode, []bool)) {
	if node == nil {
		return
	}

	visit(node, levels)

	for i, child := range node.Children {
		next := make([]bool, len(levels)+1)
		copy(next, levels)
		next[len(levels)] = i < len(node.Children)-1

		walkTree(child, next, visit)
	}
}

func indexReports(report *m.SafetyReport) map[string]m.PackageReport {
	out := make(map[string]m.PackageReport, len(report.Packages))
	for _, p := range report.Packages {
		out[p.ID.Key()] = p
	}

	return out
}

func formatRow(c m.UnsafeCounters) string {
	pairs := c.Pairs()

	cells := make([]any, len(pairs))
	for i, p := range pairs {
		cells[i] = fmt.Sprintf("%d/%d", p.Used, p.Total)
	}

	return fmt.Sprintf(rowFormat, cells...)
}

// RenderSummaryTable renders package counts per classification.
func RenderSummaryTable(totals m.Totals) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Classification", "Packages"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	table.Append([]string{"forbids unsafe", fmt.Sprintf("%d", totals.Forbidden)})
	table.Append([]string{"no unsafe found", fmt.Sprintf("%d", totals.CleanUnforbidden)})
	table.Append([]string{"unsafe found", fmt.Sprintf("%d", totals.UnsafeFound)})

	if totals.Incomplete > 0 {
		table.Append([]string{"incomplete scan", fmt.Sprintf("%d", totals.Incomplete)})
	}

	table.SetFooter([]string{
		"Total",
		fmt.Sprintf("%d", totals.Forbidden+totals.CleanUnforbidden+totals.UnsafeFound),
	})

	table.Render()

	return tableBuffer.String()
}

// RenderFileTable renders per-file unsafe counts, sorted by path.
func RenderFileTable(files []m.FileMetrics, charset Charset) string {
	sym := symbolsFor(charset)

	sorted := make([]m.FileMetrics, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"", "Path", "Functions", "Expressions", "Impls", "Traits", "Methods"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})

	var total m.CounterBlock

	failed := 0

	for _, f := range sorted {
		if f.Failed {
			failed++

			table.Append([]string{sym.unknown, string(f.Path), "parse failed", "", "", "", ""})

			continue
		}

		total = total.Add(f.Counters)

		table.Append(append([]string{fileGlyph(sym, f), string(f.Path)}, blockCells(f.Counters)...))
	}

	footer := fmt.Sprintf("Total Files %d", len(sorted))
	if failed > 0 {
		footer = fmt.Sprintf("Total Files %d (%d failed)", len(sorted), failed)
	}

	table.SetFooter(append([]string{"", footer}, blockCells(total)...))
	table.Render()

	return tableBuffer.String()
}

func fileGlyph(sym symbols, f m.FileMetrics) string {
	switch {
	case f.Counters.HasUnsafe():
		return sym.unsafe
	case f.Suppression.Root == m.ScopeForbidden:
		return sym.forbids
	default:
		return sym.unknown
	}
}

func blockCells(b m.CounterBlock) []string {
	return []string{
		fmt.Sprintf("%d", b.Functions.Unsafe),
		fmt.Sprintf("%d", b.Exprs.Unsafe),
		fmt.Sprintf("%d", b.ItemImpls.Unsafe),
		fmt.Sprintf("%d", b.ItemTraits.Unsafe),
		fmt.Sprintf("%d", b.Methods.Unsafe),
	}
}
