package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	m "rads.dev/pkg/rads/internal/model"
)

// ReportFormat is a serialization format for safety reports.
type ReportFormat string

// Supported report formats.
const (
	FormatJSON ReportFormat = "json"
	FormatYAML ReportFormat = "yaml"
)

// ErrUnknownFormat is returned for unsupported report formats.
var ErrUnknownFormat = errors.New("unknown report format")

// ParseReportFormat validates a format name.
func ParseReportFormat(name string) (ReportFormat, error) {
	switch strings.ToLower(name) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatForPath picks the format from a file extension, defaulting to JSON.
func FormatForPath(path m.Path) ReportFormat {
	switch strings.ToLower(filepath.Ext(string(path))) {
	case ".yaml", ".yml":
		return FormatYAML
	}

	return FormatJSON
}

// EncodeReport writes the report in the given format.
func EncodeReport(w io.Writer, report *m.SafetyReport, format ReportFormat) error {
	return Encode(w, report, format)
}

// Encode writes any serializable value in the given format.
func Encode(w io.Writer, v any, format ReportFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	}

	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// DecodeReport reads a report in the given format.
func DecodeReport(r io.Reader, format ReportFormat) (*m.SafetyReport, error) {
	var report m.SafetyReport

	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&report); err != nil {
			return nil, fmt.Errorf("decode json report: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&report); err != nil {
			return nil, fmt.Errorf("decode yaml report: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return &report, nil
}

// ReportStore persists safety reports.
type ReportStore interface {
	SaveReport(path m.Path, report *m.SafetyReport) error
	LoadReport(path m.Path) (*m.SafetyReport, error)
}

// FileReportStore stores reports as JSON or YAML files chosen by extension.
type FileReportStore struct{}

// NewFileReportStore creates a FileReportStore.
func NewFileReportStore() *FileReportStore {
	return &FileReportStore{}
}

// SaveReport writes the report atomically through a temp file in the same directory.
func (s *FileReportStore) SaveReport(path m.Path, report *m.SafetyReport) error {
	dir := filepath.Dir(string(path))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := EncodeReport(tmp, report, FormatForPath(path)); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}

	if err := os.Rename(tmp.Name(), string(path)); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	return nil
}

// LoadReport reads a report written by SaveReport.
func (s *FileReportStore) LoadReport(path m.Path) (*m.SafetyReport, error) {
	// #nosec G304 - report path is provided by the user on purpose
	f, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}

	defer func() { _ = f.Close() }()

	return DecodeReport(f, FormatForPath(path))
}
