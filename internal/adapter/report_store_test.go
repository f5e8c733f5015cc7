package adapter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "rads.dev/pkg/rads/internal/model"
)

func sampleReport() *m.SafetyReport {
	root := m.PackageID{Name: "app", Version: "0.1.0", Source: m.Source{Kind: m.SourcePath, URL: "/work/app"}}
	libc := m.PackageID{Name: "libc", Version: "0.2.150", Source: m.Source{Kind: m.SourceRegistry, URL: crates}}

	return &m.SafetyReport{
		RunID: "run-1",
		Root:  root,
		Packages: []m.PackageReport{
			{
				ID:             root,
				ForbidsUnsafe:  true,
				Classification: m.Forbidden,
				FilesScanned:   2,
			},
			{
				ID:             libc,
				Used:           m.CounterBlock{Functions: m.Count{Unsafe: 12, Safe: 3}},
				Counters:       m.UnsafeCounters{Functions: m.UsageCount{Used: 12, Total: 14}},
				Classification: m.UnsafeFound,
				FilesScanned:   40,
				FailedFiles:    []m.Path{"/cargo/libc/src/weird.rs"},
			},
		},
		UsedButNotScannedFiles: []m.Path{"/work/app/target/out/gen.rs"},
		Tree: &m.DisplayNode{
			ID: root,
			Children: []*m.DisplayNode{
				{ID: libc, Depth: 1, KindNames: "normal,build"},
			},
		},
		Totals: m.Totals{Forbidden: 1, UnsafeFound: 1, Incomplete: 1, Status: m.UnsafeFound},
	}
}

func TestEncodeDecodeReport(t *testing.T) {
	for _, format := range []ReportFormat{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, EncodeReport(&buf, sampleReport(), format))

			got, err := DecodeReport(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, sampleReport(), got)
		})
	}
}

func TestEncodeReport_ClassificationAsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeReport(&buf, sampleReport(), FormatJSON))
	assert.Contains(t, buf.String(), `"classification": "forbidden"`)

	buf.Reset()
	require.NoError(t, EncodeReport(&buf, sampleReport(), FormatYAML))
	assert.Contains(t, buf.String(), "classification: unsafe")
}

func TestParseReportFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ReportFormat
		wantErr bool
	}{
		{in: "json", want: FormatJSON},
		{in: "YAML", want: FormatYAML},
		{in: "yml", want: FormatYAML},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReportFormat(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownFormat)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, FormatYAML, FormatForPath("out/report.yml"))
	assert.Equal(t, FormatJSON, FormatForPath("out/report"))
}

func TestFileReportStore(t *testing.T) {
	store := NewFileReportStore()

	for _, name := range []string{"report.json", "nested/report.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := m.Path(filepath.Join(t.TempDir(), name))

			require.NoError(t, store.SaveReport(path, sampleReport()))

			got, err := store.LoadReport(path)
			require.NoError(t, err)
			assert.Equal(t, sampleReport(), got)

			entries, err := os.ReadDir(filepath.Dir(string(path)))
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}

	_, err := store.LoadReport(m.Path(filepath.Join(t.TempDir(), "missing.json")))
	require.Error(t, err)
}
