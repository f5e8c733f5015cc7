package adapter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	m "rads.dev/pkg/rads/internal/model"
)

// BuildInterceptor finds out which source files a build actually compiled.
type BuildInterceptor interface {
	// Build runs `cargo check` so the target directory holds fresh dep-info files.
	Build(ctx context.Context, args ResolveArgs) error

	// UsedFiles collects the .rs files listed by the rustc dep-info files under targetDir.
	// A missing or empty directory yields an empty set, which callers treat as "no filter".
	UsedFiles(ctx context.Context, targetDir m.Path) (map[m.Path]struct{}, error)
}

// DepInfoAdapter reads rustc `.d` files.
type DepInfoAdapter struct {
	cargo string
}

// NewDepInfoAdapter creates a BuildInterceptor backed by dep-info files.
func NewDepInfoAdapter() *DepInfoAdapter {
	return &DepInfoAdapter{cargo: envOr("CARGO", "cargo")}
}

// Build runs `cargo check` on the default targets with the resolver's feature
// selection. Tests, benches and examples are not compiled, so their sources never
// count as used.
func (a *DepInfoAdapter) Build(ctx context.Context, args ResolveArgs) error {
	cmdArgs := []string{"check", "--message-format", "short"}

	if args.ManifestPath != "" {
		cmdArgs = append(cmdArgs, "--manifest-path", string(args.ManifestPath))
	}

	if args.Package != "" {
		cmdArgs = append(cmdArgs, "--package", args.Package)
	}

	if len(args.Features) > 0 {
		cmdArgs = append(cmdArgs, "--features", strings.Join(args.Features, ","))
	}

	if args.AllFeatures {
		cmdArgs = append(cmdArgs, "--all-features")
	}

	if args.NoDefaultFeatures {
		cmdArgs = append(cmdArgs, "--no-default-features")
	}

	if !args.AllTargets && args.FilterPlatform != "" {
		cmdArgs = append(cmdArgs, "--target", args.FilterPlatform)
	}

	if args.Offline {
		cmdArgs = append(cmdArgs, "--offline")
	}

	// #nosec G204 - arguments are built from validated flags
	cmd := exec.CommandContext(ctx, a.cargo, cmdArgs...)
	if args.ManifestPath != "" {
		cmd.Dir = filepath.Dir(string(args.ManifestPath))
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Info("building to collect dep-info", "args", cmdArgs)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cargo check: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

// UsedFiles walks targetDir for `*.d` files and merges their source lists.
func (a *DepInfoAdapter) UsedFiles(ctx context.Context, targetDir m.Path) (map[m.Path]struct{}, error) {
	used := make(map[m.Path]struct{})

	if targetDir == "" {
		return used, nil
	}

	err := filepath.WalkDir(string(targetDir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipAll
			}

			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if d.Name() == ".fingerprint" || d.Name() == "incremental" {
				return filepath.SkipDir
			}

			return nil
		}

		if filepath.Ext(path) != ".d" {
			return nil
		}

		// #nosec G304 - path comes from walking the build output directory
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open dep-info %s: %w", path, err)
		}

		defer func() { _ = f.Close() }()

		deps, err := ParseDepInfo(f)
		if err != nil {
			return fmt.Errorf("parse dep-info %s: %w", path, err)
		}

		for _, dep := range deps {
			if filepath.Ext(dep) == ".rs" {
				used[m.Path(filepath.Clean(dep))] = struct{}{}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("collected used files", "target_dir", targetDir, "count", len(used))

	return used, nil
}

// ParseDepInfo returns the prerequisites of every rule in a Makefile-style
// dep-info document. Escaped spaces ("\ ") are part of a path.
func ParseDepInfo(r io.Reader) ([]string, error) {
	var (
		out  []string
		seen = make(map[string]struct{})
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		sep := ruleSeparator(line)
		if sep < 0 {
			continue
		}

		for _, dep := range splitEscaped(line[sep+1:]) {
			if _, ok := seen[dep]; ok {
				continue
			}

			seen[dep] = struct{}{}
			out = append(out, dep)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// ruleSeparator finds the colon ending the rule target. A colon followed by a
// path separator belongs to a drive letter.
func ruleSeparator(line string) int {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case ':':
			if i+1 < len(line) && (line[i+1] == '\\' || line[i+1] == '/') {
				continue
			}

			return i
		}
	}

	return -1
}

func splitEscaped(s string) []string {
	var (
		out []string
		cur strings.Builder
	)

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == ' ':
			cur.WriteByte(' ')
			i++
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}

	flush()

	return out
}
