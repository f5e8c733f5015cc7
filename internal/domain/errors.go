package domain

import (
	"errors"
	"fmt"

	m "rads.dev/pkg/rads/internal/model"
)

// ErrGraphResolution marks a failure to obtain the dependency graph. It is fatal to a run.
var ErrGraphResolution = errors.New("dependency graph resolution failed")

// ErrRootNotFound is returned when the requested root is not a node of the graph.
var ErrRootNotFound = errors.New("root package not found in graph")

// ParseFailedError reports a source file that could not be parsed.
type ParseFailedError struct {
	Path       m.Path
	Diagnostic string
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("parse failed: %s: %s", e.Path, e.Diagnostic)
}
