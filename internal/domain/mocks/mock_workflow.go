// Package mocks provides testify mocks of the domain interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rads.dev/pkg/rads/internal/domain"
	m "rads.dev/pkg/rads/internal/model"
)

// MockWorkflow is a mock of domain.Workflow.
type MockWorkflow struct {
	mock.Mock
}

var _ domain.Workflow = (*MockWorkflow)(nil)

// NewMockWorkflow creates a MockWorkflow whose expectations are asserted on cleanup.
func NewMockWorkflow(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockWorkflow {
	mw := &MockWorkflow{}
	mw.Mock.Test(t)

	t.Cleanup(func() { mw.AssertExpectations(t) })

	return mw
}

// Scan provides a mock function.
func (_m *MockWorkflow) Scan(ctx context.Context, args domain.ScanArgs) (*m.SafetyReport, error) {
	ret := _m.Called(ctx, args)

	var report *m.SafetyReport
	if r, ok := ret.Get(0).(*m.SafetyReport); ok {
		report = r
	}

	return report, ret.Error(1)
}

// Forbid provides a mock function.
func (_m *MockWorkflow) Forbid(ctx context.Context, args domain.ScanArgs) (*m.SafetyReport, error) {
	ret := _m.Called(ctx, args)

	var report *m.SafetyReport
	if r, ok := ret.Get(0).(*m.SafetyReport); ok {
		report = r
	}

	return report, ret.Error(1)
}

// ScanFiles provides a mock function.
func (_m *MockWorkflow) ScanFiles(ctx context.Context, args domain.FilesArgs) ([]m.FileMetrics, error) {
	ret := _m.Called(ctx, args)

	var metrics []m.FileMetrics
	if fm, ok := ret.Get(0).([]m.FileMetrics); ok {
		metrics = fm
	}

	return metrics, ret.Error(1)
}
