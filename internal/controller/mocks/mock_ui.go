// Package mocks provides testify mocks of the controller interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rads.dev/pkg/rads/internal/controller"
	m "rads.dev/pkg/rads/internal/model"
)

// MockUI is a mock of controller.UI.
type MockUI struct {
	mock.Mock
}

var _ controller.UI = (*MockUI)(nil)

// MockUI_Expecter records expectations with typed argument lists.
type MockUI_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the expecter of the mock.
func (_m *MockUI) EXPECT() *MockUI_Expecter {
	return &MockUI_Expecter{mock: &_m.Mock}
}

// Start provides a mock function.
func (_m *MockUI) Start(ctx context.Context, options ...controller.StartOption) error {
	ret := _m.Called(ctx, options)
	return ret.Error(0)
}

// Start expects a call to Start.
func (_e *MockUI_Expecter) Start(ctx interface{}, options interface{}) *mock.Call {
	return _e.mock.On("Start", ctx, options)
}

// Close provides a mock function.
func (_m *MockUI) Close(ctx context.Context) {
	_m.Called(ctx)
}

// Close expects a call to Close.
func (_e *MockUI_Expecter) Close(ctx interface{}) *mock.Call {
	return _e.mock.On("Close", ctx)
}

// Wait provides a mock function.
func (_m *MockUI) Wait(ctx context.Context) {
	_m.Called(ctx)
}

// Wait expects a call to Wait.
func (_e *MockUI_Expecter) Wait(ctx interface{}) *mock.Call {
	return _e.mock.On("Wait", ctx)
}

// DisplayGraphResolved provides a mock function.
func (_m *MockUI) DisplayGraphResolved(ctx context.Context, packages int, files int) {
	_m.Called(ctx, packages, files)
}

// DisplayGraphResolved expects a call to DisplayGraphResolved.
func (_e *MockUI_Expecter) DisplayGraphResolved(ctx interface{}, packages interface{}, files interface{}) *mock.Call {
	return _e.mock.On("DisplayGraphResolved", ctx, packages, files)
}

// DisplayFileScanned provides a mock function.
func (_m *MockUI) DisplayFileScanned(ctx context.Context, metrics m.FileMetrics) {
	_m.Called(ctx, metrics)
}

// DisplayFileScanned expects a call to DisplayFileScanned.
func (_e *MockUI_Expecter) DisplayFileScanned(ctx interface{}, metrics interface{}) *mock.Call {
	return _e.mock.On("DisplayFileScanned", ctx, metrics)
}

// DisplayWarning provides a mock function.
func (_m *MockUI) DisplayWarning(ctx context.Context, message string) {
	_m.Called(ctx, message)
}

// DisplayWarning expects a call to DisplayWarning.
func (_e *MockUI_Expecter) DisplayWarning(ctx interface{}, message interface{}) *mock.Call {
	return _e.mock.On("DisplayWarning", ctx, message)
}

// DisplayReport provides a mock function.
func (_m *MockUI) DisplayReport(ctx context.Context, report *m.SafetyReport) error {
	ret := _m.Called(ctx, report)
	return ret.Error(0)
}

// DisplayReport expects a call to DisplayReport.
func (_e *MockUI_Expecter) DisplayReport(ctx interface{}, report interface{}) *mock.Call {
	return _e.mock.On("DisplayReport", ctx, report)
}

// DisplayFileMetrics provides a mock function.
func (_m *MockUI) DisplayFileMetrics(ctx context.Context, files []m.FileMetrics) error {
	ret := _m.Called(ctx, files)
	return ret.Error(0)
}

// DisplayFileMetrics expects a call to DisplayFileMetrics.
func (_e *MockUI_Expecter) DisplayFileMetrics(ctx interface{}, files interface{}) *mock.Call {
	return _e.mock.On("DisplayFileMetrics", ctx, files)
}
