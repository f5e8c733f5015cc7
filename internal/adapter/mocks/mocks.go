// Package mocks provides testify mocks of the adapter interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"rads.dev/pkg/rads/internal/adapter"
	m "rads.dev/pkg/rads/internal/model"
)

var (
	_ adapter.MetadataAdapter  = (*MockMetadataAdapter)(nil)
	_ adapter.BuildInterceptor = (*MockBuildInterceptor)(nil)
	_ adapter.ObjectStore      = (*MockObjectStore)(nil)
	_ adapter.HistoryStore     = (*MockHistoryStore)(nil)
)

// MockMetadataAdapter is a mock of adapter.MetadataAdapter.
type MockMetadataAdapter struct {
	mock.Mock
}

// MockMetadataAdapter_Expecter records expectations.
type MockMetadataAdapter_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the expecter of the mock.
func (_m *MockMetadataAdapter) EXPECT() *MockMetadataAdapter_Expecter {
	return &MockMetadataAdapter_Expecter{mock: &_m.Mock}
}

// Resolve provides a mock function.
func (_m *MockMetadataAdapter) Resolve(ctx context.Context, args adapter.ResolveArgs) (*m.Graph, error) {
	ret := _m.Called(ctx, args)

	var graph *m.Graph
	if g, ok := ret.Get(0).(*m.Graph); ok {
		graph = g
	}

	return graph, ret.Error(1)
}

// Resolve expects a call to Resolve.
func (_e *MockMetadataAdapter_Expecter) Resolve(ctx interface{}, args interface{}) *mock.Call {
	return _e.mock.On("Resolve", ctx, args)
}

// MockBuildInterceptor is a mock of adapter.BuildInterceptor.
type MockBuildInterceptor struct {
	mock.Mock
}

// MockBuildInterceptor_Expecter records expectations.
type MockBuildInterceptor_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the expecter of the mock.
func (_m *MockBuildInterceptor) EXPECT() *MockBuildInterceptor_Expecter {
	return &MockBuildInterceptor_Expecter{mock: &_m.Mock}
}

// Build provides a mock function.
func (_m *MockBuildInterceptor) Build(ctx context.Context, args adapter.ResolveArgs) error {
	ret := _m.Called(ctx, args)
	return ret.Error(0)
}

// Build expects a call to Build.
func (_e *MockBuildInterceptor_Expecter) Build(ctx interface{}, args interface{}) *mock.Call {
	return _e.mock.On("Build", ctx, args)
}

// UsedFiles provides a mock function.
func (_m *MockBuildInterceptor) UsedFiles(ctx context.Context, targetDir m.Path) (map[m.Path]struct{}, error) {
	ret := _m.Called(ctx, targetDir)

	var used map[m.Path]struct{}
	if u, ok := ret.Get(0).(map[m.Path]struct{}); ok {
		used = u
	}

	return used, ret.Error(1)
}

// UsedFiles expects a call to UsedFiles.
func (_e *MockBuildInterceptor_Expecter) UsedFiles(ctx interface{}, targetDir interface{}) *mock.Call {
	return _e.mock.On("UsedFiles", ctx, targetDir)
}

// MockObjectStore is a mock of adapter.ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

// MockObjectStore_Expecter records expectations.
type MockObjectStore_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the expecter of the mock.
func (_m *MockObjectStore) EXPECT() *MockObjectStore_Expecter {
	return &MockObjectStore_Expecter{mock: &_m.Mock}
}

// Upload provides a mock function.
func (_m *MockObjectStore) Upload(ctx context.Context, key, filePath, contentType string) error {
	ret := _m.Called(ctx, key, filePath, contentType)
	return ret.Error(0)
}

// Upload expects a call to Upload.
func (_e *MockObjectStore_Expecter) Upload(ctx, key, filePath, contentType interface{}) *mock.Call {
	return _e.mock.On("Upload", ctx, key, filePath, contentType)
}

// MockHistoryStore is a mock of adapter.HistoryStore.
type MockHistoryStore struct {
	mock.Mock
}

// MockHistoryStore_Expecter records expectations.
type MockHistoryStore_Expecter struct {
	mock *mock.Mock
}

// EXPECT returns the expecter of the mock.
func (_m *MockHistoryStore) EXPECT() *MockHistoryStore_Expecter {
	return &MockHistoryStore_Expecter{mock: &_m.Mock}
}

// EnsureSchema provides a mock function.
func (_m *MockHistoryStore) EnsureSchema(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// EnsureSchema expects a call to EnsureSchema.
func (_e *MockHistoryStore_Expecter) EnsureSchema(ctx interface{}) *mock.Call {
	return _e.mock.On("EnsureSchema", ctx)
}

// RecordRun provides a mock function.
func (_m *MockHistoryStore) RecordRun(ctx context.Context, report *m.SafetyReport, finishedAt time.Time) error {
	ret := _m.Called(ctx, report, finishedAt)
	return ret.Error(0)
}

// RecordRun expects a call to RecordRun.
func (_e *MockHistoryStore_Expecter) RecordRun(ctx, report, finishedAt interface{}) *mock.Call {
	return _e.mock.On("RecordRun", ctx, report, finishedAt)
}

// Close provides a mock function.
func (_m *MockHistoryStore) Close() {
	_m.Called()
}

// Close expects a call to Close.
func (_e *MockHistoryStore_Expecter) Close() *mock.Call {
	return _e.mock.On("Close")
}
