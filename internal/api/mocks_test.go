package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/p-arndt/ipyboxd/internal/containermgr"
)

// MockContainerManager is a testify mock satisfying ContainerManager.
type MockContainerManager struct {
	mock.Mock
}

func (m *MockContainerManager) Create(ctx context.Context, opts containermgr.CreateOpts) (*containermgr.ContainerRecord, error) {
	args := m.Called(ctx, opts)
	return recordOrNil(args.Get(0)), args.Error(1)
}

func (m *MockContainerManager) Get(id string) (*containermgr.ContainerRecord, error) {
	args := m.Called(id)
	return recordOrNil(args.Get(0)), args.Error(1)
}

func (m *MockContainerManager) Info(id string) (*containermgr.ContainerRecord, error) {
	args := m.Called(id)
	return recordOrNil(args.Get(0)), args.Error(1)
}

func (m *MockContainerManager) List() []containermgr.ContainerRecord {
	args := m.Called()
	if recs, ok := args.Get(0).([]containermgr.ContainerRecord); ok {
		return recs
	}
	return nil
}

func (m *MockContainerManager) Destroy(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockContainerManager) RegisterExecution(containerID, executionID string) {
	m.Called(containerID, executionID)
}

func (m *MockContainerManager) CompleteExecution(executionID string, execErr error) error {
	args := m.Called(executionID, execErr)
	return args.Error(0)
}

func (m *MockContainerManager) ExecutionStatus(executionID string) (*containermgr.ExecutionRecord, error) {
	args := m.Called(executionID)
	if rec, ok := args.Get(0).(*containermgr.ExecutionRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func recordOrNil(v any) *containermgr.ContainerRecord {
	if rec, ok := v.(*containermgr.ContainerRecord); ok {
		return rec
	}
	return nil
}
