package containermgr

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockRuntime mocks the Runtime interface.
type MockRuntime struct {
	mock.Mock
}

func (m *MockRuntime) Start(ctx context.Context, containerID, tag string, binds, env map[string]string) (string, string, string, error) {
	args := m.Called(ctx, containerID, tag, binds, env)
	return args.String(0), args.String(1), args.String(2), args.Error(3)
}

func (m *MockRuntime) Stop(ctx context.Context, runtimeID string) error {
	args := m.Called(ctx, runtimeID)
	return args.Error(0)
}
