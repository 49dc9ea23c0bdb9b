package api

import (
	"context"

	"github.com/p-arndt/ipyboxd/internal/containermgr"
)

// ContainerManager is the full container/execution registry surface the
// HTTP layer needs. *containermgr.Manager satisfies this directly.
type ContainerManager interface {
	Create(ctx context.Context, opts containermgr.CreateOpts) (*containermgr.ContainerRecord, error)
	Get(id string) (*containermgr.ContainerRecord, error)
	Info(id string) (*containermgr.ContainerRecord, error)
	List() []containermgr.ContainerRecord
	Destroy(ctx context.Context, id string) error

	RegisterExecution(containerID, executionID string)
	CompleteExecution(executionID string, execErr error) error
	ExecutionStatus(executionID string) (*containermgr.ExecutionRecord, error)
}
