package containermgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager is the authoritative, in-memory registry of live containers and
// their executions. All mutations are serialized under one mutex; the
// reaper contends on the same lock and holds it only while snapshotting
// candidates, never while tearing down a container.
type Manager struct {
	runtime Runtime

	mu         sync.Mutex
	containers map[string]*ContainerRecord
	// runtimeIDs tracks the runtime-level id for each container id
	// separately from the public record, since callers never need to see
	// it — only Destroy needs it to tell the runtime adapter what to kill.
	runtimeIDs map[string]string
	executions map[string]*ExecutionRecord
}

func NewManager(rt Runtime) *Manager {
	return &Manager{
		runtime:    rt,
		containers: make(map[string]*ContainerRecord),
		runtimeIDs: make(map[string]string),
		executions: make(map[string]*ExecutionRecord),
	}
}

// Create starts a new container and registers it. On failure no record is
// registered.
func (m *Manager) Create(ctx context.Context, opts CreateOpts) (*ContainerRecord, error) {
	id := uuid.New().String()

	runtimeID, executorAddr, resourceAddr, err := m.runtime.Start(ctx, id, opts.Tag, opts.Binds, opts.Env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeStart, err)
	}

	now := time.Now().UTC()
	rec := &ContainerRecord{
		ID:           id,
		Tag:          opts.Tag,
		ExecutorPort: executorAddr,
		ResourcePort: resourceAddr,
		Status:       StatusRunning,
		CreatedAt:    now,
		LastUsedAt:   now,
	}

	m.mu.Lock()
	m.containers[id] = rec
	m.runtimeIDs[id] = runtimeID
	m.mu.Unlock()

	snapshot := *rec
	return &snapshot, nil
}

// Get returns a snapshot of the record and touches last-used-at.
func (m *Manager) Get(id string) (*ContainerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.LastUsedAt = time.Now().UTC()
	snapshot := *rec
	return &snapshot, nil
}

// Info returns a snapshot of the record without touching last-used-at.
func (m *Manager) Info(id string) (*ContainerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	snapshot := *rec
	return &snapshot, nil
}

// List returns snapshots of all live records, order unspecified.
func (m *Manager) List() []ContainerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ContainerRecord, 0, len(m.containers))
	for _, rec := range m.containers {
		result = append(result, *rec)
	}
	return result
}

// Touch advances last-used-at without returning a snapshot. The HTTP
// handlers do not call it; they renew the idle clock through Get.
func (m *Manager) Touch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.containers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.LastUsedAt = time.Now().UTC()
	return nil
}

// Destroy idempotently removes a container's record, purges its
// executions, and asks the runtime adapter to kill it.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.containers[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	runtimeID := m.runtimeIDs[id]
	delete(m.containers, id)
	delete(m.runtimeIDs, id)
	for execID, exec := range m.executions {
		if exec.ContainerID == id {
			delete(m.executions, execID)
		}
	}
	m.mu.Unlock()

	if err := m.runtime.Stop(ctx, runtimeID); err != nil {
		return fmt.Errorf("%w: %v", ErrRuntimeStop, err)
	}
	return nil
}

// RegisterExecution creates a new running execution record owned by
// containerID.
func (m *Manager) RegisterExecution(containerID, executionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions[executionID] = &ExecutionRecord{
		ID:          executionID,
		ContainerID: containerID,
		Status:      ExecutionRunning,
		CreatedAt:   time.Now().UTC(),
	}
}

// CompleteExecution marks an execution terminal. A non-nil execErr sets
// status to error, otherwise completed.
func (m *Manager) CompleteExecution(executionID string, execErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec, ok := m.executions[executionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}

	now := time.Now().UTC()
	exec.CompletedAt = &now
	if execErr != nil {
		exec.Status = ExecutionError
		msg := execErr.Error()
		exec.Error = &msg
	} else {
		exec.Status = ExecutionCompleted
	}
	return nil
}

// ExecutionStatus returns a snapshot of an execution record.
func (m *Manager) ExecutionStatus(executionID string) (*ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec, ok := m.executions[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	snapshot := *exec
	return &snapshot, nil
}

// idleCandidates snapshots the ids of every record whose last-used-at is
// older than cutoff. The caller destroys each candidate without holding
// the mutex.
func (m *Manager) idleCandidates(cutoff time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, rec := range m.containers {
		if rec.LastUsedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
