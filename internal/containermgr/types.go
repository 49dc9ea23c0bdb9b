// Package containermgr owns the authoritative, in-memory registry of live
// sandbox containers and their executions: creation, lookup, idle
// reaping, and destruction, all serialized under one mutex.
package containermgr

import (
	"errors"
	"time"
)

// Status values for a ContainerRecord.
const (
	StatusRunning   = "running"
	StatusDestroyed = "destroyed"
)

// Status values for an ExecutionRecord.
const (
	ExecutionRunning   = "running"
	ExecutionCompleted = "completed"
	ExecutionError     = "error"
)

// ContainerRecord is the authoritative record of one live sandbox
// container.
type ContainerRecord struct {
	ID           string    `json:"id"`
	Tag          string    `json:"tag"`
	ExecutorPort string    `json:"-"`
	ResourcePort string    `json:"-"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsedAt   time.Time `json:"last_used_at"`
}

// ExecutionRecord tracks one code-blob submission against a container's
// executor.
type ExecutionRecord struct {
	ID          string     `json:"execution_id"`
	ContainerID string     `json:"container_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// CreateOpts are the inputs to Create.
type CreateOpts struct {
	Tag              string
	Binds            map[string]string
	Env              map[string]string
	ExecutorPort     string
	ResourcePort     string
	ShowPullProgress bool
}

// Sentinel errors, matched with errors.Is at the HTTP boundary.
var (
	ErrNotFound     = errors.New("not found")
	ErrRuntimeStart = errors.New("runtime start failed")
	ErrRuntimeStop  = errors.New("runtime stop failed")
)
