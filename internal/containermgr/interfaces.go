package containermgr

import "context"

// Runtime abstracts the container runtime adapter. The Container Manager
// never talks to Docker directly; it only ever goes through this contract.
type Runtime interface {
	// Start launches a new container and returns its runtime-level id plus
	// the host-reachable executor/resource addresses.
	Start(ctx context.Context, containerID, tag string, binds, env map[string]string) (runtimeID, executorAddr, resourceAddr string, err error)
	// Stop tears down a container by its runtime-level id.
	Stop(ctx context.Context, runtimeID string) error
}
