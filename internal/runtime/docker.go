// Package runtime adapts the Docker daemon to start and stop sandbox
// containers. Each container is expected to expose two TCP services on its
// own: an executor RPC service and a resource RPC service. The runtime
// adapter's only job is container lifecycle and port discovery; talking to
// those services is the job of the internal/executor and
// internal/resourceclient packages.
package runtime

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/nat"
	"github.com/docker/docker/client"
	units "github.com/docker/go-units"

	"github.com/p-arndt/ipyboxd/internal/config"
)

const labelPrefix = "ipybox."

// ExecutorPort and ResourcePort are the container-internal ports every
// sandbox image is expected to listen on.
const (
	ExecutorPort = "8900/tcp"
	ResourcePort = "8901/tcp"
)

// Client starts and stops Docker-backed sandbox containers. It implements
// containermgr.Runtime.
type Client struct {
	docker   *client.Client
	defaults config.Defaults
}

func New(defaults config.Defaults) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{docker: cli, defaults: defaults}, nil
}

func (c *Client) Close() error {
	return c.docker.Close()
}

// Ping verifies the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docker.Ping(ctx)
	return err
}

// Start creates and starts a sandbox container, returning its Docker
// container id and the host-reachable executor/resource addresses. Binds
// maps host path -> container path for bind mounts; env is forwarded as
// the container's environment.
func (c *Client) Start(ctx context.Context, containerID, tag string, binds, env map[string]string) (runtimeID, executorAddr, resourceAddr string, err error) {
	labels := map[string]string{
		labelPrefix + "container_id": containerID,
		labelPrefix + "managed":      "true",
	}

	resources := container.Resources{
		NanoCPUs:  int64(c.defaults.CPULimit * 1e9),
		Memory:    int64(c.defaults.MemLimitMB) * 1024 * 1024,
		PidsLimit: int64Ptr(int64(c.defaults.PidsLimit)),
	}

	exposedPorts := nat.PortSet{
		nat.Port(ExecutorPort): struct{}{},
		nat.Port(ResourcePort): struct{}{},
	}

	mounts := []mount.Mount{
		{
			Type:   mount.TypeTmpfs,
			Target: "/tmp",
			TmpfsOptions: &mount.TmpfsOptions{
				SizeBytes: 512 * units.MiB,
			},
		},
	}
	for hostPath, containerPath := range binds {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeBind,
			Source: hostPath,
			Target: containerPath,
		})
	}

	hostCfg := &container.HostConfig{
		Resources:      resources,
		AutoRemove:     false,
		ReadonlyRootfs: c.defaults.ReadonlyRootfs,
		SecurityOpt:    []string{"no-new-privileges"},
		CapDrop:        []string{"ALL"},
		PortBindings: nat.PortMap{
			nat.Port(ExecutorPort): []nat.PortBinding{{HostIP: "127.0.0.1"}},
			nat.Port(ResourcePort): []nat.PortBinding{{HostIP: "127.0.0.1"}},
		},
		Mounts: mounts,
	}
	if c.defaults.NetworkMode == "none" {
		hostCfg.NetworkMode = "none"
	}

	var envList []string
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	containerCfg := &container.Config{
		Image:        tag,
		Labels:       labels,
		Tty:          false,
		Env:          envList,
		ExposedPorts: exposedPorts,
	}

	name := "ipybox-" + containerID
	resp, err := c.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", "", "", fmt.Errorf("container create: %w", err)
	}

	if err := c.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		c.docker.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", "", "", fmt.Errorf("container start: %w", err)
	}

	info, err := c.docker.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return "", "", "", fmt.Errorf("container inspect: %w", err)
	}

	execAddr, err := hostAddr(info.NetworkSettings.Ports, ExecutorPort)
	if err != nil {
		return "", "", "", err
	}
	resAddr, err := hostAddr(info.NetworkSettings.Ports, ResourcePort)
	if err != nil {
		return "", "", "", err
	}

	return resp.ID, execAddr, resAddr, nil
}

func hostAddr(ports nat.PortMap, port string) (string, error) {
	bindings, ok := ports[nat.Port(port)]
	if !ok || len(bindings) == 0 {
		return "", fmt.Errorf("no published host port for %s", port)
	}
	b := bindings[0]
	host := b.HostIP
	if host == "" {
		host = "127.0.0.1"
	}
	return host + ":" + b.HostPort, nil
}

// Stop force-removes a container by its Docker-assigned id.
func (c *Client) Stop(ctx context.Context, runtimeID string) error {
	err := c.docker.ContainerRemove(ctx, runtimeID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container remove: %w", err)
	}
	return nil
}

// IsRunning reports whether the container is still alive.
func (c *Client) IsRunning(ctx context.Context, runtimeID string) (bool, error) {
	info, err := c.docker.ContainerInspect(ctx, runtimeID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return info.State.Running, nil
}

// ListManaged returns the application-level container ids of every
// container this adapter currently manages, available to a future
// reconciliation pass though none is wired today.
func (c *Client) ListManaged(ctx context.Context) ([]string, error) {
	f := filters.NewArgs()
	f.Add("label", labelPrefix+"managed=true")

	containers, err := c.docker.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	var ids []string
	for _, ctr := range containers {
		if id := ctr.Labels[labelPrefix+"container_id"]; id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func int64Ptr(v int64) *int64 { return &v }
