package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
)

var _ Adapter = (*DockerAdapter)(nil)

// orchestratedPrefix is the discovery key reconciliation uses to find
// containers this process manages, regardless of which incarnation created
// them.
const orchestratedPrefix = "vnc_"

type DockerAdapter struct {
	client *dockerclient.Client
	cfg    Config
	logger *slog.Logger
}

func NewDockerAdapter(client *dockerclient.Client, cfg Config, logger *slog.Logger) *DockerAdapter {
	if cfg.WaitReadyPoll == 0 {
		cfg.WaitReadyPoll = time.Second
	}
	if cfg.WaitReadyTotal == 0 {
		cfg.WaitReadyTotal = 60 * time.Second
	}
	return &DockerAdapter{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "runtime")),
	}
}

func (a *DockerAdapter) Create(ctx context.Context, opts CreateOptions) (ContainerInfo, error) {
	if err := a.ensureImage(ctx, a.cfg.Image); err != nil {
		return ContainerInfo{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	if err := a.ensureNetwork(ctx); err != nil {
		return ContainerInfo{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	// A stale container under the same name blocks creation; force-remove it.
	if existing, err := a.client.ContainerInspect(ctx, opts.Name); err == nil {
		_ = a.client.ContainerRemove(ctx, existing.ID, container.RemoveOptions{Force: true})
	}

	portKey := container.PortSet{
		container.Port(fmt.Sprintf("%d/tcp", a.cfg.ContainerPort)): struct{}{},
	}
	bindings := container.PortMap{
		container.Port(fmt.Sprintf("%d/tcp", a.cfg.ContainerPort)): []container.PortBinding{
			{HostIP: "0.0.0.0", HostPort: fmt.Sprintf("%d", opts.HostPort)},
		},
	}

	cfg := &container.Config{
		Image:        a.cfg.Image,
		Env:          opts.EnvVars,
		ExposedPorts: portKey,
		Labels: map[string]string{
			"managed_by": "vnc-orchestrator",
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings:  bindings,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	var netCfg *network.NetworkingConfig
	if a.cfg.NetworkName != "" {
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				a.cfg.NetworkName: {},
			},
		}
	}

	resp, err := a.client.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, opts.Name)
	if err != nil {
		a.logger.Error("failed to create container", "name", opts.Name, "error", err)
		return ContainerInfo{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	if err := a.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = a.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		a.logger.Error("failed to start container", "name", opts.Name, "error", err)
		return ContainerInfo{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	a.logger.Info("created container", "name", opts.Name, "container_id", shortID(resp.ID), "port", opts.HostPort)

	return ContainerInfo{ID: resp.ID, Name: opts.Name, Port: opts.HostPort}, nil
}

func (a *DockerAdapter) ensureImage(ctx context.Context, ref string) error {
	_, err := a.client.ImageInspect(ctx, ref)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect image: %w", err)
	}

	reader, err := a.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()

	// Drain the pull progress stream; we don't surface it.
	buf := make([]byte, 4096)
	for {
		if _, err := reader.Read(buf); err != nil {
			break
		}
	}
	return nil
}

func (a *DockerAdapter) ensureNetwork(ctx context.Context) error {
	if a.cfg.NetworkName == "" {
		return nil
	}

	_, err := a.client.NetworkInspect(ctx, a.cfg.NetworkName, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect network: %w", err)
	}

	opts := network.CreateOptions{
		Driver: "bridge",
	}
	if a.cfg.NetworkSubnet != "" {
		opts.IPAM = &network.IPAM{
			Config: []network.IPAMConfig{{Subnet: a.cfg.NetworkSubnet}},
		}
	}

	_, err = a.client.NetworkCreate(ctx, a.cfg.NetworkName, opts)
	if err != nil {
		return fmt.Errorf("create network: %w", err)
	}
	return nil
}

func (a *DockerAdapter) Remove(ctx context.Context, id string) error {
	err := a.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		a.logger.Warn("failed to remove container", "container_id", shortID(id), "error", err)
		return err
	}
	if err != nil {
		a.logger.Warn("container already gone", "container_id", shortID(id))
	}
	return nil
}

func (a *DockerAdapter) IsHealthy(ctx context.Context, id string) bool {
	inspect, err := a.client.ContainerInspect(ctx, id)
	if err != nil {
		return false
	}
	return inspect.State != nil && inspect.State.Status == "running"
}

func (a *DockerAdapter) ListOrchestrated(ctx context.Context) (map[string]ContainerInfo, error) {
	opts := container.ListOptions{Filters: filters.NewArgs()}
	opts.Filters.Add("status", "running")

	containers, err := a.client.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make(map[string]ContainerInfo)
	for _, c := range containers {
		name := primaryName(c.Names)
		if !strings.HasPrefix(name, orchestratedPrefix) {
			continue
		}

		port := 0
		for _, p := range c.Ports {
			if int(p.PrivatePort) == a.cfg.ContainerPort && p.PublicPort != 0 {
				port = int(p.PublicPort)
				break
			}
		}

		out[name] = ContainerInfo{ID: c.ID, Name: name, Port: port}
	}
	return out, nil
}

func (a *DockerAdapter) WaitReady(ctx context.Context, id string, timeout time.Duration) bool {
	if timeout == 0 {
		timeout = a.cfg.WaitReadyTotal
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(a.cfg.WaitReadyPoll)
	defer ticker.Stop()

	for {
		inspect, err := a.client.ContainerInspect(ctx, id)
		if err != nil {
			return false
		}
		if inspect.State != nil && inspect.State.Health != nil {
			switch inspect.State.Health.Status {
			case "healthy":
				return true
			case "unhealthy":
				return false
			}
		} else if inspect.State != nil && inspect.State.Running {
			// No health check configured: running is as ready as it gets.
			return true
		}

		if time.Now().After(deadline) {
			a.logger.Warn("wait_ready timed out", "container_id", shortID(id))
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func primaryName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
