package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/serverwave/serverwave/internal/games"
	"github.com/serverwave/serverwave/internal/models"
	"github.com/serverwave/serverwave/pkg/logger"
)

// DockerService is a thin, stateless wrapper around the container-runtime
// API. It holds no server state; all authority lives in the registry.
type DockerService struct {
	client *client.Client
}

// CreateOptions carries everything needed to create a main server container.
type CreateOptions struct {
	Name           string // server id, used to derive the container name
	Image          string
	Port           int
	DataPath       string
	Env            map[string]string
	ExtraPorts     []games.PortConfig
	VolumePath     string // mount point inside the container, e.g. /data
	MemoryMB       int
	StartupCommand string // already placeholder-resolved; empty keeps the image entrypoint
}

func NewDockerService() (*DockerService, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerService{client: cli}, nil
}

// Ping checks that the runtime daemon is reachable.
func (d *DockerService) Ping(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return wrapRuntimeErr("ping", err)
	}
	return nil
}

// Info reports daemon version and container counts.
func (d *DockerService) Info(ctx context.Context) (*models.RuntimeInfo, error) {
	info, err := d.client.Info(ctx)
	if err != nil {
		return nil, wrapRuntimeErr("info", err)
	}
	version, err := d.client.ServerVersion(ctx)
	if err != nil {
		return nil, wrapRuntimeErr("version", err)
	}

	return &models.RuntimeInfo{
		Version:           version.Version,
		APIVersion:        version.APIVersion,
		OS:                info.OperatingSystem,
		Arch:              info.Architecture,
		ContainersRunning: info.ContainersRunning,
		ContainersTotal:   info.Containers,
		Images:            info.Images,
	}, nil
}

// EnsureImage pulls an image if it is not present locally. The pull is
// synchronous; a failure aborts whatever operation needed the image.
func (d *DockerService) EnsureImage(ctx context.Context, imageName string) error {
	if _, _, err := d.client.ImageInspectWithRaw(ctx, imageName); err == nil {
		return nil
	}

	logger.Info("Pulling image", map[string]interface{}{
		"image": imageName,
	})
	reader, err := d.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return &ImagePullError{Image: imageName, Err: err}
	}
	defer reader.Close()

	// The pull completes when the progress stream drains
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return &ImagePullError{Image: imageName, Err: err}
	}

	logger.Info("Image pulled", map[string]interface{}{
		"image": imageName,
	})
	return nil
}

// CreateContainer creates (but does not start) the main container for a
// server: main port on TCP+UDP plus template extra ports, data volume and
// read-only machine-identity bind, hard memory limit with swap disabled, and
// no automatic restarts.
func (d *DockerService) CreateContainer(ctx context.Context, opts CreateOptions) (string, error) {
	if err := d.EnsureImage(ctx, opts.Image); err != nil {
		return "", err
	}

	if err := EnsureMachineID(opts.DataPath); err != nil {
		logger.Warn("Failed to provision machine-id", map[string]interface{}{
			"error": err.Error(),
		})
	}

	exposed, bindings := BuildPortMap(opts.Port, opts.ExtraPorts)

	memoryBytes := int64(opts.MemoryMB) * 1024 * 1024
	hostConfig := &container.HostConfig{
		PortBindings: bindings,
		Binds:        BuildVolumeBinds(opts.DataPath, opts.VolumePath),
		RestartPolicy: container.RestartPolicy{
			Name: "no",
		},
		Resources: container.Resources{
			Memory:     memoryBytes,
			MemorySwap: memoryBytes, // same as memory disables swap
		},
	}

	cfg := &container.Config{
		Image:        opts.Image,
		Env:          BuildEnv(opts.Env),
		ExposedPorts: exposed,
		Tty:          true,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Labels: map[string]string{
			"serverwave.server_id": opts.Name,
		},
	}
	if opts.StartupCommand != "" {
		cfg.Cmd = strslice.StrSlice{
			"/bin/bash", "-c",
			fmt.Sprintf("cd %s && exec %s", opts.VolumePath, opts.StartupCommand),
		}
	}

	containerName := fmt.Sprintf("serverwave-%s", opts.Name)
	resp, err := d.client.ContainerCreate(ctx, cfg, hostConfig, nil, nil, containerName)
	if err != nil {
		return "", wrapRuntimeErr("create container", err)
	}

	logger.Info("Container created", map[string]interface{}{
		"container_id": shortID(resp.ID),
		"server_id":    opts.Name,
	})
	return resp.ID, nil
}

func (d *DockerService) StartContainer(ctx context.Context, containerID string) error {
	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return wrapRuntimeErr("start container", err)
	}
	logger.Info("Container started", map[string]interface{}{
		"container_id": shortID(containerID),
	})
	return nil
}

// StopContainer stops a container with the given grace period. Stopping a
// container that no longer exists is not an error.
func (d *DockerService) StopContainer(ctx context.Context, containerID string, timeoutSeconds int) error {
	err := d.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeoutSeconds})
	if err != nil && !IsNotFound(err) {
		return wrapRuntimeErr("stop container", err)
	}
	return nil
}

// RemoveContainer removes a container. A container already gone is not an
// error.
func (d *DockerService) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force})
	if err != nil && !IsNotFound(err) {
		return wrapRuntimeErr("remove container", err)
	}
	return nil
}

// ContainerStatus inspects a container and reconciles its state to a server
// status. A missing container reads as Stopped: persisted container ids do
// not guarantee the container still exists.
func (d *DockerService) ContainerStatus(ctx context.Context, containerID string) (models.ServerStatus, error) {
	info, err := d.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if IsNotFound(err) {
			return models.StatusStopped, nil
		}
		return models.StatusStopped, wrapRuntimeErr("inspect container", err)
	}
	if info.State == nil {
		return models.StatusStopped, nil
	}
	return MapContainerState(info.State.Status), nil
}

// ContainerRunning reports whether the container currently runs. A missing
// container reads as not running.
func (d *DockerService) ContainerRunning(ctx context.Context, containerID string) (bool, error) {
	info, err := d.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, wrapRuntimeErr("inspect container", err)
	}
	return info.State != nil && info.State.Running, nil
}

// ContainerExitCode returns the recorded exit code, or -1 when it cannot be
// determined.
func (d *DockerService) ContainerExitCode(ctx context.Context, containerID string) int {
	info, err := d.client.ContainerInspect(ctx, containerID)
	if err != nil || info.State == nil {
		return -1
	}
	return info.State.ExitCode
}

// ContainerStats takes a one-shot resource snapshot. Unavailable stats are
// zero-filled, never an error: losing metrics must not look like a failure.
func (d *DockerService) ContainerStats(ctx context.Context, containerID string) *models.ContainerStats {
	stats := &models.ContainerStats{}

	resp, err := d.client.ContainerStats(ctx, containerID, false)
	if err != nil {
		return stats
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return stats
	}

	// CPU percent from the delta of two successive usage counters against
	// the system-wide counter
	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)
	numCPUs := float64(raw.CPUStats.OnlineCPUs)
	if numCPUs == 0 {
		numCPUs = 1
	}
	if systemDelta > 0 && cpuDelta > 0 {
		stats.CPUPercent = (cpuDelta / systemDelta) * numCPUs * 100.0
	}

	stats.MemoryUsageMB = float64(raw.MemoryStats.Usage) / 1024.0 / 1024.0
	stats.MemoryLimitMB = float64(raw.MemoryStats.Limit) / 1024.0 / 1024.0
	if stats.MemoryLimitMB > 0 {
		stats.MemoryPercent = (stats.MemoryUsageMB / stats.MemoryLimitMB) * 100.0
	}

	return stats
}

// GetLogs fetches up to lines recent log lines, stdout and stderr combined,
// empty lines dropped.
func (d *DockerService) GetLogs(ctx context.Context, containerID string, lines int) ([]string, error) {
	reader, err := d.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       fmt.Sprintf("%d", lines),
	})
	if err != nil {
		return nil, wrapRuntimeErr("container logs", err)
	}
	defer reader.Close()

	tty, err := d.containerTty(ctx, containerID)
	if err != nil {
		return nil, err
	}

	var out []string
	err = ForEachLine(reader, tty, func(line string) {
		out = append(out, line)
	})
	if err != nil {
		logger.Warn("Error reading logs", map[string]interface{}{
			"container_id": shortID(containerID),
			"error":        err.Error(),
		})
	}
	return out, nil
}

// FollowLogs opens a following log stream. The returned tty flag tells the
// caller whether the stream is raw or stdcopy-multiplexed. Closing the
// reader terminates the stream.
func (d *DockerService) FollowLogs(ctx context.Context, containerID string, tail string) (io.ReadCloser, bool, error) {
	tty, err := d.containerTty(ctx, containerID)
	if err != nil {
		return nil, false, err
	}

	reader, err := d.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       tail,
	})
	if err != nil {
		return nil, false, wrapRuntimeErr("follow logs", err)
	}
	return reader, tty, nil
}

// SendStdin writes a line to the container's stdin via attach. Fails when the
// image was not created with an open stdin.
func (d *DockerService) SendStdin(ctx context.Context, containerID, text string) error {
	resp, err := d.client.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
	})
	if err != nil {
		return wrapRuntimeErr("attach container", err)
	}
	defer resp.Close()

	if _, err := resp.Conn.Write([]byte(text + "\n")); err != nil {
		return fmt.Errorf("failed to write to stdin: %w", err)
	}
	return nil
}

// ExecCapture runs a command inside the container and returns its combined
// output. Used as the console fallback when stdin attach is unsupported.
func (d *DockerService) ExecCapture(ctx context.Context, containerID string, cmd []string) (string, error) {
	exec, err := d.client.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", wrapRuntimeErr("exec create", err)
	}

	resp, err := d.client.ContainerExecAttach(ctx, exec.ID, container.ExecStartOptions{})
	if err != nil {
		return "", wrapRuntimeErr("exec attach", err)
	}
	defer resp.Close()

	var lines []string
	if err := ForEachLine(resp.Reader, false, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		logger.Warn("Error reading exec output", map[string]interface{}{
			"container_id": shortID(containerID),
			"error":        err.Error(),
		})
	}

	return strings.Join(lines, "\n"), nil
}

func (d *DockerService) containerTty(ctx context.Context, containerID string) (bool, error) {
	info, err := d.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, wrapRuntimeErr("inspect container", err)
	}
	return info.Config != nil && info.Config.Tty, nil
}

// Close closes the underlying client.
func (d *DockerService) Close() error {
	return d.client.Close()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
