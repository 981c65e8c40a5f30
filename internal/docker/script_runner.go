package docker

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/strslice"
	"github.com/google/uuid"
	"github.com/serverwave/serverwave/pkg/logger"
)

// InstallJob describes a provisioning script run in a disposable container.
// The script executes against the same data volume and machine-identity file
// as the main server container, but never touches the main container's
// entrypoint.
type InstallJob struct {
	Image      string
	DataPath   string
	VolumePath string
	Script     string
}

// installPollInterval bounds how long RunInstall waits on a stalled log
// stream before re-checking whether the container is still running.
const installPollInterval = time.Second

// PrepareInstall creates (but does not start) the disposable install
// container and returns its id. The split from RunInstall lets the caller
// persist the id before the container starts, so a crash mid-install still
// leaves a recoverable id.
//
// The script travels base64-encoded and is decoded to a file inside the
// container, avoiding shell-quoting hazards.
func (d *DockerService) PrepareInstall(ctx context.Context, job InstallJob) (string, error) {
	if err := d.EnsureImage(ctx, job.Image); err != nil {
		return "", err
	}

	if err := EnsureMachineID(job.DataPath); err != nil {
		logger.Warn("Failed to provision machine-id", map[string]interface{}{
			"error": err.Error(),
		})
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(job.Script))
	shellCmd := fmt.Sprintf(
		"echo '%s' | base64 -d > /tmp/install.sh && chmod +x /tmp/install.sh && exec /tmp/install.sh",
		encoded,
	)

	cfg := &container.Config{
		Image:        job.Image,
		Cmd:          strslice.StrSlice{"/bin/sh", "-c", shellCmd},
		WorkingDir:   job.VolumePath,
		Tty:          false,
		AttachStdout: true,
		AttachStderr: true,
	}
	hostConfig := &container.HostConfig{
		Binds: BuildVolumeBinds(job.DataPath, job.VolumePath),
	}

	name := fmt.Sprintf("serverwave-install-%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	resp, err := d.client.ContainerCreate(ctx, cfg, hostConfig, nil, nil, name)
	if err != nil {
		return "", wrapRuntimeErr("create install container", err)
	}

	logger.Info("Install container created", map[string]interface{}{
		"container_id": shortID(resp.ID),
	})
	return resp.ID, nil
}

// RunInstall starts a prepared install container, forwards its combined
// output line by line to lines, and returns the container's exit code once
// it stops. While the log stream is quiet the container's liveness is polled
// once per second, so a stream that stalls without closing cannot hang the
// install. The container is deliberately not removed here: its logs stay
// retrievable until the caller cleans it up.
func (d *DockerService) RunInstall(ctx context.Context, containerID string, lines chan<- string) (int, error) {
	if err := d.StartContainer(ctx, containerID); err != nil {
		return -1, err
	}

	reader, tty, err := d.FollowLogs(ctx, containerID, "all")
	if err != nil {
		return -1, err
	}
	defer reader.Close()

	lineCh := make(chan string, 64)
	streamDone := make(chan error, 1)
	go func() {
		err := ForEachLine(reader, tty, func(line string) {
			lineCh <- line
		})
		close(lineCh)
		streamDone <- err
	}()

	ticker := time.NewTicker(installPollInterval)
	defer ticker.Stop()

stream:
	for {
		select {
		case <-ctx.Done():
			reader.Close()
			go func() {
				for range lineCh {
				}
			}()
			return -1, ctx.Err()

		case line, ok := <-lineCh:
			if !ok {
				if err := <-streamDone; err != nil {
					logger.Warn("Install log stream error", map[string]interface{}{
						"container_id": shortID(containerID),
						"error":        err.Error(),
					})
				}
				break stream
			}
			lines <- line

		case <-ticker.C:
			running, err := d.ContainerRunning(ctx, containerID)
			if err != nil || !running {
				break stream
			}
		}
	}

	// Unblock the pump if the liveness poll broke the loop, then drain
	// whatever the stream produced before it ended.
	reader.Close()
	for line := range lineCh {
		lines <- line
	}

	exitCode := d.ContainerExitCode(ctx, containerID)
	logger.Info("Install container finished", map[string]interface{}{
		"container_id": shortID(containerID),
		"exit_code":    exitCode,
	})
	return exitCode, nil
}
