package service

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serverwave/serverwave/internal/docker"
	"github.com/serverwave/serverwave/internal/events"
	"github.com/serverwave/serverwave/internal/games"
	"github.com/serverwave/serverwave/internal/models"
	"github.com/serverwave/serverwave/internal/monitoring"
	"github.com/serverwave/serverwave/internal/registry"
	"github.com/serverwave/serverwave/pkg/config"
	"github.com/serverwave/serverwave/pkg/logger"
)

// ContainerRuntime is the slice of the runtime client the orchestrator uses
// for main server containers.
type ContainerRuntime interface {
	EnsureImage(ctx context.Context, image string) error
	CreateContainer(ctx context.Context, opts docker.CreateOptions) (string, error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeoutSeconds int) error
	RemoveContainer(ctx context.Context, containerID string, force bool) error
	ContainerStatus(ctx context.Context, containerID string) (models.ServerStatus, error)
	ContainerRunning(ctx context.Context, containerID string) (bool, error)
	ContainerStats(ctx context.Context, containerID string) *models.ContainerStats
	GetLogs(ctx context.Context, containerID string, lines int) ([]string, error)
	FollowLogs(ctx context.Context, containerID string, tail string) (io.ReadCloser, bool, error)
	SendStdin(ctx context.Context, containerID, text string) error
	ExecCapture(ctx context.Context, containerID string, cmd []string) (string, error)
}

// InstallRunner runs provisioning scripts in disposable containers.
type InstallRunner interface {
	PrepareInstall(ctx context.Context, job docker.InstallJob) (string, error)
	RunInstall(ctx context.Context, containerID string, lines chan<- string) (int, error)
}

// GameCatalog resolves game types to their templates.
type GameCatalog interface {
	Get(gameType string) (*games.GameConfig, error)
}

// InstallError reports a provisioning script that ran and exited non-zero.
type InstallError struct {
	ExitCode int
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install script failed with exit code %d", e.ExitCode)
}

// CreateServerRequest carries the user-supplied parameters for a new server.
// Zero Port and MemoryMB fall back to the game template's defaults.
type CreateServerRequest struct {
	Name     string            `json:"name"`
	GameType string            `json:"game_type"`
	Port     int               `json:"port"`
	MemoryMB int               `json:"memory_mb"`
	Config   map[string]string `json:"config"`
}

// ServerService is the lifecycle orchestrator: every command loads the
// server's document from the registry, drives the container runtime, and
// persists the resulting state back. Commands hold no shared in-memory state
// beyond the stream manager, and there is no cross-command lock; concurrent
// commands on the same id are last-write-wins, same as two CLI invocations
// racing on one file.
type ServerService struct {
	registry  *registry.Registry
	runtime   ContainerRuntime
	installer InstallRunner
	games     GameCatalog
	streams   *StreamManager
	bus       *events.Bus
	cfg       *config.Config
	links     LinkOpener

	// startSettleDelay is how long StartServer waits before checking
	// whether the container survived its first moments.
	startSettleDelay time.Duration
}

func NewServerService(
	reg *registry.Registry,
	runtime ContainerRuntime,
	installer InstallRunner,
	catalog GameCatalog,
	streams *StreamManager,
	bus *events.Bus,
	cfg *config.Config,
	links LinkOpener,
) *ServerService {
	return &ServerService{
		registry:         reg,
		runtime:          runtime,
		installer:        installer,
		games:            catalog,
		streams:          streams,
		bus:              bus,
		cfg:              cfg,
		links:            links,
		startSettleDelay: 500 * time.Millisecond,
	}
}

// CreateServer provisions a new server: allocates an id, creates the data
// directory and the (stopped) main container, and persists the document.
func (s *ServerService) CreateServer(ctx context.Context, req CreateServerRequest) (server *models.Server, err error) {
	defer func() { monitoring.RecordCommand("create", err) }()

	game, err := s.games.Get(req.GameType)
	if err != nil {
		return nil, err
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]

	port := req.Port
	if port == 0 {
		port = game.MainPort(25565)
	}
	memoryMB := req.MemoryMB
	if memoryMB == 0 {
		memoryMB = game.RecommendedRAMMB
	}
	overrides := req.Config
	if overrides == nil {
		overrides = make(map[string]string)
	}

	dataPath := filepath.Join(s.cfg.DataDir, game.GameType, id)
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create server data directory: %w", err)
	}

	env := games.BuildEnvVars(game, memoryMB, port, overrides)
	startup := ""
	if game.Startup != "" {
		startup = games.ResolveStartup(game.Startup, env)
	}

	containerID, err := s.runtime.CreateContainer(ctx, docker.CreateOptions{
		Name:           id,
		Image:          game.DockerImage,
		Port:           port,
		DataPath:       dataPath,
		Env:            env,
		ExtraPorts:     game.ExtraPorts(),
		VolumePath:     game.VolumePath,
		MemoryMB:       memoryMB,
		StartupCommand: startup,
	})
	if err != nil {
		return nil, err
	}

	server = &models.Server{
		ID:          id,
		Name:        req.Name,
		GameType:    game.GameType,
		Status:      models.StatusStopped,
		ContainerID: containerID,
		Port:        port,
		MemoryMB:    memoryMB,
		DataPath:    dataPath,
		CreatedAt:   time.Now().UTC(),
		Config:      overrides,
		Installed:   false,
	}
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}

	logger.Info("Server created", map[string]interface{}{
		"server_id": id,
		"game_type": game.GameType,
		"port":      port,
	})
	monitoring.RecordStatus(server)
	s.bus.PublishLifecycle(events.EventServerCreated, server)
	return server, nil
}

// StartServer brings a server up, running the game's install script first if
// it has never completed. After starting, the container is given a moment to
// settle; an immediate exit is reported as a failed start, not a running
// server.
func (s *ServerService) StartServer(ctx context.Context, serverID string) (server *models.Server, err error) {
	defer func() { monitoring.RecordCommand("start", err) }()

	server, err = s.registry.Load(serverID)
	if err != nil {
		return nil, err
	}

	if !server.Installed {
		game, err := s.games.Get(server.GameType)
		if err != nil {
			return nil, err
		}
		if game.HasInstallScript() {
			server, err = s.runInstall(ctx, server, game)
			if err != nil {
				return server, err
			}
		} else {
			// Nothing to install; the image is self-provisioning
			server.Installed = true
			if err := s.registry.Save(server); err != nil {
				return nil, err
			}
		}
	}

	if server.ContainerID == "" {
		return server, fmt.Errorf("server %s has no container", serverID)
	}

	if err := s.runtime.StartContainer(ctx, server.ContainerID); err != nil {
		return server, err
	}

	time.Sleep(s.startSettleDelay)

	status, err := s.runtime.ContainerStatus(ctx, server.ContainerID)
	if err != nil {
		status = models.StatusError
	}
	if status == models.StatusStopped || status == models.StatusError {
		server.Status = models.StatusError
		if saveErr := s.registry.Save(server); saveErr != nil {
			logger.Error("Failed to persist server state", saveErr, map[string]interface{}{
				"server_id": serverID,
			})
		}
		monitoring.RecordStatus(server)
		return server, fmt.Errorf("server %s container exited immediately after start", serverID)
	}

	server.Status = status
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}

	s.streams.Attach(server.ID, server.ContainerID)

	logger.Info("Server started", map[string]interface{}{
		"server_id": serverID,
	})
	monitoring.RecordStatus(server)
	s.bus.PublishLifecycle(events.EventServerStarted, server)
	return server, nil
}

// StopServer shuts a server down: the game's stop command is sent to the
// console first so the game can save, then the container is stopped with the
// configured grace period. Stopping a server whose container is already gone
// succeeds.
func (s *ServerService) StopServer(ctx context.Context, serverID string) (server *models.Server, err error) {
	defer func() { monitoring.RecordCommand("stop", err) }()

	s.streams.Detach(serverID)

	server, err = s.registry.Load(serverID)
	if err != nil {
		return nil, err
	}

	if server.ContainerID == "" {
		server.Status = models.StatusStopped
		if err := s.registry.Save(server); err != nil {
			return nil, err
		}
		return server, nil
	}

	s.sendStopCommand(ctx, server)

	if err := s.runtime.StopContainer(ctx, server.ContainerID, s.cfg.StopTimeoutSeconds); err != nil {
		return server, err
	}

	server.Status = models.StatusStopped
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}

	logger.Info("Server stopped", map[string]interface{}{
		"server_id": serverID,
	})
	monitoring.RecordStatus(server)
	s.bus.PublishLifecycle(events.EventServerStopped, server)
	return server, nil
}

// sendStopCommand gives the game a chance to shut down cleanly before the
// container is stopped. Best effort: a game that ignores its stop command is
// handled by the runtime's grace period.
func (s *ServerService) sendStopCommand(ctx context.Context, server *models.Server) {
	game, err := s.games.Get(server.GameType)
	if err != nil || game.StopCommand == "" {
		return
	}

	running, err := s.runtime.ContainerRunning(ctx, server.ContainerID)
	if err != nil || !running {
		return
	}

	if err := s.runtime.SendStdin(ctx, server.ContainerID, game.StopCommand); err != nil {
		logger.Warn("Failed to send stop command", map[string]interface{}{
			"server_id": server.ID,
			"error":     err.Error(),
		})
		return
	}
	time.Sleep(time.Duration(s.cfg.StopCommandWaitSecs) * time.Second)
}

// DeleteServer removes a server: its stream, its containers (main and any
// lingering install container), its registry document, and optionally its
// data directory.
func (s *ServerService) DeleteServer(ctx context.Context, serverID string, deleteData bool) (err error) {
	defer func() { monitoring.RecordCommand("delete", err) }()

	s.streams.Detach(serverID)

	server, err := s.registry.Load(serverID)
	if err != nil {
		return err
	}

	if server.ContainerID != "" {
		if err := s.runtime.StopContainer(ctx, server.ContainerID, s.cfg.StopTimeoutSeconds); err != nil {
			logger.Warn("Failed to stop container during delete", map[string]interface{}{
				"server_id": serverID,
				"error":     err.Error(),
			})
		}
		if err := s.runtime.RemoveContainer(ctx, server.ContainerID, true); err != nil {
			return err
		}
	}
	if server.InstallContainerID != "" {
		if err := s.runtime.RemoveContainer(ctx, server.InstallContainerID, true); err != nil {
			logger.Warn("Failed to remove install container", map[string]interface{}{
				"server_id": serverID,
				"error":     err.Error(),
			})
		}
	}

	if err := s.registry.Delete(serverID); err != nil {
		return err
	}

	if deleteData && server.DataPath != "" {
		if err := os.RemoveAll(server.DataPath); err != nil {
			logger.Warn("Failed to delete server data", map[string]interface{}{
				"server_id": serverID,
				"error":     err.Error(),
			})
		}
	}

	logger.Info("Server deleted", map[string]interface{}{
		"server_id": serverID,
	})
	monitoring.ForgetServer(server)
	s.bus.PublishLifecycle(events.EventServerDeleted, server)
	return nil
}

// ReinstallServer wipes a server's data directory and runs the install script
// from scratch. The server is stopped first.
func (s *ServerService) ReinstallServer(ctx context.Context, serverID string) (server *models.Server, err error) {
	defer func() { monitoring.RecordCommand("reinstall", err) }()

	s.streams.Detach(serverID)

	server, err = s.registry.Load(serverID)
	if err != nil {
		return nil, err
	}
	game, err := s.games.Get(server.GameType)
	if err != nil {
		return nil, err
	}

	if server.ContainerID != "" {
		if err := s.runtime.StopContainer(ctx, server.ContainerID, s.cfg.StopTimeoutSeconds); err != nil {
			return server, err
		}
	}

	if err := clearDirectory(server.DataPath); err != nil {
		return server, fmt.Errorf("failed to clear server data: %w", err)
	}

	server.Installed = false
	server.Status = models.StatusStopped
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}

	if !game.HasInstallScript() {
		server.Installed = true
		if err := s.registry.Save(server); err != nil {
			return nil, err
		}
		return server, nil
	}

	return s.runInstall(ctx, server, game)
}

// UpdateServer re-runs the install script without wiping data, picking up a
// newer game build in place. The server is stopped first.
func (s *ServerService) UpdateServer(ctx context.Context, serverID string) (server *models.Server, err error) {
	defer func() { monitoring.RecordCommand("update", err) }()

	s.streams.Detach(serverID)

	server, err = s.registry.Load(serverID)
	if err != nil {
		return nil, err
	}
	game, err := s.games.Get(server.GameType)
	if err != nil {
		return nil, err
	}
	if !game.HasInstallScript() {
		return server, fmt.Errorf("game %s has no install script to update with", server.GameType)
	}

	if server.ContainerID != "" {
		if err := s.runtime.StopContainer(ctx, server.ContainerID, s.cfg.StopTimeoutSeconds); err != nil {
			return server, err
		}
	}

	server.Installed = false
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}

	return s.runInstall(ctx, server, game)
}

// runInstall executes a game's install script in a disposable container and
// tracks the run in the server document. The install container id is
// persisted before the container starts, so a crash mid-install leaves an id
// whose logs are still retrievable. On failure the container and its id are
// kept for inspection; they are cleaned up by the next install, update, or
// delete.
func (s *ServerService) runInstall(ctx context.Context, server *models.Server, game *games.GameConfig) (*models.Server, error) {
	// A failed earlier run may have left its container behind
	if server.InstallContainerID != "" {
		if err := s.runtime.RemoveContainer(ctx, server.InstallContainerID, true); err != nil {
			logger.Warn("Failed to remove stale install container", map[string]interface{}{
				"server_id": server.ID,
				"error":     err.Error(),
			})
		}
		server.InstallContainerID = ""
	}

	installImage := game.InstallImage
	if installImage == "" {
		installImage = game.DockerImage
	}

	server.Status = models.StatusInstalling
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}
	monitoring.RecordStatus(server)
	s.bus.PublishLifecycle(events.EventInstallStarted, server)
	s.bus.PublishLog(server.ID, "[ServerWave] Starting installation...")

	installID, err := s.installer.PrepareInstall(ctx, docker.InstallJob{
		Image:      installImage,
		DataPath:   server.DataPath,
		VolumePath: game.VolumePath,
		Script:     game.InstallScript,
	})
	if err != nil {
		server.Status = models.StatusError
		if saveErr := s.registry.Save(server); saveErr != nil {
			logger.Error("Failed to persist server state", saveErr, map[string]interface{}{
				"server_id": server.ID,
			})
		}
		monitoring.RecordStatus(server)
		monitoring.InstallRuns.WithLabelValues("error").Inc()
		s.bus.PublishFailure(events.EventInstallFailed, server, err)
		return server, err
	}

	// Persist the id before the container runs
	server.InstallContainerID = installID
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}

	lines := make(chan string, 64)
	scanner := newLinkScanner(s.links)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for line := range lines {
			scanner.Scan(line)
			s.bus.PublishLog(server.ID, line)
		}
	}()

	exitCode, runErr := s.installer.RunInstall(ctx, installID, lines)
	close(lines)
	wg.Wait()

	if runErr != nil {
		server.Status = models.StatusError
		if err := s.registry.Save(server); err != nil {
			return nil, err
		}
		monitoring.RecordStatus(server)
		monitoring.InstallRuns.WithLabelValues("error").Inc()
		s.bus.PublishFailure(events.EventInstallFailed, server, runErr)
		return server, runErr
	}

	if exitCode != 0 {
		server.Status = models.StatusError
		server.Installed = false
		if err := s.registry.Save(server); err != nil {
			return nil, err
		}
		installErr := &InstallError{ExitCode: exitCode}
		logger.Error("Install script failed", installErr, map[string]interface{}{
			"server_id": server.ID,
			"exit_code": exitCode,
		})
		monitoring.RecordStatus(server)
		monitoring.InstallRuns.WithLabelValues("failed").Inc()
		s.bus.PublishLog(server.ID, fmt.Sprintf("[ServerWave] Installation failed with exit code %d", exitCode))
		s.bus.PublishFailure(events.EventInstallFailed, server, installErr)
		return server, installErr
	}

	if err := s.runtime.RemoveContainer(ctx, installID, true); err != nil {
		logger.Warn("Failed to remove install container", map[string]interface{}{
			"server_id": server.ID,
			"error":     err.Error(),
		})
	}

	server.Installed = true
	server.Status = models.StatusStopped
	server.InstallContainerID = ""
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}

	logger.Info("Installation completed", map[string]interface{}{
		"server_id": server.ID,
	})
	monitoring.RecordStatus(server)
	monitoring.InstallRuns.WithLabelValues("success").Inc()
	s.bus.PublishLog(server.ID, "[ServerWave] Installation completed successfully")
	s.bus.PublishLifecycle(events.EventInstallCompleted, server)
	return server, nil
}

// GetServer returns a server with its status reconciled against the live
// container state. A server mid-install keeps its Installing status
// regardless of what its containers are doing; the install runner is the only
// authority over that transition.
func (s *ServerService) GetServer(ctx context.Context, serverID string) (*models.Server, error) {
	server, err := s.registry.Load(serverID)
	if err != nil {
		return nil, err
	}
	s.reconcile(ctx, server)
	return server, nil
}

// ListServers returns all servers, newest first, each with a reconciled
// status.
func (s *ServerService) ListServers(ctx context.Context) ([]models.Server, error) {
	servers, err := s.registry.List()
	if err != nil {
		return nil, err
	}
	for i := range servers {
		s.reconcile(ctx, &servers[i])
		monitoring.RecordStatus(&servers[i])
	}
	return servers, nil
}

// GetStatus returns a server's reconciled status.
func (s *ServerService) GetStatus(ctx context.Context, serverID string) (models.ServerStatus, error) {
	server, err := s.GetServer(ctx, serverID)
	if err != nil {
		return "", err
	}
	return server.Status, nil
}

// reconcile overlays the live container state onto a loaded document. It is
// read-only with respect to the registry: status observations are not
// persisted, only command outcomes are.
func (s *ServerService) reconcile(ctx context.Context, server *models.Server) {
	if server.Status == models.StatusInstalling {
		return
	}
	if server.ContainerID == "" {
		server.Status = models.StatusStopped
		return
	}
	status, err := s.runtime.ContainerStatus(ctx, server.ContainerID)
	if err != nil {
		server.Status = models.StatusError
		return
	}
	server.Status = status
}

// GetLogs returns recent console output. While an install is running (or has
// failed) the install container's output is served instead of the main
// container's, so the user can watch provisioning and diagnose failures.
func (s *ServerService) GetLogs(ctx context.Context, serverID string, lines int) ([]string, error) {
	server, err := s.registry.Load(serverID)
	if err != nil {
		return nil, err
	}

	if server.Status == models.StatusInstalling || (server.Status == models.StatusError && server.InstallContainerID != "") {
		if server.InstallContainerID == "" {
			return []string{"[ServerWave] Installation in progress..."}, nil
		}
		out, err := s.runtime.GetLogs(ctx, server.InstallContainerID, lines)
		if err != nil || len(out) == 0 {
			return []string{"[ServerWave] Installation in progress..."}, nil
		}
		return out, nil
	}

	if server.ContainerID == "" {
		return nil, fmt.Errorf("server %s has no container", serverID)
	}
	return s.runtime.GetLogs(ctx, server.ContainerID, lines)
}

// SendCommand delivers one console command to a running server. Stdin attach
// is tried first; images that wrap the game in a console helper get the exec
// fallback.
func (s *ServerService) SendCommand(ctx context.Context, serverID, command string) (string, error) {
	server, err := s.registry.Load(serverID)
	if err != nil {
		return "", err
	}
	if server.ContainerID == "" {
		return "", fmt.Errorf("server %s has no container", serverID)
	}

	running, err := s.runtime.ContainerRunning(ctx, server.ContainerID)
	if err != nil {
		return "", err
	}
	if !running {
		return "", fmt.Errorf("server %s is not running", serverID)
	}

	if err := s.runtime.SendStdin(ctx, server.ContainerID, command); err == nil {
		return "Command sent", nil
	}

	out, err := s.runtime.ExecCapture(ctx, server.ContainerID, []string{"mc-send-to-console", command})
	if err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	return out, nil
}

// GetStats returns a resource snapshot for a server. Servers without a
// running container report zeros.
func (s *ServerService) GetStats(ctx context.Context, serverID string) (*models.ContainerStats, error) {
	server, err := s.registry.Load(serverID)
	if err != nil {
		return nil, err
	}
	if server.ContainerID == "" {
		return &models.ContainerStats{}, nil
	}

	running, err := s.runtime.ContainerRunning(ctx, server.ContainerID)
	if err != nil || !running {
		return &models.ContainerStats{}, nil
	}

	stats := s.runtime.ContainerStats(ctx, server.ContainerID)
	monitoring.ServerCPUPercent.WithLabelValues(server.ID, server.GameType).Set(stats.CPUPercent)
	monitoring.ServerRAMUsageMB.WithLabelValues(server.ID, server.GameType).Set(stats.MemoryUsageMB)
	return stats, nil
}

// AttachConsole starts (or restarts) the live log stream for a running
// server. Install output is already streamed by the install runner, so a
// server mid-install is left alone.
func (s *ServerService) AttachConsole(ctx context.Context, serverID string) error {
	server, err := s.registry.Load(serverID)
	if err != nil {
		return err
	}
	if server.Status == models.StatusInstalling {
		return nil
	}
	if server.ContainerID == "" {
		return fmt.Errorf("server %s has no container", serverID)
	}

	status, err := s.runtime.ContainerStatus(ctx, server.ContainerID)
	if err != nil {
		return err
	}
	if status != models.StatusRunning {
		return fmt.Errorf("server %s is not running", serverID)
	}

	s.streams.Attach(server.ID, server.ContainerID)
	return nil
}

// DetachConsole stops the live log stream for a server, leaving the server
// itself untouched.
func (s *ServerService) DetachConsole(serverID string) {
	s.streams.Detach(serverID)
}

// UpdateConfig replaces a server's variable overrides. The new values take
// effect the next time the container is recreated.
func (s *ServerService) UpdateConfig(ctx context.Context, serverID string, overrides map[string]string) (*models.Server, error) {
	server, err := s.registry.Load(serverID)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = make(map[string]string)
	}
	server.Config = overrides
	if err := s.registry.Save(server); err != nil {
		return nil, err
	}
	return server, nil
}

// DiskUsage reports the total size in bytes of a server's data directory.
func (s *ServerService) DiskUsage(serverID string) (int64, error) {
	server, err := s.registry.Load(serverID)
	if err != nil {
		return 0, err
	}

	var total int64
	err = filepath.WalkDir(server.DataPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return total, nil
}

// Shutdown stops all live log streams.
func (s *ServerService) Shutdown() {
	s.streams.Shutdown()
}

// clearDirectory removes a directory's contents without removing the
// directory itself.
func clearDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
