package models

import "time"

// ServerStatus represents the current status of a server
type ServerStatus string

const (
	StatusStopped    ServerStatus = "stopped"
	StatusStarting   ServerStatus = "starting"
	StatusInstalling ServerStatus = "installing"
	StatusRunning    ServerStatus = "running"
	StatusStopping   ServerStatus = "stopping"
	StatusError      ServerStatus = "error"
)

// Server represents one managed game-server instance. It is persisted as a
// single JSON document per id; the on-disk document is the source of truth
// across process restarts.
type Server struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	GameType string       `json:"game_type"`
	Status   ServerStatus `json:"status"`
	// ContainerID is set once the main container exists. The container may
	// still have been removed out-of-band; runtime calls must tolerate
	// "not found".
	ContainerID string            `json:"container_id,omitempty"`
	Port        int               `json:"port"`
	MemoryMB    int               `json:"memory_mb"`
	DataPath    string            `json:"data_path"`
	CreatedAt   time.Time         `json:"created_at"`
	Config      map[string]string `json:"config"`
	Installed   bool              `json:"installed"`
	// InstallContainerID is kept while an install is in progress or has
	// failed so its logs stay retrievable after a process restart.
	InstallContainerID string `json:"install_container_id,omitempty"`
}

// CommandResult is the outcome of a lifecycle command, emitted to the
// UI/transport layer.
type CommandResult struct {
	Success bool    `json:"success"`
	Server  *Server `json:"server,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// ContainerStats is a point-in-time resource snapshot for a container.
// Zero-filled when the runtime cannot provide stats.
type ContainerStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsageMB float64 `json:"memory_usage_mb"`
	MemoryLimitMB float64 `json:"memory_limit_mb"`
	MemoryPercent float64 `json:"memory_percent"`
}

// RuntimeInfo reports container-runtime daemon version details.
type RuntimeInfo struct {
	Version           string `json:"version"`
	APIVersion        string `json:"api_version"`
	OS                string `json:"os"`
	Arch              string `json:"arch"`
	ContainersRunning int    `json:"containers_running"`
	ContainersTotal   int    `json:"containers_total"`
	Images            int    `json:"images"`
}
