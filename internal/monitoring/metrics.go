package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/serverwave/serverwave/internal/models"
)

// Prometheus metrics for the orchestrator
var (
	ServerStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "serverwave_server_status",
			Help: "Server status (0=stopped, 1=starting, 2=installing, 3=running, 4=stopping, 5=error)",
		},
		[]string{"server_id", "game_type"},
	)

	ServerCPUPercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "serverwave_server_cpu_percent",
			Help: "Current CPU usage of the server container in percent",
		},
		[]string{"server_id", "game_type"},
	)

	ServerRAMUsageMB = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "serverwave_server_ram_mb",
			Help: "Current RAM usage of the server container in megabytes",
		},
		[]string{"server_id", "game_type"},
	)

	LifecycleCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serverwave_lifecycle_commands_total",
			Help: "Lifecycle commands executed, by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	InstallRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serverwave_install_runs_total",
			Help: "Install script runs, by outcome",
		},
		[]string{"outcome"},
	)

	LogStreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "serverwave_log_stream_reconnects_total",
			Help: "Log stream reconnect attempts across all servers",
		},
	)

	ActiveLogStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "serverwave_active_log_streams",
			Help: "Number of live log stream tasks",
		},
	)
)

var statusValues = map[models.ServerStatus]float64{
	models.StatusStopped:    0,
	models.StatusStarting:   1,
	models.StatusInstalling: 2,
	models.StatusRunning:    3,
	models.StatusStopping:   4,
	models.StatusError:      5,
}

// RecordStatus updates the status gauge for one server.
func RecordStatus(server *models.Server) {
	ServerStatus.WithLabelValues(server.ID, server.GameType).Set(statusValues[server.Status])
}

// RecordCommand counts a lifecycle command outcome.
func RecordCommand(command string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	LifecycleCommands.WithLabelValues(command, outcome).Inc()
}

// ForgetServer drops all metric series for a deleted server.
func ForgetServer(server *models.Server) {
	labels := prometheus.Labels{"server_id": server.ID, "game_type": server.GameType}
	ServerStatus.DeletePartialMatch(labels)
	ServerCPUPercent.DeletePartialMatch(labels)
	ServerRAMUsageMB.DeletePartialMatch(labels)
}
