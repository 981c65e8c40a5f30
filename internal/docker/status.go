package docker

import "github.com/serverwave/serverwave/internal/models"

// MapContainerState maps a runtime-reported container state onto the abstract
// server status. Callers must not use this mapping while the persisted status
// is Installing: the main container may not exist yet during an install, and
// Installing is only cleared by the install flow itself.
func MapContainerState(state string) models.ServerStatus {
	switch state {
	case "running":
		return models.StatusRunning
	case "created":
		return models.StatusStopped
	case "restarting":
		return models.StatusStarting
	case "paused":
		return models.StatusStopped
	case "removing":
		return models.StatusStopping
	case "exited":
		return models.StatusStopped
	case "dead":
		return models.StatusError
	default:
		return models.StatusStopped
	}
}
