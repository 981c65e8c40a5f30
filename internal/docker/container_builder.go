package docker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/serverwave/serverwave/internal/games"
	"github.com/serverwave/serverwave/pkg/logger"
)

// BuildEnv flattens an env map into KEY=value pairs, sorted for stable
// container configs.
func BuildEnv(env map[string]string) []string {
	vars := make([]string, 0, len(env))
	for k, v := range env {
		vars = append(vars, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(vars)
	return vars
}

// BuildPortMap builds the exposed-port set and host bindings for a server:
// the main port on both TCP and UDP, plus every extra port on the protocols
// its template asks for. Each container port maps to the identical host port.
func BuildPortMap(mainPort int, extraPorts []games.PortConfig) (nat.PortSet, nat.PortMap) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}

	bind := func(containerPort int, proto string) {
		port := nat.Port(fmt.Sprintf("%d/%s", containerPort, proto))
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{
			HostIP:   "0.0.0.0",
			HostPort: strconv.Itoa(containerPort),
		}}
	}

	bind(mainPort, "tcp")
	bind(mainPort, "udp")

	for _, extra := range extraPorts {
		for _, proto := range protocols(extra.Protocol) {
			bind(extra.ContainerPort, proto)
		}
	}

	return exposed, bindings
}

func protocols(p games.PortProtocol) []string {
	switch p {
	case games.ProtocolTCP:
		return []string{"tcp"}
	case games.ProtocolUDP:
		return []string{"udp"}
	default:
		return []string{"tcp", "udp"}
	}
}

// BuildVolumeBinds returns the bind mounts shared by the main and install
// containers: the data directory plus the read-only machine-identity file.
func BuildVolumeBinds(dataPath, volumePath string) []string {
	// Forward slashes keep Docker on Windows happy
	hostPath := strings.ReplaceAll(dataPath, "\\", "/")
	return []string{
		fmt.Sprintf("%s:%s", hostPath, volumePath),
		fmt.Sprintf("%s/.machine-id:/etc/machine-id:ro", hostPath),
	}
}

// EnsureMachineID writes a stable machine-identity file into the server's
// data directory if one does not already exist. Some games fingerprint the
// hardware through /etc/machine-id; writing it once per server keeps the
// identity stable across container recreations.
func EnsureMachineID(dataPath string) error {
	path := filepath.Join(dataPath, ".machine-id")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	// 32 hex chars plus newline, the standard machine-id format
	id := strings.ReplaceAll(uuid.New().String(), "-", "") + "\n"
	if err := os.WriteFile(path, []byte(id), 0644); err != nil {
		return fmt.Errorf("failed to write machine-id file: %w", err)
	}

	logger.Info("Created machine-id file", map[string]interface{}{
		"path": path,
	})
	return nil
}
