package docker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serverwave/serverwave/internal/games"
)

func TestBuildEnv(t *testing.T) {
	env := BuildEnv(map[string]string{
		"SERVER_PORT": "25565",
		"EULA":        "TRUE",
		"MEMORY":      "4G",
	})

	assert.Equal(t, []string{"EULA=TRUE", "MEMORY=4G", "SERVER_PORT=25565"}, env)
}

func TestBuildPortMap_MainPortBothProtocols(t *testing.T) {
	exposed, bindings := BuildPortMap(25565, nil)

	for _, proto := range []string{"tcp", "udp"} {
		port := nat.Port("25565/" + proto)
		assert.Contains(t, exposed, port)
		require.Len(t, bindings[port], 1)
		assert.Equal(t, "0.0.0.0", bindings[port][0].HostIP)
		assert.Equal(t, "25565", bindings[port][0].HostPort)
	}
}

func TestBuildPortMap_ExtraPorts(t *testing.T) {
	extras := []games.PortConfig{
		{ContainerPort: 2457, Protocol: games.ProtocolUDP},
		{ContainerPort: 8080, Protocol: games.ProtocolTCP},
		{ContainerPort: 9000, Protocol: games.ProtocolBoth},
	}

	exposed, bindings := BuildPortMap(2456, extras)

	assert.Contains(t, exposed, nat.Port("2457/udp"))
	assert.NotContains(t, exposed, nat.Port("2457/tcp"))
	assert.Contains(t, exposed, nat.Port("8080/tcp"))
	assert.NotContains(t, exposed, nat.Port("8080/udp"))
	assert.Contains(t, exposed, nat.Port("9000/tcp"))
	assert.Contains(t, exposed, nat.Port("9000/udp"))

	// Host port always mirrors the container port
	assert.Equal(t, "2457", bindings[nat.Port("2457/udp")][0].HostPort)
}

func TestBuildVolumeBinds(t *testing.T) {
	binds := BuildVolumeBinds("/home/user/ServerWave/servers/mc/abc123", "/data")

	require.Len(t, binds, 2)
	assert.Equal(t, "/home/user/ServerWave/servers/mc/abc123:/data", binds[0])
	assert.Equal(t, "/home/user/ServerWave/servers/mc/abc123/.machine-id:/etc/machine-id:ro", binds[1])
}

func TestBuildVolumeBinds_WindowsPath(t *testing.T) {
	binds := BuildVolumeBinds(`C:\Users\user\ServerWave\servers\mc\abc123`, "/data")

	assert.Equal(t, "C:/Users/user/ServerWave/servers/mc/abc123:/data", binds[0])
}

func TestEnsureMachineID(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, EnsureMachineID(dir))

	data, err := os.ReadFile(filepath.Join(dir, ".machine-id"))
	require.NoError(t, err)
	require.Len(t, data, 33)
	assert.Equal(t, byte('\n'), data[32])
	for _, c := range data[:32] {
		assert.Contains(t, "0123456789abcdef", string(c))
	}

	// A second call must not rotate the identity
	require.NoError(t, EnsureMachineID(dir))
	again, err := os.ReadFile(filepath.Join(dir, ".machine-id"))
	require.NoError(t, err)
	assert.Equal(t, data, again)
}
