package games

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_MissingCustomFileIsFine(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "games.json"))
	require.NoError(t, err)

	game, err := m.Get("minecraft")
	require.NoError(t, err)
	assert.Equal(t, "stop", game.StopCommand)
	assert.False(t, game.Custom)
}

func TestNewManager_CorruptCustomFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewManager(path)
	assert.Error(t, err)
}

func TestManager_CustomShadowsBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	custom := `[{"game_type":"minecraft","name":"My Minecraft","docker_image":"custom/mc:latest","volume_path":"/data"}]`
	require.NoError(t, os.WriteFile(path, []byte(custom), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	game, err := m.Get("minecraft")
	require.NoError(t, err)
	assert.Equal(t, "custom/mc:latest", game.DockerImage)
	assert.True(t, game.Custom)
}

func TestManager_GetUnknown(t *testing.T) {
	m, err := NewManager("")
	require.NoError(t, err)

	_, err = m.Get("nope")
	assert.Error(t, err)
}

func TestManager_ListOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	custom := `[{"game_type":"zomboid","name":"Project Zomboid","docker_image":"x/z:latest","volume_path":"/data"}]`
	require.NoError(t, os.WriteFile(path, []byte(custom), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	list := m.List()
	require.NotEmpty(t, list)

	// Built-ins come first, the custom game last
	assert.False(t, list[0].Custom)
	assert.True(t, list[len(list)-1].Custom)
	assert.Equal(t, "zomboid", list[len(list)-1].GameType)
}

func TestManager_SaveAndDeleteCustom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")

	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, m.SaveCustom(GameConfig{
		GameType:    "zomboid",
		Name:        "Project Zomboid",
		DockerImage: "x/z:latest",
		VolumePath:  "/data",
	}))

	// The saved definition survives a reload
	reloaded, err := NewManager(path)
	require.NoError(t, err)
	game, err := reloaded.Get("zomboid")
	require.NoError(t, err)
	assert.True(t, game.Custom)

	require.NoError(t, reloaded.DeleteCustom("zomboid"))
	_, err = reloaded.Get("zomboid")
	assert.Error(t, err)

	// Built-ins are not deletable
	assert.Error(t, reloaded.DeleteCustom("minecraft"))
}

func TestManager_Export(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	m, err := NewManager(path)
	require.NoError(t, err)

	require.NoError(t, m.SaveCustom(GameConfig{GameType: "zomboid", DockerImage: "x/z:latest", VolumePath: "/data"}))

	data, err := m.Export()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"zomboid"`)
	assert.NotContains(t, string(data), `"minecraft"`)
}

func TestGameConfig_Ports(t *testing.T) {
	game := &GameConfig{}
	assert.Equal(t, 25565, game.MainPort(25565))
	assert.Nil(t, game.ExtraPorts())

	game.Ports = []PortConfig{
		{ContainerPort: 2456, Protocol: ProtocolUDP},
		{ContainerPort: 2457, Protocol: ProtocolUDP},
	}
	assert.Equal(t, 2456, game.MainPort(25565))
	require.Len(t, game.ExtraPorts(), 1)
	assert.Equal(t, 2457, game.ExtraPorts()[0].ContainerPort)
}
