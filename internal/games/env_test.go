package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testGame() *GameConfig {
	return &GameConfig{
		GameType: "testgame",
		Variables: []Variable{
			{Env: "EULA", Default: "TRUE"},
			{Env: "MEMORY", Default: "2G", SystemMapping: MappingRAM},
			{Env: "SERVER_PORT", Default: "25565", SystemMapping: MappingPort},
			{Env: "MOTD", Default: "Welcome", UserEditable: true},
		},
	}
}

func TestBuildEnvVars_Defaults(t *testing.T) {
	env := BuildEnvVars(testGame(), 4096, 25565, nil)

	assert.Equal(t, "TRUE", env["EULA"])
	assert.Equal(t, "Welcome", env["MOTD"])
}

func TestBuildEnvVars_Overrides(t *testing.T) {
	env := BuildEnvVars(testGame(), 4096, 25565, map[string]string{
		"MOTD": "My Server",
	})

	assert.Equal(t, "My Server", env["MOTD"])
	assert.Equal(t, "TRUE", env["EULA"])
}

func TestBuildEnvVars_SystemMappingsIgnoreOverrides(t *testing.T) {
	env := BuildEnvVars(testGame(), 4096, 30000, map[string]string{
		"MEMORY":      "128G",
		"SERVER_PORT": "1",
	})

	assert.Equal(t, "4G", env["MEMORY"])
	assert.Equal(t, "30000", env["SERVER_PORT"])
}

func TestBuildEnvVars_RAMUnits(t *testing.T) {
	tests := []struct {
		name  string
		def   string
		ramMB int
		want  string
	}{
		{"gigabyte suffix", "2G", 4096, "4G"},
		{"megabyte suffix", "1024M", 3072, "3072M"},
		{"bare number", "1024", 2048, "2048"},
		{"lowercase g", "2g", 8192, "8G"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			game := &GameConfig{
				Variables: []Variable{
					{Env: "MEMORY", Default: tt.def, SystemMapping: MappingRAM},
				},
			}
			env := BuildEnvVars(game, tt.ramMB, 25565, nil)
			assert.Equal(t, tt.want, env["MEMORY"])
		})
	}
}

func TestResolveStartup(t *testing.T) {
	vars := map[string]string{
		"SERVER_PORT": "5520",
		"MEMORY":      "4G",
	}

	resolved := ResolveStartup("./server --port {{SERVER_PORT}} --mem {{MEMORY}}", vars)
	assert.Equal(t, "./server --port 5520 --mem 4G", resolved)

	// Unknown placeholders pass through untouched
	resolved = ResolveStartup("./server {{UNKNOWN}}", vars)
	assert.Equal(t, "./server {{UNKNOWN}}", resolved)
}
