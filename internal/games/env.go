package games

import (
	"fmt"
	"strings"
)

// BuildEnvVars resolves a game's variables into concrete environment values
// for a server: RAM- and port-mapped variables come from the server settings,
// everything else from user overrides or the template default.
func BuildEnvVars(game *GameConfig, ramMB, port int, overrides map[string]string) map[string]string {
	env := make(map[string]string, len(game.Variables))

	for _, v := range game.Variables {
		var value string
		switch v.SystemMapping {
		case MappingRAM:
			value = formatRAM(ramMB, v.Default)
		case MappingPort:
			value = fmt.Sprintf("%d", port)
		default:
			if override, ok := overrides[v.Env]; ok {
				value = override
			} else {
				value = v.Default
			}
		}
		env[v.Env] = value
	}

	return env
}

// ResolveStartup replaces {{VAR}} placeholders in a startup command template.
func ResolveStartup(startup string, vars map[string]string) string {
	resolved := startup
	for key, value := range vars {
		resolved = strings.ReplaceAll(resolved, fmt.Sprintf("{{%s}}", key), value)
	}
	return resolved
}

// formatRAM matches the unit convention of the template default, e.g. a "2G"
// default yields "4G", a "1024" default yields "4096".
func formatRAM(ramMB int, defaultFormat string) string {
	switch {
	case strings.HasSuffix(defaultFormat, "G"), strings.HasSuffix(defaultFormat, "g"):
		return fmt.Sprintf("%dG", ramMB/1024)
	case strings.HasSuffix(defaultFormat, "M"), strings.HasSuffix(defaultFormat, "m"):
		return fmt.Sprintf("%dM", ramMB)
	default:
		return fmt.Sprintf("%d", ramMB)
	}
}
