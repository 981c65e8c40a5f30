package games

// Game template definitions consumed by the lifecycle orchestrator. The
// orchestrator treats these as opaque inputs; it does not validate template
// syntax.

// PortProtocol selects which protocols a port is exposed on
type PortProtocol string

const (
	ProtocolTCP  PortProtocol = "tcp"
	ProtocolUDP  PortProtocol = "udp"
	ProtocolBoth PortProtocol = "both"
)

// SystemMapping marks a variable as derived from server settings rather than
// user input
type SystemMapping string

const (
	MappingNone SystemMapping = "none"
	MappingRAM  SystemMapping = "ram"
	MappingPort SystemMapping = "port"
)

// PortConfig describes one container port a game needs
type PortConfig struct {
	ContainerPort int          `json:"container_port"`
	Protocol      PortProtocol `json:"protocol"`
	Description   string       `json:"description,omitempty"`
}

// Variable is one environment variable a game's image understands
type Variable struct {
	Env           string        `json:"env"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Default       string        `json:"default"`
	SystemMapping SystemMapping `json:"system_mapping,omitempty"`
	UserEditable  bool          `json:"user_editable,omitempty"`
}

// GameConfig is the full template for one game type: which image to run, how
// to start it, which ports to expose, and how to install it.
type GameConfig struct {
	GameType         string       `json:"game_type"`
	Name             string       `json:"name"`
	Description      string       `json:"description"`
	DockerImage      string       `json:"docker_image"`
	Startup          string       `json:"startup"`
	StopCommand      string       `json:"stop_command"`
	Variables        []Variable   `json:"variables"`
	Ports            []PortConfig `json:"ports"`
	VolumePath       string       `json:"volume_path"`
	MinRAMMB         int          `json:"min_ram_mb"`
	RecommendedRAMMB int          `json:"recommended_ram_mb"`
	InstallScript    string       `json:"install_script,omitempty"`
	InstallImage     string       `json:"install_image,omitempty"`
	Custom           bool         `json:"is_custom,omitempty"`
}

// MainPort returns the game's primary container port, or the given fallback
// when the template declares no ports.
func (g *GameConfig) MainPort(fallback int) int {
	if len(g.Ports) == 0 {
		return fallback
	}
	return g.Ports[0].ContainerPort
}

// ExtraPorts returns every port after the primary one.
func (g *GameConfig) ExtraPorts() []PortConfig {
	if len(g.Ports) <= 1 {
		return nil
	}
	return g.Ports[1:]
}

// HasInstallScript reports whether this game requires an install step.
func (g *GameConfig) HasInstallScript() bool {
	return g.InstallScript != ""
}
