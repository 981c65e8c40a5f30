package games

// builtinGames is the shipped catalog. Custom games can override any entry by
// reusing its game type.
func builtinGames() []GameConfig {
	return []GameConfig{
		{
			GameType:    "minecraft",
			Name:        "Minecraft",
			Description: "Minecraft Java Edition server (Paper)",
			DockerImage: "itzg/minecraft-server:latest",
			StopCommand: "stop",
			Variables: []Variable{
				{Env: "EULA", Name: "EULA", Description: "Accept the Mojang EULA", Default: "TRUE"},
				{Env: "TYPE", Name: "Server Type", Description: "Server distribution", Default: "PAPER", UserEditable: true},
				{Env: "VERSION", Name: "Version", Description: "Minecraft version", Default: "latest", UserEditable: true},
				{Env: "MEMORY", Name: "Memory", Description: "JVM heap size", Default: "2G", SystemMapping: MappingRAM},
				{Env: "SERVER_PORT", Name: "Port", Description: "Server port", Default: "25565", SystemMapping: MappingPort},
				{Env: "MOTD", Name: "MOTD", Description: "Server description", Default: "A ServerWave Server", UserEditable: true},
			},
			Ports: []PortConfig{
				{ContainerPort: 25565, Protocol: ProtocolBoth, Description: "game"},
			},
			VolumePath:       "/data",
			MinRAMMB:         1024,
			RecommendedRAMMB: 2048,
		},
		{
			GameType:    "valheim",
			Name:        "Valheim",
			Description: "Valheim dedicated server",
			DockerImage: "lloesche/valheim-server:latest",
			Variables: []Variable{
				{Env: "SERVER_NAME", Name: "Server Name", Description: "Displayed server name", Default: "ServerWave Valheim", UserEditable: true},
				{Env: "SERVER_PASS", Name: "Password", Description: "Join password (min 5 chars)", Default: "serverwave", UserEditable: true},
				{Env: "SERVER_PORT", Name: "Port", Description: "Game port", Default: "2456", SystemMapping: MappingPort},
				{Env: "WORLD_NAME", Name: "World", Description: "World save name", Default: "Dedicated", UserEditable: true},
			},
			Ports: []PortConfig{
				{ContainerPort: 2456, Protocol: ProtocolUDP, Description: "game"},
				{ContainerPort: 2457, Protocol: ProtocolUDP, Description: "query"},
			},
			VolumePath:       "/config",
			MinRAMMB:         2048,
			RecommendedRAMMB: 4096,
		},
		{
			GameType:    "hytale",
			Name:        "Hytale",
			Description: "Hytale community server (downloader-based install)",
			DockerImage: "eclipse-temurin:21-jre",
			Startup:     "./server --port {{SERVER_PORT}}",
			StopCommand: "shutdown",
			Variables: []Variable{
				{Env: "SERVER_PORT", Name: "Port", Description: "Game port", Default: "5520", SystemMapping: MappingPort},
			},
			Ports: []PortConfig{
				{ContainerPort: 5520, Protocol: ProtocolBoth, Description: "game"},
			},
			VolumePath:       "/server",
			MinRAMMB:         2048,
			RecommendedRAMMB: 4096,
			InstallImage:     "debian:bookworm-slim",
			InstallScript: "#!/bin/sh\n" +
				"set -e\n" +
				"apt-get update -qq && apt-get install -qq -y curl unzip >/dev/null\n" +
				"echo 'Downloading server files...'\n" +
				"curl -fsSL -o server.zip https://downloads.hytale.com/server/latest.zip\n" +
				"unzip -o server.zip && rm server.zip\n" +
				"chmod +x ./server\n" +
				"echo 'Install complete'\n",
		},
	}
}
