package games

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/serverwave/serverwave/pkg/logger"
)

// Manager serves game templates: a built-in catalog plus user-defined games
// loaded from a JSON file. Custom definitions with the same game type shadow
// the built-in ones.
type Manager struct {
	builtin    map[string]GameConfig
	custom     map[string]GameConfig
	customPath string
}

// NewManager loads the built-in catalog and, if present, custom games from
// customGamesPath. A missing custom games file is not an error.
func NewManager(customGamesPath string) (*Manager, error) {
	m := &Manager{
		builtin:    make(map[string]GameConfig),
		custom:     make(map[string]GameConfig),
		customPath: customGamesPath,
	}

	for _, game := range builtinGames() {
		m.builtin[game.GameType] = game
	}

	if customGamesPath != "" {
		if err := m.loadCustom(customGamesPath); err != nil {
			return nil, err
		}
	}

	logger.Info("Game catalog loaded", map[string]interface{}{
		"builtin": len(m.builtin),
		"custom":  len(m.custom),
	})
	return m, nil
}

func (m *Manager) loadCustom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read custom games file: %w", err)
	}

	var custom []GameConfig
	if err := json.Unmarshal(data, &custom); err != nil {
		return fmt.Errorf("failed to parse custom games JSON: %w", err)
	}

	for _, game := range custom {
		game.Custom = true
		m.custom[game.GameType] = game
	}
	return nil
}

// Get returns the template for a game type, custom definitions taking
// precedence over built-ins.
func (m *Manager) Get(gameType string) (*GameConfig, error) {
	if game, ok := m.custom[gameType]; ok {
		return &game, nil
	}
	if game, ok := m.builtin[gameType]; ok {
		return &game, nil
	}
	return nil, fmt.Errorf("game type %q not found", gameType)
}

// SaveCustom adds or replaces a custom game definition and persists the
// custom catalog.
func (m *Manager) SaveCustom(game GameConfig) error {
	if game.GameType == "" {
		return fmt.Errorf("custom game needs a game_type")
	}
	if m.customPath == "" {
		return fmt.Errorf("no custom games file configured")
	}
	game.Custom = true
	m.custom[game.GameType] = game
	return m.writeCustom()
}

// DeleteCustom removes a custom game definition. Built-ins cannot be deleted,
// only shadowed.
func (m *Manager) DeleteCustom(gameType string) error {
	if _, ok := m.custom[gameType]; !ok {
		return fmt.Errorf("custom game %q not found", gameType)
	}
	delete(m.custom, gameType)
	return m.writeCustom()
}

// Export returns the custom catalog as JSON, suitable for sharing or backup.
func (m *Manager) Export() ([]byte, error) {
	return json.MarshalIndent(m.customList(), "", "  ")
}

func (m *Manager) writeCustom() error {
	data, err := json.MarshalIndent(m.customList(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode custom games: %w", err)
	}
	if err := os.WriteFile(m.customPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write custom games file: %w", err)
	}
	return nil
}

func (m *Manager) customList() []GameConfig {
	list := make([]GameConfig, 0, len(m.custom))
	for _, game := range m.custom {
		list = append(list, game)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].GameType < list[j].GameType
	})
	return list
}

// List returns every known game, built-ins first, alphabetically within each
// group.
func (m *Manager) List() []GameConfig {
	var all []GameConfig
	for id, game := range m.builtin {
		if _, overridden := m.custom[id]; !overridden {
			all = append(all, game)
		}
	}
	for _, game := range m.custom {
		all = append(all, game)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Custom != all[j].Custom {
			return !all[i].Custom
		}
		return all[i].Name < all[j].Name
	})
	return all
}
