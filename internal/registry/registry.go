package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/serverwave/serverwave/internal/models"
)

// Registry is durable JSON-per-id storage for server metadata and the single
// source of truth across process restarts. There is no in-memory cache:
// every command re-reads the current on-disk document. There is also no
// cross-process lock; two writers racing on the same id is last-write-wins.
type Registry struct {
	dir string
}

func New(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &Registry{dir: dir}, nil
}

func (r *Registry) path(serverID string) string {
	return filepath.Join(r.dir, serverID+".json")
}

// Save writes a server document, replacing any previous version.
func (r *Registry) Save(server *models.Server) error {
	data, err := json.MarshalIndent(server, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode server %s: %w", server.ID, err)
	}
	if err := os.WriteFile(r.path(server.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write server %s: %w", server.ID, err)
	}
	return nil
}

// Load reads one server document. A missing or unparseable document is an
// error; commands fail fast rather than operate on partial state.
func (r *Registry) Load(serverID string) (*models.Server, error) {
	data, err := os.ReadFile(r.path(serverID))
	if err != nil {
		return nil, fmt.Errorf("server %s not found: %w", serverID, err)
	}

	var server models.Server
	if err := json.Unmarshal(data, &server); err != nil {
		return nil, fmt.Errorf("server %s registry entry corrupt: %w", serverID, err)
	}
	return &server, nil
}

// Delete removes a server document. Deleting an absent document is a no-op.
func (r *Registry) Delete(serverID string) error {
	err := os.Remove(r.path(serverID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete server %s: %w", serverID, err)
	}
	return nil
}

// List loads every server document, newest first. Unparseable documents fail
// the whole listing rather than being silently skipped.
func (r *Registry) List() ([]models.Server, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read registry directory: %w", err)
	}

	var servers []models.Server
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		server, err := r.Load(id)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *server)
	}

	sort.Slice(servers, func(i, j int) bool {
		return servers[i].CreatedAt.After(servers[j].CreatedAt)
	})
	return servers, nil
}
