package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"docker-core-monitor/internal/model"
)

// NameStore persists user-assigned container labels and group assignments
// to a JSON file. The in-memory state is authoritative for the process
// lifetime: load and save failures are logged, never propagated, so a
// broken file can not block metric collection.
type NameStore struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	data model.NameOverrides
}

func Open(path string, logger *slog.Logger) *NameStore {
	s := &NameStore{path: path, logger: logger, data: model.NewNameOverrides()}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Error("read names file failed", "path", path, "error", err)
		}
		return s
	}
	var data model.NameOverrides
	if err := json.Unmarshal(raw, &data); err != nil {
		logger.Error("parse names file failed", "path", path, "error", err)
		return s
	}
	if data.Containers == nil {
		data.Containers = map[string]string{}
	}
	if data.Groups == nil {
		data.Groups = map[string]string{}
	}
	if data.ContainerGroups == nil {
		data.ContainerGroups = map[string]string{}
	}
	s.data = data
	return s
}

// Overrides returns a copy safe for callers to hold across cycles.
func (s *NameStore) Overrides() model.NameOverrides {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// SetContainerName assigns a label to a runtime container name.
func (s *NameStore) SetContainerName(runtimeName, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Containers[runtimeName] = label
	s.saveLocked()
}

func (s *NameStore) RemoveContainerName(runtimeName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Containers, runtimeName)
	s.saveLocked()
}

func (s *NameStore) SetGroupName(group, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Groups[group] = label
	s.saveLocked()
}

func (s *NameStore) RemoveGroupName(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Groups, group)
	s.saveLocked()
}

func (s *NameStore) AssignGroup(containerID, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ContainerGroups[containerID] = group
	s.saveLocked()
}

func (s *NameStore) UnassignGroup(containerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.ContainerGroups, containerID)
	s.saveLocked()
}

func (s *NameStore) saveLocked() {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("create names dir failed", "path", dir, "error", err)
			return
		}
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		s.logger.Error("encode names failed", "error", err)
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		s.logger.Error("write names file failed", "path", s.path, "error", err)
	}
}
