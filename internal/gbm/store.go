package gbm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is bumped whenever the saved model layout changes.
const FormatVersion = 1

type savedModel struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Model   *Model    `json:"model"`
}

// Save writes the model as JSON to path, creating parent directories.
func (m *Model) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	data, err := json.Marshal(savedModel{Version: FormatVersion, SavedAt: time.Now().UTC(), Model: m})
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	var sm savedModel
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if sm.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported model format version %d", sm.Version)
	}
	if sm.Model == nil || sm.Model.NumFeature < 1 {
		return nil, fmt.Errorf("model file %s holds no model", path)
	}
	for ti, t := range sm.Model.Trees {
		if len(t.Nodes) == 0 {
			return nil, fmt.Errorf("model tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature >= sm.Model.NumFeature ||
				(n.Feature >= 0 && (n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes))) {
				return nil, fmt.Errorf("model tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return sm.Model, nil
}
