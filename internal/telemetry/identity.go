package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StateFileName holds the anonymous id inside the data directory.
const StateFileName = "telemetry.json"

type state struct {
	AnonymousID string `json:"anonymous_id"`
}

// AnonymousID returns the install's random id, creating and persisting it
// on first use.
func AnonymousID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, StateFileName)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var s state
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		if s.AnonymousID != "" {
			return s.AnonymousID, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	s := state{AnonymousID: uuid.New().String()}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return s.AnonymousID, nil
}
