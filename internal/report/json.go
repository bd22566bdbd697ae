package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONFile is the name of the JSON report inside the report folder.
const JSONFile = "report.json"

// Marshal encodes a run as indented JSON.
func Marshal(run *Run) ([]byte, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// WriteJSON writes the run to dir/report.json, creating dir if needed.
func WriteJSON(dir string, run *Run) (string, error) {
	data, err := Marshal(run)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report folder: %w", err)
	}

	path := filepath.Join(dir, JSONFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
