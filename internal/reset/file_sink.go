package reset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSink stores the reset-token snapshot as a JSON file. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// truncated snapshot.
type FileSink struct {
	path string
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (f *FileSink) Save(tokens map[string]string) error {
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("reset: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".reset-*.json")
	if err != nil {
		return fmt.Errorf("reset: create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("reset: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("reset: close snapshot: %w", err)
	}

	return os.Rename(tmp.Name(), f.path)
}

func (f *FileSink) Load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]string)
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("reset: parse snapshot: %w", err)
	}
	return tokens, nil
}
