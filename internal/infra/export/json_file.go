package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"transcribe-jobs/internal/domain"
)

// JSONWriter saves values as JSON files under a directory.
type JSONWriter struct {
	dir    string
	indent bool
}

func NewJSONWriter(dir string, indent bool) *JSONWriter {
	if dir == "" {
		dir = "."
	}
	return &JSONWriter{dir: dir, indent: indent}
}

// Write stores v as name inside the writer's directory and returns the full path.
// The file is written to a temp name first and renamed into place.
func (w *JSONWriter) Write(name string, v any) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: file name %q", domain.ErrInvalidArgument, name)
	}
	var (
		b   []byte
		err error
	)
	switch raw := v.(type) {
	case json.RawMessage:
		b = raw
		if w.indent {
			var tmp any
			if err := json.Unmarshal(raw, &tmp); err == nil {
				b, err = json.MarshalIndent(tmp, "", "  ")
				if err != nil {
					return "", err
				}
			}
		}
	default:
		if w.indent {
			b, err = json.MarshalIndent(v, "", "  ")
		} else {
			b, err = json.Marshal(v)
		}
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", name, err)
		}
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(w.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}

// CategoriesFilename names the saved result payload of a job.
func CategoriesFilename(jobID string) string {
	return jobID + "_categories.json"
}
