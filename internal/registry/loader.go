package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akaoio/rkllmd/internal/common/fsutil"
	"github.com/akaoio/rkllmd/pkg/types"
)

// LoadDir scans a directory for *.rkllm files and builds a registry from
// filenames. ID is the filename without extension; Path is the absolute file
// path. Quantization is inferred from the filename when present.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".rkllm") {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, types.Model{
			ID:    id,
			Name:  id,
			Path:  filepath.Join(abs, name),
			Quant: inferQuant(id),
		})
	}
	return models, nil
}

// inferQuant extracts a quantization token like "w8a8" or "w4a16" from an id.
func inferQuant(id string) string {
	for _, part := range strings.Split(strings.ToLower(id), "-") {
		if len(part) < 4 || part[0] != 'w' {
			continue
		}
		rest := part[1:]
		i := strings.IndexByte(rest, 'a')
		if i > 0 && isDigits(rest[:i]) && isDigits(rest[i+1:]) {
			return part
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
