package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/astrodock/fuel-exports-tracker/constants"
)

// Discover walks the source directory and returns the candidate export files,
// sorted for a deterministic ingest order. Hidden entries are skipped when
// configured; only allowed extensions match.
func (o *Orchestrator) Discover(ctx context.Context) ([]string, error) {
	if strings.TrimSpace(o.cfg.SourceDir) == "" {
		return nil, fmt.Errorf("source_dir is required")
	}

	var paths []string
	err := filepath.WalkDir(o.cfg.SourceDir, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}
		if o.cfg.SkipHidden && IsHidden(path) && path != o.cfg.SourceDir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", o.cfg.SourceDir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// AllowedExt checks if a file extension is in the allowed set (csv/jsonl).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
