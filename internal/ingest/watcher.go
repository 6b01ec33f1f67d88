package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig configures filesystem watching of the export drop directory.
type WatchConfig struct {
	Root        string
	InitialScan bool          // if true, walk root and emit existing files
	Debounce    time.Duration // coalesce rapid write/rename bursts
}

// StartWatcher emits paths of newly arrived export files until ctx is done.
// Events are debounced because generators write files in several chunks; the
// ledger makes double emission harmless anyway.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Root == "" {
		return nil, nil, errors.New("watch root is required")
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	// Watch the root tree; emit pre-existing files when asked.
	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		if cfg.InitialScan && AllowedExt(filepath.Ext(path)) {
			select {
			case evCh <- path:
			default:
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to watch root directory", "root", cfg.Root, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		var (
			mu      sync.Mutex
			timer   *time.Timer
			pending = map[string]struct{}{}
		)

		// Called from the loop and from the debounce timer goroutine.
		sendPending := func() {
			mu.Lock()
			defer mu.Unlock()
			for p := range pending {
				select {
				case evCh <- p:
				default:
				}
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&fsnotify.Create == fsnotify.Create {
					// New subdirectory: start watching it. Add on a file is
					// a no-op error we ignore.
					_ = w.Add(e.Name)
				}
				if AllowedExt(filepath.Ext(e.Name)) && e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
					mu.Lock()
					pending[e.Name] = struct{}{}
					mu.Unlock()
					if cfg.Debounce > 0 {
						if timer != nil {
							timer.Stop()
						}
						timer = time.AfterFunc(cfg.Debounce, sendPending)
					} else {
						sendPending()
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
