// Package watcher watches registered directories for .wav changes and
// triggers a re-run of UpdateAudioIndex via the bridge. Debouncing is
// per-directory rather than per-file, since ingestion always re-walks a
// whole directory rather than re-embedding one file in isolation.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/screenager/sonicsearch/internal/bridge"
)

// Watcher watches directory trees and re-triggers ingestion on change.
type Watcher struct {
	fw *fsnotify.Watcher
	b  *bridge.Bridge
}

// New creates a Watcher backed by b.
func New(b *bridge.Bridge) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	return &Watcher{fw: fw, b: b}, nil
}

// Watch adds rootDir (and all subdirectories) to the watch list and begins
// processing events. It blocks until done is closed or an unrecoverable
// error occurs. Call this in a goroutine.
func (w *Watcher) Watch(rootDir string, done <-chan struct{}) error {
	if err := w.addDirRecursive(rootDir); err != nil {
		return err
	}

	// Debounce timer: one per Watch call (i.e. per rootDir), since a single
	// ingestion pass re-walks the whole tree regardless of which file inside
	// it changed.
	var pending *time.Timer

	reindex := func() {
		fmt.Fprintf(os.Stderr, "[watch] re-indexing %s\n", rootDir)
		ctx := context.Background()
		if _, err := w.b.AddPathsToIndex(ctx, []string{rootDir}); err != nil {
			fmt.Fprintf(os.Stderr, "[watch] error: %v\n", err)
		}
	}

	for {
		select {
		case <-done:
			return w.fw.Close()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			path := event.Name

			if event.Has(fsnotify.Create) {
				if fi, err := os.Stat(path); err == nil && fi.IsDir() {
					_ = w.addDirRecursive(path)
				}
			}

			if !strings.EqualFold(filepath.Ext(path), ".wav") {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(500*time.Millisecond, reindex)
			}

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "[watch] error: %v\n", err)
		}
	}
}

// addDirRecursive adds dir and all non-hidden subdirectories to the watcher.
func (w *Watcher) addDirRecursive(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			if err := w.addDirRecursive(filepath.Join(dir, e.Name())); err != nil {
				fmt.Fprintf(os.Stderr, "[watch] skip dir: %v\n", err)
			}
		}
	}
	return nil
}
