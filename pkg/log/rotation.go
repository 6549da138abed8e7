// Log file rotation for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingWriter writes to a log file, rotating it when it exceeds a
// maximum size. Rotated files get a timestamp suffix; only the newest
// maxBackups are kept.
type RotatingWriter struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	file       *os.File
	size       int64
}

// NewRotatingWriter opens (or creates) the log file at path.
// maxSize is in bytes; maxBackups is the number of rotated files to keep.
func NewRotatingWriter(path string, maxSize int64, maxBackups int) (*RotatingWriter, error) {
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	w := &RotatingWriter{
		path:       path,
		maxSize:    maxSize,
		maxBackups: maxBackups,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("log: unable to open %s: %w", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("log: unable to stat %s: %w", w.path, err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write implements io.Writer.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(); err != nil {
			return 0, err
		}
	}

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			// Rotation failure is non-fatal; keep writing to the old file
			fmt.Fprintf(os.Stderr, "log: rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// rotate renames the current file with a timestamp suffix and reopens.
// Caller must hold w.mu.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}

	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	timestamp := time.Now().Format("20060102_150405")
	rotated := fmt.Sprintf("%s-%s%s", base, timestamp, ext)

	if err := os.Rename(w.path, rotated); err != nil {
		return err
	}

	w.pruneBackups(base, ext)
	return w.open()
}

// pruneBackups removes old rotated files beyond maxBackups.
func (w *RotatingWriter) pruneBackups(base, ext string) {
	pattern := base + "-*" + ext
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) <= w.maxBackups {
		return
	}

	// Timestamp suffix sorts lexicographically; oldest first
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-w.maxBackups] {
		os.Remove(old)
	}
}
