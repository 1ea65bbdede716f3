package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cwbudde/cogstim/internal/dots"
)

// LayoutFile is the name of the per-dataset layout trace.
const LayoutFile = "layouts.jsonl"

// LayoutEntry records the circles behind one saved image.
// Each entry is serialized as a JSON line in layouts.jsonl.
type LayoutEntry struct {
	// Image is the path of the image relative to the dataset root
	Image   string        `json:"image"`
	Canvas  dots.Canvas   `json:"canvas"`
	Circles []dots.Circle `json:"circles"`
}

// NewLayoutEntry captures a point set for the given image path.
func NewLayoutEntry(image string, set dots.PointSet) LayoutEntry {
	return LayoutEntry{Image: image, Canvas: set.Canvas(), Circles: set.Circles()}
}

// PointSet rebuilds and validates the recorded layout.
func (e LayoutEntry) PointSet() (dots.PointSet, error) {
	return dots.FromCircles(e.Canvas, e.Circles)
}

// LayoutWriter appends layout entries to a JSONL file.
// It uses buffered I/O and is safe for concurrent use.
type LayoutWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewLayoutWriter opens <dir>/layouts.jsonl. If append is false an existing
// file is truncated.
func NewLayoutWriter(dir string, append bool) (*LayoutWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create layout directory: %w", err)
	}

	path := filepath.Join(dir, LayoutFile)
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open layout file: %w", err)
	}

	return &LayoutWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write buffers one entry.
func (lw *LayoutWriter) Write(entry LayoutEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal layout entry: %w", err)
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()

	if _, err := lw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write layout entry: %w", err)
	}
	if err := lw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Flush writes buffered entries and syncs the file.
func (lw *LayoutWriter) Flush() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush layout writer: %w", err)
	}
	if err := lw.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync layout file: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the file.
func (lw *LayoutWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.writer.Flush(); err != nil {
		lw.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := lw.file.Close(); err != nil {
		return fmt.Errorf("failed to close layout file: %w", err)
	}
	return nil
}

// Path returns the filesystem path to the layout file.
func (lw *LayoutWriter) Path() string {
	return lw.path
}

// ReadLayouts reads every entry of <dir>/layouts.jsonl.
func ReadLayouts(dir string) ([]LayoutEntry, error) {
	file, err := os.Open(filepath.Join(dir, LayoutFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s in %s: %w", LayoutFile, dir, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open layout file: %w", err)
	}
	defer file.Close()

	return DecodeLayouts(file)
}

// DecodeLayouts parses JSONL layout entries from r.
func DecodeLayouts(r io.Reader) ([]LayoutEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var entries []LayoutEntry
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry LayoutEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal layout entry on line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan layout file: %w", err)
	}
	return entries, nil
}
