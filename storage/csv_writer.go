package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"flipscout/models"
)

const lockTimeout = 30 * time.Second

// CSVWriter appends tables to one CSV file per table name inside a
// directory. Every append writes the header row first, so each run leaves a
// visible boundary in the file. A lock file in the directory keeps two
// processes from interleaving rows.
type CSVWriter struct {
	mu     sync.Mutex
	dir    string
	lock   *flock.Flock
	closed bool
}

// NewCSVWriter prepares dir for appends. Intermediate directories are
// created automatically.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, ".flipscout.lock")),
	}, nil
}

// Path returns the file a table is appended to.
func (c *CSVWriter) Path(table string) string {
	return filepath.Join(c.dir, table+".csv")
}

// Append encodes t and appends it to its file in a single write.
func (c *CSVWriter) Append(ctx context.Context, t models.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := Validate(t); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return fmt.Errorf("csv: encode header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("csv: encode rows: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := c.lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("csv: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("csv: lock %s held by another process", c.lock.Path())
	}
	defer func() { _ = c.lock.Unlock() }()

	f, err := os.OpenFile(c.Path(t.Name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csv: open %s: %w", t.Name, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write %s: %w", t.Name, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: sync %s: %w", t.Name, err)
	}
	return f.Close()
}

// Close marks the writer closed. Files are closed after every append.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
