package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/oschwald/geoip2-golang"
)

// ErrDatabaseUnavailable distinguishes a broken location subsystem from
// an IP that simply has no known location. Callers can log it and keep
// serving requests with unresolved locations.
var ErrDatabaseUnavailable = errors.New("geo database unavailable")

// DefaultDBPath is where the GeoLite2 City database is expected when
// GEO_DB_PATH is not set, relative to the working directory.
const DefaultDBPath = "geo/GeoLite2-City.mmdb"

// Reader owns the process-wide MaxMind database handle. The file is
// opened lazily on first lookup, at most once, and the handle is shared
// by all subsequent lookups. All methods are safe for concurrent use.
type Reader struct {
	path string

	mu     sync.RWMutex
	db     *geoip2.Reader
	opened bool
	err    error
}

// NewReader returns a Reader for the MMDB file at path. No I/O happens
// until the first lookup; an empty path selects DefaultDBPath.
func NewReader(path string) *Reader {
	if path == "" {
		path = DefaultDBPath
	}
	return &Reader{path: path}
}

// Path returns the configured database location.
func (r *Reader) Path() string { return r.path }

// City looks up the City record for the given IP address, opening the
// database first if no lookup has run yet. The read lock is held for the
// duration of the lookup so a concurrent Reload cannot close the handle
// underneath it.
func (r *Reader) City(ip net.IP) (*geoip2.City, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.err != nil {
		return nil, r.err
	}
	record, err := r.db.City(ip)
	if err != nil {
		return nil, fmt.Errorf("city lookup failed: %w", err)
	}
	return record, nil
}

// ensureOpen performs the one-time open under the write lock. A failed
// open is remembered so that lookups do not retry the filesystem on
// every request; Reload clears it.
func (r *Reader) ensureOpen() error {
	r.mu.RLock()
	if r.opened {
		err := r.err
		r.mu.RUnlock()
		return err
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		return r.err
	}

	db, err := geoip2.Open(r.path)
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrDatabaseUnavailable, err)
	} else {
		r.db = db
	}
	r.opened = true
	return r.err
}

// Ready reports whether the database can serve lookups, opening it if
// necessary. Used by the readiness probe.
func (r *Reader) Ready() error {
	return r.ensureOpen()
}

// Reload replaces the current handle with a freshly opened one and
// closes the old handle.
func (r *Reader) Reload() error {
	db, err := geoip2.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseUnavailable, err)
	}

	r.mu.Lock()
	old := r.db
	r.db = db
	r.err = nil
	r.opened = true
	r.mu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// Watch reloads the database whenever the file at the configured path is
// replaced, which is how GeoLite2 updates are shipped. It blocks until
// ctx is done.
func (r *Reader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: updates typically rename a temp file over the
	// database, which drops a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(r.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if err := r.Reload(); err != nil {
				slog.Error("geo database reload failed", "path", r.path, "error", err)
				continue
			}
			slog.Info("geo database reloaded", "path", r.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("geo database watcher error", "error", err)
		}
	}
}

// Close releases the database handle if one was opened.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.err = ErrDatabaseUnavailable
	return err
}
