// Package sequence issues the durable, strictly increasing export numbers
// that name partner files. The store is a single plain-text integer so
// operators can inspect and, if ever needed, correct it by hand. A sidecar
// file lock makes the increment atomic across independent worker processes.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"pyralink/logging"
)

// ErrLockTimeout is returned when the counter lock cannot be acquired within
// the configured timeout. Retryable: another writer holds the counter.
var ErrLockTimeout = errors.New("sequence: counter lock acquisition timed out")

const lockRetryDelay = 25 * time.Millisecond

// Allocator hands out sequence numbers backed by a shared counter file.
// Safe for use from multiple goroutines and multiple processes; every call
// re-reads the store under the lock, so no value is ever cached.
type Allocator struct {
	path        string
	lockPath    string
	floor       int64
	lockTimeout time.Duration
	log         logging.Logger
}

// New creates an allocator over the counter file at path. The first value
// issued from an empty store is floor.
func New(path string, floor int64, lockTimeout time.Duration, log logging.Logger) *Allocator {
	return &Allocator{
		path:        path,
		lockPath:    path + ".lock",
		floor:       floor,
		lockTimeout: lockTimeout,
		log:         log,
	}
}

// Next returns the next sequence number, strictly greater than every value
// previously issued by any process sharing the counter file. The returned
// value is durable before Next returns; it is never handed out again.
func (a *Allocator) Next(ctx context.Context) (int64, error) {
	lock := flock.New(a.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, a.lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, ErrLockTimeout
		}
		return 0, fmt.Errorf("acquire counter lock: %w", err)
	}
	if !locked {
		return 0, ErrLockTimeout
	}
	defer lock.Unlock()

	last, err := a.readLast()
	if err != nil {
		return 0, err
	}

	next := last + 1
	if next < a.floor {
		next = a.floor
	}
	if err := a.writeLast(next); err != nil {
		return 0, fmt.Errorf("persist sequence %d: %w", next, err)
	}
	return next, nil
}

// Current reports the last issued value without advancing the counter.
// ok is false when the store is absent or unreadable.
func (a *Allocator) Current() (value int64, ok bool) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// readLast returns the last issued value, or floor-1 when the store is
// absent or corrupt. Corruption restarts the sequence at the floor; that is
// recoverable but logged loudly because another writer may hold a higher
// true value, so reissued ids are possible until an operator reconciles.
func (a *Allocator) readLast() (int64, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return a.floor - 1, nil
		}
		return 0, fmt.Errorf("read counter store %s: %w", a.path, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		a.log.Errorf("counter store %s is corrupt (%q), restarting from floor %d; sequence reuse possible, operator attention required",
			a.path, strings.TrimSpace(string(data)), a.floor)
		return a.floor - 1, nil
	}
	return v, nil
}

// writeLast persists the value with write-then-rename so a crash mid-write
// can never leave a truncated counter behind.
func (a *Allocator) writeLast(v int64) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}
	tmp := a.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strconv.FormatInt(v, 10)); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, a.path)
}
