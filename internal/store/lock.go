package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked is returned by Lock when another live process holds the
// workspace lock.
var ErrLocked = errors.New("workspace is locked by another process")

const lockFileName = "lock.json"

// lockInfo is the content of the advisory lock file: enough to tell a
// stale lock (holder process no longer exists) from a live one.
type lockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	Acquired  time.Time `json:"acquired"`
}

// Lock is a released-by-Unlock advisory lock over one workspace's metadata
// directory. Only one process per workspace should mutate the catalogue,
// snapshot history, or lineage trees at a time.
type Lock struct {
	path string
}

// AcquireLock creates the advisory lock file in metaDir, refusing if a live
// holder already exists. A lock file whose PID is no longer running is
// treated as stale and silently replaced.
func AcquireLock(metaDir string) (*Lock, error) {
	path := filepath.Join(metaDir, lockFileName)

	hostname, _ := os.Hostname()

	if existing, err := readLockInfo(path); err == nil {
		sameHost := existing.Hostname == hostname
		if !sameHost || processAlive(existing.PID) {
			return nil, fmt.Errorf("%w (pid %d on %s since %s)", ErrLocked,
				existing.PID, existing.Hostname, existing.Acquired.Format(time.RFC3339))
		}
		// Stale: holder process is gone on this same host. Remove and proceed.
		os.Remove(path)
	}

	info := lockInfo{PID: os.Getpid(), Hostname: hostname, Acquired: time.Now()}

	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal lock info: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w", ErrLocked)
		}

		return nil, fmt.Errorf("create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(raw); err != nil {
		os.Remove(path)

		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Lock{path: path}, nil
}

// Unlock releases the lock by removing its file.
func (l *Lock) Unlock() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}

	return nil
}

func readLockInfo(path string) (lockInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return lockInfo{}, fmt.Errorf("read lock file: %w", err)
	}

	var info lockInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return lockInfo{}, fmt.Errorf("unmarshal lock file: %w", err)
	}

	return info, nil
}

// processAlive reports whether pid names a running process. On platforms
// without /proc, it falls back to assuming any positive pid is alive
// (never declares a foreign-host lock stale by guesswork).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	if _, err := os.Stat("/proc/self"); err != nil {
		return true
	}

	if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); err == nil {
		return true
	} else if errors.Is(err, os.ErrNotExist) {
		return false
	}

	return true
}
