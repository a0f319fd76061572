package pidfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrAlreadyRunning reports that another live daemon instance holds the
// guard for the same service identity.
var ErrAlreadyRunning = errors.New("daemon already running")

// Record is the on-disk pid record written next to the lock file.
type Record struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	LockPath  string    `json:"lock_path"`
}

// Guard enforces single-instance execution. It pairs a flock-held lock file
// with a JSON pid record so that stale records from crashed instances are
// detected and reclaimed.
type Guard struct {
	service    string
	lockPath   string
	recordPath string
	lock       *flock.Flock
	record     Record
}

// Acquire takes the instance lock for service inside stateDir and writes a
// fresh pid record. It fails with ErrAlreadyRunning when a live instance
// holds the lock or owns a live pid record.
func Acquire(stateDir, service string) (*Guard, error) {
	if service == "" {
		return nil, errors.New("pidfile: service name required")
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	g := &Guard{
		service:    service,
		lockPath:   filepath.Join(stateDir, service+".lock"),
		recordPath: filepath.Join(stateDir, service+".pid"),
	}
	g.lock = flock.New(g.lockPath)

	ok, err := g.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", g.lockPath, err)
	}
	if !ok {
		if rec, readErr := readRecord(g.recordPath); readErr == nil {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, rec.PID)
		}
		return nil, ErrAlreadyRunning
	}

	// Holding the lock proves no live locker exists, but a record can
	// survive a crash or an unclean shutdown. A record pointing at a
	// live foreign process means something else owns this identity.
	if rec, readErr := readRecord(g.recordPath); readErr == nil {
		if rec.PID != os.Getpid() && recordAlive(rec) {
			_ = g.lock.Unlock()
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, rec.PID)
		}
		_ = os.Remove(g.recordPath)
	}

	g.record = Record{
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
		LockPath:  g.lockPath,
	}
	if err := writeRecord(g.recordPath, g.record); err != nil {
		_ = g.lock.Unlock()
		return nil, err
	}
	return g, nil
}

// Record returns the pid record written at acquisition time.
func (g *Guard) Record() Record {
	return g.record
}

// RecordPath returns the location of the pid record on disk.
func (g *Guard) RecordPath() string {
	return g.recordPath
}

// LockPath returns the location of the lock file on disk.
func (g *Guard) LockPath() string {
	return g.lockPath
}

// Release removes the pid record and drops the lock. Safe to call more than
// once; every daemon exit path must reach it.
func (g *Guard) Release() error {
	if g == nil {
		return nil
	}
	var errs []error
	if g.recordPath != "" {
		if err := os.Remove(g.recordPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove pid record: %w", err))
		}
	}
	if g.lock != nil {
		if err := g.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		}
		g.lock = nil
		if err := os.Remove(g.lockPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove lock file: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Read returns the pid record for service without taking the lock.
func Read(stateDir, service string) (Record, error) {
	return readRecord(filepath.Join(stateDir, service+".pid"))
}

// Remove deletes the record and lock files for service. It is for cleanup
// after a force-killed daemon that could not release its own guard; a live
// daemon removes its files through Release.
func Remove(stateDir, service string) error {
	var errs []error
	for _, path := range []string{
		filepath.Join(stateDir, service+".pid"),
		filepath.Join(stateDir, service+".lock"),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// IsRunning reports whether a live instance of service exists according to
// its pid record. A missing record means not running; a stale record (dead
// pid, or a recycled pid whose process start time postdates the record) also
// means not running.
func IsRunning(stateDir, service string) (bool, Record, error) {
	rec, err := Read(stateDir, service)
	if err != nil {
		if os.IsNotExist(err) {
			return false, Record{}, nil
		}
		return false, Record{}, err
	}
	return recordAlive(rec), rec, nil
}

func recordAlive(rec Record) bool {
	if rec.PID <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(rec.PID))
	if err != nil || !exists {
		return false
	}
	proc, err := process.NewProcess(int32(rec.PID))
	if err != nil {
		return false
	}
	createMillis, err := proc.CreateTime()
	if err != nil {
		// Existence is confirmed; without a start time assume it is ours.
		return true
	}
	created := time.UnixMilli(createMillis)
	// A process born after the record was written is a pid reuse, not the
	// daemon the record describes. One second of slack absorbs clock skew
	// between the kernel's boot-relative clock and wall time.
	return !created.After(rec.StartedAt.Add(time.Second))
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("parse pid record %s: %w", path, err)
	}
	if rec.PID <= 0 {
		return Record{}, fmt.Errorf("parse pid record %s: missing pid", path)
	}
	return rec, nil
}

func writeRecord(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pid record: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write pid record %s: %w", path, err)
	}
	return nil
}
