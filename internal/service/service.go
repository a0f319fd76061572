package service

import (
	"errors"
	"log/slog"

	"housekeeper/internal/config"
	"housekeeper/internal/pidfile"
)

// Controller errors mapped to CLI exit codes.
var (
	// ErrAlreadyRunning aliases the pidfile sentinel so callers handle one
	// error regardless of which layer detected the duplicate.
	ErrAlreadyRunning = pidfile.ErrAlreadyRunning

	ErrNotRunning  = errors.New("daemon not running")
	ErrStopTimeout = errors.New("daemon did not stop in time")
	ErrPermission  = errors.New("insufficient permissions")
)

// State describes the service as the platform sees it.
type State string

const (
	StateNotInstalled State = "not-installed"
	StateInstalled    State = "installed"
	StateRunning      State = "running"
	StateStopped      State = "stopped"
	StateFailed       State = "failed"
)

// Descriptor identifies the managed background service.
type Descriptor struct {
	Name        string
	DisplayName string
	Executable  string
	Args        []string
	WorkingDir  string
	AutoStart   bool
}

// Controller manages the daemon's lifecycle through the platform's service
// machinery: detached processes plus launchd/systemd autostart artifacts on
// unix, the service control manager on windows. Reinstalling an identical
// descriptor is a no-op success.
type Controller interface {
	Install(desc Descriptor) error
	Start() error
	Stop() error
	Uninstall() error
	Status() (State, error)
}

// NewController returns the controller for the current platform.
func NewController(cfg *config.Config, logger *slog.Logger, desc Descriptor) Controller {
	return newController(cfg, logger, desc)
}
