//go:build !windows

package service

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"housekeeper/internal/config"
	"housekeeper/internal/logging"
	"housekeeper/internal/pidfile"
)

const (
	startWaitTimeout = 10 * time.Second
	startPollEvery   = 200 * time.Millisecond
	stopPollEvery    = 100 * time.Millisecond
)

// unixController runs the daemon as a detached process. Liveness comes from
// the pid record; autostart uses a per-platform artifact (launchd agent,
// systemd user unit).
type unixController struct {
	desc         Descriptor
	stateDir     string
	startTimeout time.Duration
	stopTimeout  time.Duration
	logger       *slog.Logger

	launch func(desc Descriptor) (int, error)
	runCmd func(name string, args ...string) error
}

func newController(cfg *config.Config, logger *slog.Logger, desc Descriptor) Controller {
	return &unixController{
		desc:         desc,
		stateDir:     cfg.Paths.StateDir,
		startTimeout: startWaitTimeout,
		stopTimeout:  cfg.Daemon.StopWindow(),
		logger:       logging.NewComponentLogger(logger, "service"),
		launch:       launchDetached,
		runCmd:       runCommand,
	}
}

// launchDetached starts the descriptor's command in its own session with
// standard streams on /dev/null and releases the process handle, the
// detach-daemon pattern.
func launchDetached(desc Descriptor) (int, error) {
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()

	cmd := exec.Command(desc.Executable, desc.Args...)
	cmd.Dir = desc.WorkingDir
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release daemon process: %w", err)
	}
	return pid, nil
}

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}

func (c *unixController) Install(desc Descriptor) error {
	if desc.Name == "" || desc.Executable == "" {
		return errors.New("descriptor needs a name and executable")
	}
	changed, err := writeAutostart(desc)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %v", ErrPermission, err)
		}
		return err
	}
	if !changed {
		c.logger.Info("service already installed", logging.String("service", desc.Name))
		return nil
	}
	if err := c.enableAutostart(desc); err != nil {
		return err
	}
	c.logger.Info("service installed",
		logging.String("service", desc.Name),
		logging.String("artifact", autostartPath(desc.Name)))
	return nil
}

func (c *unixController) Start() error {
	running, rec, err := pidfile.IsRunning(c.stateDir, c.desc.Name)
	if err != nil {
		return fmt.Errorf("check daemon state: %w", err)
	}
	if running {
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, rec.PID)
	}

	pid, err := c.launch(c.desc)
	if err != nil {
		return err
	}

	// The child owns readiness: it appears started once its pid record
	// lands, not merely once the process exists.
	deadline := time.Now().Add(c.startTimeout)
	for time.Now().Before(deadline) {
		running, rec, err := pidfile.IsRunning(c.stateDir, c.desc.Name)
		if err == nil && running {
			c.logger.Info("daemon started", logging.Int("pid", rec.PID))
			return nil
		}
		time.Sleep(startPollEvery)
	}
	return fmt.Errorf("daemon (pid %d) did not report ready within %s", pid, c.startTimeout)
}

func (c *unixController) Stop() error {
	running, rec, err := pidfile.IsRunning(c.stateDir, c.desc.Name)
	if err != nil {
		return fmt.Errorf("check daemon state: %w", err)
	}
	if !running {
		return ErrNotRunning
	}
	if rec.PID == os.Getpid() {
		return fmt.Errorf("refusing to stop current process (pid %d)", rec.PID)
	}

	proc, err := os.FindProcess(rec.PID)
	if err != nil {
		return fmt.Errorf("locate daemon process %d: %w", rec.PID, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = pidfile.Remove(c.stateDir, c.desc.Name)
			return nil
		}
		return fmt.Errorf("signal daemon %d: %w", rec.PID, err)
	}

	deadline := time.Now().Add(c.stopTimeout)
	for time.Now().Before(deadline) {
		alive, _, checkErr := pidfile.IsRunning(c.stateDir, c.desc.Name)
		if checkErr == nil && !alive {
			c.logger.Info("daemon stopped", logging.Int("pid", rec.PID))
			return nil
		}
		time.Sleep(stopPollEvery)
	}

	// Grace period exhausted; escalate and clean up for the dead process.
	_ = proc.Kill()
	_ = pidfile.Remove(c.stateDir, c.desc.Name)
	c.logger.Warn("daemon force-killed after stop timeout",
		logging.Int("pid", rec.PID),
		logging.Duration("timeout", c.stopTimeout))
	return fmt.Errorf("%w: killed pid %d after %s", ErrStopTimeout, rec.PID, c.stopTimeout)
}

func (c *unixController) Uninstall() error {
	if err := c.Stop(); err != nil && !errors.Is(err, ErrNotRunning) && !errors.Is(err, ErrStopTimeout) {
		return err
	}
	if err := c.disableAutostart(c.desc); err != nil {
		return err
	}
	if err := removeAutostart(c.desc); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %v", ErrPermission, err)
		}
		return err
	}
	_ = pidfile.Remove(c.stateDir, c.desc.Name)
	c.logger.Info("service uninstalled", logging.String("service", c.desc.Name))
	return nil
}

func (c *unixController) Status() (State, error) {
	running, _, err := pidfile.IsRunning(c.stateDir, c.desc.Name)
	if err != nil {
		return StateFailed, fmt.Errorf("check daemon state: %w", err)
	}
	if running {
		return StateRunning, nil
	}
	if autostartInstalled(c.desc.Name) {
		return StateInstalled, nil
	}
	if _, err := pidfile.Read(c.stateDir, c.desc.Name); err == nil {
		return StateStopped, nil
	}
	return StateNotInstalled, nil
}
