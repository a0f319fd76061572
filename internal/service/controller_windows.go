//go:build windows

package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"

	"housekeeper/internal/config"
	"housekeeper/internal/logging"
)

// windowsController manages the daemon through the service control manager.
type windowsController struct {
	desc        Descriptor
	stopTimeout time.Duration
	logger      *slog.Logger
}

func newController(cfg *config.Config, logger *slog.Logger, desc Descriptor) Controller {
	return &windowsController{
		desc:        desc,
		stopTimeout: cfg.Daemon.StopWindow(),
		logger:      logging.NewComponentLogger(logger, "service"),
	}
}

func (c *windowsController) Install(desc Descriptor) error {
	m, err := mgr.Connect()
	if err != nil {
		return mapPermission(fmt.Errorf("connect service manager: %w", err))
	}
	defer m.Disconnect()

	if s, openErr := m.OpenService(desc.Name); openErr == nil {
		defer s.Close()
		existing, cfgErr := s.Config()
		if cfgErr == nil && sameRegistration(existing, desc) {
			c.logger.Info("service already installed", logging.String("service", desc.Name))
			return nil
		}
		return fmt.Errorf("service %s already installed with a different configuration", desc.Name)
	}

	startType := uint32(mgr.StartManual)
	if desc.AutoStart {
		startType = mgr.StartAutomatic
	}
	s, err := m.CreateService(desc.Name, desc.Executable, mgr.Config{
		DisplayName: desc.DisplayName,
		Description: "Watches folders and runs housekeeping rules",
		StartType:   startType,
	}, desc.Args...)
	if err != nil {
		return mapPermission(fmt.Errorf("create service: %w", err))
	}
	defer s.Close()

	c.logger.Info("service installed", logging.String("service", desc.Name))
	return nil
}

func (c *windowsController) Start() error {
	m, err := mgr.Connect()
	if err != nil {
		return mapPermission(fmt.Errorf("connect service manager: %w", err))
	}
	defer m.Disconnect()

	s, err := m.OpenService(c.desc.Name)
	if err != nil {
		return fmt.Errorf("service %s is not installed: %w", c.desc.Name, err)
	}
	defer s.Close()

	status, err := s.Query()
	if err == nil && status.State == svc.Running {
		return ErrAlreadyRunning
	}
	if err := s.Start(); err != nil {
		return mapPermission(fmt.Errorf("start service: %w", err))
	}
	c.logger.Info("daemon started", logging.String("service", c.desc.Name))
	return nil
}

func (c *windowsController) Stop() error {
	m, err := mgr.Connect()
	if err != nil {
		return mapPermission(fmt.Errorf("connect service manager: %w", err))
	}
	defer m.Disconnect()

	s, err := m.OpenService(c.desc.Name)
	if err != nil {
		return ErrNotRunning
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return fmt.Errorf("query service: %w", err)
	}
	if status.State == svc.Stopped {
		return ErrNotRunning
	}

	if _, err := s.Control(svc.Stop); err != nil {
		return mapPermission(fmt.Errorf("stop service: %w", err))
	}

	deadline := time.Now().Add(c.stopTimeout)
	for time.Now().Before(deadline) {
		status, err := s.Query()
		if err == nil && status.State == svc.Stopped {
			c.logger.Info("daemon stopped", logging.String("service", c.desc.Name))
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("%w: service %s still stopping after %s", ErrStopTimeout, c.desc.Name, c.stopTimeout)
}

func (c *windowsController) Uninstall() error {
	if err := c.Stop(); err != nil && !errors.Is(err, ErrNotRunning) && !errors.Is(err, ErrStopTimeout) {
		return err
	}

	m, err := mgr.Connect()
	if err != nil {
		return mapPermission(fmt.Errorf("connect service manager: %w", err))
	}
	defer m.Disconnect()

	s, err := m.OpenService(c.desc.Name)
	if err != nil {
		// Nothing registered; uninstall of an absent service succeeds.
		return nil
	}
	defer s.Close()

	if err := s.Delete(); err != nil {
		return mapPermission(fmt.Errorf("delete service: %w", err))
	}
	c.logger.Info("service uninstalled", logging.String("service", c.desc.Name))
	return nil
}

func (c *windowsController) Status() (State, error) {
	m, err := mgr.Connect()
	if err != nil {
		return StateFailed, mapPermission(fmt.Errorf("connect service manager: %w", err))
	}
	defer m.Disconnect()

	s, err := m.OpenService(c.desc.Name)
	if err != nil {
		return StateNotInstalled, nil
	}
	defer s.Close()

	status, err := s.Query()
	if err != nil {
		return StateFailed, fmt.Errorf("query service: %w", err)
	}
	switch status.State {
	case svc.Running, svc.StartPending:
		return StateRunning, nil
	default:
		// Stopped or transitioning; either way the registration exists.
		return StateInstalled, nil
	}
}

func sameRegistration(existing mgr.Config, desc Descriptor) bool {
	wantStart := uint32(mgr.StartManual)
	if desc.AutoStart {
		wantStart = uint32(mgr.StartAutomatic)
	}
	return existing.DisplayName == desc.DisplayName &&
		existing.StartType == wantStart &&
		strings.Contains(existing.BinaryPathName, desc.Executable)
}

func mapPermission(err error) error {
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	return err
}
