//go:build !windows

package service

import (
	"context"
	"errors"
	"time"
)

// IsWindowsService always reports false outside Windows.
func IsWindowsService() (bool, error) {
	return false, nil
}

// RunAsService is unavailable outside Windows; the daemon runs detached
// instead.
func RunAsService(name string, shutdownWindow time.Duration, run func(ctx context.Context) error) error {
	return errors.New("service control manager is only available on windows")
}
