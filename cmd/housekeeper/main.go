package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"housekeeper/internal/config"
	"housekeeper/internal/service"
)

// Exit codes consumed by installers and service managers. Cobra reserves 2
// for usage errors.
const (
	exitOK             = 0
	exitFailure        = 1
	exitAlreadyRunning = 3
	exitNotRunning     = 4
	exitStopTimeout    = 5
	exitPermission     = 6
	exitConfigInvalid  = 7
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, service.ErrAlreadyRunning):
		return exitAlreadyRunning
	case errors.Is(err, service.ErrNotRunning):
		return exitNotRunning
	case errors.Is(err, service.ErrStopTimeout):
		return exitStopTimeout
	case errors.Is(err, service.ErrPermission), errors.Is(err, os.ErrPermission):
		return exitPermission
	case errors.Is(err, config.ErrInvalid):
		return exitConfigInvalid
	default:
		return exitFailure
	}
}
