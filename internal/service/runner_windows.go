//go:build windows

package service

import (
	"context"
	"time"

	"golang.org/x/sys/windows/svc"
)

// IsWindowsService reports whether the process was launched by the service
// control manager rather than an interactive shell.
func IsWindowsService() (bool, error) {
	return svc.IsWindowsService()
}

// RunAsService hands run to the service control manager. Stop and shutdown
// requests cancel the context; the handler waits up to shutdownWindow for
// run to return before reporting stopped.
func RunAsService(name string, shutdownWindow time.Duration, run func(ctx context.Context) error) error {
	return svc.Run(name, &scmHandler{run: run, shutdownWindow: shutdownWindow})
}

type scmHandler struct {
	run            func(ctx context.Context) error
	shutdownWindow time.Duration
}

func (h *scmHandler) Execute(args []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- h.run(ctx)
	}()

	const accepted = svc.AcceptStop | svc.AcceptShutdown
	status <- svc.Status{State: svc.Running, Accepts: accepted}

	for {
		select {
		case err := <-done:
			// The daemon exited on its own, possibly with an error.
			status <- svc.Status{State: svc.StopPending}
			if err != nil {
				return true, 1
			}
			return false, 0
		case req := <-requests:
			switch req.Cmd {
			case svc.Interrogate:
				status <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				cancel()
				select {
				case <-done:
				case <-time.After(h.shutdownWindow):
				}
				return false, 0
			}
		}
	}
}
