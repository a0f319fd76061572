package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// runCommand abstracts process execution so tests can observe invocations.
type runCommand func(ctx context.Context, name string, args ...string) error

func execRun(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

type desktopSink struct {
	goos string
	run  runCommand
}

// newDesktopSink raises OS desktop notifications through the platform's
// notification command. Platforms without one accept and drop messages;
// delivery is advisory either way.
func newDesktopSink(run runCommand) *desktopSink {
	if run == nil {
		run = execRun
	}
	return &desktopSink{goos: runtime.GOOS, run: run}
}

func (d *desktopSink) Name() string { return "desktop" }

func (d *desktopSink) Send(ctx context.Context, msg Message) error {
	name, args, ok := desktopCommand(d.goos, msg)
	if !ok {
		return nil
	}
	if err := d.run(ctx, name, args...); err != nil {
		return fmt.Errorf("desktop notification via %s: %w", name, err)
	}
	return nil
}

func desktopCommand(goos string, msg Message) (string, []string, bool) {
	switch goos {
	case "linux":
		return "notify-send", []string{
			"--app-name=Housekeeper",
			"--expire-time=5000",
			msg.Title,
			msg.Body,
		}, true
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			appleScriptString(msg.Body), appleScriptString(msg.Title))
		return "osascript", []string{"-e", script}, true
	default:
		return "", nil, false
	}
}

func appleScriptString(s string) string {
	quoted := make([]byte, 0, len(s)+2)
	quoted = append(quoted, '"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			quoted = append(quoted, '\\')
		}
		quoted = append(quoted, s[i])
	}
	return string(append(quoted, '"'))
}
