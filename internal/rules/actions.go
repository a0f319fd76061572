package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"housekeeper/internal/fileutil"
	"housekeeper/internal/watch"
)

// Invocation carries one matched event to an action.
type Invocation struct {
	Rule   Rule
	Target string
	Path   string
	Kind   watch.Kind
}

// Action performs the housekeeping behavior of a fired rule.
type Action interface {
	Name() string
	Run(ctx context.Context, inv Invocation) error
}

// Registry maps action names to implementations.
type Registry map[string]Action

// NewRegistry returns the built-in action set.
func NewRegistry() Registry {
	return Registry{
		ActionDelete: deleteAction{},
		ActionMove:   moveAction{},
		ActionNotify: notifyAction{},
	}
}

// Lookup returns the named action.
func (r Registry) Lookup(name string) (Action, bool) {
	action, ok := r[name]
	return action, ok
}

type deleteAction struct{}

func (deleteAction) Name() string { return ActionDelete }

func (deleteAction) Run(ctx context.Context, inv Invocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filepath.Clean(inv.Path) == filepath.Clean(inv.Target) {
		return fmt.Errorf("refusing to remove watch root %s", inv.Target)
	}
	info, err := os.Lstat(inv.Path)
	if errors.Is(err, fs.ErrNotExist) {
		// Vanished between the event and the action.
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", inv.Path, err)
	}
	if info.IsDir() {
		if err := os.RemoveAll(inv.Path); err != nil {
			return fmt.Errorf("remove directory %s: %w", inv.Path, err)
		}
		return nil
	}
	if err := os.Remove(inv.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", inv.Path, err)
	}
	return nil
}

type moveAction struct{}

func (moveAction) Name() string { return ActionMove }

func (moveAction) Run(ctx context.Context, inv Invocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if inv.Rule.Destination == "" {
		return fmt.Errorf("rule %s has no destination", inv.Rule.Name)
	}
	if filepath.Dir(inv.Path) == filepath.Clean(inv.Rule.Destination) {
		// Already where it belongs. Keeps a destination inside the
		// watched tree from firing the rule on its own output.
		return nil
	}
	if _, err := os.Lstat(inv.Path); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", inv.Path, err)
	}

	dst := filepath.Join(inv.Rule.Destination, filepath.Base(inv.Path))
	dst, err := fileutil.UniquePath(dst)
	if err != nil {
		return fmt.Errorf("pick destination name: %w", err)
	}
	if err := fileutil.MoveFile(inv.Path, dst); err != nil {
		return fmt.Errorf("move %s to %s: %w", inv.Path, dst, err)
	}
	return nil
}

// notifyAction has no filesystem effect. Delivery happens on the dispatch
// notification path so a slow sink cannot stall rule evaluation.
type notifyAction struct{}

func (notifyAction) Name() string { return ActionNotify }

func (notifyAction) Run(ctx context.Context, inv Invocation) error {
	return ctx.Err()
}
