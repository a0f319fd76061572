package rules

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/patternmatcher"

	"housekeeper/internal/config"
	"housekeeper/internal/watch"
)

// Action names accepted in rule configuration.
const (
	ActionDelete = "delete"
	ActionMove   = "move"
	ActionNotify = "notify"
)

// Rule is one compiled housekeeping rule. Rules are evaluated in configured
// order against every dispatched event.
type Rule struct {
	Name        string
	Action      string
	Destination string
	Cooldown    time.Duration
	Exclusive   bool
	Notify      bool

	// Kinds restricts the event kinds the rule reacts to. Empty means the
	// kinds natural to the action.
	Kinds []watch.Kind

	pattern string
	matcher *patternmatcher.PatternMatcher
}

// FromConfig compiles configured rules, preserving their order.
func FromConfig(cfgRules []config.Rule) ([]Rule, error) {
	compiled := make([]Rule, 0, len(cfgRules))
	for i, rc := range cfgRules {
		rule, err := New(rc)
		if err != nil {
			return nil, fmt.Errorf("rules[%d] %q: %w", i, rc.Name, err)
		}
		compiled = append(compiled, rule)
	}
	return compiled, nil
}

// New compiles a single configured rule.
func New(rc config.Rule) (Rule, error) {
	matcher, err := patternmatcher.New(watch.ExpandPatterns([]string{rc.Pattern}))
	if err != nil {
		return Rule{}, fmt.Errorf("compile pattern %q: %w", rc.Pattern, err)
	}
	return Rule{
		Name:        rc.Name,
		Action:      rc.Action,
		Destination: rc.Destination,
		Cooldown:    rc.CooldownWindow(),
		Exclusive:   rc.Exclusive,
		Notify:      rc.Notify,
		pattern:     rc.Pattern,
		matcher:     matcher,
	}, nil
}

// BuiltinNotifyNewItem returns the fallback rule used when no rules are
// configured: announce every new entry, the stock watcher behavior.
func BuiltinNotifyNewItem() Rule {
	rule, err := New(config.Rule{
		Name:    "notify-new-item",
		Pattern: "*",
		Action:  ActionNotify,
	})
	if err != nil {
		panic(fmt.Sprintf("compile builtin rule: %v", err))
	}
	rule.Kinds = []watch.Kind{watch.KindCreated}
	return rule
}

// Pattern returns the raw configured pattern.
func (r *Rule) Pattern() string {
	return r.pattern
}

// Matches reports whether path, which must live under the target root,
// matches the rule pattern. The pattern is applied to the root-relative
// path; a separator-free pattern matches at any depth, and a matching
// parent directory matches its children.
func (r *Rule) Matches(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	matched, err := r.matcher.MatchesOrParentMatches(filepath.ToSlash(rel))
	return err == nil && matched
}

// AppliesTo reports whether the rule reacts to an event kind. Actions that
// operate on the file need the subject to still exist; notify rules react
// to any change. Resync events never reach rule evaluation.
func (r *Rule) AppliesTo(kind watch.Kind) bool {
	if kind == watch.KindResync {
		return false
	}
	if len(r.Kinds) > 0 {
		for _, k := range r.Kinds {
			if k == kind {
				return true
			}
		}
		return false
	}
	switch r.Action {
	case ActionDelete, ActionMove:
		return kind == watch.KindCreated || kind == watch.KindModified
	default:
		return true
	}
}
