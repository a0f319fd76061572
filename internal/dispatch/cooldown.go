package dispatch

import (
	"sync"
	"time"
)

// Ledger entries are swept once the map grows past this size.
const maxCooldownEntries = 4096

type cooldownKey struct {
	rule string
	path string
}

// cooldownLedger suppresses repeat firings of a rule for a path inside the
// rule's cooldown window. Keys are (rule, path) so one path never shadows
// another.
type cooldownLedger struct {
	mu      sync.Mutex
	expires map[cooldownKey]time.Time
}

func newCooldownLedger() *cooldownLedger {
	return &cooldownLedger{expires: make(map[cooldownKey]time.Time)}
}

// allow reports whether the rule may fire for path at now, and reserves the
// cooldown slot when it may. A zero window never suppresses.
func (l *cooldownLedger) allow(rule, path string, window time.Duration, now time.Time) bool {
	if window <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := cooldownKey{rule: rule, path: path}
	if expiry, ok := l.expires[key]; ok && now.Before(expiry) {
		return false
	}
	l.expires[key] = now.Add(window)
	if len(l.expires) > maxCooldownEntries {
		l.sweep(now)
	}
	return true
}

func (l *cooldownLedger) sweep(now time.Time) {
	for key, expiry := range l.expires {
		if !now.Before(expiry) {
			delete(l.expires, key)
		}
	}
}

func (l *cooldownLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expires)
}
