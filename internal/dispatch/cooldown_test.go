package dispatch

import (
	"fmt"
	"testing"
	"time"
)

func TestCooldownAllowsFirstFiring(t *testing.T) {
	ledger := newCooldownLedger()
	now := time.Now()

	if !ledger.allow("r", "/a", time.Second, now) {
		t.Fatal("first firing must be allowed")
	}
}

func TestCooldownSuppressesWithinWindow(t *testing.T) {
	ledger := newCooldownLedger()
	now := time.Now()

	ledger.allow("r", "/a", time.Second, now)
	if ledger.allow("r", "/a", time.Second, now.Add(500*time.Millisecond)) {
		t.Fatal("repeat within window must be suppressed")
	}
	if !ledger.allow("r", "/a", time.Second, now.Add(time.Second)) {
		t.Fatal("firing at window expiry must be allowed")
	}
}

func TestCooldownKeyedPerPath(t *testing.T) {
	ledger := newCooldownLedger()
	now := time.Now()

	ledger.allow("r", "/a", time.Minute, now)
	if !ledger.allow("r", "/b", time.Minute, now) {
		t.Fatal("a different path must not be suppressed")
	}
	if !ledger.allow("other", "/a", time.Minute, now) {
		t.Fatal("a different rule must not be suppressed")
	}
}

func TestCooldownZeroWindowNeverSuppresses(t *testing.T) {
	ledger := newCooldownLedger()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !ledger.allow("r", "/a", 0, now) {
			t.Fatalf("zero window suppressed firing %d", i)
		}
	}
	if ledger.size() != 0 {
		t.Fatalf("zero window must not reserve entries, got %d", ledger.size())
	}
}

func TestCooldownSweepDropsExpiredEntries(t *testing.T) {
	ledger := newCooldownLedger()
	now := time.Now()

	for i := 0; i <= maxCooldownEntries; i++ {
		ledger.allow("r", fmt.Sprintf("/p%d", i), time.Millisecond, now)
	}
	// The next reservation after the window passes triggers a sweep.
	ledger.allow("r", "/fresh", time.Minute, now.Add(time.Second))

	if size := ledger.size(); size != 1 {
		t.Fatalf("expected sweep to leave 1 live entry, got %d", size)
	}
}
