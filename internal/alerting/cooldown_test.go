package alerting

import (
	"testing"
	"time"
)

func TestCooldownTracker_AllowsFirstAlert(t *testing.T) {
	c := NewCooldownTracker()
	if !c.Allow("failover:green", time.Minute) {
		t.Fatal("expected first alert to be allowed")
	}
}

func TestCooldownTracker_BlocksWithinWindow(t *testing.T) {
	c := NewCooldownTracker()
	c.Allow("failover:green", time.Minute)
	if c.Allow("failover:green", time.Minute) {
		t.Fatal("expected second alert within cooldown to be blocked")
	}
}

func TestCooldownTracker_AllowsAfterWindow(t *testing.T) {
	c := NewCooldownTracker()
	c.Allow("failover:green", 50*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	if !c.Allow("failover:green", 50*time.Millisecond) {
		t.Fatal("expected alert after cooldown window to be allowed")
	}
}

func TestCooldownTracker_KeysAreIndependent(t *testing.T) {
	c := NewCooldownTracker()
	c.Allow("failover:green", time.Minute)
	if !c.Allow("high_error_rate:green", time.Minute) {
		t.Fatal("expected a different kind on the same pool to be allowed")
	}
	if !c.Allow("failover:blue", time.Minute) {
		t.Fatal("expected the same kind on a different pool to be allowed")
	}
}

func TestCooldownTracker_LastSent(t *testing.T) {
	c := NewCooldownTracker()
	if _, ok := c.LastSent("failover:green"); ok {
		t.Fatal("expected no timestamp before any alert")
	}
	before := time.Now()
	c.Allow("failover:green", time.Minute)
	last, ok := c.LastSent("failover:green")
	if !ok {
		t.Fatal("expected a timestamp after an allowed alert")
	}
	if last.Before(before) {
		t.Fatalf("expected timestamp at or after %v, got %v", before, last)
	}
}
