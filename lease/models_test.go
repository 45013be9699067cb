package lease

import (
	"testing"
	"time"
)

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusActive, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal: got %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestLeaseIsManual(t *testing.T) {
	manual := &Lease{PaymentRef: ManualPaymentRef}
	if !manual.IsManual() {
		t.Error("Expected manual lease")
	}

	paid := &Lease{PaymentRef: "tx_abc123"}
	if paid.IsManual() {
		t.Error("Expected payment-funded lease")
	}
}

func TestLeaseExpiry(t *testing.T) {
	now := time.Now().UTC()
	l := &Lease{ExpiresAt: now.Add(10 * time.Minute)}

	tests := []struct {
		name      string
		at        time.Time
		expired   bool
		remaining time.Duration
	}{
		{"Fresh", now, false, 10 * time.Minute},
		{"Halfway", now.Add(5 * time.Minute), false, 5 * time.Minute},
		{"At expiry", now.Add(10 * time.Minute), true, 0},
		{"Past expiry", now.Add(time.Hour), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.IsExpired(tt.at); got != tt.expired {
				t.Errorf("IsExpired: got %v, want %v", got, tt.expired)
			}
			if got := l.Remaining(tt.at); got != tt.remaining {
				t.Errorf("Remaining: got %v, want %v", got, tt.remaining)
			}
		})
	}
}

func TestRemainingNonIncreasing(t *testing.T) {
	now := time.Now().UTC()
	l := &Lease{ExpiresAt: now.Add(time.Minute)}

	prev := l.Remaining(now)
	for i := 1; i <= 90; i++ {
		at := now.Add(time.Duration(i) * time.Second)
		cur := l.Remaining(at)
		if cur > prev {
			t.Fatalf("Remaining increased at +%ds: %v > %v", i, cur, prev)
		}
		prev = cur
	}
	if prev != 0 {
		t.Errorf("Remaining after expiry: got %v, want 0", prev)
	}
}
