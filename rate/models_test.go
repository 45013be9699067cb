package rate

import (
	"testing"
	"time"

	"github.com/xraph/leasing/types"
)

func TestDefault(t *testing.T) {
	r := Default()

	if !r.Valid() {
		t.Fatal("Default rate should be valid")
	}
	if !r.Price.Equal(types.Sun(100_000)) {
		t.Errorf("Price: got %v, want 0.1 TRX", r.Price)
	}
	if r.Capacity != 11_800 {
		t.Errorf("Capacity: got %d, want 11800", r.Capacity)
	}
	if r.Duration != 10*time.Minute {
		t.Errorf("Duration: got %v, want 10m", r.Duration)
	}
	if r.MinNativeCapacity != 60_000 {
		t.Errorf("MinNativeCapacity: got %d, want 60000", r.MinNativeCapacity)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name  string
		rate  Rate
		valid bool
	}{
		{"Default", Default(), true},
		{"Zero value", Rate{}, false},
		{"Zero price", Rate{Capacity: 100, Duration: time.Minute, MinNativeCapacity: 1}, false},
		{"Negative price", Rate{Price: types.Sun(-1), Capacity: 100, Duration: time.Minute, MinNativeCapacity: 1}, false},
		{"Zero capacity", Rate{Price: types.Sun(1), Duration: time.Minute, MinNativeCapacity: 1}, false},
		{"Zero duration", Rate{Price: types.Sun(1), Capacity: 100, MinNativeCapacity: 1}, false},
		{"Zero threshold", Rate{Price: types.Sun(1), Capacity: 100, Duration: time.Minute}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rate.Valid(); got != tt.valid {
				t.Errorf("Valid: got %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestQualifies(t *testing.T) {
	r := Default()

	tests := []struct {
		name      string
		paid      types.Amount
		qualifies bool
	}{
		{"Exact price", types.Sun(100_000), true},
		{"Overpayment", types.TRX(1), true},
		{"One sun short", types.Sun(99_999), false},
		{"Zero", types.ZeroAmount, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Qualifies(tt.paid); got != tt.qualifies {
				t.Errorf("Qualifies(%v): got %v, want %v", tt.paid, got, tt.qualifies)
			}
		})
	}
}
