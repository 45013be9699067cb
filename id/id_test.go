package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/leasing/id"
)

func TestNewLeaseID(t *testing.T) {
	got := id.NewLeaseID().String()
	if !strings.HasPrefix(got, "lease_") {
		t.Errorf("expected prefix %q, got %q", "lease_", got)
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixLease)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixLease {
		t.Errorf("expected prefix %q, got %q", id.PrefixLease, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := id.NewLeaseID()
	parsed, err := id.ParseLeaseID(original.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
	}
}

func TestCrossTypeRejection(t *testing.T) {
	other := id.New("acct")
	_, err := id.ParseLeaseID(other.String())
	if err == nil {
		t.Errorf("expected error for cross-type parse of %q, got nil", other.String())
	}
}

func TestParseAny(t *testing.T) {
	i := id.NewLeaseID()
	parsed, err := id.ParseAny(i.String())
	if err != nil {
		t.Fatalf("ParseAny(%q) failed: %v", i.String(), err)
	}
	if parsed.String() != i.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), i.String())
	}
}

func TestParseWithPrefix(t *testing.T) {
	i := id.NewLeaseID()
	parsed, err := id.ParseWithPrefix(i.String(), id.PrefixLease)
	if err != nil {
		t.Fatalf("ParseWithPrefix failed: %v", err)
	}
	if parsed.String() != i.String() {
		t.Errorf("mismatch: %q != %q", parsed.String(), i.String())
	}

	_, err = id.ParseWithPrefix(i.String(), "acct")
	if err == nil {
		t.Error("expected error for wrong prefix")
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewLeaseID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewLeaseID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	// Nil round-trip.
	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewLeaseID()
	b := id.NewLeaseID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewLeaseID() calls returned the same ID: %q", a.String())
	}
}
