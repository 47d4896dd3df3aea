package cache

import (
	"testing"

	"github.com/huykn/assessment-cache/types"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	a := types.Event{
		"recaptcha":   `{"token":"T","action":"login"}`,
		"ip_override": "10.0.0.1",
		"nested":      map[string]any{"b": 2, "a": 1},
	}
	b := types.Event{
		"nested":      map[string]any{"a": 1, "b": 2},
		"ip_override": "10.0.0.1",
		"recaptcha":   `{"token":"T","action":"login"}`,
	}

	ka, err := DeriveKey(a)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	kb, err := DeriveKey(b)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if ka != kb {
		t.Fatalf("Expected equal keys, got %s and %s", ka, kb)
	}
	if ka.IsZero() {
		t.Fatal("Key should not be zero")
	}
	if len(ka.String()) != 64 {
		t.Fatalf("Expected 64 hex chars, got %d", len(ka.String()))
	}
}

func TestDeriveKeyDiffersOnAnyField(t *testing.T) {
	base := types.Event{"recaptcha": `{"token":"T","action":"login"}`, "user_agent": "ua-1"}
	changed := base.Clone()
	changed["user_agent"] = "ua-2"

	k1, err := DeriveKey(base)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	k2, err := DeriveKey(changed)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	if k1 == k2 {
		t.Fatal("Keys should differ when a context field differs")
	}
}

func TestDeriveKeyRejectsUnmarshalable(t *testing.T) {
	if _, err := DeriveKey(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("Expected error for unmarshalable payload")
	}
}
