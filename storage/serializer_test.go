package storage

import (
	"strings"
	"testing"

	"github.com/huykn/assessment-cache/types"
)

func TestJSONSerializerRow(t *testing.T) {
	serializer := NewJSONSerializer()

	row := types.Row{
		ClientID:        "client-1",
		RiskAnalysis:    types.RowRiskAnalysis{Score: 0.3, Reasons: []string{"AUTOMATION"}},
		TokenProperties: types.RowTokenProperties{Valid: true},
	}

	data, err := serializer.Marshal(row)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	// Rows without a creation time rely on the table default.
	if got := string(data); strings.Contains(got, `"timestamp"`) {
		t.Fatalf("timestamp should be omitted, got %s", got)
	}

	var result types.Row
	if err := serializer.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if result.ClientID != "client-1" || result.RiskAnalysis.Score != 0.3 || !result.TokenProperties.Valid {
		t.Fatalf("Unmarshaled row doesn't match original: %+v", result)
	}
}

func TestJSONSerializerUnmarshalError(t *testing.T) {
	var row types.Row
	if err := NewJSONSerializer().Unmarshal([]byte("{"), &row); err == nil {
		t.Fatal("Expected error for truncated input")
	}
}

func TestGetSerializer(t *testing.T) {
	tests := []struct {
		format string
		valid  bool
	}{
		{"json", true},
		{"", true},
		{"msgpack", false},
	}

	for _, test := range tests {
		serializer, err := GetSerializer(test.format)
		if test.valid && err != nil {
			t.Fatalf("Failed to get serializer for format %q: %v", test.format, err)
		}
		if !test.valid && err == nil {
			t.Fatalf("Should return error for invalid format %q", test.format)
		}
		if test.valid && serializer == nil {
			t.Fatalf("Serializer should not be nil for format %q", test.format)
		}
	}
}
