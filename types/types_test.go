package types

import (
	"encoding/json"
	"testing"
)

func TestEventRecaptcha(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    Recaptcha
		wantOK  bool
		wantErr bool
	}{
		{"absent", nil, Recaptcha{}, false, false},
		{"empty string", "", Recaptcha{}, false, false},
		{"unsupported type", 42, Recaptcha{}, false, false},
		{"json string", `{"token":"T","action":"login","siteKey":"K"}`, Recaptcha{Token: "T", Action: "login", SiteKey: "K"}, true, false},
		{"object", map[string]any{"token": "T", "action": "login"}, Recaptcha{Token: "T", Action: "login"}, true, false},
		{"malformed", "{", Recaptcha{}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := Event{}
			if tt.value != nil {
				event[FieldRecaptcha] = tt.value
			}

			got, ok, err := event.Recaptcha()
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestEventCloneAndString(t *testing.T) {
	event := Event{FieldClientID: "c1", FieldScore: 0.5}
	clone := event.Clone()
	clone[FieldClientID] = "c2"

	if event.String(FieldClientID) != "c1" {
		t.Fatal("Clone should not share the map")
	}
	if event.String(FieldScore) != "" {
		t.Fatal("String should be empty for non-string fields")
	}
}

func TestAssessmentRedacted(t *testing.T) {
	original := &Assessment{
		Event:        &AssessmentEvent{Token: "T", ExpectedAction: "login"},
		RiskAnalysis: RiskAnalysis{Score: 0.9, Reasons: []string{}},
	}

	redacted := original.Redacted()

	if redacted.Event.Token != "" {
		t.Fatal("Token should be removed")
	}
	if original.Event.Token != "T" {
		t.Fatal("Original should keep its token")
	}
	if redacted.RiskAnalysis.Reasons == nil {
		t.Fatal("Empty reasons should stay empty, not nil")
	}
	redacted.RiskAnalysis.Reasons = append(redacted.RiskAnalysis.Reasons, "X")
	if len(original.RiskAnalysis.Reasons) != 0 {
		t.Fatal("Reasons should not be shared")
	}

	var nilAssessment *Assessment
	if nilAssessment.Redacted() != nil {
		t.Fatal("Redacting nil should return nil")
	}
}

func TestAssessmentMarshalKeepsBackendFields(t *testing.T) {
	raw := []byte(`{
		"name": "projects/1/assessments/a",
		"event": {"token": "T", "expectedAction": "login", "hashedAccountId": "abc"},
		"riskAnalysis": {"score": 0.9, "reasons": []},
		"tokenProperties": {"valid": true, "action": "purchase"},
		"accountDefenderAssessment": {"labels": ["PROFILE_MATCH"]}
	}`)

	var assessment Assessment
	if err := json.Unmarshal(raw, &assessment); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	assessment.Raw = raw
	assessment.TokenProperties.Valid = false

	data, err := json.Marshal(assessment.Redacted())
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}

	if _, ok := out["accountDefenderAssessment"]; !ok {
		t.Fatalf("Unmodelled backend fields should survive, got %s", data)
	}
	event := out["event"].(map[string]any)
	if _, ok := event["token"]; ok {
		t.Fatalf("Token should be removed, got %s", data)
	}
	if event["hashedAccountId"] != "abc" {
		t.Fatalf("Unmodelled event fields should survive, got %s", data)
	}
	if out["tokenProperties"].(map[string]any)["valid"] != false {
		t.Fatalf("Typed fields should override the raw response, got %s", data)
	}

	if assessment.Event.Token != "T" {
		t.Fatal("Redacting should not touch the original")
	}
}

func TestAssessmentMarshalWithoutRaw(t *testing.T) {
	data, err := json.Marshal(&Assessment{RiskAnalysis: RiskAnalysis{Score: 0.5}})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if out["riskAnalysis"].(map[string]any)["score"] != 0.5 {
		t.Fatalf("Unexpected output %s", data)
	}
	if _, ok := out["Raw"]; ok {
		t.Fatal("Raw should not be encoded as a field")
	}
}
