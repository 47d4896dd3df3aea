package types

import "encoding/json"

// Event field names shared by the event source, the service and the sinks.
const (
	FieldRecaptcha = "recaptcha"
	FieldIP        = "ip_override"
	FieldUserAgent = "user_agent"
	FieldClientID  = "client_id"
	FieldScore     = "recaptcha_score"
	FieldValid     = "recaptcha_valid"
)

// Event holds all fields of one inbound analytics hit.
type Event map[string]any

// String returns the string value of field, or "" when absent or not a string.
func (e Event) String(field string) string {
	s, _ := e[field].(string)
	return s
}

// Clone returns a shallow copy of the event.
func (e Event) Clone() Event {
	out := make(Event, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Recaptcha returns the decoded verification payload carried by the event.
// ok is false when the event carries no payload.
func (e Event) Recaptcha() (Recaptcha, bool, error) {
	var payload Recaptcha
	switch v := e[FieldRecaptcha].(type) {
	case nil:
		return payload, false, nil
	case string:
		if v == "" {
			return payload, false, nil
		}
		if err := json.Unmarshal([]byte(v), &payload); err != nil {
			return payload, true, err
		}
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return payload, true, err
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return payload, true, err
		}
	default:
		return payload, false, nil
	}
	return payload, true, nil
}

// Recaptcha is the client-side payload pushed alongside the hit.
type Recaptcha struct {
	Token   string `json:"token"`
	Action  string `json:"action"`
	SiteKey string `json:"siteKey,omitempty"`
}

// Assessment is the normalized verification result for one token.
type Assessment struct {
	Name            string           `json:"name,omitempty"`
	Event           *AssessmentEvent `json:"event,omitempty"`
	RiskAnalysis    RiskAnalysis     `json:"riskAnalysis"`
	TokenProperties TokenProperties  `json:"tokenProperties"`

	// Raw is the backend response body, when the backend returns more than
	// the fields above. MarshalJSON keeps its extra fields.
	Raw json.RawMessage `json:"-"`
}

type assessmentFields Assessment

// MarshalJSON encodes the typed fields over the raw backend response, so
// fields this package does not model survive. Typed values win, and a
// cleared event token is removed from the output.
func (a *Assessment) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal((*assessmentFields)(a))
	if err != nil || len(a.Raw) == 0 {
		return typed, err
	}

	var out map[string]any
	if err := json.Unmarshal(a.Raw, &out); err != nil || out == nil {
		return typed, nil
	}
	var overlay map[string]any
	if err := json.Unmarshal(typed, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		base, okBase := out[k].(map[string]any)
		top, okTop := v.(map[string]any)
		if okBase && okTop {
			for sk, sv := range top {
				base[sk] = sv
			}
			continue
		}
		out[k] = v
	}
	if event, ok := out["event"].(map[string]any); ok && (a.Event == nil || a.Event.Token == "") {
		delete(event, "token")
	}
	return json.Marshal(out)
}

// AssessmentEvent is the request echoed back by the enterprise backend.
type AssessmentEvent struct {
	Token          string `json:"token,omitempty"`
	SiteKey        string `json:"siteKey,omitempty"`
	ExpectedAction string `json:"expectedAction,omitempty"`
	UserIPAddress  string `json:"userIpAddress,omitempty"`
	UserAgent      string `json:"userAgent,omitempty"`
}

// RiskAnalysis carries the score and the reasons behind it.
type RiskAnalysis struct {
	Score                  float64  `json:"score"`
	Reasons                []string `json:"reasons"`
	ExtendedVerdictReasons []string `json:"extendedVerdictReasons"`
}

// TokenProperties describes the token itself.
// CreateTime is empty when the backend did not report a usable time.
type TokenProperties struct {
	Valid         bool   `json:"valid"`
	InvalidReason string `json:"invalidReason"`
	CreateTime    string `json:"createTime,omitempty"`
	Hostname      string `json:"hostname,omitempty"`
	Action        string `json:"action,omitempty"`
}

// Clone returns a deep copy, so callers can modify the result without
// touching the cached value shared by other consumers.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	out := *a
	if a.Event != nil {
		ev := *a.Event
		out.Event = &ev
	}
	out.RiskAnalysis.Reasons = cloneStrings(a.RiskAnalysis.Reasons)
	out.RiskAnalysis.ExtendedVerdictReasons = cloneStrings(a.RiskAnalysis.ExtendedVerdictReasons)
	return &out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

// Redacted returns a copy without the raw token material.
func (a *Assessment) Redacted() *Assessment {
	out := a.Clone()
	if out != nil && out.Event != nil {
		out.Event.Token = ""
	}
	return out
}

// Envelope wraps an event travelling over the event bus.
type Envelope struct {
	Sender string `json:"sender"`
	Event  Event  `json:"event"`
}
