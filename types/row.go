package types

// TableRef names the analytics table rows are written to.
type TableRef struct {
	ProjectID string `json:"projectId"`
	DatasetID string `json:"datasetId"`
	TableID   string `json:"tableId"`
}

// String returns "project.dataset.table".
func (t TableRef) String() string {
	return t.ProjectID + "." + t.DatasetID + "." + t.TableID
}

// Row is one analytics record for an assessed event.
type Row struct {
	ClientID        string             `json:"client_id"`
	RiskAnalysis    RowRiskAnalysis    `json:"risk_analysis"`
	TokenProperties RowTokenProperties `json:"token_properties"`
	// Timestamp is only set when the token creation time is known; the
	// table default applies otherwise.
	Timestamp string `json:"timestamp,omitempty"`
}

// RowRiskAnalysis is the risk part of a Row.
type RowRiskAnalysis struct {
	Score                  float64  `json:"score"`
	Reasons                []string `json:"reasons"`
	ExtendedVerdictReasons []string `json:"extended_verdict_reasons"`
}

// RowTokenProperties is the token part of a Row.
type RowTokenProperties struct {
	Valid         bool   `json:"valid"`
	InvalidReason string `json:"invalid_reason"`
}
