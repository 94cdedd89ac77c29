package models

import "time"

// Symptom is an observable fact the user can select.
type Symptom struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Conclusion is the fact a rule asserts when it fires.
type Conclusion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Rule maps a conjunction of premise fact ids to a single conclusion.
type Rule struct {
	ID         string     `json:"id"`
	If         []string   `json:"if"`
	Then       Conclusion `json:"then"`
	Confidence float64    `json:"confidence"`
}

// Diagnosis is a fired rule whose conclusion is reportable to the user.
type Diagnosis struct {
	RuleID        string  `json:"ruleId"`
	DiagnosisID   string  `json:"diagnosisId"`
	DiagnosisText string  `json:"diagnosisText"`
	Confidence    float64 `json:"confidence"`
}

// TraceEntry records one evaluation of one rule during one pass.
type TraceEntry struct {
	Pass       int         `json:"pass"`
	RuleID     string      `json:"ruleId"`
	Fired      bool        `json:"fired"`
	Matched    []string    `json:"matched"`
	Needed     int         `json:"needed,omitempty"`
	Conclusion *Conclusion `json:"conclusion,omitempty"`
	Confidence float64     `json:"confidence"`
}

// InferenceResult is the output of one forward-chaining run.
type InferenceResult struct {
	Facts     []string     `json:"facts"`
	Inferred  []string     `json:"inferred"`
	Diagnoses []Diagnosis  `json:"diagnoses"`
	Trace     []TraceEntry `json:"trace"`
	Passes    int          `json:"passes"`
}

// Consultation is a diagnosis run made within a session.
type Consultation struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Selected  []string          `json:"selected"`
	Result    InferenceResult   `json:"result"`
	Labels    map[string]string `json:"labels,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Document is the static knowledge base source layout. Confidence is left
// loosely typed so hand-written documents may use numbers or numeric strings.
type Document struct {
	Symptoms []SymptomDoc `json:"symptoms" yaml:"symptoms" toml:"symptoms" validate:"dive"`
	Rules    []RuleDoc    `json:"rules" yaml:"rules" toml:"rules" validate:"dive"`
}

// SymptomDoc is a symptom entry in a Document.
type SymptomDoc struct {
	ID   string `json:"id" yaml:"id" toml:"id" validate:"required,notblank"`
	Text string `json:"text" yaml:"text" toml:"text" validate:"required,notblank"`
}

// RuleDoc is a rule entry in a Document.
type RuleDoc struct {
	ID         string        `json:"id" yaml:"id" toml:"id" validate:"required,notblank"`
	If         []string      `json:"if" yaml:"if" toml:"if" validate:"required,min=1,dive,required,notblank"`
	Then       ConclusionDoc `json:"then" yaml:"then" toml:"then"`
	Confidence any           `json:"confidence,omitempty" yaml:"confidence,omitempty" toml:"confidence,omitempty"`
}

// ConclusionDoc is the conclusion of a RuleDoc.
type ConclusionDoc struct {
	ID   string `json:"id" yaml:"id" toml:"id" validate:"required,notblank"`
	Text string `json:"text" yaml:"text" toml:"text" validate:"required,notblank"`
}
