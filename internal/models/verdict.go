package models

// Verdict is the structured result returned by the external analyzer for a
// single analyzed message. The boolean flag is trusted even when the issue
// label is not one of the known kinds.
type Verdict struct {
	IsConcerning bool    `json:"is_concerning"`
	Severity     string  `json:"severity"`
	IssueType    string  `json:"issue_type"`
	Reason       string  `json:"reason"`
	Suggestion   string  `json:"suggestion"`
	Confidence   float64 `json:"confidence"`
	PatternType  string  `json:"pattern_type,omitempty"`
}

// DefaultVerdict is the substitute used when the analyzer fails or returns
// nothing usable: not concerning, zero confidence.
func DefaultVerdict() *Verdict {
	return &Verdict{
		IsConcerning: false,
		Severity:     SeverityLow,
		IssueType:    "none",
		Confidence:   0,
	}
}
