package models

// Verdict is the corrected classification of a record after accounting for
// infrastructure noise. Exactly one Verdict exists per record per
// classification run; re-classification supersedes, never edits.
type Verdict string

const (
	TruePositive  Verdict = "true_positive"
	TrueNegative  Verdict = "true_negative"
	FalsePositive Verdict = "false_positive"
	FalseNegative Verdict = "false_negative"
)

// Label returns the short display form used in report tables.
func (v Verdict) Label() string {
	switch v {
	case TruePositive:
		return "TP"
	case TrueNegative:
		return "TN"
	case FalsePositive:
		return "FP"
	case FalseNegative:
		return "FN"
	default:
		return string(v)
	}
}

// Classification is the classifier's output for one record: the verdict plus
// a machine-reason string identifying which signature (or fallback rule)
// produced it.
type Classification struct {
	Verdict   Verdict `json:"verdict"`
	Reason    string  `json:"reason"`
	Signature string  `json:"signature,omitempty"`
	// Infra mirrors the matched signature's Infra flag: the failure belongs
	// to the harness or environment, not the container under audit.
	Infra bool `json:"infra,omitempty"`
}

// ClassifiedRecord pairs a record with its classification.
type ClassifiedRecord struct {
	Record         TestResultRecord `json:"record"`
	Classification Classification   `json:"classification"`
}
