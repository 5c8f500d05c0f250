package domain

// Interpretation is the normalized reading of one free-text student action.
// It is constructed fresh per action and never persisted directly; only its
// derived effects reach the session state.
type Interpretation struct {
	InterpretedAction   string         `json:"interpreted_action"`
	ClinicalIntent      string         `json:"clinical_intent"`
	Priority            string         `json:"priority"`
	SafetyConcerns      []string       `json:"safety_concerns"`
	ExplanatoryFeedback string         `json:"explanatory_feedback"`
	StructuredArgs      map[string]any `json:"structured_args"`
}

const (
	ActionUnspecified = "unspecified_action"
	IntentOther       = "other"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ClinicalIntents is the closed set of intent categories the interpreter may
// emit. Anything outside it normalizes to IntentOther.
var ClinicalIntents = map[string]bool{
	"history_taking":      true,
	"diagnosis_gathering": true,
	"treatment_planning":  true,
	"patient_education":   true,
	"infection_control":   true,
	"radiography":         true,
	"anesthesia":          true,
	"restorative":         true,
	"periodontics":        true,
	"endodontics":         true,
	"oral_surgery":        true,
	"prosthodontics":      true,
	"orthodontics":        true,
	"follow_up":           true,
	IntentOther:           true,
}

// AssessmentResult is the deterministic outcome of scoring one interpreted
// action against the case's rule table. ActionEffect is an opaque payload the
// state merge step may interpret as additional state deltas. Hints carries an
// optional rule-provided tip for the feedback text.
type AssessmentResult struct {
	Score        float64 `json:"score"`
	ScoreChange  float64 `json:"score_change"`
	RuleOutcome  string  `json:"rule_outcome"`
	ActionEffect any     `json:"action_effect"`
	Hints        any     `json:"hints,omitempty"`
}

const OutcomeUnscored = "Unscored"

// UnscoredResult is the defined result for any action that no rule matched.
func UnscoredResult() AssessmentResult {
	return AssessmentResult{Score: 0, ScoreChange: 0, RuleOutcome: OutcomeUnscored, ActionEffect: nil}
}

// ActionResult is the full bundle returned for one processed student action.
type ActionResult struct {
	StudentID      string           `json:"student_id"`
	CaseID         string           `json:"case_id"`
	Interpretation Interpretation   `json:"llm_interpretation"`
	Assessment     AssessmentResult `json:"assessment"`
	FinalFeedback  string           `json:"final_feedback"`
	UpdatedState   map[string]any   `json:"updated_state"`
}
