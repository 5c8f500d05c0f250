package services

import "encoding/json"

// EducatorSystemInstruction steers the model toward a strict-JSON
// interpretation of free-text student actions. Action keys must stay in
// lock-step with the rule content under data/.
const EducatorSystemInstruction = `
You are a dental education assistant helping to interpret student actions within a simulated clinical scenario.
Your job is to:
1) Interpret the student's raw action text into a normalized action key that can be scored by a rule engine.
2) Identify the clinical intent category.
3) Flag any safety concerns if present.
4) Provide a short, neutral, and professional explanation for the student (1-3 sentences max).
5) Output STRICT JSON ONLY, without additional commentary or code fences.

CRITICAL OUTPUT REQUIREMENTS:
- Respond with ONLY a JSON object. No markdown, no code blocks, no prose.
- The JSON schema must be:
{
  "interpreted_action": "string: normalized action key, snake_case (e.g., 'check_allergy_history')",
  "clinical_intent": "string: e.g., 'history_taking' | 'diagnosis_gathering' | 'treatment_planning' | 'patient_education' | 'infection_control' | 'radiography' | 'anesthesia' | 'restorative' | 'periodontics' | 'endodontics' | 'oral_surgery' | 'prosthodontics' | 'orthodontics' | 'follow_up' | 'other'",
  "priority": "string: 'high' | 'medium' | 'low'",
  "safety_concerns": ["array of strings; empty if none"],
  "explanatory_feedback": "string: concise explanation for the learner (<= 3 sentences).",
  "structured_args": { "optional object with any arguments relevant to the action" }
}

Guidance:
- **USE ONLY THE FOLLOWING ACTION KEYS:** ['gather_medical_history', 'check_allergies_meds', 'order_radiograph', 'diagnose_pulpitis', 'prescribe_antibiotics', 'refer_oral_surgery']. If none fit, use 'unspecified_action'.
- If the student's action is unclear or unsafe, set "priority" accordingly and add a safety note in "safety_concerns".
- Prefer conservative, safety-first interpretations.
- Use the provided scenario state context to disambiguate intent when possible.
`

// BuildUserPrompt assembles the per-action prompt. Only a minimal context
// snippet from the scenario state is included to keep token usage down.
func BuildUserPrompt(action string, state map[string]any) string {
	patient, _ := state["patient"].(map[string]any)
	snippet := map[string]any{
		"case_id":           state["case_id"],
		"patient_age":       patientField(patient, "age"),
		"patient_gender":    patientField(patient, "gender"),
		"chief_complaint":   patientField(patient, "chief_complaint"),
		"known_allergies":   patientField(patient, "allergies"),
		"known_conditions":  patientField(patient, "medical_history"),
		"revealed_findings": state["revealed_findings"],
		"progress":          state["progress"],
	}

	ctxJSON, err := json.Marshal(snippet)
	if err != nil {
		ctxJSON = []byte("{}")
	}

	return "Student action:\n" + action + "\n\n" +
		"Scenario state (partial):\n" + string(ctxJSON) + "\n\n" +
		"Return STRICT JSON ONLY following the required schema."
}

func patientField(patient map[string]any, key string) any {
	if patient == nil {
		return nil
	}
	return patient[key]
}
