package content

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/dentsim/dentsim-backend/internal/platform/logger"
)

// CaseDefinition is one clinical scenario, normalized to canonical field
// names regardless of which source schema the file used.
type CaseDefinition struct {
	ID         string         `json:"case_id"`
	Name       string         `json:"name"`
	Difficulty string         `json:"difficulty"`
	Patient    map[string]any `json:"patient"`
}

// CaseStore holds the case definitions in load order.
type CaseStore struct {
	log   *logger.Logger
	cases []CaseDefinition
	byID  map[string]int

	// defaultID is the configured default case, falling back to the first
	// loaded case when no explicit default was configured.
	defaultID string
}

// caseWrapperKeys are the accepted map wrappers around the case list.
var caseWrapperKeys = []string{"cases", "scenarios"}

// patientKeyAliases maps the primary (localized) patient schema onto the
// canonical one. Legacy files already use the canonical names.
var patientKeyAliases = map[string]string{
	"yas":          "age",
	"cinsiyet":     "gender",
	"ana_sikayet":  "chief_complaint",
	"sikayet":      "chief_complaint",
	"alerjiler":    "allergies",
	"tibbi_gecmis": "medical_history",
	"ilaclar":      "medications",
}

// NewCaseStore loads the case table from path. Like the rule table, load
// errors log and leave the store empty; sessions then fall back to the
// configured default case id with no seed data.
func NewCaseStore(path, defaultCaseID string, baseLog *logger.Logger) *CaseStore {
	log := baseLog.With("component", "CaseStore")
	s := &CaseStore{log: log, byID: map[string]int{}, defaultID: strings.TrimSpace(defaultCaseID)}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error("Case scenarios file not readable, continuing with empty case table", "path", path, "error", err)
		return s
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Error("Failed to parse case scenarios JSON, continuing with empty case table", "path", path, "error", err)
		return s
	}

	list, ok := caseList(data)
	if !ok {
		log.Error("Unexpected case scenarios structure, expected a list or a wrapped list", "path", path)
		return s
	}

	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		def := normalizeCase(obj)
		if def.ID == "" {
			log.Warn("Skipping case without a case_id")
			continue
		}
		if _, dup := s.byID[def.ID]; dup {
			log.Warn("Duplicate case_id in case table, keeping the first", "case_id", def.ID)
			continue
		}
		s.byID[def.ID] = len(s.cases)
		s.cases = append(s.cases, def)
	}

	if s.defaultID == "" && len(s.cases) > 0 {
		s.defaultID = s.cases[0].ID
	}

	log.Info("Case scenarios loaded", "path", path, "cases", len(s.cases), "default_case_id", s.defaultID)
	return s
}

func (s *CaseStore) Get(caseID string) (CaseDefinition, bool) {
	idx, ok := s.byID[caseID]
	if !ok {
		return CaseDefinition{}, false
	}
	return s.cases[idx], true
}

// DefaultCaseID is the case assigned to sessions created without an explicit
// case request.
func (s *CaseStore) DefaultCaseID() string {
	return s.defaultID
}

// List returns the cases in load order.
func (s *CaseStore) List() []CaseDefinition {
	out := make([]CaseDefinition, len(s.cases))
	copy(out, s.cases)
	return out
}

func caseList(data any) ([]any, bool) {
	if list, ok := data.([]any); ok {
		return list, true
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, key := range caseWrapperKeys {
		if list, ok := obj[key].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// normalizeCase reads one case object, preferring the primary localized
// schema and falling back to the legacy field names when the primary ones
// are absent.
func normalizeCase(obj map[string]any) CaseDefinition {
	def := CaseDefinition{}

	if id, ok := obj["case_id"].(string); ok {
		def.ID = strings.TrimSpace(id)
	}
	def.Name = firstString(obj, "vaka_adi", "name")
	def.Difficulty = firstString(obj, "zorluk", "difficulty")

	profile, ok := obj["hasta_profili"].(map[string]any)
	if !ok {
		profile, _ = obj["patient"].(map[string]any)
	}
	if profile != nil {
		def.Patient = normalizePatient(profile)
	}

	return def
}

func normalizePatient(profile map[string]any) map[string]any {
	out := make(map[string]any, len(profile))
	for k, v := range profile {
		if canonical, ok := patientKeyAliases[strings.ToLower(strings.TrimSpace(k))]; ok {
			out[canonical] = v
			continue
		}
		out[k] = v
	}
	return out
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
