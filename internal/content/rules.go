// Package content holds the static, read-only tables loaded at startup:
// the case-scoped scoring rules and the clinical case definitions. Both are
// immutable after load and safe for concurrent readers.
package content

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/dentsim/dentsim-backend/internal/domain"
	"github.com/dentsim/dentsim-backend/internal/platform/logger"
)

// Rule is one (case, action) scoring entry projected out of the rule table.
// ActionEffect stays opaque; the state merge step decides what it means.
type Rule struct {
	TargetAction string
	Score        float64
	RuleOutcome  string
	ActionEffect any
	Hints        any
}

// RuleStore answers exact-match rule lookups against the load-ordered case
// entries of the scoring rules file.
type RuleStore struct {
	log     *logger.Logger
	entries []any
}

// NewRuleStore loads the scoring rules from path. On any load error it logs
// and keeps an empty table: the engine stays usable and every lookup degrades
// to not-found rather than failing construction.
func NewRuleStore(path string, baseLog *logger.Logger) *RuleStore {
	log := baseLog.With("component", "RuleStore")
	s := &RuleStore{log: log}

	raw, err := os.ReadFile(path)
	if err != nil {
		log.Error("Scoring rules file not readable, continuing with empty rule table", "path", path, "error", err)
		return s
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		log.Error("Failed to parse scoring rules JSON, continuing with empty rule table", "path", path, "error", err)
		return s
	}

	entries, ok := data.([]any)
	if !ok {
		log.Error("Invalid rules format, expected a top-level list", "path", path)
		return s
	}

	s.entries = entries
	log.Info("Scoring rules loaded", "path", path, "case_entries", len(entries))
	return s
}

// Find returns the rule for (caseID, action), matching the action key by
// exact string equality. Only the first entry whose case_id matches is ever
// inspected: once that entry is reached the scan stops whether or not an
// action matched, so a duplicated case_id later in the file is never seen.
func (s *RuleStore) Find(caseID, action string) (Rule, bool) {
	if caseID == "" || action == "" {
		return Rule{}, false
	}

	for _, e := range s.entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, _ := entry["case_id"].(string)
		if id != caseID {
			continue
		}

		rules, ok := ruleList(entry)
		if !ok {
			s.log.Warn("Rules list for case is not a list", "case_id", caseID)
			return Rule{}, false
		}
		for _, r := range rules {
			rule, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if target, _ := rule["target_action"].(string); target == action {
				return projectRule(rule), true
			}
		}
		// First case_id match wins; no further entries are scanned.
		return Rule{}, false
	}

	return Rule{}, false
}

// MaxScore sums the positive rule scores of the first entry matching caseID,
// i.e. the best total a student can reach on that case.
func (s *RuleStore) MaxScore(caseID string) float64 {
	if caseID == "" {
		return 0
	}
	for _, e := range s.entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, _ := entry["case_id"].(string)
		if id != caseID {
			continue
		}
		rules, ok := ruleList(entry)
		if !ok {
			return 0
		}
		var total float64
		for _, r := range rules {
			rule, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if score, ok := rule["score"].(float64); ok && score > 0 {
				total += score
			}
		}
		return total
	}
	return 0
}

// Empty reports whether no rules loaded at all.
func (s *RuleStore) Empty() bool {
	return len(s.entries) == 0
}

func ruleList(entry map[string]any) ([]any, bool) {
	v, present := entry["rules"]
	if !present {
		v = entry["actions"]
	}
	if v == nil {
		return []any{}, true
	}
	list, ok := v.([]any)
	return list, ok
}

func projectRule(rule map[string]any) Rule {
	out := Rule{RuleOutcome: domain.OutcomeUnscored}
	if target, ok := rule["target_action"].(string); ok {
		out.TargetAction = target
	}
	if score, ok := rule["score"].(float64); ok {
		out.Score = score
	}
	if outcome, ok := rule["rule_outcome"].(string); ok && strings.TrimSpace(outcome) != "" {
		out.RuleOutcome = outcome
	}
	out.ActionEffect = rule["action_effect"]
	if hints, present := rule["hints"]; present {
		out.Hints = hints
	} else if rationale, present := rule["rationale"]; present {
		out.Hints = rationale
	}
	return out
}
