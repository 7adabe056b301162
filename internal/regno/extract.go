package regno

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CandidateFields are the keys inspected when a payload is a JSON document.
var CandidateFields = []string{"regno", "reg_no", "registration_number", "id", "student_id"}

// Extractor turns raw decoded payloads into registration numbers.
type Extractor struct {
	validator   *Validator
	corrections CorrectionTable
}

// NewExtractor creates an extractor. A nil table disables corrections.
func NewExtractor(v *Validator, corrections CorrectionTable) *Extractor {
	return &Extractor{validator: v, corrections: corrections}
}

// Validator returns the validator used by the extractor.
func (e *Extractor) Validator() *Validator {
	return e.validator
}

// ExtractIdentity finds a registration number in a payload. It tries, in
// order: the literal payload, the payload after misread corrections, known
// JSON fields, and finally a search for the pattern inside the literal and
// corrected strings.
func (e *Extractor) ExtractIdentity(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	payload := strings.ToUpper(trimmed)

	if strings.HasPrefix(payload, e.validator.Prefix()) && e.validator.Validate(payload) {
		return payload, true
	}

	corrected := payload
	if !strings.HasPrefix(payload, e.validator.Prefix()) {
		corrected = e.corrections.Apply(payload)
		if e.validator.Validate(corrected) {
			return corrected, true
		}
	}

	if id, ok := e.fromJSON(trimmed); ok {
		return id, true
	}

	if id, ok := e.validator.Find(payload); ok {
		return id, true
	}
	if id, ok := e.validator.Find(corrected); ok {
		return id, true
	}

	return "", false
}

func (e *Extractor) fromJSON(payload string) (string, bool) {
	if !strings.HasPrefix(payload, "{") {
		return "", false
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return "", false
	}
	for _, field := range CandidateFields {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		s := strings.ToUpper(strings.TrimSpace(fmt.Sprint(v)))
		if strings.HasPrefix(s, e.validator.Prefix()) && e.validator.Validate(s) {
			return s, true
		}
	}
	return "", false
}
