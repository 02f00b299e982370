/*
validate.go - Per-exercise-type structural schemas

PURPOSE:
  The exhaustive dispatch from exercise type to structural contract.
  Validation is pure: no storage access, no mutation, no side effects.

PAYLOAD MODEL:
  Payloads arrive as decoded JSON (map[string]any). Each schema checks the
  presence, type, and minimal content of its fields and returns the first
  violation as a ValidationError.

SEE ALSO:
  - types.go: The exercise-type enum and error types
*/
package answers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is a decoded JSON answer body.
type Payload map[string]any

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Validate checks a decoded payload against the schema for the exercise
// type. It is the pre-persistence gate: callers must not store or grade a
// payload this rejects.
func Validate(typ ExerciseType, payload Payload) error {
	if payload == nil {
		return &ValidationError{Field: "answer", Reason: "is missing"}
	}

	switch typ {
	case TypeCrucigrama:
		return requireStringMap(payload, "answers")
	case TypeSopaLetras:
		return requireStringList(payload, "words_found", 1)
	case TypeVerdaderoFalso:
		return requireBoolMap(payload, "answers")
	case TypeCompletarEspacios:
		return requireStringMap(payload, "answers")
	case TypeEmparejamiento:
		return validatePairs(payload)
	case TypeMapaConceptual:
		return validateConnections(payload)
	case TypeLineaTiempo:
		return requireStringList(payload, "order", 2)
	case TypeDetectiveTextual:
		if err := requireStringList(payload, "evidence", 1); err != nil {
			return err
		}
		return requireText(payload, "conclusion", 20)
	case TypeQuizTiktok:
		return requireStringMap(payload, "answers")
	case TypeDebateDigital:
		if err := requireText(payload, "position", 1); err != nil {
			return err
		}
		return requireStringList(payload, "arguments", 2)
	case TypeEnsayoArgumentativo:
		return requireText(payload, "text", 200)
	case TypeResenaCritica:
		if err := requireText(payload, "text", 100); err != nil {
			return err
		}
		return requireRating(payload, "rating", 1, 5)
	case TypeAnalisisFuentes:
		return validateSourceAssessments(payload)
	case TypePrediccionNarrativa:
		return requireText(payload, "prediction", 50)
	case TypeRuedaInferencias:
		return requireStringMap(payload, "inferences")
	case TypeVerificadorFakeNews:
		if err := requireBool(payload, "verdict"); err != nil {
			return err
		}
		return requireStringList(payload, "evidence", 1)
	default:
		return &UnknownTypeError{Type: typ}
	}
}

// ValidateRaw decodes a raw JSON body and validates it.
func ValidateRaw(typ ExerciseType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Field: "answer", Reason: "is missing"}
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ValidationError{Field: "answer", Reason: "is not a JSON object"}
	}
	if err := Validate(typ, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// =============================================================================
// COMPOSITE SCHEMAS
// =============================================================================

// validatePairs checks the matching-exercise shape: a non-empty "pairs"
// array of {left, right} objects.
func validatePairs(payload Payload) error {
	items, err := objectList(payload, "pairs", 1)
	if err != nil {
		return err
	}
	for i, item := range items {
		for _, key := range []string{"left", "right"} {
			if s, ok := item[key].(string); !ok || strings.TrimSpace(s) == "" {
				return &ValidationError{
					Field:  fmt.Sprintf("pairs[%d].%s", i, key),
					Reason: "must be a non-empty string",
				}
			}
		}
	}
	return nil
}

// validateConnections checks the concept-map shape: a non-empty
// "connections" array of ordered {from, to, relation} triples.
func validateConnections(payload Payload) error {
	items, err := objectList(payload, "connections", 1)
	if err != nil {
		return err
	}
	for i, item := range items {
		for _, key := range []string{"from", "to", "relation"} {
			if s, ok := item[key].(string); !ok || strings.TrimSpace(s) == "" {
				return &ValidationError{
					Field:  fmt.Sprintf("connections[%d].%s", i, key),
					Reason: "must be a non-empty string",
				}
			}
		}
	}
	return nil
}

// validateSourceAssessments checks the source-analysis shape: a non-empty
// "assessments" map of source-id to {credible, justification}.
func validateSourceAssessments(payload Payload) error {
	raw, ok := payload["assessments"]
	if !ok {
		return &ValidationError{Field: "assessments", Reason: "is required"}
	}
	m, ok := raw.(map[string]any)
	if !ok || len(m) == 0 {
		return &ValidationError{Field: "assessments", Reason: "must be a non-empty object"}
	}
	for id, v := range m {
		entry, ok := v.(map[string]any)
		if !ok {
			return &ValidationError{
				Field:  "assessments." + id,
				Reason: "must be an object with credible and justification",
			}
		}
		if _, ok := entry["credible"].(bool); !ok {
			return &ValidationError{
				Field:  "assessments." + id + ".credible",
				Reason: "must be a boolean",
			}
		}
		if s, ok := entry["justification"].(string); !ok || strings.TrimSpace(s) == "" {
			return &ValidationError{
				Field:  "assessments." + id + ".justification",
				Reason: "must be a non-empty string",
			}
		}
	}
	return nil
}

// =============================================================================
// PRIMITIVE SCHEMA HELPERS
// =============================================================================

func requireStringMap(payload Payload, field string) error {
	raw, ok := payload[field]
	if !ok {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	m, ok := raw.(map[string]any)
	if !ok || len(m) == 0 {
		return &ValidationError{Field: field, Reason: "must be a non-empty object"}
	}
	for k, v := range m {
		if s, ok := v.(string); !ok || strings.TrimSpace(s) == "" {
			return &ValidationError{
				Field:  field + "." + k,
				Reason: "must be a non-empty string",
			}
		}
	}
	return nil
}

func requireBoolMap(payload Payload, field string) error {
	raw, ok := payload[field]
	if !ok {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	m, ok := raw.(map[string]any)
	if !ok || len(m) == 0 {
		return &ValidationError{Field: field, Reason: "must be a non-empty object"}
	}
	for k, v := range m {
		if _, ok := v.(bool); !ok {
			return &ValidationError{Field: field + "." + k, Reason: "must be a boolean"}
		}
	}
	return nil
}

func requireStringList(payload Payload, field string, min int) error {
	raw, ok := payload[field]
	if !ok {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	list, ok := raw.([]any)
	if !ok {
		return &ValidationError{Field: field, Reason: "must be an array"}
	}
	if len(list) < min {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must contain at least %d entries", min),
		}
	}
	for i, v := range list {
		if s, ok := v.(string); !ok || strings.TrimSpace(s) == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("%s[%d]", field, i),
				Reason: "must be a non-empty string",
			}
		}
	}
	return nil
}

func requireText(payload Payload, field string, minLen int) error {
	raw, ok := payload[field]
	if !ok {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	s, ok := raw.(string)
	if !ok {
		return &ValidationError{Field: field, Reason: "must be a string"}
	}
	if len(strings.TrimSpace(s)) < minLen {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must be at least %d characters", minLen),
		}
	}
	return nil
}

func requireBool(payload Payload, field string) error {
	raw, ok := payload[field]
	if !ok {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if _, ok := raw.(bool); !ok {
		return &ValidationError{Field: field, Reason: "must be a boolean"}
	}
	return nil
}

func requireRating(payload Payload, field string, min, max float64) error {
	raw, ok := payload[field]
	if !ok {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	n, ok := raw.(float64) // JSON numbers decode to float64
	if !ok {
		return &ValidationError{Field: field, Reason: "must be a number"}
	}
	if n < min || n > max {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must be between %.0f and %.0f", min, max),
		}
	}
	return nil
}

func objectList(payload Payload, field string, min int) ([]map[string]any, error) {
	raw, ok := payload[field]
	if !ok {
		return nil, &ValidationError{Field: field, Reason: "is required"}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &ValidationError{Field: field, Reason: "must be an array"}
	}
	if len(list) < min {
		return nil, &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must contain at least %d entries", min),
		}
	}
	items := make([]map[string]any, len(list))
	for i, v := range list {
		item, ok := v.(map[string]any)
		if !ok {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("%s[%d]", field, i),
				Reason: "must be an object",
			}
		}
		items[i] = item
	}
	return items, nil
}
