/*
Package answers validates submitted answer payloads before anything is
persisted.

PURPOSE:
  Each exercise type on the platform expects a differently shaped answer: a
  crossword submits a clue-id to word mapping, a true/false quiz submits a
  map of booleans, a concept map submits connection triples, an essay
  submits long-form prose. This package is the single structural gate: the
  submission workflow calls Validate before any state transition, and a
  payload that fails here never touches storage.

DESIGN:
  Exercise types form a closed enum. Dispatch is one exhaustive switch in
  validate.go; each variant carries its own structural contract. Adding an
  exercise type means adding one enum constant and one case, not touching
  shared logic.

ERROR CONTRACT:
  - UnknownTypeError: the type tag is not in the enum; the message
    enumerates every valid tag so integrators can self-serve.
  - ValidationError{Field, Reason}: the payload shape is wrong; local and
    recoverable, surfaced to the caller verbatim.

SEE ALSO:
  - validate.go: The exhaustive dispatch and per-type schemas
  - submission/workflow.go: The caller
*/
package answers

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// EXERCISE TYPES - Closed enum
// =============================================================================

// ExerciseType tags the structural schema an answer payload must match.
// The tags mirror the platform's Spanish-named exercise catalog.
type ExerciseType string

const (
	TypeCrucigrama          ExerciseType = "crucigrama"           // crossword: clue-id -> word
	TypeSopaLetras          ExerciseType = "sopa_letras"          // word search: found words list
	TypeVerdaderoFalso      ExerciseType = "verdadero_falso"      // true/false: statement-id -> bool
	TypeCompletarEspacios   ExerciseType = "completar_espacios"   // fill-in-the-blank: blank-id -> text
	TypeEmparejamiento      ExerciseType = "emparejamiento"       // matching: left/right pairs
	TypeMapaConceptual      ExerciseType = "mapa_conceptual"      // concept map: from/to/relation triples
	TypeLineaTiempo         ExerciseType = "linea_tiempo"         // timeline: ordered event ids
	TypeDetectiveTextual    ExerciseType = "detective_textual"    // textual detective: evidence + conclusion
	TypeQuizTiktok          ExerciseType = "quiz_tiktok"          // short-form quiz: question-id -> choice
	TypeDebateDigital       ExerciseType = "debate_digital"       // debate: position + arguments
	TypeEnsayoArgumentativo ExerciseType = "ensayo_argumentativo" // argumentative essay: long-form text
	TypeResenaCritica       ExerciseType = "resena_critica"       // critical review: text + rating
	TypeAnalisisFuentes     ExerciseType = "analisis_fuentes"     // source analysis: per-source verdicts
	TypePrediccionNarrativa ExerciseType = "prediccion_narrativa" // narrative prediction: prose
	TypeRuedaInferencias    ExerciseType = "rueda_inferencias"    // inference wheel: segment-id -> inference
	TypeVerificadorFakeNews ExerciseType = "verificador_fake_news" // fake-news check: verdict + evidence
)

// ValidTypes returns every known exercise type, sorted.
func ValidTypes() []ExerciseType {
	types := []ExerciseType{
		TypeCrucigrama, TypeSopaLetras, TypeVerdaderoFalso,
		TypeCompletarEspacios, TypeEmparejamiento, TypeMapaConceptual,
		TypeLineaTiempo, TypeDetectiveTextual, TypeQuizTiktok,
		TypeDebateDigital, TypeEnsayoArgumentativo, TypeResenaCritica,
		TypeAnalisisFuentes, TypePrediccionNarrativa, TypeRuedaInferencias,
		TypeVerificadorFakeNews,
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IsValid reports whether the tag names a known exercise type.
func (t ExerciseType) IsValid() bool {
	for _, v := range ValidTypes() {
		if t == v {
			return true
		}
	}
	return false
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// UnknownTypeError is returned when the exercise-type tag is not in the
// enum. The message lists every valid tag.
type UnknownTypeError struct {
	Type ExerciseType
}

func (e *UnknownTypeError) Error() string {
	valid := ValidTypes()
	names := make([]string, len(valid))
	for i, t := range valid {
		names[i] = string(t)
	}
	return fmt.Sprintf("unknown exercise type %q, valid types: %s",
		e.Type, strings.Join(names, ", "))
}

// ValidationError reports a structural mismatch in the answer payload.
// Local and recoverable: the caller may fix the payload and resubmit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid answer payload: field %q %s", e.Field, e.Reason)
}
