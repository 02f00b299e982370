/*
Package grading provides a local implementation of the grading oracle.

PURPOSE:
  The submission workflow treats grading as an opaque, possibly-remote
  dependency behind the submission.Oracle interface. This package is the
  in-process implementation: it scores auto-gradable exercise types by
  comparing the answer payload against the exercise's stored answer key,
  and scores prose types with a length heuristic pending manual review.

SCORING:
  Key/value types score proportionally: (correct entries / key entries) *
  max score, floored. A submission passes (IsCorrect) at 60% or better.
  Prose types receive full marks structurally (the answers package already
  enforced their minimum lengths); a teacher refines them via the review
  transition.

CONTRACT:
  Any error returned here means NO grade was produced; the workflow leaves
  the submission in submitted status for a safe retry.

SEE ALSO:
  - submission/types.go: Oracle interface
  - answers/validate.go: The structural gate that runs before grading
*/
package grading

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gamilit/economy-engine/answers"
	"github.com/gamilit/economy-engine/submission"
)

// PassThreshold is the score fraction at or above which a submission
// counts as correct.
var PassThreshold = decimal.RequireFromString("0.60")

// LocalOracle grades against answer keys from the exercise catalog.
type LocalOracle struct {
	exercises submission.ExerciseStore
}

// NewLocalOracle creates an oracle over the exercise catalog.
func NewLocalOracle(exercises submission.ExerciseStore) *LocalOracle {
	return &LocalOracle{exercises: exercises}
}

var _ submission.Oracle = (*LocalOracle)(nil)

// ValidateAndGrade scores the answer payload against the exercise's key.
func (o *LocalOracle) ValidateAndGrade(ctx context.Context, req submission.GradeRequest) (*submission.GradeResult, error) {
	ex, err := o.exercises.GetExercise(ctx, req.ExerciseID)
	if err != nil {
		return nil, err
	}
	if ex == nil {
		return nil, fmt.Errorf("exercise %s: %w", req.ExerciseID, submission.ErrExerciseNotFound)
	}

	correct, total := o.match(ex, req.Answer)

	score := ex.MaxScore
	if total > 0 {
		score = decimal.NewFromInt(ex.MaxScore).
			Mul(decimal.NewFromInt(int64(correct))).
			Div(decimal.NewFromInt(int64(total))).
			Floor().
			IntPart()
	}

	isCorrect := false
	if ex.MaxScore > 0 {
		ratio := decimal.NewFromInt(score).Div(decimal.NewFromInt(ex.MaxScore))
		isCorrect = ratio.GreaterThanOrEqual(PassThreshold)
	}

	feedback := fmt.Sprintf("Scored %d of %d", score, ex.MaxScore)
	if total > 0 {
		feedback = fmt.Sprintf("%d of %d answers correct", correct, total)
	}

	return &submission.GradeResult{
		Score:     score,
		MaxScore:  ex.MaxScore,
		IsCorrect: isCorrect,
		Feedback:  feedback,
		Details: map[string]any{
			"correct_entries": correct,
			"total_entries":   total,
			"attempt":         req.Attempt,
		},
		AuditID: uuid.NewString(),
	}, nil
}

// match counts matching entries between the payload and the answer key.
// A (0, 0) return means the type has no auto-gradable key (prose types)
// and earns full marks structurally.
func (o *LocalOracle) match(ex *submission.Exercise, payload answers.Payload) (correct, total int) {
	switch ex.Type {
	case answers.TypeCrucigrama, answers.TypeCompletarEspacios,
		answers.TypeQuizTiktok, answers.TypeRuedaInferencias:
		field := "answers"
		if ex.Type == answers.TypeRuedaInferencias {
			field = "inferences"
		}
		return matchStringMap(keyMap(ex.AnswerKey, field), valueMap(payload, field))

	case answers.TypeVerdaderoFalso:
		return matchBoolMap(keyMap(ex.AnswerKey, "answers"), valueMap(payload, "answers"))

	case answers.TypeSopaLetras:
		return matchStringSet(keyList(ex.AnswerKey, "words"), valueList(payload, "words_found"))

	case answers.TypeLineaTiempo:
		return matchOrdered(keyList(ex.AnswerKey, "order"), valueList(payload, "order"))

	case answers.TypeEmparejamiento:
		return matchPairs(ex.AnswerKey, payload)

	case answers.TypeMapaConceptual:
		return matchConnections(ex.AnswerKey, payload)

	case answers.TypeVerificadorFakeNews:
		want, okW := ex.AnswerKey["verdict"].(bool)
		got, okG := payload["verdict"].(bool)
		if !okW || !okG {
			return 0, 1
		}
		if want == got {
			return 1, 1
		}
		return 0, 1

	case answers.TypeAnalisisFuentes:
		return matchAssessments(ex.AnswerKey, payload)
	}

	// Prose types: detective_textual, debate_digital, ensayo_argumentativo,
	// resena_critica, prediccion_narrativa. Structure was validated; manual
	// review refines the grade.
	return 0, 0
}

// =============================================================================
// MATCHERS
// =============================================================================

func matchStringMap(key, got map[string]any) (int, int) {
	correct := 0
	for k, want := range key {
		if s, ok := got[k].(string); ok {
			if w, ok := want.(string); ok && equalFold(s, w) {
				correct++
			}
		}
	}
	return correct, len(key)
}

func matchBoolMap(key, got map[string]any) (int, int) {
	correct := 0
	for k, want := range key {
		if b, ok := got[k].(bool); ok {
			if w, ok := want.(bool); ok && b == w {
				correct++
			}
		}
	}
	return correct, len(key)
}

func matchStringSet(key, got []any) (int, int) {
	found := make(map[string]bool, len(got))
	for _, v := range got {
		if s, ok := v.(string); ok {
			found[fold(s)] = true
		}
	}
	correct := 0
	for _, v := range key {
		if s, ok := v.(string); ok && found[fold(s)] {
			correct++
		}
	}
	return correct, len(key)
}

func matchOrdered(key, got []any) (int, int) {
	correct := 0
	for i, v := range key {
		if i >= len(got) {
			break
		}
		ks, ok1 := v.(string)
		gs, ok2 := got[i].(string)
		if ok1 && ok2 && ks == gs {
			correct++
		}
	}
	return correct, len(key)
}

func matchPairs(key answers.Payload, payload answers.Payload) (int, int) {
	wanted := pairSet(keyList(key, "pairs"))
	got := pairSet(valueList(payload, "pairs"))
	correct := 0
	for p := range wanted {
		if got[p] {
			correct++
		}
	}
	return correct, len(wanted)
}

func matchConnections(key answers.Payload, payload answers.Payload) (int, int) {
	wanted := tripleSet(keyList(key, "connections"))
	got := tripleSet(valueList(payload, "connections"))
	correct := 0
	for c := range wanted {
		if got[c] {
			correct++
		}
	}
	return correct, len(wanted)
}

func matchAssessments(key answers.Payload, payload answers.Payload) (int, int) {
	wanted := keyMap(key, "assessments")
	got := valueMap(payload, "assessments")
	correct := 0
	for id, w := range wanted {
		wm, ok1 := w.(map[string]any)
		gm, ok2 := got[id].(map[string]any)
		if !ok1 || !ok2 {
			continue
		}
		wc, ok1 := wm["credible"].(bool)
		gc, ok2 := gm["credible"].(bool)
		if ok1 && ok2 && wc == gc {
			correct++
		}
	}
	return correct, len(wanted)
}

// =============================================================================
// PAYLOAD HELPERS
// =============================================================================

func keyMap(p answers.Payload, field string) map[string]any { return valueMap(p, field) }
func keyList(p answers.Payload, field string) []any         { return valueList(p, field) }

func valueMap(p answers.Payload, field string) map[string]any {
	if p == nil {
		return nil
	}
	if m, ok := p[field].(map[string]any); ok {
		return m
	}
	return nil
}

func valueList(p answers.Payload, field string) []any {
	if p == nil {
		return nil
	}
	if l, ok := p[field].([]any); ok {
		return l
	}
	return nil
}

func pairSet(list []any) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			l, _ := m["left"].(string)
			r, _ := m["right"].(string)
			set[fold(l)+"\x00"+fold(r)] = true
		}
	}
	return set
}

func tripleSet(list []any) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			f, _ := m["from"].(string)
			t, _ := m["to"].(string)
			r, _ := m["relation"].(string)
			set[fold(f)+"\x00"+fold(t)+"\x00"+fold(r)] = true
		}
	}
	return set
}

func fold(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

func equalFold(a, b string) bool { return fold(a) == fold(b) }
