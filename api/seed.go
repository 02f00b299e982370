/*
seed.go - Demo data loader

PURPOSE:
  Populates a fresh database with a small classroom: a few learners with
  provisioned coin accounts, a handful of exercises across several types
  with answer keys, and one worked submission so the UI has something to
  show immediately.

USAGE:
  POST /api/admin/seed

  Idempotent in effect: learners and exercises are upserted, but the demo
  submission is only created when the learner has not attempted the
  exercise yet.

SEE ALSO:
  - handlers.go: Route registration
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gamilit/economy-engine/answers"
	"github.com/gamilit/economy-engine/economy"
	"github.com/gamilit/economy-engine/powerup"
	"github.com/gamilit/economy-engine/store/sqlite"
	"github.com/gamilit/economy-engine/submission"
)

// SeedDemoData loads the demo classroom.
func (h *Handler) SeedDemoData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.seedLearners(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed learners", err)
		return
	}
	if err := h.seedExercises(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed exercises", err)
		return
	}
	if err := h.seedActivity(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed activity", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

func (h *Handler) seedLearners(ctx context.Context) error {
	learners := []sqlite.Learner{
		{ID: "ana", Name: "Ana Torres", Email: "ana@example.edu", GradeLevel: "2-secundaria"},
		{ID: "bruno", Name: "Bruno Díaz", Email: "bruno@example.edu", GradeLevel: "2-secundaria"},
		{ID: "carla", Name: "Carla Méndez", Email: "carla@example.edu", GradeLevel: "3-secundaria"},
	}

	for _, l := range learners {
		if err := h.Store.SaveLearner(ctx, l); err != nil {
			return err
		}
		if _, err := h.Ledger.EnsureAccount(ctx, economy.AccountID(l.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) seedExercises(ctx context.Context) error {
	now := time.Now().UTC()
	exercises := []submission.Exercise{
		{
			ID:       "demo-vf-1",
			Title:    "Verdadero o falso: El Quijote",
			Type:     answers.TypeVerdaderoFalso,
			MaxScore: 100,
			AnswerKey: answers.Payload{
				"answers": map[string]any{
					"s1": true, "s2": false, "s3": true, "s4": false,
				},
			},
			CreatedAt: now,
		},
		{
			ID:       "demo-sopa-1",
			Title:    "Sopa de letras: vocabulario narrativo",
			Type:     answers.TypeSopaLetras,
			MaxScore: 100,
			AnswerKey: answers.Payload{
				"words": []any{"narrador", "trama", "clímax", "desenlace"},
			},
			CreatedAt: now,
		},
		{
			ID:       "demo-tiempo-1",
			Title:    "Línea de tiempo: Cien años de soledad",
			Type:     answers.TypeLineaTiempo,
			MaxScore: 100,
			AnswerKey: answers.Payload{
				"order": []any{"fundacion", "guerra", "bananera", "diluvio"},
			},
			CreatedAt: now,
		},
		{
			ID:        "demo-ensayo-1",
			Title:     "Ensayo: la soledad como tema",
			Type:      answers.TypeEnsayoArgumentativo,
			MaxScore:  100,
			CreatedAt: now,
		},
	}

	for _, ex := range exercises {
		if err := h.Store.SaveExercise(ctx, ex); err != nil {
			return err
		}
	}
	return nil
}

// seedActivity gives the first learner a power-up and a graded submission.
func (h *Handler) seedActivity(ctx context.Context) error {
	account := economy.AccountID("ana")

	prior, err := h.Store.GetByAccountExercise(ctx, account, "demo-vf-1")
	if err != nil {
		return err
	}
	if prior != nil {
		return nil
	}

	if _, err := h.PowerUps.Purchase(ctx, account, powerup.Pistas, 2); err != nil {
		return err
	}

	_, err = h.Workflow.Submit(ctx, account, "demo-vf-1", answers.Payload{
		"answers": map[string]any{
			"s1": true, "s2": false, "s3": true, "s4": true,
		},
	})
	return err
}
