package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

const judgeUnavailableMessage = "judge unavailable"

type judgeJob struct {
	actor    *roomActor
	playerID string
	card     models.Card
	code     string
}

func unavailableResult() models.JudgeResult {
	return models.JudgeResult{Passed: false, Diagnostics: judgeUnavailableMessage}
}

// worker judges submissions from the work channel and posts verdicts back
// to the owning room.
func (m *Manager) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	log.Debug().
		Str("instance", m.instanceID).
		Int("worker_id", workerID).
		Msg("judge worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("instance", m.instanceID).
				Int("worker_id", workerID).
				Msg("judge worker shutting down")
			return
		case job := <-m.workCh:
			result := m.evaluate(ctx, job)
			cardID := job.card.ID
			delivered := job.actor.post(ctx, func(now time.Time) {
				job.actor.credit(job.playerID, cardID, result, now)
			})
			if !delivered {
				log.Debug().
					Str("room_id", job.actor.room.ID).
					Str("player_id", job.playerID).
					Msg("room gone before verdict was delivered")
			}
		}
	}
}

// evaluate never fails: judge errors and panics degrade to a failed verdict.
func (m *Manager) evaluate(ctx context.Context, job judgeJob) (result models.JudgeResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("player_id", job.playerID).
				Msg("judge panicked")
			result = unavailableResult()
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.JudgeTimeout)
	defer cancel()

	res, err := m.judge.Evaluate(ctx, job.code, job.card.Problem)
	if err != nil {
		log.Warn().
			Err(err).
			Str("player_id", job.playerID).
			Str("problem", job.card.Problem.ID).
			Msg("judge failed")
		return unavailableResult()
	}
	return res
}
