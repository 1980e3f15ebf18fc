package engine

import (
	"fmt"
	"time"

	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

// resolveReward applies a reward earned by source. Choose-targeted rewards are
// queued until the source picks a victim.
func (e *Engine) resolveReward(room *models.Room, source *models.Player, r models.Reward, now time.Time, d *Delta) {
	if r.Scope == models.RewardScopeSelf {
		e.applyEffect(room, source, source, r.Kind, r.Magnitude, now, d)
		d.broadcast(events.EventTypeGameState, gameState(room, now))
		return
	}

	opponents := activeOpponents(room, source.ID)
	if len(opponents) == 0 {
		log.Debug().Str("room_id", room.ID).Str("player_id", source.ID).Msg("no targets for reward")
		return
	}

	switch r.Targeting {
	case models.TargetingChoose:
		e.queueTargetRequest(room, source, r, opponents, now, d)
		return
	case models.TargetingAll:
		for _, target := range opponents {
			e.applyEffect(room, source, target, r.Kind, r.Magnitude, now, d)
		}
	default:
		target := opponents[e.IntN(len(opponents))]
		e.applyEffect(room, source, target, r.Kind, r.Magnitude, now, d)
	}
	d.broadcast(events.EventTypeGameState, gameState(room, now))
}

// applyEffect mutates the target's countdown. Removals never push a deadline
// into the past.
func (e *Engine) applyEffect(room *models.Room, source, target *models.Player, kind models.RewardKind, magnitude int, now time.Time, d *Delta) {
	if target.IsEliminated || target.TimerEndTime == nil {
		return
	}

	amount := time.Duration(magnitude) * time.Second
	deadline := *target.TimerEndTime

	switch kind {
	case models.RewardKindAddTime:
		deadline = deadline.Add(amount)
	case models.RewardKindRemoveTime:
		// Floor at now only while the deadline is still ahead; never push an
		// expired deadline forward.
		wasAhead := deadline.After(now)
		deadline = deadline.Add(-amount)
		if wasAhead && deadline.Before(now) {
			deadline = now
		}
	case models.RewardKindFreezeTime:
		deadline = deadline.Add(amount)
		target.FrozenUntil = timePtr(now.Add(amount))
	case models.RewardKindFlashbang:
	}
	target.TimerEndTime = timePtr(deadline)

	log.Info().
		Str("room_id", room.ID).
		Str("source_id", source.ID).
		Str("target_id", target.ID).
		Str("effect", string(kind)).
		Int("value", magnitude).
		Msg("reward applied")

	d.broadcast(events.EventTypeRewardApplied, events.RewardAppliedPayload{
		PlayerID:     target.ID,
		Effect:       kind,
		Value:        magnitude,
		FromPlayer:   source.ID,
		TimerEndTime: events.Millis(target.TimerEndTime),
		FrozenUntil:  events.Millis(target.FrozenUntil),
	})
}

func activeOpponents(room *models.Room, sourceID string) []*models.Player {
	var out []*models.Player
	for _, p := range room.ActivePlayers() {
		if p.ID != sourceID {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) queueTargetRequest(room *models.Room, source *models.Player, r models.Reward, candidates []*models.Player, now time.Time, d *Delta) {
	req := &models.TargetRequest{
		ID:             newID(),
		RoomID:         room.ID,
		SourcePlayerID: source.ID,
		Kind:           r.Kind,
		Magnitude:      r.Magnitude,
		CreatedAt:      now,
	}
	for _, c := range candidates {
		req.CandidateTargets = append(req.CandidateTargets, c.ID)
	}

	queue := append(room.PendingTargets[source.ID], req)
	room.PendingTargets[source.ID] = queue

	log.Info().
		Str("room_id", room.ID).
		Str("player_id", source.ID).
		Str("request_id", req.ID).
		Int("queued", len(queue)).
		Msg("target selection queued")

	if len(queue) == 1 {
		d.unicast(source.ID, events.EventTypeTargetSelectionRequired, targetPrompt(room, req, now))
	}
}

func targetPrompt(room *models.Room, req *models.TargetRequest, now time.Time) events.TargetSelectionRequiredPayload {
	targets := make([]events.TargetCandidate, 0, len(req.CandidateTargets))
	for _, id := range req.CandidateTargets {
		p, ok := room.Players[id]
		if !ok {
			continue
		}
		targets = append(targets, events.TargetCandidate{
			PlayerID:        p.ID,
			Username:        p.Username,
			TimeRemainingMs: p.TimeRemaining(now).Milliseconds(),
		})
	}
	return events.TargetSelectionRequiredPayload{
		RequestID:        req.ID,
		AvailableTargets: targets,
		Effect:           req.Kind,
		Value:            req.Magnitude,
	}
}

// PendingTarget returns the source's oldest unresolved targeted reward.
func PendingTarget(room *models.Room, sourceID string) *models.TargetRequest {
	if q := room.PendingTargets[sourceID]; len(q) > 0 {
		return q[0]
	}
	return nil
}

// ApplyTargetedDebuff resolves the source's oldest pending targeted reward on
// targetID. An invalid target discards the request.
func (e *Engine) ApplyTargetedDebuff(room *models.Room, sourceID, targetID string, now time.Time) (Delta, error) {
	var d Delta

	if room.Status != models.RoomStatusPlaying {
		return d, fmt.Errorf("targeted debuff in %s: %w", room.Status, ErrInvalidStateTransition)
	}
	source, ok := room.Players[sourceID]
	if !ok {
		return d, ErrPlayerNotFound
	}
	if expired, gone := e.CheckExpiry(room, sourceID, now); gone {
		return expired, fmt.Errorf("targeted debuff: %w", ErrPlayerEliminated)
	}
	req := PendingTarget(room, sourceID)
	if req == nil {
		return d, fmt.Errorf("no pending selection: %w", ErrInvalidTarget)
	}

	e.popTargetRequest(room, sourceID)

	target, present := room.Players[targetID]
	valid := req.IsCandidate(targetID) && present && !target.IsEliminated
	if valid {
		if expired, gone := e.CheckExpiry(room, targetID, now); gone {
			d.merge(expired)
			valid = false
		}
	}
	if !valid {
		log.Info().
			Str("room_id", room.ID).
			Str("player_id", sourceID).
			Str("target_id", targetID).
			Str("request_id", req.ID).
			Msg("targeted debuff rejected")
		e.promptNext(room, sourceID, now, &d)
		return d, fmt.Errorf("target %s: %w", targetID, ErrInvalidTarget)
	}

	e.applyEffect(room, source, target, req.Kind, req.Magnitude, now, &d)
	d.broadcast(events.EventTypeGameState, gameState(room, now))
	e.promptNext(room, sourceID, now, &d)
	return d, nil
}

func (e *Engine) popTargetRequest(room *models.Room, sourceID string) {
	q := room.PendingTargets[sourceID]
	if len(q) <= 1 {
		delete(room.PendingTargets, sourceID)
		return
	}
	room.PendingTargets[sourceID] = q[1:]
}

// promptNext re-issues the next queued selection with fresh candidates,
// dropping requests that no longer have anyone to target.
func (e *Engine) promptNext(room *models.Room, sourceID string, now time.Time, d *Delta) {
	for {
		req := PendingTarget(room, sourceID)
		if req == nil {
			return
		}
		opponents := activeOpponents(room, sourceID)
		if len(opponents) == 0 {
			e.popTargetRequest(room, sourceID)
			continue
		}
		req.CandidateTargets = req.CandidateTargets[:0]
		for _, p := range opponents {
			req.CandidateTargets = append(req.CandidateTargets, p.ID)
		}
		d.unicast(sourceID, events.EventTypeTargetSelectionRequired, targetPrompt(room, req, now))
		return
	}
}

// TriggerReward resolves a reward for playerID as though they had solved a card carrying it.
func (e *Engine) TriggerReward(room *models.Room, playerID string, r models.Reward, now time.Time) (Delta, error) {
	var d Delta

	if room.Status != models.RoomStatusPlaying {
		return d, fmt.Errorf("trigger reward in %s: %w", room.Status, ErrInvalidStateTransition)
	}
	p, ok := room.Players[playerID]
	if !ok {
		return d, ErrPlayerNotFound
	}
	if p.IsEliminated {
		return d, ErrPlayerEliminated
	}
	if !models.ValidRewardKind(r.Kind) || r.Magnitude < 0 {
		return d, fmt.Errorf("reward %q: %w", r.Kind, ErrInvalidRequest)
	}
	switch r.Scope {
	case models.RewardScopeSelf, models.RewardScopeOther:
	default:
		return d, fmt.Errorf("scope %q: %w", r.Scope, ErrInvalidRequest)
	}

	e.resolveReward(room, p, r, now, &d)
	return d, nil
}
