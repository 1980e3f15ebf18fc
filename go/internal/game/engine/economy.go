package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DealInitialHand replaces the player's hand with a fresh draw.
func (e *Engine) DealInitialHand(p *models.Player, now time.Time) {
	p.Hand = e.deck.Draw(e, e.rules.HandSize, nil, now)
}

func (e *Engine) dealReplacement(p *models.Player, now time.Time) models.Card {
	return e.deck.Draw(e, 1, p.ProblemIDs(), now)[0]
}

// AcceptSubmission validates a submission before it is judged. It returns the
// card to judge, or nil when the submission was rejected by the card's
// challenge, in which case the delta carries the solution_failed notice.
// Elimination takes precedence: an expired player is eliminated first and the
// submission is refused.
func (e *Engine) AcceptSubmission(room *models.Room, playerID, cardID, code string, now time.Time) (*models.Card, Delta, error) {
	if room.Status != models.RoomStatusPlaying {
		return nil, Delta{}, fmt.Errorf("submit in %s: %w", room.Status, ErrInvalidStateTransition)
	}
	p, ok := room.Players[playerID]
	if !ok {
		return nil, Delta{}, ErrPlayerNotFound
	}

	d, eliminated := e.CheckExpiry(room, playerID, now)
	if eliminated {
		return nil, d, ErrPlayerEliminated
	}

	card, ok := p.Card(cardID)
	if !ok {
		return nil, d, fmt.Errorf("card %s: %w", cardID, ErrUnknownCard)
	}
	if strings.TrimSpace(code) == "" {
		return nil, d, fmt.Errorf("empty solution: %w", ErrInvalidRequest)
	}

	if violation := challengeViolation(card, code, now); violation != "" {
		log.Debug().
			Str("room_id", room.ID).
			Str("player_id", playerID).
			Str("card_id", cardID).
			Str("violation", violation).
			Msg("submission rejected by challenge")
		d.unicast(playerID, events.EventTypeSolutionFailed, events.SolutionFailedPayload{
			PlayerID:    playerID,
			CardID:      cardID,
			Error:       violation,
			TestResults: []models.TestResult{},
		})
		return nil, d, nil
	}

	return &card, d, nil
}

// challengeViolation checks the enforceable challenges. Complexity challenges
// are advisory and never reject.
func challengeViolation(card models.Card, code string, now time.Time) string {
	ch := card.Challenge
	if ch == nil {
		return ""
	}

	switch ch.Kind {
	case models.ChallengeKindLineLimit:
		if lines := countLines(code); ch.Magnitude > 0 && lines > ch.Magnitude {
			return fmt.Sprintf("line limit exceeded: %d lines, limit is %d", lines, ch.Magnitude)
		}
	case models.ChallengeKindTimeLimit:
		started := card.DealtAt
		if card.FirstSelectedAt != nil {
			started = *card.FirstSelectedAt
		}
		limit := time.Duration(ch.Magnitude) * time.Second
		if ch.Magnitude > 0 && now.Sub(started) > limit {
			return fmt.Sprintf("time limit exceeded: solve within %d seconds", ch.Magnitude)
		}
	}
	return ""
}

func countLines(code string) int {
	n := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// OnSolutionJudged credits a judged submission. A failure is reported only to
// the submitter. A pass burns the card, deals a replacement and resolves the
// card's reward.
func (e *Engine) OnSolutionJudged(room *models.Room, playerID, cardID string, result models.JudgeResult, now time.Time) Delta {
	if room.Status != models.RoomStatusPlaying {
		return Delta{}
	}
	p, ok := room.Players[playerID]
	if !ok {
		return Delta{}
	}

	d, eliminated := e.CheckExpiry(room, playerID, now)
	if eliminated {
		log.Debug().
			Str("room_id", room.ID).
			Str("player_id", playerID).
			Msg("discarding judged result for eliminated player")
		return d
	}

	if !result.Passed {
		diag := result.Diagnostics
		if diag == "" {
			diag = "one or more test cases failed"
		}
		results := result.TestResults
		if results == nil {
			results = []models.TestResult{}
		}
		d.unicast(playerID, events.EventTypeSolutionFailed, events.SolutionFailedPayload{
			PlayerID:    playerID,
			CardID:      cardID,
			Error:       diag,
			TestResults: results,
		})
		return d
	}

	idx := p.CardIndex(cardID)
	if idx < 0 {
		log.Warn().
			Str("room_id", room.ID).
			Str("player_id", playerID).
			Str("card_id", cardID).
			Msg("judged card no longer in hand")
		return d
	}

	burned := p.Hand[idx]
	p.Hand = append(p.Hand[:idx:idx], p.Hand[idx+1:]...)
	if p.SelectedCardID != nil && *p.SelectedCardID == cardID {
		p.ClearSelection()
	}
	replacement := e.dealReplacement(p, now)
	p.Hand = append(p.Hand, replacement)

	log.Info().
		Str("room_id", room.ID).
		Str("player_id", playerID).
		Str("problem", burned.Problem.ID).
		Msg("solution passed")

	d.broadcast(events.EventTypeSolutionPassed, events.SolutionPassedPayload{
		PlayerID: playerID,
		CardID:   cardID,
		NewCard:  &replacement,
	})

	if burned.Reward != nil {
		e.resolveReward(room, p, *burned.Reward, now, &d)
	}
	return d
}
