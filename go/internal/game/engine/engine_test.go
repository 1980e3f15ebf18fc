package engine

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/mcdev12/codebattle/go/internal/catalog"
	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	deck, err := catalog.Default()
	require.NoError(t, err)
	return New(DefaultRules(), deck, rand.New(rand.NewPCG(42, 7)))
}

// newLobby creates a room with the given usernames joined in order.
func newLobby(t *testing.T, e *Engine, usernames ...string) (*models.Room, []*models.Player) {
	t.Helper()
	room := models.NewRoom("ABC123", t0)
	var players []*models.Player
	for _, name := range usernames {
		p, _, err := e.Join(room, name, t0)
		require.NoError(t, err)
		players = append(players, p)
	}
	return room, players
}

// newGame creates a started room.
func newGame(t *testing.T, e *Engine, usernames ...string) (*models.Room, []*models.Player) {
	t.Helper()
	room, players := newLobby(t, e, usernames...)
	_, err := e.Start(room, players[0].ID, t0)
	require.NoError(t, err)
	return room, players
}

// giveCard puts a card with the given reward and challenge first in the player's hand.
func giveCard(p *models.Player, reward *models.Reward, challenge *models.Challenge) models.Card {
	card := models.Card{
		ID:        "card-" + p.Username,
		Problem:   models.Problem{ID: "custom-" + p.Username, Title: "Custom"},
		Reward:    reward,
		Challenge: challenge,
		DealtAt:   t0,
	}
	p.Hand[0] = card
	return card
}

func eventsOf(d Delta, typ events.EventType) []Outbound {
	var out []Outbound
	for _, ev := range d.Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func passed() models.JudgeResult {
	return models.JudgeResult{Passed: true}
}
