package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/codebattle/go/internal/catalog"
	"github.com/mcdev12/codebattle/go/internal/game/engine"
	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/judge"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recvTimeout = 2 * time.Second

type delivered struct {
	roomID   string
	playerID string
	event    *events.Event
}

type fakeBroadcaster struct {
	ch chan delivered
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan delivered, 1024)}
}

func (f *fakeBroadcaster) BroadcastToRoom(roomID string, event *events.Event) {
	f.ch <- delivered{roomID: roomID, event: event}
}

func (f *fakeBroadcaster) SendToPlayer(roomID, playerID string, event *events.Event) {
	f.ch <- delivered{roomID: roomID, playerID: playerID, event: event}
}

// next returns the next delivery of the given type, skipping others.
func (f *fakeBroadcaster) next(t *testing.T, typ events.EventType) delivered {
	t.Helper()
	timeout := time.After(recvTimeout)
	for {
		select {
		case d := <-f.ch:
			if d.event.Type == typ {
				return d
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return delivered{}
		}
	}
}

type fakeSink struct {
	ch chan *events.Event
}

func (s *fakeSink) Enqueue(event *events.Event) {
	select {
	case s.ch <- event:
	default:
	}
}

func decode[T any](t *testing.T, d delivered) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(d.event.Data, &out))
	return out
}

type harness struct {
	m     *Manager
	b     *fakeBroadcaster
	clock *clockwork.FakeClock
	sink  *fakeSink
}

func newHarness(t *testing.T, cfg Config, j judge.Judge) *harness {
	t.Helper()
	deck, err := catalog.Default()
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	b := newFakeBroadcaster()
	sink := &fakeSink{ch: make(chan *events.Event, 1024)}
	eng := engine.New(engine.DefaultRules(), deck, rand.New(rand.NewPCG(1, 1)))
	m := NewManager(cfg, eng, j, b, WithClock(clock), WithEventSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{m: m, b: b, clock: clock, sink: sink}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StateSyncInterval = 0
	cfg.DebugRewards = true
	return cfg
}

func passingJudge() judge.Judge {
	return judge.Func(func(context.Context, string, models.Problem) (models.JudgeResult, error) {
		return models.JudgeResult{Passed: true}, nil
	})
}

// startGame creates a room with two players and starts it.
func (h *harness) startGame(t *testing.T) (roomID, hostID, guestID string) {
	t.Helper()
	ctx := context.Background()

	host, err := h.m.Join(ctx, JoinRequest{Username: "alice"})
	require.NoError(t, err)
	guest, err := h.m.Join(ctx, JoinRequest{Username: "bob", RoomCode: host.RoomID})
	require.NoError(t, err)
	require.NoError(t, h.m.Start(ctx, host.RoomID, host.PlayerID))
	h.b.next(t, events.EventTypeGameStarted)
	return host.RoomID, host.PlayerID, guest.PlayerID
}

func TestJoinCreatesRoomWithGeneratedCode(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()

	var boundRoom, boundPlayer string
	res, err := h.m.Join(ctx, JoinRequest{
		Username: "alice",
		OnJoined: func(roomID, playerID string) { boundRoom, boundPlayer = roomID, playerID },
	})
	require.NoError(t, err)
	assert.Len(t, res.RoomID, codeLength)
	assert.True(t, ValidCode(res.RoomID))
	assert.Equal(t, res.RoomID, boundRoom)
	assert.Equal(t, res.PlayerID, boundPlayer)
	assert.Equal(t, res.PlayerID, res.Room.HostID)

	joined := h.b.next(t, events.EventTypeRoomJoined)
	assert.Equal(t, res.PlayerID, joined.playerID)

	guest, err := h.m.Join(ctx, JoinRequest{Username: "bob", RoomCode: " " + strings.ToLower(res.RoomID)})
	require.NoError(t, err)
	assert.Equal(t, res.RoomID, guest.RoomID)
	assert.Len(t, guest.Room.Players, 2)
	assert.Equal(t, 1, h.m.RoomCount())
}

func TestJoinUnknownCodeCreatesRoom(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())

	res, err := h.m.Join(context.Background(), JoinRequest{Username: "alice", RoomCode: "party1"})
	require.NoError(t, err)
	assert.Equal(t, "PARTY1", res.RoomID)

	_, err = h.m.Join(context.Background(), JoinRequest{Username: "bob", RoomCode: "bad code!"})
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)
}

func TestJoinRejectsStartedRoom(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	roomID, _, _ := h.startGame(t)

	_, err := h.m.Join(context.Background(), JoinRequest{Username: "carol", RoomCode: roomID})
	assert.ErrorIs(t, err, engine.ErrRoomClosed)
}

func TestFailedJoinDoesNotLeaveEmptyRoom(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())

	_, err := h.m.Join(context.Background(), JoinRequest{Username: "  ", RoomCode: "GHOST"})
	assert.ErrorIs(t, err, engine.ErrInvalidRequest)
	require.Eventually(t, func() bool { return h.m.RoomCount() == 0 }, recvTimeout, 5*time.Millisecond)
}

func TestStartRequiresHost(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()

	host, err := h.m.Join(ctx, JoinRequest{Username: "alice"})
	require.NoError(t, err)
	guest, err := h.m.Join(ctx, JoinRequest{Username: "bob", RoomCode: host.RoomID})
	require.NoError(t, err)

	assert.ErrorIs(t, h.m.Start(ctx, host.RoomID, guest.PlayerID), engine.ErrNotHost)
	require.NoError(t, h.m.Start(ctx, host.RoomID, host.PlayerID))

	started := decode[events.GameStartedPayload](t, h.b.next(t, events.EventTypeGameStarted))
	require.Len(t, started.Players, 2)
	for _, p := range started.Players {
		assert.Len(t, p.Hand, 5)
		require.NotNil(t, p.TimerEndTime)
		assert.Equal(t, h.clock.Now().Add(300*time.Second).UnixMilli(), *p.TimerEndTime)
	}
}

func TestTickerEliminatesAndEndsGame(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()
	roomID, hostID, guestID := h.startGame(t)

	require.NoError(t, h.m.DebugTriggerReward(ctx, roomID, hostID, models.Reward{
		Scope: models.RewardScopeSelf, Kind: models.RewardKindAddTime, Magnitude: 60,
	}))
	h.b.next(t, events.EventTypeRewardApplied)

	h.clock.Advance(300 * time.Second)

	eliminated := decode[events.PlayerEliminatedPayload](t, h.b.next(t, events.EventTypePlayerEliminated))
	assert.Equal(t, guestID, eliminated.PlayerID)

	ended := decode[events.GameEndedPayload](t, h.b.next(t, events.EventTypeGameEnded))
	require.NotNil(t, ended.Winner)
	assert.Equal(t, hostID, *ended.Winner)
	require.NotNil(t, ended.WinnerName)
	assert.Equal(t, "alice", *ended.WinnerName)

	view, err := h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomStatusEnded, view.Status)
}

func TestPeriodicStateSync(t *testing.T) {
	cfg := testConfig()
	cfg.StateSyncInterval = cfg.TickInterval
	h := newHarness(t, cfg, passingJudge())
	roomID, _, _ := h.startGame(t)

	h.clock.Advance(time.Second)
	sync := h.b.next(t, events.EventTypeGameState)
	assert.Empty(t, sync.playerID)
	assert.Equal(t, roomID, sync.roomID)
}

func TestSubmitPassedSolution(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()
	roomID, hostID, _ := h.startGame(t)

	view, err := h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	card := view.Players[0].Hand[0]

	require.NoError(t, h.m.Submit(ctx, roomID, hostID, card.ID, "def solve():\n    return 1\n"))

	passed := decode[events.SolutionPassedPayload](t, h.b.next(t, events.EventTypeSolutionPassed))
	assert.Equal(t, hostID, passed.PlayerID)
	assert.Equal(t, card.ID, passed.CardID)
	require.NotNil(t, passed.NewCard)

	view, err = h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, view.Players[0].Hand, 5)
}

func TestSubmitJudgeErrorDegradesToFailure(t *testing.T) {
	h := newHarness(t, testConfig(), judge.Unavailable{})
	ctx := context.Background()
	roomID, hostID, _ := h.startGame(t)

	view, err := h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	card := view.Players[0].Hand[0]

	require.NoError(t, h.m.Submit(ctx, roomID, hostID, card.ID, "x = 1"))

	failed := h.b.next(t, events.EventTypeSolutionFailed)
	assert.Equal(t, hostID, failed.playerID)
	payload := decode[events.SolutionFailedPayload](t, failed)
	assert.Equal(t, judgeUnavailableMessage, payload.Error)

	view, err = h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, card.ID, view.Players[0].Hand[0].ID)
}

func TestSubmitJudgePanicDegradesToFailure(t *testing.T) {
	h := newHarness(t, testConfig(), judge.Func(func(context.Context, string, models.Problem) (models.JudgeResult, error) {
		panic("sandbox exploded")
	}))
	ctx := context.Background()
	roomID, hostID, _ := h.startGame(t)

	view, err := h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	require.NoError(t, h.m.Submit(ctx, roomID, hostID, view.Players[0].Hand[0].ID, "x = 1"))

	failed := h.b.next(t, events.EventTypeSolutionFailed)
	assert.Equal(t, hostID, failed.playerID)
}

func TestOneSubmissionInFlightPerPlayer(t *testing.T) {
	release := make(chan struct{})
	blocking := judge.Func(func(ctx context.Context, _ string, _ models.Problem) (models.JudgeResult, error) {
		select {
		case <-release:
			return models.JudgeResult{Passed: false, Diagnostics: "nope"}, nil
		case <-ctx.Done():
			return models.JudgeResult{}, ctx.Err()
		}
	})
	h := newHarness(t, testConfig(), blocking)
	ctx := context.Background()
	roomID, hostID, _ := h.startGame(t)

	view, err := h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	hand := view.Players[0].Hand

	require.NoError(t, h.m.Submit(ctx, roomID, hostID, hand[0].ID, "x = 1"))
	err = h.m.Submit(ctx, roomID, hostID, hand[1].ID, "x = 2")
	assert.ErrorIs(t, err, engine.ErrSubmissionPending)

	close(release)
	failed := decode[events.SolutionFailedPayload](t, h.b.next(t, events.EventTypeSolutionFailed))
	assert.Equal(t, "nope", failed.Error)

	require.Eventually(t, func() bool {
		return !errors.Is(h.m.Submit(ctx, roomID, hostID, hand[1].ID, "x = 2"), engine.ErrSubmissionPending)
	}, recvTimeout, 10*time.Millisecond)
}

func TestSubmitAfterDeadlineEliminates(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()

	host, err := h.m.Join(ctx, JoinRequest{Username: "alice"})
	require.NoError(t, err)
	for _, name := range []string{"bob", "carol"} {
		_, err := h.m.Join(ctx, JoinRequest{Username: name, RoomCode: host.RoomID})
		require.NoError(t, err)
	}
	require.NoError(t, h.m.Start(ctx, host.RoomID, host.PlayerID))

	view, err := h.m.Snapshot(ctx, host.RoomID)
	require.NoError(t, err)
	cardID := view.Players[0].Hand[0].ID

	// Jump the clock without letting the room tick first.
	h.clock.Advance(300 * time.Second)
	// Either the tick or the submission notices the deadline first; both refuse it.
	err = h.m.Submit(ctx, host.RoomID, host.PlayerID, cardID, "x = 1")
	assert.Error(t, err)

	view, err = h.m.Snapshot(ctx, host.RoomID)
	require.NoError(t, err)
	assert.True(t, view.Players[0].IsEliminated)
}

func TestReportEliminationResyncsEarlyClaim(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()
	roomID, hostID, _ := h.startGame(t)

	require.NoError(t, h.m.ReportElimination(ctx, roomID, hostID))
	state := h.b.next(t, events.EventTypeGameState)
	assert.Equal(t, hostID, state.playerID)

	view, err := h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	assert.False(t, view.Players[0].IsEliminated)
}

func TestTargetedDebuffThroughManager(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()
	roomID, hostID, guestID := h.startGame(t)

	require.NoError(t, h.m.DebugTriggerReward(ctx, roomID, hostID, models.Reward{
		Scope: models.RewardScopeOther, Kind: models.RewardKindRemoveTime, Magnitude: 20, Targeting: models.TargetingChoose,
	}))
	prompt := h.b.next(t, events.EventTypeTargetSelectionRequired)
	assert.Equal(t, hostID, prompt.playerID)

	assert.ErrorIs(t, h.m.ApplyTargetedDebuff(ctx, roomID, guestID, hostID), engine.ErrInvalidTarget)

	require.NoError(t, h.m.ApplyTargetedDebuff(ctx, roomID, hostID, guestID))
	applied := decode[events.RewardAppliedPayload](t, h.b.next(t, events.EventTypeRewardApplied))
	assert.Equal(t, guestID, applied.PlayerID)
	assert.Equal(t, hostID, applied.FromPlayer)
	require.NotNil(t, applied.TimerEndTime)
	assert.Equal(t, h.clock.Now().Add(280*time.Second).UnixMilli(), *applied.TimerEndTime)
}

func TestDebugRewardsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.DebugRewards = false
	h := newHarness(t, cfg, passingJudge())
	roomID, hostID, _ := h.startGame(t)

	err := h.m.DebugTriggerReward(context.Background(), roomID, hostID, models.Reward{
		Scope: models.RewardScopeSelf, Kind: models.RewardKindAddTime, Magnitude: 1,
	})
	assert.ErrorIs(t, err, engine.ErrDebugDisabled)
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()

	host, err := h.m.Join(ctx, JoinRequest{Username: "alice"})
	require.NoError(t, err)
	guest, err := h.m.Join(ctx, JoinRequest{Username: "bob", RoomCode: host.RoomID})
	require.NoError(t, err)
	extra, err := h.m.Join(ctx, JoinRequest{Username: "carol", RoomCode: host.RoomID})
	require.NoError(t, err)

	require.NoError(t, h.m.Disconnect(ctx, host.RoomID, extra.PlayerID))
	left := decode[events.PlayerLeftPayload](t, h.b.next(t, events.EventTypePlayerLeft))
	assert.Equal(t, extra.PlayerID, left.PlayerID)

	require.NoError(t, h.m.Start(ctx, host.RoomID, host.PlayerID))
	require.NoError(t, h.m.Disconnect(ctx, host.RoomID, guest.PlayerID))

	view, err := h.m.Snapshot(ctx, host.RoomID)
	require.NoError(t, err)
	assert.Len(t, view.Players, 2)
	assert.Equal(t, models.RoomStatusPlaying, view.Status)
}

func TestRoomReleasedWhenEveryoneDisconnectedBeforeGameEnd(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()
	roomID, hostID, guestID := h.startGame(t)

	require.NoError(t, h.m.Disconnect(ctx, roomID, hostID))
	require.NoError(t, h.m.Disconnect(ctx, roomID, guestID))
	assert.Equal(t, 1, h.m.RoomCount())

	h.clock.Advance(301 * time.Second)
	h.b.next(t, events.EventTypeGameEnded)

	require.Eventually(t, func() bool { return h.m.RoomCount() == 0 }, recvTimeout, 5*time.Millisecond)
	_, err := h.m.Snapshot(ctx, roomID)
	assert.ErrorIs(t, err, engine.ErrRoomNotFound)
}

func TestDisconnectedPlayerRemovedAtGameEnd(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()
	roomID, hostID, guestID := h.startGame(t)

	require.NoError(t, h.m.DebugTriggerReward(ctx, roomID, hostID, models.Reward{
		Scope: models.RewardScopeSelf, Kind: models.RewardKindAddTime, Magnitude: 60,
	}))
	h.b.next(t, events.EventTypeRewardApplied)
	require.NoError(t, h.m.Disconnect(ctx, roomID, guestID))

	h.clock.Advance(300 * time.Second)

	ended := decode[events.GameEndedPayload](t, h.b.next(t, events.EventTypeGameEnded))
	require.NotNil(t, ended.Winner)
	assert.Equal(t, hostID, *ended.Winner)

	left := decode[events.PlayerLeftPayload](t, h.b.next(t, events.EventTypePlayerLeft))
	assert.Equal(t, guestID, left.PlayerID)

	view, err := h.m.Snapshot(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, view.Players, 1)
	assert.Equal(t, models.RoomStatusEnded, view.Status)
	assert.Equal(t, 1, h.m.RoomCount())
}

func TestDisconnectedPlayerWhoLeavesIsNotRemovedTwice(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()

	host, err := h.m.Join(ctx, JoinRequest{Username: "alice"})
	require.NoError(t, err)
	guest, err := h.m.Join(ctx, JoinRequest{Username: "bob", RoomCode: host.RoomID})
	require.NoError(t, err)
	extra, err := h.m.Join(ctx, JoinRequest{Username: "carol", RoomCode: host.RoomID})
	require.NoError(t, err)
	require.NoError(t, h.m.Start(ctx, host.RoomID, host.PlayerID))
	h.b.next(t, events.EventTypeGameStarted)

	require.NoError(t, h.m.Disconnect(ctx, host.RoomID, extra.PlayerID))
	require.NoError(t, h.m.Leave(ctx, host.RoomID, extra.PlayerID))
	left := decode[events.PlayerLeftPayload](t, h.b.next(t, events.EventTypePlayerLeft))
	assert.Equal(t, extra.PlayerID, left.PlayerID)

	require.NoError(t, h.m.Leave(ctx, host.RoomID, guest.PlayerID))
	h.b.next(t, events.EventTypeGameEnded)

	view, err := h.m.Snapshot(ctx, host.RoomID)
	require.NoError(t, err)
	assert.Len(t, view.Players, 1)
	assert.Equal(t, models.RoomStatusEnded, view.Status)
}

func TestRoomRemovedWhenLastPlayerLeaves(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()

	host, err := h.m.Join(ctx, JoinRequest{Username: "alice"})
	require.NoError(t, err)
	guest, err := h.m.Join(ctx, JoinRequest{Username: "bob", RoomCode: host.RoomID})
	require.NoError(t, err)

	require.NoError(t, h.m.Leave(ctx, host.RoomID, host.PlayerID))
	left := decode[events.PlayerLeftPayload](t, h.b.next(t, events.EventTypePlayerLeft))
	assert.Equal(t, guest.PlayerID, left.HostID)

	require.NoError(t, h.m.Leave(ctx, host.RoomID, guest.PlayerID))
	require.Eventually(t, func() bool { return h.m.RoomCount() == 0 }, recvTimeout, 5*time.Millisecond)

	_, err = h.m.Snapshot(ctx, host.RoomID)
	assert.ErrorIs(t, err, engine.ErrRoomNotFound)
}

func TestRoomEventsReachSink(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	h.startGame(t)

	seen := make(map[events.EventType]bool)
	timeout := time.After(recvTimeout)
	for !seen[events.EventTypeGameStarted] {
		select {
		case ev := <-h.sink.ch:
			seen[ev.Type] = true
		case <-timeout:
			t.Fatal("game_started never reached the sink")
		}
	}
	assert.True(t, seen[events.EventTypePlayerJoined])
	assert.False(t, seen[events.EventTypeRoomJoined])
}

func TestListRooms(t *testing.T) {
	h := newHarness(t, testConfig(), passingJudge())
	ctx := context.Background()

	a, err := h.m.Join(ctx, JoinRequest{Username: "alice"})
	require.NoError(t, err)
	_, err = h.m.Join(ctx, JoinRequest{Username: "bob"})
	require.NoError(t, err)

	rooms := h.m.ListRooms(ctx)
	assert.Len(t, rooms, 2)
	codes := []string{rooms[0].ID, rooms[1].ID}
	assert.Contains(t, codes, a.RoomID)
}
