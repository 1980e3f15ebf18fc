// Package orchestrator owns the live rooms. Each room is driven by a single
// actor goroutine that serializes every mutation, runs the room's countdown
// ticker and hands submissions to a shared judge worker pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/codebattle/go/internal/game/engine"
	"github.com/mcdev12/codebattle/go/internal/game/events"
	"github.com/mcdev12/codebattle/go/internal/judge"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Broadcaster delivers events to connected clients.
type Broadcaster interface {
	BroadcastToRoom(roomID string, event *events.Event)
	SendToPlayer(roomID, playerID string, event *events.Event)
}

// EventSink receives every room-wide event for forwarding to the bus.
type EventSink interface {
	Enqueue(event *events.Event)
}

// Config tunes the orchestrator.
type Config struct {
	TickInterval      time.Duration
	StateSyncInterval time.Duration
	JudgeWorkers      int
	JudgeTimeout      time.Duration
	JudgeQueueSize    int
	DebugRewards      bool
}

func DefaultConfig() Config {
	return Config{
		TickInterval:      time.Second,
		StateSyncInterval: 5 * time.Second,
		JudgeWorkers:      8,
		JudgeTimeout:      10 * time.Second,
		JudgeQueueSize:    64,
	}
}

// JoinRequest asks to enter a room. OnJoined runs on the room goroutine
// before any event about the new player is delivered, so the caller can
// route the player's connection first.
type JoinRequest struct {
	Username string
	RoomCode string
	OnJoined func(roomID, playerID string)
}

// JoinResult identifies the joined player.
type JoinResult struct {
	RoomID   string
	PlayerID string
	Room     events.RoomView
}

type Option func(*Manager)

// WithClock overrides the real clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithEventSink forwards room events to a sink.
func WithEventSink(s EventSink) Option {
	return func(m *Manager) { m.sink = s }
}

// Manager is the registry of live rooms.
type Manager struct {
	cfg         Config
	engine      *engine.Engine
	judge       judge.Judge
	broadcaster Broadcaster
	sink        EventSink
	clock       Clock
	instanceID  string

	rooms map[string]*roomActor
	mu    sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	actors sync.WaitGroup

	workCh chan judgeJob
}

// NewManager creates a manager. Rooms can be used immediately; Run starts the
// judge workers and owns shutdown.
func NewManager(cfg Config, eng *engine.Engine, j judge.Judge, b Broadcaster, opts ...Option) *Manager {
	if cfg.JudgeWorkers <= 0 {
		cfg.JudgeWorkers = 1
	}
	if cfg.JudgeTimeout <= 0 {
		cfg.JudgeTimeout = 10 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.JudgeQueueSize <= 0 {
		cfg.JudgeQueueSize = cfg.JudgeWorkers * 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:         cfg,
		engine:      eng,
		judge:       j,
		broadcaster: b,
		clock:       clockwork.NewRealClock(),
		instanceID:  uuid.New().String()[:8],
		rooms:       make(map[string]*roomActor),
		ctx:         ctx,
		cancel:      cancel,
		workCh:      make(chan judgeJob, cfg.JudgeQueueSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the judge worker pool and blocks until ctx is cancelled, then
// stops every room.
func (m *Manager) Run(ctx context.Context) error {
	log.Info().
		Str("instance", m.instanceID).
		Int("workers", m.cfg.JudgeWorkers).
		Msg("room orchestrator started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(m.ctx)
	defer cancelWorkers()

	for i := 0; i < m.cfg.JudgeWorkers; i++ {
		wg.Add(1)
		go m.worker(workerCtx, &wg, i)
	}

	<-ctx.Done()

	log.Info().Str("instance", m.instanceID).Msg("stopping rooms")
	m.cancel()
	m.actors.Wait()
	cancelWorkers()
	wg.Wait()
	log.Info().Str("instance", m.instanceID).Msg("room orchestrator stopped")
	return nil
}

func (m *Manager) newActor(code string) *roomActor {
	a := &roomActor{
		m:            m,
		room:         models.NewRoom(code, m.clock.Now()),
		inbox:        make(chan func()),
		done:         make(chan struct{}),
		inFlight:     make(map[string]bool),
		disconnected: make(map[string]bool),
	}
	m.rooms[code] = a
	m.actors.Add(1)
	go a.run(m.ctx)
	log.Info().Str("room_id", code).Msg("room created")
	return a
}

// getOrCreate returns the actor for code, creating the room if needed.
func (m *Manager) getOrCreate(code string) *roomActor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rooms[code]; ok {
		return a
	}
	return m.newActor(code)
}

// createRoom creates a room under a fresh unique code.
func (m *Manager) createRoom() *roomActor {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		code := generateCode(codeLength)
		if _, exists := m.rooms[code]; exists {
			continue
		}
		return m.newActor(code)
	}
}

func (m *Manager) removeRoom(a *roomActor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[a.room.ID]; ok && cur == a {
		delete(m.rooms, a.room.ID)
		log.Info().Str("room_id", a.room.ID).Msg("room removed")
	}
}

func (m *Manager) lookup(roomID string) (*roomActor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.rooms[NormalizeCode(roomID)]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, engine.ErrRoomNotFound)
	}
	return a, nil
}

// withRoom runs fn on the room's goroutine and waits for its result.
func (m *Manager) withRoom(ctx context.Context, roomID string, fn func(a *roomActor, now time.Time) error) error {
	a, err := m.lookup(roomID)
	if err != nil {
		return err
	}
	return a.do(ctx, func(now time.Time) error { return fn(a, now) })
}

// Join enters an existing lobby or creates a room. An empty code creates a
// room under a generated code.
func (m *Manager) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	code := NormalizeCode(req.RoomCode)
	if code != "" && !ValidCode(code) {
		return JoinResult{}, fmt.Errorf("room code %q: %w", req.RoomCode, engine.ErrInvalidRequest)
	}

	for attempt := 0; attempt < 3; attempt++ {
		var a *roomActor
		if code == "" {
			a = m.createRoom()
		} else {
			a = m.getOrCreate(code)
		}

		var res JoinResult
		err := a.do(ctx, func(now time.Time) error {
			p, delta, err := m.engine.Join(a.room, req.Username, now)
			if err != nil {
				return err
			}
			res = JoinResult{RoomID: a.room.ID, PlayerID: p.ID, Room: events.NewRoomView(a.room, now)}
			if req.OnJoined != nil {
				req.OnJoined(a.room.ID, p.ID)
			}
			a.emit(delta, now)
			return nil
		})
		if errors.Is(err, errRoomStopped) {
			continue
		}
		return res, err
	}
	return JoinResult{}, fmt.Errorf("room %s: %w", code, engine.ErrRoomNotFound)
}

// Leave removes a player from a room.
func (m *Manager) Leave(ctx context.Context, roomID, playerID string) error {
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		delta, err := m.engine.Leave(a.room, playerID, now)
		if err != nil {
			return err
		}
		delete(a.inFlight, playerID)
		delete(a.disconnected, playerID)
		a.emit(delta, now)
		return nil
	})
}

// Disconnect handles a dropped connection. Outside of play it is a leave;
// during play the player stays and their countdown keeps running until the
// game ends, when they are removed.
func (m *Manager) Disconnect(ctx context.Context, roomID, playerID string) error {
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		if a.room.Status == models.RoomStatusPlaying {
			if _, ok := a.room.Players[playerID]; ok {
				a.disconnected[playerID] = true
			}
			log.Info().
				Str("room_id", a.room.ID).
				Str("player_id", playerID).
				Msg("player disconnected during play")
			return nil
		}
		delta, err := m.engine.Leave(a.room, playerID, now)
		if errors.Is(err, engine.ErrPlayerNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		a.emit(delta, now)
		return nil
	})
}

// Start begins the game on behalf of the host.
func (m *Manager) Start(ctx context.Context, roomID, playerID string) error {
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		delta, err := m.engine.Start(a.room, playerID, now)
		if err != nil {
			return err
		}
		a.emit(delta, now)
		return nil
	})
}

// SelectCard sets or clears a player's selected card.
func (m *Manager) SelectCard(ctx context.Context, roomID, playerID string, cardID *string) error {
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		delta, err := m.engine.SelectCard(a.room, playerID, cardID, now)
		a.emit(delta, now)
		return err
	})
}

// Submit validates a solution and queues it for judging. The verdict is
// delivered asynchronously.
func (m *Manager) Submit(ctx context.Context, roomID, playerID, cardID, code string) error {
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		card, delta, err := m.engine.AcceptSubmission(a.room, playerID, cardID, code, now)
		a.emit(delta, now)
		if err != nil || card == nil {
			return err
		}
		if a.inFlight[playerID] {
			return engine.ErrSubmissionPending
		}

		job := judgeJob{actor: a, playerID: playerID, card: *card, code: code}
		select {
		case m.workCh <- job:
			a.inFlight[playerID] = true
			log.Debug().
				Str("room_id", a.room.ID).
				Str("player_id", playerID).
				Str("card_id", cardID).
				Msg("submission queued for judging")
		default:
			log.Warn().Str("room_id", a.room.ID).Msg("judge queue full")
			a.credit(playerID, cardID, unavailableResult(), now)
		}
		return nil
	})
}

// ReportElimination handles a client's claim that its countdown expired.
func (m *Manager) ReportElimination(ctx context.Context, roomID, playerID string) error {
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		delta, err := m.engine.ConfirmElimination(a.room, playerID, now)
		if err != nil {
			return err
		}
		a.emit(delta, now)
		return nil
	})
}

// ApplyTargetedDebuff resolves the player's pending targeted reward.
func (m *Manager) ApplyTargetedDebuff(ctx context.Context, roomID, playerID, targetID string) error {
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		delta, err := m.engine.ApplyTargetedDebuff(a.room, playerID, targetID, now)
		a.emit(delta, now)
		return err
	})
}

// GetGameState sends the full room state to one player.
func (m *Manager) GetGameState(ctx context.Context, roomID, playerID string) error {
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		if _, ok := a.room.Players[playerID]; !ok {
			return engine.ErrPlayerNotFound
		}
		a.emit(m.engine.StateFor(a.room, playerID, now), now)
		return nil
	})
}

// DebugTriggerReward fires a reward for a player when debug rewards are enabled.
func (m *Manager) DebugTriggerReward(ctx context.Context, roomID, playerID string, reward models.Reward) error {
	if !m.cfg.DebugRewards {
		return engine.ErrDebugDisabled
	}
	return m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		delta, err := m.engine.TriggerReward(a.room, playerID, reward, now)
		if err != nil {
			return err
		}
		a.emit(delta, now)
		return nil
	})
}

// Snapshot returns the full state of a room.
func (m *Manager) Snapshot(ctx context.Context, roomID string) (events.RoomView, error) {
	var view events.RoomView
	err := m.withRoom(ctx, roomID, func(a *roomActor, now time.Time) error {
		view = m.engine.Snapshot(a.room, now)
		return nil
	})
	return view, err
}

// ListRooms summarizes every live room.
func (m *Manager) ListRooms(ctx context.Context) []events.RoomSummary {
	m.mu.RLock()
	actors := make([]*roomActor, 0, len(m.rooms))
	for _, a := range m.rooms {
		actors = append(actors, a)
	}
	m.mu.RUnlock()

	out := make([]events.RoomSummary, 0, len(actors))
	for _, a := range actors {
		var summary events.RoomSummary
		err := a.do(ctx, func(time.Time) error {
			summary = events.NewRoomSummary(a.room)
			return nil
		})
		if err == nil && summary.PlayerCount > 0 {
			out = append(out, summary)
		}
	}
	return out
}

// RoomCount returns the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
