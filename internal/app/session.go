package app

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"boardquiz-service/internal/deck"
	"boardquiz-service/internal/domain"
	"boardquiz-service/internal/game"
	"boardquiz-service/internal/quizgen"
)

// SessionConfig holds the board and timing used for every new session.
type SessionConfig struct {
	Tiles          []domain.Tile
	DiceAnimation  time.Duration
	SkipNotice     time.Duration
	Tick           time.Duration
	DefaultMinutes float64
}

// DefaultSessionConfig is the classic 10x6 board with the usual delays.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Tiles:          game.DefaultLayout(game.PerimeterLength(game.DefaultCols, game.DefaultRows)),
		DiceAnimation:  1200 * time.Millisecond,
		SkipNotice:     1400 * time.Millisecond,
		Tick:           time.Second,
		DefaultMinutes: deck.DefaultActivityMinutes,
	}
}

// UpdateKind tags messages pushed to subscribers.
type UpdateKind string

const (
	UpdateState      UpdateKind = "state"
	UpdateEvents     UpdateKind = "events"
	UpdateProgress   UpdateKind = "generation_progress"
	UpdateGenerated  UpdateKind = "generation_done"
	UpdateGenFailed  UpdateKind = "generation_failed"
	UpdateDeck       UpdateKind = "deck"
	UpdateScoreboard UpdateKind = "scoreboard"
)

// SessionState is the full view of a session sent to clients.
type SessionState struct {
	SessionID  string        `json:"sessionId"`
	Game       game.Snapshot `json:"game"`
	Tiles      []domain.Tile `json:"tiles"`
	Topic      string        `json:"topic,omitempty"`
	DeckUsed   int           `json:"deckUsed"`
	DeckTotal  int           `json:"deckTotal"`
	ShowAnswer bool          `json:"showAnswer"`
	Generating bool          `json:"generating"`
}

// Update is one push to subscribers. State is always filled.
type Update struct {
	Kind       UpdateKind         `json:"kind"`
	State      SessionState       `json:"state"`
	Events     []game.Event       `json:"events,omitempty"`
	Progress   *quizgen.Progress  `json:"progress,omitempty"`
	Scoreboard *domain.Scoreboard `json:"scoreboard,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// GameSession owns one board: the engine, the deck queue and the timers driving them.
// Every mutation goes through mu, and timer callbacks carry the epoch they were
// scheduled in so that a start or reset drops them.
type GameSession struct {
	id  string
	cfg SessionConfig
	log *zap.Logger
	now func() time.Time

	mu          sync.Mutex
	engine      *game.Engine
	queue       *deck.Queue
	deck        *domain.Deck
	subscribers map[chan Update]struct{}
	epoch       uint64
	pending     *time.Timer
	stopTick    chan struct{}
	cancelGen   context.CancelFunc
	closed      bool

	generating atomic.Bool
}

// NewGameSession is exported for infrastructure layers that need to seed sessions.
func NewGameSession(id string, cfg SessionConfig, log *zap.Logger) *GameSession {
	return newGameSessionWithClock(id, cfg, log, time.Now)
}

func newGameSessionWithClock(id string, cfg SessionConfig, log *zap.Logger, now func() time.Time) *GameSession {
	if log == nil {
		log = zap.NewNop()
	}
	if len(cfg.Tiles) == 0 {
		cfg.Tiles = DefaultSessionConfig().Tiles
	}
	q := deck.NewQueue()
	engine, _ := game.NewEngine(cfg.Tiles, q)
	s := &GameSession{
		id:          id,
		cfg:         cfg,
		log:         log.With(zap.String("session", id)),
		now:         now,
		engine:      engine,
		queue:       q,
		subscribers: make(map[chan Update]struct{}),
	}
	engine.Reset(s.secondsLocked())
	return s
}

func (s *GameSession) ID() string { return s.id }

// State returns the current session view.
func (s *GameSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Deck returns the applied deck, if any.
func (s *GameSession) Deck() (domain.Deck, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deck == nil {
		return domain.Deck{}, false
	}
	return *s.deck, true
}

// SetEngineDice replaces the die; tests use it for scripted rolls.
func (s *GameSession) SetEngineDice(roll func() int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetDice(roll)
}

// IsIdle reports whether nobody is watching and no generation is running.
func (s *GameSession) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && !s.generating.Load()
}

// applyDeck replaces the deck. keepCursors reapplies without rewinding the queue.
func (s *GameSession) applyDeck(d domain.Deck, keepCursors bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keepCursors {
		s.queue.Reload(d)
	} else {
		s.queue.Load(d)
	}
	s.deck = &d
	s.engine.SetDeck(s.queue, d.Settings.ShowAnswer)
	if s.engine.Phase() == game.PhaseIdle {
		s.engine.Reset(s.secondsLocked())
	}
	s.broadcastLocked(Update{Kind: UpdateDeck})
}

func (s *GameSession) secondsLocked() int {
	minutes := s.cfg.DefaultMinutes
	if s.deck != nil && s.deck.Settings.ActivityMinutes > 0 {
		minutes = s.deck.Settings.ActivityMinutes
	}
	return int(math.Round(deck.ClampMinutes(minutes) * 60))
}

// Start begins a new game, cancelling every timer of the previous one.
func (s *GameSession) Start() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
	out := s.engine.Start(s.secondsLocked())
	s.startTickerLocked()
	s.log.Info("game started", zap.Int("seconds", s.engine.Snapshot().State.RemainingSeconds))
	s.handleLocked(out)
	return s.stateLocked()
}

// Reset stops the game and clears positions and scores.
func (s *GameSession) Reset() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimersLocked()
	s.handleLocked(s.engine.Reset(s.secondsLocked()))
	return s.stateLocked()
}

// Roll rolls for the active player. The move itself lands after the dice animation.
func (s *GameSession) Roll() (SessionState, error) {
	return s.do(s.engine.Roll)
}

// SubmitAnswer grades the open question.
func (s *GameSession) SubmitAnswer(selected int) (SessionState, error) {
	return s.do(func() (game.Outcome, error) { return s.engine.SubmitAnswer(selected) })
}

// Acknowledge closes the answer result and passes the turn.
func (s *GameSession) Acknowledge() (SessionState, error) {
	return s.do(s.engine.Acknowledge)
}

func (s *GameSession) do(step func() (game.Outcome, error)) (SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := step()
	if err != nil {
		return s.stateLocked(), err
	}
	s.handleLocked(out)
	return s.stateLocked(), nil
}

// handleLocked publishes an outcome and schedules its delayed followup.
func (s *GameSession) handleLocked(out game.Outcome) {
	if len(out.Events) > 0 {
		s.broadcastLocked(Update{Kind: UpdateEvents, Events: out.Events})
	}
	switch out.Followup {
	case game.FollowupFinishMove:
		s.scheduleLocked(s.cfg.DiceAnimation, s.engine.FinishMove)
	case game.FollowupAcknowledge:
		s.scheduleLocked(s.cfg.SkipNotice, s.engine.Acknowledge)
	}
	for _, ev := range out.Events {
		if ev.Kind == game.EventGameOver {
			s.finishLocked(ev)
		}
	}
}

func (s *GameSession) scheduleLocked(d time.Duration, step func() (game.Outcome, error)) {
	if s.pending != nil {
		s.pending.Stop()
	}
	epoch := s.epoch
	s.pending = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.closed {
			return
		}
		s.pending = nil
		out, err := step()
		if err != nil {
			s.log.Debug("delayed step dropped", zap.Error(err))
			return
		}
		s.handleLocked(out)
	})
}

func (s *GameSession) startTickerLocked() {
	stop := make(chan struct{})
	s.stopTick = stop
	epoch := s.epoch
	interval := s.cfg.Tick
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				s.mu.Lock()
				if s.epoch != epoch || s.closed {
					s.mu.Unlock()
					return
				}
				s.handleTickLocked(s.engine.Tick())
				s.mu.Unlock()
			}
		}
	}()
}

func (s *GameSession) handleTickLocked(out game.Outcome) {
	if len(out.Events) == 0 {
		return
	}
	s.handleLocked(out)
}

func (s *GameSession) finishLocked(ev game.Event) {
	s.stopTimersLocked()
	board := domain.Scoreboard{
		SessionID: s.id,
		Scores:    ev.Scores,
		Winner:    ev.Player,
		EndedAt:   s.now(),
	}
	s.log.Info("game over", zap.Ints("scores", ev.Scores[:]), zap.Int("winner", ev.Player))
	s.broadcastLocked(Update{Kind: UpdateScoreboard, Scoreboard: &board})
}

// stopTimersLocked bumps the epoch so in-flight callbacks become no-ops, then stops
// the countdown and any pending delayed step.
func (s *GameSession) stopTimersLocked() {
	s.epoch++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

// beginGeneration claims the session's single generation slot.
func (s *GameSession) beginGeneration(parent context.Context) (context.Context, bool) {
	if !s.generating.CompareAndSwap(false, true) {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.cancelGen = cancel
	s.broadcastLocked(Update{Kind: UpdateState})
	s.mu.Unlock()
	return ctx, true
}

func (s *GameSession) endGeneration(kind UpdateKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelGen != nil {
		s.cancelGen()
		s.cancelGen = nil
	}
	s.generating.Store(false)
	s.broadcastLocked(Update{Kind: kind, Message: message})
}

func (s *GameSession) reportProgress(p quizgen.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(Update{Kind: UpdateProgress, Progress: &p})
}

// CancelGeneration stops an in-flight generation after its current batch.
func (s *GameSession) CancelGeneration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelGen == nil {
		return false
	}
	s.cancelGen()
	return true
}

// Close stops timers and generation; the session must not be used afterwards.
func (s *GameSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimersLocked()
	if s.cancelGen != nil {
		s.cancelGen()
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Subscribe returns a channel of updates, starting with the current state.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameSession) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := Update{Kind: UpdateState, State: s.stateLocked()}
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *GameSession) broadcastLocked(u Update) {
	u.State = s.stateLocked()
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// slow reader: drop its oldest update, every update carries the full state
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}

func (s *GameSession) stateLocked() SessionState {
	st := SessionState{
		SessionID:  s.id,
		Game:       s.engine.Snapshot(),
		Tiles:      s.engine.Tiles(),
		DeckUsed:   s.queue.Used(),
		DeckTotal:  s.queue.Total(),
		Generating: s.generating.Load(),
	}
	if s.deck != nil {
		st.Topic = s.deck.Topic
		st.ShowAnswer = s.deck.Settings.ShowAnswer
	}
	return st
}
