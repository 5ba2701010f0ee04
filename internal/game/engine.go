package game

import (
	"errors"
	"math/rand/v2"

	"boardquiz-service/internal/domain"
)

var (
	ErrGameNotStarted   = errors.New("game has not started")
	ErrNotYourPhase     = errors.New("action not allowed right now")
	ErrNoSelection      = errors.New("no choice selected")
	ErrInvalidSelection = errors.New("selected choice does not exist")
	ErrGameOver         = errors.New("time is up")
	ErrEmptyLayout      = errors.New("board layout is empty")
)

// maxHops bounds a chain of relative-move tiles.
const maxHops = 16

// Phase is the turn state machine position.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAwaitingRoll   Phase = "awaiting-roll"
	PhaseAnimatingMove  Phase = "animating-move"
	PhaseAwaitingAnswer Phase = "awaiting-answer"
	PhaseTurnResolved   Phase = "turn-resolved"
	PhaseGameOver       Phase = "game-over"
)

// EventKind names what happened during a transition.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventSkipUsed EventKind = "skip-used"
	EventRolled   EventKind = "rolled"
	EventMoved    EventKind = "moved"
	EventSkipTile EventKind = "skip-tile"
	EventQuestion EventKind = "question"
	EventDepleted EventKind = "deck-depleted"
	EventAnswered EventKind = "answered"
	EventTurn     EventKind = "turn"
	EventTick     EventKind = "tick"
	EventGameOver EventKind = "game-over"
	EventReset    EventKind = "reset"
	EventChainCut EventKind = "move-chain-cut"
)

// Event is one observable step. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind     `json:"kind"`
	Player   int           `json:"player"`
	From     int           `json:"from,omitempty"`
	To       int           `json:"to,omitempty"`
	Steps    int           `json:"steps,omitempty"`
	Tile     *domain.Tile  `json:"tile,omitempty"`
	Question *QuestionView `json:"question,omitempty"`
	Result   *AnswerResult `json:"result,omitempty"`
	Scores   [2]int        `json:"scores"`
	Seconds  int           `json:"seconds,omitempty"`
}

// QuestionView is what players see; the answer is withheld until it is submitted.
type QuestionView struct {
	Kind    domain.Kind `json:"kind"`
	Text    string      `json:"question"`
	Choices []string    `json:"choices"`
	Used    int         `json:"used"`
	Total   int         `json:"total"`
}

// AnswerResult reports a graded answer. Answer and Explain are only filled when the deck
// allows revealing them.
type AnswerResult struct {
	Selected int    `json:"selected"`
	Correct  bool   `json:"correct"`
	Answer   string `json:"answer,omitempty"`
	Explain  string `json:"explain,omitempty"`
}

// Followup tells the controller which delayed step to schedule next.
type Followup int

const (
	FollowupNone Followup = iota
	// FollowupFinishMove: call FinishMove once the dice animation is over.
	FollowupFinishMove
	// FollowupAcknowledge: call Acknowledge once the skip notice has been shown.
	FollowupAcknowledge
)

// Outcome is the result of one engine transition.
type Outcome struct {
	Events   []Event
	Followup Followup
}

func (o *Outcome) add(e Event) { o.Events = append(o.Events, e) }

// Deck is the question source consumed by quiz tiles.
type Deck interface {
	Draw(want domain.Kind) (domain.Question, bool)
	Used() int
	Total() int
}

// Snapshot is a copy of the engine state for rendering.
type Snapshot struct {
	Phase    Phase            `json:"phase"`
	State    domain.TurnState `json:"state"`
	Pending  int              `json:"pendingSteps,omitempty"`
	Question *QuestionView    `json:"question,omitempty"`
	Tiles    int              `json:"tiles"`
}

// Engine is the two-player turn state machine. It is not safe for concurrent use; the
// owning session serializes calls.
type Engine struct {
	tiles      []domain.Tile
	deck       Deck
	showAnswer bool
	roll       func() int

	phase    Phase
	state    domain.TurnState
	pending  int
	question *domain.Question
	view     *QuestionView
}

// NewEngine builds an engine over a tile layout. A nil deck behaves as an empty deck.
func NewEngine(tiles []domain.Tile, deck Deck) (*Engine, error) {
	if len(tiles) == 0 {
		return nil, ErrEmptyLayout
	}
	return &Engine{
		tiles: tiles,
		deck:  deck,
		roll:  func() int { return 1 + rand.IntN(6) },
		phase: PhaseIdle,
	}, nil
}

// SetDice replaces the die; tests use it for scripted rolls.
func (e *Engine) SetDice(roll func() int) { e.roll = roll }

// SetDeck swaps the question source, e.g. after a new deck has been applied.
func (e *Engine) SetDeck(d Deck, showAnswer bool) {
	e.deck = d
	e.showAnswer = showAnswer
}

func (e *Engine) Phase() Phase { return e.phase }

func (e *Engine) Tiles() []domain.Tile { return e.tiles }

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Phase:    e.phase,
		State:    e.state,
		Pending:  e.pending,
		Question: e.view,
		Tiles:    len(e.tiles),
	}
}

// Start resets positions, scores and skip credits and arms the countdown.
func (e *Engine) Start(seconds int) Outcome {
	e.state = domain.TurnState{RemainingSeconds: seconds}
	e.pending = 0
	e.question, e.view = nil, nil
	e.phase = PhaseAwaitingRoll
	var out Outcome
	out.add(Event{Kind: EventStarted, Player: 0, Seconds: seconds})
	return out
}

// Reset returns the engine to idle with a fresh state.
func (e *Engine) Reset(seconds int) Outcome {
	e.state = domain.TurnState{RemainingSeconds: seconds}
	e.pending = 0
	e.question, e.view = nil, nil
	e.phase = PhaseIdle
	var out Outcome
	out.add(Event{Kind: EventReset, Seconds: seconds})
	return out
}

func (e *Engine) guard(want ...Phase) error {
	switch e.phase {
	case PhaseIdle:
		return ErrGameNotStarted
	case PhaseGameOver:
		return ErrGameOver
	}
	for _, p := range want {
		if e.phase == p {
			return nil
		}
	}
	return ErrNotYourPhase
}

// Roll either spends a pending skip credit and passes the turn, or rolls the die and
// enters the move animation.
func (e *Engine) Roll() (Outcome, error) {
	if err := e.guard(PhaseAwaitingRoll); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	p := e.state.ActivePlayer
	if e.state.SkipCredits[p] > 0 {
		e.state.SkipCredits[p]--
		out.add(Event{Kind: EventSkipUsed, Player: p})
		e.advance(&out)
		return out, nil
	}
	n := e.roll()
	e.pending = n
	e.phase = PhaseAnimatingMove
	out.add(Event{Kind: EventRolled, Player: p, Steps: n})
	out.Followup = FollowupFinishMove
	return out, nil
}

// FinishMove applies the rolled steps once the animation has played.
func (e *Engine) FinishMove() (Outcome, error) {
	if err := e.guard(PhaseAnimatingMove); err != nil {
		return Outcome{}, err
	}
	steps := e.pending
	e.pending = 0
	return e.move(e.state.ActivePlayer, steps), nil
}

// Move moves the active player directly and dispatches the landing tile. It is accepted
// whenever no question or notice is open.
func (e *Engine) Move(player, steps int) (Outcome, error) {
	if player != 0 && player != 1 {
		return Outcome{}, ErrInvalidSelection
	}
	if err := e.guard(PhaseAwaitingRoll, PhaseAnimatingMove); err != nil {
		return Outcome{}, err
	}
	// a question opened by the move is graded for the active player
	if player != e.state.ActivePlayer {
		return Outcome{}, ErrNotYourPhase
	}
	e.pending = 0
	return e.move(player, steps), nil
}

func (e *Engine) move(player, steps int) Outcome {
	var out Outcome
	for hop := 0; ; hop++ {
		if hop >= maxHops {
			out.add(Event{Kind: EventChainCut, Player: player})
			e.advance(&out)
			return out
		}
		from := e.state.Positions[player]
		to := Wrap(from, steps, len(e.tiles))
		e.state.Positions[player] = to
		tile := e.tiles[to]
		out.add(Event{Kind: EventMoved, Player: player, From: from, To: to, Steps: steps, Tile: &tile})

		switch {
		case tile.Kind == domain.TileActionKind && tile.Action == domain.ActionSkip:
			e.state.SkipCredits[player]++
			e.phase = PhaseTurnResolved
			out.add(Event{Kind: EventSkipTile, Player: player})
			out.Followup = FollowupAcknowledge
			return out
		case tile.Kind == domain.TileActionKind && tile.Action == domain.ActionMove && tile.Delta != 0:
			steps = tile.Delta
			continue
		case tile.Kind == domain.TileQuiz:
			e.ask(&out, player, tile.WantedKind())
			return out
		default:
			e.advance(&out)
			return out
		}
	}
}

func (e *Engine) ask(out *Outcome, player int, want domain.Kind) {
	if e.deck == nil {
		out.add(Event{Kind: EventDepleted, Player: player})
		e.advance(out)
		return
	}
	q, ok := e.deck.Draw(want)
	if !ok {
		out.add(Event{Kind: EventDepleted, Player: player})
		e.advance(out)
		return
	}
	e.question = &q
	e.view = &QuestionView{
		Kind:    q.Kind,
		Text:    q.Text,
		Choices: append([]string(nil), q.Choices...),
		Used:    e.deck.Used(),
		Total:   e.deck.Total(),
	}
	e.phase = PhaseAwaitingAnswer
	out.add(Event{Kind: EventQuestion, Player: player, Question: e.view})
}

// SubmitAnswer grades the open question for the active player. A negative selection
// means nothing was chosen and leaves the state untouched.
func (e *Engine) SubmitAnswer(selected int) (Outcome, error) {
	if err := e.guard(PhaseAwaitingAnswer); err != nil {
		return Outcome{}, err
	}
	if selected < 0 {
		return Outcome{}, ErrNoSelection
	}
	q := e.question
	if selected >= len(q.Choices) {
		return Outcome{}, ErrInvalidSelection
	}

	p := e.state.ActivePlayer
	res := AnswerResult{Selected: selected, Correct: selected == q.AnswerIndex}
	if res.Correct {
		e.state.Scores[p]++
	}
	if e.showAnswer {
		res.Answer = q.Answer()
		res.Explain = q.Explain
	}
	e.question, e.view = nil, nil
	e.phase = PhaseTurnResolved

	var out Outcome
	out.add(Event{Kind: EventAnswered, Player: p, Result: &res, Scores: e.state.Scores})
	return out, nil
}

// Acknowledge closes a resolved turn and hands the die to the other player.
func (e *Engine) Acknowledge() (Outcome, error) {
	if err := e.guard(PhaseTurnResolved); err != nil {
		return Outcome{}, err
	}
	var out Outcome
	e.advance(&out)
	return out, nil
}

// Tick counts the clock down by one second; at zero the game freezes.
func (e *Engine) Tick() Outcome {
	var out Outcome
	if e.phase == PhaseIdle || e.phase == PhaseGameOver {
		return out
	}
	if e.state.RemainingSeconds > 0 {
		e.state.RemainingSeconds--
	}
	out.add(Event{Kind: EventTick, Seconds: e.state.RemainingSeconds})
	if e.state.RemainingSeconds == 0 {
		e.phase = PhaseGameOver
		e.pending = 0
		e.question, e.view = nil, nil
		out.add(Event{Kind: EventGameOver, Player: Winner(e.state.Scores), Scores: e.state.Scores})
	}
	return out
}

func (e *Engine) advance(out *Outcome) {
	e.state.ActivePlayer = 1 - e.state.ActivePlayer
	e.phase = PhaseAwaitingRoll
	out.add(Event{Kind: EventTurn, Player: e.state.ActivePlayer, Scores: e.state.Scores})
}

// Wrap moves pos by steps around a closed path of n tiles; the result is always in [0, n).
func Wrap(pos, steps, n int) int {
	if n <= 0 {
		return 0
	}
	r := (pos + steps) % n
	if r < 0 {
		r += n
	}
	return r
}

// Winner returns the leading player, or -1 on a tie.
func Winner(scores [2]int) int {
	switch {
	case scores[0] > scores[1]:
		return 0
	case scores[1] > scores[0]:
		return 1
	default:
		return -1
	}
}
