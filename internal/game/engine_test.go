package game

import (
	"errors"
	"testing"

	"boardquiz-service/internal/deck"
	"boardquiz-service/internal/domain"
)

func plainLayout(n int) []domain.Tile {
	tiles := make([]domain.Tile, n)
	for i := range tiles {
		tiles[i] = domain.Tile{Kind: domain.TileStart, Label: "plain"}
	}
	return tiles
}

func loadedQueue(items ...domain.Question) *deck.Queue {
	q := deck.NewQueue()
	q.Load(domain.Deck{Topic: "t", Items: items})
	return q
}

func mcq(text string, answer int) domain.Question {
	return domain.Question{Kind: domain.KindMultipleChoice, Text: text, Choices: []string{"a", "b", "c", "d"}, AnswerIndex: answer, Explain: "because"}
}

func newTestEngine(t *testing.T, tiles []domain.Tile, d Deck) *Engine {
	t.Helper()
	e, err := NewEngine(tiles, d)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestWrap(t *testing.T) {
	cases := []struct {
		pos, steps, n, want int
	}{
		{0, -2, 28, 26},
		{27, 6, 28, 5},
		{3, 4, 28, 7},
		{1, -30, 28, 27},
		{0, 56, 28, 0},
	}
	for _, tc := range cases {
		if got := Wrap(tc.pos, tc.steps, tc.n); got != tc.want {
			t.Fatalf("Wrap(%d,%d,%d) = %d, want %d", tc.pos, tc.steps, tc.n, got, tc.want)
		}
	}
}

func TestMoveWrapsAroundBothDirections(t *testing.T) {
	e := newTestEngine(t, plainLayout(8), nil)
	e.Start(60)

	if _, err := e.Move(0, -2); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := e.Snapshot().State.Positions[0]; got != 6 {
		t.Fatalf("expected position 6 after -2 from 0, got %d", got)
	}

	if _, err := e.Move(1, 7); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := e.Move(0, 3); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := e.Snapshot().State.Positions[0]; got != 1 {
		t.Fatalf("expected position 1 after +3 from 6, got %d", got)
	}
	if _, err := e.Move(1, 6); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := e.Snapshot().State.Positions[1]; got != 5 {
		t.Fatalf("expected position 5 after +6 from the last tile, got %d", got)
	}
}

func TestMoveRejectsWaitingPlayer(t *testing.T) {
	tiles := plainLayout(4)
	tiles[1] = domain.Tile{Kind: domain.TileQuiz, QuizType: "core"}
	e := newTestEngine(t, tiles, nil)
	e.SetDeck(loadedQueue(mcq("q1", 0)), true)
	e.Start(60)
	before := e.Snapshot()

	if _, err := e.Move(1, 1); !errors.Is(err, ErrNotYourPhase) {
		t.Fatalf("expected ErrNotYourPhase, got %v", err)
	}
	after := e.Snapshot()
	if after.State.Positions != before.State.Positions || after.Phase != PhaseAwaitingRoll {
		t.Fatalf("rejected move changed the state: %+v", after)
	}

	if _, err := e.Move(0, 1); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := e.SubmitAnswer(0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := e.Snapshot().State.Scores; got != [2]int{1, 0} {
		t.Fatalf("scores = %v, want the mover credited", got)
	}
}

func TestRollBeforeStartIsRejected(t *testing.T) {
	e := newTestEngine(t, DefaultLayout(28), nil)
	before := e.Snapshot()
	if _, err := e.Roll(); !errors.Is(err, ErrGameNotStarted) {
		t.Fatalf("expected ErrGameNotStarted, got %v", err)
	}
	if e.Snapshot() != before {
		t.Fatalf("state changed after rejected roll")
	}
}

func TestQuizTileScoresCorrectAnswer(t *testing.T) {
	tiles := plainLayout(6)
	tiles[3] = domain.Tile{Kind: domain.TileQuiz, Label: "Core", QuizType: "core", Number: 1}
	e := newTestEngine(t, tiles, nil)
	e.SetDeck(loadedQueue(mcq("q1", 2)), true)
	e.SetDice(func() int { return 3 })
	e.Start(60)

	out, err := e.Roll()
	if err != nil || out.Followup != FollowupFinishMove {
		t.Fatalf("roll: %v followup=%v", err, out.Followup)
	}
	if e.Phase() != PhaseAnimatingMove {
		t.Fatalf("expected animating-move, got %s", e.Phase())
	}
	out, err = e.FinishMove()
	if err != nil {
		t.Fatalf("finish move: %v", err)
	}
	last := out.Events[len(out.Events)-1]
	if last.Kind != EventQuestion || last.Question.Text != "q1" || last.Question.Used != 1 || last.Question.Total != 1 {
		t.Fatalf("expected question event, got %+v", last)
	}

	if _, err := e.SubmitAnswer(-1); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("expected ErrNoSelection, got %v", err)
	}
	if e.Phase() != PhaseAwaitingAnswer {
		t.Fatalf("rejected submit must not change phase, got %s", e.Phase())
	}
	if _, err := e.SubmitAnswer(4); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}

	out, err = e.SubmitAnswer(2)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	res := out.Events[0].Result
	if !res.Correct || res.Answer != "c" || res.Explain != "because" {
		t.Fatalf("unexpected result %+v", res)
	}
	if e.Snapshot().State.Scores != [2]int{1, 0} || e.Phase() != PhaseTurnResolved {
		t.Fatalf("unexpected state %+v", e.Snapshot())
	}

	if _, err := e.Acknowledge(); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if e.Snapshot().State.ActivePlayer != 1 || e.Phase() != PhaseAwaitingRoll {
		t.Fatalf("expected player 1 to roll, got %+v", e.Snapshot())
	}
}

func TestWrongAnswerHidesAnswerWhenNotRevealed(t *testing.T) {
	tiles := plainLayout(4)
	tiles[1] = domain.Tile{Kind: domain.TileQuiz, QuizType: "core"}
	e := newTestEngine(t, tiles, nil)
	e.SetDeck(loadedQueue(mcq("q1", 0)), false)
	e.Start(60)
	if _, err := e.Move(0, 1); err != nil {
		t.Fatalf("move: %v", err)
	}
	out, err := e.SubmitAnswer(3)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	res := out.Events[0].Result
	if res.Correct || res.Answer != "" || res.Explain != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	if e.Snapshot().State.Scores != [2]int{0, 0} {
		t.Fatalf("wrong answer must not score")
	}
}

func TestDepletedDeckAdvancesTurn(t *testing.T) {
	tiles := plainLayout(4)
	tiles[2] = domain.Tile{Kind: domain.TileQuiz, QuizType: "ox"}
	e := newTestEngine(t, tiles, loadedQueue())
	e.Start(60)

	out, err := e.Move(0, 2)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	kinds := []EventKind{}
	for _, ev := range out.Events {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 3 || kinds[1] != EventDepleted || kinds[2] != EventTurn {
		t.Fatalf("unexpected events %v", kinds)
	}
	if e.Snapshot().State.ActivePlayer != 1 || e.Snapshot().State.Scores != [2]int{} {
		t.Fatalf("unexpected state %+v", e.Snapshot().State)
	}
}

func TestSkipTileAndCreditConsumption(t *testing.T) {
	tiles := plainLayout(6)
	tiles[2] = domain.Tile{Kind: domain.TileActionKind, Action: domain.ActionSkip, Delta: 1}
	e := newTestEngine(t, tiles, nil)
	e.SetDice(func() int { return 2 })
	e.Start(60)

	if _, err := e.Roll(); err != nil {
		t.Fatalf("roll: %v", err)
	}
	out, err := e.FinishMove()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if out.Followup != FollowupAcknowledge || e.Phase() != PhaseTurnResolved {
		t.Fatalf("expected skip notice followup, got %v in %s", out.Followup, e.Phase())
	}
	if _, err := e.Roll(); !errors.Is(err, ErrNotYourPhase) {
		t.Fatalf("expected roll to be blocked during notice, got %v", err)
	}
	if _, err := e.Acknowledge(); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	// player 1 moves onto a plain tile
	e.SetDice(func() int { return 1 })
	if _, err := e.Roll(); err != nil {
		t.Fatalf("roll: %v", err)
	}
	if _, err := e.FinishMove(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	// player 0 spends the credit instead of rolling
	out, err = e.Roll()
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if out.Events[0].Kind != EventSkipUsed || e.Snapshot().State.SkipCredits[0] != 0 {
		t.Fatalf("expected credit to be consumed, got %+v", out.Events)
	}
	if e.Snapshot().State.ActivePlayer != 1 || e.Phase() != PhaseAwaitingRoll {
		t.Fatalf("expected player 1 to be up, got %+v", e.Snapshot())
	}
}

func TestMoveTilesChain(t *testing.T) {
	tiles := plainLayout(10)
	tiles[3] = domain.Tile{Kind: domain.TileActionKind, Action: domain.ActionMove, Delta: 2}
	tiles[5] = domain.Tile{Kind: domain.TileActionKind, Action: domain.ActionMove, Delta: -4}
	e := newTestEngine(t, tiles, nil)
	e.Start(60)

	out, err := e.Move(0, 3)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got := e.Snapshot().State.Positions[0]; got != 1 {
		t.Fatalf("expected chain 3 -> 5 -> 1, got %d", got)
	}
	moved := 0
	for _, ev := range out.Events {
		if ev.Kind == EventMoved {
			moved++
		}
	}
	if moved != 3 {
		t.Fatalf("expected 3 move events, got %d", moved)
	}
}

func TestMoveChainIsBounded(t *testing.T) {
	tiles := plainLayout(4)
	tiles[1] = domain.Tile{Kind: domain.TileActionKind, Action: domain.ActionMove, Delta: 2}
	tiles[3] = domain.Tile{Kind: domain.TileActionKind, Action: domain.ActionMove, Delta: -2}
	e := newTestEngine(t, tiles, nil)
	e.Start(60)

	out, err := e.Move(0, 1)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if out.Events[len(out.Events)-2].Kind != EventChainCut {
		t.Fatalf("expected the chain to be cut, got %+v", out.Events)
	}
	if e.Phase() != PhaseAwaitingRoll || e.Snapshot().State.ActivePlayer != 1 {
		t.Fatalf("expected turn to pass, got %+v", e.Snapshot())
	}
}

func TestCountdownFreezesGame(t *testing.T) {
	e := newTestEngine(t, plainLayout(4), nil)
	if out := e.Tick(); len(out.Events) != 0 {
		t.Fatalf("idle engine must ignore ticks")
	}
	e.Start(2)
	e.Tick()
	out := e.Tick()
	last := out.Events[len(out.Events)-1]
	if last.Kind != EventGameOver || last.Player != -1 {
		t.Fatalf("expected tied game over, got %+v", last)
	}
	if _, err := e.Roll(); !errors.Is(err, ErrGameOver) {
		t.Fatalf("expected ErrGameOver, got %v", err)
	}
	if out := e.Tick(); len(out.Events) != 0 {
		t.Fatalf("frozen engine must ignore ticks")
	}

	e.Reset(120)
	if e.Phase() != PhaseIdle || e.Snapshot().State.RemainingSeconds != 120 {
		t.Fatalf("unexpected reset state %+v", e.Snapshot())
	}
}

func TestDefaultLayout(t *testing.T) {
	n := PerimeterLength(DefaultCols, DefaultRows)
	if n != 28 {
		t.Fatalf("expected 28 tiles, got %d", n)
	}
	tiles := DefaultLayout(n)
	if tiles[0].Kind != domain.TileStart {
		t.Fatalf("tile 0 must be start")
	}
	want := map[int]domain.Tile{
		9:  {Action: domain.ActionSkip},
		15: {Action: domain.ActionMove, Delta: 2},
		20: {Action: domain.ActionMove, Delta: -2},
		24: {Action: domain.ActionSkip},
	}
	for i, w := range want {
		if tiles[i].Kind != domain.TileActionKind || tiles[i].Action != w.Action || (w.Action == domain.ActionMove && tiles[i].Delta != w.Delta) {
			t.Fatalf("tile %d: unexpected %+v", i, tiles[i])
		}
	}
	if tiles[1].QuizType != "core" || tiles[3].QuizType != "ox" || tiles[3].WantedKind() != domain.KindTrueFalse {
		t.Fatalf("unexpected quiz cycle %+v %+v", tiles[1], tiles[3])
	}
	if tiles[1].Number != 1 || tiles[27].Number != 23 {
		t.Fatalf("unexpected numbering %d %d", tiles[1].Number, tiles[27].Number)
	}
}

func TestWinner(t *testing.T) {
	if Winner([2]int{3, 1}) != 0 || Winner([2]int{1, 3}) != 1 || Winner([2]int{2, 2}) != -1 {
		t.Fatalf("unexpected winner")
	}
}
