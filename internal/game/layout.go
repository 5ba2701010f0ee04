package game

import "boardquiz-service/internal/domain"

// Default board geometry: a 10x6 grid whose outer ring is the path.
const (
	DefaultCols = 10
	DefaultRows = 6
)

type quizLabel struct {
	label    string
	quizType string
}

var quizLabels = []quizLabel{
	{"Core", "core"},
	{"Definition", "def"},
	{"OX", "ox"},
	{"Example", "example"},
	{"Compare", "compare"},
	{"Reason", "reason"},
}

// PerimeterLength is the number of tiles on the outer ring of a cols x rows grid.
func PerimeterLength(cols, rows int) int {
	if cols <= 0 || rows <= 0 {
		return 0
	}
	if rows == 1 {
		return cols
	}
	if cols == 1 {
		return rows
	}
	return 2*cols + 2*(rows-2)
}

// DefaultLayout places the start tile, two skip tiles and a +2/-2 pair around the path;
// every remaining tile is a numbered quiz tile cycling through the quiz labels.
func DefaultLayout(total int) []domain.Tile {
	if total <= 0 {
		return nil
	}
	tiles := make([]domain.Tile, total)
	set := make([]bool, total)
	place := func(i int, t domain.Tile) {
		if set[i] {
			return
		}
		tiles[i] = t
		set[i] = true
	}

	place(0, domain.Tile{Kind: domain.TileStart, Label: "Start"})
	place(total*35/100, domain.Tile{Kind: domain.TileActionKind, Label: "Skip a turn", Action: domain.ActionSkip, Delta: 1})
	place(total*55/100, domain.Tile{Kind: domain.TileActionKind, Label: "Forward 2", Action: domain.ActionMove, Delta: 2})
	place(total*72/100, domain.Tile{Kind: domain.TileActionKind, Label: "Back 2", Action: domain.ActionMove, Delta: -2})
	place(total*88/100, domain.Tile{Kind: domain.TileActionKind, Label: "Skip a turn", Action: domain.ActionSkip, Delta: 1})

	qi := 0
	for i := range tiles {
		if set[i] {
			continue
		}
		ql := quizLabels[qi%len(quizLabels)]
		qi++
		tiles[i] = domain.Tile{Kind: domain.TileQuiz, Label: ql.label, QuizType: ql.quizType, Number: qi}
	}
	return tiles
}
