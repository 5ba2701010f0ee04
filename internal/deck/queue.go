package deck

import "boardquiz-service/internal/domain"

// Queue hands out deck items one kind at a time. Each kind keeps the deck's original
// relative order and its own cursor; an item is never returned twice between loads.
type Queue struct {
	items  map[domain.Kind][]domain.Question
	cursor map[domain.Kind]int
	total  int
	loaded bool
}

func NewQueue() *Queue {
	return &Queue{
		items:  make(map[domain.Kind][]domain.Question),
		cursor: make(map[domain.Kind]int),
	}
}

// Load partitions the deck and rewinds both cursors.
func (q *Queue) Load(d domain.Deck) {
	q.partition(d)
	q.cursor[domain.KindMultipleChoice] = 0
	q.cursor[domain.KindTrueFalse] = 0
}

// Reload partitions the deck but keeps the current cursors, clamped to the new lengths.
func (q *Queue) Reload(d domain.Deck) {
	q.partition(d)
	for _, k := range []domain.Kind{domain.KindMultipleChoice, domain.KindTrueFalse} {
		if q.cursor[k] > len(q.items[k]) {
			q.cursor[k] = len(q.items[k])
		}
	}
}

func (q *Queue) partition(d domain.Deck) {
	mc := make([]domain.Question, 0, len(d.Items))
	tf := make([]domain.Question, 0)
	for _, item := range d.Items {
		if item.Kind == domain.KindTrueFalse {
			tf = append(tf, item)
		} else {
			mc = append(mc, item)
		}
	}
	q.items[domain.KindMultipleChoice] = mc
	q.items[domain.KindTrueFalse] = tf
	q.total = len(d.Items)
	q.loaded = true
}

// Draw returns the next unused item of the wanted kind, falling back to the other kind
// when that queue is exhausted. The boolean is false once both queues are depleted.
func (q *Queue) Draw(want domain.Kind) (domain.Question, bool) {
	if item, ok := q.next(want); ok {
		return item, true
	}
	return q.next(want.Other())
}

func (q *Queue) next(k domain.Kind) (domain.Question, bool) {
	pos := q.cursor[k]
	list := q.items[k]
	if pos >= len(list) {
		return domain.Question{}, false
	}
	q.cursor[k] = pos + 1
	return list[pos], true
}

// Loaded reports whether any deck has been loaded.
func (q *Queue) Loaded() bool { return q.loaded && q.total > 0 }

// Used is the number of items drawn since the last Load.
func (q *Queue) Used() int {
	return q.cursor[domain.KindMultipleChoice] + q.cursor[domain.KindTrueFalse]
}

// Total is the number of items in the loaded deck.
func (q *Queue) Total() int { return q.total }

// Remaining is the number of unused items of one kind.
func (q *Queue) Remaining(k domain.Kind) int {
	return len(q.items[k]) - q.cursor[k]
}

// Cursors exposes the per-kind positions, mostly for snapshots.
func (q *Queue) Cursors() map[domain.Kind]int {
	return map[domain.Kind]int{
		domain.KindMultipleChoice: q.cursor[domain.KindMultipleChoice],
		domain.KindTrueFalse:      q.cursor[domain.KindTrueFalse],
	}
}
