// Package review holds the per-item apply/discard decisions a reviewer makes
// over a finished batch and commits the applied summaries to the library.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ineyio/summarist/batch"
	"github.com/ineyio/summarist/library"
)

// Decision is the reviewer's choice for one item.
type Decision int

const (
	Apply Decision = iota
	Discard
)

func (d Decision) String() string {
	switch d {
	case Apply:
		return "apply"
	case Discard:
		return "discard"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Errors.
var (
	ErrUnknownItem = errors.New("review: item not in ledger")
	ErrCommitted   = errors.New("review: ledger already committed")
)

// Item is one reviewable summary.
type Item struct {
	ID       string
	Title    string
	Content  string
	Provider string
	Decision Decision
}

// CommitResult tallies a commit. Errors maps item id to the write failure;
// failed items count as neither applied nor discarded.
type CommitResult struct {
	Applied   int
	Discarded int
	Errors    map[string]error
}

// Ledger holds decisions for the successful items of one report. Failed
// items never enter it.
type Ledger struct {
	mu        sync.Mutex
	order     []string
	items     map[string]*Item
	committed bool
}

// NewLedger builds a ledger from report. Every item starts as Apply.
func NewLedger(report batch.Report) *Ledger {
	l := &Ledger{items: make(map[string]*Item)}
	for _, id := range report.Successes() {
		out := report.Outcomes[id]
		l.order = append(l.order, id)
		l.items[id] = &Item{
			ID:       id,
			Title:    report.Titles[id],
			Content:  out.Content,
			Provider: out.Provider,
			Decision: Apply,
		}
	}
	return l
}

// Set records a decision.
func (l *Ledger) Set(id string, d Decision) error {
	return l.update(id, func(it *Item) { it.Decision = d })
}

// Toggle flips an item between Apply and Discard.
func (l *Ledger) Toggle(id string) error {
	return l.update(id, func(it *Item) {
		if it.Decision == Apply {
			it.Decision = Discard
		} else {
			it.Decision = Apply
		}
	})
}

// Edit replaces the content that will be written on commit.
func (l *Ledger) Edit(id, content string) error {
	return l.update(id, func(it *Item) { it.Content = content })
}

// Decision returns the current decision for id.
func (l *Ledger) Decision(id string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	it, ok := l.items[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return it.Decision, nil
}

// Content returns the content that will be written for id.
func (l *Ledger) Content(id string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	it, ok := l.items[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return it.Content, nil
}

// Items returns a copy of every item in report order.
func (l *Ledger) Items() []Item {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Item, len(l.order))
	for i, id := range l.order {
		out[i] = *l.items[id]
	}
	return out
}

// Counts returns how many items are marked Apply and Discard.
func (l *Ledger) Counts() (apply, discard int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, it := range l.items {
		if it.Decision == Apply {
			apply++
		} else {
			discard++
		}
	}
	return apply, discard
}

// Committed reports whether Commit has run.
func (l *Ledger) Committed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.committed
}

// Commit writes every Apply item to sink in report order. A failed write is
// recorded and the pass continues. The ledger is frozen afterwards.
func (l *Ledger) Commit(ctx context.Context, sink library.Sink) (CommitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.committed {
		return CommitResult{}, ErrCommitted
	}
	l.committed = true

	res := CommitResult{Errors: make(map[string]error)}
	for _, id := range l.order {
		it := l.items[id]
		if it.Decision == Discard {
			res.Discarded++
			continue
		}
		if err := sink.SetSummary(ctx, id, it.Content); err != nil {
			res.Errors[id] = err
			continue
		}
		res.Applied++
	}
	return res, nil
}

func (l *Ledger) update(id string, fn func(*Item)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.committed {
		return ErrCommitted
	}
	it, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	fn(it)
	return nil
}
