package batch

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ineyio/summarist"
)

// Report is the result of one batch run. Outcomes holds exactly one entry
// per processed id; Order lists those ids in processing order.
type Report struct {
	RunID      string                       `yaml:"run_id"`
	StartedAt  time.Time                    `yaml:"started_at"`
	FinishedAt time.Time                    `yaml:"finished_at"`
	Order      []string                     `yaml:"order"`
	Titles     map[string]string            `yaml:"titles"`
	Outcomes   map[string]summarist.Outcome `yaml:"outcomes"`
	Cancelled  bool                         `yaml:"cancelled,omitempty"`
	Fatal      string                       `yaml:"fatal,omitempty"`

	// FatalError is the error that stopped the run, if any.
	FatalError error `yaml:"-"`
}

// Summary counts a report's outcomes.
type Summary struct {
	Succeeded int
	Failed    int
	Total     int
}

// AllFailed reports whether every processed item failed.
func (s Summary) AllFailed() bool { return s.Total > 0 && s.Succeeded == 0 }

func newReport(now time.Time) Report {
	return Report{
		RunID:     uuid.NewString(),
		StartedAt: now,
		Titles:    make(map[string]string),
		Outcomes:  make(map[string]summarist.Outcome),
	}
}

// record keeps the first outcome for an id.
func (r *Report) record(id, title string, out summarist.Outcome) {
	if _, seen := r.Outcomes[id]; seen {
		return
	}
	r.Order = append(r.Order, id)
	r.Titles[id] = title
	r.Outcomes[id] = out
}

func (r *Report) fail(err error) {
	r.FatalError = err
	r.Fatal = err.Error()
}

// Err returns the fatal error, restoring it from Fatal for reports that
// were loaded from disk.
func (r Report) Err() error {
	if r.FatalError != nil {
		return r.FatalError
	}
	if r.Fatal != "" {
		return errors.New(r.Fatal)
	}
	return nil
}

// Summary counts successes and failures.
func (r Report) Summary() Summary {
	var s Summary
	for _, out := range r.Outcomes {
		if out.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	s.Total = len(r.Outcomes)
	return s
}

// Successes returns the ids of successful items in processing order.
func (r Report) Successes() []string {
	return r.filter(true)
}

// Failures returns the ids of failed items in processing order.
func (r Report) Failures() []string {
	return r.filter(false)
}

func (r Report) filter(ok bool) []string {
	var ids []string
	for _, id := range r.Order {
		if r.Outcomes[id].OK() == ok {
			ids = append(ids, id)
		}
	}
	return ids
}
