package trading

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Status classifies the outcome of one per-symbol or per-signal operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records what one operation did and why.
type Outcome struct {
	Activity string        `json:"activity"`
	Symbol   string        `json:"symbol,omitempty"`
	SignalID int64         `json:"signal_id,omitempty"`
	Action   string        `json:"action"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Order    *OrderRequest `json:"order,omitempty"`
	Err      error         `json:"-"`
}

// Is reports whether the outcome's error matches target.
func (o Outcome) Is(target error) bool {
	return o.Err != nil && errors.Is(o.Err, target)
}

func Success(activity, symbol, action string, order *OrderRequest) Outcome {
	return Outcome{Activity: activity, Symbol: symbol, Action: action, Status: StatusSuccess, Order: order}
}

func Skipped(activity, symbol, action, reason string, err error) Outcome {
	return Outcome{Activity: activity, Symbol: symbol, Action: action, Status: StatusSkipped, Reason: reason, Err: err}
}

func Failed(activity, symbol, action string, err error) Outcome {
	o := Outcome{Activity: activity, Symbol: symbol, Action: action, Status: StatusFailed, Err: err}
	if err != nil {
		o.Reason = err.Error()
	}
	return o
}

// Report aggregates the outcomes of one activity iteration.
type Report struct {
	Activity   string    `json:"activity"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Outcomes   []Outcome `json:"outcomes"`
	// Err is set when the iteration was abandoned.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func NewReport(activity string, now time.Time) *Report {
	return &Report{Activity: activity, StartedAt: now}
}

func (r *Report) Add(o Outcome) {
	if r == nil {
		return
	}
	if o.Activity == "" {
		o.Activity = r.Activity
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Abandon marks the iteration as given up.
func (r *Report) Abandon(err error) {
	if r == nil || err == nil {
		return
	}
	r.Err = err
	r.Error = err.Error()
}

func (r *Report) Finish(now time.Time) *Report {
	if r != nil {
		r.FinishedAt = now
	}
	return r
}

// Counts tallies outcomes by status.
func (r *Report) Counts() map[Status]int {
	out := map[Status]int{}
	if r == nil {
		return out
	}
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}

// Orders returns the orders that were accepted by the brokerage.
func (r *Report) Orders() []OrderRequest {
	if r == nil {
		return nil
	}
	var out []OrderRequest
	for _, o := range r.Outcomes {
		if o.Status == StatusSuccess && o.Order != nil {
			out = append(out, *o.Order)
		}
	}
	return out
}

// Board keeps the latest report of each activity for the status endpoint.
type Board struct {
	mu      sync.RWMutex
	reports map[string]Report
}

func NewBoard() *Board {
	return &Board{reports: make(map[string]Report)}
}

func (b *Board) Publish(r *Report) {
	if b == nil || r == nil || r.Activity == "" {
		return
	}
	dup := *r
	dup.Outcomes = append([]Outcome(nil), r.Outcomes...)
	b.mu.Lock()
	b.reports[r.Activity] = dup
	b.mu.Unlock()
}

func (b *Board) Latest(activity string) (Report, bool) {
	if b == nil {
		return Report{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.reports[activity]
	return r, ok
}

// Snapshot returns copies of all reports ordered by activity name.
func (b *Board) Snapshot() []Report {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Report, 0, len(b.reports))
	for _, r := range b.reports {
		dup := r
		dup.Outcomes = append([]Outcome(nil), r.Outcomes...)
		out = append(out, dup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Activity < out[j].Activity })
	return out
}
