package store

import (
	"sync"
	"time"
)

// NoReferrer is the sentinel recorded when a redirect arrives without a
// Referer header.
const NoReferrer = "direct"

// ClickRecord is one redirect traversal. Records are immutable and ordered
// by insertion.
type ClickRecord struct {
	Timestamp time.Time
	Referrer  string
	Location  string
}

// Report is a point-in-time snapshot of one code's click history.
type Report struct {
	CreatedAt   time.Time
	TotalClicks int
	Records     []ClickRecord
}

type history struct {
	createdAt time.Time
	records   []ClickRecord
}

// Ledger owns per-code append-only click histories. Its lifecycle is looser
// than the registry's: a history survives its mapping's expiry so stats stay
// queryable, and is only dropped when the code is reassigned.
type Ledger struct {
	mu        sync.Mutex
	histories map[string]*history
	now       func() time.Time
}

// NewLedger builds an empty ledger. A nil now falls back to time.Now.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		histories: make(map[string]*history),
		now:       now,
	}
}

// Record appends a click at the current instant, creating the history on
// first use. An empty referrer becomes NoReferrer. Record cannot fail; click
// accounting must never cost a visitor their redirect.
func (l *Ledger) Record(code, referrer, location string) {
	if referrer == "" {
		referrer = NoReferrer
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	h, ok := l.histories[code]
	if !ok {
		h = &history{createdAt: now}
		l.histories[code] = h
	}
	h.records = append(h.records, ClickRecord{
		Timestamp: now,
		Referrer:  referrer,
		Location:  location,
	})
}

// Snapshot returns a copy of the history for code. With no history yet the
// report carries zero clicks and CreatedAt falls back to "now"; callers must
// not mistake that for the registry's true creation time.
func (l *Ledger) Snapshot(code string) Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.histories[code]
	if !ok {
		return Report{CreatedAt: l.now()}
	}
	records := make([]ClickRecord, len(h.records))
	copy(records, h.records)
	return Report{
		CreatedAt:   h.createdAt,
		TotalClicks: len(records),
		Records:     records,
	}
}

// Drop discards the history for code. Called when an expired code is
// reassigned so the new mapping does not inherit clicks from a prior
// generation.
func (l *Ledger) Drop(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.histories, code)
}
