package model

import (
	"fmt"
	"time"
)

// DayLayout is the calendar-day format used for deck days and history.
const DayLayout = "2006-01-02"

// Day formats t as a calendar day in t's location.
func Day(t time.Time) string {
	return t.Format(DayLayout)
}

// DaysBetween returns the number of calendar days from a to b. Both must be
// DayLayout strings.
func DaysBetween(a, b string) (int, error) {
	ta, err := time.Parse(DayLayout, a)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", a, err)
	}
	tb, err := time.Parse(DayLayout, b)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", b, err)
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// Deck is a sealed, ordered daily selection.
type Deck struct {
	Key        string    `json:"key"`
	Day        string    `json:"day"`
	TimeRange  TimeRange `json:"time_range"`
	Count      int       `json:"count"`
	Batch      int       `json:"batch"`
	Memos      []Memo    `json:"memos"`
	CreatedAt  time.Time `json:"created_at"`
	Generation string    `json:"generation,omitempty"`
}

// DeckKey identifies a deck by its request tuple.
func DeckKey(day string, tr TimeRange, count, batch int) string {
	return fmt.Sprintf("%s|%s|%d|%d", day, tr, count, batch)
}

// IDs returns the memo ids in deck order.
func (d *Deck) IDs() []string {
	ids := make([]string, len(d.Memos))
	for i, m := range d.Memos {
		ids[i] = m.ID
	}
	return ids
}

// DeckState is a step of the deck retrieval state machine.
type DeckState string

const (
	StateMiss    DeckState = "miss"
	StateLoading DeckState = "loading"
	StateReady   DeckState = "ready"
	StateEmpty   DeckState = "empty"
	StateError   DeckState = "error"
)

// HistoryEntry records how often and when a memo was last shown.
// LastShownDay is empty when the day is unknown.
type HistoryEntry struct {
	LastShownDay string `json:"last_shown_day,omitempty"`
	ShownCount   int    `json:"shown_count"`
}

// History maps memo ids to their review record.
type History map[string]HistoryEntry

// Clone returns an independent copy.
func (h History) Clone() History {
	out := make(History, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Record marks id as shown on day. ShownCount always grows; LastShownDay
// only moves forward in calendar order.
func (h History) Record(id, day string) {
	e := h[id]
	e.ShownCount++
	if e.LastShownDay == "" || day > e.LastShownDay {
		e.LastShownDay = day
	}
	h[id] = e
}
