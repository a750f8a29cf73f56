package deck

import (
	"fmt"
	"math"
	"sort"

	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/seeded"
)

// NeverShown is the DaysSinceShown of a memo without a known last day.
const NeverShown = math.MaxInt

// Relaxation ladder of minimum days since a memo was last shown.
var ladder = []int{3, 2, 1, 0}

// Priority is a memo's review priority.
type Priority struct {
	NeverShown     bool
	DaysSinceShown int
	ShownCount     int
	TieBreak       uint32
}

// Scored pairs a memo with its priority.
type Scored struct {
	Memo model.Memo
	Priority
}

// SeedPrefix identifies one generation run. Tie-breaks derive from it, so
// a new day or batch reorders equal-priority memos.
func SeedPrefix(day string, tr model.TimeRange, count, batch int) string {
	return fmt.Sprintf("%s-%s-%d-%d", day, tr, count, batch)
}

// Score computes m's priority on today.
func Score(m model.Memo, h model.History, today, seedPrefix string) Priority {
	p := Priority{
		DaysSinceShown: NeverShown,
		TieBreak:       seeded.HashString(seedPrefix + "-" + m.ID),
	}
	entry, ok := h[m.ID]
	if !ok {
		p.NeverShown = true
		return p
	}
	p.ShownCount = entry.ShownCount
	if entry.LastShownDay != "" {
		if days, err := model.DaysBetween(entry.LastShownDay, today); err == nil {
			p.DaysSinceShown = max(days, 0)
		}
	}
	return p
}

// Rank sorts scored memos by review priority: never shown first, then
// longest since shown, then least shown, then tie-break and id.
func Rank(scored []Scored) {
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.NeverShown != b.NeverShown {
			return a.NeverShown
		}
		if a.DaysSinceShown != b.DaysSinceShown {
			return a.DaysSinceShown > b.DaysSinceShown
		}
		if a.ShownCount != b.ShownCount {
			return a.ShownCount < b.ShownCount
		}
		if a.TieBreak != b.TieBreak {
			return a.TieBreak < b.TieBreak
		}
		return a.Memo.ID < b.Memo.ID
	})
}

func rankMemos(memos []model.Memo, h model.History, today, seedPrefix string) []Scored {
	scored := make([]Scored, len(memos))
	for i, m := range memos {
		scored[i] = Scored{Memo: m, Priority: Score(m, h, today, seedPrefix)}
	}
	Rank(scored)
	return scored
}

// PickFromBucket returns up to target memos from bucket in priority order.
// Memos shown within the last three days are taken only when the bucket
// cannot fill target otherwise, loosening the window one day at a time.
func PickFromBucket(bucket []model.Memo, target int, h model.History, today, seedPrefix string) []model.Memo {
	if target <= 0 || len(bucket) == 0 {
		return nil
	}
	ranked := rankMemos(bucket, h, today, seedPrefix)

	picked := make([]model.Memo, 0, min(target, len(ranked)))
	taken := make(map[string]bool, len(ranked))
	for _, threshold := range ladder {
		for _, s := range ranked {
			if len(picked) == target {
				return picked
			}
			if taken[s.Memo.ID] || s.DaysSinceShown < threshold {
				continue
			}
			taken[s.Memo.ID] = true
			picked = append(picked, s.Memo)
		}
		if len(picked) == target {
			break
		}
	}
	return picked
}
