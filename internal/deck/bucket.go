// Package deck selects the daily review deck from a memo pool.
package deck

import (
	"sort"

	"github.com/rcliao/memos-daily-review/internal/model"
)

// Bucket indexes.
const (
	Oldest = iota
	Middle
	Newest
)

// Partition sorts memos by creation time (ties by id) and splits them into
// oldest, middle and newest thirds. The first two thirds hold ceil(n/3)
// memos; the middle one gives up a memo when that is the only way to keep
// the newest bucket non-empty. Every bucket is non-empty when n >= 3.
func Partition(memos []model.Memo) [3][]model.Memo {
	sorted := append([]model.Memo(nil), memos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreateTime.Equal(b.CreateTime) {
			return a.CreateTime.Before(b.CreateTime)
		}
		return a.ID < b.ID
	})

	n := len(sorted)
	first := (n + 2) / 3
	second := min(first, n-first)
	if n >= 3 && n-first-second == 0 {
		second--
	}

	return [3][]model.Memo{
		sorted[:first],
		sorted[first : first+second],
		sorted[first+second:],
	}
}

// Allocate splits count into near-equal bucket targets. The remainder goes
// to the oldest bucket first, then the middle one.
func Allocate(count int) [3]int {
	if count <= 0 {
		return [3]int{}
	}
	base, rem := count/3, count%3
	targets := [3]int{base, base, base}
	for i := 0; i < rem; i++ {
		targets[i]++
	}
	return targets
}
