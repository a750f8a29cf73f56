package deck

import (
	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/normalize"
	"github.com/rcliao/memos-daily-review/internal/seeded"
)

// sparkMinDays excludes memos shown too recently from spark pairs.
const sparkMinDays = 3

// SparkPair is the earliest and latest memo sharing a tag.
type SparkPair struct {
	Tag      string
	Earliest model.Memo
	Latest   model.Memo
}

type tagSpan struct {
	earliest, latest model.Memo
	members          int
}

// FindSparkPair picks one tag shared by at least two eligible memos and
// returns its earliest and latest member. The tag is chosen by a hash of
// seedPrefix, so the pick is stable for a generation run.
func FindSparkPair(pool []model.Memo, h model.History, today, seedPrefix string) (SparkPair, bool) {
	spans := make(map[string]*tagSpan)
	for _, m := range pool {
		if !normalize.Eligible(m) || len(m.Tags) == 0 {
			continue
		}
		if Score(m, h, today, seedPrefix).DaysSinceShown < sparkMinDays {
			continue
		}
		seen := make(map[string]bool, len(m.Tags))
		for _, tag := range m.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true

			s, ok := spans[tag]
			if !ok {
				spans[tag] = &tagSpan{earliest: m, latest: m, members: 1}
				continue
			}
			s.members++
			if before(m, s.earliest) {
				s.earliest = m
			}
			if before(s.latest, m) {
				s.latest = m
			}
		}
	}

	var (
		best     SparkPair
		bestHash uint32
		found    bool
	)
	for tag, s := range spans {
		if s.members < 2 {
			continue
		}
		hash := seeded.HashString(seedPrefix + "-tag-" + tag)
		if !found || hash < bestHash || (hash == bestHash && tag < best.Tag) {
			best = SparkPair{Tag: tag, Earliest: s.earliest, Latest: s.latest}
			bestHash = hash
			found = true
		}
	}
	return best, found
}

// before orders memos by creation time, then id.
func before(a, b model.Memo) bool {
	if !a.CreateTime.Equal(b.CreateTime) {
		return a.CreateTime.Before(b.CreateTime)
	}
	return a.ID < b.ID
}
