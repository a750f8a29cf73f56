package deck

import (
	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/normalize"
	"github.com/rcliao/memos-daily-review/internal/seeded"
)

// Builder assembles decks. The zero value is not usable; use NewBuilder.
type Builder struct {
	partition func([]model.Memo) [3][]model.Memo
	findSpark func(pool []model.Memo, h model.History, today, seedPrefix string) (SparkPair, bool)
}

// NewBuilder returns a Builder using Partition and FindSparkPair.
func NewBuilder() *Builder {
	return &Builder{partition: Partition, findSpark: FindSparkPair}
}

var defaultBuilder = NewBuilder()

// BuildDeck selects s.Count memos from pool for today and batch.
func BuildDeck(pool []model.Memo, s model.Settings, today string, batch int, h model.History) []model.Memo {
	return defaultBuilder.Build(pool, s, today, batch, h)
}

// Build selects s.Count memos from pool. It returns fewer only when the
// pool has fewer eligible memos.
func (b *Builder) Build(pool []model.Memo, s model.Settings, today string, batch int, h model.History) []model.Memo {
	var eligible []model.Memo
	for _, m := range pool {
		if normalize.Eligible(m) {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 || s.Count <= 0 {
		return nil
	}

	seed := SeedPrefix(today, s.TimeRange, s.Count, batch)
	buckets := b.partition(eligible)
	targets := Allocate(s.Count)

	var picks [3][]model.Memo
	for i := range buckets {
		picks[i] = PickFromBucket(buckets[i], targets[i], h, today, seed)
	}
	deck := interleave(picks)

	if pair, ok := b.findSpark(eligible, h, today, seed); ok {
		deck = insertSpark(deck, pair, s.Count)
	}
	deck = dedupe(deck)

	if len(deck) < s.Count {
		present := make(map[string]bool, len(deck))
		for _, m := range deck {
			present[m.ID] = true
		}
		for _, sc := range rankMemos(eligible, h, today, seed) {
			if len(deck) == s.Count {
				break
			}
			if !present[sc.Memo.ID] {
				present[sc.Memo.ID] = true
				deck = append(deck, sc.Memo)
			}
		}
	}

	if len(deck) > s.Count {
		deck = deck[:s.Count]
	}
	return deck
}

// interleave takes one memo from each bucket in turn, oldest first,
// skipping exhausted buckets.
func interleave(picks [3][]model.Memo) []model.Memo {
	var out []model.Memo
	for i := 0; ; i++ {
		added := false
		for _, p := range picks {
			if i < len(p) {
				out = append(out, p[i])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}

// insertSpark places the pair at positions 2 and 5 of a deck with at least
// eight memos, otherwise at position 1 and just before the last memo that
// survives truncation to count. A pair with a member already in the deck is
// not inserted.
func insertSpark(deck []model.Memo, pair SparkPair, count int) []model.Memo {
	for _, m := range deck {
		if m.ID == pair.Earliest.ID || m.ID == pair.Latest.ID {
			return deck
		}
	}

	first, second := 1, 0
	if len(deck) >= 8 {
		first, second = 2, 5
	}
	out := insertAt(deck, first, pair.Earliest)
	if len(deck) < 8 {
		second = max(min(len(out), count)-1, first+1)
	}
	return insertAt(out, second, pair.Latest)
}

func insertAt(memos []model.Memo, i int, m model.Memo) []model.Memo {
	i = min(max(i, 0), len(memos))
	out := make([]model.Memo, 0, len(memos)+1)
	out = append(out, memos[:i]...)
	out = append(out, m)
	return append(out, memos[i:]...)
}

func dedupe(memos []model.Memo) []model.Memo {
	seen := make(map[string]bool, len(memos))
	out := memos[:0:0]
	for _, m := range memos {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}

// Sample returns up to n memos in an order shuffled by a generator seeded
// from seed.
func Sample(memos []model.Memo, n int, seed string) []model.Memo {
	out := append([]model.Memo(nil), memos...)
	r := seeded.FromString(seed)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
