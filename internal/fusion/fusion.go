// Package fusion merges sparse and dense retrieval rankings with
// reciprocal rank fusion. Rank position, not raw score, drives the formula,
// which keeps the merge robust to incomparable score scales between the two
// retrievers.
package fusion

import "sort"

// Candidate is one retrieved document as seen by the fusion step.
type Candidate struct {
	DocID  string  `json:"doc_id"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

// key returns the dedup identity for a candidate: the canonical document id
// when present, else the source reference, else the literal content. Two
// entries are the same candidate iff their keys match.
func (c Candidate) key() string {
	if c.DocID != "" {
		return c.DocID
	}
	if c.Source != "" {
		return c.Source
	}
	return c.Text
}

// Options controls a Merge call.
type Options struct {
	// TopK truncates each input list before scoring.
	TopK int
	// RRFK is the rank-smoothing constant in 1/(RRFK + rank).
	RRFK int
	// SparseWeight and DenseWeight scale each list's contribution.
	SparseWeight float64
	DenseWeight  float64
}

// DefaultOptions are the fusion parameters used in production.
func DefaultOptions() Options {
	return Options{TopK: 8, RRFK: 60, SparseWeight: 0.4, DenseWeight: 0.6}
}

// Merge fuses two ranked candidate lists into one, ordered by descending
// fused score with ties broken by ascending content length. A candidate's
// fused score is the weighted sum of 1/(RRFK + rank) over the lists that
// contain it, with 1-based ranks. The document payload is kept from
// whichever list introduces a key first. Merge never mutates its inputs and
// is deterministic for given inputs.
func Merge(sparse, dense []Candidate, opts Options) []Candidate {
	if opts.TopK <= 0 || opts.RRFK <= 0 {
		d := DefaultOptions()
		if opts.TopK <= 0 {
			opts.TopK = d.TopK
		}
		if opts.RRFK <= 0 {
			opts.RRFK = d.RRFK
		}
	}

	if len(sparse) > opts.TopK {
		sparse = sparse[:opts.TopK]
	}
	if len(dense) > opts.TopK {
		dense = dense[:opts.TopK]
	}

	scores := make(map[string]float64, len(sparse)+len(dense))
	keep := make(map[string]Candidate, len(sparse)+len(dense))
	var order []string // keys in first-seen order, for stable iteration

	accumulate := func(list []Candidate, weight float64) {
		for i, c := range list {
			k := c.key()
			if _, seen := keep[k]; !seen {
				keep[k] = c
				order = append(order, k)
			}
			rank := i + 1
			scores[k] += weight * (1.0 / float64(opts.RRFK+rank))
		}
	}
	accumulate(sparse, opts.SparseWeight)
	accumulate(dense, opts.DenseWeight)

	sort.SliceStable(order, func(i, j int) bool {
		si, sj := scores[order[i]], scores[order[j]]
		if si != sj {
			return si > sj
		}
		return len(keep[order[i]].Text) < len(keep[order[j]].Text)
	})

	out := make([]Candidate, 0, len(order))
	for _, k := range order {
		c := keep[k]
		c.Score = scores[k]
		out = append(out, c)
	}
	return out
}
