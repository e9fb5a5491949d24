// Package retrieval ranks knowledge base documents against a ticket.
// It provides the two independent rankers the fusion stage merges: a
// lexical ranker over term overlap and an embedding ranker over hashed
// bag-of-words vectors. Both are fully deterministic for a given corpus
// and query.
package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/linnemanlabs/recourse/internal/fusion"
	"github.com/linnemanlabs/recourse/internal/kb"
)

// embeddingDims is the size of the hashed bag-of-words vectors.
const embeddingDims = 256

// DefaultLimit is how many candidates each ranker returns. Slightly
// wider than the fusion cut so the merge has headroom.
const DefaultLimit = 10

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "my": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"to": {}, "was": {}, "we": {}, "with": {}, "you": {}, "your": {},
}

type indexedDoc struct {
	doc    kb.Document
	terms  map[string]struct{}
	vector []float64
}

// Index holds the corpus with per-document term sets and vectors
// precomputed. It implements caseflow.Retriever.
type Index struct {
	docs  []indexedDoc
	df    map[string]int
	limit int
}

// NewIndex builds the retrieval index over the corpus. limit <= 0 uses
// DefaultLimit.
func NewIndex(corpus *kb.Corpus, limit int) *Index {
	if limit <= 0 {
		limit = DefaultLimit
	}
	idx := &Index{
		df:    make(map[string]int),
		limit: limit,
	}
	for _, d := range corpus.Documents {
		text := d.Title + " " + d.Text + " " + strings.Join(d.Tags, " ")
		tokens := tokenize(text)
		terms := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			terms[tok] = struct{}{}
		}
		for term := range terms {
			idx.df[term]++
		}
		idx.docs = append(idx.docs, indexedDoc{
			doc:    d,
			terms:  terms,
			vector: embed(tokens),
		})
	}
	return idx
}

// Sparse ranks documents by inverse-document-frequency weighted term
// overlap with the query. Documents sharing no terms are omitted.
func (x *Index) Sparse(_ context.Context, query string) ([]fusion.Candidate, error) {
	qTerms := make(map[string]struct{})
	for _, tok := range tokenize(query) {
		qTerms[tok] = struct{}{}
	}

	n := float64(len(x.docs))
	var out []fusion.Candidate
	for _, d := range x.docs {
		var score float64
		for term := range qTerms {
			if _, ok := d.terms[term]; ok {
				score += math.Log(1 + n/float64(x.df[term]))
			}
		}
		if score > 0 {
			out = append(out, x.candidate(d, score))
		}
	}
	sortCandidates(out)
	return truncate(out, x.limit), nil
}

// Dense ranks documents by cosine similarity between hashed
// bag-of-words vectors of the query and the document.
func (x *Index) Dense(_ context.Context, query string) ([]fusion.Candidate, error) {
	qVec := embed(tokenize(query))

	var out []fusion.Candidate
	for _, d := range x.docs {
		if score := cosine(qVec, d.vector); score > 0 {
			out = append(out, x.candidate(d, score))
		}
	}
	sortCandidates(out)
	return truncate(out, x.limit), nil
}

func (x *Index) candidate(d indexedDoc, score float64) fusion.Candidate {
	return fusion.Candidate{
		DocID:  d.doc.ID,
		Source: d.doc.Source,
		Text:   d.doc.Text,
		Score:  score,
	}
}

// sortCandidates orders by score descending with doc ID as the
// deterministic tie-break.
func sortCandidates(cs []fusion.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].DocID < cs[j].DocID
	})
}

func truncate(cs []fusion.Candidate, limit int) []fusion.Candidate {
	if len(cs) > limit {
		return cs[:limit]
	}
	return cs
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// embed maps tokens into a fixed-size vector by hashing each token to a
// dimension. Crude but stable, which is what the merge stage needs.
func embed(tokens []string) []float64 {
	vec := make([]float64, embeddingDims)
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%embeddingDims]++
	}
	return vec
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
