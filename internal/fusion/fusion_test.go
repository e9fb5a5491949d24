package fusion

import (
	"reflect"
	"testing"
)

func cand(id, text string) Candidate {
	return Candidate{DocID: id, Source: "kb://" + id, Text: text}
}

func TestMerge_BothListsOutranksSingleList(t *testing.T) {
	t.Parallel()

	shared := cand("kb1", "refunds up to $50 within 30 days")
	sparseOnly := cand("kb2", "refunds settle within 3-5 business days")

	got := Merge(
		[]Candidate{shared, sparseOnly},
		[]Candidate{shared},
		DefaultOptions(),
	)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].DocID != "kb1" {
		t.Errorf("top doc = %q, want kb1 (present in both lists at rank 1)", got[0].DocID)
	}
	wantTop := 0.4*(1.0/61) + 0.6*(1.0/61)
	if got[0].Score != wantTop {
		t.Errorf("top score = %v, want %v", got[0].Score, wantTop)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	t.Parallel()

	sparse := []Candidate{cand("a", "aaa"), cand("b", "bb"), cand("c", "c")}
	dense := []Candidate{cand("c", "c"), cand("d", "dddd"), cand("a", "aaa")}

	first := Merge(sparse, dense, DefaultOptions())
	second := Merge(sparse, dense, DefaultOptions())

	if !reflect.DeepEqual(first, second) {
		t.Errorf("merge not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestMerge_TieBreaksByContentLength(t *testing.T) {
	t.Parallel()

	// Same rank in single lists with equal weights: exact score tie.
	opts := Options{TopK: 8, RRFK: 60, SparseWeight: 0.5, DenseWeight: 0.5}
	longer := cand("x", "a much longer snippet of policy text")
	shorter := cand("y", "short")

	got := Merge([]Candidate{longer}, []Candidate{shorter}, opts)

	if got[0].DocID != "y" {
		t.Errorf("tie broken wrong: got %q first, want shorter content first", got[0].DocID)
	}
}

func TestMerge_TruncatesToTopK(t *testing.T) {
	t.Parallel()

	sparse := []Candidate{cand("a", "a"), cand("b", "b"), cand("c", "c")}

	got := Merge(sparse, nil, Options{TopK: 2, RRFK: 60, SparseWeight: 1, DenseWeight: 1})

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (truncated before scoring)", len(got))
	}
	for _, c := range got {
		if c.DocID == "c" {
			t.Error("candidate past TopK leaked into the fused result")
		}
	}
}

func TestMerge_DedupKeyFallback(t *testing.T) {
	t.Parallel()

	// No doc id: falls back to source, then to content.
	bySource := Candidate{Source: "kb://refunds", Text: "first wording"}
	sameSource := Candidate{Source: "kb://refunds", Text: "second wording"}

	got := Merge([]Candidate{bySource}, []Candidate{sameSource}, DefaultOptions())

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (same source dedups)", len(got))
	}
	if got[0].Text != "first wording" {
		t.Errorf("payload = %q, want first-seen content kept", got[0].Text)
	}

	byText := Candidate{Text: "orphan snippet"}
	got = Merge([]Candidate{byText}, []Candidate{byText}, DefaultOptions())
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 (content key dedups)", len(got))
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	sparse := []Candidate{{DocID: "a", Text: "a", Score: 7.5}}
	dense := []Candidate{{DocID: "a", Text: "a", Score: 2.5}}

	_ = Merge(sparse, dense, DefaultOptions())

	if sparse[0].Score != 7.5 || dense[0].Score != 2.5 {
		t.Errorf("inputs mutated: sparse=%v dense=%v", sparse[0].Score, dense[0].Score)
	}
}
