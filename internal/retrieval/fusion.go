package retrieval

import "sort"

// DefaultRRFK is the reciprocal-rank-fusion smoothing constant. 60 is the
// standard value from the literature: large enough that rank differences
// within a single list shift scores gently rather than abruptly.
const DefaultRRFK = 60

// FusedCandidate is a Candidate annotated with its fused score and the
// pre-fusion contributions from each input list, kept for diagnostics.
// A rank of 0 means the candidate was absent from that list.
type FusedCandidate struct {
	Candidate

	FusedScore  float32
	VectorScore float32
	VectorRank  int
	TextScore   float32
	TextRank    int
}

// Fuser merges a vector-similarity ranking and a lexical ranking into one
// ranking using weighted reciprocal rank fusion.
type Fuser struct {
	// K is the RRF smoothing constant.
	K int
}

// NewFuser returns a Fuser with the default smoothing constant.
func NewFuser() *Fuser {
	return &Fuser{K: DefaultRRFK}
}

// Fuse merges two independently ranked candidate lists (index 0 = best).
// The candidate at 1-indexed rank r of a list contributes
// weight * 1/(K + r); contributions are summed per unique identifier across
// both lists. Output is ordered by fused score descending, ties broken by
// first-seen order across vecResults then textResults, so the result is
// deterministic for fixed inputs. The first list to introduce an identifier
// supplies the content fields; the second contributes score only.
//
// Either list may be empty: fusion then degrades to a rank transform of the
// non-empty list. Both empty yields an empty result.
func (f *Fuser) Fuse(vecResults, textResults []Candidate, vectorWeight, textWeight float64) []FusedCandidate {
	k := f.K
	if k <= 0 {
		k = DefaultRRFK
	}

	type entry struct {
		fused FusedCandidate
		order int
	}

	merged := make(map[string]*entry, len(vecResults)+len(textResults))
	next := 0

	for i, c := range vecResults {
		rank := i + 1
		e, ok := merged[c.ID]
		if !ok {
			e = &entry{fused: FusedCandidate{Candidate: c}, order: next}
			next++
			merged[c.ID] = e
		}
		e.fused.FusedScore += float32(vectorWeight / float64(k+rank))
		e.fused.VectorScore = c.Score
		e.fused.VectorRank = rank
	}

	for i, c := range textResults {
		rank := i + 1
		e, ok := merged[c.ID]
		if !ok {
			e = &entry{fused: FusedCandidate{Candidate: c}, order: next}
			next++
			merged[c.ID] = e
		}
		e.fused.FusedScore += float32(textWeight / float64(k+rank))
		e.fused.TextScore = c.Score
		e.fused.TextRank = rank
	}

	entries := make([]*entry, 0, len(merged))
	for _, e := range merged {
		e.fused.Score = e.fused.FusedScore
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].fused.FusedScore != entries[j].fused.FusedScore {
			return entries[i].fused.FusedScore > entries[j].fused.FusedScore
		}
		return entries[i].order < entries[j].order
	})

	fused := make([]FusedCandidate, len(entries))
	for i, e := range entries {
		fused[i] = e.fused
	}
	return fused
}
