package retrieval

import (
	"math"
	"sort"
	"time"
)

const (
	// DefaultHalfLifeDays is the decay half-life: a record loses half its
	// recency weight every 30 days.
	DefaultHalfLifeDays = 30.0

	// DefaultDecayFloor is the minimum decay value. A record is never
	// discounted below 10% relevance purely on age.
	DefaultDecayFloor = 0.1

	// neutralDecay is applied when a candidate carries no parseable
	// timestamp: neither favored nor penalized.
	neutralDecay = 0.5
)

// ReweightedCandidate is a Candidate whose Score has been blended with a
// recency decay. BaseScore and Decay are kept for diagnostics.
type ReweightedCandidate struct {
	Candidate

	BaseScore  float32
	Decay      float64
	FinalScore float32
}

// Reweighter applies an exponential-decay recency adjustment to a scored
// candidate list. It is stage-agnostic: the incoming score may be a fused
// score, a raw similarity, or anything else the previous stage produced.
type Reweighter struct {
	// HalfLifeDays controls how fast relevance decays with age.
	HalfLifeDays float64

	// Floor bounds the decay from below.
	Floor float64

	// now is the evaluation instant, injectable for tests.
	now func() time.Time
}

// NewReweighter returns a Reweighter with the documented defaults.
func NewReweighter() *Reweighter {
	return &Reweighter{
		HalfLifeDays: DefaultHalfLifeDays,
		Floor:        DefaultDecayFloor,
		now:          time.Now,
	}
}

// Reweight blends each candidate's incoming score with its recency decay:
//
//	final = (1-timeWeight)*incoming + timeWeight*decay
//
// where decay = 2^(-daysElapsed/halfLife), floored at Floor. Future-dated
// records are clamped to zero elapsed days (decay 1.0) and candidates
// without a parseable timestamp get the neutral decay 0.5. All elapsed-time
// arithmetic is done in UTC. timeWeight must be in [0,1]; the default used
// by the pipeline is 0.3. The result is re-sorted descending by final score,
// stable for ties.
func (r *Reweighter) Reweight(candidates []Candidate, timeWeight float64) []ReweightedCandidate {
	if timeWeight < 0 {
		timeWeight = 0
	}
	if timeWeight > 1 {
		timeWeight = 1
	}

	now := r.now().UTC()

	out := make([]ReweightedCandidate, len(candidates))
	for i, c := range candidates {
		decay := neutralDecay
		if ts, ok := parseTimestamp(c.Date); ok {
			days := now.Sub(ts).Hours() / 24
			if days < 0 {
				days = 0
			}
			decay = math.Exp2(-days / r.HalfLifeDays)
			if decay < r.Floor {
				decay = r.Floor
			}
		}

		final := float32((1-timeWeight)*float64(c.Score) + timeWeight*decay)

		rc := ReweightedCandidate{
			Candidate:  c,
			BaseScore:  c.Score,
			Decay:      decay,
			FinalScore: final,
		}
		rc.Score = final
		out[i] = rc
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})
	return out
}

// timestampLayouts are tried in order: full RFC 3339 (with or without the
// trailing UTC designator), a zone-less ISO 8601, and a date-only string.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
