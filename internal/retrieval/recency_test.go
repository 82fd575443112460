package retrieval

import (
	"math"
	"testing"
	"time"
)

func testReweighter(now time.Time) *Reweighter {
	r := NewReweighter()
	r.now = func() time.Time { return now }
	return r
}

func TestReweight_DecayBounds(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	r := testReweighter(now)

	tests := []struct {
		name     string
		date     string
		min, max float64
	}{
		{"today", "2026-06-15T12:00:00Z", 0.95, 1.0},
		{"half-life", now.AddDate(0, 0, -30).Format(time.RFC3339), 0.45, 0.55},
		{"one year floors", now.AddDate(-1, 0, 0).Format(time.RFC3339), 0.1, 0.1},
		{"future clamps to 1.0", "2030-01-01", 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Reweight([]Candidate{{ID: "a", Date: tt.date, Score: 0.5}}, 0.3)
			if d := out[0].Decay; d < tt.min || d > tt.max {
				t.Errorf("decay for %s = %f, want within [%f, %f]", tt.date, d, tt.min, tt.max)
			}
		})
	}
}

func TestReweight_MissingTimestampNeutral(t *testing.T) {
	r := testReweighter(time.Now())

	for _, date := range []string{"", "not a date", "2026/06/15"} {
		out := r.Reweight([]Candidate{{ID: "a", Date: date, Score: 0.5}}, 0.3)
		if out[0].Decay != 0.5 {
			t.Errorf("decay for %q = %f, want exactly 0.5", date, out[0].Decay)
		}
	}
}

func TestReweight_AcceptsDateOnlyAndRFC3339(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	r := testReweighter(now)

	for _, date := range []string{"2026-06-14", "2026-06-14T00:00:00Z", "2026-06-14T00:00:00"} {
		out := r.Reweight([]Candidate{{ID: "a", Date: date, Score: 0.5}}, 0.3)
		if out[0].Decay == 0.5 {
			t.Errorf("timestamp %q was not parsed (neutral decay applied)", date)
		}
		if out[0].Decay < 0.9 {
			t.Errorf("decay for one-day-old %q = %f, want near 1.0", date, out[0].Decay)
		}
	}
}

func TestReweight_PrefersRecent(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	r := testReweighter(now)

	in := []Candidate{
		{ID: "old", Date: now.AddDate(0, 0, -60).Format("2006-01-02"), Score: 0.52},
		{ID: "fresh", Date: now.Format("2006-01-02"), Score: 0.50},
	}

	out := r.Reweight(in, 0.5)
	if out[0].ID != "fresh" {
		t.Errorf("expected the recent candidate first, got order %s, %s", out[0].ID, out[1].ID)
	}
}

func TestReweight_BlendAndDiagnostics(t *testing.T) {
	now := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	r := testReweighter(now)

	out := r.Reweight([]Candidate{{ID: "a", Date: "2026-06-15", Score: 0.8}}, 0.3)

	rc := out[0]
	if rc.BaseScore != 0.8 {
		t.Errorf("base score not preserved: got %f", rc.BaseScore)
	}
	want := float32(0.7*0.8 + 0.3*rc.Decay)
	if math.Abs(float64(rc.FinalScore-want)) > 1e-6 {
		t.Errorf("final score %f, want %f", rc.FinalScore, want)
	}
	if rc.Score != rc.FinalScore {
		t.Errorf("candidate score %f should equal final score %f", rc.Score, rc.FinalScore)
	}
}

func TestReweight_StableForTies(t *testing.T) {
	r := testReweighter(time.Now())

	in := []Candidate{
		{ID: "first", Score: 0.5},
		{ID: "second", Score: 0.5},
	}

	out := r.Reweight(in, 0.3)
	if out[0].ID != "first" || out[1].ID != "second" {
		t.Errorf("tied candidates reordered: %s, %s", out[0].ID, out[1].ID)
	}
}
