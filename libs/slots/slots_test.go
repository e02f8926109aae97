package slots

import (
	"math/rand"
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func rng(h1, m1, h2, m2 int) TimeRange {
	return TimeRange{Start: at(h1, m1), End: at(h2, m2)}
}

func TestMergeToRangesContiguous(t *testing.T) {
	got := MergeToRanges([]TimeSlot{{Start: at(9, 0)}, {Start: at(9, 30)}, {Start: at(10, 0)}})
	if len(got) != 1 {
		t.Fatalf("expected 1 range, got %d: %+v", len(got), got)
	}
	if !got[0].Start.Equal(at(9, 0)) || !got[0].End.Equal(at(10, 30)) {
		t.Fatalf("expected 09:00-10:30, got %+v", got[0])
	}
}

func TestMergeToRangesGap(t *testing.T) {
	got := MergeToRanges([]TimeSlot{{Start: at(9, 0)}, {Start: at(10, 0)}})
	if len(got) != 2 {
		t.Fatalf("expected 2 ranges, got %+v", got)
	}
	if !got[0].End.Equal(at(9, 30)) || !got[1].Start.Equal(at(10, 0)) || !got[1].End.Equal(at(10, 30)) {
		t.Fatalf("unexpected ranges %+v", got)
	}
}

func TestMergeToRangesUnsortedInput(t *testing.T) {
	in := []TimeSlot{{Start: at(10, 0)}, {Start: at(9, 0)}, {Start: at(9, 30)}}
	got := MergeToRanges(in)
	if len(got) != 1 || !got[0].Start.Equal(at(9, 0)) || !got[0].End.Equal(at(10, 30)) {
		t.Fatalf("expected single 09:00-10:30 range, got %+v", got)
	}
	if !in[0].Start.Equal(at(10, 0)) {
		t.Fatal("input was mutated")
	}
}

func TestMergeToRangesEmptyAndSingle(t *testing.T) {
	if got := MergeToRanges(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", got)
	}
	got := MergeToRanges([]TimeSlot{{Start: at(14, 30), Priority: PriorityHigh}})
	if len(got) != 1 || got[0] != rng(14, 30, 15, 0) {
		t.Fatalf("expected one 30 minute range, got %+v", got)
	}
}

func TestMergeToRangesOffCadenceStaysSeparate(t *testing.T) {
	got := MergeToRanges([]TimeSlot{{Start: at(9, 0)}, {Start: at(9, 45)}})
	if len(got) != 2 {
		t.Fatalf("expected 2 ranges, got %+v", got)
	}
}

func TestMergeToRangesDuplicatesAbsorbed(t *testing.T) {
	got := MergeToRanges([]TimeSlot{{Start: at(9, 0)}, {Start: at(9, 0)}, {Start: at(9, 30)}})
	if len(got) != 1 || got[0] != rng(9, 0, 10, 0) {
		t.Fatalf("expected 09:00-10:00, got %+v", got)
	}
}

func TestMergeRangesIdempotent(t *testing.T) {
	once := MergeToRanges([]TimeSlot{{Start: at(9, 0)}, {Start: at(9, 30)}, {Start: at(11, 0)}, {Start: at(13, 30)}, {Start: at(14, 0)}})
	twice := MergeRanges(once)
	if len(once) != len(twice) {
		t.Fatalf("expected %d ranges, got %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("range %d changed: %+v -> %+v", i, once[i], twice[i])
		}
	}
}

func TestMergeRangesOverlapping(t *testing.T) {
	cases := []struct {
		name string
		in   []TimeRange
		want []TimeRange
	}{
		{"same start", []TimeRange{rng(9, 0, 9, 30), rng(9, 0, 10, 0)}, []TimeRange{rng(9, 0, 10, 0)}},
		{"partial", []TimeRange{rng(9, 0, 10, 0), rng(9, 30, 10, 30)}, []TimeRange{rng(9, 0, 10, 30)}},
		{"nested", []TimeRange{rng(9, 0, 12, 0), rng(10, 0, 10, 30), rng(11, 30, 12, 30)}, []TimeRange{rng(9, 0, 12, 30)}},
		{"touch and gap", []TimeRange{rng(13, 0, 14, 0), rng(9, 0, 10, 0), rng(10, 0, 11, 0)}, []TimeRange{rng(9, 0, 11, 0), rng(13, 0, 14, 0)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeRanges(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %+v, got %+v", tc.want, got)
				}
			}
			again := MergeRanges(got)
			if len(again) != len(got) {
				t.Fatalf("not idempotent: %+v -> %+v", got, again)
			}
		})
	}
}

func TestMergeToRangesPropertiesRandomized(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		var in []TimeSlot
		seen := map[int]bool{}
		count := r.Intn(20)
		for i := 0; i < count; i++ {
			n := r.Intn(48)
			seen[n] = true
			in = append(in, TimeSlot{Start: at(0, 0).Add(time.Duration(n) * Duration)})
		}
		got := MergeToRanges(in)

		var total time.Duration
		for i, rg := range got {
			if !rg.Valid() {
				t.Fatalf("invalid range %+v", rg)
			}
			total += rg.Duration()
			if i > 0 && !got[i-1].End.Before(rg.Start) {
				t.Fatalf("ranges not disjoint and separated: %+v", got)
			}
		}
		if total != time.Duration(len(seen))*Duration {
			t.Fatalf("coverage mismatch: %v for %d distinct slots", total, len(seen))
		}
		for _, s := range in {
			if !IsWithinAnyRange(s.Range(), got) {
				t.Fatalf("slot %v not covered by %+v", s.Start, got)
			}
		}
	}
}

func TestIsWithinAnyRange(t *testing.T) {
	ranges := []TimeRange{rng(9, 0, 11, 0)}
	if !IsWithinAnyRange(rng(9, 30, 10, 30), ranges) {
		t.Fatal("expected contained candidate to be within")
	}
	if !IsWithinAnyRange(rng(9, 0, 11, 0), ranges) {
		t.Fatal("expected exact match to be within")
	}
	if IsWithinAnyRange(rng(10, 30, 11, 30), ranges) {
		t.Fatal("partial overlap must not count as containment")
	}
	if IsWithinAnyRange(rng(9, 0, 9, 30), nil) {
		t.Fatal("no ranges means nothing is within")
	}
}

func TestIsWithinAnyRangeSpanningGap(t *testing.T) {
	ranges := MergeToRanges([]TimeSlot{{Start: at(9, 0)}, {Start: at(10, 0)}})
	if IsWithinAnyRange(rng(9, 0, 10, 30), ranges) {
		t.Fatal("candidate spanning a gap must not be within")
	}
}

func TestOverlapsSelected(t *testing.T) {
	selected := []SelectedSlot{NewSelectedSlot(rng(10, 0, 11, 0), PriorityLow)}
	if !OverlapsSelected(rng(10, 30, 11, 30), selected) {
		t.Fatal("expected partial overlap")
	}
	if OverlapsSelected(rng(11, 0, 12, 0), selected) {
		t.Fatal("touching boundary must not overlap")
	}
	if OverlapsSelected(rng(9, 0, 10, 0), selected) {
		t.Fatal("touching start boundary must not overlap")
	}
	if !OverlapsSelected(rng(9, 0, 12, 0), selected) {
		t.Fatal("enclosing range must overlap")
	}
	if OverlapsSelected(rng(9, 0, 10, 0), nil) {
		t.Fatal("empty selection never overlaps")
	}
}

func TestOverlapsAny(t *testing.T) {
	busy := []TimeRange{rng(13, 0, 14, 0)}
	if !OverlapsAny(rng(13, 30, 14, 30), busy) {
		t.Fatal("expected overlap")
	}
	if OverlapsAny(rng(14, 0, 14, 30), busy) {
		t.Fatal("touching must not overlap")
	}
}

func TestExpand(t *testing.T) {
	got := Expand(rng(9, 0, 10, 30), PriorityHigh)
	if len(got) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(got))
	}
	for i, s := range got {
		want := at(9, 0).Add(time.Duration(i) * Duration)
		if !s.Start.Equal(want) || s.Priority != PriorityHigh {
			t.Fatalf("slot %d: got %+v", i, s)
		}
	}
	merged := MergeToRanges(got)
	if len(merged) != 1 || merged[0] != rng(9, 0, 10, 30) {
		t.Fatalf("expanding then merging should round trip, got %+v", merged)
	}
	if got := Expand(rng(9, 0, 9, 15), PriorityLow); len(got) != 0 {
		t.Fatalf("expected no slots for a short range, got %+v", got)
	}
}

func TestAligned(t *testing.T) {
	if !Aligned(at(9, 0)) || !Aligned(at(9, 30)) {
		t.Fatal("expected :00 and :30 to be aligned")
	}
	if Aligned(at(9, 15)) || Aligned(at(9, 0).Add(time.Second)) {
		t.Fatal("expected off-boundary times to be rejected")
	}
}

func TestParsePriority(t *testing.T) {
	if p, err := ParsePriority(1); err != nil || p != PriorityHigh {
		t.Fatalf("expected high, got %v err=%v", p, err)
	}
	if _, err := ParsePriority(2); err != ErrInvalidPriority {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}
