package internaldefs

import "testing"

func TestCumulative(t *testing.T) {
	got := Cumulative([]uint64{1, 2, 0, 3})
	want := [8]uint64{1, 3, 3, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBoundSuffix(t *testing.T) {
	if s := BoundSuffix(0); s != "0_005" {
		t.Fatalf("expected 0_005, got %q", s)
	}
	if s := BoundSuffix(7); s != "inf" {
		t.Fatalf("expected inf, got %q", s)
	}
}

func TestNamesUnique(t *testing.T) {
	seen := map[string]bool{AuditDropped.Name: true}
	for _, d := range append(append([]Def{}, Counters...), Histograms...) {
		if seen[d.Name] {
			t.Fatalf("duplicate metric name %q", d.Name)
		}
		seen[d.Name] = true
	}
}
