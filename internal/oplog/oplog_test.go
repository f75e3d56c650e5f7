package oplog

import (
	"strings"
	"testing"
)

func TestSerialize_PlainAndQuotedValues(t *testing.T) {
	var l OpLog
	l.Add(New(KindFootprintAdd, "path", "Top.R1", "fpid", "lib:R", "reference", "R1"))
	l.Add(New(KindNetAdd, "name", "net with spaces"))
	l.Add(New(KindPlaceFootprint, "path", "Top.R1", "x", int64(1000000), "y", int64(-500)))

	got := l.Serialize()
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "FP_ADD path=Top.R1 fpid=lib:R reference=R1" {
		t.Fatalf("unexpected line 0: %q", lines[0])
	}
	if lines[1] != `NET_ADD name="net with spaces"` {
		t.Fatalf("unexpected line 1: %q", lines[1])
	}
	if lines[2] != "PLACE_FP path=Top.R1 x=1000000 y=-500" {
		t.Fatalf("unexpected line 2: %q", lines[2])
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	var l OpLog
	l.Add(New(KindGroupAdd, "path", "Top.Filter"))
	l.Add(New(KindGroupMember, "path", "Top.Filter", "members", "Top.Filter.C1,Top.Filter.C2"))

	a := l.Serialize()
	b := l.Serialize()
	if a != b {
		t.Fatalf("serialization should be stable across calls")
	}
}

func TestSortByKey(t *testing.T) {
	events := []Event{
		New(KindFootprintAdd, "path", "Top.B"),
		New(KindFootprintAdd, "path", "Top.A"),
		New(KindFootprintAdd, "path", "Top.C"),
	}
	SortByKey(events, "path")
	got := []string{fieldString(events[0], "path"), fieldString(events[1], "path"), fieldString(events[2], "path")}
	want := []string{"Top.A", "Top.B", "Top.C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortByKey mismatch: got %v want %v", got, want)
		}
	}
}

func TestNew_OddArgsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on odd key/value count")
		}
	}()
	New(KindNetAdd, "name")
}
