package hierarchy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func ids(flat []Flat) []string {
	out := make([]string, len(flat))
	for i, f := range flat {
		out[i] = f.ID
	}
	return out
}

func TestBuildChain(t *testing.T) {
	f, err := Build([]Record{
		{ID: "A", Name: "plant"},
		{ID: "B", Name: "line", ParentID: "A"},
		{ID: "C", Name: "motor", ParentID: "B"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(f.Roots) != 1 || f.Roots[0].ID != "A" {
		t.Fatalf("roots = %+v, want [A]", f.Roots)
	}

	want := map[string]int{"A": 0, "B": 1, "C": 2}
	for id, level := range want {
		n := f.Find(id)
		if n == nil {
			t.Fatalf("node %s missing", id)
		}
		if n.Level != level {
			t.Errorf("%s level = %d, want %d", id, n.Level, level)
		}
	}

	if got := ids(f.Flatten()); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("flatten = %v, want [A B C]", got)
	}
	if f.Len() != 3 {
		t.Errorf("Len = %d, want 3", f.Len())
	}
	if f.Depth() != 3 {
		t.Errorf("Depth = %d, want 3", f.Depth())
	}
}

func TestBuildDanglingParentBecomesRoot(t *testing.T) {
	f, err := Build([]Record{{ID: "X", ParentID: "missing"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(f.Roots) != 1 || f.Roots[0].ID != "X" {
		t.Fatalf("roots = %+v, want [X]", f.Roots)
	}
	if f.Roots[0].Level != 0 {
		t.Errorf("X level = %d, want 0", f.Roots[0].Level)
	}
	if f.Roots[0].ParentID != "missing" {
		t.Errorf("declared parent should be preserved, got %q", f.Roots[0].ParentID)
	}
}

func TestBuildEmpty(t *testing.T) {
	f, err := Build(nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if f.Len() != 0 || len(f.Roots) != 0 || len(f.Flatten()) != 0 {
		t.Errorf("expected empty forest, got %+v", f)
	}
	if f.Depth() != 0 {
		t.Errorf("Depth = %d, want 0", f.Depth())
	}

	// Empty forest still marshals to an array, not null.
	out, _ := json.Marshal(f.Roots)
	if string(out) != "[]" {
		t.Errorf("roots json = %s, want []", out)
	}
}

func TestBuildSiblingOrderFollowsInput(t *testing.T) {
	f, err := Build([]Record{
		{ID: "c2", ParentID: "r"},
		{ID: "r"},
		{ID: "c1", ParentID: "r"},
		{ID: "g", ParentID: "c2"},
		{ID: "r2"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got := ids(f.Flatten())
	want := []string{"r", "c2", "g", "c1", "r2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("flatten = %v, want %v", got, want)
	}

	r := f.Find("r")
	if r.ChildrenCount != 2 || len(r.Children) != 2 {
		t.Errorf("r children_count = %d, len = %d, want 2", r.ChildrenCount, len(r.Children))
	}
	if leaf := f.Find("g"); leaf.ChildrenCount != 0 || leaf.Children == nil {
		t.Errorf("leaf should have empty, non-nil children: %+v", leaf)
	}
}

func TestBuildCycle(t *testing.T) {
	tests := []struct {
		name     string
		records  []Record
		wantPath string
	}{
		{
			name:     "self parent",
			records:  []Record{{ID: "A", ParentID: "A"}},
			wantPath: "A -> A",
		},
		{
			name: "two node loop beside a healthy tree",
			records: []Record{
				{ID: "root"},
				{ID: "leaf", ParentID: "root"},
				{ID: "B", ParentID: "D"},
				{ID: "D", ParentID: "B"},
			},
			wantPath: "B -> D -> B",
		},
		{
			name: "record hanging below a loop",
			records: []Record{
				{ID: "C", ParentID: "B"},
				{ID: "B", ParentID: "D"},
				{ID: "D", ParentID: "B"},
			},
			wantPath: "B -> D -> B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.records)
			if !errors.Is(err, ErrCycle) {
				t.Fatalf("expected ErrCycle, got %v", err)
			}
			var ce *CycleError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *CycleError, got %T", err)
			}
			if got := strings.Join(ce.Path, " -> "); got != tt.wantPath {
				t.Errorf("path = %q, want %q", got, tt.wantPath)
			}
		})
	}
}

func TestBuildDuplicateID(t *testing.T) {
	_, err := Build([]Record{{ID: "A"}, {ID: "A", ParentID: "B"}})
	var de *DuplicateIDError
	if !errors.As(err, &de) || de.ID != "A" {
		t.Fatalf("expected duplicate id error for A, got %v", err)
	}
}

func TestWalkStops(t *testing.T) {
	f, err := Build([]Record{{ID: "a"}, {ID: "b", ParentID: "a"}, {ID: "c"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var seen []string
	f.Walk(func(n *Node) bool {
		seen = append(seen, n.ID)
		return n.ID != "b"
	})
	if !reflect.DeepEqual(seen, []string{"a", "b"}) {
		t.Errorf("seen = %v, want [a b]", seen)
	}
}

func TestPayloadCarriedThrough(t *testing.T) {
	type meta struct{ Model string }
	f, err := Build([]Record{{ID: "a", Payload: meta{Model: "pump"}}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := f.Flatten()[0].Payload.(meta).Model; got != "pump" {
		t.Errorf("payload model = %q, want pump", got)
	}
}

// randomForest returns records for a random acyclic forest together with
// the expected level of each id.
func randomForest(r *rand.Rand, n int) ([]Record, map[string]int) {
	records := make([]Record, n)
	levels := make(map[string]int, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("n%d", i)
		rec := Record{ID: id}
		switch k := r.Intn(4); {
		case i == 0 || k == 0:
			levels[id] = 0
		case k == 1:
			rec.ParentID = "gone-" + id
			levels[id] = 0
		default:
			p := records[r.Intn(i)].ID
			rec.ParentID = p
			levels[id] = levels[p] + 1
		}
		records[i] = rec
	}
	return records, levels
}

func TestBuildProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 50; iter++ {
		records, levels := randomForest(r, 1+r.Intn(60))

		f, err := Build(records)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}

		flat := f.Flatten()
		if len(flat) != len(records) {
			t.Fatalf("flatten has %d nodes, want %d", len(flat), len(records))
		}

		pos := make(map[string]int, len(flat))
		for i, n := range flat {
			if _, dup := pos[n.ID]; dup {
				t.Fatalf("%s emitted twice", n.ID)
			}
			pos[n.ID] = i
			if n.Level != levels[n.ID] {
				t.Fatalf("%s level = %d, want %d", n.ID, n.Level, levels[n.ID])
			}
		}
		for _, n := range flat {
			if p, ok := pos[n.ParentID]; ok && p >= pos[n.ID] {
				t.Fatalf("%s emitted before its parent %s", n.ID, n.ParentID)
			}
		}

		// Rebuilding from shuffled input gives the same parent/level assignment.
		shuffled := append([]Record(nil), records...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		g, err := Build(shuffled)
		if err != nil {
			t.Fatalf("Build shuffled: %v", err)
		}
		for _, n := range g.Flatten() {
			orig := f.Find(n.ID)
			if orig.Level != n.Level || orig.ChildrenCount != n.ChildrenCount {
				t.Fatalf("%s differs after shuffle: level %d/%d children %d/%d",
					n.ID, orig.Level, n.Level, orig.ChildrenCount, n.ChildrenCount)
			}
		}
	}
}
