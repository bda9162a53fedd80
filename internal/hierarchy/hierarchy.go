// Package hierarchy rebuilds asset trees from flat parent-pointer records.
//
// The input is whatever a single fetch from the telemetry service returned, so
// it may be partial: a record whose parent is not part of the input is promoted
// to a root rather than rejected. Parent cycles are detected and reported;
// every other input yields a forest.
package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is matched by errors returned from Build when the parent
// references form a loop.
var ErrCycle = errors.New("hierarchy: parent cycle")

// Record is one flat input row.
type Record struct {
	ID       string
	Name     string
	ParentID string // empty for roots
	Payload  any    // carried through to Node untouched
}

// Node is a record placed in the forest.
type Node struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ParentID      string  `json:"parent_id,omitempty"`
	Level         int     `json:"level"`
	ChildrenCount int     `json:"children_count"`
	Children      []*Node `json:"children"`
	Payload       any     `json:"-"`
}

// Flat is a node in the flattened, depth-first form. It has no children
// of its own; the structure is carried by Level and ParentID.
type Flat struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ParentID      string `json:"parent_id,omitempty"`
	Level         int    `json:"level"`
	ChildrenCount int    `json:"children_count"`
	Payload       any    `json:"-"`
}

// Forest is the result of Build.
type Forest struct {
	Roots []*Node `json:"roots"`
	size  int
}

// CycleError reports records whose parent chain loops back on itself.
type CycleError struct {
	Path []string // ids along one detected loop, first id repeated at the end
	IDs  []string // every record that could not be reached from a root
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("hierarchy: parent cycle %s (%d unreachable records)",
		strings.Join(e.Path, " -> "), len(e.IDs))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// DuplicateIDError reports an id that appears more than once in the input.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("hierarchy: duplicate id %q", e.ID)
}

// Build assembles records into a forest. Roots and siblings keep input order.
func Build(records []Record) (*Forest, error) {
	index := make(map[string]int, len(records))
	for i, r := range records {
		if _, dup := index[r.ID]; dup {
			return nil, &DuplicateIDError{ID: r.ID}
		}
		index[r.ID] = i
	}

	nodes := make([]*Node, len(records))
	for i, r := range records {
		nodes[i] = &Node{
			ID:       r.ID,
			Name:     r.Name,
			ParentID: r.ParentID,
			Children: []*Node{},
			Payload:  r.Payload,
		}
	}

	forest := &Forest{Roots: []*Node{}}
	for i, r := range records {
		p, ok := index[r.ParentID]
		if r.ParentID == "" || !ok {
			forest.Roots = append(forest.Roots, nodes[i])
			continue
		}
		parent := nodes[p]
		parent.Children = append(parent.Children, nodes[i])
	}

	// Levels are assigned from the roots down. Anything left unvisited hangs
	// off a loop, since every non-root has exactly one resolvable parent.
	visited := make(map[string]bool, len(records))
	stack := make([]*Node, 0, len(forest.Roots))
	for i := len(forest.Roots) - 1; i >= 0; i-- {
		stack = append(stack, forest.Roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visited[n.ID] = true
		n.ChildrenCount = len(n.Children)
		for i := len(n.Children) - 1; i >= 0; i-- {
			c := n.Children[i]
			c.Level = n.Level + 1
			stack = append(stack, c)
		}
	}

	if len(visited) != len(records) {
		return nil, cycleError(records, index, visited)
	}

	forest.size = len(records)
	return forest, nil
}

func cycleError(records []Record, index map[string]int, visited map[string]bool) *CycleError {
	var unreached []string
	for _, r := range records {
		if !visited[r.ID] {
			unreached = append(unreached, r.ID)
		}
	}

	// Follow parents from the first unreached record until an id repeats.
	pos := make(map[string]int)
	var walk []string
	id := unreached[0]
	for {
		if at, seen := pos[id]; seen {
			path := append([]string{}, walk[at:]...)
			path = append(path, id)
			return &CycleError{Path: path, IDs: unreached}
		}
		pos[id] = len(walk)
		walk = append(walk, id)
		id = records[index[id]].ParentID
	}
}

// Len is the number of records in the forest.
func (f *Forest) Len() int { return f.size }

// Depth is the number of levels, 0 for an empty forest.
func (f *Forest) Depth() int {
	depth := 0
	f.Walk(func(n *Node) bool {
		if n.Level+1 > depth {
			depth = n.Level + 1
		}
		return true
	})
	return depth
}

// Walk visits nodes depth-first, parents before children. Returning false
// from fn stops the walk.
func (f *Forest) Walk(fn func(n *Node) bool) {
	for _, r := range f.Roots {
		if !walk(r, fn) {
			return
		}
	}
}

func walk(n *Node, fn func(n *Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Find returns the node with the given id, or nil.
func (f *Forest) Find(id string) *Node {
	var found *Node
	f.Walk(func(n *Node) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Flatten returns the forest in depth-first pre-order.
func (f *Forest) Flatten() []Flat {
	out := make([]Flat, 0, f.size)
	f.Walk(func(n *Node) bool {
		out = append(out, Flat{
			ID:            n.ID,
			Name:          n.Name,
			ParentID:      n.ParentID,
			Level:         n.Level,
			ChildrenCount: n.ChildrenCount,
			Payload:       n.Payload,
		})
		return true
	})
	return out
}
