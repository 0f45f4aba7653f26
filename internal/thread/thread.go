// Package thread assembles flat comment lists into reply trees.
package thread

import (
	"errors"
	"fmt"
	"strings"

	"github.com/learnup/learnup/internal/model"
)

// ErrCycle is reported when parent references loop back on themselves or an
// identifier is reachable more than once.
var ErrCycle = errors.New("thread: cycle in parent references")

type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.IDs, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// Node is one comment in an assembled thread. Roots have depth 0.
type Node struct {
	Comment  model.Comment
	Depth    int
	Children []Node
}

// Assemble turns a flat comment list into a forest. Roots keep the order they
// have in comments and replies keep insertion order under their parent.
// Replies whose parent is missing are dropped together with their
// descendants.
func Assemble(comments []model.Comment) ([]Node, error) {
	byParent := make(map[string][]model.Comment)
	roots := make([]model.Comment, 0)
	for _, c := range comments {
		if c.IsRoot() {
			roots = append(roots, c)
			continue
		}
		byParent[c.ParentID()] = append(byParent[c.ParentID()], c)
	}

	visited := make(map[string]bool, len(comments))
	var dup []string
	var build func(c model.Comment, depth int) Node
	build = func(c model.Comment, depth int) Node {
		node := Node{Comment: c, Depth: depth}
		if visited[c.ID] {
			dup = append(dup, c.ID)
			return node
		}
		visited[c.ID] = true
		for _, child := range byParent[c.ID] {
			node.Children = append(node.Children, build(child, depth+1))
		}
		return node
	}

	nodes := make([]Node, 0, len(roots))
	for _, root := range roots {
		nodes = append(nodes, build(root, 0))
	}
	if len(dup) > 0 {
		return nil, &CycleError{IDs: dup}
	}
	if looped := unreachableLoops(comments, visited); len(looped) > 0 {
		return nil, &CycleError{IDs: looped}
	}
	return nodes, nil
}

type chainState uint8

const (
	chainUnknown chainState = iota
	chainWalking
	chainEnds
	chainLoops
)

// unreachableLoops returns the ids of comments that were not reached from a
// root and whose parent chain never ends at a root or a missing id. Each id
// is walked once; every id on a walked path takes the path's outcome.
func unreachableLoops(comments []model.Comment, visited map[string]bool) []string {
	byID := make(map[string]model.Comment, len(comments))
	for _, c := range comments {
		byID[c.ID] = c
	}
	state := make(map[string]chainState, len(comments))
	var path []string
	var looped []string
	for _, c := range comments {
		if visited[c.ID] {
			continue
		}
		path = path[:0]
		cur := c
		outcome := state[cur.ID]
		for outcome == chainUnknown {
			state[cur.ID] = chainWalking
			path = append(path, cur.ID)
			parent, ok := byID[cur.ParentID()]
			if cur.IsRoot() || !ok {
				outcome = chainEnds
				break
			}
			switch state[parent.ID] {
			case chainWalking:
				outcome = chainLoops
			case chainEnds, chainLoops:
				outcome = state[parent.ID]
			}
			cur = parent
		}
		for _, id := range path {
			state[id] = outcome
		}
		if outcome == chainLoops {
			looped = append(looped, c.ID)
		}
	}
	return looped
}

// Orphans lists replies whose parent id is not in comments.
func Orphans(comments []model.Comment) []model.Comment {
	ids := make(map[string]bool, len(comments))
	for _, c := range comments {
		ids[c.ID] = true
	}
	var out []model.Comment
	for _, c := range comments {
		if !c.IsRoot() && !ids[c.ParentID()] {
			out = append(out, c)
		}
	}
	return out
}

// Walk visits nodes depth first, parents before children. Returning false
// stops the walk.
func Walk(forest []Node, fn func(Node) bool) {
	var walk func(nodes []Node) bool
	walk = func(nodes []Node) bool {
		for _, n := range nodes {
			if !fn(n) || !walk(n.Children) {
				return false
			}
		}
		return true
	}
	walk(forest)
}

// Count returns the number of comments in the forest.
func Count(forest []Node) int {
	n := 0
	Walk(forest, func(Node) bool {
		n++
		return true
	})
	return n
}

func Find(forest []Node, id string) (Node, bool) {
	var found Node
	var ok bool
	Walk(forest, func(n Node) bool {
		if n.Comment.ID == id {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}
