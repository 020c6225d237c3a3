package transformer

import "strings"

// patternIndex is a segment trie over source patterns. Each level of the
// trie consumes one colon-separated segment of the event name. Exact
// patterns land on the node that consumes their last segment; trailing
// wildcards are recorded on the node where the wildcard begins, so a
// lookup collects them while walking down and never scans unrelated
// definitions.
type patternIndex struct {
	root *patternNode
}

type patternNode struct {
	children map[string]*patternNode

	// exact holds definitions whose pattern ends precisely at this node.
	exact []*entry

	// wild holds definitions whose pattern ends in "*" at this depth.
	// They match any event that still has at least one segment left to
	// consume when the walk reaches this node.
	wild []*entry
}

func newPatternIndex() *patternIndex {
	return &patternIndex{root: &patternNode{}}
}

// insert files e under its definition's source pattern. The pattern is
// assumed to have passed validatePattern.
func (x *patternIndex) insert(e *entry) {
	n := x.root
	segs := strings.Split(e.def.Source, ":")
	for i, seg := range segs {
		if seg == "*" && i == len(segs)-1 {
			n.wild = append(n.wild, e)
			return
		}
		child, ok := n.children[seg]
		if !ok {
			if n.children == nil {
				n.children = make(map[string]*patternNode)
			}
			child = &patternNode{}
			n.children[seg] = child
		}
		n = child
	}
	n.exact = append(n.exact, e)
}

// match collects every entry whose pattern matches the event name. The
// result interleaves exact and wildcard hits in trie order; callers sort
// by registration sequence before use.
func (x *patternIndex) match(name string) []*entry {
	var out []*entry
	n := x.root
	segs := strings.Split(name, ":")
	for _, seg := range segs {
		if len(n.wild) > 0 {
			out = append(out, n.wild...)
		}
		child, ok := n.children[seg]
		if !ok {
			return out
		}
		n = child
	}
	return append(out, n.exact...)
}
