package template

import "strconv"

// Scope is the data environment a single render sees: the triggering event's
// payload, the lineage fields of the current context, and the loop item when
// rendering inside a foreach iteration.
//
// Path roots resolve in a fixed order: "item" refers to the loop item when
// one is set, "_context" refers to the lineage fields, and every other root
// is looked up in Data. Mapping keys are never templated.
type Scope struct {
	Data    map[string]any
	Context map[string]any
	Item    any
	HasItem bool
}

// Resolve walks a dotted path through the scope. The boolean result reports
// whether every segment resolved; absent paths are not errors.
func (sc *Scope) Resolve(segs []string) (any, bool) {
	if sc == nil || len(segs) == 0 {
		return nil, false
	}
	switch segs[0] {
	case "item":
		if sc.HasItem {
			if len(segs) == 1 {
				return sc.Item, true
			}
			return resolveSegments(sc.Item, segs[1:])
		}
	case "_context":
		if sc.Context == nil {
			return nil, false
		}
		if len(segs) == 1 {
			return sc.Context, true
		}
		return resolveSegments(sc.Context, segs[1:])
	}
	if sc.Data == nil {
		return nil, false
	}
	return resolveSegments(sc.Data, segs)
}

// resolveSegments traverses nested maps and sequences. A "*" segment maps the
// remainder of the path over each element of a sequence, collecting the
// elements that resolve; elements missing the remainder are skipped rather
// than failing the whole traversal.
func resolveSegments(root any, segs []string) (any, bool) {
	cur := root
	for i, seg := range segs {
		if seg == "*" {
			sl, ok := cur.([]any)
			if !ok {
				return nil, false
			}
			rest := segs[i+1:]
			out := make([]any, 0, len(sl))
			for _, el := range sl {
				if len(rest) == 0 {
					out = append(out, el)
					continue
				}
				if v, ok := resolveSegments(el, rest); ok {
					out = append(out, v)
				}
			}
			return out, true
		}
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			n, err := strconv.Atoi(seg)
			if err != nil || n < 0 || n >= len(c) {
				return nil, false
			}
			cur = c[n]
		default:
			return nil, false
		}
	}
	return cur, true
}
