// Package scene implements the node hierarchy as an arena of nodes addressed
// by stable handles. Parent, sibling and child links are arena indexes, so the
// tree carries no pointer cycles and freed handles are recycled.
//
// Every walk is iterative; deep or wide trees never grow the call stack.
package scene

import (
	"fmt"

	"github.com/san-kum/particlesim/internal/registry"
)

// Handle addresses a node in a Tree.
type Handle int

// Nil is the absent handle.
const Nil Handle = -1

type node struct {
	payload any

	parent Handle
	prev   Handle
	next   Handle
	first  Handle
	last   Handle

	world Handle
	layer Handle

	subtreeChanged  bool
	childrenChanged bool

	// flat caches the last flatten of this node, always ending with the
	// node itself. It is valid only when neither subtreeChanged nor
	// flatStale is set.
	flat      []Handle
	flatStale bool
}

// Tree owns the node arena. Not safe for concurrent use.
type Tree struct {
	nodes  *registry.Store[node]
	walks  int
	climbs int

	// IgnoreErrors turns structural misuse into silent no-ops for
	// best-effort call sites.
	IgnoreErrors bool
}

func NewTree(capacity int) *Tree {
	return &Tree{nodes: registry.New[node](capacity)}
}

// New creates a detached node holding payload.
func (t *Tree) New(payload any) Handle {
	idx, _ := t.nodes.Add(node{
		payload:        payload,
		parent:         Nil,
		prev:           Nil,
		next:           Nil,
		first:          Nil,
		last:           Nil,
		world:          Nil,
		layer:          Nil,
		subtreeChanged: true,
	})
	h := Handle(idx)
	n := t.at(h)
	switch scopeOf(payload) {
	case ScopeWorld:
		n.world = h
	case ScopeLayer:
		n.layer = h
	}
	return h
}

// Len is the number of live nodes.
func (t *Tree) Len() int { return t.nodes.Len() }

// Exists reports whether h refers to a live node.
func (t *Tree) Exists(h Handle) bool { return t.nodes.Has(int(h)) }

func (t *Tree) at(h Handle) *node { return t.nodes.Ptr(int(h)) }

func (t *Tree) Payload(h Handle) any {
	if n := t.at(h); n != nil {
		return n.payload
	}
	return nil
}

func (t *Tree) Parent(h Handle) Handle { return t.link(h, func(n *node) Handle { return n.parent }) }
func (t *Tree) First(h Handle) Handle  { return t.link(h, func(n *node) Handle { return n.first }) }
func (t *Tree) Last(h Handle) Handle   { return t.link(h, func(n *node) Handle { return n.last }) }
func (t *Tree) Next(h Handle) Handle   { return t.link(h, func(n *node) Handle { return n.next }) }
func (t *Tree) Prev(h Handle) Handle   { return t.link(h, func(n *node) Handle { return n.prev }) }
func (t *Tree) World(h Handle) Handle  { return t.link(h, func(n *node) Handle { return n.world }) }
func (t *Tree) Layer(h Handle) Handle  { return t.link(h, func(n *node) Handle { return n.layer }) }

func (t *Tree) link(h Handle, get func(*node) Handle) Handle {
	if n := t.at(h); n != nil {
		return get(n)
	}
	return Nil
}

// SubtreeChanged reports whether anything below h changed since h was last
// flattened.
func (t *Tree) SubtreeChanged(h Handle) bool {
	n := t.at(h)
	return n != nil && n.subtreeChanged
}

// ChildrenChanged reports whether h's direct child list changed since h was
// last flattened.
func (t *Tree) ChildrenChanged(h Handle) bool {
	n := t.at(h)
	return n != nil && n.childrenChanged
}

// Children returns the direct children of h in sibling order.
func (t *Tree) Children(h Handle) []Handle {
	var out []Handle
	for c := t.First(h); c != Nil; c = t.Next(c) {
		out = append(out, c)
	}
	return out
}

// Add appends child as the last child of parent. A child that already has a
// parent is detached first.
func (t *Tree) Add(parent, child Handle) error {
	if !t.Exists(child) {
		return t.fail("add", child, ErrAbsentNode)
	}
	if !t.Exists(parent) {
		return t.fail("add", parent, ErrAbsentNode)
	}
	// A leaf can only close a cycle onto itself.
	if child == parent {
		return t.fail("add", child, ErrCycle)
	}
	if t.at(child).first != Nil {
		for a := t.at(parent).parent; a != Nil; a = t.at(a).parent {
			t.climbs++
			if a == child {
				return t.fail("add", child, ErrCycle)
			}
		}
	}

	if t.at(child).parent != Nil {
		t.unlink(child)
	}

	p := t.at(parent)
	c := t.at(child)
	c.parent = parent
	c.prev = p.last
	c.next = Nil
	if p.last != Nil {
		t.at(p.last).next = child
	} else {
		p.first = child
	}
	p.last = child

	p.childrenChanged = true
	t.markChanged(parent)
	t.parentChanged(child)
	return nil
}

// Remove detaches h from its parent and siblings. The node and its subtree
// stay alive with cleared world/layer references.
func (t *Tree) Remove(h Handle) error {
	n := t.at(h)
	if n == nil {
		return t.fail("remove", h, ErrAbsentNode)
	}
	if n.parent == Nil {
		return t.fail("remove", h, ErrNotAttached)
	}
	t.unlink(h)
	t.parentChanged(h)
	return nil
}

// Destroy releases h and its whole subtree. Children are cleared tail to head,
// deepest first, then h is detached and its handle freed.
func (t *Tree) Destroy(h Handle) error {
	if !t.Exists(h) {
		return t.fail("destroy", h, ErrAbsentNode)
	}

	cur := h
	for {
		// Descend along last children to the tail-most leaf.
		for t.at(cur).last != Nil {
			cur = t.at(cur).last
		}
		prev, parent := t.at(cur).prev, t.at(cur).parent
		if parent != Nil {
			t.unlink(cur)
		}
		t.nodes.Remove(int(cur))
		if cur == h {
			return nil
		}
		if prev != Nil {
			cur = prev
		} else {
			cur = parent
		}
	}
}

// unlink removes h from its parent's child list and marks the ancestor chain.
func (t *Tree) unlink(h Handle) {
	n := t.at(h)
	parent := n.parent
	p := t.at(parent)

	if n.prev != Nil {
		t.at(n.prev).next = n.next
	} else {
		p.first = n.next
	}
	if n.next != Nil {
		t.at(n.next).prev = n.prev
	} else {
		p.last = n.prev
	}

	n.parent, n.prev, n.next = Nil, Nil, Nil
	p.childrenChanged = true
	t.markChanged(parent)
}

// markChanged flags h and every ancestor. Once a flagged node is reached its
// ancestors are flagged already.
func (t *Tree) markChanged(h Handle) {
	for h != Nil {
		n := t.at(h)
		if n.subtreeChanged {
			return
		}
		n.subtreeChanged = true
		h = n.parent
	}
}

// parentChanged recomputes world/layer references for h and its subtree and
// notifies listeners, walking depth-first without recursion.
func (t *Tree) parentChanged(h Handle) {
	cur := h
	for {
		t.rescope(cur)
		if l, ok := t.at(cur).payload.(ParentListener); ok {
			l.ParentChanged(t, cur)
		}

		if first := t.at(cur).first; first != Nil {
			cur = first
			continue
		}
		for cur != h && t.at(cur).next == Nil {
			cur = t.at(cur).parent
		}
		if cur == h {
			return
		}
		cur = t.at(cur).next
	}
}

func (t *Tree) rescope(h Handle) {
	n := t.at(h)
	world, layer := Nil, Nil
	if n.parent != Nil {
		p := t.at(n.parent)
		world, layer = p.world, p.layer
	}
	switch scopeOf(n.payload) {
	case ScopeWorld:
		world = h
	case ScopeLayer:
		layer = h
	}
	n.world, n.layer = world, layer
}

// Flatten returns the subtree below h in dependency order: each node is
// appended after all of its descendants, siblings first to last. With
// includeSelf, h itself is appended last.
//
// The result is cached on h and rebuilt only after a mutation below h. The
// returned slice is owned by the tree and reused by the next rebuild.
func (t *Tree) Flatten(h Handle, includeSelf bool) []Handle {
	n := t.at(h)
	if n == nil {
		return nil
	}
	if !n.subtreeChanged && !n.flatStale {
		return flatView(n.flat, includeSelf)
	}

	t.walks++
	out := n.flat[:0]
	cur := n.first
walk:
	for cur != Nil {
		for t.at(cur).first != Nil {
			cur = t.at(cur).first
		}
		out = append(out, cur)
		for t.at(cur).next == Nil {
			cur = t.at(cur).parent
			if cur == h {
				break walk
			}
			out = append(out, cur)
		}
		cur = t.at(cur).next
	}
	out = append(out, h)

	// Descendants keep their own caches, which this walk does not refresh.
	// Clearing their change flags preserves the ancestor invariant.
	for _, d := range out {
		if d == h {
			continue
		}
		dn := t.at(d)
		if dn.subtreeChanged {
			dn.subtreeChanged = false
			dn.childrenChanged = false
			dn.flatStale = true
		}
	}

	n = t.at(h)
	n.flat = out
	n.flatStale = false
	n.subtreeChanged = false
	n.childrenChanged = false
	return flatView(out, includeSelf)
}

// flatView trims the trailing self entry. The capacity is cut too, so an
// append by the caller cannot overwrite it.
func flatView(flat []Handle, includeSelf bool) []Handle {
	if includeSelf {
		return flat
	}
	return flat[: len(flat)-1 : len(flat)-1]
}

// Startup calls Startup on every payload below and including h that
// implements Starter, children before parents.
func (t *Tree) Startup(h Handle) error { return t.startup(h, true) }

// StartupBelow is Startup without h itself. Roots whose payload drives the
// cascade use it.
func (t *Tree) StartupBelow(h Handle) error { return t.startup(h, false) }

func (t *Tree) startup(h Handle, includeSelf bool) error {
	for _, d := range t.Flatten(h, includeSelf) {
		if s, ok := t.at(d).payload.(Starter); ok {
			if err := s.Startup(); err != nil {
				return t.wrap("startup", d, err)
			}
		}
	}
	return nil
}

func (t *Tree) fail(op string, h Handle, err error) error {
	if t.IgnoreErrors {
		return nil
	}
	return t.wrap(op, h, err)
}

func (t *Tree) wrap(op string, h Handle, err error) error {
	ne := &NodeError{Op: op, Node: h, Layer: Nil, World: Nil, Type: "<nil>", Err: err}
	if n := t.at(h); n != nil {
		ne.Type = fmt.Sprintf("%T", n.payload)
		ne.Layer = n.layer
		ne.World = n.world
	}
	return ne
}
