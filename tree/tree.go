package tree

import (
	"fmt"
	"strings"
)

// Object is the finite element carried by a tree node. SetTree is called once,
// when the node that owns the object is created.
type Object interface {
	SetTree(t *Tree)
}

// Releaser is implemented by objects that hold resources which must be
// returned when their tree node is destroyed.
type Releaser interface {
	Release()
}

// SonBuilder creates the object for son sonType of father during Split
type SonBuilder func(father *Tree, sonType SonType) Object

/*
Tree is one node of a quadtree or octree: an element at one refinement level.
A node either has no sons (a leaf) or exactly Kind.NSons() sons, which it owns;
the father link is a back reference used for traversal only. Trees are created
by NewForest (roots) and by Split (sons), never directly.
*/
type Tree struct {
	kind    Kind
	object  Object
	father  *Tree
	sons    []*Tree
	sonType SonType
	level   int
	root    *Root
}

func newRootTree(kind Kind, object Object, root *Root) (t *Tree) {
	if object == nil {
		panic(fmt.Errorf("tree: root %d has no object", root.index))
	}
	t = &Tree{
		kind:    kind,
		object:  object,
		sonType: NoSon,
		root:    root,
	}
	object.SetTree(t)
	return
}

func (t *Tree) constructSon(object Object, sonType SonType) (son *Tree) {
	son = &Tree{
		kind:    t.kind,
		object:  object,
		father:  t,
		sonType: sonType,
		level:   t.level + 1,
		root:    t.root,
	}
	object.SetTree(son)
	return
}

func (t *Tree) mustBeInitialised() {
	if t == nil || t.root == nil {
		panic(fmt.Errorf("tree: use of an uninitialised Tree; trees are only created by NewForest and Split"))
	}
}

func (t *Tree) Kind() Kind        { t.mustBeInitialised(); return t.kind }
func (t *Tree) Object() Object    { t.mustBeInitialised(); return t.object }
func (t *Tree) Father() *Tree     { t.mustBeInitialised(); return t.father }
func (t *Tree) Level() int        { t.mustBeInitialised(); return t.level }
func (t *Tree) SonType() SonType  { t.mustBeInitialised(); return t.sonType }
func (t *Tree) Root() *Root       { t.mustBeInitialised(); return t.root }
func (t *Tree) NSons() int        { t.mustBeInitialised(); return len(t.sons) }
func (t *Tree) IsLeaf() bool      { t.mustBeInitialised(); return len(t.sons) == 0 }
func (t *Tree) IsRoot() bool      { t.mustBeInitialised(); return t.father == nil }

func (t *Tree) Son(s SonType) *Tree {
	t.mustBeInitialised()
	t.kind.checkSonType(s)
	if len(t.sons) == 0 {
		panic(fmt.Errorf("tree: %s is a leaf and has no son %s", t.Label(), t.kind.SonTypeString(s)))
	}
	return t.sons[s]
}

// Split turns a leaf into a father of Kind.NSons() new leaves, whose objects are created by build
func (t *Tree) Split(build SonBuilder) (sons []*Tree) {
	t.mustBeInitialised()
	if len(t.sons) != 0 {
		panic(fmt.Errorf("tree: cannot split %s, it is not a leaf", t.Label()))
	}
	if build == nil {
		panic(fmt.Errorf("tree: cannot split %s without a son builder", t.Label()))
	}
	sons = make([]*Tree, t.kind.NSons())
	for i := range sons {
		object := build(t, SonType(i))
		if object == nil {
			panic(fmt.Errorf("tree: son builder returned no object for son %s of %s",
				t.kind.SonTypeString(SonType(i)), t.Label()))
		}
		sons[i] = t.constructSon(object, SonType(i))
	}
	t.sons = sons
	return
}

// Merge destroys all descendants of t, turning it back into a leaf
func (t *Tree) Merge() {
	t.mustBeInitialised()
	for _, son := range t.sons {
		son.destroy()
	}
	t.sons = nil
}

// Destroy releases a root's whole tree, sons before fathers. Non-root nodes are
// destroyed through their father's Merge.
func (t *Tree) Destroy() {
	t.mustBeInitialised()
	if t.father != nil {
		panic(fmt.Errorf("tree: cannot destroy %s directly, merge its father instead", t.Label()))
	}
	t.destroy()
}

// destroy releases the subtree below and including t in post-order
func (t *Tree) destroy() {
	for _, son := range t.sons {
		son.destroy()
	}
	t.sons = nil
	if r, ok := t.object.(Releaser); ok {
		r.Release()
	}
	t.object = nil
	t.father = nil
	t.root = nil
}

// TraverseAll applies fn to t and all its descendants, fathers before sons
func (t *Tree) TraverseAll(fn func(*Tree)) {
	t.mustBeInitialised()
	fn(t)
	for _, son := range t.sons {
		son.TraverseAll(fn)
	}
}

// TraverseAllButLeaves applies fn to every node of the subtree that has sons
func (t *Tree) TraverseAllButLeaves(fn func(*Tree)) {
	t.mustBeInitialised()
	if len(t.sons) == 0 {
		return
	}
	fn(t)
	for _, son := range t.sons {
		son.TraverseAllButLeaves(fn)
	}
}

// TraverseLeaves applies fn to every leaf of the subtree
func (t *Tree) TraverseLeaves(fn func(*Tree)) {
	t.mustBeInitialised()
	if len(t.sons) == 0 {
		fn(t)
		return
	}
	for _, son := range t.sons {
		son.TraverseLeaves(fn)
	}
}

func (t *Tree) Leaves() (leaves []*Tree) {
	t.TraverseLeaves(func(l *Tree) { leaves = append(leaves, l) })
	return
}

func (t *Tree) AllNodes() (nodes []*Tree) {
	t.TraverseAll(func(n *Tree) { nodes = append(nodes, n) })
	return
}

// ancestor returns the ancestor of t (or t itself) at the given level
func (t *Tree) ancestor(level int) (a *Tree) {
	for a = t; a.level > level; a = a.father {
	}
	return
}

// path returns the son types leading from the root down to t
func (t *Tree) path() (p []SonType) {
	p = make([]SonType, t.level)
	for n := t; n.father != nil; n = n.father {
		p[n.level-1] = n.sonType
	}
	return
}

// Box returns the extent of t in the local coordinates of its root, each in [-1,1]
func (t *Tree) Box() (lo, hi []float64) {
	t.mustBeInitialised()
	var (
		dim = t.kind.Dim()
	)
	lo, hi = make([]float64, dim), make([]float64, dim)
	for a := 0; a < dim; a++ {
		lo[a], hi[a] = -1, 1
	}
	for _, st := range t.path() {
		for a := 0; a < dim; a++ {
			mid := 0.5 * (lo[a] + hi[a])
			if st.onPositiveSide(a) {
				lo[a] = mid
			} else {
				hi[a] = mid
			}
		}
	}
	return
}

// LocalToRoot maps local coordinates s of t onto the local coordinates of its root
func (t *Tree) LocalToRoot(s []float64) (x []float64) {
	lo, hi := t.Box()
	x = make([]float64, len(lo))
	for a := range x {
		x[a] = lo[a] + 0.5*(s[a]+1)*(hi[a]-lo[a])
	}
	return
}

// RootToLocal is the inverse of LocalToRoot
func (t *Tree) RootToLocal(x []float64) (s []float64) {
	lo, hi := t.Box()
	s = make([]float64, len(lo))
	for a := range s {
		s[a] = 2*(x[a]-lo[a])/(hi[a]-lo[a]) - 1
	}
	return
}

// Label identifies t by its root index followed by the son types leading down to it, e.g. "3/NE/SW"
func (t *Tree) Label() string {
	t.mustBeInitialised()
	var (
		sb strings.Builder
	)
	fmt.Fprintf(&sb, "%d", t.root.index)
	for _, st := range t.path() {
		sb.WriteString("/")
		sb.WriteString(t.kind.SonTypeString(st))
	}
	return sb.String()
}
