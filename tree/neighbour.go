package tree

import (
	"fmt"
	"math"
)

/*
Neighbour describes the greater-or-equal sized node found across one face of a tree
node, together with the data needed to map points of the shared face between the
two local coordinate systems.

	Node               the neighbour; its level is never finer than the present node's
	DiffLevel          Node.Level() - present level, zero or negative
	Edge               the face of Node that touches the present node
	TranslateS         local axis i of the present node runs along axis TranslateS[i] of Node
	SLo, SHi           the present face's low and high corners in Node's local coordinates
	InNeighbouringTree the search crossed a root boundary, also for periodic self links
*/
type Neighbour struct {
	Node               *Tree
	DiffLevel          int
	Edge               Direction
	TranslateS         []int
	SLo, SHi           []float64
	InNeighbouringTree bool

	from     *Tree
	dir      Direction
	orient   Orientation
	periodic bool
}

func (nb *Neighbour) Direction() Direction { return nb.dir }
func (nb *Neighbour) From() *Tree          { return nb.from }
func (nb *Neighbour) IsPeriodic() bool     { return nb.periodic }

// Orientation is the map between the two roots, the identity within one tree
func (nb *Neighbour) Orientation() Orientation { return nb.orient }

/*
GteqNeighbour finds the node of greater or equal size adjacent to t across face d.
It ascends until a father contains the neighbour or a root boundary is reached,
crosses into the adjacent root when needed, and descends along the mirrored path
while the nodes stay no smaller than t. On the outer boundary ok is false.
*/
func (t *Tree) GteqNeighbour(d Direction) (nb *Neighbour, ok bool) {
	t.mustBeInitialised()
	t.kind.checkDirection(d)
	var (
		dim      = t.kind.Dim()
		path     []SonType
		cur      = t
		next     *Tree
		orient   = identityOrientation
		crossed  bool
		periodic bool
	)
	for next == nil {
		if cur.father == nil {
			lk := cur.root.neighbours[d]
			if lk == nil {
				return nil, false
			}
			next, orient, crossed, periodic = lk.root.tree, lk.orient, true, lk.periodic
			break
		}
		path = append(path, cur.sonType)
		if !isAdjacent(d, cur.sonType) {
			next = cur.father
			break
		}
		cur = cur.father
	}
	for i := len(path) - 1; i >= 0 && !next.IsLeaf(); i-- {
		next = next.sons[orient.SonType(reflect(d, path[i]), dim)]
	}
	nb = &Neighbour{
		Node:               next,
		DiffLevel:          next.level - t.level,
		Edge:               orient.Direction(d).Opposite(),
		TranslateS:         make([]int, dim),
		InNeighbouringTree: crossed,
		from:               t,
		dir:                d,
		orient:             orient,
		periodic:           periodic,
	}
	for i := range nb.TranslateS {
		nb.TranslateS[i] = orient.Perm[i]
	}
	lo, hi := t.faceBounds(d)
	nb.SLo, nb.SHi = nb.toNeighbour(lo), nb.toNeighbour(hi)
	return nb, true
}

// faceBounds returns the low and high corners of face d in t's local coordinates
func (t *Tree) faceBounds(d Direction) (lo, hi []float64) {
	dim := t.kind.Dim()
	lo, hi = make([]float64, dim), make([]float64, dim)
	for a := 0; a < dim; a++ {
		lo[a], hi[a] = -1, 1
	}
	lo[d.Axis()], hi[d.Axis()] = d.Sign(), d.Sign()
	return
}

// toNeighbour maps local coordinates of the present node into the neighbour's,
// going through the root frames of both
func (nb *Neighbour) toNeighbour(s []float64) []float64 {
	x := nb.from.LocalToRoot(s)
	if nb.InNeighbouringTree {
		x = nb.orient.crossFace(nb.dir, x)
	}
	return nb.Node.RootToLocal(x)
}

// fromNeighbour is the inverse of toNeighbour
func (nb *Neighbour) fromNeighbour(q []float64) []float64 {
	x := nb.Node.LocalToRoot(q)
	if nb.InNeighbouringTree {
		x = nb.orient.uncrossFace(nb.dir, x)
	}
	return nb.from.RootToLocal(x)
}

/*
MapToNeighbour maps a point s on the present node's face into the neighbour's local
coordinates by interpolating between SLo and SHi. Only the tangential coordinates of
s are used; the normal coordinate is taken to lie on the face.
*/
func (nb *Neighbour) MapToNeighbour(s []float64) (out []float64) {
	var (
		dim    = len(nb.SLo)
		normal = nb.dir.Axis()
	)
	if len(s) != dim {
		panic(fmt.Errorf("tree: point %v has %d coordinates, the face map needs %d", s, len(s), dim))
	}
	out = make([]float64, dim)
	copy(out, nb.SLo)
	for i := 0; i < dim; i++ {
		if i == normal {
			continue
		}
		j := nb.TranslateS[i]
		out[j] = nb.SLo[j] + 0.5*(s[i]+1)*(nb.SHi[j]-nb.SLo[j])
	}
	return
}

// LeafNeighbour is one leaf adjacent to a face, with the part of the face it covers
// given in the local coordinates of the node the face belongs to
type LeafNeighbour struct {
	Node   *Tree
	Lo, Hi []float64
}

/*
NeighbouringLeaves lists the leaves adjacent to t across face d. When the greater or
equal neighbour is a leaf it is the only entry; when it is the same size as t but
refined, its descendants touching the shared face are listed instead.
*/
func (t *Tree) NeighbouringLeaves(d Direction) (leaves []LeafNeighbour) {
	nb, ok := t.GteqNeighbour(d)
	if !ok {
		return
	}
	var (
		dim    = t.kind.Dim()
		normal = d.Axis()
	)
	nb.Node.collectFaceLeaves(nb.Edge, func(l *Tree) {
		llo, lhi := l.Box()
		var (
			a = nb.fromNeighbour(nb.Node.RootToLocal(llo))
			b = nb.fromNeighbour(nb.Node.RootToLocal(lhi))
			e = LeafNeighbour{Node: l, Lo: make([]float64, dim), Hi: make([]float64, dim)}
		)
		for i := 0; i < dim; i++ {
			e.Lo[i], e.Hi[i] = math.Min(a[i], b[i]), math.Max(a[i], b[i])
			if i == normal {
				e.Lo[i], e.Hi[i] = d.Sign(), d.Sign()
				continue
			}
			e.Lo[i], e.Hi[i] = math.Max(e.Lo[i], -1), math.Min(e.Hi[i], 1)
		}
		leaves = append(leaves, e)
	})
	return
}

func (t *Tree) collectFaceLeaves(face Direction, fn func(*Tree)) {
	if len(t.sons) == 0 {
		fn(t)
		return
	}
	for s, son := range t.sons {
		if isAdjacent(face, SonType(s)) {
			son.collectFaceLeaves(face, fn)
		}
	}
}
