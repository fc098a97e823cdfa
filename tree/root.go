package tree

import "fmt"

// link is one entry of a root's neighbour table
type link struct {
	root     *Root
	orient   Orientation
	periodic bool
}

// NeighbourTable is the capability of knowing the adjacent roots, held only by roots
type NeighbourTable interface {
	Neighbour(d Direction) *Root
	Orientation(d Direction) Orientation
	DirectionOfNeighbour(r *Root) Direction
}

var _ NeighbourTable = (*Root)(nil)

/*
Root is a coarsest tree node, one macro element of the forest. Besides the root Tree
it holds a neighbour table with one slot per face, recording the adjacent root, the
orientation relating the two local coordinate systems and whether the adjacency is
periodic. A root may be its own neighbour. The table is filled by NewForest and
ConnectPeriodic and is read-only afterwards.
*/
type Root struct {
	tree       *Tree
	index      int
	forest     *Forest
	vertices   []int // corner vertex ids, son type order
	neighbours [6]*link
}

func (r *Root) Tree() *Tree     { return r.tree }
func (r *Root) Index() int      { return r.index }
func (r *Root) Forest() *Forest { return r.forest }
func (r *Root) Kind() Kind      { return r.forest.kind }
func (r *Root) Object() Object  { return r.tree.Object() }
func (r *Root) String() string  { return fmt.Sprintf("root %d", r.index) }

func (r *Root) link(d Direction) *link {
	r.forest.kind.checkDirection(d)
	return r.neighbours[d]
}

// Neighbour returns the root adjacent across face d, or nil on the domain boundary
func (r *Root) Neighbour(d Direction) *Root {
	if lk := r.link(d); lk != nil {
		return lk.root
	}
	return nil
}

// Orientation returns the map from this root's frame onto its neighbour across d;
// the identity when there is no neighbour.
func (r *Root) Orientation(d Direction) Orientation {
	if lk := r.link(d); lk != nil {
		return lk.orient
	}
	return identityOrientation
}

func (r *Root) IsPeriodic(d Direction) bool {
	if lk := r.link(d); lk != nil {
		return lk.periodic
	}
	return false
}

// NorthEquivalent returns the direction of the neighbour across edge d that corresponds to this root's north
func (r *Root) NorthEquivalent(d Direction) Direction {
	r.mustBeKind(Quad, "NorthEquivalent")
	return r.Orientation(d).Direction(N)
}

// UpEquivalent returns the direction of the neighbour across face d that corresponds to this root's up
func (r *Root) UpEquivalent(d Direction) Direction {
	r.mustBeKind(Oct, "UpEquivalent")
	return r.Orientation(d).Direction(U)
}

// RightEquivalent returns the direction of the neighbour across face d that corresponds to this root's right
func (r *Root) RightEquivalent(d Direction) Direction {
	r.mustBeKind(Oct, "RightEquivalent")
	return r.Orientation(d).Direction(R)
}

func (r *Root) mustBeKind(k Kind, method string) {
	if r.forest.kind != k {
		panic(fmt.Errorf("tree: %s is only defined for %s roots, not %s", method, k, r.forest.kind))
	}
}

// DirectionOfNeighbour returns the direction in which other is adjacent to r, or OMEGA
func (r *Root) DirectionOfNeighbour(other *Root) Direction {
	var (
		order []Direction
	)
	if r.forest.kind == Quad {
		order = quadNeighbourOrder[:]
	} else {
		order = octNeighbourOrder[:]
	}
	for _, d := range order {
		if lk := r.neighbours[d]; lk != nil && lk.root == other {
			return d
		}
	}
	return OMEGA
}
