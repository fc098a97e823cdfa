package tree

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/notargets/gorefine/types"
	"github.com/notargets/gorefine/utils"
)

// RootSpec describes one macro element of a forest: the object it carries and the
// ids of its corner vertices, given in son type order (SW, SE, NW, NE for quads).
type RootSpec struct {
	Object   Object
	Vertices []int
}

/*
Forest is the ordered collection of roots making up a macro mesh. Adjacency between
roots is discovered once, at construction, by matching the vertex ids of root faces;
the relative orientation of adjacent roots is solved from the corner correspondence.
*/
type Forest struct {
	kind           Kind
	roots          []*Root
	tolerance      float64
	nSample        int
	parallelDegree int
	log            zerolog.Logger
}

type Option func(f *Forest)

// WithTolerance sets the maximum discrepancy accepted by the neighbour self test
func WithTolerance(tol float64) Option {
	return func(f *Forest) { f.tolerance = tol }
}

// WithSamples sets the number of points sampled along each face edge by the self test
func WithSamples(n int) Option {
	return func(f *Forest) { f.nSample = n }
}

// WithParallelDegree sets the number of goroutines used by read-only leaf loops.
// Zero runs them serially, which is the default, and a negative value uses all CPUs.
func WithParallelDegree(np int) Option {
	return func(f *Forest) {
		if np == 0 {
			np = 1
		}
		f.parallelDegree = np
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(f *Forest) { f.log = log }
}

type faceRef struct {
	root int
	dir  Direction
}

func NewForest(kind Kind, specs []RootSpec, opts ...Option) (f *Forest, err error) {
	kind.mustBeValid()
	f = &Forest{
		kind:           kind,
		tolerance:      utils.NODETOL,
		nSample:        5,
		parallelDegree: 1,
		log:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.nSample < 2 {
		err = fmt.Errorf("the self test needs at least 2 samples per edge, have %d", f.nSample)
		return nil, err
	}
	if len(specs) == 0 {
		err = fmt.Errorf("a forest needs at least one root")
		return nil, err
	}
	for i, spec := range specs {
		if err = f.checkSpec(i, spec); err != nil {
			return nil, err
		}
	}
	f.roots = make([]*Root, len(specs))
	for i, spec := range specs {
		r := &Root{index: i, forest: f, vertices: append([]int(nil), spec.Vertices...)}
		r.tree = newRootTree(kind, spec.Object, r)
		f.roots[i] = r
	}
	if err = f.findNeighbours(specs); err != nil {
		return nil, err
	}
	f.log.Debug().
		Str("kind", kind.String()).
		Int("roots", len(f.roots)).
		Int("links", f.countLinks()).
		Msg("forest constructed")
	return
}

func (f *Forest) checkSpec(i int, spec RootSpec) (err error) {
	if spec.Object == nil {
		err = fmt.Errorf("root %d has no object", i)
		return
	}
	if len(spec.Vertices) != f.kind.NSons() {
		err = fmt.Errorf("root %d has %d corner vertices, a %s root needs %d",
			i, len(spec.Vertices), f.kind, f.kind.NSons())
		return
	}
	seen := make(map[int]bool, len(spec.Vertices))
	for _, v := range spec.Vertices {
		if v < 0 {
			err = fmt.Errorf("root %d has a negative vertex id %d", i, v)
			return
		}
		if seen[v] {
			err = fmt.Errorf("root %d lists vertex %d more than once", i, v)
			return
		}
		seen[v] = true
	}
	return
}

func (f *Forest) faceKey(verts []int, d Direction) types.FaceKey {
	var (
		corners = f.kind.FaceCorners(d)
	)
	if f.kind == Quad {
		return types.NewEdgeFaceKey([2]int{verts[corners[0]], verts[corners[1]]})
	}
	return types.NewFaceKey([4]int{
		verts[corners[0]], verts[corners[1]], verts[corners[2]], verts[corners[3]]})
}

// findNeighbours connects every pair of roots sharing a face and solves their orientations
func (f *Forest) findNeighbours(specs []RootSpec) (err error) {
	var (
		nDir  = f.kind.NDirections()
		faces = make(map[types.FaceKey][]faceRef)
	)
	for i, spec := range specs {
		for d := Direction(0); int(d) < nDir; d++ {
			key := f.faceKey(spec.Vertices, d)
			faces[key] = append(faces[key], faceRef{i, d})
		}
	}
	for i, spec := range specs {
		for d := Direction(0); int(d) < nDir; d++ {
			refs := faces[f.faceKey(spec.Vertices, d)]
			switch len(refs) {
			case 1:
				continue
			case 2:
			default:
				err = fmt.Errorf("face %s of root %d is shared by %d roots",
					f.kind.DirectionString(d), i, len(refs))
				return
			}
			other := refs[0]
			if other.root == i && other.dir == d {
				other = refs[1]
			}
			var o Orientation
			if o, err = solveOrientation(f.kind, spec.Vertices, d, specs[other.root].Vertices, other.dir); err != nil {
				err = fmt.Errorf("root %d face %s against root %d face %s: %w",
					i, f.kind.DirectionString(d), other.root, f.kind.DirectionString(other.dir), err)
				return
			}
			f.roots[i].neighbours[d] = &link{root: f.roots[other.root], orient: o}
		}
	}
	return f.checkSymmetry()
}

// checkSymmetry verifies that every link is matched by its inverse on the neighbour's side
func (f *Forest) checkSymmetry() (err error) {
	for _, r := range f.roots {
		for d := Direction(0); int(d) < f.kind.NDirections(); d++ {
			lk := r.neighbours[d]
			if lk == nil {
				continue
			}
			back := lk.orient.Direction(d).Opposite()
			blk := lk.root.neighbours[back]
			if blk == nil || blk.root != r || blk.orient != lk.orient.Inverse() || blk.periodic != lk.periodic {
				err = fmt.Errorf("neighbour table of %s is not symmetric across face %s",
					r, f.kind.DirectionString(d))
				return
			}
		}
	}
	return
}

/*
ConnectPeriodic declares face da of root a and face db of root b to be the same face
of a periodic domain; a and b may be the same root. match maps each corner vertex id
of face db onto the id of the face da corner it is identified with, and the relative
orientation of the two roots is solved from it. A nil match identifies opposite faces
on the same local axis by a translation along that axis.
*/
func (f *Forest) ConnectPeriodic(a int, da Direction, b int, db Direction, match map[int]int) (err error) {
	f.kind.checkDirection(da)
	f.kind.checkDirection(db)
	if a < 0 || a >= len(f.roots) || b < 0 || b >= len(f.roots) {
		err = fmt.Errorf("periodic connection between roots %d and %d is out of range [0,%d)", a, b, len(f.roots))
		return
	}
	if a == b && da == db {
		err = fmt.Errorf("face %s of root %d cannot be periodic with itself", f.kind.DirectionString(da), a)
		return
	}
	ra, rb := f.roots[a], f.roots[b]
	if ra.neighbours[da] != nil || rb.neighbours[db] != nil {
		err = fmt.Errorf("root %d face %s or root %d face %s already has a neighbour",
			a, f.kind.DirectionString(da), b, f.kind.DirectionString(db))
		return
	}
	if match == nil {
		if da.Axis() != db.Axis() || da != db.Opposite() {
			err = fmt.Errorf("periodic faces without a vertex match must be opposite faces on the same axis, have %s and %s",
				f.kind.DirectionString(da), f.kind.DirectionString(db))
			return
		}
		match = make(map[int]int)
		for _, c := range f.kind.FaceCorners(db) {
			match[rb.vertices[c]] = ra.vertices[reflect(db, c)]
		}
	}
	// Rename the corners of face db after their partners so that both faces share ids
	vertsB := append([]int(nil), rb.vertices...)
	for _, c := range f.kind.FaceCorners(db) {
		v, ok := match[vertsB[c]]
		if !ok {
			err = fmt.Errorf("vertex %d of root %d face %s has no periodic partner",
				vertsB[c], b, f.kind.DirectionString(db))
			return
		}
		vertsB[c] = v
	}
	var o Orientation
	if o, err = solveOrientation(f.kind, ra.vertices, da, vertsB, db); err != nil {
		err = fmt.Errorf("periodic root %d face %s against root %d face %s: %w",
			a, f.kind.DirectionString(da), b, f.kind.DirectionString(db), err)
		return
	}
	ra.neighbours[da] = &link{root: rb, orient: o, periodic: true}
	rb.neighbours[db] = &link{root: ra, orient: o.Inverse(), periodic: true}
	f.log.Debug().Int("a", a).Str("da", f.kind.DirectionString(da)).
		Int("b", b).Str("db", f.kind.DirectionString(db)).
		Stringer("orientation", o).Msg("periodic link")
	return f.checkSymmetry()
}

func (f *Forest) countLinks() (n int) {
	for _, r := range f.roots {
		for _, lk := range r.neighbours {
			if lk != nil {
				n++
			}
		}
	}
	return
}

func (f *Forest) Kind() Kind             { return f.kind }
func (f *Forest) NRoots() int            { return len(f.roots) }
func (f *Forest) Root(i int) *Root       { return f.roots[i] }
func (f *Forest) Roots() []*Root         { return f.roots }
func (f *Forest) Tolerance() float64     { return f.tolerance }
func (f *Forest) Logger() zerolog.Logger { return f.log }

// Leaves returns every leaf of the forest, root by root in depth-first son order
func (f *Forest) Leaves() (leaves []*Tree) {
	for _, r := range f.roots {
		r.tree.TraverseLeaves(func(l *Tree) { leaves = append(leaves, l) })
	}
	return
}

func (f *Forest) AllNodes() (nodes []*Tree) {
	for _, r := range f.roots {
		nodes = append(nodes, r.tree.AllNodes()...)
	}
	return
}

// Destroy releases every tree of the forest; the forest must not be used afterwards
func (f *Forest) Destroy() {
	for _, r := range f.roots {
		if r.tree != nil && r.tree.root != nil {
			r.tree.destroy()
		}
		r.tree = nil
	}
}
