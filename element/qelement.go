package element

import (
	"fmt"
	"math"

	"github.com/notargets/gorefine/tree"
)

/*
QBasis is the tensor product Lagrange basis of a quadrilateral (Dim 2) or hexahedral
(Dim 3) element with NNode1D equispaced nodes per direction. Local node j has
per-axis index (j % NNode1D, (j / NNode1D) % NNode1D, ...), x running fastest.
*/
type QBasis struct {
	Dim, NNode1D, NNode int
	B1D                 *LagrangeBasis1D
}

func NewQBasis(dim, nnode1d int) (qb *QBasis) {
	if dim != 2 && dim != 3 {
		panic(fmt.Errorf("Q elements are 2D or 3D, have dimension %d", dim))
	}
	qb = &QBasis{
		Dim:     dim,
		NNode1D: nnode1d,
		NNode:   1,
		B1D:     NewLagrangeBasis1D(EquispacedNodes(nnode1d)),
	}
	for a := 0; a < dim; a++ {
		qb.NNode *= nnode1d
	}
	return
}

func (qb *QBasis) NodeIndex(ijk []int) (j int) {
	for a := qb.Dim - 1; a >= 0; a-- {
		j = j*qb.NNode1D + ijk[a]
	}
	return
}

func (qb *QBasis) NodeIJK(j int) (ijk []int) {
	ijk = make([]int, qb.Dim)
	for a := 0; a < qb.Dim; a++ {
		ijk[a] = j % qb.NNode1D
		j /= qb.NNode1D
	}
	return
}

// NodeCoords returns the local coordinates of node j
func (qb *QBasis) NodeCoords(j int) (s []float64) {
	ijk := qb.NodeIJK(j)
	s = make([]float64, qb.Dim)
	for a, i := range ijk {
		s[a] = qb.B1D.Nodes[i]
	}
	return
}

// Shape evaluates every shape function at local coordinates s
func (qb *QBasis) Shape(s []float64) (psi []float64) {
	var (
		psi1 = make([][]float64, qb.Dim)
	)
	for a := 0; a < qb.Dim; a++ {
		psi1[a] = qb.B1D.Evaluate(s[a])
	}
	psi = make([]float64, qb.NNode)
	for j := range psi {
		psi[j] = 1
		for a, i := range qb.NodeIJK(j) {
			psi[j] *= psi1[a][i]
		}
	}
	return
}

// FaceNodes returns the nodes lying on face d, the first tangential axis running fastest
func (qb *QBasis) FaceNodes(d tree.Direction) (nodes []int) {
	var (
		a   = d.Axis()
		end = 0
	)
	if d.Positive() {
		end = qb.NNode1D - 1
	}
	for j := 0; j < qb.NNode; j++ {
		if qb.NodeIJK(j)[a] == end {
			nodes = append(nodes, j)
		}
	}
	return
}

// NodeAt returns the node located at local coordinates s, if there is one within tol
func (qb *QBasis) NodeAt(s []float64, tol float64) (j int, ok bool) {
	var (
		ijk = make([]int, qb.Dim)
		h   = 2 / float64(qb.NNode1D-1)
	)
	for a := 0; a < qb.Dim; a++ {
		f := (s[a] + 1) / h
		i := int(f + 0.5)
		if f < -0.5 || i >= qb.NNode1D || math.Abs(f-float64(i))*h > tol {
			return -1, false
		}
		ijk[a] = i
	}
	return qb.NodeIndex(ijk), true
}

/*
QElement is the refineable element carried by every node of a refinement tree. Its
geometry is the multilinear map of the root's physical corners, so sons inherit the
corners and differ only in where they sit in the root's local frame.
*/
type QElement struct {
	Basis   *QBasis
	Corners [][]float64 // physical corners of the root, son type order
	NodeIDs []int       // global node number of every local node, set by the mesh
	tree    *tree.Tree
	release func(e *QElement)
}

var (
	_ tree.Object     = (*QElement)(nil)
	_ tree.Releaser   = (*QElement)(nil)
	_ tree.Positioner = (*QElement)(nil)
)

func NewQElement(basis *QBasis, corners [][]float64) (e *QElement) {
	if len(corners) != 1<<uint(basis.Dim) {
		panic(fmt.Errorf("a %dD Q element has %d corners, have %d", basis.Dim, 1<<uint(basis.Dim), len(corners)))
	}
	for _, c := range corners {
		if len(c) != basis.Dim {
			panic(fmt.Errorf("corner %v does not have %d coordinates", c, basis.Dim))
		}
	}
	e = &QElement{Basis: basis, Corners: corners}
	return
}

// OnRelease registers fn to be called when the element's tree node is destroyed
func (e *QElement) OnRelease(fn func(e *QElement)) { e.release = fn }

func (e *QElement) SetTree(t *tree.Tree) { e.tree = t }
func (e *QElement) Tree() *tree.Tree     { return e.tree }

func (e *QElement) Release() {
	if e.release != nil {
		e.release(e)
	}
	e.tree = nil
	e.NodeIDs = nil
}

// Position maps local coordinates s to physical coordinates
func (e *QElement) Position(s []float64) (x []float64) {
	var (
		r   = e.tree.LocalToRoot(s)
		dim = e.Basis.Dim
	)
	x = make([]float64, dim)
	for c, xc := range e.Corners {
		w := 1.
		for a := 0; a < dim; a++ {
			if (c>>uint(a))&1 == 1 {
				w *= 0.5 * (1 + r[a])
			} else {
				w *= 0.5 * (1 - r[a])
			}
		}
		for i := range x {
			x[i] += w * xc[i]
		}
	}
	return
}

func (e *QElement) NodePosition(j int) []float64 { return e.Position(e.Basis.NodeCoords(j)) }

// Interpolate evaluates the field with nodal values u at local coordinates s
func (e *QElement) Interpolate(u []float64, s []float64) (v float64) {
	for j, psi := range e.Basis.Shape(s) {
		v += psi * u[j]
	}
	return
}

// BuildSon is a tree.SonBuilder creating sons that share the father's basis, corners and release hook
func BuildSon(father *tree.Tree, _ tree.SonType) tree.Object {
	fe := father.Object().(*QElement)
	return &QElement{Basis: fe.Basis, Corners: fe.Corners, release: fe.release}
}
