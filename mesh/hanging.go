package mesh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gorefine/tree"
	"github.com/notargets/gorefine/utils"
)

// Master is one term of a hanging node constraint: the hanging value is the sum of Weight times
// the value at Node over all of its masters
type Master struct {
	Node   int
	Weight float64
}

// weights below this are dropped from constraints
const weightCutoff = 1.e-14

/*
resolveHanging finds the hanging nodes and their masters. A node is hanging when it
lies on a leaf face whose neighbour is a coarser leaf and it does not coincide with
a node of that neighbour. Masters that are themselves hanging are replaced by their
own masters until only independent nodes remain.
*/
func (m *Mesh) resolveHanging(links []faceLink) (err error) {
	var (
		basis  = m.basis
		tol    = m.cfg.Tolerance
		direct = make(map[int][]Master)
	)
	for _, fl := range links {
		if fl.nb.DiffLevel >= 0 {
			continue
		}
		var (
			fine   = basis.FaceNodes(fl.dir)
			coarse = basis.FaceNodes(fl.nb.Edge)
			W      [][]float64
			me     = m.elements[fl.elem]
			nbe    = m.elements[fl.nbElem]
		)
		for fi, j := range fine {
			q := fl.nb.MapToNeighbour(basis.NodeCoords(j))
			if _, ok := basis.NodeAt(q, tol); ok {
				continue
			}
			g := me.NodeIDs[j]
			if _, done := direct[g]; done {
				continue
			}
			if W == nil {
				if W, err = m.faceWeights(fl, fine, coarse); err != nil {
					return
				}
			}
			acc := make(map[int]float64)
			for ci, c := range coarse {
				acc[nbe.NodeIDs[c]] += W[fi][ci]
			}
			if _, self := acc[g]; self {
				err = fmt.Errorf("hanging node %d at %v is its own master across face %s of element %d",
					g, m.nodes[g].X, m.kind.DirectionString(fl.dir), fl.elem)
				return
			}
			direct[g] = sortedMasters(acc)
		}
	}
	m.hanging, err = resolveChains(direct)
	for g := range m.nodes {
		_, m.nodes[g].Hanging = m.hanging[g]
	}
	return
}

func sortedMasters(acc map[int]float64) (ms []Master) {
	for n, w := range acc {
		if math.Abs(w) > weightCutoff {
			ms = append(ms, Master{Node: n, Weight: w})
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].Node < ms[j].Node })
	return
}

// resolveChains substitutes hanging masters by their own masters
func resolveChains(direct map[int][]Master) (resolved map[int][]Master, err error) {
	const (
		visiting = 1
		done     = 2
	)
	var (
		state = make(map[int]int)
		keys  = make([]int, 0, len(direct))
		visit func(g int) ([]Master, error)
	)
	resolved = make(map[int][]Master, len(direct))
	visit = func(g int) (ms []Master, err error) {
		switch state[g] {
		case done:
			return resolved[g], nil
		case visiting:
			return nil, fmt.Errorf("hanging node %d depends on itself through its masters", g)
		}
		state[g] = visiting
		acc := make(map[int]float64)
		for _, mst := range direct[g] {
			if _, hangs := direct[mst.Node]; !hangs {
				acc[mst.Node] += mst.Weight
				continue
			}
			var sub []Master
			if sub, err = visit(mst.Node); err != nil {
				return
			}
			for _, s := range sub {
				acc[s.Node] += mst.Weight * s.Weight
			}
		}
		ms = sortedMasters(acc)
		resolved[g] = ms
		state[g] = done
		return
	}
	for g := range direct {
		keys = append(keys, g)
	}
	sort.Ints(keys)
	for _, g := range keys {
		if _, err = visit(g); err != nil {
			return
		}
	}
	return
}

/*
faceWeights returns, for every node of the fine face, the weights of the coarse face
nodes. Under the Conforming policy they are the coarse shape functions at the node;
under the Mortar policy they are the rows of M^-1 B, with M the fine face mass matrix
and B the mixed fine/coarse face mass matrix, integrated by Gauss-Legendre quadrature.
*/
func (m *Mesh) faceWeights(fl faceLink, fine, coarse []int) (W [][]float64, err error) {
	var (
		basis = m.basis
	)
	W = make([][]float64, len(fine))
	switch m.cfg.Policy {
	case Conforming:
		for fi, j := range fine {
			psi := basis.Shape(fl.nb.MapToNeighbour(basis.NodeCoords(j)))
			W[fi] = make([]float64, len(coarse))
			for ci, c := range coarse {
				W[fi][ci] = psi[c]
			}
		}
	case Mortar:
		var (
			nf, nc = len(fine), len(coarse)
			M      = mat.NewDense(nf, nf, nil)
			B      = mat.NewDense(nf, nc, nil)
			X      mat.Dense
		)
		for _, qp := range m.faceQuadrature(fl.dir) {
			var (
				phi = basis.Shape(qp.s)
				psi = basis.Shape(fl.nb.MapToNeighbour(qp.s))
			)
			for i, fi := range fine {
				for j, fj := range fine {
					M.Set(i, j, M.At(i, j)+qp.w*phi[fi]*phi[fj])
				}
				for j, cj := range coarse {
					B.Set(i, j, B.At(i, j)+qp.w*phi[fi]*psi[cj])
				}
			}
		}
		if err = X.Solve(M, B); err != nil {
			err = fmt.Errorf("mortar projection on face %s of element %d: %w",
				m.kind.DirectionString(fl.dir), fl.elem, err)
			return
		}
		for i := range W {
			W[i] = mat.Row(nil, i, &X)
		}
	default:
		panic(fmt.Errorf("unknown hanging node policy %s", m.cfg.Policy))
	}
	return
}

type quadPoint struct {
	s []float64 // local coordinates on the face
	w float64
}

// faceQuadrature returns a tensor Gauss-Legendre rule on face d, exact for the
// products of two face shape functions
func (m *Mesh) faceQuadrature(d tree.Direction) (pts []quadPoint) {
	var (
		dim    = m.kind.Dim()
		nq     = m.basis.NNode1D + 1
		x      = make([]float64, nq)
		w      = make([]float64, nq)
		normal = d.Axis()
		idx    = make([]int, dim)
	)
	quad.Legendre{}.FixedLocations(x, w, -1, 1)
	for {
		qp := quadPoint{s: make([]float64, dim), w: 1}
		for a := 0; a < dim; a++ {
			if a == normal {
				qp.s[a] = d.Sign()
				continue
			}
			qp.s[a] = x[idx[a]]
			qp.w *= w[idx[a]]
		}
		pts = append(pts, qp)
		a := 0
		for ; a < dim; a++ {
			if a == normal {
				continue
			}
			if idx[a]++; idx[a] < nq {
				break
			}
			idx[a] = 0
		}
		if a == dim {
			return
		}
	}
}

// buildConstraints numbers the free nodes and assembles the constraint matrix
func (m *Mesh) buildConstraints() {
	m.free = make([]int, len(m.nodes))
	m.nFree = 0
	for g := range m.nodes {
		if m.nodes[g].Hanging {
			m.free[g] = -1
			continue
		}
		m.free[g] = m.nFree
		m.nFree++
	}
	C := utils.NewDOK(len(m.nodes), m.nFree)
	for g, f := range m.free {
		if f >= 0 {
			C.Set(g, f, 1)
			continue
		}
		for _, mst := range m.hanging[g] {
			C.Add(g, m.free[mst.Node], mst.Weight)
		}
	}
	C.SetReadOnly("Constraint")
	m.constraint = C.ToCSR()
}

// IsHanging returns the masters of node when it is hanging
func (m *Mesh) IsHanging(node int) (masters []Master, hanging bool) {
	m.checkNode(node)
	masters, hanging = m.hanging[node]
	return
}

// HangingNodes returns the hanging nodes in ascending order
func (m *Mesh) HangingNodes() (nodes []int) {
	for g := range m.nodes {
		if m.nodes[g].Hanging {
			nodes = append(nodes, g)
		}
	}
	return
}

func (m *Mesh) NHanging() int { return len(m.hanging) }
func (m *Mesh) NFree() int    { return m.nFree }

// FreeIndex returns the position of node among the independent unknowns
func (m *Mesh) FreeIndex(node int) (index int, free bool) {
	m.checkNode(node)
	index = m.free[node]
	return index, index >= 0
}

/*
ConstraintMatrix returns the NNodes x NFree matrix C expressing every node value in
terms of the independent unknowns, u = C u_free. A free node's row holds a single 1;
a hanging node's row holds its master weights.
*/
func (m *Mesh) ConstraintMatrix() utils.CSR {
	m.mustBeUsable()
	return m.constraint
}

// ApplyConstraints expands a vector of independent unknowns to all nodes
func (m *Mesh) ApplyConstraints(free []float64) []float64 {
	m.mustBeUsable()
	return m.constraint.MulVec(free)
}

// FreeValues picks the independent unknowns out of a vector over all nodes
func (m *Mesh) FreeValues(u []float64) (free []float64) {
	m.mustBeUsable()
	if len(u) != len(m.nodes) {
		panic(fmt.Errorf("have %d values for %d nodes", len(u), len(m.nodes)))
	}
	free = make([]float64, m.nFree)
	for g, f := range m.free {
		if f >= 0 {
			free[f] = u[g]
		}
	}
	return
}

func (m *Mesh) checkNode(node int) {
	m.mustBeUsable()
	if node < 0 || node >= len(m.nodes) {
		panic(fmt.Errorf("node %d out of range [0,%d)", node, len(m.nodes)))
	}
}
