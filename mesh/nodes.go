package mesh

import (
	"github.com/notargets/gorefine/tree"
	"github.com/notargets/gorefine/utils"
)

// Node is a global mesh node shared by every leaf element that has it as a local node
type Node struct {
	X       []float64
	Hanging bool
}

// unionFind merges provisional node numbers; the smallest member of a set is its root
type unionFind struct {
	parent []int
}

func newUnionFind(n int) (uf *unionFind) {
	uf = &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	switch {
	case ra < rb:
		uf.parent[rb] = ra
	case rb < ra:
		uf.parent[ra] = rb
	}
}

// faceLink is a leaf face whose greater or equal neighbour is a leaf element
type faceLink struct {
	elem   int
	dir    tree.Direction
	nb     *tree.Neighbour
	nbElem int
}

// findFaceLinks collects the face neighbours of every leaf; the search is read only
// and runs over partitions of the leaves
func (m *Mesh) findFaceLinks(leaves []*tree.Tree, index map[*tree.Tree]int) (links []faceLink) {
	var (
		nDir   = m.kind.NDirections()
		perElm = make([][]faceLink, len(leaves))
		pm     = utils.NewPartitionMap(m.cfg.ParallelDegree, len(leaves))
	)
	pm.ParallelFor(func(_, kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			for d := tree.Direction(0); int(d) < nDir; d++ {
				nb, ok := leaves[k].GteqNeighbour(d)
				if !ok || !nb.Node.IsLeaf() {
					continue
				}
				perElm[k] = append(perElm[k], faceLink{elem: k, dir: d, nb: nb, nbElem: index[nb.Node]})
			}
		}
	})
	for _, l := range perElm {
		links = append(links, l...)
	}
	return
}

/*
numberNodes gives every local node of every leaf a global number. Face nodes that land
on a node of the neighbouring leaf are merged with it, which also ties together the
two sides of periodic links; whatever does not land on a neighbour node stays distinct.
*/
func (m *Mesh) numberNodes(links []faceLink) {
	var (
		nn    = m.basis.NNode
		uf    = newUnionFind(len(m.elements) * nn)
		ids   = make(map[int]int)
		tol   = m.cfg.Tolerance
		basis = m.basis
	)
	for _, fl := range links {
		for _, j := range basis.FaceNodes(fl.dir) {
			q := fl.nb.MapToNeighbour(basis.NodeCoords(j))
			if jn, ok := basis.NodeAt(q, tol); ok {
				uf.union(fl.elem*nn+j, fl.nbElem*nn+jn)
			}
		}
	}
	m.nodes = nil
	for k, e := range m.elements {
		e.NodeIDs = make([]int, nn)
		for j := 0; j < nn; j++ {
			r := uf.find(k*nn + j)
			id, ok := ids[r]
			if !ok {
				id = len(m.nodes)
				ids[r] = id
				m.nodes = append(m.nodes, Node{X: e.NodePosition(j)})
			}
			e.NodeIDs[j] = id
		}
	}
}
