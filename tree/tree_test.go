package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testElement is a minimal Object with a multilinear geometry taken from its root's corners
type testElement struct {
	tree     *Tree
	corners  [][]float64
	released *int
}

func (e *testElement) SetTree(t *Tree) { e.tree = t }

func (e *testElement) Release() {
	if e.released != nil {
		*e.released++
	}
}

func (e *testElement) Position(s []float64) (x []float64) {
	var (
		r   = e.tree.LocalToRoot(s)
		dim = len(r)
	)
	x = make([]float64, len(e.corners[0]))
	for c, xc := range e.corners {
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

func buildTestSon(father *Tree, _ SonType) Object {
	fe := father.Object().(*testElement)
	return &testElement{corners: fe.corners, released: fe.released}
}

// quadGrid lays out nx*ny unit squares, root j*nx+i at column i and row j
func quadGrid(nx, ny int, released *int) (specs []RootSpec) {
	vid := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			specs = append(specs, RootSpec{
				Object: &testElement{
					corners: [][]float64{
						{float64(i), float64(j)}, {float64(i + 1), float64(j)},
						{float64(i), float64(j + 1)}, {float64(i + 1), float64(j + 1)},
					},
					released: released,
				},
				Vertices: []int{vid(i, j), vid(i+1, j), vid(i, j+1), vid(i+1, j+1)},
			})
		}
	}
	return
}

// brickGrid lays out nx*ny*nz unit cubes
func brickGrid(nx, ny, nz int) (specs []RootSpec) {
	vid := func(i, j, k int) int { return (k*(ny+1)+j)*(nx+1) + i }
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				var (
					corners [][]float64
					verts   []int
				)
				for c := 0; c < 8; c++ {
					ci, cj, ck := i+c&1, j+(c>>1)&1, k+(c>>2)&1
					corners = append(corners, []float64{float64(ci), float64(cj), float64(ck)})
					verts = append(verts, vid(ci, cj, ck))
				}
				specs = append(specs, RootSpec{Object: &testElement{corners: corners}, Vertices: verts})
			}
		}
	}
	return
}

func TestTreeZeroValuePanics(t *testing.T) {
	var tr Tree
	assert.Panics(t, func() { tr.Level() })
	assert.Panics(t, func() { tr.Split(buildTestSon) })
	assert.Panics(t, func() { tr.GteqNeighbour(N) })
	var nilTree *Tree
	assert.Panics(t, func() { nilTree.IsLeaf() })
}

func TestTreeSplitMerge(t *testing.T) {
	var released int
	f, err := NewForest(Quad, quadGrid(1, 1, &released))
	require.NoError(t, err)
	root := f.Root(0).Tree()
	assert.True(t, root.IsLeaf())
	assert.True(t, root.IsRoot())
	assert.Equal(t, NoSon, root.SonType())
	assert.Equal(t, "0", root.Label())

	sons := root.Split(buildTestSon)
	require.Equal(t, 4, len(sons))
	assert.False(t, root.IsLeaf())
	for i, son := range sons {
		assert.Equal(t, 1, son.Level())
		assert.Equal(t, SonType(i), son.SonType())
		assert.Equal(t, root, son.Father())
		assert.Equal(t, f.Root(0), son.Root())
		assert.Equal(t, son, son.Object().(*testElement).tree)
	}
	assert.Panics(t, func() { root.Split(buildTestSon) })
	assert.Panics(t, func() { sons[0].Split(nil) })
	assert.Panics(t, func() {
		sons[0].Split(func(*Tree, SonType) Object { return nil })
	})

	grand := root.Son(SW).Split(buildTestSon)
	assert.Equal(t, "0/SW/NE", grand[NE].Label())
	assert.Equal(t, 7, len(root.Leaves()))
	assert.Equal(t, 9, len(root.AllNodes()))
	var fathers int
	root.TraverseAllButLeaves(func(*Tree) { fathers++ })
	assert.Equal(t, 2, fathers)

	// Merging releases the sons and grandsons, sons before fathers
	root.Merge()
	assert.Equal(t, 8, released)
	assert.True(t, root.IsLeaf())
	assert.Equal(t, 1, len(f.Leaves()))
	assert.Panics(t, func() { grand[0].Level() })
	assert.Panics(t, func() { root.Son(SW) })

	// Refine and unrefine again and the tree is the same
	root.Split(buildTestSon)
	assert.Equal(t, 4, len(f.Leaves()))
	root.Merge()
	assert.Equal(t, 1, len(f.Leaves()))
	assert.True(t, f.SelfTest().OK())

	assert.Panics(t, func() { root.Split(buildTestSon)[0].Destroy() })
	f.Destroy()
	assert.Equal(t, 8+4+4+1, released)
}

func TestTreeBoxAndLocalCoordinates(t *testing.T) {
	f, err := NewForest(Quad, quadGrid(1, 1, nil))
	require.NoError(t, err)
	root := f.Root(0).Tree()
	root.Split(buildTestSon)
	ne := root.Son(SW).Split(buildTestSon)[NE]
	lo, hi := ne.Box()
	assert.Equal(t, []float64{-0.5, -0.5}, lo)
	assert.Equal(t, []float64{0, 0}, hi)
	assert.Equal(t, []float64{-0.25, -0.5}, ne.LocalToRoot([]float64{0, -1}))
	assert.Equal(t, []float64{0, -1}, ne.RootToLocal([]float64{-0.25, -0.5}))
	// Physical position goes through the root frame
	assert.InDeltaSlice(t, []float64{0.375, 0.25}, ne.Object().(*testElement).Position([]float64{0, -1}), 1.e-15)
}

func TestDirectionAlgebra(t *testing.T) {
	assert.Equal(t, E, W.Opposite())
	assert.Equal(t, S, N.Opposite())
	assert.Equal(t, B, F.Opposite())
	assert.Equal(t, 1, N.Axis())
	assert.Equal(t, 2, F.Axis())
	assert.True(t, E.Positive())
	assert.False(t, S.Positive())
	assert.Equal(t, -1., W.Sign())

	assert.True(t, isAdjacent(N, NW))
	assert.True(t, isAdjacent(N, NE))
	assert.False(t, isAdjacent(N, SW))
	assert.True(t, isAdjacent(W, SW))
	assert.False(t, isAdjacent(W, SE))
	assert.True(t, isAdjacent(F, RUF))
	assert.False(t, isAdjacent(F, RUB))

	assert.Equal(t, SE, reflect(W, SW))
	assert.Equal(t, SW, reflect(E, SE))
	assert.Equal(t, NE, reflect(S, SE))
	assert.Equal(t, LUF, reflect(B, LUB))

	assert.Equal(t, "N", Quad.DirectionString(N))
	assert.Equal(t, "F", Oct.DirectionString(F))
	assert.Equal(t, "OMEGA", Quad.DirectionString(OMEGA))
	assert.Equal(t, "NE", Quad.SonTypeString(NE))
	assert.Equal(t, "LUF", Oct.SonTypeString(LUF))
	assert.Equal(t, "OMEGA", Oct.SonTypeString(NoSon))
	assert.Panics(t, func() { Quad.DirectionString(F) })
	assert.Panics(t, func() { Quad.SonTypeString(RUF) })

	d, err := Quad.ParseDirection("north")
	assert.NoError(t, err)
	assert.Equal(t, N, d)
	d, err = Oct.ParseDirection("B")
	assert.NoError(t, err)
	assert.Equal(t, B, d)
	_, err = Quad.ParseDirection("U")
	assert.Error(t, err)

	assert.Equal(t, []SonType{SE, NE}, Quad.FaceCorners(E))
	assert.Equal(t, []SonType{LDF, RDF, LUF, RUF}, Oct.FaceCorners(F))
	assert.Equal(t, []float64{1, -1, 1}, Oct.cornerCoords(RDF))
}

func TestOrientationAlgebra(t *testing.T) {
	// A quarter turn: my x runs along the neighbour's -y, my y along its x
	o := Orientation{Perm: [3]int{1, 0, 2}, Sign: [3]int{-1, 1, 1}}
	assert.Equal(t, S, o.Direction(E))
	assert.Equal(t, E, o.Direction(N))
	assert.Equal(t, o, o.Inverse().Inverse())
	inv := o.Inverse()
	for d := W; d <= N; d++ {
		assert.Equal(t, d, inv.Direction(o.Direction(d)))
	}
	for s := SW; s <= NE; s++ {
		assert.Equal(t, s, inv.SonType(o.SonType(s, 2), 2))
	}
	assert.Equal(t, SW, o.SonType(SE, 2))
	assert.Equal(t, NE, o.SonType(NW, 2))

	p := []float64{0.75, -0.25}
	q := o.crossFace(E, p)
	assert.Equal(t, []float64{-0.25, 1.25}, q)
	assert.Equal(t, p, o.uncrossFace(E, q))
	assert.True(t, identityOrientation.IsIdentity())
	assert.False(t, o.IsIdentity())
}

func TestSolveOrientation(t *testing.T) {
	// Root a is the unit square, root b the square to its right turned a quarter turn:
	// b's local x runs up, its local y runs to the left.
	var (
		a = []int{0, 1, 3, 4}
		b = []int{2, 5, 1, 4}
	)
	o, err := solveOrientation(Quad, a, E, b, N)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 0, 2}, o.Perm)
	assert.Equal(t, [3]int{-1, 1, 1}, o.Sign)
	back, err := solveOrientation(Quad, b, N, a, E)
	require.NoError(t, err)
	assert.Equal(t, o.Inverse(), back)

	// A mirrored neighbour is a reflection, not an error
	o, err = solveOrientation(Quad, []int{0, 1, 2, 3}, E, []int{3, 4, 1, 5}, W)
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, -1, 1}, o.Sign)

	// Octree faces whose corners are matched across a diagonal cannot be joined
	_, err = solveOrientation(Oct,
		[]int{0, 1, 2, 3, 4, 5, 6, 7}, R,
		[]int{1, 8, 5, 9, 7, 10, 3, 11}, L)
	assert.Error(t, err)
}
