package readfiles

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gorefine/mesh"
	"github.com/notargets/gorefine/tree"
)

var quadInput = `%
% Two unit squares side by side, periodic in x
%
NDIME= 2
NELEM= 2
9 0 1 4 3 0
9 1 2 5 4 1
NPOIN= 6
0 0 0
1 0 1
2 0 2
0 1 3
1 1 4
2 1 5
NMARK= 4
MARKER_TAG= periodic-left
MARKER_ELEMS= 1
3 3 0
MARKER_TAG= periodic-right
MARKER_ELEMS= 1
3 2 5
MARKER_TAG= top
MARKER_ELEMS= 2
3 5 4
3 4 3
MARKER_TAG= bottom
MARKER_ELEMS= 2
3 0 1
3 1 2`

var hexInput = `NDIME= 3
NELEM= 1
12 0 1 2 3 4 5 6 7 0
NPOIN= 8
0 0 0
1 0 0
1 1 0
0 1 0
0 0 1
1 0 1
1 1 1
0 1 1
NMARK= 2
MARKER_TAG= periodic-back
MARKER_ELEMS= 1
9 0 3 2 1
MARKER_TAG= periodic-front
MARKER_ELEMS= 1
9 4 5 6 7
`

func TestReadSU2Structure(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader(quadInput))
	dim, err := readNumber(reader, "NDIME")
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
	nelem, err := readNumber(reader, "NELEM")
	require.NoError(t, err)
	assert.Equal(t, 2, nelem)
	nType, verts, err := readConnectivity(reader, 4)
	require.NoError(t, err)
	assert.Equal(t, ELType_Quadrilateral, nType)
	// The trailing element index is returned with the vertices
	assert.Equal(t, []int{0, 1, 4, 3, 0}, verts)
	_, err = readNumber(reader, "NELEM")
	assert.Error(t, err)
}

func TestParseSU2Quad(t *testing.T) {
	g, err := ParseSU2(strings.NewReader(quadInput))
	require.NoError(t, err)
	assert.Equal(t, tree.Quad, g.Kind)
	assert.Equal(t, [][]int{{0, 1, 3, 4}, {1, 2, 4, 5}}, g.Macro.Elements)
	assert.Equal(t, []float64{2, 1}, g.Macro.Coords[5])
	assert.Equal(t, []string{"bottom", "periodic-left", "periodic-right", "top"}, g.MarkerNames())
	assert.Equal(t, []BoundaryFace{{1, tree.N}, {0, tree.N}}, g.Markers["top"])
	assert.Equal(t, []mesh.PeriodicPair{
		{A: 0, DA: tree.W, B: 1, DB: tree.E, Match: map[int]int{2: 0, 5: 3}},
	}, g.Macro.Periodic)

	m, err := mesh.New(g.Kind, g.Macro, mesh.Config{})
	require.NoError(t, err)
	assert.Equal(t, 4, m.NNodes())
}

func TestParseSU2PeriodicRotated(t *testing.T) {
	// The second square starts its corner list at (2,0), so its local frame is turned
	// a quarter turn against the first and its periodic face is S rather than E
	input := strings.Replace(quadInput, "9 1 2 5 4 1", "9 2 5 4 1 1", 1)
	g, err := ParseSU2(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 1, 4}, g.Macro.Elements[1])
	assert.Equal(t, []mesh.PeriodicPair{
		{A: 0, DA: tree.W, B: 1, DB: tree.S, Match: map[int]int{2: 0, 5: 3}},
	}, g.Macro.Periodic)

	m, err := mesh.New(g.Kind, g.Macro, mesh.Config{})
	require.NoError(t, err)
	assert.Equal(t, 4, m.NNodes())
	assert.True(t, m.Forest().Root(0).IsPeriodic(tree.W))
	require.NoError(t, m.RefineUniformly())
	// 5x3 lattice folded in x
	assert.Equal(t, 12, m.NNodes())
	assert.Equal(t, 0, m.NHanging())

	// The refined son sits in the corner at x=2, y=0, next to the first square across the periodic face
	require.NoError(t, m.Refine([]*tree.Tree{m.Forest().Root(1).Tree().Son(tree.SW)}))
	assert.Equal(t, 3, m.NHanging())
	ms, hanging := m.IsHanging(findNode(t, m, 2, 0.25))
	require.True(t, hanging)
	require.Len(t, ms, 2)
	for _, mst := range ms {
		assert.InDelta(t, 0.5, mst.Weight, 1.e-14)
		assert.InDelta(t, 0., m.Nodes()[mst.Node].X[0], 1.e-12)
	}
}

func findNode(t *testing.T, m *mesh.Mesh, x ...float64) int {
	g, ok := m.FindNode(x, 1.e-12)
	require.True(t, ok, "no node at %v", x)
	return g
}

func TestParseSU2Hex(t *testing.T) {
	g, err := ParseSU2(strings.NewReader(hexInput))
	require.NoError(t, err)
	assert.Equal(t, tree.Oct, g.Kind)
	assert.Equal(t, [][]int{{0, 1, 3, 2, 4, 5, 7, 6}}, g.Macro.Elements)
	assert.Equal(t, []mesh.PeriodicPair{
		{A: 0, DA: tree.B, B: 0, DB: tree.F, Match: map[int]int{4: 0, 5: 1, 6: 2, 7: 3}},
	}, g.Macro.Periodic)

	m, err := mesh.New(g.Kind, g.Macro, mesh.Config{})
	require.NoError(t, err)
	assert.Equal(t, 4, m.NNodes())
	require.NoError(t, m.RefineUniformly())
	// 3x3x3 lattice folded in z
	assert.Equal(t, 18, m.NNodes())
	assert.Equal(t, 0, m.NHanging())
}

func TestReadSU2File(t *testing.T) {
	name := filepath.Join(t.TempDir(), "grid.su2")
	require.NoError(t, os.WriteFile(name, []byte(hexInput), 0644))
	g, err := ReadSU2(name, false)
	require.NoError(t, err)
	assert.Equal(t, 8, len(g.Macro.Coords))
	_, err = ReadSU2(filepath.Join(t.TempDir(), "missing.su2"), false)
	assert.Error(t, err)
}

func TestParseSU2Errors(t *testing.T) {
	for name, input := range map[string]string{
		"triangles":      "NDIME= 2\nNELEM= 1\n5 0 1 2\n",
		"missing equals": "NDIME 2\n",
		"wrong key":      "NDIME= 2\nNPOIN= 1\n",
		"one dimension":  "NDIME= 1\n",
		"short element":  "NDIME= 2\nNELEM= 1\n9 0 1 2\n",
		"early end":      "NDIME= 2\nNELEM= 2\n9 0 1 2 3\n",
		"bad coordinate": "NDIME= 2\nNELEM= 1\n9 0 1 2 3\nNPOIN= 4\n0 0\n1 x\n",
		"unknown face":   strings.Replace(quadInput, "3 3 0", "3 3 1", 1),
		"unpaired":       strings.Replace(quadInput, "periodic-right", "right", 1),
	} {
		_, err := ParseSU2(strings.NewReader(input))
		assert.Error(t, err, name)
	}
}

func TestParseSU2PeriodicTranslation(t *testing.T) {
	input := `NDIME= 2
NELEM= 2
9 0 1 3 2
9 2 3 5 4
NPOIN= 6
0 0
1 0
0 1
1 1
0 2
1 2
NMARK= 2
MARKER_TAG= periodic-left
MARKER_ELEMS= 2
3 0 2
3 2 4
MARKER_TAG= periodic-right
MARKER_ELEMS= 2
3 3 5
3 1 3
`
	// Paired in the wrong order the two faces are shifted by different amounts
	_, err := ParseSU2(strings.NewReader(input))
	assert.Error(t, err)

	g, err := ParseSU2(strings.NewReader(strings.Replace(input, "3 3 5\n3 1 3", "3 1 3\n3 3 5", 1)))
	require.NoError(t, err)
	assert.Equal(t, []mesh.PeriodicPair{
		{A: 0, DA: tree.W, B: 0, DB: tree.E, Match: map[int]int{1: 0, 3: 2}},
		{A: 1, DA: tree.W, B: 1, DB: tree.E, Match: map[int]int{3: 2, 5: 4}},
	}, g.Macro.Periodic)
}
