package readfiles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/notargets/gorefine/mesh"
	"github.com/notargets/gorefine/tree"
	"github.com/notargets/gorefine/types"
)

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_LINE          SU2ElementType = 3
	ELType_Triangle                     = 5
	ELType_Quadrilateral                = 9
	ELType_Tetrahedral                  = 10
	ELType_Hexahedral                   = 12
	ELType_Prism                        = 13
	ELType_Pyramid                      = 14
)

// SU2 lists quadrilateral and hexahedral vertices counter clockwise around each
// face, corners are numbered by son type
var (
	quadCornerOrder = []int{0, 1, 3, 2}
	hexCornerOrder  = []int{0, 1, 3, 2, 4, 5, 7, 6}
)

// Marker tags whose faces are identified with each other, matched in the order listed
var periodicMarkers = [][2]string{
	{"periodic-left", "periodic-right"},
	{"periodic-bottom", "periodic-top"},
	{"periodic-back", "periodic-front"},
}

// BoundaryFace is face Face of macro element Element
type BoundaryFace struct {
	Element int
	Face    tree.Direction
}

// Grid is a macro mesh read from an SU2 file together with its boundary markers
type Grid struct {
	Kind    tree.Kind
	Macro   mesh.MacroMesh
	Markers map[string][]BoundaryFace
}

func ReadSU2(filename string, verbose bool) (g *Grid, err error) {
	var (
		file *os.File
	)
	if verbose {
		fmt.Printf("Reading SU2 file named: %s\n", filename)
	}
	if file, err = os.Open(filename); err != nil {
		err = fmt.Errorf("unable to open file %s\n %w", filename, err)
		return
	}
	defer file.Close()
	if g, err = ParseSU2(file); err != nil {
		err = fmt.Errorf("%s: %w", filename, err)
		return
	}
	if verbose {
		fmt.Printf("Read %s grid with %d elements, %d vertices and %d markers\n",
			g.Kind, len(g.Macro.Elements), len(g.Macro.Coords), len(g.Markers))
	}
	return
}

// ParseSU2 reads an SU2 grid of quadrilaterals (NDIME=2) or hexahedra (NDIME=3)
func ParseSU2(r io.Reader) (g *Grid, err error) {
	var (
		reader = bufio.NewReader(r)
		dim    int
	)
	g = &Grid{}
	if dim, err = readNumber(reader, "NDIME"); err != nil {
		return nil, err
	}
	switch dim {
	case 2:
		g.Kind = tree.Quad
	case 3:
		g.Kind = tree.Oct
	default:
		return nil, fmt.Errorf("unable to deal with %d dimensional data", dim)
	}
	if g.Macro.Elements, err = readElements(reader, g.Kind); err != nil {
		return nil, err
	}
	if g.Macro.Coords, err = readVertices(reader, dim); err != nil {
		return nil, err
	}
	if g.Markers, err = readBCs(reader, g.Kind, g.Macro.Elements); err != nil {
		return nil, err
	}
	if g.Macro.Periodic, err = pairPeriodic(g.Kind, g.Macro, g.Markers); err != nil {
		return nil, err
	}
	return
}

func readElements(reader *bufio.Reader, kind tree.Kind) (EToV [][]int, err error) {
	var (
		K     int
		order = quadCornerOrder
		eType = SU2ElementType(ELType_Quadrilateral)
	)
	if kind == tree.Oct {
		order, eType = hexCornerOrder, ELType_Hexahedral
	}
	if K, err = readNumber(reader, "NELEM"); err != nil {
		return
	}
	EToV = make([][]int, K)
	for k := 0; k < K; k++ {
		var (
			nType int
			verts []int
		)
		if nType, verts, err = readConnectivity(reader, len(order)); err != nil {
			return
		}
		if SU2ElementType(nType) != eType {
			err = fmt.Errorf("element %d has SU2 type %d, a %s grid needs type %d", k, nType, kind, eType)
			return
		}
		EToV[k] = make([]int, len(order))
		for c, i := range order {
			EToV[k][c] = verts[i]
		}
	}
	return
}

func readVertices(reader *bufio.Reader, dim int) (coords [][]float64, err error) {
	var (
		Nv int
	)
	if Nv, err = readNumber(reader, "NPOIN"); err != nil {
		return
	}
	coords = make([][]float64, Nv)
	for i := 0; i < Nv; i++ {
		var line string
		if line, err = getLineNoComments(reader); err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) < dim {
			err = fmt.Errorf("unable to read %d coordinates from [%s]", dim, line)
			return
		}
		coords[i] = make([]float64, dim)
		for a := 0; a < dim; a++ {
			if coords[i][a], err = strconv.ParseFloat(fields[a], 64); err != nil {
				err = fmt.Errorf("unable to read coordinates from [%s]: %w", line, err)
				return
			}
		}
	}
	return
}

// readBCs locates every marker element on a face of the macro elements
func readBCs(reader *bufio.Reader, kind tree.Kind, EToV [][]int) (markers map[string][]BoundaryFace, err error) {
	var (
		NBCs      int
		nFaceVert = kind.NSons() / 2
		faceType  = SU2ElementType(ELType_LINE)
		faces     = make(map[types.FaceKey]BoundaryFace)
	)
	if kind == tree.Oct {
		faceType = ELType_Quadrilateral
	}
	for k, verts := range EToV {
		for d := tree.Direction(0); int(d) < kind.NDirections(); d++ {
			fv := make([]int, 0, nFaceVert)
			for _, c := range kind.FaceCorners(d) {
				fv = append(fv, verts[c])
			}
			faces[newFaceKey(fv)] = BoundaryFace{Element: k, Face: d}
		}
	}
	if NBCs, err = readNumber(reader, "NMARK"); err != nil {
		// Grids without markers end here
		if err == io.EOF {
			err = nil
		}
		return
	}
	markers = make(map[string][]BoundaryFace, NBCs)
	for n := 0; n < NBCs; n++ {
		var (
			label  string
			nEdges int
		)
		if label, err = readLabel(reader, "MARKER_TAG"); err != nil {
			return
		}
		if nEdges, err = readNumber(reader, "MARKER_ELEMS"); err != nil {
			return
		}
		for i := 0; i < nEdges; i++ {
			var (
				nType int
				verts []int
			)
			if nType, verts, err = readConnectivity(reader, nFaceVert); err != nil {
				return
			}
			if SU2ElementType(nType) != faceType {
				err = fmt.Errorf("marker %s has SU2 type %d, a %s grid needs type %d", label, nType, kind, faceType)
				return
			}
			bf, ok := faces[newFaceKey(verts[:nFaceVert])]
			if !ok {
				err = fmt.Errorf("marker %s face %v is not a face of any element", label, verts)
				return
			}
			// This will end up appending duplicate tagged BCs to a common slice
			markers[label] = append(markers[label], bf)
		}
	}
	return
}

func newFaceKey(verts []int) types.FaceKey {
	if len(verts) == 2 {
		return types.NewEdgeFaceKey([2]int{verts[0], verts[1]})
	}
	return types.NewFaceKey([4]int{verts[0], verts[1], verts[2], verts[3]})
}

/*
pairPeriodic identifies the k-th face of each periodic marker with the k-th face of
its partner. All faces of a pair must be separated by the same translation, which
also matches the vertices of each face with their partners.
*/
func pairPeriodic(kind tree.Kind, macro mesh.MacroMesh, markers map[string][]BoundaryFace) (pairs []mesh.PeriodicPair, err error) {
	for _, pm := range periodicMarkers {
		a, okA := markers[pm[0]]
		b, okB := markers[pm[1]]
		if !okA && !okB {
			continue
		}
		if len(a) != len(b) {
			err = fmt.Errorf("periodic markers %s and %s have %d and %d faces", pm[0], pm[1], len(a), len(b))
			return
		}
		var shift []float64
		for i := range a {
			ca := faceCentroid(kind, macro, a[i])
			cb := faceCentroid(kind, macro, b[i])
			for j := range ca {
				ca[j] = cb[j] - ca[j]
			}
			if shift == nil {
				shift = ca
			}
			if !sameShift(ca, shift) {
				err = fmt.Errorf("face %d of periodic marker %s is not a translation of its partner in %s",
					i, pm[0], pm[1])
				return
			}
			pp := mesh.PeriodicPair{A: a[i].Element, DA: a[i].Face, B: b[i].Element, DB: b[i].Face}
			if pp.Match, err = matchVertices(kind, macro, a[i], b[i], shift); err != nil {
				err = fmt.Errorf("face %d of periodic marker %s: %w", i, pm[0], err)
				return
			}
			pairs = append(pairs, pp)
		}
	}
	return
}

// matchVertices pairs every vertex of face fb with the vertex of face fa it lands on
// when moved back by shift
func matchVertices(kind tree.Kind, macro mesh.MacroMesh, fa, fb BoundaryFace, shift []float64) (match map[int]int, err error) {
	var (
		cornersA = kind.FaceCorners(fa.Face)
		cornersB = kind.FaceCorners(fb.Face)
	)
	match = make(map[int]int, len(cornersB))
	for _, cb := range cornersB {
		vb := macro.Elements[fb.Element][cb]
		found := false
		for _, ca := range cornersA {
			va := macro.Elements[fa.Element][ca]
			d := make([]float64, len(shift))
			for j := range d {
				d[j] = macro.Coords[vb][j] - macro.Coords[va][j]
			}
			if sameShift(d, shift) {
				match[vb], found = va, true
				break
			}
		}
		if !found {
			err = fmt.Errorf("vertex %d has no partner at a shift of %v", vb, shift)
			return
		}
	}
	return
}

func sameShift(d, shift []float64) bool {
	for j := range d {
		if math.Abs(d[j]-shift[j]) > 1.e-8*(1+math.Abs(shift[j])) {
			return false
		}
	}
	return true
}

func faceCentroid(kind tree.Kind, macro mesh.MacroMesh, bf BoundaryFace) (c []float64) {
	corners := kind.FaceCorners(bf.Face)
	c = make([]float64, kind.Dim())
	for _, corner := range corners {
		for j, x := range macro.Coords[macro.Elements[bf.Element][corner]] {
			c[j] += x / float64(len(corners))
		}
	}
	return
}

// MarkerNames returns the marker tags in sorted order
func (g *Grid) MarkerNames() (names []string) {
	for name := range g.Markers {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func readConnectivity(reader *bufio.Reader, nVerts int) (nType int, verts []int, err error) {
	var (
		line string
	)
	if line, err = getLineNoComments(reader); err != nil {
		return
	}
	fields := strings.Fields(line)
	if len(fields) < nVerts+1 {
		err = fmt.Errorf("unable to read %d vertices from [%s]", nVerts, line)
		return
	}
	if nType, err = strconv.Atoi(fields[0]); err != nil {
		err = fmt.Errorf("unable to read element type from [%s]: %w", line, err)
		return
	}
	// A trailing element index is allowed and ignored
	verts = make([]int, len(fields)-1)
	for i := range verts {
		if verts[i], err = strconv.Atoi(fields[i+1]); err != nil {
			err = fmt.Errorf("unable to read vertices from [%s]: %w", line, err)
			return
		}
	}
	return
}

func getToken(reader *bufio.Reader, key string) (token string, err error) {
	var (
		line string
	)
	if line, err = getLineNoComments(reader); err != nil {
		return
	}
	ind := strings.Index(line, "=")
	if ind < 0 {
		err = fmt.Errorf("badly formed input line [%s], should have an =", line)
		return
	}
	if name := strings.TrimSpace(line[:ind]); name != key {
		err = fmt.Errorf("expected %s, found [%s]", key, line)
		return
	}
	token = strings.TrimSpace(line[ind+1:])
	return
}

func readLabel(reader *bufio.Reader, key string) (label string, err error) {
	if label, err = getToken(reader, key); err != nil {
		return
	}
	if label == "" {
		err = fmt.Errorf("empty %s", key)
	}
	return
}

func readNumber(reader *bufio.Reader, key string) (num int, err error) {
	var (
		token string
	)
	if token, err = getToken(reader, key); err != nil {
		return
	}
	if num, err = strconv.Atoi(token); err != nil {
		err = fmt.Errorf("unable to read %s from token: [%s]", key, token)
	}
	return
}

// getLineNoComments skips blank lines and lines starting with %
func getLineNoComments(reader *bufio.Reader) (line string, err error) {
	for {
		if line, err = getLine(reader); err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if len(line) != 0 && !strings.HasPrefix(line, "%") {
			return
		}
	}
}

// getLine returns io.EOF only once the input is exhausted, a last line without a newline is returned
func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	if err == io.EOF && len(line) != 0 {
		err = nil
	}
	line = strings.TrimRight(line, "\r\n")
	return
}
