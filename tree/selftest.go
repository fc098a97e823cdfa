package tree

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/notargets/gorefine/utils"
)

// Positioner is implemented by objects that know the physical position of a point
// given in their local coordinates
type Positioner interface {
	Position(s []float64) []float64
}

/*
NeighbourReport summarises a neighbour self test. MaxError is the largest
discrepancy found between matching boundary points of a node and its neighbour,
measured in root-local coordinates, on the neighbour's face and, where both objects
are Positioners and the link is not periodic, in physical coordinates.
*/
type NeighbourReport struct {
	MaxError   float64
	Worst      string // pair that produced MaxError
	NPairs     int
	Asymmetric []string
	Tolerance  float64
}

func (r NeighbourReport) OK() bool {
	return r.MaxError <= r.Tolerance && len(r.Asymmetric) == 0
}

// Err returns a *GeometryError when the report fails, nil otherwise
func (r NeighbourReport) Err() error {
	if r.OK() {
		return nil
	}
	return &GeometryError{
		MaxError:   r.MaxError,
		Tolerance:  r.Tolerance,
		Worst:      r.Worst,
		Asymmetric: r.Asymmetric,
	}
}

func (r NeighbourReport) Print() { r.Fprint(os.Stdout) }

func (r NeighbourReport) Fprint(w io.Writer) {
	fmt.Fprintf(w, "Neighbour pairs checked = %d\n", r.NPairs)
	fprintDiscrepancies(w, r.MaxError, r.Tolerance, r.Worst, r.Asymmetric)
}

func fprintDiscrepancies(w io.Writer, maxError, tolerance float64, worst string, asymmetric []string) {
	fmt.Fprintf(w, "Max error = %8.3e (tolerance %8.3e)", maxError, tolerance)
	if worst != "" {
		fmt.Fprintf(w, " at %s", worst)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Asymmetric pairs = %d\n", len(asymmetric))
	for _, a := range asymmetric {
		fmt.Fprintf(w, "\t%s\n", a)
	}
}

// GeometryError reports a forest whose neighbour relationships are not geometrically consistent
type GeometryError struct {
	MaxError   float64
	Tolerance  float64
	Worst      string
	Asymmetric []string
}

func (e *GeometryError) Error() string {
	if len(e.Asymmetric) != 0 {
		return fmt.Sprintf("neighbour self test failed: %d asymmetric pairs, first %s",
			len(e.Asymmetric), e.Asymmetric[0])
	}
	return fmt.Sprintf("neighbour self test failed: max error %8.3e exceeds tolerance %8.3e at %s",
		e.MaxError, e.Tolerance, e.Worst)
}

// Fprint writes the discrepancies in the layout of NeighbourReport.Fprint
func (e *GeometryError) Fprint(w io.Writer) {
	fprintDiscrepancies(w, e.MaxError, e.Tolerance, e.Worst, e.Asymmetric)
}

// pairCheck is the outcome for one leaf and one face
type pairCheck struct {
	err       float64
	label     string
	symmetric bool
	line      string
}

// SelfTest checks the neighbours of every leaf below t
func (t *Tree) SelfTest() NeighbourReport {
	t.mustBeInitialised()
	rep, _ := t.root.forest.checkLeaves(t.Leaves(), nil)
	return rep
}

// SelfTest checks the neighbours of every leaf of the forest
func (f *Forest) SelfTest() NeighbourReport {
	rep, _ := f.checkLeaves(f.Leaves(), nil)
	return rep
}

/*
CheckAllNeighbours runs the self test and writes one line per leaf and face to w,
naming the neighbour, its face, the level difference and the discrepancy. Nothing is
written when w is nil. The returned error is the report's *GeometryError, or a write error.
*/
func (f *Forest) CheckAllNeighbours(w io.Writer) (rep NeighbourReport, err error) {
	var werr error
	rep, werr = f.checkLeaves(f.Leaves(), w)
	if err = rep.Err(); err == nil {
		err = werr
	}
	return
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err == nil {
		_, ew.err = fmt.Fprintf(ew.w, format, args...)
	}
}

func (f *Forest) checkLeaves(leaves []*Tree, w io.Writer) (rep NeighbourReport, werr error) {
	var (
		nDir    = f.kind.NDirections()
		results = make([][]pairCheck, len(leaves))
		pm      = utils.NewPartitionMap(f.parallelDegree, len(leaves))
	)
	rep.Tolerance = f.tolerance
	pm.ParallelFor(func(_, kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			for d := Direction(0); int(d) < nDir; d++ {
				if pc, ok := f.checkPair(leaves[k], d, w != nil); ok {
					results[k] = append(results[k], pc)
				}
			}
		}
	})
	var ew *errWriter
	if w != nil {
		ew = &errWriter{w: w}
	}
	// Ordered reduction, independent of the partitioning
	for _, checks := range results {
		for _, pc := range checks {
			rep.NPairs++
			if pc.err > rep.MaxError {
				rep.MaxError, rep.Worst = pc.err, pc.label
			}
			if !pc.symmetric {
				rep.Asymmetric = append(rep.Asymmetric, pc.label)
			}
			if ew != nil {
				ew.printf("%s\n", pc.line)
			}
		}
	}
	if ew != nil && ew.err != nil {
		werr = ew.err
		f.log.Error().Err(werr).Msg("writing neighbour documentation")
	}
	f.log.Debug().Int("pairs", rep.NPairs).Float64("maxError", rep.MaxError).
		Int("asymmetric", len(rep.Asymmetric)).Msg("neighbour self test")
	return
}

func (f *Forest) checkPair(leaf *Tree, d Direction, document bool) (pc pairCheck, ok bool) {
	var (
		nb *Neighbour
	)
	if nb, ok = leaf.GteqNeighbour(d); !ok {
		return
	}
	pc.label = fmt.Sprintf("%s:%s->%s:%s", leaf.Label(), f.kind.DirectionString(d),
		nb.Node.Label(), f.kind.DirectionString(nb.Edge))
	var (
		edgeAxis = nb.Edge.Axis()
		nbPos, _ = nb.Node.object.(Positioner)
		myPos, _ = leaf.object.(Positioner)
		physical = nbPos != nil && myPos != nil && !nb.periodic
	)
	for _, s := range f.facePoints(d) {
		q := nb.MapToNeighbour(s)
		// The mapped point must sit on the neighbour's face, inside the neighbour
		pc.err = math.Max(pc.err, math.Abs(q[edgeAxis]-nb.Edge.Sign()))
		for _, v := range q {
			pc.err = math.Max(pc.err, math.Abs(v)-1)
		}
		// Both nodes must agree on the point in the root frame
		x1 := leaf.LocalToRoot(s)
		x2 := nb.Node.LocalToRoot(q)
		if nb.InNeighbouringTree {
			x2 = nb.orient.uncrossFace(d, x2)
		}
		pc.err = math.Max(pc.err, maxAbsDiff(x1, x2))
		if physical {
			pc.err = math.Max(pc.err, maxAbsDiff(myPos.Position(s), nbPos.Position(q)))
		}
	}
	pc.symmetric = isSymmetric(leaf, d, nb)
	if document {
		pc.line = fmt.Sprintf("%-24s diff=%d crossed=%t periodic=%t err=%8.3e symmetric=%t",
			pc.label, nb.DiffLevel, nb.InNeighbouringTree, nb.periodic, pc.err, pc.symmetric)
	}
	return
}

// isSymmetric reports whether looking back from the neighbour across its face
// finds the ancestor of leaf at the neighbour's level
func isSymmetric(leaf *Tree, d Direction, nb *Neighbour) bool {
	back, ok := nb.Node.GteqNeighbour(nb.Edge)
	if !ok {
		return false
	}
	return back.Node == leaf.ancestor(nb.Node.level) && back.DiffLevel == 0 && back.Edge == d
}

// facePoints samples f.nSample points along every tangential axis of face d
func (f *Forest) facePoints(d Direction) (pts [][]float64) {
	var (
		dim    = f.kind.Dim()
		n      = f.nSample
		normal = d.Axis()
		idx    = make([]int, dim)
	)
	for {
		s := make([]float64, dim)
		for a := 0; a < dim; a++ {
			if a == normal {
				s[a] = d.Sign()
				continue
			}
			s[a] = -1 + 2*float64(idx[a])/float64(n-1)
		}
		pts = append(pts, s)
		a := 0
		for ; a < dim; a++ {
			if a == normal {
				continue
			}
			if idx[a]++; idx[a] < n {
				break
			}
			idx[a] = 0
		}
		if a == dim {
			return
		}
	}
}

func maxAbsDiff(a, b []float64) (m float64) {
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return
}

// NeighbourSummary formats the neighbours of t across every face, for debugging output
func (t *Tree) NeighbourSummary() string {
	t.mustBeInitialised()
	var (
		sb strings.Builder
	)
	fmt.Fprintf(&sb, "%s:", t.Label())
	for d := Direction(0); int(d) < t.kind.NDirections(); d++ {
		fmt.Fprintf(&sb, " %s=", t.kind.DirectionString(d))
		if nb, ok := t.GteqNeighbour(d); ok {
			fmt.Fprintf(&sb, "%s(%d)", nb.Node.Label(), nb.DiffLevel)
		} else {
			sb.WriteString("-")
		}
	}
	return sb.String()
}
