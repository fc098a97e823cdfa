package mesh

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog"

	"github.com/notargets/gorefine/element"
	"github.com/notargets/gorefine/tree"
	"github.com/notargets/gorefine/utils"
)

/*
Mesh is a refineable mesh of Q elements on a forest of quadtrees or octrees. The
leaf elements carry the unknowns; after every adaptation the global nodes and the
hanging node constraints are rebuilt from scratch, so node numbers are only valid
until the next call to one of the refinement methods.

An adaptation whose rebuild fails is rolled back. When even the rolled back forest
cannot be rebuilt the mesh is broken: Err returns the failure, every adaptation
returns it again and the node and constraint queries panic.
*/
type Mesh struct {
	kind     tree.Kind
	cfg      Config
	maxLevel int
	log      zerolog.Logger
	basis    *element.QBasis
	forest   *tree.Forest
	err      error

	// Rebuilt after every adaptation
	derived
}

// derived is the state rebuilt from the forest after every adaptation
type derived struct {
	elements   []*element.QElement
	nodeIDs    [][]int // NodeIDs of elements, kept so a failed rebuild can be undone
	nodes      []Node
	hanging    map[int][]Master
	free       []int
	nFree      int
	constraint utils.CSR
}

func New(kind tree.Kind, macro MacroMesh, cfg Config) (m *Mesh, err error) {
	if cfg, err = cfg.withDefaults(); err != nil {
		return
	}
	if err = macro.check(kind); err != nil {
		return
	}
	m = &Mesh{
		kind:     kind,
		cfg:      cfg,
		maxLevel: *cfg.MaxLevel,
		log:      *cfg.Logger,
		basis:    element.NewQBasis(kind.Dim(), cfg.NNode1D),
	}
	specs := make([]tree.RootSpec, len(macro.Elements))
	for k, verts := range macro.Elements {
		if len(verts) != kind.NSons() {
			err = fmt.Errorf("element %d has %d corners, a %s mesh needs %d", k, len(verts), kind, kind.NSons())
			return nil, err
		}
		corners := make([][]float64, len(verts))
		for c, v := range verts {
			corners[c] = append([]float64(nil), macro.Coords[v]...)
		}
		specs[k] = tree.RootSpec{
			Object:   element.NewQElement(m.basis, corners),
			Vertices: verts,
		}
	}
	if m.forest, err = tree.NewForest(kind, specs,
		tree.WithTolerance(cfg.Tolerance),
		tree.WithParallelDegree(cfg.ParallelDegree),
		tree.WithLogger(m.log)); err != nil {
		return nil, err
	}
	for _, pp := range macro.Periodic {
		if err = m.forest.ConnectPeriodic(pp.A, pp.DA, pp.B, pp.DB, pp.Match); err != nil {
			return nil, err
		}
	}
	if err = m.rebuild(); err != nil {
		return nil, err
	}
	return
}

// NewRectangularQuadMesh meshes [0,lx]x[0,ly] with nx by ny quadrilaterals, optionally periodic in x
func NewRectangularQuadMesh(nx, ny int, lx, ly float64, periodicX bool, cfg Config) (m *Mesh, err error) {
	if nx < 1 || ny < 1 {
		err = fmt.Errorf("need at least one element per direction, have %d x %d", nx, ny)
		return
	}
	var (
		macro MacroMesh
		vid   = func(i, j int) int { return j*(nx+1) + i }
	)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			macro.Coords = append(macro.Coords, []float64{lx * float64(i) / float64(nx), ly * float64(j) / float64(ny)})
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			macro.Elements = append(macro.Elements, []int{vid(i, j), vid(i+1, j), vid(i, j+1), vid(i+1, j+1)})
		}
		if periodicX {
			macro.Periodic = append(macro.Periodic, PeriodicPair{A: j * nx, DA: tree.W, B: j*nx + nx - 1, DB: tree.E})
		}
	}
	return New(tree.Quad, macro, cfg)
}

// NewBrickMesh meshes [0,lx]x[0,ly]x[0,lz] with nx by ny by nz hexahedra
func NewBrickMesh(nx, ny, nz int, lx, ly, lz float64, cfg Config) (m *Mesh, err error) {
	if nx < 1 || ny < 1 || nz < 1 {
		err = fmt.Errorf("need at least one element per direction, have %d x %d x %d", nx, ny, nz)
		return
	}
	var (
		macro MacroMesh
		vid   = func(i, j, k int) int { return (k*(ny+1)+j)*(nx+1) + i }
	)
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				macro.Coords = append(macro.Coords, []float64{
					lx * float64(i) / float64(nx), ly * float64(j) / float64(ny), lz * float64(k) / float64(nz)})
			}
		}
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				el := make([]int, 8)
				for c := range el {
					el[c] = vid(i+c&1, j+(c>>1)&1, k+(c>>2)&1)
				}
				macro.Elements = append(macro.Elements, el)
			}
		}
	}
	return New(tree.Oct, macro, cfg)
}

// rebuild checks the forest geometry, then renumbers the nodes and resolves the hanging nodes
func (m *Mesh) rebuild() (err error) {
	rep := m.forest.SelfTest()
	if err = rep.Err(); err != nil {
		m.log.Error().Err(err).Msg("forest geometry is inconsistent, hanging nodes cannot be resolved")
		return
	}
	var (
		leaves = m.forest.Leaves()
		index  = make(map[*tree.Tree]int, len(leaves))
	)
	m.elements = make([]*element.QElement, len(leaves))
	for k, l := range leaves {
		m.elements[k] = l.Object().(*element.QElement)
		index[l] = k
	}
	links := m.findFaceLinks(leaves, index)
	m.numberNodes(links)
	if err = m.resolveHanging(links); err != nil {
		return
	}
	m.buildConstraints()
	m.nodeIDs = make([][]int, len(m.elements))
	for k, e := range m.elements {
		m.nodeIDs[k] = e.NodeIDs
	}
	m.log.Info().
		Int("elements", len(m.elements)).
		Int("nodes", len(m.nodes)).
		Int("hanging", len(m.hanging)).
		Float64("selfTestError", rep.MaxError).
		Msg("mesh rebuilt")
	return
}

// Refine splits the given leaves and rebuilds the mesh. Nothing is refined if any
// of them is not a leaf of this mesh or is already at the maximum level.
func (m *Mesh) Refine(leaves []*tree.Tree) (err error) {
	if m.err != nil {
		return m.err
	}
	for _, l := range leaves {
		if err = m.checkOwned(l); err != nil {
			return
		}
		if !l.IsLeaf() {
			err = fmt.Errorf("cannot refine %s, it is not a leaf", l.Label())
			return
		}
		if l.Level() >= m.maxLevel {
			err = fmt.Errorf("cannot refine %s beyond the maximum level %d", l.Label(), m.maxLevel)
			return
		}
	}
	var split []*tree.Tree
	for _, l := range leaves {
		if l.IsLeaf() {
			l.Split(element.BuildSon)
			split = append(split, l)
		}
	}
	return m.adapt(func() {
		for _, l := range split {
			l.Merge()
		}
	}, true)
}

// RefineWhere refines every leaf element for which pred is true, skipping leaves at the maximum level
func (m *Mesh) RefineWhere(pred func(e *element.QElement) bool) (err error) {
	var (
		leaves  []*tree.Tree
		skipped int
	)
	if m.err != nil {
		return m.err
	}
	for _, e := range m.elements {
		if !pred(e) {
			continue
		}
		if e.Tree().Level() >= m.maxLevel {
			skipped++
			continue
		}
		leaves = append(leaves, e.Tree())
	}
	if skipped > 0 {
		m.log.Debug().Int("skipped", skipped).Int("maxLevel", m.maxLevel).Msg("leaves at the maximum level not refined")
	}
	return m.Refine(leaves)
}

func (m *Mesh) RefineUniformly() error {
	return m.RefineWhere(func(*element.QElement) bool { return true })
}

// Unrefine merges the sons of the given fathers, all of which must be leaves
func (m *Mesh) Unrefine(fathers []*tree.Tree) (err error) {
	if m.err != nil {
		return m.err
	}
	for _, f := range fathers {
		if err = m.checkOwned(f); err != nil {
			return
		}
		if !isFatherOfLeaves(f) {
			err = fmt.Errorf("cannot unrefine %s, its sons are not all leaves", f.Label())
			return
		}
	}
	for _, f := range fathers {
		f.Merge()
	}
	// The merged sons are gone, so undoing splits the fathers afresh
	return m.adapt(func() {
		for _, f := range fathers {
			f.Split(element.BuildSon)
		}
	}, false)
}

/*
adapt rebuilds the mesh after the forest has been changed. On failure undo reverts
the change to the forest. When the reverted forest holds the very leaves of the
previous mesh (restorable), the previous derived state is put back as it was;
otherwise the mesh is rebuilt once more and broken for good if that fails too.
*/
func (m *Mesh) adapt(undo func(), restorable bool) (err error) {
	saved := m.derived
	if err = m.rebuild(); err == nil {
		return
	}
	undo()
	if restorable {
		m.derived = saved
		for k, e := range m.elements {
			e.NodeIDs = m.nodeIDs[k]
		}
		m.log.Warn().Err(err).Msg("adaptation rolled back")
		return
	}
	if rerr := m.rebuild(); rerr != nil {
		m.err = fmt.Errorf("mesh is unusable after a failed adaptation: %w", err)
		m.derived = derived{}
		m.log.Error().Err(rerr).Msg("rolled back mesh cannot be rebuilt")
		return
	}
	m.log.Warn().Err(err).Msg("adaptation rolled back")
	return
}

// Err returns the failure that left the mesh unusable, nil while the mesh is usable
func (m *Mesh) Err() error { return m.err }

func (m *Mesh) mustBeUsable() {
	if m.err != nil {
		panic(m.err)
	}
}

// UnrefineWhere merges every family of leaves whose elements all satisfy pred
func (m *Mesh) UnrefineWhere(pred func(e *element.QElement) bool) (err error) {
	var (
		fathers []*tree.Tree
	)
	for _, f := range m.forest.AllNodes() {
		if !isFatherOfLeaves(f) {
			continue
		}
		all := true
		for s := 0; s < f.NSons(); s++ {
			if !pred(f.Son(tree.SonType(s)).Object().(*element.QElement)) {
				all = false
				break
			}
		}
		if all {
			fathers = append(fathers, f)
		}
	}
	return m.Unrefine(fathers)
}

func isFatherOfLeaves(f *tree.Tree) bool {
	if f.IsLeaf() {
		return false
	}
	for s := 0; s < f.NSons(); s++ {
		if !f.Son(tree.SonType(s)).IsLeaf() {
			return false
		}
	}
	return true
}

func (m *Mesh) checkOwned(t *tree.Tree) (err error) {
	if t == nil || t.Root().Forest() != m.forest {
		err = fmt.Errorf("tree node does not belong to this mesh")
	}
	return
}

func (m *Mesh) Kind() tree.Kind               { return m.kind }
func (m *Mesh) Forest() *tree.Forest          { return m.forest }
func (m *Mesh) Basis() *element.QBasis        { return m.basis }
func (m *Mesh) Policy() Policy                { return m.cfg.Policy }
func (m *Mesh) Elements() []*element.QElement { return m.elements }
func (m *Mesh) NElements() int                { return len(m.elements) }
func (m *Mesh) Nodes() []Node                 { return m.nodes }
func (m *Mesh) NNodes() int                   { return len(m.nodes) }

// FindNode returns the node at physical position x, within tol in every coordinate
func (m *Mesh) FindNode(x []float64, tol float64) (node int, ok bool) {
	for g, n := range m.nodes {
		match := true
		for i := range x {
			if math.Abs(n.X[i]-x[i]) > tol {
				match = false
				break
			}
		}
		if match {
			return g, true
		}
	}
	return -1, false
}

// Destroy releases the whole forest; the mesh must not be used afterwards
func (m *Mesh) Destroy() {
	m.forest.Destroy()
	m.derived = derived{}
}

func (m *Mesh) Print() { m.Fprint(os.Stdout) }

func (m *Mesh) Fprint(w io.Writer) {
	fmt.Fprintf(w, "%s mesh, %d nodes per edge, %s hanging node policy\n", m.kind, m.cfg.NNode1D, m.cfg.Policy)
	fmt.Fprintf(w, "Roots = %d, leaf elements = %d\n", m.forest.NRoots(), len(m.elements))
	fmt.Fprintf(w, "Nodes = %d, hanging = %d, free = %d\n", len(m.nodes), len(m.hanging), m.nFree)
}
