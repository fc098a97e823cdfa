package InputParameters

import (
	"fmt"
	"os"

	"github.com/ghodss/yaml"

	"github.com/notargets/gorefine/element"
	"github.com/notargets/gorefine/mesh"
	"github.com/notargets/gorefine/readfiles"
	"github.com/notargets/gorefine/tree"
)

// RefineStep is one adaptation applied to the mesh in order
type RefineStep struct {
	// Uniform refines every leaf
	Uniform bool `yaml:"Uniform"`
	// Box refines the leaves whose centre lies inside [Box[0],Box[1]]x[Box[2],Box[3]](x[Box[4],Box[5]])
	Box []float64 `yaml:"Box"`
	// Roots refines the leaves of the listed macro elements
	Roots []int `yaml:"Roots"`
	// Coarsen merges families instead of refining them
	Coarsen bool `yaml:"Coarsen"`
}

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title          string       `yaml:"Title"`
	MeshFile       string       `yaml:"MeshFile"` // SU2 grid, replaces the generated mesh
	Kind           string       `yaml:"Kind"`     // Quad or Oct
	NX             int          `yaml:"NX"`
	NY             int          `yaml:"NY"`
	NZ             int          `yaml:"NZ"`
	Lengths        []float64    `yaml:"Lengths"`
	PeriodicX      bool         `yaml:"PeriodicX"`
	NNode1D        int          `yaml:"NNode1D"`
	Policy         string       `yaml:"Policy"`
	Tolerance      float64      `yaml:"Tolerance"`
	MaxLevel       *int         `yaml:"MaxLevel"` // absent selects the mesh default
	ParallelDegree int          `yaml:"ParallelDegree"`
	Refine         []RefineStep `yaml:"Refine"`
}

func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParameters) ReadFile(filename string) (err error) {
	var data []byte
	if data, err = os.ReadFile(filename); err != nil {
		return
	}
	if err = ip.Parse(data); err != nil {
		err = fmt.Errorf("unable to parse %s: %w", filename, err)
	}
	return
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	if ip.MeshFile != "" {
		fmt.Printf("[%s]\t\t= Mesh File\n", ip.MeshFile)
	} else {
		fmt.Printf("[%s]\t\t\t= Kind\n", ip.Kind)
		fmt.Printf("[%d %d %d]\t\t= NX NY NZ\n", ip.NX, ip.NY, ip.NZ)
		fmt.Printf("%v\t\t= Lengths\n", ip.Lengths)
		fmt.Printf("%v\t\t\t= Periodic in X\n", ip.PeriodicX)
	}
	fmt.Printf("[%d]\t\t\t\t= Nodes per edge\n", ip.NNode1D)
	fmt.Printf("[%s]\t\t= Hanging node policy\n", ip.Policy)
	fmt.Printf("%8.3e\t\t= Tolerance\n", ip.Tolerance)
	if ip.MaxLevel != nil {
		fmt.Printf("[%d]\t\t\t\t= Max Level\n", *ip.MaxLevel)
	}
	for i, step := range ip.Refine {
		fmt.Printf("Refine[%d] = %+v\n", i, step)
	}
}

// Config translates the parameters into a mesh configuration
func (ip *InputParameters) Config() (cfg mesh.Config, err error) {
	cfg = mesh.Config{
		NNode1D:        ip.NNode1D,
		Tolerance:      ip.Tolerance,
		MaxLevel:       ip.MaxLevel,
		ParallelDegree: ip.ParallelDegree,
	}
	if ip.Policy != "" {
		cfg.Policy, err = mesh.ParsePolicy(ip.Policy)
	}
	return
}

// BuildMesh reads or generates the macro mesh and applies the refinement plan
func (ip *InputParameters) BuildMesh(cfg mesh.Config) (m *mesh.Mesh, err error) {
	if m, err = ip.newMesh(cfg); err != nil {
		return
	}
	for i, step := range ip.Refine {
		if err = ip.apply(m, step); err != nil {
			m.Destroy()
			return nil, fmt.Errorf("refinement step %d: %w", i, err)
		}
	}
	return
}

func (ip *InputParameters) newMesh(cfg mesh.Config) (m *mesh.Mesh, err error) {
	if ip.MeshFile != "" {
		var g *readfiles.Grid
		if g, err = readfiles.ReadSU2(ip.MeshFile, false); err != nil {
			return
		}
		return mesh.New(g.Kind, g.Macro, cfg)
	}
	l := []float64{1, 1, 1}
	copy(l, ip.Lengths)
	nx, ny, nz := max(ip.NX, 1), max(ip.NY, 1), max(ip.NZ, 1)
	switch ip.Kind {
	case "", "Quad", "quad":
		return mesh.NewRectangularQuadMesh(nx, ny, l[0], l[1], ip.PeriodicX, cfg)
	case "Oct", "oct":
		if ip.PeriodicX {
			err = fmt.Errorf("periodic brick meshes need a mesh file")
			return
		}
		return mesh.NewBrickMesh(nx, ny, nz, l[0], l[1], l[2], cfg)
	}
	err = fmt.Errorf("unknown mesh kind: [%s], must be Quad or Oct", ip.Kind)
	return
}

func (ip *InputParameters) apply(m *mesh.Mesh, step RefineStep) (err error) {
	var (
		dim   = m.Kind().Dim()
		roots = make(map[int]bool, len(step.Roots))
	)
	if step.Box != nil && len(step.Box) != 2*dim {
		err = fmt.Errorf("refinement box needs %d bounds, have %d", 2*dim, len(step.Box))
		return
	}
	for _, r := range step.Roots {
		if r < 0 || r >= m.Forest().NRoots() {
			err = fmt.Errorf("root %d out of range [0,%d)", r, m.Forest().NRoots())
			return
		}
		roots[r] = true
	}
	selected := func(t *tree.Tree, centre []float64) bool {
		if step.Uniform {
			return true
		}
		if len(roots) != 0 && !roots[t.Root().Index()] {
			return false
		}
		for a := 0; a < len(step.Box)/2; a++ {
			if centre[a] < step.Box[2*a] || centre[a] > step.Box[2*a+1] {
				return false
			}
		}
		return len(roots) != 0 || step.Box != nil
	}
	centre := make([]float64, dim)
	if step.Coarsen {
		return m.UnrefineWhere(func(e *element.QElement) bool { return selected(e.Tree(), e.Position(centre)) })
	}
	return m.RefineWhere(func(e *element.QElement) bool { return selected(e.Tree(), e.Position(centre)) })
}
