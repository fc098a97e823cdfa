package mesh

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/notargets/gorefine/tree"
	"github.com/notargets/gorefine/utils"
)

// Policy selects how the values at hanging nodes are tied to the coarse side of a
// non-conforming interface. It is chosen once per mesh.
type Policy uint8

const (
	// Conforming interpolates the coarse face trace at each hanging node
	Conforming Policy = iota
	// Mortar projects the coarse face trace onto the fine face in the L2 sense
	Mortar
)

var policyNames = map[Policy]string{
	Conforming: "Conforming",
	Mortar:     "Mortar",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

func ParsePolicy(name string) (p Policy, err error) {
	for p, n := range policyNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	err = fmt.Errorf("unknown hanging node policy: [%s], must be Conforming or Mortar", name)
	return
}

// DefaultMaxLevel is the deepest refinement level allowed when Config.MaxLevel is nil
const DefaultMaxLevel = 12

type Config struct {
	NNode1D   int     // nodes per element edge, 2 for bilinear elements
	Policy    Policy  // hanging node treatment
	Tolerance float64 // neighbour self test and node matching tolerance
	// MaxLevel is the deepest refinement level allowed, DefaultMaxLevel when nil.
	// A level of 0 keeps the macro mesh unrefined.
	MaxLevel *int
	// ParallelDegree is the number of goroutines for read-only leaf loops. Zero runs
	// them serially, a negative value uses all CPUs.
	ParallelDegree int
	Logger         *zerolog.Logger
}

func (cfg Config) withDefaults() (c Config, err error) {
	c = cfg
	if c.NNode1D == 0 {
		c.NNode1D = 2
	}
	if c.NNode1D < 2 {
		err = fmt.Errorf("elements need at least 2 nodes per edge, have %d", c.NNode1D)
		return
	}
	if c.Tolerance == 0 {
		c.Tolerance = utils.NODETOL
	}
	if c.Tolerance < 0 {
		err = fmt.Errorf("tolerance must be positive, have %8.3e", c.Tolerance)
		return
	}
	if c.MaxLevel == nil {
		level := DefaultMaxLevel
		c.MaxLevel = &level
	}
	if *c.MaxLevel < 0 {
		err = fmt.Errorf("maximum level must not be negative, have %d", *c.MaxLevel)
		return
	}
	if c.ParallelDegree == 0 {
		c.ParallelDegree = 1
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if _, ok := policyNames[c.Policy]; !ok {
		err = fmt.Errorf("unknown hanging node policy %s", c.Policy)
	}
	return
}

// PeriodicPair identifies face DA of macro element A with face DB of macro element B.
// Match maps the vertices of face DB onto their partners on face DA; when nil the
// faces must be opposite faces of the same axis and are matched by a translation.
type PeriodicPair struct {
	A     int
	DA    tree.Direction
	B     int
	DB    tree.Direction
	Match map[int]int
}

/*
MacroMesh is the coarse mesh a refineable mesh starts from. Every element lists its
corner vertices in son type order (SW, SE, NW, NE for quadrilaterals; LDB, RDB, LUB,
RUB, LDF, RDF, LUF, RUF for hexahedra) as indices into Coords.
*/
type MacroMesh struct {
	Coords   [][]float64
	Elements [][]int
	Periodic []PeriodicPair
}

func (mm MacroMesh) check(kind tree.Kind) (err error) {
	if len(mm.Elements) == 0 {
		err = fmt.Errorf("macro mesh has no elements")
		return
	}
	for i, x := range mm.Coords {
		if len(x) != kind.Dim() {
			err = fmt.Errorf("vertex %d has %d coordinates, a %s mesh needs %d", i, len(x), kind, kind.Dim())
			return
		}
	}
	for k, el := range mm.Elements {
		for _, v := range el {
			if v < 0 || v >= len(mm.Coords) {
				err = fmt.Errorf("element %d references vertex %d, have %d vertices", k, v, len(mm.Coords))
				return
			}
		}
	}
	return
}
