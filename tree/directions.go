package tree

import (
	"fmt"
	"strings"
)

// Kind selects the dimensionality of a refinement tree: quadtrees subdivide
// quadrilaterals into four sons, octrees subdivide hexahedra into eight.
type Kind uint8

const (
	Quad Kind = 2
	Oct  Kind = 3
)

func (k Kind) Dim() int         { return int(k) }
func (k Kind) NSons() int       { return 1 << uint(k) }
func (k Kind) NDirections() int { return 2 * int(k) }

func (k Kind) String() string {
	switch k {
	case Quad:
		return "QuadTree"
	case Oct:
		return "OcTree"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) mustBeValid() {
	if k != Quad && k != Oct {
		panic(fmt.Errorf("tree: unknown tree kind %d, must be Quad or Oct", uint8(k)))
	}
}

/*
Direction names a face of an element. Faces are encoded as 2*axis + side, where side
is 1 for the face on the positive end of the local coordinate axis, so that the
adjacency, reflection and rotation algebra reduces to bit operations on constants.

	Quad:  W = -s0, E = +s0, S = -s1, N = +s1
	Oct:   L = -s0, R = +s0, D = -s1, U = +s1, B = -s2, F = +s2
*/
type Direction int8

// OMEGA is returned where no direction applies, e.g. by DirectionOfNeighbour
// when the two roots are not adjacent.
const OMEGA Direction = -1

// QuadTree edge directions
const (
	W Direction = iota
	E
	S
	N
)

// OcTree face directions
const (
	L Direction = iota
	R
	D
	U
	B
	F
)

func directionOf(axis int, positive bool) Direction {
	d := Direction(2 * axis)
	if positive {
		d++
	}
	return d
}

func (d Direction) Axis() int           { return int(d) >> 1 }
func (d Direction) Positive() bool      { return d&1 == 1 }
func (d Direction) Opposite() Direction { return d ^ 1 }

// Sign is the value of the local coordinate along Axis() on face d
func (d Direction) Sign() float64 {
	if d.Positive() {
		return 1
	}
	return -1
}

/*
SonType is the position of a son within its father. Bit a of the son type is set when
the son occupies the positive half of local axis a, giving the conventional orderings

	Quad:  SW, SE, NW, NE
	Oct:   LDB, RDB, LUB, RUB, LDF, RDF, LUF, RUF

The same encoding numbers the corners (vertices) of an element.
*/
type SonType int8

// NoSon is the son type of a root
const NoSon SonType = -1

const (
	SW SonType = iota
	SE
	NW
	NE
)

const (
	LDB SonType = iota
	RDB
	LUB
	RUB
	LDF
	RDF
	LUF
	RUF
)

func (s SonType) onPositiveSide(axis int) bool { return (s>>uint(axis))&1 == 1 }

// isAdjacent reports whether son s touches its father's face d
func isAdjacent(d Direction, s SonType) bool {
	return s.onPositiveSide(d.Axis()) == d.Positive()
}

// reflect returns the son type of the mirror image of s across the face normal to d
func reflect(d Direction, s SonType) SonType {
	return s ^ SonType(1<<uint(d.Axis()))
}

var (
	quadDirectionNames = [...]string{"W", "E", "S", "N"}
	octDirectionNames  = [...]string{"L", "R", "D", "U", "B", "F"}
	quadSonNames       = [...]string{"SW", "SE", "NW", "NE"}
	octSonNames        = [...]string{"LDB", "RDB", "LUB", "RUB", "LDF", "RDF", "LUF", "RUF"}
	// Search order used by DirectionOfNeighbour
	quadNeighbourOrder = [...]Direction{N, E, S, W}
	octNeighbourOrder  = [...]Direction{U, R, D, L, F, B}
)

func (k Kind) checkDirection(d Direction) {
	if d < 0 || int(d) >= k.NDirections() {
		panic(fmt.Errorf("tree: direction %d is not a valid %s direction", int8(d), k))
	}
}

func (k Kind) checkSonType(s SonType) {
	if s < 0 || int(s) >= k.NSons() {
		panic(fmt.Errorf("tree: son type %d is not a valid %s son type", int8(s), k))
	}
}

func (k Kind) DirectionString(d Direction) string {
	if d == OMEGA {
		return "OMEGA"
	}
	k.checkDirection(d)
	if k == Quad {
		return quadDirectionNames[d]
	}
	return octDirectionNames[d]
}

func (k Kind) SonTypeString(s SonType) string {
	if s == NoSon {
		return "OMEGA"
	}
	k.checkSonType(s)
	if k == Quad {
		return quadSonNames[s]
	}
	return octSonNames[s]
}

// ParseDirection converts a direction name such as "W" or "north" into a Direction
func (k Kind) ParseDirection(name string) (d Direction, err error) {
	var (
		names []string
		up    = strings.ToUpper(strings.TrimSpace(name))
	)
	k.mustBeValid()
	if k == Quad {
		names = quadDirectionNames[:]
		switch up {
		case "WEST":
			up = "W"
		case "EAST":
			up = "E"
		case "SOUTH":
			up = "S"
		case "NORTH":
			up = "N"
		}
	} else {
		names = octDirectionNames[:]
		switch up {
		case "LEFT":
			up = "L"
		case "RIGHT":
			up = "R"
		case "DOWN":
			up = "D"
		case "UP":
			up = "U"
		case "BACK":
			up = "B"
		case "FRONT":
			up = "F"
		}
	}
	for i, n := range names {
		if n == up {
			return Direction(i), nil
		}
	}
	err = fmt.Errorf("unknown %s direction: [%s]", k, name)
	return OMEGA, err
}

// FaceCorners returns the corners lying on face d, in ascending corner order
func (k Kind) FaceCorners(d Direction) (corners []SonType) {
	for c := 0; c < k.NSons(); c++ {
		if isAdjacent(d, SonType(c)) {
			corners = append(corners, SonType(c))
		}
	}
	return
}

// cornerCoords returns the local coordinates (each ±1) of corner c
func (k Kind) cornerCoords(c SonType) (s []float64) {
	s = make([]float64, k.Dim())
	for a := range s {
		s[a] = -1
		if c.onPositiveSide(a) {
			s[a] = 1
		}
	}
	return
}
