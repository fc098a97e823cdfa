package tree

import "fmt"

/*
Orientation relates the root-local coordinates of two adjacent roots. Local axis i of
the present root runs along axis Perm[i] of the neighbour, in the same sense when
Sign[i] is +1 and in the opposite sense when it is -1. A point p in the present
root's frame that lies across face d is found in the neighbour's frame at

	q[Perm[i]] = Sign[i] * (p[i] - 2*e_d[i])

Rotations and reflections between roots are expressed entirely through this signed
permutation; axes beyond the tree's dimension are left as the identity.
*/
type Orientation struct {
	Perm [3]int
	Sign [3]int
}

var identityOrientation = Orientation{
	Perm: [3]int{0, 1, 2},
	Sign: [3]int{1, 1, 1},
}

func (o Orientation) IsIdentity() bool { return o == identityOrientation }

// Direction maps a direction in the present frame onto the neighbour's frame
func (o Orientation) Direction(d Direction) Direction {
	var (
		a        = d.Axis()
		positive = d.Positive()
	)
	if o.Sign[a] < 0 {
		positive = !positive
	}
	return directionOf(o.Perm[a], positive)
}

// SonType maps a son type (or corner) in the present frame onto the neighbour's frame
func (o Orientation) SonType(s SonType, dim int) (out SonType) {
	for a := 0; a < dim; a++ {
		positive := s.onPositiveSide(a)
		if o.Sign[a] < 0 {
			positive = !positive
		}
		if positive {
			out |= 1 << uint(o.Perm[a])
		}
	}
	return
}

// Apply rotates the vector p into the neighbour's frame, without the translation across the face
func (o Orientation) Apply(p []float64) (q []float64) {
	q = make([]float64, len(p))
	for i, v := range p {
		q[o.Perm[i]] = float64(o.Sign[i]) * v
	}
	return
}

func (o Orientation) Inverse() (inv Orientation) {
	for i := 0; i < 3; i++ {
		inv.Perm[o.Perm[i]] = i
		inv.Sign[o.Perm[i]] = o.Sign[i]
	}
	return
}

func (o Orientation) String() string {
	return fmt.Sprintf("perm=%v sign=%v", o.Perm, o.Sign)
}

// crossFace maps a point of the present root's frame lying across face d into the neighbour's frame
func (o Orientation) crossFace(d Direction, p []float64) []float64 {
	var (
		shifted = make([]float64, len(p))
	)
	copy(shifted, p)
	shifted[d.Axis()] -= 2 * d.Sign()
	return o.Apply(shifted)
}

// uncrossFace is the inverse of crossFace, returning a neighbour-frame point to the present frame
func (o Orientation) uncrossFace(d Direction, q []float64) (p []float64) {
	p = o.Inverse().Apply(q)
	p[d.Axis()] += 2 * d.Sign()
	return
}

// solveOrientation finds the orientation that carries face dA of a root with corner
// vertices vertsA onto face dB of a root with corner vertices vertsB, such that every
// shared vertex lands on itself.
func solveOrientation(kind Kind, vertsA []int, dA Direction, vertsB []int, dB Direction) (o Orientation, err error) {
	var (
		dim      = kind.Dim()
		a        = dA.Axis()
		cornerOf = make(map[int]SonType)
		base     SonType
	)
	o = identityOrientation
	for _, c := range kind.FaceCorners(dB) {
		cornerOf[vertsB[c]] = c
	}
	// Leaving through dA means entering through dB, i.e. moving against dB
	o.Perm[a] = dB.Axis()
	o.Sign[a] = 1
	if dA.Positive() == dB.Positive() {
		o.Sign[a] = -1
	}
	if dA.Positive() {
		base = 1 << uint(a)
	}
	for t := 0; t < dim; t++ {
		if t == a {
			continue
		}
		var (
			c1      = base | 1<<uint(t)
			b0, ok0 = cornerOf[vertsA[base]]
			b1, ok1 = cornerOf[vertsA[c1]]
		)
		if !ok0 || !ok1 {
			err = fmt.Errorf("face %s does not share its corners with face %s",
				kind.DirectionString(dA), kind.DirectionString(dB))
			return
		}
		diff := b0 ^ b1
		u := -1
		for ax := 0; ax < dim; ax++ {
			if diff == 1<<uint(ax) {
				u = ax
			}
		}
		if u < 0 || u == dB.Axis() {
			err = fmt.Errorf("face %s corners %d,%d do not form an edge of face %s",
				kind.DirectionString(dA), vertsA[base], vertsA[c1], kind.DirectionString(dB))
			return
		}
		o.Perm[t] = u
		o.Sign[t] = 1
		if !b1.onPositiveSide(u) {
			o.Sign[t] = -1
		}
	}
	seen := make([]bool, dim)
	for t := 0; t < dim; t++ {
		if seen[o.Perm[t]] {
			err = fmt.Errorf("faces %s and %s yield a degenerate axis map %v",
				kind.DirectionString(dA), kind.DirectionString(dB), o.Perm[:dim])
			return
		}
		seen[o.Perm[t]] = true
	}
	// Every corner of the shared face must land on the same vertex
	for _, c := range kind.FaceCorners(dA) {
		q := o.crossFace(dA, kind.cornerCoords(c))
		var cb SonType
		for ax := 0; ax < dim; ax++ {
			if q[ax] > 0 {
				cb |= 1 << uint(ax)
			}
		}
		if vertsB[cb] != vertsA[c] {
			err = fmt.Errorf("inconsistent corner correspondence between faces %s and %s: vertex %d maps onto %d",
				kind.DirectionString(dA), kind.DirectionString(dB), vertsA[c], vertsB[cb])
			return
		}
	}
	return
}
