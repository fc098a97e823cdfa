package types

import (
	"fmt"
	"math"
	"sort"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	// This packs two index coordinates into two 32 bit unsigned integers to act as a hash and an indirect access method
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(i1 + i2<<32)
	return
}

/*
FaceKey identifies a face by its sorted vertex indices, packed pairwise into two EdgeKeys.
Edges of a quadrilateral are stored in the first slot only, so a FaceKey can key both the edges
of a 2D mesh and the quadrilateral faces of a 3D mesh.
*/
type FaceKey [2]EdgeKey

func NewEdgeFaceKey(verts [2]int) FaceKey {
	return FaceKey{NewEdgeKey(verts)}
}

func NewFaceKey(verts [4]int) (fk FaceKey) {
	var (
		sorted = verts
	)
	sort.Ints(sorted[:])
	fk[0] = NewEdgeKey([2]int{sorted[0], sorted[1]})
	fk[1] = NewEdgeKey([2]int{sorted[2], sorted[3]})
	return
}
