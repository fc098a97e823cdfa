package element

import (
	"fmt"
	"math"
)

type LagrangeBasis1D struct {
	P       int       // Order
	Np      int       // Dimension of basis = P+1
	Weights []float64 // Barycentric weights, one per basis polynomial
	Nodes   []float64 // Nodes at which basis is defined
}

// EquispacedNodes returns n nodes spread evenly over [-1,1], both ends included
func EquispacedNodes(n int) (R []float64) {
	if n < 2 {
		panic(fmt.Errorf("at least 2 nodes are needed to span [-1,1], have %d", n))
	}
	R = make([]float64, n)
	for i := range R {
		R[i] = -1 + 2*float64(i)/float64(n-1)
	}
	R[n-1] = 1
	return
}

func NewLagrangeBasis1D(R []float64) (lb *LagrangeBasis1D) {
	lb = &LagrangeBasis1D{
		P:       len(R) - 1,
		Np:      len(R),
		Weights: make([]float64, len(R)),
		Nodes:   R,
	}
	// Calculate the weight for each basis function j
	for j := 0; j < lb.Np; j++ {
		lb.Weights[j] = 1.
		for i := 0; i < lb.Np; i++ {
			if i != j {
				if R[j] == R[i] {
					panic(fmt.Errorf("repeated node %8.5f in Lagrange basis", R[j]))
				}
				lb.Weights[j] /= R[j] - R[i]
			}
		}
	}
	return
}

// Evaluate returns the value of every basis polynomial at r
func (lb *LagrangeBasis1D) Evaluate(r float64) (psi []float64) {
	psi = make([]float64, lb.Np)
	for j, rj := range lb.Nodes {
		if math.Abs(r-rj) < 1.e-14 {
			psi[j] = 1
			return
		}
	}
	l := lb.evaluateL(r)
	for j := range psi {
		psi[j] = l * lb.Weights[j] / (r - lb.Nodes[j])
	}
	return
}

// Derivative returns the derivative of every basis polynomial at r
func (lb *LagrangeBasis1D) Derivative(r float64) (dpsi []float64) {
	dpsi = make([]float64, lb.Np)
	for j := 0; j < lb.Np; j++ {
		// d/dr of prod_{i != j} (r - r_i), times the weight
		for k := 0; k < lb.Np; k++ {
			if k == j {
				continue
			}
			term := lb.Weights[j]
			for i := 0; i < lb.Np; i++ {
				if i != j && i != k {
					term *= r - lb.Nodes[i]
				}
			}
			dpsi[j] += term
		}
	}
	return
}

func (lb *LagrangeBasis1D) EvaluateBasisPolynomial(R []float64, j int) (f []float64) {
	f = make([]float64, len(R))
	for i, r := range R {
		f[i] = lb.Evaluate(r)[j]
	}
	return
}

func (lb *LagrangeBasis1D) Interpolate(R []float64, F []float64) (f []float64) {
	if len(F) != lb.Np {
		panic(fmt.Errorf("have %d nodal values for a basis of dimension %d", len(F), lb.Np))
	}
	f = make([]float64, len(R))
	for i, r := range R {
		for j, psi := range lb.Evaluate(r) {
			f[i] += psi * F[j]
		}
	}
	return
}

func (lb *LagrangeBasis1D) evaluateL(r float64) (f float64) {
	/*
		This is the polynomial term in the Barycentric version of the Lagrange polynomial basis
		It is not specific to the jth polynomial, but applies to all the individual basis polynomials
	*/
	f = 1.
	for _, rr := range lb.Nodes {
		f *= (r - rr)
	}
	return
}
