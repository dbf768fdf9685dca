// Package basis evaluates the orthonormal modal (Dubiner) basis on the
// reference tetrahedron (-1,-1,-1),(1,-1,-1),(-1,1,-1),(-1,-1,1).
package basis

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// NumBasisFunctions returns the number of modes of a degree N basis
func NumBasisFunctions(N int) int {
	return (N + 1) * (N + 2) * (N + 3) / 6
}

// JacobiP evaluates the normalized Jacobi polynomial of type (alpha,beta)
// and order n at points x
func JacobiP(x []float64, alpha, beta float64, n int) []float64 {
	Np := len(x)

	gamma0 := math.Pow(2, alpha+beta+1) / (alpha + beta + 1) *
		math.Gamma(alpha+1) * math.Gamma(beta+1) / math.Gamma(alpha+beta+1)
	Pm1 := make([]float64, Np)
	for i := range Pm1 {
		Pm1[i] = 1.0 / math.Sqrt(gamma0)
	}
	if n == 0 {
		return Pm1
	}

	gamma1 := (alpha + 1) * (beta + 1) / (alpha + beta + 3) * gamma0
	P := make([]float64, Np)
	for i := range P {
		P[i] = ((alpha+beta+2)*x[i]/2 + (alpha-beta)/2) / math.Sqrt(gamma1)
	}
	if n == 1 {
		return P
	}

	// Three term recurrence P_{i+1} = ((x - b_i) P_i - a_i P_{i-1}) / a_{i+1}
	aold := 2.0 / (2.0 + alpha + beta) * math.Sqrt((alpha+1)*(beta+1)/(alpha+beta+3))
	for i := 1; i < n; i++ {
		fi := float64(i)
		h1 := 2*fi + alpha + beta
		anew := 2.0 / (h1 + 2) * math.Sqrt((fi+1)*(fi+1+alpha+beta)*
			(fi+1+alpha)*(fi+1+beta)/(h1+1)/(h1+3))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2)
		for j := range P {
			next := (-aold*Pm1[j] + (x[j]-bnew)*P[j]) / anew
			Pm1[j] = P[j]
			P[j] = next
		}
		aold = anew
	}
	return P
}

// RSTtoABC maps reference coordinates onto the collapsed coordinates of the
// unit cube used by the tensor product construction
func RSTtoABC(r, s, t []float64) (a, b, c []float64) {
	Np := len(r)
	a = make([]float64, Np)
	b = make([]float64, Np)
	c = make([]float64, Np)
	for n := 0; n < Np; n++ {
		if s[n]+t[n] != 0 {
			a[n] = 2*(1+r[n])/(-s[n]-t[n]) - 1
		} else {
			a[n] = -1
		}
		if t[n] != 1 {
			b[n] = 2*(1+s[n])/(1-t[n]) - 1
		} else {
			b[n] = -1
		}
		c[n] = t[n]
	}
	return
}

// Simplex3DP evaluates the (i,j,k) orthonormal basis function at collapsed
// coordinates (a,b,c)
func Simplex3DP(a, b, c []float64, i, j, k int) []float64 {
	h1 := JacobiP(a, 0, 0, i)
	h2 := JacobiP(b, float64(2*i+1), 0, j)
	h3 := JacobiP(c, float64(2*(i+j)+2), 0, k)
	P := make([]float64, len(a))
	for n := range P {
		P[n] = 2 * math.Sqrt2 * h1[n] * h2[n] * math.Pow(1-b[n], float64(i)) *
			h3[n] * math.Pow(1-c[n], float64(i+j))
	}
	return P
}

// Vandermonde3D builds V_{ij} = phi_j(r_i, s_i, t_i) for the degree N basis
func Vandermonde3D(N int, r, s, t []float64) *mat.Dense {
	V := mat.NewDense(len(r), NumBasisFunctions(N), nil)
	a, b, c := RSTtoABC(r, s, t)
	sk := 0
	for i := 0; i <= N; i++ {
		for j := 0; j <= N-i; j++ {
			for k := 0; k <= N-i-j; k++ {
				V.SetCol(sk, Simplex3DP(a, b, c, i, j, k))
				sk++
			}
		}
	}
	return V
}

// EvaluateAt returns every degree N basis function evaluated at one
// reference point, in Vandermonde column order
func EvaluateAt(N int, r, s, t float64) []float64 {
	V := Vandermonde3D(N, []float64{r}, []float64{s}, []float64{t})
	return mat.Row(nil, 0, V)
}
