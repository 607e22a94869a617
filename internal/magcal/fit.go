// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Coefficients are the algebraic ellipsoid x·(Mx) + 2·n·x + d = 0.
type Coefficients struct {
	M Mat3    `json:"m"`
	N Vec3    `json:"n"`
	D float64 `json:"d"`
}

// constraint is the ellipsoid-specific constraint matrix C (4J - I² > 0 form).
var constraint = mat.NewDense(6, 6, []float64{
	-1, 1, 1, 0, 0, 0,
	1, -1, 1, 0, 0, 0,
	1, 1, -1, 0, 0, 0,
	0, 0, 0, -4, 0, 0,
	0, 0, 0, 0, -4, 0,
	0, 0, 0, 0, 0, -4,
})

// FitEllipsoid computes the least-squares ellipsoid through the samples.
//
// The 6-dimensional quadratic part is found as the dominant eigenvector of
// E = C⁻¹·(S11 − S12·S22⁻¹·S21); the linear part follows from it.
// The sign is fixed so that M[0][0] >= 0, making repeated fits identical.
func FitEllipsoid(samples FrozenSamples) (Coefficients, error) {
	n := samples.Len()
	if n < MinSamples {
		return Coefficients{}, fmt.Errorf("fit: %d samples, need at least %d: %w", n, MinSamples, ErrInsufficientSamples)
	}
	if d := samples.Distinct(); d < MinSamples {
		return Coefficients{}, fmt.Errorf("fit: only %d distinct samples, need at least %d: %w", d, MinSamples, ErrInsufficientSamples)
	}

	design := designMatrix(samples)
	var scatter mat.Dense
	scatter.Mul(design, design.T())

	s11 := scatter.Slice(0, 6, 0, 6)
	s12 := scatter.Slice(0, 6, 6, 10)
	s21 := scatter.Slice(6, 10, 0, 6)
	s22 := scatter.Slice(6, 10, 6, 10)

	var invC, invS22 mat.Dense
	if err := invC.Inverse(constraint); err != nil {
		return Coefficients{}, fmt.Errorf("fit: constraint matrix: %v: %w", err, ErrSingularMatrix)
	}
	if err := invS22.Inverse(s22); err != nil {
		return Coefficients{}, fmt.Errorf("fit: S22 block: %v: %w", err, ErrSingularMatrix)
	}

	// t = S22⁻¹·S21 is reused for the linear coefficients.
	var t, coupling, reduced, e mat.Dense
	t.Mul(&invS22, s21)
	coupling.Mul(s12, &t)
	reduced.Sub(s11, &coupling)
	e.Mul(&invC, &reduced)

	v1, err := dominantEigenvector(&e)
	if err != nil {
		return Coefficients{}, err
	}
	if v1.AtVec(0) < 0 {
		v1.ScaleVec(-1, v1)
	}

	var v2 mat.VecDense
	v2.MulVec(&t, v1)
	v2.ScaleVec(-1, &v2)

	return Coefficients{
		M: Mat3{
			{v1.AtVec(0), v1.AtVec(5), v1.AtVec(4)},
			{v1.AtVec(5), v1.AtVec(1), v1.AtVec(3)},
			{v1.AtVec(4), v1.AtVec(3), v1.AtVec(2)},
		},
		N: Vec3{v2.AtVec(0), v2.AtVec(1), v2.AtVec(2)},
		D: v2.AtVec(3),
	}, nil
}

// designMatrix builds the 10×n monomial matrix, one column per sample.
func designMatrix(samples FrozenSamples) *mat.Dense {
	d := mat.NewDense(10, samples.Len(), nil)
	for j := 0; j < samples.Len(); j++ {
		s := samples.At(j)
		x, y, z := s[0], s[1], s[2]
		d.Set(0, j, x*x)
		d.Set(1, j, y*y)
		d.Set(2, j, z*z)
		d.Set(3, j, 2*y*z)
		d.Set(4, j, 2*x*z)
		d.Set(5, j, 2*x*y)
		d.Set(6, j, 2*x)
		d.Set(7, j, 2*y)
		d.Set(8, j, 2*z)
		d.Set(9, j, 1)
	}
	return d
}

// dominantEigenvector returns the unit eigenvector of e for the eigenvalue
// with the largest real part.
//
// NOTE: e is a product of two symmetric matrices and is not symmetric itself,
// so a general eigensolver is used. Its eigenvalues are real in exact
// arithmetic; imaginary round-off is dropped.
func dominantEigenvector(e *mat.Dense) (*mat.VecDense, error) {
	var eig mat.Eigen
	if !eig.Factorize(e, mat.EigenRight) {
		return nil, fmt.Errorf("fit: eigen decomposition did not converge: %w", ErrSingularMatrix)
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	best := 0
	for i := 1; i < len(values); i++ {
		if real(values[i]) > real(values[best]) {
			best = i
		}
	}

	r, _ := vectors.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, real(vectors.At(i, best)))
	}
	norm := mat.Norm(v, 2)
	if norm == 0 {
		return nil, fmt.Errorf("fit: degenerate eigenvector: %w", ErrSingularMatrix)
	}
	v.ScaleVec(1/norm, v)
	return v, nil
}
