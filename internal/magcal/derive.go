// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Derive turns ellipsoid coefficients into the affine correction that maps
// points on the ellipsoid onto a sphere of radius field.
//
//	b   = −M⁻¹·n
//	k   = nᵀ·M⁻¹·n − d
//	A⁻¹ = field/√k · √M
func Derive(c Coefficients, field float64) (Transform, error) {
	if !(field > 0) || math.IsInf(field, 1) {
		return Transform{}, fmt.Errorf("derive: field %g: %w", field, ErrInvalidTargetField)
	}

	var mInv mat.Dense
	if err := mInv.Inverse(c.M.dense()); err != nil {
		return Transform{}, fmt.Errorf("derive: M: %v: %w", err, ErrSingularMatrix)
	}

	n := mat.NewVecDense(3, []float64{c.N[0], c.N[1], c.N[2]})
	var mInvN mat.VecDense
	mInvN.MulVec(&mInv, n)

	k := mat.Dot(n, &mInvN) - c.D
	if !(k > 0) {
		return Transform{}, fmt.Errorf("derive: scale k=%g: %w", k, ErrNotPositiveDefinite)
	}

	root, err := sqrtSym(c.M)
	if err != nil {
		return Transform{}, fmt.Errorf("derive: %w", err)
	}

	var aInv mat.Dense
	aInv.Scale(field/math.Sqrt(k), root)

	return Transform{
		Matrix: mat3From(&aInv),
		Offset: Vec3{-mInvN.AtVec(0), -mInvN.AtVec(1), -mInvN.AtVec(2)},
	}, nil
}
