// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// sqrtSym returns the principal square root of the symmetric matrix m,
// Q·√Λ·Qᵀ. Only the upper triangle of m is read.
func sqrtSym(m Mat3) (*mat.Dense, error) {
	sym := mat.NewSymDense(3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return nil, fmt.Errorf("sqrtm: eigen decomposition did not converge: %w", ErrNotPositiveDefinite)
	}
	values := es.Values(nil)
	var q mat.Dense
	es.VectorsTo(&q)

	root := mat.NewDiagDense(3, nil)
	for i, l := range values {
		if l < 0 {
			return nil, fmt.Errorf("sqrtm: eigenvalue %g: %w", l, ErrNotPositiveDefinite)
		}
		root.SetDiag(i, math.Sqrt(l))
	}

	// Q is orthogonal, so Q⁻¹ = Qᵀ.
	var qr, out mat.Dense
	qr.Mul(&q, root)
	out.Mul(&qr, q.T())
	return &out, nil
}
