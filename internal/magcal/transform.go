// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

// Transform is the affine correction calibrated = Matrix·(raw − Offset).
// Matrix is A⁻¹ (soft iron), Offset is b (hard iron).
type Transform struct {
	Matrix Mat3 `json:"matrix"`
	Offset Vec3 `json:"offset"`
}

// Identity is the transform in effect before any calibration is derived.
func Identity() Transform {
	return Transform{Matrix: IdentityMat3()}
}

// Apply corrects one raw reading.
func (t Transform) Apply(raw Vec3) Vec3 {
	return t.Matrix.MulVec(raw.Sub(t.Offset))
}

// ApplyAll corrects a batch of readings into a new slice.
func (t Transform) ApplyAll(raw []Vec3) []Vec3 {
	out := make([]Vec3, len(raw))
	for i, r := range raw {
		out[i] = t.Apply(r)
	}
	return out
}

// IsIdentity reports whether t leaves readings unchanged.
func (t Transform) IsIdentity() bool {
	return t == Identity()
}
