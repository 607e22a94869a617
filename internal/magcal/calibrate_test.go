package magcal

import (
	"errors"
	"testing"
)

func TestRestore(t *testing.T) {
	// Unit sphere centred on (1, 2, 3): k = |n|² − d = 14 − 10 = 4.
	coef := Coefficients{M: IdentityMat3(), N: Vec3{-1, -2, -3}, D: 10}

	t.Run("transform is derived from coefficients", func(t *testing.T) {
		in := Calibration{
			ID:           "c1",
			Transform:    Transform{},
			Coefficients: &coef,
			TargetField:  50,
			Samples:      400,
		}
		got, err := Restore(in)
		if err != nil {
			t.Fatalf("Restore: %v", err)
		}
		want := Transform{Matrix: Mat3{{25, 0, 0}, {0, 25, 0}, {0, 0, 25}}, Offset: Vec3{1, 2, 3}}
		for i := 0; i < 3; i++ {
			assertClose(t, "offset", got.Transform.Offset[i], want.Offset[i], 1e-12)
			for j := 0; j < 3; j++ {
				assertClose(t, "matrix", got.Transform.Matrix[i][j], want.Matrix[i][j], 1e-12)
			}
		}
		if got.ID != "c1" || got.Samples != 400 {
			t.Fatalf("metadata lost: %+v", got)
		}
	})

	tests := []struct {
		name    string
		in      Calibration
		wantErr error
	}{
		{
			name:    "no coefficients",
			in:      Calibration{ID: "x", Transform: Identity(), TargetField: 50},
			wantErr: ErrInvalidCalibration,
		},
		{
			name: "singular M",
			in: Calibration{
				Coefficients: &Coefficients{M: Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 0}}, D: -1},
				TargetField:  50,
			},
			wantErr: ErrSingularMatrix,
		},
		{
			name:    "missing target field",
			in:      Calibration{Coefficients: &coef},
			wantErr: ErrInvalidTargetField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Restore(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got.Coefficients != nil || got.Transform != (Transform{}) {
				t.Fatalf("partial calibration returned: %+v", got)
			}
		})
	}
}
