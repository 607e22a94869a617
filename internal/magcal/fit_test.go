package magcal

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestFitEllipsoid(t *testing.T) {
	t.Run("fewer than nine samples", testFitTooFewSamples)
	t.Run("too few distinct samples", testFitTooFewDistinct)
	t.Run("coplanar samples", testFitCoplanar)
	t.Run("round trip", testFitRoundTrip)
	t.Run("calibrated norms equal field", testFitNormalization)
	t.Run("axis aligned ellipsoid", testFitAxisAligned)
	t.Run("deterministic sign", testFitDeterministic)
}

func testFitTooFewSamples(t *testing.T) {
	for _, n := range []int{0, 1, 8} {
		pts := distort(fibonacciSphere(n), Mat3{{300, 0, 0}, {0, 300, 0}, {0, 0, 300}}, Vec3{})
		_, err := FitEllipsoid(Freeze(pts))
		if !errors.Is(err, ErrInsufficientSamples) {
			t.Fatalf("n=%d: err = %v, want ErrInsufficientSamples", n, err)
		}
	}
}

func testFitTooFewDistinct(t *testing.T) {
	base := fibonacciSphere(4)
	var pts []Vec3
	for i := 0; i < 20; i++ {
		pts = append(pts, base[i%len(base)])
	}
	_, err := FitEllipsoid(Freeze(pts))
	if !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("err = %v, want ErrInsufficientSamples", err)
	}
}

func testFitCoplanar(t *testing.T) {
	var pts []Vec3
	for i := 0; i < 60; i++ {
		th := 2 * math.Pi * float64(i) / 60
		r := 200 + 50*float64(i%3)
		pts = append(pts, Vec3{r * math.Cos(th), r * math.Sin(th), 0})
	}
	coef, err := FitEllipsoid(Freeze(pts))
	if !errors.Is(err, ErrSingularMatrix) {
		t.Fatalf("err = %v, want ErrSingularMatrix", err)
	}
	if coef != (Coefficients{}) {
		t.Fatalf("partial coefficients returned: %+v", coef)
	}
}

func testFitRoundTrip(t *testing.T) {
	a := Mat3{
		{480, 40, -20},
		{40, 360, 32},
		{-20, 32, 440},
	}
	b := Vec3{120, -40, 75}
	raw := distort(fibonacciSphere(400), a, b)

	coef, err := FitEllipsoid(Freeze(raw))
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	tr, err := Derive(coef, 1)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	var want mat.Dense
	if err := want.Inverse(a.dense()); err != nil {
		t.Fatalf("invert a: %v", err)
	}
	for i := 0; i < 3; i++ {
		assertClose(t, "offset", tr.Offset[i], b[i], 1e-6*b.Norm())
		for j := 0; j < 3; j++ {
			assertClose(t, "A⁻¹", tr.Matrix[i][j], want.At(i, j), 1e-6*mat.Norm(&want, 2))
		}
	}
}

func testFitNormalization(t *testing.T) {
	const field = 48.5
	raw := distort(fibonacciSphere(300), Mat3{{31, 2, 0}, {2, 27, -1.5}, {0, -1.5, 35}}, Vec3{-12, 7, 30})

	coef, err := FitEllipsoid(Freeze(raw))
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	tr, err := Derive(coef, field)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	for i, s := range raw {
		if got := tr.Apply(s).Norm(); math.Abs(got-field) > 1e-6*field {
			t.Fatalf("sample %d: |calibrated| = %.9f, want %.9f", i, got, field)
		}
	}
}

func testFitAxisAligned(t *testing.T) {
	const field = 500
	center := Vec3{10, -5, 2}
	axes := Vec3{500, 450, 600}
	raw := distort(fibonacciSphere(32), Mat3{{axes[0], 0, 0}, {0, axes[1], 0}, {0, 0, axes[2]}}, center)

	coef, err := FitEllipsoid(Freeze(raw))
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	tr, err := Derive(coef, field)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	for i := 0; i < 3; i++ {
		assertClose(t, "offset", tr.Offset[i], center[i], 1e-3*center.Norm())
		want := field / axes[i]
		assertClose(t, "A⁻¹ diagonal", tr.Matrix[i][i], want, 1e-3*want)
		for j := 0; j < 3; j++ {
			if i != j {
				assertClose(t, "A⁻¹ off-diagonal", tr.Matrix[i][j], 0, 1e-3*want)
			}
		}
	}
}

func testFitDeterministic(t *testing.T) {
	raw := distort(fibonacciSphere(200), Mat3{{40, 3, 1}, {3, 38, 0}, {1, 0, 45}}, Vec3{5, 6, -7})

	first, err := FitEllipsoid(Freeze(raw))
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if first.M[0][0] < 0 {
		t.Fatalf("M[0][0] = %g, want non-negative", first.M[0][0])
	}
	for i := 0; i < 3; i++ {
		again, err := FitEllipsoid(Freeze(raw))
		if err != nil {
			t.Fatalf("refit: %v", err)
		}
		if again != first {
			t.Fatalf("refit %d differs:\n got  %+v\n want %+v", i, again, first)
		}
	}

	reversed := make([]Vec3, len(raw))
	for i, s := range raw {
		reversed[len(raw)-1-i] = s
	}
	rev, err := FitEllipsoid(Freeze(reversed))
	if err != nil {
		t.Fatalf("fit reversed: %v", err)
	}
	scale := math.Max(1, math.Abs(first.D))
	assertClose(t, "d (reversed order)", rev.D, first.D, 1e-6*scale)
	for i := 0; i < 3; i++ {
		assertClose(t, "n (reversed order)", rev.N[i], first.N[i], 1e-6*scale)
		for j := 0; j < 3; j++ {
			assertClose(t, "M (reversed order)", rev.M[i][j], first.M[i][j], 1e-6)
		}
	}
}

func TestDesignMatrixColumnOrder(t *testing.T) {
	d := designMatrix(Freeze([]Vec3{{2, 3, 5}}))
	want := []float64{4, 9, 25, 30, 20, 12, 4, 6, 10, 1}
	for i, w := range want {
		if got := d.At(i, 0); got != w {
			t.Fatalf("row %d = %g, want %g", i, got, w)
		}
	}
}
