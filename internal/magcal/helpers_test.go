package magcal

import (
	"math"
	"testing"
)

// fibonacciSphere returns n well-spread, distinct points on the unit sphere.
func fibonacciSphere(n int) []Vec3 {
	golden := math.Pi * (3 - math.Sqrt(5))
	pts := make([]Vec3, n)
	for i := 0; i < n; i++ {
		y := 1 - 2*(float64(i)+0.5)/float64(n)
		r := math.Sqrt(1 - y*y)
		th := golden * float64(i)
		pts[i] = Vec3{r * math.Cos(th), y, r * math.Sin(th)}
	}
	return pts
}

// distort maps unit-sphere points through raw = a·u + b.
func distort(pts []Vec3, a Mat3, b Vec3) []Vec3 {
	out := make([]Vec3, len(pts))
	for i, u := range pts {
		v := a.MulVec(u)
		out[i] = Vec3{v[0] + b[0], v[1] + b[1], v[2] + b[2]}
	}
	return out
}

func assertClose(t *testing.T, what string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s = %.12g, want %.12g (tol %g)", what, got, want, tol)
	}
}
