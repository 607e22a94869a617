package magcal

import "testing"

func TestTransformApply(t *testing.T) {
	t.Run("identity leaves readings unchanged", func(t *testing.T) {
		id := Identity()
		raw := Vec3{12.5, -3, 400}
		if got := id.Apply(raw); got != raw {
			t.Fatalf("Apply = %v, want %v", got, raw)
		}
		if !id.IsIdentity() {
			t.Fatal("Identity().IsIdentity() = false")
		}
	})

	t.Run("offset then matrix", func(t *testing.T) {
		tr := Transform{
			Matrix: Mat3{{2, 0, 0}, {0, 0, 1}, {0, -1, 0}},
			Offset: Vec3{1, 2, 3},
		}
		got := tr.Apply(Vec3{2, 4, 8})
		want := Vec3{2, 5, -2}
		if got != want {
			t.Fatalf("Apply = %v, want %v", got, want)
		}
		all := tr.ApplyAll([]Vec3{{2, 4, 8}, {1, 2, 3}})
		if all[0] != want || all[1] != (Vec3{}) {
			t.Fatalf("ApplyAll = %v", all)
		}
	})
}
