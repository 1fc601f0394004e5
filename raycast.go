package forge

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3 // normalized
}

type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// IntersectAABB is a slab test. Returns the entry distance along the ray
// and whether the box was hit; rays starting inside report t=0.
func (r Ray) IntersectAABB(b AABB) (float32, bool) {
	tmin := float32(0)
	tmax := float32(math.MaxFloat32)

	for i := 0; i < 3; i++ {
		if abs32(r.Dir[i]) < 1e-8 {
			if r.Origin[i] < b.Min[i] || r.Origin[i] > b.Max[i] {
				return 0, false
			}
			continue
		}
		inv := 1.0 / r.Dir[i]
		t1 := (b.Min[i] - r.Origin[i]) * inv
		t2 := (b.Max[i] - r.Origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// IntersectPlane returns the distance to the plane through point with the
// given normal, or false when the ray runs parallel to it.
func (r Ray) IntersectPlane(point, normal mgl32.Vec3) (float32, bool) {
	denom := r.Dir.Dot(normal)
	if abs32(denom) < 1e-6 {
		return 0, false
	}
	t := point.Sub(r.Origin).Dot(normal) / denom
	return t, t > 0
}

// ClosestPoints finds the nearest approach between the ray and the line
// through ao with direction ad. Returns (t along ray, s along line,
// separation distance). Degenerate near-parallel setups report the raw
// origin separation.
func (r Ray) ClosestPoints(ao, ad mgl32.Vec3) (float32, float32, float32) {
	rel := r.Origin.Sub(ao)
	a := r.Dir.Dot(r.Dir)
	b := r.Dir.Dot(ad)
	e := ad.Dot(ad)
	f := ad.Dot(rel)

	det := a*e - b*b
	if det < 1e-6 {
		return 0, 0, rel.Len()
	}

	c := r.Dir.Dot(rel)
	t := (b*f - c*e) / det
	s := (a*f - b*c) / det

	p1 := r.Origin.Add(r.Dir.Mul(t))
	p2 := ao.Add(ad.Mul(s))
	return t, s, p1.Sub(p2).Len()
}

// PickResult is a scene pick outcome.
type PickResult struct {
	Node *Node
	T    float32
	Hit  bool
}

// PickScene walks the graph and returns the nearest pickable node hit by
// the ray. Internal nodes (gizmo handles, control visuals) mark
// themselves unpickable and are skipped.
func PickScene(scene *Scene, ray Ray, maxDist float32) PickResult {
	best := PickResult{T: maxDist}
	scene.Walk(func(n *Node) bool {
		if !n.Pickable() || n.HalfExtents == (mgl32.Vec3{}) {
			return true
		}
		if t, ok := ray.IntersectAABB(n.WorldAABB()); ok && t < best.T {
			best = PickResult{Node: n, T: t, Hit: true}
		}
		return true
	})
	return best
}
