package forge

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a local position/rotation/scale triple. Commands snapshot
// these wholesale so undo can restore a node bit-for-bit.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Node is a retained scene-graph node: a local transform under a parent,
// with a lazily solved world transform. Entities own nodes for their
// lifetime; disposal detaches the whole subtree.
type Node struct {
	Name string

	local  Transform
	parent *Node
	kids   []*Node

	visible  bool
	enabled  bool
	pickable bool

	// Local-space half extents used for ray picking.
	HalfExtents mgl32.Vec3

	worldDirty bool
	worldPos   mgl32.Vec3
	worldRot   mgl32.Quat
	worldScale mgl32.Vec3

	disposed bool
}

// Scene owns the node graph. The root node is not user-visible; top level
// nodes are its children.
type Scene struct {
	root *Node
}

func NewScene() *Scene {
	return &Scene{
		root: &Node{
			Name:       "root",
			local:      IdentityTransform(),
			visible:    true,
			enabled:    true,
			worldRot:   mgl32.QuatIdent(),
			worldScale: mgl32.Vec3{1, 1, 1},
		},
	}
}

// NewNode creates a visible, enabled, pickable node parented to the root.
func (s *Scene) NewNode(name string) *Node {
	n := &Node{
		Name:       name,
		local:      IdentityTransform(),
		visible:    true,
		enabled:    true,
		pickable:   true,
		worldDirty: true,
	}
	n.attachTo(s.root)
	return n
}

// Walk visits every live node depth-first, parents before children.
func (s *Scene) Walk(visit func(*Node) bool) {
	for _, child := range s.root.kids {
		if !walkNode(child, visit) {
			return
		}
	}
}

func walkNode(n *Node, visit func(*Node) bool) bool {
	if !visit(n) {
		return false
	}
	for _, child := range n.kids {
		if !walkNode(child, visit) {
			return false
		}
	}
	return true
}

// Dispose tears the whole graph down. Nodes disposed here must not be
// touched again; commands referencing them are invalid (history is
// cleared together with the scene).
func (s *Scene) Dispose() {
	for len(s.root.kids) > 0 {
		s.root.kids[0].Dispose()
	}
}

func (n *Node) attachTo(parent *Node) {
	if n.parent != nil {
		n.parent.removeChild(n)
	}
	n.parent = parent
	parent.kids = append(parent.kids, n)
	n.markWorldDirty()
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.kids {
		if c == child {
			n.kids = append(n.kids[:i], n.kids[i+1:]...)
			return
		}
	}
}

// SetParent reparents the node, keeping its local transform as-is.
func (n *Node) SetParent(parent *Node) {
	if parent == nil {
		// Climb back to the scene root.
		root := n.parent
		for root != nil && root.parent != nil {
			root = root.parent
		}
		if root != nil {
			n.attachTo(root)
		}
		return
	}
	n.attachTo(parent)
}

// Parent returns the owning node, or nil for top-level nodes.
func (n *Node) Parent() *Node {
	if n.parent == nil || n.parent.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []*Node { return n.kids }

// IsDescendantOf reports whether n is other or sits below it.
func (n *Node) IsDescendantOf(other *Node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

func (n *Node) Transform() Transform { return n.local }

func (n *Node) SetTransform(t Transform) {
	n.local = t
	n.markWorldDirty()
}

func (n *Node) LocalPosition() mgl32.Vec3 { return n.local.Position }
func (n *Node) LocalRotation() mgl32.Quat { return n.local.Rotation }
func (n *Node) LocalScale() mgl32.Vec3    { return n.local.Scale }

func (n *Node) SetLocalPosition(p mgl32.Vec3) {
	n.local.Position = p
	n.markWorldDirty()
}

func (n *Node) SetLocalRotation(q mgl32.Quat) {
	n.local.Rotation = q
	n.markWorldDirty()
}

func (n *Node) SetLocalScale(s mgl32.Vec3) {
	n.local.Scale = s
	n.markWorldDirty()
}

func (n *Node) markWorldDirty() {
	n.worldDirty = true
	for _, c := range n.kids {
		c.markWorldDirty()
	}
}

// solveWorld composes the parent world transform with the local one.
// WorldPos = ParentPos + ParentRot * (ParentScale * LocalPos); rotation
// and scale compose componentwise so reflections survive.
func (n *Node) solveWorld() {
	if !n.worldDirty {
		return
	}
	if n.parent == nil {
		n.worldPos = n.local.Position
		n.worldRot = n.local.Rotation
		n.worldScale = n.local.Scale
		n.worldDirty = false
		return
	}
	n.parent.solveWorld()
	pp, pr, ps := n.parent.worldPos, n.parent.worldRot, n.parent.worldScale

	scaled := mgl32.Vec3{
		n.local.Position.X() * ps.X(),
		n.local.Position.Y() * ps.Y(),
		n.local.Position.Z() * ps.Z(),
	}
	n.worldPos = pp.Add(pr.Rotate(scaled))
	n.worldRot = pr.Mul(n.local.Rotation).Normalize()
	n.worldScale = mgl32.Vec3{
		ps.X() * n.local.Scale.X(),
		ps.Y() * n.local.Scale.Y(),
		ps.Z() * n.local.Scale.Z(),
	}
	n.worldDirty = false
}

func (n *Node) WorldPosition() mgl32.Vec3 {
	n.solveWorld()
	return n.worldPos
}

func (n *Node) WorldRotation() mgl32.Quat {
	n.solveWorld()
	return n.worldRot
}

func (n *Node) WorldScale() mgl32.Vec3 {
	n.solveWorld()
	return n.worldScale
}

// SetWorldPosition moves the node so its world position matches p,
// adjusting the local transform relative to the parent.
func (n *Node) SetWorldPosition(p mgl32.Vec3) {
	if n.Parent() == nil {
		n.SetLocalPosition(p)
		return
	}
	n.parent.solveWorld()
	pp, pr, ps := n.parent.worldPos, n.parent.worldRot, n.parent.worldScale
	diff := pr.Conjugate().Rotate(p.Sub(pp))
	n.SetLocalPosition(mgl32.Vec3{
		diff.X() / (ps.X() + 1e-6),
		diff.Y() / (ps.Y() + 1e-6),
		diff.Z() / (ps.Z() + 1e-6),
	})
}

// SetWorldRotation orients the node so its world rotation matches q.
func (n *Node) SetWorldRotation(q mgl32.Quat) {
	if n.Parent() == nil {
		n.SetLocalRotation(q)
		return
	}
	n.parent.solveWorld()
	n.SetLocalRotation(n.parent.worldRot.Conjugate().Mul(q).Normalize())
}

// WorldAABB returns the node's picking bounds in world space.
func (n *Node) WorldAABB() AABB {
	n.solveWorld()
	he := mgl32.Vec3{
		n.HalfExtents.X() * abs32(n.worldScale.X()),
		n.HalfExtents.Y() * abs32(n.worldScale.Y()),
		n.HalfExtents.Z() * abs32(n.worldScale.Z()),
	}
	rhe := rotatedExtents(n.worldRot, he)
	return AABB{Min: n.worldPos.Sub(rhe), Max: n.worldPos.Add(rhe)}
}

func (n *Node) Visible() bool { return n.visible }
func (n *Node) Enabled() bool { return n.enabled }

// SetEnabled toggles the node in and out of the live scene: hidden,
// unpickable, but fully retained. Soft delete uses this.
func (n *Node) SetEnabled(enabled bool) {
	n.enabled = enabled
	n.visible = enabled
}

func (n *Node) SetVisible(v bool) { n.visible = v }

func (n *Node) Pickable() bool     { return n.pickable && n.enabled }
func (n *Node) SetPickable(p bool) { n.pickable = p }
func (n *Node) Disposed() bool     { return n.disposed }

// Dispose removes the node and its subtree from the graph for good.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	for len(n.kids) > 0 {
		n.kids[0].Dispose()
	}
	if n.parent != nil {
		n.parent.removeChild(n)
		n.parent = nil
	}
	n.disposed = true
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// rotatedExtents returns the axis-aligned half extents of a rotated box.
func rotatedExtents(q mgl32.Quat, he mgl32.Vec3) mgl32.Vec3 {
	m := q.Mat4()
	var out mgl32.Vec3
	for row := 0; row < 3; row++ {
		sum := float32(0)
		for col := 0; col < 3; col++ {
			sum += abs32(m.At(row, col)) * he[col]
		}
		out[row] = sum
	}
	return out
}
