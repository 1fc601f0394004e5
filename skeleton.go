package forge

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// BoneDef is one joint in a rig definition. Head is the joint position
// relative to the parent joint; Length runs along the bone's local +Y.
type BoneDef struct {
	Name   string
	Parent string // empty for the root
	Head   mgl32.Vec3
	Length float32
}

// Rig is a skeleton definition, typically loaded with a character asset.
type Rig struct {
	Name  string
	Bones []BoneDef
}

// HumanoidRig is the built-in biped used for placeholder characters and
// tests: hips up to head, two arms, two legs.
func HumanoidRig() *Rig {
	return &Rig{
		Name: "humanoid",
		Bones: []BoneDef{
			{Name: "hips", Head: mgl32.Vec3{0, 1.0, 0}, Length: 0.2},
			{Name: "spine", Parent: "hips", Head: mgl32.Vec3{0, 0.2, 0}, Length: 0.25},
			{Name: "chest", Parent: "spine", Head: mgl32.Vec3{0, 0.25, 0}, Length: 0.25},
			{Name: "neck", Parent: "chest", Head: mgl32.Vec3{0, 0.25, 0}, Length: 0.1},
			{Name: "head", Parent: "neck", Head: mgl32.Vec3{0, 0.1, 0}, Length: 0.2},

			{Name: "shoulder.L", Parent: "chest", Head: mgl32.Vec3{-0.2, 0.2, 0}, Length: 0.3},
			{Name: "elbow.L", Parent: "shoulder.L", Head: mgl32.Vec3{-0.3, 0, 0}, Length: 0.3},
			{Name: "hand.L", Parent: "elbow.L", Head: mgl32.Vec3{-0.3, 0, 0}, Length: 0.1},

			{Name: "shoulder.R", Parent: "chest", Head: mgl32.Vec3{0.2, 0.2, 0}, Length: 0.3},
			{Name: "elbow.R", Parent: "shoulder.R", Head: mgl32.Vec3{0.3, 0, 0}, Length: 0.3},
			{Name: "hand.R", Parent: "elbow.R", Head: mgl32.Vec3{0.3, 0, 0}, Length: 0.1},

			{Name: "hip.L", Parent: "hips", Head: mgl32.Vec3{-0.12, -0.05, 0}, Length: 0.45},
			{Name: "knee.L", Parent: "hip.L", Head: mgl32.Vec3{0, -0.45, 0}, Length: 0.45},
			{Name: "foot.L", Parent: "knee.L", Head: mgl32.Vec3{0, -0.45, 0}, Length: 0.15},

			{Name: "hip.R", Parent: "hips", Head: mgl32.Vec3{0.12, -0.05, 0}, Length: 0.45},
			{Name: "knee.R", Parent: "hip.R", Head: mgl32.Vec3{0, -0.45, 0}, Length: 0.45},
			{Name: "foot.R", Parent: "knee.R", Head: mgl32.Vec3{0, -0.45, 0}, Length: 0.15},
		},
	}
}

var rigFactories = map[string]func() *Rig{
	"humanoid": HumanoidRig,
}

// RegisterRig makes a rig loadable by name from scene documents.
func RegisterRig(name string, factory func() *Rig) {
	rigFactories[name] = factory
}

// RigByName builds the rig registered under name, or nil when the name
// is unknown.
func RigByName(name string) *Rig {
	if factory, ok := rigFactories[name]; ok {
		return factory()
	}
	return nil
}

// Bone is a live joint. Its scene node hangs under the parent bone's
// node, so posing is ordinary transform propagation.
type Bone struct {
	Name   string
	Length float32
	Rest   Transform

	parent   *Bone
	children []*Bone
	node     *Node
}

func (b *Bone) Node() *Node   { return b.node }
func (b *Bone) Parent() *Bone { return b.parent }

// Pose returns the bone's local rotation relative to its rest pose.
func (b *Bone) Pose() mgl32.Quat {
	return b.Rest.Rotation.Conjugate().Mul(b.node.LocalRotation()).Normalize()
}

// SetPose rotates the bone away from its rest pose.
func (b *Bone) SetPose(q mgl32.Quat) {
	b.node.SetLocalRotation(b.Rest.Rotation.Mul(q).Normalize())
}

// ResetPose returns the bone to its rest orientation.
func (b *Bone) ResetPose() {
	b.node.SetLocalRotation(b.Rest.Rotation)
}

// TipWorld is the world position of the bone's far end.
func (b *Bone) TipWorld() mgl32.Vec3 {
	return b.node.WorldPosition().Add(
		b.node.WorldRotation().Rotate(mgl32.Vec3{0, b.Length, 0}))
}

// Skeleton is a rig instantiated under a character's node.
type Skeleton struct {
	RigName string
	Bones   []*Bone
	byName  map[string]*Bone

	// PoseVersion bumps whenever a bone moves so the render collaborator
	// knows to re-skin.
	PoseVersion int
}

// NewSkeleton builds bone nodes under owner following the rig hierarchy.
// Bone nodes are unpickable until the character is selected.
func NewSkeleton(scene *Scene, owner *Node, rig *Rig) *Skeleton {
	sk := &Skeleton{RigName: rig.Name, byName: make(map[string]*Bone)}

	for _, def := range rig.Bones {
		rest := IdentityTransform()
		rest.Position = def.Head

		bone := &Bone{
			Name:   def.Name,
			Length: def.Length,
			Rest:   rest,
			node:   scene.NewNode("bone:" + def.Name),
		}
		bone.node.SetTransform(rest)
		bone.node.HalfExtents = mgl32.Vec3{0.05, 0.05, 0.05}
		bone.node.SetPickable(false)
		bone.node.SetVisible(false)

		if def.Parent == "" {
			bone.node.SetParent(owner)
		} else {
			parent := sk.byName[def.Parent]
			if parent == nil {
				// Rig definitions must list parents first.
				bone.node.SetParent(owner)
			} else {
				bone.parent = parent
				parent.children = append(parent.children, bone)
				bone.node.SetParent(parent.node)
			}
		}

		sk.Bones = append(sk.Bones, bone)
		sk.byName[def.Name] = bone
	}
	return sk
}

func (sk *Skeleton) Bone(name string) *Bone { return sk.byName[name] }

// ChainTo returns the bones from the root down to the named bone,
// inclusive, tip last. Nil if the bone is unknown.
func (sk *Skeleton) ChainTo(tip string) []*Bone {
	bone := sk.byName[tip]
	if bone == nil {
		return nil
	}
	var chain []*Bone
	for b := bone; b != nil; b = b.parent {
		chain = append([]*Bone{b}, chain...)
	}
	return chain
}

// Pose captures every bone's local rotation, keyed by bone name. This is
// the quaternion map persisted in scene documents.
func (sk *Skeleton) Pose() map[string]mgl32.Quat {
	pose := make(map[string]mgl32.Quat, len(sk.Bones))
	for _, b := range sk.Bones {
		pose[b.Name] = b.node.LocalRotation()
	}
	return pose
}

// ApplyPose restores local rotations captured by Pose. Unknown bones are
// ignored so documents survive rig revisions.
func (sk *Skeleton) ApplyPose(pose map[string]mgl32.Quat) {
	for name, q := range pose {
		if b := sk.byName[name]; b != nil {
			b.node.SetLocalRotation(q)
		}
	}
	sk.PoseVersion++
}

// SolveCCD runs cyclic coordinate descent on the chain (tip last),
// pulling the tip bone's end toward the target. Returns whether the tip
// converged within tol. Bones rotate freely; joint limits are the
// caller's concern.
func SolveCCD(chain []*Bone, target mgl32.Vec3, iterations int, tol float32) bool {
	if len(chain) == 0 {
		return false
	}
	tip := chain[len(chain)-1]

	for it := 0; it < iterations; it++ {
		if tip.TipWorld().Sub(target).Len() <= tol {
			return true
		}
		for i := len(chain) - 1; i >= 0; i-- {
			b := chain[i]
			origin := b.node.WorldPosition()
			toTip := tip.TipWorld().Sub(origin)
			toTarget := target.Sub(origin)
			if toTip.Len() < 1e-5 || toTarget.Len() < 1e-5 {
				continue
			}
			toTip = toTip.Normalize()
			toTarget = toTarget.Normalize()

			cos := mgl32.Clamp(toTip.Dot(toTarget), -1, 1)
			angle := math32.Acos(cos)
			if angle < 1e-4 {
				continue
			}
			axis := toTip.Cross(toTarget)
			if axis.Len() < 1e-6 {
				continue
			}
			delta := mgl32.QuatRotate(angle, axis.Normalize())
			b.node.SetWorldRotation(delta.Mul(b.node.WorldRotation()).Normalize())
		}
	}
	return tip.TipWorld().Sub(target).Len() <= tol
}

// BoneControl is the selectable facet of one joint: a sub-part whose
// owning entity is the character. Rotation-only by contract.
type BoneControl struct {
	SelectableBehavior
	Owner *CharacterEntity
	Bone  *Bone

	Highlighted bool
}

func newBoneControl(owner *CharacterEntity, bone *Bone) *BoneControl {
	return &BoneControl{
		SelectableBehavior: SelectableBehavior{
			ID:     owner.ID() + "/" + bone.Name,
			Name:   bone.Name,
			Node:   bone.node,
			Modes:  TransformRotation,
			Mode:   TransformRotation,
			Handle: 0.4,
			Cursor: "crosshair",
		},
		Owner: owner,
		Bone:  bone,
	}
}

func (c *BoneControl) OwnerEntity() Entity { return c.Owner }

func (c *BoneControl) OnSelect()   { c.Highlighted = true }
func (c *BoneControl) OnDeselect() { c.Highlighted = false }

// Live phase hooks: the skeleton re-skins while the joint is dragged,
// not only at gesture end.
func (c *BoneControl) OnTransformStart()  { c.Owner.Skeleton.PoseVersion++ }
func (c *BoneControl) OnTransformUpdate() { c.Owner.Skeleton.PoseVersion++ }
func (c *BoneControl) OnTransformEnd()    { c.Owner.Skeleton.PoseVersion++ }
