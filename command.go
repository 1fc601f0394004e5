package forge

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Command is one reversible mutation against exactly one scene target.
// Undo must restore the target to exactly the state captured before the
// command ran; Execute must restore exactly the state after. Commands do
// not validate target liveness: history is scoped to the scene and
// cleared when the scene is torn down.
type Command interface {
	Execute()
	Undo()
	Name() string
}

// NoOpReporter lets a command report that its before and after states are
// equal. History refuses to push such commands so a cancelled drag never
// leaves a dead entry on the stack.
type NoOpReporter interface {
	IsNoOp() bool
}

// TransformCommand snapshots a node's full local transform at gesture
// start; UpdateFinalState captures the post-drag transform. When the
// final state was never captured the command executes to a no-op by
// construction.
type TransformCommand struct {
	node      *Node
	label     string
	initial   Transform
	final     Transform
	finalized bool
}

func NewTransformCommand(node *Node) *TransformCommand {
	return &TransformCommand{
		node:    node,
		label:   "Transform " + node.Name,
		initial: node.Transform(),
	}
}

// UpdateFinalState captures the node's transform at gesture end. Called
// by the gizmo on drag release.
func (c *TransformCommand) UpdateFinalState() {
	c.final = c.node.Transform()
	c.finalized = true
}

func (c *TransformCommand) IsNoOp() bool {
	return !c.finalized || c.final == c.initial
}

func (c *TransformCommand) Execute() {
	if !c.finalized {
		return
	}
	c.node.SetTransform(c.final)
}

func (c *TransformCommand) Undo() {
	c.node.SetTransform(c.initial)
}

func (c *TransformCommand) Name() string { return c.label }

// CreateEntityCommand builds the entity through its factory inside the
// first Execute. Undo disables rather than destroys, so redo re-enables
// the same instance without reconstructing.
type CreateEntityCommand struct {
	scene   *Scene
	factory EntityFactory
	label   string
	entity  Entity
	err     error
}

func NewCreateEntityCommand(scene *Scene, label string, factory EntityFactory) *CreateEntityCommand {
	return &CreateEntityCommand{
		scene:   scene,
		factory: factory,
		label:   "Create " + label,
	}
}

func (c *CreateEntityCommand) Execute() {
	if c.entity == nil && c.err == nil {
		c.entity, c.err = c.factory(c.scene)
		return
	}
	if c.entity != nil {
		c.entity.TargetNode().SetEnabled(true)
	}
}

func (c *CreateEntityCommand) Undo() {
	if c.entity != nil {
		c.entity.TargetNode().SetEnabled(false)
	}
}

func (c *CreateEntityCommand) Name() string { return c.label }

// Entity returns the created entity after the first Execute; nil before
// that or when the factory failed.
func (c *CreateEntityCommand) Entity() Entity { return c.entity }

// Err reports a factory failure from the first Execute.
func (c *CreateEntityCommand) Err() error { return c.err }

// DeleteEntityCommand soft-deletes: the node is disabled, never
// disposed, keeping undo cheap and replay safe.
type DeleteEntityCommand struct {
	entity     Entity
	wasEnabled bool
}

func NewDeleteEntityCommand(entity Entity) *DeleteEntityCommand {
	return &DeleteEntityCommand{
		entity:     entity,
		wasEnabled: entity.TargetNode().Enabled(),
	}
}

func (c *DeleteEntityCommand) Execute() {
	c.entity.TargetNode().SetEnabled(false)
}

func (c *DeleteEntityCommand) Undo() {
	c.entity.TargetNode().SetEnabled(c.wasEnabled)
}

func (c *DeleteEntityCommand) Name() string {
	return "Delete " + c.entity.DisplayName()
}

// BoneRotationCommand is the transform pattern specialized to one joint
// quaternion.
type BoneRotationCommand struct {
	control   *BoneControl
	initial   mgl32.Quat
	final     mgl32.Quat
	finalized bool
}

func NewBoneRotationCommand(control *BoneControl) *BoneRotationCommand {
	return &BoneRotationCommand{
		control: control,
		initial: control.Bone.Node().LocalRotation(),
	}
}

func (c *BoneRotationCommand) UpdateFinalState() {
	c.final = c.control.Bone.Node().LocalRotation()
	c.finalized = true
}

func (c *BoneRotationCommand) IsNoOp() bool {
	return !c.finalized || c.final == c.initial
}

func (c *BoneRotationCommand) Execute() {
	if !c.finalized {
		return
	}
	c.control.Bone.Node().SetLocalRotation(c.final)
	c.control.Owner.Skeleton.PoseVersion++
}

func (c *BoneRotationCommand) Undo() {
	c.control.Bone.Node().SetLocalRotation(c.initial)
	c.control.Owner.Skeleton.PoseVersion++
}

func (c *BoneRotationCommand) Name() string {
	return "Rotate " + c.control.Bone.Name
}
