package forge

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestTransformCommandSnapshotPair(t *testing.T) {
	scene := NewScene()
	node := scene.NewNode("crate")

	cmd := NewTransformCommand(node)
	node.SetLocalPosition(mgl32.Vec3{1, 2, 3})
	cmd.UpdateFinalState()

	cmd.Undo()
	if node.LocalPosition() != (mgl32.Vec3{0, 0, 0}) {
		t.Errorf("undo should restore the initial transform, got %v", node.LocalPosition())
	}

	cmd.Execute()
	if node.LocalPosition() != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("execute should restore the final transform, got %v", node.LocalPosition())
	}

	// Redo idempotence: executing again changes nothing.
	cmd.Execute()
	if node.LocalPosition() != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("repeated execute must be stable, got %v", node.LocalPosition())
	}
}

func TestTransformCommandNoOpDetection(t *testing.T) {
	scene := NewScene()
	node := scene.NewNode("crate")

	cmd := NewTransformCommand(node)
	if !cmd.IsNoOp() {
		t.Error("an unfinalized command is a no-op")
	}

	cmd.UpdateFinalState()
	if !cmd.IsNoOp() {
		t.Error("a drag that moved nothing is a no-op")
	}

	node.SetLocalPosition(mgl32.Vec3{0, 1, 0})
	cmd.UpdateFinalState()
	if cmd.IsNoOp() {
		t.Error("a real move is not a no-op")
	}
}

func TestCreateEntityCommandFactoryRunsOnce(t *testing.T) {
	scene := NewScene()
	calls := 0
	cmd := NewCreateEntityCommand(scene, "box", func(s *Scene) (Entity, error) {
		calls++
		return NewShapeEntity(s, "box", ShapeBox), nil
	})

	if cmd.Entity() != nil {
		t.Fatal("construction must not run the factory")
	}

	cmd.Execute()
	ent := cmd.Entity()
	if ent == nil || calls != 1 {
		t.Fatalf("first execute runs the factory exactly once, calls=%d", calls)
	}

	cmd.Undo()
	if ent.TargetNode().Enabled() {
		t.Error("undo should disable the entity")
	}

	cmd.Execute()
	if calls != 1 {
		t.Errorf("redo must reuse the instance, factory ran %d times", calls)
	}
	if !ent.TargetNode().Enabled() {
		t.Error("redo should re-enable the entity")
	}
	if cmd.Entity() != ent {
		t.Error("redo must yield the same entity instance")
	}
}

func TestCreateEntityCommandFactoryFailure(t *testing.T) {
	scene := NewScene()
	boom := errors.New("mesh import failed")
	cmd := NewCreateEntityCommand(scene, "box", func(s *Scene) (Entity, error) {
		return nil, boom
	})

	cmd.Execute()
	if !errors.Is(cmd.Err(), boom) {
		t.Fatalf("factory error should surface, got %v", cmd.Err())
	}

	// Both directions are safe after a failure.
	cmd.Undo()
	cmd.Execute()
	if cmd.Entity() != nil {
		t.Error("a failed create never yields an entity")
	}
}

func TestDeleteEntityCommandPreservesTransform(t *testing.T) {
	scene := NewScene()
	ent := NewShapeEntity(scene, "box", ShapeBox)
	ent.Node.SetLocalPosition(mgl32.Vec3{4, 5, 6})

	cmd := NewDeleteEntityCommand(ent)
	cmd.Execute()
	if ent.Node.Enabled() || ent.Node.Pickable() {
		t.Error("delete should disable and unpick the node")
	}

	cmd.Undo()
	if !ent.Node.Enabled() {
		t.Error("undo should restore the entity")
	}
	if ent.Node.LocalPosition() != (mgl32.Vec3{4, 5, 6}) {
		t.Errorf("soft delete must keep the transform, got %v", ent.Node.LocalPosition())
	}
}

// The full editing story: create, move, then walk history backwards.
func TestCreateMoveUndoSequence(t *testing.T) {
	scene := NewScene()
	h := NewHistory(0, nil)

	create := NewCreateEntityCommand(scene, "box", func(s *Scene) (Entity, error) {
		return NewShapeEntity(s, "box", ShapeBox), nil
	})
	h.Do(create)
	ent := create.Entity()
	node := ent.TargetNode()

	move := NewTransformCommand(node)
	node.SetLocalPosition(mgl32.Vec3{1, 2, 3})
	move.UpdateFinalState()
	h.Do(move)

	h.Undo()
	if !node.Enabled() {
		t.Error("after one undo the entity is still alive")
	}
	if node.LocalPosition() != (mgl32.Vec3{0, 0, 0}) {
		t.Errorf("after one undo the entity is back at origin, got %v", node.LocalPosition())
	}

	h.Undo()
	if node.Enabled() {
		t.Error("after the second undo the creation itself is rolled back")
	}

	h.Redo()
	h.Redo()
	if !node.Enabled() || node.LocalPosition() != (mgl32.Vec3{1, 2, 3}) {
		t.Error("redoing both steps restores the moved entity")
	}
}

func TestBoneRotationCommand(t *testing.T) {
	scene := NewScene()
	ch := NewCharacterEntity(scene, "rig", HumanoidRig())
	ctl := ch.ControlForBone("head")
	if ctl == nil {
		t.Fatal("humanoid rig should have a head control")
	}

	rest := ctl.Bone.Node().LocalRotation()
	version := ch.Skeleton.PoseVersion

	cmd := NewBoneRotationCommand(ctl)
	turned := mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0}).Mul(rest)
	ctl.Bone.Node().SetLocalRotation(turned)
	cmd.UpdateFinalState()

	cmd.Undo()
	if got := ctl.Bone.Node().LocalRotation(); got != rest {
		t.Errorf("undo should restore the rest rotation, got %v", got)
	}

	cmd.Execute()
	if got := ctl.Bone.Node().LocalRotation(); got != turned {
		t.Errorf("execute should restore the posed rotation, got %v", got)
	}

	if ch.Skeleton.PoseVersion <= version {
		t.Error("undo/redo should bump the pose version")
	}
}
