package forge

import (
	"testing"
)

func newSelectionFixture(t *testing.T) (*Scene, *SelectionManager, *History) {
	t.Helper()
	scene := NewScene()
	h := NewHistory(0, nil)
	gizmo := NewTransformGizmo(h, nil)
	return scene, NewSelectionManager(gizmo, nil), h
}

func TestSelectEntity(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	box := NewShapeEntity(scene, "box", ShapeBox)

	sm.Select(box)

	if sm.Current() != Selectable(box) || sm.CurrentEntity() != Entity(box) {
		t.Fatal("selecting an entity sets both levels to it")
	}
	if !box.Highlighted {
		t.Error("selection should run the entity's select hook")
	}
}

func TestEntityReselectIsIdempotent(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	box := NewShapeEntity(scene, "box", ShapeBox)

	changes := 0
	sm.EntityChanged.Subscribe(func(Entity) { changes++ })

	sm.Select(box)
	sm.Select(box)

	if changes != 1 {
		t.Errorf("re-selecting the current entity must not re-fire, got %d", changes)
	}
}

func TestBoneSwapKeepsCharacterSelected(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	ch := NewCharacterEntity(scene, "rig", HumanoidRig())
	b1 := ch.ControlForBone("hand.L")
	b2 := ch.ControlForBone("hand.R")

	changes := 0
	sm.EntityChanged.Subscribe(func(Entity) { changes++ })

	sm.Select(ch)
	sm.Select(b1)
	sm.Select(b2)

	if sm.CurrentEntity() != Entity(ch) {
		t.Fatal("swapping bones keeps the character as current entity")
	}
	if !ch.Highlighted {
		t.Error("the character's teardown must not run on a sibling bone swap")
	}
	if b1.Node.Visible() != true {
		t.Error("bone controls stay visible while the character is selected")
	}
	if b1.Highlighted {
		t.Error("the replaced bone control is deselected")
	}
	if !b2.Highlighted {
		t.Error("the new bone control is selected")
	}
	if changes != 1 {
		t.Errorf("EntityChanged fires only when the entity changes, got %d", changes)
	}
}

func TestSelectingBonePromotesItsCharacter(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	ch := NewCharacterEntity(scene, "rig", HumanoidRig())
	b1 := ch.ControlForBone("knee.R")

	sm.Select(b1)

	if sm.CurrentEntity() != Entity(ch) {
		t.Fatal("a sub-part selection promotes its owner to current entity")
	}
	if !ch.Highlighted {
		t.Error("the owner's select hook runs on promotion")
	}
	if !b1.Node.Visible() {
		t.Error("promotion shows the character's controls")
	}
}

func TestSelectingOtherEntityTearsDownCharacter(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	ch := NewCharacterEntity(scene, "rig", HumanoidRig())
	box := NewShapeEntity(scene, "box", ShapeBox)
	b1 := ch.ControlForBone("spine")

	sm.Select(b1)
	sm.Select(box)

	if sm.CurrentEntity() != Entity(box) {
		t.Fatal("selecting an unrelated entity replaces the character")
	}
	if ch.Highlighted {
		t.Error("the character's deselect hook runs on replacement")
	}
	if b1.Highlighted {
		t.Error("the active bone control is torn down with its owner")
	}
	if b1.Node.Visible() {
		t.Error("leaving the character hides its controls")
	}
	if !box.Highlighted {
		t.Error("the new entity is selected")
	}
}

// anchorSelectable is a bare selectable with no owning entity, like an
// attachment point parented under an entity's node.
type anchorSelectable struct {
	SelectableBehavior
	selected bool
}

func (a *anchorSelectable) OnSelect()   { a.selected = true }
func (a *anchorSelectable) OnDeselect() { a.selected = false }

func TestOwnerlessSelectableUnderEntityKeepsIt(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	box := NewShapeEntity(scene, "box", ShapeBox)

	inner := scene.NewNode("socket")
	inner.SetParent(box.TargetNode())
	socket := &anchorSelectable{SelectableBehavior: SelectableBehavior{
		ID: "socket", Name: "socket", Node: inner, Modes: TransformPosition,
	}}

	loose := scene.NewNode("marker")
	marker := &anchorSelectable{SelectableBehavior: SelectableBehavior{
		ID: "marker", Name: "marker", Node: loose, Modes: TransformPosition,
	}}

	sm.Select(box)
	sm.Select(socket)
	if sm.CurrentEntity() != Entity(box) {
		t.Fatal("a selectable under the entity's node keeps it selected")
	}
	if !box.Highlighted {
		t.Error("the entity's deselect hook must not run")
	}

	sm.Select(marker)
	if sm.CurrentEntity() != nil {
		t.Error("a selectable outside the entity clears the entity level")
	}
	if box.Highlighted {
		t.Error("leaving the entity runs its deselect hook")
	}
}

func TestDeselectAll(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	ch := NewCharacterEntity(scene, "rig", HumanoidRig())
	b1 := ch.ControlForBone("neck")

	cleared := false
	sm.EntityChanged.Subscribe(func(e Entity) { cleared = e == nil })

	sm.Select(b1)
	sm.DeselectAll()

	if sm.Current() != nil || sm.CurrentEntity() != nil {
		t.Fatal("DeselectAll clears both levels")
	}
	if ch.Highlighted || b1.Highlighted {
		t.Error("both hooks run on a full deselect")
	}
	if !cleared {
		t.Error("a full deselect publishes a nil entity")
	}
}

func TestDeselectAllWhenEmptyIsSilent(t *testing.T) {
	_, sm, _ := newSelectionFixture(t)

	fired := 0
	sm.EntityChanged.Subscribe(func(Entity) { fired++ })

	sm.DeselectAll()

	if fired != 0 {
		t.Errorf("deselecting nothing must not publish, got %d events", fired)
	}
}

func TestSelectNilClears(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	box := NewShapeEntity(scene, "box", ShapeBox)

	sm.Select(box)
	sm.Select(nil)

	if sm.Current() != nil || sm.CurrentEntity() != nil {
		t.Error("Select(nil) behaves like DeselectAll")
	}
}

func TestSelectionAttachesGizmo(t *testing.T) {
	scene, sm, _ := newSelectionFixture(t)
	light := NewLightEntity(scene, "key", LightPoint)

	sm.Select(light)

	gizmo := sm.gizmo
	if gizmo.Target() != Selectable(light) {
		t.Fatal("selection points the gizmo at the entity")
	}
	if !light.AllowedModes().Has(gizmo.Mode()) {
		t.Errorf("the gizmo adopts an allowed mode, got %v", gizmo.Mode())
	}

	sm.DeselectAll()
	if gizmo.Target() != nil {
		t.Error("deselect detaches the gizmo")
	}
}
