package forge

import (
	"reflect"

	"github.com/go-gl/mathgl/mgl32"
)

// Editor is the central resource binding the scene graph to the undo
// stack and the selection machinery. Entities spawned through it go
// through the history so creation and deletion are undoable.
type Editor struct {
	Scene     *Scene
	History   *History
	Selection *SelectionManager
	Gizmo     *TransformGizmo

	registry map[*Node]Selectable
	entities []Entity
	log      Logger
}

func NewEditor(scene *Scene, history *History, log Logger) *Editor {
	if log == nil {
		log = NewNopLogger()
	}
	gizmo := NewTransformGizmo(history, log)
	return &Editor{
		Scene:     scene,
		History:   history,
		Selection: NewSelectionManager(gizmo, log),
		Gizmo:     gizmo,
		registry:  map[*Node]Selectable{},
		log:       log,
	}
}

// Register makes a selectable reachable from picking via its target node.
func (ed *Editor) Register(sel Selectable) {
	ed.registry[sel.TargetNode()] = sel
}

func (ed *Editor) Unregister(sel Selectable) {
	delete(ed.registry, sel.TargetNode())
}

// SelectableAt resolves a picked node to its selectable, walking up the
// hierarchy so child geometry nodes resolve to their owning entity.
func (ed *Editor) SelectableAt(node *Node) Selectable {
	for n := node; n != nil; n = n.Parent() {
		if sel, ok := ed.registry[n]; ok {
			return sel
		}
	}
	return nil
}

// Entities returns the live (enabled) entities, in creation order.
func (ed *Editor) Entities() []Entity {
	out := make([]Entity, 0, len(ed.entities))
	for _, e := range ed.entities {
		if e.TargetNode().Enabled() {
			out = append(out, e)
		}
	}
	return out
}

func (ed *Editor) EntityByID(id string) Entity {
	for _, e := range ed.entities {
		if e.ID() == id {
			return e
		}
	}
	return nil
}

// Spawn creates an entity through the history so the creation can be
// undone. The factory runs inside the command's first execute; on
// failure the command never enters the history.
func (ed *Editor) Spawn(label string, factory EntityFactory) (Entity, error) {
	cmd := NewCreateEntityCommand(ed.Scene, label, factory)
	cmd.Execute()
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	ed.History.Do(cmd)
	ent := cmd.Entity()
	ed.adopt(ent)
	return ent, nil
}

// adopt registers an entity (and its controls) without touching history.
// Used by Spawn and by document loading.
func (ed *Editor) adopt(ent Entity) {
	ed.entities = append(ed.entities, ent)
	ed.Register(ent)
	if ch, ok := ent.(*CharacterEntity); ok {
		for _, ctl := range ch.BoneControls() {
			ed.Register(ctl)
		}
	}
	ed.log.Infof("entity %s (%s) added", ent.DisplayName(), ent.Kind())
}

// Delete removes entity through the history. The entity is deselected
// first so a later undo restores it unselected.
func (ed *Editor) Delete(ent Entity) {
	if ed.Selection.CurrentEntity() == ent {
		ed.Selection.DeselectAll()
	}
	ed.History.Do(NewDeleteEntityCommand(ent))
}

// DeleteSelected deletes the current entity, if any.
func (ed *Editor) DeleteSelected() {
	if ent := ed.Selection.CurrentEntity(); ent != nil {
		ed.Delete(ent)
	}
}

// Duplicate clones an entity through the history, reusing the document
// payload as the copy recipe. The clone lands offset so it does not
// hide under the original.
func (ed *Editor) Duplicate(ent Entity) (Entity, error) {
	data, err := entityDataFor(ed, ent)
	if err != nil {
		return nil, err
	}
	return ed.Spawn(ent.DisplayName()+" copy", func(s *Scene) (Entity, error) {
		clone, header, err := buildEntity(s, ed.log, data)
		if err != nil {
			return nil, err
		}
		header.restore(clone)
		clone.TargetNode().SetLocalPosition(
			clone.TargetNode().LocalPosition().Add(mgl32.Vec3{0.5, 0, 0.5}))
		return clone, nil
	})
}

// EditorModule installs the Editor resource plus the interaction and
// shortcut systems. Scene and History are created here unless another
// module provided them already.
type EditorModule struct {
	HistoryDepth int
}

func (m EditorModule) Install(app *App) {
	depth := m.HistoryDepth
	if depth <= 0 {
		depth = defaultHistoryDepth
	}

	log := app.Logger()

	var scene *Scene
	if t := reflect.TypeOf((*Scene)(nil)).Elem(); app.resources[t] != nil {
		scene = app.resources[t].(*Scene)
	} else {
		scene = NewScene()
		app.AddResources(scene)
	}

	history := NewHistory(depth, log)
	ed := NewEditor(scene, history, log)
	app.AddResources(history, ed)
	app.OnDispose(func() {
		history.Clear()
		scene.Dispose()
	})

	app.UseSystem(System(editorInteractionSystem).InStage(StageUpdate))
	app.UseSystem(System(editorShortcutSystem).InStage(StageUpdate))
	app.UseSystem(System(editorFocusSystem).InStage(StageUpdate))
}

// editorInteractionSystem drives pick-and-drag with the mouse: gizmo
// handles first, then scene geometry, then empty space clears the
// selection.
func editorInteractionSystem(ed *Editor, input *Input, cam *Camera) {
	if input.MouseCaptured {
		return
	}

	ray := cam.ScreenRay(input.MouseX, input.MouseY, input.WindowWidth, input.WindowHeight)

	if ed.Gizmo.Dragging() {
		switch {
		case input.JustPressed[KeyEscape]:
			ed.Gizmo.CancelDrag()
		case input.JustReleased[MouseButtonLeft]:
			ed.Gizmo.EndDrag()
		default:
			ed.Gizmo.UpdateDrag(ray)
		}
		return
	}

	if !input.JustPressed[MouseButtonLeft] {
		return
	}

	// A gizmo handle wins over geometry behind it.
	if ed.Gizmo.Target() != nil && ed.Gizmo.BeginDrag(ray) {
		return
	}

	hit := PickScene(ed.Scene, ray, cam.Far)
	if !hit.Hit {
		ed.Selection.DeselectAll()
		return
	}

	sel := ed.SelectableAt(hit.Node)
	if sel == nil {
		ed.Selection.DeselectAll()
		return
	}

	if sel == ed.Selection.Current() && sel.AllowedModes().Has(TransformPosition) {
		// Clicking the already-selected body starts a free drag in the
		// camera plane instead of re-running selection.
		ed.Gizmo.BeginFreeDrag(ray, hit.T, cam.Forward())
		return
	}

	ed.Selection.Select(sel)
}

// editorShortcutSystem handles the keyboard: undo/redo, delete, gizmo
// mode switching, and deselect.
func editorShortcutSystem(ed *Editor, input *Input) {
	ctrl := input.Pressed[KeyControl]

	switch {
	case ctrl && input.JustPressed[KeyZ] && input.Pressed[KeyShift]:
		ed.History.Redo()
	case ctrl && input.JustPressed[KeyZ]:
		ed.History.Undo()
	case ctrl && input.JustPressed[KeyY]:
		ed.History.Redo()
	case ctrl && input.JustPressed[KeyD]:
		if ent := ed.Selection.CurrentEntity(); ent != nil {
			if clone, err := ed.Duplicate(ent); err == nil {
				ed.Selection.Select(clone)
			}
		}
	case input.JustPressed[KeyDelete]:
		ed.DeleteSelected()
	case input.JustPressed[KeyEscape]:
		ed.Selection.DeselectAll()
	}

	if ed.Gizmo.Target() == nil || ed.Gizmo.Dragging() {
		return
	}
	switch {
	case input.JustPressed[Key1]:
		ed.Gizmo.SetMode(TransformPosition)
	case input.JustPressed[Key2]:
		ed.Gizmo.SetMode(TransformRotation)
	case input.JustPressed[Key3]:
		ed.Gizmo.SetMode(TransformScale)
	case input.JustPressed[Key4]:
		ed.Gizmo.SetMode(TransformBoundingBox)
	}
}

// editorFocusSystem frames the selection: F pulls the camera back from
// the target along its current view direction.
func editorFocusSystem(ed *Editor, input *Input, cam *Camera) {
	if !input.JustPressed[KeyF] {
		return
	}
	ent := ed.Selection.CurrentEntity()
	if ent == nil {
		return
	}
	box := ent.TargetNode().WorldAABB()
	dist := box.Size().Len()*1.5 + 2
	cam.Position = box.Center().Sub(cam.Forward().Mul(dist))
}
