package forge

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type GizmoShapeType int

const (
	GizmoLine GizmoShapeType = iota
	GizmoCube
	GizmoSphere
	GizmoRect
	GizmoCircle
)

// GizmoShape is a renderable wireframe description. This module never
// draws; the render collaborator consumes these.
type GizmoShape struct {
	Type  GizmoShapeType
	Color [4]float32

	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	LineEnd mgl32.Vec3 // GizmoLine end point
	Radius  float32    // GizmoSphere / GizmoCircle
}

func NewGizmoLine(start, end mgl32.Vec3, color [4]float32) GizmoShape {
	return GizmoShape{
		Type:     GizmoLine,
		Position: start,
		LineEnd:  end,
		Color:    color,
		Scale:    mgl32.Vec3{1, 1, 1},
		Rotation: mgl32.QuatIdent(),
	}
}

func NewGizmoCircle(center mgl32.Vec3, rot mgl32.Quat, radius float32, color [4]float32) GizmoShape {
	return GizmoShape{
		Type:     GizmoCircle,
		Position: center,
		Rotation: rot,
		Radius:   radius,
		Scale:    mgl32.Vec3{1, 1, 1},
		Color:    color,
	}
}

const (
	gizmoAxisLen    float32 = 2.0
	gizmoAxisReach  float32 = 2.2
	gizmoAxisHit    float32 = 0.25
	gizmoRingRadius float32 = 2.0
	gizmoRingHit    float32 = 0.4
)

var gizmoAxes = [3]mgl32.Vec3{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

var gizmoColors = [3][4]float32{
	{1, 0, 0, 1},
	{0, 1, 0, 1},
	{0, 0, 1, 1},
}

// finalizable is the shared shape of the snapshot commands the gizmo
// builds at gesture start and completes at gesture end.
type finalizable interface {
	Command
	UpdateFinalState()
}

// TransformGizmo is the manipulation tool the selection manager attaches
// to whatever is selected. A drag gesture moves the target live and, on
// release, pushes one finalized command to history. A drag that moved
// nothing pushes nothing.
type TransformGizmo struct {
	history *History
	log     Logger

	target Selectable
	mode   TransformMode

	dragging   bool
	freeDrag   bool
	activeAxis int

	initialWorldPos mgl32.Vec3
	initialWorldRot mgl32.Quat
	initialScale    mgl32.Vec3
	dragStartS      float32
	dragStartVec    mgl32.Vec3
	planePoint      mgl32.Vec3
	planeNormal     mgl32.Vec3

	pending finalizable
}

func NewTransformGizmo(history *History, log Logger) *TransformGizmo {
	if log == nil {
		log = NewNopLogger()
	}
	return &TransformGizmo{history: history, log: log, activeAxis: -1}
}

func (g *TransformGizmo) Target() Selectable  { return g.target }
func (g *TransformGizmo) Mode() TransformMode { return g.mode }
func (g *TransformGizmo) Dragging() bool      { return g.dragging }

// Attach points the tool at a new selectable, adopting its default mode
// when the current one is not allowed. Any in-flight gesture is
// abandoned without touching history.
func (g *TransformGizmo) Attach(target Selectable) {
	g.CancelDrag()
	g.target = target
	if target == nil {
		return
	}
	if g.mode == 0 || !target.AllowedModes().Has(g.mode) {
		g.mode = target.DefaultMode()
	}
}

func (g *TransformGizmo) Detach() {
	g.CancelDrag()
	g.target = nil
}

// SetMode switches the manipulation mode; refused when the target does
// not allow it.
func (g *TransformGizmo) SetMode(mode TransformMode) bool {
	if g.target != nil && !g.target.AllowedModes().Has(mode) {
		return false
	}
	g.mode = mode
	return true
}

func (g *TransformGizmo) handleScale() float32 {
	scale := g.target.HandleScale()
	box := g.target.TargetNode().WorldAABB()
	size := box.Size()
	maxDim := math32.Max(size.X(), math32.Max(size.Y(), size.Z())) * 0.5
	if maxDim > 1 {
		scale *= maxDim
	}
	return scale
}

// Shapes describes the current handles as renderable wireframes.
func (g *TransformGizmo) Shapes() []GizmoShape {
	if g.target == nil {
		return nil
	}
	node := g.target.TargetNode()
	center := node.WorldPosition()
	rot := node.WorldRotation()
	scale := g.handleScale()

	var shapes []GizmoShape
	for i, axis := range gizmoAxes {
		switch g.mode {
		case TransformRotation:
			shapes = append(shapes, NewGizmoCircle(center, rot.Mul(ringOrient(i)), gizmoRingRadius*scale, gizmoColors[i]))
		default:
			end := center.Add(rot.Rotate(axis).Mul(gizmoAxisLen * scale))
			shapes = append(shapes, NewGizmoLine(center, end, gizmoColors[i]))
		}
	}
	if g.mode == TransformBoundingBox {
		box := node.WorldAABB()
		shapes = append(shapes, GizmoShape{
			Type:     GizmoCube,
			Position: box.Center(),
			Scale:    box.Size(),
			Rotation: mgl32.QuatIdent(),
			Color:    [4]float32{1, 1, 0, 1},
		})
	}
	return shapes
}

// Ring circles face local Z; orient each to its axis.
func ringOrient(axis int) mgl32.Quat {
	switch axis {
	case 0:
		return mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	case 1:
		return mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{1, 0, 0})
	}
	return mgl32.QuatIdent()
}

// PickHandle tests the ray against the three axis handles and returns
// the nearest hit axis, or -1.
func (g *TransformGizmo) PickHandle(ray Ray) int {
	if g.target == nil {
		return -1
	}
	node := g.target.TargetNode()
	center := node.WorldPosition()
	rot := node.WorldRotation()
	scale := g.handleScale()

	best := -1
	minT := float32(1000)

	for i, axis := range gizmoAxes {
		wAxis := rot.Rotate(axis)
		if g.mode == TransformRotation {
			t, ok := ray.IntersectPlane(center, wAxis)
			if !ok {
				continue
			}
			hit := ray.Origin.Add(ray.Dir.Mul(t))
			dist := hit.Sub(center).Len()
			if abs32(dist-gizmoRingRadius*scale) < gizmoRingHit*scale && t < minT {
				minT = t
				best = i
			}
			continue
		}
		t, s, d := ray.ClosestPoints(center, wAxis)
		if t > 0 && s >= 0 && s <= gizmoAxisReach*scale && d < gizmoAxisHit*scale && t < minT {
			minT = t
			best = i
		}
	}
	return best
}

func (g *TransformGizmo) newPending() finalizable {
	if bc, ok := g.target.(*BoneControl); ok {
		return NewBoneRotationCommand(bc)
	}
	return NewTransformCommand(g.target.TargetNode())
}

// BeginDrag starts an axis-handle gesture. Returns false when the ray
// misses every handle.
func (g *TransformGizmo) BeginDrag(ray Ray) bool {
	axis := g.PickHandle(ray)
	if axis < 0 {
		return false
	}
	node := g.target.TargetNode()
	g.activeAxis = axis
	g.freeDrag = false
	g.dragging = true
	g.initialWorldPos = node.WorldPosition()
	g.initialWorldRot = node.WorldRotation()
	g.initialScale = node.LocalScale()
	g.pending = g.newPending()

	wAxis := g.initialWorldRot.Rotate(gizmoAxes[axis])
	if g.mode == TransformRotation {
		if t, ok := ray.IntersectPlane(g.initialWorldPos, wAxis); ok {
			hit := ray.Origin.Add(ray.Dir.Mul(t))
			g.dragStartVec = hit.Sub(g.initialWorldPos).Normalize()
		}
	} else {
		_, s, _ := ray.ClosestPoints(g.initialWorldPos, wAxis)
		g.dragStartS = s
	}

	g.notifyPhase(phaseStart)
	return true
}

// BeginFreeDrag starts a camera-plane drag at the given hit depth, used
// when the user grabs the object body instead of a handle.
func (g *TransformGizmo) BeginFreeDrag(ray Ray, hitT float32, camForward mgl32.Vec3) {
	if g.target == nil || !g.target.AllowedModes().Has(TransformPosition) {
		return
	}
	node := g.target.TargetNode()
	g.dragging = true
	g.freeDrag = true
	g.activeAxis = -1
	g.initialWorldPos = node.WorldPosition()
	g.initialWorldRot = node.WorldRotation()
	g.initialScale = node.LocalScale()
	g.planeNormal = camForward.Mul(-1)
	g.planePoint = ray.Origin.Add(ray.Dir.Mul(hitT))
	g.pending = g.newPending()
	g.notifyPhase(phaseStart)
}

// UpdateDrag applies the gesture's current delta directly to the live
// node. The pending command only snapshots; the node is the state.
func (g *TransformGizmo) UpdateDrag(ray Ray) {
	if !g.dragging || g.target == nil {
		return
	}
	node := g.target.TargetNode()

	if g.freeDrag {
		t, ok := ray.IntersectPlane(g.planePoint, g.planeNormal)
		if !ok {
			return
		}
		cur := ray.Origin.Add(ray.Dir.Mul(t))
		node.SetWorldPosition(g.initialWorldPos.Add(cur.Sub(g.planePoint)))
		g.notifyPhase(phaseUpdate)
		return
	}

	if g.activeAxis < 0 {
		return
	}
	axis := gizmoAxes[g.activeAxis]
	wAxis := g.initialWorldRot.Rotate(axis)

	switch g.mode {
	case TransformPosition:
		_, s, _ := ray.ClosestPoints(g.initialWorldPos, wAxis)
		delta := wAxis.Mul(s - g.dragStartS)
		node.SetWorldPosition(g.initialWorldPos.Add(delta))

	case TransformRotation:
		t, ok := ray.IntersectPlane(g.initialWorldPos, wAxis)
		if !ok {
			return
		}
		hit := ray.Origin.Add(ray.Dir.Mul(t))
		cur := hit.Sub(g.initialWorldPos)
		if cur.Len() < 1e-5 || g.dragStartVec.Len() < 1e-5 {
			return
		}
		cur = cur.Normalize()
		cos := mgl32.Clamp(cur.Dot(g.dragStartVec), -1, 1)
		angle := math32.Acos(cos)
		if g.dragStartVec.Cross(cur).Dot(wAxis) < 0 {
			angle = -angle
		}
		delta := mgl32.QuatRotate(angle, wAxis)
		node.SetWorldRotation(delta.Mul(g.initialWorldRot).Normalize())

	case TransformScale, TransformBoundingBox:
		_, s, _ := ray.ClosestPoints(g.initialWorldPos, wAxis)
		factor := 1 + (s-g.dragStartS)/gizmoAxisLen
		if factor < 0.01 {
			factor = 0.01
		}
		scale := g.initialScale
		if g.mode == TransformBoundingBox {
			scale = scale.Mul(factor)
		} else {
			scale[g.activeAxis] *= factor
		}
		node.SetLocalScale(scale)
	}

	g.notifyPhase(phaseUpdate)
}

// EndDrag finalizes the gesture: the pending command captures the final
// state and goes to history. History drops it when nothing changed.
func (g *TransformGizmo) EndDrag() {
	if !g.dragging {
		return
	}
	g.dragging = false
	g.freeDrag = false
	g.activeAxis = -1

	if g.pending != nil {
		g.pending.UpdateFinalState()
		g.history.Do(g.pending)
		g.pending = nil
	}
	g.notifyPhase(phaseEnd)
}

// CancelDrag abandons a gesture. The pending snapshot is undone so the
// target returns to its pre-drag state; history is untouched.
func (g *TransformGizmo) CancelDrag() {
	if !g.dragging {
		return
	}
	g.dragging = false
	g.freeDrag = false
	g.activeAxis = -1
	if g.pending != nil {
		g.pending.Undo()
		g.pending = nil
	}
	g.notifyPhase(phaseEnd)
}

type gesturePhase int

const (
	phaseStart gesturePhase = iota
	phaseUpdate
	phaseEnd
)

func (g *TransformGizmo) notifyPhase(p gesturePhase) {
	listener, ok := g.target.(TransformPhaseListener)
	if !ok {
		return
	}
	switch p {
	case phaseStart:
		listener.OnTransformStart()
	case phaseUpdate:
		listener.OnTransformUpdate()
	case phaseEnd:
		listener.OnTransformEnd()
	}
}
