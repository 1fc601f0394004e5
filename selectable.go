package forge

// TransformMode is a bitset of the manipulations a selectable allows.
type TransformMode uint8

const (
	TransformPosition TransformMode = 1 << iota
	TransformRotation
	TransformScale
	TransformBoundingBox
)

func (m TransformMode) Has(mode TransformMode) bool { return m&mode != 0 }

func (m TransformMode) String() string {
	switch m {
	case TransformPosition:
		return "position"
	case TransformRotation:
		return "rotation"
	case TransformScale:
		return "scale"
	case TransformBoundingBox:
		return "bounding-box"
	}
	return "mixed"
}

// Selectable is the capability contract for anything the user can pick
// and manipulate: an entity, or a sub-part of one such as a bone control.
// A type either implements the whole interface or is not selectable;
// there is no partial form.
type Selectable interface {
	// SelectableID is stable for the lifetime of the target.
	SelectableID() string
	DisplayName() string

	// TargetNode is the scene node the transform tool manipulates.
	TargetNode() *Node

	AllowedModes() TransformMode
	DefaultMode() TransformMode

	// HandleScale sizes the transform tool's handles relative to the
	// target; CursorHint names the pointer shape the host UI should show.
	HandleScale() float32
	CursorHint() string

	OnSelect()
	OnDeselect()
}

// TransformPhaseListener is an optional extension letting a selectable
// react to each phase of an in-progress gesture, e.g. a bone control
// re-solving its skeleton live during the drag rather than at the end.
type TransformPhaseListener interface {
	OnTransformStart()
	OnTransformUpdate()
	OnTransformEnd()
}

// SelectableBehavior carries the data half of the capability so concrete
// types only add their hooks. Embedding it keeps the capability
// composable instead of injected through a class hierarchy.
type SelectableBehavior struct {
	ID     string
	Name   string
	Node   *Node
	Modes  TransformMode
	Mode   TransformMode
	Handle float32
	Cursor string
}

func (b *SelectableBehavior) SelectableID() string { return b.ID }
func (b *SelectableBehavior) DisplayName() string  { return b.Name }
func (b *SelectableBehavior) TargetNode() *Node    { return b.Node }

func (b *SelectableBehavior) AllowedModes() TransformMode { return b.Modes }

func (b *SelectableBehavior) DefaultMode() TransformMode {
	if b.Mode != 0 {
		return b.Mode
	}
	return TransformPosition
}

func (b *SelectableBehavior) HandleScale() float32 {
	if b.Handle <= 0 {
		return 1
	}
	return b.Handle
}

func (b *SelectableBehavior) CursorHint() string {
	if b.Cursor == "" {
		return "default"
	}
	return b.Cursor
}
