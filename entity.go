package forge

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// EntityKind tags an entity's domain type. Exactly one kind per
// instance, immutable after construction.
type EntityKind string

const (
	EntityShape      EntityKind = "shape"
	EntityGenerative EntityKind = "generative"
	EntityLight      EntityKind = "light"
	EntityCharacter  EntityKind = "character"
)

// Entity is a top-level scene object: selectable, transformable,
// command-wrapped. Owned by the scene for its lifetime.
type Entity interface {
	Selectable
	ID() string
	Kind() EntityKind
	CreatedAt() time.Time
	Dispose()
}

// EntityFactory builds an entity into a scene. CreateEntityCommand runs
// the factory inside its first Execute.
type EntityFactory func(*Scene) (Entity, error)

// EntityCore is the shared half of every entity type.
type EntityCore struct {
	SelectableBehavior
	kind    EntityKind
	created time.Time

	Highlighted bool
}

func newEntityCore(scene *Scene, kind EntityKind, name string, modes TransformMode) EntityCore {
	node := scene.NewNode(name)
	return EntityCore{
		SelectableBehavior: SelectableBehavior{
			ID:     uuid.NewString(),
			Name:   name,
			Node:   node,
			Modes:  modes,
			Mode:   TransformPosition,
			Handle: 1,
			Cursor: "move",
		},
		kind:    kind,
		created: time.Now(),
	}
}

func (c *EntityCore) ID() string {
	return c.SelectableBehavior.ID
}

func (c *EntityCore) Kind() EntityKind     { return c.kind }
func (c *EntityCore) CreatedAt() time.Time { return c.created }

func (c *EntityCore) OnSelect()   { c.Highlighted = true }
func (c *EntityCore) OnDeselect() { c.Highlighted = false }

func (c *EntityCore) Dispose() {
	c.Node.Dispose()
}

// ShapeKind names a primitive mesh.
type ShapeKind string

const (
	ShapeBox      ShapeKind = "box"
	ShapeSphere   ShapeKind = "sphere"
	ShapeCylinder ShapeKind = "cylinder"
	ShapeCone     ShapeKind = "cone"
	ShapePlane    ShapeKind = "plane"
)

// ShapeEntity is a primitive placed from the shape palette.
type ShapeEntity struct {
	EntityCore
	Shape ShapeKind
}

func NewShapeEntity(scene *Scene, name string, shape ShapeKind) *ShapeEntity {
	e := &ShapeEntity{
		EntityCore: newEntityCore(scene, EntityShape, name,
			TransformPosition|TransformRotation|TransformScale|TransformBoundingBox),
		Shape: shape,
	}
	e.Node.HalfExtents = shapeHalfExtents(shape)
	return e
}

func shapeHalfExtents(shape ShapeKind) mgl32.Vec3 {
	switch shape {
	case ShapePlane:
		return mgl32.Vec3{0.5, 0.01, 0.5}
	case ShapeCylinder, ShapeCone:
		return mgl32.Vec3{0.5, 1, 0.5}
	default:
		return mgl32.Vec3{0.5, 0.5, 0.5}
	}
}

// GenerationRecord is one completed or attempted call to a generation
// service, kept as the entity's provenance log.
type GenerationRecord struct {
	Prompt   string    `json:"prompt"`
	Seed     int64     `json:"seed"`
	Strength float64   `json:"strength"`
	AssetURL string    `json:"asset_url,omitempty"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

// GenerativeEntity holds an AI-generated asset. While the asset is still
// being produced the node shows placeholder bounds and stays usable; a
// failed generation leaves it in that degraded state (logged, not fatal).
type GenerativeEntity struct {
	EntityCore
	AssetID AssetID
	Log     []GenerationRecord
}

func NewGenerativeEntity(scene *Scene, name string) *GenerativeEntity {
	e := &GenerativeEntity{
		EntityCore: newEntityCore(scene, EntityGenerative, name,
			TransformPosition|TransformRotation|TransformScale|TransformBoundingBox),
	}
	// Placeholder bounds until an asset arrives.
	e.Node.HalfExtents = mgl32.Vec3{0.5, 0.5, 0.5}
	return e
}

func (e *GenerativeEntity) RecordGeneration(rec GenerationRecord) {
	e.Log = append(e.Log, rec)
}

// LightType matches the renderer's light taxonomy.
type LightType uint32

const (
	LightPoint       LightType = 0
	LightDirectional LightType = 1
	LightSpot        LightType = 2
	LightAmbient     LightType = 3
)

// LightEntity carries light parameters. Lights translate and rotate but
// have no meaningful scale.
type LightEntity struct {
	EntityCore
	LightType LightType
	Color     [3]float32
	Intensity float32
	Range     float32
	ConeAngle float32 // full cone angle in degrees, spot only
}

func NewLightEntity(scene *Scene, name string, lt LightType) *LightEntity {
	e := &LightEntity{
		EntityCore: newEntityCore(scene, EntityLight, name,
			TransformPosition|TransformRotation),
		LightType: lt,
		Color:     [3]float32{1, 1, 1},
		Intensity: 1,
		Range:     10,
	}
	e.Node.HalfExtents = mgl32.Vec3{0.25, 0.25, 0.25}
	return e
}

// ColorHex returns the light color as "#rrggbb".
func (e *LightEntity) ColorHex() string {
	return colorful.Color{
		R: float64(e.Color[0]),
		G: float64(e.Color[1]),
		B: float64(e.Color[2]),
	}.Clamped().Hex()
}

// SetColorHex parses "#rrggbb" into the light color.
func (e *LightEntity) SetColorHex(hex string) error {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fmt.Errorf("light %s: bad color %q: %w", e.Name, hex, err)
	}
	e.Color = [3]float32{float32(c.R), float32(c.G), float32(c.B)}
	return nil
}

// AdjustLightness shifts the light color in perceptual (HCL) space,
// which keeps hue stable where naive RGB scaling would not.
func (e *LightEntity) AdjustLightness(delta float64) {
	c := colorful.Color{
		R: float64(e.Color[0]),
		G: float64(e.Color[1]),
		B: float64(e.Color[2]),
	}
	h, cc, l := c.Hcl()
	out := colorful.Hcl(h, cc, clampf(l+delta, 0, 1)).Clamped()
	e.Color = [3]float32{float32(out.R), float32(out.G), float32(out.B)}
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CharacterEntity owns a skeletal rig. Its bone controls are sub-part
// selectables: picking one keeps the character selected as the owning
// entity while the control becomes the active selection.
type CharacterEntity struct {
	EntityCore
	Skeleton *Skeleton
	controls []*BoneControl
}

func NewCharacterEntity(scene *Scene, name string, rig *Rig) *CharacterEntity {
	e := &CharacterEntity{
		EntityCore: newEntityCore(scene, EntityCharacter, name,
			TransformPosition|TransformRotation),
	}
	e.Node.HalfExtents = mgl32.Vec3{0.5, 1, 0.5}
	e.Skeleton = NewSkeleton(scene, e.Node, rig)
	for _, bone := range e.Skeleton.Bones {
		e.controls = append(e.controls, newBoneControl(e, bone))
	}
	// Controls stay hidden until the character is selected.
	e.setControlsVisible(false)
	return e
}

func (e *CharacterEntity) BoneControls() []*BoneControl { return e.controls }

// ControlForBone returns the control driving the named bone, or nil.
func (e *CharacterEntity) ControlForBone(name string) *BoneControl {
	for _, c := range e.controls {
		if c.Bone.Name == name {
			return c
		}
	}
	return nil
}

func (e *CharacterEntity) setControlsVisible(v bool) {
	for _, c := range e.controls {
		c.Node.SetVisible(v)
		c.Node.SetPickable(v)
	}
}

func (e *CharacterEntity) OnSelect() {
	e.EntityCore.OnSelect()
	e.setControlsVisible(true)
}

func (e *CharacterEntity) OnDeselect() {
	e.EntityCore.OnDeselect()
	e.setControlsVisible(false)
}
