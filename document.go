package forge

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/goburrow/dynamic"
)

const documentVersion = 1

// NodeData is the serialized header shared by every entity payload. The
// "type" field is the dynamic discriminator.
type NodeData struct {
	Type      string     `json:"type"`
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Position  mgl32.Vec3 `json:"position"`
	Rotation  mgl32.Quat `json:"rotation"`
	Scale     mgl32.Vec3 `json:"scale"`
	HasParent bool       `json:"has_parent"`
	ParentID  string     `json:"parent_id,omitempty"`
}

type ShapeData struct {
	NodeData
	Shape ShapeKind `json:"shape"`
}

type GenerativeData struct {
	NodeData
	AssetID AssetID            `json:"asset_id,omitempty"`
	Log     []GenerationRecord `json:"log,omitempty"`
}

type LightData struct {
	NodeData
	Light     LightType  `json:"light"`
	Color     [3]float32 `json:"color"`
	Intensity float32    `json:"intensity"`
	Range     float32    `json:"range"`
	ConeAngle float32    `json:"cone_angle,omitempty"`
}

type CharacterData struct {
	NodeData
	Rig  string                `json:"rig"`
	Pose map[string]mgl32.Quat `json:"pose,omitempty"`
}

func init() {
	dynamic.Register("shape", func() interface{} { return &ShapeData{} })
	dynamic.Register("generative", func() interface{} { return &GenerativeData{} })
	dynamic.Register("light", func() interface{} { return &LightData{} })
	dynamic.Register("character", func() interface{} { return &CharacterData{} })
}

type SceneDocument struct {
	Version  int               `json:"version"`
	Entities []json.RawMessage `json:"entities"`
}

func nodeDataFor(ed *Editor, ent Entity) NodeData {
	node := ent.TargetNode()
	t := node.Transform()
	data := NodeData{
		Type:     string(ent.Kind()),
		ID:       ent.ID(),
		Name:     ent.DisplayName(),
		Position: t.Position,
		Rotation: t.Rotation,
		Scale:    t.Scale,
	}
	if p := node.Parent(); p != nil {
		if sel := ed.SelectableAt(p); sel != nil {
			if owner := owningEntity(sel); owner != nil && owner != ent {
				data.HasParent = true
				data.ParentID = owner.ID()
			}
		}
	}
	return data
}

func entityDataFor(ed *Editor, ent Entity) (interface{}, error) {
	switch e := ent.(type) {
	case *ShapeEntity:
		return &ShapeData{NodeData: nodeDataFor(ed, e), Shape: e.Shape}, nil
	case *GenerativeEntity:
		return &GenerativeData{NodeData: nodeDataFor(ed, e), AssetID: e.AssetID, Log: e.Log}, nil
	case *LightEntity:
		return &LightData{
			NodeData:  nodeDataFor(ed, e),
			Light:     e.LightType,
			Color:     e.Color,
			Intensity: e.Intensity,
			Range:     e.Range,
			ConeAngle: e.ConeAngle,
		}, nil
	case *CharacterEntity:
		return &CharacterData{
			NodeData: nodeDataFor(ed, e),
			Rig:      e.Skeleton.RigName,
			Pose:     e.Skeleton.Pose(),
		}, nil
	}
	return nil, fmt.Errorf("entity %s: unknown kind %q", ent.ID(), ent.Kind())
}

// SaveDocument writes the live entities to filename. Disabled (deleted
// but still undoable) entities are skipped.
func SaveDocument(ed *Editor, filename string) error {
	doc := SceneDocument{Version: documentVersion}

	for _, ent := range ed.Entities() {
		data, err := entityDataFor(ed, ent)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		doc.Entities = append(doc.Entities, raw)
	}

	bytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, bytes, 0644)
}

func (h *NodeData) restore(ent Entity) {
	node := ent.TargetNode()
	node.SetTransform(Transform{
		Position: h.Position,
		Rotation: h.Rotation,
		Scale:    h.Scale,
	})
}

func buildEntity(scene *Scene, log Logger, v interface{}) (Entity, *NodeData, error) {
	switch d := v.(type) {
	case *ShapeData:
		e := NewShapeEntity(scene, d.Name, d.Shape)
		return e, &d.NodeData, nil
	case *GenerativeData:
		e := NewGenerativeEntity(scene, d.Name)
		e.AssetID = d.AssetID
		e.Log = d.Log
		return e, &d.NodeData, nil
	case *LightData:
		e := NewLightEntity(scene, d.Name, d.Light)
		e.Color = d.Color
		e.Intensity = d.Intensity
		e.Range = d.Range
		e.ConeAngle = d.ConeAngle
		return e, &d.NodeData, nil
	case *CharacterData:
		rig := HumanoidRig()
		if d.Rig != "" && d.Rig != rig.Name {
			if named := RigByName(d.Rig); named != nil {
				rig = named
			} else {
				log.Warnf("document: unknown rig %q, using %s", d.Rig, rig.Name)
			}
		}
		e := NewCharacterEntity(scene, d.Name, rig)
		e.Skeleton.ApplyPose(d.Pose)
		return e, &d.NodeData, nil
	}
	return nil, nil, fmt.Errorf("unknown entity payload %T", v)
}

// LoadDocument reads filename into the editor. Restoration is two-pass:
// entities are created first, then parent links are resolved, since a
// child may be serialized before its parent. Loading is not undoable;
// the history is cleared afterwards.
func LoadDocument(ed *Editor, filename string) ([]Entity, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var doc SceneDocument
	if err := json.Unmarshal(bytes, &doc); err != nil {
		return nil, err
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("document version %d is newer than supported %d", doc.Version, documentVersion)
	}

	var loaded []Entity
	byID := map[string]Entity{}
	parents := map[Entity]string{}

	for _, raw := range doc.Entities {
		var typ dynamic.Type
		if err := json.Unmarshal(raw, &typ); err != nil {
			return nil, err
		}
		v := typ.Value()
		if v == nil {
			ed.log.Warnf("document: skipping unknown entity payload %s", string(raw))
			continue
		}

		ent, header, err := buildEntity(ed.Scene, ed.log, v)
		if err != nil {
			return nil, err
		}
		header.restore(ent)
		if header.ID != "" {
			setEntityID(ent, header.ID)
		}
		if header.HasParent {
			parents[ent] = header.ParentID
		}
		byID[ent.ID()] = ent
		ed.adopt(ent)
		loaded = append(loaded, ent)
	}

	for ent, parentID := range parents {
		parent, ok := byID[parentID]
		if !ok {
			ed.log.Warnf("document: entity %s references missing parent %s", ent.ID(), parentID)
			continue
		}
		ent.TargetNode().SetParent(parent.TargetNode())
	}

	ed.History.Clear()
	return loaded, nil
}

func setEntityID(ent Entity, id string) {
	switch e := ent.(type) {
	case *ShapeEntity:
		e.SelectableBehavior.ID = id
	case *GenerativeEntity:
		e.SelectableBehavior.ID = id
	case *LightEntity:
		e.SelectableBehavior.ID = id
	case *CharacterEntity:
		e.SelectableBehavior.ID = id
	}
}
