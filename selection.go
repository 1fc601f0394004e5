package forge

// SubPart is a selectable that belongs to a parent entity, e.g. a bone
// control owned by a character.
type SubPart interface {
	Selectable
	OwnerEntity() Entity
}

// SelectionManager tracks a two-level selection: at most one current
// selection (any Selectable) and at most one current entity (the owner
// of that selection, possibly the selection itself). The invariant is
// ancestry: the current entity always owns the current selection, and
// deselecting the entity implies deselecting any sub-part.
//
// The two levels tear down asymmetrically: re-selecting a sibling bone
// on an already-selected character swaps only the sub-part and must not
// run the character's own deselect/visualization teardown.
type SelectionManager struct {
	current Selectable
	entity  Entity

	gizmo *TransformGizmo
	log   Logger

	// EntityChanged fires when the current entity changes; nil means the
	// selection was fully cleared.
	EntityChanged Signal[Entity]
}

func NewSelectionManager(gizmo *TransformGizmo, log Logger) *SelectionManager {
	if log == nil {
		log = NewNopLogger()
	}
	return &SelectionManager{gizmo: gizmo, log: log}
}

func (m *SelectionManager) Current() Selectable   { return m.current }
func (m *SelectionManager) CurrentEntity() Entity { return m.entity }

func owningEntity(s Selectable) Entity {
	switch v := s.(type) {
	case Entity:
		return v
	case SubPart:
		return v.OwnerEntity()
	}
	return nil
}

// Select makes candidate the current selection. Nil clears everything.
func (m *SelectionManager) Select(candidate Selectable) {
	if candidate == nil {
		m.DeselectAll()
		return
	}

	owner := owningEntity(candidate)

	// Re-selecting the current entity itself is idempotent. Sub-part
	// reselection is not: it re-runs the highlight hooks below.
	if ent, isEntity := candidate.(Entity); isEntity && m.current == candidate && m.entity == ent {
		return
	}

	// Tear down the old entity only when the candidate lives outside it.
	// Outside means a different owner, or, for owner-less selectables,
	// a node that does not hang under the entity's node.
	entityChanged := false
	if m.entity != nil && owner != m.entity {
		inside := owner == nil &&
			candidate.TargetNode().IsDescendantOf(m.entity.TargetNode())
		if !inside {
			m.entity.OnDeselect()
			m.entity = nil
			entityChanged = true
		}
	}

	// Tear down a previous sub-part selection the candidate replaces.
	if m.current != nil && m.current != candidate {
		if _, isEntity := m.current.(Entity); !isEntity {
			m.current.OnDeselect()
		}
		m.current = nil
	}

	if owner != nil && owner != m.entity {
		m.entity = owner
		entityChanged = true
		// A sub-part pick promotes its owner to current entity; run the
		// owner's select hook so its visualization comes up.
		if Selectable(owner) != candidate {
			owner.OnSelect()
		}
	}

	m.current = candidate

	if m.gizmo != nil {
		m.gizmo.Attach(candidate)
	}
	candidate.OnSelect()
	m.log.Debugf("selection: %s", candidate.DisplayName())

	if entityChanged {
		m.EntityChanged.Emit(m.entity)
	}
}

// DeselectAll clears both levels. A no-op (and silent) when nothing is
// selected.
func (m *SelectionManager) DeselectAll() {
	if m.current == nil && m.entity == nil {
		return
	}

	if m.current != nil {
		if _, isEntity := m.current.(Entity); !isEntity {
			m.current.OnDeselect()
		}
		m.current = nil
	}
	if m.entity != nil {
		m.entity.OnDeselect()
		m.entity = nil
	}
	if m.gizmo != nil {
		m.gizmo.Detach()
	}
	m.log.Debugf("selection: cleared")
	m.EntityChanged.Emit(nil)
}
