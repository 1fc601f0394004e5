package forge

import (
	"testing"
)

type countingCommand struct {
	label    string
	executes int
	undos    int
}

func (c *countingCommand) Execute()     { c.executes++ }
func (c *countingCommand) Undo()        { c.undos++ }
func (c *countingCommand) Name() string { return c.label }

type reportingCommand struct {
	countingCommand
	noop bool
}

func (c *reportingCommand) IsNoOp() bool { return c.noop }

func TestHistoryDoUndoRedo(t *testing.T) {
	h := NewHistory(0, nil)

	a := &countingCommand{label: "a"}
	b := &countingCommand{label: "b"}

	if !h.Do(a) || !h.Do(b) {
		t.Fatal("Do should accept ordinary commands")
	}
	if a.executes != 1 || b.executes != 1 {
		t.Errorf("each command should execute once, got a=%d b=%d", a.executes, b.executes)
	}
	if !h.CanUndo() || h.CanRedo() {
		t.Error("fresh stack should be undoable but not redoable")
	}

	if !h.Undo() {
		t.Fatal("Undo should succeed")
	}
	if b.undos != 1 {
		t.Errorf("undo should hit the newest command, got %d", b.undos)
	}
	if !h.CanRedo() {
		t.Error("undone command should be redoable")
	}

	if !h.Redo() {
		t.Fatal("Redo should succeed")
	}
	if b.executes != 2 {
		t.Errorf("redo should re-execute, got %d", b.executes)
	}
}

func TestHistoryBoundsAtEnds(t *testing.T) {
	h := NewHistory(0, nil)

	if h.Undo() {
		t.Error("Undo on an empty stack should report false")
	}
	if h.Redo() {
		t.Error("Redo on an empty stack should report false")
	}

	h.Do(&countingCommand{label: "a"})
	h.Undo()
	if h.Undo() {
		t.Error("Undo past the oldest entry should report false")
	}
	h.Redo()
	if h.Redo() {
		t.Error("Redo past the newest entry should report false")
	}
}

func TestHistoryTruncatesRedoTail(t *testing.T) {
	h := NewHistory(0, nil)

	a := &countingCommand{label: "a"}
	b := &countingCommand{label: "b"}
	c := &countingCommand{label: "c"}
	d := &countingCommand{label: "d"}

	h.Do(a)
	h.Do(b)
	h.Do(c)
	h.Undo()
	h.Undo()
	h.Do(d)

	if h.Len() != 2 {
		t.Fatalf("stack should be [a d], got %d entries", h.Len())
	}
	if h.CanRedo() {
		t.Error("pushing after undo should discard the redo tail")
	}
	if h.Redo() {
		t.Error("discarded commands must not come back")
	}

	// b and c are gone for good.
	h.Undo()
	h.Undo()
	if a.undos != 1 || d.undos != 1 {
		t.Errorf("remaining entries should be a and d, undos a=%d d=%d", a.undos, d.undos)
	}
	if b.executes != 1 || c.executes != 1 {
		t.Errorf("truncated entries must not re-execute, b=%d c=%d", b.executes, c.executes)
	}
}

func TestHistoryDepthCap(t *testing.T) {
	h := NewHistory(2, nil)

	a := &countingCommand{label: "a"}
	b := &countingCommand{label: "b"}
	c := &countingCommand{label: "c"}

	h.Do(a)
	h.Do(b)
	h.Do(c)

	if h.Len() != 2 {
		t.Fatalf("depth cap of 2 should hold, got %d", h.Len())
	}

	// Only b and c are reachable.
	h.Undo()
	h.Undo()
	if h.Undo() {
		t.Error("oldest command fell off; nothing more to undo")
	}
	if a.undos != 0 {
		t.Errorf("dropped command must never be undone, got %d", a.undos)
	}
}

func TestHistoryDropsNoOps(t *testing.T) {
	h := NewHistory(0, nil)

	noop := &reportingCommand{countingCommand: countingCommand{label: "noop"}, noop: true}
	if h.Do(noop) {
		t.Error("Do should refuse a no-op command")
	}
	if noop.executes != 0 {
		t.Errorf("refused command must not execute, got %d", noop.executes)
	}
	if h.Len() != 0 || h.CanUndo() {
		t.Error("no-op must not enter the stack")
	}

	real := &reportingCommand{countingCommand: countingCommand{label: "real"}}
	if !h.Do(real) {
		t.Error("a reporting command that is not a no-op goes through")
	}
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(0, nil)
	h.Do(&countingCommand{label: "a"})
	h.Do(&countingCommand{label: "b"})
	h.Undo()

	h.Clear()
	if h.Len() != 0 || h.Cursor() != 0 || h.CanUndo() || h.CanRedo() {
		t.Error("Clear should empty the stack entirely")
	}
}
