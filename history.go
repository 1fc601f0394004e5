package forge

// defaultHistoryDepth bounds the undo stack when no config overrides it.
const defaultHistoryDepth = 256

// History is the linear undo/redo stack: an ordered command list with a
// cursor. Entries past the cursor are redoable; pushing after an undo
// discards that tail. No branching.
type History struct {
	entries []Command
	cursor  int
	depth   int
	log     Logger
}

// NewHistory caps the stack at maxDepth commands; oldest entries fall
// off first. maxDepth <= 0 means unbounded.
func NewHistory(maxDepth int, log Logger) *History {
	if log == nil {
		log = NewNopLogger()
	}
	return &History{depth: maxDepth, log: log}
}

// Do executes the command, truncates any redoable tail and appends.
// Commands reporting IsNoOp are executed nowhere and not pushed; Do
// returns whether the command entered the history.
func (h *History) Do(cmd Command) bool {
	if n, ok := cmd.(NoOpReporter); ok && n.IsNoOp() {
		h.log.Debugf("history: dropping no-op command %q", cmd.Name())
		return false
	}

	cmd.Execute()

	h.entries = append(h.entries[:h.cursor], cmd)
	h.cursor = len(h.entries)

	if h.depth > 0 && len(h.entries) > h.depth {
		drop := len(h.entries) - h.depth
		h.entries = h.entries[drop:]
		h.cursor -= drop
	}
	h.log.Debugf("history: did %q (cursor=%d)", cmd.Name(), h.cursor)
	return true
}

// Undo reverts the command at the cursor. No-op at the start.
func (h *History) Undo() bool {
	if h.cursor == 0 {
		return false
	}
	h.cursor--
	cmd := h.entries[h.cursor]
	cmd.Undo()
	h.log.Debugf("history: undid %q (cursor=%d)", cmd.Name(), h.cursor)
	return true
}

// Redo replays the next command. No-op at the end.
func (h *History) Redo() bool {
	if h.cursor >= len(h.entries) {
		return false
	}
	cmd := h.entries[h.cursor]
	h.cursor++
	cmd.Execute()
	h.log.Debugf("history: redid %q (cursor=%d)", cmd.Name(), h.cursor)
	return true
}

func (h *History) CanUndo() bool { return h.cursor > 0 }
func (h *History) CanRedo() bool { return h.cursor < len(h.entries) }
func (h *History) Len() int      { return len(h.entries) }
func (h *History) Cursor() int   { return h.cursor }

// Clear resets to the empty state. Called on scene teardown; commands
// referencing disposed nodes must never be replayed.
func (h *History) Clear() {
	h.entries = h.entries[:0]
	h.cursor = 0
}
