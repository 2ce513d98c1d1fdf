package history

import "errors"

// Command is one reversible document mutation. Apply is called on execute and
// redo, Revert on undo; implementations capture enough state on first apply
// to invert themselves exactly.
type Command interface {
	Name() string
	Apply() error
	Revert() error
}

var (
	// ErrReentrantExecute is returned when Execute is called while an undo or
	// redo is in flight. Commands produced as side effects of reverting must
	// not re-enter the log.
	ErrReentrantExecute = errors.New("execute during undo/redo")
)

const DefaultMaxSize = 50

// History is the bounded undo/redo log. Single-goroutine, like the rest of
// the document state: all calls happen on the session loop.
type History struct {
	undo []Command
	redo []Command

	maxSize int

	undoing bool
	redoing bool

	onChange func()
}

func New(maxSize int) *History {
	if maxSize < 1 {
		maxSize = DefaultMaxSize
	}
	return &History{maxSize: maxSize}
}

// SetOnChange installs a callback fired after every successful execute, undo,
// redo, or trim.
func (h *History) SetOnChange(fn func()) { h.onChange = fn }

func (h *History) CanUndo() bool  { return len(h.undo) > 0 }
func (h *History) CanRedo() bool  { return len(h.redo) > 0 }
func (h *History) UndoDepth() int { return len(h.undo) }
func (h *History) RedoDepth() int { return len(h.redo) }
func (h *History) MaxSize() int   { return h.maxSize }

// Execute applies cmd and records it. A fresh mutation invalidates the redo
// stack. If Apply fails the error propagates and the log is untouched.
func (h *History) Execute(cmd Command) error {
	if h.undoing || h.redoing {
		return ErrReentrantExecute
	}
	if err := cmd.Apply(); err != nil {
		return err
	}
	h.undo = append(h.undo, cmd)
	h.redo = h.redo[:0]
	h.trim()
	h.notify()
	return nil
}

// Undo reverts the most recent command. Empty history is a no-op, not an
// error: callers query CanUndo for status.
func (h *History) Undo() error {
	if len(h.undo) == 0 {
		return nil
	}
	cmd := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]

	h.undoing = true
	err := cmd.Revert()
	h.undoing = false
	if err != nil {
		// Failed revert leaves the command where it was.
		h.undo = append(h.undo, cmd)
		return err
	}
	h.redo = append(h.redo, cmd)
	h.notify()
	return nil
}

// Redo re-applies the most recently undone command.
func (h *History) Redo() error {
	if len(h.redo) == 0 {
		return nil
	}
	cmd := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]

	h.redoing = true
	err := cmd.Apply()
	h.redoing = false
	if err != nil {
		h.redo = append(h.redo, cmd)
		return err
	}
	h.undo = append(h.undo, cmd)
	h.notify()
	return nil
}

// SetMaxSize clamps n to at least 1 and trims the oldest undo entries if the
// stack now exceeds it.
func (h *History) SetMaxSize(n int) {
	if n < 1 {
		n = 1
	}
	h.maxSize = n
	if h.trim() {
		h.notify()
	}
}

// Clear drops both stacks, e.g. when a new document is loaded.
func (h *History) Clear() {
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
	h.notify()
}

func (h *History) trim() bool {
	if len(h.undo) <= h.maxSize {
		return false
	}
	drop := len(h.undo) - h.maxSize
	h.undo = append(h.undo[:0], h.undo[drop:]...)
	return true
}

func (h *History) notify() {
	if h.onChange != nil {
		h.onChange()
	}
}
