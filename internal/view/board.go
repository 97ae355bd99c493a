package view

import "sync"

// Board is an in-memory host surface. Each bound target writes into it and
// a host paints from it; OnChange fires after every write.
type Board struct {
	mu       sync.RWMutex
	cells    map[FieldID]Cell
	visible  map[ToggleID]bool
	status   Status
	controls map[string]ControlState
	onChange func()
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{
		cells:    make(map[FieldID]Cell),
		visible:  make(map[ToggleID]bool),
		controls: make(map[string]ControlState),
	}
}

// OnChange registers the callback fired after every write. It runs on the
// writer's goroutine and must not block.
func (b *Board) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Bindings binds every field, toggle and the named controls to the board.
func (b *Board) Bindings(controls ...string) Bindings {
	bind := Bindings{
		Fields:   make(map[FieldID]TextTarget, len(Fields())),
		Toggles:  make(map[ToggleID]ToggleTarget, len(Toggles())),
		Status:   statusSlot{b},
		Controls: make(map[string]ControlTarget, len(controls)),
	}
	for _, id := range Fields() {
		bind.Fields[id] = cellSlot{b, id}
	}
	for _, id := range Toggles() {
		bind.Toggles[id] = toggleSlot{b, id}
	}
	for _, name := range controls {
		bind.Controls[name] = controlSlot{b, name}
	}
	return bind
}

// Cell returns what a text target shows.
func (b *Board) Cell(id FieldID) Cell {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cells[id]
}

// Visible reports whether a toggle is shown.
func (b *Board) Visible(id ToggleID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.visible[id]
}

// Status returns the status indicator.
func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// Control returns a control's state.
func (b *Board) Control(name string) ControlState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.controls[name]
}

func (b *Board) update(fn func()) {
	b.mu.Lock()
	fn()
	notify := b.onChange
	b.mu.Unlock()
	if notify != nil {
		notify()
	}
}

type cellSlot struct {
	b  *Board
	id FieldID
}

func (s cellSlot) SetText(c Cell) { s.b.update(func() { s.b.cells[s.id] = c }) }

type toggleSlot struct {
	b  *Board
	id ToggleID
}

func (s toggleSlot) SetVisible(v bool) { s.b.update(func() { s.b.visible[s.id] = v }) }

type statusSlot struct{ b *Board }

func (s statusSlot) SetStatus(st Status) { s.b.update(func() { s.b.status = st }) }

type controlSlot struct {
	b    *Board
	name string
}

func (s controlSlot) SetControl(st ControlState) { s.b.update(func() { s.b.controls[s.name] = st }) }
