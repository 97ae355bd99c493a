package view

import "sync"

// StatusLevel is the state shown by the status indicator.
type StatusLevel string

const (
	StatusConnecting   StatusLevel = "connecting"
	StatusConnected    StatusLevel = "connected"
	StatusDisconnected StatusLevel = "disconnected"
	StatusTradeActive  StatusLevel = "trade"
	StatusError        StatusLevel = "error"
	StatusInfo         StatusLevel = "info"
)

// Status is the current status indicator content.
type Status struct {
	Level   StatusLevel
	Message string
}

// ControlState is what a command control shows.
type ControlState struct {
	Label   string
	Enabled bool
}

// TextTarget displays one text cell.
type TextTarget interface {
	SetText(cell Cell)
}

// ToggleTarget shows or hides one element.
type ToggleTarget interface {
	SetVisible(visible bool)
}

// StatusTarget displays the status indicator.
type StatusTarget interface {
	SetStatus(status Status)
}

// ControlTarget displays a command control such as the square-off button.
type ControlTarget interface {
	SetControl(state ControlState)
}

// Bindings maps every view-model entry onto the host element that shows
// it. It is built once at start-up; nil or missing targets are skipped.
type Bindings struct {
	Fields   map[FieldID]TextTarget
	Toggles  map[ToggleID]ToggleTarget
	Status   StatusTarget
	Controls map[string]ControlTarget
}

// Surface pushes frames and status changes through a fixed set of bindings
// and remembers what it last applied.
type Surface struct {
	bindings Bindings

	mu       sync.RWMutex
	frame    Frame
	status   Status
	controls map[string]ControlState
}

// NewSurface binds a surface and paints the all-placeholder frame.
func NewSurface(b Bindings) *Surface {
	s := &Surface{bindings: b, controls: make(map[string]ControlState)}
	s.Apply(Render(nil, ""))
	return s
}

// Apply overwrites every bound target with the frame.
func (s *Surface) Apply(f Frame) {
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()

	for _, id := range Fields() {
		if t := s.bindings.Fields[id]; t != nil {
			t.SetText(f.Cells[id])
		}
	}
	for _, id := range Toggles() {
		if t := s.bindings.Toggles[id]; t != nil {
			t.SetVisible(f.Visible[id])
		}
	}
}

// SetStatus updates the status indicator.
func (s *Surface) SetStatus(level StatusLevel, message string) {
	st := Status{Level: level, Message: message}
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
	if s.bindings.Status != nil {
		s.bindings.Status.SetStatus(st)
	}
}

// SetControl updates a named command control.
func (s *Surface) SetControl(name string, state ControlState) {
	s.mu.Lock()
	s.controls[name] = state
	s.mu.Unlock()
	if t := s.bindings.Controls[name]; t != nil {
		t.SetControl(state)
	}
}

// Frame returns the last applied frame.
func (s *Surface) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Status returns the current status indicator content.
func (s *Surface) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Control returns the current state of a named control.
func (s *Surface) Control(name string) (ControlState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.controls[name]
	return st, ok
}
