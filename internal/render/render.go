// Package render models the two display surfaces and the transition container
// the scheduler presents through.
package render

import "github.com/agleyzer/seqplay/internal/media"

// Surface is a display target bound to one piece of content.
type Surface struct {
	name    string
	content media.Content
	visible bool
}

// Name returns the surface name.
func (s *Surface) Name() string { return s.name }

// Content returns the bound content, or nil.
func (s *Surface) Content() media.Content { return s.content }

// Visible reports whether the surface is shown directly.
func (s *Surface) Visible() bool { return s.visible }

// Bind attaches content to the surface.
func (s *Surface) Bind(c media.Content) { s.content = c }

// Clear removes the bound content.
func (s *Surface) Clear() { s.content = nil }

// Container hosts the active transition.
type Container struct {
	transition media.Transition
	visible    bool
}

// Transition returns the bound transition, or nil.
func (c *Container) Transition() media.Transition { return c.transition }

// Visible reports whether the container is shown.
func (c *Container) Visible() bool { return c.visible }

// Bind attaches t into the container.
func (c *Container) Bind(t media.Transition) {
	c.transition = t
	t.Attach()
}

// Unbind detaches the current transition, if any.
func (c *Container) Unbind() {
	if c.transition == nil {
		return
	}
	c.transition.Detach()
	c.transition = nil
}

// Surfaces holds the main and auxiliary surfaces plus the transition container.
// Exactly one of the main surface and the container is visible at any time.
type Surfaces struct {
	Main      *Surface
	Aux       *Surface
	Container *Container
}

// State is a point-in-time view of the surfaces.
type State struct {
	MainSurface       string `json:"main_surface"`
	MainContent       string `json:"main_content,omitempty"`
	AuxContent        string `json:"aux_content,omitempty"`
	TransitionVisible bool   `json:"transition_visible"`
}

// New returns surfaces with the main surface visible.
func New() *Surfaces {
	return &Surfaces{
		Main:      &Surface{name: "a", visible: true},
		Aux:       &Surface{name: "b"},
		Container: &Container{},
	}
}

// ShowTransition hides the main surface and shows the container.
// Content must already be bound to the transition.
func (s *Surfaces) ShowTransition() {
	s.Container.visible = true
	s.Main.visible = false
}

// ShowMain hides the container and shows the main surface.
func (s *Surfaces) ShowMain() {
	s.Main.visible = true
	s.Container.visible = false
}

// TransitionVisible reports whether the container is shown.
func (s *Surfaces) TransitionVisible() bool {
	return s.Container.visible
}

// Swap exchanges the roles of the main and auxiliary surfaces. Visibility
// follows the role, so the new main surface is shown unless a transition is.
func (s *Surfaces) Swap() {
	s.Main, s.Aux = s.Aux, s.Main
	s.Main.visible = !s.Container.visible
	s.Aux.visible = false
}

// Snapshot returns the current state.
func (s *Surfaces) Snapshot() State {
	st := State{
		MainSurface:       s.Main.name,
		TransitionVisible: s.Container.visible,
	}
	if c := s.Main.content; c != nil {
		st.MainContent = c.ID()
	}
	if c := s.Aux.content; c != nil {
		st.AuxContent = c.ID()
	}
	return st
}
