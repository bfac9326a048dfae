package display

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/charview/internal/viewer"
)

// Input turns SDL events into shell actions and camera gestures.
type Input struct {
	actions  []viewer.Action
	dragging bool
	dragX    float32
	dragY    float32
	wheel    float32
}

// NewInput creates an input handler.
func NewInput() *Input {
	return &Input{actions: make([]viewer.Action, 0, 8)}
}

// Update polls pending SDL events.
func (i *Input) Update() {
	i.actions = i.actions[:0]
	i.dragX, i.dragY, i.wheel = 0, 0, 0

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			i.actions = append(i.actions, viewer.ActionQuit)

		case *sdl.KeyboardEvent:
			if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
				continue
			}
			if a := keyAction(e.Keysym.Scancode); a != viewer.ActionNone {
				i.actions = append(i.actions, a)
			}

		case *sdl.MouseButtonEvent:
			if e.Button == sdl.BUTTON_LEFT {
				i.dragging = e.Type == sdl.MOUSEBUTTONDOWN
			}

		case *sdl.MouseMotionEvent:
			if i.dragging {
				i.dragX += float32(e.XRel)
				i.dragY += float32(e.YRel)
			}

		case *sdl.MouseWheelEvent:
			i.wheel += float32(e.Y)
		}
	}
}

// Actions returns the actions from the last Update.
func (i *Input) Actions() []viewer.Action {
	return i.actions
}

// Apply feeds the last Update's mouse gestures to the camera.
func (i *Input) Apply(c *viewer.OrbitCamera) {
	if i.dragging {
		c.BeginDrag()
	} else {
		c.EndDrag()
	}
	if i.dragX != 0 || i.dragY != 0 {
		c.HandleDrag(i.dragX, i.dragY)
	}
	if i.wheel != 0 {
		c.HandleZoom(i.wheel)
	}
}

func keyAction(sc sdl.Scancode) viewer.Action {
	switch sc {
	case sdl.SCANCODE_ESCAPE, sdl.SCANCODE_Q:
		return viewer.ActionQuit
	case sdl.SCANCODE_RIGHT, sdl.SCANCODE_D:
		return viewer.ActionNext
	case sdl.SCANCODE_LEFT, sdl.SCANCODE_A:
		return viewer.ActionPrev
	case sdl.SCANCODE_R:
		return viewer.ActionReload
	case sdl.SCANCODE_O:
		return viewer.ActionOpen
	default:
		return viewer.ActionNone
	}
}
