package display

import (
	"errors"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"
)

// Picker runs a native open-file dialog off the render thread and hands
// the chosen path back through Picked.
type Picker struct {
	log     *zap.Logger
	results chan string
	open    bool
}

// NewPicker creates a picker.
func NewPicker(log *zap.Logger) *Picker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Picker{log: log, results: make(chan string, 1)}
}

// Pick shows the dialog unless one is already open.
func (p *Picker) Pick() {
	if p.open {
		return
	}
	p.open = true
	go func() {
		filename, err := dialog.File().
			Filter("Models", "rsm", "rsm2", "glb", "gltf").
			Filter("All Files", "*").
			Title("Open Model").
			Load()
		if err != nil && !errors.Is(err, dialog.ErrCancelled) {
			p.log.Warn("file dialog failed", zap.Error(err))
		}
		// Empty when cancelled; still sent so the picker can reopen.
		p.results <- filename
	}()
}

// Picked returns a chosen path, if the dialog has closed since the last call.
func (p *Picker) Picked() (string, bool) {
	select {
	case name := <-p.results:
		p.open = false
		return name, name != ""
	default:
		return "", false
	}
}
