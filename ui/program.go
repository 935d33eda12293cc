package ui

import (
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// Enabled reports whether f is a terminal the progress view can draw on.
func Enabled(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Display runs the progress view in the background.
type Display struct {
	program *tea.Program
	done    chan struct{}
}

// Start draws state on out until Stop is called. onQuit runs if the user
// quits the view early.
func Start(state *UIState, out io.Writer, onQuit func()) *Display {
	d := &Display{
		program: tea.NewProgram(NewTUIModel(state, onQuit), tea.WithOutput(out)),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(d.done)
		// Render errors only cost the display; the transfers carry on.
		_, _ = d.program.Run()
	}()
	return d
}

// Stop renders the final frame and waits for the view to exit.
func (d *Display) Stop() {
	d.program.Send(DoneMsg{})
	<-d.done
}
