package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

const spinnerTick = 80 * time.Millisecond

// Spinner shows progress while a plan executes. When the target is not a
// terminal it prints the message once and stays silent.
type Spinner struct {
	w       io.Writer
	animate bool
	msg     string
	stop    chan struct{}
	stopped chan struct{}
}

// NewSpinner returns a spinner for f; pass os.Stderr so stdout stays clean.
func NewSpinner(f *os.File, msg string) *Spinner {
	fd := f.Fd()
	return &Spinner{
		w:       f,
		animate: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
		msg:     msg,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins animating. Stop must only be called after Start.
func (s *Spinner) Start() {
	if !s.animate {
		fmt.Fprintf(s.w, "%s...\n", s.msg)
		close(s.stopped)
		return
	}
	go s.loop()
}

func (s *Spinner) loop() {
	defer close(s.stopped)
	t := time.NewTicker(spinnerTick)
	defer t.Stop()
	for frame := 0; ; frame = (frame + 1) % len(spinnerFrames) {
		select {
		case <-s.stop:
			fmt.Fprint(s.w, "\r\033[K")
			return
		case <-t.C:
			fmt.Fprintf(s.w, "\r%s %s", Bold.Render(string(spinnerFrames[frame])), s.msg)
		}
	}
}

// Stop clears the spinner line and waits for the animation to exit.
func (s *Spinner) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.stopped
}
