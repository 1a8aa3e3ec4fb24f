package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/contactsim/internal/scene"
	"github.com/san-kum/contactsim/internal/sim"
	"github.com/san-kum/contactsim/internal/viz"
)

const (
	width       = 70
	height      = 20
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer redraws the displaced surface after each step, at most
// frameRate times per second. It implements sim.Observer.
type LiveRenderer struct {
	out       io.Writer
	scene     *scene.Scene
	frameRate int
	lastFrame time.Time
	view      viz.Bounds
	started   bool
	canvas    *viz.Canvas
}

func NewLiveRenderer(out io.Writer, s *scene.Scene, frameRate int) *LiveRenderer {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &LiveRenderer{
		out:       out,
		scene:     s,
		frameRate: frameRate,
		canvas:    viz.NewCanvas(width, height),
	}
}

func (r *LiveRenderer) Start() { fmt.Fprint(r.out, hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Fprint(r.out, showCursor) }

func (r *LiveRenderer) OnStep(step sim.Step, x sim.State) {
	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()
	fmt.Fprint(r.out, clearScreen+r.Frame(step, x))
}

// Frame draws x without throttling. The view only grows, so the picture
// does not rescale while bodies move inside it.
func (r *LiveRenderer) Frame(step sim.Step, x sim.State) string {
	f := viz.NewFrame(r.scene, x)
	b := f.Bounds().Pad(0.05)
	if r.started {
		b = r.view.Union(b)
	}
	r.view, r.started = b, true

	r.canvas.Clear()
	f.Draw(r.canvas, r.view)

	var sb strings.Builder
	sb.WriteString(viz.Title.Render(r.scene.Name) + "\n")
	sb.WriteString(r.canvas.String())
	sb.WriteString(viz.Separator(width) + "\n")
	fmt.Fprintf(&sb, "%s  %s  %s\n",
		viz.Metric("t", step.Time),
		viz.Metric("energy", step.Energy),
		viz.Metric("contacts", float64(step.Contacts)))
	fmt.Fprintf(&sb, "%s  %s  %s\n",
		viz.Metric("al", float64(step.ALSteps)),
		viz.Metric("newton", float64(step.NewtonIterations)),
		viz.Metric("kappa", step.Stiffness))
	return sb.String()
}
