// Package tui shows solver progress in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/contactsim/internal/sim"
	"github.com/san-kum/contactsim/internal/viz"
)

// Progress reports one solved step to the progress view.
type Progress struct {
	Step sim.Step
}

type doneMsg struct{ err error }

type progressModel struct {
	title    string
	total    int
	steps    []sim.Step
	energies []float64
	width    int
	done     bool
	quitting bool
	err      error
	cancel   context.CancelFunc
}

func newProgressModel(title string, total int, cancel context.CancelFunc) progressModel {
	return progressModel{title: title, total: total, width: 40, cancel: cancel}
}

func (m progressModel) Init() tea.Cmd { return nil }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = max(10, min(msg.Width-20, 80))
	case Progress:
		m.steps = append(m.steps, msg.Step)
		m.energies = append(m.energies, msg.Step.Energy)
	case doneMsg:
		m.done, m.err = true, msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) fraction() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(len(m.steps)) / float64(m.total)
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(viz.Title.Render(m.title) + "\n\n")
	fmt.Fprintf(&b, "%s %d/%d\n", viz.ProgressBar(m.fraction(), m.width), len(m.steps), m.total)

	if n := len(m.steps); n > 0 {
		last := m.steps[n-1]
		fmt.Fprintf(&b, "%s  %s  %s\n",
			viz.Metric("t", last.Time),
			viz.Metric("al", float64(last.ALSteps)),
			viz.Metric("newton", float64(last.NewtonIterations)))
		fmt.Fprintf(&b, "%s  %s\n",
			viz.Metric("contacts", float64(last.Contacts)),
			viz.Metric("min dist", last.MinDistance))
		b.WriteString(viz.MetricLabel.Render("energy ") + viz.Sparkline(m.energies, m.width) + "\n")
	}

	switch {
	case m.err != nil:
		b.WriteString(viz.StatusFailed.Render("failed: "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString(viz.StatusRunning.Render("done") + "\n")
	case m.quitting:
		b.WriteString(viz.Subtle.Render("cancelling") + "\n")
	default:
		b.WriteString(viz.KeyHint.Render("q to cancel") + "\n")
	}
	return b.String()
}

type programObserver struct{ p *tea.Program }

func (o programObserver) OnStep(step sim.Step, _ sim.State) { o.p.Send(Progress{Step: step}) }

// RunProgress runs fn while drawing its progress. fn receives an observer to
// register with the simulator and a context that is cancelled when the user
// quits. The error of fn is returned.
func RunProgress(ctx context.Context, title string, total int, in io.Reader, out io.Writer,
	fn func(ctx context.Context, obs sim.Observer) error,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(title, total, cancel),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)

	runErr := make(chan error, 1)
	go func() {
		err := fn(ctx, programObserver{p})
		p.Send(doneMsg{err: err})
		runErr <- err
	}()

	_, uiErr := p.Run()
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		cancel()
		<-runErr
		return fmt.Errorf("tui: %w", uiErr)
	}
	return <-runErr
}
