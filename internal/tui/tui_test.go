package tui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contactsim/internal/scene"
	"github.com/san-kum/contactsim/internal/sim"
)

func TestProgressModelCollectsSteps(t *testing.T) {
	m := newProgressModel("drop_2d", 4, nil)

	next, cmd := m.Update(Progress{Step: sim.Step{Index: 0, Time: 0.01, Energy: 2}})
	assert.Nil(t, cmd)
	next, _ = next.Update(Progress{Step: sim.Step{Index: 1, Time: 0.02, Energy: 1}})

	pm := next.(progressModel)
	assert.Len(t, pm.steps, 2)
	assert.InDelta(t, 0.5, pm.fraction(), 1e-12)
	assert.Contains(t, pm.View(), "2/4")
	assert.Contains(t, pm.View(), "q to cancel")
}

func TestProgressModelQuitCancels(t *testing.T) {
	cancelled := false
	m := newProgressModel("x", 1, func() { cancelled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, cancelled)
	assert.True(t, next.(progressModel).quitting)
}

func TestProgressModelDone(t *testing.T) {
	m := newProgressModel("x", 1, nil)
	next, cmd := m.Update(doneMsg{err: errors.New("boom")})
	require.NotNil(t, cmd)
	assert.Contains(t, next.View(), "failed: boom")
}

func TestProgressModelZeroTotal(t *testing.T) {
	m := newProgressModel("x", 0, nil)
	assert.Zero(t, m.fraction())
}

func TestRunProgressReturnsRunError(t *testing.T) {
	want := errors.New("solve failed")
	var out bytes.Buffer
	err := RunProgress(context.Background(), "x", 2, strings.NewReader(""), &out,
		func(ctx context.Context, obs sim.Observer) error {
			obs.OnStep(sim.Step{Index: 0}, nil)
			return want
		})
	assert.ErrorIs(t, err, want)
}

func TestLiveRendererFrame(t *testing.T) {
	var out bytes.Buffer
	s := scene.TwoBlocks2D()
	r := NewLiveRenderer(&out, s, 1000)

	frame := r.Frame(sim.Step{Time: 1, Contacts: 3}, make(sim.State, s.Body.Size()))
	assert.Contains(t, frame, s.Name)
	assert.Contains(t, frame, "contacts")
	first := r.view

	lit := r.canvas.Lit()
	require.Positive(t, lit)
	r.Frame(sim.Step{}, make(sim.State, s.Body.Size()))
	assert.Equal(t, lit, r.canvas.Lit())

	r.Frame(sim.Step{}, sim.State(s.Target(1)))
	assert.Equal(t, first, r.view)

	r.OnStep(sim.Step{}, make(sim.State, s.Body.Size()))
	assert.True(t, strings.HasPrefix(out.String(), clearScreen))
}
