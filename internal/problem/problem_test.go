package problem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contactsim/internal/dof"
	"github.com/san-kum/contactsim/internal/forms"
	"github.com/san-kum/contactsim/internal/sparse"
)

// recorder is a quadratic ½|x|² form that records the hooks it receives.
type recorder struct {
	forms.Base
	step       float64
	stepErr    error
	valid      bool
	free       bool
	begun      int
	ended      int
	inits      [][]float64
	changed    [][]float64
	gradEnergy []float64
}

func newRecorder() *recorder {
	return &recorder{Base: forms.NewBase(), step: 1, valid: true, free: true}
}

func (f *recorder) Name() string { return "recorder" }

func (f *recorder) Value(x []float64) float64 {
	v := 0.0
	for _, xi := range x {
		v += 0.5 * xi * xi
	}
	return v
}

func (f *recorder) Gradient(x []float64) []float64 { return append([]float64(nil), x...) }

func (f *recorder) Hessian(x []float64) *sparse.Matrix {
	t := sparse.NewTriplet(len(x), len(x), len(x))
	for i := range x {
		t.Put(i, i, 1)
	}
	return t.ToMatrix()
}

func (f *recorder) Init(x []float64)                               { f.inits = append(f.inits, x) }
func (f *recorder) SolutionChanged(x []float64)                    { f.changed = append(f.changed, x) }
func (f *recorder) LineSearchBegin(_, _ []float64)                 { f.begun++ }
func (f *recorder) LineSearchEnd()                                 { f.ended++ }
func (f *recorder) MaxStepSize(_, _ []float64) (float64, error)    { return f.step, f.stepErr }
func (f *recorder) IsStepValid(_, _ []float64) bool                { return f.valid }
func (f *recorder) IsStepCollisionFree(_, _ []float64) bool        { return f.free }
func (f *recorder) UpdateBarrierStiffness(_, gradEnergy []float64) { f.gradEnergy = gradEnergy }

func setup(t *testing.T) (*Problem, *recorder, *forms.ALForm, *forms.InertiaForm) {
	t.Helper()
	masses := []float64{1, 1, 1, 1}
	inertia := forms.NewInertiaForm(masses)
	require.NoError(t, inertia.SetPrediction([]float64{1, 2, 3, 4}, 1))
	al, err := forms.NewALForm([]int{0, 3}, masses, 10)
	require.NoError(t, err)
	pr := newRecorder()

	red, err := dof.NewReducer(4, []int{0, 3})
	require.NoError(t, err)
	p := New(forms.NewComposite(inertia, al, pr), red)
	return p, pr, al, inertia
}

func TestSpaces(t *testing.T) {
	p, _, _, _ := setup(t)
	require.NoError(t, p.SetTarget([]float64{-1, 0, 0, -4}))

	assert.Equal(t, 2, p.Size())
	full, err := p.ReducedToFull([]float64{5, 6})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 5, 6, -4}, full)

	require.NoError(t, p.SetApplyDBC([]float64{7, 0, 0, 8}, false))
	full, err = p.ReducedToFull([]float64{5, 6})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 5, 6, 8}, full)

	red, err := p.FullToReduced([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, red)

	p.UseFullSize()
	assert.Equal(t, 4, p.Size())
	same, err := p.FullToReduced([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, same)
	full, err = p.ReducedToFull(same)
	require.NoError(t, err)
	assert.Equal(t, same, full)

	_, err = p.ReducedToFull([]float64{1})
	assert.True(t, errors.Is(err, dof.ErrSizeMismatch))
	assert.ErrorIs(t, p.SetTarget([]float64{1}), dof.ErrSizeMismatch)
	assert.ErrorIs(t, p.SetApplyDBC([]float64{1}, true), dof.ErrSizeMismatch)
}

func TestTargetReachesALForm(t *testing.T) {
	p, _, al, _ := setup(t)
	require.NoError(t, p.SetTarget([]float64{-1, 0, 0, -4}))
	assert.Equal(t, []float64{-1, 0, 0, -4}, al.Target())
}

func TestEvaluationInBothSpaces(t *testing.T) {
	p, _, al, inertia := setup(t)
	require.NoError(t, p.SetTarget([]float64{-1, 0, 0, -4}))
	pr := p.Forms()[2]

	x := []float64{0.5, 0.25}
	full := []float64{-1, 0.5, 0.25, -4}
	want := inertia.Value(full) + pr.Value(full)
	assert.InDelta(t, want, p.Value(x), 1e-12)

	g := p.Gradient(x)
	require.Len(t, g, 2)
	ig, pg := inertia.Gradient(full), pr.Gradient(full)
	assert.InDeltaSlice(t, []float64{ig[1] + pg[1], ig[2] + pg[2]}, g, 1e-12)

	h, err := p.Hessian(x)
	require.NoError(t, err)
	r, c := h.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.InDelta(t, 2.0, h.At(0, 0), 1e-12)

	al.Enable()
	p.UseFullSize()
	require.NoError(t, p.SetApplyDBC(full, false))
	xf := []float64{0, 0.5, 0.25, 0}
	assert.InDelta(t, inertia.Value(xf)+al.Value(xf)+pr.Value(xf), p.Value(xf), 1e-12)
	hf, err := p.Hessian(xf)
	require.NoError(t, err)
	assert.InDelta(t, 1+10+1, hf.At(0, 0), 1e-12)
}

func TestHooks(t *testing.T) {
	p, pr, _, _ := setup(t)
	x0, x1 := []float64{0, 0}, []float64{1, 1}

	p.LineSearchBegin(x0, x1)
	p.LineSearchEnd()
	assert.Equal(t, 1, pr.begun)
	assert.Equal(t, 1, pr.ended)

	pr.step = 0.25
	step, err := p.MaxStepSize(x0, x1)
	require.NoError(t, err)
	assert.Equal(t, 0.25, step)

	pr.step = 3
	step, err = p.MaxStepSize(x0, x1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, step)

	pr.stepErr = errors.New("boom")
	_, err = p.MaxStepSize(x0, x1)
	assert.ErrorContains(t, err, "recorder")

	assert.True(t, p.IsStepValid(x0, x1))
	pr.valid = false
	assert.False(t, p.IsStepValid(x0, x1))
	pr.Disable()
	assert.True(t, p.IsStepValid(x0, x1))
	pr.Enable()

	pr.free = false
	assert.False(t, p.IsStepCollisionFree(x0, x1))
	assert.False(t, p.IsStepCollisionFreeFull(make([]float64, 4), make([]float64, 4)))

	p.Init([]float64{1, 2, 3, 4})
	require.Len(t, pr.inits, 1)
	assert.Equal(t, []float64{1, 2, 3, 4}, pr.inits[0])

	p.SolutionChanged([]float64{9, 8})
	require.Len(t, pr.changed, 1)
	assert.Equal(t, []float64{0, 9, 8, 0}, pr.changed[0])
}

func TestUpdateBarrierStiffnessExcludesAdapters(t *testing.T) {
	p, pr, _, inertia := setup(t)
	inertia.SetWeight(2)
	x := []float64{0, 0, 0, 0}
	require.NoError(t, p.UpdateBarrierStiffness(x))

	want := inertia.Gradient(x)
	for i := range want {
		want[i] *= 2
	}
	assert.Equal(t, want, pr.gradEnergy)
	assert.ErrorIs(t, p.UpdateBarrierStiffness([]float64{1}), dof.ErrSizeMismatch)
}
