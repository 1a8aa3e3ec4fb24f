package alsolver_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/contactsim/internal/alsolver"
	"github.com/san-kum/contactsim/internal/collision"
	"github.com/san-kum/contactsim/internal/contact"
	"github.com/san-kum/contactsim/internal/dof"
	"github.com/san-kum/contactsim/internal/forms"
	"github.com/san-kum/contactsim/internal/minimizer"
	"github.com/san-kum/contactsim/internal/problem"
	"github.com/san-kum/contactsim/internal/scene"
)

type fixture struct {
	scene   *scene.Scene
	problem *problem.Problem
	spring  forms.Form
	contact *contact.Form
	al      *forms.ALForm
	newton  *minimizer.Newton
}

func twoBlocks() *fixture {
	s := scene.TwoBlocks2D()

	spring, err := forms.NewEnergy("mass_spring", s.Body, map[string]float64{"stiffness": 10})
	Expect(err).NotTo(HaveOccurred())

	mesh, err := s.CollisionMesh()
	Expect(err).NotTo(HaveOccurred())
	opts := contact.DefaultOptions()
	opts.DHat = 0.01
	opts.Stiffness = 1e5
	opts.AdaptiveStiffness = false
	c, err := contact.NewForm(mesh, opts)
	Expect(err).NotTo(HaveOccurred())

	al, err := forms.NewALForm(s.Boundary(), s.Masses(), 1e3)
	Expect(err).NotTo(HaveOccurred())

	reducer, err := dof.NewReducer(s.Body.Size(), s.Boundary())
	Expect(err).NotTo(HaveOccurred())
	p := problem.New(forms.NewComposite(spring, c, al), reducer)
	Expect(p.SetTarget(s.Target(1))).To(Succeed())

	newtonOpts := minimizer.DefaultOptions()
	newtonOpts.MaxIterations = 100
	newton, err := minimizer.NewNewton(newtonOpts)
	Expect(err).NotTo(HaveOccurred())

	return &fixture{scene: s, problem: p, spring: spring, contact: c, al: al, newton: newton}
}

var _ = Describe("Options", func() {
	DescribeTable("validation",
		func(opts alsolver.Options, ok bool) {
			err := opts.Validate()
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(MatchError(alsolver.ErrOptions))
			}
		},
		Entry("defaults", alsolver.DefaultOptions(), true),
		Entry("zero initial weight", alsolver.Options{InitialWeight: 0, Scaling: 0.5, MaxSteps: 1}, false),
		Entry("initial weight above one", alsolver.Options{InitialWeight: 1.5, Scaling: 0.5, MaxSteps: 1}, false),
		Entry("scaling of one", alsolver.Options{InitialWeight: 0.5, Scaling: 1, MaxSteps: 1}, false),
		Entry("negative max steps", alsolver.Options{InitialWeight: 0.5, Scaling: 0.5, MaxSteps: -1}, false),
		Entry("zero max steps", alsolver.Options{InitialWeight: 0.5, Scaling: 0.5, MaxSteps: 0}, true),
	)

	It("requires an AL form", func() {
		newton, err := minimizer.NewNewton(minimizer.DefaultOptions())
		Expect(err).NotTo(HaveOccurred())
		_, err = alsolver.New(newton, nil, alsolver.DefaultOptions())
		Expect(err).To(MatchError(alsolver.ErrOptions))
	})
})

var _ = Describe("Solve", func() {
	var (
		f       *fixture
		weights []float64
		sol     []float64
	)

	BeforeEach(func() {
		f = twoBlocks()
		weights = nil
		sol = make([]float64, f.problem.FullSize())
	})

	newSolver := func(opts alsolver.Options) *alsolver.Solver {
		s, err := alsolver.New(f.newton, f.al, opts, alsolver.WithPostSubsolve(func(w float64) {
			weights = append(weights, w)
		}))
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	It("rejects a solution of the wrong size", func() {
		_, err := newSolver(alsolver.DefaultOptions()).Solve(f.problem, sol[1:], false)
		Expect(err).To(MatchError(alsolver.ErrSize))
	})

	Context("when imposing the boundary directly inverts cells", func() {
		It("escalates and then imposes the boundary exactly", func() {
			solver := newSolver(alsolver.DefaultOptions())
			report, err := solver.Solve(f.problem, sol, false)
			Expect(err).NotTo(HaveOccurred())

			Expect(report.ALSteps).To(BeNumerically(">=", 1))
			Expect(report.Subsolves).To(HaveLen(report.ALSteps))
			Expect(report.Final).NotTo(BeNil())
			Expect(solver.Phase()).To(Equal(alsolver.FinalSolve))

			Expect(weights).To(HaveLen(report.ALSteps + 1))
			Expect(weights[len(weights)-1]).To(Equal(0.0))
			Expect(weights[0]).To(BeNumerically("~", 0.25, 1e-15))

			target := f.problem.Target()
			for _, i := range f.scene.Boundary() {
				Expect(sol[i]).To(Equal(target[i]))
			}

			rest := make([]float64, len(sol))
			Expect(f.spring.(forms.StepValidator).IsStepValid(rest, sol)).To(BeTrue())

			mesh := f.contact.Mesh()
			Expect(collision.HasIntersections(mesh, mesh.DisplaceVertices(sol))).To(BeFalse())
		})

		It("restores weights and reduced operation afterwards", func() {
			_, err := newSolver(alsolver.DefaultOptions()).Solve(f.problem, sol, false)
			Expect(err).NotTo(HaveOccurred())

			Expect(f.problem.Objective().Weights()).To(Equal([]float64{1, 1, 1}))
			Expect(f.al.Enabled()).To(BeFalse())
			Expect(f.problem.IsFullSpace()).To(BeFalse())
			Expect(f.problem.ApplyDBC()).To(BeTrue())
		})

		It("fails once the escalation budget is spent", func() {
			opts := alsolver.DefaultOptions()
			opts.MaxSteps = 0
			_, err := newSolver(opts).Solve(f.problem, sol, false)
			Expect(err).To(MatchError(alsolver.ErrEscalationExhausted))

			var escalation *alsolver.EscalationError
			Expect(err).To(BeAssignableToTypeOf(escalation))
			escalation = err.(*alsolver.EscalationError)
			Expect(escalation.Steps).To(Equal(1))
			Expect(escalation.MaxSteps).To(Equal(0))
			Expect(escalation.Weight).To(BeNumerically("~", 0.25, 1e-15))
			Expect(weights).To(BeEmpty())
		})
	})

	Context("when the boundary can be imposed directly", func() {
		BeforeEach(func() {
			Expect(f.problem.SetTarget(f.scene.Target(0.1))).To(Succeed())
		})

		It("skips escalation", func() {
			report, err := newSolver(alsolver.DefaultOptions()).Solve(f.problem, sol, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.ALSteps).To(Equal(0))
			Expect(report.Subsolves).To(BeEmpty())
			Expect(weights).To(Equal([]float64{0}))

			target := f.problem.Target()
			for _, i := range f.scene.Boundary() {
				Expect(sol[i]).To(Equal(target[i]))
			}
		})

		It("runs one penalised solve when forced", func() {
			report, err := newSolver(alsolver.DefaultOptions()).Solve(f.problem, sol, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.ALSteps).To(Equal(1))
			Expect(weights).To(HaveLen(2))
			Expect(weights[1]).To(Equal(0.0))
		})
	})
})
