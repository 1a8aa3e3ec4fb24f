package alsolver_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestALSolver(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AL Solver Suite")
}
