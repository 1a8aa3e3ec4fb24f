package sparse

// DefaultFlushThreshold is the number of buffered entries after which an
// Accumulator condenses its buffer into the running sum.
const DefaultFlushThreshold = 1 << 16

// Accumulator is a per-worker assembly buffer. Entries are buffered as
// triplets and condensed into a CSR sum whenever the buffer grows past the
// threshold, bounding memory for large assemblies.
type Accumulator struct {
	buf       *Triplet
	sum       *Matrix
	threshold int
}

func NewAccumulator(m, n, threshold int) *Accumulator {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	return &Accumulator{
		buf:       NewTriplet(m, n, min(threshold, 1024)),
		sum:       Zero(m, n),
		threshold: threshold,
	}
}

func (a *Accumulator) Put(i, j int, x float64) {
	a.buf.Put(i, j, x)
	if a.buf.Len() >= a.threshold {
		a.flush()
	}
}

// PutBlock adds a dense block whose rows and columns map to the given indices.
func (a *Accumulator) PutBlock(idx []int, block []float64) {
	n := len(idx)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if v := block[r*n+c]; v != 0 {
				a.Put(idx[r], idx[c], v)
			}
		}
	}
}

func (a *Accumulator) flush() {
	if a.buf.Len() == 0 {
		return
	}
	a.sum = mustAdd(a.sum, a.buf.ToMatrix())
	a.buf.Reset()
}

// Matrix flushes pending entries and returns the accumulated matrix.
func (a *Accumulator) Matrix() *Matrix {
	a.flush()
	return a.sum
}

// Sum merges accumulators serially. It panics when an accumulator is not
// m×n.
func Sum(m, n int, accs ...*Accumulator) *Matrix {
	out := Zero(m, n)
	for _, acc := range accs {
		out = mustAdd(out, acc.Matrix())
	}
	return out
}

func mustAdd(a, b *Matrix) *Matrix {
	sum, err := a.Add(b)
	if err != nil {
		panic(err)
	}
	return sum
}
