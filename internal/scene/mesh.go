package scene

import "sort"

// builder accumulates blocks of vertices and cells into one body.
type builder struct {
	dim   int
	rest  []float64
	cells [][]int
}

func (b *builder) numVertices() int { return len(b.rest) / b.dim }

func (b *builder) vertex(p ...float64) int {
	id := b.numVertices()
	b.rest = append(b.rest, p[:b.dim]...)
	return id
}

// block2D adds an nx×ny grid of quads split into triangles over
// [x0,x0+w]×[y0,y0+h]. It returns the vertex ids indexed [j][i].
func (b *builder) block2D(x0, y0, w, h float64, nx, ny int) [][]int {
	ids := make([][]int, ny+1)
	for j := 0; j <= ny; j++ {
		ids[j] = make([]int, nx+1)
		for i := 0; i <= nx; i++ {
			ids[j][i] = b.vertex(x0+w*float64(i)/float64(nx), y0+h*float64(j)/float64(ny))
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a, c := ids[j][i], ids[j+1][i+1]
			b.cells = append(b.cells,
				[]int{a, ids[j][i+1], c},
				[]int{a, c, ids[j+1][i]})
		}
	}
	return ids
}

// block3D adds an nx×ny×nz grid of hexahedra, each split into six
// tetrahedra around its main diagonal. Vertex ids are indexed [k][j][i].
func (b *builder) block3D(origin, size [3]float64, nx, ny, nz int) [][][]int {
	ids := make([][][]int, nz+1)
	for k := 0; k <= nz; k++ {
		ids[k] = make([][]int, ny+1)
		for j := 0; j <= ny; j++ {
			ids[k][j] = make([]int, nx+1)
			for i := 0; i <= nx; i++ {
				ids[k][j][i] = b.vertex(
					origin[0]+size[0]*float64(i)/float64(nx),
					origin[1]+size[1]*float64(j)/float64(ny),
					origin[2]+size[2]*float64(k)/float64(nz))
			}
		}
	}
	paths := [6][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				corner := func(c [3]int) int { return ids[k+c[2]][j+c[1]][i+c[0]] }
				for _, p := range paths {
					var c [3]int
					tet := []int{corner(c)}
					for _, axis := range p {
						c[axis] = 1
						tet = append(tet, corner(c))
					}
					b.cells = append(b.cells, tet)
				}
			}
		}
	}
	return ids
}

// edges returns every unique cell edge, sorted.
func (b *builder) edges() [][2]int {
	seen := make(map[[2]int]bool)
	for _, c := range b.cells {
		for x := 0; x < len(c); x++ {
			for y := x + 1; y < len(c); y++ {
				seen[ordered2(c[x], c[y])] = true
			}
		}
	}
	out := make([][2]int, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// boundaryEdges returns the triangle edges used by exactly one cell.
func (b *builder) boundaryEdges() [][2]int {
	count := make(map[[2]int]int)
	var order [][2]int
	for _, c := range b.cells {
		for x := 0; x < 3; x++ {
			e := [2]int{c[x], c[(x+1)%3]}
			key := ordered2(e[0], e[1])
			if count[key] == 0 {
				order = append(order, e)
			}
			count[key]++
		}
	}
	var out [][2]int
	for _, e := range order {
		if count[ordered2(e[0], e[1])] == 1 {
			out = append(out, e)
		}
	}
	return out
}

// boundaryFaces returns the tetrahedron faces used by exactly one cell.
func (b *builder) boundaryFaces() [][3]int {
	count := make(map[[3]int]int)
	var order [][3]int
	for _, c := range b.cells {
		for skip := 0; skip < 4; skip++ {
			var f [3]int
			n := 0
			for x := 0; x < 4; x++ {
				if x != skip {
					f[n] = c[x]
					n++
				}
			}
			key := ordered3(f)
			if count[key] == 0 {
				order = append(order, f)
			}
			count[key]++
		}
	}
	var out [][3]int
	for _, f := range order {
		if count[ordered3(f)] == 1 {
			out = append(out, f)
		}
	}
	return out
}

func ordered2(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func ordered3(f [3]int) [3]int {
	s := f[:]
	sort.Ints(s)
	return f
}
