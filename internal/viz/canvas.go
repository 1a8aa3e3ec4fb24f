package viz

import (
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
const blank rune = 0x2800

var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	return c
}

// Set lights the sub-pixel (x, y). The canvas is Width*2 by Height*4
// sub-pixels; points outside are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	subX := x % 2
	subY := y % 4

	c.Grid[row][col] |= rune(pixelMap[subY][subX])
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Clear unsets every sub-pixel and keeps the grid allocation.
func (c *Canvas) Clear() {
	for _, row := range c.Grid {
		for x := range row {
			row[x] = blank
		}
	}
}

// Pixels is the canvas size in sub-pixels.
func (c *Canvas) Pixels() (int, int) { return 2 * c.Width, 4 * c.Height }

// Lit counts the lit sub-pixels.
func (c *Canvas) Lit() int {
	n := 0
	for _, row := range c.Grid {
		for _, r := range row {
			for bits := r - blank; bits > 0; bits &= bits - 1 {
				n++
			}
		}
	}
	return n
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
