package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contactsim/internal/viz"
)

func TestFrameToSVG(t *testing.T) {
	f := viz.Frame{
		Points: [][2]float64{{0, 0}, {1, 0}, {1, 1}},
		Edges:  [][2]int{{0, 1}, {1, 2}},
	}
	svg := FrameToSVG(f, 110, 110, "#00ff88")

	assert.True(t, strings.HasPrefix(svg, "<?xml"))
	assert.Equal(t, 2, strings.Count(svg, "<line "))
	assert.Contains(t, svg, `stroke="#00ff88"`)
	// 0.05 padding on a unit square maps (0,0) to (5,105).
	assert.Contains(t, svg, `x1="5.00" y1="105.00"`)
}

func TestFrameToSVGEmpty(t *testing.T) {
	assert.Empty(t, FrameToSVG(viz.Frame{}, 10, 10, "#fff"))

	var buf bytes.Buffer
	require.NoError(t, WriteFrameSVG(&buf, viz.Frame{}, 10, 10, "#fff"))
	assert.Zero(t, buf.Len())
}
