// Package export renders displaced surfaces as standalone SVG documents.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/contactsim/internal/viz"
)

// FrameToSVG draws every edge of f as a line, scaled uniformly into a
// width×height viewport with a 5% margin.
func FrameToSVG(f viz.Frame, width, height int, strokeColor string) string {
	if len(f.Edges) == 0 {
		return ""
	}

	b := f.Bounds().Pad(0.05)
	scale := float64(width) / b.Width()
	if s := float64(height) / b.Height(); s < scale {
		scale = s
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g stroke="%s" stroke-width="1.5" stroke-linecap="round">
`, width, height, width, height, strokeColor)

	for _, e := range f.Edges {
		p, q := f.Points[e[0]], f.Points[e[1]]
		x1, y1 := (p[0]-b.MinX)*scale, (b.MaxY-p[1])*scale
		x2, y2 := (q[0]-b.MinX)*scale, (b.MaxY-q[1])*scale
		fmt.Fprintf(&sb, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\"/>\n", x1, y1, x2, y2)
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}

func WriteFrameSVG(w io.Writer, f viz.Frame, width, height int, strokeColor string) error {
	_, err := io.WriteString(w, FrameToSVG(f, width, height, strokeColor))
	return err
}
