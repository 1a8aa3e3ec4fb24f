// Package viz renders deformed collision surfaces in the terminal.
//
//   - [Frame]: the displaced surface edges of a scene, projected to 2D
//   - [Canvas]: Braille-based pixel canvas, 2x4 dots per cell
//   - lipgloss styles shared by the CLI and the progress view
//
// Three-dimensional scenes are projected onto the x-z plane.
package viz
