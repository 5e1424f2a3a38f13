// Package viz renders a running world in the terminal.
//
// [Model] is a Bubble Tea program that ticks a world once per frame and
// draws it on a braille [Canvas], two by four dots per character cell.
// The side panel shows tick, particle and energy statistics with a kinetic
// energy plot.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	S     - Single tick while paused
//	R     - Rebuild the scenario
//	B     - Toggle binding lines
//	?     - Help overlay
//	Q     - Quit
package viz
