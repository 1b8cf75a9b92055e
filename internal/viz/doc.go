// Package viz renders training progress and model output in the terminal
// and as images.
//
//   - [Dashboard]: Bubble Tea view fed by training events
//   - [Console]: line-oriented progress observer
//   - [Canvas]: Braille pixel canvas for grayscale frames
//   - [WriteGIF]: ground truth and reconstruction side by side
//
// # Key Bindings
//
//	Q     - Stop training (saves last.ckpt) and quit
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
