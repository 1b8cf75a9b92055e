// Package analysis inspects learned latent dynamics.
//
//   - [Rollout]: integrate the learned vector field from a given angle
//   - [PowerSpectrum], [DominantFrequency]: spectral content of a rollout
//   - [PhasePortraitToASCII]: angle against velocity in the terminal
//
// A rollout of an unforced, well-trained model should oscillate at roughly
// the pendulum's natural frequency:
//
//	r, _ := analysis.Rollout(net, 0.5, 0, 0, 0.05, 512, "rk4")
//	f := analysis.DominantFrequency(r.Angles, 0.05)
package analysis
