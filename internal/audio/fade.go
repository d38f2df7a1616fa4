package audio

// rampVolume returns the volume after step of steps in a linear ramp from
// from to to. It is a pure function of progress so the fade does not depend
// on how many timer callbacks have fired.
func rampVolume(from, to float64, step, steps int) float64 {
	if steps <= 0 || step >= steps {
		return to
	}
	if step <= 0 {
		return from
	}
	return from + (to-from)*float64(step)/float64(steps)
}
