package effects

// LowerAlpha ramps from 0 at threshold to 1 at threshold+fade. Values above
// the ramp are fully affected.
func LowerAlpha(v, threshold, fade float32) float32 {
	if v >= threshold+fade {
		return 1
	}
	if v <= threshold {
		return 0
	}
	return (v - threshold) / fade
}

// UpperAlpha ramps from 1 at threshold-fade to 0 at threshold. Values below
// the ramp are fully affected.
func UpperAlpha(v, threshold, fade float32) float32 {
	if v >= threshold {
		return 0
	}
	if v <= threshold-fade {
		return 1
	}
	return (threshold - v) / fade
}
